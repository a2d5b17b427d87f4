//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"time"
)

// Without the portaudio build tag the hardware constructors still exist so
// the wiring in cmd compiles, but every acquisition fails with a clear
// rebuild hint.

var errNoPortaudio = fmt.Errorf("%w: built without portaudio support, rebuild with -tags portaudio", ErrDeviceUnavailable)

// Microphone is the no-hardware stand-in for the portaudio input device.
type Microphone struct{}

func NewMicrophone(rate, frameSize int) *Microphone { return &Microphone{} }

func (m *Microphone) Start(ctx context.Context) error { return errNoPortaudio }

func (m *Microphone) Frames() <-chan Frame { return nil }

func (m *Microphone) Stop() error { return nil }

// Speaker is the no-hardware stand-in for the portaudio output device. It
// opens successfully so the gateway can still serve its control surface;
// writes fail with the rebuild hint instead.
type Speaker struct{}

func NewSpeaker(rate int) (*Speaker, error) { return &Speaker{}, nil }

func (s *Speaker) Write(samples []float32) error { return errNoPortaudio }

func (s *Speaker) Now() time.Duration { return 0 }

func (s *Speaker) Close() error { return nil }
