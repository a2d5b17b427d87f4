// Package capture runs the microphone side of the voice pipeline: it owns
// the input device, frames its PCM stream, and pushes each encoded chunk
// into the session send path while recording is active.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/naveo-ai/naveo-voice/pkg/audio"
)

// ErrPermission indicates the microphone could not be acquired, either
// because access was denied or because no usable device exists.
var ErrPermission = errors.New("capture: microphone access denied")

// ErrAlreadyRecording is returned by Start when a capture run is active.
var ErrAlreadyRecording = errors.New("capture: already recording")

// SendFunc delivers one encoded chunk into the session send path.
type SendFunc func(chunk audio.EncodedChunk) error

// StatusFunc receives human-readable capture status updates.
type StatusFunc func(status string)

// Pipeline owns one capture device for its lifetime and forwards its frames,
// encoded, to the send function. Safe for concurrent use.
type Pipeline struct {
	device   audio.CaptureDevice
	send     SendFunc
	onStatus StatusFunc

	mu        sync.Mutex
	recording bool
}

// New creates a pipeline over device. send must be non-nil; onStatus may be
// nil when nobody displays capture status.
func New(device audio.CaptureDevice, send SendFunc, onStatus StatusFunc) *Pipeline {
	return &Pipeline{device: device, send: send, onStatus: onStatus}
}

// Start acquires the microphone and begins forwarding frames. Returns
// [ErrAlreadyRecording] when a run is active and an error wrapping
// [ErrPermission] when the device cannot be acquired; in the latter case the
// device is released again before returning.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.recording {
		p.mu.Unlock()
		return ErrAlreadyRecording
	}
	p.recording = true
	p.mu.Unlock()

	p.status("Requesting microphone access...")

	if err := p.device.Start(ctx); err != nil {
		p.setRecording(false)
		_ = p.device.Stop()
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}

	p.status("Microphone access granted")

	go p.forward()
	return nil
}

// forward drains the device's frame channel until it closes. Each frame is
// resampled to the protocol rate when the device could not open at 16 kHz,
// encoded, and handed to the send path. A failed send is logged and the next
// frame is sent independently.
func (p *Pipeline) forward() {
	for f := range p.device.Frames() {
		if !p.Recording() {
			continue // drain remainder after Stop
		}
		if f.Rate != audio.CaptureRate && f.Channels == 1 {
			f = audio.Frame{
				Samples:  audio.ResampleMono(f.Samples, f.Rate, audio.CaptureRate),
				Rate:     audio.CaptureRate,
				Channels: 1,
			}
		}
		if err := p.send(audio.Encode(f)); err != nil {
			slog.Warn("send of captured frame failed", "err", err, "samples", len(f.Samples))
		}
	}
}

// Stop releases the microphone. Idempotent; safe to call while frames are in
// flight.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	wasRecording := p.recording
	p.recording = false
	p.mu.Unlock()

	if wasRecording {
		if err := p.device.Stop(); err != nil {
			slog.Warn("capture device stop failed", "err", err)
		}
	}
}

// Recording reports whether a capture run is active.
func (p *Pipeline) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

func (p *Pipeline) setRecording(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recording = v
}

func (p *Pipeline) status(s string) {
	if p.onStatus != nil {
		p.onStatus(s)
	}
}
