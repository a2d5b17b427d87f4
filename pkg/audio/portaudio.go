//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// paInitOnce guards global portaudio initialisation. Termination is left to
// process exit; repeated Initialize calls are reference-counted by portaudio
// itself but keeping a single init avoids noisy device churn.
var paInitOnce sync.Once

func paInit() (err error) {
	paInitOnce.Do(func() {
		err = portaudio.Initialize()
	})
	return err
}

// Microphone is a [CaptureDevice] backed by the default portaudio input
// stream, opened mono at the requested rate with [FrameSize]-sample buffers.
type Microphone struct {
	rate      int
	frameSize int

	mu      sync.Mutex
	stream  *portaudio.Stream
	frames  chan Frame
	done    chan struct{}
	started bool
}

// NewMicrophone creates a microphone capture device. Frames are delivered at
// rate Hz, mono, frameSize samples each.
func NewMicrophone(rate, frameSize int) *Microphone {
	if frameSize <= 0 {
		frameSize = FrameSize
	}
	return &Microphone{rate: rate, frameSize: frameSize}
}

// Start opens the default input stream and begins the read loop.
func (m *Microphone) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	if err := paInit(); err != nil {
		return fmt.Errorf("%w: portaudio init: %v", ErrDeviceUnavailable, err)
	}

	buf := make([]float32, m.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.rate), m.frameSize, buf)
	if err != nil {
		return fmt.Errorf("%w: open input stream: %v", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: start input stream: %v", ErrDeviceUnavailable, err)
	}

	m.stream = stream
	m.frames = make(chan Frame, 8)
	m.done = make(chan struct{})
	m.started = true

	go m.readLoop(ctx, stream, buf, m.frames, m.done)
	return nil
}

// readLoop pulls fixed-size buffers from the device until the microphone is
// stopped or ctx is cancelled. Each buffer is copied into an immutable frame.
func (m *Microphone) readLoop(ctx context.Context, stream *portaudio.Stream, buf []float32, out chan<- Frame, done <-chan struct{}) {
	defer close(out)
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			slog.Warn("microphone read failed", "err", err)
			return
		}
		samples := make([]float32, len(buf))
		copy(samples, buf)

		select {
		case out <- Frame{Samples: samples, Rate: m.rate, Channels: 1}:
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Frames returns the capture channel. Nil before Start.
func (m *Microphone) Frames() <-chan Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Stop releases the input stream. Idempotent.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	close(m.done)
	if m.stream != nil {
		_ = m.stream.Stop()
		_ = m.stream.Close()
		m.stream = nil
	}
	return nil
}

// speakerChunk is the per-write buffer size of the output stream. Small
// enough that an interrupt lands within ~43 ms of audio at 24 kHz.
const speakerChunk = 1024

// Speaker is a [Playback] device backed by the default portaudio output
// stream. Writes block at the device's native pace, which is what gives the
// playback scheduler its timing. The partial tail of a write is carried into
// the next one rather than zero-padded, so consecutive playback units come
// out gapless; the tail is only padded when the speaker closes.
type Speaker struct {
	rate int

	mu      sync.Mutex
	stream  *portaudio.Stream
	chunks  *chunker
	opened  time.Time
	started bool
}

// NewSpeaker opens the default output stream, mono at rate Hz.
func NewSpeaker(rate int) (*Speaker, error) {
	if err := paInit(); err != nil {
		return nil, fmt.Errorf("%w: portaudio init: %v", ErrDeviceUnavailable, err)
	}
	buf := make([]float32, speakerChunk)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(rate), speakerChunk, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: open output stream: %v", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start output stream: %v", ErrDeviceUnavailable, err)
	}
	return &Speaker{
		rate:    rate,
		stream:  stream,
		chunks:  newChunker(buf),
		opened:  time.Now(),
		started: true,
	}, nil
}

// Write plays samples, blocking until the device has consumed every full
// chunk. A trailing partial chunk stays buffered for the next Write.
func (s *Speaker) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("audio: speaker closed")
	}
	// The chunker fills the buffer registered with the stream, so emit just
	// pushes it to the device.
	return s.chunks.push(samples, func([]float32) error {
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("audio: speaker write: %w", err)
		}
		return nil
	})
}

// Now returns time elapsed on the output clock since the device was opened.
func (s *Speaker) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.opened)
}

// Close flushes the buffered tail and releases the output stream. Idempotent.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	_ = s.chunks.flush(func([]float32) error { return s.stream.Write() })
	_ = s.stream.Stop()
	_ = s.stream.Close()
	s.stream = nil
	return nil
}
