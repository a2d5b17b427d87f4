// Package mock provides in-memory mock implementations of the
// [audio.CaptureDevice] and [audio.Playback] interfaces for use in unit
// tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	capture := mock.NewCapture()
//	capture.Push(audio.Frame{Samples: samples, Rate: audio.CaptureRate, Channels: 1})
//
//	sink := mock.NewSink()
//	sink.Advance(250 * time.Millisecond) // move the fake output clock
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/naveo-ai/naveo-voice/pkg/audio"
)

// ─── Capture ──────────────────────────────────────────────────────────────────

// Capture is a mock implementation of [audio.CaptureDevice]. Tests feed
// frames with [Capture.Push]; Stop closes the frame channel exactly once.
type Capture struct {
	mu sync.Mutex

	// StartError is returned by [Capture.Start]. Set it to
	// audio.ErrDeviceUnavailable to exercise the acquisition failure path.
	StartError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	frames  chan audio.Frame
	stopped bool
}

// NewCapture creates a capture mock with a buffered frame channel.
func NewCapture() *Capture {
	return &Capture{frames: make(chan audio.Frame, 64)}
}

// Start implements [audio.CaptureDevice]. Returns StartError. Like the
// hardware device, starting again after Stop opens a fresh frame stream.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountStart++
	if c.StartError != nil {
		return c.StartError
	}
	if c.stopped {
		c.frames = make(chan audio.Frame, 64)
		c.stopped = false
	}
	return nil
}

// Frames implements [audio.CaptureDevice].
func (c *Capture) Frames() <-chan audio.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Stop implements [audio.CaptureDevice]. Closes the frame channel on the
// first call; later calls are no-ops.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountStop++
	if !c.stopped {
		c.stopped = true
		close(c.frames)
	}
	return nil
}

// Push delivers a frame to the pipeline as if the hardware produced it.
// Must not be called while stopped.
func (c *Capture) Push(f audio.Frame) {
	c.mu.Lock()
	ch := c.frames
	c.mu.Unlock()
	ch <- f
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Playback] with a settable clock.
// Writes return immediately and are recorded; the clock only moves when the
// test calls [Sink.Advance] or [Sink.SetNow], which makes playback-timing
// assertions deterministic.
type Sink struct {
	mu sync.Mutex

	// WriteError is returned by [Sink.Write].
	WriteError error

	// Writes holds every sample slice passed to Write, in order.
	Writes [][]float32

	// CallCountClose records how many times Close was called.
	CallCountClose int

	now time.Duration
}

// NewSink creates a playback mock with the clock at zero.
func NewSink() *Sink {
	return &Sink{}
}

// Write implements [audio.Playback]. Records the samples and returns
// WriteError without blocking.
func (s *Sink) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteError != nil {
		return s.WriteError
	}
	cp := make([]float32, len(samples))
	copy(cp, samples)
	s.Writes = append(s.Writes, cp)
	return nil
}

// Now implements [audio.Playback]. Returns the fake clock.
func (s *Sink) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Close implements [audio.Playback].
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return nil
}

// Advance moves the fake output clock forward by d.
func (s *Sink) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now += d
}

// SetNow pins the fake output clock to t.
func (s *Sink) SetNow(t time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}

// WriteCount returns how many Write calls have been recorded.
func (s *Sink) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Writes)
}

var (
	_ audio.CaptureDevice = (*Capture)(nil)
	_ audio.Playback      = (*Sink)(nil)
)
