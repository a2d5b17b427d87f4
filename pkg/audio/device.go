package audio

import (
	"context"
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned by a device Start/open when the underlying
// hardware (or the portaudio runtime) cannot be acquired. The capture
// pipeline maps it to its permission error.
var ErrDeviceUnavailable = errors.New("audio: device unavailable")

// CaptureDevice is a single-owner microphone handle. Frames are delivered on
// the device's own processing clock — cadence is determined by the hardware
// buffer size and sample rate, not by a software timer.
//
// A device is owned by exactly one capture pipeline for the session's
// lifetime. Stop must be idempotent.
type CaptureDevice interface {
	// Start acquires the device and begins delivering fixed-size frames on
	// the channel returned by Frames. Returns [ErrDeviceUnavailable] (or a
	// wrapping error) when the device cannot be acquired.
	Start(ctx context.Context) error

	// Frames returns the channel on which captured frames arrive, in capture
	// order. The channel is closed when the device is stopped.
	Frames() <-chan Frame

	// Stop releases the device. Safe to call more than once.
	Stop() error
}

// Playback is the output device: a blocking PCM sink plus the monotonic
// device clock playback is scheduled against. Write consumes samples at the
// device's native pace; Now reports time on the same clock that pacing
// follows, so a scheduler can compute gapless start times.
type Playback interface {
	// Write plays interleaved float32 samples, blocking roughly for their
	// duration. Returns an error if the device has been closed.
	Write(samples []float32) error

	// Now returns the current time on the output device clock. Monotonic,
	// starts near zero when the device is opened.
	Now() time.Duration

	// Close releases the device. Safe to call more than once.
	Close() error
}
