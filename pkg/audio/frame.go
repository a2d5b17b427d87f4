// Package audio defines the frame model, the PCM wire codec, and the device
// interfaces for the Naveo voice pipeline.
//
// A [Frame] is the atomic unit of audio flowing through the pipeline: a block
// of float32 PCM samples captured from the microphone or decoded from the
// remote session. The codec ([Encode]/[Decode]) translates between frames and
// the base64 16-bit little-endian representation the remote live protocol
// exchanges. [CaptureDevice] and [Playback] abstract the physical input and
// output devices so that the pipeline can be driven by mocks in tests and by
// portaudio in a real build.
package audio

import "time"

// Standard sample rates of the live protocol: microphone capture is sent at
// 16 kHz, synthesised model speech arrives at 24 kHz. Both are mono.
const (
	CaptureRate  = 16000
	PlaybackRate = 24000
)

// FrameSize is the fixed number of samples pulled per capture callback.
const FrameSize = 4096

// Frame is a block of single-channel-interleaved float32 PCM samples in the
// range [-1, 1]. A frame is immutable once produced; ownership passes from
// stage to stage and is never shared.
type Frame struct {
	// Samples holds the PCM data, interleaved across channels when
	// Channels > 1.
	Samples []float32

	// Rate is the sample rate in Hz.
	Rate int

	// Channels is the channel count. The pipeline only ever uses 1.
	Channels int
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.Rate <= 0 || f.Channels <= 0 || len(f.Samples) == 0 {
		return 0
	}
	perChannel := len(f.Samples) / f.Channels
	return time.Duration(int64(perChannel) * int64(time.Second) / int64(f.Rate))
}
