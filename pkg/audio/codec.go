package audio

import (
	"encoding/base64"
	"fmt"
)

// EncodedChunk is the wire representation of one [Frame]: base64-encoded
// 16-bit little-endian PCM plus the MIME tag the live protocol expects,
// e.g. "audio/pcm;rate=16000". A chunk is produced by [Encode], consumed once
// by the network layer, and discarded.
type EncodedChunk struct {
	MIMEType string
	Data     string
}

// DecodeError reports a malformed encoded chunk. Decode failures are never
// fatal to an in-progress conversation: callers log the error and drop the
// chunk.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio: decode: %s: %v", e.Reason, e.Err)
	}
	return "audio: decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode converts a frame of float32 samples into its wire representation.
// Samples are clamped to [-1, 1] before scaling, so Encode is total — there
// are no error conditions.
func Encode(f Frame) EncodedChunk {
	buf := make([]byte, len(f.Samples)*2)
	for i, v := range f.Samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int32(v * 32768)
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return EncodedChunk{
		MIMEType: fmt.Sprintf("audio/pcm;rate=%d", f.Rate),
		Data:     base64.StdEncoding.EncodeToString(buf),
	}
}

// Decode converts a base64 s16le payload back into a playable frame at the
// given rate and channel count. Samples are interleaved round-robin across
// channels; the pipeline only ever requests one channel. Returns a
// [*DecodeError] when the payload is not valid base64 or its byte length is
// not a multiple of 2.
func Decode(data string, rate, channels int) (Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Frame{}, &DecodeError{Reason: "invalid base64", Err: err}
	}
	if len(raw)%2 != 0 {
		return Frame{}, &DecodeError{Reason: fmt.Sprintf("odd byte length %d", len(raw))}
	}
	if channels <= 0 {
		channels = 1
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		samples[i] = float32(s) / 32768
	}
	return Frame{Samples: samples, Rate: rate, Channels: channels}, nil
}
