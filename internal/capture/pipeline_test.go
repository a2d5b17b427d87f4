package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/naveo-ai/naveo-voice/pkg/audio"
	"github.com/naveo-ai/naveo-voice/pkg/audio/mock"
)

// chunkRecorder collects sent chunks behind a mutex. failFirst makes the
// first send call fail, later calls succeed.
type chunkRecorder struct {
	mu        sync.Mutex
	chunks    []audio.EncodedChunk
	calls     int
	failFirst bool
}

func (r *chunkRecorder) send(c audio.EncodedChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failFirst && r.calls == 1 {
		return errors.New("transport hiccup")
	}
	r.chunks = append(r.chunks, c)
	return nil
}

func (r *chunkRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

func (r *chunkRecorder) at(i int) audio.EncodedChunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunks[i]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStartForwardsEncodedFrames(t *testing.T) {
	t.Parallel()
	device := mock.NewCapture()
	rec := &chunkRecorder{}
	p := New(device, rec.send, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	device.Push(audio.Frame{Samples: []float32{0.25, -0.25}, Rate: audio.CaptureRate, Channels: 1})
	device.Push(audio.Frame{Samples: []float32{0.5}, Rate: audio.CaptureRate, Channels: 1})

	waitFor(t, time.Second, func() bool { return rec.count() == 2 })
	if got := rec.at(0).MIMEType; got != "audio/pcm;rate=16000" {
		t.Errorf("mimeType = %q", got)
	}
}

func TestStartWhileRecordingFails(t *testing.T) {
	t.Parallel()
	device := mock.NewCapture()
	p := New(device, (&chunkRecorder{}).send, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second Start err = %v, want ErrAlreadyRecording", err)
	}
}

func TestStartDeviceDeniedWrapsErrPermission(t *testing.T) {
	t.Parallel()
	device := mock.NewCapture()
	device.StartError = audio.ErrDeviceUnavailable
	p := New(device, (&chunkRecorder{}).send, nil)

	err := p.Start(context.Background())
	if !errors.Is(err, ErrPermission) {
		t.Fatalf("err = %v, want ErrPermission", err)
	}
	if p.Recording() {
		t.Error("recording flag should be cleared after a failed start")
	}
	if device.CallCountStop == 0 {
		t.Error("device should be released after a failed start")
	}

	// A failed start must not poison the pipeline for a retry.
	device.StartError = nil
	device2 := mock.NewCapture()
	p2 := New(device2, (&chunkRecorder{}).send, nil)
	if err := p2.Start(context.Background()); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	p2.Stop()
}

func TestStatusCallbacks(t *testing.T) {
	t.Parallel()
	device := mock.NewCapture()

	var mu sync.Mutex
	var statuses []string
	p := New(device, (&chunkRecorder{}).send, func(s string) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, s)
	})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 2 {
		t.Fatalf("statuses = %v, want 2 entries", statuses)
	}
	if statuses[0] != "Requesting microphone access..." {
		t.Errorf("first status = %q", statuses[0])
	}
	if statuses[1] != "Microphone access granted" {
		t.Errorf("second status = %q", statuses[1])
	}
}

func TestStopIdempotent(t *testing.T) {
	t.Parallel()
	device := mock.NewCapture()
	p := New(device, (&chunkRecorder{}).send, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.Stop()
	p.Stop()

	if p.Recording() {
		t.Error("still recording after Stop")
	}
	if device.CallCountStop != 1 {
		t.Errorf("device stops = %d, want 1", device.CallCountStop)
	}
}

func TestSendFailureDoesNotStopPipeline(t *testing.T) {
	t.Parallel()
	device := mock.NewCapture()
	rec := &chunkRecorder{failFirst: true}
	p := New(device, rec.send, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	device.Push(audio.Frame{Samples: []float32{0.1}, Rate: audio.CaptureRate, Channels: 1})
	device.Push(audio.Frame{Samples: []float32{0.2}, Rate: audio.CaptureRate, Channels: 1})

	// The frame after the failure still goes through.
	waitFor(t, time.Second, func() bool { return rec.count() == 1 })
}

func TestResamplesNonProtocolRate(t *testing.T) {
	t.Parallel()
	device := mock.NewCapture()
	rec := &chunkRecorder{}
	p := New(device, rec.send, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	// 48 kHz device frame: 96 samples should land as 32 at 16 kHz.
	device.Push(audio.Frame{Samples: make([]float32, 96), Rate: 48000, Channels: 1})

	waitFor(t, time.Second, func() bool { return rec.count() == 1 })
	if got := rec.at(0).MIMEType; got != "audio/pcm;rate=16000" {
		t.Errorf("mimeType = %q, want protocol rate", got)
	}
	decoded, err := audio.Decode(rec.at(0).Data, audio.CaptureRate, 1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Samples) != 32 {
		t.Errorf("resampled length = %d, want 32", len(decoded.Samples))
	}
}
