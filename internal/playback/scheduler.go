// Package playback schedules decoded model speech onto the output device.
//
// Synthesised audio arrives as a stream of short frames, usually faster than
// real time. The [Scheduler] lines them up back to back on the output device
// clock: each frame becomes one playback unit that starts exactly where the
// previous one ends, so bursts of small frames play as one continuous
// utterance. A barge-in flushes everything at once.
package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/naveo-ai/naveo-voice/pkg/audio"
)

// Scheduler owns the playback cursor and the set of live units. The cursor is
// the next free start time on the device clock; the unit set holds every
// frame that is waiting or playing. All methods are safe for concurrent use.
type Scheduler struct {
	sink audio.Playback

	mu     sync.Mutex
	cursor time.Duration
	units  map[uint64]chan struct{}
	nextID uint64
}

// NewScheduler creates a scheduler writing to sink. The scheduler does not
// own the sink; closing the device is the caller's job.
func NewScheduler(sink audio.Playback) *Scheduler {
	return &Scheduler{
		sink:  sink,
		units: make(map[uint64]chan struct{}),
	}
}

// Enqueue schedules one frame. The frame starts at the cursor, or immediately
// when the cursor has fallen behind the device clock, and the cursor advances
// by the frame's duration. Playback happens asynchronously; the unit removes
// itself from the set when it finishes or is stopped.
func (s *Scheduler) Enqueue(f audio.Frame) {
	if len(f.Samples) == 0 {
		return
	}

	s.mu.Lock()
	startAt := s.cursor
	if now := s.sink.Now(); now > startAt {
		startAt = now
	}
	s.cursor = startAt + f.Duration()

	id := s.nextID
	s.nextID++
	stop := make(chan struct{})
	s.units[id] = stop
	s.mu.Unlock()

	go s.play(id, f, startAt, stop)
}

// play waits until the unit's start time and writes the frame. Stopping a
// unit before or at its start time suppresses the write entirely.
func (s *Scheduler) play(id uint64, f audio.Frame, startAt time.Duration, stop chan struct{}) {
	defer s.remove(id)

	if delay := startAt - s.sink.Now(); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-stop:
			return
		}
	}

	select {
	case <-stop:
		return
	default:
	}

	if err := s.sink.Write(f.Samples); err != nil {
		slog.Warn("playback write failed", "err", err, "samples", len(f.Samples))
	}
}

func (s *Scheduler) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.units, id)
}

// Interrupt stops every live unit, clears the set, and rewinds the cursor to
// zero so the next Enqueue re-anchors on the live device clock. The flush is
// abrupt: frames that have not started never play, the one mid-write finishes
// its write.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, stop := range s.units {
		close(stop)
		delete(s.units, id)
	}
	s.cursor = 0
}

// UnitCount returns the number of live units (waiting or playing).
func (s *Scheduler) UnitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.units)
}

// Cursor returns the next free start time on the device clock.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
