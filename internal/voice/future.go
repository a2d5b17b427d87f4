package voice

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/naveo-ai/naveo-voice/pkg/audio"
	"github.com/naveo-ai/naveo-voice/pkg/provider/live"
)

// errSessionFailed is returned for operations against a future whose
// connection attempt failed.
var errSessionFailed = errors.New("voice: session establishment failed")

type opKind int

const (
	opSend opKind = iota
	opClose
)

type pendingOp struct {
	kind  opKind
	chunk audio.EncodedChunk
}

// sessionFuture is a single-slot promise for a session handle. Connection
// establishment is asynchronous, but audio starts flowing the moment the
// user speaks: operations issued before the handle exists are queued and
// replayed exactly once, in issue order, when the future resolves. A failed
// resolution drops the queue.
type sessionFuture struct {
	mu       sync.Mutex
	sess     live.SessionHandle
	resolved bool
	failed   bool
	pending  []pendingOp
}

func newSessionFuture() *sessionFuture {
	return &sessionFuture{}
}

// Send forwards a chunk to the session, or queues it while the future is
// unresolved.
func (f *sessionFuture) Send(chunk audio.EncodedChunk) error {
	f.mu.Lock()
	if f.failed {
		f.mu.Unlock()
		return errSessionFailed
	}
	if !f.resolved {
		f.pending = append(f.pending, pendingOp{kind: opSend, chunk: chunk})
		f.mu.Unlock()
		return nil
	}
	sess := f.sess
	f.mu.Unlock()
	return sess.Send(chunk)
}

// Close closes the session, or queues the close while the future is
// unresolved so it lands after every chunk queued before it.
func (f *sessionFuture) Close() error {
	f.mu.Lock()
	if f.failed {
		f.mu.Unlock()
		return nil
	}
	if !f.resolved {
		f.pending = append(f.pending, pendingOp{kind: opClose})
		f.mu.Unlock()
		return nil
	}
	sess := f.sess
	f.mu.Unlock()
	return sess.Close()
}

// resolve installs sess and drains the queue in order. Operations that
// arrive during the drain join the queue and are drained too; the future is
// only marked resolved once the queue is empty, which keeps the issue order
// intact across the handover.
func (f *sessionFuture) resolve(sess live.SessionHandle) {
	f.mu.Lock()
	for len(f.pending) > 0 {
		batch := f.pending
		f.pending = nil
		f.mu.Unlock()

		for _, op := range batch {
			switch op.kind {
			case opSend:
				if err := sess.Send(op.chunk); err != nil {
					slog.Warn("replay of queued send failed", "err", err)
				}
			case opClose:
				if err := sess.Close(); err != nil {
					slog.Warn("replay of queued close failed", "err", err)
				}
			}
		}

		f.mu.Lock()
	}
	f.sess = sess
	f.resolved = true
	f.mu.Unlock()
}

// fail marks the future failed and drops everything queued against it.
func (f *sessionFuture) fail(err error) {
	f.mu.Lock()
	dropped := len(f.pending)
	f.pending = nil
	f.failed = true
	f.mu.Unlock()

	if dropped > 0 {
		slog.Warn("dropping operations queued against failed session",
			"count", dropped,
			"err", err)
	}
}
