// Package mock provides scriptable in-memory implementations of the
// [live.Provider] and [live.SessionHandle] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. The test drives the session from the
// outside: [Session.Emit] injects inbound events, [Session.InvokeTool] fires
// the registered tool handler, and the recorded Sent/Responses slices let the
// test assert on outbound traffic.
//
// Typical usage:
//
//	p := mock.NewProvider()
//	// ... hand p to the code under test, let it Connect ...
//	sess := p.WaitSession(t)
//	sess.Emit(live.Event{Kind: live.KindOpened})
package mock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/naveo-ai/naveo-voice/pkg/audio"
	"github.com/naveo-ai/naveo-voice/pkg/provider/live"
)

// ─── Provider ─────────────────────────────────────────────────────────────────

// Provider is a scriptable implementation of [live.Provider]. Every Connect
// creates a fresh [Session], recorded in order.
type Provider struct {
	mu sync.Mutex

	// ConnectError is returned by Connect instead of a session.
	ConnectError error

	// Gate, when non-nil, makes Connect block until the test sends on it (or
	// the dial context is cancelled). Used to hold a session in the
	// connecting phase while the test queues operations against it.
	Gate chan struct{}

	// Configs records the SessionConfig of every Connect call, in order.
	Configs []live.SessionConfig

	sessions chan *Session
}

// NewProvider creates a provider whose sessions can be collected with
// [Provider.WaitSession].
func NewProvider() *Provider {
	return &Provider{sessions: make(chan *Session, 8)}
}

// Connect implements [live.Provider].
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	p.mu.Lock()
	gate := p.Gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Configs = append(p.Configs, cfg)
	if p.ConnectError != nil {
		return nil, p.ConnectError
	}
	sess := NewSession()
	p.sessions <- sess
	return sess, nil
}

// Release unblocks one gated Connect call.
func (p *Provider) Release() {
	p.mu.Lock()
	gate := p.Gate
	p.mu.Unlock()
	gate <- struct{}{}
}

// WaitSession returns the next session created by Connect, failing the test
// after a timeout.
func (p *Provider) WaitSession(t *testing.T) *Session {
	t.Helper()
	select {
	case sess := <-p.sessions:
		return sess
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for mock session")
		return nil
	}
}

// ─── Session ──────────────────────────────────────────────────────────────────

// ToolResponse records one SendToolResponse call.
type ToolResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Session is a scriptable implementation of [live.SessionHandle].
type Session struct {
	mu sync.Mutex

	// SendError is returned by [Session.Send].
	SendError error

	// CallCountClose records how many times Close was called.
	CallCountClose int

	sent      []audio.EncodedChunk
	responses []ToolResponse
	handler   live.ToolCallHandler
	events    chan live.Event
	errVal    error
	closed    bool
	closeOnce sync.Once
}

// NewSession creates an open session with a buffered event channel.
func NewSession() *Session {
	return &Session{events: make(chan live.Event, 64)}
}

// Send implements [live.SessionHandle]. Records the chunk.
func (s *Session) Send(chunk audio.EncodedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mock: session closed")
	}
	if s.SendError != nil {
		return s.SendError
	}
	s.sent = append(s.sent, chunk)
	return nil
}

// Events implements [live.SessionHandle].
func (s *Session) Events() <-chan live.Event { return s.events }

// Err implements [live.SessionHandle]. Returns the value set with SetErr.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// OnToolCall implements [live.SessionHandle].
func (s *Session) OnToolCall(handler live.ToolCallHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// SendToolResponse implements [live.SessionHandle]. Records the response.
func (s *Session) SendToolResponse(id, name string, response map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mock: session closed")
	}
	s.responses = append(s.responses, ToolResponse{ID: id, Name: name, Response: response})
	return nil
}

// Close implements [live.SessionHandle]. Closes the event channel exactly once.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CallCountClose++
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

// Emit injects an inbound event as if the provider sent it. Must not be
// called after Close.
func (s *Session) Emit(ev live.Event) {
	s.events <- ev
}

// InvokeTool fires the registered tool handler with the given call. Returns
// false when no handler is registered.
func (s *Session) InvokeTool(call live.ToolCall) bool {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(call)
	return true
}

// SetErr sets the value returned by Err.
func (s *Session) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errVal = err
}

// Sent returns a copy of every chunk passed to Send, in order.
func (s *Session) Sent() []audio.EncodedChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.EncodedChunk, len(s.sent))
	copy(out, s.sent)
	return out
}

// Responses returns a copy of every recorded tool response, in order.
func (s *Session) Responses() []ToolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolResponse, len(s.responses))
	copy(out, s.responses)
	return out
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var (
	_ live.Provider      = (*Provider)(nil)
	_ live.SessionHandle = (*Session)(nil)
)
