// Package live defines the Provider interface for duplex conversational
// voice backends.
//
// A live provider wraps a real-time voice AI service that accepts a
// continuous microphone stream and returns synthesised speech in a single,
// stateful session — no separate STT → LLM → TTS hop. The central abstraction
// is SessionHandle: audio goes up via Send, and everything coming back down
// (audio, transcripts, turn boundaries, barge-in signals, lifecycle) arrives
// as an ordered stream of Event values on one channel. Tool invocations are
// the exception: they are surfaced through a callback so the application can
// answer them asynchronously with SendToolResponse.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"

	"github.com/naveo-ai/naveo-voice/pkg/audio"
)

// EventKind discriminates the inbound event union.
type EventKind int

const (
	// KindOpened fires once when the provider acknowledges session setup.
	KindOpened EventKind = iota

	// KindAudio carries one encoded chunk of synthesised model speech.
	KindAudio

	// KindTranscriptIn carries a recognition delta of the user's speech.
	KindTranscriptIn

	// KindTranscriptOut carries a text delta of the model's spoken reply.
	KindTranscriptOut

	// KindTurnComplete marks the end of a model turn.
	KindTurnComplete

	// KindInterrupted signals that the model was cut off by user speech and
	// any buffered playback should be flushed.
	KindInterrupted

	// KindClosed is the final event of a session; Reason says why.
	KindClosed
)

// String returns the lowercase name of the kind, for logs and metrics.
func (k EventKind) String() string {
	switch k {
	case KindOpened:
		return "opened"
	case KindAudio:
		return "audio"
	case KindTranscriptIn:
		return "transcript_in"
	case KindTranscriptOut:
		return "transcript_out"
	case KindTurnComplete:
		return "turn_complete"
	case KindInterrupted:
		return "interrupted"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one inbound session event. Exactly the field matching Kind is
// meaningful: Audio for KindAudio, Text for the transcript kinds, Reason for
// KindClosed. Events for a single session are delivered in arrival order.
type Event struct {
	Kind   EventKind
	Audio  audio.EncodedChunk
	Text   string
	Reason string
}

// ToolCall is a function invocation requested by the model mid-session.
// Args is the JSON-encoded argument object.
type ToolCall struct {
	ID   string
	Name string
	Args string
}

// ToolCallHandler is invoked by the session whenever the model requests a
// tool call. It may be called from the session's internal receive goroutine,
// so it must not block; long-running work should be handed to another
// goroutine which answers later via SendToolResponse.
type ToolCallHandler func(call ToolCall)

// FunctionDeclaration describes one tool offered to the model at setup time.
// Parameters is a JSON-schema-shaped object, passed through verbatim.
type FunctionDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// SessionConfig is the initial configuration for a new live session.
type SessionConfig struct {
	// Voice selects the prebuilt voice for synthesised output. Empty means
	// provider default.
	Voice string

	// SystemInstruction is the system-level prompt defining the assistant's
	// persona and constraints.
	SystemInstruction string

	// Tools is the set of function declarations offered to the model.
	// Invocations arrive via the handler set with OnToolCall.
	Tools []FunctionDeclaration

	// InputTranscription requests recognition deltas of the user's speech
	// (KindTranscriptIn events).
	InputTranscription bool

	// OutputTranscription requests text deltas of the model's spoken replies
	// (KindTranscriptOut events).
	OutputTranscription bool
}

// SessionHandle represents an open duplex session. It is an interface so that
// test code can supply scriptable implementations without a network.
//
// The session is the hot path of the voice pipeline — every method must
// return quickly. Callers must drain Events promptly and call Close when the
// session is no longer needed.
type SessionHandle interface {
	// Send delivers one encoded microphone chunk to the provider. Returns an
	// error if the session is closed or the transport write fails; a failed
	// send does not poison the session, the next chunk is independent.
	Send(chunk audio.EncodedChunk) error

	// Events returns the ordered inbound event stream. The stream ends with
	// a KindClosed event and then the channel closes; check Err afterwards
	// for the cause. After the caller itself invokes Close, the terminal
	// event is delivered best effort only.
	Events() <-chan Event

	// Err returns the error that terminated the session, or nil if it ended
	// cleanly.
	Err() error

	// OnToolCall registers the tool invocation handler. Only one handler is
	// active at a time; nil clears it.
	OnToolCall(handler ToolCallHandler)

	// SendToolResponse answers a tool call previously surfaced via OnToolCall.
	SendToolResponse(id, name string, response map[string]any) error

	// Close terminates the session and closes the event channel. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any duplex voice backend.
type Provider interface {
	// Connect establishes a new session. The returned handle accepts audio
	// immediately; KindOpened arrives once the provider acknowledges setup.
	// The caller owns the handle and must call Close.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
}
