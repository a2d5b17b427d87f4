// Package transcript accumulates speech-recognition deltas into a
// conversation log.
//
// The live session delivers transcription in small fragments: recognition
// deltas of the user's speech and text deltas of the assistant's spoken
// replies, interleaved in arrival order. The [Accumulator] keeps one growing
// utterance per speaker and folds both into durable log entries at each turn
// boundary. The log lives for the session; Reset discards everything.
package transcript

import (
	"strings"
	"sync"
)

// Speaker identifies one side of the conversation.
type Speaker string

const (
	// SpeakerYou is the user, as recognised by the provider.
	SpeakerYou Speaker = "You"

	// SpeakerAI is the assistant's spoken reply.
	SpeakerAI Speaker = "AI"
)

// Entry is one finalized utterance in the conversation log.
type Entry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Accumulator merges transcription deltas into per-speaker utterances and a
// session-lifetime log. Safe for concurrent use.
type Accumulator struct {
	mu  sync.Mutex
	you strings.Builder
	ai  strings.Builder
	log []Entry
}

// New creates an empty accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// AppendYou adds a recognition delta of the user's speech to the current
// utterance. Deltas are concatenated exactly as they arrive, no separator.
func (a *Accumulator) AppendYou(delta string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.you.WriteString(delta)
}

// AppendAI adds a text delta of the assistant's spoken reply to the current
// utterance.
func (a *Accumulator) AppendAI(delta string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ai.WriteString(delta)
}

// FinalizeTurn closes out the current turn: each utterance is trimmed of
// surrounding whitespace and, if anything remains, appended to the log —
// the user's entry first, then the assistant's. Both utterances are cleared
// regardless. Returns the entries appended by this call.
func (a *Accumulator) FinalizeTurn() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	var added []Entry
	if text := strings.TrimSpace(a.you.String()); text != "" {
		added = append(added, Entry{Speaker: SpeakerYou, Text: text})
	}
	if text := strings.TrimSpace(a.ai.String()); text != "" {
		added = append(added, Entry{Speaker: SpeakerAI, Text: text})
	}
	a.you.Reset()
	a.ai.Reset()
	a.log = append(a.log, added...)
	return added
}

// Partial returns the in-progress utterance text for both speakers.
func (a *Accumulator) Partial() (you, ai string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.you.String(), a.ai.String()
}

// Log returns a copy of the conversation log in finalization order.
func (a *Accumulator) Log() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.log))
	copy(out, a.log)
	return out
}

// Reset discards the log and both in-progress utterances.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.you.Reset()
	a.ai.Reset()
	a.log = nil
}
