package voice

import (
	"encoding/json"
	"fmt"
)

// State is the lifecycle state of the voice session.
type State int

const (
	// StateUninitialized means no session has been started (or Reset wiped
	// the previous one).
	StateUninitialized State = iota

	// StateConnecting means the microphone is acquired and the provider
	// session is being established.
	StateConnecting

	// StateOpen means the duplex session is live.
	StateOpen

	// StateClosed means the session ended, either by Stop or because the
	// provider hung up.
	StateClosed

	// StateFailed means session establishment failed. Reset is the only way
	// out; there is no automatic reconnect.
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state as its string name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a state from its string name.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "uninitialized":
		*s = StateUninitialized
	case "connecting":
		*s = StateConnecting
	case "open":
		*s = StateOpen
	case "closed":
		*s = StateClosed
	case "failed":
		*s = StateFailed
	default:
		return fmt.Errorf("voice: unknown state %q", name)
	}
	return nil
}
