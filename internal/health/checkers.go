package health

import (
	"context"
	"errors"

	"github.com/naveo-ai/naveo-voice/internal/resilience"
)

// ChatBackendChecker reports ready while the chat client's circuit breaker is
// not open. An open breaker means the backend has been failing and voice tool
// calls cannot complete.
func ChatBackendChecker(state func() resilience.State) Checker {
	return Checker{
		Name: "chat_backend",
		Check: func(ctx context.Context) error {
			if state() == resilience.StateOpen {
				return errors.New("circuit breaker open")
			}
			return nil
		},
	}
}

// LiveProviderChecker reports ready when the live voice provider is
// configured with credentials. It does not dial the provider; a session is
// only established when the user starts a conversation.
func LiveProviderChecker(configured func() bool) Checker {
	return Checker{
		Name: "live_provider",
		Check: func(ctx context.Context) error {
			if !configured() {
				return errors.New("no API key configured")
			}
			return nil
		},
	}
}
