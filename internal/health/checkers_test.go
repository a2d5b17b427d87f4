package health

import (
	"context"
	"testing"

	"github.com/naveo-ai/naveo-voice/internal/resilience"
)

func TestChatBackendChecker(t *testing.T) {
	t.Parallel()

	state := resilience.StateClosed
	c := ChatBackendChecker(func() resilience.State { return state })

	if err := c.Check(context.Background()); err != nil {
		t.Errorf("closed breaker should be ready: %v", err)
	}

	state = resilience.StateOpen
	if err := c.Check(context.Background()); err == nil {
		t.Error("open breaker should fail readiness")
	}

	state = resilience.StateHalfOpen
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("half-open breaker should be ready (probing): %v", err)
	}
}

func TestLiveProviderChecker(t *testing.T) {
	t.Parallel()

	c := LiveProviderChecker(func() bool { return true })
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("configured provider should be ready: %v", err)
	}

	c = LiveProviderChecker(func() bool { return false })
	if err := c.Check(context.Background()); err == nil {
		t.Error("unconfigured provider should fail readiness")
	}
}
