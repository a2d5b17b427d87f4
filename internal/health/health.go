// Package health answers the gateway's liveness and readiness probes.
//
// Liveness (/healthz) only proves the process can still serve HTTP.
// Readiness (/readyz) additionally consults the voice service's upstream
// dependencies, wired in as [Checker] values by cmd/naveo-voice: whether the
// live provider has credentials and whether the chat backend's circuit
// breaker is open. Both responses are JSON with a top-level "status" of "ok"
// or "fail" and a per-checker "checks" map.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness check. The stock checkers are
// in-process reads (breaker state, credential presence), so the budget is
// deliberately small; a checker that dials out still gets cut off before the
// kubelet gives up on the probe.
const probeTimeout = 2 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// can serve the voice pipeline and an error describing the failure otherwise.
type Checker struct {
	// Name keys the check in the JSON response ("live_provider",
	// "chat_backend").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// report is the JSON body of both probe responses.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. Safe for concurrent use; the checker
// list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request, sequentially and in the order provided.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200. A process that answers it is alive; a wedged
// voice session does not make the gateway unhealthy.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz returns 200 only when every registered checker passes, 503
// otherwise. The per-check outcomes are always included so an operator can
// see which dependency is failing.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep, ready := h.runChecks(r.Context())

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

// runChecks evaluates every checker under its own probe deadline.
func (h *Handler) runChecks(ctx context.Context) (report, bool) {
	checks := make(map[string]string, len(h.checkers))
	ready := true

	for _, c := range h.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := c.Check(checkCtx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	rep := report{Status: "ok", Checks: checks}
	if !ready {
		rep.Status = "fail"
	}
	return rep, ready
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
