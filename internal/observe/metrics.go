// Package observe provides application-wide observability primitives for
// the Naveo voice service: OpenTelemetry metrics, distributed tracing,
// structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/naveo-ai/naveo-voice"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Audio pipeline counters ---

	// FramesSent counts encoded microphone chunks handed to the session.
	FramesSent metric.Int64Counter

	// ChunksReceived counts synthesised audio chunks received from the model.
	ChunksReceived metric.Int64Counter

	// PlaybackScheduled counts frames enqueued onto the playback cursor.
	PlaybackScheduled metric.Int64Counter

	// Interrupts counts barge-in playback flushes.
	Interrupts metric.Int64Counter

	// DecodeDrops counts inbound chunks dropped because they failed to decode.
	DecodeDrops metric.Int64Counter

	// --- Session counters ---

	// StateChanges counts session state transitions. Use with attribute:
	//   attribute.String("state", ...)
	StateChanges metric.Int64Counter

	// ToolCalls counts model tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// ChatRequests counts calls to the chat backend. Use with attribute:
	//   attribute.String("status", ...)
	ChatRequests metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// PlaybackUnits tracks the number of live playback units.
	PlaybackUnits metric.Int64UpDownCounter

	// --- Latency histograms ---

	// ChatDuration tracks chat backend round-trip latency.
	ChatDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Pipeline counters.
	if met.FramesSent, err = m.Int64Counter("naveo.audio.frames_sent",
		metric.WithDescription("Total encoded microphone chunks sent to the session."),
	); err != nil {
		return nil, err
	}
	if met.ChunksReceived, err = m.Int64Counter("naveo.audio.chunks_received",
		metric.WithDescription("Total synthesised audio chunks received from the model."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackScheduled, err = m.Int64Counter("naveo.playback.scheduled",
		metric.WithDescription("Total frames enqueued for playback."),
	); err != nil {
		return nil, err
	}
	if met.Interrupts, err = m.Int64Counter("naveo.playback.interrupts",
		metric.WithDescription("Total barge-in playback flushes."),
	); err != nil {
		return nil, err
	}
	if met.DecodeDrops, err = m.Int64Counter("naveo.audio.decode_drops",
		metric.WithDescription("Total inbound chunks dropped due to decode failures."),
	); err != nil {
		return nil, err
	}

	// Session counters.
	if met.StateChanges, err = m.Int64Counter("naveo.session.state_changes",
		metric.WithDescription("Total session state transitions by target state."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("naveo.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ChatRequests, err = m.Int64Counter("naveo.chat.requests",
		metric.WithDescription("Total chat backend requests by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("naveo.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackUnits, err = m.Int64UpDownCounter("naveo.playback.units",
		metric.WithDescription("Number of live playback units."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.ChatDuration, err = m.Float64Histogram("naveo.chat.duration",
		metric.WithDescription("Chat backend round-trip latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("naveo.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStateChange records a session state transition.
func (m *Metrics) RecordStateChange(ctx context.Context, state string) {
	m.StateChanges.Add(ctx, 1,
		metric.WithAttributes(attribute.String("state", state)),
	)
}

// RecordToolCall records a tool call counter increment with the standard
// attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordChatRequest records a chat backend request and its latency.
func (m *Metrics) RecordChatRequest(ctx context.Context, status string, seconds float64) {
	m.ChatRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.ChatDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
