// Package observability holds the Prometheus metrics and the in-memory span
// tracer for the refine pipeline.
//
// Spans cover each paid request end to end (debit → debate → synthesize →
// persist → refund) so a failed refine can be inspected after the fact.
package observability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Trace Spans
// ═══════════════════════════════════════════════════════════════════════════

// Span represents one timed stage of a request.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer keeps the most recent spans in a ring buffer.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int // ring buffer size (default 1_000)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 1_000,
	}
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	if cfg.MaxSpans <= 0 {
		cfg.MaxSpans = DefaultTracerConfig().MaxSpans
	}
	return &Tracer{
		spans:    make([]Span, 0, cfg.MaxSpans),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
	}
}

// StartSpan begins a span. The caller must call EndSpan.
// A nil Tracer is valid and records nothing.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) *Span {
	if t == nil || !t.enabled {
		return &Span{Operation: operation}
	}
	return &Span{
		TraceID:   TraceIDFromContext(ctx),
		SpanID:    generateID(),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, err error) {
	if t == nil || !t.enabled || span == nil {
		return
	}

	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
		TraceErrors.Inc()
	}
	TracesRecorded.Inc()

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the most recent spans.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const traceIDKey contextKey = "focal-trace-id"

// WithTraceID returns a context carrying traceID. The API layer sets it to
// the chi request ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the trace ID in ctx, or a fresh one.
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok && v != "" {
		return v
	}
	return generateID()
}

var spanCounter atomic.Int64

func generateID() string {
	n := spanCounter.Add(1)
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), n)
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// LedgerDebits counts debit attempts by result (ok, insufficient, error).
var LedgerDebits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focal",
	Subsystem: "ledger",
	Name:      "debits_total",
	Help:      "Total debit attempts by result.",
}, []string{"result"})

// LedgerCredits counts credits by kind (initial, addition).
var LedgerCredits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focal",
	Subsystem: "ledger",
	Name:      "credits_total",
	Help:      "Total credit operations by transaction kind.",
}, []string{"kind"})

// LedgerRefunds counts refunds issued after a failed paid operation.
var LedgerRefunds = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focal",
	Subsystem: "ledger",
	Name:      "refunds_total",
	Help:      "Total refunds by the pipeline stage that failed.",
}, []string{"stage"})

// ─── Debate Metrics ─────────────────────────────────────────────────────────

// PersonaCalls counts persona generations by outcome (ok, fallback, error).
var PersonaCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focal",
	Subsystem: "debate",
	Name:      "persona_calls_total",
	Help:      "Total persona generations by outcome.",
}, []string{"persona", "outcome"})

// PersonaLatency tracks persona generation latency.
var PersonaLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "focal",
	Subsystem: "debate",
	Name:      "persona_latency_seconds",
	Help:      "Persona generation latency in seconds.",
	Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40, 60},
}, []string{"persona"})

// Fallbacks counts fallback substitutions by reason (rate_limited, timeout).
var Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focal",
	Subsystem: "debate",
	Name:      "fallbacks_total",
	Help:      "Total fallback texts substituted by reason.",
}, []string{"reason"})

// ─── Refine Metrics ─────────────────────────────────────────────────────────

// RefineRequests counts refine requests by outcome.
var RefineRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focal",
	Subsystem: "refine",
	Name:      "requests_total",
	Help:      "Total refine requests by outcome.",
}, []string{"outcome"})

// RefineDuration tracks end-to-end refine latency.
var RefineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "focal",
	Subsystem: "refine",
	Name:      "duration_seconds",
	Help:      "End-to-end refine latency in seconds.",
	Buckets:   []float64{1, 5, 10, 20, 40, 60, 120, 240},
})

// ─── Trace Metrics ──────────────────────────────────────────────────────────

// TracesRecorded tracks total spans recorded.
var TracesRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "focal",
	Subsystem: "traces",
	Name:      "spans_recorded_total",
	Help:      "Total trace spans recorded.",
})

// TraceErrors tracks error spans.
var TraceErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "focal",
	Subsystem: "traces",
	Name:      "error_spans_total",
	Help:      "Total trace spans with error status.",
})
