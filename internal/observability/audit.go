package observability

import (
	"context"
	"time"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedAuditStore wraps an audit.Store implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedAuditStore struct {
	inner    audit.Store
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedAuditStore creates an audit store wrapper that records trace
// spans, operation latency histograms, and error counters for every store
// method call.
func NewInstrumentedAuditStore(inner audit.Store) (*InstrumentedAuditStore, error) {
	tracer := otel.Tracer("gatekeeper/audit")
	meter := otel.Meter("gatekeeper/audit")

	duration, err := meter.Float64Histogram(
		"audit.operation.duration",
		metric.WithDescription("Duration of audit store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"audit.operation.errors",
		metric.WithDescription("Number of audit store operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedAuditStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedAuditStore) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "audit."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("audit.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedAuditStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedAuditStore) Append(ctx context.Context, event models.SecurityEvent) error {
	ctx, span := s.startSpan(ctx, "Append",
		attribute.String("event", event.Event),
		attribute.String("severity", string(event.Severity)),
	)
	start := time.Now()
	err := s.inner.Append(ctx, event)
	s.record(ctx, span, "Append", start, err)
	return err
}

func (s *InstrumentedAuditStore) EventsByIP(ctx context.Context, ip string, limit int) ([]models.SecurityEvent, error) {
	ctx, span := s.startSpan(ctx, "EventsByIP",
		attribute.String("ip", ip),
		attribute.Int("limit", limit),
	)
	start := time.Now()
	result, err := s.inner.EventsByIP(ctx, ip, limit)
	s.record(ctx, span, "EventsByIP", start, err)
	return result, err
}

func (s *InstrumentedAuditStore) Recent(ctx context.Context, limit int) ([]models.SecurityEvent, error) {
	ctx, span := s.startSpan(ctx, "Recent", attribute.Int("limit", limit))
	start := time.Now()
	result, err := s.inner.Recent(ctx, limit)
	s.record(ctx, span, "Recent", start, err)
	return result, err
}

func (s *InstrumentedAuditStore) Stats(ctx context.Context) (audit.Stats, error) {
	ctx, span := s.startSpan(ctx, "Stats")
	start := time.Now()
	result, err := s.inner.Stats(ctx)
	s.record(ctx, span, "Stats", start, err)
	return result, err
}

func (s *InstrumentedAuditStore) Close() error {
	return s.inner.Close()
}
