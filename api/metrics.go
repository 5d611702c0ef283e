package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName       = "todo-api"
	todosEventName   = "todos.request.metrics"
	todosEventDomain = "todo-api"
)

// todoRequestMetrics collects per-request timings and outcome for one todo
// operation and emits them twice on Log: as attributes on an OpenTelemetry
// span and as a structured logrus entry carrying the trace id.
type todoRequestMetrics struct {
	logger         *log.Logger
	span           trace.Span
	route          string
	start          time.Time
	decodeDuration time.Duration
	storeDuration  time.Duration
	encodeDuration time.Duration
	todosReturned  int
	errorStage     string
}

func newTodoRequestMetrics(ctx context.Context, logger *log.Logger, route, spanName string) (*todoRequestMetrics, context.Context) {
	m := &todoRequestMetrics{
		logger: logger,
		route:  route,
		start:  time.Now(),
	}
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, spanName,
		trace.WithAttributes(attribute.String("http.route", route)))
	m.span = span
	return m, spanCtx
}

func (m *todoRequestMetrics) ObserveDecode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.decodeDuration = duration
}

func (m *todoRequestMetrics) ObserveStore(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.storeDuration = duration
}

func (m *todoRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *todoRequestMetrics) SetTodosReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.todosReturned = count
}

func (m *todoRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *todoRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("todo.request.total_ms", totalMs),
		attribute.Int("todo.request.todos_returned", m.todosReturned),
	}
	fields := log.Fields{
		"route":          m.route,
		"status":         status,
		"total_ms":       totalMs,
		"todos_returned": m.todosReturned,
	}

	if m.decodeDuration > 0 {
		ms := durationToMillis(m.decodeDuration)
		attrs = append(attrs, attribute.Float64("todo.request.decode_ms", ms))
		fields["decode_ms"] = ms
	}
	if m.storeDuration > 0 {
		ms := durationToMillis(m.storeDuration)
		attrs = append(attrs, attribute.Float64("todo.request.store_ms", ms))
		fields["store_ms"] = ms
	}
	if m.encodeDuration > 0 {
		ms := durationToMillis(m.encodeDuration)
		attrs = append(attrs, attribute.Float64("todo.request.encode_ms", ms))
		fields["encode_ms"] = ms
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("todo.request.error_stage", m.errorStage))
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		eventAttrs := append([]attribute.KeyValue{
			attribute.String("event.name", todosEventName),
			attribute.String("event.domain", todosEventDomain),
		}, attrs...)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		if err != nil || status >= http.StatusInternalServerError {
			m.span.SetStatus(codes.Error, m.errorStage)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		m.span.End()
	}

	m.logger.WithFields(fields).Info(todosEventName)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
