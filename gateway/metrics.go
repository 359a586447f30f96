package gateway

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "taskboard/gateway"
	requestSpanName    = "gateway.request"
	requestEventName   = "gateway.request"
	requestEventDomain = "taskboard.gateway"
	observabilityEvent = "observability.event"
)

type requestMetrics struct {
	logger        *log.Logger
	span          trace.Span
	start         time.Time
	op            string
	method        string
	route         string
	requestID     string
	responseBytes int
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, op, method, route string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, requestSpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.String("taskboard.gateway.op", op),
		),
	)
	return &requestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		op:     op,
		method: method,
		route:  route,
	}, ctx
}

func (m *requestMetrics) SetRequestID(id string) {
	m.requestID = id
}

func (m *requestMetrics) SetResponseBytes(n int) {
	if n < 0 {
		n = 0
	}
	m.responseBytes = n
}

// Log closes the span and emits one structured event describing the request.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	severityText, severityNumber := severityForStatus(status, err)
	total := durationToMillis(time.Since(m.start))

	attrs := map[string]any{
		"http.method":                   m.method,
		"http.route":                    m.route,
		"http.status_code":              status,
		"taskboard.gateway.op":          m.op,
		"taskboard.gateway.total_ms":    total,
		"taskboard.gateway.response_kb": float64(m.responseBytes) / 1024,
	}
	kvs := []attribute.KeyValue{
		attribute.String("event.name", requestEventName),
		attribute.String("event.domain", requestEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
		attribute.Float64("taskboard.gateway.total_ms", total),
	}
	if m.requestID != "" {
		attrs["http.request_id"] = m.requestID
		kvs = append(kvs, attribute.String("http.request_id", m.requestID))
	}
	if err != nil {
		attrs["error.message"] = err.Error()
		kvs = append(kvs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		m.span.SetAttributes(attribute.Int("http.status_code", status))
		if err != nil {
			m.span.SetStatus(codes.Error, err.Error())
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.AddEvent(observabilityEvent, trace.WithAttributes(kvs...))
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      attrs,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error(observabilityEvent)
	case "WARN":
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	case err != nil:
		return "ERROR", 17
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
