package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "kanban-api/api"

// aiRequestMetrics collects per-stage timings for one AI board request and
// emits them as a single structured log line plus an otel span on completion.
type aiRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	fetchDuration   time.Duration
	gatewayDuration time.Duration
	parseDuration   time.Duration
	persistDuration time.Duration

	summary    bool
	operations int
	rawSize    int
	errorStage string
}

func newAIRequestMetrics(ctx context.Context, logger *log.Logger) (*aiRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, "ai.board")
	m := &aiRequestMetrics{logger: logger, span: span, start: time.Now()}
	return m, spanCtx
}

func (m *aiRequestMetrics) ObserveFetch(d time.Duration)   { m.fetchDuration = clampDuration(d) }
func (m *aiRequestMetrics) ObserveGateway(d time.Duration) { m.gatewayDuration = clampDuration(d) }
func (m *aiRequestMetrics) ObserveParse(d time.Duration)   { m.parseDuration = clampDuration(d) }
func (m *aiRequestMetrics) ObservePersist(d time.Duration) { m.persistDuration = clampDuration(d) }

func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func (m *aiRequestMetrics) SetSummary(summary bool) {
	m.summary = summary
}

func (m *aiRequestMetrics) SetOperations(count int) {
	if count < 0 {
		count = 0
	}
	m.operations = count
}

func (m *aiRequestMetrics) SetRawSize(size int) {
	m.rawSize = size
}

func (m *aiRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log finalizes the span and writes the metrics line. Safe on a nil receiver.
func (m *aiRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	if m.span != nil {
		m.span.SetAttributes(
			attribute.String("route", "/api/ai/board"),
			attribute.Int("http.status", status),
			attribute.Bool("ai.summary", m.summary),
			attribute.Int("ai.operations", m.operations),
		)
		if m.errorStage != "" {
			m.span.SetAttributes(attribute.String("error.stage", m.errorStage))
		}
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":      "/api/ai/board",
		"status":     status,
		"total_ms":   durationToMillis(time.Since(m.start)),
		"summary":    m.summary,
		"operations": m.operations,
	}
	if m.fetchDuration > 0 {
		fields["fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.gatewayDuration > 0 {
		fields["gateway_ms"] = durationToMillis(m.gatewayDuration)
	}
	if m.parseDuration > 0 {
		fields["parse_ms"] = durationToMillis(m.parseDuration)
	}
	if m.persistDuration > 0 {
		fields["persist_ms"] = durationToMillis(m.persistDuration)
	}
	if m.rawSize > 0 {
		fields["raw_bytes"] = m.rawSize
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("ai.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
