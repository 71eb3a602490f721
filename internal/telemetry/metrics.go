package telemetry

import (
	"context"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "researchmind-backend"

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	StageDuration     metric.Float64Histogram
	StageFailures     metric.Int64Counter
	RunsCompleted     metric.Int64Counter
	PDFProcessingTime metric.Float64Histogram
	DocumentsIndexed  metric.Int64Counter
	IndexesEvicted    metric.Int64Counter
}

// InitMetrics initializes all application metrics against the global meter provider.
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(meterName))
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"pipeline.stage.duration",
		metric.WithDescription("Research pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stageFailures, err := meter.Int64Counter(
		"pipeline.stage.failures",
		metric.WithDescription("Research pipeline stage failures by error code"),
	)
	if err != nil {
		return nil, err
	}

	runsCompleted, err := meter.Int64Counter(
		"pipeline.runs.total",
		metric.WithDescription("Finished research runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	pdfProcessingTime, err := meter.Float64Histogram(
		"pdf.processing.duration",
		metric.WithDescription("PDF extraction, chunking and embedding duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsIndexed, err := meter.Int64Counter(
		"index.documents.added",
		metric.WithDescription("Documents added to user indexes"),
	)
	if err != nil {
		return nil, err
	}

	indexesEvicted, err := meter.Int64Counter(
		"index.evictions.total",
		metric.WithDescription("Idle user indexes evicted from memory"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		StageDuration:     stageDuration,
		StageFailures:     stageFailures,
		RunsCompleted:     runsCompleted,
		PDFProcessingTime: pdfProcessingTime,
		DocumentsIndexed:  documentsIndexed,
		IndexesEvicted:    indexesEvicted,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(ctx context.Context, method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
}

// ObserveStage records how long a pipeline stage ran and, on failure, why.
func (m *Metrics) ObserveStage(ctx context.Context, stage string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StageDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("pipeline.stage", stage),
		attribute.String("pipeline.status", status),
	))
	if err != nil {
		m.StageFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("pipeline.stage", stage),
			attribute.String("error.code", apperr.Code(err)),
		))
	}
}

// RecordRun counts a finished run. outcome is "complete" or an error code.
func (m *Metrics) RecordRun(ctx context.Context, outcome string, usedDocuments bool) {
	m.RunsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline.outcome", outcome),
		attribute.Bool("pipeline.used_documents", usedDocuments),
	))
}

// RecordPDFProcessing records PDF processing metrics
func (m *Metrics) RecordPDFProcessing(ctx context.Context, duration time.Duration, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("pdf.status", status),
		attribute.String("service", "chunker"),
	}

	m.PDFProcessingTime.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if status == "success" {
		m.DocumentsIndexed.Add(ctx, 1)
	}
}

// RecordEvictions counts idle index evictions from one sweep.
func (m *Metrics) RecordEvictions(ctx context.Context, n int) {
	if n > 0 {
		m.IndexesEvicted.Add(ctx, int64(n))
	}
}
