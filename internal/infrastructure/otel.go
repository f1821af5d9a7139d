package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"fundlens/pkg/contracts"
)

const (
	ServiceName = "fundlens"
	MeterName   = "fundlens"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    env,
		TraceExporter:  "stdout", // Use stdout for development
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0, // Sample all traces in development
	}
}

// InitializeOTel initializes OpenTelemetry with comprehensive observability
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
	}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	// Set up global propagators for trace context
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialization complete",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
	case "none":
		// No exporter - tracing disabled
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))

	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.Handler()

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

		otel.SetMeterProvider(mp)

	case "none":
		// No exporter - metrics disabled
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	// HTTP metrics
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	// Upload metrics
	uploadFilesReceived, err := meter.Int64Counter(
		"upload_files_received_total",
		metric.WithDescription("Total number of workbooks received for ingestion"),
	)
	if err != nil {
		return nil, err
	}

	uploadBytesReceived, err := meter.Int64Counter(
		"upload_bytes_received_total",
		metric.WithDescription("Total bytes of uploaded workbook data"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	uploadRejected, err := meter.Int64Counter(
		"upload_rejected_total",
		metric.WithDescription("Total number of uploads rejected by validation"),
	)
	if err != nil {
		return nil, err
	}

	// Ingest metrics
	ingestBatchesTotal, err := meter.Int64Counter(
		"ingest_batches_total",
		metric.WithDescription("Total number of ingest batches executed"),
	)
	if err != nil {
		return nil, err
	}

	ingestBatchDuration, err := meter.Float64Histogram(
		"ingest_batch_duration_seconds",
		metric.WithDescription("Ingest batch duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestFilesTotal, err := meter.Int64Counter(
		"ingest_files_total",
		metric.WithDescription("Total number of workbooks ingested, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	ingestFileDuration, err := meter.Float64Histogram(
		"ingest_file_duration_seconds",
		metric.WithDescription("Per-workbook extraction duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestActiveBatches, err := meter.Int64UpDownCounter(
		"ingest_active_batches",
		metric.WithDescription("Number of batches currently being ingested"),
	)
	if err != nil {
		return nil, err
	}

	ingestErrors, err := meter.Int64Counter(
		"ingest_errors_total",
		metric.WithDescription("Total number of ingest errors"),
	)
	if err != nil {
		return nil, err
	}

	ingestRowsTotal, err := meter.Int64Counter(
		"ingest_rows_total",
		metric.WithDescription("Total number of rows extracted from workbooks"),
	)
	if err != nil {
		return nil, err
	}

	// Analysis metrics
	analysisRequestsTotal, err := meter.Int64Counter(
		"analysis_requests_total",
		metric.WithDescription("Total number of analysis report requests"),
	)
	if err != nil {
		return nil, err
	}

	analysisDuration, err := meter.Float64Histogram(
		"analysis_duration_seconds",
		metric.WithDescription("Analysis report generation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	exportRequestsTotal, err := meter.Int64Counter(
		"export_requests_total",
		metric.WithDescription("Total number of export downloads, by format"),
	)
	if err != nil {
		return nil, err
	}

	// WebSocket metrics
	websocketConnections, err := meter.Int64UpDownCounter(
		"websocket_connections",
		metric.WithDescription("Number of connected WebSocket clients"),
	)
	if err != nil {
		return nil, err
	}

	// System metrics
	systemErrors, err := meter.Int64Counter(
		"system_errors_total",
		metric.WithDescription("Total number of system errors"),
	)
	if err != nil {
		return nil, err
	}

	systemUptime, err := meter.Float64UpDownCounter(
		"system_uptime_seconds",
		metric.WithDescription("System uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		HTTPActiveRequests:  httpActiveRequests,

		UploadFilesReceived: uploadFilesReceived,
		UploadBytesReceived: uploadBytesReceived,
		UploadRejected:      uploadRejected,

		IngestBatchesTotal:  ingestBatchesTotal,
		IngestBatchDuration: ingestBatchDuration,
		IngestFilesTotal:    ingestFilesTotal,
		IngestFileDuration:  ingestFileDuration,
		IngestActiveBatches: ingestActiveBatches,
		IngestErrors:        ingestErrors,
		IngestRowsTotal:     ingestRowsTotal,

		AnalysisRequestsTotal: analysisRequestsTotal,
		AnalysisDuration:      analysisDuration,
		ExportRequestsTotal:   exportRequestsTotal,

		WebSocketConnections: websocketConnections,

		SystemErrors: systemErrors,
		SystemUptime: systemUptime,
	}, nil
}

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Upload metrics
	UploadFilesReceived metric.Int64Counter
	UploadBytesReceived metric.Int64Counter
	UploadRejected      metric.Int64Counter

	// Ingest metrics
	IngestBatchesTotal  metric.Int64Counter
	IngestBatchDuration metric.Float64Histogram
	IngestFilesTotal    metric.Int64Counter
	IngestFileDuration  metric.Float64Histogram
	IngestActiveBatches metric.Int64UpDownCounter
	IngestErrors        metric.Int64Counter
	IngestRowsTotal     metric.Int64Counter

	// Analysis metrics
	AnalysisRequestsTotal metric.Int64Counter
	AnalysisDuration      metric.Float64Histogram
	ExportRequestsTotal   metric.Int64Counter

	// WebSocket metrics
	WebSocketConnections metric.Int64UpDownCounter

	// System metrics
	SystemErrors metric.Int64Counter
	SystemUptime metric.Float64UpDownCounter
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// SpanFromContext returns the current span from context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		case int64:
			span.SetAttributes(attribute.Int64(k, val))
		case float64:
			span.SetAttributes(attribute.Float64(k, val))
		case bool:
			span.SetAttributes(attribute.Bool(k, val))
		default:
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
}

// RecordBatchMetrics records metrics for a completed ingest batch
func RecordBatchMetrics(ctx context.Context, metrics *BusinessMetrics, batchID string, duration time.Duration, processedFiles, totalFiles int, success bool) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("batch.id", batchID),
	}

	metrics.IngestBatchesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}
	durationAttrs := append(attrs, statusAttr)
	metrics.IngestBatchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(durationAttrs...))

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("batch.metrics_recorded",
			trace.WithAttributes(
				attribute.String("batch.id", batchID),
				attribute.Int("processed_files", processedFiles),
				attribute.Int("total_files", totalFiles),
				attribute.Bool("success", success),
				attribute.Float64("duration_seconds", duration.Seconds()),
			),
		)
	}
}

// RecordFileMetrics records metrics for a single workbook extraction
func RecordFileMetrics(ctx context.Context, metrics *BusinessMetrics, batchID, status string, rows int64, duration time.Duration) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("batch.id", batchID),
		attribute.String("status", status),
	}

	metrics.IngestFilesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.IngestFileDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if rows > 0 {
		metrics.IngestRowsTotal.Add(ctx, rows, metric.WithAttributes(
			attribute.String("batch.id", batchID)))
	}
}

// RecordActiveBatchChange records changes in active batch count
func RecordActiveBatchChange(ctx context.Context, metrics *BusinessMetrics, delta int64) {
	if metrics == nil {
		return
	}

	metrics.IngestActiveBatches.Add(ctx, delta)
}

// RecordIngestError records an ingest error with its source
func RecordIngestError(ctx context.Context, metrics *BusinessMetrics, batchID string, err error) {
	if metrics == nil || err == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("batch.id", batchID),
		attribute.String("error.type", fmt.Sprintf("%T", err)),
	}

	metrics.IngestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
}
