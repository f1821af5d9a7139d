package http

import (
	"context"
	"io"

	"fundlens/internal/services"
	"fundlens/pkg/contracts/domain"
)

// UploadServiceInterface is the upload surface the handlers depend on.
// *services.UploadService satisfies it; tests inject mocks.
type UploadServiceInterface interface {
	CreateBatch(ctx context.Context, parts []services.UploadPart) (*domain.UploadBatch, error)
	GetBatch(ctx context.Context, batchID string) (*domain.UploadBatch, error)
	ListBatches(ctx context.Context, state domain.BatchState, offset, limit int) ([]*domain.UploadBatch, int, error)
	DeleteBatch(ctx context.Context, batchID string) error
}

// AnalysisServiceInterface is the read-side surface for analysis, data, and
// header endpoints.
type AnalysisServiceInterface interface {
	Report(ctx context.Context, batchID string) (*domain.AnalysisReport, error)
	FieldDistribution(ctx context.Context, batchID, field string) (*domain.FieldDistribution, error)
	Chart(ctx context.Context, batchID, field string) (*domain.ChartData, error)
	Data(ctx context.Context, batchID string, limit, offset int) (*services.DataPage, error)
	Headers(ctx context.Context, batchID string) (*services.HeaderSummary, error)
	Dataset(ctx context.Context, batchID string) (*domain.Dataset, error)
}

// DatasetWriter streams a consolidated dataset in a download format.
// *exporter.DatasetExporter satisfies it.
type DatasetWriter interface {
	WriteCSVTo(ctx context.Context, w io.Writer, dataset *domain.Dataset) error
	WriteXLSXTo(ctx context.Context, w io.Writer, dataset *domain.Dataset) error
}

// ChartRenderer renders a chart series as a standalone HTML page.
// *charts.Renderer satisfies it.
type ChartRenderer interface {
	RenderChart(ctx context.Context, w io.Writer, data *domain.ChartData) error
}
