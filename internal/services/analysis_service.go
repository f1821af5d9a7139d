package services

import (
	"context"
	"fmt"
	"log/slog"

	"fundlens/internal/config"
	"fundlens/internal/dataprocessing"
	"fundlens/internal/errors"
	"fundlens/pkg/contracts/domain"
)

// HeaderSummary describes the registry and what the selected batch matched.
type HeaderSummary struct {
	BatchID        string   `json:"batch_id,omitempty"`
	Registry       []string `json:"registry"`
	FoundHeaders   []string `json:"found_headers,omitempty"`
	CanonicalFound []string `json:"canonical_found,omitempty"`
}

// DataPage is one window of the consolidated table.
type DataPage struct {
	BatchID string          `json:"batch_id"`
	Columns []string        `json:"columns"`
	Records []domain.Record `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// AnalysisService serves reports, distributions, charts, and data previews
// from completed batches.
type AnalysisService struct {
	store    *BatchStore
	analyzer *dataprocessing.Analyzer
	logger   *slog.Logger
}

// NewAnalysisService creates the analysis read side over the batch store.
func NewAnalysisService(store *BatchStore, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		store:    store,
		analyzer: dataprocessing.NewAnalyzer(logger),
		logger:   logger.With(slog.String("component", "analysis_service")),
	}
}

// resolveBatch maps an optional batch selector to a concrete completed
// batch ID. An empty selector means the most recent completed batch.
func (s *AnalysisService) resolveBatch(batchID string) (string, error) {
	if batchID != "" {
		if _, ok := s.store.GetBatch(batchID); !ok {
			return "", errors.NewNotFoundError("batch " + batchID)
		}
		return batchID, nil
	}

	latest, ok := s.store.LatestCompleted()
	if !ok {
		return "", errors.NewNotFoundError("completed batch")
	}
	return latest.ID, nil
}

// Report returns the analysis report for the selected batch.
func (s *AnalysisService) Report(ctx context.Context, batchID string) (*domain.AnalysisReport, error) {
	id, err := s.resolveBatch(batchID)
	if err != nil {
		return nil, err
	}

	report, ok := s.store.Report(id)
	if !ok {
		return nil, errors.NewNotFoundError("analysis report for batch " + id)
	}
	return report, nil
}

// FieldDistribution returns one registry field's value counts. Fields the
// report analyzed come back from the stored section; any other registry
// column is counted on demand from the dataset.
func (s *AnalysisService) FieldDistribution(ctx context.Context, batchID, field string) (*domain.FieldDistribution, error) {
	canonical, ok := dataprocessing.MatchHeader(field)
	if !ok {
		return nil, errors.NewNotFoundError("field " + field)
	}

	id, err := s.resolveBatch(batchID)
	if err != nil {
		return nil, err
	}

	if report, ok := s.store.Report(id); ok {
		if section := report.Section(canonical); section != nil {
			if !section.Present {
				return nil, errors.NewNotFoundError(fmt.Sprintf("column %q in batch %s", canonical, id))
			}
			return section.Distribution, nil
		}
	}

	dataset, ok := s.store.Dataset(id)
	if !ok {
		return nil, errors.NewNotFoundError("consolidated data for batch " + id)
	}
	dist := s.analyzer.FieldDistribution(dataset, canonical)
	if dist == nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("column %q in batch %s", canonical, id))
	}
	return dist, nil
}

// Chart returns the bar chart series for one registry field. Fields the
// report charted keep their stored orientation; anything else renders as a
// vertical bar chart of its on-demand distribution.
func (s *AnalysisService) Chart(ctx context.Context, batchID, field string) (*domain.ChartData, error) {
	canonical, ok := dataprocessing.MatchHeader(field)
	if !ok {
		return nil, errors.NewNotFoundError("field " + field)
	}

	id, err := s.resolveBatch(batchID)
	if err != nil {
		return nil, err
	}

	if report, ok := s.store.Report(id); ok {
		if section := report.Section(canonical); section != nil && section.Chart != nil {
			return section.Chart, nil
		}
	}

	dist, err := s.FieldDistribution(ctx, id, canonical)
	if err != nil {
		return nil, err
	}
	return dataprocessing.BuildChart(canonical, dist, domain.ChartVertical), nil
}

// Data returns a window of the consolidated table. limit <= 0 falls back to
// the preview size.
func (s *AnalysisService) Data(ctx context.Context, batchID string, limit, offset int) (*DataPage, error) {
	id, err := s.resolveBatch(batchID)
	if err != nil {
		return nil, err
	}

	dataset, ok := s.store.Dataset(id)
	if !ok {
		return nil, errors.NewNotFoundError("consolidated data for batch " + id)
	}

	if limit <= 0 {
		limit = config.DefaultPreviewRows
	}
	if offset < 0 {
		offset = 0
	}

	total := dataset.RowCount()
	records := []domain.Record{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		records = dataset.Records[offset:end]
	}

	return &DataPage{
		BatchID: id,
		Columns: dataset.Columns,
		Records: records,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// Headers returns the registry plus the headers matched across the selected
// batch's files. Without any completed batch the summary still carries the
// registry, so the frontend can always show what FundLens looks for.
func (s *AnalysisService) Headers(ctx context.Context, batchID string) (*HeaderSummary, error) {
	summary := &HeaderSummary{Registry: dataprocessing.CanonicalHeaders()}

	id, err := s.resolveBatch(batchID)
	if err != nil {
		if batchID == "" {
			return summary, nil
		}
		return nil, err
	}

	summary.BatchID = id
	if report, ok := s.store.Report(id); ok {
		summary.FoundHeaders = report.FoundHeaders
		summary.CanonicalFound = report.CanonicalFound
	}
	return summary, nil
}

// Dataset returns the consolidated dataset for export.
func (s *AnalysisService) Dataset(ctx context.Context, batchID string) (*domain.Dataset, error) {
	id, err := s.resolveBatch(batchID)
	if err != nil {
		return nil, err
	}

	dataset, ok := s.store.Dataset(id)
	if !ok || dataset.Empty() {
		return nil, errors.NewNotFoundError("consolidated data for batch " + id)
	}
	return dataset, nil
}
