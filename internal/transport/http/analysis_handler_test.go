package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "fundlens/internal/errors"
	custommw "fundlens/internal/middleware"
	"fundlens/internal/services"
	"fundlens/pkg/contracts/domain"
)

type fakeAnalysisService struct {
	report  func(ctx context.Context, batchID string) (*domain.AnalysisReport, error)
	field   func(ctx context.Context, batchID, field string) (*domain.FieldDistribution, error)
	chart   func(ctx context.Context, batchID, field string) (*domain.ChartData, error)
	data    func(ctx context.Context, batchID string, limit, offset int) (*services.DataPage, error)
	headers func(ctx context.Context, batchID string) (*services.HeaderSummary, error)
	dataset func(ctx context.Context, batchID string) (*domain.Dataset, error)
}

func (f *fakeAnalysisService) Report(ctx context.Context, batchID string) (*domain.AnalysisReport, error) {
	return f.report(ctx, batchID)
}

func (f *fakeAnalysisService) FieldDistribution(ctx context.Context, batchID, field string) (*domain.FieldDistribution, error) {
	return f.field(ctx, batchID, field)
}

func (f *fakeAnalysisService) Chart(ctx context.Context, batchID, field string) (*domain.ChartData, error) {
	return f.chart(ctx, batchID, field)
}

func (f *fakeAnalysisService) Data(ctx context.Context, batchID string, limit, offset int) (*services.DataPage, error) {
	return f.data(ctx, batchID, limit, offset)
}

func (f *fakeAnalysisService) Headers(ctx context.Context, batchID string) (*services.HeaderSummary, error) {
	return f.headers(ctx, batchID)
}

func (f *fakeAnalysisService) Dataset(ctx context.Context, batchID string) (*domain.Dataset, error) {
	return f.dataset(ctx, batchID)
}

func newAnalysisHandler(svc AnalysisServiceInterface) *AnalysisHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return NewAnalysisHandler(svc, logger, errorHandler,
		custommw.NewValidationMiddleware(logger, errorHandler))
}

func TestAnalysisHandler_GetReport(t *testing.T) {
	var gotBatch string
	svc := &fakeAnalysisService{
		report: func(ctx context.Context, batchID string) (*domain.AnalysisReport, error) {
			gotBatch = batchID
			return &domain.AnalysisReport{
				BatchID:        testBatchID,
				GeneratedAt:    time.Now(),
				ProcessedFiles: 3,
				TotalRows:      120,
			}, nil
		},
	}
	handler := newAnalysisHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, gotBatch)

	envelope := decodeEnvelope(t, rec.Body)
	assert.Equal(t, "success", envelope["status"])
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, float64(120), data["total_rows"])
}

func TestAnalysisHandler_GetReport_BatchSelector(t *testing.T) {
	var gotBatch string
	svc := &fakeAnalysisService{
		report: func(ctx context.Context, batchID string) (*domain.AnalysisReport, error) {
			gotBatch = batchID
			return &domain.AnalysisReport{BatchID: batchID}, nil
		},
	}
	handler := newAnalysisHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/?batch="+testBatchID, nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testBatchID, gotBatch)
}

func TestAnalysisHandler_GetReport_InvalidBatchSelector(t *testing.T) {
	handler := newAnalysisHandler(&fakeAnalysisService{})

	req := httptest.NewRequest(http.MethodGet, "/?batch=abc123", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestAnalysisHandler_GetReport_NoBatches(t *testing.T) {
	svc := &fakeAnalysisService{
		report: func(ctx context.Context, batchID string) (*domain.AnalysisReport, error) {
			return nil, apierrors.NewNotFoundError("no completed batches")
		},
	}
	handler := newAnalysisHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/errors/not-found")
}

func TestAnalysisHandler_GetFieldDistribution(t *testing.T) {
	var gotField string
	svc := &fakeAnalysisService{
		field: func(ctx context.Context, batchID, field string) (*domain.FieldDistribution, error) {
			gotField = field
			return &domain.FieldDistribution{
				Field: "Domicile",
				Counts: []domain.ValueCount{
					{Value: "Luxembourg", Count: 12},
					{Value: "Ireland", Count: 5},
				},
				Total:  17,
				Unique: 2,
			}, nil
		},
	}
	handler := newAnalysisHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/fields/Domicile", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Domicile", gotField)

	envelope := decodeEnvelope(t, rec.Body)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, float64(17), data["total"])
}

func TestAnalysisHandler_FieldCtx_CaseInsensitive(t *testing.T) {
	called := false
	svc := &fakeAnalysisService{
		field: func(ctx context.Context, batchID, field string) (*domain.FieldDistribution, error) {
			called = true
			return &domain.FieldDistribution{Field: "Domicile"}, nil
		},
	}
	handler := newAnalysisHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/fields/domicile", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestAnalysisHandler_FieldCtx_UnknownField(t *testing.T) {
	handler := newAnalysisHandler(&fakeAnalysisService{})

	for _, path := range []string{
		"/fields/ticker",
		"/charts/" + url.PathEscape("Share Price"),
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
		assert.Contains(t, rec.Body.String(), "/errors/field/unknown", "path %s", path)
	}
}

func TestAnalysisHandler_GetChart(t *testing.T) {
	svc := &fakeAnalysisService{
		chart: func(ctx context.Context, batchID, field string) (*domain.ChartData, error) {
			return &domain.ChartData{
				Field:       "Domicile",
				Title:       "Domicile Distribution",
				Orientation: domain.ChartVertical,
				Labels:      []string{"Luxembourg", "Ireland"},
				Values:      []int{12, 5},
			}, nil
		},
	}
	handler := newAnalysisHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/charts/Domicile", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec.Body)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "vertical", data["orientation"])
}

func TestAnalysisHandler_GetData(t *testing.T) {
	var gotLimit, gotOffset int
	svc := &fakeAnalysisService{
		data: func(ctx context.Context, batchID string, limit, offset int) (*services.DataPage, error) {
			gotLimit, gotOffset = limit, offset
			return &services.DataPage{
				BatchID: testBatchID,
				Columns: []string{"Fund Name", "Domicile"},
				Total:   42,
				Limit:   limit,
				Offset:  offset,
			}, nil
		},
	}
	handler := newAnalysisHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/?limit=10&offset=30", nil)
	rec := httptest.NewRecorder()
	http.HandlerFunc(handler.GetData).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, 30, gotOffset)

	envelope := decodeEnvelope(t, rec.Body)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, float64(42), data["total"])
}

func TestAnalysisHandler_GetData_Defaults(t *testing.T) {
	var gotLimit, gotOffset int
	svc := &fakeAnalysisService{
		data: func(ctx context.Context, batchID string, limit, offset int) (*services.DataPage, error) {
			gotLimit, gotOffset = limit, offset
			return &services.DataPage{Limit: limit, Offset: offset}, nil
		},
	}
	handler := newAnalysisHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	http.HandlerFunc(handler.GetData).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)
	assert.Equal(t, 0, gotOffset)
}

func TestAnalysisHandler_GetData_LimitTooLarge(t *testing.T) {
	handler := newAnalysisHandler(&fakeAnalysisService{})

	req := httptest.NewRequest(http.MethodGet, "/?limit=5000", nil)
	rec := httptest.NewRecorder()
	http.HandlerFunc(handler.GetData).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at most 1000")
}

func TestAnalysisHandler_GetHeaders(t *testing.T) {
	svc := &fakeAnalysisService{
		headers: func(ctx context.Context, batchID string) (*services.HeaderSummary, error) {
			return &services.HeaderSummary{
				Registry:       []string{"Fund Name", "Domicile"},
				CanonicalFound: []string{"Fund Name"},
			}, nil
		},
	}
	handler := newAnalysisHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	http.HandlerFunc(handler.GetHeaders).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec.Body)
	data := envelope["data"].(map[string]interface{})
	registry := data["registry"].([]interface{})
	assert.Len(t, registry, 2)
}
