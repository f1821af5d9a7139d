package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundlens/internal/config"
	apierrors "fundlens/internal/errors"
	custommw "fundlens/internal/middleware"
	"fundlens/internal/services"
	"fundlens/pkg/contracts/domain"
)

const testBatchID = "7b6e71b5-4cb1-4c2f-9f0e-0a8c5a2d9f11"

type fakeUploadService struct {
	createBatch func(ctx context.Context, parts []services.UploadPart) (*domain.UploadBatch, error)
	getBatch    func(ctx context.Context, batchID string) (*domain.UploadBatch, error)
	listBatches func(ctx context.Context, state domain.BatchState, offset, limit int) ([]*domain.UploadBatch, int, error)
	deleteBatch func(ctx context.Context, batchID string) error
}

func (f *fakeUploadService) CreateBatch(ctx context.Context, parts []services.UploadPart) (*domain.UploadBatch, error) {
	return f.createBatch(ctx, parts)
}

func (f *fakeUploadService) GetBatch(ctx context.Context, batchID string) (*domain.UploadBatch, error) {
	return f.getBatch(ctx, batchID)
}

func (f *fakeUploadService) ListBatches(ctx context.Context, state domain.BatchState, offset, limit int) ([]*domain.UploadBatch, int, error) {
	return f.listBatches(ctx, state, offset, limit)
}

func (f *fakeUploadService) DeleteBatch(ctx context.Context, batchID string) error {
	return f.deleteBatch(ctx, batchID)
}

func newUploadHandler(svc UploadServiceInterface) *UploadHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return NewUploadHandler(svc, config.Default().Upload, logger, errorHandler,
		custommw.NewValidationMiddleware(logger, errorHandler))
}

// multipartBody builds a multipart request body with the given named files.
func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Bytes(), &envelope))
	return envelope
}

func TestUploadHandler_CreateBatch(t *testing.T) {
	var gotParts []services.UploadPart
	svc := &fakeUploadService{
		createBatch: func(ctx context.Context, parts []services.UploadPart) (*domain.UploadBatch, error) {
			gotParts = parts
			return &domain.UploadBatch{
				ID:            testBatchID,
				State:         domain.BatchStatePending,
				ReceivedFiles: len(parts),
				JobID:         "job-1",
				CreatedAt:     time.Now(),
			}, nil
		},
	}
	handler := newUploadHandler(svc)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"funds.xlsx": []byte("workbook bytes"),
		"more.xlsx":  []byte("other workbook"),
	})
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, gotParts, 2)

	envelope := decodeEnvelope(t, rec.Body)
	assert.Equal(t, "success", envelope["status"])
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, testBatchID, data["id"])
	assert.Equal(t, "job-1", data["job_id"])
}

func TestUploadHandler_CreateBatch_WrongField(t *testing.T) {
	handler := newUploadHandler(&fakeUploadService{})

	body, contentType := multipartBody(t, "attachments", map[string][]byte{
		"funds.xlsx": []byte("workbook bytes"),
	})
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestUploadHandler_CreateBatch_NotMultipart(t *testing.T) {
	handler := newUploadHandler(&fakeUploadService{})

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"files":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandler_CreateBatch_ValidationErrorFromService(t *testing.T) {
	svc := &fakeUploadService{
		createBatch: func(ctx context.Context, parts []services.UploadPart) (*domain.UploadBatch, error) {
			return nil, apierrors.NewAppValidationError("'funds.csv' has unsupported extension '.csv'")
		},
	}
	handler := newUploadHandler(svc)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"funds.csv": []byte("a,b"),
	})
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported extension")
}

func TestUploadHandler_GetBatch(t *testing.T) {
	svc := &fakeUploadService{
		getBatch: func(ctx context.Context, batchID string) (*domain.UploadBatch, error) {
			return &domain.UploadBatch{ID: batchID, State: domain.BatchStateCompleted}, nil
		},
	}
	handler := newUploadHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/"+testBatchID, nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec.Body)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, testBatchID, data["id"])
}

func TestUploadHandler_GetBatch_InvalidUUID(t *testing.T) {
	handler := newUploadHandler(&fakeUploadService{})

	req := httptest.NewRequest(http.MethodGet, "/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "UUID")
}

func TestUploadHandler_GetBatch_NotFound(t *testing.T) {
	svc := &fakeUploadService{
		getBatch: func(ctx context.Context, batchID string) (*domain.UploadBatch, error) {
			return nil, apierrors.NewNotFoundError("batch " + batchID)
		},
	}
	handler := newUploadHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/"+testBatchID, nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestUploadHandler_ListBatches(t *testing.T) {
	var gotState domain.BatchState
	var gotOffset, gotLimit int
	svc := &fakeUploadService{
		listBatches: func(ctx context.Context, state domain.BatchState, offset, limit int) ([]*domain.UploadBatch, int, error) {
			gotState, gotOffset, gotLimit = state, offset, limit
			return []*domain.UploadBatch{{ID: testBatchID}}, 7, nil
		},
	}
	handler := newUploadHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/?state=completed&limit=5&offset=2", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.BatchStateCompleted, gotState)
	assert.Equal(t, 2, gotOffset)
	assert.Equal(t, 5, gotLimit)

	envelope := decodeEnvelope(t, rec.Body)
	assert.Equal(t, float64(7), envelope["total"])
}

func TestUploadHandler_ListBatches_BadState(t *testing.T) {
	handler := newUploadHandler(&fakeUploadService{})

	req := httptest.NewRequest(http.MethodGet, "/?state=done", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending, processing, completed, failed")
}

func TestUploadHandler_ListBatches_LimitTooLarge(t *testing.T) {
	handler := newUploadHandler(&fakeUploadService{})

	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at most 100")
}

func TestUploadHandler_DeleteBatch(t *testing.T) {
	deleted := ""
	svc := &fakeUploadService{
		deleteBatch: func(ctx context.Context, batchID string) error {
			deleted = batchID
			return nil
		},
	}
	handler := newUploadHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/"+testBatchID, nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, testBatchID, deleted)
}
