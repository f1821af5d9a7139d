package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"fundlens/internal/config"
	apierrors "fundlens/internal/errors"
	custommw "fundlens/internal/middleware"
	"fundlens/internal/services"
	apiv1 "fundlens/pkg/contracts/api/v1"
	"fundlens/pkg/contracts/domain"
)

// UploadHandler handles upload batch HTTP requests with RFC 7807 compliance
type UploadHandler struct {
	service      UploadServiceInterface
	cfg          config.UploadConfig
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *custommw.ValidationMiddleware
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(service UploadServiceInterface, cfg config.UploadConfig, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, validate *custommw.ValidationMiddleware) *UploadHandler {
	return &UploadHandler{
		service:      service,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "upload_handler")),
		errorHandler: errorHandler,
		validate:     validate,
	}
}

// Routes returns the upload routes
func (h *UploadHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.CreateBatch)
	r.Get("/", h.ListBatches)

	r.Route("/{batchID}", func(r chi.Router) {
		r.Use(h.BatchCtx)
		r.Get("/", h.GetBatch)
		r.Delete("/", h.DeleteBatch)
	})

	return r
}

// BatchCtx validates the batch ID path parameter as a UUID.
func (h *UploadHandler) BatchCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := apiv1.BatchDetailRequest{BatchID: chi.URLParam(r, "batchID")}
		if err := h.validate.ValidateStruct(req); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateBatch handles POST /api/uploads: a multipart request whose "files"
// parts are the workbooks to ingest. Responds 202 with the pending batch.
func (h *UploadHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	// Cap the whole request body before parsing; one oversized part must
	// not buffer unbounded.
	maxRequest := h.cfg.MaxFileSize * int64(h.cfg.MaxFilesPerBatch)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequest)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.logger.WarnContext(r.Context(), "multipart parse failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest,
			"INVALID_MULTIPART",
			"Request body is not a valid multipart upload",
		))
		return
	}
	defer r.MultipartForm.RemoveAll()

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("files", "No files in the upload; use multipart field 'files'"))
		return
	}

	parts := make([]services.UploadPart, 0, len(fileHeaders))
	opened := make([]interface{ Close() error }, 0, len(fileHeaders))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, fh := range fileHeaders {
		file, err := fh.Open()
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.FileSystemError("open upload part", err))
			return
		}
		opened = append(opened, file)
		parts = append(parts, services.UploadPart{
			Name:   fh.Filename,
			Size:   fh.Size,
			Reader: file,
		})
	}

	batch, err := h.service.CreateBatch(r.Context(), parts)
	if err != nil {
		h.logger.WarnContext(r.Context(), "batch creation failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "upload batch accepted",
		slog.String("batch_id", batch.ID),
		slog.String("job_id", batch.JobID),
		slog.Int("files", batch.ReceivedFiles),
		slog.String("request_id", reqID))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   batch,
	})
}

// ListBatches handles GET /api/uploads with optional state, limit, and
// offset query parameters.
func (h *UploadHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	req := apiv1.BatchListRequest{
		State:  r.URL.Query().Get("state"),
		Limit:  queryInt(r, "limit", 20),
		Offset: queryInt(r, "offset", 0),
	}
	if err := h.validate.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	batches, total, err := h.service.ListBatches(r.Context(), domain.BatchState(req.State), req.Offset, req.Limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   batches,
		"total":  total,
		"limit":  req.Limit,
		"offset": req.Offset,
	})
}

// GetBatch handles GET /api/uploads/{batchID}
func (h *UploadHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.service.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   batch,
	})
}

// DeleteBatch handles DELETE /api/uploads/{batchID}
func (h *UploadHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	if err := h.service.DeleteBatch(r.Context(), batchID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "batch deleted", slog.String("batch_id", batchID))
	w.WriteHeader(http.StatusNoContent)
}

// queryInt parses an integer query parameter, falling back to def on
// absence or garbage.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
