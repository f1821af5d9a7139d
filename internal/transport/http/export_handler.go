package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fundlens/internal/config"
	apierrors "fundlens/internal/errors"
	"fundlens/internal/middleware"
	apiv1 "fundlens/pkg/contracts/api/v1"
	"fundlens/pkg/contracts/domain"
)

// ExportHandler streams consolidated dataset downloads.
type ExportHandler struct {
	service      AnalysisServiceInterface
	writer       DatasetWriter
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *middleware.ValidationMiddleware
}

// NewExportHandler creates a new export handler
func NewExportHandler(service AnalysisServiceInterface, writer DatasetWriter, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, validate *middleware.ValidationMiddleware) *ExportHandler {
	return &ExportHandler{
		service:      service,
		writer:       writer,
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
		validate:     validate,
	}
}

// Routes returns the export routes
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/csv", h.ExportCSV)
	r.Get("/xlsx", h.ExportXLSX)
	return r
}

// ExportCSV handles GET /api/export/csv
func (h *ExportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	dataset, ok := h.resolveDataset(w, r, "csv")
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", config.ExportCSVName))

	if err := h.writer.WriteCSVTo(r.Context(), w, dataset); err != nil {
		// Headers are already out; log instead of rewriting the response.
		h.logger.ErrorContext(r.Context(), "CSV download failed mid-stream",
			slog.String("error", err.Error()))
		return
	}
	middleware.RecordExportRequest(r.Context(), "csv")
}

// ExportXLSX handles GET /api/export/xlsx
func (h *ExportHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	dataset, ok := h.resolveDataset(w, r, "xlsx")
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", config.ExportXLSXName))

	if err := h.writer.WriteXLSXTo(r.Context(), w, dataset); err != nil {
		h.logger.ErrorContext(r.Context(), "XLSX download failed mid-stream",
			slog.String("error", err.Error()))
		return
	}
	middleware.RecordExportRequest(r.Context(), "xlsx")
}

// resolveDataset validates the download request and loads the dataset,
// writing the problem document itself on failure.
func (h *ExportHandler) resolveDataset(w http.ResponseWriter, r *http.Request, format string) (*domain.Dataset, bool) {
	req := apiv1.ExportRequest{
		Batch:  r.URL.Query().Get("batch"),
		Format: format,
	}
	if err := h.validate.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}

	ds, err := h.service.Dataset(r.Context(), req.Batch)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	return ds, true
}
