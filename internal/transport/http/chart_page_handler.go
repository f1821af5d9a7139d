package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fundlens/internal/dataprocessing"
	apierrors "fundlens/internal/errors"
	"fundlens/internal/middleware"
	apiv1 "fundlens/pkg/contracts/api/v1"
)

// ChartPageHandler renders standalone chart HTML pages for one field.
type ChartPageHandler struct {
	service      AnalysisServiceInterface
	renderer     ChartRenderer
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *middleware.ValidationMiddleware
}

// NewChartPageHandler creates a new chart page handler
func NewChartPageHandler(service AnalysisServiceInterface, renderer ChartRenderer, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, validate *middleware.ValidationMiddleware) *ChartPageHandler {
	return &ChartPageHandler{
		service:      service,
		renderer:     renderer,
		logger:       logger.With(slog.String("component", "chart_page_handler")),
		errorHandler: errorHandler,
		validate:     validate,
	}
}

// ServeChart handles GET /charts/{field}: an HTML page with the bar chart
// for the latest (or selected) batch.
func (h *ChartPageHandler) ServeChart(w http.ResponseWriter, r *http.Request) {
	req := apiv1.FieldRequest{
		Batch: r.URL.Query().Get("batch"),
		Field: chi.URLParam(r, "field"),
	}
	if err := h.validate.ValidateStruct(req); err != nil {
		if _, ok := dataprocessing.MatchHeader(req.Field); !ok {
			h.errorHandler.HandleError(w, r, apierrors.UnknownFieldError(req.Field))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	chart, err := h.service.Chart(r.Context(), req.Batch, req.Field)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.RenderChart(r.Context(), w, chart); err != nil {
		h.logger.ErrorContext(r.Context(), "chart page render failed",
			slog.String("field", req.Field),
			slog.String("error", err.Error()))
	}
}
