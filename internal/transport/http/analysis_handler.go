package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"fundlens/internal/config"
	"fundlens/internal/dataprocessing"
	apierrors "fundlens/internal/errors"
	"fundlens/internal/middleware"
	apiv1 "fundlens/pkg/contracts/api/v1"
)

// AnalysisHandler serves the analysis report, per-field distributions,
// chart series, consolidated data pages, and the header registry.
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *middleware.ValidationMiddleware
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, validate *middleware.ValidationMiddleware) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
		validate:     validate,
	}
}

// Routes returns the analysis routes
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetReport)

	r.Route("/fields/{field}", func(r chi.Router) {
		r.Use(h.FieldCtx)
		r.Get("/", h.GetFieldDistribution)
	})
	r.Route("/charts/{field}", func(r chi.Router) {
		r.Use(h.FieldCtx)
		r.Get("/", h.GetChart)
	})

	return r
}

// FieldCtx validates the field path parameter against the header registry.
// Unknown fields are 404s: the resource space is the registry itself.
func (h *AnalysisHandler) FieldCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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
		next.ServeHTTP(w, r)
	})
}

// batchSelector validates the optional ?batch= query parameter. Empty
// selects the latest completed batch; anything else must be a UUID.
func (h *AnalysisHandler) batchSelector(w http.ResponseWriter, r *http.Request) (string, bool) {
	req := apiv1.AnalysisRequest{Batch: r.URL.Query().Get("batch")}
	if err := h.validate.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return "", false
	}
	return req.Batch, true
}

// GetReport handles GET /api/analysis
func (h *AnalysisHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.batchSelector(w, r)
	if !ok {
		return
	}

	start := time.Now()
	report, err := h.service.Report(r.Context(), batchID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	middleware.RecordAnalysisRequest(r.Context(), "report", time.Since(start))

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   report,
	})
}

// GetFieldDistribution handles GET /api/analysis/fields/{field}
func (h *AnalysisHandler) GetFieldDistribution(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.batchSelector(w, r)
	if !ok {
		return
	}

	start := time.Now()
	dist, err := h.service.FieldDistribution(r.Context(), batchID, chi.URLParam(r, "field"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	middleware.RecordAnalysisRequest(r.Context(), "field_distribution", time.Since(start))

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   dist,
	})
}

// GetChart handles GET /api/analysis/charts/{field}
func (h *AnalysisHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.batchSelector(w, r)
	if !ok {
		return
	}

	chart, err := h.service.Chart(r.Context(), batchID, chi.URLParam(r, "field"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   chart,
	})
}

// GetData handles GET /api/data
func (h *AnalysisHandler) GetData(w http.ResponseWriter, r *http.Request) {
	req := apiv1.DataPreviewRequest{
		Batch:  r.URL.Query().Get("batch"),
		Limit:  queryInt(r, "limit", config.DefaultPreviewRows),
		Offset: queryInt(r, "offset", 0),
	}
	if err := h.validate.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	page, err := h.service.Data(r.Context(), req.Batch, req.Limit, req.Offset)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   page,
	})
}

// GetHeaders handles GET /api/headers
func (h *AnalysisHandler) GetHeaders(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.batchSelector(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Headers(r.Context(), batchID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}
