package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"fundlens/internal/config"
	apierrors "fundlens/internal/errors"
	"fundlens/internal/exporter"
	"fundlens/internal/files"
	"fundlens/internal/infrastructure"
	"fundlens/internal/jobs"
	customMiddleware "fundlens/internal/middleware"
	"fundlens/internal/services"
	handlers "fundlens/internal/transport/http"
	ws "fundlens/internal/websocket"
	"fundlens/pkg/contracts"

	fundcharts "fundlens/internal/charts"
)

const (
	// VERSION mirrors the contracts package so startup logs and the
	// version endpoint report the same number.
	VERSION = contracts.Version
	AppName = config.AppName
)

// IngestQueueWorkers is the number of batches ingested concurrently.
// Per-batch file parsing has its own worker pool (Upload.ParseWorkers).
const IngestQueueWorkers = 2

// Application is the main dependency container: configuration, services,
// transport, and observability, wired once at startup.
type Application struct {
	Config *config.Config
	Paths  *config.Paths
	Router *chi.Mux
	Server *http.Server

	WebSocketHub    *ws.Hub
	JobQueue        *jobs.Queue
	BatchStore      *services.BatchStore
	Staging         *files.Staging
	UploadService   *services.UploadService
	AnalysisService *services.AnalysisService
	HealthService   *services.HealthService

	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	FrontendFS    fs.FS

	otelMW      *customMiddleware.OTelMiddleware
	sysMetrics  *infrastructure.SystemMetricsCollector
	queueCancel context.CancelFunc
}

// systemMetricsInterval is how often runtime gauges are sampled.
const systemMetricsInterval = 30 * time.Second

// NewApplication loads configuration and wires the full application.
// frontendFS may be nil; the API still serves without the embedded UI.
func NewApplication(frontendFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION))

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution()

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		FrontendFS:    frontendFS,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}

	app.createServer()

	return app, nil
}

// initializeServices builds the service layer: hub, job queue, batch store,
// staging, and the upload/analysis/health services on top of them.
func (a *Application) initializeServices() error {
	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	// The OTel middleware owns the business metric instruments; services
	// record against the same set.
	otelMW, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}
	a.otelMW = otelMW
	metrics := otelMW.Metrics()
	a.Metrics = metrics

	// Runtime gauges feed both the Prometheus endpoint and the detailed
	// health view. A disabled meter just skips the collector.
	if a.OTelProviders.Meter != nil {
		collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, systemMetricsInterval)
		if err != nil {
			return fmt.Errorf("failed to create system metrics collector: %w", err)
		}
		a.sysMetrics = collector
	}

	a.JobQueue = jobs.NewQueue(IngestQueueWorkers, jobs.NewMemoryStore(), a.Logger)
	a.BatchStore = services.NewBatchStore(a.Config.Upload.RetainBatches)
	a.Staging = files.NewStaging(a.Paths)

	a.UploadService = services.NewUploadService(
		a.Config,
		a.BatchStore,
		a.Staging,
		a.JobQueue,
		hub,
		metrics,
		a.Logger,
	)
	a.AnalysisService = services.NewAnalysisService(a.BatchStore, a.Logger)
	a.HealthService = services.NewHealthService(a.Config.Paths, hub, a.JobQueue, a.BatchStore, a.sysMetrics, a.Logger)

	queueCtx, cancel := context.WithCancel(context.Background())
	a.queueCancel = cancel
	a.JobQueue.Start(queueCtx)
	if a.sysMetrics != nil {
		go a.sysMetrics.Start(queueCtx)
	}

	return nil
}

// setupRouter configures the HTTP router with all routes and middleware.
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	// Minimal middleware that is safe for WebSocket upgrades: nothing here
	// wraps the ResponseWriter.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket route stays outside the full middleware stack.
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", a.handleWebSocket)

	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	errorMW := apierrors.NewErrorMiddleware(errorHandler, a.Logger)
	validate := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)

	uploadHandler := handlers.NewUploadHandler(a.UploadService, a.Config.Upload, a.Logger, errorHandler, validate)
	analysisHandler := handlers.NewAnalysisHandler(a.AnalysisService, a.Logger, errorHandler, validate)
	datasetWriter := exporter.NewDatasetExporter(a.Paths, a.Logger)
	exportHandler := handlers.NewExportHandler(a.AnalysisService, datasetWriter, a.Logger, errorHandler, validate)
	chartRenderer := fundcharts.NewRenderer(a.Logger)
	chartPageHandler := handlers.NewChartPageHandler(a.AnalysisService, chartRenderer, a.Logger, errorHandler, validate)
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)

	r.Group(func(r chi.Router) {
		r.Use(a.otelMW.Handler)
		r.Use(customMiddleware.BusinessMetricsMiddleware(a.Metrics))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.corsConfig()))
		r.Use(customMiddleware.Compress(5))

		r.Route("/api", func(r chi.Router) {
			// Error-aware access logging plus panic recovery. Failed
			// requests log the captured JSON body.
			r.Use(errorMW.Handler)
			r.Use(render.SetContentType(render.ContentTypeJSON))

			if a.Config.Security.RateLimit.Enabled {
				r.Use(customMiddleware.NewRateLimiter(
					a.Config.Security.RateLimit.RPS,
					a.Config.Security.RateLimit.Burst,
					a.Logger,
				).Handler)
			}

			// Uploads get the long ingest timeout; large batches stream in
			// slowly over residential links.
			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.Timeout(a.Config.Server.IngestTimeout, a.Logger))
				r.Mount("/uploads", uploadHandler.Routes())
			})

			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

				r.Mount("/analysis", analysisHandler.Routes())
				r.Get("/data", analysisHandler.GetData)
				r.Get("/headers", analysisHandler.GetHeaders)
				r.Mount("/export", exportHandler.Routes())

				r.Get("/health", healthHandler.HealthCheck)
				r.Get("/health/ready", healthHandler.ReadinessCheck)
				r.Get("/health/live", healthHandler.LivenessCheck)
				r.Get("/health/detailed", healthHandler.DetailedHealth)
				r.Get("/version", healthHandler.Version)

				r.Post("/client-logs", handlers.NewClientLogHandler(a.Logger).Handle)
			})
		})

		// Chart pages and the SPA keep the plain request logger; panics
		// still answer with problem JSON.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.StructuredLogger(a.Logger))
			r.Use(apierrors.RecoveryMiddleware(errorHandler))

			// Standalone HTML chart pages.
			r.Get("/charts/{field}", chartPageHandler.ServeChart)

			// Embedded frontend, SPA-style: exact file, else index.html.
			if a.FrontendFS != nil {
				r.Get("/*", a.serveFrontend())
			}
		})
	})

	// Prometheus scrape endpoint, outside the middleware group.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
	return nil
}

// serveFrontend serves the embedded UI. Exact files are served with their
// MIME type; everything else falls back to index.html for client routing.
func (a *Application) serveFrontend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		urlPath := path.Clean(r.URL.Path)

		if urlPath != "/" {
			name := strings.TrimPrefix(urlPath, "/")
			if file, err := a.FrontendFS.Open(name); err == nil {
				defer file.Close()
				if stat, statErr := file.Stat(); statErr == nil && !stat.IsDir() {
					setContentTypeByExt(w, name)
					w.Header().Set("X-Content-Type-Options", "nosniff")
					io.Copy(w, file)
					return
				}
			}
		}

		index, err := a.FrontendFS.Open("index.html")
		if err != nil {
			a.Logger.ErrorContext(r.Context(), "frontend index.html missing",
				slog.String("error", err.Error()))
			http.Error(w, "Frontend not available", http.StatusServiceUnavailable)
			return
		}
		defer index.Close()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		io.Copy(w, index)
	}
}

// setContentTypeByExt sets the Content-Type header based on file extension.
// Embedded filesystems don't go through the stdlib's sniffing path reliably.
func setContentTypeByExt(w http.ResponseWriter, name string) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case ".js":
		w.Header().Set("Content-Type", "application/javascript")
	case ".css":
		w.Header().Set("Content-Type", "text/css")
	case ".json":
		w.Header().Set("Content-Type", "application/json")
	case ".svg":
		w.Header().Set("Content-Type", "image/svg+xml")
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".ico":
		w.Header().Set("Content-Type", "image/x-icon")
	case ".txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
}

// corsConfig builds the CORS policy from the security configuration.
func (a *Application) corsConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	origins := []string{
		fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
		fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
	}
	if a.Config.Logging.Development {
		// Frontend dev server runs separately in development.
		origins = append(origins, "http://localhost:3000", "http://127.0.0.1:3000")
	}
	if a.Config.Security.EnableCORS {
		origins = append(origins, a.Config.Security.AllowedOrigins...)
	}
	cfg.AllowedOrigins = origins

	return cfg
}

// createServer creates the HTTP server.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the HTTP server and verifies the data directories are
// writable. A failed writability check is a warning, not a fatal error:
// reads still work without it.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.Paths.ValidateWritable(); err != nil {
		a.Logger.WarnContext(ctx, "Startup writability check failed",
			slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application: HTTP server first so no new work
// arrives, then the job queue, hub, and telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.JobQueue != nil {
		a.Logger.InfoContext(ctx, "Stopping job queue")
		if err := a.JobQueue.Stop(a.Config.Server.ShutdownTimeout); err != nil {
			a.Logger.ErrorContext(ctx, "Failed to stop job queue gracefully",
				slog.String("error", err.Error()))
		}
	}
	if a.queueCancel != nil {
		a.queueCancel()
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry",
				slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}

// handleWebSocket upgrades the connection and hands it to the hub.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}

	ctx := infrastructure.WithTraceID(r.Context(), reqID)
	a.Logger.InfoContext(ctx, "WebSocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range a.corsConfig().AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			a.Logger.WarnContext(ctx, "WebSocket origin rejected",
				slog.String("origin", origin))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.ErrorContext(ctx, "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	client := ws.NewClientWithTrace(a.WebSocketHub, conn, reqID, a.Logger)
	a.WebSocketHub.Register(client)

	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	go client.WritePump()
	go client.ReadPump()
}
