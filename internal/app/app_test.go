package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundlens/internal/config"
	"fundlens/internal/infrastructure"
)

var (
	testProvidersOnce sync.Once
	testProviders     *infrastructure.OTelProviders
	testProvidersErr  error
)

// testOTelProviders initializes OpenTelemetry once for the whole package;
// the Prometheus exporter registers collectors globally and cannot be
// re-registered per test.
func testOTelProviders(t *testing.T) *infrastructure.OTelProviders {
	t.Helper()
	testProvidersOnce.Do(func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		testProviders, testProvidersErr = infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	})
	require.NoError(t, testProvidersErr)
	return testProviders
}

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	tmp := t.TempDir()
	paths := &config.Paths{
		ExecutableDir: tmp,
		DataDir:       filepath.Join(tmp, "data"),
		UploadsDir:    filepath.Join(tmp, "data", "uploads"),
		ReportsDir:    filepath.Join(tmp, "data", "reports"),
		CacheDir:      filepath.Join(tmp, "data", "cache"),
		LogsDir:       filepath.Join(tmp, "logs"),
		WebDir:        filepath.Join(tmp, "web"),
		StaticDir:     filepath.Join(tmp, "web", "static"),
	}
	require.NoError(t, paths.EnsureDirectories())
	return paths
}

func newTestApp(t *testing.T) *Application {
	t.Helper()

	cfg := config.Default()
	cfg.Security.RateLimit.Enabled = false

	paths := testPaths(t)
	cfg.Paths.DataDir = paths.DataDir
	cfg.Paths.UploadsDir = paths.UploadsDir
	cfg.Paths.ReportsDir = paths.ReportsDir

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		OTelProviders: testOTelProviders(t),
		FrontendFS: fstest.MapFS{
			"index.html": {Data: []byte("<html><body>FundLens</body></html>")},
			"app.js":     {Data: []byte("console.log('fundlens')")},
		},
	}

	require.NoError(t, app.initializeServices())
	require.NoError(t, app.setupRouter())
	app.createServer()

	t.Cleanup(func() {
		app.JobQueue.Stop(time.Second)
		app.queueCancel()
		app.WebSocketHub.Stop()
	})

	return app
}

func get(t *testing.T, app *Application, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestApplication_HealthRoutes(t *testing.T) {
	app := newTestApp(t)

	rec := get(t, app, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status, "status")
	assert.Contains(t, status, "services")

	assert.Equal(t, http.StatusOK, get(t, app, "/api/health/live").Code)
	assert.Equal(t, http.StatusOK, get(t, app, "/api/health/ready").Code)
	assert.Equal(t, http.StatusOK, get(t, app, "/api/health/detailed").Code)
	assert.Equal(t, http.StatusOK, get(t, app, "/api/version").Code)
}

func TestApplication_SystemMetricsCollectorWired(t *testing.T) {
	app := newTestApp(t)

	require.NotNil(t, app.sysMetrics)

	rec := get(t, app, "/api/health/detailed")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	system, ok := detail["system"].(map[string]interface{})
	require.True(t, ok, "detailed health must carry system stats")
	assert.Greater(t, system["num_goroutines"], float64(0))
	assert.Greater(t, system["memory_alloc_mb"], float64(0))
}

func TestApplication_MetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	rec := get(t, app, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# ")
}

func TestApplication_UploadsList_EmptyStore(t *testing.T) {
	app := newTestApp(t)

	rec := get(t, app, "/api/uploads")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "success", envelope["status"])
	assert.Equal(t, float64(0), envelope["total"])
}

func TestApplication_AnalysisWithoutBatches(t *testing.T) {
	app := newTestApp(t)

	rec := get(t, app, "/api/analysis")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestApplication_UnknownFieldRoutes(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusNotFound, get(t, app, "/api/analysis/fields/ticker").Code)
	assert.Equal(t, http.StatusNotFound, get(t, app, "/charts/ticker").Code)
}

func TestApplication_FrontendServing(t *testing.T) {
	app := newTestApp(t)

	rec := get(t, app, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "FundLens")
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = get(t, app, "/app.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript", rec.Header().Get("Content-Type"))

	// Client-side routes fall back to index.html.
	rec = get(t, app, "/some/client/route")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "FundLens")
}

func TestApplication_CORSConfig(t *testing.T) {
	app := newTestApp(t)

	cfg := app.corsConfig()
	assert.Contains(t, cfg.AllowedOrigins, "http://localhost:8080")
	assert.NotContains(t, cfg.AllowedOrigins, "http://localhost:3000")

	app.Config.Logging.Development = true
	cfg = app.corsConfig()
	assert.Contains(t, cfg.AllowedOrigins, "http://localhost:3000")
}

func TestApplication_ServerConfiguration(t *testing.T) {
	app := newTestApp(t)

	require.NotNil(t, app.Server)
	assert.Equal(t, ":8080", app.Server.Addr)
	assert.Equal(t, app.Config.Server.ReadTimeout, app.Server.ReadTimeout)
	assert.Equal(t, app.Config.Server.WriteTimeout, app.Server.WriteTimeout)
	assert.Same(t, app.Router, app.Server.Handler)
}

func TestSetContentTypeByExt(t *testing.T) {
	cases := map[string]string{
		"index.html": "text/html; charset=utf-8",
		"app.js":     "application/javascript",
		"style.css":  "text/css",
		"logo.svg":   "image/svg+xml",
		"data.bin":   "application/octet-stream",
	}

	for name, want := range cases {
		rec := httptest.NewRecorder()
		setContentTypeByExt(rec, name)
		assert.Equal(t, want, rec.Header().Get("Content-Type"), name)
	}
}
