package services

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"fundlens/internal/config"
	"fundlens/internal/infrastructure"
	"fundlens/internal/jobs"
	ws "fundlens/internal/websocket"
	"fundlens/pkg/contracts"
)

// HealthService reports liveness, readiness, and runtime statistics.
type HealthService struct {
	version    string
	buildTime  string
	gitCommit  string
	paths      config.PathsConfig
	hub        *ws.Hub
	queue      *jobs.Queue
	store      *BatchStore
	sysMetrics *infrastructure.SystemMetricsCollector
	logger     *slog.Logger
	startTime  time.Time
}

// HealthStatus is the envelope returned by the health endpoints.
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth is the state of one dependency.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemStats carries runtime statistics for the detailed health view.
type SystemStats struct {
	GoVersion       string  `json:"go_version"`
	NumGoroutines   int     `json:"num_goroutines"`
	NumCPU          int     `json:"num_cpu"`
	MemoryAllocMB   float64 `json:"memory_alloc_mb"`
	MemorySysMB     float64 `json:"memory_sys_mb"`
	NumGC           uint32  `json:"num_gc"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	StoredBatches   int     `json:"stored_batches"`
	ActiveJobs      int     `json:"active_jobs"`
	WebSocketsAlive int     `json:"websockets_alive"`
}

// NewHealthService creates the health read side. sysMetrics may be nil when
// metrics are disabled; SystemStats then falls back to direct runtime reads.
func NewHealthService(paths config.PathsConfig, hub *ws.Hub, queue *jobs.Queue, store *BatchStore, sysMetrics *infrastructure.SystemMetricsCollector, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	info := contracts.GetVersionInfo()
	return &HealthService{
		version:    info.Version,
		buildTime:  info.BuildTime,
		gitCommit:  info.GitCommit,
		paths:      paths,
		hub:        hub,
		queue:      queue,
		store:      store,
		sysMetrics: sysMetrics,
		logger:     logger.With(slog.String("component", "health_service")),
		startTime:  time.Now(),
	}
}

// HealthCheck reports the overall state with per-dependency detail.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	servicesHealth := map[string]ServiceHealth{
		"websocket": hs.checkWebSocketHealth(),
		"jobqueue":  hs.checkQueueHealth(),
		"storage":   hs.checkStorageHealth(),
	}

	status := "healthy"
	for _, svc := range servicesHealth {
		if svc.Status != "healthy" {
			status = "degraded"
			break
		}
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Version:   hs.version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
		Services:  servicesHealth,
	}
}

// ReadinessCheck reports whether the service can accept uploads: the data
// directories must be writable.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := "ready"
	servicesHealth := map[string]ServiceHealth{}

	storage := hs.checkStorageHealth()
	servicesHealth["storage"] = storage
	if storage.Status != "healthy" {
		status = "not_ready"
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Version:   hs.version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
		Services:  servicesHealth,
	}
}

// LivenessCheck reports that the process is responsive.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
	}
}

// Version returns build metadata.
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":     info.Version,
		"build_time":  info.BuildTime,
		"git_commit":  info.GitCommit,
		"go_version":  info.GoVersion,
		"os":          info.OS,
		"arch":        info.Architecture,
		"api_version": info.APIVersion,
	}
}

// SystemStats collects process statistics for the detailed health view.
// When the metrics collector is wired, the same collection that feeds the
// OTel gauges backs this view.
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		GoVersion:     runtime.Version(),
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
	}

	if hs.sysMetrics != nil {
		sys := hs.sysMetrics.GetCurrentStats(ctx)
		stats.NumGoroutines = int(sys.GoRoutines)
		stats.NumCPU = sys.CPUCount
		stats.MemoryAllocMB = float64(sys.MemoryUsage) / 1024 / 1024
		stats.MemorySysMB = float64(sys.MemorySystem) / 1024 / 1024
		stats.NumGC = sys.GCCount
	} else {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		stats.NumGoroutines = runtime.NumGoroutine()
		stats.NumCPU = runtime.NumCPU()
		stats.MemoryAllocMB = float64(memStats.Alloc) / 1024 / 1024
		stats.MemorySysMB = float64(memStats.Sys) / 1024 / 1024
		stats.NumGC = memStats.NumGC
	}
	if hs.store != nil {
		stats.StoredBatches = hs.store.Count()
	}
	if hs.queue != nil {
		if active, ok := hs.queue.Stats()["active_jobs"].(int); ok {
			stats.ActiveJobs = active
		}
	}
	if hs.hub != nil {
		stats.WebSocketsAlive = hs.hub.ClientCount()
	}
	return stats
}

// GetDetailedHealth merges the health check with runtime statistics.
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	health := hs.HealthCheck(ctx)
	stats := hs.SystemStats(ctx)

	detail := map[string]interface{}{
		"status":    health.Status,
		"timestamp": health.Timestamp,
		"version":   health.Version,
		"uptime":    health.Uptime,
		"services":  health.Services,
		"system":    stats,
	}
	if hs.hub != nil {
		detail["websocket"] = hs.hub.GetHubMetrics()
	}
	if hs.queue != nil {
		detail["jobqueue"] = hs.queue.Stats()
	}
	return detail
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "unavailable", Message: "WebSocket hub not initialized"}
	}
	return ServiceHealth{Status: "healthy"}
}

func (hs *HealthService) checkQueueHealth() ServiceHealth {
	if hs.queue == nil {
		return ServiceHealth{Status: "unavailable", Message: "job queue not initialized"}
	}
	return ServiceHealth{Status: "healthy"}
}

// checkStorageHealth probes the uploads directory for writability, the same
// way the startup check does.
func (hs *HealthService) checkStorageHealth() ServiceHealth {
	dir := hs.paths.UploadsDir
	if dir == "" {
		dir = hs.paths.DataDir
	}
	if dir == "" {
		return ServiceHealth{Status: "unavailable", Message: "no data directory configured"}
	}

	probe := filepath.Join(dir, ".health_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return ServiceHealth{Status: "unhealthy", Message: "uploads directory not writable: " + err.Error()}
	}
	os.Remove(probe)
	return ServiceHealth{Status: "healthy"}
}
