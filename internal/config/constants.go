package config

import "time"

// Application constants - all hardcoded values for the FundLens system
const (
	// Application Info
	AppName   = "FundLens"
	AppVendor = "FundLens"

	// Upload and Ingest Limits
	DefaultMaxFileSize      = 50 * 1024 * 1024 // bytes per workbook
	DefaultMaxFilesPerBatch = 50
	DefaultParseWorkers     = 4
	DefaultHeaderScanRows   = 10
	DefaultRetainBatches    = 20

	// Workbook File Handling
	ExtXLSX            = ".xlsx"
	ExtXLS             = ".xls"
	TempWorkbookPrefix = "~$" // Excel lock files, never ingested

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50
	UploadRateLimit  = 10 // uploads per minute

	// Network Timeouts
	DefaultHTTPTimeout  = 60 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File Paths (relative to executable)
	DefaultDataDir    = "data"
	DefaultLogsDir    = "logs"
	DefaultWebDir     = "web"
	DefaultUploadsDir = "data/uploads"
	DefaultReportsDir = "data/reports"

	// Ingest Timeouts
	DefaultIngestTimeout    = 10 * time.Minute
	ReportGenerationTimeout = 5 * time.Minute

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log Settings
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	MaxLogFileSize    = 100 * 1024 * 1024 // 100MB
	MaxLogFileAge     = 30                // days
	MaxLogFileBackups = 10

	// Export Settings
	ConsolidatedSheetName = "Consolidated"
	ExportCSVName         = "consolidated_funds.csv"
	ExportXLSXName        = "consolidated_funds.xlsx"

	// Analysis Settings
	DefaultTopValues   = 5 // buckets shown in top value summaries
	DefaultPreviewRows = 5 // rows in the consolidated data preview

	// Ingest Messages
	MsgFileProcessed      = "Successfully processed '%s'."
	MsgFileNoHeaders      = "No common headers found in '%s'. Skipping this file."
	MsgFileError          = "Error processing %s: %v"
	MsgBatchProcessed     = "Successfully processed %d file(s) and consolidated data."
	MsgNothingProcessed   = "No data could be processed from the uploaded files. Please check file formats and column headers."
	MsgNoHeadersExtracted = "No common headers were successfully extracted from any of the uploaded files."
	MsgUploadPrompt       = "Please upload your Excel files to begin the analysis."

	// Analysis Messages
	MsgColumnAbsent = "No '%s' column found in the consolidated data."
)

// Feature Flags - compile-time configuration
const (
	// Core Features
	FeatureWebSocketEnabled   = true
	FeatureMetricsEnabled     = true
	FeatureHealthCheckEnabled = true
	FeatureChartsEnabled      = true
	FeatureXLSXExportEnabled  = true

	// Security Features
	FeatureRateLimitingEnabled = true

	// Development Features
	FeatureDebugLoggingEnabled = false
	FeatureMockDataEnabled     = false
)

// API Endpoints (internal)
const (
	APIBasePath       = "/api"
	UploadsEndpoint   = "/api/uploads"
	AnalysisEndpoint  = "/api/analysis"
	DataEndpoint      = "/api/data"
	HeadersEndpoint   = "/api/headers"
	ExportEndpoint    = "/api/export"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)

// GetFeatureFlag returns the value of a feature flag
func GetFeatureFlag(flag string) bool {
	switch flag {
	case "websocket":
		return FeatureWebSocketEnabled
	case "metrics":
		return FeatureMetricsEnabled
	case "health_check":
		return FeatureHealthCheckEnabled
	case "charts":
		return FeatureChartsEnabled
	case "xlsx_export":
		return FeatureXLSXExportEnabled
	case "rate_limiting":
		return FeatureRateLimitingEnabled
	case "debug_logging":
		return FeatureDebugLoggingEnabled
	case "mock_data":
		return FeatureMockDataEnabled
	default:
		return false
	}
}
