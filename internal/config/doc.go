// Package config provides centralized configuration management for FundLens.
// It handles loading configuration from multiple sources, validation, and provides
// a type-safe API for accessing configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration files (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern FUNDLENS_* for namespacing:
//
//	FUNDLENS_SERVER_PORT=8080
//	FUNDLENS_LOGGING_LEVEL=info
//	FUNDLENS_UPLOAD_MAX_FILE_SIZE=52428800
//	FUNDLENS_UPLOAD_PARSE_WORKERS=4
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which handles all file system paths relative to the executable location:
//
//	paths, err := config.GetPaths()
//	stagingDir := paths.GetBatchUploadDir(batchID)
//	reportPath := paths.GetBatchReportPath(batchID, "consolidated_funds.csv")
//
// # Validation
//
// All configuration is validated at load time to ensure:
//
//	- Required fields are present
//	- Values are within acceptable ranges
//	- Data directories exist and are writable
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
