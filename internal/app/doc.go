// Package app provides application initialization and lifecycle management
// for the FundLens server. It wires configuration, logging, OpenTelemetry,
// the WebSocket hub, the ingest job queue, and the service and transport
// layers into a single container.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize logging and observability
//	3. Create the batch store, staging area, hub, and job queue
//	4. Initialize services with their dependencies
//	5. Set up HTTP handlers and middleware
//	6. Configure and start the HTTP server
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication(frontendFS)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM. Shutdown drains active HTTP requests,
// stops the ingest job queue, closes WebSocket connections, and flushes
// telemetry, all within the configured shutdown timeout.
//
// # Error Handling
//
// All initialization errors are returned to the caller. The package never
// calls os.Exit() directly, leaving exit control to main.
package app
