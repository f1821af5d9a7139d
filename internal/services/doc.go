// Package services implements the business logic layer between the HTTP
// handlers and the ingest core.
//
// UploadService owns the batch lifecycle: validating and staging uploaded
// workbooks, queuing the ingest job, running it (extract, consolidate,
// analyze) with per-file progress events, and deleting batches. Per-file
// failures are recorded on the batch and never fail the ingest as a whole.
//
// AnalysisService reads what ingest produced: the report, per-field
// distributions and charts, consolidated data pages, the header summary,
// and the dataset handed to the export handlers. An empty batch selector
// resolves to the most recent completed batch.
//
// BatchStore is the in-memory single source of truth for batches, datasets,
// and reports. Durable storage is out of scope for this application, so a
// restart starts clean; the store caps retained batches and reports the
// evicted IDs so staged files can be cleaned up.
//
// Services accept a context on every operation, log through an injected
// *slog.Logger, and surface failures as typed errors from internal/errors
// so the transport layer can map them to problem documents.
package services
