// Package exporter writes consolidated datasets and analysis results to
// disk in user-facing formats.
//
// This package contains two main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, and UTF-8 BOM for Excel compatibility.
//
// DatasetExporter: Writes the consolidated table as CSV and XLSX, per-field
// distribution CSVs, a numeric profile summary, and the analysis report as
// JSON.
//
// Example usage:
//
//	exp := exporter.NewDatasetExporter(paths, logger)
//
//	// Write the consolidated table next to the batch report
//	err := exp.ExportCSV(ctx, dataset, paths.GetBatchReportPath(batchID, config.ExportCSVName))
//
//	// Write one distribution CSV per analyzed field
//	err = exp.ExportDistributions(ctx, report, paths.GetBatchReportDir(batchID))
package exporter
