package exporter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"fundlens/internal/config"
	"fundlens/internal/errors"
	"fundlens/pkg/contracts/domain"
)

// utf8BOM helps Excel recognize UTF-8 in downloaded CSVs.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DatasetExporter writes consolidated datasets and analysis results in the
// formats offered for download.
type DatasetExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewDatasetExporter creates a dataset exporter rooted at the configured
// directories.
func NewDatasetExporter(paths *config.Paths, logger *slog.Logger) *DatasetExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetExporter{
		csvWriter: NewCSVWriter(paths),
		logger:    logger,
	}
}

// ExportCSV streams the consolidated table to a CSV file with UTF-8 BOM.
// The header row is the dataset's column list; rows keep dataset order.
func (e *DatasetExporter) ExportCSV(ctx context.Context, dataset *domain.Dataset, outputPath string) error {
	if dataset == nil || len(dataset.Columns) == 0 {
		return errors.NewNotFoundError("consolidated data")
	}

	stream, err := e.csvWriter.CreateStreamWriter(outputPath, dataset.Columns)
	if err != nil {
		return err
	}

	for _, record := range dataset.Records {
		row := make([]string, len(dataset.Columns))
		for i, column := range dataset.Columns {
			row[i] = record.Get(column)
		}
		if err := stream.WriteRecord(row); err != nil {
			stream.Close()
			return errors.NewStorageError("failed to write dataset row", err)
		}
	}

	if err := stream.Close(); err != nil {
		return errors.NewStorageError("failed to finish dataset CSV", err)
	}

	e.logger.InfoContext(ctx, "exported dataset CSV",
		slog.String("path", outputPath),
		slog.Int("rows", dataset.RowCount()))
	return nil
}

// ExportXLSX writes the consolidated table as a workbook with a single
// sheet, streamed row by row.
func (e *DatasetExporter) ExportXLSX(ctx context.Context, dataset *domain.Dataset, outputPath string) error {
	if dataset == nil || len(dataset.Columns) == 0 {
		return errors.NewNotFoundError("consolidated data")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return errors.NewStorageError("failed to create directory for XLSX output", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", config.ConsolidatedSheetName); err != nil {
		return errors.NewStorageError("failed to name consolidated sheet", err)
	}

	sw, err := f.NewStreamWriter(config.ConsolidatedSheetName)
	if err != nil {
		return errors.NewStorageError("failed to create XLSX stream writer", err)
	}

	header := make([]interface{}, len(dataset.Columns))
	for i, column := range dataset.Columns {
		header[i] = column
	}
	cell, _ := excelize.CoordinatesToCellName(1, 1)
	if err := sw.SetRow(cell, header); err != nil {
		return errors.NewStorageError("failed to write XLSX header row", err)
	}

	for i, record := range dataset.Records {
		row := make([]interface{}, len(dataset.Columns))
		for j, column := range dataset.Columns {
			row[j] = record.Get(column)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return errors.NewStorageError("failed to write XLSX row", err)
		}
	}

	if err := sw.Flush(); err != nil {
		return errors.NewStorageError("failed to flush XLSX stream", err)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return errors.NewStorageError("failed to save XLSX file", err)
	}

	e.logger.InfoContext(ctx, "exported dataset XLSX",
		slog.String("path", outputPath),
		slog.Int("rows", dataset.RowCount()))
	return nil
}

// WriteCSVTo streams the consolidated table as CSV to w, BOM first, for
// HTTP downloads. Row layout matches ExportCSV.
func (e *DatasetExporter) WriteCSVTo(ctx context.Context, w io.Writer, dataset *domain.Dataset) error {
	if dataset == nil || len(dataset.Columns) == 0 {
		return errors.NewNotFoundError("consolidated data")
	}

	if _, err := w.Write(utf8BOM); err != nil {
		return errors.NewStorageError("failed to write BOM", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(dataset.Columns); err != nil {
		return errors.NewStorageError("failed to write CSV header row", err)
	}
	for _, record := range dataset.Records {
		row := make([]string, len(dataset.Columns))
		for i, column := range dataset.Columns {
			row[i] = record.Get(column)
		}
		if err := cw.Write(row); err != nil {
			return errors.NewStorageError("failed to write dataset row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.NewStorageError("failed to finish dataset CSV", err)
	}

	e.logger.DebugContext(ctx, "streamed dataset CSV", slog.Int("rows", dataset.RowCount()))
	return nil
}

// WriteXLSXTo streams the consolidated table as a single-sheet workbook to w.
func (e *DatasetExporter) WriteXLSXTo(ctx context.Context, w io.Writer, dataset *domain.Dataset) error {
	if dataset == nil || len(dataset.Columns) == 0 {
		return errors.NewNotFoundError("consolidated data")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", config.ConsolidatedSheetName); err != nil {
		return errors.NewStorageError("failed to name consolidated sheet", err)
	}

	sw, err := f.NewStreamWriter(config.ConsolidatedSheetName)
	if err != nil {
		return errors.NewStorageError("failed to create XLSX stream writer", err)
	}

	header := make([]interface{}, len(dataset.Columns))
	for i, column := range dataset.Columns {
		header[i] = column
	}
	cell, _ := excelize.CoordinatesToCellName(1, 1)
	if err := sw.SetRow(cell, header); err != nil {
		return errors.NewStorageError("failed to write XLSX header row", err)
	}

	for i, record := range dataset.Records {
		row := make([]interface{}, len(dataset.Columns))
		for j, column := range dataset.Columns {
			row[j] = record.Get(column)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return errors.NewStorageError("failed to write XLSX row", err)
		}
	}

	if err := sw.Flush(); err != nil {
		return errors.NewStorageError("failed to flush XLSX stream", err)
	}
	if err := f.Write(w); err != nil {
		return errors.NewStorageError("failed to write XLSX output", err)
	}

	e.logger.DebugContext(ctx, "streamed dataset XLSX", slog.Int("rows", dataset.RowCount()))
	return nil
}

// ExportDistributions writes one value/count CSV per analyzed field and
// returns the paths written.
func (e *DatasetExporter) ExportDistributions(ctx context.Context, report *domain.AnalysisReport, outputDir string) ([]string, error) {
	if report == nil {
		return nil, errors.NewNotFoundError("analysis report")
	}

	var written []string
	for _, section := range report.Fields {
		if section.Distribution == nil {
			continue
		}

		records := make([][]string, 0, len(section.Distribution.Counts))
		for _, bucket := range section.Distribution.Counts {
			records = append(records, []string{bucket.Value, formatInt(bucket.Count)})
		}

		path := filepath.Join(outputDir, fieldSlug(section.Field)+"_distribution.csv")
		if err := e.csvWriter.WriteSimpleCSV(path, []string{"Value", "Count"}, records); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	e.logger.InfoContext(ctx, "exported distribution CSVs",
		slog.String("dir", outputDir),
		slog.Int("files", len(written)))
	return written, nil
}

// ExportProfilesCSV writes the numeric profiles as a single summary CSV.
// A report without numeric profiles yields a header-only file.
func (e *DatasetExporter) ExportProfilesCSV(ctx context.Context, report *domain.AnalysisReport, outputPath string) error {
	if report == nil {
		return errors.NewNotFoundError("analysis report")
	}

	records := make([][]string, 0, len(report.NumericProfiles))
	for _, p := range report.NumericProfiles {
		records = append(records, []string{
			p.Field,
			formatInt(p.Count),
			formatFloat(p.Mean),
			formatFloat(p.StdDev),
			formatFloat(p.Min),
			formatFloat(p.P25),
			formatFloat(p.Median),
			formatFloat(p.P75),
			formatFloat(p.Max),
			formatInt(p.Missing),
			formatInt(p.Skipped),
		})
	}

	headers := []string{"Field", "Count", "Mean", "StdDev", "Min", "P25", "Median", "P75", "Max", "Missing", "Skipped"}
	if err := e.csvWriter.WriteSimpleCSV(outputPath, headers, records); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "exported numeric profile CSV",
		slog.String("path", outputPath),
		slog.Int("profiles", len(records)))
	return nil
}

// ExportReportJSON writes the analysis report as indented JSON.
func (e *DatasetExporter) ExportReportJSON(ctx context.Context, report *domain.AnalysisReport, outputPath string) error {
	if report == nil {
		return errors.NewNotFoundError("analysis report")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return errors.NewStorageError("failed to create directory for JSON output", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return errors.NewStorageError("failed to create JSON report file", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return errors.NewStorageError("failed to encode analysis report", err)
	}

	e.logger.InfoContext(ctx, "exported analysis report JSON", slog.String("path", outputPath))
	return nil
}

// fieldSlug converts a field name to a file-safe slug: lower case with runs
// of non-alphanumeric characters collapsed to single underscores
// ("Promoter/Initiator" becomes "promoter_initiator").
func fieldSlug(field string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(field) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
