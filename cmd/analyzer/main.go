// Command analyzer runs the FundLens ingest pipeline from the command line:
// it expands the input paths into workbooks, extracts registry columns from
// each concurrently, consolidates the rows into one table, and writes the
// analysis outputs to the report directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"fundlens/internal/charts"
	"fundlens/internal/config"
	"fundlens/internal/dataprocessing"
	"fundlens/internal/exporter"
	"fundlens/internal/files"
	"fundlens/internal/infrastructure"
	"fundlens/pkg/contracts/domain"
)

// Output file names for the formats not shared with the web download flow.
const (
	reportJSONName   = "analysis_report.json"
	reportHTMLName   = "analysis_report.html"
	profilesCSVName  = "numeric_profiles.csv"
	distributionsDir = "distributions"
)

type options struct {
	inputs     []string
	outDir     string
	format     string
	emitCharts bool
	workers    int
	quiet      bool
}

// result summarizes one CLI run for the exit-code decision and the final
// console line.
type result struct {
	processed int
	skipped   int
	failed    int
	totalRows int
	outputs   []string
}

func main() {
	in := flag.String("in", "", "input directory or workbook file; separate multiple inputs with commas (defaults to data/uploads relative to executable)")
	out := flag.String("out", "", "report output directory (defaults to data/reports)")
	format := flag.String("format", "csv", "report format: csv | json | both")
	emitCharts := flag.Bool("charts", false, "write bar chart HTML alongside the reports")
	workers := flag.Int("workers", config.DefaultParseWorkers, "concurrent workbook parsers")
	quiet := flag.Bool("quiet", false, "suppress per-file progress output")
	flag.Parse()

	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}
	if *in == "" {
		*in = paths.UploadsDir
	}
	if *out == "" {
		*out = paths.ReportsDir
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
		cfg.Logging.FilePath = paths.GetLogPath("analyzer.log")
	}
	if *quiet {
		cfg.Logging.Level = "error"
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	opts := options{
		inputs:     strings.Split(*in, ","),
		outDir:     *out,
		format:     strings.ToLower(strings.TrimSpace(*format)),
		emitCharts: *emitCharts,
		workers:    *workers,
		quiet:      *quiet,
	}

	logger.Info("Starting fund data analysis",
		slog.String("in", *in),
		slog.String("out", opts.outDir),
		slog.String("format", opts.format),
		slog.Bool("charts", opts.emitCharts),
		slog.Int("workers", opts.workers))

	res, err := run(context.Background(), opts, logger)
	if err != nil {
		logger.Error("Analysis run failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if res.processed == 0 {
		fmt.Fprintln(os.Stderr, config.MsgNothingProcessed)
		os.Exit(1)
	}

	logger.Info("Analysis run completed",
		slog.Int("processed", res.processed),
		slog.Int("skipped", res.skipped),
		slog.Int("failed", res.failed),
		slog.Int("rows", res.totalRows),
		slog.Int("outputs", len(res.outputs)))
	if !opts.quiet {
		fmt.Printf(config.MsgBatchProcessed+"\n", res.processed)
		fmt.Printf("Wrote %d output file(s) to %s\n", len(res.outputs), opts.outDir)
	}
}

// run executes the pipeline end to end. Per-file parse failures are reported
// and skipped; an error return means the run as a whole could not proceed
// (bad inputs, bad format, unwritable output directory).
func run(ctx context.Context, opts options, logger *slog.Logger) (*result, error) {
	switch opts.format {
	case "csv", "json", "both":
	default:
		return nil, fmt.Errorf("unknown format %q (expected csv, json, or both)", opts.format)
	}

	outDir, err := filepath.Abs(opts.outDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", outDir, err)
	}

	discovery := files.NewDiscovery("")
	workbooks, err := discovery.ExpandInputs(opts.inputs)
	if err != nil {
		return nil, err
	}
	if len(workbooks) == 0 {
		logger.Warn("No workbooks found in input paths", slog.Any("inputs", opts.inputs))
		return &result{}, nil
	}
	if !opts.quiet {
		fmt.Printf("Found %d workbook(s)\n", len(workbooks))
	}

	extracts := extractAll(ctx, opts, workbooks, logger)

	res := &result{}
	kept := make([]*dataprocessing.FileExtract, 0, len(extracts))
	for _, extract := range extracts {
		switch {
		case extract == nil:
			res.failed++
		case extract.Status == domain.FileStatusNoHeaders:
			res.skipped++
		default:
			res.processed++
			kept = append(kept, extract)
		}
	}

	dataset := dataprocessing.Consolidate(kept)
	report := dataprocessing.NewAnalyzer(logger).Analyze(ctx, dataset)
	res.totalRows = report.TotalRows

	if res.processed == 0 {
		return res, nil
	}

	outputs, err := writeOutputs(ctx, opts, outDir, dataset, report, logger)
	res.outputs = outputs
	if err != nil {
		return res, err
	}
	return res, nil
}

// extractAll parses every workbook with bounded concurrency. The returned
// slice is aligned with workbooks; a nil entry marks a parse failure.
func extractAll(ctx context.Context, opts options, workbooks []files.FileInfo, logger *slog.Logger) []*dataprocessing.FileExtract {
	workers := opts.workers
	if workers <= 0 {
		workers = config.DefaultParseWorkers
	}

	parser := dataprocessing.NewParser(logger, config.DefaultHeaderScanRows)
	extracts := make([]*dataprocessing.FileExtract, len(workbooks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, wb := range workbooks {
		g.Go(func() error {
			extract, err := parser.ExtractFile(gctx, wb.Path)
			if err != nil {
				logger.Warn("Workbook parse failed",
					slog.String("file", wb.Name),
					slog.String("error", err.Error()))
				fmt.Fprintf(os.Stderr, config.MsgFileError+"\n", wb.Name, err)
				return nil
			}
			extracts[i] = extract

			if opts.quiet {
				return nil
			}
			if extract.Status == domain.FileStatusNoHeaders {
				fmt.Printf(config.MsgFileNoHeaders+"\n", wb.Name)
			} else {
				fmt.Printf(config.MsgFileProcessed+"\n", wb.Name)
			}
			return nil
		})
	}
	// Workers report their own failures and always return nil.
	_ = g.Wait()
	return extracts
}

// writeOutputs writes every artifact the flags ask for and returns the paths
// written so far, even when a later writer fails.
func writeOutputs(ctx context.Context, opts options, outDir string, dataset *domain.Dataset, report *domain.AnalysisReport, logger *slog.Logger) ([]string, error) {
	exp := exporter.NewDatasetExporter(nil, logger)
	var written []string

	if opts.format == "csv" || opts.format == "both" {
		csvPath := filepath.Join(outDir, config.ExportCSVName)
		if err := exp.ExportCSV(ctx, dataset, csvPath); err != nil {
			return written, err
		}
		written = append(written, csvPath)

		xlsxPath := filepath.Join(outDir, config.ExportXLSXName)
		if err := exp.ExportXLSX(ctx, dataset, xlsxPath); err != nil {
			return written, err
		}
		written = append(written, xlsxPath)

		distDir := filepath.Join(outDir, distributionsDir)
		distPaths, err := exp.ExportDistributions(ctx, report, distDir)
		written = append(written, distPaths...)
		if err != nil {
			return written, err
		}

		if len(report.NumericProfiles) > 0 {
			profilePath := filepath.Join(outDir, profilesCSVName)
			if err := exp.ExportProfilesCSV(ctx, report, profilePath); err != nil {
				return written, err
			}
			written = append(written, profilePath)
		}
	}

	if opts.format == "json" || opts.format == "both" {
		jsonPath := filepath.Join(outDir, reportJSONName)
		if err := exp.ExportReportJSON(ctx, report, jsonPath); err != nil {
			return written, err
		}
		written = append(written, jsonPath)
	}

	if opts.emitCharts {
		chartPaths, err := writeCharts(ctx, outDir, report, logger)
		written = append(written, chartPaths...)
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// writeCharts renders the combined report page plus one standalone HTML file
// per charted field.
func writeCharts(ctx context.Context, outDir string, report *domain.AnalysisReport, logger *slog.Logger) ([]string, error) {
	renderer := charts.NewRenderer(logger)
	var written []string

	reportPath := filepath.Join(outDir, reportHTMLName)
	if err := renderer.WriteReportFile(ctx, reportPath, report); err != nil {
		return written, err
	}
	written = append(written, reportPath)

	for _, section := range report.Fields {
		if section.Chart == nil {
			continue
		}
		path := filepath.Join(outDir, chartFileName(section.Field))
		if err := renderer.WriteChartFile(ctx, path, section.Chart); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// chartFileName turns a field name into a file-safe chart name, e.g.
// "Legal Status" becomes "legal_status_chart.html".
func chartFileName(field string) string {
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
	b.WriteString("_chart.html")
	return b.String()
}
