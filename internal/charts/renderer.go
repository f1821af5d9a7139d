// Package charts renders analysis chart series into self-contained HTML
// documents using go-echarts. The HTTP layer serves the documents directly
// and the CLI writes them next to its reports.
package charts

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	echarts "github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"fundlens/internal/errors"
	"fundlens/pkg/contracts/domain"
)

const (
	chartWidth  = "900px"
	chartHeight = "520px"
)

// Renderer turns ChartData series into ECharts bar charts.
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer creates a chart renderer.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// RenderChart writes one bar chart as a standalone HTML document.
func (r *Renderer) RenderChart(ctx context.Context, w io.Writer, data *domain.ChartData) error {
	if data == nil {
		return errors.NewAppValidationError("chart data is required")
	}

	if err := r.buildBar(data).Render(w); err != nil {
		return errors.NewAppError(errors.ErrTypeStorage, "failed to render chart document", err)
	}

	r.logger.DebugContext(ctx, "rendered chart",
		slog.String("field", data.Field),
		slog.String("orientation", string(data.Orientation)),
		slog.Int("buckets", len(data.Labels)))
	return nil
}

// RenderReport writes every chart carried by the report onto a single HTML
// page, in section order.
func (r *Renderer) RenderReport(ctx context.Context, w io.Writer, report *domain.AnalysisReport) error {
	if report == nil {
		return errors.NewAppValidationError("analysis report is required")
	}

	page := components.NewPage()
	page.PageTitle = "FundLens Analysis"
	page.SetLayout(components.PageFlexLayout)

	rendered := 0
	for _, section := range report.Fields {
		if section.Chart == nil {
			continue
		}
		page.AddCharts(r.buildBar(section.Chart))
		rendered++
	}
	if rendered == 0 {
		return errors.NewNotFoundError("chart data")
	}

	if err := page.Render(w); err != nil {
		return errors.NewAppError(errors.ErrTypeStorage, "failed to render chart page", err)
	}

	r.logger.InfoContext(ctx, "rendered chart page", slog.Int("charts", rendered))
	return nil
}

// WriteChartFile renders one chart to an HTML file, creating parent
// directories as needed.
func (r *Renderer) WriteChartFile(ctx context.Context, path string, data *domain.ChartData) error {
	return r.writeFile(ctx, path, func(f io.Writer) error {
		return r.RenderChart(ctx, f, data)
	})
}

// WriteReportFile renders the report's chart page to an HTML file.
func (r *Renderer) WriteReportFile(ctx context.Context, path string, report *domain.AnalysisReport) error {
	return r.writeFile(ctx, path, func(f io.Writer) error {
		return r.RenderReport(ctx, f, report)
	})
}

func (r *Renderer) writeFile(ctx context.Context, path string, render func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("failed to create directory for chart output", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("failed to create chart file", err)
	}
	defer file.Close()

	if err := render(file); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "wrote chart file", slog.String("path", path))
	return nil
}

// buildBar converts a ChartData series into an ECharts bar chart. Category
// labels always enter on the X axis; horizontal charts are flipped after
// the fact, which moves the categories onto the Y axis.
func (r *Renderer) buildBar(data *domain.ChartData) *echarts.Bar {
	categoryLabel, valueLabel := data.XLabel, data.YLabel
	if data.Orientation == domain.ChartHorizontal {
		categoryLabel, valueLabel = data.YLabel, data.XLabel
	}

	xAxis := opts.XAxis{Name: categoryLabel}
	if data.Orientation != domain.ChartHorizontal {
		// Rotate long category names so they stay readable.
		xAxis.AxisLabel = &opts.AxisLabel{Rotate: 45}
	}

	bar := echarts.NewBar()
	bar.SetGlobalOptions(
		echarts.WithInitializationOpts(opts.Initialization{
			PageTitle: data.Title,
			Width:     chartWidth,
			Height:    chartHeight,
		}),
		echarts.WithTitleOpts(opts.Title{Title: data.Title}),
		echarts.WithXAxisOpts(xAxis),
		echarts.WithYAxisOpts(opts.YAxis{Name: valueLabel}),
	)

	items := make([]opts.BarData, len(data.Values))
	for i, v := range data.Values {
		items[i] = opts.BarData{Value: v}
	}
	bar.SetXAxis(data.Labels).AddSeries("Count", items)

	if data.Orientation == domain.ChartHorizontal {
		bar.XYReversal()
	}
	return bar
}
