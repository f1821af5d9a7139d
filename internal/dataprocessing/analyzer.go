package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"fundlens/internal/config"
	"fundlens/pkg/contracts/domain"
)

// Analyzer computes the descriptive report for a consolidated dataset.
type Analyzer struct {
	logger      *slog.Logger
	topN        int
	previewRows int
}

// NewAnalyzer creates an analyzer with the default preview and top value
// sizes.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		logger:      logger,
		topN:        config.DefaultTopValues,
		previewRows: config.DefaultPreviewRows,
	}
}

// Analyze builds the full descriptive report for a dataset. An empty dataset
// yields a report flagged Empty with a user-facing warning instead of
// analysis sections.
func (a *Analyzer) Analyze(ctx context.Context, dataset *domain.Dataset) *domain.AnalysisReport {
	report := &domain.AnalysisReport{
		GeneratedAt: time.Now(),
		TotalRows:   dataset.RowCount(),
	}
	if dataset != nil {
		report.ProcessedFiles = len(dataset.Sources)
	}

	if dataset.Empty() {
		report.Empty = true
		report.Warning = config.MsgNothingProcessed
		a.logger.WarnContext(ctx, "analysis requested for empty dataset")
		return report
	}

	report.Columns = dataset.Columns
	report.Preview = dataset.Head(a.previewRows)

	// Section layout: the two priority fields get full distributions with
	// vertical charts, the name fields get frequency summaries, and the
	// category fields get breakdowns with horizontal charts.
	for _, field := range []string{HeaderDomicile, HeaderLegalStatus} {
		report.Fields = append(report.Fields, a.distributionSection(dataset, field))
	}
	for _, field := range []string{HeaderFundName, HeaderPromoterInitiator} {
		report.Fields = append(report.Fields, a.frequencySection(dataset, field))
	}
	for _, field := range []string{HeaderIndustry, HeaderAssetAllocation} {
		report.Fields = append(report.Fields, a.breakdownSection(dataset, field))
	}

	for _, field := range []string{HeaderTNAVUSD, HeaderUSSTNAV} {
		if profile := a.numericProfile(dataset, field); profile != nil {
			report.NumericProfiles = append(report.NumericProfiles, *profile)
		}
	}

	report.FoundHeaders, report.CanonicalFound = foundHeaders(dataset)
	if len(report.FoundHeaders) == 0 {
		report.Warning = config.MsgNoHeadersExtracted
	}

	a.logger.InfoContext(ctx, "analysis report generated",
		slog.Int("rows", report.TotalRows),
		slog.Int("files", report.ProcessedFiles),
		slog.Int("sections", len(report.Fields)),
		slog.Int("numeric_profiles", len(report.NumericProfiles)))

	return report
}

// distributionSection builds the full distribution view used for the
// priority fields: every bucket including missing, top values, unique count,
// and a vertical bar chart.
func (a *Analyzer) distributionSection(dataset *domain.Dataset, field string) domain.FieldAnalysis {
	if !dataset.HasColumn(field) {
		return absentSection(field)
	}
	dist := a.distribution(dataset, field, true)
	return domain.FieldAnalysis{
		Field:        field,
		Present:      true,
		Distribution: dist,
		Chart:        BuildChart(field, dist, domain.ChartVertical),
	}
}

// frequencySection builds the frequency view used for the name fields:
// unique count and top values over non-missing cells only, no chart.
func (a *Analyzer) frequencySection(dataset *domain.Dataset, field string) domain.FieldAnalysis {
	if !dataset.HasColumn(field) {
		return absentSection(field)
	}
	return domain.FieldAnalysis{
		Field:        field,
		Present:      true,
		Distribution: a.distribution(dataset, field, false),
	}
}

// breakdownSection builds the category view used for Industry and Asset
// Allocation: full distribution including missing plus a horizontal bar
// chart ordered by the non-missing counts.
func (a *Analyzer) breakdownSection(dataset *domain.Dataset, field string) domain.FieldAnalysis {
	if !dataset.HasColumn(field) {
		return absentSection(field)
	}
	dist := a.distribution(dataset, field, true)
	return domain.FieldAnalysis{
		Field:        field,
		Present:      true,
		Distribution: dist,
		Chart:        BuildChart(field, dist, domain.ChartHorizontal),
	}
}

func absentSection(field string) domain.FieldAnalysis {
	return domain.FieldAnalysis{
		Field: field,
		Note:  fmt.Sprintf(config.MsgColumnAbsent, field),
	}
}

// distribution counts the column's values. A cell is missing when empty
// after trimming; missing cells never count toward uniqueness and join the
// bucket list only when includeMissing is set.
func (a *Analyzer) distribution(dataset *domain.Dataset, field string, includeMissing bool) *domain.FieldDistribution {
	values := dataset.ColumnValues(field)

	counts := make(map[string]int)
	missing := 0
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			missing++
			continue
		}
		counts[v]++
	}

	buckets := make([]domain.ValueCount, 0, len(counts)+1)
	for value, count := range counts {
		buckets = append(buckets, domain.ValueCount{Value: value, Count: count})
	}
	if includeMissing && missing > 0 {
		buckets = append(buckets, domain.ValueCount{Value: domain.MissingLabel, Count: missing})
	}
	sortBuckets(buckets)

	top := buckets
	if len(top) > a.topN {
		top = top[:a.topN]
	}

	return &domain.FieldDistribution{
		Field:   field,
		Counts:  buckets,
		Top:     top,
		Total:   len(values),
		Unique:  len(counts),
		Missing: missing,
	}
}

// FieldDistribution counts one column's values on demand, for fields the
// report does not carry a stored section for. The missing bucket is always
// included; absent columns yield nil.
func (a *Analyzer) FieldDistribution(dataset *domain.Dataset, field string) *domain.FieldDistribution {
	if !dataset.HasColumn(field) {
		return nil
	}
	return a.distribution(dataset, field, true)
}

// sortBuckets orders buckets by count descending, ties by value ascending.
func sortBuckets(buckets []domain.ValueCount) {
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Value < buckets[j].Value
	})
}

// BuildChart converts a field distribution into a renderable bar series.
// Labels follow the distribution order. Horizontal charts order their bars
// by the non-missing counts, so the missing bucket is dropped from the
// series.
func BuildChart(field string, dist *domain.FieldDistribution, orientation domain.ChartOrientation) *domain.ChartData {
	if dist == nil {
		return nil
	}

	chart := &domain.ChartData{
		Field:       field,
		Title:       field + " Distribution",
		Orientation: orientation,
	}
	switch orientation {
	case domain.ChartHorizontal:
		chart.XLabel = "Count"
		chart.YLabel = field
	default:
		chart.XLabel = field
		chart.YLabel = "Count"
	}

	for _, bucket := range dist.Counts {
		if orientation == domain.ChartHorizontal && bucket.Value == domain.MissingLabel {
			continue
		}
		chart.Labels = append(chart.Labels, bucket.Value)
		chart.Values = append(chart.Values, bucket.Count)
	}
	return chart
}

// numericProfile computes descriptive statistics for a numeric column, or
// nil when the dataset lacks the column. Cells that are neither empty nor
// parseable count as skipped.
func (a *Analyzer) numericProfile(dataset *domain.Dataset, field string) *domain.NumericProfile {
	if !dataset.HasColumn(field) {
		return nil
	}

	profile := &domain.NumericProfile{Field: field}
	values := make([]float64, 0, dataset.RowCount())
	for _, raw := range dataset.ColumnValues(field) {
		if strings.TrimSpace(raw) == "" {
			profile.Missing++
			continue
		}
		v, ok := parseNumeric(raw)
		if !ok {
			profile.Skipped++
			continue
		}
		values = append(values, v)
	}

	profile.Count = len(values)
	if profile.Count == 0 {
		return profile
	}

	sort.Float64s(values)
	profile.Mean = stat.Mean(values, nil)
	if profile.Count > 1 {
		profile.StdDev = stat.StdDev(values, nil)
	}
	profile.Min = values[0]
	profile.Max = values[len(values)-1]
	profile.P25 = stat.Quantile(0.25, stat.Empirical, values, nil)
	profile.Median = stat.Quantile(0.5, stat.Empirical, values, nil)
	profile.P75 = stat.Quantile(0.75, stat.Empirical, values, nil)
	return profile
}

// parseNumeric parses a TNAV-style cell: thousands separators and currency
// symbols are stripped before float parsing.
func parseNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Trim(s, "$€£ ")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// foundHeaders collects every matched spelling across source files, sorted
// alphabetically, plus the canonical equivalents in consolidation order.
func foundHeaders(dataset *domain.Dataset) ([]string, []string) {
	fileSide := make(map[string]bool)
	canonical := make(map[string]bool)
	for _, src := range dataset.Sources {
		for _, h := range src.FileHeaders {
			fileSide[h] = true
		}
		for _, c := range src.CanonicalHeaders {
			canonical[c] = true
		}
	}

	found := make([]string, 0, len(fileSide))
	for h := range fileSide {
		found = append(found, h)
	}
	sort.Strings(found)

	canonicalList := make([]string, 0, len(canonical))
	for c := range canonical {
		canonicalList = append(canonicalList, c)
	}
	return found, OrderColumns(canonicalList)
}
