package domain

import (
	"time"
)

// MissingLabel is the bucket name used for empty cells in distributions.
const MissingLabel = "(blank)"

// ValueCount is one bucket of a field distribution.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FieldDistribution holds the ordered value counts for one field.
// Counts are sorted by count descending, ties by value ascending. When the
// field has empty cells the MissingLabel bucket is included in Counts but
// never in Unique.
type FieldDistribution struct {
	Field   string       `json:"field"`
	Counts  []ValueCount `json:"counts"`
	Top     []ValueCount `json:"top"`
	Total   int          `json:"total"`
	Unique  int          `json:"unique"`
	Missing int          `json:"missing"`
}

// ChartOrientation selects bar direction for a rendered chart.
type ChartOrientation string

const (
	ChartVertical   ChartOrientation = "vertical"
	ChartHorizontal ChartOrientation = "horizontal"
)

// ChartData is the renderer-agnostic series for one bar chart.
type ChartData struct {
	Field       string           `json:"field"`
	Title       string           `json:"title"`
	XLabel      string           `json:"x_label"`
	YLabel      string           `json:"y_label"`
	Orientation ChartOrientation `json:"orientation"`
	Labels      []string         `json:"labels"`
	Values      []int            `json:"values"`
}

// NumericProfile holds descriptive statistics for a numeric field.
// Skipped counts cells that were neither empty nor parseable as numbers.
type NumericProfile struct {
	Field   string  `json:"field"`
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	P25     float64 `json:"p25"`
	Median  float64 `json:"median"`
	P75     float64 `json:"p75"`
	Max     float64 `json:"max"`
	Missing int     `json:"missing"`
	Skipped int     `json:"skipped"`
}

// FieldAnalysis is one report section. Absent columns keep Present false
// and carry a human-readable note instead of a distribution.
type FieldAnalysis struct {
	Field        string             `json:"field"`
	Present      bool               `json:"present"`
	Note         string             `json:"note,omitempty"`
	Distribution *FieldDistribution `json:"distribution,omitempty"`
	Chart        *ChartData         `json:"chart,omitempty"`
}

// AnalysisReport is the full descriptive report for one batch's dataset.
type AnalysisReport struct {
	BatchID         string           `json:"batch_id,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
	ProcessedFiles  int              `json:"processed_files"`
	TotalRows       int              `json:"total_rows"`
	Empty           bool             `json:"empty"`
	Warning         string           `json:"warning,omitempty"`
	Columns         []string         `json:"columns,omitempty"`
	Preview         []Record         `json:"preview,omitempty"`
	Fields          []FieldAnalysis  `json:"fields,omitempty"`
	NumericProfiles []NumericProfile `json:"numeric_profiles,omitempty"`
	FoundHeaders    []string         `json:"found_headers,omitempty"`
	CanonicalFound  []string         `json:"canonical_found,omitempty"`
}

// Section returns the analysis section for a field, or nil.
func (r *AnalysisReport) Section(field string) *FieldAnalysis {
	if r == nil {
		return nil
	}
	for i := range r.Fields {
		if r.Fields[i].Field == field {
			return &r.Fields[i]
		}
	}
	return nil
}

// Profile returns the numeric profile for a field, or nil.
func (r *AnalysisReport) Profile(field string) *NumericProfile {
	if r == nil {
		return nil
	}
	for i := range r.NumericProfiles {
		if r.NumericProfiles[i].Field == field {
			return &r.NumericProfiles[i]
		}
	}
	return nil
}
