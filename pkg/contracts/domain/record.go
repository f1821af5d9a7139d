package domain

import (
	"time"
)

// SourceFileColumn is the provenance column appended to every consolidated
// record. It is always the last column of a dataset.
const SourceFileColumn = "Source File"

// Record is one consolidated row, keyed by canonical header name.
// Cells that a source file did not provide are absent from the map and
// read back as empty strings.
type Record map[string]string

// Get returns the cell value for a column, or "" when the record has none.
func (r Record) Get(column string) string {
	return r[column]
}

// SourceFile returns the name of the workbook this record came from.
func (r Record) SourceFile() string {
	return r[SourceFileColumn]
}

// FileProvenance describes one workbook's contribution to a dataset.
type FileProvenance struct {
	FileName         string   `json:"file_name"`
	RowCount         int      `json:"row_count"`
	FileHeaders      []string `json:"file_headers"`      // spellings as found in the workbook
	CanonicalHeaders []string `json:"canonical_headers"` // registry spellings
}

// Dataset is the consolidated table built from one upload batch.
// Columns hold canonical header names with SourceFileColumn last; Records
// preserve file order, then row order within each file.
type Dataset struct {
	Columns   []string         `json:"columns"`
	Records   []Record         `json:"records"`
	Sources   []FileProvenance `json:"sources"`
	CreatedAt time.Time        `json:"created_at"`
}

// Empty reports whether the dataset holds no consolidated rows.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Records) == 0
}

// RowCount returns the number of consolidated rows.
func (d *Dataset) RowCount() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// HasColumn reports whether the dataset contains the named column.
func (d *Dataset) HasColumn(name string) bool {
	if d == nil {
		return false
	}
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ColumnValues returns the column's cell values aligned with Records.
// Records without the column contribute an empty string.
func (d *Dataset) ColumnValues(name string) []string {
	if d == nil {
		return nil
	}
	values := make([]string, len(d.Records))
	for i, rec := range d.Records {
		values[i] = rec.Get(name)
	}
	return values
}

// Head returns up to n leading records, for previews.
func (d *Dataset) Head(n int) []Record {
	if d == nil || n <= 0 {
		return nil
	}
	if n > len(d.Records) {
		n = len(d.Records)
	}
	return d.Records[:n]
}
