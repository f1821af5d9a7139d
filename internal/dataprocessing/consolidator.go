package dataprocessing

import (
	"time"

	"fundlens/pkg/contracts/domain"
)

// Consolidate merges per-file extracts into a single dataset. Rows are
// appended in extract order, then row order within each file, and every row
// is tagged with its source file name. Case variants of one header merge
// into a single canonical column. Extracts that did not reach processed
// status contribute nothing.
//
// The dataset column order is priority headers first, then the union of
// matched headers in registry order, with the source file column last.
func Consolidate(extracts []*FileExtract) *domain.Dataset {
	dataset := &domain.Dataset{CreatedAt: time.Now()}

	union := make([]string, 0)
	seen := make(map[string]bool)
	totalRows := 0

	for _, extract := range extracts {
		if extract == nil || extract.Status != domain.FileStatusProcessed {
			continue
		}
		for _, canonical := range extract.CanonicalHeaders {
			if !seen[canonical] {
				seen[canonical] = true
				union = append(union, canonical)
			}
		}
		totalRows += len(extract.Records)

		dataset.Sources = append(dataset.Sources, domain.FileProvenance{
			FileName:         extract.SourceFile,
			RowCount:         len(extract.Records),
			FileHeaders:      extract.FileHeaders,
			CanonicalHeaders: extract.CanonicalHeaders,
		})
	}

	if len(union) > 0 {
		dataset.Columns = append(OrderColumns(union), domain.SourceFileColumn)
	}

	dataset.Records = make([]domain.Record, 0, totalRows)
	for _, extract := range extracts {
		if extract == nil || extract.Status != domain.FileStatusProcessed {
			continue
		}
		for _, row := range extract.Records {
			// Copy so extracts stay untouched for per-file reporting.
			record := make(domain.Record, len(row)+1)
			for column, value := range row {
				record[column] = value
			}
			record[domain.SourceFileColumn] = extract.SourceFile
			dataset.Records = append(dataset.Records, record)
		}
	}

	return dataset
}
