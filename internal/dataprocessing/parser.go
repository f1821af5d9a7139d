package dataprocessing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"fundlens/internal/config"
	"fundlens/internal/errors"
	"fundlens/pkg/contracts/domain"
)

// FileExtract is the outcome of reading one workbook: which registry columns
// it matched and the rows extracted below the header.
type FileExtract struct {
	SourceFile string
	Status     domain.FileStatus
	SheetName  string

	// HeaderRow is the 1-based position of the detected header row, or 0
	// when no registry column matched.
	HeaderRow int

	// FileHeaders holds the matched spellings as they appear in the sheet
	// (whitespace trimmed, periods removed, case preserved), aligned with
	// CanonicalHeaders.
	FileHeaders      []string
	CanonicalHeaders []string

	Records []domain.Record
}

// RowCount returns the number of extracted data rows.
func (e *FileExtract) RowCount() int {
	if e == nil {
		return 0
	}
	return len(e.Records)
}

// Parser extracts registry columns from uploaded workbooks.
type Parser struct {
	logger   *slog.Logger
	scanRows int
}

// NewParser creates a workbook parser. scanRows bounds how many leading rows
// are searched for the header row; values <= 0 fall back to the default.
func NewParser(logger *slog.Logger, scanRows int) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if scanRows <= 0 {
		scanRows = config.DefaultHeaderScanRows
	}
	return &Parser{logger: logger, scanRows: scanRows}
}

// ExtractFile reads the workbook at path and extracts every registry column
// it can match. A workbook without any registry column is not an error; the
// extract comes back with status no_headers.
func (p *Parser) ExtractFile(ctx context.Context, path string) (*FileExtract, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to open workbook %q", filepath.Base(path)), err)
	}
	defer f.Close()

	return p.extract(ctx, filepath.Base(path), f)
}

// ExtractReader extracts registry columns from a workbook supplied as a
// stream, typically an uploaded multipart part. name is used for reporting
// and provenance only.
func (p *Parser) ExtractReader(ctx context.Context, name string, r io.Reader) (*FileExtract, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to read workbook %q", name), err)
	}
	defer f.Close()

	return p.extract(ctx, name, f)
}

func (p *Parser) extract(ctx context.Context, name string, f *excelize.File) (*FileExtract, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewParsingError(fmt.Sprintf("workbook %q contains no sheets", name), nil)
	}

	// Data always lives on the first sheet of a fund register export.
	sheetName := sheets[0]
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to read sheet %q of workbook %q", sheetName, name), err)
	}

	extract := &FileExtract{
		SourceFile: name,
		SheetName:  sheetName,
	}

	// Locate the header row: the first row in the scan window where at
	// least one cell matches the registry. Exports often carry title or
	// date rows above the real header.
	headerIdx := -1
	columnMap := make(map[string]int)
	spellings := make(map[string]string)

	scanLimit := p.scanRows
	if scanLimit > len(rows) {
		scanLimit = len(rows)
	}

	for i := 0; i < scanLimit; i++ {
		for j, cell := range rows[i] {
			canonical, ok := MatchHeader(cell)
			if !ok {
				continue
			}
			// First match wins when a file carries duplicate case
			// variants of one header.
			if _, seen := columnMap[canonical]; seen {
				continue
			}
			columnMap[canonical] = j
			spellings[canonical] = NormalizeHeader(cell)
		}
		if len(columnMap) > 0 {
			headerIdx = i
			break
		}
	}

	if headerIdx == -1 {
		extract.Status = domain.FileStatusNoHeaders
		p.logger.InfoContext(ctx, "no registry headers found in workbook",
			slog.String("file", name),
			slog.String("sheet", sheetName),
			slog.Int("rows_scanned", scanLimit))
		return extract, nil
	}

	matched := make([]string, 0, len(columnMap))
	for canonical := range columnMap {
		matched = append(matched, canonical)
	}
	ordered := OrderColumns(matched)

	extract.Status = domain.FileStatusProcessed
	extract.HeaderRow = headerIdx + 1
	extract.CanonicalHeaders = ordered
	extract.FileHeaders = make([]string, len(ordered))
	for i, canonical := range ordered {
		extract.FileHeaders[i] = spellings[canonical]
	}

	// Every row below the header is a data row. Short rows are padded with
	// empty cells; fully empty rows are kept because they carry missing
	// values the analyzer counts.
	extract.Records = make([]domain.Record, 0, len(rows)-headerIdx-1)
	for _, row := range rows[headerIdx+1:] {
		record := make(domain.Record, len(ordered))
		for _, canonical := range ordered {
			value := ""
			if idx := columnMap[canonical]; idx < len(row) {
				value = strings.TrimSpace(row[idx])
			}
			record[canonical] = value
		}
		extract.Records = append(extract.Records, record)
	}

	p.logger.InfoContext(ctx, "extracted registry columns from workbook",
		slog.String("file", name),
		slog.String("sheet", sheetName),
		slog.Int("header_row", extract.HeaderRow),
		slog.Int("columns", len(ordered)),
		slog.Int("rows", len(extract.Records)))

	return extract, nil
}
