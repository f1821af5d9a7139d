// Package dataprocessing implements the FundLens ingest pipeline: extracting
// registry columns from uploaded workbooks, consolidating them into a single
// dataset, and computing the descriptive analysis served by the API.
//
// # Pipeline Flow
//
//	Workbook (.xlsx/.xls) -> Parser -> FileExtract -> Consolidate -> Dataset -> Analyzer -> AnalysisReport
//
// # Components
//
// Headers (headers.go): the canonical registry of fund data columns and the
// normalization rules used to match workbook spellings against it. Matching
// trims whitespace, strips periods, and ignores case, so "DOMICILE", " domicile "
// and "Dom.icile" all resolve to the canonical "Domicile".
//
// Parser (parser.go): opens a workbook with excelize, locates the header row
// within a bounded scan window, maps matched columns by position, and extracts
// every data row below the header. Files where no registry column matches are
// reported as no_headers rather than failing the batch.
//
// Consolidator (consolidator.go): appends per-file extracts into one Dataset
// in upload order, merging case variants of the same column and tagging every
// row with its source file name.
//
// Analyzer (analyzer.go): computes value distributions, top values, unique
// counts, chart series, and numeric profiles over the consolidated dataset.
//
// # Usage Example
//
//	parser := dataprocessing.NewParser(logger, 10)
//	extract, err := parser.ExtractFile(ctx, "funds_q1.xlsx")
//	if err != nil {
//		return err
//	}
//	dataset := dataprocessing.Consolidate([]*dataprocessing.FileExtract{extract})
//	report := dataprocessing.NewAnalyzer(logger).Analyze(ctx, dataset)
package dataprocessing
