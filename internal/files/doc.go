// Package files handles workbook files on disk: discovery of spreadsheets
// for the CLI's directory mode and staging of uploaded workbooks into
// per-batch directories for the web flow.
//
// Discovery resolves -in arguments (files or directories) into a stable,
// name-ordered workbook list. Staging owns the layout under the uploads
// directory: one subdirectory per batch, removed as a unit when the batch
// is deleted.
package files
