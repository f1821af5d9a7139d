// Package api contains API contract definitions for FundLens.
// Version v1 represents the current stable API version.
package api

// Upload API Requests

// BatchListRequest represents a request to list upload batches
type BatchListRequest struct {
	State  string `json:"state" query:"state" validate:"omitempty,oneof=pending processing completed failed"`
	Limit  int    `json:"limit" query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int    `json:"offset" query:"offset" validate:"omitempty,min=0"`
}

// BatchDetailRequest represents a request for one batch
type BatchDetailRequest struct {
	BatchID string `json:"batch_id" param:"batchID" validate:"required,uuid"`
}

// Analysis API Requests

// AnalysisRequest selects the batch whose report is returned. An empty
// Batch means the most recent completed batch.
type AnalysisRequest struct {
	Batch string `json:"batch" query:"batch" validate:"omitempty,uuid"`
}

// FieldRequest addresses one registry field's distribution or chart.
type FieldRequest struct {
	Batch string `json:"batch" query:"batch" validate:"omitempty,uuid"`
	Field string `json:"field" param:"field" validate:"required,fieldname"`
}

// Data API Requests

// DataPreviewRequest represents a consolidated-data page request
type DataPreviewRequest struct {
	Batch  string `json:"batch" query:"batch" validate:"omitempty,uuid"`
	Limit  int    `json:"limit" query:"limit" validate:"omitempty,min=1,max=1000"`
	Offset int    `json:"offset" query:"offset" validate:"omitempty,min=0"`
}

// Export API Requests

// ExportRequest represents a dataset download request
type ExportRequest struct {
	Batch  string `json:"batch" query:"batch" validate:"omitempty,uuid"`
	Format string `json:"format" validate:"required,oneof=csv xlsx"`
}
