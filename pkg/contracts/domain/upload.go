package domain

import (
	"time"
)

// FileStatus is the ingest outcome for a single uploaded workbook.
type FileStatus string

const (
	// FileStatusProcessed means rows were extracted and consolidated.
	FileStatusProcessed FileStatus = "processed"
	// FileStatusNoHeaders means no registry header matched; the file was
	// skipped without counting as a failure.
	FileStatusNoHeaders FileStatus = "no_headers"
	// FileStatusFailed means the workbook could not be read.
	FileStatusFailed FileStatus = "failed"
	// FileStatusPending means the file is staged but not yet ingested.
	FileStatusPending FileStatus = "pending"
)

// BatchState is the lifecycle state of an upload batch.
type BatchState string

const (
	BatchStatePending    BatchState = "pending"
	BatchStateProcessing BatchState = "processing"
	BatchStateCompleted  BatchState = "completed"
	BatchStateFailed     BatchState = "failed"
)

// FileResult records the per-file outcome of a batch ingest.
// A failed file never fails its batch; the error rides along here.
type FileResult struct {
	FileName         string     `json:"file_name"`
	Status           FileStatus `json:"status"`
	SizeBytes        int64      `json:"size_bytes"`
	Fingerprint      string     `json:"fingerprint,omitempty"`
	Duplicate        bool       `json:"duplicate,omitempty"`
	FileHeaders      []string   `json:"file_headers,omitempty"`
	CanonicalHeaders []string   `json:"canonical_headers,omitempty"`
	RowCount         int        `json:"row_count"`
	Error            string     `json:"error,omitempty"`
}

// UploadBatch is one upload action: its files, states, and counters.
type UploadBatch struct {
	ID             string       `json:"id" validate:"required,uuid"`
	State          BatchState   `json:"state"`
	ReceivedFiles  int          `json:"received_files"`
	ProcessedFiles int          `json:"processed_files"`
	TotalRows      int          `json:"total_rows"`
	Files          []FileResult `json:"files"`
	JobID          string       `json:"job_id,omitempty"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	StartedAt      *time.Time   `json:"started_at,omitempty"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

// Done reports whether the batch reached a terminal state.
func (b *UploadBatch) Done() bool {
	return b.State == BatchStateCompleted || b.State == BatchStateFailed
}

// CountByStatus returns how many files ended in the given status.
func (b *UploadBatch) CountByStatus(status FileStatus) int {
	n := 0
	for _, f := range b.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// FileResultFor returns the result for a file name, or nil.
func (b *UploadBatch) FileResultFor(name string) *FileResult {
	for i := range b.Files {
		if b.Files[i].FileName == name {
			return &b.Files[i]
		}
	}
	return nil
}
