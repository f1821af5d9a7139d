// Package events contains event contract definitions for WebSocket
// communication in FundLens.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Batch lifecycle events
	MessageTypeBatchQueued    MessageType = "batch:queued"
	MessageTypeBatchProgress  MessageType = "batch:progress"
	MessageTypeBatchCompleted MessageType = "batch:completed"
	MessageTypeBatchFailed    MessageType = "batch:failed"

	// Per-file ingest events
	MessageTypeFileProcessing MessageType = "file:processing"
	MessageTypeFileDone       MessageType = "file:done"

	// Connection messages
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
	MessageTypeError      MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// BatchQueued announces that a batch was staged and its ingest job queued.
type BatchQueued struct {
	BatchID    string `json:"batch_id"`
	JobID      string `json:"job_id"`
	TotalFiles int    `json:"total_files"`
}

// FileProcessing announces that one workbook started parsing.
type FileProcessing struct {
	BatchID  string `json:"batch_id"`
	FileName string `json:"file_name"`
}

// FileDone carries the outcome of one workbook. Status matches
// domain.FileStatus values.
type FileDone struct {
	BatchID  string   `json:"batch_id"`
	FileName string   `json:"file_name"`
	Status   string   `json:"status"`
	RowCount int      `json:"row_count"`
	Headers  []string `json:"headers,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// BatchProgress is emitted once per completed file, mirroring a progress
// bar: Percent always reaches 100 even when files fail.
type BatchProgress struct {
	BatchID   string  `json:"batch_id"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// BatchCompleted closes a batch's event stream.
type BatchCompleted struct {
	BatchID        string `json:"batch_id"`
	ProcessedFiles int    `json:"processed_files"`
	TotalRows      int    `json:"total_rows"`
	Warning        string `json:"warning,omitempty"`
}

// BatchFailed reports a batch-level failure (staging or storage, never a
// single bad workbook).
type BatchFailed struct {
	BatchID string `json:"batch_id"`
	Error   string `json:"error"`
}

// ErrorMessage represents an error message
type ErrorMessage struct {
	BaseMessage
	Data struct {
		Code    string      `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
		Retry   bool        `json:"retry"`
	} `json:"data"`
}

// NewMessage wraps a payload in the standard envelope.
func NewMessage(msgType MessageType, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		BaseMessage: BaseMessage{
			Type:      msgType,
			Timestamp: time.Now().UTC(),
		},
		Data: data,
	}
}
