package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name   string
		appErr *AppError
		want   string
	}{
		{
			name:   "without cause",
			appErr: NewAppError(ErrTypeValidation, "file name contains path separators", nil),
			want:   "[VALIDATION] file name contains path separators",
		},
		{
			name:   "with cause",
			appErr: NewAppError(ErrTypeParsing, "cannot open workbook", fmt.Errorf("zip: not a valid zip file")),
			want:   "[PARSING] cannot open workbook: zip: not a valid zip file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("cannot stage file", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestAppError_Unwrap_NoCause(t *testing.T) {
	err := NewAppValidationError("bad input")
	assert.Nil(t, err.Unwrap())
}

func TestAppError_As(t *testing.T) {
	var target *AppError
	wrapped := fmt.Errorf("ingest: %w", NewParsingError("bad sheet", nil))

	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, ErrTypeParsing, target.Type)
}

func TestAppError_WithContext(t *testing.T) {
	err := NewParsingError("cannot read sheet", nil).
		WithContext("file", "funds.xlsx").
		WithContext("sheet", "Sheet1")

	assert.Equal(t, "funds.xlsx", err.Context["file"])
	assert.Equal(t, "Sheet1", err.Context["sheet"])
}

func TestAppError_WithContext_NilMap(t *testing.T) {
	err := &AppError{Type: ErrTypeStorage, Message: "boom"}
	err.WithContext("key", "value")
	assert.Equal(t, "value", err.Context["key"])
}

func TestErrorConstructors(t *testing.T) {
	cause := errors.New("underlying")

	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
	}{
		{"parsing", NewParsingError("m", cause), ErrTypeParsing},
		{"storage", NewStorageError("m", cause), ErrTypeStorage},
		{"validation", NewAppValidationError("m"), ErrTypeValidation},
		{"not found", NewNotFoundError("batch"), ErrTypeNotFound},
		{"permission", NewPermissionError("m"), ErrTypePermission},
		{"config", NewConfigError("m", cause), ErrTypeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.NotNil(t, tt.err.Context)
		})
	}
}

func TestNewNotFoundError_Message(t *testing.T) {
	err := NewNotFoundError("upload batch")
	assert.Equal(t, "[NOT_FOUND] upload batch not found", err.Error())
}
