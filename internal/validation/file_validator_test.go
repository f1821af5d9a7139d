package validation

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := NewFileValidator(logger)

	tests := []struct {
		name      string
		setupFunc func(t *testing.T) string
		wantErr   bool
	}{
		{
			name: "existing directory",
			setupFunc: func(t *testing.T) string {
				return t.TempDir()
			},
			wantErr: false,
		},
		{
			name: "missing directory gets created",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nested", "reports")
			},
			wantErr: false,
		},
		{
			name: "path is a file",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "blocker")
				require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
				return file
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setupFunc(t)
			err := v.ValidateOutputDirectory(dir)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			// directory usable after validation
			info, statErr := os.Stat(dir)
			require.NoError(t, statErr)
			assert.True(t, info.IsDir())
		})
	}
}
