package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fundlens/internal/config"
)

// Staging manages the per-batch upload directories
type Staging struct {
	paths *config.Paths
}

// NewStaging creates a staging manager over the configured uploads directory
func NewStaging(paths *config.Paths) *Staging {
	return &Staging{paths: paths}
}

// BatchDir returns the staging directory for a batch
func (s *Staging) BatchDir(batchID string) string {
	return s.paths.GetBatchUploadDir(batchID)
}

// StagedPath returns the staged location for a workbook within a batch
func (s *Staging) StagedPath(batchID, filename string) string {
	return s.paths.GetUploadPath(batchID, filename)
}

// Stage writes an uploaded workbook into the batch directory and returns
// the staged path with the number of bytes written. The filename must be a
// bare name; anything carrying path separators is rejected.
func (s *Staging) Stage(batchID, filename string, r io.Reader) (string, int64, error) {
	if filename != filepath.Base(filename) || filename == "." || filename == "" {
		return "", 0, fmt.Errorf("invalid staged filename %q", filename)
	}

	dir := s.BatchDir(batchID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create batch directory: %w", err)
	}

	dstPath := filepath.Join(dir, filename)

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create staged file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, r)
	if err != nil {
		os.Remove(dstPath)
		return "", 0, fmt.Errorf("failed to write staged file: %w", err)
	}

	if err := dst.Sync(); err != nil {
		return "", 0, fmt.Errorf("failed to sync staged file: %w", err)
	}

	slog.Debug("Staged uploaded workbook",
		slog.String("batch_id", batchID),
		slog.String("file", filename),
		slog.Int64("size_bytes", written))

	return dstPath, written, nil
}

// StagedFiles lists the workbooks staged for a batch, sorted by name
func (s *Staging) StagedFiles(batchID string) ([]FileInfo, error) {
	dir := s.BatchDir(batchID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch directory %s: %w", dir, err)
	}

	var staged []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsWorkbook(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		staged = append(staged, FileInfo{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(staged, func(i, j int) bool {
		return staged[i].Name < staged[j].Name
	})

	return staged, nil
}

// BatchExists reports whether the batch has a staging directory
func (s *Staging) BatchExists(batchID string) bool {
	info, err := os.Stat(s.BatchDir(batchID))
	return err == nil && info.IsDir()
}

// RemoveBatch deletes a batch's staging directory and everything in it.
// The resolved directory must stay under the uploads root.
func (s *Staging) RemoveBatch(batchID string) error {
	if strings.TrimSpace(batchID) == "" {
		return fmt.Errorf("batch id is empty")
	}

	dir := filepath.Clean(s.BatchDir(batchID))
	root := filepath.Clean(s.paths.UploadsDir)
	if dir == root || !strings.HasPrefix(dir, root+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s: outside uploads directory", dir)
	}

	slog.Info("Removing batch staging directory",
		slog.String("batch_id", batchID),
		slog.String("dir", dir))

	return os.RemoveAll(dir)
}
