package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fundlens/internal/config"
)

// FileInfo represents information about a discovered workbook
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery provides workbook discovery operations
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new discovery instance. Relative directories are
// resolved against basePath; an empty basePath leaves them as given.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// IsWorkbook reports whether the name looks like an ingestable spreadsheet.
// Excel lock files (the "~$" prefix) are excluded.
func IsWorkbook(name string) bool {
	if strings.HasPrefix(name, config.TempWorkbookPrefix) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == config.ExtXLSX || ext == config.ExtXLS
}

// FindWorkbooks finds all spreadsheets in the specified directory,
// sorted by name so ingest order is stable across runs.
func (d *Discovery) FindWorkbooks(dir string) ([]FileInfo, error) {
	fullPath := dir
	if !filepath.IsAbs(dir) && d.basePath != "" {
		fullPath = filepath.Join(d.basePath, dir)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var found []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsWorkbook(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		found = append(found, FileInfo{
			Path:    filepath.Join(fullPath, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Name < found[j].Name
	})

	return found, nil
}

// ExpandInputs resolves a list of files and directories into workbooks.
// Directories contribute their workbooks in name order; explicit files must
// exist and carry a spreadsheet extension.
func (d *Discovery) ExpandInputs(inputs []string) ([]FileInfo, error) {
	var expanded []FileInfo
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		fullPath := input
		if !filepath.IsAbs(input) && d.basePath != "" {
			fullPath = filepath.Join(d.basePath, input)
		}

		info, err := os.Stat(fullPath)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", input, err)
		}

		if info.IsDir() {
			found, err := d.FindWorkbooks(fullPath)
			if err != nil {
				return nil, err
			}
			expanded = append(expanded, found...)
			continue
		}

		if !IsWorkbook(info.Name()) {
			return nil, fmt.Errorf("input %s is not a spreadsheet (.xlsx or .xls)", input)
		}

		expanded = append(expanded, FileInfo{
			Path:    fullPath,
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return expanded, nil
}
