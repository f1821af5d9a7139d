package validation

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"fundlens/internal/config"
	"fundlens/internal/errors"
)

// maxFilenameBytes caps client-supplied names before they touch the disk.
const maxFilenameBytes = 255

// UploadValidator checks multipart upload parts before staging.
// All failures are validation errors, surfaced to the client as 400s.
type UploadValidator struct {
	logger *slog.Logger
	cfg    config.UploadConfig
}

// NewUploadValidator creates an upload validator. Zero limits fall back to
// the application defaults.
func NewUploadValidator(cfg config.UploadConfig, logger *slog.Logger) *UploadValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = config.DefaultMaxFileSize
	}
	if cfg.MaxFilesPerBatch <= 0 {
		cfg.MaxFilesPerBatch = config.DefaultMaxFilesPerBatch
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{config.ExtXLSX, config.ExtXLS}
	}
	return &UploadValidator{
		logger: logger,
		cfg:    cfg,
	}
}

// ValidateBatchCount checks the number of files in one upload request.
func (v *UploadValidator) ValidateBatchCount(count int) error {
	if count == 0 {
		return errors.NewAppValidationError("no files in upload")
	}
	if count > v.cfg.MaxFilesPerBatch {
		return errors.NewAppValidationError(fmt.Sprintf(
			"upload has %d files, over the limit of %d per batch", count, v.cfg.MaxFilesPerBatch))
	}
	return nil
}

// SanitizeFilename reduces a client-supplied name to a safe base name.
// Browsers may send full paths; both separator styles are stripped.
func (v *UploadValidator) SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	if name == "" || name == "." || name == ".." {
		return "", errors.NewAppValidationError("file name is missing or invalid")
	}
	if len(name) > maxFilenameBytes {
		return "", errors.NewAppValidationError(fmt.Sprintf(
			"file name exceeds %d bytes", maxFilenameBytes))
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return "", errors.NewAppValidationError("file name contains control characters")
		}
	}

	return name, nil
}

// ValidateFilename checks that a sanitized name is an ingestable workbook.
func (v *UploadValidator) ValidateFilename(name string) error {
	if strings.HasPrefix(name, config.TempWorkbookPrefix) {
		return errors.NewAppValidationError(fmt.Sprintf(
			"'%s' is an Excel lock file, not a workbook", name))
	}

	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range v.cfg.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return errors.NewAppValidationError(fmt.Sprintf(
		"'%s' has unsupported extension '%s' (allowed: %s)",
		name, ext, strings.Join(v.cfg.AllowedExtensions, ", ")))
}

// ValidateSize checks the declared part size against the configured limit.
func (v *UploadValidator) ValidateSize(name string, size int64) error {
	if size <= 0 {
		return errors.NewAppValidationError(fmt.Sprintf("'%s' is empty", name))
	}
	if size > v.cfg.MaxFileSize {
		return errors.NewAppValidationError(fmt.Sprintf(
			"'%s' is %d bytes, over the limit of %d", name, size, v.cfg.MaxFileSize))
	}
	return nil
}

// ValidatePart runs the full check sequence for one upload part and
// returns the sanitized file name to stage under.
func (v *UploadValidator) ValidatePart(name string, size int64) (string, error) {
	clean, err := v.SanitizeFilename(name)
	if err != nil {
		return "", err
	}
	if err := v.ValidateFilename(clean); err != nil {
		return "", err
	}
	if err := v.ValidateSize(clean, size); err != nil {
		return "", err
	}

	v.logger.Debug("Upload part validated",
		slog.String("file", clean),
		slog.Int64("size_bytes", size))
	return clean, nil
}
