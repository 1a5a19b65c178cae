// Package validation guards the batch pipeline against unsafe paths,
// oversized inputs and tables that do not match the declared column mapping.
// Every failure here is scoped to one file and converts to a failed outcome,
// except when raised during configuration load.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/least106/MomentTransfer/internal/errors"
	"github.com/least106/MomentTransfer/internal/parser"
	"github.com/least106/MomentTransfer/pkg/contracts/domain"
)

// Limits applied when the caller passes zero values.
const (
	DefaultMaxFileBytes int64 = 1 << 30 // 1 GiB
	DefaultMaxRows            = 1_000_000
)

// Validator checks paths, file sizes and table schemas before any row work
// starts.
type Validator struct {
	logger *slog.Logger

	// permittedRoots confines validated paths. Empty means any absolute
	// path is acceptable as long as it contains no traversal.
	permittedRoots []string

	maxFileBytes int64
	maxRows      int
}

// New creates a validator. Zero limits fall back to the defaults; roots are
// resolved to absolute paths once so later comparisons are cheap.
func New(logger *slog.Logger, permittedRoots []string, maxFileBytes int64, maxRows int) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	roots := make([]string, 0, len(permittedRoots))
	for _, r := range permittedRoots {
		if abs, err := filepath.Abs(r); err == nil {
			roots = append(roots, abs)
		}
	}

	return &Validator{
		logger:         logger,
		permittedRoots: roots,
		maxFileBytes:   maxFileBytes,
		maxRows:        maxRows,
	}
}

// ValidatePath normalizes the path and rejects traversal outside the
// permitted roots. Returns the absolute path on success.
func (v *Validator) ValidatePath(path string, mustExist, writable bool) (string, error) {
	if path == "" {
		return "", apperrors.New(apperrors.CodePath, "empty path")
	}

	// Traversal is checked on the raw input, before cleaning folds it away.
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return "", apperrors.New(apperrors.CodePath,
				"path %q contains a parent-directory reference", path)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodePath, err, "cannot resolve %q", path)
	}

	if len(v.permittedRoots) > 0 && !v.underPermittedRoot(abs) {
		return "", apperrors.New(apperrors.CodePath,
			"path %q is outside the permitted roots", path)
	}

	info, statErr := os.Stat(abs)
	if mustExist && statErr != nil {
		return "", apperrors.Wrap(apperrors.CodePath, statErr, "path %q does not exist", path)
	}

	if writable {
		dir := abs
		if statErr == nil && !info.IsDir() {
			dir = filepath.Dir(abs)
		} else if statErr != nil {
			dir = filepath.Dir(abs)
		}
		if err := probeWritable(dir); err != nil {
			return "", apperrors.Wrap(apperrors.CodePath, err,
				"directory %q is not writable", dir)
		}
	}

	return abs, nil
}

// ValidateFileSize rejects files larger than the configured bound.
func (v *Validator) ValidateFileSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePath, err, "cannot stat %q", path)
	}
	if info.IsDir() {
		return apperrors.New(apperrors.CodePath, "%q is a directory, not a file", path)
	}
	if info.Size() > v.maxFileBytes {
		return apperrors.New(apperrors.CodeSize,
			"file %q is %d bytes, limit is %d", path, info.Size(), v.maxFileBytes)
	}
	return nil
}

// ValidateRowCount rejects tables above the configured row bound.
func (v *Validator) ValidateRowCount(path string, rows int) error {
	if rows > v.maxRows {
		return apperrors.New(apperrors.CodeSize,
			"file %q has %d rows, limit is %d", path, rows, v.maxRows)
	}
	return nil
}

// ValidateColumns checks that every required mapped column exists within the
// sampled rows. A column is rejected as non-numeric only when none of its
// sampled cells parses as a number; isolated bad cells are left to the
// per-row non-numeric policy. sample holds data rows only, with any header
// already removed.
func (v *Validator) ValidateColumns(columns domain.ColumnMap, sample [][]string) error {
	if len(sample) == 0 {
		return apperrors.New(apperrors.CodeSchema, "no data rows to validate")
	}

	var missing, nonNumeric []string
	for name, idx := range columns.Required() {
		if idx == nil {
			missing = append(missing, name)
			continue
		}
		anyNumeric := false
		for _, row := range sample {
			if *idx >= len(row) {
				missing = append(missing, fmt.Sprintf("%s (index %d beyond row width %d)", name, *idx, len(row)))
				anyNumeric = true
				break
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(row[*idx]), 64); err == nil {
				anyNumeric = true
				break
			}
		}
		if !anyNumeric {
			nonNumeric = append(nonNumeric, name)
		}
	}

	if len(missing) > 0 {
		return apperrors.New(apperrors.CodeSchema,
			"required columns missing or out of range: %s", strings.Join(missing, ", "))
	}
	if len(nonNumeric) > 0 {
		return apperrors.New(apperrors.CodeSchema,
			"required columns have no numeric values in the sampled rows: %s", strings.Join(nonNumeric, ", "))
	}
	return nil
}

// ValidateTable checks a parsed multi-block table for the named columns.
func (v *Validator) ValidateTable(t *parser.Table, required []string) error {
	var missing []string
	for _, name := range required {
		if t.ColumnIndex(name) < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return apperrors.New(apperrors.CodeSchema,
			"table is missing columns: %s (has: %s)",
			strings.Join(missing, ", "), strings.Join(t.Columns, ", "))
	}
	return nil
}

// ValidateOutputDirectory creates the directory when absent and probes that
// it is writable.
func (v *Validator) ValidateOutputDirectory(dir string) error {
	abs, err := v.ValidatePath(dir, false, false)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodePath, err,
			"cannot create output directory %q", dir)
	}
	if err := probeWritable(abs); err != nil {
		return apperrors.Wrap(apperrors.CodePath, err,
			"output directory %q is not writable", dir)
	}
	v.logger.Debug("output directory validated", slog.String("directory", abs))
	return nil
}

func (v *Validator) underPermittedRoot(abs string) bool {
	for _, root := range v.permittedRoots {
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)) {
			return true
		}
	}
	return false
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write_probe_*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
