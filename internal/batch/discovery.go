// Package batch drives the per-file pipeline: discover inputs, parse them,
// validate, transform through a calculator and write results, aggregating one
// outcome per file or per part block into a final report.
package batch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	apperrors "github.com/least106/MomentTransfer/internal/errors"
)

// FileInfo describes one discovered input file.
type FileInfo struct {
	Path string
	Name string
	Size int64
}

// DefaultPattern is used when a directory is scanned without an explicit
// file pattern.
const DefaultPattern = "*.csv"

// Discover resolves the input into a work list. A file path yields exactly
// that file; a directory is walked recursively and base names are matched
// against pattern. The result is sorted by path so runs are reproducible.
func Discover(input, pattern string) ([]FileInfo, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePath, err, "cannot access input %q", input)
	}

	if !info.IsDir() {
		return []FileInfo{{Path: input, Name: filepath.Base(input), Size: info.Size()}}, nil
	}

	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, apperrors.Wrap(apperrors.CodePath, err, "invalid file pattern %q", pattern)
	}

	var files []FileInfo
	walkErr := filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, _ := filepath.Match(pattern, d.Name())
		if !ok {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, Name: d.Name(), Size: fi.Size()})
		return nil
	})
	if walkErr != nil {
		return nil, apperrors.Wrap(apperrors.CodePath, walkErr, "cannot scan directory %q", input)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
