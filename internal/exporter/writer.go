// Package exporter writes result tables as CSV. Concurrent workers share an
// output directory, so every write happens under a per-directory advisory
// file lock with a bounded acquisition timeout.
package exporter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	apperrors "github.com/least106/MomentTransfer/internal/errors"
	"github.com/least106/MomentTransfer/pkg/contracts/domain"
)

const (
	lockFileName      = ".momenttransfer.lock"
	lockRetryInterval = 25 * time.Millisecond

	// DefaultLockTimeout bounds how long a worker waits for the output lock.
	DefaultLockTimeout = 30 * time.Second

	// maxSuffixProbes bounds collision-suffix probing.
	maxSuffixProbes = 1000
)

// Options controls naming and collision behavior for one write.
type Options struct {
	// Template names the output file. {stem} expands to the input file
	// stem, {timestamp} to the current time in TimestampFormat.
	Template        string
	TimestampFormat string

	// Overwrite replaces an existing file instead of probing a new name.
	Overwrite bool
}

// Writer serializes CSV output into a shared directory.
type Writer struct {
	logger      *slog.Logger
	lockTimeout time.Duration
	now         func() time.Time
}

// New creates a writer. A zero timeout uses DefaultLockTimeout.
func New(logger *slog.Logger, lockTimeout time.Duration) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Writer{logger: logger, lockTimeout: lockTimeout, now: time.Now}
}

// Write renders the output name from stem and opts, acquires the directory
// lock, resolves collisions and writes headers plus records as one CSV file.
// Returns the path actually written.
func (w *Writer) Write(ctx context.Context, dir, stem string, headers []string, records [][]string, opts Options) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Wrap(apperrors.CodePath, err, "cannot create output directory %q", dir)
	}

	unlock, err := w.acquireLock(ctx, dir)
	if err != nil {
		return "", err
	}
	defer unlock()

	path, err := w.resolveTarget(dir, stem, opts)
	if err != nil {
		return "", err
	}

	if err := writeCSV(path, headers, records); err != nil {
		return "", err
	}

	w.logger.Debug("wrote output file",
		slog.String("path", path),
		slog.Int("rows", len(records)))
	return path, nil
}

// Stream writes one output file incrementally, for chunked processing of
// large inputs. The stream owns its file exclusively once the name is
// resolved, so appends run without holding the directory lock.
type Stream struct {
	path string
	f    *os.File
	csv  *csv.Writer
}

// OpenStream resolves the output name and creates the file under the
// directory lock, then releases the lock before returning. The file exists
// by the time the lock drops, so concurrent streams probing the same stem
// land on suffixed names instead of this one.
func (w *Writer) OpenStream(ctx context.Context, dir, stem string, headers []string, opts Options) (*Stream, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CodePath, err, "cannot create output directory %q", dir)
	}

	unlock, err := w.acquireLock(ctx, dir)
	if err != nil {
		return nil, err
	}

	path, err := w.resolveTarget(dir, stem, opts)
	if err != nil {
		unlock()
		return nil, err
	}

	f, err := os.Create(path)
	unlock()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePath, err, "cannot create %q", path)
	}
	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		f.Close()
		return nil, apperrors.Wrap(apperrors.CodePath, err, "cannot write to %q", path)
	}

	cw := csv.NewWriter(f)
	if len(headers) > 0 {
		if err := cw.Write(headers); err != nil {
			f.Close()
			return nil, apperrors.Wrap(apperrors.CodePath, err, "cannot write header to %q", path)
		}
	}

	return &Stream{path: path, f: f, csv: cw}, nil
}

// Append writes one chunk of records.
func (s *Stream) Append(records [][]string) error {
	for i, rec := range records {
		if err := s.csv.Write(rec); err != nil {
			return apperrors.Wrap(apperrors.CodePath, err, "cannot write row %d to %q", i, s.path)
		}
	}
	s.csv.Flush()
	return s.csv.Error()
}

// Path returns the resolved output path.
func (s *Stream) Path() string { return s.path }

// Close flushes remaining rows and closes the file.
func (s *Stream) Close() error {
	s.csv.Flush()
	flushErr := s.csv.Error()
	closeErr := s.f.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// RenderName expands the naming template for the given stem.
func (w *Writer) RenderName(stem string, opts Options) string {
	tpl := opts.Template
	if tpl == "" {
		tpl = domain.DefaultNameTemplate
	}
	tsFormat := opts.TimestampFormat
	if tsFormat == "" {
		tsFormat = domain.DefaultTimestampFormat
	}

	name := strings.ReplaceAll(tpl, "{stem}", stem)
	name = strings.ReplaceAll(name, "{timestamp}", w.now().Format(tsFormat))
	return name
}

func (w *Writer) resolveTarget(dir, stem string, opts Options) (string, error) {
	name := w.RenderName(stem, opts)
	path := filepath.Join(dir, name)

	if opts.Overwrite {
		return path, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxSuffixProbes; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			w.logger.Debug("output name collision, using suffix",
				slog.String("requested", path),
				slog.String("actual", candidate))
			return candidate, nil
		}
	}
	return "", apperrors.New(apperrors.CodePath,
		"cannot find a free output name for %q in %q", name, dir)
}

func (w *Writer) acquireLock(ctx context.Context, dir string) (func(), error) {
	lock := flock.New(filepath.Join(dir, lockFileName))

	lockCtx, cancel := context.WithTimeout(ctx, w.lockTimeout)
	defer cancel()

	ok, err := lock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		// The caller aborting the run is not lock contention.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.New(apperrors.CodeLockTimeout,
				"could not lock output directory %q within %s", dir, w.lockTimeout)
		}
		return nil, apperrors.Wrap(apperrors.CodePath, err,
			"cannot lock output directory %q", dir)
	}
	if !ok {
		return nil, apperrors.New(apperrors.CodeLockTimeout,
			"could not lock output directory %q within %s", dir, w.lockTimeout)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			w.logger.Warn("failed to release output lock",
				slog.String("directory", dir),
				slog.String("error", err.Error()))
		}
	}, nil
}

func writeCSV(path string, headers []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePath, err, "cannot create %q", path)
	}
	defer f.Close()

	// UTF-8 BOM so Excel opens the file with the right encoding.
	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return apperrors.Wrap(apperrors.CodePath, err, "cannot write to %q", path)
	}

	cw := csv.NewWriter(f)
	if len(headers) > 0 {
		if err := cw.Write(headers); err != nil {
			return apperrors.Wrap(apperrors.CodePath, err, "cannot write header to %q", path)
		}
	}
	for i, rec := range records {
		if err := cw.Write(rec); err != nil {
			return apperrors.Wrap(apperrors.CodePath, err, "cannot write row %d to %q", i, path)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.Wrap(apperrors.CodePath, err, "cannot flush %q", path)
	}
	return nil
}
