package batch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/least106/MomentTransfer/internal/config"
	apperrors "github.com/least106/MomentTransfer/internal/errors"
	"github.com/least106/MomentTransfer/internal/exporter"
	"github.com/least106/MomentTransfer/internal/infrastructure"
	"github.com/least106/MomentTransfer/internal/parser"
	"github.com/least106/MomentTransfer/internal/transform"
	"github.com/least106/MomentTransfer/internal/validation"
	"github.com/least106/MomentTransfer/pkg/contracts/domain"
)

// detectProbeLines bounds how many lines the format sniffer reads.
const detectProbeLines = 20

// specialRequired are the canonical input columns a part block must provide:
// three force components and three moment components.
var specialRequired = [6]string{"Cx", "Cy", "Cz", "CMx", "CMy", "CMz"}

// resultHeaders are the computed output columns appended after any
// passthrough and Alpha columns.
var resultHeaders = []string{
	"Fx_new", "Fy_new", "Fz_new",
	"Mx_new", "My_new", "Mz_new",
	"Cx", "Cy", "Cz",
	"Cl", "Cm", "Cn",
}

// Options configures an Orchestrator. Project is required; the rest fall
// back to sensible defaults.
type Options struct {
	Project *domain.Project

	// Format describes tabular inputs and output naming. Nil is allowed
	// when only multi-block files are processed.
	Format *domain.TableFormat

	Batch config.BatchConfig

	// Selection is the global default (source, target) pair. Per-block part
	// links in Format override it.
	Selection transform.Selection

	// OutputDir receives all result files. Empty writes next to each input.
	OutputDir string

	// DryRun enumerates and validates planned work without writing.
	DryRun bool

	Logger    *slog.Logger
	Validator *validation.Validator
	Writer    *exporter.Writer
}

// Orchestrator runs the batch pipeline over a set of input files. Each file
// moves through discovery, parsing, validation, transform and write; every
// terminal state is recorded as a FileOutcome, one per file or per part
// block. Workers communicate only through immutable work items and outcomes.
type Orchestrator struct {
	project    *domain.Project
	format     *domain.TableFormat
	cfg        config.BatchConfig
	defaultSel transform.Selection
	outputDir  string
	dryRun     bool

	logger     *slog.Logger
	validator  *validation.Validator
	writer     *exporter.Writer
	classifier *parser.Classifier
}

// New builds an orchestrator from options.
func New(opts Options) (*Orchestrator, error) {
	if opts.Project == nil {
		return nil, apperrors.New(apperrors.CodeConfiguration, "batch requires a loaded project configuration")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validator := opts.Validator
	if validator == nil {
		validator = validation.New(logger, opts.Batch.PermittedRoots, opts.Batch.MaxFileBytes, opts.Batch.MaxRows)
	}
	writer := opts.Writer
	if writer == nil {
		writer = exporter.New(logger, opts.Batch.LockTimeout)
	}

	classifier := parser.DefaultClassifier()
	if opts.Batch.PartNameMaxLen > 0 {
		classifier.PartNameMaxLen = opts.Batch.PartNameMaxLen
	}

	return &Orchestrator{
		project:    opts.Project,
		format:     opts.Format,
		cfg:        opts.Batch,
		defaultSel: opts.Selection,
		outputDir:  opts.OutputDir,
		dryRun:     opts.DryRun,
		logger:     logger,
		validator:  validator,
		writer:     writer,
		classifier: classifier,
	}, nil
}

// Run discovers the inputs and processes them, serially or on a fixed-size
// goroutine pool. The report is always returned, also on early abort; with
// ContinueOnError unset the first failed item stops the run and surfaces as
// the returned error, with completed outcomes retained.
func (o *Orchestrator) Run(ctx context.Context, input, pattern string) (*domain.BatchReport, error) {
	files, err := Discover(input, pattern)
	if err != nil {
		return nil, err
	}

	agg := NewAggregator(o.dryRun)
	ctx = infrastructure.WithRunID(ctx, agg.RunID())
	if len(files) == 0 {
		o.logger.Warn("no input files matched",
			slog.String("input", input),
			slog.String("pattern", pattern))
		return agg.Finalize(), nil
	}

	if o.outputDir != "" && !o.dryRun {
		if err := o.validator.ValidateOutputDirectory(o.outputDir); err != nil {
			return nil, err
		}
	}

	o.logger.Info("batch started",
		slog.Int("files", len(files)),
		slog.Int("workers", o.workers()),
		slog.Bool("dry_run", o.dryRun))

	var runErr error
	if o.dryRun {
		for _, fi := range files {
			agg.Add(o.planFile(fi))
		}
	} else if o.workers() <= 1 {
		runErr = o.runSerial(ctx, files, agg)
	} else {
		runErr = o.runPool(ctx, files, agg)
	}

	report := agg.Finalize()
	o.logger.Info("batch finished",
		slog.String("run_id", report.RunID),
		slog.Int("processed", report.ProcessedFiles),
		slog.Int("skipped", report.SkippedFiles),
		slog.Int("failed", report.FailedFiles),
		slog.Int("rows", report.ProcessedRows))
	return report, runErr
}

func (o *Orchestrator) workers() int {
	if o.cfg.Workers < 1 {
		return 1
	}
	return o.cfg.Workers
}

func (o *Orchestrator) runSerial(ctx context.Context, files []FileInfo, agg *Aggregator) error {
	cache := transform.NewCache(o.cfg.CacheSize)
	for _, fi := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcomes := o.processFile(ctx, cache, fi)
		for _, out := range outcomes {
			agg.Add(out)
		}
		if err := o.failFast(outcomes); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runPool(ctx context.Context, files []FileInfo, agg *Aggregator) error {
	g, ctx := errgroup.WithContext(ctx)

	items := make(chan FileInfo, o.workers())
	g.Go(func() error {
		defer close(items)
		for _, fi := range files {
			select {
			case items <- fi:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < o.workers(); i++ {
		g.Go(func() error {
			// Each worker owns its rotation cache, nothing mutable is
			// shared across the channel boundary.
			cache := transform.NewCache(o.cfg.CacheSize)
			for fi := range items {
				outcomes := o.processFile(ctx, cache, fi)
				for _, out := range outcomes {
					agg.Add(out)
				}
				if err := o.failFast(outcomes); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func (o *Orchestrator) failFast(outcomes []domain.FileOutcome) error {
	if o.cfg.ContinueOnError {
		return nil
	}
	for _, out := range outcomes {
		if out.Status == domain.OutcomeFailed {
			return apperrors.New(out.ErrorCode, "%s: %s", out.File, out.Error)
		}
	}
	return nil
}

// planFile is the dry-run pipeline: validate the input and report the
// planned output name without reading data or writing anything.
func (o *Orchestrator) planFile(fi FileInfo) domain.FileOutcome {
	if _, err := o.validator.ValidatePath(fi.Path, true, false); err != nil {
		return failedOutcome(fi, "", err)
	}
	if err := o.validator.ValidateFileSize(fi.Path); err != nil {
		return failedOutcome(fi, "", err)
	}

	planned := filepath.Join(o.outputDirFor(fi), o.writer.RenderName(stemOf(fi), o.writeOpts()))
	return domain.FileOutcome{
		File:       fi.Path,
		Status:     domain.OutcomeSkipped,
		OutputPath: planned,
	}
}

func (o *Orchestrator) processFile(ctx context.Context, cache *transform.Cache, fi FileInfo) []domain.FileOutcome {
	o.logger.Debug("processing file", slog.String("file", fi.Path))

	if _, err := o.validator.ValidatePath(fi.Path, true, false); err != nil {
		return []domain.FileOutcome{failedOutcome(fi, "", err)}
	}
	if err := o.validator.ValidateFileSize(fi.Path); err != nil {
		return []domain.FileOutcome{failedOutcome(fi, "", err)}
	}

	if parser.DetectSpecialFormat(fi.Path, o.classifier, detectProbeLines) {
		return o.processSpecial(ctx, cache, fi)
	}
	return []domain.FileOutcome{o.processTabular(ctx, cache, fi)}
}

// processSpecial handles multi-block files: one part table per block, one
// outcome per part.
func (o *Orchestrator) processSpecial(ctx context.Context, cache *transform.Cache, fi FileInfo) []domain.FileOutcome {
	sp := parser.NewSpecialParser(o.classifier, o.logger)
	tables, parseWarnings, err := sp.ParseFile(fi.Path)
	if err != nil {
		return []domain.FileOutcome{failedOutcome(fi, "", err)}
	}

	parts := make([]string, 0, len(tables))
	for name := range tables {
		parts = append(parts, name)
	}
	sort.Strings(parts)

	outcomes := make([]domain.FileOutcome, 0, len(parts))
	for i, part := range parts {
		out := o.processPart(ctx, cache, fi, part, tables[part])
		if i == 0 && len(parseWarnings) > 0 {
			out.Warnings = append(parseWarnings, out.Warnings...)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (o *Orchestrator) processPart(ctx context.Context, cache *transform.Cache, fi FileInfo, part string, table *parser.Table) domain.FileOutcome {
	var missing []string
	var idx [6]int
	for k, name := range specialRequired {
		idx[k] = table.ColumnIndex(name)
		if idx[k] < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		o.logger.Warn("part block lacks required columns, skipped",
			slog.String("file", fi.Path),
			slog.String("part", part),
			slog.String("missing", strings.Join(missing, ", ")))
		return domain.FileOutcome{
			File:      fi.Path,
			Part:      part,
			Status:    domain.OutcomeSkipped,
			RowsTotal: table.NumRows(),
			Warnings:  []string{fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))},
		}
	}

	if err := o.validator.ValidateRowCount(fi.Path, table.NumRows()); err != nil {
		return failedOutcome(fi, part, err)
	}

	sel := selectionForPart(o.project, o.partLinks(), o.defaultSel, part)
	calc, err := transform.New(o.project, sel, cache)
	if err != nil {
		return failedOutcome(fi, part, err)
	}

	alphaIdx := table.ColumnIndex("Alpha")
	headers := make([]string, 0, 1+len(resultHeaders))
	if alphaIdx >= 0 {
		headers = append(headers, "Alpha")
	}
	headers = append(headers, resultHeaders...)

	st := newRowStats(o.nonNumericPolicy(), o.sampleRows())
	records := make([][]string, 0, table.NumRows())
	for n, row := range table.Rows {
		force, moment, keep := st.extract(row, idx, specialRequired, n)
		if !keep {
			continue
		}
		res := calc.Transform(force, moment)

		rec := make([]string, 0, len(headers))
		if alphaIdx >= 0 {
			rec = append(rec, cellAt(row, alphaIdx))
		}
		rec = append(rec, resultCells(res)...)
		records = append(records, rec)
	}

	outcome := domain.FileOutcome{
		File:           fi.Path,
		Part:           part,
		Status:         domain.OutcomeSuccess,
		RowsTotal:      table.NumRows(),
		RowsProcessed:  len(records),
		RowsDropped:    st.dropped,
		RowsNonNumeric: st.nonNumeric,
		Warnings:       append(st.warnings, calc.Warnings()...),
	}

	stem := stemOf(fi) + "_" + part
	path, err := o.writer.Write(ctx, o.outputDirFor(fi), stem, headers, records, o.writeOpts())
	if err != nil {
		return failedOutcome(fi, part, err)
	}
	outcome.OutputPath = path
	return outcome
}

// processTabular handles delimited single-table files with chunked streaming.
func (o *Orchestrator) processTabular(ctx context.Context, cache *transform.Cache, fi FileInfo) domain.FileOutcome {
	if o.format == nil {
		return failedOutcome(fi, "", apperrors.New(apperrors.CodeValidation,
			"tabular input %q needs a format descriptor with column mappings", fi.Path))
	}

	reader, err := parser.OpenRowReader(fi.Path, o.format.SkipRows)
	if err != nil {
		return failedOutcome(fi, "", err)
	}
	defer reader.Close()

	chunkSize := o.chunkSize()
	first, err := reader.ReadChunk(chunkSize)
	if err != nil {
		return failedOutcome(fi, "", apperrors.Wrap(apperrors.CodeFormat, err, "cannot read %q", fi.Path))
	}
	if len(first) == 0 {
		return domain.FileOutcome{
			File:     fi.Path,
			Status:   domain.OutcomeSkipped,
			Warnings: []string{"no data rows"},
		}
	}

	// Row selection pins indices to the raw file, so header sniffing is
	// bypassed when it is set.
	var headerRow []string
	if len(o.format.RowSelection) == 0 && o.looksLikeHeader(first[0]) {
		headerRow = first[0]
		first = first[1:]
		o.logger.Debug("first row detected as header", slog.String("file", fi.Path))
	}

	sample := first
	if len(sample) > o.sampleRows() {
		sample = sample[:o.sampleRows()]
	}
	if len(sample) > 0 {
		if err := o.validator.ValidateColumns(o.format.Columns, sample); err != nil {
			return failedOutcome(fi, "", err)
		}
	}

	calc, err := transform.New(o.project, o.defaultSel, cache)
	if err != nil {
		return failedOutcome(fi, "", err)
	}

	headers := o.tabularHeaders(headerRow)
	stream, err := o.writer.OpenStream(ctx, o.outputDirFor(fi), stemOf(fi), headers, o.writeOpts())
	if err != nil {
		return failedOutcome(fi, "", err)
	}

	outcome, err := o.streamChunks(reader, first, calc, stream, fi, chunkSize)
	if closeErr := stream.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return failedOutcome(fi, "", err)
	}
	outcome.OutputPath = stream.Path()
	return outcome
}

func (o *Orchestrator) streamChunks(reader parser.RowReader, first [][]string, calc *transform.Calculator, stream *exporter.Stream, fi FileInfo, chunkSize int) (domain.FileOutcome, error) {
	idx, names := o.mappedColumns()
	selected := rowSelectionSet(o.format.RowSelection)

	st := newRowStats(o.nonNumericPolicy(), o.sampleRows())
	rowIdx := 0
	total := 0
	processed := 0

	chunk := first
	for len(chunk) > 0 {
		records := make([][]string, 0, len(chunk))
		for _, row := range chunk {
			n := rowIdx
			rowIdx++
			if selected != nil && !selected[n] {
				continue
			}
			total++

			force, moment, keep := st.extract(row, idx, names, n)
			if !keep {
				continue
			}
			res := calc.Transform(force, moment)
			records = append(records, o.tabularRecord(row, res))
		}

		if err := o.validator.ValidateRowCount(fi.Path, total); err != nil {
			return domain.FileOutcome{}, err
		}
		if err := stream.Append(records); err != nil {
			return domain.FileOutcome{}, err
		}
		processed += len(records)

		next, err := reader.ReadChunk(chunkSize)
		if err != nil {
			return domain.FileOutcome{}, apperrors.Wrap(apperrors.CodeFormat, err, "cannot read %q", fi.Path)
		}
		chunk = next
	}

	return domain.FileOutcome{
		File:           fi.Path,
		Status:         domain.OutcomeSuccess,
		RowsTotal:      total,
		RowsProcessed:  processed,
		RowsDropped:    st.dropped,
		RowsNonNumeric: st.nonNumeric,
		Warnings:       append(st.warnings, calc.Warnings()...),
	}, nil
}

// looksLikeHeader reports whether enough of the mapped cells in the row fail
// numeric parsing to treat the row as a column header.
func (o *Orchestrator) looksLikeHeader(row []string) bool {
	idx, _ := o.mappedColumns()
	checked := 0
	nonNumeric := 0
	for _, i := range idx {
		if i < 0 {
			continue
		}
		checked++
		cell := cellAt(row, i)
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err != nil {
			nonNumeric++
		}
	}
	if a := o.format.Columns.Alpha; a != nil {
		checked++
		if _, err := strconv.ParseFloat(strings.TrimSpace(cellAt(row, *a)), 64); err != nil {
			nonNumeric++
		}
	}
	if checked == 0 {
		return false
	}
	threshold := o.cfg.HeaderThreshold
	if threshold <= 0 {
		threshold = 0.6
	}
	return float64(nonNumeric)/float64(checked) >= threshold
}

// mappedColumns returns the six force/moment column indices in fixed order.
// The format loader guarantees the pointers are present for tabular runs.
func (o *Orchestrator) mappedColumns() ([6]int, [6]string) {
	names := [6]string{"fx", "fy", "fz", "mx", "my", "mz"}
	cols := o.format.Columns
	ptrs := [6]*int{cols.Fx, cols.Fy, cols.Fz, cols.Mx, cols.My, cols.Mz}
	var idx [6]int
	for k, p := range ptrs {
		if p == nil {
			idx[k] = -1
		} else {
			idx[k] = *p
		}
	}
	return idx, names
}

func (o *Orchestrator) tabularHeaders(headerRow []string) []string {
	headers := make([]string, 0, len(o.format.Passthrough)+1+len(resultHeaders))
	for _, i := range o.format.Passthrough {
		name := ""
		if headerRow != nil {
			name = strings.TrimSpace(cellAt(headerRow, i))
		}
		if name == "" {
			name = fmt.Sprintf("Col_%d", i+1)
		}
		headers = append(headers, name)
	}
	if o.format.Columns.Alpha != nil {
		headers = append(headers, "Alpha")
	}
	return append(headers, resultHeaders...)
}

func (o *Orchestrator) tabularRecord(row []string, res domain.PointResult) []string {
	rec := make([]string, 0, len(o.format.Passthrough)+1+len(resultHeaders))
	for _, i := range o.format.Passthrough {
		rec = append(rec, cellAt(row, i))
	}
	if a := o.format.Columns.Alpha; a != nil {
		rec = append(rec, cellAt(row, *a))
	}
	return append(rec, resultCells(res)...)
}

func (o *Orchestrator) outputDirFor(fi FileInfo) string {
	if o.outputDir != "" {
		return o.outputDir
	}
	return filepath.Dir(fi.Path)
}

func (o *Orchestrator) writeOpts() exporter.Options {
	opts := exporter.Options{}
	if o.format != nil {
		opts.Template = o.format.NameTemplate
		opts.TimestampFormat = o.format.TimestampFormat
		opts.Overwrite = o.format.Overwrite
	}
	return opts
}

func (o *Orchestrator) partLinks() map[string]domain.PartLink {
	if o.format == nil {
		return nil
	}
	return o.format.PartLinks
}

func (o *Orchestrator) nonNumericPolicy() domain.NonNumericPolicy {
	if o.format == nil || o.format.NonNumeric == "" {
		return domain.NonNumericZero
	}
	return o.format.NonNumeric
}

func (o *Orchestrator) sampleRows() int {
	if o.format == nil || o.format.SampleRows <= 0 {
		return domain.DefaultSampleRows
	}
	return o.format.SampleRows
}

func (o *Orchestrator) chunkSize() int {
	if o.format != nil && o.format.ChunkSize > 0 {
		return o.format.ChunkSize
	}
	if o.cfg.ChunkSize > 0 {
		return o.cfg.ChunkSize
	}
	return 10000
}

// rowStats tracks non-numeric handling across one file or part block. The
// first few offending rows are kept as warnings, the rest only counted.
type rowStats struct {
	policy      domain.NonNumericPolicy
	sampleLimit int

	nonNumeric int
	dropped    int
	warnings   []string
}

func newRowStats(policy domain.NonNumericPolicy, sampleLimit int) *rowStats {
	return &rowStats{policy: policy, sampleLimit: sampleLimit}
}

// extract pulls the six force/moment values out of a row. keep reports
// whether the row survives the non-numeric policy.
func (s *rowStats) extract(row []string, idx [6]int, names [6]string, rowNum int) (force, moment [3]float64, keep bool) {
	var vals [6]float64
	bad := false
	for k, i := range idx {
		cell := strings.TrimSpace(cellAt(row, i))
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			bad = true
			if len(s.warnings) < s.sampleLimit {
				s.warnings = append(s.warnings,
					fmt.Sprintf("row %d: non-numeric value %q in column %s", rowNum, cell, names[k]))
			}
			if s.policy == domain.NonNumericKeep {
				v = math.NaN()
			} else {
				v = 0
			}
		}
		vals[k] = v
	}

	if bad {
		s.nonNumeric++
		if s.policy == domain.NonNumericDrop {
			s.dropped++
			return force, moment, false
		}
	}
	force = [3]float64{vals[0], vals[1], vals[2]}
	moment = [3]float64{vals[3], vals[4], vals[5]}
	return force, moment, true
}

func rowSelectionSet(rows []int) map[int]bool {
	if len(rows) == 0 {
		return nil
	}
	set := make(map[int]bool, len(rows))
	for _, r := range rows {
		set[r] = true
	}
	return set
}

func resultCells(res domain.PointResult) []string {
	cells := make([]string, 0, 12)
	for _, v := range [][3]float64{res.Force, res.Moment, res.CoeffForce, res.CoeffMoment} {
		for _, x := range v {
			cells = append(cells, formatFloat(x))
		}
	}
	return cells
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func stemOf(fi FileInfo) string {
	return strings.TrimSuffix(fi.Name, filepath.Ext(fi.Name))
}

func failedOutcome(fi FileInfo, part string, err error) domain.FileOutcome {
	return domain.FileOutcome{
		File:      fi.Path,
		Part:      part,
		Status:    domain.OutcomeFailed,
		ErrorCode: apperrors.CodeOf(err),
		Error:     err.Error(),
	}
}
