package batch

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/least106/MomentTransfer/internal/config"
	"github.com/least106/MomentTransfer/internal/transform"
	"github.com/least106/MomentTransfer/pkg/contracts/domain"
)

func ip(i int) *int { return &i }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func identityFrame(name string) domain.Frame {
	return domain.Frame{
		PartName: name,
		Coord: domain.CoordSystem{
			Origin: []float64{0, 0, 0},
			XAxis:  []float64{1, 0, 0},
			YAxis:  []float64{0, 1, 0},
			ZAxis:  []float64{0, 0, 1},
		},
	}
}

// testProject has one part per side with q*S = 1 and unit reference lengths,
// so coefficients equal the transformed values and both sides are inferred.
func testProject() *domain.Project {
	src := identityFrame("Model")
	tgt := identityFrame("Wing")
	tgt.MomentCenter = []float64{0, 0, 0}
	tgt.Q = 2
	tgt.S = 0.5
	tgt.Cref = 1
	tgt.Bref = 1
	return &domain.Project{
		SourceParts: map[string][]domain.Frame{"Model": {src}},
		TargetParts: map[string][]domain.Frame{"Wing": {tgt}},
	}
}

func sixColumnFormat() *domain.TableFormat {
	return &domain.TableFormat{
		Columns: domain.ColumnMap{
			Fx: ip(0), Fy: ip(1), Fz: ip(2),
			Mx: ip(3), My: ip(4), Mz: ip(5),
		},
		NameTemplate:    domain.DefaultNameTemplate,
		TimestampFormat: domain.DefaultTimestampFormat,
		NonNumeric:      domain.NonNumericZero,
		SampleRows:      domain.DefaultSampleRows,
	}
}

func newTestOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	if opts.Project == nil {
		opts.Project = testProject()
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	o, err := New(opts)
	require.NoError(t, err)
	return o
}

func readResultCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.TrimPrefix(string(data), "\ufeff")
	rows, err := csv.NewReader(strings.NewReader(text)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunProcessesTabularFiles(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, inDir, "run1.csv", "1,2,3,4,5,6\n7,8,9,10,11,12\n")
	writeFile(t, inDir, "run2.csv", "1,1,1,1,1,1\n")

	o := newTestOrchestrator(t, Options{
		Format:    sixColumnFormat(),
		OutputDir: outDir,
	})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalFiles)
	assert.Equal(t, 2, report.ProcessedFiles)
	assert.Equal(t, 0, report.FailedFiles)
	assert.Equal(t, 3, report.ProcessedRows)

	require.Len(t, report.Outcomes, 2)
	first := report.Outcomes[0]
	assert.Equal(t, domain.OutcomeSuccess, first.Status)
	assert.NotEmpty(t, first.OutputPath)

	rows := readResultCSV(t, first.OutputPath)
	require.Len(t, rows, 3)
	assert.Equal(t, resultHeaders, rows[0])
	// q*S and both reference lengths are 1, so the identity transform
	// reproduces the inputs in every column group.
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "1", "2", "3", "4", "5", "6"}, rows[1])
}

func TestRunDetectsHeaderRow(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, inDir, "run.csv", "Fx,Fy,Fz,Mx,My,Mz\n1,2,3,4,5,6\n7,8,9,10,11,12\n")

	o := newTestOrchestrator(t, Options{Format: sixColumnFormat(), OutputDir: outDir})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.Equal(t, domain.OutcomeSuccess, out.Status)
	assert.Equal(t, 2, out.RowsTotal)
	assert.Equal(t, 2, out.RowsProcessed)
	assert.Zero(t, out.RowsNonNumeric)
}

func TestRunRowSelectionBypassesHeaderDetection(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, inDir, "run.csv", "1,2,3,4,5,6\n7,8,9,10,11,12\n13,14,15,16,17,18\n")

	format := sixColumnFormat()
	format.RowSelection = []int{1}
	o := newTestOrchestrator(t, Options{Format: format, OutputDir: outDir})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.NoError(t, err)

	out := report.Outcomes[0]
	assert.Equal(t, 1, out.RowsTotal)
	assert.Equal(t, 1, out.RowsProcessed)

	rows := readResultCSV(t, out.OutputPath)
	require.Len(t, rows, 2)
	assert.Equal(t, "7", rows[1][0])
}

func TestRunPassthroughAndAlphaColumns(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, inDir, "run.csv", "caseA,0.5,1,2,3,4,5,6\n")

	format := &domain.TableFormat{
		Columns: domain.ColumnMap{
			Alpha: ip(1),
			Fx:    ip(2), Fy: ip(3), Fz: ip(4),
			Mx: ip(5), My: ip(6), Mz: ip(7),
		},
		Passthrough: []int{0},
	}
	o := newTestOrchestrator(t, Options{Format: format, OutputDir: outDir})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.NoError(t, err)

	rows := readResultCSV(t, report.Outcomes[0].OutputPath)
	require.Len(t, rows, 2)
	assert.Equal(t, "Col_1", rows[0][0])
	assert.Equal(t, "Alpha", rows[0][1])
	assert.Equal(t, "Fx_new", rows[0][2])
	assert.Equal(t, "caseA", rows[1][0])
	assert.Equal(t, "0.5", rows[1][1])
	assert.Equal(t, "1", rows[1][2])
}

func TestRunNonNumericDropPolicy(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, inDir, "run.csv", "1,2,3,4,5,6\nbad,2,3,4,5,6\n7,8,9,10,11,12\n")

	format := sixColumnFormat()
	format.NonNumeric = domain.NonNumericDrop
	o := newTestOrchestrator(t, Options{Format: format, OutputDir: outDir})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.NoError(t, err)

	out := report.Outcomes[0]
	assert.Equal(t, domain.OutcomeSuccess, out.Status)
	assert.Equal(t, 3, out.RowsTotal)
	assert.Equal(t, 2, out.RowsProcessed)
	assert.Equal(t, 1, out.RowsDropped)
	assert.Equal(t, 1, out.RowsNonNumeric)
	require.NotEmpty(t, out.Warnings)
	assert.Contains(t, out.Warnings[0], "non-numeric value \"bad\" in column fx")
}

func TestRunNonNumericZeroPolicy(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, inDir, "run.csv", "bad,2,3,4,5,6\n")

	o := newTestOrchestrator(t, Options{Format: sixColumnFormat(), OutputDir: outDir})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.NoError(t, err)

	out := report.Outcomes[0]
	assert.Equal(t, 1, out.RowsProcessed)
	assert.Equal(t, 1, out.RowsNonNumeric)
	assert.Zero(t, out.RowsDropped)

	rows := readResultCSV(t, out.OutputPath)
	assert.Equal(t, "0", rows[1][0])
	assert.Equal(t, "2", rows[1][1])
}

func TestRunContinueOnError(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, inDir, "1_bad.csv", string([]byte{0x00, 0x01, 0xFF, 0x00}))
	writeFile(t, inDir, "2_good.csv", "1,2,3,4,5,6\n")
	writeFile(t, inDir, "3_good.csv", "7,8,9,10,11,12\n")

	o := newTestOrchestrator(t, Options{
		Format:    sixColumnFormat(),
		Batch:     config.BatchConfig{ContinueOnError: true},
		OutputDir: outDir,
	})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalFiles)
	assert.Equal(t, 2, report.ProcessedFiles)
	assert.Equal(t, 1, report.FailedFiles)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "FORMAT_ERROR", report.Errors[0].Code)
}

func TestRunFailFastKeepsCompletedOutcomes(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, inDir, "1_bad.csv", string([]byte{0x00, 0x01, 0xFF}))
	writeFile(t, inDir, "2_good.csv", "1,2,3,4,5,6\n")

	o := newTestOrchestrator(t, Options{Format: sixColumnFormat(), OutputDir: outDir})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.Error(t, err)

	assert.Equal(t, 1, report.FailedFiles)
	assert.Equal(t, 0, report.ProcessedFiles)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	writeFile(t, inDir, "run1.csv", "1,2,3,4,5,6\n")
	writeFile(t, inDir, "run2.csv", "1,2,3,4,5,6\n")

	o := newTestOrchestrator(t, Options{
		Format:    sixColumnFormat(),
		OutputDir: outDir,
		DryRun:    true,
	})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.SkippedFiles)
	for _, out := range report.Outcomes {
		assert.Equal(t, domain.OutcomeSkipped, out.Status)
		assert.Contains(t, out.OutputPath, "_result_")
	}

	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr), "dry run must not create the output directory")
}

const specialFixture = `试验日期：2026-08-01
Wing
Alpha Cx Cy Cz CMx CMy CMz
0.0 1 0 0 0 0 0
1.0 0 1 0 0 0 0
Body
Alpha CL CD
0.0 0.5 0.02
`

func TestRunSpecialFormatFile(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, inDir, "wind.mtfmt", specialFixture)

	o := newTestOrchestrator(t, Options{Format: sixColumnFormat(), OutputDir: outDir})
	report, err := o.Run(context.Background(), inDir, "*.mtfmt")
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)

	body := report.Outcomes[0]
	assert.Equal(t, "Body", body.Part)
	assert.Equal(t, domain.OutcomeSkipped, body.Status)
	require.NotEmpty(t, body.Warnings)
	assert.Contains(t, body.Warnings[len(body.Warnings)-1], "missing required columns")

	wing := report.Outcomes[1]
	assert.Equal(t, "Wing", wing.Part)
	assert.Equal(t, domain.OutcomeSuccess, wing.Status)
	assert.Equal(t, 2, wing.RowsProcessed)
	assert.Contains(t, filepath.Base(wing.OutputPath), "wind_Wing")

	rows := readResultCSV(t, wing.OutputPath)
	require.Len(t, rows, 3)
	assert.Equal(t, "Alpha", rows[0][0])
	assert.Equal(t, "Fx_new", rows[0][1])
	assert.Equal(t, "0.0", rows[1][0])
	assert.Equal(t, "1", rows[1][1])
}

func TestRunWorkerPool(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	for _, name := range []string{"a.csv", "b.csv", "c.csv", "d.csv", "e.csv", "f.csv"} {
		writeFile(t, inDir, name, "1,2,3,4,5,6\n7,8,9,10,11,12\n")
	}

	o := newTestOrchestrator(t, Options{
		Format:    sixColumnFormat(),
		Batch:     config.BatchConfig{Workers: 4, ContinueOnError: true},
		OutputDir: outDir,
	})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.NoError(t, err)

	assert.Equal(t, 6, report.ProcessedFiles)
	assert.Equal(t, 12, report.ProcessedRows)
	assert.Zero(t, report.FailedFiles)
}

func TestRunEmptyFileIsSkipped(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, inDir, "empty.csv", "")

	o := newTestOrchestrator(t, Options{Format: sixColumnFormat(), OutputDir: outDir})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, domain.OutcomeSkipped, report.Outcomes[0].Status)
}

func TestRunTabularWithoutFormatFails(t *testing.T) {
	inDir := t.TempDir()
	writeFile(t, inDir, "run.csv", "1,2,3,4,5,6\n")

	o := newTestOrchestrator(t, Options{Batch: config.BatchConfig{ContinueOnError: true}})
	report, err := o.Run(context.Background(), inDir, "*.csv")
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, domain.OutcomeFailed, report.Outcomes[0].Status)
	assert.Equal(t, "VALIDATION_ERROR", report.Outcomes[0].ErrorCode)
}

func TestSelectionForPart(t *testing.T) {
	project := &domain.Project{
		SourceParts: map[string][]domain.Frame{"Model": {identityFrame("Model")}},
		TargetParts: map[string][]domain.Frame{
			"Wing": {identityFrame("Wing")},
			"Tail": {identityFrame("Tail")},
		},
	}
	def := transform.Selection{SourcePart: "Model"}
	links := map[string]domain.PartLink{
		"blk1": {Target: "Tail"},
		"blk2": {Source: "Model", Target: "Wing"},
	}

	t.Run("legacy link keeps default source", func(t *testing.T) {
		sel := selectionForPart(project, links, def, "blk1")
		assert.Equal(t, "Model", sel.SourcePart)
		assert.Equal(t, "Tail", sel.TargetPart)
	})

	t.Run("full link sets both sides", func(t *testing.T) {
		sel := selectionForPart(project, links, def, "blk2")
		assert.Equal(t, "Model", sel.SourcePart)
		assert.Equal(t, "Wing", sel.TargetPart)
	})

	t.Run("block name matches configured part", func(t *testing.T) {
		sel := selectionForPart(project, nil, def, "Wing")
		assert.Equal(t, "Wing", sel.TargetPart)
	})

	t.Run("unknown block falls back to default", func(t *testing.T) {
		sel := selectionForPart(project, nil, def, "Fuselage")
		assert.Equal(t, def, sel)
	})
}
