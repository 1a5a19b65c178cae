package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/least106/MomentTransfer/pkg/contracts/domain"
)

func sampleOutcomes() []domain.FileOutcome {
	return []domain.FileOutcome{
		{File: "b.csv", Status: domain.OutcomeSuccess, RowsTotal: 10, RowsProcessed: 10},
		{File: "a.dat", Part: "Wing", Status: domain.OutcomeSuccess, RowsTotal: 5, RowsProcessed: 4, RowsDropped: 1, Warnings: []string{"row 2: non-numeric value \"x\" in column fx"}},
		{File: "a.dat", Part: "Body", Status: domain.OutcomeSkipped, RowsTotal: 3},
		{File: "c.csv", Status: domain.OutcomeFailed, ErrorCode: "FORMAT_ERROR", Error: "not text in any supported encoding"},
	}
}

func TestAggregatorCounts(t *testing.T) {
	agg := NewAggregator(false)
	for _, o := range sampleOutcomes() {
		agg.Add(o)
	}

	report := agg.Finalize()
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.DryRun)
	assert.Equal(t, 4, report.TotalFiles)
	assert.Equal(t, 2, report.ProcessedFiles)
	assert.Equal(t, 1, report.SkippedFiles)
	assert.Equal(t, 1, report.FailedFiles)
	assert.Equal(t, 18, report.TotalRows)
	assert.Equal(t, 14, report.ProcessedRows)
	assert.Equal(t, 1, report.FailedRows)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, "c.csv", report.Errors[0].File)
	assert.Equal(t, "FORMAT_ERROR", report.Errors[0].Code)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "Wing", report.Warnings[0].Part)
}

func TestAggregatorMergeIsOrderIndependent(t *testing.T) {
	outcomes := sampleOutcomes()

	forward := NewAggregator(false)
	for _, o := range outcomes {
		forward.Add(o)
	}
	backward := NewAggregator(false)
	for i := len(outcomes) - 1; i >= 0; i-- {
		backward.Add(outcomes[i])
	}

	a, b := forward.Finalize(), backward.Finalize()
	assert.Equal(t, a.TotalFiles, b.TotalFiles)
	assert.Equal(t, a.ProcessedFiles, b.ProcessedFiles)
	assert.Equal(t, a.SkippedFiles, b.SkippedFiles)
	assert.Equal(t, a.FailedFiles, b.FailedFiles)
	assert.Equal(t, a.Outcomes, b.Outcomes)
	assert.Equal(t, a.Errors, b.Errors)
}

func TestAggregatorSortsOutcomes(t *testing.T) {
	agg := NewAggregator(true)
	for _, o := range sampleOutcomes() {
		agg.Add(o)
	}

	report := agg.Finalize()
	assert.True(t, report.DryRun)
	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, "a.dat", report.Outcomes[0].File)
	assert.Equal(t, "Body", report.Outcomes[0].Part)
	assert.Equal(t, "Wing", report.Outcomes[1].Part)
	assert.Equal(t, "b.csv", report.Outcomes[2].File)
	assert.Equal(t, "c.csv", report.Outcomes[3].File)
}
