package batch

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/least106/MomentTransfer/pkg/contracts/domain"
)

// Aggregator collects FileOutcomes from workers and folds them into a
// BatchReport. Workers hand over immutable outcomes; the merge is
// order-independent, so totals do not depend on scheduling.
type Aggregator struct {
	mu       sync.Mutex
	runID    string
	started  time.Time
	dryRun   bool
	outcomes []domain.FileOutcome
}

// NewAggregator starts a new collection with a fresh run ID.
func NewAggregator(dryRun bool) *Aggregator {
	return &Aggregator{
		runID:   uuid.NewString(),
		started: time.Now(),
		dryRun:  dryRun,
	}
}

// RunID returns the identifier assigned to this run.
func (a *Aggregator) RunID() string { return a.runID }

// Add records one outcome. Safe for concurrent use.
func (a *Aggregator) Add(o domain.FileOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes = append(a.outcomes, o)
}

// Finalize produces the report. Outcomes are sorted by file then part so the
// report is stable regardless of completion order.
func (a *Aggregator) Finalize() *domain.BatchReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	outcomes := make([]domain.FileOutcome, len(a.outcomes))
	copy(outcomes, a.outcomes)
	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].File != outcomes[j].File {
			return outcomes[i].File < outcomes[j].File
		}
		return outcomes[i].Part < outcomes[j].Part
	})

	report := &domain.BatchReport{
		RunID:      a.runID,
		StartedAt:  a.started,
		FinishedAt: time.Now(),
		DryRun:     a.dryRun,
		Outcomes:   outcomes,
	}

	for _, o := range outcomes {
		report.TotalFiles++
		report.TotalRows += o.RowsTotal
		report.ProcessedRows += o.RowsProcessed
		report.FailedRows += o.RowsDropped

		switch o.Status {
		case domain.OutcomeSuccess:
			report.ProcessedFiles++
		case domain.OutcomeSkipped:
			report.SkippedFiles++
		case domain.OutcomeFailed:
			report.FailedFiles++
			report.Errors = append(report.Errors, domain.ReportEntry{
				File:    o.File,
				Part:    o.Part,
				Code:    o.ErrorCode,
				Message: o.Error,
			})
		}

		for _, w := range o.Warnings {
			report.Warnings = append(report.Warnings, domain.ReportEntry{
				File:    o.File,
				Part:    o.Part,
				Message: w,
			})
		}
	}
	return report
}
