package domain

import "time"

// PointResult is the transformed force/moment and the derived aerodynamic
// coefficients for a single input row. Values are in the target frame.
type PointResult struct {
	Force       [3]float64 `json:"force"`
	Moment      [3]float64 `json:"moment"`
	CoeffForce  [3]float64 `json:"coeff_force"`
	CoeffMoment [3]float64 `json:"coeff_moment"` // roll, pitch, yaw
}

// OutcomeStatus classifies the result of processing one work item.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// FileOutcome records how one file, or one part block of a multi-block file,
// was processed. Immutable once produced by a worker.
type FileOutcome struct {
	File       string        `json:"file"`
	Part       string        `json:"part,omitempty"`
	Status     OutcomeStatus `json:"status"`
	OutputPath string        `json:"output_path,omitempty"`

	RowsTotal      int `json:"rows_total"`
	RowsProcessed  int `json:"rows_processed"`
	RowsDropped    int `json:"rows_dropped"`
	RowsNonNumeric int `json:"rows_non_numeric"`

	ErrorCode string   `json:"error_code,omitempty"`
	Error     string   `json:"error,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// ReportEntry is one structured error or warning in a batch report.
type ReportEntry struct {
	File    string `json:"file"`
	Part    string `json:"part,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// BatchReport aggregates all outcomes of a batch run. A completed run always
// yields a report with explicit counts; silent partial success is disallowed.
type BatchReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run,omitempty"`

	TotalFiles     int `json:"total_files"`
	ProcessedFiles int `json:"processed_files"`
	SkippedFiles   int `json:"skipped_files"`
	FailedFiles    int `json:"failed_files"`

	TotalRows     int `json:"total_rows"`
	ProcessedRows int `json:"processed_rows"`
	FailedRows    int `json:"failed_rows"`

	Outcomes []FileOutcome `json:"outcomes"`
	Errors   []ReportEntry `json:"errors,omitempty"`
	Warnings []ReportEntry `json:"warnings,omitempty"`
}
