package model

import (
	"errors"
	"time"
)

// TaskType identifies what kind of analysis a task performs.
type TaskType string

const (
	// TaskTypeSinglePage analyzes one page.
	TaskTypeSinglePage TaskType = "single-page"

	// TaskTypeBatch analyzes a group of same-domain pages.
	TaskTypeBatch TaskType = "batch"

	// TaskTypeFullSite analyzes an entire site (crawl plus per-page analysis).
	TaskTypeFullSite TaskType = "full-site"
)

// Valid reports whether the task type is one of the known values.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeSinglePage, TaskTypeBatch, TaskTypeFullSite:
		return true
	}
	return false
}

// Priority orders tasks in the pending queue. Higher values are
// dispatched first; ties are broken by insertion order (FIFO).
type Priority int

const (
	// PriorityLow is for background or speculative work.
	PriorityLow Priority = iota

	// PriorityMedium is the default priority.
	PriorityMedium

	// PriorityHigh is dispatched before all medium and low tasks.
	PriorityHigh
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// TaskStatus is the lifecycle state of an analysis task. A task belongs
// to exactly one state at any time.
type TaskStatus string

const (
	// TaskStatusPending means the task is queued and not yet started.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusProcessing means a worker is executing the task.
	TaskStatusProcessing TaskStatus = "processing"

	// TaskStatusCompleted means the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed means the task exhausted its retries or timed out.
	TaskStatusFailed TaskStatus = "failed"
)

// AnalysisOptions is the typed option set for a page analysis.
//
// Design decision: The options are named, enumerated fields with explicit
// defaults rather than a free-form map, so invalid configurations are
// rejected when a task is constructed instead of when it is used.
type AnalysisOptions struct {
	// Standard is the conformance target (e.g. "wcag2aa"). Analyzers
	// may use it to select rule sets.
	Standard string `json:"standard"`

	// IncludeWarnings includes advisory findings in the result.
	IncludeWarnings bool `json:"include_warnings"`

	// CaptureScreenshots captures evidence screenshots for violations.
	CaptureScreenshots bool `json:"capture_screenshots"`
}

// DefaultAnalysisOptions returns the options used when none are supplied.
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{Standard: "wcag2aa"}
}

// ErrInvalidTask is returned when a task is rejected at submission time.
var ErrInvalidTask = errors.New("invalid analysis task")

// AnalysisTask is one unit of page-analysis work flowing through the
// task pipeline. It is mutated only by the owning worker: retryCount
// increments and timestamps are set as the task progresses.
type AnalysisTask struct {
	// ID uniquely identifies the task.
	ID string `json:"id"`

	// URL is the page to analyze.
	URL string `json:"url"`

	// Type is the kind of analysis to perform.
	Type TaskType `json:"type"`

	// Priority orders the task in the pending queue.
	Priority Priority `json:"priority"`

	// Options configures the analysis.
	Options AnalysisOptions `json:"options"`

	// RetryCount is the number of retries already consumed.
	RetryCount int `json:"retry_count"`

	// MaxRetries bounds retries; a task that always fails is attempted
	// exactly MaxRetries+1 times.
	MaxRetries int `json:"max_retries"`

	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when a worker first picked up the task.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Validate checks the programming contract for task submission.
// Tasks missing a URL or carrying an unknown type are rejected
// synchronously and never enqueued.
func (t *AnalysisTask) Validate() error {
	if t.URL == "" {
		return errors.Join(ErrInvalidTask, errors.New("url is required"))
	}
	if !t.Type.Valid() {
		return errors.Join(ErrInvalidTask, errors.New("unknown task type"))
	}
	if t.MaxRetries < 0 {
		return errors.Join(ErrInvalidTask, errors.New("max retries must be non-negative"))
	}
	return nil
}
