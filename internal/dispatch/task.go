package dispatch

import (
	"time"

	"github.com/ahricool/raise/internal/errors"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type TaskInfo struct {
	TaskID      string     `json:"task_id"`
	StockCode   string     `json:"stock_code"`
	StockName   string     `json:"stock_name,omitempty"`
	ReportType  string     `json:"report_type"`
	Status      Status     `json:"status"`
	Message     string     `json:"message,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type Request struct {
	Code       string
	Name       string
	ReportType string
}

type Outcome string

const (
	Accepted  Outcome = "accepted"
	Duplicate Outcome = "duplicate"
	Invalid   Outcome = "invalid"
)

// Submission is the tagged result of Submit. Task is the new task when
// accepted and the task already in flight when duplicate.
type Submission struct {
	Outcome Outcome
	Code    string
	Task    *TaskInfo
}

func (s Submission) Accepted() bool {
	return s.Outcome == Accepted
}

// Err maps non-accepted outcomes to their sentinel errors.
func (s Submission) Err() error {
	switch s.Outcome {
	case Duplicate:
		taskID := ""
		if s.Task != nil {
			taskID = s.Task.TaskID
		}
		return errors.Wrapf(errors.ErrDuplicateTask, "stock %s is being analyzed (task %s)", s.Code, taskID)
	case Invalid:
		return errors.Wrap(errors.ErrInvalidCode, "stock code is empty after normalization")
	default:
		return nil
	}
}

type TaskList struct {
	Tasks           []TaskInfo `json:"tasks"`
	Total           int        `json:"total"`
	PendingCount    int        `json:"pending_count"`
	ProcessingCount int        `json:"processing_count"`
}

var errPanicked = errors.New("analysis pipeline panicked")
