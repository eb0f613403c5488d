// Package jobs tracks export jobs from submission to a terminal state and
// relays their progress.
package jobs

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Job struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Status     Status    `json:"status"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	FailedStep *int      `json:"failed_step,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Format     string    `json:"format"`
	Quality    string    `json:"quality"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
