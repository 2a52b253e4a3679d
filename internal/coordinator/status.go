package coordinator

import (
	"context"

	"github.com/sluicedata/sluice/internal/physical"
)

// Status is a job's lifecycle state as reported by the coordinator.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusKilled    Status = "KILLED"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusKilled:
		return true
	}
	return false
}

// Client launches physical plans as jobs. Launch blocks until the job
// reaches a terminal status; the returned status is always terminal when
// err is nil.
type Client interface {
	Launch(ctx context.Context, jobName string, p *physical.Plan) (Status, error)
}
