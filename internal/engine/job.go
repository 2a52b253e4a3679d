package engine

import (
	"github.com/sluicedata/sluice/internal/coordinator"
)

// Job is the handle returned by a synchronous Execute. It is created at
// execute time and immutable; its status is always terminal.
type Job struct {
	status   coordinator.Status
	location string
	format   string
}

// NewJob wraps a terminal status and an output spec.
func NewJob(status coordinator.Status, location, format string) *Job {
	return &Job{status: status, location: location, format: format}
}

// Status returns the job's terminal status.
func (j *Job) Status() coordinator.Status { return j.status }

// OutputLocation returns where the job materialized its result.
func (j *Job) OutputLocation() string { return j.location }

// OutputFormat returns the serialization format of the output.
func (j *Job) OutputFormat() string { return j.format }

// Succeeded reports whether the job completed normally.
func (j *Job) Succeeded() bool { return j.status == coordinator.StatusCompleted }
