package process

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-brief/pkg/schema"
)

// EntityKey identifies the subject of a brief job, e.g. an ingredient name.
type EntityKey string

// NewEntityKey trims surrounding whitespace so that "salt" and " salt " track
// the same job.
func NewEntityKey(s string) EntityKey {
	return EntityKey(strings.TrimSpace(s))
}

func (k EntityKey) String() string { return string(k) }

// JobStatus represents the lifecycle state of a brief job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusTimedOut   JobStatus = "timed_out"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusTimedOut:
		return true
	}
	return false
}

// Job is the observable state of one outstanding brief request. Each Job has
// its own ID so successive jobs for the same key can be told apart.
type Job struct {
	ID            uuid.UUID
	Key           EntityKey
	Status        JobStatus
	Attempts      int
	LastMessage   string
	Result        string
	FailureReason string
	FailureType   schema.FailureType
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewJob(key EntityKey) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New(),
		Key:       key,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// The Mark helpers are no-ops once a job is terminal.

func MarkInProgress(j *Job, message string) {
	if j.Status.IsTerminal() {
		return
	}
	j.Status = JobStatusInProgress
	j.Attempts++
	j.LastMessage = message
	j.UpdatedAt = time.Now()
}

func MarkCompleted(j *Job, brief string) {
	if j.Status.IsTerminal() {
		return
	}
	j.Status = JobStatusCompleted
	j.Result = brief
	j.UpdatedAt = time.Now()
}

func MarkFailed(j *Job, reason string, failureType schema.FailureType) {
	if j.Status.IsTerminal() {
		return
	}
	j.Status = JobStatusFailed
	j.FailureReason = reason
	j.FailureType = failureType
	j.UpdatedAt = time.Now()
}

func MarkTimedOut(j *Job) {
	if j.Status.IsTerminal() {
		return
	}
	j.Status = JobStatusTimedOut
	j.FailureType = schema.FailureTypeTimeout
	j.UpdatedAt = time.Now()
}
