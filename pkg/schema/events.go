// pkg/schema/events.go
package schema

// InitiateBriefRequest is the body posted to start brief generation.
type InitiateBriefRequest struct {
	Entity string `json:"entity"`
}

// InitiateBriefResponse is either an immediate brief or a deferred marker.
type InitiateBriefResponse struct {
	InProgress bool   `json:"in_progress"`
	Entity     string `json:"entity,omitempty"`
	Summary    string `json:"summary,omitempty"`
}

// Backend status values reported by the poll endpoint. Anything else is
// treated as still running.
const (
	BackendStatusCompleted = "completed"
	BackendStatusFailed    = "failed"
)

type BriefStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Summary string `json:"summary,omitempty"`
}

type FailureType string

const (
	FailureTypeTransport FailureType = "transport"
	FailureTypeBackend   FailureType = "backend"
	FailureTypeTimeout   FailureType = "timeout"
)

// BriefLifecycleEvent is published for every observable change of a tracked
// brief job.
type BriefLifecycleEvent struct {
	JobID       string      `json:"job_id"`
	Entity      string      `json:"entity"`
	Status      string      `json:"status"`
	Attempts    int         `json:"attempts"`
	Message     string      `json:"message,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	Error       string      `json:"error,omitempty"`
	FailureType FailureType `json:"failure_type,omitempty"`
	HappenedAt  int64       `json:"happened_at"`
}
