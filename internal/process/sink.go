package process

import "context"

// ResultSink receives progress and terminal outcomes. For a given job the
// calls arrive as OnProgress* followed by exactly one of OnCompleted,
// OnFailed or OnTimedOut. Callbacks must not call Dispatcher.Cancel for
// their own key synchronously.
type ResultSink interface {
	OnProgress(key EntityKey, message string)
	OnCompleted(key EntityKey, brief string)
	OnFailed(key EntityKey, reason string)
	OnTimedOut(key EntityKey)
}

// Observer receives a snapshot of the job on creation and after every
// transition. It is invoked before the matching ResultSink callback.
// Cancelled jobs are not reported.
type Observer interface {
	Observe(job Job)
}

// Initiator starts brief generation on the backend.
type Initiator interface {
	InitiateBrief(ctx context.Context, key EntityKey) (Initiation, error)
}

// Initiation is the decoded answer of the initiate call.
type Initiation struct {
	InProgress bool
	Brief      string
}

// StatusQuerier asks the backend for the progress of a job.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, key EntityKey) (Status, error)
}

// Status is one decoded poll response.
type Status struct {
	State   string
	Message string
	Brief   string
}

type nopSink struct{}

func (nopSink) OnProgress(EntityKey, string)  {}
func (nopSink) OnCompleted(EntityKey, string) {}
func (nopSink) OnFailed(EntityKey, string)    {}
func (nopSink) OnTimedOut(EntityKey)          {}
