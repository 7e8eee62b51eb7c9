package sink

import (
	"log/slog"
	"time"

	"github.com/tendant/simple-brief/internal/process"
	"github.com/tendant/simple-brief/pkg/schema"
)

// Publisher is the subset of bus.Client the Bus observer needs.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// Bus publishes a lifecycle event for every job transition. Publish errors
// are logged and dropped.
type Bus struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
}

func NewBus(pub Publisher, subject string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{pub: pub, subject: subject, logger: logger}
}

func (b *Bus) Observe(job process.Job) {
	event := LifecycleEvent(job)
	if err := b.pub.PublishJSON(b.subject, event); err != nil {
		b.logger.Error("publish lifecycle event failed", "subject", b.subject, "entity", job.Key, "status", job.Status, "err", err)
	}
}

// LifecycleEvent converts a job snapshot into its wire event.
func LifecycleEvent(job process.Job) schema.BriefLifecycleEvent {
	event := schema.BriefLifecycleEvent{
		JobID:       job.ID.String(),
		Entity:      job.Key.String(),
		Status:      string(job.Status),
		Attempts:    job.Attempts,
		Message:     job.LastMessage,
		FailureType: job.FailureType,
		HappenedAt:  job.UpdatedAt.Unix(),
	}
	if job.UpdatedAt.IsZero() {
		event.HappenedAt = time.Now().Unix()
	}
	switch job.Status {
	case process.JobStatusCompleted:
		event.Summary = job.Result
	case process.JobStatusFailed:
		event.Error = job.FailureReason
	case process.JobStatusTimedOut:
		event.Error = process.ErrPollingTimeout.Error()
	}
	return event
}
