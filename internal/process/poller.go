package process

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-brief/pkg/schema"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 60

	ReasonStatusCheckFailed = "Failed to check brief generation status"
	ReasonGenerationFailed  = "Brief generation failed"
	DefaultProgressMessage  = "Processing…"
)

// Options is the polling policy shared by every poller of a Dispatcher.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// TransportRetries is how many consecutive failed status queries are
	// tolerated before the job fails. Zero means the first failure is
	// terminal. Tolerated failures still count as attempts.
	TransportRetries int
}

func DefaultOptions() Options {
	return Options{Interval: DefaultPollInterval, MaxAttempts: DefaultMaxAttempts}
}

// poller drives one job to a terminal state. Queries are strictly
// sequential and every callback for the job is emitted from run.
type poller struct {
	key      EntityKey
	id       uuid.UUID
	registry *Registry
	querier  StatusQuerier
	sink     ResultSink
	observer Observer
	opts     Options
	logger   *slog.Logger
	cancel   context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// stop suppresses every later callback. It reports whether this call was
// the one that stopped the poller.
func (p *poller) stop() bool {
	p.mu.Lock()
	already := p.stopped
	p.stopped = true
	p.mu.Unlock()
	p.cancel()
	return !already
}

// emit runs fn unless the poller was stopped. Holding mu while calling out
// guarantees nothing is delivered once stop has returned.
func (p *poller) emit(job Job, fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	if p.observer != nil {
		p.observer.Observe(job)
	}
	fn()
	return true
}

func (p *poller) run(ctx context.Context) {
	p.logger.Debug("poller started", "interval", p.opts.Interval, "max_attempts", p.opts.MaxAttempts)

	timer := time.NewTimer(p.opts.Interval)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("poller cancelled")
			return
		case <-timer.C:
		}

		status, err := p.querier.QueryStatus(ctx, p.key)
		if ctx.Err() != nil {
			p.logger.Debug("poller cancelled during status query")
			return
		}

		if err != nil {
			if failures < p.opts.TransportRetries {
				failures++
				job, ok := p.registry.UpdateJob(p.key, p.id, func(j *Job) {
					j.Attempts++
					j.UpdatedAt = time.Now()
				})
				if !ok {
					return
				}
				p.logger.Warn("status query failed, retrying", "attempt", job.Attempts, "consecutive_failures", failures, "err", err)
				if job.Attempts >= p.opts.MaxAttempts {
					p.timeout()
					return
				}
				timer.Reset(p.opts.Interval)
				continue
			}
			p.fail(fmt.Errorf("%w: %w", ErrPollTransport, err), ReasonStatusCheckFailed, schema.FailureTypeTransport)
			return
		}
		failures = 0

		switch status.State {
		case schema.BackendStatusCompleted:
			p.complete(status.Brief)
			return
		case schema.BackendStatusFailed:
			reason := status.Message
			if reason == "" {
				reason = ReasonGenerationFailed
			}
			p.fail(fmt.Errorf("%w: %s", ErrBackendFailure, reason), reason, schema.FailureTypeBackend)
			return
		}

		message := status.Message
		if message == "" {
			message = DefaultProgressMessage
		}
		job, ok := p.registry.UpdateJob(p.key, p.id, func(j *Job) { MarkInProgress(j, message) })
		if !ok {
			return
		}
		if !p.emit(job, func() { p.sink.OnProgress(p.key, message) }) {
			return
		}
		p.logger.Debug("brief still in progress", "attempt", job.Attempts, "backend_status", status.State, "message", message)

		if job.Attempts >= p.opts.MaxAttempts {
			p.timeout()
			return
		}
		timer.Reset(p.opts.Interval)
	}
}

func (p *poller) complete(brief string) {
	job, ok := p.registry.FinishJob(p.key, p.id, func(j *Job) { MarkCompleted(j, brief) })
	if !ok {
		return
	}
	p.logger.Info("brief completed", "attempts", job.Attempts)
	p.emit(job, func() { p.sink.OnCompleted(p.key, brief) })
}

func (p *poller) fail(cause error, reason string, failureType schema.FailureType) {
	job, ok := p.registry.FinishJob(p.key, p.id, func(j *Job) { MarkFailed(j, reason, failureType) })
	if !ok {
		return
	}
	p.logger.Warn("brief failed", "attempts", job.Attempts, "failure_type", failureType, "err", cause)
	p.emit(job, func() { p.sink.OnFailed(p.key, reason) })
}

func (p *poller) timeout() {
	job, ok := p.registry.FinishJob(p.key, p.id, MarkTimedOut)
	if !ok {
		return
	}
	p.logger.Warn("brief timed out", "attempts", job.Attempts, "err", ErrPollingTimeout)
	p.emit(job, func() { p.sink.OnTimedOut(p.key) })
}
