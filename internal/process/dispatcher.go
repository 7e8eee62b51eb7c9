package process

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// OutcomeKind tells the caller of RequestBrief what happened.
type OutcomeKind string

const (
	OutcomeImmediate     OutcomeKind = "immediate"
	OutcomeDeferred      OutcomeKind = "deferred"
	OutcomeDuplicate     OutcomeKind = "duplicate"
	OutcomeRequestFailed OutcomeKind = "request_failed"
)

// Outcome is the synchronous result of RequestBrief. Brief is set for
// OutcomeImmediate; Job for OutcomeDeferred and OutcomeDuplicate; Reason for
// OutcomeRequestFailed.
type Outcome struct {
	Kind   OutcomeKind
	Key    EntityKey
	Brief  string
	Job    Job
	Reason string
}

// Dispatcher is the entry point for requesting briefs. Deferred briefs are
// tracked in the Registry and driven by one poller goroutine per key.
type Dispatcher struct {
	registry  *Registry
	initiator Initiator
	querier   StatusQuerier
	sink      ResultSink
	observer  Observer
	opts      Options
	logger    *slog.Logger

	mu      sync.Mutex
	pollers map[EntityKey]*poller
	closed  bool
	wg      sync.WaitGroup
}

type Option func(*Dispatcher)

func WithSink(s ResultSink) Option { return func(d *Dispatcher) { d.sink = s } }

func WithObserver(o Observer) Option { return func(d *Dispatcher) { d.observer = o } }

func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// WithOptions replaces the polling policy. Non-positive values keep the
// defaults.
func WithOptions(o Options) Option {
	return func(d *Dispatcher) {
		if o.Interval > 0 {
			d.opts.Interval = o.Interval
		}
		if o.MaxAttempts > 0 {
			d.opts.MaxAttempts = o.MaxAttempts
		}
		if o.TransportRetries > 0 {
			d.opts.TransportRetries = o.TransportRetries
		}
	}
}

func NewDispatcher(registry *Registry, initiator Initiator, querier StatusQuerier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		initiator: initiator,
		querier:   querier,
		sink:      nopSink{},
		opts:      DefaultOptions(),
		logger:    slog.Default(),
		pollers:   make(map[EntityKey]*poller),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RequestBrief asks the backend for the brief of key. An error is returned
// only together with OutcomeRequestFailed.
func (d *Dispatcher) RequestBrief(ctx context.Context, key EntityKey) (Outcome, error) {
	key = NewEntityKey(string(key))
	if key == "" {
		return Outcome{Kind: OutcomeRequestFailed, Reason: ErrEmptyKey.Error()}, ErrEmptyKey
	}
	logger := d.logger.With("entity", key)

	if d.isClosed() {
		return Outcome{Kind: OutcomeRequestFailed, Key: key, Reason: ErrDispatcherClosed.Error()}, ErrDispatcherClosed
	}

	initiation, err := d.initiator.InitiateBrief(ctx, key)
	if err != nil {
		logger.Warn("initiate brief failed", "err", err)
		return Outcome{Kind: OutcomeRequestFailed, Key: key, Reason: err.Error()},
			fmt.Errorf("%w: %w", ErrInitiationFailed, err)
	}
	if !initiation.InProgress {
		logger.Info("brief available immediately")
		return Outcome{Kind: OutcomeImmediate, Key: key, Brief: initiation.Brief}, nil
	}

	job, p, pctx, err := d.acquire(ctx, key, logger)
	if err != nil {
		return Outcome{Kind: OutcomeRequestFailed, Key: key, Reason: err.Error()}, err
	}
	if p == nil {
		logger.Info("brief already tracked", "job_id", job.ID, "status", job.Status, "attempts", job.Attempts)
		return Outcome{Kind: OutcomeDuplicate, Key: key, Job: job}, nil
	}

	// The creation snapshot takes the emit lock so a Cancel that won the
	// race suppresses it.
	p.emit(job, func() {})
	go func() {
		defer d.wg.Done()
		defer d.forget(p)
		p.run(pctx)
	}()
	logger.Info("brief deferred, polling started", "job_id", job.ID)
	return Outcome{Kind: OutcomeDeferred, Key: key, Job: job}, nil
}

// acquire registers a job and its poller for key under d.mu, so a job that
// is visible in the registry can always be cancelled. A nil poller means key
// was already tracked and job is the existing snapshot.
func (d *Dispatcher) acquire(ctx context.Context, key EntityKey, logger *slog.Logger) (Job, *poller, context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Job{}, nil, nil, ErrDispatcherClosed
	}

	job, acquired := d.registry.TryAcquire(key)
	if !acquired {
		return job, nil, nil, nil
	}

	// Pollers outlive the request that started them.
	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &poller{
		key:      job.Key,
		id:       job.ID,
		registry: d.registry,
		querier:  d.querier,
		sink:     d.sink,
		observer: d.observer,
		opts:     d.opts,
		logger:   logger.With("job_id", job.ID),
		cancel:   cancel,
	}
	d.pollers[key] = p
	d.wg.Add(1)
	return job, p, pctx, nil
}

func (d *Dispatcher) forget(p *poller) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pollers[p.key] == p {
		delete(d.pollers, p.key)
	}
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Job returns a snapshot of the job tracked for key.
func (d *Dispatcher) Job(key EntityKey) (Job, bool) {
	return d.registry.Get(NewEntityKey(string(key)))
}

// Cancel stops tracking key. No callback for the cancelled job is delivered
// after Cancel returns, and no terminal callback fires for it. It reports
// whether a job was being tracked.
func (d *Dispatcher) Cancel(key EntityKey) bool {
	key = NewEntityKey(string(key))

	d.mu.Lock()
	p, ok := d.pollers[key]
	if ok {
		delete(d.pollers, key)
	}
	d.mu.Unlock()
	if !ok {
		return false
	}

	stopped := p.stop()
	released := d.registry.ReleaseJob(key, p.id)
	p.logger.Info("brief tracking cancelled", "released", released)
	return stopped
}

// Close cancels every outstanding job and waits up to timeout for the
// pollers to exit. Later RequestBrief calls fail with ErrDispatcherClosed.
func (d *Dispatcher) Close(timeout time.Duration) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	pollers := make([]*poller, 0, len(d.pollers))
	for key, p := range d.pollers {
		pollers = append(pollers, p)
		delete(d.pollers, key)
	}
	d.mu.Unlock()

	d.logger.Info("dispatcher shutting down", "outstanding", len(pollers))
	for _, p := range pollers {
		p.stop()
		d.registry.ReleaseJob(p.key, p.id)
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("all pollers exited")
		return nil
	case <-time.After(timeout):
		d.logger.Error("shutdown timed out, some pollers may still be running", "timeout", timeout)
		return ErrShutdownTimeout
	}
}
