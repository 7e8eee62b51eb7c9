package process

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

const (
	testInterval = time.Millisecond
	waitTimeout  = 2 * time.Second
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend scripts the initiate and status endpoints per key.
type fakeBackend struct {
	mu          sync.Mutex
	initiate    func(key EntityKey) (Initiation, error)
	status      func(ctx context.Context, key EntityKey, n int) (Status, error)
	initiations map[EntityKey]int
	queries     map[EntityKey]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		initiate: func(EntityKey) (Initiation, error) {
			return Initiation{InProgress: true}, nil
		},
		status: func(context.Context, EntityKey, int) (Status, error) {
			return Status{State: "pending"}, nil
		},
		initiations: make(map[EntityKey]int),
		queries:     make(map[EntityKey]int),
	}
}

func (f *fakeBackend) InitiateBrief(_ context.Context, key EntityKey) (Initiation, error) {
	f.mu.Lock()
	f.initiations[key]++
	fn := f.initiate
	f.mu.Unlock()
	return fn(key)
}

func (f *fakeBackend) QueryStatus(ctx context.Context, key EntityKey) (Status, error) {
	f.mu.Lock()
	f.queries[key]++
	n := f.queries[key]
	fn := f.status
	f.mu.Unlock()
	return fn(ctx, key, n)
}

func (f *fakeBackend) queryCount(key EntityKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[key]
}

func (f *fakeBackend) initiationCount(key EntityKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initiations[key]
}

type sinkEvent struct {
	kind    string
	key     EntityKey
	payload string
}

// recordingSink keeps every callback and signals terminal ones on done.
type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
	done   chan sinkEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan sinkEvent, 64)}
}

func (s *recordingSink) record(e sinkEvent, terminal bool) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	if terminal {
		s.done <- e
	}
}

func (s *recordingSink) OnProgress(key EntityKey, message string) {
	s.record(sinkEvent{kind: "progress", key: key, payload: message}, false)
}

func (s *recordingSink) OnCompleted(key EntityKey, brief string) {
	s.record(sinkEvent{kind: "completed", key: key, payload: brief}, true)
}

func (s *recordingSink) OnFailed(key EntityKey, reason string) {
	s.record(sinkEvent{kind: "failed", key: key, payload: reason}, true)
}

func (s *recordingSink) OnTimedOut(key EntityKey) {
	s.record(sinkEvent{kind: "timed_out", key: key}, true)
}

func (s *recordingSink) snapshot() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkEvent(nil), s.events...)
}

func (s *recordingSink) eventsFor(key EntityKey) []sinkEvent {
	var out []sinkEvent
	for _, e := range s.snapshot() {
		if e.key == key {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) waitTerminal(t *testing.T) sinkEvent {
	t.Helper()
	select {
	case e := <-s.done:
		return e
	case <-time.After(waitTimeout):
		t.Fatalf("no terminal callback within %s; events: %+v", waitTimeout, s.snapshot())
		return sinkEvent{}
	}
}

func (s *recordingSink) assertNoTerminal(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case e := <-s.done:
		t.Fatalf("unexpected terminal callback: %+v", e)
	case <-time.After(within):
	}
}

type recordingObserver struct {
	mu   sync.Mutex
	jobs []Job
}

func (o *recordingObserver) Observe(job Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, job)
}

func (o *recordingObserver) snapshot() []Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Job(nil), o.jobs...)
}

func newTestDispatcher(backend *fakeBackend, sink ResultSink, opts ...Option) (*Dispatcher, *Registry) {
	reg := NewRegistry()
	all := []Option{
		WithSink(sink),
		WithLogger(discardLogger()),
		WithOptions(Options{Interval: testInterval}),
	}
	all = append(all, opts...)
	return NewDispatcher(reg, backend, backend, all...), reg
}
