package process

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry owns the one-job-per-key invariant. It is safe for concurrent use;
// build one per session with NewRegistry and hand it to the Dispatcher.
type Registry struct {
	mu   sync.Mutex
	jobs map[EntityKey]*Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[EntityKey]*Job)}
}

// TryAcquire inserts a pending job for key unless one already exists. The
// returned Job is a snapshot of the job now registered for key.
func (r *Registry) TryAcquire(key EntityKey) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.jobs[key]; ok {
		return *existing, false
	}
	j := NewJob(key)
	r.jobs[key] = j
	return *j, true
}

// Get returns a copy of the job tracked for key.
func (r *Registry) Get(key EntityKey) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[key]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Update applies fn to the job for key. Absent keys are ignored.
func (r *Registry) Update(key EntityKey, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[key]; ok {
		fn(j)
	}
}

func (r *Registry) Release(key EntityKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, key)
}

// UpdateJob is Update restricted to the job generation id. It returns the
// updated snapshot, or false when key is absent or now belongs to another job.
func (r *Registry) UpdateJob(key EntityKey, id uuid.UUID, fn func(*Job)) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[key]
	if !ok || j.ID != id {
		return Job{}, false
	}
	fn(j)
	return *j, true
}

// FinishJob applies a terminal transition and removes the job in one step,
// so no reader ever observes a terminal job in the registry.
func (r *Registry) FinishJob(key EntityKey, id uuid.UUID, fn func(*Job)) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[key]
	if !ok || j.ID != id {
		return Job{}, false
	}
	fn(j)
	delete(r.jobs, key)
	return *j, true
}

// ReleaseJob removes key only while it still maps to job id.
func (r *Registry) ReleaseJob(key EntityKey, id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[key]
	if !ok || j.ID != id {
		return false
	}
	delete(r.jobs, key)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Keys returns the tracked keys in sorted order.
func (r *Registry) Keys() []EntityKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]EntityKey, 0, len(r.jobs))
	for k := range r.jobs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
