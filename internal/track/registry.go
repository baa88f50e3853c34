package track

import (
	"sort"
	"sync"
	"time"
)

// Registry holds live execution records in memory. It is process-local
// with no persistence; the engine is its sole mutator, everyone else
// reads copies.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Execution
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Execution)}
}

func (r *Registry) Insert(e *Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[e.ID] = e
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
}

// Get returns a copy; callers never see the live record.
func (r *Registry) Get(id string) (Execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.records[id]
	if !ok {
		return Execution{}, false
	}
	return *e, true
}

// Update applies fn to the live record under the write lock and returns
// the resulting copy. fn must re-check terminality before mutating; a
// terminal record never changes again.
func (r *Registry) Update(id string, fn func(*Execution)) (Execution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.records[id]
	if !ok {
		return Execution{}, false
	}
	fn(e)
	return *e, true
}

// List returns copies of every record, newest first.
func (r *Registry) List() []Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Execution, 0, len(r.records))
	for _, e := range r.records {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// EvictOlderThan removes terminal records that ended at least age ago.
// Age zero evicts every terminal record. Non-terminal records are never
// evicted. Returns the ids of the removed records.
func (r *Registry) EvictOlderThan(age time.Duration) []string {
	cutoff := time.Now().Add(-age)
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id, e := range r.records {
		if !e.Status.Terminal() || e.EndedAt == nil {
			continue
		}
		if !e.EndedAt.After(cutoff) {
			delete(r.records, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
