package wbs

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"siteplan/pkg/task"
)

// Registry hands out one loaded Session per project.
// Concurrent first requests for the same project share a single load.
type Registry struct {
	store task.Store
	opts  []Option

	mu       sync.RWMutex
	sessions map[string]*Session
	group    singleflight.Group
}

// NewRegistry creates a Registry; opts are applied to every new session.
func NewRegistry(store task.Store, opts ...Option) *Registry {
	return &Registry{
		store:    store,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Session returns the loaded session for projectID, loading it on first use.
// A failed first load is not cached.
func (r *Registry) Session(ctx context.Context, projectID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[projectID]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := r.group.Do(projectID, func() (any, error) {
		r.mu.RLock()
		existing, ok := r.sessions[projectID]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		// Waiters share this load, so one caller going away must not fail it.
		s := NewSession(r.store, projectID, r.opts...)
		if err := s.Load(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sessions[projectID] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Forget drops the cached session so the next request reloads it.
func (r *Registry) Forget(projectID string) {
	r.mu.Lock()
	delete(r.sessions, projectID)
	r.mu.Unlock()
}

// Projects returns the ids of all loaded sessions.
func (r *Registry) Projects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
