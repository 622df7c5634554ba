package task

import (
	"context"
	"sync"

	"github.com/google/uuid"

	wbserr "siteplan/internal/errors"
)

// MemStore is an in-process task store. Records are kept in insertion order.
type MemStore struct {
	mu    sync.RWMutex
	tasks []Task
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// EnsureTable is a no-op for the in-memory store.
func (s *MemStore) EnsureTable(_ context.Context) error { return nil }

// ListTasks returns a copy of every task in the project.
func (s *MemStore) ListTasks(_ context.Context, projectID string) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []Task{}
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			result = append(result, t)
		}
	}
	return result, nil
}

// GetTask returns a copy of a single task.
func (s *MemStore) GetTask(_ context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.index(id)
	if i < 0 {
		return nil, wbserr.NotFound(id)
	}
	cp := s.tasks[i]
	return &cp, nil
}

// CreateTask inserts a single task.
func (s *MemStore) CreateTask(ctx context.Context, d Draft) (*Task, error) {
	created, err := s.CreateTasksBulk(ctx, []Draft{d})
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

// CreateTasksBulk validates every draft before inserting any of them.
func (s *MemStore) CreateTasksBulk(_ context.Context, drafts []Draft) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepared := make([]Draft, len(drafts))
	for i, d := range drafts {
		d = prepare(d)
		if err := validateDraft(d); err != nil {
			return nil, err
		}
		if d.ParentID != "" {
			p := s.index(d.ParentID)
			if p < 0 {
				return nil, wbserr.Validation("parent %s does not exist", d.ParentID)
			}
			if s.tasks[p].ProjectID != d.ProjectID {
				return nil, wbserr.Validation("parent %s belongs to project %s", d.ParentID, s.tasks[p].ProjectID)
			}
		}
		prepared[i] = d
	}

	created := make([]Task, 0, len(prepared))
	for _, d := range prepared {
		ts := now()
		created = append(created, Task{
			ID:        uuid.Must(uuid.NewV7()).String(),
			ProjectID: d.ProjectID,
			ParentID:  d.ParentID,
			Name:      d.Name,
			Status:    d.Status,
			Milestone: d.Milestone,
			CreatedAt: ts,
			UpdatedAt: ts,
		})
	}
	s.tasks = append(s.tasks, created...)
	return created, nil
}

// UpdateTask modifies name, status and milestone.
func (s *MemStore) UpdateTask(_ context.Context, id string, f Fields) (*Task, error) {
	if err := validateFields(f); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return nil, wbserr.NotFound(id)
	}
	t := &s.tasks[i]
	if f.Name != nil {
		t.Name = *f.Name
	}
	if f.Status != nil {
		t.Status = *f.Status
	}
	if f.Milestone != nil {
		t.Milestone = *f.Milestone
	}
	t.UpdatedAt = now()
	cp := *t
	return &cp, nil
}

// DeleteTask removes a task and every descendant.
func (s *MemStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(id) < 0 {
		return wbserr.NotFound(id)
	}

	doomed := map[string]bool{id: true}
	for grew := true; grew; {
		grew = false
		for _, t := range s.tasks {
			if t.ParentID != "" && doomed[t.ParentID] && !doomed[t.ID] {
				doomed[t.ID] = true
				grew = true
			}
		}
	}

	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if !doomed[t.ID] {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	return nil
}

// SetMilestone flips the milestone flag of a single task.
func (s *MemStore) SetMilestone(ctx context.Context, id string, milestone bool) error {
	_, err := s.UpdateTask(ctx, id, Fields{Milestone: &milestone})
	return err
}

// Load replaces the store contents with the given records, keeping their ids.
// Used to seed fixtures and to restore exported snapshots.
func (s *MemStore) Load(records []Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append([]Task(nil), records...)
}

func (s *MemStore) index(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}
