package wbs

import (
	"context"
	"fmt"
	"sync"

	"siteplan/pkg/task"
)

// spyStore wraps a MemStore, counts calls and can inject failures.
type spyStore struct {
	*task.MemStore

	mu       sync.Mutex
	calls    map[string]int
	failList error // returned by ListTasks when set
	failNext error // returned once by the next mutating call
}

func newSpyStore() *spyStore {
	return &spyStore{MemStore: task.NewMemStore(), calls: map[string]int{}}
}

func (s *spyStore) record(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
	if name != "ListTasks" && s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	return nil
}

func (s *spyStore) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *spyStore) mutations() int {
	return s.count("CreateTask") + s.count("CreateTasksBulk") + s.count("UpdateTask") +
		s.count("DeleteTask") + s.count("SetMilestone")
}

func (s *spyStore) ListTasks(ctx context.Context, projectID string) ([]task.Task, error) {
	s.record("ListTasks")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	err := s.failList
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemStore.ListTasks(ctx, projectID)
}

func (s *spyStore) CreateTask(ctx context.Context, d task.Draft) (*task.Task, error) {
	if err := s.record("CreateTask"); err != nil {
		return nil, err
	}
	return s.MemStore.CreateTask(ctx, d)
}

func (s *spyStore) CreateTasksBulk(ctx context.Context, drafts []task.Draft) ([]task.Task, error) {
	if err := s.record("CreateTasksBulk"); err != nil {
		return nil, err
	}
	return s.MemStore.CreateTasksBulk(ctx, drafts)
}

func (s *spyStore) UpdateTask(ctx context.Context, id string, f task.Fields) (*task.Task, error) {
	if err := s.record("UpdateTask"); err != nil {
		return nil, err
	}
	return s.MemStore.UpdateTask(ctx, id, f)
}

func (s *spyStore) DeleteTask(ctx context.Context, id string) error {
	if err := s.record("DeleteTask"); err != nil {
		return err
	}
	return s.MemStore.DeleteTask(ctx, id)
}

func (s *spyStore) SetMilestone(ctx context.Context, id string, milestone bool) error {
	if err := s.record("SetMilestone"); err != nil {
		return err
	}
	return s.MemStore.SetMilestone(ctx, id, milestone)
}

var errUnavailable = fmt.Errorf("connection refused")

// seeded returns a spy store holding the Foundation scenario in project p1.
func seeded() *spyStore {
	s := newSpyStore()
	s.Load(foundation())
	return s
}
