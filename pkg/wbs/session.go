package wbs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	wbserr "siteplan/internal/errors"
	"siteplan/pkg/task"
)

// Session holds the built tree of one project plus its expanded flags.
// A failed mutation leaves the current tree untouched.
type Session struct {
	mutator *Mutator
	bus     *Bus
	logger  *slog.Logger

	// mutating serializes mutations so each reload is swapped in order.
	mutating sync.Mutex

	mu       sync.RWMutex
	tree     []*Node
	warnings []IntegrityWarning
	loaded   bool
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	policy task.Policy
	bus    *Bus
	logger *slog.Logger
}

// WithPolicy sets the status transition policy. The default is permissive.
func WithPolicy(p task.Policy) Option {
	return func(o *sessionOptions) { o.policy = p }
}

// WithBus publishes a ChangeEvent after every load and mutation.
func WithBus(b *Bus) Option {
	return func(o *sessionOptions) { o.bus = b }
}

// WithLogger sets the logger used for integrity warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *sessionOptions) { o.logger = l }
}

// NewSession creates an unloaded session for projectID.
func NewSession(store task.Store, projectID string, opts ...Option) *Session {
	o := sessionOptions{policy: task.PolicyPermissive}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Session{
		mutator: NewMutator(store, projectID, o.policy),
		bus:     o.bus,
		logger:  o.logger.With("project", projectID),
		tree:    []*Node{},
	}
}

// ProjectID returns the project this session is bound to.
func (s *Session) ProjectID() string {
	return s.mutator.ProjectID()
}

// Load fetches all records and replaces the tree.
func (s *Session) Load(ctx context.Context) error {
	s.mutating.Lock()
	defer s.mutating.Unlock()

	rb, err := s.mutator.Reload(ctx)
	if err != nil {
		return err
	}
	s.apply(ChangeLoaded, rb)
	return nil
}

// Loaded reports whether Load has succeeded at least once.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Tree returns a copy of the current forest.
func (s *Session) Tree() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Clone(s.tree)
}

// Warnings returns the integrity warnings of the last build.
func (s *Session) Warnings() []IntegrityWarning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]IntegrityWarning(nil), s.warnings...)
}

// Node returns the record of a node in the current tree.
func (s *Session) Node(id string) (task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := Find(s.tree, id)
	if n == nil {
		return task.Task{}, false
	}
	return n.Task, true
}

// Completion returns the weighted completion of the current tree.
func (s *Session) Completion() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Completion(s.tree)
}

// Milestones returns copies of the milestone nodes of the current tree.
func (s *Session) Milestones() []*Node {
	return Milestones(s.Tree())
}

// Snapshot is a consistent read of the session state.
type Snapshot struct {
	ProjectID    string              `json:"projectId"`
	Tree         []*Node             `json:"tree"`
	Completion   int                 `json:"completion"`
	Milestones   []*Node             `json:"milestones"`
	StatusCounts map[task.Status]int `json:"statusCounts"`
	Warnings     []IntegrityWarning  `json:"warnings,omitempty"`
}

// Snapshot returns tree, completion, milestones and warnings taken together.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	tree := Clone(s.tree)
	warnings := append([]IntegrityWarning(nil), s.warnings...)
	s.mu.RUnlock()

	return Snapshot{
		ProjectID:    s.ProjectID(),
		Tree:         tree,
		Completion:   Completion(tree),
		Milestones:   Milestones(tree),
		StatusCounts: StatusCounts(tree),
		Warnings:     warnings,
	}
}

// SetExpanded sets the transient expanded flag of a node.
func (s *Session) SetExpanded(id string, expanded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := Find(s.tree, id)
	if n == nil {
		return wbserr.NotFound(id)
	}
	n.Expanded = expanded
	return nil
}

// ToggleExpanded flips the expanded flag and returns the new value.
func (s *Session) ToggleExpanded(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := Find(s.tree, id)
	if n == nil {
		return false, wbserr.NotFound(id)
	}
	n.Expanded = !n.Expanded
	return n.Expanded, nil
}

// ExpandAll sets every node expanded.
func (s *Session) ExpandAll() { s.setAll(true) }

// CollapseAll sets every node collapsed.
func (s *Session) CollapseAll() { s.setAll(false) }

func (s *Session) setAll(expanded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	Walk(s.tree, func(n *Node, _ int) bool {
		n.Expanded = expanded
		return true
	})
}

// Create adds a task and rebuilds the tree.
func (s *Session) Create(ctx context.Context, parentID, name string, status task.Status, milestone bool) (*task.Task, error) {
	s.mutating.Lock()
	defer s.mutating.Unlock()

	t, rb, err := s.mutator.Create(ctx, s.current(), parentID, name, status, milestone)
	if err != nil {
		return nil, err
	}
	s.apply(ChangeCreated, rb, t.ID)
	return t, nil
}

// Update replaces name, status and milestone of a task and rebuilds the tree.
func (s *Session) Update(ctx context.Context, id, name string, status task.Status, milestone bool) (*task.Task, error) {
	s.mutating.Lock()
	defer s.mutating.Unlock()

	t, rb, err := s.mutator.Update(ctx, s.current(), id, name, status, milestone)
	if err != nil {
		return nil, err
	}
	s.apply(ChangeUpdated, rb, t.ID)
	return t, nil
}

// Delete removes a task with its subtree and rebuilds the tree.
func (s *Session) Delete(ctx context.Context, id string) error {
	s.mutating.Lock()
	defer s.mutating.Unlock()

	rb, err := s.mutator.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.apply(ChangeDeleted, rb, id)
	return nil
}

// BulkCreate submits the named entries as one batch and rebuilds the tree.
func (s *Session) BulkCreate(ctx context.Context, entries []Entry) ([]task.Task, error) {
	s.mutating.Lock()
	defer s.mutating.Unlock()

	created, rb, err := s.mutator.BulkCreate(ctx, s.current(), entries)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(created))
	for i, t := range created {
		ids[i] = t.ID
	}
	s.apply(ChangeBulk, rb, ids...)
	return created, nil
}

// ToggleMilestone flips the milestone flag of a task and rebuilds the tree.
func (s *Session) ToggleMilestone(ctx context.Context, id, name string) (*task.Task, error) {
	s.mutating.Lock()
	defer s.mutating.Unlock()

	t, rb, err := s.mutator.ToggleMilestone(ctx, s.current(), id, name)
	if err != nil {
		return nil, err
	}
	s.apply(ChangeUpdated, rb, t.ID)
	return t, nil
}

// SetStatus changes the status of a task and rebuilds the tree.
func (s *Session) SetStatus(ctx context.Context, id string, status task.Status, name string) (*task.Task, error) {
	s.mutating.Lock()
	defer s.mutating.Unlock()

	t, rb, err := s.mutator.SetStatus(ctx, s.current(), id, status, name)
	if err != nil {
		return nil, err
	}
	s.apply(ChangeUpdated, rb, t.ID)
	return t, nil
}

// current returns the live tree for read-only validation. Callers hold
// s.mutating, so the tree cannot be swapped underneath them.
func (s *Session) current() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree
}

func (s *Session) apply(kind ChangeKind, rb Rebuild, taskIDs ...string) {
	for _, w := range rb.Warnings {
		s.logger.Warn("wbs integrity", "code", string(w.Code), "task", w.TaskID, "parent", w.ParentID)
	}

	s.mu.Lock()
	s.tree = rb.Tree
	s.warnings = rb.Warnings
	s.loaded = true
	completion := Completion(s.tree)
	s.mu.Unlock()

	s.logger.Debug("wbs rebuilt", "kind", string(kind), "tasks", len(rb.Records), "completion", completion)
	if s.bus != nil {
		s.bus.Publish(ChangeEvent{
			Kind:       kind,
			ProjectID:  s.ProjectID(),
			TaskIDs:    taskIDs,
			Completion: completion,
			At:         time.Now(),
		})
	}
}
