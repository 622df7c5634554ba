package wbs

import (
	"context"
	"strings"

	wbserr "siteplan/internal/errors"
	"siteplan/pkg/task"
)

// Entry is one row of a bulk creation request.
type Entry struct {
	Name      string      `json:"name" yaml:"name"`
	Status    task.Status `json:"status,omitempty" yaml:"status,omitempty"`
	Milestone bool        `json:"milestone,omitempty" yaml:"milestone,omitempty"`
	ParentID  string      `json:"parentId,omitempty" yaml:"parentId,omitempty"`
}

// Rebuild is the authoritative state re-fetched after a mutation.
type Rebuild struct {
	Records  []task.Task
	Tree     []*Node
	Warnings []IntegrityWarning
}

// Mutator validates mutations for one project, issues them against the store
// and re-fetches the full record list afterwards. It never patches a tree in
// place; the caller swaps in Rebuild.Tree.
type Mutator struct {
	store     task.Store
	projectID string
	policy    task.Policy
}

// NewMutator creates a Mutator bound to a project.
func NewMutator(store task.Store, projectID string, policy task.Policy) *Mutator {
	if policy == "" {
		policy = task.PolicyPermissive
	}
	return &Mutator{store: store, projectID: projectID, policy: policy}
}

// ProjectID returns the project the mutator is bound to.
func (m *Mutator) ProjectID() string {
	return m.projectID
}

// Reload fetches every record of the project and builds the tree.
func (m *Mutator) Reload(ctx context.Context) (Rebuild, error) {
	records, err := m.store.ListTasks(ctx, m.projectID)
	if err != nil {
		return Rebuild{}, wbserr.Store("reload tasks", err)
	}
	tree, warnings := Build(records)
	return Rebuild{Records: records, Tree: tree, Warnings: warnings}, nil
}

// Create adds a task under parentID ("" for a root). The parent must be part
// of the current tree. An empty status means pending.
func (m *Mutator) Create(ctx context.Context, current []*Node, parentID, name string, status task.Status, milestone bool) (*task.Task, Rebuild, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Rebuild{}, wbserr.Validation("name is required")
	}
	status, err := defaultStatus(status)
	if err != nil {
		return nil, Rebuild{}, err
	}
	if parentID != "" && Find(current, parentID) == nil {
		return nil, Rebuild{}, wbserr.Validation("parent %s is not part of the current tree", parentID)
	}

	created, err := m.store.CreateTask(ctx, task.Draft{
		ProjectID: m.projectID,
		ParentID:  parentID,
		Name:      name,
		Status:    status,
		Milestone: milestone,
	})
	if err != nil {
		return nil, Rebuild{}, wbserr.Store("create task", err)
	}
	rb, err := m.Reload(ctx)
	if err != nil {
		return nil, Rebuild{}, err
	}
	return created, rb, nil
}

// Update replaces name, status and milestone of a task. The parent cannot be
// changed; re-parenting is a delete followed by a create.
func (m *Mutator) Update(ctx context.Context, current []*Node, id, name string, status task.Status, milestone bool) (*task.Task, Rebuild, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Rebuild{}, wbserr.Validation("name is required")
	}
	if !status.Valid() {
		return nil, Rebuild{}, wbserr.Validation("unknown status %q", status)
	}
	if err := m.checkTransition(ctx, current, id, status); err != nil {
		return nil, Rebuild{}, err
	}

	updated, err := m.store.UpdateTask(ctx, id, task.Fields{Name: &name, Status: &status, Milestone: &milestone})
	if err != nil {
		return nil, Rebuild{}, wbserr.Store("update task "+id, err)
	}
	rb, err := m.Reload(ctx)
	if err != nil {
		return nil, Rebuild{}, err
	}
	return updated, rb, nil
}

// Delete removes a task. The store cascades the delete to every descendant.
func (m *Mutator) Delete(ctx context.Context, id string) (Rebuild, error) {
	if err := m.store.DeleteTask(ctx, id); err != nil {
		return Rebuild{}, wbserr.Store("delete task "+id, err)
	}
	return m.Reload(ctx)
}

// BulkCreate drops entries with a blank name and submits the rest as one
// batch. If nothing is left no store call is made.
func (m *Mutator) BulkCreate(ctx context.Context, current []*Node, entries []Entry) ([]task.Task, Rebuild, error) {
	drafts := make([]task.Draft, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		status, err := defaultStatus(e.Status)
		if err != nil {
			return nil, Rebuild{}, err
		}
		if e.ParentID != "" && Find(current, e.ParentID) == nil {
			return nil, Rebuild{}, wbserr.Validation("parent %s is not part of the current tree", e.ParentID)
		}
		drafts = append(drafts, task.Draft{
			ProjectID: m.projectID,
			ParentID:  e.ParentID,
			Name:      name,
			Status:    status,
			Milestone: e.Milestone,
		})
	}
	if len(drafts) == 0 {
		return nil, Rebuild{}, wbserr.Validation("no entries with a name to create")
	}

	created, err := m.store.CreateTasksBulk(ctx, drafts)
	if err != nil {
		return nil, Rebuild{}, wbserr.Store("bulk create tasks", err)
	}
	rb, err := m.Reload(ctx)
	if err != nil {
		return nil, Rebuild{}, err
	}
	return created, rb, nil
}

// ToggleMilestone flips the milestone flag of a node in the current tree,
// keeping its status. A non-blank name replaces the node's name.
func (m *Mutator) ToggleMilestone(ctx context.Context, current []*Node, id, name string) (*task.Task, Rebuild, error) {
	n := Find(current, id)
	if n == nil {
		return nil, Rebuild{}, wbserr.NotFound(id)
	}
	return m.Update(ctx, current, id, keepName(n, name), n.Status, !n.Milestone)
}

// SetStatus changes the status of a node in the current tree, keeping its
// milestone flag. A non-blank name replaces the node's name.
func (m *Mutator) SetStatus(ctx context.Context, current []*Node, id string, status task.Status, name string) (*task.Task, Rebuild, error) {
	n := Find(current, id)
	if n == nil {
		return nil, Rebuild{}, wbserr.NotFound(id)
	}
	return m.Update(ctx, current, id, keepName(n, name), status, n.Milestone)
}

// checkTransition applies the status policy. A task missing from the current
// tree is checked against its stored status unless every move is allowed.
func (m *Mutator) checkTransition(ctx context.Context, current []*Node, id string, to task.Status) error {
	if n := Find(current, id); n != nil {
		return m.policy.Check(n.Status, to)
	}
	if m.policy == task.PolicyPermissive {
		return nil
	}
	stored, err := m.store.GetTask(ctx, id)
	if err != nil {
		return wbserr.Store("get task "+id, err)
	}
	return m.policy.Check(stored.Status, to)
}

func keepName(n *Node, name string) string {
	if strings.TrimSpace(name) == "" {
		return n.Name
	}
	return name
}

func defaultStatus(s task.Status) (task.Status, error) {
	if s == "" {
		return task.StatusPending, nil
	}
	if !s.Valid() {
		return "", wbserr.Validation("unknown status %q", s)
	}
	return s, nil
}
