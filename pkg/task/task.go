package task

import (
	"context"
	"strings"
	"time"

	wbserr "siteplan/internal/errors"
)

// Status is the lifecycle state of a WBS task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDelayed    Status = "delayed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusDelayed}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusDelayed:
		return true
	}
	return false
}

// Task is a flat work breakdown record as stored and transmitted.
type Task struct {
	ID        string    `json:"taskId" yaml:"taskId"`
	ProjectID string    `json:"projectId" yaml:"projectId"`
	ParentID  string    `json:"parentId,omitempty" yaml:"parentId,omitempty"` // "" = root-level
	Name      string    `json:"name" yaml:"name"`
	Status    Status    `json:"status" yaml:"status"`
	Milestone bool      `json:"milestone" yaml:"milestone"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// IsRoot reports whether the record has no parent reference.
func (t Task) IsRoot() bool {
	return t.ParentID == ""
}

// Draft returns the record without its id, as submitted for creation.
func (t Task) Draft() Draft {
	return Draft{ProjectID: t.ProjectID, ParentID: t.ParentID, Name: t.Name, Status: t.Status, Milestone: t.Milestone}
}

// Draft is a task record without an id, as submitted for creation.
type Draft struct {
	ProjectID string `json:"projectId"`
	ParentID  string `json:"parentId,omitempty"`
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Milestone bool   `json:"milestone"`
}

// Fields is a partial update. Nil pointers leave the stored value unchanged.
// A task cannot be re-parented, so there is no parent field.
type Fields struct {
	Name      *string `json:"name,omitempty"`
	Status    *Status `json:"status,omitempty"`
	Milestone *bool   `json:"milestone,omitempty"`
}

// Empty reports whether no field is set.
func (f Fields) Empty() bool {
	return f.Name == nil && f.Status == nil && f.Milestone == nil
}

// Store is the contract for task persistence. DeleteTask must remove every
// descendant of the addressed task as well.
type Store interface {
	ListTasks(ctx context.Context, projectID string) ([]Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	CreateTask(ctx context.Context, d Draft) (*Task, error)
	CreateTasksBulk(ctx context.Context, drafts []Draft) ([]Task, error)
	UpdateTask(ctx context.Context, id string, f Fields) (*Task, error)
	DeleteTask(ctx context.Context, id string) error
	SetMilestone(ctx context.Context, id string, milestone bool) error
	EnsureTable(ctx context.Context) error
}

// prepare fills defaults on a draft before it is written.
func prepare(d Draft) Draft {
	d.Name = strings.TrimSpace(d.Name)
	if d.Status == "" {
		d.Status = StatusPending
	}
	return d
}

func validateDraft(d Draft) error {
	if d.ProjectID == "" {
		return wbserr.Validation("project id is required")
	}
	if d.Name == "" {
		return wbserr.Validation("name is required")
	}
	if !d.Status.Valid() {
		return wbserr.Validation("unknown status %q", d.Status)
	}
	return nil
}

func validateFields(f Fields) error {
	if f.Name != nil && strings.TrimSpace(*f.Name) == "" {
		return wbserr.Validation("name is required")
	}
	if f.Status != nil && !f.Status.Valid() {
		return wbserr.Validation("unknown status %q", *f.Status)
	}
	return nil
}

func now() time.Time {
	return time.Now().Truncate(time.Microsecond)
}
