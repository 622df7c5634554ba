package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	wbserr "siteplan/internal/errors"
)

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const pgColumns = `id, project_id, parent_id, name, status, milestone, created_at, updated_at`

// EnsureTable creates the wbs_tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS wbs_tasks (
			id          TEXT PRIMARY KEY,
			project_id  TEXT NOT NULL,
			parent_id   TEXT NOT NULL DEFAULT '',
			name        TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			milestone   BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_wbs_tasks_project ON wbs_tasks(project_id, created_at, id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_wbs_tasks_parent ON wbs_tasks(parent_id) WHERE parent_id != ''`)
	return err
}

// ListTasks returns every task of a project in arrival order.
func (s *PgStore) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgColumns+`
		FROM wbs_tasks WHERE project_id = $1 ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, wbserr.Store("list tasks", err)
	}
	defer rows.Close()
	tasks, err := scanTaskRows(rows)
	if err != nil {
		return nil, wbserr.Store("list tasks", err)
	}
	return tasks, nil
}

// GetTask retrieves a single task by ID.
func (s *PgStore) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM wbs_tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, wbserr.NotFound(id)
	}
	if err != nil {
		return nil, wbserr.Store(fmt.Sprintf("get task %s", id), err)
	}
	return t, nil
}

// CreateTask inserts a single task.
func (s *PgStore) CreateTask(ctx context.Context, d Draft) (*Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, wbserr.Store("begin tx", err)
	}
	defer tx.Rollback(ctx)

	t, err := s.insert(ctx, tx, d)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, wbserr.Store("commit task", err)
	}
	return t, nil
}

// CreateTasksBulk inserts all drafts in one transaction. Any failure rolls
// back the whole batch.
func (s *PgStore) CreateTasksBulk(ctx context.Context, drafts []Draft) ([]Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, wbserr.Store("begin tx", err)
	}
	defer tx.Rollback(ctx)

	created := make([]Task, 0, len(drafts))
	for _, d := range drafts {
		t, err := s.insert(ctx, tx, d)
		if err != nil {
			return nil, err
		}
		created = append(created, *t)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, wbserr.Store("commit bulk", err)
	}
	return created, nil
}

func (s *PgStore) insert(ctx context.Context, tx pgx.Tx, d Draft) (*Task, error) {
	d = prepare(d)
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	if d.ParentID != "" {
		var parentProject string
		err := tx.QueryRow(ctx, `SELECT project_id FROM wbs_tasks WHERE id = $1`, d.ParentID).Scan(&parentProject)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wbserr.Validation("parent %s does not exist", d.ParentID)
		}
		if err != nil {
			return nil, wbserr.Store(fmt.Sprintf("lookup parent %s", d.ParentID), err)
		}
		if parentProject != d.ProjectID {
			return nil, wbserr.Validation("parent %s belongs to project %s", d.ParentID, parentProject)
		}
	}

	ts := now()
	t := &Task{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ProjectID: d.ProjectID,
		ParentID:  d.ParentID,
		Name:      d.Name,
		Status:    d.Status,
		Milestone: d.Milestone,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO wbs_tasks (`+pgColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.ProjectID, t.ParentID, t.Name, string(t.Status), t.Milestone, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, wbserr.Store("create task", err)
	}
	return t, nil
}

// UpdateTask modifies name, status and milestone. The parent is never touched.
func (s *PgStore) UpdateTask(ctx context.Context, id string, f Fields) (*Task, error) {
	if err := validateFields(f); err != nil {
		return nil, err
	}

	setClauses := "updated_at = $1"
	args := []any{now()}
	argIdx := 2

	if f.Name != nil {
		setClauses += fmt.Sprintf(", name = $%d", argIdx)
		args = append(args, *f.Name)
		argIdx++
	}
	if f.Status != nil {
		setClauses += fmt.Sprintf(", status = $%d", argIdx)
		args = append(args, string(*f.Status))
		argIdx++
	}
	if f.Milestone != nil {
		setClauses += fmt.Sprintf(", milestone = $%d", argIdx)
		args = append(args, *f.Milestone)
		argIdx++
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE wbs_tasks SET %s WHERE id = $%d RETURNING %s", setClauses, argIdx, pgColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, wbserr.NotFound(id)
	}
	if err != nil {
		return nil, wbserr.Store(fmt.Sprintf("update task %s", id), err)
	}
	return t, nil
}

// DeleteTask removes a task and its entire subtree.
func (s *PgStore) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT id FROM wbs_tasks WHERE id = $1
			UNION
			SELECT t.id FROM wbs_tasks t JOIN subtree s ON t.parent_id = s.id
		)
		DELETE FROM wbs_tasks WHERE id IN (SELECT id FROM subtree)`, id)
	if err != nil {
		return wbserr.Store(fmt.Sprintf("delete task %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return wbserr.NotFound(id)
	}
	return nil
}

// SetMilestone flips the milestone flag of a single task.
func (s *PgStore) SetMilestone(ctx context.Context, id string, milestone bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE wbs_tasks SET milestone = $1, updated_at = $2 WHERE id = $3`, milestone, now(), id)
	if err != nil {
		return wbserr.Store(fmt.Sprintf("set milestone %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return wbserr.NotFound(id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var status string
	if err := row.Scan(&t.ID, &t.ProjectID, &t.ParentID, &t.Name, &status, &t.Milestone, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = Status(status)
	return &t, nil
}

func scanTaskRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Task, error) {
	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}
