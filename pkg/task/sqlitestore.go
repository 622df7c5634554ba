package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	wbserr "siteplan/internal/errors"
)

// sqliteTime is fixed-width so that text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000Z07:00"

// SQLiteStore is a SQLite-backed task store for single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore over an open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const sqliteColumns = `id, project_id, parent_id, name, status, milestone, created_at, updated_at`

// EnsureTable creates the wbs_tasks table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS wbs_tasks (
			id          TEXT PRIMARY KEY,
			project_id  TEXT NOT NULL,
			parent_id   TEXT NOT NULL DEFAULT '',
			name        TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			milestone   INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_wbs_tasks_project ON wbs_tasks(project_id, created_at, id)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_wbs_tasks_parent ON wbs_tasks(parent_id) WHERE parent_id != ''`)
	return err
}

// ListTasks returns every task of a project in arrival order.
func (s *SQLiteStore) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteColumns+`
		FROM wbs_tasks WHERE project_id = ? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, wbserr.Store("list tasks", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, wbserr.Store("list tasks", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wbserr.Store("list tasks", fmt.Errorf("row iteration: %w", err))
	}
	return tasks, nil
}

// GetTask retrieves a single task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanSQLiteTask(s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM wbs_tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wbserr.NotFound(id)
	}
	if err != nil {
		return nil, wbserr.Store(fmt.Sprintf("get task %s", id), err)
	}
	return t, nil
}

// CreateTask inserts a single task.
func (s *SQLiteStore) CreateTask(ctx context.Context, d Draft) (*Task, error) {
	created, err := s.CreateTasksBulk(ctx, []Draft{d})
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

// CreateTasksBulk inserts all drafts in one transaction.
func (s *SQLiteStore) CreateTasksBulk(ctx context.Context, drafts []Draft) ([]Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wbserr.Store("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := make([]Task, 0, len(drafts))
	for _, d := range drafts {
		d = prepare(d)
		if err := validateDraft(d); err != nil {
			return nil, err
		}
		if d.ParentID != "" {
			var parentProject string
			err := tx.QueryRowContext(ctx, `SELECT project_id FROM wbs_tasks WHERE id = ?`, d.ParentID).Scan(&parentProject)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, wbserr.Validation("parent %s does not exist", d.ParentID)
			}
			if err != nil {
				return nil, wbserr.Store(fmt.Sprintf("lookup parent %s", d.ParentID), err)
			}
			if parentProject != d.ProjectID {
				return nil, wbserr.Validation("parent %s belongs to project %s", d.ParentID, parentProject)
			}
		}

		ts := now().UTC()
		t := Task{
			ID:        uuid.Must(uuid.NewV7()).String(),
			ProjectID: d.ProjectID,
			ParentID:  d.ParentID,
			Name:      d.Name,
			Status:    d.Status,
			Milestone: d.Milestone,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO wbs_tasks (`+sqliteColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.ProjectID, t.ParentID, t.Name, string(t.Status), t.Milestone,
			t.CreatedAt.Format(sqliteTime), t.UpdatedAt.Format(sqliteTime))
		if err != nil {
			return nil, wbserr.Store("create task", err)
		}
		created = append(created, t)
	}

	if err := tx.Commit(); err != nil {
		return nil, wbserr.Store("commit tasks", err)
	}
	return created, nil
}

// UpdateTask modifies name, status and milestone. The parent is never touched.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, f Fields) (*Task, error) {
	if err := validateFields(f); err != nil {
		return nil, err
	}

	setClauses := "updated_at = ?"
	args := []any{now().UTC().Format(sqliteTime)}
	if f.Name != nil {
		setClauses += ", name = ?"
		args = append(args, *f.Name)
	}
	if f.Status != nil {
		setClauses += ", status = ?"
		args = append(args, string(*f.Status))
	}
	if f.Milestone != nil {
		setClauses += ", milestone = ?"
		args = append(args, *f.Milestone)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE wbs_tasks SET "+setClauses+" WHERE id = ?", args...)
	if err != nil {
		return nil, wbserr.Store(fmt.Sprintf("update task %s", id), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, wbserr.NotFound(id)
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task and its entire subtree.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM wbs_tasks WHERE id = ?
			UNION
			SELECT t.id FROM wbs_tasks t JOIN subtree s ON t.parent_id = s.id
		)
		DELETE FROM wbs_tasks WHERE id IN (SELECT id FROM subtree)`, id)
	if err != nil {
		return wbserr.Store(fmt.Sprintf("delete task %s", id), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wbserr.NotFound(id)
	}
	return nil
}

// SetMilestone flips the milestone flag of a single task.
func (s *SQLiteStore) SetMilestone(ctx context.Context, id string, milestone bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE wbs_tasks SET milestone = ?, updated_at = ? WHERE id = ?`,
		milestone, now().UTC().Format(sqliteTime), id)
	if err != nil {
		return wbserr.Store(fmt.Sprintf("set milestone %s", id), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wbserr.NotFound(id)
	}
	return nil
}

func scanSQLiteTask(row rowScanner) (*Task, error) {
	var t Task
	var status, createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.ProjectID, &t.ParentID, &t.Name, &status, &t.Milestone, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Status = Status(status)
	var err error
	if t.CreatedAt, err = time.Parse(sqliteTime, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(sqliteTime, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &t, nil
}
