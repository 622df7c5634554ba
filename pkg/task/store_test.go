package task

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	wbserr "siteplan/internal/errors"
)

// storeFactories runs the shared contract against every store that works
// without external services.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemStore() },
		"sqlite": func() Store {
			db, err := sql.Open("sqlite", ":memory:")
			require.NoError(t, err)
			db.SetMaxOpenConns(1)
			t.Cleanup(func() { _ = db.Close() })
			s := NewSQLiteStore(db)
			require.NoError(t, s.EnsureTable(context.Background()))
			return s
		},
	}
}

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestStore_CreateAndList(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			root, err := s.CreateTask(ctx, Draft{ProjectID: "p1", Name: "  Foundation  "})
			require.NoError(t, err)
			assert.NotEmpty(t, root.ID)
			assert.Equal(t, "Foundation", root.Name)
			assert.Equal(t, StatusPending, root.Status)
			assert.True(t, root.IsRoot())

			child, err := s.CreateTask(ctx, Draft{ProjectID: "p1", ParentID: root.ID, Name: "Excavation", Status: StatusCompleted, Milestone: true})
			require.NoError(t, err)
			assert.Equal(t, root.ID, child.ParentID)

			_, err = s.CreateTask(ctx, Draft{ProjectID: "p2", Name: "Other project"})
			require.NoError(t, err)

			list, err := s.ListTasks(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, []string{root.ID, child.ID}, ids(list))
			assert.True(t, list[1].Milestone)
			assert.Equal(t, StatusCompleted, list[1].Status)

			empty, err := s.ListTasks(ctx, "nope")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_CreateValidation(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			_, err := s.CreateTask(ctx, Draft{ProjectID: "p1", Name: "   "})
			assert.True(t, wbserr.IsValidation(err))

			_, err = s.CreateTask(ctx, Draft{ProjectID: "p1", Name: "x", Status: "finished"})
			assert.True(t, wbserr.IsValidation(err))

			_, err = s.CreateTask(ctx, Draft{ProjectID: "p1", ParentID: "missing", Name: "x"})
			assert.True(t, wbserr.IsValidation(err))

			other, err := s.CreateTask(ctx, Draft{ProjectID: "p2", Name: "elsewhere"})
			require.NoError(t, err)
			_, err = s.CreateTask(ctx, Draft{ProjectID: "p1", ParentID: other.ID, Name: "x"})
			assert.True(t, wbserr.IsValidation(err))
		})
	}
}

func TestStore_BulkIsAllOrNothing(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			created, err := s.CreateTasksBulk(ctx, []Draft{
				{ProjectID: "p1", Name: "Roofing"},
				{ProjectID: "p1", Name: "Plumbing", Status: StatusInProgress},
			})
			require.NoError(t, err)
			require.Len(t, created, 2)
			assert.Equal(t, "Roofing", created[0].Name)

			_, err = s.CreateTasksBulk(ctx, []Draft{
				{ProjectID: "p1", Name: "Electrical"},
				{ProjectID: "p1", Name: ""},
			})
			require.Error(t, err)

			list, err := s.ListTasks(ctx, "p1")
			require.NoError(t, err)
			assert.Len(t, list, 2, "failed batch must not leave partial rows")
		})
	}
}

func TestStore_Update(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()
			created, err := s.CreateTask(ctx, Draft{ProjectID: "p1", Name: "Framing"})
			require.NoError(t, err)

			newName := "Timber framing"
			done := StatusCompleted
			updated, err := s.UpdateTask(ctx, created.ID, Fields{Name: &newName, Status: &done})
			require.NoError(t, err)
			assert.Equal(t, "Timber framing", updated.Name)
			assert.Equal(t, StatusCompleted, updated.Status)
			assert.False(t, updated.Milestone)

			require.NoError(t, s.SetMilestone(ctx, created.ID, true))
			got, err := s.GetTask(ctx, created.ID)
			require.NoError(t, err)
			assert.True(t, got.Milestone)
			assert.Equal(t, "Timber framing", got.Name)

			_, err = s.UpdateTask(ctx, "missing", Fields{Name: &newName})
			assert.True(t, wbserr.IsNotFound(err))
			assert.True(t, wbserr.IsNotFound(s.SetMilestone(ctx, "missing", true)))

			_, err = s.GetTask(ctx, "missing")
			assert.True(t, wbserr.IsNotFound(err))
		})
	}
}

func TestStore_DeleteCascades(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			a, err := s.CreateTask(ctx, Draft{ProjectID: "p1", Name: "A"})
			require.NoError(t, err)
			b, err := s.CreateTask(ctx, Draft{ProjectID: "p1", ParentID: a.ID, Name: "B"})
			require.NoError(t, err)
			_, err = s.CreateTask(ctx, Draft{ProjectID: "p1", ParentID: b.ID, Name: "C"})
			require.NoError(t, err)
			d, err := s.CreateTask(ctx, Draft{ProjectID: "p1", Name: "D"})
			require.NoError(t, err)

			require.NoError(t, s.DeleteTask(ctx, a.ID))

			list, err := s.ListTasks(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, []string{d.ID}, ids(list))

			assert.True(t, wbserr.IsNotFound(s.DeleteTask(ctx, a.ID)))
		})
	}
}

func TestMemStore_Load(t *testing.T) {
	s := NewMemStore()
	s.Load([]Task{
		{ID: "1", ProjectID: "p1", Name: "Foundation", Status: StatusCompleted},
		{ID: "2", ProjectID: "p1", ParentID: "1", Name: "Excavation", Status: StatusCompleted},
	})
	list, err := s.ListTasks(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(list))
}
