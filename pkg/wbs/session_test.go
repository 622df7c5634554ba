package wbs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wbserr "siteplan/internal/errors"
	"siteplan/pkg/task"
)

func TestSession_LoadAndViews(t *testing.T) {
	s := NewSession(seeded(), "p1")
	assert.False(t, s.Loaded())
	assert.Empty(t, s.Tree())

	require.NoError(t, s.Load(context.Background()))
	assert.True(t, s.Loaded())
	assert.Equal(t, "p1", s.ProjectID())
	assert.Equal(t, 50, s.Completion())
	assert.Empty(t, s.Milestones())
	assert.Empty(t, s.Warnings())

	snap := s.Snapshot()
	assert.Equal(t, "p1", snap.ProjectID)
	assert.Equal(t, 50, snap.Completion)
	assert.Equal(t, 2, snap.StatusCounts[task.StatusCompleted])
	assert.Equal(t, 1, snap.StatusCounts[task.StatusPending])
	require.Len(t, snap.Tree, 1)
}

func TestSession_WarningsSurface(t *testing.T) {
	store := newSpyStore()
	store.Load([]task.Task{rec("1", "gone", "Orphan", task.StatusCompleted)})
	s := NewSession(store, "p1")
	require.NoError(t, s.Load(context.Background()))

	warnings := s.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, wbserr.CodeIntegrityOrphan, warnings[0].Code)
	assert.Equal(t, 100, s.Completion())
}

func TestSession_ExpandedIsTransient(t *testing.T) {
	ctx := context.Background()
	s := NewSession(seeded(), "p1")
	require.NoError(t, s.Load(ctx))

	require.NoError(t, s.SetExpanded("1", true))
	assert.True(t, s.Tree()[0].Expanded)

	v, err := s.ToggleExpanded("2")
	require.NoError(t, err)
	assert.True(t, v)

	assert.True(t, wbserr.IsNotFound(s.SetExpanded("ghost", true)))
	_, err = s.ToggleExpanded("ghost")
	assert.True(t, wbserr.IsNotFound(err))

	// Any rebuild resets the flags.
	_, err = s.Create(ctx, "1", "Curing", "", false)
	require.NoError(t, err)
	Walk(s.Tree(), func(n *Node, _ int) bool {
		assert.False(t, n.Expanded, n.ID)
		return true
	})

	s.ExpandAll()
	Walk(s.Tree(), func(n *Node, _ int) bool {
		assert.True(t, n.Expanded, n.ID)
		return true
	})
	s.CollapseAll()
	assert.False(t, s.Tree()[0].Expanded)
}

func TestSession_TreeIsACopy(t *testing.T) {
	s := NewSession(seeded(), "p1")
	require.NoError(t, s.Load(context.Background()))

	tree := s.Tree()
	tree[0].Expanded = true
	tree[0].Children = nil
	assert.False(t, s.Tree()[0].Expanded)
	assert.Len(t, s.Tree()[0].Children, 2)
}

func TestSession_FailedMutationKeepsTree(t *testing.T) {
	ctx := context.Background()
	store := seeded()
	s := NewSession(store, "p1")
	require.NoError(t, s.Load(ctx))
	before := Flatten(s.Tree())

	// Validation failure.
	_, err := s.Create(ctx, "", " ", "", false)
	assert.True(t, wbserr.IsValidation(err))
	assert.Equal(t, before, Flatten(s.Tree()))

	// Store failure.
	store.failNext = errUnavailable
	err = s.Delete(ctx, "1")
	assert.True(t, wbserr.IsStore(err))
	assert.Equal(t, before, Flatten(s.Tree()))

	// Mutation applied, reload failed: the view stays on the old tree.
	store.failList = errUnavailable
	_, err = s.SetStatus(ctx, "3", task.StatusCompleted, "")
	assert.True(t, wbserr.IsStore(err))
	assert.Equal(t, before, Flatten(s.Tree()))
	assert.Equal(t, 50, s.Completion())

	// Once the store is reachable again, Load reconciles.
	store.failList = nil
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 100, s.Completion())
}

func TestSession_MutationsPublishEvents(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()
	events := bus.Subscribe("p1")
	others := bus.Subscribe("p2")
	defer bus.Unsubscribe(events)
	defer bus.Unsubscribe(others)

	s := NewSession(seeded(), "p1", WithBus(bus))
	require.NoError(t, s.Load(ctx))

	created, err := s.Create(ctx, "1", "Curing", "", false)
	require.NoError(t, err)
	_, err = s.ToggleMilestone(ctx, created.ID, "")
	require.NoError(t, err)
	_, err = s.Update(ctx, created.ID, "Curing", task.StatusCompleted, true)
	require.NoError(t, err)
	_, err = s.BulkCreate(ctx, []Entry{{Name: "Snagging"}})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, created.ID))

	want := []ChangeKind{ChangeLoaded, ChangeCreated, ChangeUpdated, ChangeUpdated, ChangeBulk, ChangeDeleted}
	for i, kind := range want {
		select {
		case e := <-events:
			assert.Equal(t, kind, e.Kind, "event %d", i)
			assert.Equal(t, "p1", e.ProjectID)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d (%s)", i, kind)
		}
	}
	assert.Len(t, others, 0, "events are filtered by project")
	assert.Len(t, Milestones(s.Tree()), 0)
	assert.Equal(t, 33, s.Completion())
}

func TestSession_ConcurrentMutationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	s := NewSession(seeded(), "p1")
	require.NoError(t, s.Load(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, "1", "Parallel", "", false)
			assert.NoError(t, err)
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
	assert.Len(t, s.Tree()[0].Children, 12)
}

func TestRegistry_LoadsOncePerProject(t *testing.T) {
	ctx := context.Background()
	store := seeded()
	r := NewRegistry(store)

	var wg sync.WaitGroup
	sessions := make([]*Session, 8)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Session(ctx, "p1")
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()
	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, 1, store.count("ListTasks"))
	assert.Equal(t, []string{"p1"}, r.Projects())

	r.Forget("p1")
	s, err := r.Session(ctx, "p1")
	require.NoError(t, err)
	assert.NotSame(t, sessions[0], s)
	assert.Equal(t, 2, store.count("ListTasks"))
}

func TestRegistry_FailedLoadNotCached(t *testing.T) {
	store := seeded()
	store.failList = errUnavailable
	r := NewRegistry(store)

	_, err := r.Session(context.Background(), "p1")
	assert.True(t, wbserr.IsStore(err))
	assert.Empty(t, r.Projects())

	store.failList = nil
	s, err := r.Session(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 50, s.Completion())
}

func TestRegistry_LoadOutlivesCancelledCaller(t *testing.T) {
	store := seeded()
	r := NewRegistry(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := r.Session(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 50, s.Completion())
	assert.Equal(t, []string{"p1"}, r.Projects())
}
