package wbs

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteplan/pkg/task"
)

func TestCompletion_Bounds(t *testing.T) {
	assert.Equal(t, 0, Completion(nil))
	assert.Equal(t, 0, Completion([]*Node{}))

	for _, s := range task.Statuses {
		tree := BuildTree([]task.Task{rec("1", "", "Only", s)})
		want := 0
		if s == task.StatusCompleted {
			want = 100
		}
		assert.Equal(t, want, Completion(tree), "single leaf with status %s", s)
	}

	r := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		c := Completion(BuildTree(randomForest(r, r.Intn(50))))
		assert.GreaterOrEqual(t, c, 0)
		assert.LessOrEqual(t, c, 100)
	}
}

func TestCompletion_ParentStatusIgnored(t *testing.T) {
	// Parent marked completed with an open child still reports 0%.
	tree := BuildTree([]task.Task{
		rec("1", "", "Structure", task.StatusCompleted),
		rec("2", "1", "Columns", task.StatusPending),
	})
	assert.Equal(t, 0, Completion(tree))

	// Parent pending with all children done reports 100%.
	tree = BuildTree([]task.Task{
		rec("1", "", "Structure", task.StatusPending),
		rec("2", "1", "Columns", task.StatusCompleted),
		rec("3", "1", "Beams", task.StatusCompleted),
	})
	assert.Equal(t, 100, Completion(tree))
}

func TestCompletion_WeightedByLeaves(t *testing.T) {
	// Root A has three leaves (one done), root B is a completed leaf: 2/4.
	tree := BuildTree([]task.Task{
		rec("a", "", "A", ""),
		rec("a1", "a", "A1", task.StatusCompleted),
		rec("a2", "a", "A2", task.StatusDelayed),
		rec("a3", "a", "A3", task.StatusInProgress),
		rec("b", "", "B", task.StatusCompleted),
	})
	require.Len(t, tree, 2)
	assert.Equal(t, 3, Weight(tree[0]))
	assert.Equal(t, 1, CompletedWeight(tree[0]))
	assert.Equal(t, 33, NodeCompletion(tree[0]))
	assert.Equal(t, 100, NodeCompletion(tree[1]))
	assert.Equal(t, 50, Completion(tree))
}

func TestCompletion_Rounding(t *testing.T) {
	tree := BuildTree([]task.Task{
		rec("r", "", "Root", ""),
		rec("1", "r", "One", task.StatusCompleted),
		rec("2", "r", "Two", task.StatusCompleted),
		rec("3", "r", "Three", task.StatusPending),
	})
	assert.Equal(t, 67, Completion(tree))

	tree = BuildTree([]task.Task{
		rec("r", "", "Root", ""),
		rec("1", "r", "One", task.StatusCompleted),
		rec("2", "r", "Two", task.StatusPending),
		rec("3", "r", "Three", task.StatusPending),
		rec("4", "r", "Four", task.StatusPending),
		rec("5", "r", "Five", task.StatusPending),
		rec("6", "r", "Six", task.StatusPending),
		rec("7", "r", "Seven", task.StatusPending),
		rec("8", "r", "Eight", task.StatusPending),
	})
	// 12.5 rounds half away from zero.
	assert.Equal(t, 13, Completion(tree))
}

func TestMilestones_PreOrder(t *testing.T) {
	records := []task.Task{
		rec("1", "", "Foundation", ""),
		rec("2", "1", "Excavation", ""),
		rec("3", "2", "Survey sign-off", ""),
		rec("4", "1", "Slab poured", ""),
		rec("5", "", "Handover", ""),
	}
	for _, i := range []int{0, 2, 3, 4} {
		records[i].Milestone = true
	}
	tree := BuildTree(records)
	got := Milestones(tree)

	var ids []string
	for _, n := range got {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"1", "3", "4", "5"}, ids)

	Walk(tree, func(n *Node, _ int) bool {
		assert.False(t, n.Expanded)
		return true
	})
}

func TestMilestones_None(t *testing.T) {
	got := Milestones(BuildTree(foundation()))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
