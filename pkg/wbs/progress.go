package wbs

import (
	"math"

	"siteplan/pkg/task"
)

// Weight is 1 for a leaf and the sum of the children's weights otherwise,
// i.e. the number of leaves under n.
func Weight(n *Node) int {
	if n.IsLeaf() {
		return 1
	}
	w := 0
	for _, c := range n.Children {
		w += Weight(c)
	}
	return w
}

// CompletedWeight counts completed leaves under n. A parent's own status is
// ignored once it has children.
func CompletedWeight(n *Node) int {
	if n.IsLeaf() {
		if n.Status == task.StatusCompleted {
			return 1
		}
		return 0
	}
	w := 0
	for _, c := range n.Children {
		w += CompletedWeight(c)
	}
	return w
}

// Completion returns the weighted completion of the forest as a percentage
// in [0,100]. An empty forest is 0%.
func Completion(tree []*Node) int {
	total, done := 0, 0
	for _, r := range tree {
		total += Weight(r)
		done += CompletedWeight(r)
	}
	return percent(done, total)
}

// NodeCompletion returns the completion of the subtree rooted at n.
func NodeCompletion(n *Node) int {
	return percent(CompletedWeight(n), Weight(n))
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}
