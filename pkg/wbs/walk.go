package wbs

import "siteplan/pkg/task"

// Walk visits the forest in pre-order. Returning false from fn skips the
// node's children.
func Walk(tree []*Node, fn func(n *Node, depth int) bool) {
	var visit func(nodes []*Node, depth int)
	visit = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			if fn(n, depth) {
				visit(n.Children, depth+1)
			}
		}
	}
	visit(tree, 0)
}

// Flatten returns the records of the forest in pre-order.
func Flatten(tree []*Node) []task.Task {
	var out []task.Task
	Walk(tree, func(n *Node, _ int) bool {
		out = append(out, n.Task)
		return true
	})
	return out
}

// Find returns the node with the given id, or nil.
func Find(tree []*Node, id string) *Node {
	var found *Node
	Walk(tree, func(n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Depth returns the number of levels in the forest.
func Depth(tree []*Node) int {
	deepest := 0
	Walk(tree, func(_ *Node, depth int) bool {
		if depth+1 > deepest {
			deepest = depth + 1
		}
		return true
	})
	return deepest
}

// LeafCount returns the number of leaves in the forest.
func LeafCount(tree []*Node) int {
	leaves := 0
	Walk(tree, func(n *Node, _ int) bool {
		if n.IsLeaf() {
			leaves++
		}
		return true
	})
	return leaves
}

// StatusCounts tallies every node of the forest by status. Unset statuses
// are counted as pending.
func StatusCounts(tree []*Node) map[task.Status]int {
	counts := make(map[task.Status]int, len(task.Statuses))
	for _, s := range task.Statuses {
		counts[s] = 0
	}
	Walk(tree, func(n *Node, _ int) bool {
		s := n.Status
		if s == "" {
			s = task.StatusPending
		}
		counts[s]++
		return true
	})
	return counts
}

// Clone deep-copies the forest so callers can read it while the owner
// keeps changing expanded flags.
func Clone(tree []*Node) []*Node {
	out := make([]*Node, len(tree))
	for i, n := range tree {
		cp := *n
		cp.Children = Clone(n.Children)
		out[i] = &cp
	}
	return out
}
