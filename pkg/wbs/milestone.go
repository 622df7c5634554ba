package wbs

// Milestones returns every milestone-flagged node in pre-order: a node before
// its children, children in array order, regardless of depth.
func Milestones(tree []*Node) []*Node {
	out := []*Node{}
	Walk(tree, func(n *Node, _ int) bool {
		if n.Milestone {
			out = append(out, n)
		}
		return true
	})
	return out
}
