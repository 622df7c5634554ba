// Package wbs reconstructs work breakdown trees from flat task records and
// computes progress and milestone views over them.
package wbs

import (
	"fmt"

	wbserr "siteplan/internal/errors"
	"siteplan/pkg/task"
)

// Node is a task with its nested children. Children keep the arrival order
// of the flat record list and are owned by exactly one parent.
type Node struct {
	task.Task
	Children []*Node `json:"children"`
	Expanded bool    `json:"expanded"` // UI-only, reset on every rebuild
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// IntegrityWarning reports a record that could not be placed where its
// parent reference pointed. The record is kept as a root instead.
type IntegrityWarning struct {
	Code     wbserr.Code `json:"code"`
	TaskID   string      `json:"taskId"`
	ParentID string      `json:"parentId"`
}

func (w IntegrityWarning) String() string {
	switch w.Code {
	case wbserr.CodeIntegrityCycle:
		return fmt.Sprintf("task %s: parent %s forms a cycle, promoted to root", w.TaskID, w.ParentID)
	default:
		return fmt.Sprintf("task %s: parent %s not found, promoted to root", w.TaskID, w.ParentID)
	}
}

// BuildTree returns the root nodes built from records, discarding warnings.
func BuildTree(records []task.Task) []*Node {
	roots, _ := Build(records)
	return roots
}

// Build reconstructs the forest in two passes: one node shell per record,
// then each record is appended to its parent's children. Records with no
// parent, an unknown parent, or a parent reference that closes a cycle
// become roots. The latter two are returned as warnings; Build never fails.
func Build(records []task.Task) ([]*Node, []IntegrityWarning) {
	nodes := make(map[string]*Node, len(records))
	for i := range records {
		// Duplicate ids are a store defect; the first occurrence wins.
		if _, dup := nodes[records[i].ID]; !dup {
			nodes[records[i].ID] = &Node{Task: records[i], Children: []*Node{}}
		}
	}

	var roots []*Node
	var warnings []IntegrityWarning
	placed := make(map[string]bool, len(records))
	parent := make(map[*Node]*Node, len(records))

	for i := range records {
		id := records[i].ID
		if placed[id] {
			continue
		}
		placed[id] = true
		n := nodes[id]

		if n.ParentID == "" {
			roots = append(roots, n)
			continue
		}
		p, ok := nodes[n.ParentID]
		if !ok {
			roots = append(roots, n)
			warnings = append(warnings, IntegrityWarning{Code: wbserr.CodeIntegrityOrphan, TaskID: id, ParentID: n.ParentID})
			continue
		}
		p.Children = append(p.Children, n)
		parent[n] = p
	}

	// Anything not reachable from a root sits on or below a cycle.
	reached := make(map[*Node]bool, len(nodes))
	for _, r := range roots {
		markReached(r, reached)
	}
	for i := range records {
		n := nodes[records[i].ID]
		if reached[n] {
			continue
		}
		c := cycleMember(n, parent)
		p := parent[c]
		p.Children = removeChild(p.Children, c)
		delete(parent, c)
		roots = append(roots, c)
		warnings = append(warnings, IntegrityWarning{Code: wbserr.CodeIntegrityCycle, TaskID: c.ID, ParentID: c.ParentID})
		markReached(c, reached)
	}

	if roots == nil {
		roots = []*Node{}
	}
	return roots, warnings
}

func markReached(n *Node, reached map[*Node]bool) {
	reached[n] = true
	for _, c := range n.Children {
		if !reached[c] {
			markReached(c, reached)
		}
	}
}

// cycleMember follows parent links from n until a node repeats.
func cycleMember(n *Node, parent map[*Node]*Node) *Node {
	seen := map[*Node]bool{}
	for !seen[n] {
		seen[n] = true
		n = parent[n]
	}
	return n
}

func removeChild(children []*Node, c *Node) []*Node {
	for i, ch := range children {
		if ch == c {
			return append(children[:i], children[i+1:]...)
		}
	}
	return children
}
