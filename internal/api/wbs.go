package api

import (
	"net/http"

	"siteplan/pkg/task"
	"siteplan/pkg/wbs"
)

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, 200, sess.Snapshot())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Load(r.Context()); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, 200, sess.Snapshot())
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tree := sess.Tree()
	writeJSON(w, 200, map[string]any{
		"projectId":    sess.ProjectID(),
		"completion":   wbs.Completion(tree),
		"statusCounts": wbs.StatusCounts(tree),
		"leaves":       wbs.LeafCount(tree),
		"depth":        wbs.Depth(tree),
	})
}

// milestoneView is a milestone without its subtree.
type milestoneView struct {
	task.Task
	Completion int `json:"completion"`
}

func (s *Server) handleMilestones(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	nodes := sess.Milestones()
	views := make([]milestoneView, len(nodes))
	for i, n := range nodes {
		views[i] = milestoneView{Task: n.Task, Completion: wbs.NodeCompletion(n)}
	}
	writeJSON(w, 200, views)
}
