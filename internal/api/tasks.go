package api

import (
	"net/http"

	"github.com/tidwall/gjson"

	wbserr "siteplan/internal/errors"
	"siteplan/pkg/task"
	"siteplan/pkg/wbs"
)

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, 400, "read body: "+err.Error())
		return
	}
	t, err := task.Normalize(body)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	created, err := sess.Create(r.Context(), t.ParentID, t.Name, t.Status, t.Milestone)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, 201, created)
}

func (s *Server) handleTaskBulk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, 400, "read body: "+err.Error())
		return
	}
	list, err := task.NormalizeList(body)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	entries := make([]wbs.Entry, len(list))
	for i, t := range list {
		entries[i] = wbs.Entry{Name: t.Name, Status: t.Status, Milestone: t.Milestone, ParentID: t.ParentID}
	}
	created, err := sess.BulkCreate(r.Context(), entries)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, 201, created)
}

// handleTaskUpdate applies a partial update. Absent fields keep the value
// of the node in the current tree.
func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, 400, "read body: "+err.Error())
		return
	}
	if !gjson.ValidBytes(body) {
		writeError(w, 400, "invalid JSON")
		return
	}
	current, found := sess.Node(id)
	if !found {
		s.writeFailure(w, wbserr.NotFound(id))
		return
	}

	req := gjson.ParseBytes(body)
	for _, key := range []string{"parentId", "parent_id"} {
		if v := req.Get(key); v.Exists() && v.String() != current.ParentID {
			s.writeFailure(w, wbserr.Validation("parent of task %s cannot be changed", id))
			return
		}
	}
	name, status, milestone := current.Name, current.Status, current.Milestone
	if v := req.Get("name"); v.Exists() {
		name = v.String()
	}
	if v := req.Get("status"); v.Exists() {
		status = task.NormalizeStatus(v.String())
	}
	if v := req.Get("milestone"); v.Exists() {
		milestone = v.Bool()
	}

	updated, err := sess.Update(r.Context(), id, name, status, milestone)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, 200, updated)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTaskMilestone(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, 400, "read body: "+err.Error())
		return
	}
	name := gjson.GetBytes(body, "name").String()
	t, err := sess.ToggleMilestone(r.Context(), r.PathValue("id"), name)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, 400, "read body: "+err.Error())
		return
	}
	v := gjson.GetBytes(body, "status")
	if !v.Exists() {
		s.writeFailure(w, wbserr.Validation("status is required"))
		return
	}
	name := gjson.GetBytes(body, "name").String()
	t, err := sess.SetStatus(r.Context(), r.PathValue("id"), task.NormalizeStatus(v.String()), name)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, 200, t)
}

// handleTaskExpand sets the transient expanded flag, or toggles it when the
// body carries no "expanded" field.
func (s *Server) handleTaskExpand(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, 400, "read body: "+err.Error())
		return
	}

	var expanded bool
	if v := gjson.GetBytes(body, "expanded"); v.Exists() {
		expanded = v.Bool()
		err = sess.SetExpanded(id, expanded)
	} else {
		expanded, err = sess.ToggleExpanded(id)
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"taskId": id, "expanded": expanded})
}
