package task

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Alias field names seen at the transport boundary, in lookup order.
var (
	idKeys        = []string{"taskId", "wbsId", "id", "code"}
	parentKeys    = []string{"parentId", "parent_id", "parentWbsId", "parent"}
	nameKeys      = []string{"name", "taskName", "title"}
	projectKeys   = []string{"projectId", "project_id"}
	milestoneKeys = []string{"milestone", "isMilestone"}
)

// Normalize decodes a single transport record, accepting alias field names.
// Missing fields are left at their zero value.
func Normalize(raw []byte) (Task, error) {
	if !gjson.ValidBytes(raw) {
		return Task{}, fmt.Errorf("normalize task: invalid JSON")
	}
	r := gjson.ParseBytes(raw)
	if !r.IsObject() {
		return Task{}, fmt.Errorf("normalize task: expected object, got %s", r.Type)
	}
	return fromResult(r), nil
}

// NormalizeList decodes a JSON array of transport records, or an object
// wrapping one under "tasks", "data" or "items".
func NormalizeList(raw []byte) ([]Task, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("normalize tasks: invalid JSON")
	}
	r := gjson.ParseBytes(raw)
	if r.IsObject() {
		for _, key := range []string{"tasks", "data", "items"} {
			if v := r.Get(key); v.IsArray() {
				r = v
				break
			}
		}
	}
	if !r.IsArray() {
		return nil, fmt.Errorf("normalize tasks: expected array")
	}

	var tasks []Task
	for i, item := range r.Array() {
		if !item.IsObject() {
			return nil, fmt.Errorf("normalize tasks: item %d is not an object", i)
		}
		tasks = append(tasks, fromResult(item))
	}
	return tasks, nil
}

// NormalizeStatus maps free-form status text onto a Status. Unknown text is
// returned lower-cased so validation can reject it.
func NormalizeStatus(s string) Status {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "in progress", "in-progress", "inprogress":
		return StatusInProgress
	case "done", "complete":
		return StatusCompleted
	}
	return Status(v)
}

func fromResult(r gjson.Result) Task {
	t := Task{
		ID:        first(r, idKeys).String(),
		ProjectID: first(r, projectKeys).String(),
		Name:      strings.TrimSpace(first(r, nameKeys).String()),
		Status:    NormalizeStatus(r.Get("status").String()),
	}
	if p := first(r, parentKeys); p.Type != gjson.Null {
		t.ParentID = p.String()
	}
	if m := first(r, milestoneKeys); m.Exists() {
		t.Milestone = m.Bool()
	}
	return t
}

// first returns the first alias present in r. A numeric id is rendered in
// decimal by gjson's String, so 12 and "12" normalize the same.
func first(r gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
