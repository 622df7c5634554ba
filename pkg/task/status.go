package task

import (
	"fmt"

	wbserr "siteplan/internal/errors"
)

// Policy decides which status changes are allowed.
type Policy string

const (
	// PolicyPermissive allows any status to move to any other status.
	PolicyPermissive Policy = "permissive"
	// PolicyForward only allows moves along the construction lifecycle:
	// pending -> in_progress -> completed, with delayed reachable from
	// either open state and delayed -> in_progress to resume.
	PolicyForward Policy = "forward"
)

var forwardMoves = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusDelayed},
	StatusInProgress: {StatusCompleted, StatusDelayed},
	StatusDelayed:    {StatusInProgress},
	StatusCompleted:  nil,
}

// ParsePolicy parses a policy name. Empty means permissive.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyPermissive:
		return PolicyPermissive, nil
	case PolicyForward:
		return PolicyForward, nil
	default:
		return "", fmt.Errorf("unknown status policy: %s", s)
	}
}

// Allows reports whether a task may move from one status to another.
func (p Policy) Allows(from, to Status) bool {
	if from == to || p != PolicyForward {
		return true
	}
	for _, next := range forwardMoves[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Check returns an InvalidTransition error when the move is not allowed.
func (p Policy) Check(from, to Status) error {
	if p.Allows(from, to) {
		return nil
	}
	return wbserr.InvalidTransition(string(from), string(to))
}
