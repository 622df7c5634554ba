package wbs

import (
	"sync"
	"time"
)

// ChangeKind names the mutation that produced a ChangeEvent.
type ChangeKind string

const (
	ChangeLoaded  ChangeKind = "loaded"
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
	ChangeBulk    ChangeKind = "bulk_created"
)

// ChangeEvent is published after a mutation has been applied and the tree
// rebuilt.
type ChangeEvent struct {
	Kind       ChangeKind `json:"kind"`
	ProjectID  string     `json:"projectId"`
	TaskIDs    []string   `json:"taskIds,omitempty"`
	Completion int        `json:"completion"`
	At         time.Time  `json:"at"`
}

// Bus fans change events out to in-process subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan ChangeEvent]string // channel -> project filter ("" = all)
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan ChangeEvent]string)}
}

// Publish delivers e to every matching subscriber without blocking.
func (b *Bus) Publish(e ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, project := range b.subs {
		if project != "" && project != e.ProjectID {
			continue
		}
		select {
		case ch <- e:
		default:
			// subscriber is behind; drop rather than block the mutation
		}
	}
}

// Subscribe returns a buffered channel receiving events for projectID, or
// for every project when projectID is empty.
func (b *Bus) Subscribe(projectID string) chan ChangeEvent {
	ch := make(chan ChangeEvent, 64)
	b.mu.Lock()
	b.subs[ch] = projectID
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan ChangeEvent) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
