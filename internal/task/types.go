// Package task defines core data structures for the taskbasket routing engine.
package task

import (
	"fmt"
	"time"
)

// Task represents a unit of work routed through workbaskets.
// A task is owned by at most one actor at a time.
type Task struct {
	ID           string `json:"id"`
	State        State  `json:"state,omitempty"`
	Owner        string `json:"owner,omitempty"` // empty = unowned
	WorkbasketID string `json:"workbasket_id"`

	Created   time.Time  `json:"created"`
	Modified  time.Time  `json:"modified"`
	Claimed   *time.Time `json:"claimed,omitempty"`
	Completed *time.Time `json:"completed,omitempty"`

	IsRead bool `json:"is_read,omitempty"`

	// Custom holds arbitrary caller-defined attributes. Endstate hooks may
	// mutate these immediately before a task enters a terminal state.
	Custom map[string]string `json:"custom,omitempty"`

	// Workbasket is the summary of the owning workbasket, populated on load.
	// Not authoritative: WorkbasketID is the reference, this is for display.
	Workbasket *Workbasket `json:"workbasket,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.Claimed != nil {
		claimed := *t.Claimed
		c.Claimed = &claimed
	}
	if t.Completed != nil {
		completed := *t.Completed
		c.Completed = &completed
	}
	if t.Custom != nil {
		c.Custom = make(map[string]string, len(t.Custom))
		for k, v := range t.Custom {
			c.Custom[k] = v
		}
	}
	if t.Workbasket != nil {
		wb := *t.Workbasket
		c.Workbasket = &wb
	}
	return &c
}

// Validate checks if the task has valid field values and enforces the
// timestamp/state invariants.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.WorkbasketID == "" {
		return fmt.Errorf("workbasket id is required")
	}
	if !t.State.IsValid() {
		return fmt.Errorf("invalid state: %s", t.State)
	}
	// Enforce completed invariant: completed is set if and only if the task
	// is in COMPLETED state.
	if t.State == StateCompleted && t.Completed == nil {
		return fmt.Errorf("completed tasks must have a completed timestamp")
	}
	if t.State != StateCompleted && t.Completed != nil {
		return fmt.Errorf("non-completed tasks cannot have a completed timestamp")
	}
	// A task in the claimed family must carry its claim timestamp.
	if t.State.InClaimedFamily() && t.Claimed == nil {
		return fmt.Errorf("tasks in state %s must have a claimed timestamp", t.State)
	}
	if t.Modified.Before(t.Created) {
		return fmt.Errorf("modified timestamp precedes created timestamp")
	}
	return nil
}

// State represents the current lifecycle state of a task.
type State string

// Task state constants.
const (
	StateReady          State = "READY"
	StateClaimed        State = "CLAIMED"
	StateInReview       State = "IN_REVIEW"
	StateReadyForReview State = "READY_FOR_REVIEW"
	StateCompleted      State = "COMPLETED"
	StateCancelled      State = "CANCELLED"
	StateTerminated     State = "TERMINATED"
)

// IsValid checks if the state value is valid.
func (s State) IsValid() bool {
	switch s {
	case StateReady, StateClaimed, StateInReview, StateReadyForReview,
		StateCompleted, StateCancelled, StateTerminated:
		return true
	}
	return false
}

// IsTerminal returns true for end states with no outgoing transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateTerminated:
		return true
	}
	return false
}

// InClaimedFamily returns true for states in which the task is held by a
// worker or reviewer and must carry a claimed timestamp.
func (s State) InClaimedFamily() bool {
	switch s {
	case StateClaimed, StateInReview, StateReadyForReview:
		return true
	}
	return false
}

// NonTerminalStates returns all non-terminal states in declaration order.
func NonTerminalStates() []State {
	return []State{StateReady, StateClaimed, StateInReview, StateReadyForReview}
}

// Workbasket is the summary record of a task queue. Workbaskets are the unit
// of permission grant: access entries bind an access id to a workbasket.
type Workbasket struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Summary renders the workbasket in its display form, used when a diff or an
// event payload needs a workbasket value.
func (w *Workbasket) Summary() string {
	if w == nil {
		return ""
	}
	return fmt.Sprintf("{id=%s, key=%s, name=%s}", w.ID, w.Key, w.Name)
}

// Filter selects tasks for list queries. Zero values match everything.
type Filter struct {
	WorkbasketID string
	State        State
	Owner        *string // nil = any owner, pointer to "" = unowned
	Limit        int
}

// Matches reports whether the task passes the filter.
func (f Filter) Matches(t *Task) bool {
	if f.WorkbasketID != "" && t.WorkbasketID != f.WorkbasketID {
		return false
	}
	if f.State != "" && t.State != f.State {
		return false
	}
	if f.Owner != nil && t.Owner != *f.Owner {
		return false
	}
	return true
}
