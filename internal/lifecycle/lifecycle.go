// Package lifecycle implements the pure task state machine: given the
// current task snapshot, a requested operation and the acting user, it
// either mutates the snapshot to the resulting state or rejects with a
// typed error. It performs no I/O; authorization and persistence are the
// caller's concern.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/taskbasket/taskbasket/internal/task"
)

// Operation names a requested state transition.
type Operation string

// Transition operations. Force variants bypass the ownership check but are
// still subject to authorization and (wider) state checks.
const (
	OpClaim            Operation = "claim"
	OpForceClaim       Operation = "force-claim"
	OpCancelClaim      Operation = "cancel-claim"
	OpForceCancelClaim Operation = "force-cancel-claim"
	OpRequestReview    Operation = "request-review"
	OpRequestChanges   Operation = "request-changes"
	OpComplete         Operation = "complete"
	OpForceComplete    Operation = "force-complete"
	OpCancel           Operation = "cancel"
	OpTerminate        Operation = "terminate"
	OpTransfer         Operation = "transfer"
	OpSetRead          Operation = "set-read"
)

// RequiredStates returns the source states from which op is allowed, in
// declaration order. This is also the set reported in InvalidStateError.
func RequiredStates(op Operation) []task.State {
	switch op {
	case OpClaim:
		return []task.State{task.StateReady, task.StateReadyForReview}
	case OpForceClaim:
		return []task.State{task.StateReady, task.StateClaimed, task.StateInReview, task.StateReadyForReview}
	case OpCancelClaim:
		return []task.State{task.StateClaimed}
	case OpForceCancelClaim:
		return task.NonTerminalStates()
	case OpRequestReview:
		return []task.State{task.StateClaimed}
	case OpRequestChanges:
		return []task.State{task.StateInReview}
	case OpComplete:
		return []task.State{task.StateClaimed, task.StateInReview}
	case OpForceComplete:
		return task.NonTerminalStates()
	case OpCancel, OpTransfer, OpSetRead:
		return task.NonTerminalStates()
	case OpTerminate:
		return []task.State{task.StateReady, task.StateClaimed, task.StateInReview, task.StateReadyForReview}
	}
	return nil
}

// IsForce reports whether op is a force variant.
func (op Operation) IsForce() bool {
	switch op {
	case OpForceClaim, OpForceCancelClaim, OpForceComplete:
		return true
	}
	return false
}

// ReviewCheck decides whether completing a task must land it in review
// instead of COMPLETED. Checks are consulted in registration order; any
// true answer wins.
type ReviewCheck interface {
	ReviewRequired(t *task.Task, actor string) bool
}

// EndstateHook intercepts a task immediately before it enters a terminal
// state. Hooks run in registration order and may mutate custom attributes.
type EndstateHook interface {
	BeforeEndstate(t *task.Task, actor string)
}

// Machine is the transition decision engine. The zero value is usable; use
// the options to register extension points.
type Machine struct {
	reviewChecks  []ReviewCheck
	endstateHooks []EndstateHook
}

// Option configures a Machine.
type Option func(*Machine)

// WithReviewChecks registers review-required checks, in order.
func WithReviewChecks(checks ...ReviewCheck) Option {
	return func(m *Machine) { m.reviewChecks = append(m.reviewChecks, checks...) }
}

// WithEndstateHooks registers endstate hooks, in order.
func WithEndstateHooks(hooks ...EndstateHook) Option {
	return func(m *Machine) { m.endstateHooks = append(m.endstateHooks, hooks...) }
}

// NewMachine creates a Machine with the given options applied.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Outcome reports what Apply did to the task.
type Outcome struct {
	// Changed is false when the operation was an idempotent no-op (the
	// complete-on-COMPLETED exception). No event and no modified bump in
	// that case.
	Changed bool
	// EventType to record for the transition.
	EventType task.EventType
}

// Apply mutates t according to op and returns the outcome. The task must be
// a private copy: on error it may be left partially mutated. now is the
// single timestamp stamped on every field the transition touches; it is
// nudged forward if needed to keep the modified timestamp monotonic.
func (m *Machine) Apply(t *task.Task, op Operation, actor string, now time.Time) (Outcome, error) {
	now = effectiveTime(t, now)

	switch op {
	case OpClaim, OpForceClaim:
		return m.claim(t, op, actor, now)
	case OpCancelClaim, OpForceCancelClaim:
		return m.cancelClaim(t, op, actor, now)
	case OpRequestReview:
		return m.requestReview(t, actor, now)
	case OpRequestChanges:
		return m.requestChanges(t, actor, now)
	case OpComplete, OpForceComplete:
		return m.complete(t, op, actor, now)
	case OpCancel:
		return m.endstate(t, op, actor, now, task.StateCancelled, task.EventCancelled)
	case OpTerminate:
		return m.endstate(t, op, actor, now, task.StateTerminated, task.EventTerminated)
	}
	return Outcome{}, fmt.Errorf("%w: unknown operation %q", task.ErrInvalidArgument, op)
}

// Touch stamps the task's modified timestamp, keeping it monotonically
// non-decreasing, and returns the stamp used. For mutations that happen
// outside the state machine (transfer, read flag).
func Touch(t *task.Task, now time.Time) time.Time {
	now = effectiveTime(t, now)
	t.Modified = now
	return now
}

// CheckState verifies that op is allowed from the task's current state
// without mutating anything. Used by the executor for operations whose
// mutation lives outside the state machine (transfer, read flag).
func CheckState(t *task.Task, op Operation) error {
	return checkState(t, op)
}

func (m *Machine) claim(t *task.Task, op Operation, actor string, now time.Time) (Outcome, error) {
	if err := checkState(t, op); err != nil {
		return Outcome{}, err
	}
	if !op.IsForce() {
		if err := checkOwner(t, actor); err != nil {
			return Outcome{}, err
		}
	}
	// Claiming a task that awaits review picks it up for reviewing.
	if t.State == task.StateReadyForReview {
		t.State = task.StateInReview
	} else {
		t.State = task.StateClaimed
	}
	t.Owner = actor
	claimed := now
	t.Claimed = &claimed
	t.IsRead = true
	t.Modified = now
	return Outcome{Changed: true, EventType: task.EventClaimed}, nil
}

func (m *Machine) cancelClaim(t *task.Task, op Operation, actor string, now time.Time) (Outcome, error) {
	if err := checkState(t, op); err != nil {
		return Outcome{}, err
	}
	if !op.IsForce() {
		if err := checkOwner(t, actor); err != nil {
			return Outcome{}, err
		}
	}
	t.State = task.StateReady
	t.Owner = ""
	t.Claimed = nil
	t.Modified = now
	return Outcome{Changed: true, EventType: task.EventClaimCancelled}, nil
}

func (m *Machine) requestReview(t *task.Task, actor string, now time.Time) (Outcome, error) {
	if err := checkState(t, OpRequestReview); err != nil {
		return Outcome{}, err
	}
	if err := checkOwner(t, actor); err != nil {
		return Outcome{}, err
	}
	t.State = task.StateReadyForReview
	t.Owner = ""
	t.Modified = now
	return Outcome{Changed: true, EventType: task.EventReviewRequested}, nil
}

func (m *Machine) requestChanges(t *task.Task, actor string, now time.Time) (Outcome, error) {
	if err := checkState(t, OpRequestChanges); err != nil {
		return Outcome{}, err
	}
	if err := checkOwner(t, actor); err != nil {
		return Outcome{}, err
	}
	t.State = task.StateReady
	t.Owner = ""
	t.Claimed = nil
	t.Modified = now
	return Outcome{Changed: true, EventType: task.EventChangesRequested}, nil
}

func (m *Machine) complete(t *task.Task, op Operation, actor string, now time.Time) (Outcome, error) {
	// Sole terminal-state exception: completing an already-completed task is
	// an idempotent no-op. No event, no modified bump.
	if t.State == task.StateCompleted {
		return Outcome{Changed: false, EventType: task.EventCompleted}, nil
	}
	if err := checkState(t, op); err != nil {
		return Outcome{}, err
	}
	if !op.IsForce() {
		if err := checkOwner(t, actor); err != nil {
			return Outcome{}, err
		}
	}
	// Force-completing an unclaimed task claims it to the caller first.
	if t.Owner == "" {
		t.Owner = actor
		if t.Claimed == nil {
			claimed := now
			t.Claimed = &claimed
		}
	}
	if m.reviewRequired(t, actor) {
		t.State = task.StateReadyForReview
		t.Owner = ""
		t.Modified = now
		return Outcome{Changed: true, EventType: task.EventReviewRequested}, nil
	}
	m.runEndstateHooks(t, actor)
	t.State = task.StateCompleted
	completed := now
	t.Completed = &completed
	t.Modified = now
	return Outcome{Changed: true, EventType: task.EventCompleted}, nil
}

func (m *Machine) endstate(t *task.Task, op Operation, actor string, now time.Time, target task.State, event task.EventType) (Outcome, error) {
	if err := checkState(t, op); err != nil {
		return Outcome{}, err
	}
	m.runEndstateHooks(t, actor)
	t.State = target
	t.Modified = now
	return Outcome{Changed: true, EventType: event}, nil
}

// reviewRequired ORs all registered checks.
func (m *Machine) reviewRequired(t *task.Task, actor string) bool {
	for _, check := range m.reviewChecks {
		if check.ReviewRequired(t, actor) {
			return true
		}
	}
	return false
}

func (m *Machine) runEndstateHooks(t *task.Task, actor string) {
	for _, hook := range m.endstateHooks {
		hook.BeforeEndstate(t, actor)
	}
}

func checkState(t *task.Task, op Operation) error {
	required := RequiredStates(op)
	for _, s := range required {
		if t.State == s {
			return nil
		}
	}
	return &task.InvalidStateError{
		TaskID:         t.ID,
		CurrentState:   t.State,
		RequiredStates: required,
	}
}

func checkOwner(t *task.Task, actor string) error {
	if t.Owner != "" && t.Owner != actor {
		return &task.OwnerMismatchError{
			TaskID:        t.ID,
			CurrentUserID: actor,
			Owner:         t.Owner,
		}
	}
	return nil
}

// effectiveTime keeps the modified timestamp monotonically non-decreasing:
// if the clock reads at or before the task's last modification, the stamp
// is nudged one microsecond past it.
func effectiveTime(t *task.Task, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if now.After(t.Modified) {
		return now
	}
	return t.Modified.Add(time.Microsecond)
}
