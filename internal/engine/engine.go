// Package engine orchestrates task transitions: it authorizes the subject,
// then inside one storage transaction per task loads the task, consults the
// state machine, applies the mutation, diffs the snapshots, records a
// history event and persists.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskbasket/taskbasket/internal/access"
	"github.com/taskbasket/taskbasket/internal/diff"
	"github.com/taskbasket/taskbasket/internal/lifecycle"
	"github.com/taskbasket/taskbasket/internal/storage"
	"github.com/taskbasket/taskbasket/internal/task"
)

// Engine executes task operations against a store. All collaborators are
// injected; there is no hidden global state.
type Engine struct {
	store         storage.Storage
	guard         *access.Guard
	machine       *lifecycle.Machine
	clock         func() time.Time
	newEventID    func() string
	cascadeDelete bool
	bulkWorkers   int

	// machineOpts is collected by options before the machine is built in New.
	machineOpts []lifecycle.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithReviewChecks registers review-required checks on the state machine.
func WithReviewChecks(checks ...lifecycle.ReviewCheck) Option {
	return func(e *Engine) { e.machineOpts = append(e.machineOpts, lifecycle.WithReviewChecks(checks...)) }
}

// WithEndstateHooks registers endstate hooks on the state machine.
func WithEndstateHooks(hooks ...lifecycle.EndstateHook) Option {
	return func(e *Engine) { e.machineOpts = append(e.machineOpts, lifecycle.WithEndstateHooks(hooks...)) }
}

// WithCascadeDelete makes Delete also remove the task's history events.
func WithCascadeDelete(enabled bool) Option {
	return func(e *Engine) { e.cascadeDelete = enabled }
}

// WithBulkWorkers bounds how many items a bulk call processes in parallel.
// Values below 2 keep bulk processing sequential.
func WithBulkWorkers(n int) Option {
	return func(e *Engine) { e.bulkWorkers = n }
}

// New creates an engine backed by the given store. The store doubles as the
// permission resolver for the authorization guard.
func New(store storage.Storage, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		clock:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newEventID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.guard = access.NewGuard(store)
	e.machine = lifecycle.NewMachine(e.machineOpts...)
	return e
}

// Claim claims a READY task for the subject; claiming a READY_FOR_REVIEW
// task picks it up for reviewing.
func (e *Engine) Claim(ctx context.Context, subject access.Subject, id string) (*task.Task, error) {
	return e.transition(ctx, subject, id, lifecycle.OpClaim)
}

// ForceClaim claims or reassigns a task regardless of its current owner.
func (e *Engine) ForceClaim(ctx context.Context, subject access.Subject, id string) (*task.Task, error) {
	return e.transition(ctx, subject, id, lifecycle.OpForceClaim)
}

// CancelClaim returns a claimed task to READY, clearing owner and claim
// timestamp.
func (e *Engine) CancelClaim(ctx context.Context, subject access.Subject, id string) (*task.Task, error) {
	return e.transition(ctx, subject, id, lifecycle.OpCancelClaim)
}

// ForceCancelClaim clears owner and claim timestamp from any non-terminal
// state, regardless of owner.
func (e *Engine) ForceCancelClaim(ctx context.Context, subject access.Subject, id string) (*task.Task, error) {
	return e.transition(ctx, subject, id, lifecycle.OpForceCancelClaim)
}

// RequestReview hands a claimed task over for review.
func (e *Engine) RequestReview(ctx context.Context, subject access.Subject, id string) (*task.Task, error) {
	return e.transition(ctx, subject, id, lifecycle.OpRequestReview)
}

// RequestChanges sends a task under review back to READY.
func (e *Engine) RequestChanges(ctx context.Context, subject access.Subject, id string) (*task.Task, error) {
	return e.transition(ctx, subject, id, lifecycle.OpRequestChanges)
}

// Complete finishes a claimed or in-review task. Registered review checks
// may redirect the outcome to READY_FOR_REVIEW. Completing an
// already-completed task is an idempotent no-op.
func (e *Engine) Complete(ctx context.Context, subject access.Subject, id string) (*task.Task, error) {
	return e.transition(ctx, subject, id, lifecycle.OpComplete)
}

// ForceComplete completes a task from any non-terminal state, claiming it
// to the subject first if it is unclaimed.
func (e *Engine) ForceComplete(ctx context.Context, subject access.Subject, id string) (*task.Task, error) {
	return e.transition(ctx, subject, id, lifecycle.OpForceComplete)
}

// Cancel cancels a task from any non-terminal state.
func (e *Engine) Cancel(ctx context.Context, subject access.Subject, id string) (*task.Task, error) {
	return e.transition(ctx, subject, id, lifecycle.OpCancel)
}

// Terminate terminates a task. Restricted to administrative roles; there is
// no workbasket-permission fallback.
func (e *Engine) Terminate(ctx context.Context, subject access.Subject, id string) (*task.Task, error) {
	return e.transition(ctx, subject, id, lifecycle.OpTerminate)
}

// transition runs one task operation: load, authorize, decide, mutate,
// diff, record event, commit. Authorization happens before the storage
// transaction opens; permission lookups must not run inside it. The task
// is re-read inside the transaction and the optimistic modified check
// catches anything that changed in between.
func (e *Engine) transition(ctx context.Context, subject access.Subject, id string, op lifecycle.Operation) (*task.Task, error) {
	if id == "" {
		return nil, &task.NotFoundError{TaskID: id}
	}
	peek, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, mapNotFound(id, err)
	}
	if err := e.authorizeOp(ctx, subject, peek.WorkbasketID, op); err != nil {
		return nil, err
	}
	var updated *task.Task
	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		t, err := tx.GetTask(ctx, id)
		if err != nil {
			return mapNotFound(id, err)
		}
		old := t.Clone()
		outcome, err := e.machine.Apply(t, op, subject.UserID, e.clock())
		if err != nil {
			return err
		}
		if !outcome.Changed {
			// Idempotent no-op: return the task untouched, record nothing.
			updated = t
			return nil
		}
		if err := e.persist(ctx, tx, subject, old, t, outcome.EventType); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// persist saves the mutated task with an optimistic check against the old
// snapshot's modified timestamp and appends the history event carrying the
// field-level diff.
func (e *Engine) persist(ctx context.Context, tx storage.Transaction, subject access.Subject, old, updated *task.Task, eventType task.EventType) error {
	if err := tx.UpdateTask(ctx, updated, old.Modified); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return &task.ConcurrencyError{TaskID: updated.ID}
		}
		return fmt.Errorf("save task %s: %w", updated.ID, err)
	}
	ev := &task.HistoryEvent{
		ID:        e.newEventID(),
		TaskID:    updated.ID,
		EventType: eventType,
		UserID:    subject.UserID,
		Created:   updated.Modified,
		Details:   task.EventDetails{Changes: diff.Changes(old, updated)},
	}
	if err := tx.RecordEvent(ctx, ev); err != nil {
		return fmt.Errorf("record %s event for task %s: %w", eventType, updated.ID, err)
	}
	return nil
}

// authorizeOp applies the per-operation authorization rule: terminate needs
// an administrative role, everything else needs the edit permission set on
// the task's workbasket (admins bypass).
func (e *Engine) authorizeOp(ctx context.Context, subject access.Subject, workbasketID string, op lifecycle.Operation) error {
	if op == lifecycle.OpTerminate {
		return e.guard.AuthorizeAdmin(ctx, subject)
	}
	return e.guard.Authorize(ctx, subject, workbasketID, access.EditPermissions)
}

// mapNotFound converts storage.ErrNotFound into the engine's typed
// NotFoundError, leaving other errors wrapped as-is.
func mapNotFound(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &task.NotFoundError{TaskID: id}
	}
	return fmt.Errorf("load task %s: %w", id, err)
}
