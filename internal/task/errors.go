package task

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's error taxonomy. Callers match with
// errors.Is; the typed error structs below carry the per-kind payload.
var (
	// ErrNotFound indicates the id does not resolve to an existing task.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidState indicates the requested operation is not allowed from
	// the task's current state.
	ErrInvalidState = errors.New("invalid task state")

	// ErrOwnerMismatch indicates a non-force operation was attempted by
	// someone other than the current owner.
	ErrOwnerMismatch = errors.New("task is owned by another user")

	// ErrConcurrencyConflict indicates the task was modified by a concurrent
	// writer between decision time and commit time.
	ErrConcurrencyConflict = errors.New("task was modified concurrently")

	// ErrInvalidArgument indicates malformed input, rejected before any
	// storage access.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NotFoundError reports the id that failed to resolve.
type NotFoundError struct {
	TaskID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidStateError reports the current state and the states the operation
// would have accepted.
type InvalidStateError struct {
	TaskID         string
	CurrentState   State
	RequiredStates []State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("task %s is in state %s, expected one of %v",
		e.TaskID, e.CurrentState, e.RequiredStates)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// OwnerMismatchError reports who attempted the operation and who holds the
// task.
type OwnerMismatchError struct {
	TaskID        string
	CurrentUserID string
	Owner         string
}

func (e *OwnerMismatchError) Error() string {
	return fmt.Sprintf("task %s is owned by %s, not by %s", e.TaskID, e.Owner, e.CurrentUserID)
}

func (e *OwnerMismatchError) Is(target error) bool { return target == ErrOwnerMismatch }

// ConcurrencyError reports an optimistic-lock failure on save.
type ConcurrencyError struct {
	TaskID string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("task %s was modified concurrently", e.TaskID)
}

func (e *ConcurrencyError) Is(target error) bool { return target == ErrConcurrencyConflict }
