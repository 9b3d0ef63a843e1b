package engine

import (
	"context"
	"fmt"

	"github.com/taskbasket/taskbasket/internal/access"
	"github.com/taskbasket/taskbasket/internal/lifecycle"
	"github.com/taskbasket/taskbasket/internal/storage"
	"github.com/taskbasket/taskbasket/internal/task"
)

// Create validates and stores a new task in READY state and records a
// CREATED history event. The subject needs APPEND on the target workbasket.
// An empty id is assigned automatically.
func (e *Engine) Create(ctx context.Context, subject access.Subject, t *task.Task) (*task.Task, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil task", task.ErrInvalidArgument)
	}
	if t.State != "" && t.State != task.StateReady {
		return nil, fmt.Errorf("%w: new tasks must start in %s, got %s", task.ErrInvalidArgument, task.StateReady, t.State)
	}
	if t.WorkbasketID == "" {
		return nil, fmt.Errorf("%w: workbasket id is required", task.ErrInvalidArgument)
	}
	if err := e.guard.Authorize(ctx, subject, t.WorkbasketID, access.AppendPermissions); err != nil {
		return nil, err
	}
	wb, err := e.store.GetWorkbasket(ctx, t.WorkbasketID)
	if err != nil {
		return nil, fmt.Errorf("target workbasket %s: %w", t.WorkbasketID, err)
	}

	created := t.Clone()
	if created.ID == "" {
		created.ID = "TSK-" + e.newEventID()
	}
	created.State = task.StateReady
	created.Owner = ""
	created.Claimed = nil
	created.Completed = nil
	now := e.clock()
	created.Created = now
	created.Modified = now
	created.Workbasket = wb
	if err := created.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", task.ErrInvalidArgument, err)
	}

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.CreateTask(ctx, created); err != nil {
			return fmt.Errorf("create task %s: %w", created.ID, err)
		}
		ev := &task.HistoryEvent{
			ID:        e.newEventID(),
			TaskID:    created.ID,
			EventType: task.EventCreated,
			UserID:    subject.UserID,
			Created:   now,
		}
		if err := tx.RecordEvent(ctx, ev); err != nil {
			return fmt.Errorf("record created event for task %s: %w", created.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateWorkbasket registers a new workbasket. Restricted to
// administrative roles.
func (e *Engine) CreateWorkbasket(ctx context.Context, subject access.Subject, wb *task.Workbasket) error {
	if wb == nil || wb.ID == "" {
		return fmt.Errorf("%w: workbasket id is required", task.ErrInvalidArgument)
	}
	if err := e.guard.AuthorizeAdmin(ctx, subject); err != nil {
		return err
	}
	return e.store.CreateWorkbasket(ctx, wb)
}

// Get loads a task. The subject needs read access on its workbasket.
func (e *Engine) Get(ctx context.Context, subject access.Subject, id string) (*task.Task, error) {
	if id == "" {
		return nil, &task.NotFoundError{TaskID: id}
	}
	t, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, mapNotFound(id, err)
	}
	if err := e.guard.Authorize(ctx, subject, t.WorkbasketID, access.ReadPermissions); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns tasks matching the filter. Non-admin subjects must scope the
// query to a workbasket they can read.
func (e *Engine) List(ctx context.Context, subject access.Subject, filter task.Filter) ([]*task.Task, error) {
	if filter.WorkbasketID == "" {
		if err := e.guard.AuthorizeAdmin(ctx, subject); err != nil {
			return nil, err
		}
	} else if err := e.guard.Authorize(ctx, subject, filter.WorkbasketID, access.ReadPermissions); err != nil {
		return nil, err
	}
	return e.store.ListTasks(ctx, filter)
}

// History returns a task's audit trail, newest first.
func (e *Engine) History(ctx context.Context, subject access.Subject, id string, limit int) ([]*task.HistoryEvent, error) {
	if _, err := e.Get(ctx, subject, id); err != nil {
		return nil, err
	}
	return e.store.GetEvents(ctx, id, limit)
}

// Transfer reroutes a task to another workbasket. Task state and owner are
// untouched; only the workbasket reference changes. The subject needs the
// edit set on the source workbasket and APPEND on the destination.
func (e *Engine) Transfer(ctx context.Context, subject access.Subject, id, destinationID string) (*task.Task, error) {
	if id == "" {
		return nil, &task.NotFoundError{TaskID: id}
	}
	if destinationID == "" {
		return nil, fmt.Errorf("%w: destination workbasket id is required", task.ErrInvalidArgument)
	}
	dest, err := e.store.GetWorkbasket(ctx, destinationID)
	if err != nil {
		return nil, fmt.Errorf("destination workbasket %s: %w", destinationID, err)
	}
	if err := e.guard.Authorize(ctx, subject, destinationID, access.AppendPermissions); err != nil {
		return nil, err
	}
	// Authorize against the source workbasket before the transaction opens;
	// permission lookups must not run inside it.
	peek, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, mapNotFound(id, err)
	}
	if err := e.guard.Authorize(ctx, subject, peek.WorkbasketID, access.EditPermissions); err != nil {
		return nil, err
	}

	var updated *task.Task
	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		t, err := tx.GetTask(ctx, id)
		if err != nil {
			return mapNotFound(id, err)
		}
		if err := lifecycle.CheckState(t, lifecycle.OpTransfer); err != nil {
			return err
		}
		old := t.Clone()
		t.WorkbasketID = dest.ID
		t.Workbasket = dest
		lifecycle.Touch(t, e.clock())
		if err := e.persist(ctx, tx, subject, old, t, task.EventTransferred); err != nil {
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

// SetRead flips the task's read flag. Allowed in any non-terminal state; no
// ownership check beyond workbasket authorization.
func (e *Engine) SetRead(ctx context.Context, subject access.Subject, id string, isRead bool) (*task.Task, error) {
	if id == "" {
		return nil, &task.NotFoundError{TaskID: id}
	}
	peek, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, mapNotFound(id, err)
	}
	if err := e.guard.Authorize(ctx, subject, peek.WorkbasketID, access.EditPermissions); err != nil {
		return nil, err
	}
	var updated *task.Task
	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		t, err := tx.GetTask(ctx, id)
		if err != nil {
			return mapNotFound(id, err)
		}
		if err := lifecycle.CheckState(t, lifecycle.OpSetRead); err != nil {
			return err
		}
		if t.IsRead == isRead {
			updated = t
			return nil
		}
		old := t.Clone()
		t.IsRead = isRead
		lifecycle.Touch(t, e.clock())
		if err := e.persist(ctx, tx, subject, old, t, task.EventUpdated); err != nil {
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

// Delete removes a task. Restricted to administrative roles. When the
// cascade policy is enabled the task's history events are removed in the
// same transaction; otherwise a DELETED event remains as the trail's final
// entry.
func (e *Engine) Delete(ctx context.Context, subject access.Subject, id string) error {
	if id == "" {
		return &task.NotFoundError{TaskID: id}
	}
	if err := e.guard.AuthorizeAdmin(ctx, subject); err != nil {
		return err
	}
	return e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		t, err := tx.GetTask(ctx, id)
		if err != nil {
			return mapNotFound(id, err)
		}
		if err := tx.DeleteTask(ctx, t.ID); err != nil {
			return fmt.Errorf("delete task %s: %w", t.ID, err)
		}
		if e.cascadeDelete {
			if err := tx.DeleteEventsByTaskIDs(ctx, []string{t.ID}); err != nil {
				return fmt.Errorf("delete events for task %s: %w", t.ID, err)
			}
			return nil
		}
		ev := &task.HistoryEvent{
			ID:        e.newEventID(),
			TaskID:    t.ID,
			EventType: task.EventDeleted,
			UserID:    subject.UserID,
			Created:   e.clock(),
		}
		if err := tx.RecordEvent(ctx, ev); err != nil {
			return fmt.Errorf("record deleted event for task %s: %w", t.ID, err)
		}
		return nil
	})
}
