// Package memory provides an in-process task store. It backs tests and the
// CLI's transient mode; data does not survive the process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/taskbasket/taskbasket/internal/access"
	"github.com/taskbasket/taskbasket/internal/storage"
	"github.com/taskbasket/taskbasket/internal/task"
)

// Store is a mutex-guarded in-memory implementation of storage.Storage.
type Store struct {
	mu          sync.RWMutex
	tasks       map[string]*task.Task
	workbaskets map[string]*task.Workbasket
	entries     []access.AccessEntry
	events      map[string][]*task.HistoryEvent
}

var _ storage.Storage = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tasks:       make(map[string]*task.Task),
		workbaskets: make(map[string]*task.Workbasket),
		events:      make(map[string][]*task.HistoryEvent),
	}
}

// CreateTask stores a new task. The id must be unused.
func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("task %s: %w", t.ID, storage.ErrExists)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// GetTask returns a copy of the task with its workbasket summary populated.
func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTaskLocked(id)
}

func (s *Store) getTaskLocked(id string) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	c := t.Clone()
	if wb, ok := s.workbaskets[c.WorkbasketID]; ok {
		summary := *wb
		c.Workbasket = &summary
	}
	return c, nil
}

// GetTasks returns the tasks that exist among ids; missing ids are simply
// absent from the result map.
func (s *Store) GetTasks(ctx context.Context, ids []string) (map[string]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*task.Task, len(ids))
	for _, id := range ids {
		if t, err := s.getTaskLocked(id); err == nil {
			out[id] = t
		}
	}
	return out, nil
}

// UpdateTask persists the task if the stored modified timestamp still equals
// expectedModified.
func (s *Store) UpdateTask(ctx context.Context, t *task.Task, expectedModified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTaskLocked(t, expectedModified)
}

func (s *Store) updateTaskLocked(t *task.Task, expectedModified time.Time) error {
	stored, ok := s.tasks[t.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", t.ID, storage.ErrNotFound)
	}
	if !stored.Modified.Equal(expectedModified) {
		return fmt.Errorf("task %s: %w", t.ID, storage.ErrConflict)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteTaskLocked(id)
}

func (s *Store) deleteTaskLocked(id string) error {
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}

// ListTasks returns tasks matching the filter, ordered by creation time and
// id for determinism.
func (s *Store) ListTasks(ctx context.Context, filter task.Filter) ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*task.Task
	for id, t := range s.tasks {
		if !filter.Matches(t) {
			continue
		}
		c, err := s.getTaskLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CreateWorkbasket stores a new workbasket. The id must be unused.
func (s *Store) CreateWorkbasket(ctx context.Context, wb *task.Workbasket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workbaskets[wb.ID]; ok {
		return fmt.Errorf("workbasket %s: %w", wb.ID, storage.ErrExists)
	}
	copied := *wb
	s.workbaskets[wb.ID] = &copied
	return nil
}

// GetWorkbasket returns a copy of the workbasket.
func (s *Store) GetWorkbasket(ctx context.Context, id string) (*task.Workbasket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wb, ok := s.workbaskets[id]
	if !ok {
		return nil, fmt.Errorf("workbasket %s: %w", id, storage.ErrNotFound)
	}
	copied := *wb
	return &copied, nil
}

// CreateAccessEntry stores an access entry.
func (s *Store) CreateAccessEntry(ctx context.Context, entry access.AccessEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Permissions = entry.Permissions.Union(nil)
	s.entries = append(s.entries, entry)
	return nil
}

// ListAccessEntries returns all entries for a workbasket.
func (s *Store) ListAccessEntries(ctx context.Context, workbasketID string) ([]access.AccessEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []access.AccessEntry
	for _, e := range s.entries {
		if e.WorkbasketID == workbasketID {
			e.Permissions = e.Permissions.Union(nil)
			out = append(out, e)
		}
	}
	return out, nil
}

// PermissionsFor unions the permission sets of all entries matching the
// workbasket and any of the access ids.
func (s *Store) PermissionsFor(ctx context.Context, workbasketID string, accessIDs []string) (access.PermissionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]bool, len(accessIDs))
	for _, id := range accessIDs {
		ids[id] = true
	}
	held := access.NewPermissionSet()
	for _, e := range s.entries {
		if e.WorkbasketID == workbasketID && ids[e.AccessID] {
			held = held.Union(e.Permissions)
		}
	}
	return held, nil
}

// RecordEvent appends a history event.
func (s *Store) RecordEvent(ctx context.Context, ev *task.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordEventLocked(ev)
}

func (s *Store) recordEventLocked(ev *task.HistoryEvent) error {
	copied := *ev
	copied.Details.Changes = append([]task.ChangeRecord(nil), ev.Details.Changes...)
	s.events[ev.TaskID] = append(s.events[ev.TaskID], &copied)
	return nil
}

// GetEvents returns a task's events, newest first.
func (s *Store) GetEvents(ctx context.Context, taskID string, limit int) ([]*task.HistoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.events[taskID]
	out := make([]*task.HistoryEvent, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		copied := *stored[i]
		copied.Details.Changes = append([]task.ChangeRecord(nil), stored[i].Details.Changes...)
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// DeleteEventsByTaskIDs removes all events for the given task ids.
func (s *Store) DeleteEventsByTaskIDs(ctx context.Context, taskIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteEventsLocked(taskIDs)
}

func (s *Store) deleteEventsLocked(taskIDs []string) error {
	for _, id := range taskIDs {
		delete(s.events, id)
	}
	return nil
}

// RunInTransaction executes fn under the store's write lock. Writes made
// through the transaction are journaled and undone in reverse order if fn
// returns an error, giving the same all-or-nothing behavior as a database
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Close releases the store. No-op for the memory implementation.
func (s *Store) Close() error { return nil }

// memTx journals undo closures for each write so a failed transaction can
// be rolled back. The store's write lock is held for the whole transaction.
type memTx struct {
	store *Store
	undo  []func()
}

var _ storage.Transaction = (*memTx)(nil)

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) CreateTask(ctx context.Context, t *task.Task) error {
	if _, ok := tx.store.tasks[t.ID]; ok {
		return fmt.Errorf("task %s: %w", t.ID, storage.ErrExists)
	}
	tx.store.tasks[t.ID] = t.Clone()
	id := t.ID
	tx.undo = append(tx.undo, func() { delete(tx.store.tasks, id) })
	return nil
}

func (tx *memTx) GetTask(ctx context.Context, id string) (*task.Task, error) {
	return tx.store.getTaskLocked(id)
}

func (tx *memTx) UpdateTask(ctx context.Context, t *task.Task, expectedModified time.Time) error {
	prev, ok := tx.store.tasks[t.ID]
	if err := tx.store.updateTaskLocked(t, expectedModified); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() {
		if ok {
			tx.store.tasks[t.ID] = prev
		} else {
			delete(tx.store.tasks, t.ID)
		}
	})
	return nil
}

func (tx *memTx) DeleteTask(ctx context.Context, id string) error {
	prev, ok := tx.store.tasks[id]
	if err := tx.store.deleteTaskLocked(id); err != nil {
		return err
	}
	if ok {
		tx.undo = append(tx.undo, func() { tx.store.tasks[id] = prev })
	}
	return nil
}

func (tx *memTx) RecordEvent(ctx context.Context, ev *task.HistoryEvent) error {
	if err := tx.store.recordEventLocked(ev); err != nil {
		return err
	}
	taskID := ev.TaskID
	tx.undo = append(tx.undo, func() {
		evs := tx.store.events[taskID]
		if len(evs) > 0 {
			tx.store.events[taskID] = evs[:len(evs)-1]
		}
	})
	return nil
}

func (tx *memTx) DeleteEventsByTaskIDs(ctx context.Context, taskIDs []string) error {
	saved := make(map[string][]*task.HistoryEvent, len(taskIDs))
	for _, id := range taskIDs {
		if evs, ok := tx.store.events[id]; ok {
			saved[id] = evs
		}
	}
	if err := tx.store.deleteEventsLocked(taskIDs); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() {
		for id, evs := range saved {
			tx.store.events[id] = evs
		}
	})
	return nil
}
