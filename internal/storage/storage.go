// Package storage provides shared types for task storage.
//
// Concrete implementations live in the memory and sqlite sub-packages. This
// package holds the interface and sentinel errors referenced by both the
// implementations and their consumers (internal/engine, cmd/tb).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/taskbasket/taskbasket/internal/access"
	"github.com/taskbasket/taskbasket/internal/task"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating an entity whose id is already taken.
var ErrExists = errors.New("already exists")

// ErrConflict is returned by UpdateTask when the task's modified timestamp
// no longer matches the expected value, i.e. a concurrent writer won.
var ErrConflict = errors.New("modified by concurrent writer")

// Storage is the interface satisfied by the memory and sqlite stores.
// Consumers depend on this interface rather than on a concrete type so that
// alternative implementations can be substituted.
type Storage interface {
	// Task CRUD
	CreateTask(ctx context.Context, t *task.Task) error
	GetTask(ctx context.Context, id string) (*task.Task, error)
	GetTasks(ctx context.Context, ids []string) (map[string]*task.Task, error)
	// UpdateTask persists t only if the stored modified timestamp still
	// equals expectedModified; otherwise it returns ErrConflict.
	UpdateTask(ctx context.Context, t *task.Task, expectedModified time.Time) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, filter task.Filter) ([]*task.Task, error)

	// Workbaskets
	CreateWorkbasket(ctx context.Context, wb *task.Workbasket) error
	GetWorkbasket(ctx context.Context, id string) (*task.Workbasket, error)

	// Access entries (implements access.Resolver)
	CreateAccessEntry(ctx context.Context, entry access.AccessEntry) error
	ListAccessEntries(ctx context.Context, workbasketID string) ([]access.AccessEntry, error)
	PermissionsFor(ctx context.Context, workbasketID string, accessIDs []string) (access.PermissionSet, error)

	// History events
	RecordEvent(ctx context.Context, ev *task.HistoryEvent) error
	GetEvents(ctx context.Context, taskID string, limit int) ([]*task.HistoryEvent, error)
	DeleteEventsByTaskIDs(ctx context.Context, taskIDs []string) error

	// Transactions
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Lifecycle
	Close() error
}

// Transaction exposes the subset of storage operations a single task
// transition needs atomically: load, conditional save, event append, and
// the deletion pair for cascade deletes. If the callback passed to
// RunInTransaction returns an error, all writes made through the
// transaction are rolled back.
type Transaction interface {
	CreateTask(ctx context.Context, t *task.Task) error
	GetTask(ctx context.Context, id string) (*task.Task, error)
	UpdateTask(ctx context.Context, t *task.Task, expectedModified time.Time) error
	DeleteTask(ctx context.Context, id string) error
	RecordEvent(ctx context.Context, ev *task.HistoryEvent) error
	DeleteEventsByTaskIDs(ctx context.Context, taskIDs []string) error
}
