// Package taskbasket provides a minimal public API for embedding the task
// engine in other Go programs.
//
// Most integrations should construct a store, wrap it in an Engine, and
// drive tasks through the lifecycle operations. The internal packages stay
// internal; this package exports only the types needed at the boundary.
package taskbasket

import (
	"github.com/taskbasket/taskbasket/internal/access"
	"github.com/taskbasket/taskbasket/internal/engine"
	"github.com/taskbasket/taskbasket/internal/storage"
	"github.com/taskbasket/taskbasket/internal/storage/memory"
	"github.com/taskbasket/taskbasket/internal/storage/sqlite"
	"github.com/taskbasket/taskbasket/internal/task"
)

// Core types for working with tasks
type (
	Task         = task.Task
	State        = task.State
	Workbasket   = task.Workbasket
	Filter       = task.Filter
	HistoryEvent = task.HistoryEvent
	Subject      = access.Subject
	Permission   = access.Permission
	Role         = access.Role
	AccessEntry  = access.AccessEntry
	Engine       = engine.Engine
	BulkResult   = engine.BulkResult
)

// State constants
const (
	StateReady          = task.StateReady
	StateClaimed        = task.StateClaimed
	StateInReview       = task.StateInReview
	StateReadyForReview = task.StateReadyForReview
	StateCompleted      = task.StateCompleted
	StateCancelled      = task.StateCancelled
	StateTerminated     = task.StateTerminated
)

// Permission constants
const (
	PermRead      = access.PermRead
	PermReadTasks = access.PermReadTasks
	PermEditTasks = access.PermEditTasks
	PermAppend    = access.PermAppend
)

// Role constants
const (
	RoleAdmin     = access.RoleAdmin
	RoleTaskAdmin = access.RoleTaskAdmin
)

// Storage is the persistence interface an Engine runs on.
type Storage = storage.Storage

// Option configures an Engine.
type Option = engine.Option

// NewSQLiteStorage opens (creating if needed) a task database at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	return sqlite.New(dbPath)
}

// NewMemoryStorage returns a transient in-memory store, useful for tests
// and short-lived tooling.
func NewMemoryStorage() Storage {
	return memory.New()
}

// NewEngine wraps a store in a task engine.
func NewEngine(store Storage, opts ...Option) *Engine {
	return engine.New(store, opts...)
}
