package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/taskbasket/taskbasket/internal/access"
	"github.com/taskbasket/taskbasket/internal/task"
)

// BulkResult aggregates the per-id outcomes of a bulk call. Every id is
// processed even when earlier ids fail; per-item failures never abort the
// batch. Immutable once returned to the caller.
type BulkResult struct {
	succeeded map[string]bool
	errs      map[string]error
}

func newBulkResult() *BulkResult {
	return &BulkResult{
		succeeded: make(map[string]bool),
		errs:      make(map[string]error),
	}
}

func (r *BulkResult) add(id string, err error) {
	if err != nil {
		r.errs[id] = err
		return
	}
	r.succeeded[id] = true
}

// ContainsErrors reports whether any id failed.
func (r *BulkResult) ContainsErrors() bool { return len(r.errs) > 0 }

// SucceededIDs returns the ids that succeeded, sorted.
func (r *BulkResult) SucceededIDs() []string { return sortedKeys(r.succeeded) }

// FailedIDs returns the ids that failed, sorted.
func (r *BulkResult) FailedIDs() []string {
	ids := make([]string, 0, len(r.errs))
	for id := range r.errs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ErrorForID returns the captured error for id, or nil if the id succeeded
// or was not part of the batch.
func (r *BulkResult) ErrorForID(id string) error { return r.errs[id] }

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ClaimMany claims each id independently.
func (e *Engine) ClaimMany(ctx context.Context, subject access.Subject, ids []string) (*BulkResult, error) {
	return e.runBulk(ctx, ids, func(ctx context.Context, id string) error {
		_, err := e.Claim(ctx, subject, id)
		return err
	})
}

// CompleteMany completes each id independently. Already-completed tasks
// count as successes because completion is idempotent.
func (e *Engine) CompleteMany(ctx context.Context, subject access.Subject, ids []string) (*BulkResult, error) {
	return e.runBulk(ctx, ids, func(ctx context.Context, id string) error {
		_, err := e.Complete(ctx, subject, id)
		return err
	})
}

// ForceCompleteMany force-completes each id independently.
func (e *Engine) ForceCompleteMany(ctx context.Context, subject access.Subject, ids []string) (*BulkResult, error) {
	return e.runBulk(ctx, ids, func(ctx context.Context, id string) error {
		_, err := e.ForceComplete(ctx, subject, id)
		return err
	})
}

// CancelMany cancels each id independently.
func (e *Engine) CancelMany(ctx context.Context, subject access.Subject, ids []string) (*BulkResult, error) {
	return e.runBulk(ctx, ids, func(ctx context.Context, id string) error {
		_, err := e.Cancel(ctx, subject, id)
		return err
	})
}

// TransferMany reroutes each id to the destination workbasket independently.
func (e *Engine) TransferMany(ctx context.Context, subject access.Subject, ids []string, destinationID string) (*BulkResult, error) {
	return e.runBulk(ctx, ids, func(ctx context.Context, id string) error {
		_, err := e.Transfer(ctx, subject, id, destinationID)
		return err
	})
}

// DeleteMany deletes each id independently.
func (e *Engine) DeleteMany(ctx context.Context, subject access.Subject, ids []string) (*BulkResult, error) {
	return e.runBulk(ctx, ids, func(ctx context.Context, id string) error {
		return e.Delete(ctx, subject, id)
	})
}

// runBulk drives op over every id. A nil id list is rejected before any
// storage access; invalid ids surface as per-id not-found errors. There is
// deliberately no transaction spanning the batch: each item commits on its
// own, so callers must not assume all-or-nothing.
func (e *Engine) runBulk(ctx context.Context, ids []string, op func(ctx context.Context, id string) error) (*BulkResult, error) {
	if ids == nil {
		return nil, fmt.Errorf("%w: nil task id list", task.ErrInvalidArgument)
	}
	result := newBulkResult()

	if e.bulkWorkers > 1 {
		var mu sync.Mutex
		var g errgroup.Group
		g.SetLimit(e.bulkWorkers)
		for _, id := range ids {
			id := id
			g.Go(func() error {
				err := op(ctx, id)
				mu.Lock()
				result.add(id, err)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait() // workers never return errors; failures land in result
		return result, nil
	}

	for _, id := range ids {
		result.add(id, op(ctx, id))
	}
	return result, nil
}
