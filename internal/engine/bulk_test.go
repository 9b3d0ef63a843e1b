package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/taskbasket/taskbasket/internal/task"
)

func TestBulkClaimPartialFailure(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	first := mustCreate(t, e, alice, "WB-1")
	second := mustCreate(t, e, alice, "WB-1")

	res, err := e.ClaimMany(ctx, alice, []string{first.ID, "TSK-404", second.ID})
	if err != nil {
		t.Fatalf("claim many: %v", err)
	}
	if !res.ContainsErrors() {
		t.Fatal("missing id did not surface as an error")
	}
	if got, want := res.FailedIDs(), []string{"TSK-404"}; !reflect.DeepEqual(got, want) {
		t.Errorf("failed = %v, want %v", got, want)
	}
	if !errors.Is(res.ErrorForID("TSK-404"), task.ErrNotFound) {
		t.Errorf("error for missing id = %v", res.ErrorForID("TSK-404"))
	}
	if len(res.SucceededIDs()) != 2 {
		t.Errorf("succeeded = %v", res.SucceededIDs())
	}

	// Failure of the middle id must not have stopped the tail.
	got, err := e.Get(ctx, alice, second.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != task.StateClaimed {
		t.Errorf("tail task state = %s, want CLAIMED", got.State)
	}
}

func TestBulkCompleteMixedStates(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	claimed := mustCreate(t, e, alice, "WB-1")
	ready := mustCreate(t, e, alice, "WB-1")
	done := mustCreate(t, e, alice, "WB-1")

	if _, err := e.Claim(ctx, alice, claimed.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := e.Claim(ctx, alice, done.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := e.Complete(ctx, alice, done.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	res, err := e.CompleteMany(ctx, alice, []string{claimed.ID, ready.ID, done.ID})
	if err != nil {
		t.Fatalf("complete many: %v", err)
	}
	// READY is not completable; already COMPLETED counts as success.
	if got, want := res.FailedIDs(), []string{ready.ID}; !reflect.DeepEqual(got, want) {
		t.Errorf("failed = %v, want %v", got, want)
	}
	if !errors.Is(res.ErrorForID(ready.ID), task.ErrInvalidState) {
		t.Errorf("error for ready task = %v", res.ErrorForID(ready.ID))
	}
	if len(res.SucceededIDs()) != 2 {
		t.Errorf("succeeded = %v", res.SucceededIDs())
	}
}

func TestBulkForceComplete(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	first := mustCreate(t, e, alice, "WB-1")
	second := mustCreate(t, e, alice, "WB-1")

	res, err := e.ForceCompleteMany(ctx, alice, []string{first.ID, second.ID})
	if err != nil {
		t.Fatalf("force complete many: %v", err)
	}
	if res.ContainsErrors() {
		t.Fatalf("failures: %v", res.FailedIDs())
	}
	for _, id := range []string{first.ID, second.ID} {
		got, err := e.Get(ctx, alice, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.State != task.StateCompleted {
			t.Errorf("%s state = %s", id, got.State)
		}
	}
}

func TestBulkTransfer(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	first := mustCreate(t, e, alice, "WB-1")
	second := mustCreate(t, e, alice, "WB-1")

	res, err := e.TransferMany(ctx, alice, []string{first.ID, second.ID, "TSK-404"}, "WB-2")
	if err != nil {
		t.Fatalf("transfer many: %v", err)
	}
	if got, want := res.FailedIDs(), []string{"TSK-404"}; !reflect.DeepEqual(got, want) {
		t.Errorf("failed = %v, want %v", got, want)
	}
	moved, err := e.List(ctx, alice, task.Filter{WorkbasketID: "WB-2"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(moved) != 2 {
		t.Errorf("moved = %d tasks, want 2", len(moved))
	}
}

func TestBulkDelete(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	first := mustCreate(t, e, alice, "WB-1")

	res, err := e.DeleteMany(ctx, admin, []string{first.ID, "TSK-404"})
	if err != nil {
		t.Fatalf("delete many: %v", err)
	}
	if len(res.SucceededIDs()) != 1 || len(res.FailedIDs()) != 1 {
		t.Errorf("result = succeeded %v failed %v", res.SucceededIDs(), res.FailedIDs())
	}
}

func TestBulkNilIDs(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.ClaimMany(context.Background(), alice, nil)
	if !errors.Is(err, task.ErrInvalidArgument) {
		t.Fatalf("err = %v, want invalid argument", err)
	}
}

func TestBulkEmptyIDs(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.ClaimMany(context.Background(), alice, []string{})
	if err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if res.ContainsErrors() || len(res.SucceededIDs()) != 0 {
		t.Errorf("empty batch result = %+v", res)
	}
}

func TestBulkParallelWorkers(t *testing.T) {
	e, _ := newTestEngine(t, WithBulkWorkers(4))
	ctx := context.Background()

	ids := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		ids = append(ids, mustCreate(t, e, alice, "WB-1").ID)
	}
	ids = append(ids, "TSK-404")

	res, err := e.ClaimMany(ctx, alice, ids)
	if err != nil {
		t.Fatalf("parallel claim many: %v", err)
	}
	if len(res.SucceededIDs()) != 8 {
		t.Errorf("succeeded = %d, want 8", len(res.SucceededIDs()))
	}
	if got, want := res.FailedIDs(), []string{"TSK-404"}; !reflect.DeepEqual(got, want) {
		t.Errorf("failed = %v, want %v", got, want)
	}
}
