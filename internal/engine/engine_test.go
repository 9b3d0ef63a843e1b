package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/taskbasket/taskbasket/internal/access"
	"github.com/taskbasket/taskbasket/internal/lifecycle"
	"github.com/taskbasket/taskbasket/internal/storage"
	"github.com/taskbasket/taskbasket/internal/storage/memory"
	"github.com/taskbasket/taskbasket/internal/task"
)

var (
	admin = access.Subject{UserID: "root", Roles: []access.Role{access.RoleAdmin}}
	alice = access.Subject{UserID: "alice"}
	bob   = access.Subject{UserID: "bob"}
	rita  = access.Subject{UserID: "rita", GroupIDs: []string{"reviewers"}}
)

// fakeClock hands out strictly increasing microsecond stamps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, wb := range []*task.Workbasket{
		{ID: "WB-1", Key: "inbox", Name: "Inbox"},
		{ID: "WB-2", Key: "triage", Name: "Triage"},
	} {
		if err := store.CreateWorkbasket(ctx, wb); err != nil {
			t.Fatalf("create workbasket %s: %v", wb.ID, err)
		}
	}
	full := access.NewPermissionSet(access.PermRead, access.PermReadTasks, access.PermEditTasks, access.PermAppend)
	entries := []access.AccessEntry{
		{WorkbasketID: "WB-1", AccessID: "alice", Permissions: full},
		{WorkbasketID: "WB-2", AccessID: "alice", Permissions: full},
		{WorkbasketID: "WB-1", AccessID: "reviewers", Permissions: full},
		{WorkbasketID: "WB-1", AccessID: "bob", Permissions: access.NewPermissionSet(access.PermRead, access.PermReadTasks)},
	}
	for _, e := range entries {
		if err := store.CreateAccessEntry(ctx, e); err != nil {
			t.Fatalf("create access entry: %v", err)
		}
	}
	opts = append([]Option{WithClock(newFakeClock().Now)}, opts...)
	return New(store, opts...), store
}

func mustCreate(t *testing.T, e *Engine, subject access.Subject, workbasketID string) *task.Task {
	t.Helper()
	created, err := e.Create(context.Background(), subject, &task.Task{WorkbasketID: workbasketID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return created
}

func TestCreateAndGet(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	created := mustCreate(t, e, alice, "WB-1")
	if created.ID == "" {
		t.Fatal("create did not assign an id")
	}
	if created.State != task.StateReady {
		t.Errorf("state = %s, want READY", created.State)
	}

	got, err := e.Get(ctx, alice, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID || got.WorkbasketID != "WB-1" {
		t.Errorf("got = %+v", got)
	}
	if got.Workbasket == nil || got.Workbasket.Key != "inbox" {
		t.Errorf("workbasket summary not populated: %+v", got.Workbasket)
	}

	events, err := e.History(ctx, alice, created.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(events) != 1 || events[0].EventType != task.EventCreated {
		t.Errorf("history = %+v", events)
	}
}

func TestCreateRequiresAppend(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Create(context.Background(), bob, &task.Task{WorkbasketID: "WB-1"})
	if !errors.Is(err, access.ErrNotAuthorized) {
		t.Fatalf("err = %v, want not authorized", err)
	}
}

func TestCreateUnknownWorkbasket(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Create(context.Background(), admin, &task.Task{WorkbasketID: "WB-404"})
	if err == nil {
		t.Fatal("create against unknown workbasket succeeded")
	}
}

func TestClaimLifecycle(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	claimed, err := e.Claim(ctx, alice, created.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.State != task.StateClaimed || claimed.Owner != "alice" {
		t.Errorf("claimed = state %s owner %q", claimed.State, claimed.Owner)
	}
	if !claimed.Modified.After(created.Modified) {
		t.Error("claim did not advance the modified timestamp")
	}

	// The claim event carries the field-level diff.
	events, err := e.History(ctx, alice, created.ID, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(events) != 1 || events[0].EventType != task.EventClaimed {
		t.Fatalf("latest event = %+v", events)
	}
	fields := make([]string, 0, len(events[0].Details.Changes))
	for _, ch := range events[0].Details.Changes {
		fields = append(fields, ch.FieldName)
	}
	want := []string{"claimed", "modified", "state", "owner", "isRead"}
	if len(fields) != len(want) {
		t.Fatalf("changed fields = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field[%d] = %s, want %s", i, fields[i], want[i])
		}
	}

	done, err := e.Complete(ctx, alice, created.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.State != task.StateCompleted || done.Completed == nil {
		t.Errorf("done = %+v", done)
	}
}

func TestClaimOwnedRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	if _, err := e.Claim(ctx, alice, created.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	_, err := e.Claim(ctx, rita, created.ID)
	if !errors.Is(err, task.ErrOwnerMismatch) {
		t.Fatalf("err = %v, want owner mismatch", err)
	}

	forced, err := e.ForceClaim(ctx, rita, created.ID)
	if err != nil {
		t.Fatalf("force-claim: %v", err)
	}
	if forced.Owner != "rita" {
		t.Errorf("owner = %q, want rita", forced.Owner)
	}
}

func TestCompleteIdempotentNoEvent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	if _, err := e.Claim(ctx, alice, created.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	first, err := e.Complete(ctx, alice, created.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	again, err := e.Complete(ctx, alice, created.ID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !again.Modified.Equal(first.Modified) {
		t.Error("idempotent completion bumped modified")
	}

	events, err := e.History(ctx, alice, created.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	completions := 0
	for _, ev := range events {
		if ev.EventType == task.EventCompleted {
			completions++
		}
	}
	if completions != 1 {
		t.Errorf("completed events = %d, want 1", completions)
	}
}

func TestReviewRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	if _, err := e.Claim(ctx, alice, created.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	inReview, err := e.RequestReview(ctx, alice, created.ID)
	if err != nil {
		t.Fatalf("request-review: %v", err)
	}
	if inReview.State != task.StateReadyForReview {
		t.Errorf("state = %s", inReview.State)
	}

	// The reviewer claims it, which picks it up IN_REVIEW.
	picked, err := e.Claim(ctx, rita, created.ID)
	if err != nil {
		t.Fatalf("reviewer claim: %v", err)
	}
	if picked.State != task.StateInReview || picked.Owner != "rita" {
		t.Errorf("picked = state %s owner %q", picked.State, picked.Owner)
	}

	back, err := e.RequestChanges(ctx, rita, created.ID)
	if err != nil {
		t.Fatalf("request-changes: %v", err)
	}
	if back.State != task.StateReady || back.Owner != "" {
		t.Errorf("back = state %s owner %q", back.State, back.Owner)
	}
}

type alwaysReview struct{}

func (alwaysReview) ReviewRequired(t *task.Task, actor string) bool { return true }

func TestCompleteRoutedThroughReviewCheck(t *testing.T) {
	e, _ := newTestEngine(t, WithReviewChecks(alwaysReview{}))
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	if _, err := e.Claim(ctx, alice, created.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	routed, err := e.Complete(ctx, alice, created.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if routed.State != task.StateReadyForReview {
		t.Errorf("state = %s, want READY_FOR_REVIEW", routed.State)
	}
}

type closerHook struct{}

func (closerHook) BeforeEndstate(t *task.Task, actor string) {
	if t.Custom == nil {
		t.Custom = make(map[string]string)
	}
	t.Custom["closedBy"] = actor
}

func TestEndstateHookPersisted(t *testing.T) {
	e, _ := newTestEngine(t, WithEndstateHooks(closerHook{}))
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	cancelled, err := e.Cancel(ctx, alice, created.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Custom["closedBy"] != "alice" {
		t.Errorf("custom = %v", cancelled.Custom)
	}

	// The hook's mutation shows up in the recorded diff.
	events, err := e.History(ctx, alice, created.ID, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	found := false
	for _, ch := range events[0].Details.Changes {
		if ch.FieldName == "custom.closedBy" && ch.NewValue == "alice" {
			found = true
		}
	}
	if !found {
		t.Errorf("diff missing hook mutation: %+v", events[0].Details.Changes)
	}
}

func TestTerminateAdminOnly(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	_, err := e.Terminate(ctx, alice, created.ID)
	if !errors.Is(err, access.ErrNotAuthorized) {
		t.Fatalf("err = %v, want not authorized", err)
	}

	terminated, err := e.Terminate(ctx, admin, created.ID)
	if err != nil {
		t.Fatalf("terminate as admin: %v", err)
	}
	if terminated.State != task.StateTerminated {
		t.Errorf("state = %s", terminated.State)
	}
}

func TestEditRequiresPermissions(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	// bob holds only the read pair on WB-1.
	if _, err := e.Get(ctx, bob, created.ID); err != nil {
		t.Fatalf("read access: %v", err)
	}
	_, err := e.Claim(ctx, bob, created.ID)
	var na *access.NotAuthorizedError
	if !errors.As(err, &na) {
		t.Fatalf("err = %v, want NotAuthorizedError", err)
	}
	if len(na.RequiredPermissions) != 1 || na.RequiredPermissions[0] != access.PermEditTasks {
		t.Errorf("missing = %v, want [EDITTASKS]", na.RequiredPermissions)
	}
}

func TestOptimisticUpdateConflict(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	// A concurrent writer bumps the task between our load and our save.
	stale := created.Clone()
	raced := created.Clone()
	raced.Modified = raced.Modified.Add(time.Second)
	if err := store.UpdateTask(ctx, raced, created.Modified); err != nil {
		t.Fatalf("racing update: %v", err)
	}
	err := store.UpdateTask(ctx, stale, created.Modified)
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("stale update: err = %v, want conflict", err)
	}
}

func TestTransfer(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	moved, err := e.Transfer(ctx, alice, created.ID, "WB-2")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if moved.WorkbasketID != "WB-2" {
		t.Errorf("workbasket = %s, want WB-2", moved.WorkbasketID)
	}
	if moved.State != created.State || moved.Owner != created.Owner {
		t.Error("transfer changed state or owner")
	}

	events, err := e.History(ctx, alice, created.ID, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if events[0].EventType != task.EventTransferred {
		t.Errorf("event = %s", events[0].EventType)
	}

	if _, err := e.Transfer(ctx, alice, created.ID, "WB-1"); err != nil {
		t.Fatalf("transfer back: %v", err)
	}
	// rita has no grants on WB-2, so she cannot route tasks into it.
	_, err = e.Transfer(ctx, rita, created.ID, "WB-2")
	if !errors.Is(err, access.ErrNotAuthorized) {
		t.Fatalf("err = %v, want not authorized", err)
	}
}

func TestTransferTerminalRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")
	if _, err := e.Cancel(ctx, alice, created.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := e.Transfer(ctx, alice, created.ID, "WB-2")
	if !errors.Is(err, task.ErrInvalidState) {
		t.Fatalf("err = %v, want invalid state", err)
	}
}

func TestSetRead(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	marked, err := e.SetRead(ctx, alice, created.ID, true)
	if err != nil {
		t.Fatalf("set read: %v", err)
	}
	if !marked.IsRead {
		t.Error("read flag not set")
	}

	// Setting the same value again is a no-op: no bump, no event.
	again, err := e.SetRead(ctx, alice, created.ID, true)
	if err != nil {
		t.Fatalf("set read again: %v", err)
	}
	if !again.Modified.Equal(marked.Modified) {
		t.Error("no-op set read bumped modified")
	}
	events, err := e.History(ctx, alice, created.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	updates := 0
	for _, ev := range events {
		if ev.EventType == task.EventUpdated {
			updates++
		}
	}
	if updates != 1 {
		t.Errorf("updated events = %d, want 1", updates)
	}
}

func TestDeleteKeepsTrailByDefault(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	if err := e.Delete(ctx, alice, created.ID); !errors.Is(err, access.ErrNotAuthorized) {
		t.Fatalf("non-admin delete: err = %v, want not authorized", err)
	}
	if err := e.Delete(ctx, admin, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.Get(ctx, admin, created.ID); !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("get after delete: err = %v, want not found", err)
	}

	// The trail outlives the task, ending with the DELETED marker.
	events, err := store.GetEvents(ctx, created.ID, 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) == 0 || events[0].EventType != task.EventDeleted {
		t.Errorf("events = %+v", events)
	}
}

func TestDeleteCascade(t *testing.T) {
	e, store := newTestEngine(t, WithCascadeDelete(true))
	ctx := context.Background()
	created := mustCreate(t, e, alice, "WB-1")

	if err := e.Delete(ctx, admin, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	events, err := store.GetEvents(ctx, created.ID, 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("cascade left %d events behind", len(events))
	}
}

func TestListScoping(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustCreate(t, e, alice, "WB-1")
	mustCreate(t, e, alice, "WB-2")

	tasks, err := e.List(ctx, alice, task.Filter{WorkbasketID: "WB-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("len = %d, want 1", len(tasks))
	}

	// Unscoped listing is an admin query.
	if _, err := e.List(ctx, alice, task.Filter{}); !errors.Is(err, access.ErrNotAuthorized) {
		t.Fatalf("unscoped list: err = %v, want not authorized", err)
	}
	all, err := e.List(ctx, admin, task.Filter{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len = %d, want 2", len(all))
	}
}

func TestOperationsOnMissingTask(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	ops := map[string]func() error{
		"claim":    func() error { _, err := e.Claim(ctx, alice, "TSK-404"); return err },
		"complete": func() error { _, err := e.Complete(ctx, alice, "TSK-404"); return err },
		"get":      func() error { _, err := e.Get(ctx, alice, "TSK-404"); return err },
		"transfer": func() error { _, err := e.Transfer(ctx, alice, "TSK-404", "WB-1"); return err },
		"delete":   func() error { return e.Delete(ctx, admin, "TSK-404") },
		"empty id": func() error { _, err := e.Claim(ctx, alice, ""); return err },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("%s: err = %v, want not found", name, err)
		}
	}
}

func TestCreateWorkbasketAdminOnly(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	wb := &task.Workbasket{ID: "WB-3", Key: "done", Name: "Done"}
	if err := e.CreateWorkbasket(ctx, alice, wb); !errors.Is(err, access.ErrNotAuthorized) {
		t.Fatalf("err = %v, want not authorized", err)
	}
	if err := e.CreateWorkbasket(ctx, admin, wb); err != nil {
		t.Fatalf("create workbasket: %v", err)
	}
}

func TestRequiredStatesExposed(t *testing.T) {
	got := lifecycle.RequiredStates(lifecycle.OpClaim)
	if len(got) != 2 || got[0] != task.StateReady || got[1] != task.StateReadyForReview {
		t.Errorf("RequiredStates(claim) = %v", got)
	}
}
