package taskbasket

import (
	"context"
	"testing"
)

func TestEmbeddedEngine(t *testing.T) {
	store := NewMemoryStorage()
	defer store.Close()
	ctx := context.Background()

	if err := store.CreateWorkbasket(ctx, &Workbasket{ID: "WB-1", Key: "inbox", Name: "Inbox"}); err != nil {
		t.Fatalf("create workbasket: %v", err)
	}

	eng := NewEngine(store)
	admin := Subject{UserID: "ops", Roles: []Role{RoleAdmin}}

	created, err := eng.Create(ctx, admin, &Task{WorkbasketID: "WB-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	claimed, err := eng.Claim(ctx, admin, created.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.State != StateClaimed {
		t.Errorf("state = %s, want %s", claimed.State, StateClaimed)
	}
	done, err := eng.Complete(ctx, admin, created.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.State != StateCompleted {
		t.Errorf("state = %s, want %s", done.State, StateCompleted)
	}
}
