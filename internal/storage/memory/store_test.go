package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/tjfontaine/courtside/internal/storage"
)

func TestStore_RecordAndList(t *testing.T) {
	store := New(0)
	ctx := context.Background()

	for i, name := range []string{"get_team_info", "get_player_info", "get_team_info"} {
		err := store.RecordInvocation(ctx, &storage.Invocation{
			ID:         fmt.Sprintf("inv-%d", i),
			Capability: name,
			Arguments:  []byte(`{}`),
		})
		if err != nil {
			t.Fatalf("RecordInvocation() error = %v", err)
		}
	}

	all, err := store.ListInvocations(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListInvocations() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].ID != "inv-2" || all[2].ID != "inv-0" {
		t.Errorf("expected newest first, got %s..%s", all[0].ID, all[2].ID)
	}
	if all[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	filtered, _ := store.ListInvocations(ctx, storage.ListOptions{Capability: "get_team_info", Limit: 1})
	if len(filtered) != 1 || filtered[0].ID != "inv-2" {
		t.Errorf("filtered = %+v", filtered)
	}
}

func TestStore_Capacity(t *testing.T) {
	store := New(2)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		store.RecordInvocation(ctx, &storage.Invocation{ID: fmt.Sprintf("inv-%d", i)})
	}

	all, _ := store.ListInvocations(ctx, storage.ListOptions{})
	if len(all) != 2 || all[0].ID != "inv-4" || all[1].ID != "inv-3" {
		t.Errorf("expected the two newest records, got %+v", all)
	}
}

func TestStore_RequiresID(t *testing.T) {
	if err := New(1).RecordInvocation(context.Background(), &storage.Invocation{}); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := New(1)
	ctx := context.Background()
	inv := &storage.Invocation{ID: "a", Capability: "get_team_info"}
	store.RecordInvocation(ctx, inv)
	inv.Capability = "mutated"

	got, _ := store.ListInvocations(ctx, storage.ListOptions{})
	got[0].Result = "mutated"

	again, _ := store.ListInvocations(ctx, storage.ListOptions{})
	if again[0].Capability != "get_team_info" || again[0].Result != "" {
		t.Errorf("store shares state with callers: %+v", again[0])
	}
}
