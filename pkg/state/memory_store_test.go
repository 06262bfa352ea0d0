package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-intake/pkg/state"
)

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T, opts ...state.Option) state.Store {
		return state.NewMemoryStore(opts...)
	})
}

func TestMemoryStoreDetachesValues(t *testing.T) {
	store := state.NewMemoryStore()
	ctx := context.Background()

	payload := map[string]any{"vehicles": []any{map[string]any{"make": "Ford"}}}
	if err := store.UpdateSubsection(ctx, "vehicles", payload); err != nil {
		t.Fatalf("update: %v", err)
	}
	payload["vehicles"].([]any)[0].(map[string]any)["make"] = "mutated"

	record, _, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := record["vehicles"].(map[string]any)["vehicles"].([]any)[0].(map[string]any)["make"]
	if got != "Ford" {
		t.Fatalf("store aliased caller payload, got %v", got)
	}

	record["vehicles"] = "overwritten"
	again, _, _ := store.Read(ctx)
	if _, ok := again["vehicles"].(map[string]any); !ok {
		t.Fatalf("read result aliased stored record: %#v", again["vehicles"])
	}
}

func TestMemoryStoreKeepsNativeTypes(t *testing.T) {
	store := state.NewMemoryStore()
	ctx := context.Background()
	if err := store.UpdateSubsection(ctx, "children", map[string]any{"age": 5}); err != nil {
		t.Fatalf("update: %v", err)
	}
	record, _, _ := store.Read(ctx)
	if age := record["children"].(map[string]any)["age"]; age != 5 {
		t.Fatalf("expected int 5, got %#v", age)
	}
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	store := state.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.UpdateSubsection(ctx, "vehicles", map[string]any{})
	if !errors.Is(err, state.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context.Canceled, got %v", err)
	}
	var perr *state.PersistenceError
	if !errors.As(err, &perr) || perr.Op != "update" || perr.Subsection != "vehicles" {
		t.Fatalf("unexpected persistence error: %#v", perr)
	}
}

func TestMemoryStoreKeyIsolation(t *testing.T) {
	runKeyIsolationContract(t, func(opts ...state.Option) state.Store {
		return state.NewMemoryStore(opts...)
	})

	a := state.NewMemoryStore()
	if err := a.UpdateSubsection(context.Background(), "vehicles", map[string]any{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	record, ok, _ := a.Read(context.Background())
	if !ok || len(record) != 1 {
		t.Fatalf("expected single subsection, got %v", record)
	}
}
