package state_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/goliatone/go-intake/pkg/state"
)

// runStoreContract exercises the behavior every backend must share. Payloads
// only use JSON-native shapes so encoded backends compare equal.
func runStoreContract(t *testing.T, newStore func(t *testing.T, opts ...state.Option) state.Store) {
	t.Helper()

	t.Run("read of empty store is absent", func(t *testing.T) {
		store := newStore(t)
		record, ok, err := store.Read(context.Background())
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if ok || record != nil {
			t.Fatalf("expected absent record, got ok=%v record=%v", ok, record)
		}
	})

	t.Run("update creates record on first write", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		vehicles := map[string]any{"hasVehicles": false}
		if err := store.UpdateSubsection(ctx, "vehicles", vehicles); err != nil {
			t.Fatalf("update: %v", err)
		}
		record, ok, err := store.Read(ctx)
		if err != nil || !ok {
			t.Fatalf("read: ok=%v err=%v", ok, err)
		}
		want := state.Record{"vehicles": map[string]any{"hasVehicles": false}}
		if !reflect.DeepEqual(record, want) {
			t.Fatalf("unexpected record: %#v", record)
		}
	})

	t.Run("update leaves other subsections untouched", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		initial := state.Record{
			"children":     map[string]any{"children": []any{map[string]any{"name": "Ana", "age": float64(4)}}},
			"demographics": map[string]any{"fullName": "Jane Doe"},
		}
		if err := store.Replace(ctx, initial); err != nil {
			t.Fatalf("replace: %v", err)
		}
		if err := store.UpdateSubsection(ctx, "demographics", map[string]any{"fullName": "John Roe"}); err != nil {
			t.Fatalf("update: %v", err)
		}
		record, _, err := store.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !reflect.DeepEqual(record["children"], initial["children"]) {
			t.Fatalf("children changed: %#v", record["children"])
		}
		if got := record["demographics"].(map[string]any)["fullName"]; got != "John Roe" {
			t.Fatalf("expected updated fullName, got %v", got)
		}
	})

	t.Run("replace overwrites whole record", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		if err := store.UpdateSubsection(ctx, "housing", map[string]any{"payRent": true}); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := store.Replace(ctx, state.Record{"lifeGoals": map[string]any{"goalOne": "finish school"}}); err != nil {
			t.Fatalf("replace: %v", err)
		}
		record, _, err := store.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if _, ok := record["housing"]; ok {
			t.Fatalf("expected housing to be dropped by replace: %#v", record)
		}
		if record.Names()[0] != "lifeGoals" {
			t.Fatalf("unexpected names: %v", record.Names())
		}
	})

	t.Run("delete then read is absent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		if err := store.UpdateSubsection(ctx, "education", map[string]any{"enrolled": false}); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := store.Delete(ctx); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, ok, err := store.Read(ctx); err != nil || ok {
			t.Fatalf("expected absent after delete, ok=%v err=%v", ok, err)
		}
		if err := store.Delete(ctx); err != nil {
			t.Fatalf("delete of absent record should succeed: %v", err)
		}
	})

	t.Run("subsection allow-list", func(t *testing.T) {
		store := newStore(t, state.WithSubsections("vehicles", "children"))
		err := store.UpdateSubsection(context.Background(), "pets", map[string]any{})
		if !errors.Is(err, state.ErrUnknownSubsection) {
			t.Fatalf("expected ErrUnknownSubsection, got %v", err)
		}
		if errors.Is(err, state.ErrPersistence) {
			t.Fatalf("allow-list rejection is not a persistence failure")
		}
	})

	t.Run("concurrent updates keep every subsection", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		names := []string{"vehicles", "children", "demographics", "housing", "education", "employment", "lifeGoals"}
		var wg sync.WaitGroup
		errs := make(chan error, len(names))
		for _, name := range names {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				errs <- store.UpdateSubsection(ctx, name, map[string]any{"name": name})
			}(name)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("update: %v", err)
			}
		}
		record, _, err := store.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(record) != len(names) {
			t.Fatalf("expected %d subsections, got %v", len(names), record.Names())
		}
	})
}

// runKeyIsolationContract checks that stores opened with different keys on
// the same backend never see or overwrite each other's record.
func runKeyIsolationContract(t *testing.T, open func(opts ...state.Option) state.Store) {
	t.Helper()
	ctx := context.Background()
	first := open(state.WithKey("application:first"))
	second := open(state.WithKey("application:second"))

	if err := first.UpdateSubsection(ctx, "demographics", map[string]any{"firstName": "Ada"}); err != nil {
		t.Fatalf("update first: %v", err)
	}
	if _, ok, err := second.Read(ctx); err != nil || ok {
		t.Fatalf("second key sees first record: ok=%v err=%v", ok, err)
	}
	if err := second.UpdateSubsection(ctx, "vehicles", map[string]any{"hasVehicles": false}); err != nil {
		t.Fatalf("update second: %v", err)
	}

	record, ok, err := first.Read(ctx)
	if err != nil || !ok {
		t.Fatalf("first record lost: ok=%v err=%v", ok, err)
	}
	if names := record.Names(); len(names) != 1 || names[0] != "demographics" {
		t.Fatalf("unexpected first record: %v", names)
	}

	if err := second.Delete(ctx); err != nil {
		t.Fatalf("delete second: %v", err)
	}
	if _, ok, err := first.Read(ctx); err != nil || !ok {
		t.Fatalf("delete of second removed first: ok=%v err=%v", ok, err)
	}
}
