package intake

import (
	"errors"
	"fmt"
	"testing"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}
}

func vehicleCollection(t *testing.T) *Collection {
	t.Helper()
	coll, err := NewCollection(CollectionDescriptor{
		Name: "vehicles",
		Fields: []FieldDescriptor{
			{Name: "make", Required: true},
			{Name: "color", Default: "unknown"},
		},
	}, sequentialIDs())
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	return coll
}

func TestAppendStopsAtMaximum(t *testing.T) {
	coll := vehicleCollection(t)
	if coll.Max() != DefaultMaxEntries {
		t.Fatalf("expected default max %d, got %d", DefaultMaxEntries, coll.Max())
	}
	for i := 0; i < DefaultMaxEntries+3; i++ {
		_, ok := coll.Append(nil)
		if want := i < DefaultMaxEntries; ok != want {
			t.Fatalf("append %d: ok = %v, want %v", i, ok, want)
		}
		if coll.Len() > DefaultMaxEntries {
			t.Fatalf("collection grew past its maximum: %d", coll.Len())
		}
	}
	if !coll.Full() {
		t.Fatalf("expected collection to report full")
	}
}

func TestAppendMergesDefaults(t *testing.T) {
	coll := vehicleCollection(t)
	id, ok := coll.Append(map[string]any{"make": "Volvo"})
	if !ok {
		t.Fatalf("append rejected")
	}
	entry, found := coll.Entry(id)
	if !found {
		t.Fatalf("entry %s not found", id)
	}
	if entry.Values["make"] != "Volvo" || entry.Values["color"] != "unknown" {
		t.Fatalf("unexpected entry values %v", entry.Values)
	}
}

func TestRemoveKeepsIdentityAndOrder(t *testing.T) {
	coll := vehicleCollection(t)
	first, _ := coll.Append(map[string]any{"make": "A"})
	second, _ := coll.Append(map[string]any{"make": "B"})
	third, _ := coll.Append(map[string]any{"make": "C"})

	if !coll.Remove(second) {
		t.Fatalf("expected remove to report a deletion")
	}
	if coll.Remove(second) || coll.Remove("nope") {
		t.Fatalf("removing a missing id must be a no-op")
	}
	if err := coll.Set(third, "make", "C2"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	entries := coll.Reindex()
	if len(entries) != 2 || entries[0].ID != first || entries[1].ID != third {
		t.Fatalf("unexpected order %+v", entries)
	}
	if entries[1].Values["make"] != "C2" {
		t.Fatalf("edit landed on the wrong entry: %+v", entries)
	}

	entries[0].Values["make"] = "mutated"
	if again, _ := coll.Entry(first); again.Values["make"] != "A" {
		t.Fatalf("Reindex must return detached values")
	}
}

func TestSetRejectsUnknownTargets(t *testing.T) {
	coll := vehicleCollection(t)
	id, _ := coll.Append(nil)
	if err := coll.Set("missing", "make", "x"); !errors.Is(err, ErrUnknownEntry) {
		t.Fatalf("expected ErrUnknownEntry, got %v", err)
	}
	if err := coll.Set(id, "wheels", 4); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestClearEmptiesCollection(t *testing.T) {
	coll := vehicleCollection(t)
	coll.Append(nil)
	coll.Append(nil)
	coll.Clear()
	if coll.Len() != 0 || len(coll.Reindex()) != 0 {
		t.Fatalf("expected empty collection after Clear")
	}
}
