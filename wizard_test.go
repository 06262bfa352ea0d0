package intake

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-intake/pkg/activity"
	"github.com/goliatone/go-intake/pkg/state"
)

// flakyStore fails writes while failing is set.
type flakyStore struct {
	*state.MemoryStore
	failing bool
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) UpdateSubsection(ctx context.Context, name string, data any) error {
	if s.failing {
		return &state.PersistenceError{Op: "update", Subsection: name, Err: errDiskFull}
	}
	return s.MemoryStore.UpdateSubsection(ctx, name, data)
}

func newTestWizard(t *testing.T, store state.Store, opts ...Option) *Wizard {
	t.Helper()
	wizard, err := NewWizard(context.Background(), testRegistry(t), store, opts...)
	if err != nil {
		t.Fatalf("NewWizard: %v", err)
	}
	return wizard
}

func TestNavigationIsClampedAndEndsInReview(t *testing.T) {
	ctx := context.Background()
	wizard := newTestWizard(t, state.NewMemoryStore())

	if got := wizard.Current(); got != "demographics" {
		t.Fatalf("expected to start on demographics, got %s", got)
	}
	if err := wizard.Previous(ctx); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if got := wizard.Current(); got != "demographics" {
		t.Fatalf("Previous on the first section must stay put, got %s", got)
	}

	for _, want := range []string{"vehicles", "children", ReviewID, ReviewID} {
		if err := wizard.Next(ctx); err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got := wizard.Current(); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
	if _, err := wizard.Validate(); !errors.Is(err, ErrNoActiveSection) {
		t.Fatalf("expected ErrNoActiveSection at review, got %v", err)
	}
	if err := wizard.Previous(ctx); err != nil || wizard.Current() != "children" {
		t.Fatalf("Previous from review should land on the last section, got %s (%v)", wizard.Current(), err)
	}

	if err := wizard.Select(ctx, "demographics"); err != nil || wizard.Current() != "demographics" {
		t.Fatalf("Select: %v", err)
	}
	if err := wizard.Select(ctx, "housing"); !errors.Is(err, ErrUnknownSection) {
		t.Fatalf("expected ErrUnknownSection, got %v", err)
	}
}

func TestFreeNavigationIgnoresValidity(t *testing.T) {
	ctx := context.Background()
	wizard := newTestWizard(t, state.NewMemoryStore())
	if err := wizard.SetField("fullName", "R2-D2"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := wizard.Next(ctx); err != nil {
		t.Fatalf("free navigation should not block: %v", err)
	}
}

func TestRequireValidBlocksForwardMovesOnly(t *testing.T) {
	ctx := context.Background()
	wizard := newTestWizard(t, state.NewMemoryStore(), WithNavigationPolicy(NavigationRequireValid))
	if err := wizard.Select(ctx, "vehicles"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	// The initial blank vehicle is incomplete.
	if err := wizard.Next(ctx); !errors.Is(err, ErrNavigationBlocked) {
		t.Fatalf("expected ErrNavigationBlocked, got %v", err)
	}
	if err := wizard.Select(ctx, ReviewID); !errors.Is(err, ErrNavigationBlocked) {
		t.Fatalf("expected jump forward to be blocked, got %v", err)
	}
	if got := wizard.Current(); got != "vehicles" {
		t.Fatalf("blocked move changed position to %s", got)
	}
	if err := wizard.Previous(ctx); err != nil {
		t.Fatalf("backward moves are never gated: %v", err)
	}
}

func TestSaveRejectsInvalidSectionLocally(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	capture := &activity.CaptureHook{}
	wizard := newTestWizard(t, store, WithActivityHooks(activity.Hooks{capture}))

	if err := wizard.Select(ctx, "vehicles"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	outcome, err := wizard.Save(ctx)
	if err != nil {
		t.Fatalf("invalid save must not return an error: %v", err)
	}
	if outcome.Saved || outcome.Result.Valid || len(outcome.Result.Errors()) == 0 {
		t.Fatalf("expected a rejected outcome with field errors, got %+v", outcome)
	}
	if _, ok, _ := store.Read(ctx); ok {
		t.Fatalf("rejected save must not touch the store")
	}
	events := capture.Events()
	if len(events) != 1 || events[0].Verb != activity.VerbSectionRejected {
		t.Fatalf("expected one rejected event, got %+v", events)
	}
}

func TestSaveScenarioPreservesOtherSubsections(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	capture := &activity.CaptureHook{}
	wizard := newTestWizard(t, store, WithActivityHooks(activity.Hooks{capture}), WithActor("actor-1", "tenant-1"))

	if err := wizard.SetField("fullName", "Jane Doe"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if outcome, err := wizard.Save(ctx); err != nil || !outcome.Saved {
		t.Fatalf("Save demographics: %+v, %v", outcome, err)
	}

	if err := wizard.Select(ctx, "children"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	id, ok, err := wizard.AppendEntry("children", map[string]any{"name": "Sam"})
	if err != nil || !ok {
		t.Fatalf("AppendEntry: %v %v", ok, err)
	}
	if err := wizard.SetEntryField("children", id, "age", 5); err != nil {
		t.Fatalf("SetEntryField: %v", err)
	}
	if outcome, err := wizard.Save(ctx); err != nil || !outcome.Saved {
		t.Fatalf("Save children: %+v, %v", outcome, err)
	}

	record, ok, err := wizard.Record(ctx)
	if err != nil || !ok {
		t.Fatalf("Record: %v %v", ok, err)
	}
	want := state.Record{
		"demographics": map[string]any{"fullName": "Jane Doe", "maritalStatus": "single"},
		"children":     []any{map[string]any{"name": "Sam", "age": 5}},
	}
	if !reflect.DeepEqual(record, want) {
		t.Fatalf("record = %#v, want %#v", record, want)
	}

	events := capture.Events()
	if len(events) != 2 || events[1].Verb != activity.VerbSectionSaved {
		t.Fatalf("expected two saved events, got %+v", events)
	}
	if events[1].ObjectID != state.RecordKey+"/children" || events[1].ActorID != "actor-1" {
		t.Fatalf("unexpected event identity %+v", events[1])
	}
}

func TestPersistenceFailureKeepsWorkingState(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: state.NewMemoryStore(), failing: true}
	wizard := newTestWizard(t, store)

	if err := wizard.SetField("fullName", "Jane Doe"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	_, err := wizard.Save(ctx)
	if !errors.Is(err, state.ErrPersistence) || !errors.Is(err, errDiskFull) {
		t.Fatalf("expected a persistence failure, got %v", err)
	}
	if got := wizard.View().Values["fullName"]; got != "Jane Doe" {
		t.Fatalf("unsaved edits lost after failure: %v", got)
	}

	store.failing = false
	outcome, err := wizard.Save(ctx)
	if err != nil || !outcome.Saved {
		t.Fatalf("retry should succeed: %+v %v", outcome, err)
	}
}

func TestNavigationHydratesFromStore(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	if err := store.UpdateSubsection(ctx, "vehicles", map[string]any{
		"hasVehicles": true,
		"vehicles":    []any{map[string]any{"make": "Volvo", "model": "240", "year": "1988"}},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	wizard := newTestWizard(t, store)
	if err := wizard.Select(ctx, "vehicles"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	view := wizard.View()
	if len(view.Collections["vehicles"]) != 1 || view.Collections["vehicles"][0].Values["make"] != "Volvo" {
		t.Fatalf("expected stored vehicle, got %+v", view.Collections)
	}
	if !view.Valid {
		t.Fatalf("stored section should validate: %v", view.Errors)
	}

	// Unsaved edits are discarded when leaving the section.
	if err := wizard.SetField("hasVehicles", false); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := wizard.Previous(ctx); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if err := wizard.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := wizard.View().Values["hasVehicles"]; got != true {
		t.Fatalf("expected stored hasVehicles after re-entry, got %v", got)
	}
}

func TestResetAndReload(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	wizard := newTestWizard(t, store)

	_ = wizard.SetField("fullName", "Jane Doe")
	if _, err := wizard.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_ = wizard.SetField("fullName", "Someone Else")
	if err := wizard.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := wizard.View().Values["fullName"]; got != "Jane Doe" {
		t.Fatalf("Reload should restore the stored value, got %v", got)
	}
	if err := wizard.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := wizard.View().Values["fullName"]; got != nil {
		t.Fatalf("Reset should restore defaults, got %v", got)
	}
	if _, ok, _ := store.Read(ctx); !ok {
		t.Fatalf("Reset must not touch the store")
	}
}

func TestDeleteRecordAndReview(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	capture := &activity.CaptureHook{}
	wizard := newTestWizard(t, store, WithActivityHooks(activity.Hooks{capture}))

	_ = wizard.SetField("fullName", "Jane Doe")
	if _, err := wizard.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.UpdateSubsection(ctx, "children", []any{map[string]any{"age": 40}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	statuses, err := wizard.Review(ctx)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	byID := map[string]SectionStatus{}
	for _, status := range statuses {
		byID[status.ID] = status
	}
	if s := byID["demographics"]; !s.Saved || !s.Valid {
		t.Fatalf("demographics status %+v", s)
	}
	if s := byID["vehicles"]; s.Saved || s.Valid {
		t.Fatalf("vehicles status %+v", s)
	}
	if s := byID["children"]; !s.Saved || s.Valid || len(s.Errors) != 2 {
		t.Fatalf("children stored payload should fail name and age, got %+v", s)
	}

	if err := wizard.DeleteRecord(ctx); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if _, ok, err := wizard.Record(ctx); ok || err != nil {
		t.Fatalf("record should be absent after delete: %v %v", ok, err)
	}
	if got := wizard.View().Values["fullName"]; got != nil {
		t.Fatalf("delete should reset the active section, got %v", got)
	}
	events := capture.Events()
	if last := events[len(events)-1]; last.Verb != activity.VerbRecordDeleted || last.ObjectID != state.RecordKey {
		t.Fatalf("unexpected delete event %+v", last)
	}
}

func TestReplaceRecordRejectsUnknownSections(t *testing.T) {
	ctx := context.Background()
	wizard := newTestWizard(t, state.NewMemoryStore())
	err := wizard.ReplaceRecord(ctx, state.Record{"pets": []any{}})
	if !errors.Is(err, ErrUnknownSection) {
		t.Fatalf("expected ErrUnknownSection, got %v", err)
	}
	if err := wizard.ReplaceRecord(ctx, state.Record{"demographics": map[string]any{"fullName": "Ada"}}); err != nil {
		t.Fatalf("ReplaceRecord: %v", err)
	}
	if got := wizard.View().Values["fullName"]; got != "Ada" {
		t.Fatalf("active section should be rehydrated, got %v", got)
	}
}

func TestCollectionCommandsThroughWizard(t *testing.T) {
	ctx := context.Background()
	wizard := newTestWizard(t, state.NewMemoryStore())
	if err := wizard.Select(ctx, "children"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, ok, err := wizard.AppendEntry("children", nil); err != nil || !ok {
			t.Fatalf("append %d: %v %v", i, ok, err)
		}
	}
	if _, ok, err := wizard.AppendEntry("children", nil); err != nil || ok {
		t.Fatalf("sixth append should be a silent no-op: %v %v", ok, err)
	}
	view := wizard.View()
	if !view.Full["children"] || len(view.Collections["children"]) != 5 {
		t.Fatalf("unexpected view %+v", view.Collections)
	}
	if removed, err := wizard.RemoveEntry("children", "missing"); err != nil || removed {
		t.Fatalf("unknown id removal should be a no-op: %v %v", removed, err)
	}
	if _, _, err := wizard.AppendEntry("pets", nil); !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
	if err := wizard.SetField("nope", 1); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestStoredListRestoresOnSelect(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	if err := store.UpdateSubsection(ctx, "children", []any{map[string]any{"name": "Sam", "age": 5}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	wizard := newTestWizard(t, store)
	if err := wizard.Select(ctx, "children"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	view := wizard.View()
	if entries := view.Collections["children"]; len(entries) != 1 || entries[0].Values["name"] != "Sam" {
		t.Fatalf("stored entries were not restored: %+v", view.Collections)
	}

	outcome, err := wizard.Save(ctx)
	if err != nil || !outcome.Saved {
		t.Fatalf("Save: %+v, %v", outcome, err)
	}
	record, _, _ := wizard.Record(ctx)
	if list, ok := record["children"].([]any); !ok || len(list) != 1 {
		t.Fatalf("resave should keep the stored entry, got %#v", record["children"])
	}
}

func TestMalformedSlotIsReportedNotReset(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	if err := store.UpdateSubsection(ctx, "children", "oops"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	wizard := newTestWizard(t, store)

	if err := wizard.Select(ctx, "children"); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if got := wizard.Current(); got != "demographics" {
		t.Fatalf("failed hydration must keep the position, got %s", got)
	}

	statuses, err := wizard.Review(ctx)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	for _, status := range statuses {
		if status.ID == "children" && (!status.Saved || status.Valid || status.Errors["children"] == "") {
			t.Fatalf("malformed children slot reported as %+v", status)
		}
	}
	if record, _, _ := store.Read(ctx); record["children"] != "oops" {
		t.Fatalf("stored slot must be left untouched, got %#v", record["children"])
	}
}
