package usersink_test

import (
	"context"
	"testing"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-intake/pkg/activity"
	"github.com/goliatone/go-intake/pkg/activity/usersink"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsSectionSaved(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	tenantID := uuid.New()

	event := activity.BuildSectionSavedEvent(activity.RecordEventInput{
		ActorID:    actorID.String(),
		TenantID:   tenantID.String(),
		RecordKey:  "application",
		Section:    "children",
		Channel:    "intake",
		Fields:     []string{"children"},
		Errors:     map[string]string{"children": "x"},
		OccurredAt: now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.TenantID != tenantID {
		t.Fatalf("unexpected identity: %+v", record)
	}
	if record.UserID != uuid.Nil {
		t.Fatalf("expected nil user id, got %s", record.UserID)
	}
	if record.Verb != activity.VerbSectionSaved || record.ObjectType != activity.ObjectSection || record.ObjectID != "application/children" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["section"] != "children" {
		t.Fatalf("expected section metadata, got %v", record.Data["section"])
	}
	fields, ok := record.Data["fields"].([]string)
	if !ok || len(fields) != 1 || fields[0] != "children" {
		t.Fatalf("expected fields metadata, got %v", record.Data["fields"])
	}
	errs, ok := record.Data["errors"].(map[string]any)
	if !ok || errs["children"] != "x" {
		t.Fatalf("expected flattened errors, got %v", record.Data["errors"])
	}
}

func TestHookNotifyFallsBackToDefaultActor(t *testing.T) {
	sink := &recordingSink{}
	actor := uuid.New()
	hook := usersink.Hook{Sink: sink, ActorID: actor}

	event := activity.BuildRecordDeletedEvent(activity.RecordEventInput{RecordKey: "application"})
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sink.records[0].ActorID != actor {
		t.Fatalf("expected default actor, got %s", sink.records[0].ActorID)
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}

func TestHookNotifySkipsIncompleteEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})
	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}

	if err := (usersink.Hook{}).Notify(context.Background(), activity.Event{Verb: "v", ObjectType: "o", ObjectID: "1"}); err != nil {
		t.Fatalf("nil sink should be a no-op: %v", err)
	}
}
