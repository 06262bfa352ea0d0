package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"section": "vehicles"}
	evt := Event{
		Verb:       " intake.section.saved ",
		ActorID:    " actor ",
		ObjectType: " intake.section ",
		ObjectID:   " application/vehicles ",
		Channel:    " intake ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "intake.section.saved" || got.ObjectType != "intake.section" || got.ObjectID != "application/vehicles" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.Channel != "intake" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["section"] = "changed"
	if meta["section"] != "vehicles" {
		t.Fatalf("expected original metadata untouched: %+v", meta)
	}
}

func TestHooksNotifyDropsIncompleteEvents(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{Verb: "x"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected incomplete event to be dropped")
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, _ Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	//nolint:staticcheck // nil context fallback is part of the contract
	err := hooks.Notify(nil, Event{Verb: "intake.record.deleted", ObjectType: "intake.record", ObjectID: "application"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events()) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events()))
	}
}

func TestHooksCloneDropsNil(t *testing.T) {
	if got := (Hooks{nil, nil}).Clone(); got != nil {
		t.Fatalf("expected nil clone, got %v", got)
	}
	if got := (Hooks{nil, &CaptureHook{}}).Clone(); len(got) != 1 {
		t.Fatalf("expected one hook, got %d", len(got))
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := Event{Verb: "intake.section.saved", ObjectType: "intake.section", ObjectID: "application/children"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	var nilEmitter *Emitter
	if err := nilEmitter.Emit(context.Background(), event); err != nil || nilEmitter.Enabled() {
		t.Fatalf("nil emitter should be a no-op")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Events()
	if len(events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(events))
	}
	if events[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %q", events[0].Channel)
	}
}

func TestEmitterPreservesExplicitChannel(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       "intake.record.replaced",
		ObjectType: "intake.record",
		ObjectID:   "application",
		Channel:    "custom",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Events()
	if events[0].Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", events[0].Channel)
	}
	if !events[0].OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", events[0].OccurredAt)
	}
}
