package activity

import (
	"sort"
	"strings"
	"time"
)

// Verbs emitted by the wizard.
const (
	VerbSectionSaved    = "intake.section.saved"
	VerbSectionRejected = "intake.section.rejected"
	VerbRecordReplaced  = "intake.record.replaced"
	VerbRecordDeleted   = "intake.record.deleted"
)

// Object types used on intake events.
const (
	ObjectSection = "intake.section"
	ObjectRecord  = "intake.record"
)

// RecordEventInput describes the common fields for record lifecycle events.
type RecordEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	RecordKey  string
	Section    string
	Channel    string
	Metadata   map[string]any
	Fields     []string
	Errors     map[string]string
	OccurredAt time.Time
}

// BuildSectionSavedEvent reports a validated section written to the store.
// Fields lists the payload keys that were persisted.
func BuildSectionSavedEvent(input RecordEventInput) Event {
	return buildRecordEvent(VerbSectionSaved, ObjectSection, input)
}

// BuildSectionRejectedEvent reports a save refused by validation.
func BuildSectionRejectedEvent(input RecordEventInput) Event {
	return buildRecordEvent(VerbSectionRejected, ObjectSection, input)
}

func BuildRecordReplacedEvent(input RecordEventInput) Event {
	return buildRecordEvent(VerbRecordReplaced, ObjectRecord, input)
}

func BuildRecordDeletedEvent(input RecordEventInput) Event {
	return buildRecordEvent(VerbRecordDeleted, ObjectRecord, input)
}

func buildRecordEvent(verb, objectType string, input RecordEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	if key := strings.TrimSpace(input.RecordKey); key != "" {
		set("record_key", key)
	}
	if section := strings.TrimSpace(input.Section); section != "" {
		set("section", section)
	}
	if len(input.Fields) > 0 {
		fields := append([]string{}, input.Fields...)
		sort.Strings(fields)
		set("fields", fields)
	}
	if len(input.Errors) > 0 {
		errs := make(map[string]string, len(input.Errors))
		for path, msg := range input.Errors {
			errs[path] = msg
		}
		set("errors", errs)
	}

	objectID := strings.TrimSpace(input.RecordKey)
	if objectType == ObjectSection && strings.TrimSpace(input.Section) != "" {
		if objectID != "" {
			objectID += "/"
		}
		objectID += strings.TrimSpace(input.Section)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
