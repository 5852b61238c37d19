package activity

import (
	"strings"
	"time"
)

// Verbs emitted for history mutations.
const (
	VerbPushed   = "history.pushed"
	VerbReplaced = "history.replaced"
	VerbUndone   = "history.undone"
	VerbRedone   = "history.redone"
	VerbCleared  = "history.cleared"
	VerbEvicted  = "history.evicted"
	VerbRestored = "history.restored"
)

// ObjectTypeHistory is the object type of every history event.
const ObjectTypeHistory = "history"

// HistoryEventInput describes the common fields of history lifecycle events.
type HistoryEventInput struct {
	HistoryID   string
	HistoryName string
	Channel     string
	ActorID     string
	TenantID    string
	RecordID    string
	Trigger     string
	Index       int
	Length      int
	Discarded   int
	Metadata    map[string]any
	OccurredAt  time.Time
}

// BuildPushedEvent describes a record appended after the head.
func BuildPushedEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbPushed, input)
}

// BuildReplacedEvent describes a head record overwritten in place.
func BuildReplacedEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbReplaced, input)
}

// BuildUndoneEvent describes the pointer moving one record back.
func BuildUndoneEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbUndone, input)
}

// BuildRedoneEvent describes the pointer moving one record forward.
func BuildRedoneEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbRedone, input)
}

// BuildClearedEvent describes a re-baseline to the current state.
func BuildClearedEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbCleared, input)
}

// BuildEvictedEvent describes the oldest record dropped for capacity.
func BuildEvictedEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbEvicted, input)
}

// BuildRestoredEvent describes a history loaded from a persisted snapshot.
func BuildRestoredEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbRestored, input)
}

func buildHistoryEvent(verb string, input HistoryEventInput) Event {
	metadata := cloneMap(input.Metadata)
	metadata = ensureMetadata(metadata)
	metadata["index"] = input.Index
	metadata["length"] = input.Length
	if input.HistoryName != "" {
		metadata["history_name"] = input.HistoryName
	}
	if input.RecordID != "" {
		metadata["record_id"] = input.RecordID
	}
	if input.Trigger != "" {
		metadata["trigger"] = input.Trigger
	}
	if input.Discarded > 0 {
		metadata["discarded"] = input.Discarded
	}

	objectID := strings.TrimSpace(input.HistoryID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.HistoryName)
	}
	if objectID == "" {
		objectID = ObjectTypeHistory
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeHistory,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return map[string]any{}
	}
	return metadata
}
