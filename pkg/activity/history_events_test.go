package activity

import "testing"

func TestBuildHistoryEventsCarryPosition(t *testing.T) {
	input := HistoryEventInput{
		HistoryID:   "h-1",
		HistoryName: "editor",
		RecordID:    "r-9",
		Trigger:     "fooChanged",
		Index:       2,
		Length:      3,
		Discarded:   1,
		Metadata:    map[string]any{"extra": true},
	}

	builders := map[string]func(HistoryEventInput) Event{
		VerbPushed:   BuildPushedEvent,
		VerbReplaced: BuildReplacedEvent,
		VerbUndone:   BuildUndoneEvent,
		VerbRedone:   BuildRedoneEvent,
		VerbCleared:  BuildClearedEvent,
		VerbEvicted:  BuildEvictedEvent,
		VerbRestored: BuildRestoredEvent,
	}
	for verb, build := range builders {
		t.Run(verb, func(t *testing.T) {
			event := build(input)
			if event.Verb != verb || event.ObjectType != ObjectTypeHistory || event.ObjectID != "h-1" {
				t.Fatalf("unexpected event identity: %+v", event)
			}
			if event.Metadata["index"] != 2 || event.Metadata["length"] != 3 {
				t.Fatalf("expected position metadata, got %+v", event.Metadata)
			}
			if event.Metadata["record_id"] != "r-9" || event.Metadata["trigger"] != "fooChanged" {
				t.Fatalf("expected record metadata, got %+v", event.Metadata)
			}
			if event.Metadata["discarded"] != 1 || event.Metadata["extra"] != true {
				t.Fatalf("expected passthrough metadata, got %+v", event.Metadata)
			}
		})
	}
	if input.Metadata["index"] != nil {
		t.Fatalf("expected input metadata untouched")
	}
}

func TestBuildHistoryEventFallsBackToName(t *testing.T) {
	event := BuildPushedEvent(HistoryEventInput{HistoryName: "editor"})
	if event.ObjectID != "editor" {
		t.Fatalf("expected name fallback, got %q", event.ObjectID)
	}
	event = BuildPushedEvent(HistoryEventInput{})
	if event.ObjectID != ObjectTypeHistory {
		t.Fatalf("expected object type fallback, got %q", event.ObjectID)
	}
}
