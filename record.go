package history

import (
	"time"

	"github.com/goliatone/go-history/pkg/reactive"
	"github.com/google/uuid"
)

// TriggerRef is the comparable identity of a trigger as stored in records.
type TriggerRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

var (
	// InitialTrigger tags the record a history starts with and the record a
	// Clear re-baselines to.
	InitialTrigger = sentinel("initial")
	// ManualTrigger tags records written through Push and Replace.
	ManualTrigger = sentinel("manual")
	// UnknownTrigger tags restored records whose trigger was not persisted.
	UnknownTrigger = sentinel("unknown")
)

func sentinel(name string) TriggerRef {
	return TriggerRef{
		ID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte("go-history:trigger:"+name)),
		Name: name,
	}
}

// RefOf returns the identity of trigger.
func RefOf(trigger *reactive.Trigger) TriggerRef {
	if trigger == nil {
		return UnknownTrigger
	}
	return TriggerRef{ID: trigger.ID(), Name: trigger.Name()}
}

// IsSentinel reports whether ref is one of the built-in identities.
func (r TriggerRef) IsSentinel() bool {
	return r.ID == InitialTrigger.ID || r.ID == ManualTrigger.ID || r.ID == UnknownTrigger.ID
}

// Same reports whether both refs name the same trigger. Names are labels
// only; identity is the ID.
func (r TriggerRef) Same(other TriggerRef) bool {
	return r.ID == other.ID
}

func (r TriggerRef) String() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID.String()
}

// Record is one captured point in history.
type Record[T any] struct {
	ID         string     `json:"id"`
	Value      T          `json:"value"`
	Trigger    TriggerRef `json:"trigger"`
	Payload    any        `json:"payload,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
}

func newRecord[T any](value T, trigger TriggerRef, payload any) Record[T] {
	return Record[T]{
		ID:         uuid.NewString(),
		Value:      value,
		Trigger:    trigger,
		Payload:    payload,
		CapturedAt: time.Now(),
	}
}
