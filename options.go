package history

import (
	"log/slog"

	"github.com/goliatone/go-history/pkg/activity"
	"github.com/goliatone/go-history/pkg/reactive"
	"github.com/google/uuid"
)

// Option configures a History at construction.
type Option[T any] func(*config[T])

type strategyBinding[T any] struct {
	trigger  *reactive.Trigger
	strategy Strategy[T]
}

type config[T any] struct {
	name          string
	clock         []*reactive.Trigger
	clockSet      bool
	strategies    map[uuid.UUID]strategyBinding[T]
	maxLength     int
	maxLengthSet  bool
	serialize     bool
	cloner        func(T) T
	logger        *slog.Logger
	activityHooks activity.Hooks
	activity      activity.Config
}

func applyOptions[T any](opts []Option[T]) config[T] {
	cfg := config[T]{
		strategies: make(map[uuid.UUID]strategyBinding[T]),
		serialize:  true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithName labels the history in logs and activity events.
func WithName[T any](name string) Option[T] {
	return func(cfg *config[T]) {
		cfg.name = name
	}
}

// WithClock replaces the default clock (one trigger per source cell) with an
// explicit set of triggers to watch.
func WithClock[T any](triggers ...*reactive.Trigger) Option[T] {
	return func(cfg *config[T]) {
		cfg.clockSet = true
		cfg.clock = append(cfg.clock[:0:0], triggers...)
	}
}

// WithStrategy binds strategy to trigger. The trigger must be on the clock.
func WithStrategy[T any](trigger *reactive.Trigger, strategy Strategy[T]) Option[T] {
	return func(cfg *config[T]) {
		if trigger == nil {
			return
		}
		cfg.strategies[trigger.ID()] = strategyBinding[T]{trigger: trigger, strategy: strategy}
	}
}

// WithMaxLength caps the number of records. n must be positive.
func WithMaxLength[T any](n int) Option[T] {
	return func(cfg *config[T]) {
		cfg.maxLength = n
		cfg.maxLengthSet = true
	}
}

// WithSerialize controls whether snapshots carry record triggers and payloads.
// Values are always included.
func WithSerialize[T any](enabled bool) Option[T] {
	return func(cfg *config[T]) {
		cfg.serialize = enabled
	}
}

// WithCloner sets the copy applied to every value entering the history.
func WithCloner[T any](cloner func(T) T) Option[T] {
	return func(cfg *config[T]) {
		cfg.cloner = cloner
	}
}

// WithDeepCopy clones captured values reflectively so records never share
// maps, slices or pointers with the source cells.
func WithDeepCopy[T any]() Option[T] {
	return func(cfg *config[T]) {
		cfg.cloner = DeepClone[T]
	}
}

// WithLogger routes diagnostics to logger. The default discards them.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(cfg *config[T]) {
		cfg.logger = logger
	}
}

// WithActivityHooks registers activity hooks invoked after history mutations.
func WithActivityHooks[T any](hooks ...activity.ActivityHook) Option[T] {
	return func(cfg *config[T]) {
		cfg.activityHooks = append(cfg.activityHooks, hooks...)
		cfg.activity.Enabled = true
	}
}

// WithActivityActor sets the actor and tenant stamped on activity events.
func WithActivityActor[T any](actorID, tenantID string) Option[T] {
	return func(cfg *config[T]) {
		cfg.activity.ActorID = actorID
		cfg.activity.TenantID = tenantID
	}
}

// WithActivityChannel overrides the channel stamped on activity events.
func WithActivityChannel[T any](channel string) Option[T] {
	return func(cfg *config[T]) {
		cfg.activity.Channel = channel
	}
}
