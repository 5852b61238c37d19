package history

import (
	"fmt"
	"strings"
)

// Decision is the outcome of a strategy check.
type Decision int

const (
	// DecisionPush appends a new record after the head.
	DecisionPush Decision = iota
	// DecisionReplace overwrites the head.
	DecisionReplace
	// DecisionIgnore leaves the history untouched.
	DecisionIgnore
)

func (d Decision) String() string {
	switch d {
	case DecisionPush:
		return "push"
	case DecisionReplace:
		return "replace"
	case DecisionIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// ParseDecision converts "push", "replace" or "ignore" into a Decision.
func ParseDecision(value string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "push":
		return DecisionPush, nil
	case "replace":
		return DecisionReplace, nil
	case "ignore":
		return DecisionIgnore, nil
	default:
		return DecisionIgnore, fmt.Errorf("%w: %q", ErrInvalidDecision, value)
	}
}

// StrategyKind tags the variant a Strategy holds.
type StrategyKind int

const (
	KindPushAlways StrategyKind = iota
	KindReplaceRepetitive
	KindCustom
)

func (k StrategyKind) String() string {
	switch k {
	case KindPushAlways:
		return "push-always"
	case KindReplaceRepetitive:
		return "replace-repetitive"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// CheckInput is what a strategy sees for one firing: the firing trigger and
// payload, and the trigger, payload and value of the head record.
type CheckInput[T any] struct {
	Trigger    TriggerRef
	Payload    any
	CurTrigger TriggerRef
	CurPayload any
	CurRecord  T
}

// CheckFunc is a host-supplied decision predicate.
type CheckFunc[T any] func(CheckInput[T]) (Decision, error)

// Strategy decides whether a firing pushes, replaces or is ignored. The zero
// value is PushAlways.
type Strategy[T any] struct {
	kind  StrategyKind
	check CheckFunc[T]
}

// PushAlways records every firing. It is the strategy of triggers registered
// without one.
func PushAlways[T any]() Strategy[T] {
	return Strategy[T]{kind: KindPushAlways}
}

// ReplaceRepetitive coalesces consecutive firings of the same trigger into
// the head record.
func ReplaceRepetitive[T any]() Strategy[T] {
	return Strategy[T]{kind: KindReplaceRepetitive}
}

// Custom wraps check as a strategy. A nil check behaves like PushAlways but is
// still evaluated while capture is suppressed.
func Custom[T any](check CheckFunc[T]) Strategy[T] {
	return Strategy[T]{kind: KindCustom, check: check}
}

// Kind reports the variant.
func (s Strategy[T]) Kind() StrategyKind {
	return s.kind
}

// Check evaluates the strategy against in.
func (s Strategy[T]) Check(in CheckInput[T]) (Decision, error) {
	switch s.kind {
	case KindPushAlways:
		return DecisionPush, nil
	case KindReplaceRepetitive:
		if in.Trigger.Same(in.CurTrigger) {
			return DecisionReplace, nil
		}
		return DecisionPush, nil
	case KindCustom:
		if s.check == nil {
			return DecisionPush, nil
		}
		decision, err := s.check(in)
		if err != nil {
			return DecisionIgnore, err
		}
		switch decision {
		case DecisionPush, DecisionReplace, DecisionIgnore:
			return decision, nil
		default:
			return DecisionIgnore, fmt.Errorf("%w: %s", ErrInvalidDecision, decision)
		}
	default:
		return DecisionIgnore, fmt.Errorf("%w: kind %s", ErrInvalidDecision, s.kind)
	}
}

// evaluate applies the suppression gate: while a navigation write-back is in
// flight only push-always firings are dropped; every other strategy decides
// on its own.
func evaluate[T any](s Strategy[T], in CheckInput[T], suppressed bool) (Decision, error) {
	if suppressed && s.kind == KindPushAlways {
		return DecisionIgnore, nil
	}
	return s.Check(in)
}
