package history

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/goliatone/go-history/pkg/reactive"
)

const coalesceSamePayload = `sameTrigger && payload == curPayload ? "replace" : "push"`

func bazHistory(t *testing.T, strategy func(*reactive.Trigger) Strategy[map[string]any]) (*reactive.Trigger, *History[map[string]any]) {
	t.Helper()
	g := reactive.NewGraph()
	baz := reactive.NewCell(g, "baz", []int{0, 0, 0})
	bazInc := reactive.NewTrigger(g, "bazInc")
	bazInc.Watch(func(payload any) error {
		idx := payload.(int)
		return baz.Update(func(prev []int) []int {
			next := append([]int(nil), prev...)
			next[idx]++
			return next
		})
	})
	projection, err := Fields(map[string]reactive.Source{"baz": baz})
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	h, err := New[map[string]any](projection,
		WithClock[map[string]any](bazInc),
		WithStrategy(bazInc, strategy(bazInc)),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return bazInc, h
}

func TestRuleStrategyEngines(t *testing.T) {
	engines := map[string]Evaluator{
		"expr":        NewExprEvaluator(),
		"expr-cached": NewExprEvaluator(ExprWithProgramCache(NewMemoryProgramCache())),
		"cel":         NewCELEvaluator(),
		"cel-cached":  NewCELEvaluator(CELWithProgramCache(NewMemoryProgramCache())),
	}
	want := []map[string]any{
		{"baz": []int{0, 0, 0}},
		{"baz": []int{2, 0, 0}},
		{"baz": []int{2, 1, 0}},
		{"baz": []int{2, 1, 1}},
		{"baz": []int{3, 1, 1}},
	}
	for name, evaluator := range engines {
		t.Run(name, func(t *testing.T) {
			var events []EvaluatorLogEvent
			logger := EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
				events = append(events, event)
			})
			bazInc, h := bazHistory(t, func(*reactive.Trigger) Strategy[map[string]any] {
				strategy, err := RuleStrategy[map[string]any](evaluator, coalesceSamePayload, WithEvaluatorLogger(logger))
				if err != nil {
					t.Fatalf("rule strategy: %v", err)
				}
				return strategy
			})
			for _, idx := range []int{0, 0, 1, 2, 0} {
				fire(t, bazInc, idx)
			}
			if got := h.Values(); !reflect.DeepEqual(got, want) {
				t.Fatalf("unexpected history %v", got)
			}
			if len(events) != 5 {
				t.Fatalf("expected 5 evaluation log events, got %d", len(events))
			}
			if events[1].Decision != "replace" || events[1].Trigger != "bazInc" || events[1].Err != nil {
				t.Fatalf("unexpected log event %+v", events[1])
			}
		})
	}
}

func TestRuleStrategyReadsRecordAndMetadata(t *testing.T) {
	strategy, err := RuleStrategy[map[string]any](nil,
		`record.count >= metadata.limit ? "ignore" : "push"`,
		WithRuleMetadata(map[string]any{"limit": 2}),
	)
	if err != nil {
		t.Fatalf("rule strategy: %v", err)
	}
	in := CheckInput[map[string]any]{CurRecord: map[string]any{"count": 1}}
	if got, err := strategy.Check(in); err != nil || got != DecisionPush {
		t.Fatalf("expected push, got %v %v", got, err)
	}
	in.CurRecord = map[string]any{"count": 2}
	if got, err := strategy.Check(in); err != nil || got != DecisionIgnore {
		t.Fatalf("expected ignore, got %v %v", got, err)
	}
}

func TestRuleStrategyBooleanResult(t *testing.T) {
	strategy, err := RuleStrategy[int](NewCELEvaluator(), `trigger != "noise"`)
	if err != nil {
		t.Fatalf("rule strategy: %v", err)
	}
	noise := CheckInput[int]{Trigger: TriggerRef{Name: "noise"}}
	if got, _ := strategy.Check(noise); got != DecisionIgnore {
		t.Fatalf("expected false to ignore, got %s", got)
	}
	signal := CheckInput[int]{Trigger: TriggerRef{Name: "signal"}}
	if got, _ := strategy.Check(signal); got != DecisionPush {
		t.Fatalf("expected true to push, got %s", got)
	}
}

func TestRuleStrategyErrors(t *testing.T) {
	if _, err := RuleStrategy[int](NewExprEvaluator(), ""); !errors.Is(err, ErrEmptyExpression) {
		t.Fatalf("expected ErrEmptyExpression, got %v", err)
	}

	_, err := RuleStrategy[int](NewCELEvaluator(), `unknownVar == 1`)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != "cel" {
		t.Fatalf("expected cel EvaluationError, got %v", err)
	}

	strategy, err := RuleStrategy[int](NewExprEvaluator(), `"sometimes"`)
	if err != nil {
		t.Fatalf("rule strategy: %v", err)
	}
	_, err = strategy.Check(CheckInput[int]{Trigger: TriggerRef{Name: "t"}})
	if !errors.Is(err, ErrInvalidDecision) || !errors.As(err, &evalErr) || evalErr.Trigger != "t" {
		t.Fatalf("expected invalid decision evaluation error, got %v", err)
	}
}

func TestRuleStrategyFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("decide", func(args ...any) (any, error) {
		if len(args) == 1 && args[0] == "bazInc" {
			return "replace", nil
		}
		return "push", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("decide", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("duplicate registration must fail")
	}

	exprStrategy, err := RuleStrategy[int](NewExprEvaluator(ExprWithFunctionRegistry(registry)), `decide(trigger)`)
	if err != nil {
		t.Fatalf("expr rule: %v", err)
	}
	celStrategy, err := RuleStrategy[int](NewCELEvaluator(CELWithFunctionRegistry(registry)), `call("decide", [trigger])`)
	if err != nil {
		t.Fatalf("cel rule: %v", err)
	}
	in := CheckInput[int]{Trigger: TriggerRef{Name: "bazInc"}}
	for name, strategy := range map[string]Strategy[int]{"expr": exprStrategy, "cel": celStrategy} {
		got, err := strategy.Check(in)
		if err != nil || got != DecisionReplace {
			t.Fatalf("%s: expected replace, got %v %v", name, got, err)
		}
	}
	if names := registry.Names(); !reflect.DeepEqual(names, []string{"decide"}) {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestProgramCacheReusesCompiledPrograms(t *testing.T) {
	cache := NewMemoryProgramCache()
	evaluator := NewExprEvaluator(ExprWithProgramCache(cache))
	for i := 0; i < 3; i++ {
		if _, err := evaluator.Compile(coalesceSamePayload); err != nil {
			t.Fatalf("compile: %v", err)
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one cached program, got %d", cache.Len())
	}
	result, err := evaluator.Evaluate(RuleContext{Trigger: "a", SameTrigger: true, Payload: 1, CurPayload: 1}, coalesceSamePayload)
	if err != nil || result != "replace" {
		t.Fatalf("unexpected result %v %v", result, err)
	}
}

func TestJSEvaluatorUnavailableWithoutBuildTag(t *testing.T) {
	if jsEvaluatorAvailable() {
		t.Skip("built with js_eval")
	}
	if NewJSEvaluator() != nil {
		t.Fatalf("expected nil evaluator without js_eval")
	}
	_, err := LoadConfig([]byte("strategies:\n  x: {kind: rule, engine: js, expr: 'true'}\n"))
	if err == nil || !strings.Contains(err.Error(), "js_eval") {
		t.Fatalf("expected js_eval configuration error, got %v", err)
	}
}
