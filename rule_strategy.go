package history

import (
	"fmt"
	"time"
)

// RuleOption configures a rule strategy.
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	logger   EvaluatorLogger
	metadata map[string]any
}

// WithRuleMetadata exposes metadata to the expression as `metadata`.
func WithRuleMetadata(metadata map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.metadata = copyMetadata(metadata)
	}
}

// RuleStrategy builds a custom strategy whose decision is computed by an
// expression. The expression sees trigger, curTrigger, sameTrigger, payload,
// curPayload, record, now and metadata, and must yield "push", "replace" or
// "ignore" (a bool maps true to push and false to ignore). A nil evaluator
// uses expr.
func RuleStrategy[T any](evaluator Evaluator, expression string, opts ...RuleOption) (Strategy[T], error) {
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	cfg := ruleConfig{logger: noopEvaluatorLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	engine := engineName(evaluator)
	rule, err := evaluator.Compile(expression)
	if err != nil {
		return Strategy[T]{}, wrapEvaluationError(engine, expression, "", err)
	}

	check := func(in CheckInput[T]) (Decision, error) {
		ctx := RuleContext{
			Trigger:     in.Trigger.Name,
			CurTrigger:  in.CurTrigger.Name,
			SameTrigger: in.Trigger.Same(in.CurTrigger),
			Payload:     in.Payload,
			CurPayload:  in.CurPayload,
			Record:      in.CurRecord,
			Metadata:    copyMetadata(cfg.metadata),
		}
		start := time.Now()
		result, err := rule.Evaluate(ctx)
		decision := DecisionIgnore
		if err == nil {
			decision, err = decisionOf(result)
			if err != nil {
				err = wrapEvaluationError(engine, expression, ctx.triggerLabel(), err)
			}
		} else {
			err = wrapEvaluationError(engine, expression, ctx.triggerLabel(), err)
		}
		cfg.logger.LogEvaluation(EvaluatorLogEvent{
			Engine:   engine,
			Expr:     expression,
			Trigger:  ctx.triggerLabel(),
			Decision: decision.String(),
			Duration: time.Since(start),
			Err:      err,
		})
		return decision, err
	}
	return Custom(check), nil
}

func decisionOf(result any) (Decision, error) {
	switch v := result.(type) {
	case Decision:
		switch v {
		case DecisionPush, DecisionReplace, DecisionIgnore:
			return v, nil
		}
		return DecisionIgnore, fmt.Errorf("%w: %s", ErrInvalidDecision, v)
	case string:
		return ParseDecision(v)
	case bool:
		if v {
			return DecisionPush, nil
		}
		return DecisionIgnore, nil
	default:
		return DecisionIgnore, fmt.Errorf("%w: unsupported result %T", ErrInvalidDecision, result)
	}
}

type namedEngine interface {
	engineName() string
}

func engineName(evaluator Evaluator) string {
	if named, ok := evaluator.(namedEngine); ok {
		return named.engineName()
	}
	return "custom"
}

func (e *exprEvaluator) engineName() string { return "expr" }

func (e *celEvaluator) engineName() string { return "cel" }

func copyMetadata(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
