package history

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyExpression indicates a rule was given no expression.
var ErrEmptyExpression = errors.New("history: expression must not be empty")

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine  string
	Expr    string
	Trigger string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("history: %s evaluator %s trigger=%s: %v", e.Engine, describeExpression(e.Expr), e.Trigger, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "history:") {
		return err
	}
	return fmt.Errorf("history: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, trigger string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Trigger == "" {
			evalErr.Trigger = trigger
		}
		return evalErr
	}

	return &EvaluationError{
		Engine:  engine,
		Expr:    expr,
		Trigger: trigger,
		Err:     err,
	}
}
