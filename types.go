package history

import "time"

// RuleContext carries the inputs a rule strategy sees for one firing.
type RuleContext struct {
	Trigger     string
	CurTrigger  string
	SameTrigger bool
	Payload     any
	CurPayload  any
	Record      any
	Now         *time.Time
	Metadata    map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

// triggerLabel names the firing trigger in evaluation errors and logs.
func (ctx RuleContext) triggerLabel() string {
	if ctx.Trigger != "" {
		return ctx.Trigger
	}
	return "unknown"
}

// binding is the variable set shared by every engine.
func (ctx RuleContext) binding() map[string]any {
	return map[string]any{
		"trigger":     ctx.Trigger,
		"curTrigger":  ctx.CurTrigger,
		"sameTrigger": ctx.SameTrigger,
		"payload":     ctx.Payload,
		"curPayload":  ctx.CurPayload,
		"record":      ctx.Record,
		"now":         ctx.timestamp(),
		"metadata":    ctx.Metadata,
	}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}
