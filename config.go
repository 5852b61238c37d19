package history

import (
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-history/pkg/reactive"
	"gopkg.in/yaml.v3"
)

// Config is the declarative form of the construction options.
type Config struct {
	Name       string                    `yaml:"name,omitempty"`
	MaxLength  *int                      `yaml:"max_length,omitempty"` // omitted = unbounded
	Serialize  *bool                     `yaml:"serialize,omitempty"`  // default true
	Clock      []string                  `yaml:"clock,omitempty"`      // omitted = one trigger per source cell
	Strategies map[string]StrategyConfig `yaml:"strategies,omitempty"`
	Activity   *ActivityConfig           `yaml:"activity,omitempty"`
}

// StrategyConfig selects the strategy bound to one trigger.
type StrategyConfig struct {
	Kind     string         `yaml:"kind"`             // push-always, replace-repetitive or rule
	Engine   string         `yaml:"engine,omitempty"` // expr (default), cel or js
	Expr     string         `yaml:"expr,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// ActivityConfig sets the defaults stamped on activity events.
type ActivityConfig struct {
	Channel  string `yaml:"channel,omitempty"`
	ActorID  string `yaml:"actor_id,omitempty"`
	TenantID string `yaml:"tenant_id,omitempty"`
}

const (
	strategyKindPushAlways        = "push-always"
	strategyKindReplaceRepetitive = "replace-repetitive"
	strategyKindRule              = "rule"
)

// LoadConfig parses and validates a YAML document.
func LoadConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("history: failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("history: invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadConfigFile reads and validates the YAML file at path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("history: failed to read config: %w", err)
	}
	return LoadConfig(data)
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if c.MaxLength != nil && *c.MaxLength <= 0 {
		return fmt.Errorf("%w: max_length %d", ErrInvalidMaxLength, *c.MaxLength)
	}
	seen := make(map[string]bool, len(c.Clock))
	for _, name := range c.Clock {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("clock entries must not be empty")
		}
		if seen[name] {
			return fmt.Errorf("clock entry %q is duplicated", name)
		}
		seen[name] = true
	}
	for name, strategy := range c.Strategies {
		if len(c.Clock) > 0 && !seen[name] {
			return fmt.Errorf("%w: %q is not on the clock", ErrUnknownTrigger, name)
		}
		if err := strategy.Validate(name); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single strategy entry.
func (s StrategyConfig) Validate(trigger string) error {
	switch s.kind() {
	case strategyKindPushAlways, strategyKindReplaceRepetitive:
		if s.Expr != "" {
			return fmt.Errorf("strategy for %q: kind %s takes no expr", trigger, s.kind())
		}
		return nil
	case strategyKindRule:
		if strings.TrimSpace(s.Expr) == "" {
			return fmt.Errorf("strategy for %q: %w", trigger, ErrEmptyExpression)
		}
		switch s.engine() {
		case "expr", "cel":
			return nil
		case "js":
			if !jsEvaluatorAvailable() {
				return fmt.Errorf("strategy for %q: js engine requires the js_eval build tag", trigger)
			}
			return nil
		default:
			return fmt.Errorf("strategy for %q: unknown engine %q (valid: expr, cel, js)", trigger, s.Engine)
		}
	default:
		return fmt.Errorf("strategy for %q: unknown kind %q (valid: push-always, replace-repetitive, rule)", trigger, s.Kind)
	}
}

func (s StrategyConfig) kind() string {
	kind := strings.ToLower(strings.TrimSpace(s.Kind))
	if kind == "" {
		return strategyKindPushAlways
	}
	return kind
}

func (s StrategyConfig) engine() string {
	engine := strings.ToLower(strings.TrimSpace(s.Engine))
	if engine == "" {
		return "expr"
	}
	return engine
}

// BuildOptions turns cfg into construction options. triggers resolves the
// names used by the clock and strategies. Rule strategies share one program
// cache and, when given, one function registry.
func BuildOptions[T any](cfg *Config, triggers map[string]*reactive.Trigger, functions *FunctionRegistry) ([]Option[T], error) {
	if cfg == nil {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	resolve := func(name string) (*reactive.Trigger, error) {
		trigger, ok := triggers[name]
		if !ok || trigger == nil {
			return nil, fmt.Errorf("%w: %q is not a known trigger", ErrUnknownTrigger, name)
		}
		return trigger, nil
	}

	var opts []Option[T]
	if cfg.Name != "" {
		opts = append(opts, WithName[T](cfg.Name))
	}
	if cfg.MaxLength != nil {
		opts = append(opts, WithMaxLength[T](*cfg.MaxLength))
	}
	if cfg.Serialize != nil {
		opts = append(opts, WithSerialize[T](*cfg.Serialize))
	}
	if len(cfg.Clock) > 0 {
		clock := make([]*reactive.Trigger, 0, len(cfg.Clock))
		for _, name := range cfg.Clock {
			trigger, err := resolve(name)
			if err != nil {
				return nil, err
			}
			clock = append(clock, trigger)
		}
		opts = append(opts, WithClock[T](clock...))
	}

	cache := NewMemoryProgramCache()
	for name, sc := range cfg.Strategies {
		trigger, err := resolve(name)
		if err != nil {
			return nil, err
		}
		strategy, err := buildStrategy[T](sc, cache, functions)
		if err != nil {
			return nil, fmt.Errorf("strategy for %q: %w", name, err)
		}
		opts = append(opts, WithStrategy(trigger, strategy))
	}

	if cfg.Activity != nil {
		opts = append(opts,
			WithActivityChannel[T](cfg.Activity.Channel),
			WithActivityActor[T](cfg.Activity.ActorID, cfg.Activity.TenantID),
		)
	}
	return opts, nil
}

func buildStrategy[T any](sc StrategyConfig, cache ProgramCache, functions *FunctionRegistry) (Strategy[T], error) {
	switch sc.kind() {
	case strategyKindReplaceRepetitive:
		return ReplaceRepetitive[T](), nil
	case strategyKindRule:
		var evaluator Evaluator
		switch sc.engine() {
		case "cel":
			evaluator = NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(functions))
		case "js":
			evaluator = NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(functions))
		default:
			evaluator = NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(functions))
		}
		return RuleStrategy[T](evaluator, sc.Expr, WithRuleMetadata(sc.Metadata))
	default:
		return PushAlways[T](), nil
	}
}
