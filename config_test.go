package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-history/pkg/reactive"
)

func TestLoadConfigAndBuildOptions(t *testing.T) {
	env := newFooBar(t)
	cfg, err := LoadConfig([]byte(`
name: editor
max_length: 3
serialize: false
clock: [fooChanged, barChanged]
strategies:
  fooChanged:
    kind: replace-repetitive
  barChanged:
    kind: rule
    engine: cel
    expr: 'payload > 100 ? "ignore" : "push"'
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "editor" || cfg.MaxLength == nil || *cfg.MaxLength != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}

	opts, err := BuildOptions[map[string]any](cfg, map[string]*reactive.Trigger{
		"fooChanged": env.fooChanged,
		"barChanged": env.barChanged,
	}, nil)
	if err != nil {
		t.Fatalf("build options: %v", err)
	}
	h := env.history(t, opts...)

	fire(t, env.fooChanged, "a")
	fire(t, env.fooChanged, "b")
	fire(t, env.barChanged, 500)
	fire(t, env.barChanged, 5)
	fire(t, env.fooChanged, "c")

	assertValues(t, h, fb("b", 2), fb("b", 5), fb("c", 5))
	if h.Name() != "editor" {
		t.Fatalf("unexpected name %q", h.Name())
	}
	if snap := h.Snapshot(); snap.Triggers != nil || snap.Payloads != nil {
		t.Fatalf("serialize: false must drop triggers and payloads")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
		is      error
	}{
		{name: "zero max length", yaml: "max_length: 0", is: ErrInvalidMaxLength},
		{name: "negative max length", yaml: "max_length: -2", is: ErrInvalidMaxLength},
		{name: "strategy off clock", yaml: "clock: [a]\nstrategies:\n  b: {kind: push-always}", is: ErrUnknownTrigger},
		{name: "duplicate clock", yaml: "clock: [a, a]", wantErr: "duplicated"},
		{name: "unknown kind", yaml: "strategies:\n  a: {kind: sometimes}", wantErr: "unknown kind"},
		{name: "rule without expr", yaml: "strategies:\n  a: {kind: rule}", is: ErrEmptyExpression},
		{name: "unknown engine", yaml: "strategies:\n  a: {kind: rule, engine: lua, expr: 'true'}", wantErr: "unknown engine"},
		{name: "expr on builtin", yaml: "strategies:\n  a: {kind: replace-repetitive, expr: 'true'}", wantErr: "takes no expr"},
		{name: "bad yaml", yaml: "max_length: [", wantErr: "failed to parse YAML"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig([]byte(tc.yaml))
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Fatalf("expected %v, got %v", tc.is, err)
			}
			if tc.wantErr != "" && !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected %q in %v", tc.wantErr, err)
			}
		})
	}
}

func TestBuildOptionsUnknownTriggerName(t *testing.T) {
	cfg := &Config{Strategies: map[string]StrategyConfig{"missing": {Kind: "replace-repetitive"}}}
	_, err := BuildOptions[map[string]any](cfg, map[string]*reactive.Trigger{}, nil)
	if !errors.Is(err, ErrUnknownTrigger) {
		t.Fatalf("expected ErrUnknownTrigger, got %v", err)
	}
	if opts, err := BuildOptions[map[string]any](nil, nil, nil); err != nil || opts != nil {
		t.Fatalf("nil config should build no options, got %v %v", opts, err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.yml")
	if err := os.WriteFile(path, []byte("name: file\nactivity:\n  channel: audit\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "file" || cfg.Activity == nil || cfg.Activity.Channel != "audit" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("expected read error")
	}
}
