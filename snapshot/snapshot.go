// Package snapshot holds configuration as immutable, atomically swappable
// values. A Config is built once, by authoring code or by a successful
// decode, and never mutated: every update constructs a new Config, which is
// what makes lock-free reads in the registry safe.
package snapshot

import (
	"fmt"
	"time"

	"github.com/calehm/vexil/feature"
	"github.com/calehm/vexil/rules"
)

// Resolver produces a value at evaluation time, for bindings whose value is
// derived from the context or from other parts of the snapshot. Resolvers
// must be pure and total.
type Resolver func(ctx *feature.Context, cfg *Config) feature.Value

// RuleBinding pairs one targeting rule with the value to yield when that
// rule wins. Exactly one of Value and Resolve should be set; when both are
// set, Resolve wins.
type RuleBinding struct {
	Rule    rules.Rule
	Value   feature.Value
	Resolve Resolver
}

// ResolveValue returns the bound value, invoking the deferred resolver if
// one is present.
func (b RuleBinding) ResolveValue(ctx *feature.Context, cfg *Config) feature.Value {
	if b.Resolve != nil {
		return b.Resolve(ctx, cfg)
	}
	return b.Value
}

// FlagDefinition is one feature's full behavior: its default, whether it is
// active, the bucketing salt, the flag-level ramp-up allowlist, and its rule
// bindings. Bindings are unordered as declared; precedence is computed from
// rule specificity at evaluation time, with declaration order only breaking
// ties.
type FlagDefinition struct {
	Feature   *feature.Feature
	Default   feature.Value
	Active    bool
	Salt      string
	Allowlist []feature.StableID
	Bindings  []RuleBinding
}

// Allows reports whether the identity is on the flag-level allowlist.
func (d FlagDefinition) Allows(id feature.StableID) bool {
	for _, allowed := range d.Allowlist {
		if allowed == id {
			return true
		}
	}
	return false
}

// Meta describes a snapshot's provenance. All fields are optional; a zero
// GeneratedAt means "not recorded".
type Meta struct {
	Version     string
	GeneratedAt time.Time
	Source      string
}

// Config is an immutable mapping from feature to definition plus metadata.
// The zero-config returned by Empty is valid and contains no features.
type Config struct {
	meta  Meta
	defs  map[*feature.Feature]FlagDefinition
	order []*feature.Feature
}

// Empty returns a configuration with no features.
func Empty() *Config {
	return &Config{defs: make(map[*feature.Feature]FlagDefinition)}
}

// Meta returns the snapshot metadata.
func (c *Config) Meta() Meta { return c.meta }

// Definition returns the definition for a feature.
func (c *Config) Definition(f *feature.Feature) (FlagDefinition, bool) {
	def, ok := c.defs[f]
	return def, ok
}

// Features returns the configured features in stable declaration order.
func (c *Config) Features() []*feature.Feature {
	out := make([]*feature.Feature, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of configured features.
func (c *Config) Len() int { return len(c.defs) }

// WithDefinition returns a new Config with one definition replaced or
// added. The receiver is untouched.
func (c *Config) WithDefinition(def FlagDefinition) (*Config, error) {
	if err := validateDefinition(def); err != nil {
		return nil, err
	}

	next := c.clone()
	if _, exists := next.defs[def.Feature]; !exists {
		next.order = append(next.order, def.Feature)
	}
	next.defs[def.Feature] = def
	return next, nil
}

// WithoutFeature returns a new Config with one feature removed. Removing an
// absent feature is a no-op copy.
func (c *Config) WithoutFeature(f *feature.Feature) *Config {
	next := &Config{meta: c.meta, defs: make(map[*feature.Feature]FlagDefinition, len(c.defs))}
	for _, existing := range c.order {
		if existing == f {
			continue
		}
		next.defs[existing] = c.defs[existing]
		next.order = append(next.order, existing)
	}
	return next
}

func (c *Config) clone() *Config {
	next := &Config{
		meta:  c.meta,
		defs:  make(map[*feature.Feature]FlagDefinition, len(c.defs)),
		order: make([]*feature.Feature, len(c.order)),
	}
	for f, def := range c.defs {
		next.defs[f] = def
	}
	copy(next.order, c.order)
	return next
}

// Builder accumulates flag definitions and produces an immutable Config.
type Builder struct {
	meta  Meta
	defs  map[*feature.Feature]FlagDefinition
	order []*feature.Feature
	err   error
}

// NewBuilder returns an empty snapshot builder.
func NewBuilder() *Builder {
	return &Builder{defs: make(map[*feature.Feature]FlagDefinition)}
}

// Meta sets the snapshot metadata.
func (b *Builder) Meta(meta Meta) *Builder {
	b.meta = meta
	return b
}

// Define adds a flag definition. Defining the same feature twice replaces
// the earlier definition.
func (b *Builder) Define(def FlagDefinition) *Builder {
	if err := validateDefinition(def); err != nil {
		b.fail(err)
		return b
	}
	if _, exists := b.defs[def.Feature]; !exists {
		b.order = append(b.order, def.Feature)
	}
	b.defs[def.Feature] = def
	return b
}

// Build returns the accumulated configuration. The builder must not be
// reused after Build.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &Config{meta: b.meta, defs: b.defs, order: b.order}, nil
}

// MustBuild is Build for static declarations; it panics on error.
func (b *Builder) MustBuild() *Config {
	cfg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func validateDefinition(def FlagDefinition) error {
	if def.Feature == nil {
		return fmt.Errorf("flag definition is missing its feature")
	}
	if def.Default == nil {
		return fmt.Errorf("flag %s is missing a default value", def.Feature.WireKey())
	}
	if def.Default.Kind() != def.Feature.ValueKind() {
		return fmt.Errorf("flag %s default is %s, want %s",
			def.Feature.WireKey(), def.Default.Kind(), def.Feature.ValueKind())
	}
	for i, binding := range def.Bindings {
		if binding.Value == nil && binding.Resolve == nil {
			return fmt.Errorf("flag %s rule %d binds no value", def.Feature.WireKey(), i)
		}
		if binding.Value != nil && binding.Value.Kind() != def.Feature.ValueKind() {
			return fmt.Errorf("flag %s rule %d binds %s, want %s",
				def.Feature.WireKey(), i, binding.Value.Kind(), def.Feature.ValueKind())
		}
		if binding.Rule.RampUp < 0 || binding.Rule.RampUp > 100 {
			return fmt.Errorf("flag %s rule %d ramp-up %v out of range [0, 100]",
				def.Feature.WireKey(), i, binding.Rule.RampUp)
		}
	}
	return nil
}
