package rules

import (
	"fmt"

	"github.com/calehm/vexil/feature"
)

// Builder accumulates rule declarations and produces an immutable Rule.
// Ramp-up defaults to 100% (everyone who satisfies the leaves).
type Builder struct {
	rule Rule
	err  error
}

// New returns a Builder for a rule with no leaves and 100% ramp-up.
func New() *Builder {
	return &Builder{rule: Rule{RampUp: 100}}
}

// Locales adds a locale-membership leaf (OR over the given locales).
func (b *Builder) Locales(locales ...feature.LocaleID) *Builder {
	b.rule.Locales = append(b.rule.Locales, locales...)
	return b
}

// Platforms adds a platform-membership leaf (OR over the given platforms).
func (b *Builder) Platforms(platforms ...feature.PlatformID) *Builder {
	b.rule.Platforms = append(b.rule.Platforms, platforms...)
	return b
}

// Versions sets the version-range leaf.
func (b *Builder) Versions(r VersionRange) *Builder {
	b.rule.Versions = r
	return b
}

// Axis adds (or extends) an axis-membership leaf. Values OR within the
// axis; distinct axes AND with each other.
func (b *Builder) Axis(axis feature.AxisID, values ...feature.AxisValueID) *Builder {
	if b.rule.Axes == nil {
		b.rule.Axes = make(map[feature.AxisID][]feature.AxisValueID)
	}
	b.rule.Axes[axis] = append(b.rule.Axes[axis], values...)
	return b
}

// Extend sets the extension predicate leaf.
func (b *Builder) Extend(ext *Extension) *Builder {
	b.rule.Extension = ext
	return b
}

// RampUp sets the ramp-up percentage in [0, 100].
func (b *Builder) RampUp(percent float64) *Builder {
	if percent < 0 || percent > 100 {
		b.fail(fmt.Errorf("ramp-up %v out of range [0, 100]", percent))
		return b
	}
	b.rule.RampUp = percent
	return b
}

// Allow adds identities to the rule-level ramp-up allowlist.
func (b *Builder) Allow(ids ...feature.StableID) *Builder {
	b.rule.Allowlist = append(b.rule.Allowlist, ids...)
	return b
}

// Note attaches a human annotation.
func (b *Builder) Note(note string) *Builder {
	b.rule.Note = note
	return b
}

// Build returns the accumulated rule. The builder must not be reused after
// Build; the returned rule owns its slices.
func (b *Builder) Build() (Rule, error) {
	if b.err != nil {
		return Rule{}, b.err
	}
	return b.rule, nil
}

// MustBuild is Build for static declarations; it panics on error.
func (b *Builder) MustBuild() Rule {
	rule, err := b.Build()
	if err != nil {
		panic(err)
	}
	return rule
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
