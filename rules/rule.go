// Package rules models targeting: immutable conjunctions of predicate
// leaves, each scored for specificity, plus the ramp-up metadata that
// decides how much of the matching population receives a value.
//
// A Rule matches a context iff every leaf matches. Leaves over data the
// context does not carry fail closed: they return false, never an error.
package rules

import (
	"github.com/calehm/vexil/feature"
)

// Extension is an opaque boolean predicate over the full context, used for
// business conditions the standard leaves cannot express. Weight is the
// extension's self-reported contribution to rule specificity; values below 1
// are treated as the default weight of 1, letting authors mark complex
// predicates as more specific than simple ones.
//
// Predicates must be pure and total for a given context. A panicking or nil
// predicate fails closed.
type Extension struct {
	Name      string
	Weight    int
	Predicate func(*feature.Context) bool
}

func (e *Extension) weight() int {
	if e.Weight < 1 {
		return 1
	}
	return e.Weight
}

func (e *Extension) matches(ctx *feature.Context) (matched bool) {
	if e.Predicate == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	return e.Predicate(ctx)
}

// Rule is a conjunction of targeting leaves plus ramp-up metadata. Rules are
// built once (directly or via Builder) and never mutated afterwards; they
// carry no ordering state, since precedence is computed from specificity at
// evaluation time.
type Rule struct {
	// Locales matches when it contains the context's locale. Empty means
	// "no locale constraint", which always matches.
	Locales []feature.LocaleID

	// Platforms matches when it contains the context's platform. Empty means
	// no constraint.
	Platforms []feature.PlatformID

	// Versions constrains the application version; the zero value is
	// unbounded.
	Versions VersionRange

	// Axes requires, per axis, that the context carries the axis and that
	// its selection intersects the allowed values. A context missing the
	// axis fails the leaf.
	Axes map[feature.AxisID][]feature.AxisValueID

	// Extension is an optional opaque predicate leaf.
	Extension *Extension

	// RampUp is the percentage of the bucket space, 0-100 at 0.1%
	// resolution, that receives this rule's value once the leaves match.
	RampUp float64

	// Allowlist identities bypass the ramp-up check (never the leaves) once
	// the rule's criteria match. Unioned with the flag-level allowlist at
	// evaluation time.
	Allowlist []feature.StableID

	// Note is a free-form operator annotation.
	Note string
}

// Matches reports whether every leaf accepts the context. A rule with no
// leaves matches everything.
func (r Rule) Matches(ctx *feature.Context) bool {
	if len(r.Locales) > 0 && !containsLocale(r.Locales, ctx.Locale()) {
		return false
	}
	if len(r.Platforms) > 0 && !containsPlatform(r.Platforms, ctx.Platform()) {
		return false
	}
	if !r.Versions.Contains(ctx.Version()) {
		return false
	}
	for axis, allowed := range r.Axes {
		selected, ok := ctx.AxisValues(axis)
		if !ok || !intersects(selected, allowed) {
			return false
		}
	}
	if r.Extension != nil && !r.Extension.matches(ctx) {
		return false
	}
	return true
}

// Specificity scores the rule for candidate ordering: one point per
// constraining standard leaf (locale, platform, bounded version range), one
// per distinct axis leaf, plus the extension's self-reported weight.
func (r Rule) Specificity() int {
	score := 0
	if len(r.Locales) > 0 {
		score++
	}
	if len(r.Platforms) > 0 {
		score++
	}
	if r.Versions.Bounded() {
		score++
	}
	score += len(r.Axes)
	if r.Extension != nil {
		score += r.Extension.weight()
	}
	return score
}

// Allows reports whether the identity is on the rule-level allowlist.
func (r Rule) Allows(id feature.StableID) bool {
	for _, allowed := range r.Allowlist {
		if allowed == id {
			return true
		}
	}
	return false
}

func containsLocale(set []feature.LocaleID, want feature.LocaleID) bool {
	for _, l := range set {
		if l == want {
			return true
		}
	}
	return false
}

func containsPlatform(set []feature.PlatformID, want feature.PlatformID) bool {
	for _, p := range set {
		if p == want {
			return true
		}
	}
	return false
}

func intersects(selected, allowed []feature.AxisValueID) bool {
	for _, s := range selected {
		for _, a := range allowed {
			if s == a {
				return true
			}
		}
	}
	return false
}
