package registry

import (
	"fmt"
	"sort"

	"github.com/calehm/vexil/bucketing"
	"github.com/calehm/vexil/feature"
	"github.com/calehm/vexil/hooks"
	"github.com/calehm/vexil/snapshot"
)

// Evaluate resolves one feature's value for one context against the current
// snapshot. It is total for any configured feature: given a definition it
// always returns a typed value and a decision. The only error is
// ErrFeatureNotFound, for a feature absent from the snapshot with no
// override.
//
// Evaluation order: override short-circuit, kill switch, active check,
// rule matching by descending specificity (declaration order breaks ties),
// ramp-up/allowlist admission, then the default.
func (r *Registry) Evaluate(f *feature.Feature, ctx *feature.Context) (feature.Value, Decision, error) {
	cfg := r.current.Load()

	def, overridden, err := r.effectiveDefinition(f, cfg)
	if err != nil {
		return nil, Decision{}, err
	}

	value, decision := evaluateDefinition(def, ctx, cfg, r.disabled.Load())

	r.metrics.RecordEvaluation(hooks.EvaluationEvent{
		Feature:    f,
		Decision:   string(decision.Kind),
		Overridden: overridden,
	})
	r.logger.Debug(func() string {
		return fmt.Sprintf("evaluated %s: decision=%s overridden=%t", f.WireKey(), decision.Kind, overridden)
	})

	return value, decision, nil
}

func evaluateDefinition(def snapshot.FlagDefinition, ctx *feature.Context, cfg *snapshot.Config, disabled bool) (feature.Value, Decision) {
	if disabled {
		return def.Default, Decision{Kind: DecisionRegistryDisabled}
	}
	if !def.Active {
		return def.Default, Decision{Kind: DecisionInactive}
	}

	candidates := matchingBindings(def, ctx)
	if len(candidates) == 0 {
		return def.Default, Decision{Kind: DecisionDefault}
	}

	// Same salt, key, and identity for every candidate, so one bucket
	// serves the whole walk.
	bucket := bucketing.Bucket(ctx.StableID(), def.Feature.Key(), def.Salt)

	var skipped *SkippedRollout
	for _, i := range candidates {
		binding := def.Bindings[i]
		allowlisted := binding.Rule.Allows(ctx.StableID()) || def.Allows(ctx.StableID())
		if allowlisted || bucketing.InRollout(binding.Rule.RampUp, bucket) {
			value := binding.ResolveValue(ctx, cfg)
			return value, Decision{Kind: DecisionRule, Rule: &def.Bindings[i].Rule}
		}
		skipped = &SkippedRollout{Rule: binding.Rule, Bucket: bucket, RampUp: binding.Rule.RampUp}
	}

	return def.Default, Decision{Kind: DecisionDefault, Skipped: skipped}
}

// matchingBindings returns the indices of bindings whose rules match the
// context, ordered by descending specificity. The sort is stable over
// declaration order, so precedence never depends on map or set iteration.
func matchingBindings(def snapshot.FlagDefinition, ctx *feature.Context) []int {
	var matched []int
	for i, binding := range def.Bindings {
		if binding.Rule.Matches(ctx) {
			matched = append(matched, i)
		}
	}

	sort.SliceStable(matched, func(a, b int) bool {
		return def.Bindings[matched[a]].Rule.Specificity() > def.Bindings[matched[b]].Rule.Specificity()
	})
	return matched
}
