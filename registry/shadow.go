package registry

import "github.com/calehm/vexil/feature"

// Outcome captures one side of a shadow comparison.
type Outcome struct {
	Value    feature.Value
	Decision Decision
	Err      error
}

// Mismatch reports a divergence between baseline and candidate for one
// evaluation.
type Mismatch struct {
	Feature         *feature.Feature
	Baseline        Outcome
	Candidate       Outcome
	ValueDiffers    bool
	DecisionDiffers bool
}

// ShadowOptions tune what the comparator evaluates and reports.
type ShadowOptions struct {
	// EvaluateCandidateWhenBaselineDisabled keeps the candidate path running
	// while the baseline kill switch is engaged. Off by default: candidate
	// work is wasted while the baseline is intentionally dark.
	EvaluateCandidateWhenBaselineDisabled bool

	// ReportDecisionMismatches also compares decision kinds. Off by default,
	// since decision-kind drift is expected noise early in a migration.
	ReportDecisionMismatches bool
}

// EvaluateWithShadow evaluates against the baseline registry and returns
// that result; the candidate never affects what the caller observes. When
// both paths run, resolved values are always compared (an error on exactly
// one side counts as a value divergence) and decision kinds are compared if
// opted in. On any compared difference, onMismatch runs synchronously on
// the calling goroutine before the function returns; it must be fast and
// must not panic.
func EvaluateWithShadow(f *feature.Feature, ctx *feature.Context, candidate, baseline *Registry, opts ShadowOptions, onMismatch func(Mismatch)) (feature.Value, Decision, error) {
	baseValue, baseDecision, baseErr := baseline.Evaluate(f, ctx)

	if baseline.Disabled() && !opts.EvaluateCandidateWhenBaselineDisabled {
		return baseValue, baseDecision, baseErr
	}

	candValue, candDecision, candErr := candidate.Evaluate(f, ctx)

	valueDiffers := !valuesAgree(baseValue, baseErr, candValue, candErr)
	decisionDiffers := opts.ReportDecisionMismatches && baseDecision.Kind != candDecision.Kind

	if (valueDiffers || decisionDiffers) && onMismatch != nil {
		onMismatch(Mismatch{
			Feature:         f,
			Baseline:        Outcome{Value: baseValue, Decision: baseDecision, Err: baseErr},
			Candidate:       Outcome{Value: candValue, Decision: candDecision, Err: candErr},
			ValueDiffers:    valueDiffers,
			DecisionDiffers: decisionDiffers,
		})
	}

	return baseValue, baseDecision, baseErr
}

func valuesAgree(baseValue feature.Value, baseErr error, candValue feature.Value, candErr error) bool {
	if baseErr != nil || candErr != nil {
		return (baseErr != nil) == (candErr != nil)
	}
	if baseValue == nil || candValue == nil {
		return baseValue == nil && candValue == nil
	}
	return baseValue.Equal(candValue)
}
