package registry

import "github.com/calehm/vexil/rules"

// DecisionKind discriminates the closed set of ways an evaluation can
// resolve.
type DecisionKind string

const (
	// DecisionRule means a targeting rule matched and its ramp-up (or an
	// allowlist) admitted the identity.
	DecisionRule DecisionKind = "RULE"

	// DecisionDefault means no rule yielded a value.
	DecisionDefault DecisionKind = "DEFAULT"

	// DecisionInactive means the flag definition is switched off.
	DecisionInactive DecisionKind = "INACTIVE"

	// DecisionRegistryDisabled means the namespace kill switch is engaged.
	DecisionRegistryDisabled DecisionKind = "REGISTRY_DISABLED"
)

// SkippedRollout records a rule whose leaves matched but whose ramp-up
// excluded the identity. Kept for diagnostics on default decisions.
type SkippedRollout struct {
	Rule   rules.Rule
	Bucket int
	RampUp float64
}

// Decision explains an evaluation outcome. Rule is set for DecisionRule;
// Skipped carries the last ramp-up near-miss for DecisionDefault, when any.
type Decision struct {
	Kind    DecisionKind
	Rule    *rules.Rule
	Skipped *SkippedRollout
}
