package registry

import (
	"errors"
	"testing"

	"github.com/calehm/vexil/feature"
	"github.com/calehm/vexil/rules"
	"github.com/calehm/vexil/snapshot"
)

func testCatalog(t *testing.T) (*feature.Catalog, *feature.Feature) {
	t.Helper()
	catalog := feature.NewCatalog()
	darkMode := catalog.MustRegister("checkout", "darkMode", feature.KindBool)
	return catalog, darkMode
}

func iosContext() *feature.Context {
	return feature.NewContext("en-US", "IOS", feature.Version{Major: 2}, feature.NewStableID())
}

func androidContext() *feature.Context {
	return feature.NewContext("en-US", "ANDROID", feature.Version{Major: 2}, feature.NewStableID())
}

func boolConfig(f *feature.Feature, bindings ...snapshot.RuleBinding) *snapshot.Config {
	return snapshot.NewBuilder().Define(snapshot.FlagDefinition{
		Feature:  f,
		Default:  feature.Bool(false),
		Active:   true,
		Salt:     "v1",
		Bindings: bindings,
	}).MustBuild()
}

func TestEvaluateDefaultWhenNoRules(t *testing.T) {
	_, darkMode := testCatalog(t)
	reg := New()
	reg.Load(boolConfig(darkMode))

	value, decision, err := reg.Evaluate(darkMode, iosContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(false)) {
		t.Fatalf("value = %v, want default false", value)
	}
	if decision.Kind != DecisionDefault {
		t.Fatalf("decision = %s, want %s", decision.Kind, DecisionDefault)
	}
}

func TestEvaluateMatchingRuleAtFullRampUp(t *testing.T) {
	_, darkMode := testCatalog(t)
	reg := New()
	reg.Load(boolConfig(darkMode, snapshot.RuleBinding{
		Rule:  rules.Rule{Platforms: []feature.PlatformID{"IOS"}, RampUp: 100},
		Value: feature.Bool(true),
	}))

	value, decision, err := reg.Evaluate(darkMode, iosContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(true)) {
		t.Fatalf("value = %v, want true", value)
	}
	if decision.Kind != DecisionRule {
		t.Fatalf("decision = %s, want %s", decision.Kind, DecisionRule)
	}

	// Platform leaf fails on Android, so the default applies.
	value, decision, err = reg.Evaluate(darkMode, androidContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(false)) || decision.Kind != DecisionDefault {
		t.Fatalf("android got (%v, %s), want (false, DEFAULT)", value, decision.Kind)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	_, darkMode := testCatalog(t)
	reg := New()
	reg.Load(boolConfig(darkMode, snapshot.RuleBinding{
		Rule:  rules.Rule{RampUp: 50},
		Value: feature.Bool(true),
	}))

	ctx := iosContext()
	firstValue, firstDecision, err := reg.Evaluate(darkMode, ctx)
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	for i := 0; i < 50; i++ {
		value, decision, err := reg.Evaluate(darkMode, ctx)
		if err != nil {
			t.Fatalf("Evaluate error = %v", err)
		}
		if !value.Equal(firstValue) || decision.Kind != firstDecision.Kind {
			t.Fatalf("evaluation %d diverged: (%v, %s) != (%v, %s)",
				i, value, decision.Kind, firstValue, firstDecision.Kind)
		}
	}
}

func TestEvaluateInactiveFlag(t *testing.T) {
	_, darkMode := testCatalog(t)
	reg := New()
	reg.Load(snapshot.NewBuilder().Define(snapshot.FlagDefinition{
		Feature: darkMode,
		Default: feature.Bool(false),
		Active:  false,
		Bindings: []snapshot.RuleBinding{
			{Rule: rules.Rule{RampUp: 100}, Value: feature.Bool(true)},
		},
	}).MustBuild())

	value, decision, err := reg.Evaluate(darkMode, iosContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(false)) || decision.Kind != DecisionInactive {
		t.Fatalf("got (%v, %s), want (false, INACTIVE)", value, decision.Kind)
	}
}

func TestKillSwitch(t *testing.T) {
	_, darkMode := testCatalog(t)
	reg := New()
	reg.Load(boolConfig(darkMode, snapshot.RuleBinding{
		Rule:  rules.Rule{RampUp: 100},
		Value: feature.Bool(true),
	}))

	reg.DisableAll()
	value, decision, err := reg.Evaluate(darkMode, iosContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(false)) || decision.Kind != DecisionRegistryDisabled {
		t.Fatalf("got (%v, %s), want (false, REGISTRY_DISABLED)", value, decision.Kind)
	}

	reg.EnableAll()
	value, _, err = reg.Evaluate(darkMode, iosContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(true)) {
		t.Fatalf("value after EnableAll = %v, want true", value)
	}
}

func TestSpecificityOrdersCandidates(t *testing.T) {
	_, darkMode := testCatalog(t)
	reg := New()

	// Both rules match an iOS 2.x context; the more specific one (platform
	// AND version) must win even though it is declared second.
	reg.Load(boolConfig(darkMode,
		snapshot.RuleBinding{
			Rule:  rules.Rule{Platforms: []feature.PlatformID{"IOS"}, RampUp: 100},
			Value: feature.Bool(false),
		},
		snapshot.RuleBinding{
			Rule: rules.Rule{
				Platforms: []feature.PlatformID{"IOS"},
				Versions:  rules.AtLeast(feature.Version{Major: 2}),
				RampUp:    100,
			},
			Value: feature.Bool(true),
		},
	))

	value, decision, err := reg.Evaluate(darkMode, iosContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(true)) {
		t.Fatalf("value = %v, want the more specific rule's value", value)
	}
	if decision.Rule == nil || !decision.Rule.Versions.Bounded() {
		t.Fatal("decision does not carry the winning rule")
	}
}

func TestEqualSpecificityBreaksTiesByDeclarationOrder(t *testing.T) {
	catalog := feature.NewCatalog()
	greeting := catalog.MustRegister("checkout", "greeting", feature.KindString)

	reg := New()
	reg.Load(snapshot.NewBuilder().Define(snapshot.FlagDefinition{
		Feature: greeting,
		Default: feature.String("hello"),
		Active:  true,
		Bindings: []snapshot.RuleBinding{
			{Rule: rules.Rule{Platforms: []feature.PlatformID{"IOS"}, RampUp: 100}, Value: feature.String("first")},
			{Rule: rules.Rule{Platforms: []feature.PlatformID{"IOS"}, RampUp: 100}, Value: feature.String("second")},
		},
	}).MustBuild())

	for i := 0; i < 20; i++ {
		value, _, err := reg.Evaluate(greeting, iosContext())
		if err != nil {
			t.Fatalf("Evaluate error = %v", err)
		}
		if !value.Equal(feature.String("first")) {
			t.Fatalf("tie broke to %v, want first-declared", value)
		}
	}
}

func TestZeroRampUpNeverMatches(t *testing.T) {
	_, darkMode := testCatalog(t)
	reg := New()
	reg.Load(boolConfig(darkMode, snapshot.RuleBinding{
		Rule:  rules.Rule{RampUp: 0},
		Value: feature.Bool(true),
	}))

	for i := 0; i < 100; i++ {
		ctx := feature.NewContext("en-US", "IOS", feature.Version{Major: 2}, feature.NewStableID())
		value, decision, err := reg.Evaluate(darkMode, ctx)
		if err != nil {
			t.Fatalf("Evaluate error = %v", err)
		}
		if !value.Equal(feature.Bool(false)) {
			t.Fatal("0 percent ramp-up yielded the rule value")
		}
		if decision.Kind != DecisionDefault {
			t.Fatalf("decision = %s, want DEFAULT", decision.Kind)
		}
		if decision.Skipped == nil || decision.Skipped.RampUp != 0 {
			t.Fatalf("default decision lacks the skipped-by-rollout record: %+v", decision.Skipped)
		}
	}
}

func TestAllowlistBypassesRampUpOnly(t *testing.T) {
	_, darkMode := testCatalog(t)
	id := feature.NewStableID()
	allowed := feature.NewContext("en-US", "IOS", feature.Version{Major: 2}, id)

	// Rule-level allowlist admits the identity at 0% once the leaves match.
	reg := New()
	reg.Load(boolConfig(darkMode, snapshot.RuleBinding{
		Rule: rules.Rule{
			Platforms: []feature.PlatformID{"IOS"},
			RampUp:    0,
			Allowlist: []feature.StableID{id},
		},
		Value: feature.Bool(true),
	}))

	value, decision, err := reg.Evaluate(darkMode, allowed)
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(true)) || decision.Kind != DecisionRule {
		t.Fatalf("allowlisted identity got (%v, %s), want (true, RULE)", value, decision.Kind)
	}

	// The allowlist never forces a match when a targeting leaf fails.
	allowedOnAndroid := feature.NewContext("en-US", "ANDROID", feature.Version{Major: 2}, id)
	value, decision, err = reg.Evaluate(darkMode, allowedOnAndroid)
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(false)) || decision.Kind != DecisionDefault {
		t.Fatalf("failing leaves got (%v, %s), want (false, DEFAULT)", value, decision.Kind)
	}
}

func TestFlagLevelAllowlistUnions(t *testing.T) {
	_, darkMode := testCatalog(t)
	id := feature.NewStableID()

	reg := New()
	reg.Load(snapshot.NewBuilder().Define(snapshot.FlagDefinition{
		Feature:   darkMode,
		Default:   feature.Bool(false),
		Active:    true,
		Salt:      "v1",
		Allowlist: []feature.StableID{id},
		Bindings: []snapshot.RuleBinding{
			{Rule: rules.Rule{RampUp: 0}, Value: feature.Bool(true)},
		},
	}).MustBuild())

	ctx := feature.NewContext("en-US", "IOS", feature.Version{Major: 2}, id)
	value, _, err := reg.Evaluate(darkMode, ctx)
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(true)) {
		t.Fatal("flag-level allowlist did not bypass the rule ramp-up")
	}
}

func TestEvaluateUnknownFeature(t *testing.T) {
	catalog := feature.NewCatalog()
	missing := catalog.MustRegister("checkout", "missing", feature.KindBool)

	reg := New()
	if _, _, err := reg.Evaluate(missing, iosContext()); !errors.Is(err, ErrFeatureNotFound) {
		t.Fatalf("Evaluate error = %v, want ErrFeatureNotFound", err)
	}
	if _, err := reg.Definition(missing); !errors.Is(err, ErrFeatureNotFound) {
		t.Fatalf("Definition error = %v, want ErrFeatureNotFound", err)
	}
}

func TestOverrides(t *testing.T) {
	_, darkMode := testCatalog(t)
	reg := New()
	reg.Load(boolConfig(darkMode, snapshot.RuleBinding{
		Rule:  rules.Rule{RampUp: 100},
		Value: feature.Bool(true),
	}))

	reg.SetOverride(darkMode, feature.Bool(false))
	value, decision, err := reg.Evaluate(darkMode, iosContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(false)) {
		t.Fatalf("override not observed: %v", value)
	}
	if decision.Kind != DecisionDefault {
		t.Fatalf("override decision = %s, want DEFAULT (override becomes the default)", decision.Kind)
	}

	// LIFO nesting: the innermost override wins, clearing restores outer.
	reg.SetOverride(darkMode, feature.Bool(true))
	value, _, _ = reg.Evaluate(darkMode, iosContext())
	if !value.Equal(feature.Bool(true)) {
		t.Fatal("nested override not observed")
	}
	reg.ClearOverride(darkMode)
	value, _, _ = reg.Evaluate(darkMode, iosContext())
	if !value.Equal(feature.Bool(false)) {
		t.Fatal("outer override not restored after clear")
	}
	reg.ClearOverride(darkMode)
	value, _, _ = reg.Evaluate(darkMode, iosContext())
	if !value.Equal(feature.Bool(true)) {
		t.Fatal("rule evaluation not restored after clearing all overrides")
	}

	// Clearing an empty stack is a no-op.
	reg.ClearOverride(darkMode)
}

func TestOverrideForUnconfiguredFeature(t *testing.T) {
	catalog := feature.NewCatalog()
	missing := catalog.MustRegister("checkout", "missing", feature.KindBool)

	reg := New()
	reg.SetOverride(missing, feature.Bool(true))

	value, _, err := reg.Evaluate(missing, iosContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(true)) {
		t.Fatalf("value = %v, want override", value)
	}
}

func TestOverrideWinsOverKillSwitch(t *testing.T) {
	_, darkMode := testCatalog(t)
	reg := New()
	reg.Load(boolConfig(darkMode))

	reg.SetOverride(darkMode, feature.Bool(true))
	reg.DisableAll()

	value, decision, err := reg.Evaluate(darkMode, iosContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	// The override becomes the definition's default, and the kill switch
	// returns the default, so the override value is what callers observe.
	if !value.Equal(feature.Bool(true)) {
		t.Fatalf("value = %v, want override value under kill switch", value)
	}
	if decision.Kind != DecisionRegistryDisabled {
		t.Fatalf("decision = %s, want REGISTRY_DISABLED", decision.Kind)
	}
}

func TestRollbackSemantics(t *testing.T) {
	_, darkMode := testCatalog(t)
	s1 := boolConfig(darkMode)
	s2 := snapshot.NewBuilder().Define(snapshot.FlagDefinition{
		Feature: darkMode, Default: feature.Bool(true), Active: true,
	}).MustBuild()

	reg := New()
	reg.Load(s1)
	reg.Load(s2)

	if reg.Current() != s2 {
		t.Fatal("current is not the last loaded snapshot")
	}
	if !reg.Rollback(1) {
		t.Fatal("Rollback(1) failed with history available")
	}
	if reg.Current() != s1 {
		t.Fatal("Rollback(1) did not restore S1")
	}
	// S1 was the very first load; there is nothing earlier.
	if reg.Rollback(1) {
		t.Fatal("Rollback(1) succeeded with no prior history")
	}
	if reg.Current() != s1 {
		t.Fatal("failed rollback changed state")
	}
}

func TestRollbackMultipleSteps(t *testing.T) {
	_, darkMode := testCatalog(t)

	snapshots := make([]*snapshot.Config, 4)
	for i := range snapshots {
		snapshots[i] = boolConfig(darkMode)
	}

	reg := New()
	for _, s := range snapshots {
		reg.Load(s)
	}

	if reg.Rollback(0) {
		t.Fatal("Rollback(0) must fail")
	}
	if reg.Rollback(10) {
		t.Fatal("Rollback past history depth must fail")
	}

	// Jump straight back to the first snapshot, discarding the rest.
	if !reg.Rollback(3) {
		t.Fatal("Rollback(3) failed")
	}
	if reg.Current() != snapshots[0] {
		t.Fatal("Rollback(3) restored the wrong snapshot")
	}
	if reg.HistoryDepth() != 0 {
		t.Fatalf("HistoryDepth = %d, want 0 after rolling back to the first load", reg.HistoryDepth())
	}
}

func TestHistoryCapacityEvictsOldest(t *testing.T) {
	_, darkMode := testCatalog(t)

	reg := New(WithHistoryCapacity(2))
	first := boolConfig(darkMode)
	reg.Load(first)
	for i := 0; i < 5; i++ {
		reg.Load(boolConfig(darkMode))
	}

	if depth := reg.HistoryDepth(); depth != 2 {
		t.Fatalf("HistoryDepth = %d, want capacity 2", depth)
	}
	if reg.Rollback(3) {
		t.Fatal("Rollback beyond capacity must fail")
	}
}

func TestUpdateDefinitionSkipsHistory(t *testing.T) {
	_, darkMode := testCatalog(t)
	reg := New()
	reg.Load(boolConfig(darkMode))
	before := reg.HistoryDepth()

	err := reg.UpdateDefinition(snapshot.FlagDefinition{
		Feature: darkMode,
		Default: feature.Bool(true),
		Active:  true,
	})
	if err != nil {
		t.Fatalf("UpdateDefinition error = %v", err)
	}

	if reg.HistoryDepth() != before {
		t.Fatal("UpdateDefinition changed rollback history")
	}
	value, _, err := reg.Evaluate(darkMode, iosContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.Bool(true)) {
		t.Fatal("patched definition not observed")
	}

	if err := reg.UpdateDefinition(snapshot.FlagDefinition{Feature: darkMode}); err == nil {
		t.Fatal("UpdateDefinition accepted an invalid definition")
	}
}

func TestResolverReceivesContextAndSnapshot(t *testing.T) {
	catalog := feature.NewCatalog()
	greeting := catalog.MustRegister("checkout", "greeting", feature.KindString)

	reg := New()
	reg.Load(snapshot.NewBuilder().Define(snapshot.FlagDefinition{
		Feature: greeting,
		Default: feature.String(""),
		Active:  true,
		Bindings: []snapshot.RuleBinding{{
			Rule: rules.Rule{RampUp: 100},
			Resolve: func(ctx *feature.Context, cfg *snapshot.Config) feature.Value {
				return feature.String("hello-" + string(ctx.Locale()))
			},
		}},
	}).MustBuild())

	value, _, err := reg.Evaluate(greeting, iosContext())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if !value.Equal(feature.String("hello-en-US")) {
		t.Fatalf("resolver value = %v", value)
	}
}
