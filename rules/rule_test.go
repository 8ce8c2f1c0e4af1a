package rules

import (
	"testing"

	"github.com/calehm/vexil/feature"
)

func iosContext(opts ...feature.ContextOption) *feature.Context {
	return feature.NewContext("en-US", "IOS", feature.Version{Major: 2, Minor: 1, Patch: 0},
		feature.NewStableID(), opts...)
}

func TestRuleMatches(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		ctx  *feature.Context
		want bool
	}{
		{
			name: "empty rule matches everything",
			rule: Rule{},
			ctx:  iosContext(),
			want: true,
		},
		{
			name: "locale membership",
			rule: Rule{Locales: []feature.LocaleID{"en-US", "en-GB"}},
			ctx:  iosContext(),
			want: true,
		},
		{
			name: "locale mismatch",
			rule: Rule{Locales: []feature.LocaleID{"de-DE"}},
			ctx:  iosContext(),
			want: false,
		},
		{
			name: "platform membership",
			rule: Rule{Platforms: []feature.PlatformID{"IOS"}},
			ctx:  iosContext(),
			want: true,
		},
		{
			name: "platform mismatch",
			rule: Rule{Platforms: []feature.PlatformID{"ANDROID"}},
			ctx:  iosContext(),
			want: false,
		},
		{
			name: "version inside range",
			rule: Rule{Versions: Between(feature.Version{Major: 2}, feature.Version{Major: 3})},
			ctx:  iosContext(),
			want: true,
		},
		{
			name: "version below min",
			rule: Rule{Versions: AtLeast(feature.Version{Major: 3})},
			ctx:  iosContext(),
			want: false,
		},
		{
			name: "version above max",
			rule: Rule{Versions: AtMost(feature.Version{Major: 1, Minor: 9})},
			ctx:  iosContext(),
			want: false,
		},
		{
			name: "axis intersects",
			rule: Rule{Axes: map[feature.AxisID][]feature.AxisValueID{"tier": {"beta", "internal"}}},
			ctx:  iosContext(feature.WithAxis("tier", "beta")),
			want: true,
		},
		{
			name: "axis present but disjoint",
			rule: Rule{Axes: map[feature.AxisID][]feature.AxisValueID{"tier": {"internal"}}},
			ctx:  iosContext(feature.WithAxis("tier", "beta")),
			want: false,
		},
		{
			name: "absent axis fails closed",
			rule: Rule{Axes: map[feature.AxisID][]feature.AxisValueID{"tier": {"beta"}}},
			ctx:  iosContext(),
			want: false,
		},
		{
			name: "axes AND across distinct axes",
			rule: Rule{Axes: map[feature.AxisID][]feature.AxisValueID{
				"tier":   {"beta"},
				"region": {"emea"},
			}},
			ctx:  iosContext(feature.WithAxis("tier", "beta")),
			want: false,
		},
		{
			name: "extension matches",
			rule: Rule{Extension: &Extension{
				Name:      "always",
				Predicate: func(*feature.Context) bool { return true },
			}},
			ctx:  iosContext(),
			want: true,
		},
		{
			name: "nil extension predicate fails closed",
			rule: Rule{Extension: &Extension{Name: "broken"}},
			ctx:  iosContext(),
			want: false,
		},
		{
			name: "panicking extension fails closed",
			rule: Rule{Extension: &Extension{
				Name:      "panics",
				Predicate: func(*feature.Context) bool { panic("boom") },
			}},
			ctx:  iosContext(),
			want: false,
		},
		{
			name: "all leaves must match",
			rule: Rule{
				Locales:   []feature.LocaleID{"en-US"},
				Platforms: []feature.PlatformID{"ANDROID"},
			},
			ctx:  iosContext(),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Matches(tt.ctx); got != tt.want {
				t.Fatalf("Matches = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestSpecificity(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want int
	}{
		{name: "empty", rule: Rule{}, want: 0},
		{name: "one standard leaf", rule: Rule{Platforms: []feature.PlatformID{"IOS"}}, want: 1},
		{
			name: "version and platform beat platform alone",
			rule: Rule{
				Platforms: []feature.PlatformID{"IOS"},
				Versions:  AtLeast(feature.Version{Major: 2}),
			},
			want: 2,
		},
		{
			name: "each distinct axis counts",
			rule: Rule{Axes: map[feature.AxisID][]feature.AxisValueID{
				"tier":   {"beta"},
				"region": {"emea"},
			}},
			want: 2,
		},
		{
			name: "extension default weight",
			rule: Rule{Extension: &Extension{Name: "x", Predicate: func(*feature.Context) bool { return true }}},
			want: 1,
		},
		{
			name: "extension custom weight",
			rule: Rule{Extension: &Extension{Name: "x", Weight: 3}},
			want: 3,
		},
		{
			name: "unbounded version range does not count",
			rule: Rule{Versions: Unbounded()},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Specificity(); got != tt.want {
				t.Fatalf("Specificity = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVersionRangeContains(t *testing.T) {
	v := func(major, minor, patch int) feature.Version {
		return feature.Version{Major: major, Minor: minor, Patch: patch}
	}

	tests := []struct {
		name    string
		r       VersionRange
		version feature.Version
		want    bool
	}{
		{name: "zero value is unbounded", r: VersionRange{}, version: v(9, 9, 9), want: true},
		{name: "unbounded", r: Unbounded(), version: v(0, 0, 1), want: true},
		{name: "min inclusive", r: AtLeast(v(1, 2, 3)), version: v(1, 2, 3), want: true},
		{name: "min exclusive below", r: AtLeast(v(1, 2, 3)), version: v(1, 2, 2), want: false},
		{name: "max inclusive", r: AtMost(v(2, 0, 0)), version: v(2, 0, 0), want: true},
		{name: "max above", r: AtMost(v(2, 0, 0)), version: v(2, 0, 1), want: false},
		{name: "between inside", r: Between(v(1, 0, 0), v(2, 0, 0)), version: v(1, 5, 0), want: true},
		{name: "between outside", r: Between(v(1, 0, 0), v(2, 0, 0)), version: v(2, 0, 1), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Contains(tt.version); got != tt.want {
				t.Fatalf("Contains(%v) = %t, want %t", tt.version, got, tt.want)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	allowed := feature.NewStableID()

	rule, err := New().
		Locales("en-US").
		Platforms("IOS", "ANDROID").
		Versions(AtLeast(feature.Version{Major: 2})).
		Axis("tier", "beta").
		RampUp(25).
		Allow(allowed).
		Note("checkout experiment").
		Build()
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	if rule.RampUp != 25 {
		t.Errorf("RampUp = %v, want 25", rule.RampUp)
	}
	if !rule.Allows(allowed) {
		t.Error("Allows = false for allowlisted identity")
	}
	if rule.Allows(feature.NewStableID()) {
		t.Error("Allows = true for a random identity")
	}
	if rule.Note != "checkout experiment" {
		t.Errorf("Note = %q", rule.Note)
	}
	if rule.Specificity() != 4 {
		t.Errorf("Specificity = %d, want 4", rule.Specificity())
	}
}

func TestBuilderDefaultsToFullRampUp(t *testing.T) {
	rule, err := New().Platforms("IOS").Build()
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if rule.RampUp != 100 {
		t.Fatalf("default RampUp = %v, want 100", rule.RampUp)
	}
}

func TestBuilderRejectsBadRampUp(t *testing.T) {
	if _, err := New().RampUp(150).Build(); err == nil {
		t.Fatal("Build accepted ramp-up above 100")
	}
	if _, err := New().RampUp(-1).Build(); err == nil {
		t.Fatal("Build accepted negative ramp-up")
	}
}
