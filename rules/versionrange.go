package rules

import (
	"fmt"

	"github.com/calehm/vexil/feature"
)

// RangeKind discriminates the closed set of version range shapes.
type RangeKind string

const (
	RangeUnbounded RangeKind = "UNBOUNDED"
	RangeMinBound  RangeKind = "MIN_BOUND"
	RangeMaxBound  RangeKind = "MAX_BOUND"
	RangeMinAndMax RangeKind = "MIN_AND_MAX_BOUND"
)

// VersionRange constrains an application version. The zero value is
// unbounded. Bounds are inclusive.
type VersionRange struct {
	Kind RangeKind
	Min  feature.Version
	Max  feature.Version
}

// Unbounded matches every version.
func Unbounded() VersionRange {
	return VersionRange{Kind: RangeUnbounded}
}

// AtLeast matches versions >= min.
func AtLeast(min feature.Version) VersionRange {
	return VersionRange{Kind: RangeMinBound, Min: min}
}

// AtMost matches versions <= max.
func AtMost(max feature.Version) VersionRange {
	return VersionRange{Kind: RangeMaxBound, Max: max}
}

// Between matches versions in [min, max].
func Between(min, max feature.Version) VersionRange {
	return VersionRange{Kind: RangeMinAndMax, Min: min, Max: max}
}

// Contains reports whether v falls inside the range.
func (r VersionRange) Contains(v feature.Version) bool {
	switch r.Kind {
	case RangeMinBound:
		return v.Compare(r.Min) >= 0
	case RangeMaxBound:
		return v.Compare(r.Max) <= 0
	case RangeMinAndMax:
		return v.Compare(r.Min) >= 0 && v.Compare(r.Max) <= 0
	default:
		// The zero value and RangeUnbounded both mean "no constraint".
		return true
	}
}

// Bounded reports whether the range constrains anything. Only bounded
// ranges count toward rule specificity.
func (r VersionRange) Bounded() bool {
	switch r.Kind {
	case RangeMinBound, RangeMaxBound, RangeMinAndMax:
		return true
	default:
		return false
	}
}

func (r VersionRange) String() string {
	switch r.Kind {
	case RangeMinBound:
		return fmt.Sprintf(">=%s", r.Min)
	case RangeMaxBound:
		return fmt.Sprintf("<=%s", r.Max)
	case RangeMinAndMax:
		return fmt.Sprintf("%s..%s", r.Min, r.Max)
	default:
		return "*"
	}
}
