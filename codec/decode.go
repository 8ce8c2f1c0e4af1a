// Package codec is the parse/serialize boundary between untrusted wire JSON
// and trusted configuration snapshots. Decoding is two-phase: a structural
// pass (well-formed JSON, snapshot shape) and a semantic pass that resolves
// every feature key against the trusted catalog and decodes value payloads
// by the feature's declared type. A decode either yields a fully-formed
// snapshot or a typed ParseError; no partially-decoded state ever escapes.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/calehm/vexil/feature"
	"github.com/calehm/vexil/rules"
	"github.com/calehm/vexil/snapshot"
)

// UnknownFeatureKeyStrategy decides what a decode does with a flag whose
// key the trusted catalog does not declare.
type UnknownFeatureKeyStrategy int

const (
	// UnknownKeyFail rejects the whole document. The default.
	UnknownKeyFail UnknownFeatureKeyStrategy = iota

	// UnknownKeySkip drops the flag and reports it through OnSkippedKey.
	UnknownKeySkip
)

// DecodeOptions tune Decode and ApplyPatch.
type DecodeOptions struct {
	UnknownKeys UnknownFeatureKeyStrategy

	// OnSkippedKey is invoked for each key dropped under UnknownKeySkip.
	OnSkippedKey func(key string)
}

// Decode parses wire JSON into a configuration snapshot against the trusted
// catalog. A non-nil error is always a *ParseError; on failure no
// configuration is returned and nothing observable has changed.
func Decode(data []byte, catalog *feature.Catalog, opts DecodeOptions) (*snapshot.Config, error) {
	var wire snapshotWire
	if err := structuralDecode(data, &wire); err != nil {
		return nil, err
	}
	return reconstruct(wire, catalog, opts)
}

func structuralDecode(data []byte, into any) error {
	if !json.Valid(data) {
		return parseFailure(ErrInvalidJSON, "input is not well-formed JSON")
	}

	schema, err := structuralSchema()
	if err != nil {
		return parseFailureWrap(ErrInvalidSnapshot, "schema unavailable", err)
	}
	if result := schema.ValidateJSON(data); !result.IsValid() {
		return parseFailure(ErrInvalidSnapshot, fmt.Sprintf("document does not match the snapshot shape: %v", result.Errors))
	}

	if err := json.Unmarshal(data, into); err != nil {
		return parseFailureWrap(ErrInvalidSnapshot, "decode snapshot document", err)
	}
	return nil
}

func reconstruct(wire snapshotWire, catalog *feature.Catalog, opts DecodeOptions) (*snapshot.Config, error) {
	builder := snapshot.NewBuilder()
	if wire.Meta != nil {
		builder.Meta(decodeMeta(*wire.Meta))
	}

	for _, flag := range wire.Flags {
		def, skip, err := decodeFlag(flag, catalog, opts)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		builder.Define(def)
	}

	cfg, err := builder.Build()
	if err != nil {
		return nil, parseFailureWrap(ErrInvalidSnapshot, "assemble snapshot", err)
	}
	return cfg, nil
}

func decodeMeta(wire metaWire) snapshot.Meta {
	meta := snapshot.Meta{}
	if wire.Version != nil {
		meta.Version = *wire.Version
	}
	if wire.GeneratedAtEpochMillis != nil {
		meta.GeneratedAt = time.UnixMilli(*wire.GeneratedAtEpochMillis).UTC()
	}
	if wire.Source != nil {
		meta.Source = *wire.Source
	}
	return meta
}

func decodeFlag(wire flagWire, catalog *feature.Catalog, opts DecodeOptions) (snapshot.FlagDefinition, bool, error) {
	f, known := catalog.Lookup(wire.Key)
	if !known {
		if opts.UnknownKeys == UnknownKeySkip {
			if opts.OnSkippedKey != nil {
				opts.OnSkippedKey(wire.Key)
			}
			return snapshot.FlagDefinition{}, true, nil
		}
		return snapshot.FlagDefinition{}, false,
			parseFailure(ErrUnknownFeatureKey, fmt.Sprintf("flag %q is not in the trusted catalog", wire.Key))
	}

	defaultValue, err := decodeValue(wire.DefaultValue, f.ValueKind(), fmt.Sprintf("flag %q default", wire.Key))
	if err != nil {
		return snapshot.FlagDefinition{}, false, err
	}

	allowlist, err := decodeAllowlist(wire.RampUpAllowlist, fmt.Sprintf("flag %q", wire.Key))
	if err != nil {
		return snapshot.FlagDefinition{}, false, err
	}

	bindings := make([]snapshot.RuleBinding, 0, len(wire.Rules))
	for i, rule := range wire.Rules {
		binding, err := decodeRuleBinding(rule, f, fmt.Sprintf("flag %q rule %d", wire.Key, i))
		if err != nil {
			return snapshot.FlagDefinition{}, false, err
		}
		bindings = append(bindings, binding)
	}

	return snapshot.FlagDefinition{
		Feature:   f,
		Default:   defaultValue,
		Active:    wire.IsActive,
		Salt:      wire.Salt,
		Allowlist: allowlist,
		Bindings:  bindings,
	}, false, nil
}

func decodeRuleBinding(wire ruleWire, f *feature.Feature, where string) (snapshot.RuleBinding, error) {
	value, err := decodeValue(wire.Value, f.ValueKind(), where)
	if err != nil {
		return snapshot.RuleBinding{}, err
	}

	if wire.RampUp < 0 || wire.RampUp > 100 {
		return snapshot.RuleBinding{},
			parseFailure(ErrInvalidRollout, fmt.Sprintf("%s: ramp-up %v out of range [0, 100]", where, wire.RampUp))
	}

	allowlist, err := decodeAllowlist(wire.RampUpAllowlist, where)
	if err != nil {
		return snapshot.RuleBinding{}, err
	}

	versions, err := decodeVersionRange(wire.VersionRange, where)
	if err != nil {
		return snapshot.RuleBinding{}, err
	}

	rule := rules.Rule{
		Versions:  versions,
		RampUp:    wire.RampUp,
		Allowlist: allowlist,
	}
	for _, locale := range wire.Locales {
		rule.Locales = append(rule.Locales, feature.LocaleID(locale))
	}
	for _, platform := range wire.Platforms {
		rule.Platforms = append(rule.Platforms, feature.PlatformID(platform))
	}
	if len(wire.Axes) > 0 {
		rule.Axes = make(map[feature.AxisID][]feature.AxisValueID, len(wire.Axes))
		for axis, values := range wire.Axes {
			ids := make([]feature.AxisValueID, 0, len(values))
			for _, v := range values {
				ids = append(ids, feature.AxisValueID(v))
			}
			rule.Axes[feature.AxisID(axis)] = ids
		}
	}
	if wire.Note != nil {
		rule.Note = *wire.Note
	}

	return snapshot.RuleBinding{Rule: rule, Value: value}, nil
}

func decodeAllowlist(encoded []string, where string) ([]feature.StableID, error) {
	if len(encoded) == 0 {
		return nil, nil
	}
	ids := make([]feature.StableID, 0, len(encoded))
	for _, s := range encoded {
		id, err := feature.ParseStableID(s)
		if err != nil {
			return nil, parseFailureWrap(ErrInvalidIdentifier, fmt.Sprintf("%s: allowlist entry %q", where, s), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func decodeVersionRange(wire *versionRangeWire, where string) (rules.VersionRange, error) {
	if wire == nil || wire.Type == string(rules.RangeUnbounded) {
		return rules.Unbounded(), nil
	}

	decodeBound := func(bound *versionWire, name string) (feature.Version, error) {
		if bound == nil {
			return feature.Version{},
				parseFailure(ErrInvalidVersion, fmt.Sprintf("%s: version range %s requires %q", where, wire.Type, name))
		}
		if bound.Major < 0 || bound.Minor < 0 || bound.Patch < 0 {
			return feature.Version{},
				parseFailure(ErrInvalidVersion, fmt.Sprintf("%s: version %s bound has negative part", where, name))
		}
		return feature.Version{Major: bound.Major, Minor: bound.Minor, Patch: bound.Patch}, nil
	}

	switch wire.Type {
	case string(rules.RangeMinBound):
		min, err := decodeBound(wire.Min, "min")
		if err != nil {
			return rules.VersionRange{}, err
		}
		return rules.AtLeast(min), nil
	case string(rules.RangeMaxBound):
		max, err := decodeBound(wire.Max, "max")
		if err != nil {
			return rules.VersionRange{}, err
		}
		return rules.AtMost(max), nil
	case string(rules.RangeMinAndMax):
		min, err := decodeBound(wire.Min, "min")
		if err != nil {
			return rules.VersionRange{}, err
		}
		max, err := decodeBound(wire.Max, "max")
		if err != nil {
			return rules.VersionRange{}, err
		}
		return rules.Between(min, max), nil
	default:
		return rules.VersionRange{},
			parseFailure(ErrInvalidVersion, fmt.Sprintf("%s: unknown version range type %q", where, wire.Type))
	}
}

// decodeValue decodes a tagged payload as the trusted kind. The embedded
// type tag is never consulted.
func decodeValue(wire valueWire, kind feature.Kind, where string) (feature.Value, error) {
	fail := func(err error) error {
		return parseFailureWrap(ErrInvalidSnapshot, fmt.Sprintf("%s: payload does not decode as %s", where, kind), err)
	}

	switch kind {
	case feature.KindBool:
		var v bool
		if err := json.Unmarshal(wire.Value, &v); err != nil {
			return nil, fail(err)
		}
		return feature.Bool(v), nil
	case feature.KindString:
		var v string
		if err := json.Unmarshal(wire.Value, &v); err != nil {
			return nil, fail(err)
		}
		return feature.String(v), nil
	case feature.KindInt:
		var v int64
		if err := json.Unmarshal(wire.Value, &v); err != nil {
			return nil, fail(err)
		}
		return feature.Int(v), nil
	case feature.KindDouble:
		var v float64
		if err := json.Unmarshal(wire.Value, &v); err != nil {
			return nil, fail(err)
		}
		return feature.Double(v), nil
	case feature.KindEnum:
		var name string
		if err := json.Unmarshal(wire.Value, &name); err != nil {
			return nil, fail(err)
		}
		return feature.Enum{Name: name, EnumType: wire.EnumClassName}, nil
	case feature.KindRecord:
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(wire.Value, &raw); err != nil {
			return nil, fail(err)
		}
		fields := make(map[string]feature.Value, len(raw))
		for name, encoded := range raw {
			primitive, err := decodePrimitive(encoded)
			if err != nil {
				return nil, fail(fmt.Errorf("field %q: %w", name, err))
			}
			fields[name] = primitive
		}
		return feature.NewRecord(wire.DataClassName, fields), nil
	default:
		return nil, parseFailure(ErrInvalidSnapshot, fmt.Sprintf("%s: unsupported value kind %q", where, kind))
	}
}

// decodePrimitive decodes a record field: bool, string, or number. Numbers
// without a fraction or exponent decode as Int, everything else as Double.
func decodePrimitive(raw json.RawMessage) (feature.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch value := v.(type) {
	case bool:
		return feature.Bool(value), nil
	case string:
		return feature.String(value), nil
	case json.Number:
		if i, err := strconv.ParseInt(value.String(), 10, 64); err == nil {
			return feature.Int(i), nil
		}
		f, err := value.Float64()
		if err != nil {
			return nil, err
		}
		return feature.Double(f), nil
	default:
		return nil, fmt.Errorf("record fields must be primitive, got %T", v)
	}
}
