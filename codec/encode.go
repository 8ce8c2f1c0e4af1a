package codec

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"

	"github.com/calehm/vexil/feature"
	"github.com/calehm/vexil/rules"
	"github.com/calehm/vexil/snapshot"
)

// Encode serializes a snapshot to its canonical wire form (RFC 8785 JCS),
// so byte-equal output means semantically equal documents.
//
// Code-bearing parts of a snapshot have no wire representation: a binding
// with a deferred resolver and no static value, or a rule with an extension
// leaf, cannot be encoded and returns an error.
func Encode(cfg *snapshot.Config) ([]byte, error) {
	wire := snapshotWire{Flags: make([]flagWire, 0, cfg.Len())}

	if meta := cfg.Meta(); meta != (snapshot.Meta{}) {
		encoded := metaWire{}
		if meta.Version != "" {
			v := meta.Version
			encoded.Version = &v
		}
		if !meta.GeneratedAt.IsZero() {
			millis := meta.GeneratedAt.UnixMilli()
			encoded.GeneratedAtEpochMillis = &millis
		}
		if meta.Source != "" {
			s := meta.Source
			encoded.Source = &s
		}
		wire.Meta = &encoded
	}

	for _, f := range cfg.Features() {
		def, _ := cfg.Definition(f)
		flag, err := encodeFlag(f, def)
		if err != nil {
			return nil, err
		}
		wire.Flags = append(wire.Flags, flag)
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize snapshot: %w", err)
	}
	return canonical, nil
}

func encodeFlag(f *feature.Feature, def snapshot.FlagDefinition) (flagWire, error) {
	defaultValue, err := encodeValue(def.Default)
	if err != nil {
		return flagWire{}, fmt.Errorf("flag %s default: %w", f.WireKey(), err)
	}

	wire := flagWire{
		Key:             f.WireKey(),
		DefaultValue:    defaultValue,
		Salt:            def.Salt,
		IsActive:        def.Active,
		RampUpAllowlist: encodeAllowlist(def.Allowlist),
	}

	for i, binding := range def.Bindings {
		rule, err := encodeRuleBinding(binding)
		if err != nil {
			return flagWire{}, fmt.Errorf("flag %s rule %d: %w", f.WireKey(), i, err)
		}
		wire.Rules = append(wire.Rules, rule)
	}
	return wire, nil
}

func encodeRuleBinding(binding snapshot.RuleBinding) (ruleWire, error) {
	if binding.Resolve != nil && binding.Value == nil {
		return ruleWire{}, fmt.Errorf("deferred resolver has no wire representation")
	}
	if binding.Rule.Extension != nil {
		return ruleWire{}, fmt.Errorf("extension leaf %q has no wire representation", binding.Rule.Extension.Name)
	}

	value, err := encodeValue(binding.Value)
	if err != nil {
		return ruleWire{}, err
	}

	wire := ruleWire{
		Value:           value,
		RampUp:          binding.Rule.RampUp,
		RampUpAllowlist: encodeAllowlist(binding.Rule.Allowlist),
	}
	if binding.Rule.Note != "" {
		note := binding.Rule.Note
		wire.Note = &note
	}
	for _, locale := range binding.Rule.Locales {
		wire.Locales = append(wire.Locales, string(locale))
	}
	for _, platform := range binding.Rule.Platforms {
		wire.Platforms = append(wire.Platforms, string(platform))
	}
	if len(binding.Rule.Axes) > 0 {
		wire.Axes = make(map[string][]string, len(binding.Rule.Axes))
		for axis, values := range binding.Rule.Axes {
			encoded := make([]string, 0, len(values))
			for _, v := range values {
				encoded = append(encoded, string(v))
			}
			wire.Axes[string(axis)] = encoded
		}
	}
	if binding.Rule.Versions.Bounded() {
		wire.VersionRange = encodeVersionRange(binding.Rule.Versions)
	} else {
		wire.VersionRange = &versionRangeWire{Type: string(rules.RangeUnbounded)}
	}
	return wire, nil
}

func encodeVersionRange(r rules.VersionRange) *versionRangeWire {
	wire := &versionRangeWire{Type: string(r.Kind)}
	switch r.Kind {
	case rules.RangeMinBound:
		wire.Min = encodeVersion(r.Min)
	case rules.RangeMaxBound:
		wire.Max = encodeVersion(r.Max)
	case rules.RangeMinAndMax:
		wire.Min = encodeVersion(r.Min)
		wire.Max = encodeVersion(r.Max)
	}
	return wire
}

func encodeVersion(v feature.Version) *versionWire {
	return &versionWire{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
}

func encodeAllowlist(ids []feature.StableID) []string {
	if len(ids) == 0 {
		return nil
	}
	encoded := make([]string, 0, len(ids))
	for _, id := range ids {
		encoded = append(encoded, id.Hex())
	}
	return encoded
}

func encodeValue(value feature.Value) (valueWire, error) {
	switch v := value.(type) {
	case feature.Bool:
		return taggedValue(feature.KindBool, bool(v))
	case feature.String:
		return taggedValue(feature.KindString, string(v))
	case feature.Int:
		return taggedValue(feature.KindInt, int64(v))
	case feature.Double:
		return taggedValue(feature.KindDouble, float64(v))
	case feature.Enum:
		wire, err := taggedValue(feature.KindEnum, v.Name)
		if err != nil {
			return valueWire{}, err
		}
		wire.EnumClassName = v.EnumType
		return wire, nil
	case feature.Record:
		fields := v.Fields()
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		payload := make(map[string]json.RawMessage, len(fields))
		for _, name := range names {
			encoded, err := encodePrimitive(fields[name])
			if err != nil {
				return valueWire{}, fmt.Errorf("field %q: %w", name, err)
			}
			payload[name] = encoded
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return valueWire{}, err
		}
		return valueWire{Type: string(feature.KindRecord), Value: raw, DataClassName: v.TypeName}, nil
	case nil:
		return valueWire{}, fmt.Errorf("value is nil")
	default:
		return valueWire{}, fmt.Errorf("unsupported value type %T", value)
	}
}

func encodePrimitive(value feature.Value) (json.RawMessage, error) {
	switch v := value.(type) {
	case feature.Bool:
		return json.Marshal(bool(v))
	case feature.String:
		return json.Marshal(string(v))
	case feature.Int:
		return json.Marshal(int64(v))
	case feature.Double:
		return json.Marshal(float64(v))
	default:
		return nil, fmt.Errorf("record fields must be primitive, got %T", value)
	}
}

func taggedValue(kind feature.Kind, payload any) (valueWire, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return valueWire{}, err
	}
	return valueWire{Type: string(kind), Value: raw}, nil
}
