package codec

import "encoding/json"

// Wire shapes for the snapshot JSON format. These structs exist only at the
// codec boundary; nothing outside this package sees partially-decoded data.

type snapshotWire struct {
	Meta  *metaWire  `json:"meta,omitempty"`
	Flags []flagWire `json:"flags"`
}

type patchWire struct {
	snapshotWire
	RemoveKeys []string `json:"removeKeys,omitempty"`
}

type metaWire struct {
	Version                *string `json:"version,omitempty"`
	GeneratedAtEpochMillis *int64  `json:"generatedAtEpochMillis,omitempty"`
	Source                 *string `json:"source,omitempty"`
}

type flagWire struct {
	Key             string     `json:"key"`
	DefaultValue    valueWire  `json:"defaultValue"`
	Salt            string     `json:"salt"`
	IsActive        bool       `json:"isActive"`
	RampUpAllowlist []string   `json:"rampUpAllowlist,omitempty"`
	Rules           []ruleWire `json:"rules,omitempty"`
}

type ruleWire struct {
	Value           valueWire           `json:"value"`
	RampUp          float64             `json:"rampUp"`
	RampUpAllowlist []string            `json:"rampUpAllowlist,omitempty"`
	Note            *string             `json:"note,omitempty"`
	Locales         []string            `json:"locales,omitempty"`
	Platforms       []string            `json:"platforms,omitempty"`
	Axes            map[string][]string `json:"axes,omitempty"`
	VersionRange    *versionRangeWire   `json:"versionRange,omitempty"`
}

type versionRangeWire struct {
	Type string       `json:"type"`
	Min  *versionWire `json:"min,omitempty"`
	Max  *versionWire `json:"max,omitempty"`
}

type versionWire struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// valueWire is the tagged value shape. Type, enumClassName, and
// dataClassName are informational metadata: decoding always follows the
// trusted feature's declared kind, never the embedded tag, so a payload can
// never steer which decoder runs.
type valueWire struct {
	Type          string          `json:"type"`
	Value         json.RawMessage `json:"value,omitempty"`
	EnumClassName string          `json:"enumClassName,omitempty"`
	DataClassName string          `json:"dataClassName,omitempty"`
}
