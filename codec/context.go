package codec

import (
	"encoding/json"
	"fmt"

	"github.com/calehm/vexil/feature"
)

type contextWire struct {
	Locale   string              `json:"locale"`
	Platform string              `json:"platform"`
	Version  string              `json:"version"`
	StableID string              `json:"stableId"`
	Axes     map[string][]string `json:"axes,omitempty"`
}

// DecodeContext parses an evaluation context document:
//
//	{"locale": "en-US", "platform": "IOS", "version": "1.2.3",
//	 "stableId": "<32 hex>", "axes": {"tier": ["beta"]}}
//
// Used by replay tooling; a non-nil error is always a *ParseError.
func DecodeContext(data []byte) (*feature.Context, error) {
	if !json.Valid(data) {
		return nil, parseFailure(ErrInvalidJSON, "context is not well-formed JSON")
	}

	var wire contextWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, parseFailureWrap(ErrInvalidSnapshot, "decode context document", err)
	}

	version, err := feature.ParseVersion(wire.Version)
	if err != nil {
		return nil, parseFailureWrap(ErrInvalidVersion, "context version", err)
	}

	id, err := feature.ParseStableID(wire.StableID)
	if err != nil {
		return nil, parseFailureWrap(ErrInvalidIdentifier, "context stable id", err)
	}

	opts := make([]feature.ContextOption, 0, len(wire.Axes))
	for axis, values := range wire.Axes {
		ids := make([]feature.AxisValueID, 0, len(values))
		for _, v := range values {
			ids = append(ids, feature.AxisValueID(v))
		}
		opts = append(opts, feature.WithAxis(feature.AxisID(axis), ids...))
	}

	return feature.NewContext(
		feature.LocaleID(wire.Locale),
		feature.PlatformID(wire.Platform),
		version,
		id,
		opts...,
	), nil
}

// EncodeContext serializes a context in the shape DecodeContext accepts.
func EncodeContext(ctx *feature.Context) ([]byte, error) {
	wire := contextWire{
		Locale:   string(ctx.Locale()),
		Platform: string(ctx.Platform()),
		Version:  ctx.Version().String(),
		StableID: ctx.StableID().Hex(),
	}
	for _, axis := range ctx.Axes() {
		values, _ := ctx.AxisValues(axis)
		encoded := make([]string, 0, len(values))
		for _, v := range values {
			encoded = append(encoded, string(v))
		}
		if wire.Axes == nil {
			wire.Axes = make(map[string][]string)
		}
		wire.Axes[string(axis)] = encoded
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}
	return raw, nil
}
