package codec

import (
	"fmt"

	"github.com/calehm/vexil/feature"
	"github.com/calehm/vexil/snapshot"
)

// ApplyPatch decodes a patch document and merges it onto a base snapshot:
// incoming flags replace existing definitions by key, keys listed in
// removeKeys are deleted, and everything else is untouched. Patch metadata,
// when present, replaces the base metadata.
//
// The base snapshot is never mutated; on any failure it remains the
// caller's intact configuration and the returned error is a *ParseError.
func ApplyPatch(base *snapshot.Config, data []byte, catalog *feature.Catalog, opts DecodeOptions) (*snapshot.Config, error) {
	var wire patchWire
	if err := structuralDecode(data, &wire); err != nil {
		return nil, err
	}

	next := base
	if wire.Meta != nil {
		rebased, err := withMeta(next, decodeMeta(*wire.Meta))
		if err != nil {
			return nil, err
		}
		next = rebased
	}

	for _, key := range wire.RemoveKeys {
		f, known := catalog.Lookup(key)
		if !known {
			if opts.UnknownKeys == UnknownKeySkip {
				if opts.OnSkippedKey != nil {
					opts.OnSkippedKey(key)
				}
				continue
			}
			return nil, parseFailure(ErrUnknownFeatureKey, fmt.Sprintf("removal key %q is not in the trusted catalog", key))
		}
		next = next.WithoutFeature(f)
	}

	for _, flag := range wire.Flags {
		def, skip, err := decodeFlag(flag, catalog, opts)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		patched, err := next.WithDefinition(def)
		if err != nil {
			return nil, parseFailureWrap(ErrInvalidSnapshot, fmt.Sprintf("apply flag %q", flag.Key), err)
		}
		next = patched
	}

	return next, nil
}

func withMeta(cfg *snapshot.Config, meta snapshot.Meta) (*snapshot.Config, error) {
	builder := snapshot.NewBuilder().Meta(meta)
	for _, f := range cfg.Features() {
		def, _ := cfg.Definition(f)
		builder.Define(def)
	}
	rebuilt, err := builder.Build()
	if err != nil {
		return nil, parseFailureWrap(ErrInvalidSnapshot, "apply patch metadata", err)
	}
	return rebuilt, nil
}
