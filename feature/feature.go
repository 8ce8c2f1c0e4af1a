// Package feature defines the identity model for configurable values: typed
// feature declarations, the trusted catalog that owns them, tagged values,
// stable bucketing identities, and the per-request evaluation context.
//
// Features are compared by identity, never by string: a *Feature pointer is
// minted exactly once by a Catalog and used as a map key everywhere else.
// The wire key string exists only at the codec boundary.
package feature

import (
	"errors"
	"fmt"
	"strings"
)

const wireKeyPrefix = "feature"

// Feature names one configurable value: a namespace plus key, the declared
// value kind, and the axes its targeting rules are allowed to assume. A
// Feature is created once at declaration time and is immutable.
type Feature struct {
	namespace    string
	key          string
	kind         Kind
	requiredAxes []AxisID
}

// Namespace returns the namespace seed the feature was declared under.
func (f *Feature) Namespace() string { return f.namespace }

// Key returns the feature's short key within its namespace.
func (f *Feature) Key() string { return f.key }

// ValueKind returns the declared value type.
func (f *Feature) ValueKind() Kind { return f.kind }

// RequiredAxes returns the axes the feature's context is expected to carry.
// Extension predicates relying on an axis outside this set should fail
// closed rather than assume it is present.
func (f *Feature) RequiredAxes() []AxisID {
	out := make([]AxisID, len(f.requiredAxes))
	copy(out, f.requiredAxes)
	return out
}

// WireKey returns the serialized identity, "feature::<namespace>::<key>".
func (f *Feature) WireKey() string {
	return wireKeyPrefix + "::" + f.namespace + "::" + f.key
}

func (f *Feature) String() string {
	return f.WireKey()
}

// FeatureOption configures optional declaration state.
type FeatureOption func(*Feature)

// RequiresAxes declares the axes the feature's context must carry.
func RequiresAxes(axes ...AxisID) FeatureOption {
	return func(f *Feature) {
		f.requiredAxes = append(f.requiredAxes, axes...)
	}
}

// Catalog is the trusted set of declared features. It replaces any notion of
// a process-global feature registry: every call that resolves a wire key
// takes an explicit Catalog, so test isolation is structural rather than
// incidental.
//
// A Catalog is built once at startup and is read-only afterwards; Register
// is not safe for concurrent use with itself, Lookup is safe once
// registration is done.
type Catalog struct {
	byWireKey map[string]*Feature
	order     []*Feature
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byWireKey: make(map[string]*Feature)}
}

// Register declares a feature. Namespace and key must be non-empty and must
// not contain the "::" separator; duplicate wire keys are rejected.
func (c *Catalog) Register(namespace, key string, kind Kind, opts ...FeatureOption) (*Feature, error) {
	if err := validateIdentifierPart("namespace", namespace); err != nil {
		return nil, err
	}
	if err := validateIdentifierPart("key", key); err != nil {
		return nil, err
	}
	switch kind {
	case KindBool, KindString, KindInt, KindDouble, KindEnum, KindRecord:
	default:
		return nil, fmt.Errorf("unknown value kind %q", kind)
	}

	f := &Feature{namespace: namespace, key: key, kind: kind}
	for _, opt := range opts {
		opt(f)
	}

	wireKey := f.WireKey()
	if _, exists := c.byWireKey[wireKey]; exists {
		return nil, fmt.Errorf("feature %s already registered", wireKey)
	}

	c.byWireKey[wireKey] = f
	c.order = append(c.order, f)
	return f, nil
}

// MustRegister is Register for static declarations; it panics on error.
func (c *Catalog) MustRegister(namespace, key string, kind Kind, opts ...FeatureOption) *Feature {
	f, err := c.Register(namespace, key, kind, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Lookup resolves a wire key to its declared feature.
func (c *Catalog) Lookup(wireKey string) (*Feature, bool) {
	f, ok := c.byWireKey[wireKey]
	return f, ok
}

// Features returns all declared features in registration order.
func (c *Catalog) Features() []*Feature {
	out := make([]*Feature, len(c.order))
	copy(out, c.order)
	return out
}

func validateIdentifierPart(what, s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("feature " + what + " is required")
	}
	if strings.Contains(s, "::") {
		return fmt.Errorf("feature %s %q must not contain %q", what, s, "::")
	}
	return nil
}
