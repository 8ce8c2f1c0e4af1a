package feature

// Context is the immutable per-evaluation input: who is asking, from where,
// on what. Callers build one per request and never mutate it.
type Context struct {
	locale   LocaleID
	platform PlatformID
	version  Version
	stableID StableID
	axes     map[AxisID][]AxisValueID
}

// ContextOption configures optional Context state at construction time.
type ContextOption func(*Context)

// WithAxis selects values on a custom axis. Calling it twice for the same
// axis replaces the earlier selection.
func WithAxis(axis AxisID, values ...AxisValueID) ContextOption {
	return func(c *Context) {
		selected := make([]AxisValueID, len(values))
		copy(selected, values)
		c.axes[axis] = selected
	}
}

// NewContext builds an evaluation context. The axis mapping is empty unless
// WithAxis options are supplied.
func NewContext(locale LocaleID, platform PlatformID, version Version, id StableID, opts ...ContextOption) *Context {
	c := &Context{
		locale:   locale,
		platform: platform,
		version:  version,
		stableID: id,
		axes:     make(map[AxisID][]AxisValueID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Locale returns the context's locale.
func (c *Context) Locale() LocaleID { return c.locale }

// Platform returns the context's platform.
func (c *Context) Platform() PlatformID { return c.platform }

// Version returns the context's application version.
func (c *Context) Version() Version { return c.version }

// StableID returns the identity used for deterministic bucketing.
func (c *Context) StableID() StableID { return c.stableID }

// AxisValues returns the values selected on an axis. The second return is
// false when the axis is absent from the context; absence is distinct from
// an empty selection.
func (c *Context) AxisValues(axis AxisID) ([]AxisValueID, bool) {
	values, ok := c.axes[axis]
	if !ok {
		return nil, false
	}
	out := make([]AxisValueID, len(values))
	copy(out, values)
	return out, true
}

// HasAxis reports whether the axis is present in the context.
func (c *Context) HasAxis(axis AxisID) bool {
	_, ok := c.axes[axis]
	return ok
}

// Axes returns the axis ids present in the context.
func (c *Context) Axes() []AxisID {
	out := make([]AxisID, 0, len(c.axes))
	for axis := range c.axes {
		out = append(out, axis)
	}
	return out
}
