// Package registry owns the only mutable state in the system: the current
// configuration snapshot, its bounded rollback history, the namespace kill
// switch, and per-feature override stacks. Snapshots are replaced, never
// mutated, so evaluation reads are lock-free: readers observe either the
// pre-load or post-load snapshot atomically, never a mix.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/calehm/vexil/feature"
	"github.com/calehm/vexil/hooks"
	"github.com/calehm/vexil/snapshot"
)

// DefaultHistoryCapacity bounds the rollback history unless overridden.
const DefaultHistoryCapacity = 10

// ErrFeatureNotFound reports an evaluation or lookup against a feature that
// is absent from the current snapshot and has no override. This is an
// integration error (a trusted-catalog mismatch), distinct from the codec's
// parse errors.
var ErrFeatureNotFound = errors.New("feature not configured")

// Registry manages one namespace's configuration. The zero value is not
// usable; construct with New.
type Registry struct {
	// mu serializes writers: Load, Rollback, and UpdateDefinition perform a
	// read-modify-write of (current, history) that must not interleave.
	mu         sync.Mutex
	history    []*snapshot.Config
	historyCap int
	loadedOnce bool
	current    atomic.Pointer[snapshot.Config]
	disabled   atomic.Bool
	ovMu       sync.RWMutex
	overrides  map[*feature.Feature][]feature.Value
	logger     hooks.Logger
	metrics    hooks.Metrics
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithHistoryCapacity bounds the rollback history; values below 1 keep the
// default.
func WithHistoryCapacity(n int) Option {
	return func(r *Registry) {
		if n >= 1 {
			r.historyCap = n
		}
	}
}

// WithLogger installs a diagnostic logger.
func WithLogger(logger hooks.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(metrics hooks.Metrics) Option {
	return func(r *Registry) {
		if metrics != nil {
			r.metrics = metrics
		}
	}
}

// New returns a registry holding an empty configuration, with the kill
// switch off and no overrides.
func New(opts ...Option) *Registry {
	r := &Registry{
		historyCap: DefaultHistoryCapacity,
		overrides:  make(map[*feature.Feature][]feature.Value),
		logger:     hooks.NopLogger(),
		metrics:    hooks.NopMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(snapshot.Empty())
	return r
}

// Current returns the active snapshot. The returned value is immutable and
// safe to read concurrently with loads.
func (r *Registry) Current() *snapshot.Config {
	return r.current.Load()
}

// Load atomically publishes a new snapshot, pushing the previous one onto
// the rollback history (oldest evicted beyond capacity). The pristine empty
// configuration a registry starts with never enters history.
func (r *Registry) Load(cfg *snapshot.Config) {
	if cfg == nil {
		cfg = snapshot.Empty()
	}

	r.mu.Lock()
	if r.loadedOnce {
		r.history = append(r.history, r.current.Load())
		if len(r.history) > r.historyCap {
			r.history = r.history[len(r.history)-r.historyCap:]
		}
	}
	r.loadedOnce = true
	r.current.Store(cfg)
	depth := len(r.history)
	r.mu.Unlock()

	r.metrics.RecordLoad(hooks.LoadEvent{
		FeatureCount: cfg.Len(),
		HistoryDepth: depth,
		Version:      cfg.Meta().Version,
	})
	r.logger.Info(func() string {
		return fmt.Sprintf("loaded snapshot: features=%d history=%d version=%q",
			cfg.Len(), depth, cfg.Meta().Version)
	})
}

// Rollback restores the snapshot from `steps` loads ago. It returns false
// without changing state when the history is too shallow; that is a normal
// outcome, not an error. The restored entry and everything after it leave
// the history, so a rollback cannot be re-rolled forward.
func (r *Registry) Rollback(steps int) bool {
	if steps < 1 {
		return false
	}

	r.mu.Lock()
	if len(r.history) < steps {
		depth := len(r.history)
		r.mu.Unlock()
		r.metrics.RecordRollback(hooks.RollbackEvent{Steps: steps, Succeeded: false, HistoryDepth: depth})
		r.logger.Warn(func() string {
			return fmt.Sprintf("rollback of %d refused: history depth %d", steps, depth)
		})
		return false
	}

	target := r.history[len(r.history)-steps]
	r.history = r.history[:len(r.history)-steps]
	r.current.Store(target)
	depth := len(r.history)
	r.mu.Unlock()

	r.metrics.RecordRollback(hooks.RollbackEvent{Steps: steps, Succeeded: true, HistoryDepth: depth})
	r.logger.Info(func() string {
		return fmt.Sprintf("rolled back %d snapshot(s): history=%d", steps, depth)
	})
	return true
}

// HistoryDepth returns the number of snapshots available to roll back to.
func (r *Registry) HistoryDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// UpdateDefinition replaces a single feature's definition in the current
// snapshot. The patched snapshot does not enter rollback history.
func (r *Registry) UpdateDefinition(def snapshot.FlagDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := r.current.Load().WithDefinition(def)
	if err != nil {
		return fmt.Errorf("update definition: %w", err)
	}
	r.current.Store(next)
	return nil
}

// DisableAll engages the kill switch: every evaluation returns its default.
func (r *Registry) DisableAll() {
	r.disabled.Store(true)
	r.logger.Warn(func() string { return "kill switch engaged: all features disabled" })
}

// EnableAll releases the kill switch.
func (r *Registry) EnableAll() {
	r.disabled.Store(false)
	r.logger.Info(func() string { return "kill switch released" })
}

// Disabled reports whether the kill switch is engaged.
func (r *Registry) Disabled() bool {
	return r.disabled.Load()
}

// SetOverride pushes a value onto the feature's override stack. While any
// override is present, evaluation of that feature short-circuits to the
// override value. Stacks are LIFO so nested test scopes compose.
func (r *Registry) SetOverride(f *feature.Feature, value feature.Value) {
	if f == nil || value == nil {
		return
	}
	r.ovMu.Lock()
	r.overrides[f] = append(r.overrides[f], value)
	r.ovMu.Unlock()
}

// ClearOverride pops the feature's most recent override. Clearing an empty
// stack is a no-op.
func (r *Registry) ClearOverride(f *feature.Feature) {
	r.ovMu.Lock()
	stack := r.overrides[f]
	if n := len(stack); n > 0 {
		if n == 1 {
			delete(r.overrides, f)
		} else {
			r.overrides[f] = stack[:n-1]
		}
	}
	r.ovMu.Unlock()
}

// Definition returns the feature's effective definition. An override
// replaces the definition with one whose default is the override value and
// whose rule list is empty. A feature with no override and no entry in the
// current snapshot reports ErrFeatureNotFound.
func (r *Registry) Definition(f *feature.Feature) (snapshot.FlagDefinition, error) {
	def, _, err := r.effectiveDefinition(f, r.current.Load())
	return def, err
}

func (r *Registry) effectiveDefinition(f *feature.Feature, cfg *snapshot.Config) (snapshot.FlagDefinition, bool, error) {
	if f == nil {
		return snapshot.FlagDefinition{}, false, errors.New("feature is nil")
	}

	r.ovMu.RLock()
	stack := r.overrides[f]
	var override feature.Value
	if len(stack) > 0 {
		override = stack[len(stack)-1]
	}
	r.ovMu.RUnlock()

	if override != nil {
		return snapshot.FlagDefinition{Feature: f, Default: override, Active: true}, true, nil
	}

	def, ok := cfg.Definition(f)
	if !ok {
		return snapshot.FlagDefinition{}, false, fmt.Errorf("%w: %s", ErrFeatureNotFound, f.WireKey())
	}
	return def, false, nil
}
