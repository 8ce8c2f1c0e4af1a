// Package celrules compiles CEL expressions into targeting extension
// predicates, for business conditions the standard leaves cannot express
// without hard-coding Go.
//
// Expressions see the evaluation context as:
//
//	locale   string            // "en-US"
//	platform string            // "IOS"
//	version  map[string]int    // {"major": 1, "minor": 2, "patch": 3}
//	stableId string            // canonical hex
//	axes     map[string][]string
//
// Compilation errors surface from Compile. At evaluation time the predicate
// fails closed: an evaluation error or a non-boolean result targets nobody.
package celrules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/calehm/vexil/feature"
	"github.com/calehm/vexil/rules"
)

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error
)

func contextEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(
			cel.Variable("locale", cel.StringType),
			cel.Variable("platform", cel.StringType),
			cel.Variable("version", cel.MapType(cel.StringType, cel.IntType)),
			cel.Variable("stableId", cel.StringType),
			cel.Variable("axes", cel.MapType(cel.StringType, cel.ListType(cel.StringType))),
		)
	})
	return env, envErr
}

// Option configures a compiled extension.
type Option func(*rules.Extension)

// WithWeight sets the extension's self-reported specificity weight.
func WithWeight(weight int) Option {
	return func(e *rules.Extension) {
		e.Weight = weight
	}
}

// Compile builds an extension predicate from a CEL expression. The
// expression must produce a boolean.
func Compile(name, expr string, opts ...Option) (*rules.Extension, error) {
	environment, err := contextEnv()
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, issues := environment.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", name, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("compile %q: expression produces %s, want bool", name, ast.OutputType())
	}

	program, err := environment.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program %q: %w", name, err)
	}

	ext := &rules.Extension{
		Name: name,
		Predicate: func(ctx *feature.Context) bool {
			out, _, err := program.Eval(activation(ctx))
			if err != nil {
				return false
			}
			matched, ok := out.Value().(bool)
			return ok && matched
		},
	}
	for _, opt := range opts {
		opt(ext)
	}
	return ext, nil
}

// MustCompile is Compile for static declarations; it panics on error.
func MustCompile(name, expr string, opts ...Option) *rules.Extension {
	ext, err := Compile(name, expr, opts...)
	if err != nil {
		panic(err)
	}
	return ext
}

func activation(ctx *feature.Context) map[string]any {
	axes := make(map[string][]string)
	for _, axis := range ctx.Axes() {
		values, _ := ctx.AxisValues(axis)
		encoded := make([]string, 0, len(values))
		for _, v := range values {
			encoded = append(encoded, string(v))
		}
		axes[string(axis)] = encoded
	}

	version := ctx.Version()
	return map[string]any{
		"locale":   string(ctx.Locale()),
		"platform": string(ctx.Platform()),
		"version": map[string]int64{
			"major": int64(version.Major),
			"minor": int64(version.Minor),
			"patch": int64(version.Patch),
		},
		"stableId": ctx.StableID().Hex(),
		"axes":     axes,
	}
}
