package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/calehm/vexil/codec"
	"github.com/calehm/vexil/feature"
	"github.com/calehm/vexil/internal/cli"
	"github.com/calehm/vexil/registry"
	"github.com/calehm/vexil/snapshot"
)

func runValidate(_ context.Context, log *slog.Logger, args []string) error {
	fs := newFlagSet("validate")
	catalogPath := fs.String("catalog", "", "catalog descriptor file (required)")
	skipUnknown := fs.Bool("skip-unknown", false, "skip flags with unknown keys instead of failing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *catalogPath == "" || fs.NArg() != 1 {
		return fmt.Errorf("usage: vexil validate -catalog <file> [-skip-unknown] <snapshot>")
	}

	catalog, err := cli.LoadCatalog(*catalogPath)
	if err != nil {
		return err
	}

	cfg, err := decodeSnapshotFile(fs.Arg(0), catalog, decodeOptions(*skipUnknown, log))
	if err != nil {
		return err
	}

	log.Info("snapshot is valid", "file", fs.Arg(0), "features", cfg.Len())
	return nil
}

func runEncode(_ context.Context, log *slog.Logger, args []string) error {
	fs := newFlagSet("encode")
	catalogPath := fs.String("catalog", "", "catalog descriptor file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *catalogPath == "" || fs.NArg() != 1 {
		return fmt.Errorf("usage: vexil encode -catalog <file> <snapshot>")
	}

	catalog, err := cli.LoadCatalog(*catalogPath)
	if err != nil {
		return err
	}

	cfg, err := decodeSnapshotFile(fs.Arg(0), catalog, codec.DecodeOptions{})
	if err != nil {
		return err
	}

	canonical, err := codec.Encode(cfg)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	fmt.Println(string(canonical))
	return nil
}

func runEval(_ context.Context, log *slog.Logger, args []string) error {
	fs := newFlagSet("eval")
	catalogPath := fs.String("catalog", "", "catalog descriptor file (required)")
	snapshotPath := fs.String("snapshot", "", "snapshot file (required)")
	contextPath := fs.String("context", "", "evaluation context file (required)")
	featureKey := fs.String("feature", "", "feature wire key (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *catalogPath == "" || *snapshotPath == "" || *contextPath == "" || *featureKey == "" {
		return fmt.Errorf("usage: vexil eval -catalog <file> -snapshot <file> -context <file> -feature <key>")
	}

	catalog, err := cli.LoadCatalog(*catalogPath)
	if err != nil {
		return err
	}

	cfg, err := decodeSnapshotFile(*snapshotPath, catalog, codec.DecodeOptions{})
	if err != nil {
		return err
	}

	ctx, err := decodeContextFile(*contextPath)
	if err != nil {
		return err
	}

	f, ok := catalog.Lookup(*featureKey)
	if !ok {
		return fmt.Errorf("feature %q is not in the catalog", *featureKey)
	}

	reg := newRegistry(log)
	reg.Load(cfg)

	value, decision, err := reg.Evaluate(f, ctx)
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", f.WireKey(), err)
	}

	return printJSON(map[string]any{
		"feature":  f.WireKey(),
		"value":    renderValue(value),
		"decision": string(decision.Kind),
	})
}

func runShadow(_ context.Context, log *slog.Logger, args []string) error {
	fs := newFlagSet("shadow")
	catalogPath := fs.String("catalog", "", "catalog descriptor file (required)")
	baselinePath := fs.String("baseline", "", "baseline snapshot file (required)")
	candidatePath := fs.String("candidate", "", "candidate snapshot file (required)")
	contextsPath := fs.String("contexts", "", "JSON array of evaluation contexts (required)")
	decisions := fs.Bool("decisions", false, "also report decision-kind mismatches")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *catalogPath == "" || *baselinePath == "" || *candidatePath == "" || *contextsPath == "" {
		return fmt.Errorf("usage: vexil shadow -catalog <file> -baseline <file> -candidate <file> -contexts <file>")
	}

	catalog, err := cli.LoadCatalog(*catalogPath)
	if err != nil {
		return err
	}

	baselineCfg, err := decodeSnapshotFile(*baselinePath, catalog, codec.DecodeOptions{})
	if err != nil {
		return err
	}
	candidateCfg, err := decodeSnapshotFile(*candidatePath, catalog, codec.DecodeOptions{})
	if err != nil {
		return err
	}

	contexts, err := decodeContextsFile(*contextsPath)
	if err != nil {
		return err
	}

	baseline := newRegistry(log)
	baseline.Load(baselineCfg)
	candidate := newRegistry(log)
	candidate.Load(candidateCfg)

	opts := registry.ShadowOptions{ReportDecisionMismatches: *decisions}

	// Replay every context against every feature the baseline configures;
	// the candidate path never affects the reported baseline values.
	type mismatchReport struct {
		Feature   string `json:"feature"`
		Context   int    `json:"context"`
		Baseline  any    `json:"baseline"`
		Candidate any    `json:"candidate"`
		Kinds     string `json:"kinds,omitempty"`
	}
	var mismatches []mismatchReport

	for i, ctx := range contexts {
		for _, f := range baselineCfg.Features() {
			index := i
			registry.EvaluateWithShadow(f, ctx, candidate, baseline, opts, func(m registry.Mismatch) {
				report := mismatchReport{
					Feature:   m.Feature.WireKey(),
					Context:   index,
					Baseline:  renderOutcome(m.Baseline),
					Candidate: renderOutcome(m.Candidate),
				}
				if m.DecisionDiffers {
					report.Kinds = fmt.Sprintf("%s != %s", m.Baseline.Decision.Kind, m.Candidate.Decision.Kind)
				}
				mismatches = append(mismatches, report)
			})
		}
	}

	log.Info("shadow replay finished",
		"contexts", len(contexts),
		"features", baselineCfg.Len(),
		"mismatches", len(mismatches))

	if err := printJSON(map[string]any{
		"contexts":   len(contexts),
		"features":   baselineCfg.Len(),
		"mismatches": mismatches,
	}); err != nil {
		return err
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%d mismatch(es) between baseline and candidate", len(mismatches))
	}
	return nil
}

func newRegistry(log *slog.Logger) *registry.Registry {
	return registry.New(registry.WithLogger(loggerHooks(log)))
}

func decodeOptions(skipUnknown bool, log *slog.Logger) codec.DecodeOptions {
	opts := codec.DecodeOptions{}
	if skipUnknown {
		opts.UnknownKeys = codec.UnknownKeySkip
		opts.OnSkippedKey = func(key string) {
			log.Warn("skipping unknown feature key", "key", key)
		}
	}
	return opts
}

func decodeSnapshotFile(path string, catalog *feature.Catalog, opts codec.DecodeOptions) (*snapshot.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	cfg, err := codec.Decode(data, catalog, opts)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

func decodeContextFile(path string) (*feature.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context: %w", err)
	}
	ctx, err := codec.DecodeContext(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ctx, nil
}
