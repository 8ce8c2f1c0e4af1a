// Package main is the vexil command: operator tooling over snapshot files.
//
//	vexil validate -catalog catalog.json snapshot.json
//	vexil encode   -catalog catalog.json snapshot.json
//	vexil eval     -catalog catalog.json -snapshot s.json -context ctx.json -feature <wire key>
//	vexil shadow   -catalog catalog.json -baseline a.json -candidate b.json -contexts ctxs.json
//
// The bootstrap sequence mirrors the rest of the tooling here: load env
// configuration, build the logger, initialise tracing, then run the chosen
// command inside a span.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/calehm/vexil/internal/cli"
	"github.com/calehm/vexil/internal/logging"
	"github.com/calehm/vexil/internal/tracing"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("vexil failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := cli.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	shutdownTracer, err := tracing.Init(context.Background(), cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown error", "err", err)
		}
	}()

	if len(args) == 0 {
		usage()
		return fmt.Errorf("no command given")
	}

	command := args[0]
	rest := args[1:]

	ctx, span := otel.Tracer("vexil").Start(context.Background(), "vexil."+command)
	defer span.End()

	switch command {
	case "validate":
		return runValidate(ctx, log, rest)
	case "encode":
		return runEncode(ctx, log, rest)
	case "eval":
		return runEval(ctx, log, rest)
	case "shadow":
		return runShadow(ctx, log, rest)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: vexil <command> [flags]

commands:
  validate   decode a snapshot against a catalog and report typed errors
  encode     decode then re-encode a snapshot in canonical form
  eval       evaluate one feature for one context
  shadow     replay contexts against baseline and candidate snapshots`)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
