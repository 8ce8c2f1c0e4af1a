package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/calehm/vexil/codec"
	"github.com/calehm/vexil/feature"
	"github.com/calehm/vexil/hooks"
	"github.com/calehm/vexil/registry"
)

func loggerHooks(log *slog.Logger) hooks.Logger {
	return hooks.NewSlogLogger(log)
}

// renderValue converts a feature value to plain JSON-marshalable data for
// CLI output.
func renderValue(value feature.Value) any {
	switch v := value.(type) {
	case feature.Bool:
		return bool(v)
	case feature.String:
		return string(v)
	case feature.Int:
		return int64(v)
	case feature.Double:
		return float64(v)
	case feature.Enum:
		return v.Name
	case feature.Record:
		fields := make(map[string]any)
		for name, field := range v.Fields() {
			fields[name] = renderValue(field)
		}
		return fields
	default:
		return nil
	}
}

func renderOutcome(outcome registry.Outcome) any {
	if outcome.Err != nil {
		return map[string]any{"error": outcome.Err.Error()}
	}
	return map[string]any{
		"value":    renderValue(outcome.Value),
		"decision": string(outcome.Decision.Kind),
	}
}

// decodeContextsFile reads a JSON array of evaluation context documents.
func decodeContextsFile(path string) ([]*feature.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contexts: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: expected a JSON array of contexts: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s contains no contexts", path)
	}

	contexts := make([]*feature.Context, 0, len(raw))
	for i, doc := range raw {
		ctx, err := codec.DecodeContext(doc)
		if err != nil {
			return nil, fmt.Errorf("decode %s context %d: %w", path, i, err)
		}
		contexts = append(contexts, ctx)
	}
	return contexts, nil
}
