package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/calehm/vexil/feature"
	"github.com/calehm/vexil/registry"
)

func TestRenderValue(t *testing.T) {
	tests := []struct {
		name  string
		value feature.Value
		want  any
	}{
		{name: "bool", value: feature.Bool(true), want: true},
		{name: "string", value: feature.String("compact"), want: "compact"},
		{name: "int", value: feature.Int(7), want: int64(7)},
		{name: "double", value: feature.Double(1.5), want: 1.5},
		{name: "enum", value: feature.Enum{Name: "DARK", EnumType: "com.example.Theme"}, want: "DARK"},
		{
			name: "record",
			value: feature.NewRecord("com.example.Layout", map[string]feature.Value{
				"columns": feature.Int(3),
				"sticky":  feature.Bool(false),
			}),
			want: map[string]any{"columns": int64(3), "sticky": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderValue(tt.value); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("renderValue = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRenderOutcome(t *testing.T) {
	ok := renderOutcome(registry.Outcome{
		Value:    feature.Bool(true),
		Decision: registry.Decision{Kind: registry.DecisionRule},
	})
	want := map[string]any{"value": true, "decision": "RULE"}
	if !reflect.DeepEqual(ok, want) {
		t.Fatalf("renderOutcome = %#v, want %#v", ok, want)
	}

	failed := renderOutcome(registry.Outcome{Err: registry.ErrFeatureNotFound})
	if _, hasError := failed.(map[string]any)["error"]; !hasError {
		t.Fatalf("error outcome = %#v", failed)
	}
}

func TestDecodeContextsFile(t *testing.T) {
	id := feature.NewStableID().Hex()
	path := filepath.Join(t.TempDir(), "contexts.json")
	content := `[
		{"locale": "en-US", "platform": "IOS", "version": "1.2.3", "stableId": "` + id + `"},
		{"locale": "de-DE", "platform": "ANDROID", "version": "2.0.0", "stableId": "` + id + `",
		 "axes": {"tier": ["beta"]}}]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write contexts: %v", err)
	}

	contexts, err := decodeContextsFile(path)
	if err != nil {
		t.Fatalf("decodeContextsFile error = %v", err)
	}
	if len(contexts) != 2 {
		t.Fatalf("contexts = %d, want 2", len(contexts))
	}
	if contexts[1].Platform() != "ANDROID" || !contexts[1].HasAxis("tier") {
		t.Fatalf("second context lost fields: %v", contexts[1])
	}
}

func TestDecodeContextsFileRejections(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte(`[]`), 0o600)
	if _, err := decodeContextsFile(empty); err == nil {
		t.Fatal("accepted an empty context array")
	}

	notArray := filepath.Join(dir, "object.json")
	os.WriteFile(notArray, []byte(`{}`), 0o600)
	if _, err := decodeContextsFile(notArray); err == nil {
		t.Fatal("accepted a non-array document")
	}

	if _, err := decodeContextsFile(filepath.Join(dir, "absent.json")); err == nil {
		t.Fatal("accepted a missing file")
	}
}
