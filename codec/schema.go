package codec

import (
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

// snapshotSchema is the structural contract for snapshot and patch
// documents. Semantic rules (key resolution, value typing, identifier and
// version encoding) are enforced in the second decode phase, against the
// trusted catalog.
const snapshotSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["flags"],
  "additionalProperties": false,
  "properties": {
    "meta": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "version": {"type": "string"},
        "generatedAtEpochMillis": {"type": "integer"},
        "source": {"type": "string"}
      }
    },
    "flags": {"type": "array", "items": {"$ref": "#/$defs/flag"}},
    "removeKeys": {"type": "array", "items": {"type": "string"}}
  },
  "$defs": {
    "flag": {
      "type": "object",
      "required": ["key", "defaultValue", "salt", "isActive"],
      "additionalProperties": false,
      "properties": {
        "key": {"type": "string"},
        "defaultValue": {"$ref": "#/$defs/value"},
        "salt": {"type": "string"},
        "isActive": {"type": "boolean"},
        "rampUpAllowlist": {"type": "array", "items": {"type": "string"}},
        "rules": {"type": "array", "items": {"$ref": "#/$defs/rule"}}
      }
    },
    "rule": {
      "type": "object",
      "required": ["value", "rampUp"],
      "additionalProperties": false,
      "properties": {
        "value": {"$ref": "#/$defs/value"},
        "rampUp": {"type": "number"},
        "rampUpAllowlist": {"type": "array", "items": {"type": "string"}},
        "note": {"type": "string"},
        "locales": {"type": "array", "items": {"type": "string"}},
        "platforms": {"type": "array", "items": {"type": "string"}},
        "axes": {
          "type": "object",
          "additionalProperties": {"type": "array", "items": {"type": "string"}}
        },
        "versionRange": {"$ref": "#/$defs/versionRange"}
      }
    },
    "versionRange": {
      "type": "object",
      "required": ["type"],
      "additionalProperties": false,
      "properties": {
        "type": {"enum": ["UNBOUNDED", "MIN_BOUND", "MAX_BOUND", "MIN_AND_MAX_BOUND"]},
        "min": {"$ref": "#/$defs/version"},
        "max": {"$ref": "#/$defs/version"}
      }
    },
    "version": {
      "type": "object",
      "required": ["major", "minor", "patch"],
      "additionalProperties": false,
      "properties": {
        "major": {"type": "integer"},
        "minor": {"type": "integer"},
        "patch": {"type": "integer"}
      }
    },
    "value": {
      "type": "object",
      "required": ["type"],
      "additionalProperties": false,
      "properties": {
        "type": {"type": "string"},
        "value": {},
        "enumClassName": {"type": "string"},
        "dataClassName": {"type": "string"}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func structuralSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.NewCompiler().Compile([]byte(snapshotSchema))
	})
	if schemaErr != nil {
		return nil, fmt.Errorf("compile snapshot schema: %w", schemaErr)
	}
	return compiledSchema, nil
}
