package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// UnmarshalYAML captures qlty.toml's top-level "plugin" array into
// EnabledPlugins: every other field round-trips through its own tag,
// but EnabledPlugins is tagged yaml:"-" on QltyConfig itself because
// the document's key ("plugin") doesn't match the Go field name, so
// the usual struct-tag decode can't reach it directly.
func (c *QltyConfig) UnmarshalYAML(unmarshal func(any) error) error {
	type alias QltyConfig
	aux := struct {
		*alias  `yaml:",inline"`
		Plugin []EnabledPlugin `yaml:"plugin,omitempty"`
	}{alias: (*alias)(c)}

	if err := unmarshal(&aux); err != nil {
		return err
	}
	c.EnabledPlugins = aux.Plugin
	return nil
}

// schemaDoc is a minimal structural schema for qlty.toml: just enough
// to catch a malformed document (wrong types, a plugin entry missing
// its name) before it reaches the planner. It is not a port of
// anything in original_source/ (no JSON Schema document was among the
// retrieved files); it is hand-written against QltyConfig's own
// shape, the same relationship internal/qlty/issue/wire.go has to
// Issue, just authored instead of struct-derived since the config
// schema's field names diverge from the Go struct's (see
// UnmarshalYAML above).
const schemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "config_version": {"type": "string"},
    "exclude_patterns": {"type": "array", "items": {"type": "string"}},
    "plugin": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string"}
        }
      }
    }
  }
}`

func compiledSchema() (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal([]byte(schemaDoc), &doc); err != nil {
		return nil, fmt.Errorf("config: parsing schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("qlty-config.json", doc); err != nil {
		return nil, fmt.Errorf("config: adding schema resource: %w", err)
	}
	return compiler.Compile("qlty-config.json")
}

// Validate checks raw (a qlty.toml document, stored as YAML) against
// schemaDoc's structural shape.
func Validate(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	var decoded any
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("config: decoding for validation: %w", err)
	}

	// Round-trip through encoding/json so the instance is built of
	// plain map[string]any/[]any/json.Number values rather than the
	// YAML decoder's own types (jsonschema compares against the former).
	normalized, err := json.Marshal(decoded)
	if err != nil {
		return fmt.Errorf("config: normalizing for validation: %w", err)
	}
	var instance any
	if err := json.Unmarshal(normalized, &instance); err != nil {
		return fmt.Errorf("config: normalizing for validation: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("config: schema validation: %w", err)
	}
	return nil
}

// Load reads and parses a qlty.toml (stored as YAML in this engine)
// from path, validating its structural shape before decoding it into
// a QltyConfig.
func Load(path string) (*QltyConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := Validate(raw); err != nil {
		return nil, err
	}

	var cfg QltyConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}
