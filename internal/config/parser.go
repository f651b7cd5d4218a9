package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads a configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// The document is checked against JSONSchema, defaults are applied, and the
// result is validated. An empty path returns Default().
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*Config, error) {
	unmarshal, err := unmarshalerFor(path)
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if err := unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if doc == nil {
		// Empty document
		doc = map[string]interface{}{}
	}
	if err := ValidateSchema(doc); err != nil {
		return nil, err
	}

	var config Config
	if err := unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func unmarshalerFor(path string) (func([]byte, interface{}) error, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return json.Unmarshal, nil
	case ".yaml", ".yml", "":
		return yaml.Unmarshal, nil
	default:
		// Try YAML by default
		return yaml.Unmarshal, nil
	}
}

// SchemaError reports every schema violation found in a document.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	if len(e.Violations) == 1 {
		return "config does not match schema: " + e.Violations[0]
	}
	return fmt.Sprintf("config does not match schema (%d problems): %s",
		len(e.Violations), strings.Join(e.Violations, "; "))
}

// ValidateSchema checks a decoded document against JSONSchema.
//
// The document is round-tripped through encoding/json so YAML-decoded values
// reach the validator with JSON types.
func ValidateSchema(doc interface{}) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.json", strings.NewReader(JSONSchema)); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	schema, err := compiler.Compile("config.json")
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config is not representable as JSON: %w", err)
	}
	var jsonDoc interface{}
	if err := json.Unmarshal(raw, &jsonDoc); err != nil {
		return fmt.Errorf("config is not representable as JSON: %w", err)
	}

	err = schema.Validate(jsonDoc)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return err
	}
	return &SchemaError{Violations: collectViolations(validationErr)}
}

// collectViolations flattens the leaf causes of a validation error.
func collectViolations(err *jsonschema.ValidationError) []string {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		return []string{fmt.Sprintf("%s: %s", location, err.Message)}
	}

	var out []string
	for _, cause := range err.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}
