package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const errorFormat = "  - %s"

// SchemaValidationError is one JSON schema violation.
type SchemaValidationError struct {
	Field       string
	Description string
	Value       any
}

// Error implements the error interface
func (e SchemaValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Description, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// SchemaValidationResult contains the results of schema validation
type SchemaValidationResult struct {
	Valid  bool
	Errors []SchemaValidationError
}

// Schema returns the embedded configuration schema.
func Schema() []byte {
	out := make([]byte, len(schemaJSON))
	copy(out, schemaJSON)
	return out
}

// ValidateWithSchema validates YAML data against the embedded schema.
func ValidateWithSchema(yamlData []byte) (*SchemaValidationResult, error) {
	// Convert YAML to JSON for schema validation
	var data any
	if err := yaml.Unmarshal(yamlData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to JSON: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	validationResult := &SchemaValidationResult{
		Valid:  result.Valid(),
		Errors: make([]SchemaValidationError, 0),
	}
	for _, re := range result.Errors() {
		validationResult.Errors = append(validationResult.Errors, SchemaValidationError{
			Field:       re.Field(),
			Description: re.Description(),
			Value:       re.Value(),
		})
	}
	return validationResult, nil
}

// Validate returns an error describing every schema violation in yamlData.
func Validate(yamlData []byte) error {
	result, err := ValidateWithSchema(yamlData)
	if err != nil {
		return err
	}
	if result.Valid {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors)+1)
	msgs = append(msgs, "configuration does not match schema:")
	for _, e := range result.Errors {
		msgs = append(msgs, fmt.Sprintf(errorFormat, e.Error()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "\n"))
}
