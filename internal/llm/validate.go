package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := CompileSchema("schema.json", schemaMap)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// CompileSchema compiles schemaMap under the given resource name.
func CompileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// Validator validates decoded JSON values against a schema compiled once on first use.
type Validator struct {
	name   string
	build  func() map[string]any
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

// NewValidator returns a lazily compiled validator for the schema produced by build.
func NewValidator(name string, build func() map[string]any) *Validator {
	return &Validator{name: name, build: build}
}

// Validate checks v, a value produced by encoding/json decoding, against the schema.
// Maps decoded with float64 numbers are round-tripped so integer checks behave.
func (v *Validator) Validate(doc map[string]any) error {
	v.once.Do(func() {
		v.schema, v.err = CompileSchema(v.name, v.build())
	})
	if v.err != nil {
		return v.err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := v.schema.Validate(generic); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
