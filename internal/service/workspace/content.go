package workspace

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"canvasdesk/internal/domain"
	models "canvasdesk/internal/domain/models/workspace"
)

const contentSchemaURL = "canvasdesk://schemas/canvas-content.json"

// contentSchema accepts any scene the editor produces as long as it has the
// two top-level members every scene carries.
const contentSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["elements", "appState"],
	"properties": {
		"elements": {
			"type": "array",
			"items": {"type": "object"}
		},
		"appState": {"type": "object"},
		"files": {"type": "object"}
	}
}`

// ContentValidator checks canvas content coming from a backend or a client
// before the workspace trusts it.
type ContentValidator struct {
	schema *jsonschema.Schema
}

// NewContentValidator compiles the canvas content schema.
func NewContentValidator() (*ContentValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(contentSchema))
	if err != nil {
		return nil, fmt.Errorf("parse content schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(contentSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add content schema: %w", err)
	}
	schema, err := c.Compile(contentSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile content schema: %w", err)
	}
	return &ContentValidator{schema: schema}, nil
}

// MustContentValidator is NewContentValidator for the built-in schema, which
// always compiles.
func MustContentValidator() *ContentValidator {
	v, err := NewContentValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate reports a ValidationError when content is not a canvas scene.
func (v *ContentValidator) Validate(content models.Content) error {
	if len(content) == 0 {
		return &domain.ValidationError{Message: "canvas content is empty"}
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return &domain.ValidationError{Message: "canvas content is not valid JSON"}
	}
	if err := v.schema.Validate(inst); err != nil {
		return &domain.ValidationError{Message: "canvas content does not match the scene schema: " + err.Error()}
	}
	return nil
}
