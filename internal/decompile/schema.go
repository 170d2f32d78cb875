package decompile

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	uploadSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []string{"success"},
		"properties": map[string]any{
			"success":    map[string]any{"type": "boolean"},
			"identifier": map[string]any{"type": "string"},
			"message":    map[string]any{"type": "string"},
		},
	})

	progressSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []string{"success"},
		"properties": map[string]any{
			"success": map[string]any{"type": "boolean"},
			"stage":   map[string]any{"type": "string"},
			"message": map[string]any{"type": "string"},
		},
	})

	viewSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []string{"editor_content"},
		"properties": map[string]any{
			"editor_content": map[string]any{
				"type":     "object",
				"required": []string{"editor_tabs"},
				"properties": map[string]any{
					"editor_tabs": map[string]any{
						"type":     "array",
						"minItems": 1,
						"items": map[string]any{
							"type":     "object",
							"required": []string{"editor_content"},
							"properties": map[string]any{
								"editor_content": map[string]any{"type": "string"},
							},
						},
					},
				},
			},
		},
	})
)

type schemaValidationError struct {
	issues []string
}

func (e schemaValidationError) Error() string {
	if len(e.issues) == 0 {
		return "response failed schema validation"
	}
	return strings.Join(e.issues, "; ")
}

// validateResponse checks body against schema. Malformed JSON is reported as
// a plain error, schema violations as schemaValidationError.
func validateResponse(schema gojsonschema.JSONLoader, body []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return schemaValidationError{issues: issues}
}
