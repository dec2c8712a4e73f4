// internal/plan/schema.go
package plan

import (
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// responseSchema describes the shape prompts ask for. Violations are reported
// as warnings only; Decode stays lenient about types models commonly get wrong.
const responseSchema = `{
  "type": "object",
  "properties": {
    "thought":    {"type": "string"},
    "action":     {"type": "string"},
    "coordinate": {"type": ["array", "string", "null"], "items": {"type": "number"}, "minItems": 2, "maxItems": 2},
    "text":       {"type": ["string", "number", "null"]},
    "reasoning":  {"type": "string"},
    "amount":     {"type": ["number", "null"]},
    "duration":   {"type": ["number", "null"], "minimum": 0},
    "errorKind":  {"type": "string"},
    "error_type": {"type": "string"},
    "reason":     {"type": "string"},
    "scan_quality": {"type": "string"},
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["metric", "value"],
        "properties": {
          "metric": {"type": "string"},
          "value":  {"type": ["string", "number"]},
          "unit":   {"type": "string"},
          "target_field_hint": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseSchema))
})

// CheckSchema validates a JSON document against the response schema and
// returns one message per violation.
func CheckSchema(doc string) []string {
	schema, err := compiledSchema()
	if err != nil {
		return []string{"response schema unavailable: " + err.Error()}
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return []string{"schema validation failed: " + err.Error()}
	}
	if result.Valid() {
		return nil
	}
	out := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		out = append(out, "schema: "+e.String())
	}
	return out
}
