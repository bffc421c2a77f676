// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// carSeedSchema validates catalog seed files before they reach the
// inventory snapshot. A malformed listing is rejected as a whole file,
// not silently dropped.
const carSeedSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["make", "model", "year", "price"],
		"additionalProperties": true,
		"properties": {
			"id":           {"type": "string"},
			"make":         {"type": "string", "minLength": 1},
			"model":        {"type": "string", "minLength": 1},
			"year":         {"type": "integer", "minimum": 1990},
			"price":        {"type": "number", "minimum": 0},
			"mileage":      {"type": "string"},
			"fuelType":     {"type": "string"},
			"transmission": {"type": "string"},
			"features":     {"type": "string"},
			"available":    {"type": "boolean"}
		}
	}
}`

// ValidateCarSeed checks a JSON catalog seed document against the
// listing schema and returns a single error describing all violations.
func ValidateCarSeed(doc []byte) error {
	schema := gojsonschema.NewStringLoader(carSeedSchema)
	document := gojsonschema.NewBytesLoader(doc)

	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return fmt.Errorf("seed validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return fmt.Errorf("invalid catalog seed: %s", strings.Join(msgs, "; "))
}
