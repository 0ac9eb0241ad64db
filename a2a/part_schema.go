package a2a

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// DataPartValidator validates a DataPart's Data payload against a resolved
// JSON Schema. Construct one with NewDataPartValidator and reuse it across
// many DataPart values — resolution is the expensive step.
type DataPartValidator struct {
	resolved *jsonschema.Resolved
}

// NewDataPartValidator resolves schema once for repeated DataPart validation.
func NewDataPartValidator(schema *jsonschema.Schema) (*DataPartValidator, error) {
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve data part schema: %w", err)
	}
	return &DataPartValidator{resolved: resolved}, nil
}

// Validate checks part.Data against the resolved schema.
func (v *DataPartValidator) Validate(part DataPart) error {
	if err := v.resolved.Validate(part.Data); err != nil {
		return InvalidParamsError(fmt.Sprintf("data part failed schema validation: %v", err))
	}
	return nil
}
