package operation

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ValidateConfig checks config against an operation's declared JSON Schema
// (spec §4.9: "config is a map-typed value validated against the
// operation's declared config signature before handle is called"). A nil
// schema means the operation declares no config shape and any config is
// accepted.
func ValidateConfig(schema map[string]any, config map[string]any) error {
	if schema == nil {
		return nil
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("operation: marshal config schema: %w", err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("operation: decode config schema: %w", err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return fmt.Errorf("operation: resolve config schema: %w", err)
	}
	if err := resolved.Validate(config); err != nil {
		return fmt.Errorf("operation: config does not satisfy schema: %w", err)
	}
	return nil
}
