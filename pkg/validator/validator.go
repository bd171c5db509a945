// Package validator implements a narrow JSON-Schema subset: required[]
// membership, primitive type matching, enum membership, pattern matching,
// and numeric range checks. It is deliberately not a general-purpose
// schema library — the daemon only ever validates flat tool-argument
// objects against this narrow subset.
package validator

import (
	"fmt"
	"regexp"
)

// Property is a single entry in a Schema's properties map.
type Property struct {
	Type        string        `json:"type,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
	Pattern     string        `json:"pattern,omitempty"`
	Minimum     *float64      `json:"minimum,omitempty"`
	Maximum     *float64      `json:"maximum,omitempty"`
	Items       *Property     `json:"items,omitempty"`
	Default     interface{}   `json:"default,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Schema is the JSON-Schema subset a tool or resource input schema is
// expressed in.
type Schema struct {
	Type       string              `json:"type,omitempty"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Validator checks argument maps against a Schema. The zero value is
// ready to use; it carries no state.
type Validator struct{}

// New returns a ready-to-use Validator.
func New() *Validator {
	return &Validator{}
}

// Validate implements protocol.Validator. schema must be a *Schema, a
// Schema, or nil (no constraints); any other type is a programming error
// and is reported as a validation failure rather than panicking.
func (v *Validator) Validate(schema interface{}, args map[string]interface{}) error {
	s, err := asSchema(schema)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	return v.validate(*s, args)
}

func asSchema(schema interface{}) (*Schema, error) {
	switch s := schema.(type) {
	case nil:
		return nil, nil
	case Schema:
		return &s, nil
	case *Schema:
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported schema representation: %T", schema)
	}
}

func (v *Validator) validate(schema Schema, args map[string]interface{}) error {
	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("missing required field: %s", name)
		}
	}

	for name, value := range args {
		prop, ok := schema.Properties[name]
		if !ok {
			continue
		}
		if err := validateProperty(name, prop, value); err != nil {
			return err
		}
	}

	return nil
}

func validateProperty(name string, prop Property, value interface{}) error {
	if prop.Type != "" {
		if err := checkType(name, prop.Type, value); err != nil {
			return err
		}
	}

	if len(prop.Enum) > 0 {
		if !enumContains(prop.Enum, value) {
			return fmt.Errorf("field %s: value %v is not one of the allowed values", name, value)
		}
	}

	if prop.Pattern != "" {
		if s, ok := value.(string); ok {
			matched, err := regexp.MatchString(prop.Pattern, s)
			if err != nil {
				return fmt.Errorf("field %s: invalid pattern %q: %w", name, prop.Pattern, err)
			}
			if !matched {
				return fmt.Errorf("field %s: value %q does not match pattern %q", name, s, prop.Pattern)
			}
		}
	}

	if prop.Minimum != nil || prop.Maximum != nil {
		if n, ok := numericValue(value); ok {
			if prop.Minimum != nil && n < *prop.Minimum {
				return fmt.Errorf("field %s: value %v is below minimum %v", name, n, *prop.Minimum)
			}
			if prop.Maximum != nil && n > *prop.Maximum {
				return fmt.Errorf("field %s: value %v is above maximum %v", name, n, *prop.Maximum)
			}
		}
	}

	return nil
}

func checkType(name, declared string, value interface{}) error {
	switch declared {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field %s: expected string, got %T", name, value)
		}
	case "integer":
		n, ok := numericValue(value)
		if !ok {
			return fmt.Errorf("field %s: expected integer, got %T", name, value)
		}
		if n != float64(int64(n)) {
			return fmt.Errorf("field %s: expected integer, got non-whole number %v", name, n)
		}
	case "number":
		if _, ok := numericValue(value); !ok {
			return fmt.Errorf("field %s: expected number, got %T", name, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field %s: expected boolean, got %T", name, value)
		}
	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Errorf("field %s: expected object, got %T", name, value)
		}
	case "array":
		if _, ok := value.([]interface{}); !ok {
			return fmt.Errorf("field %s: expected array, got %T", name, value)
		}
	default:
		return fmt.Errorf("field %s: unsupported schema type %q", name, declared)
	}
	return nil
}

func numericValue(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func enumContains(enum []interface{}, value interface{}) bool {
	for _, candidate := range enum {
		if candidate == value {
			return true
		}
	}
	return false
}
