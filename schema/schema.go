// Package schema defines store field schemas and validates row data against them.
package schema

import (
	"fmt"
	"time"
)

// FieldType is the declared primitive type of a schema field.
type FieldType string

const (
	// TypeString is a UTF-8 text value.
	TypeString FieldType = "string"

	// TypeNumber is a numeric value (stored as float64).
	TypeNumber FieldType = "number"

	// TypeBoolean is a true/false value.
	TypeBoolean FieldType = "boolean"

	// TypeTimestamp is an RFC 3339 timestamp, normalized to UTC.
	TypeTimestamp FieldType = "timestamp"

	// TypeList is a sequence of scalar values.
	TypeList FieldType = "list"
)

// Valid reports whether the field type is one of the declared primitives.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeTimestamp, TypeList:
		return true
	}
	return false
}

// Field is a single schema field descriptor.
type Field struct {
	// Type is the declared primitive type.
	Type FieldType `json:"type"`

	// Indexed marks the field for secondary-index derivation.
	Indexed bool `json:"indexed,omitempty"`

	// Required makes the field mandatory on every write.
	Required bool `json:"required,omitempty"`
}

// Schema maps field names to their descriptors.
// A nil or empty Schema performs no field-level validation.
type Schema map[string]Field

// Check verifies the schema definition itself: every declared type must be
// a known primitive.
func (s Schema) Check() error {
	for name, f := range s {
		if !f.Type.Valid() {
			return fmt.Errorf("field %q: unknown type %q", name, f.Type)
		}
	}
	return nil
}

// Validate checks data against the schema and returns a normalized copy.
//
// Numbers are normalized to float64, timestamps to UTC RFC 3339 strings.
// When strict is set, fields not declared in the schema are rejected;
// otherwise they pass through untouched. Validate never mutates its input.
func (s Schema) Validate(data map[string]any, strict bool) (map[string]any, error) {
	out := make(map[string]any, len(data))

	if len(s) == 0 {
		// Schemaless store: accept everything as-is.
		for k, v := range data {
			out[k] = v
		}
		return out, nil
	}

	for name, f := range s {
		v, ok := data[name]
		if !ok {
			if f.Required {
				return nil, &ValidationError{Kind: MissingField, Field: name, Expected: f.Type}
			}
			continue
		}
		norm, ok := normalize(f.Type, v)
		if !ok {
			return nil, &ValidationError{
				Kind:     TypeMismatch,
				Field:    name,
				Expected: f.Type,
				Actual:   fmt.Sprintf("%T", v),
			}
		}
		out[name] = norm
	}

	for name, v := range data {
		if _, declared := s[name]; declared {
			continue
		}
		if strict {
			return nil, &ValidationError{Kind: UnknownField, Field: name}
		}
		out[name] = v
	}

	return out, nil
}

// normalize coerces v to the canonical representation of t.
func normalize(t FieldType, v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch t {
	case TypeString:
		s, ok := v.(string)
		return s, ok
	case TypeNumber:
		return toFloat(v)
	case TypeBoolean:
		b, ok := v.(bool)
		return b, ok
	case TypeTimestamp:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, false
		}
		return ts.UTC().Format(time.RFC3339Nano), true
	case TypeList:
		switch vs := v.(type) {
		case []any:
			out := make([]any, len(vs))
			copy(out, vs)
			return out, true
		case []string:
			out := make([]any, len(vs))
			for i, e := range vs {
				out[i] = e
			}
			return out, true
		}
		return nil, false
	}
	return nil, false
}

// toFloat accepts any numeric representation JSON decoding may produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
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
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
