package schema

import "fmt"

// Kind classifies a validation failure.
type Kind uint8

const (
	// MissingField means a required field is absent.
	MissingField Kind = iota + 1

	// TypeMismatch means a field value does not satisfy its declared type.
	TypeMismatch

	// UnknownField means a field is not declared and the store is strict.
	UnknownField
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case TypeMismatch:
		return "type mismatch"
	case UnknownField:
		return "unknown field"
	default:
		return "invalid"
	}
}

// ValidationError describes why a data mapping was rejected.
type ValidationError struct {
	Kind     Kind
	Field    string
	Expected FieldType
	Actual   string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("missing required field %q (%s)", e.Field, e.Expected)
	case TypeMismatch:
		return fmt.Sprintf("field %q has invalid type %s, expected %s", e.Field, e.Actual, e.Expected)
	case UnknownField:
		return fmt.Sprintf("field %q is not declared in the schema", e.Field)
	default:
		return fmt.Sprintf("invalid field %q", e.Field)
	}
}
