package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Schemaless(t *testing.T) {
	var s Schema

	data := map[string]any{"bar": "baz", "n": 42}
	out, err := s.Validate(data, false)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	// Output is a copy, not an alias.
	out["extra"] = true
	assert.NotContains(t, data, "extra")
}

func TestValidate_RequiredMissing(t *testing.T) {
	s := Schema{"name": {Type: TypeString, Required: true}}

	_, err := s.Validate(map[string]any{}, false)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, MissingField, verr.Kind)
	assert.Equal(t, "name", verr.Field)
}

func TestValidate_TypeMismatch(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		value any
	}{
		{"string gets number", Field{Type: TypeString}, 42},
		{"number gets string", Field{Type: TypeNumber}, "42"},
		{"boolean gets string", Field{Type: TypeBoolean}, "true"},
		{"timestamp gets garbage", Field{Type: TypeTimestamp}, "not-a-time"},
		{"timestamp gets number", Field{Type: TypeTimestamp}, 1234567890},
		{"list gets scalar", Field{Type: TypeList}, "solo"},
		{"null value", Field{Type: TypeString}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Schema{"f": tt.field}
			_, err := s.Validate(map[string]any{"f": tt.value}, false)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, TypeMismatch, verr.Kind)
			assert.Equal(t, "f", verr.Field)
		})
	}
}

func TestValidate_Normalization(t *testing.T) {
	s := Schema{
		"count": {Type: TypeNumber},
		"when":  {Type: TypeTimestamp},
		"tags":  {Type: TypeList},
	}

	out, err := s.Validate(map[string]any{
		"count": 7,
		"when":  "2024-06-01T12:00:00+02:00",
		"tags":  []string{"a", "b"},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, float64(7), out["count"])
	assert.Equal(t, "2024-06-01T10:00:00Z", out["when"])
	assert.Equal(t, []any{"a", "b"}, out["tags"])
}

func TestValidate_UnknownFieldPolicy(t *testing.T) {
	s := Schema{"known": {Type: TypeString}}
	data := map[string]any{"known": "a", "stray": "b"}

	// Permissive: stray fields pass through untouched.
	out, err := s.Validate(data, false)
	require.NoError(t, err)
	assert.Equal(t, "b", out["stray"])

	// Strict: stray fields are rejected.
	_, err = s.Validate(data, true)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, UnknownField, verr.Kind)
	assert.Equal(t, "stray", verr.Field)
}

func TestValidate_OptionalAbsent(t *testing.T) {
	s := Schema{"opt": {Type: TypeNumber}}

	out, err := s.Validate(map[string]any{}, true)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSchemaCheck(t *testing.T) {
	require.NoError(t, Schema{"f": {Type: TypeNumber}}.Check())
	assert.Error(t, Schema{"f": {Type: "decimal"}}.Check())
	require.NoError(t, Schema(nil).Check())
}

func TestValidationErrorMessages(t *testing.T) {
	tests := []struct {
		err  *ValidationError
		want string
	}{
		{&ValidationError{Kind: MissingField, Field: "a", Expected: TypeString}, `missing required field "a" (string)`},
		{&ValidationError{Kind: TypeMismatch, Field: "a", Expected: TypeNumber, Actual: "string"}, `field "a" has invalid type string, expected number`},
		{&ValidationError{Kind: UnknownField, Field: "a"}, `field "a" is not declared in the schema`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}
