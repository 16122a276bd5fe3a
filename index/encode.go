package index

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/jacentio/stratum/schema"
)

// timeLayout is a fixed-width UTC layout so encoded timestamps sort
// lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// EncodeTime encodes a timestamp into its sortable index form.
func EncodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// EncodeNumber encodes a float64 into a 16-hex-digit string whose lexical
// order matches numeric order. The sign bit is flipped for non-negative
// values and all bits are flipped for negative ones, the standard
// order-preserving transform for IEEE 754 doubles.
func EncodeNumber(f float64) string {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return fmt.Sprintf("%016x", bits)
}

// EncodeScalar encodes a normalized scalar value for the given field type.
// It reports false for values that do not match the type; the validator
// runs first on the write path, so a mismatch here means the row predates
// a schema change and simply produces no entry.
func EncodeScalar(t schema.FieldType, v any) (string, bool) {
	switch t {
	case schema.TypeString:
		s, ok := v.(string)
		return s, ok
	case schema.TypeNumber:
		f, ok := v.(float64)
		if !ok {
			return "", false
		}
		return EncodeNumber(f), true
	case schema.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return "", false
		}
		if b {
			return "true", true
		}
		return "false", true
	case schema.TypeTimestamp:
		s, ok := v.(string)
		if !ok {
			return "", false
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return "", false
		}
		return EncodeTime(ts), true
	}
	return "", false
}

// encodeElement encodes a list element; elements are untyped scalars.
func encodeElement(v any) (string, bool) {
	switch e := v.(type) {
	case string:
		return e, true
	case float64:
		return EncodeNumber(e), true
	case bool:
		if e {
			return "true", true
		}
		return "false", true
	}
	return "", false
}

// Tokenize splits text into lowercase tokens on non-alphanumeric runs.
// This is the default free-text tokenizer; the query engine accepts a
// replacement.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
