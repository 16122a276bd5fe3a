package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies a parsed query.
type Kind uint8

const (
	// KindEquality matches rows whose field equals a value.
	KindEquality Kind = iota + 1

	// KindRange matches rows whose field falls in an inclusive range.
	KindRange

	// KindText matches rows containing every free-text term.
	KindText
)

// ErrEmptyQuery is returned for a blank or untokenizable query string.
var ErrEmptyQuery = errors.New("query: empty query")

// Query is a parsed search expression.
type Query struct {
	Kind  Kind
	Field string

	// Value is the raw equality operand.
	Value string

	// Low/High are the raw range bounds; empty means unbounded.
	Low, High string

	// Terms are the free-text tokens; all must match.
	Terms []string
}

var (
	fieldExpr = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*):(.+)$`)
	rangeExpr = regexp.MustCompile(`^\[(.*) TO (.*)\]$`)
)

// Parse interprets a query string.
//
// Supported forms:
//
//	field:value          equality on an indexed field
//	field:[a TO b]       inclusive range; * leaves a bound open
//	any other text       free-text term match
func Parse(q string, tokenize Tokenizer) (Query, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return Query{}, ErrEmptyQuery
	}

	if m := fieldExpr.FindStringSubmatch(q); m != nil {
		field, operand := m[1], m[2]
		if r := rangeExpr.FindStringSubmatch(operand); r != nil {
			low, high := strings.TrimSpace(r[1]), strings.TrimSpace(r[2])
			if low == "*" {
				low = ""
			}
			if high == "*" {
				high = ""
			}
			if low == "" && high == "" {
				return Query{}, fmt.Errorf("query: range on %q needs at least one bound", field)
			}
			return Query{Kind: KindRange, Field: field, Low: low, High: high}, nil
		}
		return Query{Kind: KindEquality, Field: field, Value: operand}, nil
	}

	terms := tokenize(q)
	if len(terms) == 0 {
		return Query{}, ErrEmptyQuery
	}
	return Query{Kind: KindText, Terms: terms}, nil
}
