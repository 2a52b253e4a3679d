// Package row defines the runtime values that flow between operators:
// typed scalars and the tuples that group them.
//
// The value domain matches the schema type system exactly: string, int64,
// bool. Floats are excluded on purpose; deterministic comparison and
// serialization matter more here than fractional arithmetic.
package row

import (
	"fmt"
	"strconv"

	"github.com/sluicedata/sluice/internal/schema"
)

// Kind tags a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

// Value is one typed scalar cell.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Bool bool
}

// String wraps a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int wraps an integer value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Bool wraps a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// FieldType returns the schema type corresponding to the value's kind.
func (v Value) FieldType() schema.FieldType {
	switch v.Kind {
	case KindInt:
		return schema.TypeInt
	case KindBool:
		return schema.TypeBool
	default:
		return schema.TypeString
	}
}

// Render returns the textual form used by the delimited text format.
func (v Value) Render() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// Compare orders two values. Both ints compare numerically, both bools
// compare false<true, otherwise both sides are compared as rendered text.
// Mixed-kind comparison falls back to text so delimited input (all strings)
// can still be compared against typed constants when both parse.
func Compare(a, b Value) int {
	if a.Kind == KindInt && b.Kind == KindInt {
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		}
		return 0
	}
	if a.Kind == KindBool && b.Kind == KindBool {
		switch {
		case !a.Bool && b.Bool:
			return -1
		case a.Bool && !b.Bool:
			return 1
		}
		return 0
	}
	// If either side is an int and the other renders as an integer,
	// compare numerically. Tab-delimited input is untyped text.
	if ai, aok := asInt(a); aok {
		if bi, bok := asInt(b); bok {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			}
			return 0
		}
	}
	as, bs := a.Render(), b.Render()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

// AsInt returns the value as an int64 when it is one or renders as one.
func AsInt(v Value) (int64, bool) { return asInt(v) }

func asInt(v Value) (int64, bool) {
	if v.Kind == KindInt {
		return v.Int, true
	}
	if v.Kind == KindString {
		i, err := strconv.ParseInt(v.Str, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// Tuple is one row: an ordered list of values positionally aligned with a
// schema's fields.
type Tuple []Value

// String renders the tuple for diagnostics.
func (t Tuple) String() string {
	return fmt.Sprintf("%v", []Value(t))
}
