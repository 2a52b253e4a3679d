// Package schema defines the row schemas attached to operator outputs.
//
// Schemas are inferred lazily by logical operators and consulted by the
// translator. The type system is deliberately small: strings, 64-bit
// integers, and booleans. No floats.
package schema

import (
	"fmt"
	"strings"
)

// FieldType enumerates the value types a field may carry.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeBool   FieldType = "bool"
)

// ValidFieldType reports whether t names a known field type.
func ValidFieldType(t FieldType) bool {
	switch t {
	case TypeString, TypeInt, TypeBool:
		return true
	}
	return false
}

// Field is one named, typed column of a schema.
type Field struct {
	Name string
	Type FieldType
}

// Schema is an ordered list of fields describing one operator's output rows.
type Schema struct {
	Fields []Field
}

// New builds a schema from fields.
func New(fields ...Field) *Schema {
	return &Schema{Fields: fields}
}

// Clone returns a deep copy. Operators memoize schemas; consumers that
// modify one must work on a copy.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{Fields: make([]Field, len(s.Fields))}
	copy(out.Fields, s.Fields)
	return out
}

// FieldIndex returns the position of the named field, or -1.
func (s *Schema) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// String renders the schema as "(name: type, ...)" for plan dumps.
func (s *Schema) String() string {
	if s == nil {
		return "(unknown)"
	}
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Type)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Error reports a failed or contradictory schema computation.
type Error struct {
	Op      string // operator name, e.g. "BinCond session-1-4"
	Message string
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("schema error at %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("schema error: %s", e.Message)
}

// NewError creates a schema error for the named operator.
func NewError(op, format string, args ...any) *Error {
	return &Error{Op: op, Message: fmt.Sprintf(format, args...)}
}
