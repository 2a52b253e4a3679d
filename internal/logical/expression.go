package logical

import (
	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/row"
	"github.com/sluicedata/sluice/internal/schema"
)

// Const is a literal expression value.
type Const struct {
	base
	Value row.Value
}

// NewConst creates a constant expression.
func NewConst(key plan.OperatorKey, value row.Value) *Const {
	return &Const{base: newBase(key), Value: value}
}

func (o *Const) Inputs() []Operator { return nil }

func (o *Const) Name() string { return "Const " + o.key.String() }

func (o *Const) SupportsMultipleInputs() bool { return false }

func (o *Const) Schema() (*schema.Schema, error) {
	return o.memoize(func() (*schema.Schema, error) {
		return schema.New(schema.Field{Name: "const", Type: o.Value.FieldType()}), nil
	})
}

func (o *Const) Accept(v Visitor) error { return v.VisitConst(o) }

// Column projects one named field from the rows of a relational operator.
//
// Rel is the relational operator whose rows the enclosing expression is
// evaluated against. It is a back-reference used only for schema
// resolution, not an input edge: the column does not consume Rel's output
// itself, the enclosing Filter does.
type Column struct {
	base
	Rel   Operator
	Field string
}

// NewColumn creates a column reference into rel's rows.
func NewColumn(key plan.OperatorKey, rel Operator, field string) *Column {
	return &Column{base: newBase(key), Rel: rel, Field: field}
}

func (o *Column) Inputs() []Operator { return nil }

func (o *Column) Name() string { return "Column " + o.key.String() }

func (o *Column) SupportsMultipleInputs() bool { return false }

func (o *Column) Schema() (*schema.Schema, error) {
	return o.memoize(func() (*schema.Schema, error) {
		if o.Rel == nil {
			return nil, schema.NewError(o.Name(), "column %q is not bound to a relation", o.Field)
		}
		rs, err := o.Rel.Schema()
		if err != nil {
			return nil, err
		}
		i := rs.FieldIndex(o.Field)
		if i < 0 {
			return nil, schema.NewError(o.Name(), "field %q not in input schema %s", o.Field, rs)
		}
		return schema.New(rs.Fields[i]), nil
	})
}

func (o *Column) Accept(v Visitor) error { return v.VisitColumn(o) }

// BinaryOp names a binary expression operator.
type BinaryOp string

const (
	OpEq BinaryOp = "eq"
	OpNe BinaryOp = "ne"
	OpLt BinaryOp = "lt"
	OpLe BinaryOp = "le"
	OpGt BinaryOp = "gt"
	OpGe BinaryOp = "ge"
	OpAdd BinaryOp = "add"
	OpSub BinaryOp = "sub"
	OpMul BinaryOp = "mul"
)

// Comparison reports whether op yields a boolean.
func (op BinaryOp) Comparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Valid reports whether op is a known binary operator.
func (op BinaryOp) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAdd, OpSub, OpMul:
		return true
	}
	return false
}

// Binary applies a comparison or arithmetic operator to two expressions.
type Binary struct {
	base
	Op  BinaryOp
	Lhs Operator
	Rhs Operator
}

// NewBinary creates a binary expression.
func NewBinary(key plan.OperatorKey, op BinaryOp, lhs, rhs Operator) *Binary {
	return &Binary{base: newBase(key), Op: op, Lhs: lhs, Rhs: rhs}
}

func (o *Binary) Inputs() []Operator { return []Operator{o.Lhs, o.Rhs} }

func (o *Binary) Name() string { return "Binary " + o.key.String() }

func (o *Binary) SupportsMultipleInputs() bool { return true }

func (o *Binary) Schema() (*schema.Schema, error) {
	return o.memoize(func() (*schema.Schema, error) {
		if o.Lhs == nil || o.Rhs == nil {
			return nil, schema.NewError(o.Name(), "binary expression is missing an operand")
		}
		if _, err := o.Lhs.Schema(); err != nil {
			return nil, err
		}
		if _, err := o.Rhs.Schema(); err != nil {
			return nil, err
		}
		t := schema.TypeInt
		if o.Op.Comparison() {
			t = schema.TypeBool
		}
		return schema.New(schema.Field{Name: "expr", Type: t}), nil
	})
}

func (o *Binary) Accept(v Visitor) error { return v.VisitBinary(o) }

// BinCond is the conditional-branch expression: a condition plus a true
// branch and a false branch. Input order is condition, true branch, false
// branch, and the translator preserves it.
type BinCond struct {
	base
	Cond Operator
	Lhs  Operator // evaluated when the condition holds
	Rhs  Operator // evaluated when it does not
}

// NewBinCond creates a conditional-branch expression.
func NewBinCond(key plan.OperatorKey, cond, lhs, rhs Operator) *BinCond {
	return &BinCond{base: newBase(key), Cond: cond, Lhs: lhs, Rhs: rhs}
}

func (o *BinCond) Inputs() []Operator { return []Operator{o.Cond, o.Lhs, o.Rhs} }

func (o *BinCond) Name() string { return "BinCond " + o.key.String() }

func (o *BinCond) SupportsMultipleInputs() bool { return true }

// Schema is defined as the true branch's schema. The condition and the
// false branch are consulted (their schemas must be computable) but
// never merged with the result; the branches are not unified.
func (o *BinCond) Schema() (*schema.Schema, error) {
	return o.memoize(func() (*schema.Schema, error) {
		if o.Cond == nil || o.Lhs == nil || o.Rhs == nil {
			return nil, schema.NewError(o.Name(), "conditional is missing a child")
		}
		if _, err := o.Cond.Schema(); err != nil {
			return nil, err
		}
		if _, err := o.Rhs.Schema(); err != nil {
			return nil, err
		}
		s, err := o.Lhs.Schema()
		if err != nil {
			return nil, err
		}
		return s.Clone(), nil
	})
}

func (o *BinCond) Accept(v Visitor) error { return v.VisitBinCond(o) }
