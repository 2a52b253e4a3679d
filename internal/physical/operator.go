package physical

import (
	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/row"
)

// Operator is a node in the physical DAG.
type Operator interface {
	// Key returns the node's identity. Physical nodes allocate fresh ids
	// in the same scope as the logical plan they were translated from.
	Key() plan.OperatorKey

	// Inputs returns the ordered child operators. Order mirrors the
	// logical node the operator was translated from.
	Inputs() []Operator

	// Name returns a short name including the key, e.g. "Store s-12".
	Name() string

	// Accept dispatches to the visitor method for the concrete variant.
	Accept(v Visitor) error
}

// Visitor has one method per concrete physical variant.
type Visitor interface {
	VisitLoad(*Load) error
	VisitFilter(*Filter) error
	VisitStore(*Store) error
	VisitConst(*Const) error
	VisitColumn(*Column) error
	VisitBinary(*Binary) error
	VisitBinCond(*BinCond) error
}

type base struct {
	key plan.OperatorKey
}

func (b *base) Key() plan.OperatorKey { return b.key }

// Load reads rows from a storage location.
type Load struct {
	base
	Location string
	Format   string
	// FieldNames positions columns for downstream expressions.
	FieldNames []string
}

// NewLoad creates a physical load.
func NewLoad(key plan.OperatorKey, location, format string, fieldNames []string) *Load {
	return &Load{base: base{key: key}, Location: location, Format: format, FieldNames: fieldNames}
}

func (o *Load) Inputs() []Operator   { return nil }
func (o *Load) Name() string         { return "Load " + o.key.String() }
func (o *Load) Accept(v Visitor) error { return v.VisitLoad(o) }

// Filter keeps input rows whose condition evaluates to true.
type Filter struct {
	base
	Input Operator
	Cond  Operator
}

// NewFilter creates a physical filter.
func NewFilter(key plan.OperatorKey, input, cond Operator) *Filter {
	return &Filter{base: base{key: key}, Input: input, Cond: cond}
}

func (o *Filter) Inputs() []Operator   { return []Operator{o.Input, o.Cond} }
func (o *Filter) Name() string         { return "Filter " + o.key.String() }
func (o *Filter) Accept(v Visitor) error { return v.VisitFilter(o) }

// Store materializes its input to a location. Stores are the sink
// operators; a normalized plan's single leaf is always a Store.
type Store struct {
	base
	Input    Operator
	Location string
	Format   string
}

// NewStore creates a physical store.
func NewStore(key plan.OperatorKey, input Operator, location, format string) *Store {
	return &Store{base: base{key: key}, Input: input, Location: location, Format: format}
}

func (o *Store) Inputs() []Operator   { return []Operator{o.Input} }
func (o *Store) Name() string         { return "Store " + o.key.String() }
func (o *Store) Accept(v Visitor) error { return v.VisitStore(o) }

// Const is a literal expression value.
type Const struct {
	base
	Value row.Value
}

// NewConst creates a physical constant.
func NewConst(key plan.OperatorKey, value row.Value) *Const {
	return &Const{base: base{key: key}, Value: value}
}

func (o *Const) Inputs() []Operator   { return nil }
func (o *Const) Name() string         { return "Const " + o.key.String() }
func (o *Const) Accept(v Visitor) error { return v.VisitConst(o) }

// Column projects one named field from the current row.
type Column struct {
	base
	Field string
}

// NewColumn creates a physical column reference.
func NewColumn(key plan.OperatorKey, field string) *Column {
	return &Column{base: base{key: key}, Field: field}
}

func (o *Column) Inputs() []Operator   { return nil }
func (o *Column) Name() string         { return "Column " + o.key.String() }
func (o *Column) Accept(v Visitor) error { return v.VisitColumn(o) }

// Binary applies a comparison or arithmetic operator to two expressions.
// Op uses the logical operator vocabulary ("eq", "lt", "add", ...).
type Binary struct {
	base
	Op  string
	Lhs Operator
	Rhs Operator
}

// NewBinary creates a physical binary expression.
func NewBinary(key plan.OperatorKey, op string, lhs, rhs Operator) *Binary {
	return &Binary{base: base{key: key}, Op: op, Lhs: lhs, Rhs: rhs}
}

func (o *Binary) Inputs() []Operator   { return []Operator{o.Lhs, o.Rhs} }
func (o *Binary) Name() string         { return "Binary " + o.key.String() }
func (o *Binary) Accept(v Visitor) error { return v.VisitBinary(o) }

// BinCond is the conditional-branch expression. Input order is condition,
// true branch, false branch.
type BinCond struct {
	base
	Cond Operator
	Lhs  Operator
	Rhs  Operator
}

// NewBinCond creates a physical conditional.
func NewBinCond(key plan.OperatorKey, cond, lhs, rhs Operator) *BinCond {
	return &BinCond{base: base{key: key}, Cond: cond, Lhs: lhs, Rhs: rhs}
}

func (o *BinCond) Inputs() []Operator   { return []Operator{o.Cond, o.Lhs, o.Rhs} }
func (o *BinCond) Name() string         { return "BinCond " + o.key.String() }
func (o *BinCond) Accept(v Visitor) error { return v.VisitBinCond(o) }
