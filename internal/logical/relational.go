package logical

import (
	"fmt"

	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/schema"
)

// Load reads rows from a storage location in a named format. It is always
// a source: no inputs.
type Load struct {
	base
	Location string
	Format   string
	// Declared is the schema the manifest declared for the input, if any.
	// Load cannot infer one on its own.
	Declared *schema.Schema
}

// NewLoad creates a load operator.
func NewLoad(key plan.OperatorKey, location, format string, declared *schema.Schema) *Load {
	return &Load{base: newBase(key), Location: location, Format: format, Declared: declared}
}

func (o *Load) Inputs() []Operator { return nil }

func (o *Load) Name() string { return "Load " + o.key.String() }

func (o *Load) SupportsMultipleInputs() bool { return false }

func (o *Load) Schema() (*schema.Schema, error) {
	return o.memoize(func() (*schema.Schema, error) {
		if o.Declared == nil {
			return nil, schema.NewError(o.Name(), "no schema declared for input %q", o.Location)
		}
		return o.Declared.Clone(), nil
	})
}

func (o *Load) Accept(v Visitor) error { return v.VisitLoad(o) }

// Filter keeps the input rows for which the condition expression evaluates
// to true. Its schema is its input's schema unchanged.
type Filter struct {
	base
	Input Operator
	Cond  Operator
}

// NewFilter creates a filter over input with the given condition.
func NewFilter(key plan.OperatorKey, input, cond Operator) *Filter {
	return &Filter{base: newBase(key), Input: input, Cond: cond}
}

func (o *Filter) Inputs() []Operator { return []Operator{o.Input, o.Cond} }

func (o *Filter) Name() string { return "Filter " + o.key.String() }

func (o *Filter) SupportsMultipleInputs() bool { return false }

func (o *Filter) Schema() (*schema.Schema, error) {
	return o.memoize(func() (*schema.Schema, error) {
		if o.Input == nil {
			return nil, schema.NewError(o.Name(), "filter has no input")
		}
		s, err := o.Input.Schema()
		if err != nil {
			return nil, err
		}
		return s.Clone(), nil
	})
}

func (o *Filter) Accept(v Visitor) error { return v.VisitFilter(o) }

// Store materializes its input to a storage location in a named format.
// Stores are the terminal (sink) operators of a plan.
type Store struct {
	base
	Input    Operator
	Location string
	Format   string
}

// NewStore creates a store writing input to location.
func NewStore(key plan.OperatorKey, input Operator, location, format string) *Store {
	return &Store{base: newBase(key), Input: input, Location: location, Format: format}
}

func (o *Store) Inputs() []Operator { return []Operator{o.Input} }

func (o *Store) Name() string { return "Store " + o.key.String() }

func (o *Store) SupportsMultipleInputs() bool { return false }

func (o *Store) Schema() (*schema.Schema, error) {
	return o.memoize(func() (*schema.Schema, error) {
		if o.Input == nil {
			return nil, schema.NewError(o.Name(), "store has no input")
		}
		s, err := o.Input.Schema()
		if err != nil {
			return nil, err
		}
		return s.Clone(), nil
	})
}

func (o *Store) Accept(v Visitor) error { return v.VisitStore(o) }

// describe renders one operator line for plan dumps.
func describe(op Operator) string {
	switch o := op.(type) {
	case *Load:
		return fmt.Sprintf("%s location=%q format=%s", o.Name(), o.Location, o.Format)
	case *Store:
		return fmt.Sprintf("%s location=%q format=%s", o.Name(), o.Location, o.Format)
	case *Column:
		return fmt.Sprintf("%s field=%s", o.Name(), o.Field)
	case *Binary:
		return fmt.Sprintf("%s op=%s", o.Name(), o.Op)
	case *Const:
		return fmt.Sprintf("%s value=%s", o.Name(), o.Value.Render())
	default:
		return op.Name()
	}
}
