package logical

import (
	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/schema"
)

// Operator is a node in the logical DAG.
//
// Inputs returns the node's ordered children; order is load-bearing for
// non-commutative operators (BinCond lists condition, true branch, false
// branch in that order and the translator preserves it).
type Operator interface {
	// Key returns the node's identity.
	Key() plan.OperatorKey

	// Inputs returns the ordered child operators this node reads from.
	Inputs() []Operator

	// Name returns a short human-readable name including the key, e.g.
	// "BinCond session-1-4". Used in plan dumps and error messages.
	Name() string

	// Schema infers the node's output schema. The first successful
	// computation is cached; failures are never cached.
	Schema() (*schema.Schema, error)

	// SupportsMultipleInputs reports whether the variant accepts more
	// than one input operator.
	SupportsMultipleInputs() bool

	// Accept dispatches to the visitor method for the concrete variant.
	Accept(v Visitor) error
}

// Visitor has one method per concrete operator variant. Accept performs
// the double dispatch; a visitor never type-switches on Operator.
type Visitor interface {
	VisitLoad(*Load) error
	VisitFilter(*Filter) error
	VisitStore(*Store) error
	VisitConst(*Const) error
	VisitColumn(*Column) error
	VisitBinary(*Binary) error
	VisitBinCond(*BinCond) error
}

// base carries the key and the memoized schema shared by all variants.
//
// schemaComputed guards the cache: it is set only after a successful
// inference, so a nil schema is never silently served after a failure.
type base struct {
	key            plan.OperatorKey
	memoized       *schema.Schema
	schemaComputed bool
}

func newBase(key plan.OperatorKey) base {
	return base{key: key}
}

// Key returns the node's identity.
func (b *base) Key() plan.OperatorKey { return b.key }

// memoize runs compute once and caches the result. On error nothing is
// cached and the same error surfaces on every subsequent call.
func (b *base) memoize(compute func() (*schema.Schema, error)) (*schema.Schema, error) {
	if b.schemaComputed {
		return b.memoized, nil
	}
	s, err := compute()
	if err != nil {
		b.memoized = nil
		b.schemaComputed = false
		return nil, err
	}
	b.memoized = s
	b.schemaComputed = true
	return s, nil
}
