package physical

import (
	"fmt"
	"io"
	"sort"

	"github.com/sluicedata/sluice/internal/plan"
)

// Plan is a DAG of physical operators.
type Plan struct {
	ops map[plan.OperatorKey]Operator
	// consumed marks keys that appear as some operator's input; leaves
	// are the registered operators absent from this set.
	consumed map[plan.OperatorKey]bool
}

// NewPlan creates an empty physical plan.
func NewPlan() *Plan {
	return &Plan{
		ops:      make(map[plan.OperatorKey]Operator),
		consumed: make(map[plan.OperatorKey]bool),
	}
}

// Add registers op and its reachable inputs. Duplicate keys for distinct
// nodes panic: keys are unique within a plan.
func (p *Plan) Add(op Operator) {
	if op == nil {
		return
	}
	if existing, ok := p.ops[op.Key()]; ok {
		if existing != op {
			panic(fmt.Sprintf("duplicate operator key %s", op.Key()))
		}
		return
	}
	p.ops[op.Key()] = op
	for _, in := range op.Inputs() {
		p.Add(in)
		p.consumed[in.Key()] = true
	}
}

// AddAsLeaf appends store as the plan's new leaf. The store's input must
// already be registered; after the call the store is the only operator
// with no consumer on that path.
func (p *Plan) AddAsLeaf(store *Store) {
	p.Add(store)
}

// Operator returns the node registered under key, or nil.
func (p *Plan) Operator(key plan.OperatorKey) Operator {
	return p.ops[key]
}

// Operators returns a copy of the operator table, for debug introspection.
func (p *Plan) Operators() map[plan.OperatorKey]Operator {
	out := make(map[plan.OperatorKey]Operator, len(p.ops))
	for k, v := range p.ops {
		out[k] = v
	}
	return out
}

// Size returns the number of registered operators.
func (p *Plan) Size() int { return len(p.ops) }

// Leaves returns the operators no other operator consumes, ordered by key.
// A normalized plan has exactly one.
func (p *Plan) Leaves() []Operator {
	var leaves []Operator
	for k, op := range p.ops {
		if !p.consumed[k] {
			leaves = append(leaves, op)
		}
	}
	sort.Slice(leaves, func(i, j int) bool {
		a, b := leaves[i].Key(), leaves[j].Key()
		if a.Scope != b.Scope {
			return a.Scope < b.Scope
		}
		return a.ID < b.ID
	})
	return leaves
}

// Leaf returns the plan's single leaf. It errors if the plan is empty or
// has more than one leaf; execution requires a normalized plan.
func (p *Plan) Leaf() (Operator, error) {
	leaves := p.Leaves()
	switch len(leaves) {
	case 0:
		return nil, fmt.Errorf("physical plan has no operators")
	case 1:
		return leaves[0], nil
	default:
		return nil, fmt.Errorf("physical plan has %d leaves, expected 1", len(leaves))
	}
}

// Walk visits every operator exactly once, inputs before consumers,
// starting from the leaves in deterministic order.
func (p *Plan) Walk(fn func(Operator) error) error {
	seen := make(map[plan.OperatorKey]bool)
	var visit func(op Operator) error
	visit = func(op Operator) error {
		if op == nil || seen[op.Key()] {
			return nil
		}
		seen[op.Key()] = true
		for _, in := range op.Inputs() {
			if err := visit(in); err != nil {
				return err
			}
		}
		return fn(op)
	}
	for _, leaf := range p.Leaves() {
		if err := visit(leaf); err != nil {
			return err
		}
	}
	return nil
}

// Explain writes a deterministic textual dump: operators in dependency
// order with input references.
func (p *Plan) Explain(w io.Writer) {
	_ = p.Walk(func(op Operator) error {
		fmt.Fprintf(w, "  %s", describe(op))
		if ins := op.Inputs(); len(ins) > 0 {
			fmt.Fprint(w, " <-")
			for _, in := range ins {
				fmt.Fprintf(w, " %s", in.Key())
			}
		}
		fmt.Fprintln(w)
		return nil
	})
}

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
