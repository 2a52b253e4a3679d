package logical

import (
	"fmt"
	"io"
	"sort"

	"github.com/sluicedata/sluice/internal/plan"
)

// Plan is a DAG of logical operators plus the alias table binding
// user-facing names to subtree roots. Roots are terminal operators; a
// plan stays acyclic by construction (operators reference already-built
// inputs only).
type Plan struct {
	ops     map[plan.OperatorKey]Operator
	aliases map[string]Operator
}

// NewPlan creates an empty plan.
func NewPlan() *Plan {
	return &Plan{
		ops:     make(map[plan.OperatorKey]Operator),
		aliases: make(map[string]Operator),
	}
}

// Add registers op and its reachable inputs in the operator table.
// Registering the same key twice with a different node is a programming
// error and panics: no two live nodes in a plan may share a key.
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
	}
}

// Bind names a subtree root with an alias, registering the subtree.
func (p *Plan) Bind(alias string, root Operator) {
	p.Add(root)
	p.aliases[alias] = root
}

// Alias returns the root bound to name, or nil.
func (p *Plan) Alias(name string) Operator {
	return p.aliases[name]
}

// Aliases returns the bound alias names in sorted order.
func (p *Plan) Aliases() []string {
	names := make([]string, 0, len(p.aliases))
	for name := range p.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operator returns the node registered under key, or nil.
func (p *Plan) Operator(key plan.OperatorKey) Operator {
	return p.ops[key]
}

// Size returns the number of registered operators.
func (p *Plan) Size() int { return len(p.ops) }

// Roots returns the alias roots in alias-name order. The same root may be
// bound under several aliases; it appears once per alias.
func (p *Plan) Roots() []Operator {
	names := p.Aliases()
	roots := make([]Operator, 0, len(names))
	for _, name := range names {
		roots = append(roots, p.aliases[name])
	}
	return roots
}

// Walk visits every operator reachable from the alias roots exactly once,
// inputs before consumers, in deterministic order. It stops on the first
// error from fn.
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
	for _, root := range p.Roots() {
		if err := visit(root); err != nil {
			return err
		}
	}
	return nil
}

// Explain writes a deterministic textual dump of the plan: one section per
// alias, operators in dependency order, children indented under their
// consumer is avoided in favor of a flat listing with input references so
// shared subtrees print once.
func (p *Plan) Explain(w io.Writer) {
	for _, alias := range p.Aliases() {
		fmt.Fprintf(w, "alias %s:\n", alias)
		seen := make(map[plan.OperatorKey]bool)
		var visit func(op Operator)
		visit = func(op Operator) {
			if op == nil || seen[op.Key()] {
				return
			}
			seen[op.Key()] = true
			for _, in := range op.Inputs() {
				visit(in)
			}
			fmt.Fprintf(w, "  %s", describe(op))
			if ins := op.Inputs(); len(ins) > 0 {
				fmt.Fprint(w, " <-")
				for _, in := range ins {
					fmt.Fprintf(w, " %s", in.Key())
				}
			}
			fmt.Fprintln(w)
		}
		visit(p.aliases[alias])
	}
}
