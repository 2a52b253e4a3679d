package cli

import (
	"fmt"

	"github.com/sluicedata/sluice/internal/logical"
	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/row"
	"github.com/sluicedata/sluice/internal/schema"
)

// BuildPlan turns a manifest into a logical plan, allocating real operator
// keys from ids in scope. Node references are resolved by manifest-local
// id; every referenced node must be declared before the referencing node.
func BuildPlan(m *Manifest, ids *plan.IDGenerator, scope string) (*logical.Plan, error) {
	built := make(map[int]logical.Operator, len(m.Nodes))

	ref := func(n ManifestNode, what string, id int) (logical.Operator, error) {
		op, ok := built[id]
		if !ok {
			return nil, &LoadError{Code: ErrCodeBadGraph,
				Message: fmt.Sprintf("node %d (%s): %s references undeclared node %d", n.ID, n.Kind, what, id)}
		}
		return op, nil
	}

	for _, n := range m.Nodes {
		if _, dup := built[n.ID]; dup {
			return nil, &LoadError{Code: ErrCodeBadGraph,
				Message: fmt.Sprintf("node id %d declared twice", n.ID)}
		}
		key := ids.NextKey(scope)

		var (
			op  logical.Operator
			err error
		)
		switch n.Kind {
		case "load":
			declared, serr := buildSchema(n)
			if serr != nil {
				return nil, serr
			}
			op = logical.NewLoad(key, n.Location, n.Format, declared)
		case "filter":
			var input, cond logical.Operator
			if input, err = ref(n, "input", n.Input); err != nil {
				return nil, err
			}
			if cond, err = ref(n, "cond", n.Cond); err != nil {
				return nil, err
			}
			op = logical.NewFilter(key, input, cond)
		case "store":
			var input logical.Operator
			if input, err = ref(n, "input", n.Input); err != nil {
				return nil, err
			}
			op = logical.NewStore(key, input, n.Location, n.Format)
		case "column":
			var rel logical.Operator
			if rel, err = ref(n, "rel", n.Rel); err != nil {
				return nil, err
			}
			op = logical.NewColumn(key, rel, n.Field)
		case "const":
			value, verr := buildConst(n)
			if verr != nil {
				return nil, verr
			}
			op = logical.NewConst(key, value)
		case "binary":
			var lhs, rhs logical.Operator
			if lhs, err = ref(n, "lhs", n.Lhs); err != nil {
				return nil, err
			}
			if rhs, err = ref(n, "rhs", n.Rhs); err != nil {
				return nil, err
			}
			bop := logical.BinaryOp(n.Op)
			if !bop.Valid() {
				return nil, &LoadError{Code: ErrCodeBadGraph,
					Message: fmt.Sprintf("node %d: unknown binary operator %q", n.ID, n.Op)}
			}
			op = logical.NewBinary(key, bop, lhs, rhs)
		case "bincond":
			var cond, lhs, rhs logical.Operator
			if cond, err = ref(n, "cond", n.Cond); err != nil {
				return nil, err
			}
			if lhs, err = ref(n, "lhs", n.Lhs); err != nil {
				return nil, err
			}
			if rhs, err = ref(n, "rhs", n.Rhs); err != nil {
				return nil, err
			}
			op = logical.NewBinCond(key, cond, lhs, rhs)
		default:
			return nil, &LoadError{Code: ErrCodeBadGraph,
				Message: fmt.Sprintf("node %d: unknown kind %q", n.ID, n.Kind)}
		}
		built[n.ID] = op
	}

	root, ok := built[m.Root]
	if !ok {
		return nil, &LoadError{Code: ErrCodeBadGraph,
			Message: fmt.Sprintf("plan.root references undeclared node %d", m.Root)}
	}

	lp := logical.NewPlan()
	lp.Add(root)
	lp.Bind(m.Alias, root)
	return lp, nil
}

func buildSchema(n ManifestNode) (*schema.Schema, error) {
	if len(n.Schema) == 0 {
		return nil, nil
	}
	fields := make([]schema.Field, len(n.Schema))
	for i, f := range n.Schema {
		ft := schema.FieldType(f.Type)
		if !schema.ValidFieldType(ft) {
			return nil, &LoadError{Code: ErrCodeBadGraph,
				Message: fmt.Sprintf("node %d: field %q has unknown type %q", n.ID, f.Name, f.Type)}
		}
		fields[i] = schema.Field{Name: f.Name, Type: ft}
	}
	return schema.New(fields...), nil
}

func buildConst(n ManifestNode) (row.Value, error) {
	set := 0
	var v row.Value
	if n.Str != nil {
		v = row.String(*n.Str)
		set++
	}
	if n.Int != nil {
		v = row.Int(*n.Int)
		set++
	}
	if n.Bool != nil {
		v = row.Bool(*n.Bool)
		set++
	}
	if set != 1 {
		return row.Value{}, &LoadError{Code: ErrCodeBadGraph,
			Message: fmt.Sprintf("node %d: const needs exactly one of str, int, bool", n.ID)}
	}
	return v, nil
}
