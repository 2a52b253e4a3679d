package translate

import (
	"errors"

	"github.com/sluicedata/sluice/internal/logical"
	"github.com/sluicedata/sluice/internal/physical"
	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/schema"
)

// Result is the outcome of a successful translation.
type Result struct {
	// Plan is the fully wired physical plan.
	Plan *physical.Plan

	// KeyMap maps each logical alias root's key to the key of the
	// physical subtree root implementing it.
	KeyMap map[plan.OperatorKey]plan.OperatorKey
}

// Translate compiles lp into a physical plan, allocating physical node ids
// from ids in each logical node's scope. It is pure: the logical plan is
// only read, and on error nothing is returned.
func Translate(lp *logical.Plan, ids *plan.IDGenerator) (*Result, error) {
	if lp == nil {
		return nil, newError(ErrCodeNilPlan, plan.OperatorKey{}, "no plan to compile")
	}

	t := &translator{
		ids:    ids,
		pp:     physical.NewPlan(),
		mapped: make(map[plan.OperatorKey]physical.Operator),
	}

	// Dependency-order traversal: every node is visited after all of its
	// inputs, so visitor methods can assume translated children exist.
	if err := lp.Walk(func(op logical.Operator) error {
		return op.Accept(t)
	}); err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &CompileError{
			Code:    ErrCodeUnknownOperator,
			Message: "plan translation failed",
			Cause:   err,
		}
	}

	keyMap := make(map[plan.OperatorKey]plan.OperatorKey)
	for _, alias := range lp.Aliases() {
		root := lp.Alias(alias)
		phys, ok := t.mapped[root.Key()]
		if !ok {
			return nil, newError(ErrCodeUnknownOperator, root.Key(),
				"alias root %s was never translated", root.Name())
		}
		keyMap[root.Key()] = phys.Key()
		t.pp.Add(phys)
	}

	return &Result{Plan: t.pp, KeyMap: keyMap}, nil
}

// translator implements logical.Visitor, emitting one physical node per
// logical node and recording the mapping.
type translator struct {
	ids    *plan.IDGenerator
	pp     *physical.Plan
	mapped map[plan.OperatorKey]physical.Operator
}

var _ logical.Visitor = (*translator)(nil)

// child returns the already-translated physical node for a logical input.
func (t *translator) child(parent logical.Operator, in logical.Operator) (physical.Operator, error) {
	if in == nil {
		return nil, newError(ErrCodeArity, parent.Key(), "%s is missing an input", parent.Name())
	}
	phys, ok := t.mapped[in.Key()]
	if !ok {
		return nil, newError(ErrCodeArity, parent.Key(),
			"input %s of %s translated out of order", in.Name(), parent.Name())
	}
	return phys, nil
}

func (t *translator) record(lop logical.Operator, pop physical.Operator) {
	t.mapped[lop.Key()] = pop
}

func (t *translator) VisitLoad(o *logical.Load) error {
	var fields []string
	if o.Declared != nil {
		s, err := o.Schema()
		if err != nil {
			return &CompileError{Code: ErrCodeSchema, Key: o.Key(),
				Message: "load schema unresolved", Cause: err}
		}
		fields = make([]string, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = f.Name
		}
	}
	t.record(o, physical.NewLoad(t.ids.NextKey(o.Key().Scope), o.Location, o.Format, fields))
	return nil
}

func (t *translator) VisitFilter(o *logical.Filter) error {
	input, err := t.child(o, o.Input)
	if err != nil {
		return err
	}
	cond, err := t.child(o, o.Cond)
	if err != nil {
		return err
	}
	t.record(o, physical.NewFilter(t.ids.NextKey(o.Key().Scope), input, cond))
	return nil
}

func (t *translator) VisitStore(o *logical.Store) error {
	input, err := t.child(o, o.Input)
	if err != nil {
		return err
	}
	t.record(o, physical.NewStore(t.ids.NextKey(o.Key().Scope), input, o.Location, o.Format))
	return nil
}

func (t *translator) VisitConst(o *logical.Const) error {
	t.record(o, physical.NewConst(t.ids.NextKey(o.Key().Scope), o.Value))
	return nil
}

func (t *translator) VisitColumn(o *logical.Column) error {
	// Resolving the column's schema validates the field against the
	// relation it is bound to; an unresolvable reference fails the whole
	// translation here rather than at run time.
	if _, err := o.Schema(); err != nil {
		var serr *schema.Error
		if errors.As(err, &serr) {
			return &CompileError{Code: ErrCodeSchema, Key: o.Key(),
				Message: serr.Message, Cause: err}
		}
		return &CompileError{Code: ErrCodeSchema, Key: o.Key(),
			Message: "column schema unresolved", Cause: err}
	}
	t.record(o, physical.NewColumn(t.ids.NextKey(o.Key().Scope), o.Field))
	return nil
}

func (t *translator) VisitBinary(o *logical.Binary) error {
	if !o.Op.Valid() {
		return newError(ErrCodeUnknownOperator, o.Key(), "unknown binary operator %q", o.Op)
	}
	lhs, err := t.child(o, o.Lhs)
	if err != nil {
		return err
	}
	rhs, err := t.child(o, o.Rhs)
	if err != nil {
		return err
	}
	t.record(o, physical.NewBinary(t.ids.NextKey(o.Key().Scope), string(o.Op), lhs, rhs))
	return nil
}

func (t *translator) VisitBinCond(o *logical.BinCond) error {
	// Input order is load-bearing: condition, true branch, false branch.
	cond, err := t.child(o, o.Cond)
	if err != nil {
		return err
	}
	lhs, err := t.child(o, o.Lhs)
	if err != nil {
		return err
	}
	rhs, err := t.child(o, o.Rhs)
	if err != nil {
		return err
	}
	t.record(o, physical.NewBinCond(t.ids.NextKey(o.Key().Scope), cond, lhs, rhs))
	return nil
}
