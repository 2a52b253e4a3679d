package coordinator

import (
	"context"
	"fmt"
	"io"

	"github.com/sluicedata/sluice/internal/format"
	"github.com/sluicedata/sluice/internal/physical"
	"github.com/sluicedata/sluice/internal/row"
	"github.com/sluicedata/sluice/internal/storage"
)

// LocalRunner executes physical plans in-process against a storage
// backend. It handles the Load → Filter → Store pipelines this engine
// emits, evaluating filter expressions per row.
type LocalRunner struct {
	store   storage.Storage
	formats *format.Registry
}

// NewLocalRunner creates a runner over store.
func NewLocalRunner(store storage.Storage, formats *format.Registry) *LocalRunner {
	return &LocalRunner{store: store, formats: formats}
}

// Launch evaluates the plan and materializes its output. The returned
// status is terminal: COMPLETED on success, FAILED alongside the error.
func (r *LocalRunner) Launch(ctx context.Context, jobName string, p *physical.Plan) (Status, error) {
	leaf, err := p.Leaf()
	if err != nil {
		return StatusFailed, err
	}
	sink, ok := leaf.(*physical.Store)
	if !ok {
		return StatusFailed, fmt.Errorf("job %q: plan leaf %s is not a store; plan was not normalized", jobName, leaf.Name())
	}

	tuples, _, err := r.evalRelation(ctx, sink.Input)
	if err != nil {
		return StatusFailed, fmt.Errorf("job %q: %w", jobName, err)
	}

	codec, err := r.formats.Lookup(sink.Format)
	if err != nil {
		return StatusFailed, fmt.Errorf("job %q: %w", jobName, err)
	}
	out, err := r.store.AsElement(sink.Location).Create()
	if err != nil {
		return StatusFailed, fmt.Errorf("job %q: create output %s: %w", jobName, sink.Location, err)
	}
	w := codec.NewWriter(out)
	for _, t := range tuples {
		if err := w.Write(t); err != nil {
			out.Close()
			return StatusFailed, fmt.Errorf("job %q: write output: %w", jobName, err)
		}
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return StatusFailed, fmt.Errorf("job %q: flush output: %w", jobName, err)
	}
	if err := out.Close(); err != nil {
		return StatusFailed, fmt.Errorf("job %q: close output: %w", jobName, err)
	}
	return StatusCompleted, nil
}

// evalRelation produces the rows of a relational operator along with the
// positional field-name table for expression evaluation.
func (r *LocalRunner) evalRelation(ctx context.Context, op physical.Operator) ([]row.Tuple, map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	switch o := op.(type) {
	case *physical.Load:
		return r.evalLoad(o)
	case *physical.Filter:
		in, fields, err := r.evalRelation(ctx, o.Input)
		if err != nil {
			return nil, nil, err
		}
		var kept []row.Tuple
		for _, t := range in {
			v, err := evalExpr(o.Cond, t, fields)
			if err != nil {
				return nil, nil, err
			}
			if v.Kind != row.KindBool {
				return nil, nil, fmt.Errorf("%s: condition produced %s, want bool", o.Name(), v.FieldType())
			}
			if v.Bool {
				kept = append(kept, t)
			}
		}
		return kept, fields, nil
	default:
		return nil, nil, fmt.Errorf("local execution does not support %s", op.Name())
	}
}

func (r *LocalRunner) evalLoad(o *physical.Load) ([]row.Tuple, map[string]int, error) {
	codec, err := r.formats.Lookup(o.Format)
	if err != nil {
		return nil, nil, err
	}
	in, err := r.store.AsElement(o.Location).Open()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: open %s: %w", o.Name(), o.Location, err)
	}
	defer in.Close()

	var tuples []row.Tuple
	reader := codec.NewReader(in)
	for {
		t, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s: read %s: %w", o.Name(), o.Location, err)
		}
		tuples = append(tuples, t)
	}

	fields := make(map[string]int, len(o.FieldNames))
	for i, name := range o.FieldNames {
		fields[name] = i
	}
	return tuples, fields, nil
}

// evalExpr evaluates an expression operator against one row.
func evalExpr(op physical.Operator, t row.Tuple, fields map[string]int) (row.Value, error) {
	switch o := op.(type) {
	case *physical.Const:
		return o.Value, nil
	case *physical.Column:
		i, ok := fields[o.Field]
		if !ok {
			return row.Value{}, fmt.Errorf("%s: field %q not positioned by the load", o.Name(), o.Field)
		}
		if i >= len(t) {
			return row.Value{}, fmt.Errorf("%s: row has %d fields, field %q is at %d", o.Name(), len(t), o.Field, i)
		}
		return t[i], nil
	case *physical.Binary:
		return evalBinary(o, t, fields)
	case *physical.BinCond:
		cond, err := evalExpr(o.Cond, t, fields)
		if err != nil {
			return row.Value{}, err
		}
		if cond.Kind != row.KindBool {
			return row.Value{}, fmt.Errorf("%s: condition produced %s, want bool", o.Name(), cond.FieldType())
		}
		if cond.Bool {
			return evalExpr(o.Lhs, t, fields)
		}
		return evalExpr(o.Rhs, t, fields)
	default:
		return row.Value{}, fmt.Errorf("%s is not an expression operator", op.Name())
	}
}

func evalBinary(o *physical.Binary, t row.Tuple, fields map[string]int) (row.Value, error) {
	lhs, err := evalExpr(o.Lhs, t, fields)
	if err != nil {
		return row.Value{}, err
	}
	rhs, err := evalExpr(o.Rhs, t, fields)
	if err != nil {
		return row.Value{}, err
	}
	switch o.Op {
	case "eq":
		return row.Bool(row.Compare(lhs, rhs) == 0), nil
	case "ne":
		return row.Bool(row.Compare(lhs, rhs) != 0), nil
	case "lt":
		return row.Bool(row.Compare(lhs, rhs) < 0), nil
	case "le":
		return row.Bool(row.Compare(lhs, rhs) <= 0), nil
	case "gt":
		return row.Bool(row.Compare(lhs, rhs) > 0), nil
	case "ge":
		return row.Bool(row.Compare(lhs, rhs) >= 0), nil
	case "add", "sub", "mul":
		li, lok := row.AsInt(lhs)
		ri, rok := row.AsInt(rhs)
		if !lok || !rok {
			return row.Value{}, fmt.Errorf("%s: arithmetic needs integer operands", o.Name())
		}
		switch o.Op {
		case "add":
			return row.Int(li + ri), nil
		case "sub":
			return row.Int(li - ri), nil
		default:
			return row.Int(li * ri), nil
		}
	default:
		return row.Value{}, fmt.Errorf("%s: unknown operator %q", o.Name(), o.Op)
	}
}
