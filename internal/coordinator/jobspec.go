package coordinator

import (
	"fmt"

	"github.com/sluicedata/sluice/internal/physical"
	"github.com/sluicedata/sluice/internal/row"
)

// JobRequest is the submission payload: the physical DAG as a flat node
// list plus the job name. Node order is dependency order, so a consumer
// always appears after its inputs.
type JobRequest struct {
	Name  string     `json:"name"`
	Graph []GraphNode `json:"graph"`
}

// GraphNode is one physical operator on the wire.
type GraphNode struct {
	ID     string   `json:"id"`
	Type   string   `json:"op_type"`
	Inputs []string `json:"inputs,omitempty"`

	// Load/Store fields.
	Location string   `json:"location,omitempty"`
	Format   string   `json:"format,omitempty"`
	Fields   []string `json:"fields,omitempty"`

	// Expression fields.
	Field string    `json:"field,omitempty"`
	Op    string    `json:"op,omitempty"`
	Value *WireValue `json:"value,omitempty"`
}

// WireValue carries a typed constant.
type WireValue struct {
	T string `json:"t"`
	S string `json:"s,omitempty"`
	I int64  `json:"i,omitempty"`
	B bool   `json:"b,omitempty"`
}

func wireValue(v row.Value) *WireValue {
	switch v.Kind {
	case row.KindInt:
		return &WireValue{T: "i", I: v.Int}
	case row.KindBool:
		return &WireValue{T: "b", B: v.Bool}
	default:
		return &WireValue{T: "s", S: v.Str}
	}
}

// EncodeRequest flattens p into a JobRequest.
func EncodeRequest(jobName string, p *physical.Plan) (*JobRequest, error) {
	enc := &graphEncoder{}
	if err := p.Walk(func(op physical.Operator) error {
		return op.Accept(enc)
	}); err != nil {
		return nil, fmt.Errorf("encode physical plan: %w", err)
	}
	return &JobRequest{Name: jobName, Graph: enc.nodes}, nil
}

// graphEncoder implements physical.Visitor, emitting one GraphNode per
// operator in visit order.
type graphEncoder struct {
	nodes []GraphNode
}

var _ physical.Visitor = (*graphEncoder)(nil)

func inputIDs(op physical.Operator) []string {
	ins := op.Inputs()
	if len(ins) == 0 {
		return nil
	}
	ids := make([]string, len(ins))
	for i, in := range ins {
		ids[i] = in.Key().String()
	}
	return ids
}

func (g *graphEncoder) add(n GraphNode) {
	g.nodes = append(g.nodes, n)
}

func (g *graphEncoder) VisitLoad(o *physical.Load) error {
	g.add(GraphNode{
		ID: o.Key().String(), Type: "load",
		Location: o.Location, Format: o.Format, Fields: o.FieldNames,
	})
	return nil
}

func (g *graphEncoder) VisitFilter(o *physical.Filter) error {
	g.add(GraphNode{ID: o.Key().String(), Type: "filter", Inputs: inputIDs(o)})
	return nil
}

func (g *graphEncoder) VisitStore(o *physical.Store) error {
	g.add(GraphNode{
		ID: o.Key().String(), Type: "store", Inputs: inputIDs(o),
		Location: o.Location, Format: o.Format,
	})
	return nil
}

func (g *graphEncoder) VisitConst(o *physical.Const) error {
	g.add(GraphNode{ID: o.Key().String(), Type: "const", Value: wireValue(o.Value)})
	return nil
}

func (g *graphEncoder) VisitColumn(o *physical.Column) error {
	g.add(GraphNode{ID: o.Key().String(), Type: "column", Field: o.Field})
	return nil
}

func (g *graphEncoder) VisitBinary(o *physical.Binary) error {
	g.add(GraphNode{ID: o.Key().String(), Type: "binary", Op: o.Op, Inputs: inputIDs(o)})
	return nil
}

func (g *graphEncoder) VisitBinCond(o *physical.BinCond) error {
	g.add(GraphNode{ID: o.Key().String(), Type: "bincond", Inputs: inputIDs(o)})
	return nil
}
