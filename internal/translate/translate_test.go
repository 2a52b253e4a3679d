package translate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sluicedata/sluice/internal/logical"
	"github.com/sluicedata/sluice/internal/physical"
	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/row"
	"github.com/sluicedata/sluice/internal/schema"
)

const scope = "s"

func peopleSchema() *schema.Schema {
	return schema.New(
		schema.Field{Name: "name", Type: schema.TypeString},
		schema.Field{Name: "age", Type: schema.TypeInt},
	)
}

// buildPlan constructs load -> filter(age >= 21) -> store with a BinCond
// nested in the condition, bound under one alias.
func buildPlan(ids *plan.IDGenerator) *logical.Plan {
	load := logical.NewLoad(ids.NextKey(scope), "/data/people", "text", peopleSchema())
	age := logical.NewColumn(ids.NextKey(scope), load, "age")
	limit := logical.NewConst(ids.NextKey(scope), row.Int(21))
	ge := logical.NewBinary(ids.NextKey(scope), logical.OpGe, age, limit)
	one := logical.NewConst(ids.NextKey(scope), row.Bool(true))
	zero := logical.NewConst(ids.NextKey(scope), row.Bool(false))
	cond := logical.NewBinCond(ids.NextKey(scope), ge, one, zero)
	filter := logical.NewFilter(ids.NextKey(scope), load, cond)
	store := logical.NewStore(ids.NextKey(scope), filter, "/data/adults", "text")

	lp := logical.NewPlan()
	lp.Bind("adults", store)
	return lp
}

// signature renders the structural shape of a physical subtree: variant
// names and edge topology, independent of allocated ids.
func signature(op physical.Operator) string {
	var b strings.Builder
	var visit func(op physical.Operator)
	visit = func(op physical.Operator) {
		variant := strings.SplitN(op.Name(), " ", 2)[0]
		b.WriteString(variant)
		ins := op.Inputs()
		if len(ins) == 0 {
			return
		}
		b.WriteString("(")
		for i, in := range ins {
			if i > 0 {
				b.WriteString(",")
			}
			visit(in)
		}
		b.WriteString(")")
	}
	visit(op)
	return b.String()
}

func TestTranslate_Isomorphic(t *testing.T) {
	lp := buildPlan(plan.NewIDGenerator())

	res, err := Translate(lp, plan.NewIDGeneratorAt(scope, 100))
	require.NoError(t, err)

	assert.Equal(t, lp.Size(), res.Plan.Size(), "1:1 expansion for every variant in this plan")

	leaf, err := res.Plan.Leaf()
	require.NoError(t, err)
	assert.Equal(t,
		"Store(Filter(Load,BinCond(Binary(Column,Const),Const,Const)))",
		signature(leaf))
}

func TestTranslate_TwiceYieldsSameShape(t *testing.T) {
	first := buildPlan(plan.NewIDGenerator())
	second := buildPlan(plan.NewIDGenerator())

	resA, err := Translate(first, plan.NewIDGeneratorAt(scope, 100))
	require.NoError(t, err)
	resB, err := Translate(second, plan.NewIDGeneratorAt(scope, 500))
	require.NoError(t, err)

	leafA, err := resA.Plan.Leaf()
	require.NoError(t, err)
	leafB, err := resB.Plan.Leaf()
	require.NoError(t, err)

	assert.Equal(t, signature(leafA), signature(leafB),
		"same logical plan must compile to structurally isomorphic physical plans")
	assert.Equal(t, resA.Plan.Size(), resB.Plan.Size())
}

func TestTranslate_PreservesBinCondOrder(t *testing.T) {
	lp := buildPlan(plan.NewIDGenerator())
	res, err := Translate(lp, plan.NewIDGeneratorAt(scope, 100))
	require.NoError(t, err)

	var bc *physical.BinCond
	err = res.Plan.Walk(func(op physical.Operator) error {
		if c, ok := op.(*physical.BinCond); ok {
			bc = c
		}
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, bc)

	ins := bc.Inputs()
	require.Len(t, ins, 3)
	_, condIsBinary := ins[0].(*physical.Binary)
	assert.True(t, condIsBinary, "condition must stay the first input")
	lhs, ok := ins[1].(*physical.Const)
	require.True(t, ok)
	assert.True(t, lhs.Value.Bool, "true branch must stay the second input")
	rhs, ok := ins[2].(*physical.Const)
	require.True(t, ok)
	assert.False(t, rhs.Value.Bool, "false branch must stay the third input")
}

func TestTranslate_KeyMapCoversAliasRoots(t *testing.T) {
	lp := buildPlan(plan.NewIDGenerator())
	root := lp.Alias("adults")

	res, err := Translate(lp, plan.NewIDGeneratorAt(scope, 100))
	require.NoError(t, err)

	physKey, ok := res.KeyMap[root.Key()]
	require.True(t, ok, "every alias root must have a key-map entry")

	leaf, err := res.Plan.Leaf()
	require.NoError(t, err)
	assert.Equal(t, leaf.Key(), physKey,
		"the mapped key is the physical subtree root implementing the alias")
}

func TestTranslate_NilPlan(t *testing.T) {
	_, err := Translate(nil, plan.NewIDGenerator())
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeNilPlan, ce.Code)
}

func TestTranslate_UnknownBinaryOperator(t *testing.T) {
	ids := plan.NewIDGenerator()
	bad := logical.NewBinary(ids.NextKey(scope), logical.BinaryOp("xor"),
		logical.NewConst(ids.NextKey(scope), row.Int(1)),
		logical.NewConst(ids.NextKey(scope), row.Int(2)))
	lp := logical.NewPlan()
	lp.Bind("bad", bad)

	_, err := Translate(lp, plan.NewIDGeneratorAt(scope, 100))
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeUnknownOperator, ce.Code)
	assert.Equal(t, bad.Key(), ce.Key)
}

func TestTranslate_UnresolvedColumnFails(t *testing.T) {
	ids := plan.NewIDGenerator()
	load := logical.NewLoad(ids.NextKey(scope), "/in", "text", peopleSchema())
	bad := logical.NewColumn(ids.NextKey(scope), load, "salary")
	filter := logical.NewFilter(ids.NextKey(scope), load, bad)
	lp := logical.NewPlan()
	lp.Bind("broken", filter)

	res, err := Translate(lp, plan.NewIDGeneratorAt(scope, 100))
	require.Error(t, err)
	assert.Nil(t, res, "no partially wired plan may escape a failed translation")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeSchema, ce.Code)
}

func TestTranslate_MissingInputArity(t *testing.T) {
	ids := plan.NewIDGenerator()
	filter := logical.NewFilter(ids.NextKey(scope), nil,
		logical.NewConst(ids.NextKey(scope), row.Bool(true)))
	lp := logical.NewPlan()
	lp.Bind("broken", filter)

	_, err := Translate(lp, plan.NewIDGeneratorAt(scope, 100))
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeArity, ce.Code)
	assert.True(t, IsCompileError(fmt.Errorf("wrapped: %w", err)))
}
