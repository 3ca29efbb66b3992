package cfg

import (
	"testing"

	"midlc/src/ir"
)

// helperPlan analyses f and returns its φ plan.
func helperPlan(t *testing.T, f *ir.Func) PhiPlan {
	t.Helper()
	g, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	return PlanPhis(g)
}

func TestStraightLineNeedsNoPhi(t *testing.T) {
	i32 := ir.IntT(true, 32)
	f := &ir.Func{
		VarMin:   0,
		VarTypes: []*ir.Type{i32, i32},
		Entry:    0,
		Blocks: []ir.Block{
			{ID: 0, Stmts: []ir.Stmt{ir.Move(1, ir.IntConst(7, i32))}, Term: ir.Jump(1)},
			{ID: 1, Term: ir.Return(ir.VarExpr(1))},
		},
	}
	plan := helperPlan(t, f)
	if len(plan) != 0 {
		t.Fatalf("plan = %v, want no φs for straight-line code", plan)
	}
}

func TestDiamondNeedsOnePhiAtJoin(t *testing.T) {
	i1 := ir.IntT(false, 1)
	i32 := ir.IntT(true, 32)
	f := &ir.Func{
		Params:   []ir.VarID{0},
		VarMin:   0,
		VarTypes: []*ir.Type{i1, i32},
		Entry:    0,
		Blocks: []ir.Block{
			{ID: 0, Term: ir.Branch(ir.VarExpr(0), 1, 2)},
			{ID: 1, Stmts: []ir.Stmt{ir.Move(1, ir.IntConst(1, i32))}, Term: ir.Jump(3)},
			{ID: 2, Stmts: []ir.Stmt{ir.Move(1, ir.IntConst(2, i32))}, Term: ir.Jump(3)},
			{ID: 3, Term: ir.Return(ir.VarExpr(1))},
		},
	}
	plan := helperPlan(t, f)
	if len(plan) != 1 {
		t.Fatalf("plan = %v, want φs only at the join", plan)
	}
	ids := plan[3]
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("plan[3] = %v, want [1]", ids)
	}
}

func TestLoopNeedsPhiAtHeader(t *testing.T) {
	i1 := ir.IntT(false, 1)
	i32 := ir.IntT(true, 32)
	f := &ir.Func{
		Params:   []ir.VarID{0},
		VarMin:   0,
		VarTypes: []*ir.Type{i1, i32},
		Entry:    0,
		Blocks: []ir.Block{
			{ID: 0, Stmts: []ir.Stmt{ir.Move(1, ir.IntConst(0, i32))}, Term: ir.Jump(1)},
			{ID: 1, Term: ir.Branch(ir.VarExpr(0), 2, 3)},
			{ID: 2, Stmts: []ir.Stmt{ir.Move(1, ir.BinaryE(ir.OpAdd, ir.VarExpr(1), ir.IntConst(1, i32)))}, Term: ir.Jump(1)},
			{ID: 3, Term: ir.Return(ir.VarExpr(1))},
		},
	}
	plan := helperPlan(t, f)
	ids := plan[1]
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("plan[1] = %v, want [1]", ids)
	}
	if len(plan[2]) != 0 || len(plan[3]) != 0 {
		t.Fatalf("plan = %v, want φ only at the header", plan)
	}
}

func TestPlanOrderIsAscending(t *testing.T) {
	cond := ir.IntT(false, 1)
	i32 := ir.IntT(true, 32)
	mk := func(ids ...ir.VarID) []ir.Stmt {
		res := make([]ir.Stmt, len(ids))
		for i2, e1 := range ids {
			res[i2] = ir.Move(e1, ir.IntConst(int64(i2), i32))
		}
		return res
	}
	f := &ir.Func{
		Params:   []ir.VarID{0},
		VarMin:   0,
		VarTypes: []*ir.Type{cond, i32, i32, i32},
		Entry:    0,
		Blocks: []ir.Block{
			{ID: 0, Term: ir.Branch(ir.VarExpr(0), 1, 2)},
			{ID: 1, Stmts: mk(3, 1, 2), Term: ir.Jump(3)},
			{ID: 2, Stmts: mk(2, 3, 1), Term: ir.Jump(3)},
			{ID: 3, Term: ir.Return(ir.VarExpr(1))},
		},
	}
	plan := helperPlan(t, f)
	ids := plan[3]
	if len(ids) != 3 {
		t.Fatalf("plan[3] = %v, want three variables", ids)
	}
	for i1 := 1; i1 < len(ids); i1++ {
		if ids[i1-1] >= ids[i1] {
			t.Fatalf("plan[3] = %v, want strictly ascending ids", ids)
		}
	}
}
