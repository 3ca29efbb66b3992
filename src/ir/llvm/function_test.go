package llvm

import (
	"strings"
	"testing"

	"midlc/src/ir"
	"midlc/src/util"
)

// helperCompile lowers m with the verifier enabled and returns the textual
// IR of the result.
func helperCompile(t *testing.T, m *ir.Module) string {
	t.Helper()
	if err := ir.Validate(m); err != nil {
		t.Fatal(err)
	}
	out, err := Compile(util.Options{Emit: "ir", Verify: true}, m)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

// helperFuncModule wraps a single function into a module.
func helperFuncModule(name string, f *ir.Func, types ...ir.TypeDef) *ir.Module {
	return &ir.Module{
		Name:    name,
		Types:   types,
		Globals: []ir.Global{{Kind: ir.GlobalFunc, Name: name, Func: f}},
	}
}

func TestIdentityFunction(t *testing.T) {
	i32 := ir.IntT(true, 32)
	m := helperFuncModule("id", &ir.Func{
		Params:   []ir.VarID{0},
		Result:   i32,
		VarMin:   0,
		VarTypes: []*ir.Type{i32},
		Entry:    1,
		Blocks:   []ir.Block{{ID: 1, Term: ir.Return(ir.VarExpr(0))}},
	})
	s := helperCompile(t, m)
	if !strings.Contains(s, "define i32 @id(i32 %0)") {
		t.Errorf("missing definition header:\n%s", s)
	}
	if !strings.Contains(s, "entry:") || !strings.Contains(s, "L1:") {
		t.Errorf("missing block labels:\n%s", s)
	}
	if !strings.Contains(s, "br label %L1") {
		t.Errorf("missing entry branch:\n%s", s)
	}
	if !strings.Contains(s, "ret i32 %0") {
		t.Errorf("missing pass-through return:\n%s", s)
	}
}

func TestStraightLineReassignment(t *testing.T) {
	i32 := ir.IntT(true, 32)
	m := helperFuncModule("seven", &ir.Func{
		Result:   i32,
		VarMin:   0,
		VarTypes: []*ir.Type{i32, i32},
		Entry:    0,
		Blocks: []ir.Block{
			{ID: 0, Stmts: []ir.Stmt{ir.Move(1, ir.IntConst(7, i32))}, Term: ir.Jump(1)},
			{ID: 1, Term: ir.Return(ir.VarExpr(1))},
		},
	})
	s := helperCompile(t, m)
	if strings.Contains(s, "phi") {
		t.Errorf("straight-line code must not need a φ:\n%s", s)
	}
	if !strings.Contains(s, "ret i32 7") {
		t.Errorf("constant must flow through the block boundary:\n%s", s)
	}
}

func TestDiamondProducesOnePhi(t *testing.T) {
	cond := ir.IntT(false, 1)
	i32 := ir.IntT(true, 32)
	m := helperFuncModule("pick", &ir.Func{
		Params:   []ir.VarID{0},
		Result:   i32,
		VarMin:   0,
		VarTypes: []*ir.Type{cond, i32},
		Entry:    0,
		Blocks: []ir.Block{
			{ID: 0, Term: ir.Branch(ir.VarExpr(0), 1, 2)},
			{ID: 1, Stmts: []ir.Stmt{ir.Move(1, ir.IntConst(1, i32))}, Term: ir.Jump(3)},
			{ID: 2, Stmts: []ir.Stmt{ir.Move(1, ir.IntConst(2, i32))}, Term: ir.Jump(3)},
			{ID: 3, Term: ir.Return(ir.VarExpr(1))},
		},
	})
	s := helperCompile(t, m)
	if got := strings.Count(s, "phi"); got != 1 {
		t.Fatalf("φ count = %d, want 1:\n%s", got, s)
	}
	if !strings.Contains(s, "phi i32") {
		t.Errorf("φ must merge i32 values:\n%s", s)
	}
	if !strings.Contains(s, "[ 1, %L1 ]") || !strings.Contains(s, "[ 2, %L2 ]") {
		t.Errorf("φ incomings must name both arms:\n%s", s)
	}
}

func TestLoopPhiAtHeader(t *testing.T) {
	cond := ir.IntT(false, 1)
	i32 := ir.IntT(true, 32)
	m := helperFuncModule("count", &ir.Func{
		Params:   []ir.VarID{0},
		Result:   i32,
		VarMin:   0,
		VarTypes: []*ir.Type{cond, i32},
		Entry:    0,
		Blocks: []ir.Block{
			{ID: 0, Stmts: []ir.Stmt{ir.Move(1, ir.IntConst(0, i32))}, Term: ir.Jump(1)},
			{ID: 1, Term: ir.Branch(ir.VarExpr(0), 2, 3)},
			{ID: 2, Stmts: []ir.Stmt{
				ir.Move(1, ir.BinaryE(ir.OpAdd, ir.VarExpr(1), ir.IntConst(1, i32))),
			}, Term: ir.Jump(1)},
			{ID: 3, Term: ir.Return(ir.VarExpr(1))},
		},
	})
	s := helperCompile(t, m)
	if got := strings.Count(s, "phi"); got != 1 {
		t.Fatalf("φ count = %d, want 1 at the header:\n%s", got, s)
	}
	if !strings.Contains(s, "[ 0, %L0 ]") {
		t.Errorf("φ must take the initial value from the preheader:\n%s", s)
	}
	if !strings.Contains(s, "%L2 ]") {
		t.Errorf("φ must take the incremented value from the body:\n%s", s)
	}
}

func TestStructParameterExpansion(t *testing.T) {
	i32 := ir.IntT(true, 32)
	pair := ir.StructT(false,
		ir.Field{Name: "x", Mut: ir.Mutable, Type: i32},
		ir.Field{Name: "y", Mut: ir.Mutable, Type: i32},
	)
	m := helperFuncModule("sum", &ir.Func{
		Params:   []ir.VarID{0},
		Result:   i32,
		VarMin:   0,
		VarTypes: []*ir.Type{pair},
		Entry:    1,
		Blocks: []ir.Block{{
			ID:   1,
			Term: ir.Return(ir.BinaryE(ir.OpAdd, ir.FieldE(0, 0), ir.FieldE(0, 1))),
		}},
	})
	s := helperCompile(t, m)
	if got := strings.Count(s, "extractvalue"); got != 2 {
		t.Fatalf("extractvalue count = %d, want one per field:\n%s", got, s)
	}
	if strings.Contains(s, "phi") {
		t.Errorf("the aggregate id itself must not get a φ:\n%s", s)
	}
	if !strings.Contains(s, "add i32") {
		t.Errorf("return must synthesise the sum from the two leaves:\n%s", s)
	}
}

func TestAggregateMoveThroughDiamond(t *testing.T) {
	cond := ir.IntT(false, 1)
	i32 := ir.IntT(true, 32)
	pairDef := ir.TypeDef{Name: "Pair", Body: ir.StructT(false,
		ir.Field{Name: "x", Mut: ir.Mutable, Type: i32},
		ir.Field{Name: "y", Mut: ir.Mutable, Type: i32},
	)}
	pair := ir.NamedT(0)
	lit := func(a, b int64) ir.Expr {
		return ir.Expr{Kind: ir.ExprStructLit, StructLit: &ir.StructLitExpr{
			Type:   pair,
			Fields: []ir.Expr{ir.IntConst(a, i32), ir.IntConst(b, i32)},
		}}
	}
	m := helperFuncModule("pickpair", &ir.Func{
		Params:   []ir.VarID{0},
		Result:   i32,
		VarMin:   0,
		VarTypes: []*ir.Type{cond, pair},
		Entry:    0,
		Blocks: []ir.Block{
			{ID: 0, Term: ir.Branch(ir.VarExpr(0), 1, 2)},
			{ID: 1, Stmts: []ir.Stmt{ir.Move(1, lit(1, 2))}, Term: ir.Jump(3)},
			{ID: 2, Stmts: []ir.Stmt{ir.Move(1, lit(3, 4))}, Term: ir.Jump(3)},
			{ID: 3, Term: ir.Return(ir.FieldE(1, 0))},
		},
	}, pairDef)
	s := helperCompile(t, m)
	// The aggregate merges as one φ of the named struct type; its leaf is
	// extracted after the merge.
	if got := strings.Count(s, "phi %Pair"); got != 1 {
		t.Fatalf("aggregate φ count = %d, want 1:\n%s", got, s)
	}
	if !strings.Contains(s, "extractvalue %Pair") {
		t.Errorf("leaf read after the merge must extract from the φ:\n%s", s)
	}
}

func TestLoweringIsDeterministic(t *testing.T) {
	cond := ir.IntT(false, 1)
	i32 := ir.IntT(true, 32)
	mk := func() *ir.Module {
		return helperFuncModule("pick", &ir.Func{
			Params:   []ir.VarID{0},
			Result:   i32,
			VarMin:   0,
			VarTypes: []*ir.Type{cond, i32},
			Entry:    0,
			Blocks: []ir.Block{
				{ID: 0, Term: ir.Branch(ir.VarExpr(0), 1, 2)},
				{ID: 1, Stmts: []ir.Stmt{ir.Move(1, ir.IntConst(1, i32))}, Term: ir.Jump(3)},
				{ID: 2, Stmts: []ir.Stmt{ir.Move(1, ir.IntConst(2, i32))}, Term: ir.Jump(3)},
				{ID: 3, Term: ir.Return(ir.VarExpr(1))},
			},
		})
	}
	a := helperCompile(t, mk())
	b := helperCompile(t, mk())
	if a != b {
		t.Fatalf("two runs differ:\n%s\n---\n%s", a, b)
	}
}

func TestCallAndGlobalDeclaration(t *testing.T) {
	i32 := ir.IntT(true, 32)
	callee := &ir.Func{
		Params:   []ir.VarID{0},
		Result:   i32,
		VarMin:   0,
		VarTypes: []*ir.Type{i32},
		Entry:    0,
		Blocks:   []ir.Block{{ID: 0, Term: ir.Return(ir.VarExpr(0))}},
	}
	caller := &ir.Func{
		Result:   i32,
		VarMin:   0,
		VarTypes: []*ir.Type{i32},
		Entry:    0,
		Blocks: []ir.Block{{
			ID: 0,
			Stmts: []ir.Stmt{ir.Move(0, ir.Expr{Kind: ir.ExprCall, Call: &ir.CallExpr{
				Global: 1,
				Args:   []ir.Expr{ir.IntConst(5, i32)},
			}})},
			Term: ir.Return(ir.VarExpr(0)),
		}},
	}
	m := &ir.Module{
		Name: "calls",
		Globals: []ir.Global{
			{Kind: ir.GlobalVar, Name: "counter", Type: i32},
			{Kind: ir.GlobalFunc, Name: "echo", Func: callee},
			{Kind: ir.GlobalFunc, Name: "main", Func: caller},
		},
	}
	s := helperCompile(t, m)
	if !strings.Contains(s, "@counter = external global i32") {
		t.Errorf("missing external global declaration:\n%s", s)
	}
	if !strings.Contains(s, "call i32 @echo(i32 5)") {
		t.Errorf("missing lowered call:\n%s", s)
	}
}
