package cfg

import (
	"testing"

	"midlc/src/ir"
)

// helperFunc builds a function body from blocks only; no variables needed
// for the dominance tests.
func helperFunc(entry ir.NodeID, blocks ...ir.Block) *ir.Func {
	return &ir.Func{Entry: entry, Blocks: blocks}
}

// boolCond returns a throwaway i1 literal usable as a branch condition.
func boolCond() ir.Expr {
	return ir.IntConst(1, ir.IntT(false, 1))
}

func TestDiamondDominators(t *testing.T) {
	// 0 -> 1, 0 -> 2, 1 -> 3, 2 -> 3.
	f := helperFunc(0,
		ir.Block{ID: 0, Term: ir.Branch(boolCond(), 1, 2)},
		ir.Block{ID: 1, Term: ir.Jump(3)},
		ir.Block{ID: 2, Term: ir.Jump(3)},
		ir.Block{ID: 3, Term: ir.ReturnVoid()},
	)
	g, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	want := map[ir.NodeID]ir.NodeID{0: 0, 1: 0, 2: 0, 3: 0}
	for n, w := range want {
		if d, ok := g.Idom(n); !ok || d != w {
			t.Errorf("idom(%d) = %d, %t, want %d", n, d, ok, w)
		}
	}

	df := g.DominanceFrontiers()
	if len(df[1]) != 1 || df[1][0] != 3 {
		t.Errorf("DF(1) = %v, want [3]", df[1])
	}
	if len(df[2]) != 1 || df[2][0] != 3 {
		t.Errorf("DF(2) = %v, want [3]", df[2])
	}
	if len(df[0]) != 0 {
		t.Errorf("DF(0) = %v, want empty", df[0])
	}
	if len(df[3]) != 0 {
		t.Errorf("DF(3) = %v, want empty", df[3])
	}
}

func TestLoopDominators(t *testing.T) {
	// 0 -> 1; 1 -> 2 | 3; 2 -> 1.
	f := helperFunc(0,
		ir.Block{ID: 0, Term: ir.Jump(1)},
		ir.Block{ID: 1, Term: ir.Branch(boolCond(), 2, 3)},
		ir.Block{ID: 2, Term: ir.Jump(1)},
		ir.Block{ID: 3, Term: ir.ReturnVoid()},
	)
	g, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	if d, _ := g.Idom(2); d != 1 {
		t.Errorf("idom(2) = %d, want 1", d)
	}
	if d, _ := g.Idom(3); d != 1 {
		t.Errorf("idom(3) = %d, want 1", d)
	}

	df := g.DominanceFrontiers()
	// The back edge puts the header on its own frontier and on the body's.
	if len(df[1]) != 1 || df[1][0] != 1 {
		t.Errorf("DF(1) = %v, want [1]", df[1])
	}
	if len(df[2]) != 1 || df[2][0] != 1 {
		t.Errorf("DF(2) = %v, want [1]", df[2])
	}

	if !g.Dominates(1, 3) {
		t.Error("header must dominate the exit")
	}
	if g.Dominates(2, 3) {
		t.Error("loop body must not dominate the exit")
	}
}

func TestUnreachableBlockExcluded(t *testing.T) {
	f := helperFunc(0,
		ir.Block{ID: 0, Term: ir.ReturnVoid()},
		ir.Block{ID: 7, Term: ir.Jump(0)},
	)
	g, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.ReversePostorder()) != 1 {
		t.Fatalf("reverse postorder = %v, want only the entry", g.ReversePostorder())
	}
	if _, ok := g.Idom(7); ok {
		t.Error("unreachable node must not receive a dominator")
	}
	if len(g.Preds(0)) != 0 {
		t.Errorf("Preds(0) = %v, want none from unreachable nodes", g.Preds(0))
	}
}

func TestReversePostorderStartsAtEntry(t *testing.T) {
	f := helperFunc(2,
		ir.Block{ID: 2, Term: ir.Jump(5)},
		ir.Block{ID: 5, Term: ir.Branch(boolCond(), 8, 9)},
		ir.Block{ID: 8, Term: ir.Jump(9)},
		ir.Block{ID: 9, Term: ir.ReturnVoid()},
	)
	g, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	rpo := g.ReversePostorder()
	if len(rpo) != 4 || rpo[0] != 2 {
		t.Fatalf("reverse postorder = %v, want entry 2 first and 4 nodes", rpo)
	}
	// Every edge u -> v that is not a back edge must order u before v.
	pos := map[ir.NodeID]int{}
	for i1, e1 := range rpo {
		pos[e1] = i1
	}
	if pos[2] > pos[5] || pos[5] > pos[8] || pos[8] > pos[9] {
		t.Errorf("reverse postorder %v violates edge order", rpo)
	}
}
