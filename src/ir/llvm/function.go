// function.go lowers one MidIR function body to an LLVM function in SSA
// form. Blocks are allocated eagerly so terminators can reference their
// successors, φs are created empty from the planner's output, and a depth
// first traversal threads ValMap snapshots from each block to its
// successors, wiring φ incoming edges as every edge is crossed.

package llvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"midlc/src/ir"
	"midlc/src/ir/cfg"
	"midlc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// phiEntry pairs a planned φ with the variable it merges.
type phiEntry struct {
	id  ir.VarID
	phi llvm.Value
}

// funcLowerer carries the per-function lowering state.
type funcLowerer struct {
	ctx llvm.Context
	b   llvm.Builder
	m   *ir.Module
	tt  *typeTable
	dt  *declTable

	f  *ir.Func
	fn llvm.Value

	entry   llvm.BasicBlock
	blocks  map[ir.NodeID]llvm.BasicBlock
	plan    cfg.PhiPlan
	phis    map[ir.NodeID][]phiEntry
	visited map[ir.NodeID]bool
}

// dfsFrame is one pending node of the iterative depth first traversal.
type dfsFrame struct {
	node ir.NodeID
	vin  ValMap
}

// ---------------------
// ----- functions -----
// ---------------------

// lowerFunction lowers the body of the function declared at global gid.
func lowerFunction(ctx llvm.Context, b llvm.Builder, m *ir.Module, tt *typeTable, dt *declTable, gid ir.GlobalID, plan cfg.PhiPlan) error {
	f := m.Globals[gid].Func
	fl := &funcLowerer{
		ctx:     ctx,
		b:       b,
		m:       m,
		tt:      tt,
		dt:      dt,
		f:       f,
		fn:      dt.vals[gid],
		blocks:  make(map[ir.NodeID]llvm.BasicBlock, len(f.Blocks)),
		plan:    plan,
		phis:    make(map[ir.NodeID][]phiEntry, len(plan)),
		visited: make(map[ir.NodeID]bool, len(f.Blocks)),
	}

	// Allocate all blocks before touching any statement so terminators and
	// φs can reference their targets.
	fl.entry = ctx.AddBasicBlock(fl.fn, entryLabel)
	for i1 := range f.Blocks {
		fl.blocks[f.Blocks[i1].ID] = ctx.AddBasicBlock(fl.fn, blockLabel(f.Blocks[i1].ID))
	}

	// Seed the ValMap with parameters and undef bindings.
	b.SetInsertPointAtEnd(fl.entry)
	v, err := fl.seed()
	if err != nil {
		return err
	}

	if err := fl.createPhis(); err != nil {
		return err
	}

	// Pre-step: the synthetic entry branch is a predecessor edge of the
	// CFG entry and must feed its φs too. Wired before the branch so any
	// re-aggregation lands ahead of the terminator.
	b.SetInsertPointAtEnd(fl.entry)
	for _, e1 := range fl.phis[f.Entry] {
		val, err := fl.incomingValue(v, e1.id)
		if err != nil {
			return err
		}
		e1.phi.AddIncoming([]llvm.Value{val}, []llvm.BasicBlock{fl.entry})
	}
	b.CreateBr(fl.blocks[f.Entry])

	if err := fl.dfs(v); err != nil {
		return err
	}

	// CFG nodes the traversal never reached still own an LLVM block; close
	// them so the function stays well formed.
	for i1 := range f.Blocks {
		if fl.visited[f.Blocks[i1].ID] {
			continue
		}
		b.SetInsertPointAtEnd(fl.blocks[f.Blocks[i1].ID])
		b.CreateUnreachable()
	}
	return nil
}

// seed installs the parameter bindings and undef expansions for the whole
// declared variable range. Struct parameters decompose into fresh leaf
// variables; afterwards no struct-typed variable maps to a plain binding.
func (fl *funcLowerer) seed() (ValMap, error) {
	v := newValMap(fl.f)
	for i1, e1 := range fl.f.Params {
		p := fl.fn.Param(i1)
		t := fl.f.VarType(e1)
		if t.IsStruct(fl.m) {
			var loc Location
			var err error
			if v, loc, err = fl.expandValue(v, p, t); err != nil {
				return v, err
			}
			v = v.Bind(e1, loc)
			continue
		}
		v = v.Bind(e1, bindLoc(p))
	}
	for i1 := range fl.f.VarTypes {
		id := fl.f.VarMin + ir.VarID(i1)
		if _, err := v.Lookup(id); err == nil {
			continue
		}
		var loc Location
		var err error
		if v, loc, err = fl.undefLoc(v, fl.f.VarTypes[i1]); err != nil {
			return v, err
		}
		v = v.Bind(id, loc)
	}
	return v, nil
}

// createPhis materialises one empty φ per planned (block, id) pair, in
// block storage order and planner id order.
func (fl *funcLowerer) createPhis() error {
	for i1 := range fl.f.Blocks {
		n := fl.f.Blocks[i1].ID
		ids := fl.plan[n]
		if len(ids) == 0 {
			continue
		}
		fl.b.SetInsertPointAtEnd(fl.blocks[n])
		entries := make([]phiEntry, 0, len(ids))
		for _, e1 := range ids {
			t := fl.f.VarType(e1)
			if t == nil {
				return fmt.Errorf("%w: φ plan references variable %d outside range", ir.ErrInvariant, e1)
			}
			lt, err := fl.tt.translate(t, nil)
			if err != nil {
				return err
			}
			entries = append(entries, phiEntry{id: e1, phi: fl.b.CreatePHI(lt, "")})
		}
		fl.phis[n] = entries
	}
	return nil
}

// dfs visits every reachable block once, depth first, in successor list
// order. Each visit lowers the block with the snapshot of its DFS parent,
// then contributes one φ incoming edge to every successor.
func (fl *funcLowerer) dfs(seeded ValMap) error {
	stack := util.Stack[dfsFrame]{}
	stack.Push(dfsFrame{node: fl.f.Entry, vin: seeded})

	for {
		fr, ok := stack.Pop()
		if !ok {
			return nil
		}
		// A node pushed by several blocks is visited from the frame popped
		// first, that is from the block that reached it last.
		if fl.visited[fr.node] {
			continue
		}
		fl.visited[fr.node] = true
		block := fl.f.BlockByID(fr.node)
		if block == nil {
			return fmt.Errorf("%w: missing block %d", ir.ErrMalformedIR, fr.node)
		}

		// Inside the block its own φs are the authoritative source for
		// the merged variables, overriding the incoming bindings.
		v := fr.vin
		for _, e1 := range fl.phis[fr.node] {
			v = v.Bind(e1.id, bindLoc(e1.phi))
		}

		fl.b.SetInsertPointAtEnd(fl.blocks[fr.node])
		var err error
		for i1 := range block.Stmts {
			if v, err = fl.lowerStmt(v, &block.Stmts[i1]); err != nil {
				return fmt.Errorf("block %d statement %d: %w", fr.node, i1, err)
			}
		}
		// Wire the φ incoming edges of every successor before emitting the
		// terminator: resolving an expanded struct re-aggregates it with
		// instructions that must precede the branch.
		succs := block.Term.Successors()
		for _, e1 := range succs {
			for _, e2 := range fl.phis[e1] {
				val, err := fl.incomingValue(v, e2.id)
				if err != nil {
					return fmt.Errorf("block %d edge to %d: %w", fr.node, e1, err)
				}
				e2.phi.AddIncoming([]llvm.Value{val}, []llvm.BasicBlock{fl.blocks[fr.node]})
			}
		}
		if err = fl.lowerTerminator(v, block); err != nil {
			return fmt.Errorf("block %d: %w", fr.node, err)
		}

		// Push unvisited children in reverse so the first successor is
		// visited first, matching a recursive traversal.
		for i1 := len(succs) - 1; i1 >= 0; i1-- {
			if fl.visited[succs[i1]] {
				continue
			}
			stack.Push(dfsFrame{node: succs[i1], vin: v})
		}
	}
}

// lowerTerminator closes the current block.
func (fl *funcLowerer) lowerTerminator(v ValMap, block *ir.Block) error {
	switch block.Term.Kind {
	case ir.TermJump:
		target, ok := fl.blocks[block.Term.Jump.To]
		if !ok {
			return fmt.Errorf("%w: jump to unknown node %d", ir.ErrMalformedIR, block.Term.Jump.To)
		}
		fl.b.CreateBr(target)
	case ir.TermBranch:
		cond, err := fl.lowerExpr(v, &block.Term.Branch.Cond)
		if err != nil {
			return err
		}
		then, ok := fl.blocks[block.Term.Branch.Then]
		if !ok {
			return fmt.Errorf("%w: branch to unknown node %d", ir.ErrMalformedIR, block.Term.Branch.Then)
		}
		els, ok := fl.blocks[block.Term.Branch.Else]
		if !ok {
			return fmt.Errorf("%w: branch to unknown node %d", ir.ErrMalformedIR, block.Term.Branch.Else)
		}
		fl.b.CreateCondBr(cond, then, els)
	case ir.TermReturn:
		if !block.Term.Return.HasValue {
			fl.b.CreateRetVoid()
			return nil
		}
		val, err := fl.lowerExpr(v, &block.Term.Return.Value)
		if err != nil {
			return err
		}
		fl.b.CreateRet(val)
	default:
		return fmt.Errorf("%w: unknown terminator kind %d", ir.ErrMalformedIR, block.Term.Kind)
	}
	return nil
}

// incomingValue resolves the value a predecessor contributes to a φ. The
// lookup must yield a binding after aggregate flattening; expanded structs
// re-aggregate so the φ merges one SSA value per edge.
func (fl *funcLowerer) incomingValue(v ValMap, id ir.VarID) (llvm.Value, error) {
	loc, err := v.Lookup(id)
	if err != nil {
		return llvm.Value{}, err
	}
	if loc.Kind == LocMem {
		return llvm.Value{}, fmt.Errorf("%w: φ source for variable %d lives in memory", ir.ErrInvariant, id)
	}
	return fl.locValue(v, loc, fl.f.VarType(id))
}
