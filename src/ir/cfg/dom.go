// Package cfg computes control-flow-graph facts needed by the LLVM lowering:
// reverse postorder, immediate dominators and dominance frontiers. The
// dominator construction follows Cooper, Harvey and Kennedy, "A Simple, Fast
// Dominance Algorithm".
package cfg

import (
	"fmt"

	"midlc/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Graph caches the analysis of one function body. A Graph is immutable once
// built and safe for concurrent readers.
type Graph struct {
	f *ir.Func

	rpo   []ir.NodeID               // Reachable nodes in reverse postorder; rpo[0] is the entry.
	index map[ir.NodeID]int         // Node id to reverse postorder position.
	preds map[ir.NodeID][]ir.NodeID // Predecessors in reverse postorder.
	idom  map[ir.NodeID]ir.NodeID   // Immediate dominator; the entry maps to itself.
}

// Explore states for the iterative postorder walk.
const (
	visitStateUnseen = iota
	visitStateSeen
	visitStateDone
)

// ---------------------
// ----- functions -----
// ---------------------

// New analyses the body of f. Terminator targets must exist; run
// ir.Validate before analysis.
func New(f *ir.Func) (*Graph, error) {
	g := &Graph{
		f:     f,
		index: make(map[ir.NodeID]int, len(f.Blocks)),
		preds: make(map[ir.NodeID][]ir.NodeID, len(f.Blocks)),
		idom:  make(map[ir.NodeID]ir.NodeID, len(f.Blocks)),
	}
	if f.BlockByID(f.Entry) == nil {
		return nil, fmt.Errorf("%w: entry node %d does not exist", ir.ErrMalformedIR, f.Entry)
	}
	for i1 := range f.Blocks {
		for _, e1 := range f.Blocks[i1].Term.Successors() {
			if f.BlockByID(e1) == nil {
				return nil, fmt.Errorf("%w: block %d terminator targets unknown node %d",
					ir.ErrMalformedIR, f.Blocks[i1].ID, e1)
			}
		}
	}
	g.buildOrder()
	g.buildPreds()
	g.buildDominators()
	return g, nil
}

// ReversePostorder returns the reachable nodes in reverse postorder.
// The returned slice is shared; callers must not modify it.
func (g *Graph) ReversePostorder() []ir.NodeID {
	return g.rpo
}

// Preds returns the reachable predecessors of node n in reverse postorder.
func (g *Graph) Preds(n ir.NodeID) []ir.NodeID {
	return g.preds[n]
}

// Idom returns the immediate dominator of node n. The entry dominates
// itself. The second result is false for unreachable nodes.
func (g *Graph) Idom(n ir.NodeID) (ir.NodeID, bool) {
	d, ok := g.idom[n]
	return d, ok
}

// Dominates reports whether node a dominates node b. Every node dominates
// itself.
func (g *Graph) Dominates(a, b ir.NodeID) bool {
	for {
		if a == b {
			return true
		}
		d, ok := g.idom[b]
		if !ok || d == b {
			return false
		}
		b = d
	}
}

// DominanceFrontiers returns, for every reachable node, the set of nodes on
// its dominance frontier, each frontier sorted by reverse postorder position.
func (g *Graph) DominanceFrontiers() map[ir.NodeID][]ir.NodeID {
	df := make(map[ir.NodeID][]ir.NodeID, len(g.rpo))
	seen := make(map[ir.NodeID]map[ir.NodeID]bool, len(g.rpo))
	// A join point lands on the frontier of every dominator of each
	// predecessor up to, but excluding, the join's immediate dominator.
	for _, b := range g.rpo {
		ps := g.preds[b]
		if len(ps) < 2 {
			continue
		}
		for _, p := range ps {
			runner := p
			for runner != g.idom[b] {
				if seen[runner] == nil {
					seen[runner] = make(map[ir.NodeID]bool, 2)
				}
				if !seen[runner][b] {
					seen[runner][b] = true
					df[runner] = append(df[runner], b)
				}
				next, ok := g.idom[runner]
				if !ok || next == runner {
					break
				}
				runner = next
			}
		}
	}
	return df
}

// buildOrder computes the postorder of the reachable subgraph iteratively
// and reverses it. Successors are pushed in CFG storage order so the order
// is deterministic for deterministic input.
func (g *Graph) buildOrder() {
	state := make(map[ir.NodeID]int, len(g.f.Blocks))
	stack := []ir.NodeID{g.f.Entry}
	post := make([]ir.NodeID, 0, len(g.f.Blocks))

	for len(stack) > 0 {
		tail := len(stack) - 1
		n := stack[tail]
		stack = stack[:tail]
		switch state[n] {
		case visitStateUnseen:
			// First pop: revisit after the successors are done. Stale
			// duplicates of finished nodes are popped later and ignored.
			state[n] = visitStateSeen
			stack = append(stack, n)
			b := g.f.BlockByID(n)
			for _, e1 := range b.Term.Successors() {
				if state[e1] == visitStateUnseen {
					stack = append(stack, e1)
				}
			}
		case visitStateSeen:
			state[n] = visitStateDone
			post = append(post, n)
		}
	}

	for i1 := len(post)/2 - 1; i1 >= 0; i1-- {
		i2 := len(post) - 1 - i1
		post[i1], post[i2] = post[i2], post[i1]
	}
	g.rpo = post
	for i1, e1 := range post {
		g.index[e1] = i1
	}
}

// buildPreds records predecessor edges of the reachable subgraph.
func (g *Graph) buildPreds() {
	for _, n := range g.rpo {
		b := g.f.BlockByID(n)
		for _, e1 := range b.Term.Successors() {
			if _, ok := g.index[e1]; !ok {
				continue
			}
			g.preds[e1] = append(g.preds[e1], n)
		}
	}
}

// buildDominators runs the Cooper-Harvey-Kennedy fixed point over the
// reverse postorder.
func (g *Graph) buildDominators() {
	g.idom[g.f.Entry] = g.f.Entry
	for changed := true; changed; {
		changed = false
		for _, b := range g.rpo[1:] {
			var u ir.NodeID
			haveU := false
			for _, p := range g.preds[b] {
				if _, ok := g.idom[p]; !ok {
					// Not reached by the fixed point yet.
					continue
				}
				if !haveU {
					u = p
					haveU = true
					continue
				}
				u = g.intersect(u, p)
			}
			if !haveU {
				continue
			}
			if d, ok := g.idom[b]; !ok || d != u {
				g.idom[b] = u
				changed = true
			}
		}
	}
}

// intersect walks two nodes up the dominator tree to their common dominator.
func (g *Graph) intersect(b1, b2 ir.NodeID) ir.NodeID {
	finger1, finger2 := b1, b2
	for finger1 != finger2 {
		for g.index[finger1] > g.index[finger2] {
			finger1 = g.idom[finger1]
		}
		for g.index[finger2] > g.index[finger1] {
			finger2 = g.idom[finger2]
		}
	}
	return finger1
}
