// phi.go decides where φ-nodes are required: a variable assigned in block B
// needs a φ at every block on B's dominance frontier.

package cfg

import (
	"sort"

	"midlc/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// PhiPlan maps each CFG node to the variable ids that need a φ at its head,
// in ascending id order.
type PhiPlan map[ir.NodeID][]ir.VarID

// ---------------------
// ----- functions -----
// ---------------------

// PlanPhis computes the φ placement for the function analysed by g.
func PlanPhis(g *Graph) PhiPlan {
	f := g.f
	df := g.DominanceFrontiers()

	// Per-block sets; equivalent to the dense |blocks| x |vars| bit matrix,
	// keyed sparsely.
	need := make(map[ir.NodeID]map[ir.VarID]bool, len(g.rpo))
	for _, n := range g.rpo {
		b := f.BlockByID(n)
		for i1 := range b.Stmts {
			if b.Stmts[i1].Kind != ir.StmtMove {
				continue
			}
			v := b.Stmts[i1].Move.Dst
			for _, x := range df[n] {
				if need[x] == nil {
					need[x] = make(map[ir.VarID]bool, 4)
				}
				need[x][v] = true
			}
		}
	}

	plan := make(PhiPlan, len(need))
	for n, vs := range need {
		ids := make([]ir.VarID, 0, len(vs))
		for v := range vs {
			ids = append(ids, v)
		}
		sort.Slice(ids, func(i1, i2 int) bool { return ids[i1] < ids[i2] })
		plan[n] = ids
	}
	return plan
}
