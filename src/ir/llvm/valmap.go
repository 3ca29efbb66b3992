// valmap.go tracks the representation decision of every MidIR variable at
// one program point: bound to an SSA value, living in memory, or expanded
// into per-field sub-variables. Snapshots are immutable; each block observes
// one snapshot and threads updated snapshots to its successors.

package llvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"midlc/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// LocKind discriminates the Location sum.
type LocKind uint8

const (
	// LocBind means the variable currently is the given SSA value.
	LocBind LocKind = iota
	// LocMem means the variable lives in memory at an address.
	LocMem
	// LocStruct means the variable is an aggregate whose fields are
	// themselves independent variables.
	LocStruct
)

// MemLoc is the payload of LocMem.
type MemLoc struct {
	Ty   *ir.Type
	Mut  ir.Mutability
	Addr llvm.Value
}

// Location is the per-variable representation sum.
type Location struct {
	Kind   LocKind
	Bind   llvm.Value
	Mem    MemLoc
	Fields []ir.VarID // Field index to sub-variable id, LocStruct only.
}

// ValMap is an immutable snapshot of variable id to Location. The synthetic
// id counter is shared between all snapshots of one function lowering and
// only ever grows.
type ValMap struct {
	vals map[ir.VarID]Location
	next *ir.VarID
}

// ---------------------
// ----- functions -----
// ---------------------

// bindLoc returns a Location holding an SSA value.
func bindLoc(v llvm.Value) Location {
	return Location{Kind: LocBind, Bind: v}
}

// structLoc returns a Location holding an expanded aggregate.
func structLoc(fields []ir.VarID) Location {
	return Location{Kind: LocStruct, Fields: fields}
}

// newValMap returns an empty snapshot whose synthetic ids start directly
// after the function's declared range.
func newValMap(f *ir.Func) ValMap {
	next := f.VarMax() + 1
	return ValMap{
		vals: make(map[ir.VarID]Location, len(f.VarTypes)),
		next: &next,
	}
}

// Lookup resolves id, failing on a miss: after seeding, a miss means the
// input IR references a variable that does not exist.
func (v ValMap) Lookup(id ir.VarID) (Location, error) {
	loc, ok := v.vals[id]
	if !ok {
		return Location{}, fmt.Errorf("%w: no location for variable %d", ir.ErrInvariant, id)
	}
	return loc, nil
}

// Bind returns a new snapshot with id mapped to loc.
func (v ValMap) Bind(id ir.VarID, loc Location) ValMap {
	vals := make(map[ir.VarID]Location, len(v.vals)+1)
	for k, e1 := range v.vals {
		vals[k] = e1
	}
	vals[id] = loc
	return ValMap{vals: vals, next: v.next}
}

// fresh mints a synthetic variable id. Synthetic ids are never reused
// within one function lowering.
func (v ValMap) fresh() ir.VarID {
	id := *v.next
	*v.next++
	return id
}
