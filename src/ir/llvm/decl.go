// decl.go emits LLVM declarations for every MidIR global. Function bodies
// are lowered later against the declarations made here, so every call site
// can resolve its target regardless of declaration order.

package llvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"midlc/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// declTable records the LLVM value and, for functions, the LLVM function
// type of every module global, indexed by global id.
type declTable struct {
	vals    []llvm.Value
	fnTypes []llvm.Type
}

// ---------------------
// ----- functions -----
// ---------------------

// emitDecls declares every global of module m.
func emitDecls(mod llvm.Module, m *ir.Module, tt *typeTable) (*declTable, error) {
	dt := &declTable{
		vals:    make([]llvm.Value, len(m.Globals)),
		fnTypes: make([]llvm.Type, len(m.Globals)),
	}
	for i1 := range m.Globals {
		g := &m.Globals[i1]
		switch g.Kind {
		case ir.GlobalVar:
			t, err := tt.translate(g.Type, nil)
			if err != nil {
				return nil, fmt.Errorf("global %s: %w", g.Name, err)
			}
			dt.vals[i1] = llvm.AddGlobal(mod, t, g.Name)
		case ir.GlobalFunc:
			fnty, err := functionType(tt, g.Func)
			if err != nil {
				return nil, fmt.Errorf("function %s: %w", g.Name, err)
			}
			dt.fnTypes[i1] = fnty
			dt.vals[i1] = llvm.AddFunction(mod, g.Name, fnty)
		default:
			return nil, fmt.Errorf("%w: global %s has unknown kind %d", ir.ErrMalformedIR, g.Name, g.Kind)
		}
	}
	return dt, nil
}

// functionType translates the signature of f into an LLVM function type.
func functionType(tt *typeTable, f *ir.Func) (llvm.Type, error) {
	params := make([]llvm.Type, len(f.Params))
	for i1, e1 := range f.Params {
		vt := f.VarType(e1)
		if vt == nil {
			return llvm.Type{}, fmt.Errorf("%w: parameter id %d outside variable range", ir.ErrMalformedIR, e1)
		}
		t, err := tt.translate(vt, nil)
		if err != nil {
			return llvm.Type{}, err
		}
		params[i1] = t
	}
	ret := tt.ctx.VoidType()
	if f.Result != nil {
		var err error
		if ret, err = tt.translate(f.Result, nil); err != nil {
			return llvm.Type{}, err
		}
	}
	return llvm.FunctionType(ret, params, false), nil
}
