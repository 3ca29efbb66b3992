// accessor.go declares the read/write intrinsics the runtime and later
// toolchain stages call to access fields of GC-managed aggregates. A read
// declaration, plus a write declaration unless the path is effectively
// constant, is emitted per scalar leaf reachable from a named type,
// descending through nested structs and arrays; each array level crossed
// contributes one i32 index parameter.

package llvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"midlc/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// accessorEmitter walks the field trees of a module's named types.
type accessorEmitter struct {
	ctx llvm.Context
	mod llvm.Module
	m   *ir.Module
	tt  *typeTable
	fns map[string]llvm.Value
}

// ---------------------
// ----- functions -----
// ---------------------

// emitAccessors declares accessor intrinsics for every named type with a
// body. The result maps declaration name to function value.
func emitAccessors(ctx llvm.Context, mod llvm.Module, m *ir.Module, tt *typeTable) (map[string]llvm.Value, error) {
	ae := &accessorEmitter{
		ctx: ctx,
		mod: mod,
		m:   m,
		tt:  tt,
		fns: make(map[string]llvm.Value, len(m.Types)*4),
	}
	for i1 := range m.Types {
		td := &m.Types[i1]
		if td.Body == nil {
			continue
		}
		obj := llvm.PointerType(tt.Get(ir.TypeID(i1)), 0)
		visiting := map[ir.TypeID]bool{ir.TypeID(i1): true}
		if err := ae.walk(accessorPath(td.Name), ir.Mutable, td.Body, nil, obj, visiting); err != nil {
			return nil, fmt.Errorf("type %s: %w", td.Name, err)
		}
	}
	return ae.fns, nil
}

// walk descends the field tree below t. path carries the dotted name so
// far, state the combined mutability, idx the index parameters accumulated
// by prepending at each array level, and obj the outer object pointer type.
func (ae *accessorEmitter) walk(path string, state ir.Mutability, t *ir.Type, idx []llvm.Type, obj llvm.Type, visiting map[ir.TypeID]bool) error {
	if t.Kind == ir.TypeNamed {
		i1 := int(t.Named)
		if i1 < 0 || i1 >= len(ae.m.Types) {
			return fmt.Errorf("%w: dangling type index %d of %d", ir.ErrMalformedType, t.Named, len(ae.m.Types))
		}
		body := ae.m.Types[i1].Body
		if body != nil && body.Kind == ir.TypeStruct {
			if visiting[t.Named] {
				return fmt.Errorf("%w: named type %s contains itself by value", ir.ErrMalformedType, ae.m.Types[i1].Name)
			}
			visiting[t.Named] = true
			err := ae.walk(path, state, body, idx, obj, visiting)
			delete(visiting, t.Named)
			return err
		}
		// Opaque and non-struct named entries are leaves.
		return ae.emitLeaf(path, state, t, idx, obj)
	}
	switch t.Kind {
	case ir.TypeStruct:
		for i1 := range t.Struct.Fields {
			f := &t.Struct.Fields[i1]
			if err := ae.walk(path+"."+f.Name, ir.Combine(state, f.Mut), f.Type, idx, obj, visiting); err != nil {
				return err
			}
		}
		return nil
	case ir.TypeArray:
		// Prepend; the whole list is reversed again on emission so the
		// argument order stays call-compatible with generated call sites.
		nested := append([]llvm.Type{ae.ctx.Int32Type()}, idx...)
		return ae.walk(path, state, t.Array.Elem, nested, obj, visiting)
	default:
		return ae.emitLeaf(path, state, t, idx, obj)
	}
}

// emitLeaf declares the read accessor, and the write accessor unless the
// path is effectively constant.
func (ae *accessorEmitter) emitLeaf(path string, state ir.Mutability, t *ir.Type, idx []llvm.Type, obj llvm.Type) error {
	leaf, err := ae.tt.translate(t, nil)
	if err != nil {
		return err
	}

	params := make([]llvm.Type, 0, len(idx)+2)
	params = append(params, obj)
	for i1 := len(idx) - 1; i1 >= 0; i1-- {
		params = append(params, idx[i1])
	}

	rd := llvm.AddFunction(ae.mod, path+readSuffix, llvm.FunctionType(leaf, params, false))
	addFnAttrs(ae.ctx, rd, "nounwind", "readonly", "alwaysinline")
	ae.fns[path+readSuffix] = rd

	if state == ir.Immutable {
		return nil
	}
	wparams := append(append(make([]llvm.Type, 0, len(params)+1), params...), leaf)
	wr := llvm.AddFunction(ae.mod, path+writeSuffix, llvm.FunctionType(ae.ctx.VoidType(), wparams, false))
	addFnAttrs(ae.ctx, wr, "nounwind", "alwaysinline")
	ae.fns[path+writeSuffix] = wr
	return nil
}

// addFnAttrs attaches the named enum attributes to fn.
func addFnAttrs(ctx llvm.Context, fn llvm.Value, names ...string) {
	for _, e1 := range names {
		fn.AddFunctionAttr(ctx.CreateEnumAttribute(llvm.AttributeKindID(e1), 0))
	}
}
