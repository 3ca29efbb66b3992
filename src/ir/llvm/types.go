// types.go materialises the named MidIR type table as LLVM types. Mutual
// recursion is broken with named opaque structs: the first pass seeds one
// named struct per struct-or-opaque entry, the second pass fills bodies.
// One-pass recursive resolution cannot terminate on cyclic tables; the
// named-opaque mechanism is LLVM's fix point device for exactly this.

package llvm

import (
	"fmt"

	"fortio.org/safecast"
	"tinygo.org/x/go-llvm"

	"midlc/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// typeTable is the read-only result of materialisation, indexed by type id.
type typeTable struct {
	ctx   llvm.Context
	m     *ir.Module
	types []llvm.Type
	built []bool
}

// ---------------------
// ----- functions -----
// ---------------------

// materialiseTypes runs the two-phase resolution over the named type table
// of module m.
func materialiseTypes(ctx llvm.Context, m *ir.Module) (*typeTable, error) {
	tt := &typeTable{
		ctx:   ctx,
		m:     m,
		types: make([]llvm.Type, len(m.Types)),
		built: make([]bool, len(m.Types)),
	}

	// Phase 1: seed named opaque structs for opaque entries and struct
	// bodies. Non-struct bodies keep their sentinel zero value for now.
	for i1 := range m.Types {
		td := &m.Types[i1]
		if td.Body == nil || td.Body.Kind == ir.TypeStruct {
			tt.types[i1] = ctx.StructCreateNamed(td.Name)
			if td.Body == nil {
				// Forward-declared: stays opaque, nothing to fill.
				tt.built[i1] = true
			}
		}
	}

	// Phase 2: fill struct bodies and translate the remaining entries.
	for i1 := range m.Types {
		if err := tt.ensure(ir.TypeID(i1), nil); err != nil {
			return nil, err
		}
	}
	return tt, nil
}

// Get returns the LLVM type of named entry id.
func (tt *typeTable) Get(id ir.TypeID) llvm.Type {
	return tt.types[id]
}

// ensure builds table entry id if its slot is still a sentinel. The visiting
// set guards against degenerate pure-alias cycles, which have no fix point.
func (tt *typeTable) ensure(id ir.TypeID, visiting map[ir.TypeID]bool) error {
	i1 := int(id)
	if i1 < 0 || i1 >= len(tt.m.Types) {
		return fmt.Errorf("%w: dangling type index %d of %d", ir.ErrMalformedType, id, len(tt.m.Types))
	}
	if tt.built[i1] {
		return nil
	}
	if visiting[id] {
		return fmt.Errorf("%w: type %d (%s) aliases itself without indirection",
			ir.ErrMalformedType, id, tt.m.Types[i1].Name)
	}
	if visiting == nil {
		visiting = make(map[ir.TypeID]bool, 4)
	}
	visiting[id] = true
	defer delete(visiting, id)

	body := tt.m.Types[i1].Body
	if body.Kind == ir.TypeStruct {
		// Mark built before translating the fields: a field may point back
		// at this entry through the seeded opaque.
		tt.built[i1] = true
		fields := make([]llvm.Type, len(body.Struct.Fields))
		for i2 := range body.Struct.Fields {
			t, err := tt.translate(body.Struct.Fields[i2].Type, visiting)
			if err != nil {
				return fmt.Errorf("type %s field %s: %w", tt.m.Types[i1].Name, body.Struct.Fields[i2].Name, err)
			}
			fields[i2] = t
		}
		tt.types[i1].StructSetBody(fields, body.Struct.Packed)
		return nil
	}
	t, err := tt.translate(body, visiting)
	if err != nil {
		return fmt.Errorf("type %s: %w", tt.m.Types[i1].Name, err)
	}
	tt.types[i1] = t
	tt.built[i1] = true
	return nil
}

// translate recursively maps a MidIR type to its LLVM rendering.
func (tt *typeTable) translate(t *ir.Type, visiting map[ir.TypeID]bool) (llvm.Type, error) {
	if t == nil {
		return llvm.Type{}, fmt.Errorf("%w: nil type", ir.ErrMalformedType)
	}
	switch t.Kind {
	case ir.TypeInt:
		switch t.Int.Width {
		case 1:
			return tt.ctx.Int1Type(), nil
		case 8:
			return tt.ctx.Int8Type(), nil
		case 16:
			return tt.ctx.Int16Type(), nil
		case 32:
			return tt.ctx.Int32Type(), nil
		case 64:
			return tt.ctx.Int64Type(), nil
		}
		w, err := safecast.Conv[int](t.Int.Width)
		if err != nil || w == 0 {
			return llvm.Type{}, fmt.Errorf("%w: unsupported integer width %d", ir.ErrMalformedType, t.Int.Width)
		}
		return tt.ctx.IntType(w), nil
	case ir.TypeFloat:
		switch t.Float.Bits {
		case 32:
			return tt.ctx.FloatType(), nil
		case 64:
			return tt.ctx.DoubleType(), nil
		case 128:
			return tt.ctx.FP128Type(), nil
		}
		return llvm.Type{}, fmt.Errorf("%w: unsupported float size %d", ir.ErrMalformedType, t.Float.Bits)
	case ir.TypeArray:
		elem, err := tt.translate(t.Array.Elem, visiting)
		if err != nil {
			return llvm.Type{}, err
		}
		n := 0
		if t.Array.HasSize {
			if n, err = safecast.Conv[int](t.Array.Size); err != nil {
				return llvm.Type{}, fmt.Errorf("%w: array size %d: %s", ir.ErrMalformedType, t.Array.Size, err)
			}
		}
		return llvm.ArrayType(elem, n), nil
	case ir.TypePtr:
		if t.Ptr.Kind == ir.GCObj {
			h := int(t.Ptr.Header)
			if h < 0 || h >= len(tt.m.Headers) {
				return llvm.Type{}, fmt.Errorf("%w: GC pointer references header index %d of %d",
					ir.ErrMalformedType, t.Ptr.Header, len(tt.m.Headers))
			}
			// GC object-ness is pointee identity only; mobility and
			// mutability live on the descriptor global.
			target := tt.m.Headers[h].Type
			if err := tt.ensure(target, visiting); err != nil {
				return llvm.Type{}, err
			}
			return llvm.PointerType(tt.types[target], 0), nil
		}
		elem, err := tt.translate(t.Ptr.Elem, visiting)
		if err != nil {
			return llvm.Type{}, err
		}
		return llvm.PointerType(elem, 0), nil
	case ir.TypeNamed:
		i1 := int(t.Named)
		if i1 < 0 || i1 >= len(tt.m.Types) {
			return llvm.Type{}, fmt.Errorf("%w: dangling type index %d of %d", ir.ErrMalformedType, t.Named, len(tt.m.Types))
		}
		// Struct and opaque entries are already seeded; pointers through a
		// still-opaque entry are fine. Non-struct entries translate on
		// demand.
		if tt.types[i1].IsNil() {
			if err := tt.ensure(t.Named, visiting); err != nil {
				return llvm.Type{}, err
			}
		}
		return tt.types[i1], nil
	case ir.TypeStruct:
		fields := make([]llvm.Type, len(t.Struct.Fields))
		for i1 := range t.Struct.Fields {
			f, err := tt.translate(t.Struct.Fields[i1].Type, visiting)
			if err != nil {
				return llvm.Type{}, err
			}
			fields[i1] = f
		}
		return tt.ctx.StructType(fields, t.Struct.Packed), nil
	}
	return llvm.Type{}, fmt.Errorf("%w: unknown type kind %d", ir.ErrMalformedType, t.Kind)
}
