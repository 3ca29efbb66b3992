// Package ir defines the MidIR data model: modules, named types, globals,
// garbage-collection headers and function bodies laid out as control flow
// graphs. The model is the input of the LLVM lowering in ir/llvm.
package ir

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// TypeKind discriminates the Type sum.
type TypeKind uint8

const (
	// TypeInt is an integer type with explicit signedness and bit width.
	TypeInt TypeKind = iota
	// TypeFloat is a floating point type of 32, 64 or 128 bits.
	TypeFloat
	// TypeStruct is an ordered aggregate of named, individually mutable fields.
	TypeStruct
	// TypeArray is a sized or unsized array of a single element type.
	TypeArray
	// TypePtr is a pointer to either a plain object or a GC-tracked object.
	TypePtr
	// TypeNamed is a reference into the module's named type table.
	TypeNamed
)

// Mutability classifies how a field, memory cell or GC object may be written.
type Mutability uint8

const (
	// Mutable cells may be written any number of times.
	Mutable Mutability = iota
	// Immutable cells are never written after construction.
	Immutable
	// WriteOnce cells are written exactly once after construction.
	WriteOnce
	// MutCustom defers the mutability contract to a named runtime policy.
	MutCustom
)

// Mobility states whether the garbage collector may relocate an object.
type Mobility uint8

const (
	// Mobile objects may be moved by the collector.
	Mobile Mobility = iota
	// Immobile objects are pinned for their whole lifetime.
	Immobile
)

// PtrKind discriminates the two pointee flavours of TypePtr.
type PtrKind uint8

const (
	// BasicObj points at a plain, manually managed object.
	BasicObj PtrKind = iota
	// GCObj points at a garbage-collected object described by a GC header.
	GCObj
)

// Field is one member of a struct type.
type Field struct {
	Name string     `msgpack:"name"`
	Mut  Mutability `msgpack:"mut"`
	Type *Type      `msgpack:"type"`
}

// StructType is the payload of TypeStruct.
type StructType struct {
	Packed bool    `msgpack:"packed"`
	Fields []Field `msgpack:"fields"`
}

// ArrayType is the payload of TypeArray. HasSize false renders as a
// zero-length array, the conventional encoding of an unsized trailing array.
type ArrayType struct {
	HasSize bool   `msgpack:"has_size"`
	Size    uint64 `msgpack:"size"`
	Elem    *Type  `msgpack:"elem"`
}

// PtrType is the payload of TypePtr. Elem is set for BasicObj pointees;
// GCObj pointees are identified through the GC header table instead, so that
// mobility and mutability stay attached to the header, not the pointer.
type PtrType struct {
	Kind     PtrKind  `msgpack:"kind"`
	Elem     *Type    `msgpack:"elem"`
	Mobility Mobility `msgpack:"mobility"`
	Header   HeaderID `msgpack:"header"`
}

// IntType is the payload of TypeInt.
type IntType struct {
	Signed bool   `msgpack:"signed"`
	Width  uint32 `msgpack:"width"`
}

// FloatType is the payload of TypeFloat. Bits must be 32, 64 or 128.
type FloatType struct {
	Bits uint32 `msgpack:"bits"`
}

// Type is the MidIR type sum. Exactly the payload selected by Kind is
// meaningful; the remaining payloads stay at their zero values.
type Type struct {
	Kind TypeKind `msgpack:"kind"`

	Int    IntType    `msgpack:"int"`
	Float  FloatType  `msgpack:"float"`
	Struct StructType `msgpack:"struct"`
	Array  ArrayType  `msgpack:"array"`
	Ptr    PtrType    `msgpack:"ptr"`
	Named  TypeID     `msgpack:"named"`
}

// ---------------------
// ----- functions -----
// ---------------------

// IntT returns an integer type of the given signedness and width.
func IntT(signed bool, width uint32) *Type {
	return &Type{Kind: TypeInt, Int: IntType{Signed: signed, Width: width}}
}

// FloatT returns a floating point type of the given bit size.
func FloatT(bits uint32) *Type {
	return &Type{Kind: TypeFloat, Float: FloatType{Bits: bits}}
}

// StructT returns an anonymous struct type over the given fields.
func StructT(packed bool, fields ...Field) *Type {
	return &Type{Kind: TypeStruct, Struct: StructType{Packed: packed, Fields: fields}}
}

// ArrayT returns an array of n elements of typ.
func ArrayT(n uint64, typ *Type) *Type {
	return &Type{Kind: TypeArray, Array: ArrayType{HasSize: true, Size: n, Elem: typ}}
}

// UnsizedArrayT returns an array of unknown length of typ.
func UnsizedArrayT(typ *Type) *Type {
	return &Type{Kind: TypeArray, Array: ArrayType{Elem: typ}}
}

// PtrT returns a pointer to a plain object of typ.
func PtrT(typ *Type) *Type {
	return &Type{Kind: TypePtr, Ptr: PtrType{Kind: BasicObj, Elem: typ}}
}

// GCPtrT returns a pointer to a GC-tracked object described by header h.
func GCPtrT(mob Mobility, h HeaderID) *Type {
	return &Type{Kind: TypePtr, Ptr: PtrType{Kind: GCObj, Mobility: mob, Header: h}}
}

// NamedT returns a reference to named type entry t.
func NamedT(t TypeID) *Type {
	return &Type{Kind: TypeNamed, Named: t}
}

// IsStruct reports whether t is a struct type, resolving Named references
// through the module's type table. Opaque named types are not structs.
func (t *Type) IsStruct(m *Module) bool {
	r := m.Resolve(t)
	return r != nil && r.Kind == TypeStruct
}

// Combine folds the mutability of an enclosing path with the mutability of
// the field being entered. Once a path turns immutable it stays immutable;
// a mutable path entering an Immutable field turns immutable; everything
// else stays mutable.
func Combine(path, field Mutability) Mutability {
	if path == Immutable {
		return Immutable
	}
	if field == Immutable {
		return Immutable
	}
	return Mutable
}

// String renders t for diagnostics. The rendering is not a wire format.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypeInt:
		if t.Int.Signed {
			return fmt.Sprintf("i%d", t.Int.Width)
		}
		return fmt.Sprintf("u%d", t.Int.Width)
	case TypeFloat:
		return fmt.Sprintf("f%d", t.Float.Bits)
	case TypeStruct:
		sb := strings.Builder{}
		sb.WriteRune('{')
		for i1, e1 := range t.Struct.Fields {
			if i1 > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e1.Name)
			sb.WriteString(": ")
			sb.WriteString(e1.Type.String())
		}
		sb.WriteRune('}')
		return sb.String()
	case TypeArray:
		if t.Array.HasSize {
			return fmt.Sprintf("[%d x %s]", t.Array.Size, t.Array.Elem.String())
		}
		return fmt.Sprintf("[? x %s]", t.Array.Elem.String())
	case TypePtr:
		if t.Ptr.Kind == GCObj {
			return fmt.Sprintf("*gc(%d)", t.Ptr.Header)
		}
		return "*" + t.Ptr.Elem.String()
	case TypeNamed:
		return fmt.Sprintf("named(%d)", t.Named)
	}
	return "<invalid>"
}

// String provides a print friendly representation of the Mutability.
func (m Mutability) String() string {
	switch m {
	case Mutable:
		return "mutable"
	case Immutable:
		return "const"
	case WriteOnce:
		return "writeonce"
	case MutCustom:
		return "custom"
	}
	return "unknown"
}

// String provides a print friendly representation of the Mobility.
func (m Mobility) String() string {
	if m == Immobile {
		return "immobile"
	}
	return "mobile"
}
