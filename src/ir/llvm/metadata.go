// metadata.go populates the GC runtime metadata: the body of the
// `core.gc.typedesc` struct, the contents of the descriptor globals and the
// module-level identification node.

package llvm

import (
	"tinygo.org/x/go-llvm"

	"midlc/src/ir"
)

// ---------------------
// ----- Constants -----
// ---------------------

// compilerIdent is stamped into the emitted module's llvm.ident metadata.
const compilerIdent = "midlc MidIR-to-LLVM code generator"

// ---------------------
// ----- functions -----
// ---------------------

// genMetadata fills the type descriptor layout, initialises the descriptor
// globals and stamps module metadata. The descriptor carries the object
// size, a mobility flag, a mutability tag and a display-name pointer slot;
// the collector reads it at runtime. The size slot stays zero here, the
// runtime linker patches it from the target data layout. The display-name
// slot is initialised to null; no name string is emitted.
func genMetadata(ctx llvm.Context, mod llvm.Module, m *ir.Module, typedesc llvm.Type, descs []llvm.Value) {
	i8ptr := llvm.PointerType(ctx.Int8Type(), 0)
	typedesc.StructSetBody([]llvm.Type{
		ctx.Int64Type(), // Object size in bytes.
		ctx.Int8Type(),  // Mobility flag.
		ctx.Int8Type(),  // Mutability tag.
		i8ptr,           // Display name.
	}, false)

	for i1 := range descs {
		h := &m.Headers[i1]
		descs[i1].SetInitializer(llvm.ConstNamedStruct(typedesc, []llvm.Value{
			llvm.ConstInt(ctx.Int64Type(), 0, false),
			llvm.ConstInt(ctx.Int8Type(), uint64(h.Mobility), false),
			llvm.ConstInt(ctx.Int8Type(), uint64(h.Mut), false),
			llvm.ConstNull(i8ptr),
		}))
	}

	mod.AddNamedMetadataOperand("llvm.ident",
		ctx.MDNode([]llvm.Metadata{ctx.MDString(compilerIdent)}))
}
