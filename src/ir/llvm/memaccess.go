// memaccess.go lowers the memory access primitives. Loads carry metadata
// reflecting the declared mutability of the accessed cell so later LLVM
// passes can exploit immutability; stores carry no metadata.

package llvm

import (
	"tinygo.org/x/go-llvm"

	"midlc/src/ir"
)

// ---------------------
// ----- functions -----
// ---------------------

// genLoad emits a load of ty from addr. Immutable cells are marked
// invariant: their value cannot change over the lifetime of the program.
// The pointee type is redundant with the address value's type here; it is
// part of the contract so callers stay explicit about what they expect.
func genLoad(ctx llvm.Context, b llvm.Builder, addr llvm.Value, mut ir.Mutability, ty llvm.Type) llvm.Value {
	ld := b.CreateLoad(addr, "")
	if mut == ir.Immutable {
		ld.SetMetadata(ctx.MDKindID("invariant.load"), ctx.MDNode(nil))
	}
	return ld
}

// genStore emits a store of value to addr. The mutability hint is accepted
// for contract symmetry with genLoad; stores to write-once cells are plain
// stores, the write discipline is enforced upstream.
func genStore(ctx llvm.Context, b llvm.Builder, value, addr llvm.Value, mut ir.Mutability) {
	b.CreateStore(value, addr)
}
