// gcheader.go emits one type descriptor global per GC header. The
// descriptor struct itself is created opaque here and body-filled by
// genMetadata, which owns the GC runtime layout.

package llvm

import (
	"tinygo.org/x/go-llvm"

	"midlc/src/ir"
)

// ---------------------
// ----- functions -----
// ---------------------

// emitGCHeaders creates the named `core.gc.typedesc` struct and one private
// constant global per GC header. The returned slice is indexed by header id.
func emitGCHeaders(ctx llvm.Context, mod llvm.Module, m *ir.Module) (llvm.Type, []llvm.Value) {
	typedesc := ctx.StructCreateNamed(typedescName)
	headers := make([]llvm.Value, len(m.Headers))
	for i1 := range m.Headers {
		g := llvm.AddGlobal(mod, typedesc, descriptorName(m, &m.Headers[i1]))
		g.SetGlobalConstant(true)
		g.SetLinkage(llvm.PrivateLinkage)
		headers[i1] = g
	}
	return typedesc, headers
}
