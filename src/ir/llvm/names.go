// names.go centralises the generated-name conventions of the lowering.
// The conventions are load-bearing: other tools in the toolchain reference
// blocks, descriptor globals and accessor intrinsics by these exact names.

package llvm

import (
	"fmt"
	"strings"

	"midlc/src/ir"
)

// ---------------------
// ----- Constants -----
// ---------------------

// entryLabel is the label of the synthetic first block of every function.
const entryLabel = "entry"

// blockLabelPrefix prefixes the label of every CFG node's block.
const blockLabelPrefix = "L"

// typedescName is the name of the GC type descriptor struct.
const typedescName = "core.gc.typedesc"

// accessorRoot is the first segment of every accessor intrinsic path.
const accessorRoot = "core.types"

// readSuffix and writeSuffix close accessor intrinsic names.
const (
	readSuffix  = ".read"
	writeSuffix = ".write"
)

// ---------------------
// ----- functions -----
// ---------------------

// blockLabel returns the LLVM label of CFG node n.
func blockLabel(n ir.NodeID) string {
	return fmt.Sprintf("%s%d", blockLabelPrefix, n)
}

// descriptorName returns the deterministic name of the type descriptor
// global for GC header h of module m.
func descriptorName(m *ir.Module, h *ir.GCHeader) string {
	sb := strings.Builder{}
	sb.WriteString(typedescName)
	sb.WriteRune('.')
	sb.WriteString(m.TypeName(h.Type))
	sb.WriteRune('.')
	sb.WriteString(h.Mobility.String())
	sb.WriteRune('.')
	if h.Mut == ir.MutCustom {
		sb.WriteString(h.Custom)
	} else {
		sb.WriteString(h.Mut.String())
	}
	return sb.String()
}

// accessorPath returns the path root for named type entry name.
func accessorPath(name string) string {
	return accessorRoot + "." + name
}
