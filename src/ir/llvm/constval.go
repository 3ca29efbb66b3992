// constval.go lowers constant initializer expressions.

package llvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"midlc/src/ir"
)

// ---------------------
// ----- functions -----
// ---------------------

// genConst lowers a literal to an LLVM constant of its declared type.
func genConst(tt *typeTable, c *ir.ConstExpr) (llvm.Value, error) {
	t, err := tt.translate(c.Type, nil)
	if err != nil {
		return llvm.Value{}, err
	}
	if c.IsFloat {
		return llvm.ConstFloat(t, c.Float), nil
	}
	r := tt.m.Resolve(c.Type)
	if r == nil || r.Kind != ir.TypeInt {
		return llvm.Value{}, fmt.Errorf("%w: integer literal of non-integer type %s",
			ir.ErrMalformedIR, c.Type.String())
	}
	return llvm.ConstInt(t, uint64(c.Int), r.Int.Signed), nil
}
