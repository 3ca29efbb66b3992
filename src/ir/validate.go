// validate.go front-loads the structural checks of the lowering pipeline.
// Everything flagged here would otherwise surface as a fatal error halfway
// through LLVM emission; the validator reports it before any LLVM state
// exists, naming the offending entity.

package ir

import "fmt"

// ---------------------
// ----- functions -----
// ---------------------

// Validate checks Module m for malformed types and malformed IR. The first
// violation found is returned wrapped in ErrMalformedType or ErrMalformedIR.
func Validate(m *Module) error {
	for i1 := range m.Types {
		if m.Types[i1].Body == nil {
			continue
		}
		if err := validateType(m, m.Types[i1].Body); err != nil {
			return fmt.Errorf("type %d (%s): %w", i1, m.Types[i1].Name, err)
		}
	}
	for i1 := range m.Headers {
		h := &m.Headers[i1]
		if int(h.Type) < 0 || int(h.Type) >= len(m.Types) {
			return fmt.Errorf("%w: GC header %d references type index %d of %d",
				ErrMalformedType, i1, h.Type, len(m.Types))
		}
	}
	for i1 := range m.Globals {
		g := &m.Globals[i1]
		switch g.Kind {
		case GlobalVar:
			if g.Type == nil {
				return fmt.Errorf("%w: global %d (%s) has no type", ErrMalformedIR, i1, g.Name)
			}
			if err := validateType(m, g.Type); err != nil {
				return fmt.Errorf("global %d (%s): %w", i1, g.Name, err)
			}
		case GlobalFunc:
			if g.Func == nil {
				return fmt.Errorf("%w: global %d (%s) has no function", ErrMalformedIR, i1, g.Name)
			}
			if err := validateFunc(m, g.Func); err != nil {
				return fmt.Errorf("function %s: %w", g.Name, err)
			}
		default:
			return fmt.Errorf("%w: global %d (%s) has unknown kind %d", ErrMalformedIR, i1, g.Name, g.Kind)
		}
	}
	return nil
}

// validateType recursively checks one type tree.
func validateType(m *Module, t *Type) error {
	if t == nil {
		return fmt.Errorf("%w: nil type", ErrMalformedType)
	}
	switch t.Kind {
	case TypeInt:
		if t.Int.Width == 0 {
			return fmt.Errorf("%w: integer width 0", ErrMalformedType)
		}
	case TypeFloat:
		if b := t.Float.Bits; b != 32 && b != 64 && b != 128 {
			return fmt.Errorf("%w: float size %d, want 32, 64 or 128", ErrMalformedType, b)
		}
	case TypeStruct:
		for i1 := range t.Struct.Fields {
			if err := validateType(m, t.Struct.Fields[i1].Type); err != nil {
				return fmt.Errorf("field %s: %w", t.Struct.Fields[i1].Name, err)
			}
		}
	case TypeArray:
		return validateType(m, t.Array.Elem)
	case TypePtr:
		if t.Ptr.Kind == GCObj {
			if int(t.Ptr.Header) < 0 || int(t.Ptr.Header) >= len(m.Headers) {
				return fmt.Errorf("%w: GC pointer references header index %d of %d",
					ErrMalformedType, t.Ptr.Header, len(m.Headers))
			}
			return nil
		}
		return validateType(m, t.Ptr.Elem)
	case TypeNamed:
		if int(t.Named) < 0 || int(t.Named) >= len(m.Types) {
			return fmt.Errorf("%w: dangling type index %d of %d", ErrMalformedType, t.Named, len(m.Types))
		}
	default:
		return fmt.Errorf("%w: unknown type kind %d", ErrMalformedType, t.Kind)
	}
	return nil
}

// validateFunc checks the signature and, when present, the CFG of f.
func validateFunc(m *Module, f *Func) error {
	for i1, e1 := range f.VarTypes {
		if err := validateType(m, e1); err != nil {
			return fmt.Errorf("variable %d: %w", f.VarMin+VarID(i1), err)
		}
	}
	if f.Result != nil {
		if err := validateType(m, f.Result); err != nil {
			return fmt.Errorf("result: %w", err)
		}
	}
	for _, e1 := range f.Params {
		if f.VarType(e1) == nil {
			return fmt.Errorf("%w: parameter id %d outside variable range [%d, %d]",
				ErrMalformedIR, e1, f.VarMin, f.VarMax())
		}
	}
	if len(f.Blocks) == 0 {
		return nil
	}
	if f.BlockByID(f.Entry) == nil {
		return fmt.Errorf("%w: entry node %d does not exist", ErrMalformedIR, f.Entry)
	}
	for i1 := range f.Blocks {
		b := &f.Blocks[i1]
		for i2 := range b.Stmts {
			if err := validateStmt(m, f, &b.Stmts[i2]); err != nil {
				return fmt.Errorf("block %d statement %d: %w", b.ID, i2, err)
			}
		}
		for _, e1 := range b.Term.Successors() {
			if f.BlockByID(e1) == nil {
				return fmt.Errorf("%w: block %d terminator targets unknown node %d", ErrMalformedIR, b.ID, e1)
			}
		}
		if b.Term.Kind == TermBranch {
			if err := validateExpr(m, f, &b.Term.Branch.Cond); err != nil {
				return fmt.Errorf("block %d condition: %w", b.ID, err)
			}
		}
		if b.Term.Kind == TermReturn && b.Term.Return.HasValue {
			if err := validateExpr(m, f, &b.Term.Return.Value); err != nil {
				return fmt.Errorf("block %d return: %w", b.ID, err)
			}
		}
	}
	return nil
}

// validateStmt checks one statement.
func validateStmt(m *Module, f *Func, s *Stmt) error {
	switch s.Kind {
	case StmtMove:
		if f.VarType(s.Move.Dst) == nil {
			return fmt.Errorf("%w: move to undefined variable %d", ErrMalformedIR, s.Move.Dst)
		}
		return validateExpr(m, f, &s.Move.Src)
	case StmtStore:
		if err := validateExpr(m, f, &s.Store.Addr); err != nil {
			return err
		}
		return validateExpr(m, f, &s.Store.Value)
	case StmtEval:
		return validateExpr(m, f, &s.Eval.Expr)
	}
	return fmt.Errorf("%w: unknown statement kind %d", ErrMalformedIR, s.Kind)
}

// validateExpr recursively checks one expression tree.
func validateExpr(m *Module, f *Func, e *Expr) error {
	switch e.Kind {
	case ExprConst:
		return validateType(m, e.Const.Type)
	case ExprVar:
		if f.VarType(e.Var) == nil {
			return fmt.Errorf("%w: undefined variable %d", ErrMalformedIR, e.Var)
		}
	case ExprUnary:
		return validateExpr(m, f, e.Unary.X)
	case ExprBinary:
		if err := validateExpr(m, f, e.Binary.L); err != nil {
			return err
		}
		return validateExpr(m, f, e.Binary.R)
	case ExprCall:
		i1 := int(e.Call.Global)
		if i1 < 0 || i1 >= len(m.Globals) || m.Globals[i1].Kind != GlobalFunc {
			return fmt.Errorf("%w: call to global %d which is not a function", ErrMalformedIR, e.Call.Global)
		}
		for i2 := range e.Call.Args {
			if err := validateExpr(m, f, &e.Call.Args[i2]); err != nil {
				return err
			}
		}
	case ExprLoad:
		if err := validateType(m, e.Load.Type); err != nil {
			return err
		}
		return validateExpr(m, f, e.Load.Addr)
	case ExprField:
		t := f.VarType(e.Field.Var)
		if t == nil {
			return fmt.Errorf("%w: field read of undefined variable %d", ErrMalformedIR, e.Field.Var)
		}
		for _, e1 := range e.Field.Path {
			r := m.Resolve(t)
			if r == nil || r.Kind != TypeStruct {
				return fmt.Errorf("%w: field path enters non-struct type %s", ErrMalformedIR, t.String())
			}
			if e1 < 0 || e1 >= len(r.Struct.Fields) {
				return fmt.Errorf("%w: field index %d of %d-field struct", ErrMalformedIR, e1, len(r.Struct.Fields))
			}
			t = r.Struct.Fields[e1].Type
		}
	case ExprStructLit:
		r := m.Resolve(e.StructLit.Type)
		if r == nil || r.Kind != TypeStruct {
			return fmt.Errorf("%w: struct literal of non-struct type", ErrMalformedIR)
		}
		if len(e.StructLit.Fields) != len(r.Struct.Fields) {
			return fmt.Errorf("%w: struct literal has %d fields, type has %d",
				ErrMalformedIR, len(e.StructLit.Fields), len(r.Struct.Fields))
		}
		for i1 := range e.StructLit.Fields {
			if err := validateExpr(m, f, &e.StructLit.Fields[i1]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown expression kind %d", ErrMalformedIR, e.Kind)
	}
	return nil
}
