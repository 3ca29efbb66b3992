// expr.go lowers statements and expressions inside one basic block. The
// ValMap snapshot is threaded left to right; only Move statements rebind.

package llvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"midlc/src/ir"
)

// ---------------------
// ----- functions -----
// ---------------------

// lowerStmt lowers one statement and returns the updated snapshot.
func (fl *funcLowerer) lowerStmt(v ValMap, s *ir.Stmt) (ValMap, error) {
	switch s.Kind {
	case ir.StmtMove:
		return fl.lowerMove(v, &s.Move)
	case ir.StmtStore:
		addr, err := fl.lowerExpr(v, &s.Store.Addr)
		if err != nil {
			return v, err
		}
		val, err := fl.lowerExpr(v, &s.Store.Value)
		if err != nil {
			return v, err
		}
		genStore(fl.ctx, fl.b, val, addr, s.Store.Mut)
		return v, nil
	case ir.StmtEval:
		_, err := fl.lowerExpr(v, &s.Eval.Expr)
		return v, err
	}
	return v, fmt.Errorf("%w: unknown statement kind %d", ir.ErrMalformedIR, s.Kind)
}

// lowerMove lowers an assignment. Struct-typed destinations expand into
// per-field binds; scalar destinations rebind, or store when the variable
// lives in memory.
func (fl *funcLowerer) lowerMove(v ValMap, mv *ir.MoveStmt) (ValMap, error) {
	dt := fl.f.VarType(mv.Dst)
	if dt == nil {
		return v, fmt.Errorf("%w: move to undefined variable %d", ir.ErrMalformedIR, mv.Dst)
	}

	if dt.IsStruct(fl.m) {
		// Moving aggregates copies field ids when the source is an already
		// expanded variable; every other source flattens to one SSA
		// aggregate and is re-expanded field by field.
		if mv.Src.Kind == ir.ExprVar {
			loc, err := v.Lookup(mv.Src.Var)
			if err != nil {
				return v, err
			}
			if loc.Kind == LocStruct {
				return v.Bind(mv.Dst, structLoc(loc.Fields)), nil
			}
		}
		val, err := fl.lowerExpr(v, &mv.Src)
		if err != nil {
			return v, err
		}
		v, loc, err := fl.expandValue(v, val, dt)
		if err != nil {
			return v, err
		}
		return v.Bind(mv.Dst, loc), nil
	}

	val, err := fl.lowerExpr(v, &mv.Src)
	if err != nil {
		return v, err
	}
	if loc, err := v.Lookup(mv.Dst); err == nil && loc.Kind == LocMem {
		genStore(fl.ctx, fl.b, val, loc.Mem.Addr, loc.Mem.Mut)
		return v, nil
	}
	return v.Bind(mv.Dst, bindLoc(val)), nil
}

// lowerExpr lowers one expression to an SSA value. Aggregate-valued
// expressions yield a single aggregate SSA value; expanded variables are
// re-aggregated on demand.
func (fl *funcLowerer) lowerExpr(v ValMap, e *ir.Expr) (llvm.Value, error) {
	switch e.Kind {
	case ir.ExprConst:
		return genConst(fl.tt, &e.Const)
	case ir.ExprVar:
		return fl.readVar(v, e.Var)
	case ir.ExprUnary:
		return fl.lowerUnary(v, e.Unary)
	case ir.ExprBinary:
		return fl.lowerBinary(v, e.Binary)
	case ir.ExprCall:
		return fl.lowerCall(v, e.Call)
	case ir.ExprLoad:
		addr, err := fl.lowerExpr(v, e.Load.Addr)
		if err != nil {
			return llvm.Value{}, err
		}
		t, err := fl.tt.translate(e.Load.Type, nil)
		if err != nil {
			return llvm.Value{}, err
		}
		return genLoad(fl.ctx, fl.b, addr, e.Load.Mut, t), nil
	case ir.ExprField:
		return fl.lowerField(v, e.Field)
	case ir.ExprStructLit:
		return fl.lowerStructLit(v, e.StructLit)
	}
	return llvm.Value{}, fmt.Errorf("%w: unknown expression kind %d", ir.ErrMalformedIR, e.Kind)
}

// readVar materialises the current value of a variable.
func (fl *funcLowerer) readVar(v ValMap, id ir.VarID) (llvm.Value, error) {
	loc, err := v.Lookup(id)
	if err != nil {
		return llvm.Value{}, err
	}
	return fl.locValue(v, loc, fl.f.VarType(id))
}

// locValue turns a Location into one SSA value: bindings read directly,
// memory locations load, expanded structs re-aggregate.
func (fl *funcLowerer) locValue(v ValMap, loc Location, t *ir.Type) (llvm.Value, error) {
	switch loc.Kind {
	case LocBind:
		return loc.Bind, nil
	case LocMem:
		lt, err := fl.tt.translate(loc.Mem.Ty, nil)
		if err != nil {
			return llvm.Value{}, err
		}
		return genLoad(fl.ctx, fl.b, loc.Mem.Addr, loc.Mem.Mut, lt), nil
	case LocStruct:
		r := fl.m.Resolve(t)
		if r == nil || r.Kind != ir.TypeStruct {
			return llvm.Value{}, fmt.Errorf("%w: expanded variable of non-struct type %s", ir.ErrInvariant, t.String())
		}
		if len(loc.Fields) != len(r.Struct.Fields) {
			return llvm.Value{}, fmt.Errorf("%w: expanded variable has %d fields, type has %d",
				ir.ErrInvariant, len(loc.Fields), len(r.Struct.Fields))
		}
		lt, err := fl.tt.translate(t, nil)
		if err != nil {
			return llvm.Value{}, err
		}
		agg := llvm.Undef(lt)
		for i1, e1 := range loc.Fields {
			floc, err := v.Lookup(e1)
			if err != nil {
				return llvm.Value{}, err
			}
			fv, err := fl.locValue(v, floc, r.Struct.Fields[i1].Type)
			if err != nil {
				return llvm.Value{}, err
			}
			agg = fl.b.CreateInsertValue(agg, fv, i1, "")
		}
		return agg, nil
	}
	return llvm.Value{}, fmt.Errorf("%w: unknown location kind %d", ir.ErrInvariant, loc.Kind)
}

// lowerField reads one leaf of an aggregate variable.
func (fl *funcLowerer) lowerField(v ValMap, fe *ir.FieldExpr) (llvm.Value, error) {
	loc, err := v.Lookup(fe.Var)
	if err != nil {
		return llvm.Value{}, err
	}
	t := fl.f.VarType(fe.Var)
	for i1, step := range fe.Path {
		r := fl.m.Resolve(t)
		if r == nil || r.Kind != ir.TypeStruct {
			return llvm.Value{}, fmt.Errorf("%w: field path enters non-struct type %s", ir.ErrMalformedIR, t.String())
		}
		if step < 0 || step >= len(r.Struct.Fields) {
			return llvm.Value{}, fmt.Errorf("%w: field index %d of %d-field struct",
				ir.ErrMalformedIR, step, len(r.Struct.Fields))
		}
		switch loc.Kind {
		case LocStruct:
			id := loc.Fields[step]
			if loc, err = v.Lookup(id); err != nil {
				return llvm.Value{}, err
			}
			t = r.Struct.Fields[step].Type
		default:
			// The aggregate is one SSA value (for example a φ result):
			// extract the remaining path directly.
			val, err := fl.locValue(v, loc, t)
			if err != nil {
				return llvm.Value{}, err
			}
			for _, e1 := range fe.Path[i1:] {
				val = fl.b.CreateExtractValue(val, e1, "")
			}
			return val, nil
		}
	}
	return fl.locValue(v, loc, t)
}

// lowerStructLit builds an aggregate value field by field.
func (fl *funcLowerer) lowerStructLit(v ValMap, sl *ir.StructLitExpr) (llvm.Value, error) {
	lt, err := fl.tt.translate(sl.Type, nil)
	if err != nil {
		return llvm.Value{}, err
	}
	agg := llvm.Undef(lt)
	for i1 := range sl.Fields {
		fv, err := fl.lowerExpr(v, &sl.Fields[i1])
		if err != nil {
			return llvm.Value{}, err
		}
		agg = fl.b.CreateInsertValue(agg, fv, i1, "")
	}
	return agg, nil
}

// lowerCall lowers a call to a declared global function.
func (fl *funcLowerer) lowerCall(v ValMap, ce *ir.CallExpr) (llvm.Value, error) {
	i1 := int(ce.Global)
	if i1 < 0 || i1 >= len(fl.dt.vals) || fl.dt.fnTypes[i1].IsNil() {
		return llvm.Value{}, fmt.Errorf("%w: call to global %d which is not a function", ir.ErrMalformedIR, ce.Global)
	}
	args := make([]llvm.Value, len(ce.Args))
	for i2 := range ce.Args {
		a, err := fl.lowerExpr(v, &ce.Args[i2])
		if err != nil {
			return llvm.Value{}, err
		}
		args[i2] = a
	}
	return fl.b.CreateCall(fl.dt.vals[i1], args, ""), nil
}

// lowerUnary lowers a unary operator.
func (fl *funcLowerer) lowerUnary(v ValMap, ue *ir.UnaryExpr) (llvm.Value, error) {
	x, err := fl.lowerExpr(v, ue.X)
	if err != nil {
		return llvm.Value{}, err
	}
	t, err := fl.typeOfExpr(ue.X)
	if err != nil {
		return llvm.Value{}, err
	}
	isFloat := t != nil && t.Kind == ir.TypeFloat
	switch ue.Op {
	case ir.OpNeg:
		if isFloat {
			return fl.b.CreateFNeg(x, ""), nil
		}
		return fl.b.CreateNeg(x, ""), nil
	case ir.OpNot:
		return fl.b.CreateNot(x, ""), nil
	}
	return llvm.Value{}, fmt.Errorf("%w: unknown unary operator %d", ir.ErrMalformedIR, ue.Op)
}

// lowerBinary lowers a binary operator, picking the integer or floating
// point instruction family and honouring signedness.
func (fl *funcLowerer) lowerBinary(v ValMap, be *ir.BinaryExpr) (llvm.Value, error) {
	l, err := fl.lowerExpr(v, be.L)
	if err != nil {
		return llvm.Value{}, err
	}
	r, err := fl.lowerExpr(v, be.R)
	if err != nil {
		return llvm.Value{}, err
	}
	t, err := fl.typeOfExpr(be.L)
	if err != nil {
		return llvm.Value{}, err
	}
	rt := fl.m.Resolve(t)
	isFloat := rt != nil && rt.Kind == ir.TypeFloat
	signed := rt != nil && rt.Kind == ir.TypeInt && rt.Int.Signed
	b := fl.b

	if isFloat {
		switch be.Op {
		case ir.OpAdd:
			return b.CreateFAdd(l, r, ""), nil
		case ir.OpSub:
			return b.CreateFSub(l, r, ""), nil
		case ir.OpMul:
			return b.CreateFMul(l, r, ""), nil
		case ir.OpDiv:
			return b.CreateFDiv(l, r, ""), nil
		case ir.OpRem:
			return b.CreateFRem(l, r, ""), nil
		case ir.OpEq:
			return b.CreateFCmp(llvm.FloatOEQ, l, r, ""), nil
		case ir.OpNe:
			return b.CreateFCmp(llvm.FloatONE, l, r, ""), nil
		case ir.OpLt:
			return b.CreateFCmp(llvm.FloatOLT, l, r, ""), nil
		case ir.OpLe:
			return b.CreateFCmp(llvm.FloatOLE, l, r, ""), nil
		case ir.OpGt:
			return b.CreateFCmp(llvm.FloatOGT, l, r, ""), nil
		case ir.OpGe:
			return b.CreateFCmp(llvm.FloatOGE, l, r, ""), nil
		}
		return llvm.Value{}, fmt.Errorf("%w: operator %d not defined for floats", ir.ErrMalformedIR, be.Op)
	}

	switch be.Op {
	case ir.OpAdd:
		return b.CreateAdd(l, r, ""), nil
	case ir.OpSub:
		return b.CreateSub(l, r, ""), nil
	case ir.OpMul:
		return b.CreateMul(l, r, ""), nil
	case ir.OpDiv:
		if signed {
			return b.CreateSDiv(l, r, ""), nil
		}
		return b.CreateUDiv(l, r, ""), nil
	case ir.OpRem:
		if signed {
			return b.CreateSRem(l, r, ""), nil
		}
		return b.CreateURem(l, r, ""), nil
	case ir.OpAnd:
		return b.CreateAnd(l, r, ""), nil
	case ir.OpOr:
		return b.CreateOr(l, r, ""), nil
	case ir.OpXor:
		return b.CreateXor(l, r, ""), nil
	case ir.OpShl:
		return b.CreateShl(l, r, ""), nil
	case ir.OpShr:
		if signed {
			return b.CreateAShr(l, r, ""), nil
		}
		return b.CreateLShr(l, r, ""), nil
	case ir.OpEq:
		return b.CreateICmp(llvm.IntEQ, l, r, ""), nil
	case ir.OpNe:
		return b.CreateICmp(llvm.IntNE, l, r, ""), nil
	case ir.OpLt:
		if signed {
			return b.CreateICmp(llvm.IntSLT, l, r, ""), nil
		}
		return b.CreateICmp(llvm.IntULT, l, r, ""), nil
	case ir.OpLe:
		if signed {
			return b.CreateICmp(llvm.IntSLE, l, r, ""), nil
		}
		return b.CreateICmp(llvm.IntULE, l, r, ""), nil
	case ir.OpGt:
		if signed {
			return b.CreateICmp(llvm.IntSGT, l, r, ""), nil
		}
		return b.CreateICmp(llvm.IntUGT, l, r, ""), nil
	case ir.OpGe:
		if signed {
			return b.CreateICmp(llvm.IntSGE, l, r, ""), nil
		}
		return b.CreateICmp(llvm.IntUGE, l, r, ""), nil
	}
	return llvm.Value{}, fmt.Errorf("%w: unknown binary operator %d", ir.ErrMalformedIR, be.Op)
}

// typeOfExpr computes the static MidIR type of an expression. Comparison
// operators yield i1; every other operator preserves its left operand type.
func (fl *funcLowerer) typeOfExpr(e *ir.Expr) (*ir.Type, error) {
	switch e.Kind {
	case ir.ExprConst:
		return e.Const.Type, nil
	case ir.ExprVar:
		t := fl.f.VarType(e.Var)
		if t == nil {
			return nil, fmt.Errorf("%w: undefined variable %d", ir.ErrMalformedIR, e.Var)
		}
		return t, nil
	case ir.ExprUnary:
		return fl.typeOfExpr(e.Unary.X)
	case ir.ExprBinary:
		switch e.Binary.Op {
		case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
			return ir.IntT(false, 1), nil
		}
		return fl.typeOfExpr(e.Binary.L)
	case ir.ExprCall:
		i1 := int(e.Call.Global)
		if i1 < 0 || i1 >= len(fl.m.Globals) || fl.m.Globals[i1].Func == nil {
			return nil, fmt.Errorf("%w: call to global %d which is not a function", ir.ErrMalformedIR, e.Call.Global)
		}
		return fl.m.Globals[i1].Func.Result, nil
	case ir.ExprLoad:
		return e.Load.Type, nil
	case ir.ExprField:
		t := fl.f.VarType(e.Field.Var)
		for _, e1 := range e.Field.Path {
			r := fl.m.Resolve(t)
			if r == nil || r.Kind != ir.TypeStruct || e1 < 0 || e1 >= len(r.Struct.Fields) {
				return nil, fmt.Errorf("%w: field path enters non-struct type", ir.ErrMalformedIR)
			}
			t = r.Struct.Fields[e1].Type
		}
		return t, nil
	case ir.ExprStructLit:
		return e.StructLit.Type, nil
	}
	return nil, fmt.Errorf("%w: unknown expression kind %d", ir.ErrMalformedIR, e.Kind)
}

// expandValue decomposes an aggregate SSA value into freshly minted field
// variables, recursively, so that every leaf id holds a non-struct value.
func (fl *funcLowerer) expandValue(v ValMap, val llvm.Value, t *ir.Type) (ValMap, Location, error) {
	r := fl.m.Resolve(t)
	if r == nil || r.Kind != ir.TypeStruct {
		return v, Location{}, fmt.Errorf("%w: expansion of non-struct type %s", ir.ErrInvariant, t.String())
	}
	fields := make([]ir.VarID, len(r.Struct.Fields))
	for i1 := range r.Struct.Fields {
		fv := fl.b.CreateExtractValue(val, i1, "")
		ft := r.Struct.Fields[i1].Type
		id := v.fresh()
		if ft.IsStruct(fl.m) {
			var loc Location
			var err error
			if v, loc, err = fl.expandValue(v, fv, ft); err != nil {
				return v, Location{}, err
			}
			v = v.Bind(id, loc)
		} else {
			v = v.Bind(id, bindLoc(fv))
		}
		fields[i1] = id
	}
	return v, structLoc(fields), nil
}

// undefLoc seeds the location of a variable that is read before any
// assignment: scalars bind to undef, structs expand into undef leaves.
func (fl *funcLowerer) undefLoc(v ValMap, t *ir.Type) (ValMap, Location, error) {
	r := fl.m.Resolve(t)
	if r != nil && r.Kind == ir.TypeStruct {
		fields := make([]ir.VarID, len(r.Struct.Fields))
		for i1 := range r.Struct.Fields {
			id := v.fresh()
			var loc Location
			var err error
			if v, loc, err = fl.undefLoc(v, r.Struct.Fields[i1].Type); err != nil {
				return v, Location{}, err
			}
			v = v.Bind(id, loc)
			fields[i1] = id
		}
		return v, structLoc(fields), nil
	}
	lt, err := fl.tt.translate(t, nil)
	if err != nil {
		return v, Location{}, err
	}
	return v, bindLoc(llvm.Undef(lt)), nil
}
