package mir

// Children returns e's direct subexpressions, in evaluation order. It is
// the single place that knows the full MIR node set, so C7's asyncness
// walk, C8's splitter and any future pass can share one traversal instead
// of re-deriving the node shapes.
func Children(e Expr) []Expr {
	switch v := e.(type) {
	case *LVarDecl:
		return []Expr{v.Value}
	case *LVarSet:
		return []Expr{v.Value}
	case *IVarRef:
		return []Expr{v.Receiver}
	case *IVarSet:
		return []Expr{v.Receiver, v.Value}
	case *EnvSet:
		return []Expr{v.Value}
	case *ConstSet:
		return []Expr{v.Value}
	case *FunCall:
		out := make([]Expr, 0, len(v.Args)+1)
		out = append(out, v.Callee)
		out = append(out, v.Args...)
		return out
	case *VTableRef:
		return []Expr{v.Receiver}
	case *WTableRef:
		return []Expr{v.Receiver}
	case *If:
		return []Expr{v.Cond, v.Then, v.Else}
	case *While:
		return []Expr{v.Cond, v.Body}
	case *Spawn:
		return []Expr{v.Func}
	case *Return:
		if v.Value == nil {
			return nil
		}
		return []Expr{v.Value}
	case *Seq:
		return v.Exprs
	case *Cast:
		return []Expr{v.Value}
	case *CreateObject:
		return v.IVars
	case *CreateNativeArray:
		return v.Elems
	case *Unbox:
		return []Expr{v.Value}
	default:
		// IntLit, FloatLit, PseudoVarRef, StringLit, LVarRef, ArgRef,
		// EnvRef, EnvPushFrame, EnvPopFrame, ConstRef, FuncRef, Alloc,
		// CreateTypeObject, RawI64, Nop: all leaves.
		return nil
	}
}

// Walk visits e and every expression reachable from it, pre-order.
func Walk(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	for _, c := range Children(e) {
		Walk(c, visit)
	}
}
