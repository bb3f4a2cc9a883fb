package mir

// MapChildren reconstructs e with each direct child replaced by f(child).
// It mirrors Children's node-shape knowledge but rebuilds rather than just
// reads, so a pass (C8's tempifier and env-rewrite in particular) can
// rewrite a subtree without a bespoke type switch of its own. Leaves are
// returned unchanged since they have no children to map.
func MapChildren(e Expr, f func(Expr) Expr) Expr {
	switch v := e.(type) {
	case *LVarDecl:
		return &LVarDecl{v.exprBase, v.Index, v.Name, f(v.Value)}
	case *LVarSet:
		return &LVarSet{v.exprBase, v.Index, v.Name, f(v.Value)}
	case *IVarRef:
		return &IVarRef{v.exprBase, f(v.Receiver), v.Index, v.Name}
	case *IVarSet:
		return &IVarSet{v.exprBase, f(v.Receiver), v.Index, v.Name, f(v.Value)}
	case *EnvSet:
		return &EnvSet{v.exprBase, v.Index, f(v.Value)}
	case *ConstSet:
		return &ConstSet{v.exprBase, v.Fullname, f(v.Value)}
	case *FunCall:
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = f(a)
		}
		return &FunCall{v.exprBase, f(v.Callee), args}
	case *VTableRef:
		return &VTableRef{v.exprBase, f(v.Receiver), v.ClassFullname, v.MethodFullname, v.Index}
	case *WTableRef:
		return &WTableRef{v.exprBase, f(v.Receiver), v.Module, v.MethodName, v.Index}
	case *If:
		return &If{v.exprBase, f(v.Cond), f(v.Then), f(v.Else)}
	case *While:
		return &While{v.exprBase, f(v.Cond), f(v.Body)}
	case *Spawn:
		return &Spawn{v.exprBase, f(v.Func)}
	case *Return:
		if v.Value == nil {
			return v
		}
		return &Return{v.exprBase, f(v.Value)}
	case *Seq:
		exprs := make([]Expr, len(v.Exprs))
		for i, x := range v.Exprs {
			exprs[i] = f(x)
		}
		return &Seq{v.exprBase, exprs}
	case *Cast:
		return &Cast{v.exprBase, v.Kind, f(v.Value)}
	case *CreateObject:
		ivars := make([]Expr, len(v.IVars))
		for i, x := range v.IVars {
			ivars[i] = f(x)
		}
		return &CreateObject{v.exprBase, v.ClassFullname, ivars}
	case *CreateNativeArray:
		elems := make([]Expr, len(v.Elems))
		for i, x := range v.Elems {
			elems[i] = f(x)
		}
		return &CreateNativeArray{v.exprBase, v.ElemTy, elems}
	case *Unbox:
		return &Unbox{v.exprBase, f(v.Value)}
	default:
		return e
	}
}
