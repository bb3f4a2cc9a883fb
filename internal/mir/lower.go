package mir

import (
	"fmt"

	"shiika/internal/hir"
	"shiika/internal/types"
)

// BreakWhile/BreakBlock carry HIR's two break forms straight through; MIR's
// node list in spec.md §3 doesn't name a break node explicitly (the list is
// illustrative, not exhaustive — HIR's own "logical not/and/or" sugar isn't
// named either and is desugared below), but C8's while/async restriction
// and C10's loop codegen both need the distinction preserved.
type BreakWhile struct{ exprBase }
type BreakBlock struct{ exprBase }

// TyParamRef carries a type-parameter reference through to codegen, for
// the runtime type-object read a generic method body may perform.
type TyParamRef struct {
	exprBase
	Index int
	Kind  types.TyParamKind
}

// FromHIR implements C6's HIR->MIR lowering: one mir.Func per hir.Method,
// plus one additional mir.Func per lambda/do-block literal encountered
// along the way (each becomes its own top-level function taking the
// lambda's closure object as an implicit first argument).
func FromHIR(prog *hir.Program) (*Program, error) {
	out := &Program{Strings: prog.Strings}
	for _, meth := range prog.Methods {
		fn, err := lowerTopFunc(out, meth)
		if err != nil {
			return nil, err
		}
		out.Funcs = append(out.Funcs, fn)
	}
	for _, c := range prog.Consts {
		seq := 0
		lc := &lowerCtx{prog: out, params: map[string]int{}, lvars: map[string]int{}, namePrefix: c.Fullname, lambdaSeq: &seq}
		val, err := lc.lowerExpr(c.Value)
		if err != nil {
			return nil, err
		}
		out.Consts = append(out.Consts, ConstDef{Fullname: c.Fullname, Value: val})
	}
	return out, nil
}

// lowerCtx tracks the flat, function-wide index spaces MIR uses: declared
// params (self at index 0), declared lvars (allocated on first write, per
// spec.md §4.2's unconditional-redeclare HIR assignment semantics
// collapsing to "first write declares, later writes set"), and, inside a
// lowered lambda body, the closure's own capture ivar indices.
type lowerCtx struct {
	prog       *Program
	params     map[string]int
	lvars      map[string]int
	next       int
	captures   map[string]int // nil outside a lambda body.
	namePrefix string
	lambdaSeq  *int // shared with every nested lowerCtx so synthesized names stay unique.
}

func ownerOf(fullname string) string {
	for i := 0; i < len(fullname); i++ {
		if fullname[i] == '#' {
			return fullname[:i]
		}
	}
	return ""
}

func lowerTopFunc(prog *Program, m *hir.Method) (*Func, error) {
	params := map[string]int{}
	for i, name := range m.Params {
		params[name] = i + 1
	}
	seq := 0
	lc := &lowerCtx{prog: prog, params: params, lvars: map[string]int{}, namePrefix: m.Fullname, lambdaSeq: &seq}
	body, err := lc.lowerSeq(m.Body)
	if err != nil {
		return nil, err
	}
	selfTy := types.Type(types.Object)
	if owner := ownerOf(m.Fullname); owner != "" {
		selfTy = &types.ClassType{Base: owner}
	}
	fullParams := append([]types.Type{selfTy}, m.ParamTys...)
	return &Func{
		Fullname:  m.Fullname,
		Params:    fullParams,
		Ret:       m.RetTy,
		Asyncness: m.Asyncness,
		LVarCount: lc.next,
		Body:      body,
	}, nil
}

func (lc *lowerCtx) refByName(name string, ty types.Type) Expr {
	if idx, ok := lc.params[name]; ok {
		return &ArgRef{exprBase{ty}, idx}
	}
	if idx, ok := lc.lvars[name]; ok {
		return &LVarRef{exprBase{ty}, idx, name}
	}
	if lc.captures != nil {
		if idx, ok := lc.captures[name]; ok {
			return &IVarRef{exprBase{ty}, &ArgRef{exprBase{types.Object}, 0}, idx, name}
		}
	}
	// Unresolved: well-formed HIR (already name-checked by C3) never
	// reaches this, but a -1 index rather than a panic keeps a malformed
	// input a reportable MIR-verifier failure, not a compiler crash.
	return &LVarRef{exprBase{ty}, -1, name}
}

func (lc *lowerCtx) lvarIndexFor(name string) (int, bool) {
	if idx, ok := lc.lvars[name]; ok {
		return idx, true
	}
	idx := lc.next
	lc.next++
	lc.lvars[name] = idx
	return idx, false
}

func (lc *lowerCtx) lowerSeq(exprs []hir.Expr) (Expr, error) {
	if len(exprs) == 0 {
		return &Nop{exprBase{types.VoidT}}, nil
	}
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		m, err := lc.lowerExpr(e)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return &Seq{exprBase{out[len(out)-1].Ty()}, out}, nil
}

func (lc *lowerCtx) lowerExprs(exprs []hir.Expr) ([]Expr, error) {
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		m, err := lc.lowerExpr(e)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

func (lc *lowerCtx) lowerExpr(e hir.Expr) (Expr, error) {
	switch v := e.(type) {
	case *hir.IntLit:
		return &IntLit{exprBase{v.Ty()}, v.Value}, nil
	case *hir.FloatLit:
		return &FloatLit{exprBase{v.Ty()}, v.Value}, nil
	case *hir.BoolLit:
		pv := False
		if v.Value {
			pv = True
		}
		return &PseudoVarRef{exprBase{v.Ty()}, pv}, nil
	case *hir.StringLit:
		return &StringLit{exprBase{v.Ty()}, v.Idx}, nil
	case *hir.SelfExpr:
		return &ArgRef{exprBase{v.Ty()}, 0}, nil
	case *hir.LVarRef:
		return lc.refByName(v.Name, v.Ty()), nil
	case *hir.ArgRef:
		return &ArgRef{exprBase{v.Ty()}, v.Index + 1}, nil
	case *hir.IVarRef:
		return &IVarRef{exprBase{v.Ty()}, &ArgRef{exprBase{types.Object}, 0}, v.Index, v.Name}, nil
	case *hir.ConstRef:
		return &ConstRef{exprBase{v.Ty()}, v.Fullname}, nil
	case *hir.ClassTyParamRef:
		return &TyParamRef{exprBase{v.Ty()}, v.Index, types.ClassParam}, nil
	case *hir.MethodTyParamRef:
		return &TyParamRef{exprBase{v.Ty()}, v.Index, types.MethodParam}, nil
	case *hir.If:
		cond, err := lc.lowerExpr(v.Cond)
		if err != nil {
			return nil, err
		}
		then, err := lc.lowerSeq(v.Then)
		if err != nil {
			return nil, err
		}
		els, err := lc.lowerSeq(v.Else)
		if err != nil {
			return nil, err
		}
		return &If{exprBase{v.Ty()}, cond, then, els}, nil
	case *hir.While:
		cond, err := lc.lowerExpr(v.Cond)
		if err != nil {
			return nil, err
		}
		body, err := lc.lowerSeq(v.Body)
		if err != nil {
			return nil, err
		}
		return &While{exprBase{types.VoidT}, cond, body}, nil
	case *hir.BreakFromWhile:
		return &BreakWhile{exprBase{types.VoidT}}, nil
	case *hir.BreakFromBlock:
		return &BreakBlock{exprBase{types.VoidT}}, nil
	case *hir.Return:
		if v.Value == nil {
			return &Return{exprBase{types.VoidT}, nil}, nil
		}
		val, err := lc.lowerExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &Return{exprBase{val.Ty()}, val}, nil
	case *hir.LVarAssign:
		val, err := lc.lowerExpr(v.Value)
		if err != nil {
			return nil, err
		}
		idx, existed := lc.lvarIndexFor(v.Name)
		if existed {
			return &LVarSet{exprBase{v.Ty()}, idx, v.Name, val}, nil
		}
		return &LVarDecl{exprBase{v.Ty()}, idx, v.Name, val}, nil
	case *hir.IVarAssign:
		val, err := lc.lowerExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &IVarSet{exprBase{v.Ty()}, &ArgRef{exprBase{types.Object}, 0}, v.Index, v.Name, val}, nil
	case *hir.ConstAssign:
		val, err := lc.lowerExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &ConstSet{exprBase{v.Ty()}, v.Fullname, val}, nil
	case *hir.MethodCall:
		return lc.lowerMethodCall(v)
	case *hir.ModuleMethodCall:
		return lc.lowerModuleMethodCall(v)
	case *hir.LambdaInvocation:
		return lc.lowerLambdaInvocation(v)
	case *hir.LambdaExpr:
		return lc.lowerLambda(v)
	case *hir.ClassLiteral:
		return &CreateTypeObject{exprBase{v.Ty()}, v.Fullname}, nil
	case *hir.BitCast:
		val, err := lc.lowerExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &Cast{exprBase{v.Ty()}, Upcast, val}, nil
	case *hir.ParenBlock:
		return lc.lowerSeq(v.Exprs)
	case *hir.Not:
		operand, err := lc.lowerExpr(v.Operand)
		if err != nil {
			return nil, err
		}
		boolTy := types.Type(&types.ClassType{Base: "Bool"})
		return &If{exprBase{boolTy}, operand, &PseudoVarRef{exprBase{boolTy}, False}, &PseudoVarRef{exprBase{boolTy}, True}}, nil
	case *hir.And:
		l, err := lc.lowerExpr(v.LHS)
		if err != nil {
			return nil, err
		}
		r, err := lc.lowerExpr(v.RHS)
		if err != nil {
			return nil, err
		}
		boolTy := types.Type(&types.ClassType{Base: "Bool"})
		return &If{exprBase{boolTy}, l, r, &PseudoVarRef{exprBase{boolTy}, False}}, nil
	case *hir.Or:
		l, err := lc.lowerExpr(v.LHS)
		if err != nil {
			return nil, err
		}
		r, err := lc.lowerExpr(v.RHS)
		if err != nil {
			return nil, err
		}
		boolTy := types.Type(&types.ClassType{Base: "Bool"})
		return &If{exprBase{boolTy}, l, &PseudoVarRef{exprBase{boolTy}, True}, r}, nil
	default:
		return nil, fmt.Errorf("mir lowering: unhandled hir node %T", e)
	}
}

func (lc *lowerCtx) lowerMethodCall(v *hir.MethodCall) (Expr, error) {
	recv, err := lc.lowerExpr(v.Receiver)
	if err != nil {
		return nil, err
	}
	args := make([]Expr, 0, len(v.Args)+2)
	args = append(args, recv)
	rest, err := lc.lowerExprs(v.Args)
	if err != nil {
		return nil, err
	}
	args = append(args, rest...)
	if v.Block != nil {
		blockVal, err := lc.lowerLambda(v.Block)
		if err != nil {
			return nil, err
		}
		args = append(args, blockVal)
	}
	callee := &VTableRef{exprBase{types.Object}, recv, v.FoundIn, v.MethodFullname, -1}
	return &FunCall{exprBase{v.Ty()}, callee, args}, nil
}

func (lc *lowerCtx) lowerModuleMethodCall(v *hir.ModuleMethodCall) (Expr, error) {
	recv, err := lc.lowerExpr(v.Receiver)
	if err != nil {
		return nil, err
	}
	args := make([]Expr, 0, len(v.Args)+1)
	args = append(args, recv)
	rest, err := lc.lowerExprs(v.Args)
	if err != nil {
		return nil, err
	}
	args = append(args, rest...)
	callee := &WTableRef{exprBase{types.Object}, recv, v.Module, v.MethodName, v.WTableIdx}
	return &FunCall{exprBase{v.Ty()}, callee, args}, nil
}

func (lc *lowerCtx) lowerLambdaInvocation(v *hir.LambdaInvocation) (Expr, error) {
	lam, err := lc.lowerExpr(v.Lambda)
	if err != nil {
		return nil, err
	}
	args := make([]Expr, 0, len(v.Args)+1)
	args = append(args, lam)
	rest, err := lc.lowerExprs(v.Args)
	if err != nil {
		return nil, err
	}
	args = append(args, rest...)
	funcPtr := &IVarRef{exprBase{types.Object}, lam, 0, "func"}
	return &FunCall{exprBase{v.Ty()}, funcPtr, args}, nil
}

// lowerLambda synthesizes a new top-level Func for a lambda/do-block body
// and returns the closure-object-creation expression the enclosing body
// uses in its place (spec.md §4.2's finalized capture list, carried here
// via hir.LambdaExpr.CaptureNames to resolve forwarded captures by name).
func (lc *lowerCtx) lowerLambda(v *hir.LambdaExpr) (Expr, error) {
	name := fmt.Sprintf("%s$lambda%d", lc.namePrefix, *lc.lambdaSeq)
	*lc.lambdaSeq++

	childParams := map[string]int{}
	for i, pname := range v.Params {
		childParams[pname] = i + 1
	}
	captureIdx := map[string]int{}
	captureVals := make([]Expr, len(v.Captures))
	for i, cap := range v.Captures {
		capName := ""
		if i < len(v.CaptureNames) {
			capName = v.CaptureNames[i]
		}
		captureIdx[capName] = i + 1 // slot 0 reserved for @func.
		val, err := lc.captureValue(cap, capName)
		if err != nil {
			return nil, err
		}
		captureVals[i] = val
	}

	child := &lowerCtx{
		prog:       lc.prog,
		params:     childParams,
		lvars:      map[string]int{},
		captures:   captureIdx,
		namePrefix: name,
		lambdaSeq:  lc.lambdaSeq,
	}
	body, err := child.lowerSeq(v.Body)
	if err != nil {
		return nil, err
	}
	funTy, _ := v.Ty().(*types.FunType)
	ret := types.Type(types.VoidT)
	asyncness := types.Unknown
	if funTy != nil {
		ret = funTy.Ret
		asyncness = funTy.Asyncness
	}
	selfTy := types.Type(&types.ClassType{Base: name})
	fullParams := append([]types.Type{selfTy}, v.ParamTys...)
	lc.prog.Funcs = append(lc.prog.Funcs, &Func{
		Fullname:     name,
		Params:       fullParams,
		Ret:          ret,
		Asyncness:    asyncness,
		LVarCount:    child.next,
		Body:         body,
		IsLambdaBody: true,
	})

	ivars := make([]Expr, 0, len(captureVals)+1)
	ivars = append(ivars, &FuncRef{exprBase{types.Object}, name, asyncness})
	ivars = append(ivars, captureVals...)
	return &CreateObject{exprBase{v.Ty()}, name, ivars}, nil
}

func (lc *lowerCtx) captureValue(c hir.Capture, name string) (Expr, error) {
	switch d := c.Detail.(type) {
	case hir.CapLVar:
		return lc.refByName(d.Name, c.Ty), nil
	case hir.CapFnArg:
		return &ArgRef{exprBase{c.Ty}, d.Idx + 1}, nil
	case hir.CapFwd:
		return &IVarRef{exprBase{c.Ty}, &ArgRef{exprBase{types.Object}, 0}, d.OuterIdx + 1, name}, nil
	default:
		return nil, fmt.Errorf("mir lowering: unknown capture detail %T", c.Detail)
	}
}
