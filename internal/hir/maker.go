package hir

import (
	"fmt"

	"shiika/ast"
	"shiika/internal/cerr"
	"shiika/internal/classdict"
	"shiika/internal/hir/infer"
	"shiika/internal/hir/patmatch"
	"shiika/internal/types"
)

// Maker builds a typed Program from an ast.Program in a single traversal
// (spec.md §3, "Lifecycle"), maintaining the context stack of spec.md
// §4.2.
type Maker struct {
	dict *classdict.Dict
	ctx  *Context
	cs   ctxStack
}

// NewMaker returns a Maker backed by the already-indexed class dictionary
// dict (C2 must run before C3, per spec.md §2's dependency order).
func NewMaker(dict *classdict.Dict) *Maker {
	return &Maker{dict: dict, ctx: NewContext()}
}

// BuildProgram is the single AST->HIR traversal.
func (m *Maker) BuildProgram(prog *ast.Program) (*Program, error) {
	out := &Program{}
	m.cs.push(&ctxFrame{Kind: Toplevel, lvars: map[string]*lvarEntry{}, consts: map[string]types.Type{}})
	defer m.cs.pop()

	for _, item := range prog.Items {
		switch def := item.(type) {
		case *ast.ClassDef:
			methods, err := m.buildClassMethods(def)
			if err != nil {
				return nil, err
			}
			out.Methods = append(out.Methods, methods...)
		case *ast.ModuleDef:
			methods, err := m.buildModuleMethods(def)
			if err != nil {
				return nil, err
			}
			out.Methods = append(out.Methods, methods...)
		case *ast.MethodDef:
			meth, err := m.buildMethod("", def)
			if err != nil {
				return nil, err
			}
			out.Methods = append(out.Methods, meth)
		}
	}
	out.Strings = m.ctx.Strings()
	return out, nil
}

func (m *Maker) buildClassMethods(def *ast.ClassDef) ([]*Method, error) {
	m.cs.push(&ctxFrame{Kind: ClassFrame, lvars: map[string]*lvarEntry{}, consts: map[string]types.Type{}})
	defer m.cs.pop()

	var out []*Method
	for _, item := range def.Defs {
		if md, ok := item.(*ast.MethodDef); ok {
			meth, err := m.buildMethod(def.Name, md)
			if err != nil {
				return nil, err
			}
			out = append(out, meth)
		}
	}
	return out, nil
}

func (m *Maker) buildModuleMethods(def *ast.ModuleDef) ([]*Method, error) {
	m.cs.push(&ctxFrame{Kind: ClassFrame, lvars: map[string]*lvarEntry{}, consts: map[string]types.Type{}})
	defer m.cs.pop()

	var out []*Method
	for _, item := range def.Defs {
		if md, ok := item.(*ast.MethodDef); ok {
			meth, err := m.buildMethod(def.Name, md)
			if err != nil {
				return nil, err
			}
			out = append(out, meth)
		}
	}
	return out, nil
}

func (m *Maker) buildMethod(owner string, md *ast.MethodDef) (*Method, error) {
	asyncness := types.Unknown
	if md.IsAsync {
		asyncness = types.Async
	}
	m.cs.push(&ctxFrame{
		Kind:  MethodFrame,
		lvars: map[string]*lvarEntry{},
		method: &methodFrameState{
			OwnerClass: owner,
			IsInit:     md.Name == "initialize",
			Asyncness:  asyncness,
		},
	})
	defer m.cs.pop()

	paramTys := make([]types.Type, len(md.Params))
	paramNames := make([]string, len(md.Params))
	for i, p := range md.Params {
		paramNames[i] = p.Name
		paramTys[i] = m.resolveTypeRef(p.Type)
		m.declareLVar(p.Name, paramTys[i])
	}

	body, err := m.buildExprs(md.Body)
	if err != nil {
		return nil, err
	}
	retTy := types.Type(types.Object)
	if md.RetType != nil {
		retTy = m.resolveTypeRef(*md.RetType)
	} else if len(body) > 0 {
		retTy = body[len(body)-1].Ty()
	}

	fullname := md.Name
	if owner != "" {
		fullname = owner + "#" + md.Name
	}
	return &Method{
		Fullname:  fullname,
		Params:    paramNames,
		ParamTys:  paramTys,
		RetTy:     retTy,
		Body:      body,
		Asyncness: asyncness,
	}, nil
}

func (m *Maker) resolveTypeRef(t ast.TypeRef) types.Type {
	args := make([]types.Type, len(t.Args))
	for i, a := range t.Args {
		args[i] = m.resolveTypeRef(a)
	}
	switch t.Base {
	case "Never":
		return types.NeverT
	case "Void":
		return types.VoidT
	default:
		return &types.ClassType{Base: t.Base, TyArgs: args, IsMeta: t.IsMeta}
	}
}

func (m *Maker) buildExprs(exprs []ast.Expr) ([]Expr, error) {
	out := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		h, err := m.buildExpr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (m *Maker) buildExpr(e ast.Expr) (Expr, error) {
	switch v := e.(type) {
	case *ast.IntLit:
		return &IntLit{exprBase{&types.ClassType{Base: "Int"}}, v.Value}, nil
	case *ast.FloatLit:
		return &FloatLit{exprBase{&types.ClassType{Base: "Float"}}, v.Value}, nil
	case *ast.BoolLit:
		return &BoolLit{exprBase{&types.ClassType{Base: "Bool"}}, v.Value}, nil
	case *ast.StringLit:
		idx := m.ctx.InternString(v.Value)
		return &StringLit{exprBase{&types.ClassType{Base: "String"}}, idx}, nil
	case *ast.SelfExpr:
		return &SelfExpr{exprBase{m.selfType()}}, nil
	case *ast.VarRef:
		return m.resolveVarRef(v)
	case *ast.IVarRef:
		return m.resolveIVarRef(v)
	case *ast.ConstRef:
		ty, ok := m.lookupConst(v.Fullname)
		if !ok {
			return nil, cerr.NameErr(v.Loc, m.scopeName(), "unresolved constant %q", v.Fullname)
		}
		return &ConstRef{exprBase{ty}, v.Fullname}, nil
	case *ast.Assign:
		return m.buildAssign(v)
	case *ast.If:
		return m.buildIf(v)
	case *ast.While:
		return m.buildWhile(v)
	case *ast.Break:
		if v.FromBlock {
			return &BreakFromBlock{exprBase{types.VoidT}}, nil
		}
		return &BreakFromWhile{exprBase{types.VoidT}}, nil
	case *ast.Return:
		return m.buildReturn(v)
	case *ast.MethodCall:
		return m.buildMethodCall(v)
	case *ast.Lambda:
		return m.buildLambda(v)
	case *ast.ClassLit:
		return &ClassLiteral{exprBase{(&types.ClassType{Base: v.Fullname}).AsMeta()}, v.Fullname}, nil
	case *ast.Match:
		return m.buildMatch(v)
	case *ast.LogicalNot:
		operand, err := m.buildExpr(v.Operand)
		if err != nil {
			return nil, err
		}
		return &Not{exprBase{&types.ClassType{Base: "Bool"}}, operand}, nil
	case *ast.LogicalAnd:
		l, err := m.buildExpr(v.LHS)
		if err != nil {
			return nil, err
		}
		r, err := m.buildExpr(v.RHS)
		if err != nil {
			return nil, err
		}
		return &And{exprBase{&types.ClassType{Base: "Bool"}}, l, r}, nil
	case *ast.LogicalOr:
		l, err := m.buildExpr(v.LHS)
		if err != nil {
			return nil, err
		}
		r, err := m.buildExpr(v.RHS)
		if err != nil {
			return nil, err
		}
		return &Or{exprBase{&types.ClassType{Base: "Bool"}}, l, r}, nil
	default:
		return nil, cerr.Bug(e.Location(), m.scopeName(), "unhandled AST node %T", e)
	}
}

func (m *Maker) selfType() types.Type {
	var owner string
	m.cs.eachFrame(func(f *ctxFrame) bool {
		if f.method != nil {
			owner = f.method.OwnerClass
			return false
		}
		return true
	})
	if owner == "" {
		return types.Object
	}
	return &types.ClassType{Base: owner}
}

func (m *Maker) scopeName() string {
	var meth, cls string
	m.cs.eachFrame(func(f *ctxFrame) bool {
		if f.method != nil && meth == "" {
			meth = f.method.OwnerClass
		}
		return true
	})
	if cls != "" {
		return cls
	}
	if meth != "" {
		return fmt.Sprintf("method on %s", meth)
	}
	return "toplevel"
}

func (m *Maker) lookupConst(fullname string) (types.Type, bool) {
	var found types.Type
	var ok bool
	m.cs.eachFrame(func(f *ctxFrame) bool {
		if f.consts == nil {
			return true
		}
		if ty, present := f.consts[fullname]; present {
			found, ok = ty, true
			return false
		}
		return true
	})
	return found, ok
}

func (m *Maker) declareLVar(name string, ty types.Type) {
	var target *ctxFrame
	m.cs.eachFrame(func(f *ctxFrame) bool {
		if f.Kind.opensLVarScope() {
			target = f
			return false
		}
		return true
	})
	if target == nil {
		return
	}
	target.lvars[name] = &lvarEntry{Name: name, Ty: ty}
}

func (m *Maker) buildIf(v *ast.If) (Expr, error) {
	cond, err := m.buildExpr(v.Cond)
	if err != nil {
		return nil, err
	}
	then, thenLVars, err := m.buildBranch(v.Then)
	if err != nil {
		return nil, err
	}
	els, elseLVars, err := m.buildBranch(v.Else)
	if err != nil {
		return nil, err
	}
	ty := types.Type(types.VoidT)
	if len(then) > 0 && len(els) > 0 {
		if lca, ok := m.dict.NearestCommonAncestor(then[len(then)-1].Ty(), els[len(els)-1].Ty()); ok {
			ty = lca
		}
	} else if len(then) > 0 {
		ty = then[len(then)-1].Ty()
	}
	return &If{exprBase{ty}, cond, then, els, thenLVars, elseLVars}, nil
}

// buildBranch builds a branch's expressions without pushing a frame: an
// if-branch is not among C3's scope-opening frames (Toplevel/Class/
// Method/Lambda/MatchClause), so it declares into the enclosing scope, and
// only the lvars newly added to the top frame's scope during the branch
// are reported for codegen's allocation bookkeeping.
func (m *Maker) buildBranch(exprs []ast.Expr) ([]Expr, []string, error) {
	top := m.cs.top()
	before := map[string]bool{}
	if top != nil {
		for name := range collectLVarScope(top) {
			before[name] = true
		}
	}
	out, err := m.buildExprs(exprs)
	if err != nil {
		return nil, nil, err
	}
	var newLVars []string
	if top != nil {
		for name := range collectLVarScope(top) {
			if !before[name] {
				newLVars = append(newLVars, name)
			}
		}
	}
	return out, newLVars, nil
}

func collectLVarScope(f *ctxFrame) map[string]*lvarEntry {
	if f.lvars == nil {
		return map[string]*lvarEntry{}
	}
	return f.lvars
}

func (m *Maker) buildWhile(v *ast.While) (Expr, error) {
	cond, err := m.buildExpr(v.Cond)
	if err != nil {
		return nil, err
	}
	// While does not open a new lvar scope (spec.md §4.2): lvars assigned
	// in the body stay visible to the enclosing scope afterward. The
	// WhileFrame pushed here carries no lvars, so declareLVar walks past
	// it; it exists only so BreakFromWhile / asyncness checks can detect
	// "inside a while".
	m.cs.push(&ctxFrame{Kind: WhileFrame})
	defer m.cs.pop()
	body, err := m.buildExprs(v.Body)
	if err != nil {
		return nil, err
	}
	return &While{exprBase{types.VoidT}, cond, body, nil}, nil
}

func (m *Maker) buildReturn(v *ast.Return) (Expr, error) {
	if v.Value == nil {
		return &Return{exprBase{types.VoidT}, nil}, nil
	}
	val, err := m.buildExpr(v.Value)
	if err != nil {
		return nil, err
	}
	return &Return{exprBase{val.Ty()}, val}, nil
}

func (m *Maker) buildAssign(v *ast.Assign) (Expr, error) {
	switch t := v.Target.(type) {
	case *ast.VarRef:
		val, err := m.buildExpr(v.Value)
		if err != nil {
			return nil, err
		}
		m.declareLVar(t.Name, val.Ty())
		return &LVarAssign{exprBase{val.Ty()}, t.Name, val}, nil
	case *ast.IVarRef:
		return m.buildIVarAssign(t, v)
	case *ast.ConstRef:
		val, err := m.buildExpr(v.Value)
		if err != nil {
			return nil, err
		}
		var top *ctxFrame
		m.cs.eachFrame(func(f *ctxFrame) bool {
			if f.Kind.opensConstScope() {
				top = f
				return false
			}
			return true
		})
		if top != nil {
			top.consts[t.Fullname] = val.Ty()
		}
		return &ConstAssign{exprBase{val.Ty()}, t.Fullname, val}, nil
	default:
		return nil, cerr.Bug(v.Loc, m.scopeName(), "unhandled assignment target %T", v.Target)
	}
}

// buildIVarAssign implements spec.md §4.2: inside `initialize`, `@name =
// expr` declares the ivar; elsewhere it requires a prior declaration and
// conformance, and rejects writes to a readonly ivar.
func (m *Maker) buildIVarAssign(t *ast.IVarRef, v *ast.Assign) (Expr, error) {
	val, err := m.buildExpr(v.Value)
	if err != nil {
		return nil, err
	}
	var ms *methodFrameState
	m.cs.eachFrame(func(f *ctxFrame) bool {
		if f.method != nil {
			ms = f.method
			return false
		}
		return true
	})
	owner := ""
	if ms != nil {
		owner = ms.OwnerClass
	}
	ci := m.dict.Get(owner)
	if ci == nil {
		return nil, cerr.Bug(v.Loc, m.scopeName(), "ivar assignment outside a class")
	}
	iv, exists := ci.IVars[t.Name]
	if ms != nil && ms.IsInit {
		if !exists {
			idx := len(ci.IVars)
			iv = classdict.IVar{Index: idx, Type: val.Ty(), Readonly: !v.IsVar}
			ci.IVars[t.Name] = iv
		} else if iv.Type == nil {
			iv.Type = val.Ty()
			ci.IVars[t.Name] = iv
		}
		return &IVarAssign{exprBase{val.Ty()}, t.Name, iv.Index, owner, val}, nil
	}
	if !exists {
		return nil, cerr.NameErr(v.Loc, m.scopeName(), "ivar %q is not declared in %s#initialize", t.Name, owner)
	}
	if iv.Readonly {
		return nil, cerr.TypeErr(v.Loc, m.scopeName(), "ivar %q is readonly", t.Name)
	}
	if iv.Type != nil && !m.dict.Conforms(val.Ty(), iv.Type) {
		return nil, cerr.TypeErr(v.Loc, m.scopeName(), "cannot assign %s to ivar %q of type %s", val.Ty(), t.Name, iv.Type)
	}
	return &IVarAssign{exprBase{val.Ty()}, t.Name, iv.Index, owner, val}, nil
}

func (m *Maker) buildMatch(v *ast.Match) (Expr, error) {
	target, err := m.buildExpr(v.Target)
	if err != nil {
		return nil, err
	}
	clauses := make([]patmatch.Clause, len(v.Clauses))
	for i, c := range v.Clauses {
		// Each clause's body is typed in its own MatchClause scope (spec.md
		// §4.2: MatchClause opens a new lvar scope) so pattern-bound
		// variables don't leak across clauses.
		m.cs.push(&ctxFrame{Kind: MatchClauseFrame, lvars: map[string]*lvarEntry{}})
		pat, err := m.convertPattern(c.Pattern)
		if err != nil {
			m.cs.pop()
			return nil, err
		}
		body, err := m.buildExprsForPatmatch(c.Body)
		m.cs.pop()
		if err != nil {
			return nil, err
		}
		clauses[i] = patmatch.Clause{Pattern: pat, Body: body}
	}
	lowered, ty, err := patmatch.Lower(&patmatchBuilder{m}, patmatchAdapter{m}, hirExprAdapter{target}, clauses)
	if err != nil {
		return nil, err
	}
	return &ParenBlock{exprBase{ty.(types.Type)}, []Expr{lowered.(hirExprAdapter).e}}, nil
}

func (m *Maker) buildExprsForPatmatch(exprs []ast.Expr) ([]patmatch.Expr, error) {
	out := make([]patmatch.Expr, 0, len(exprs))
	for _, e := range exprs {
		h, err := m.buildExpr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, hirExprAdapter{h})
	}
	return out, nil
}

func (m *Maker) convertPattern(p ast.Pattern) (patmatch.Pattern, error) {
	switch v := p.(type) {
	case *ast.WildcardPattern:
		return patmatch.Wildcard{}, nil
	case *ast.VarPattern:
		return patmatch.Var{Name: v.Name}, nil
	case *ast.LiteralPattern:
		lit, err := m.buildExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return patmatch.Literal{Value: hirExprAdapter{lit}}, nil
	case *ast.ExtractorPattern:
		sub := make([]patmatch.Pattern, len(v.Params))
		for i, p2 := range v.Params {
			converted, err := m.convertPattern(p2)
			if err != nil {
				return nil, err
			}
			sub[i] = converted
		}
		tyArgs := make([]interface{}, len(v.TypeArgs))
		for i, a := range v.TypeArgs {
			tyArgs[i] = a
		}
		return patmatch.Extractor{Qualified: v.Qualified, TyArgs: tyArgs, Params: sub}, nil
	default:
		return nil, cerr.Bug(p.Location(), m.scopeName(), "unhandled pattern %T", p)
	}
}

// hirExprAdapter/patmatchAdapter bridge hir.Expr into the patmatch
// package's minimal Expr/Dict interfaces (C5 is deliberately decoupled
// from C3's concrete types so it can be reused from C6 lowering, per
// spec.md §2's dependency order C1->C2->{C4,C5}->C3).
type hirExprAdapter struct{ e Expr }

func (a hirExprAdapter) Type() interface{} { return a.e.Ty() }

type patmatchAdapter struct{ m *Maker }

func (a patmatchAdapter) Conforms(x, y interface{}) bool {
	return a.m.dict.Conforms(x.(types.Type), y.(types.Type))
}

func (a patmatchAdapter) LCA(x, y interface{}) (interface{}, bool) {
	return a.m.dict.NearestCommonAncestor(x.(types.Type), y.(types.Type))
}

func (a patmatchAdapter) IsNever(x interface{}) bool { return types.IsNever(x.(types.Type)) }
func (a patmatchAdapter) IsVoid(x interface{}) bool  { return types.IsVoid(x.(types.Type)) }
func (a patmatchAdapter) VoidTy() interface{}        { return types.VoidT }

func init() {
	// compile-time interface checks for C4's use of these resolvers.
	var _ infer.ClassDict = (*classdict.Dict)(nil)
}
