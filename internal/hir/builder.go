package hir

import (
	"fmt"

	"shiika/ast"
	"shiika/internal/cerr"
	"shiika/internal/classdict"
	"shiika/internal/hir/patmatch"
	"shiika/internal/types"
)

// patmatchBuilder implements patmatch.Builder using real HIR nodes, so
// the lowered nested-if chain of C5 is indistinguishable from hand-written
// HIR the rest of the pipeline (C6 onward) already knows how to lower.
type patmatchBuilder struct{ m *Maker }

func (pb *patmatchBuilder) unwrap(e patmatch.Expr) Expr {
	return e.(hirExprAdapter).e
}

// ClassTest builds `target.class == resolvedClass`.
func (pb *patmatchBuilder) ClassTest(target patmatch.Expr, resolvedClass string) patmatch.Expr {
	t := pb.unwrap(target)
	boolTy := types.Type(&types.ClassType{Base: "Bool"})
	classCall := &MethodCall{exprBase{(&types.ClassType{Base: resolvedClass}).AsMeta()}, t, "class", t.Ty().Fullname(), nil, nil}
	classLit := &ClassLiteral{exprBase{(&types.ClassType{Base: resolvedClass}).AsMeta()}, resolvedClass}
	return hirExprAdapter{&MethodCall{exprBase{boolTy}, classCall, "==", resolvedClass, []Expr{classLit}, nil}}
}

// LiteralTest builds `target == literal`.
func (pb *patmatchBuilder) LiteralTest(target, literal patmatch.Expr) patmatch.Expr {
	t := pb.unwrap(target)
	lit := pb.unwrap(literal)
	boolTy := types.Type(&types.ClassType{Base: "Bool"})
	return hirExprAdapter{&MethodCall{exprBase{boolTy}, t, "==", t.Ty().Fullname(), []Expr{lit}, nil}}
}

// Project builds `target.<field>()`.
func (pb *patmatchBuilder) Project(target patmatch.Expr, field patmatch.Field) patmatch.Expr {
	t := pb.unwrap(target)
	ty, _ := field.Ty.(types.Type)
	if ty == nil {
		ty = types.Object
	}
	return hirExprAdapter{&MethodCall{exprBase{ty}, t, field.Name, t.Ty().Fullname(), nil, nil}}
}

func (pb *patmatchBuilder) BindAssign(name string, value patmatch.Expr) patmatch.Expr {
	v := pb.unwrap(value)
	pb.m.declareLVar(name, v.Ty())
	return hirExprAdapter{&LVarAssign{exprBase{v.Ty()}, name, v}}
}

func (pb *patmatchBuilder) ResolveExtractor(qualified string, tyArgs []interface{}, targetTy interface{}) (string, []patmatch.Field, error) {
	ci := pb.m.dict.Get(qualified)
	if ci == nil {
		return "", nil, cerr.NameErr(cerr.Loc{}, pb.m.scopeName(), "unknown pattern class %q", qualified)
	}
	specialized := types.Type(&types.ClassType{Base: qualified})
	if len(tyArgs) > 0 {
		args := make([]types.Type, len(tyArgs))
		for i, a := range tyArgs {
			if ref, ok := a.(ast.TypeRef); ok {
				args[i] = pb.m.resolveTypeRef(ref)
			} else {
				args[i] = types.Object
			}
		}
		specialized = (&types.ClassType{Base: qualified}).Specialize(args)
	}
	rt, _ := targetTy.(types.Type)
	if rt != nil && !pb.m.dict.Conforms(specialized, rt) {
		return "", nil, cerr.TypeErr(cerr.Loc{}, pb.m.scopeName(),
			"pattern class %s does not conform to matched type %s", specialized, rt)
	}
	var specArgs []types.Type
	if ct, ok := specialized.(*types.ClassType); ok {
		specArgs = ct.TyArgs
	}
	fields := make([]patmatch.Field, 0, len(ci.MethodOrder))
	if initSig, ok := ci.Methods["initialize"]; ok {
		for i, pty := range initSig.Params {
			name := fmt.Sprintf("field%d", i)
			fields = append(fields, patmatch.Field{Name: name, Ty: classdict.SubstituteType(pty, specArgs)})
		}
	}
	return qualified, fields, nil
}

func (pb *patmatchBuilder) If(cond patmatch.Expr, then, els []patmatch.Expr, resultTy interface{}) patmatch.Expr {
	ty, _ := resultTy.(types.Type)
	if ty == nil {
		ty = types.VoidT
	}
	return hirExprAdapter{&If{exprBase{ty}, pb.unwrap(cond), unwrapAll(then), unwrapAll(els), nil, nil}}
}

func (pb *patmatchBuilder) Panic(msg string) patmatch.Expr {
	classCall := &ClassLiteral{exprBase{(&types.ClassType{Base: "Kernel"}).AsMeta()}, "Kernel"}
	call := &MethodCall{exprBase{types.NeverT}, classCall, "panic", "Kernel", []Expr{
		&StringLit{exprBase{&types.ClassType{Base: "String"}}, pb.m.ctx.InternString(msg)},
	}, nil}
	return hirExprAdapter{call}
}

func (pb *patmatchBuilder) Seq(exprs []patmatch.Expr, ty interface{}) patmatch.Expr {
	t, _ := ty.(types.Type)
	if t == nil {
		t = types.VoidT
	}
	return hirExprAdapter{&ParenBlock{exprBase{t}, unwrapAll(exprs)}}
}

func unwrapAll(es []patmatch.Expr) []Expr {
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = e.(hirExprAdapter).e
	}
	return out
}

var _ patmatch.Builder = (*patmatchBuilder)(nil)
