package hir

import (
	"shiika/ast"
	"shiika/internal/types"
)

// buildLambda builds a lambda that appears outside of a call's block-arg
// position (an `fn(){}` literal bound to a variable, for instance): its
// parameter types come straight from the declared ast.Param types, since
// there is no call-site unification to solve them.
func (m *Maker) buildLambda(v *ast.Lambda) (Expr, error) {
	paramTys := make([]types.Type, len(v.Params))
	for i, p := range v.Params {
		paramTys[i] = m.resolveTypeRef(p.Type)
	}
	return m.buildLambdaBody(v, paramTys)
}

// buildLambdaWithParamTypes builds a block argument's lambda, preferring
// a declared parameter type where the surface syntax wrote one and
// falling back to the type C4's Phase 2 solved for that slot otherwise
// (spec.md §4.2 Phase 2, "solve block param types").
func (m *Maker) buildLambdaWithParamTypes(v *ast.Lambda, solved []types.Type) (*LambdaExpr, error) {
	paramTys := make([]types.Type, len(v.Params))
	for i, p := range v.Params {
		if p.Type.Base != "" {
			paramTys[i] = m.resolveTypeRef(p.Type)
		} else if i < len(solved) {
			paramTys[i] = solved[i]
		} else {
			paramTys[i] = types.Object
		}
	}
	expr, err := m.buildLambdaBody(v, paramTys)
	if err != nil {
		return nil, err
	}
	return expr, nil
}

// buildLambdaBody pushes a LambdaFrame, declares the lambda's own
// parameters as lvars, builds its body, and finalizes the capture list
// accumulated on the frame by any inner resolveVarRef call (spec.md §3,
// §4.2).
func (m *Maker) buildLambdaBody(v *ast.Lambda, paramTys []types.Type) (*LambdaExpr, error) {
	kind := DoBlock
	if v.Kind == ast.FnLambda {
		kind = FnLambda
	}
	frame := &ctxFrame{
		Kind:   LambdaFrame,
		lvars:  map[string]*lvarEntry{},
		lambda: &lambdaFrameState{CaptureOf: map[string]int{}, Kind: kind},
	}
	paramNames := make([]string, len(v.Params))
	for i, p := range v.Params {
		paramNames[i] = p.Name
		frame.lvars[p.Name] = &lvarEntry{Name: p.Name, Ty: paramTys[i]}
	}
	m.cs.push(frame)
	body, err := m.buildExprs(v.Body)
	m.cs.pop()
	if err != nil {
		return nil, err
	}

	retTy := types.Type(types.VoidT)
	if len(body) > 0 {
		retTy = body[len(body)-1].Ty()
	}
	asyncness := types.Unknown
	if kind == DoBlock {
		// A do-block's own asyncness is decided by C7's worklist, not here;
		// Unknown is its starting state (spec.md §5).
		asyncness = types.Unknown
	}

	names := make([]string, len(frame.lambda.Captures))
	for name, idx := range frame.lambda.CaptureOf {
		names[idx] = name
	}

	return &LambdaExpr{
		exprBase:     exprBase{&types.FunType{Params: paramTys, Ret: retTy, Asyncness: asyncness}},
		Kind:         kind,
		Params:       paramNames,
		ParamTys:     paramTys,
		Body:         body,
		Captures:     frame.lambda.Captures,
		CaptureNames: names,
	}, nil
}
