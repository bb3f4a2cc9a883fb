package hir

import (
	"fmt"

	"shiika/ast"
	"shiika/internal/cerr"
	"shiika/internal/hir/infer"
	"shiika/internal/types"
)

// buildMethodCall resolves the receiver and method via the class
// dictionary (C2) and runs the three-phase call-site inference of C4,
// including a block argument's body when one is present (spec.md §4.2).
func (m *Maker) buildMethodCall(v *ast.MethodCall) (Expr, error) {
	var receiver Expr
	var err error
	if v.Receiver == nil {
		receiver = &SelfExpr{exprBase{m.selfType()}}
	} else {
		receiver, err = m.buildExpr(v.Receiver)
		if err != nil {
			return nil, err
		}
	}

	args, err := m.buildExprs(v.Args)
	if err != nil {
		return nil, err
	}
	argTys := make([]types.Type, len(args))
	for i, a := range args {
		argTys[i] = a.Ty()
	}

	sig, foundIn, err := m.dict.LookupMethod(receiver.Ty(), v.Name, v.Loc)
	if err != nil {
		return nil, err
	}

	var receiverTyArgs []types.Type
	if ct, ok := receiver.Ty().(*types.ClassType); ok {
		receiverTyArgs = ct.TyArgs
	}

	// Phase 1 instantiation: one fresh unknown per the method's own type
	// parameters (spec.md §4.2). The unifier used to mint these is
	// throwaway — Infer solves against its own internal one, and identity
	// of an unknown is carried by its id, not by which Unifier minted it.
	tu := infer.NewUnifier()
	methodUnknowns := make([]types.Type, len(sig.TyParams))
	for i, tp := range sig.TyParams {
		methodUnknowns[i] = tu.Fresh(tp.Name)
	}
	subst := func(t types.Type) types.Type {
		return substituteCallType(t, receiverTyArgs, methodUnknowns)
	}

	params := make([]types.Type, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = subst(p)
	}
	shape := infer.MethodShape{
		TyParamCount: len(sig.TyParams),
		Params:       params,
		Ret:          subst(sig.Ret),
	}

	var blockExpr *LambdaExpr
	var typeBlockBody func([]types.Type) (types.Type, error)
	if v.Block != nil {
		blockParamTemplates := make([]types.Type, len(v.Block.Params))
		for i := range blockParamTemplates {
			blockParamTemplates[i] = tu.Fresh(fmt.Sprintf("blk%d", i))
		}
		shape.BlockParams = blockParamTemplates
		shape.BlockRet = tu.Fresh("blkret")

		typeBlockBody = func(solvedParams []types.Type) (types.Type, error) {
			lam, err := m.buildLambdaWithParamTypes(v.Block, solvedParams)
			if err != nil {
				return nil, err
			}
			blockExpr = lam
			return lam.Ty().(*types.FunType).Ret, nil
		}
	}

	result, err := infer.Infer(shape, argTys, typeBlockBody)
	if err != nil {
		return nil, cerr.TypeErr(v.Loc, m.scopeName(), "in call to %s: %v", v.Name, err)
	}

	return &MethodCall{
		exprBase{result.Ret},
		receiver,
		sig.Fullname,
		foundIn,
		args,
		blockExpr,
	}, nil
}

// substituteCallType substitutes a class-param TyParamRef using the
// receiver's own type arguments and a method-param TyParamRef using the
// call site's freshly-instantiated unknowns (spec.md §4.1's "substitutes
// ... into the method's type parameters", extended to the receiver's
// class parameters too since classdict.LookupMethod does not substitute
// those on a direct, non-module hit).
func substituteCallType(t types.Type, classArgs, methodArgs []types.Type) types.Type {
	switch tt := t.(type) {
	case *types.TyParamRef:
		switch tt.Kind {
		case types.ClassParam:
			if tt.Index >= 0 && tt.Index < len(classArgs) {
				return classArgs[tt.Index]
			}
		case types.MethodParam:
			if tt.Index >= 0 && tt.Index < len(methodArgs) {
				return methodArgs[tt.Index]
			}
		}
		return tt
	case *types.ClassType:
		if len(tt.TyArgs) == 0 {
			return tt
		}
		args := make([]types.Type, len(tt.TyArgs))
		for i, a := range tt.TyArgs {
			args[i] = substituteCallType(a, classArgs, methodArgs)
		}
		return &types.ClassType{Base: tt.Base, TyArgs: args, IsMeta: tt.IsMeta}
	case *types.FunType:
		params := make([]types.Type, len(tt.Params))
		for i, p := range tt.Params {
			params[i] = substituteCallType(p, classArgs, methodArgs)
		}
		return &types.FunType{Params: params, Ret: substituteCallType(tt.Ret, classArgs, methodArgs), Asyncness: tt.Asyncness}
	default:
		return t
	}
}
