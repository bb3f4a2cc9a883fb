// Package infer implements C4: three-phase method-call type inference for
// generic calls, including calls that take a block argument. It is
// deliberately decoupled from internal/hir's concrete Expr/Type so it can
// sit ahead of C3 in the dependency order spec.md §2 describes
// (C1 -> C2 -> {C4, C5} -> C3): callers hand it types.Type values and a
// small ClassDict-shaped interface, never HIR nodes.
package infer

import (
	"fmt"

	"shiika/internal/types"
)

// ClassDict is the subset of classdict.Dict that inference needs.
type ClassDict interface {
	Conforms(a, b types.Type) bool
}

// Unifier solves a set of unknowns (types.TypeVar) against concrete types
// via elementwise unification of matching type constructors, with an
// occurs check and the "Never unifies with anything on the flows-to side
// only" rule of spec.md §4.2.
type Unifier struct {
	subst map[int]types.Type
	next  int
}

func NewUnifier() *Unifier { return &Unifier{subst: map[int]types.Type{}} }

// Fresh introduces a new unknown, used to instantiate a method's type
// parameters in Phase 1.
func (u *Unifier) Fresh(name string) types.Type {
	idx := u.next
	u.next++
	return &types.TypeVar{Index: idx, Name: fmt.Sprintf("%s'%d", name, idx)}
}

func (u *Unifier) resolve(t types.Type) types.Type {
	uk, ok := t.(*types.TypeVar)
	if !ok {
		return t
	}
	if sub, ok := u.subst[uk.Index]; ok {
		return u.resolve(sub)
	}
	return t
}

// Unify unifies a (possibly containing unknowns) against b (the concrete,
// caller-supplied side). b flowing Never into a is always accepted.
func (u *Unifier) Unify(a, b types.Type) error {
	a = u.resolve(a)
	b = u.resolve(b)
	if types.IsNever(b) {
		return nil
	}
	if uk, ok := a.(*types.TypeVar); ok {
		if other, ok2 := b.(*types.TypeVar); ok2 && other.Index == uk.Index {
			return nil
		}
		if occurs(uk.Index, b) {
			return fmt.Errorf("occurs check failed: %s occurs in %s", uk, b)
		}
		u.subst[uk.Index] = b
		return nil
	}
	if uk, ok := b.(*types.TypeVar); ok {
		if occurs(uk.Index, a) {
			return fmt.Errorf("occurs check failed: %s occurs in %s", uk, a)
		}
		u.subst[uk.Index] = a
		return nil
	}
	ac, aok := a.(*types.ClassType)
	bc, bok := b.(*types.ClassType)
	if aok && bok {
		if ac.Base != bc.Base || len(ac.TyArgs) != len(bc.TyArgs) {
			return fmt.Errorf("cannot unify %s with %s", a, b)
		}
		for i := range ac.TyArgs {
			if err := u.Unify(ac.TyArgs[i], bc.TyArgs[i]); err != nil {
				return err
			}
		}
		return nil
	}
	af, aok := a.(*types.FunType)
	bf, bok := b.(*types.FunType)
	if aok && bok {
		if len(af.Params) != len(bf.Params) {
			return fmt.Errorf("cannot unify function arities")
		}
		for i := range af.Params {
			if err := u.Unify(af.Params[i], bf.Params[i]); err != nil {
				return err
			}
		}
		return u.Unify(af.Ret, bf.Ret)
	}
	return nil
}

func occurs(id int, t types.Type) bool {
	switch v := t.(type) {
	case *types.TypeVar:
		return v.Index == id
	case *types.ClassType:
		for _, a := range v.TyArgs {
			if occurs(id, a) {
				return true
			}
		}
		return false
	case *types.FunType:
		for _, p := range v.Params {
			if occurs(id, p) {
				return true
			}
		}
		return occurs(id, v.Ret)
	default:
		return false
	}
}

// Solve returns the fully-resolved form of t, substituting every solved
// unknown. Any unknown left unsolved resolves to Object, matching an
// unconstrained generic parameter's implicit upper bound.
func (u *Unifier) Solve(t types.Type) types.Type {
	t = u.resolve(t)
	switch v := t.(type) {
	case *types.TypeVar:
		return types.Object
	case *types.ClassType:
		if len(v.TyArgs) == 0 {
			return v
		}
		args := make([]types.Type, len(v.TyArgs))
		for i, a := range v.TyArgs {
			args[i] = u.Solve(a)
		}
		return &types.ClassType{Base: v.Base, TyArgs: args, IsMeta: v.IsMeta}
	case *types.FunType:
		params := make([]types.Type, len(v.Params))
		for i, p := range v.Params {
			params[i] = u.Solve(p)
		}
		return &types.FunType{Params: params, Ret: u.Solve(v.Ret), Asyncness: v.Asyncness}
	default:
		return t
	}
}

// MethodShape is the input to Infer: a method's declared (possibly
// generic) parameter and return types, plus an optional block parameter
// template.
type MethodShape struct {
	TyParamCount int // number of fresh unknowns to instantiate in Phase 1.
	Params       []types.Type
	Ret          types.Type
	BlockParams  []types.Type // nil if the method takes no block.
	BlockRet     types.Type   // nil if the method takes no block.
}

// Result is the output of a fully solved call.
type Result struct {
	Params      []types.Type
	Ret         types.Type
	BlockParams []types.Type
}

// Infer runs the three phases of spec.md §4.2 against one call site.
// argTys are the non-block argument types already typed by the caller.
// When shape has block parameters, typeBlockBody (if non-nil) is invoked
// with the solved block parameter types once Phase 2 completes and returns
// the typed return type of the block body, which Phase 3 then unifies
// against shape.BlockRet.
func Infer(shape MethodShape, argTys []types.Type, typeBlockBody func(blockParams []types.Type) (types.Type, error)) (Result, error) {
	if len(shape.Params) != len(argTys) {
		return Result{}, fmt.Errorf("expected %d arguments, got %d", len(shape.Params), len(argTys))
	}
	u := NewUnifier()
	// Phase 1: template already carries the method's unknowns (callers
	// build shape.Params/Ret/BlockParams/BlockRet using Fresh()).
	for i, p := range shape.Params {
		if err := u.Unify(p, argTys[i]); err != nil {
			return Result{}, fmt.Errorf("argument %d: %w", i, err)
		}
	}

	var blockParams []types.Type
	if len(shape.BlockParams) > 0 {
		// Phase 2: block parameter types are now concrete from Phase 1's
		// substitution; report them to the block body typer.
		blockParams = make([]types.Type, len(shape.BlockParams))
		for i, bp := range shape.BlockParams {
			blockParams[i] = u.Solve(bp)
		}
		if typeBlockBody != nil {
			blockRetTy, err := typeBlockBody(blockParams)
			if err != nil {
				return Result{}, err
			}
			// Phase 3: unify the block's actual return type against the
			// template's block return slot.
			if shape.BlockRet != nil {
				if err := u.Unify(shape.BlockRet, blockRetTy); err != nil {
					return Result{}, fmt.Errorf("block return type: %w", err)
				}
			}
		}
	}

	params := make([]types.Type, len(shape.Params))
	for i, p := range shape.Params {
		params[i] = u.Solve(p)
	}
	return Result{
		Params:      params,
		Ret:         u.Solve(shape.Ret),
		BlockParams: blockParams,
	}, nil
}
