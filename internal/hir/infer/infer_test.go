package infer

import (
	"errors"
	"testing"

	"shiika/internal/types"
)

func TestUnifySolvesUnknownFromConcreteType(t *testing.T) {
	u := NewUnifier()
	tv := u.Fresh("T")
	if err := u.Unify(tv, &types.ClassType{Base: "Int"}); err != nil {
		t.Fatalf("Unify() error = %v", err)
	}
	solved := u.Solve(tv)
	if solved.Fullname() != "Int" {
		t.Fatalf("Solve(T) = %v, want Int", solved)
	}
}

func TestUnifyNeverAlwaysAccepted(t *testing.T) {
	u := NewUnifier()
	tv := u.Fresh("T")
	if err := u.Unify(tv, types.NeverT); err != nil {
		t.Fatalf("Unify(T, Never) should always succeed, got %v", err)
	}
	// T stays unsolved (Never carries no information), defaults to Object.
	if got := u.Solve(tv); got.Fullname() != "Object" {
		t.Fatalf("Solve(T) after unifying with Never = %v, want Object", got)
	}
}

func TestUnifyOccursCheckRejectsSelfReference(t *testing.T) {
	u := NewUnifier()
	tv := u.Fresh("T")
	wrapped := &types.ClassType{Base: "Array", TyArgs: []types.Type{tv}}
	if err := u.Unify(tv, wrapped); err == nil {
		t.Fatal("Unify() accepted T = Array<T>, an infinite type")
	}
}

func TestUnifyClassTypeMismatchIsError(t *testing.T) {
	u := NewUnifier()
	err := u.Unify(&types.ClassType{Base: "Int"}, &types.ClassType{Base: "String"})
	if err == nil {
		t.Fatal("Unify() accepted Int vs String")
	}
}

func TestUnifyRecursesIntoTypeArguments(t *testing.T) {
	u := NewUnifier()
	tv := u.Fresh("T")
	a := &types.ClassType{Base: "Array", TyArgs: []types.Type{tv}}
	b := &types.ClassType{Base: "Array", TyArgs: []types.Type{&types.ClassType{Base: "String"}}}
	if err := u.Unify(a, b); err != nil {
		t.Fatalf("Unify(Array<T>, Array<String>) error = %v", err)
	}
	if got := u.Solve(tv).Fullname(); got != "String" {
		t.Fatalf("Solve(T) = %q, want String", got)
	}
}

func TestSolveUnsolvedUnknownDefaultsToObject(t *testing.T) {
	u := NewUnifier()
	tv := u.Fresh("T")
	if got := u.Solve(tv).Fullname(); got != "Object" {
		t.Fatalf("Solve(unsolved T) = %q, want Object", got)
	}
}

// TestInferSolvesReturnTypeFromArgument covers Phase 1: the method's
// identity-shaped signature `(T) -> T`, called with an Int argument, must
// resolve Ret to Int. The unknown's identity is carried entirely by its
// Index (types.TypeVar), so reusing the same *types.TypeVar value across
// Params and Ret works even though Infer unifies with its own,
// separately-constructed internal Unifier.
func TestInferSolvesReturnTypeFromArgument(t *testing.T) {
	tv := NewUnifier().Fresh("T")
	shape := MethodShape{Params: []types.Type{tv}, Ret: tv}

	res, err := Infer(shape, []types.Type{&types.ClassType{Base: "Int"}}, nil)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if res.Ret.Fullname() != "Int" {
		t.Fatalf("Ret = %v, want Int", res.Ret)
	}
	if res.Params[0].Fullname() != "Int" {
		t.Fatalf("Params[0] = %v, want Int", res.Params[0])
	}
}

func TestInferRejectsArityMismatch(t *testing.T) {
	shape := MethodShape{Params: []types.Type{types.Object, types.Object}, Ret: types.Object}
	_, err := Infer(shape, []types.Type{types.Object}, nil)
	if err == nil {
		t.Fatal("Infer() accepted a call with the wrong argument count")
	}
}

// TestInferThreadsBlockParamsIntoBlockBodyTyper covers Phase 2: a block
// parameter's type, solved from Phase 1's substitution, must reach the
// caller's block-body typer before Phase 3 runs.
func TestInferThreadsBlockParamsIntoBlockBodyTyper(t *testing.T) {
	u := NewUnifier()
	tv := u.Fresh("T")
	shape := MethodShape{
		Params:      []types.Type{&types.ClassType{Base: "Array", TyArgs: []types.Type{tv}}},
		Ret:         types.VoidT,
		BlockParams: []types.Type{tv},
		BlockRet:    types.VoidT,
	}
	var seenBlockParams []types.Type
	argTys := []types.Type{&types.ClassType{Base: "Array", TyArgs: []types.Type{&types.ClassType{Base: "Int"}}}}
	_, err := Infer(shape, argTys, func(blockParams []types.Type) (types.Type, error) {
		seenBlockParams = blockParams
		return types.VoidT, nil
	})
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if len(seenBlockParams) != 1 || seenBlockParams[0].Fullname() != "Int" {
		t.Fatalf("block body typer saw params %v, want [Int] (solved from Phase 1)", seenBlockParams)
	}
}

// TestInferPhase3RejectsBlockReturnMismatch covers Phase 3: the block
// body's actual return type must unify against the template's BlockRet
// slot, so a mismatched block return is rejected.
func TestInferPhase3RejectsBlockReturnMismatch(t *testing.T) {
	shape := MethodShape{
		Params:      []types.Type{types.Object},
		Ret:         types.VoidT,
		BlockParams: []types.Type{types.Object},
		BlockRet:    &types.ClassType{Base: "Int"},
	}
	_, err := Infer(shape, []types.Type{types.Object}, func([]types.Type) (types.Type, error) {
		return &types.ClassType{Base: "String"}, nil
	})
	if err == nil {
		t.Fatal("Infer() accepted a block body typed String against a BlockRet of Int")
	}
}

func TestInferPropagatesBlockBodyTyperError(t *testing.T) {
	shape := MethodShape{
		Params:      []types.Type{types.Object},
		Ret:         types.VoidT,
		BlockParams: []types.Type{types.Object},
	}
	wantErr := errors.New("block body typing failed")
	_, err := Infer(shape, []types.Type{types.Object}, func([]types.Type) (types.Type, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("Infer() error = %v, want the block body typer's own error propagated", err)
	}
}
