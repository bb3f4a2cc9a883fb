package llvm

import (
	"fmt"

	"shiika/internal/mir"
	"shiika/internal/types"

	"tinygo.org/x/go-llvm"
)

// fg is per-function generation state: the function's own flat lvar
// allocas (mirroring MIR's flat, function-wide local index space, spec.md
// §3) and, for a split chapter function, the bound $env parameter every
// EnvRef/EnvSet/EnvPushFrame/EnvPopFrame node implicitly addresses.
//
// A chapter function is detected by pointer identity: fn.Params[0] ==
// types.EnvT. types.EnvT is a single package-level singleton (internal/
// types/types.go) that C8 never copies, only ever refers to, so this
// identity check is exact — there is no other ClassType literally named
// "$Env" a user program could construct.
type fg struct {
	g      *gen
	fn     llvm.Value
	mir    *mir.Func
	locals []llvm.Value

	hasEnv bool
	envVal llvm.Value
}

func (g *gen) genFuncHeader(fn *mir.Func) (llvm.Value, error) {
	params := make([]llvm.Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = g.genType(p)
	}
	ft := llvm.FunctionType(g.genType(fn.Ret), params, false)
	fnVal := llvm.AddFunction(g.mod, fn.Fullname, ft)
	g.funcs.Set(fn.Fullname, fnVal)
	return fnVal, nil
}

func (g *gen) genFuncBody(fn *mir.Func) error {
	fnAny, ok := g.funcs.Get(fn.Fullname)
	if !ok {
		return fmt.Errorf("codegen: no declared header for function %q", fn.Fullname)
	}
	fnVal := fnAny.(llvm.Value)

	entry := llvm.AddBasicBlock(fnVal, "entry")
	g.b.SetInsertPointAtEnd(entry)

	f := &fg{g: g, fn: fnVal, mir: fn}
	f.locals = make([]llvm.Value, fn.LVarCount)
	for i := range f.locals {
		f.locals[i] = g.b.CreateAlloca(g.ptrTy, fmt.Sprintf("lvar.%d", i))
	}
	if len(fn.Params) > 0 && fn.Params[0] == types.EnvT {
		f.hasEnv = true
		f.envVal = fnVal.Param(0)
	}

	_, terminated, err := f.genExpr(fn.Body)
	if err != nil {
		return err
	}
	if !terminated {
		if types.IsVoid(fn.Ret) || types.IsNever(fn.Ret) {
			g.b.CreateRetVoid()
		} else {
			g.b.CreateRet(llvm.ConstNull(g.ptrTy))
		}
	}
	return nil
}

func (f *fg) env() (llvm.Value, error) {
	if !f.hasEnv {
		name := "<const-initializer>"
		if f.mir != nil {
			name = f.mir.Fullname
		}
		return llvm.Value{}, fmt.Errorf("codegen: %s has no $env parameter to address", name)
	}
	return f.envVal, nil
}
