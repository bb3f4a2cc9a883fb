package llvm

import (
	"shiika/internal/runtime"

	"tinygo.org/x/go-llvm"
)

// declareExterns emits one llvm.AddFunction per symbol in internal/runtime's
// contract, mapping each abstract Kind to its concrete LLVM type. This is
// C10's sole consumer of package runtime: the runtime library itself is an
// external collaborator (spec.md §6), never implemented here.
func (g *gen) declareExterns() {
	for _, sym := range runtime.Symbols {
		params := make([]llvm.Type, len(sym.Params))
		for i, k := range sym.Params {
			params[i] = g.llvmKind(k)
		}
		ft := llvm.FunctionType(g.llvmKind(sym.Ret), params, false)
		fn := llvm.AddFunction(g.mod, sym.Name, ft)
		g.externs.Set(sym.Name, fn)
	}
}

func (g *gen) llvmKind(k runtime.Kind) llvm.Type {
	switch k {
	case runtime.I64:
		return g.i64Ty
	case runtime.Void:
		return g.ctx.VoidType()
	default:
		return g.ptrTy
	}
}

// extern looks up an already-declared runtime symbol by name. Every name
// used below is one of runtime.Symbols' own Name fields, so a miss here
// means the runtime contract and the codegen that calls it have drifted
// apart — a defect this package's own tests guard against.
func (g *gen) extern(name string) llvm.Value {
	v, ok := g.externs.Get(name)
	if !ok {
		panic("codegen: unknown runtime extern " + name)
	}
	return v.(llvm.Value)
}
