package asyncsplit

import (
	"shiika/internal/mir"
	"shiika/internal/types"
)

// rewriteEnvSlots rewrites every ArgRef/LVarRef/LVarDecl/LVarSet reachable
// from e into the $env-frame form (spec.md §4.5, "Lvar lowering"): slot 0
// holds $cont, slots 1..n hold the original arguments (n = arity including
// self), slots n+1..n+L hold locals (including tempified temporaries) by
// their already-assigned flat index. A read goes through a Recover(T) cast
// of an EnvRef; a write goes through a ToAny cast into an EnvSet.
func rewriteEnvSlots(e mir.Expr, n, totalLVars int) mir.Expr {
	return rewriteOne(e, n)
}

func rewriteOne(e mir.Expr, n int) mir.Expr {
	switch v := e.(type) {
	case *mir.ArgRef:
		return cast(mir.Recover, v.Ty(), envRef(types.Object, v.Index+1))
	case *mir.LVarRef:
		return cast(mir.Recover, v.Ty(), envRef(types.Object, n+1+v.Index))
	case *mir.LVarDecl:
		return envSet(n+1+v.Index, cast(toAnyKind(v.Value.Ty()), types.Object, rewriteOne(v.Value, n)))
	case *mir.LVarSet:
		return envSet(n+1+v.Index, cast(toAnyKind(v.Value.Ty()), types.Object, rewriteOne(v.Value, n)))
	default:
		return mir.MapChildren(e, func(c mir.Expr) mir.Expr { return rewriteOne(c, n) })
	}
}
