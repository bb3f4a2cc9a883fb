package llvm

import (
	"shiika/internal/mir"
	"shiika/internal/types"

	"tinygo.org/x/go-llvm"
)

// objHeaderFields is the two header slots every heap object carries ahead
// of its ivars (spec.md §4.7: "{vtable_ptr, class_obj_ptr, ivar_0, ...}").
const objHeaderFields = 2

// genType maps a MIR term type to the LLVM type used to hold a value of
// that type in an SSA register, a local alloca slot, or a function
// parameter.
//
// MIR has no arithmetic node of its own (spec.md §3's node list has no
// binary-op primitive; "Int#+" and friends are ordinary vtable-dispatched
// method calls), so there is never a point in this pipeline where a
// caller needs a raw machine int or float in a register — every class
// type, including the primitive-looking Int/Float/Bool, is a heap object
// behind a uniform pointer (spec.md §4.7's boxed object model applies
// without exception). genType therefore collapses every class type,
// every TyParamRef (erased, since a generic slot can hold any boxed
// value) and every FunType (a function value is a boxed function
// pointer) onto the one generic pointer type; only Void/Never, which
// never occupy a register at all, get their own LLVM type.
func (g *gen) genType(t types.Type) llvm.Type {
	if types.IsVoid(t) || types.IsNever(t) {
		return g.ctx.VoidType()
	}
	return g.ptrTy
}

// Type-id tags passed as the i64_type_id/i64_expected_type_id argument of
// chiika_env_set/chiika_env_ref (spec.md §6). These only disambiguate the
// cast taxonomy's special-cased kinds (IntToAny/FunToAny/NullToAny) from
// the generic ToAny/Recover path; they never change the LLVM-level
// instruction emitted (see genCast in exprs.go), since every value is
// already pointer-shaped.
const (
	tagObject int64 = iota
	tagInt
	tagFun
	tagNull
)

func tagForCastKind(k mir.CastKind) int64 {
	switch k {
	case mir.IntToAny:
		return tagInt
	case mir.FunToAny:
		return tagFun
	case mir.NullToAny:
		return tagNull
	default:
		return tagObject
	}
}
