// Package runtime carries no logic: it is the named external symbol table
// of spec.md §6's "Runtime library" contract, consumed by C10 when
// declaring externs. The runtime library itself (GC, allocator, wtable
// storage, env frame stack, task scheduler) is an external collaborator
// this repo never implements (spec.md §1 Non-goals).
package runtime

// Kind is an abstract ABI scalar kind. C10 maps each Kind to its concrete
// LLVM type (Ptr -> i8*, I64 -> i64, Void -> void) when declaring the
// extern; runtime itself stays free of any LLVM dependency since it is
// pure data, not codegen.
type Kind int

const (
	Ptr Kind = iota
	I64
	Void
)

// Symbol is one named external function the generated module may call.
type Symbol struct {
	Name   string
	Params []Kind
	Ret    Kind
}

// Symbols is the exact list named in spec.md §6: GC init, the allocator,
// wtable storage, the `$env` frame-stack protocol, and task spawning.
// Type IDs (the i64_type_id/i64_expected_type_id params) are small
// integers assigned to each primitive and function-type shape by C10; the
// runtime contract only fixes the calling convention, not the assignment.
var Symbols = []Symbol{
	{Name: "GC_init", Ret: Void},
	{Name: "shiika_malloc", Params: []Kind{I64}, Ret: Ptr},
	{Name: "shiika_realloc", Params: []Kind{Ptr, I64}, Ret: Ptr},
	{Name: "shiika_lookup_wtable", Params: []Kind{Ptr, I64, I64}, Ret: Ptr},
	{Name: "shiika_insert_wtable", Params: []Kind{Ptr, I64, Ptr, I64}, Ret: Void},
	{Name: "chiika_env_push_frame", Params: []Kind{Ptr, I64}, Ret: Void},
	{Name: "chiika_env_pop_frame", Params: []Kind{Ptr, I64}, Ret: I64},
	{Name: "chiika_env_set", Params: []Kind{Ptr, I64, I64, I64}, Ret: Void},
	{Name: "chiika_env_ref", Params: []Kind{Ptr, I64, I64}, Ret: I64},
	{Name: "chiika_spawn", Params: []Kind{Ptr}, Ret: Void},
}

// Lookup returns the named symbol's signature.
func Lookup(name string) (Symbol, bool) {
	for _, s := range Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}
