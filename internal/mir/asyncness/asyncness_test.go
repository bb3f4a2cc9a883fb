package asyncness

import (
	"testing"

	"shiika/internal/mir"
	"shiika/internal/types"
)

func call(fullname string) *mir.FunCall {
	return &mir.FunCall{Callee: &mir.FuncRef{Fullname: fullname}}
}

// TestInferPropagatesAsyncThroughCallChain covers the core fixed-point
// rule (spec.md §4.4): a function that calls a known-async function is
// itself async, transitively.
func TestInferPropagatesAsyncThroughCallChain(t *testing.T) {
	leaf := &mir.Func{Fullname: "leaf", Asyncness: types.Async, Body: &mir.Nop{}}
	mid := &mir.Func{Fullname: "mid", Asyncness: types.Unknown, Body: &mir.Seq{Exprs: []mir.Expr{call("leaf")}}}
	top := &mir.Func{Fullname: "top", Asyncness: types.Unknown, Body: &mir.Seq{Exprs: []mir.Expr{call("mid")}}}

	prog := &mir.Program{Funcs: []*mir.Func{leaf, mid, top}}
	if err := Infer(prog); err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if mid.Asyncness != types.Async {
		t.Fatalf("mid.Asyncness = %v, want Async", mid.Asyncness)
	}
	if top.Asyncness != types.Async {
		t.Fatalf("top.Asyncness = %v, want Async", top.Asyncness)
	}
}

// TestInferDefaultsUnresolvableToSync covers "after the worklist
// stabilizes, any function with only unresolved dependencies is marked
// sync" — two functions that only call each other, and nothing else, never
// resolve through the worklist and must fall back to Sync.
func TestInferDefaultsUnresolvableToSync(t *testing.T) {
	a := &mir.Func{Fullname: "a", Asyncness: types.Unknown, Body: &mir.Seq{Exprs: []mir.Expr{call("b")}}}
	b := &mir.Func{Fullname: "b", Asyncness: types.Unknown, Body: &mir.Seq{Exprs: []mir.Expr{call("a")}}}

	prog := &mir.Program{Funcs: []*mir.Func{a, b}}
	if err := Infer(prog); err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if a.Asyncness != types.Sync || b.Asyncness != types.Sync {
		t.Fatalf("mutually-unresolvable pair did not default to Sync: a=%v b=%v", a.Asyncness, b.Asyncness)
	}
}

// TestInferIndirectCallIsConservativelyAsync covers "unknown ⇒
// conservatively async" for a callee MIR can't statically resolve
// (WTableRef dispatch).
func TestInferIndirectCallIsConservativelyAsync(t *testing.T) {
	caller := &mir.Func{
		Fullname:  "caller",
		Asyncness: types.Unknown,
		Body: &mir.Seq{Exprs: []mir.Expr{
			&mir.FunCall{Callee: &mir.WTableRef{Module: "Enumerable", MethodName: "each"}},
		}},
	}
	prog := &mir.Program{Funcs: []*mir.Func{caller}}
	if err := Infer(prog); err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if caller.Asyncness != types.Async {
		t.Fatalf("caller.Asyncness = %v, want Async (indirect call)", caller.Asyncness)
	}
}

// TestInferSelfRecursionIgnored covers "call to self ⇒ ignored": a
// directly self-recursive function with no other calls must resolve to
// Sync, not get stuck as a dependency on itself forever.
func TestInferSelfRecursionIgnored(t *testing.T) {
	fn := &mir.Func{Fullname: "fact", Asyncness: types.Unknown, Body: &mir.Seq{Exprs: []mir.Expr{call("fact")}}}
	prog := &mir.Program{Funcs: []*mir.Func{fn}}
	if err := Infer(prog); err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if fn.Asyncness != types.Sync {
		t.Fatalf("fn.Asyncness = %v, want Sync", fn.Asyncness)
	}
}

// TestInferRejectsSyncCallingAsync covers the assertion pass: a function
// explicitly pre-marked Sync that calls a statically-known Async function
// must be rejected, not silently accepted.
func TestInferRejectsSyncCallingAsync(t *testing.T) {
	asyncFn := &mir.Func{Fullname: "asyncFn", Asyncness: types.Async, Body: &mir.Nop{}}
	syncFn := &mir.Func{Fullname: "syncFn", Asyncness: types.Sync, Body: &mir.Seq{Exprs: []mir.Expr{call("asyncFn")}}}

	prog := &mir.Program{Funcs: []*mir.Func{asyncFn, syncFn}}
	if err := Infer(prog); err == nil {
		t.Fatal("Infer() accepted a Sync function calling a statically-known Async function")
	}
}

// TestInferRewritesFuncRefAsyncnessTag covers the rewrite pass: once a
// function's own Asyncness resolves, every FuncRef naming it elsewhere in
// the program must carry the same resolved tag (spec.md §3's "Async
// marker" existing so an indirect call can classify without a lookup).
func TestInferRewritesFuncRefAsyncnessTag(t *testing.T) {
	leaf := &mir.Func{Fullname: "leaf", Asyncness: types.Async, Body: &mir.Nop{}}
	ref := &mir.FuncRef{Fullname: "leaf", Asyncness: types.Unknown}
	holder := &mir.Func{Fullname: "holder", Asyncness: types.Sync, Body: &mir.Seq{Exprs: []mir.Expr{ref}}}

	prog := &mir.Program{Funcs: []*mir.Func{leaf, holder}}
	if err := Infer(prog); err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if ref.Asyncness != types.Async {
		t.Fatalf("ref.Asyncness = %v, want Async after rewrite", ref.Asyncness)
	}
}
