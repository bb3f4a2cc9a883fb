package asyncsplit

import (
	"testing"

	"shiika/internal/mir"
	"shiika/internal/types"
)

func TestSplitPassesSyncFunctionsThroughUnchanged(t *testing.T) {
	sync := &mir.Func{
		Fullname:  "sync_fn",
		Asyncness: types.Sync,
		Ret:       types.Object,
		Body:      &mir.Return{Value: &mir.IntLit{Value: 1}},
	}
	prog := &mir.Program{Funcs: []*mir.Func{sync}}

	out, err := Split(prog)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(out.Funcs) != 1 || out.Funcs[0] != sync {
		t.Fatalf("Split() rewrote a Sync function: %v", out.Funcs)
	}
}

// TestSplitAsyncFunctionShape covers the entry chapter's signature and
// prelude for the simplest possible async function: one parameter (self),
// a body with no nested async call, so splitting produces exactly one
// chapter (the entry itself).
func TestSplitAsyncFunctionShape(t *testing.T) {
	fn := &mir.Func{
		Fullname:  "Object#go",
		Params:    []types.Type{types.Object}, // self
		Ret:       types.Object,
		Asyncness: types.Async,
		Body:      &mir.Return{Value: &mir.IntLit{Value: 1}},
	}
	prog := &mir.Program{Funcs: []*mir.Func{fn}}

	out, err := Split(prog)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(out.Funcs) != 1 {
		t.Fatalf("Split() produced %d chapters for a call-free async body, want 1", len(out.Funcs))
	}
	entry := out.Funcs[0]
	if entry.Fullname != fn.Fullname {
		t.Fatalf("entry.Fullname = %q, want %q (same name as the original)", entry.Fullname, fn.Fullname)
	}
	if entry.Asyncness != types.Lowered {
		t.Fatalf("entry.Asyncness = %v, want Lowered", entry.Asyncness)
	}
	// newParams = [$env, ...original params, $cont]
	if len(entry.Params) != 3 {
		t.Fatalf("entry.Params = %v, want 3 entries ($env, self, $cont)", entry.Params)
	}
	if entry.Params[0] != types.Type(types.EnvT) {
		t.Fatalf("entry.Params[0] = %v, want types.EnvT", entry.Params[0])
	}
	if entry.Ret != types.FutureT {
		t.Fatalf("entry.Ret = %v, want types.FutureT", entry.Ret)
	}

	stmts := stmtsOf(entry.Body)
	if len(stmts) == 0 {
		t.Fatal("entry.Body has no statements")
	}
	if _, ok := stmts[0].(*mir.EnvPushFrame); !ok {
		t.Fatalf("entry.Body's first statement = %T, want *mir.EnvPushFrame (spec.md §4.5 prelude)", stmts[0])
	}
}

func TestToAnyKindPicksTaxonomyByStaticType(t *testing.T) {
	cases := []struct {
		ty   types.Type
		want mir.CastKind
	}{
		{&types.ClassType{Base: "Int"}, mir.IntToAny},
		{&types.ClassType{Base: "Null"}, mir.NullToAny},
		{&types.ClassType{Base: "String"}, mir.ToAny},
		{&types.FunType{Ret: types.VoidT}, mir.FunToAny},
	}
	for _, c := range cases {
		if got := toAnyKind(c.ty); got != c.want {
			t.Errorf("toAnyKind(%v) = %v, want %v", c.ty, got, c.want)
		}
	}
}
