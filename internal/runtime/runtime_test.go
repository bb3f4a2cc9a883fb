package runtime

import "testing"

func TestLookupKnownSymbol(t *testing.T) {
	sym, ok := Lookup("shiika_malloc")
	if !ok {
		t.Fatalf("shiika_malloc not found")
	}
	if sym.Ret != Ptr || len(sym.Params) != 1 || sym.Params[0] != I64 {
		t.Fatalf("shiika_malloc signature = %+v, want (i64) -> ptr", sym)
	}
}

func TestLookupUnknownSymbol(t *testing.T) {
	if _, ok := Lookup("not_a_real_symbol"); ok {
		t.Fatalf("expected Lookup to report false for an unknown symbol")
	}
}

func TestEveryDocumentedSymbolPresent(t *testing.T) {
	want := []string{
		"GC_init", "shiika_malloc", "shiika_realloc",
		"shiika_lookup_wtable", "shiika_insert_wtable",
		"chiika_env_push_frame", "chiika_env_pop_frame",
		"chiika_env_set", "chiika_env_ref", "chiika_spawn",
	}
	for _, name := range want {
		if _, ok := Lookup(name); !ok {
			t.Errorf("missing runtime symbol %q", name)
		}
	}
}
