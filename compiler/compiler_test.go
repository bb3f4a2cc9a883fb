package compiler

import (
	"testing"

	"shiika/ast"
	"shiika/internal/util"
)

// TestCompileSimpleProgram exercises the whole stage sequence — indexing,
// HIR, MIR, asyncness inference, the async split, and LLVM codegen — on a
// minimal Sync program with no async calls to split.
func TestCompileSimpleProgram(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		&ast.ClassDef{Name: "Foo", Defs: []ast.Def{
			&ast.MethodDef{Name: "answer", Body: []ast.Expr{&ast.IntLit{Value: 42}}},
		}},
	}}
	obj, err := Compile(util.Options{}, prog)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(obj) == 0 {
		t.Fatal("Compile() returned an empty object buffer")
	}
}

// TestCompileRejectsUnknownSuperclass checks that an error from the
// earliest stage (class-dictionary indexing) is surfaced directly rather
// than silently skipped by a later stage.
func TestCompileRejectsUnknownSuperclass(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		&ast.ClassDef{Name: "Foo", Super: &ast.TypeRef{Base: "Ghost"}},
	}}
	if _, err := Compile(util.Options{}, prog); err == nil {
		t.Fatal("Compile() accepted a class with an undeclared superclass")
	}
}
