package classdict

import (
	"testing"

	"shiika/ast"
	"shiika/internal/cerr"
	"shiika/internal/types"
)

func classDef(name string, super *ast.TypeRef, defs ...ast.Def) *ast.ClassDef {
	return &ast.ClassDef{Name: name, Super: super, Defs: defs}
}

func methodDef(name string, params ...ast.Param) *ast.MethodDef {
	return &ast.MethodDef{Name: name, Params: params}
}

func TestIndexProgramBuildsSuperclassChain(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		classDef("Animal", nil, methodDef("speak")),
		classDef("Dog", &ast.TypeRef{Base: "Animal"}),
	}}
	d, err := IndexProgram(prog, 1)
	if err != nil {
		t.Fatalf("IndexProgram() error = %v", err)
	}
	if d.Get("Dog").Super != "Animal" {
		t.Fatalf("Dog.Super = %q, want Animal", d.Get("Dog").Super)
	}
	if _, _, err := d.LookupMethod(&types.ClassType{Base: "Dog"}, "speak", cerr.Loc{}); err != nil {
		t.Fatalf("Dog should inherit speak from Animal: %v", err)
	}
}

func TestIndexProgramRejectsUnknownSuperclass(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		classDef("Dog", &ast.TypeRef{Base: "Ghost"}),
	}}
	if _, err := IndexProgram(prog, 1); err == nil {
		t.Fatal("IndexProgram() accepted a class whose superclass was never defined")
	}
}

func TestIndexProgramModulesIndexedBeforeClasses(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		classDef("List", &ast.TypeRef{Base: "Object"}),
		&ast.ModuleDef{Name: "Enumerable", Defs: []ast.Def{methodDef("each")}},
	}}
	d, err := IndexProgram(prog, 1)
	if err != nil {
		t.Fatalf("IndexProgram() error = %v", err)
	}
	if !d.Get("Enumerable").IsModule {
		t.Fatal("Enumerable was not recorded as a module")
	}
}

func TestIndexProgramParallelMatchesSequential(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		classDef("A", &ast.TypeRef{Base: "Object"}, methodDef("a")),
		classDef("B", &ast.TypeRef{Base: "Object"}, methodDef("b")),
		classDef("C", &ast.TypeRef{Base: "Object"}, methodDef("c")),
	}}
	d, err := IndexProgram(prog, 4)
	if err != nil {
		t.Fatalf("IndexProgram(threads=4) error = %v", err)
	}
	for _, name := range []string{"A", "B", "C"} {
		if d.Get(name) == nil {
			t.Fatalf("class %q missing after parallel indexing", name)
		}
	}
}

func TestCheckOverrideRejectsArityMismatch(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		classDef("Animal", &ast.TypeRef{Base: "Object"}, methodDef("speak")),
		classDef("Dog", &ast.TypeRef{Base: "Animal"}, methodDef("speak", ast.Param{Name: "loudly"})),
	}}
	if _, err := IndexProgram(prog, 1); err == nil {
		t.Fatal("IndexProgram() accepted an override with a different arity than its parent")
	}
}

func TestDeclareIVarsFromInitializerAssignsIndicesInOrder(t *testing.T) {
	init := &ast.MethodDef{
		Name: "initialize",
		Body: []ast.Expr{
			&ast.Assign{Target: &ast.IVarRef{Name: "x"}, Value: &ast.IntLit{Value: 1}, IsVar: false},
			&ast.Assign{Target: &ast.IVarRef{Name: "y"}, Value: &ast.IntLit{Value: 2}, IsVar: true},
		},
	}
	prog := &ast.Program{Items: []ast.Item{
		classDef("Point", &ast.TypeRef{Base: "Object"}, init),
	}}
	d, err := IndexProgram(prog, 1)
	if err != nil {
		t.Fatalf("IndexProgram() error = %v", err)
	}
	ci := d.Get("Point")
	x, err := d.FindIVar("Point", "x")
	if err != nil {
		t.Fatalf("FindIVar(x) error = %v", err)
	}
	y, err := d.FindIVar("Point", "y")
	if err != nil {
		t.Fatalf("FindIVar(y) error = %v", err)
	}
	if x.Index != 0 || y.Index != 1 {
		t.Fatalf("ivar indices = (%d, %d), want (0, 1) in declaration order", x.Index, y.Index)
	}
	if !x.Readonly {
		t.Fatal("@x assigned without `var` should be readonly")
	}
	if y.Readonly {
		t.Fatal("@y assigned with `var` should not be readonly")
	}
	_ = ci
}

func TestDeclareIVarsFromInitializerInheritsSuperIVarOffset(t *testing.T) {
	superInit := &ast.MethodDef{
		Name: "initialize",
		Body: []ast.Expr{&ast.Assign{Target: &ast.IVarRef{Name: "base"}, Value: &ast.IntLit{Value: 0}}},
	}
	subInit := &ast.MethodDef{
		Name: "initialize",
		Body: []ast.Expr{&ast.Assign{Target: &ast.IVarRef{Name: "extra"}, Value: &ast.IntLit{Value: 0}}},
	}
	prog := &ast.Program{Items: []ast.Item{
		classDef("Base", &ast.TypeRef{Base: "Object"}, superInit),
		classDef("Sub", &ast.TypeRef{Base: "Base"}, subInit),
	}}
	d, err := IndexProgram(prog, 1)
	if err != nil {
		t.Fatalf("IndexProgram() error = %v", err)
	}
	extra, err := d.FindIVar("Sub", "extra")
	if err != nil {
		t.Fatalf("FindIVar(extra) error = %v", err)
	}
	if extra.Index != 1 {
		t.Fatalf("extra.Index = %d, want 1 (after the inherited base ivar at 0)", extra.Index)
	}
}
