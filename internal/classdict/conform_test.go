package classdict

import (
	"testing"

	"shiika/internal/types"
)

func TestConformsNominalClassHierarchy(t *testing.T) {
	d := New()
	newClass(d, "Animal", "Object")
	newClass(d, "Dog", "Animal")

	dog := &types.ClassType{Base: "Dog"}
	animal := &types.ClassType{Base: "Animal"}
	if !d.Conforms(dog, animal) {
		t.Fatal("Dog should conform to Animal")
	}
	if d.Conforms(animal, dog) {
		t.Fatal("Animal should not conform to Dog")
	}
}

func TestConformsNeverIsBottom(t *testing.T) {
	d := New()
	newClass(d, "Dog", "Object")
	if !d.Conforms(types.NeverT, &types.ClassType{Base: "Dog"}) {
		t.Fatal("Never must conform to everything")
	}
}

func TestConformsModuleInclusion(t *testing.T) {
	d := New()
	mod := newClass(d, "Enumerable", "")
	mod.IsModule = true
	list := newClass(d, "List", "Object")
	list.Includes = []string{"Enumerable"}

	if !d.Conforms(&types.ClassType{Base: "List"}, &types.ClassType{Base: "Enumerable"}) {
		t.Fatal("List includes Enumerable, so it should conform to it")
	}
	if d.Conforms(&types.ClassType{Base: "Enumerable"}, &types.ClassType{Base: "List"}) {
		t.Fatal("a module must not conform to a class that includes it")
	}
}

func TestConformsFunTypeContravariantParamsCovariantReturn(t *testing.T) {
	d := New()
	newClass(d, "Animal", "Object")
	newClass(d, "Dog", "Animal")
	animal := &types.ClassType{Base: "Animal"}
	dog := &types.ClassType{Base: "Dog"}

	// Fn(Animal)->Dog conforms to Fn(Dog)->Animal: wider param accepted,
	// narrower return accepted by a caller expecting the wider type.
	a := &types.FunType{Params: []types.Type{animal}, Ret: dog}
	b := &types.FunType{Params: []types.Type{dog}, Ret: animal}
	if !d.Conforms(a, b) {
		t.Fatal("Fn(Animal)->Dog should conform to Fn(Dog)->Animal")
	}
	if d.Conforms(b, a) {
		t.Fatal("Fn(Dog)->Animal should not conform to Fn(Animal)->Dog")
	}
}

func TestConformsFunTypeAsyncnessMustMatch(t *testing.T) {
	d := New()
	sync := &types.FunType{Ret: types.VoidT, Asyncness: types.Sync}
	async := &types.FunType{Ret: types.VoidT, Asyncness: types.Async}
	if d.Conforms(sync, async) {
		t.Fatal("a Sync function type must not conform to an Async one")
	}
}

func TestNearestCommonAncestorSharedParent(t *testing.T) {
	d := New()
	newClass(d, "Animal", "Object")
	newClass(d, "Dog", "Animal")
	newClass(d, "Cat", "Animal")

	anc, ok := d.NearestCommonAncestor(&types.ClassType{Base: "Dog"}, &types.ClassType{Base: "Cat"})
	if !ok {
		t.Fatal("NearestCommonAncestor() found nothing for two siblings")
	}
	if anc.Fullname() != "Animal" {
		t.Fatalf("NearestCommonAncestor() = %v, want Animal", anc)
	}
}

func TestNearestCommonAncestorOnlyObjectIsNone(t *testing.T) {
	d := New()
	newClass(d, "Dog", "Object")
	newClass(d, "Car", "Object")

	_, ok := d.NearestCommonAncestor(&types.ClassType{Base: "Dog"}, &types.ClassType{Base: "Car"})
	if ok {
		t.Fatal("NearestCommonAncestor() should report None when Object is the only common ancestor")
	}
}

func TestNearestCommonAncestorEitherIsObject(t *testing.T) {
	d := New()
	newClass(d, "Dog", "Object")
	anc, ok := d.NearestCommonAncestor(types.Object, &types.ClassType{Base: "Dog"})
	if !ok || anc.Fullname() != "Object" {
		t.Fatalf("NearestCommonAncestor(Object, Dog) = (%v, %v), want (Object, true)", anc, ok)
	}
}
