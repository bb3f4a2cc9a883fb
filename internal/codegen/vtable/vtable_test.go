package vtable

import (
	"reflect"
	"testing"

	"shiika/internal/classdict"
)

func method(owner, firstName string) classdict.MethodSig {
	return classdict.MethodSig{Fullname: owner + "#" + firstName, FirstName: firstName}
}

func newClass(fullname, super string) *classdict.ClassInfo {
	return &classdict.ClassInfo{
		Fullname: fullname,
		Super:    super,
		Methods:  make(map[string]classdict.MethodSig),
	}
}

func addOwn(ci *classdict.ClassInfo, firstNames ...string) {
	for _, n := range firstNames {
		ci.Methods[n] = method(ci.Fullname, n)
		ci.MethodOrder = append(ci.MethodOrder, n)
	}
}

func TestBuildVTableInheritsAndOverrides(t *testing.T) {
	d := &classdict.Dict{Classes: make(map[string]*classdict.ClassInfo)}

	object := newClass("Object", "")
	addOwn(object, "to_s", "==")
	d.Classes["Object"] = object

	base := newClass("Base", "Object")
	addOwn(base, "foo", "bar")
	d.Classes["Base"] = base

	derived := newClass("Derived", "Base")
	addOwn(derived, "bar", "baz") // overrides "bar", appends "baz"
	d.Classes["Derived"] = derived

	got := BuildVTable(d, derived)
	want := []string{"Object#to_s", "Object#==", "Base#foo", "Derived#bar", "Derived#baz"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildVTable(Derived) = %v, want %v", got, want)
	}

	// Base's own vtable must be unaffected by Derived's override.
	gotBase := BuildVTable(d, base)
	wantBase := []string{"Object#to_s", "Object#==", "Base#foo", "Base#bar"}
	if !reflect.DeepEqual(gotBase, wantBase) {
		t.Fatalf("BuildVTable(Base) = %v, want %v", gotBase, wantBase)
	}
}

func TestBuildWTablesOverrideAndDefault(t *testing.T) {
	d := &classdict.Dict{Classes: make(map[string]*classdict.ClassInfo)}

	object := newClass("Object", "")
	d.Classes["Object"] = object

	enumerable := newClass("Enumerable", "")
	enumerable.IsModule = true
	addOwn(enumerable, "all?", "map")
	d.Classes["Enumerable"] = enumerable

	array := newClass("Array", "Object")
	array.Includes = []string{"Enumerable"}
	addOwn(array, "map") // Array provides its own map, inherits all? from the module
	d.Classes["Array"] = array

	tables := BuildWTables(d)
	rows, ok := tables["Array"]
	if !ok || len(rows) != 1 {
		t.Fatalf("expected one wtable row for Array, got %v", tables["Array"])
	}
	row := rows[0]
	if row.Module != "Enumerable" {
		t.Fatalf("row.Module = %q, want Enumerable", row.Module)
	}
	want := []string{"Enumerable#all?", "Array#map"}
	if !reflect.DeepEqual(row.Methods, want) {
		t.Fatalf("row.Methods = %v, want %v", row.Methods, want)
	}

	if _, ok := tables["Object"]; ok {
		t.Fatalf("Object includes nothing, should have no wtable row")
	}
}
