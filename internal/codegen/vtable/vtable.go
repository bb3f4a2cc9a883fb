// Package vtable implements C9: building the per-class method dispatch
// table and the per-class, per-included-module witness tables (spec.md
// §4.6). Both are pure functions over an already-indexed class dictionary;
// neither touches LLVM — C10 consumes their output when emitting the
// global vtable/wtable constants and `shiika_insert_wtable` calls.
package vtable

import "shiika/internal/classdict"

// BuildVTable returns the ordered list of method fullnames for ci: start
// from its superclass's own vtable (recursively), then overlay ci's own
// methods in declaration order — an own method whose first name already
// occupies a slot overrides that slot in place (spec.md §4.6, "keeping the
// most-derived override at the inherited index"); a first name with no
// existing slot is appended.
//
// spec.md's own wording names only the class being built; walking the
// ancestor chain to find those inherited slots needs the dictionary too,
// since classdict.ClassInfo.Methods holds only a class's own declared
// methods (ancestors are looked up via Dict.Get on ClassInfo.Super, never copied in at
// indexing time — unlike ivars, which classdict/index.go does fold in).
func BuildVTable(d *classdict.Dict, ci *classdict.ClassInfo) []string {
	var base []string
	if ci.Super != "" {
		if super := d.Get(ci.Super); super != nil {
			base = BuildVTable(d, super)
		}
	}
	return overlay(base, ci)
}

func overlay(base []string, ci *classdict.ClassInfo) []string {
	out := make([]string, len(base))
	copy(out, base)

	slotOf := make(map[string]int, len(out))
	for i, fullname := range out {
		slotOf[firstNameOf(fullname)] = i
	}

	for _, firstName := range ci.MethodOrder {
		fullname := ci.Methods[firstName].Fullname
		if idx, ok := slotOf[firstName]; ok {
			out[idx] = fullname
		} else {
			slotOf[firstName] = len(out)
			out = append(out, fullname)
		}
	}
	return out
}

func firstNameOf(fullname string) string {
	for i := 0; i < len(fullname); i++ {
		if fullname[i] == '#' {
			return fullname[i+1:]
		}
	}
	return fullname
}

// BuildVTables runs BuildVTable over every class in d. Not itself named by
// spec.md §4.6, but every caller that needs a whole module's worth of
// vtable globals (C10's gen_vtables-equivalent pass) needs exactly this,
// so it's supplemented here rather than rebuilt ad hoc at each call site.
func BuildVTables(d *classdict.Dict) map[string][]string {
	out := make(map[string][]string, len(d.Classes))
	for fullname, ci := range d.Classes {
		out[fullname] = BuildVTable(d, ci)
	}
	return out
}
