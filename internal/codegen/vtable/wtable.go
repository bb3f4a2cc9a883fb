package vtable

import (
	"shiika/internal/cerr"
	"shiika/internal/classdict"
	"shiika/internal/types"
)

// WRow is one class's dispatch row for one included module: the ordered
// list of method fullnames that actually implement that module's own
// method order for this class (spec.md §4.6, "a wtable row maps M's
// method indices to C's actual implementations"). Grounded directly on
// the original implementation's per-class WTable shape
// (original_source/lib/skc_hir/src/sk_type/wtable.rs: "mapping from every
// Shiika module which the class includes to the list of MethodFullname
// which are the actual implementation") — that file serializes one
// HashMap<Module, Vec<MethodFullname>> per class; WRow is that map's
// value type, one per (class, module) pair.
type WRow struct {
	Module  string
	Methods []string
}

// BuildWTables returns, for every class that includes at least one
// module, one WRow per included module (in Includes declaration order).
// A module's method is resolved the same way ordinary method lookup
// resolves it (spec.md §4.1): the class's own override wins if one
// exists, otherwise the module's own default implementation is used.
func BuildWTables(d *classdict.Dict) map[string][]WRow {
	out := make(map[string][]WRow)
	for fullname, ci := range d.Classes {
		if len(ci.Includes) == 0 {
			continue
		}
		rows := make([]WRow, 0, len(ci.Includes))
		for _, mod := range ci.Includes {
			rows = append(rows, wRowFor(d, ci, mod))
		}
		out[fullname] = rows
	}
	return out
}

func wRowFor(d *classdict.Dict, ci *classdict.ClassInfo, moduleFullname string) WRow {
	mod := d.Get(moduleFullname)
	if mod == nil {
		return WRow{Module: moduleFullname}
	}
	receiver := &types.ClassType{Base: ci.Fullname}
	methods := make([]string, 0, len(mod.MethodOrder))
	for _, firstName := range mod.MethodOrder {
		fullname := mod.Methods[firstName].Fullname
		if sig, _, err := d.LookupMethod(receiver, firstName, cerr.Loc{}); err == nil {
			fullname = sig.Fullname
		}
		methods = append(methods, fullname)
	}
	return WRow{Module: moduleFullname, Methods: methods}
}
