package llvm

import (
	"shiika/internal/codegen/vtable"

	"tinygo.org/x/go-llvm"
)

// declareClassObjects emits one global per class standing in for its
// class-object singleton (spec.md §4.7's "class_obj_ptr" header field and
// CreateTypeObject). The global's contents never matter to this compiler
// — its address is the identity every instance's header slot 1 points
// at — so an opaque i8 is enough payload.
func (g *gen) declareClassObjects() {
	for fullname := range g.dict.Classes {
		global := llvm.AddGlobal(g.mod, g.ctx.Int8Type(), "classobj."+fullname)
		global.SetInitializer(llvm.ConstInt(g.ctx.Int8Type(), 0, false))
		g.classObjs.Set(fullname, global)
	}
}

// declareVTables emits one global constant array of function pointers per
// class, in BuildVTable's order (spec.md §4.6: "Vtables are stored as a
// global array of function pointers, one per class, named
// deterministically"). A slot whose method isn't defined yet at
// declaration time (forward reference) is patched in by finishVTables
// once every function header has been declared.
func (g *gen) declareVTables() {
	for fullname, methods := range g.vtables {
		arrTy := llvm.ArrayType(g.ptrTy, len(methods))
		global := llvm.AddGlobal(g.mod, arrTy, "vtable."+fullname)
		global.SetGlobalConstant(true)
		g.vtableGlob.Set(fullname, global)
		g.vtablesPending = append(g.vtablesPending, fullname)
	}
}

// finishVTables fills in every vtable global's initializer once every
// function has a declared header (so forward references to not-yet-seen
// methods resolve). Must run after genFuncHeader has processed prog.Funcs.
func (g *gen) finishVTables() {
	for _, fullname := range g.vtablesPending {
		methods := g.vtables[fullname]
		globalAny, _ := g.vtableGlob.Get(fullname)
		global := globalAny.(llvm.Value)
		entries := make([]llvm.Value, len(methods))
		for i, m := range methods {
			entries[i] = g.funcPtrConst(m)
		}
		arrTy := llvm.ArrayType(g.ptrTy, len(methods))
		global.SetInitializer(llvm.ConstArray(arrTy, entries))
	}
}

// funcPtrConst returns the generic-pointer constant for a function
// fullname, used as a vtable/wtable entry. A method with no MIR body
// (foreign/bootstrap, spec.md §4.7's three-bootstrap-classes case) has no
// declared function at all; such slots get a null pointer, which is only
// reached if the bootstrap class is instantiated and dispatched through
// directly — library export/import is an external collaborator outside
// this repo's scope (§6), so that path is never exercised here.
func (g *gen) funcPtrConst(fullname string) llvm.Value {
	if v, ok := g.funcs.Get(fullname); ok {
		return llvm.ConstBitCast(v.(llvm.Value), g.ptrTy)
	}
	return llvm.ConstNull(g.ptrTy)
}

// declareWRows emits one global constant array of function pointers per
// (class, module) wtable row, mirroring declareVTables/finishVTables'
// forward-reference handling: the array is declared now and its
// initializer filled in by finishWRows once every function header exists.
func (g *gen) declareWRows() {
	g.wrowGlob = make(map[string]map[string]llvm.Value, len(g.wtables))
	for fullname, rows := range g.wtables {
		perClass := make(map[string]llvm.Value, len(rows))
		for _, row := range rows {
			arrTy := llvm.ArrayType(g.ptrTy, len(row.Methods))
			global := llvm.AddGlobal(g.mod, arrTy, "wtable."+fullname+"."+row.Module)
			global.SetGlobalConstant(true)
			perClass[row.Module] = global
		}
		g.wrowGlob[fullname] = perClass
	}
}

func (g *gen) finishWRows() {
	for fullname, rows := range g.wtables {
		for _, row := range rows {
			global := g.wrowGlob[fullname][row.Module]
			entries := make([]llvm.Value, len(row.Methods))
			for i, m := range row.Methods {
				entries[i] = g.funcPtrConst(m)
			}
			arrTy := llvm.ArrayType(g.ptrTy, len(row.Methods))
			global.SetInitializer(llvm.ConstArray(arrTy, entries))
		}
	}
}

// vtableIndexOf resolves a VTableRef's (ClassFullname, MethodFullname)
// pair to its slot, using the STATIC class's own vtable layout. This is
// sound for dynamic dispatch precisely because BuildVTable's override
// rule keeps an override at its ancestor's index (spec.md §4.6): every
// subclass's vtable agrees with its ancestors' layout on every inherited
// slot, so the index computed from the static receiver type is the same
// index the runtime object's actual (possibly more-derived) vtable uses.
func (g *gen) vtableIndexOf(classFullname, methodFullname string) int {
	if m, ok := g.vtableIdx[classFullname]; ok {
		if idx, ok := m[methodFullname]; ok {
			return idx
		}
	}
	return 0
}

// wtableRow returns classFullname's dispatch row for module, if any.
func (g *gen) wtableRow(classFullname, module string) (vtable.WRow, bool) {
	for _, row := range g.wtables[classFullname] {
		if row.Module == module {
			return row, true
		}
	}
	return vtable.WRow{}, false
}

// wtableMethodIndex finds methodName's row-relative slot within
// classFullname's wtable row for module, matching against either a
// fully-qualified method name or its bare first name.
func (g *gen) wtableMethodIndex(classFullname, module, methodName string) int {
	row, ok := g.wtableRow(classFullname, module)
	if !ok {
		return 0
	}
	for i, m := range row.Methods {
		if m == methodName || firstNameOf(m) == methodName {
			return i
		}
	}
	return 0
}

func firstNameOf(fullname string) string {
	for i := 0; i < len(fullname); i++ {
		if fullname[i] == '#' {
			return fullname[i+1:]
		}
	}
	return fullname
}

// moduleKeyOf turns a module fullname into the i64 key
// shiika_lookup_wtable/shiika_insert_wtable expect (spec.md §6 names the
// parameter "i64_key" without pinning its derivation, since the runtime
// owns wtable storage on the other side of that call) via FNV-1a.
func moduleKeyOf(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
