package llvm

import (
	"fmt"

	"shiika/internal/classdict"

	"tinygo.org/x/go-llvm"
)

// ptrPtrTy is the LLVM type used to address a heap object's slots: since
// every slot (header field or ivar) is itself generic-pointer-sized
// (genType's uniform representation, types.go), one object is simply an
// array of pointers and every class shares the same slot-addressing code
// regardless of its concrete ivar layout.
func (g *gen) ptrPtrTy() llvm.Type { return llvm.PointerType(g.ptrTy, 0) }

// slotPtr bitcasts obj (a generic i8*) to i8** and advances by idx
// pointer-sized steps, yielding the address of slot idx.
func (g *gen) slotPtr(obj llvm.Value, idx int) llvm.Value {
	arr := g.b.CreateBitCast(obj, g.ptrPtrTy(), "")
	return g.b.CreateGEP(arr, []llvm.Value{llvm.ConstInt(g.i64Ty, uint64(idx), false)}, "")
}

func (g *gen) slotLoad(obj llvm.Value, idx int) llvm.Value {
	return g.b.CreateLoad(g.slotPtr(obj, idx), "")
}

func (g *gen) slotStore(obj llvm.Value, idx int, val llvm.Value) {
	g.b.CreateStore(val, g.slotPtr(obj, idx))
}

func (g *gen) loadHeaderSlot(obj llvm.Value, idx int) llvm.Value {
	return g.slotLoad(obj, idx)
}

// classSlotCount returns the number of heap slots (header + ivars) an
// instance of ci occupies. IVars already folds inherited ivars in at
// indexing time (classdict.go), so len(ci.IVars) is the whole instance's
// ivar count, not just ci's own declarations.
func classSlotCount(ci *classdict.ClassInfo) int {
	return objHeaderFields + len(ci.IVars)
}

// allocObject emits shiika_malloc(slotCount*8) and stores the vtable and
// class-object header slots (spec.md §4.7: "Allocation is
// shiika_malloc(size_of(T)) followed by vtable/class-object
// initialization"), returning the raw i8* handle.
func (g *gen) allocObject(classFullname string) llvm.Value {
	ci := g.dict.Get(classFullname)
	slots := objHeaderFields
	if ci != nil {
		slots = classSlotCount(ci)
	}
	size := llvm.ConstInt(g.i64Ty, uint64(slots*8), false)
	raw := g.b.CreateCall(g.extern("shiika_malloc"), []llvm.Value{size}, "")

	vtableGlobal, ok := g.vtableGlob.Get(classFullname)
	if ok {
		vtablePtr := g.b.CreateBitCast(vtableGlobal.(llvm.Value), g.ptrTy, "")
		g.slotStore(raw, 0, vtablePtr)
	} else {
		g.slotStore(raw, 0, llvm.ConstNull(g.ptrTy))
	}
	classObjAny, ok := g.classObjs.Get(classFullname)
	if ok {
		classObjPtr := g.b.CreateBitCast(classObjAny.(llvm.Value), g.ptrTy, "")
		g.slotStore(raw, 1, classObjPtr)
	} else {
		g.slotStore(raw, 1, llvm.ConstNull(g.ptrTy))
	}
	return raw
}

// declareStrings emits one global constant per entry of prog.Strings
// (spec.md §5's string-literal interning table), so every mir.StringLit
// resolves to a pointer in constant time.
func (g *gen) declareStrings() {
	g.strGlob = make([]llvm.Value, len(g.prog.Strings))
	for i, s := range g.prog.Strings {
		strVal := llvm.ConstString(s, true)
		arrTy := llvm.ArrayType(g.ctx.Int8Type(), len(s)+1)
		global := llvm.AddGlobal(g.mod, arrTy, fmt.Sprintf("str.%d", i))
		global.SetInitializer(strVal)
		global.SetGlobalConstant(true)
		zero := llvm.ConstInt(g.i64Ty, 0, false)
		g.strGlob[i] = llvm.ConstGEP(global, []llvm.Value{zero, zero})
	}
}

// declareConstGlobals emits one "external global" pointer per top-level
// constant (spec.md §4.7: "Every top-level constant has an external
// global pointer and a per-constant initializer function").
func (g *gen) declareConstGlobals() {
	for _, c := range g.prog.Consts {
		global := llvm.AddGlobal(g.mod, g.ptrTy, "const."+c.Fullname)
		global.SetInitializer(llvm.ConstNull(g.ptrTy))
		g.constGlob.Set(c.Fullname, global)
	}
}
