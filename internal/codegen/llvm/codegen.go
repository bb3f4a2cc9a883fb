// Package llvm implements C10: LLVM module emission from split-and-lowered
// MIR. It owns the module/builder exactly as the teacher's
// src/ir/llvm/transform.go owns them (a single llvm.Context/Module/Builder
// triple for the whole compilation), but runs strictly sequentially: §5 of
// the specification states the compiler itself is single-threaded
// cooperative with no concurrent mutation, so the teacher's opt.Threads
// header/body fan-out is deliberately not carried over here (see DESIGN.md).
package llvm

import (
	"fmt"
	"path/filepath"
	"strings"

	"shiika/internal/classdict"
	"shiika/internal/codegen/vtable"
	"shiika/internal/mir"
	"shiika/internal/runtime"
	"shiika/internal/util"

	"tinygo.org/x/go-llvm"
)

// gen carries the whole-module state every generation step reads or
// extends: the module/builder, the class dictionary, the resolved
// vtable/wtable layouts, and the lookup tables threading names to the LLVM
// values already emitted for them. Mirrors the shape of the teacher's
// package-global symTab, generalized into internal/util.SymTab per
// DESIGN.md's C10 entry.
type gen struct {
	ctx llvm.Context
	mod llvm.Module
	b   llvm.Builder

	dict *classdict.Dict
	prog *mir.Program

	ptrTy llvm.Type
	i64Ty llvm.Type

	funcs      *util.SymTab // fullname -> llvm.Value (function)
	externs    *util.SymTab // runtime symbol name -> llvm.Value (function)
	classObjs  *util.SymTab // class fullname -> llvm.Value (global, i8)
	vtableGlob *util.SymTab // class fullname -> llvm.Value (global [N x i8*])
	constGlob  *util.SymTab // const fullname -> llvm.Value (global i8*)
	strGlob    []llvm.Value // string literal index -> llvm.Value (global i8*)

	vtables map[string][]string
	wtables map[string][]vtable.WRow
	// vtableIdx caches, per class, method fullname -> slot index.
	vtableIdx map[string]map[string]int
	// vtablesPending lists classes whose vtable global was declared
	// (declareVTables) but not yet initialized (finishVTables runs after
	// every function header is declared, so forward references resolve).
	vtablesPending []string

	// wrowGlob holds, per (class, module), the global array of function
	// pointers backing that wtable row (see declareWRows/finishWRows).
	wrowGlob map[string]map[string]llvm.Value

	// constInitFns holds the per-constant initializer function declared
	// for each ConstDef (spec.md §4.7: "a per-constant initializer
	// function init_::Name").
	constInitFns *util.SymTab
}

// Generate runs C10 end to end: declare the runtime externs, lay out every
// class's vtable/wtable, emit every function header then every function
// body, synthesize the constant-initializer chain and main, then hand the
// finished module to a target machine and emit an object-file buffer
// (spec.md §6, "Object file contract"; §4.7's "bitcode/object buffer").
func Generate(opt util.Options, dict *classdict.Dict, prog *mir.Program) ([]byte, error) {
	ctx := llvm.NewContext()
	defer ctx.Dispose()

	b := ctx.NewBuilder()
	defer b.Dispose()

	name := "shiika_module"
	if opt.Src != "" {
		name = strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src))
	}
	mod := ctx.NewModule(name)
	defer mod.Dispose()

	g := &gen{
		ctx:        ctx,
		mod:        mod,
		b:          b,
		dict:       dict,
		prog:       prog,
		ptrTy:      llvm.PointerType(ctx.Int8Type(), 0),
		i64Ty:      ctx.Int64Type(),
		funcs:      util.NewSymTab(len(prog.Funcs)),
		externs:    util.NewSymTab(len(runtime.Symbols)),
		classObjs:    util.NewSymTab(len(dict.Classes)),
		vtableGlob:   util.NewSymTab(len(dict.Classes)),
		constGlob:    util.NewSymTab(len(prog.Consts)),
		constInitFns: util.NewSymTab(len(prog.Consts)),
		vtables:      vtable.BuildVTables(dict),
		wtables:      vtable.BuildWTables(dict),
	}
	g.vtableIdx = make(map[string]map[string]int, len(g.vtables))
	for cls, names := range g.vtables {
		idx := make(map[string]int, len(names))
		for i, n := range names {
			idx[n] = i
		}
		g.vtableIdx[cls] = idx
	}

	g.declareExterns()
	g.declareStrings()
	g.declareClassObjects()
	g.declareVTables()
	g.declareWRows()
	g.declareConstGlobals()
	g.declareConstInitializers()

	for _, fn := range prog.Funcs {
		if _, err := g.genFuncHeader(fn); err != nil {
			return nil, err
		}
	}
	g.finishVTables()
	g.finishWRows()
	for _, fn := range prog.Funcs {
		if err := g.genFuncBody(fn); err != nil {
			return nil, err
		}
	}
	if err := g.genConstInitializerBodies(); err != nil {
		return nil, err
	}

	if err := g.genMain(opt); err != nil {
		return nil, err
	}

	if opt.Verbose {
		fmt.Println("LLVM IR:")
		mod.Dump()
	}

	return g.emit(opt)
}

// emit initializes the target machine and returns the compiled object-file
// bytes, following the teacher's InitializeAllTarget*/CreateTargetMachine/
// EmitToMemoryBuffer sequence verbatim.
func (g *gen) emit(opt util.Options) ([]byte, error) {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	triple, err := targetTriple(opt)
	if err != nil {
		return nil, err
	}
	t, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return nil, err
	}
	tm := t.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelDefault, llvm.RelocDefault, llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()
	g.mod.SetDataLayout(td.String())
	g.mod.SetTarget(triple)

	buf, err := tm.EmitToMemoryBuffer(g.mod, llvm.ObjectFile)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// targetTriple mirrors the teacher's genTargetTriple, minus its
// cross-target plumbing: Options carries TargetArch/TargetVendor/TargetOS
// (TargetArch is set by the -arch flag), but this ignores them and always
// targets the host.
func targetTriple(opt util.Options) (string, error) {
	_ = opt
	return llvm.DefaultTargetTriple(), nil
}
