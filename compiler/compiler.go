// Package compiler wires the pipeline's stages together in the order
// spec.md §2 fixes: class-dictionary indexing, HIR construction, lowering
// to MIR, asyncness inference, the CPS async split, and LLVM codegen (which
// itself runs C9's vtable/wtable construction just before emitting code).
// It plays the role of the teacher's src/main.go's run(): a single function
// that owns the stage sequence so cmd/shiikac stays a thin flag-parsing
// shell.
package compiler

import (
	"fmt"

	"shiika/ast"
	"shiika/internal/classdict"
	"shiika/internal/codegen/llvm"
	"shiika/internal/hir"
	"shiika/internal/mir"
	"shiika/internal/mir/asyncness"
	"shiika/internal/mir/asyncsplit"
	"shiika/internal/util"
)

// Compile runs every stage of the pipeline over an already-parsed program
// and returns the compiled object-file bytes. The lexer, parser and
// package-manifest loader that would produce prog from source text are
// external collaborators (spec.md §1 Non-goals; §6's "produces an AST
// Program" names the contract this function consumes, not who builds it).
func Compile(opt util.Options, prog *ast.Program) ([]byte, error) {
	dict, err := classdict.IndexProgram(prog, opt.Threads)
	if err != nil {
		return nil, fmt.Errorf("class dictionary: %w", err)
	}

	maker := hir.NewMaker(dict)
	hirProg, err := maker.BuildProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("hir: %w", err)
	}

	mirProg, err := mir.FromHIR(hirProg)
	if err != nil {
		return nil, fmt.Errorf("mir: %w", err)
	}

	if err := asyncness.Infer(mirProg); err != nil {
		return nil, fmt.Errorf("asyncness inference: %w", err)
	}

	mirProg, err = asyncsplit.Split(mirProg)
	if err != nil {
		return nil, fmt.Errorf("async split: %w", err)
	}

	obj, err := llvm.Generate(opt, dict, mirProg)
	if err != nil {
		return nil, fmt.Errorf("codegen: %w", err)
	}
	return obj, nil
}
