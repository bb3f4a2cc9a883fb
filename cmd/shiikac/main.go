// Command shiikac is the compiler's command-line entry point. It only
// parses flags and reports errors the way the teacher's src/main.go does;
// the lexer, parser, and package-manifest loader that turn source text into
// an ast.Program are external collaborators this repo never implements
// (spec.md §1 Non-goals), so there is no frontend here to hand compiler.
// Compile a real ast.Program — that wiring point is exercised directly by
// compiler's own tests instead.
package main

import (
	"fmt"
	"os"

	"shiika/internal/util"
)

func main() {
	opt, err := util.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}
	if opt.Src == "" {
		fmt.Println("usage: shiikac [-o out.o] [-t threads] [-arch arch] [-corepkg path] <source>")
		os.Exit(1)
	}
	fmt.Printf("Error: no frontend wired in: %q was not parsed (shiikac accepts an ast.Program via compiler.Compile, not source text)\n", opt.Src)
	os.Exit(1)
}
