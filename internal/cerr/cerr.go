// Package cerr defines the error-kind taxonomy of spec.md §7: every stage
// past the external parser returns one of these, never a bare error, so
// callers (and tests) can discriminate InternalBug from a user-facing
// diagnostic.
package cerr

import "fmt"

// Kind classifies a compiler error.
type Kind int

const (
	// Syntax errors originate in the external lexer/parser and are passed
	// through unchanged; the core never constructs one.
	Syntax Kind = iota
	Name
	Type
	Program
	Internal
)

func (k Kind) String() string {
	switch k {
	case Syntax:
		return "SyntaxError"
	case Name:
		return "NameError"
	case Type:
		return "TypeError"
	case Program:
		return "ProgramError"
	case Internal:
		return "InternalBug"
	default:
		return "UnknownError"
	}
}

// Loc is a source location: file plus a line/column range. Column ranges
// that aren't known are left zero.
type Loc struct {
	File      string
	Line      int
	Col       int
	EndLine   int
	EndCol    int
}

func (l Loc) String() string {
	if l.File == "" && l.Line == 0 {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// Error is the single error type every stage (C2 onward) returns.
type Error struct {
	Kind    Kind
	Message string
	Loc     Loc
	// Scope names the containing scope, e.g. "method Foo#bar", for the
	// user-visible failure behavior required by spec.md §7.
	Scope string
}

func (e *Error) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("%s: %s at %s (in %s)", e.Kind, e.Message, e.Loc, e.Scope)
	}
	return fmt.Sprintf("%s: %s at %s", e.Kind, e.Message, e.Loc)
}

func New(kind Kind, loc Loc, scope, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Loc: loc, Scope: scope, Message: fmt.Sprintf(format, args...)}
}

func NameErr(loc Loc, scope, format string, args ...interface{}) *Error {
	return New(Name, loc, scope, format, args...)
}

func TypeErr(loc Loc, scope, format string, args ...interface{}) *Error {
	return New(Type, loc, scope, format, args...)
}

func ProgramErr(loc Loc, scope, format string, args ...interface{}) *Error {
	return New(Program, loc, scope, format, args...)
}

// Bug constructs an InternalBug error. It only tags the error: no caller in
// this repository maps Kind Internal to a distinct process exit code
// (cmd/shiikac does not run the pipeline and exits with status 1 on every
// error).
func Bug(loc Loc, scope, format string, args ...interface{}) *Error {
	return New(Internal, loc, scope, format, args...)
}
