// Package ast defines the surface syntax tree contract this core consumes
// from the external lexer/parser (spec.md §6): "produces an AST
// Program = { toplevel_items: [Def | Expr] }". The lexer, the parser and
// the package manifest loader that populate these structures are out of
// scope (spec.md §1) — this package only pins down the node shapes the HIR
// builder (internal/hir) walks.
package ast

import "shiika/internal/cerr"

// Program is the root of a parsed source file or package.
type Program struct {
	Items []Item
}

// Item is either a Def or a top-level Expr.
type Item interface {
	itemNode()
	Location() cerr.Loc
}

// Def is a top-level definition: a class, a module, or a method defined
// outside of any class (a corelib extern, for instance).
type Def interface {
	Item
	defNode()
}

// ClassDef declares a class and its body.
type ClassDef struct {
	Loc        cerr.Loc
	Name       string
	TypeParams []TypeParam
	Super      *TypeRef // nil for Object and other roots.
	Includes   []TypeRef
	Defs       []Def
}

func (*ClassDef) itemNode() {}
func (*ClassDef) defNode()  {}
func (d *ClassDef) Location() cerr.Loc { return d.Loc }

// ModuleDef declares a module (mixin) and its body.
type ModuleDef struct {
	Loc        cerr.Loc
	Name       string
	TypeParams []TypeParam
	Defs       []Def
}

func (*ModuleDef) itemNode() {}
func (*ModuleDef) defNode()  {}
func (d *ModuleDef) Location() cerr.Loc { return d.Loc }

// MethodDef declares a method: its signature and body expressions.
type MethodDef struct {
	Loc        cerr.Loc
	Name       string
	TypeParams []TypeParam
	Params     []Param
	RetType    *TypeRef // nil means infer from body.
	Body       []Expr
	IsAsync    bool // surface `async def`; Unknown otherwise (inferred by C7).
}

func (*MethodDef) itemNode() {}
func (*MethodDef) defNode()  {}
func (d *MethodDef) Location() cerr.Loc { return d.Loc }

// ExternDef declares a runtime-provided method with no body (spec.md §6,
// "the runtime library of primitive methods").
type ExternDef struct {
	Loc     cerr.Loc
	Name    string
	Params  []Param
	RetType TypeRef
	IsAsync bool
}

func (*ExternDef) itemNode() {}
func (*ExternDef) defNode()  {}
func (d *ExternDef) Location() cerr.Loc { return d.Loc }

// TypeParam is a declared type parameter with its variance.
type TypeParam struct {
	Name     string
	Variance Variance
}

// Variance of a declared type parameter.
type Variance int

const (
	Invariant Variance = iota
	Covariant
	Contravariant
)

// Param is a method or lambda parameter.
type Param struct {
	Name string
	Type TypeRef
}

// TypeRef is a surface-syntax reference to a type: a base name plus
// optional type arguments, as written in source (before resolution by C1).
type TypeRef struct {
	Base   string
	Args   []TypeRef
	IsMeta bool
}

// Expr is any expression-position AST node consumed by the HIR builder
// (spec.md §3's HIR node-kind list mirrors this one closely, one level up
// in abstraction).
type Expr interface {
	Item
	exprNode()
}

type exprBase struct{ Loc cerr.Loc }

func (e exprBase) Location() cerr.Loc { return e.Loc }
func (exprBase) itemNode()            {}
func (exprBase) exprNode()            {}

type IntLit struct {
	exprBase
	Value int64
}

type FloatLit struct {
	exprBase
	Value float64
}

type BoolLit struct {
	exprBase
	Value bool
}

type StringLit struct {
	exprBase
	Value string
}

type SelfExpr struct{ exprBase }

type VarRef struct {
	exprBase
	Name string
}

type IVarRef struct {
	exprBase
	Name string
}

type ConstRef struct {
	exprBase
	Fullname string
}

type Assign struct {
	exprBase
	Target Expr // VarRef, IVarRef or ConstRef.
	Value  Expr
	// IsVar marks `var @x = ...` at an ivar declaration site (spec.md
	// §4.2's "inherits readonly from the var modifier").
	IsVar bool
}

type If struct {
	exprBase
	Cond Expr
	Then []Expr
	Else []Expr
}

type While struct {
	exprBase
	Cond Expr
	Body []Expr
}

type Break struct {
	exprBase
	// FromBlock is true for `break` inside a `do`-block (spec.md §4.2),
	// false for `break` out of an enclosing `while`.
	FromBlock bool
}

type Return struct {
	exprBase
	Value Expr // nil for a bare `return`.
}

type MethodCall struct {
	exprBase
	Receiver Expr // nil means implicit self.
	Name     string
	Args     []Expr
	Block    *Lambda // non-nil when a block argument is supplied.
}

type LambdaKind int

const (
	// DoBlock is a `do...end`/`{...}` block argument: may contain `break`
	// and `return` that cross into the enclosing method (spec.md §4.2).
	DoBlock LambdaKind = iota
	// FnLambda is an `fn(){}` literal: forbids `break`/`return` crossing
	// the boundary.
	FnLambda
)

type Lambda struct {
	exprBase
	Kind   LambdaKind
	Params []Param
	Body   []Expr
}

type ClassLit struct {
	exprBase
	Fullname string
}

type MatchClause struct {
	Pattern Pattern
	Body    []Expr
}

type Match struct {
	exprBase
	Target  Expr
	Clauses []MatchClause
}

// Pattern is a match-clause pattern (spec.md §4.3).
type Pattern interface {
	patternNode()
	Location() cerr.Loc
}

type patternBase struct{ Loc cerr.Loc }

func (p patternBase) Location() cerr.Loc { return p.Loc }
func (patternBase) patternNode()         {}

type WildcardPattern struct{ patternBase }

type VarPattern struct {
	patternBase
	Name string
}

type LiteralPattern struct {
	patternBase
	Value Expr // IntLit, FloatLit, StringLit or BoolLit.
}

type ExtractorPattern struct {
	patternBase
	Qualified string // e.g. "Maybe::Some"
	TypeArgs  []TypeRef
	Params    []Pattern
}

type LogicalNot struct {
	exprBase
	Operand Expr
}

type LogicalAnd struct {
	exprBase
	LHS, RHS Expr
}

type LogicalOr struct {
	exprBase
	LHS, RHS Expr
}
