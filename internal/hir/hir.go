// Package hir implements C3: the AST->HIR builder. Every HIR expression
// carries a resolved term type (spec.md §3); name resolution, lambda
// capture analysis, initializer-driven ivar inference and method-call type
// inference (C4, internal/hir/infer) all happen during the single
// traversal performed by Maker.BuildProgram.
package hir

import "shiika/internal/types"

// Expr is any typed HIR expression.
type Expr interface {
	Ty() types.Type
	hirNode()
}

type exprBase struct{ Type types.Type }

func (e exprBase) Ty() types.Type { return e.Type }
func (exprBase) hirNode()         {}

// IntLit, FloatLit, BoolLit, StringLit and SelfExpr are HIR literals
// (spec.md §3, "literals (int, float, bool, string-literal-idx,
// pseudo-self)").
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

// StringLit references a string literal by interning-table index, per
// spec.md §3; the table itself lives on the shared Context (§5).
type StringLit struct {
	exprBase
	Idx int
}

type SelfExpr struct{ exprBase }

// LVarRef is a reference to a local variable by name.
type LVarRef struct {
	exprBase
	Name string
}

// ArgRef is a reference to a method/lambda argument by index and name.
type ArgRef struct {
	exprBase
	Index int
	Name  string
}

// IVarRef is a reference to an instance variable by name and resolved
// index.
type IVarRef struct {
	exprBase
	Name  string
	Index int
}

// ConstRef is a reference to a constant by fullname.
type ConstRef struct {
	exprBase
	Fullname string
}

// ClassTyParamRef/MethodTyParamRef reference a declared type parameter.
type ClassTyParamRef struct {
	exprBase
	Index int
}

type MethodTyParamRef struct {
	exprBase
	Index int
}

// If, While, BreakFromWhile, BreakFromBlock and Return are HIR control
// nodes.
type If struct {
	exprBase
	Cond Expr
	Then []Expr
	Else []Expr
	// LVars lists locals declared directly inside each branch, needed so
	// codegen can allocate them before entering the branch block.
	ThenLVars []string
	ElseLVars []string
}

type While struct {
	exprBase
	Cond  Expr
	Body  []Expr
	LVars []string
}

type BreakFromWhile struct{ exprBase }

// BreakFromBlock implements spec.md §4.2's `do`-block break protocol: it
// sets the lambda's @exit_status field and returns from the enclosing
// method at codegen time (internal/codegen/llvm); here it is just the
// marker node consumed there.
type BreakFromBlock struct{ exprBase }

type Return struct {
	exprBase
	Value Expr // nil for a bare return.
}

// LVarAssign, IVarAssign and ConstAssign are HIR assignment nodes.
type LVarAssign struct {
	exprBase
	Name  string
	Value Expr
}

type IVarAssign struct {
	exprBase
	Name       string
	Index      int
	OwnerClass string
	Value      Expr
}

type ConstAssign struct {
	exprBase
	Fullname string
	Value    Expr
}

// MethodCall is a resolved instance/class method call: the receiver's
// fullname and the method's fullname are both recorded so codegen can
// choose direct vtable-index dispatch (spec.md §4.1).
type MethodCall struct {
	exprBase
	Receiver     Expr
	MethodFullname string
	FoundIn      string // the ancestor fullname the method was actually found in.
	Args         []Expr
	Block        *LambdaExpr // non-nil for a block-argument call.
}

// ModuleMethodCall is a call dispatched through a wtable row rather than a
// class vtable slot (spec.md §4.1, §4.6).
type ModuleMethodCall struct {
	exprBase
	Receiver   Expr
	Module     string
	MethodName string
	WTableIdx  int
	Args       []Expr
}

// LambdaInvocation calls a lambda value (reads its @func ivar at codegen
// time, spec.md §4.7).
type LambdaInvocation struct {
	exprBase
	Lambda Expr
	Args   []Expr
}

// Capture describes one captured variable of a lambda (spec.md §3).
type Capture struct {
	Depth int // number of enclosing lambda frames traversed to reach the definition.
	Ty    types.Type
	// UpcastNeeded is set when the capture's static type must be widened
	// to match an outer declaration (e.g. capturing through a covariant
	// forward).
	UpcastNeeded bool
	Detail       CaptureDetail
}

// CaptureDetail tags what is being captured.
type CaptureDetail interface{ captureDetail() }

type CapLVar struct{ Name string }
type CapFnArg struct{ Idx int }
type CapFwd struct{ OuterIdx int }

func (CapLVar) captureDetail() {}
func (CapFnArg) captureDetail() {}
func (CapFwd) captureDetail()  {}

// LambdaExpr is a lambda literal with its finalized capture list.
type LambdaExpr struct {
	exprBase
	Kind     LambdaKind
	Params   []string
	ParamTys []types.Type
	Body     []Expr
	Captures []Capture
	// CaptureNames[i] is the source-level name captured at Captures[i],
	// parallel to Captures; C6's MIR lowering needs this to resolve a
	// CapFwd entry (which carries no name of its own) back to the ivar
	// slot its own closure object stores it under.
	CaptureNames []string
}

type LambdaKind int

const (
	DoBlock LambdaKind = iota
	FnLambda
)

// ClassLiteral is a reference to a class object, e.g. `Array`.
type ClassLiteral struct {
	exprBase
	Fullname string
}

// BitCast is an explicit, codegen-only reinterpretation used by the
// pattern-match lowerer and the async splitter's boxing helpers.
type BitCast struct {
	exprBase
	Value Expr
}

// ParenBlock groups a sequence of expressions into one value-producing
// expression (the value of the last one).
type ParenBlock struct {
	exprBase
	Exprs []Expr
}

type Not struct {
	exprBase
	Operand Expr
}

type And struct {
	exprBase
	LHS, RHS Expr
}

type Or struct {
	exprBase
	LHS, RHS Expr
}

// Method is one HIR method definition.
type Method struct {
	Fullname  string
	Params    []string
	ParamTys  []types.Type
	RetTy     types.Type
	Body      []Expr
	Asyncness types.Asyncness
}

// Program is the HIR of a whole compilation.
type Program struct {
	Methods []*Method
	Consts  []ConstDef

	// Strings is the interned string table in index order (Context.Strings,
	// spec.md §5), carried on Program so it survives past the Maker/Context
	// that built it — C6's FromHIR copies it onto mir.Program, which is as
	// far as a StringLit{Idx} node's actual text needs to travel before C10
	// emits it as a global constant.
	Strings []string
}

// ConstDef is a top-level constant and its initializer expression (spec.md
// §4.7, "per-constant initializer function").
type ConstDef struct {
	Fullname string
	Value    Expr
}
