// Package mir implements C6: the explicit-control mid-level IR that HIR
// lowers into, and the node set every later pass (C7 asyncness, C8 async
// splitter, C9 vtable/wtable resolution, C10 codegen) rewrites or reads.
// Unlike HIR, MIR has no nested lvar scoping: every local of a function
// lives in one flat, function-wide index space (spec.md §3), which is
// exactly the shape the async splitter's env frame needs later.
package mir

import "shiika/internal/types"

// Expr is any typed MIR expression.
type Expr interface {
	Ty() types.Type
	mirNode()
}

type exprBase struct{ Type types.Type }

func (e exprBase) Ty() types.Type { return e.Type }
func (exprBase) mirNode()         {}

type IntLit struct {
	exprBase
	Value int64
}

type FloatLit struct {
	exprBase
	Value float64
}

// PseudoVar names one of the four pseudo-variables of spec.md §3.
type PseudoVar int

const (
	True PseudoVar = iota
	False
	VoidVal
	Null
)

type PseudoVarRef struct {
	exprBase
	Var PseudoVar
}

type StringLit struct {
	exprBase
	Idx int
}

// LVarRef/LVarDecl/LVarSet address a function-local by flat index.
type LVarRef struct {
	exprBase
	Index int
	Name  string
}

type LVarDecl struct {
	exprBase
	Index int
	Name  string
	Value Expr
}

type LVarSet struct {
	exprBase
	Index int
	Name  string
	Value Expr
}

// IVarRef/IVarSet carry an explicit receiver, unlike HIR's ivar nodes which
// rely on an implicit self (spec.md §3: "ivar ref/set with explicit
// receiver+index").
type IVarRef struct {
	exprBase
	Receiver Expr
	Index    int
	Name     string
}

type IVarSet struct {
	exprBase
	Receiver Expr
	Index    int
	Name     string
	Value    Expr
}

type ArgRef struct {
	exprBase
	Index int
}

// EnvRef/EnvSet are unused before C8 runs; the splitter rewrites LVarRef/Set
// and ArgRef into these once a function is split (spec.md §4.5).
type EnvRef struct {
	exprBase
	Index int
}

type EnvSet struct {
	exprBase
	Index int
	Value Expr
}

// EnvPushFrame/EnvPopFrame are the env-stack protocol operations C8 emits
// around a split async function's body (spec.md §4.5, §6:
// chiika_env_push_frame/chiika_env_pop_frame). PopFrame is itself an
// expression: it yields the saved continuation value recovered from the
// popped frame.
type EnvPushFrame struct {
	exprBase
	Size int
}

type EnvPopFrame struct {
	exprBase
	Size int
}

type ConstRef struct {
	exprBase
	Fullname string
}

type ConstSet struct {
	exprBase
	Fullname string
	Value    Expr
}

// FuncRef names a function by fullname, carrying its current asyncness tag
// so an indirect call's function-type can classify without a dictionary
// lookup (spec.md §3, "Async marker").
type FuncRef struct {
	exprBase
	Fullname  string
	Asyncness types.Asyncness
}

type FunCall struct {
	exprBase
	Callee Expr
	Args   []Expr
}

// VTableRef resolves an instance method call through a class's vtable.
// Index is -1 until C9's vtable pass assigns the resolved slot; MIR is
// produced with the symbolic (ClassFullname, MethodFullname) pair intact
// because C9 runs after the async splitter has possibly introduced new
// chapter functions that also need vtable-free direct FuncRefs, and
// because §2's dependency order puts C9 after C6/C7/C8.
type VTableRef struct {
	exprBase
	Receiver       Expr
	ClassFullname  string
	MethodFullname string
	Index          int
}

// WTableRef resolves a module method call through a class's witness table
// for that module, analogous to VTableRef.
type WTableRef struct {
	exprBase
	Receiver   Expr
	Module     string
	MethodName string
	Index      int
}

type If struct {
	exprBase
	Cond Expr
	Then Expr
	Else Expr
}

type While struct {
	exprBase
	Cond Expr
	Body Expr
}

// Spawn enqueues an async task (spec.md §5: "spawn(f) enqueues an async
// task whose return type must be Null").
type Spawn struct {
	exprBase
	Func Expr
}

type Alloc struct {
	exprBase
	ClassFullname string
}

type Return struct {
	exprBase
	Value Expr
}

type Seq struct {
	exprBase
	Exprs []Expr
}

// CastKind is the finite cast taxonomy of spec.md §3.
type CastKind int

const (
	Force CastKind = iota
	Upcast
	ToAny
	Recover
	AnyToFun
	AnyToInt
	IntToAny
	NullToAny
	FunToAny
)

type Cast struct {
	exprBase
	Kind  CastKind
	Value Expr
}

// CreateObject allocates and initializes a heap object: one value per
// declared ivar, in index order.
type CreateObject struct {
	exprBase
	ClassFullname string
	IVars         []Expr
}

type CreateTypeObject struct {
	exprBase
	ClassFullname string
}

type CreateNativeArray struct {
	exprBase
	ElemTy types.Type
	Elems  []Expr
}

type Unbox struct {
	exprBase
	Value Expr
}

type RawI64 struct {
	exprBase
	Value int64
}

type Nop struct{ exprBase }

// Func is one MIR function: its signature, asyncness, flat lvar slot
// count, and a single body expression (typically a Seq).
type Func struct {
	Fullname  string
	Params    []types.Type
	Ret       types.Type
	Asyncness types.Asyncness
	LVarCount int
	Body      Expr
	// IsLambdaBody marks a function synthesized from a lambda/do-block
	// literal rather than a user-declared method (spec.md §4.2's lambda
	// conversion): its first parameter is the closure's own object, not a
	// user-declared argument.
	IsLambdaBody bool
}

// ConstDef is a top-level constant's initializer, lowered to its own
// pseudo-function by C10 (spec.md §4.7, "per-constant initializer
// function").
type ConstDef struct {
	Fullname string
	Value    Expr
}

// Program is the MIR of a whole compilation: every function (including
// ones synthesized for lambda bodies) flattened into one list, plus the
// constant initializers.
type Program struct {
	Funcs  []*Func
	Consts []ConstDef

	// Strings is HIR's interned string table, carried through unchanged by
	// FromHIR. A StringLit{Idx} node anywhere in Funcs/Consts indexes this
	// slice; C10 is the only consumer (it emits one global constant per
	// entry and resolves each StringLit to that constant's pointer).
	Strings []string
}
