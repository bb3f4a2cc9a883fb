package hir

import (
	"shiika/internal/types"
	"shiika/internal/util"
)

// FrameKind distinguishes the context-stack frame kinds of spec.md §4.2.
type FrameKind int

const (
	Toplevel FrameKind = iota
	ClassFrame
	MethodFrame
	LambdaFrame
	WhileFrame
	MatchClauseFrame
)

// opensLVarScope reports whether this frame kind opens a new lvar scope.
// While does not (spec.md §4.2: "lvars assigned inside a while are
// visible after it").
func (k FrameKind) opensLVarScope() bool {
	return k != WhileFrame
}

// opensConstScope reports whether this frame kind opens a new constant
// scope: only Toplevel and Class do (spec.md §4.2).
func (k FrameKind) opensConstScope() bool {
	return k == Toplevel || k == ClassFrame
}

// lvarEntry is one declared local in a scope.
type lvarEntry struct {
	Name string
	Ty   types.Type
	// HeapCell marks an lvar promoted to a heap-allocated cell shared by an
	// outer write and an inner lambda read. Nothing in this package sets
	// it: captures are by value (capture.go).
	HeapCell bool
}

// ctxFrame is one entry on the HIR builder's context stack.
type ctxFrame struct {
	Kind FrameKind
	// lvars is non-nil only when this frame opens an lvar scope.
	lvars map[string]*lvarEntry
	// consts is non-nil only for Toplevel/Class frames.
	consts map[string]types.Type
	// For LambdaFrame: the capture list being built for this lambda.
	lambda *lambdaFrameState
	// For MethodFrame: the owning class fullname and whether this is
	// `initialize` (drives ivar inference, spec.md §4.2).
	method *methodFrameState
}

type lambdaFrameState struct {
	Captures   []Capture
	CaptureOf  map[string]int // source-name -> index into Captures, for dedup.
	Kind       LambdaKind
}

type methodFrameState struct {
	OwnerClass  string
	IsInit      bool
	Asyncness   types.Asyncness
}

// Context is the single compilation context threaded through the HIR
// builder, holding the process-wide mutable state spec.md §5 and §9
// require to be explicit fields rather than statics: the gensym counter,
// the string-literal interning table and the constant table.
type Context struct {
	Gensym   util.Gensym
	strings  []string
	strIndex map[string]int
	consts   map[string]types.Type
}

// NewContext returns a fresh, empty compilation context.
func NewContext() *Context {
	return &Context{
		strIndex: make(map[string]int),
		consts:   make(map[string]types.Type),
	}
}

// InternString returns the interning-table index for s, adding it if
// necessary.
func (c *Context) InternString(s string) int {
	if idx, ok := c.strIndex[s]; ok {
		return idx
	}
	idx := len(c.strings)
	c.strings = append(c.strings, s)
	c.strIndex[s] = idx
	return idx
}

// Strings returns the interned string table in index order, for codegen's
// global string constants.
func (c *Context) Strings() []string { return c.strings }

// stack wraps util.Stack with ctxFrame-typed helpers.
type ctxStack struct {
	s util.Stack
}

func (cs *ctxStack) push(f *ctxFrame) { cs.s.Push(f) }
func (cs *ctxStack) pop() *ctxFrame {
	v := cs.s.Pop()
	if v == nil {
		return nil
	}
	return v.(*ctxFrame)
}
func (cs *ctxStack) top() *ctxFrame {
	v := cs.s.Peek()
	if v == nil {
		return nil
	}
	return v.(*ctxFrame)
}

// eachFrame walks frames from innermost to outermost.
func (cs *ctxStack) eachFrame(f func(*ctxFrame) bool) {
	cs.s.Each(func(v interface{}) bool { return f(v.(*ctxFrame)) })
}
