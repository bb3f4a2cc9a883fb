package mir

import (
	"testing"

	"shiika/internal/types"
)

func TestChildrenFunCallOrdersCalleeThenArgs(t *testing.T) {
	callee := &FuncRef{Fullname: "Object#foo"}
	arg0 := &IntLit{Value: 1}
	arg1 := &IntLit{Value: 2}
	call := &FunCall{Callee: callee, Args: []Expr{arg0, arg1}}

	kids := Children(call)
	if len(kids) != 3 || kids[0] != Expr(callee) || kids[1] != Expr(arg0) || kids[2] != Expr(arg1) {
		t.Fatalf("Children(FunCall) = %v, want [callee, arg0, arg1]", kids)
	}
}

func TestChildrenReturnNilValueHasNoChildren(t *testing.T) {
	ret := &Return{Value: nil}
	if kids := Children(ret); kids != nil {
		t.Fatalf("Children(Return{nil}) = %v, want nil", kids)
	}
}

func TestChildrenLeavesHaveNoChildren(t *testing.T) {
	for _, e := range []Expr{
		&IntLit{Value: 1},
		&StringLit{Idx: 0},
		&LVarRef{Index: 0},
		&ArgRef{Index: 0},
		&Nop{},
	} {
		if kids := Children(e); kids != nil {
			t.Fatalf("Children(%T) = %v, want nil", e, kids)
		}
	}
}

func TestWalkVisitsEveryNodePreOrder(t *testing.T) {
	seq := &Seq{Exprs: []Expr{
		&LVarDecl{Index: 0, Value: &IntLit{Value: 1}},
		&Return{Value: &LVarRef{Index: 0}},
	}}

	var visited []Expr
	Walk(seq, func(e Expr) { visited = append(visited, e) })

	// Pre-order: the Seq itself first, then its first child's subtree
	// before its second child's.
	if len(visited) != 5 {
		t.Fatalf("Walk visited %d nodes, want 5: %v", len(visited), visited)
	}
	if visited[0] != Expr(seq) {
		t.Fatalf("Walk's first visit = %T, want the root Seq", visited[0])
	}
	if _, ok := visited[1].(*LVarDecl); !ok {
		t.Fatalf("Walk visited %T second, want *LVarDecl", visited[1])
	}
}

func TestMapChildrenRebuildsWithSameShape(t *testing.T) {
	original := &If{
		exprBase: exprBase{Type: types.VoidT},
		Cond:     &IntLit{Value: 1},
		Then:     &IntLit{Value: 2},
		Else:     &IntLit{Value: 3},
	}

	doubled := MapChildren(original, func(e Expr) Expr {
		if lit, ok := e.(*IntLit); ok {
			return &IntLit{exprBase: lit.exprBase, Value: lit.Value * 2}
		}
		return e
	}).(*If)

	if doubled.Cond.(*IntLit).Value != 2 || doubled.Then.(*IntLit).Value != 4 || doubled.Else.(*IntLit).Value != 6 {
		t.Fatalf("MapChildren did not map every child: %+v", doubled)
	}
	if doubled.Ty() != types.VoidT {
		t.Fatalf("MapChildren dropped the node's own exprBase.Type: got %v", doubled.Ty())
	}
	// The original tree must be untouched.
	if original.Cond.(*IntLit).Value != 1 {
		t.Fatalf("MapChildren mutated the original tree: %+v", original)
	}
}

func TestMapChildrenLeafReturnedUnchanged(t *testing.T) {
	leaf := &ArgRef{Index: 3}
	got := MapChildren(leaf, func(e Expr) Expr { t.Fatal("f should never be called on a leaf's (nonexistent) children"); return e })
	if got != Expr(leaf) {
		t.Fatalf("MapChildren(leaf) = %v, want the same leaf back", got)
	}
}
