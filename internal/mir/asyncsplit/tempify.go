package asyncsplit

import (
	"fmt"

	"shiika/internal/cerr"
	"shiika/internal/mir"
)

// tempCtx drives tempification (spec.md §4.5): before splitting, every
// async call used as a value within a larger expression is extracted to a
// fresh local binding, so each chapter boundary has the shape
// "lvar := async_call; ...". An async call that is already the direct,
// sole value of an LVarDecl/LVarSet/bare-statement/Return is left alone —
// it's already in chapter-boundary shape (the Return case additionally
// enables the fused tail-call optimization of spec.md §4.5).
type tempCtx struct {
	byName map[string]*mir.Func
	base   int // fn.LVarCount: new temp slots are allocated starting here.
	extra  int
}

// newTemp allocates a fresh frame slot and gensym-style name ($0, $1, ...
// per SPEC_FULL.md's supplemented tempification detail).
func (tc *tempCtx) newTemp() (int, string) {
	idx := tc.base + tc.extra
	name := fmt.Sprintf("$%d", tc.extra)
	tc.extra++
	return idx, name
}

// stmt tempifies a single expression appearing in statement position,
// returning the (possibly multi-statement) replacement.
func (tc *tempCtx) stmt(e mir.Expr) (mir.Expr, error) {
	list, err := tc.stmtList([]mir.Expr{e})
	if err != nil {
		return nil, err
	}
	return seqOf(list), nil
}

func (tc *tempCtx) stmtList(stmts []mir.Expr) ([]mir.Expr, error) {
	var out []mir.Expr
	for _, st := range stmts {
		pre, repl, err := tc.oneStmt(st)
		if err != nil {
			return nil, err
		}
		out = append(out, pre...)
		if repl != nil {
			out = append(out, repl)
		}
	}
	return out, nil
}

// oneStmt tempifies one top-level statement, returning statements to run
// before it and its own (rebuilt) replacement.
func (tc *tempCtx) oneStmt(st mir.Expr) ([]mir.Expr, mir.Expr, error) {
	switch v := st.(type) {
	case *mir.Seq:
		list, err := tc.stmtList(v.Exprs)
		if err != nil {
			return nil, nil, err
		}
		return nil, seqOf(list), nil
	case *mir.LVarDecl:
		if call, ok := v.Value.(*mir.FunCall); ok && isAsyncCall(call, tc.byName) {
			pre, nc, err := tc.hoistCallArgs(call)
			if err != nil {
				return nil, nil, err
			}
			return pre, lvarDecl(v.Ty(), v.Index, v.Name, nc), nil
		}
		pre, val, err := tc.expr(v.Value)
		if err != nil {
			return nil, nil, err
		}
		return pre, lvarDecl(v.Ty(), v.Index, v.Name, val), nil
	case *mir.LVarSet:
		if call, ok := v.Value.(*mir.FunCall); ok && isAsyncCall(call, tc.byName) {
			pre, nc, err := tc.hoistCallArgs(call)
			if err != nil {
				return nil, nil, err
			}
			return pre, lvarSet(v.Ty(), v.Index, v.Name, nc), nil
		}
		pre, val, err := tc.expr(v.Value)
		if err != nil {
			return nil, nil, err
		}
		return pre, lvarSet(v.Ty(), v.Index, v.Name, val), nil
	case *mir.Return:
		if v.Value == nil {
			return nil, v, nil
		}
		if call, ok := v.Value.(*mir.FunCall); ok && isAsyncCall(call, tc.byName) {
			pre, nc, err := tc.hoistCallArgs(call)
			if err != nil {
				return nil, nil, err
			}
			return pre, returnNode(v.Ty(), nc), nil
		}
		pre, val, err := tc.expr(v.Value)
		if err != nil {
			return nil, nil, err
		}
		return pre, returnNode(v.Ty(), val), nil
	case *mir.FunCall:
		if isAsyncCall(v, tc.byName) {
			pre, nc, err := tc.hoistCallArgs(v)
			return pre, nc, err
		}
		pre, val, err := tc.expr(v)
		return pre, val, err
	case *mir.If:
		if containsAsyncCall(v.Cond, tc.byName) {
			return nil, nil, cerr.Bug(cerr.Loc{}, "", "async call in an if condition must be tempified before splitting")
		}
		thenList, err := tc.stmtList(stmtsOf(v.Then))
		if err != nil {
			return nil, nil, err
		}
		elseList, err := tc.stmtList(stmtsOf(v.Else))
		if err != nil {
			return nil, nil, err
		}
		return nil, ifNode(v.Ty(), v.Cond, seqOf(thenList), seqOf(elseList)), nil
	case *mir.While:
		// A condition-position async call would need its own chapter before
		// the loop can even test itself; spec.md's Open Question 1 decision
		// (DESIGN.md) only commits to the body being allowed to go async, so
		// this narrower restriction stands.
		if containsAsyncCall(v.Cond, tc.byName) {
			return nil, nil, cerr.Bug(cerr.Loc{}, "", "async call in a while condition is not supported")
		}
		bodyList, err := tc.stmtList(stmtsOf(v.Body))
		if err != nil {
			return nil, nil, err
		}
		return nil, whileNode(v.Cond, seqOf(bodyList)), nil
	default:
		pre, val, err := tc.expr(st)
		return pre, val, err
	}
}

// expr recursively hoists every async call found anywhere inside e, except
// when e itself is one of oneStmt's exempted top-level shapes (those are
// handled by the caller before expr is reached).
func (tc *tempCtx) expr(e mir.Expr) ([]mir.Expr, mir.Expr, error) {
	if e == nil {
		return nil, nil, nil
	}
	if call, ok := e.(*mir.FunCall); ok {
		pre, nc, err := tc.hoistCallArgs(call)
		if err != nil {
			return nil, nil, err
		}
		if !isAsyncCall(call, tc.byName) {
			return pre, nc, nil
		}
		idx, name := tc.newTemp()
		pre = append(pre, lvarDecl(call.Ty(), idx, name, nc))
		return pre, lvarRef(call.Ty(), idx, name), nil
	}
	var pre []mir.Expr
	var childErr error
	out := mir.MapChildren(e, func(c mir.Expr) mir.Expr {
		if childErr != nil {
			return c
		}
		p, v, err := tc.expr(c)
		if err != nil {
			childErr = err
			return c
		}
		pre = append(pre, p...)
		return v
	})
	if childErr != nil {
		return nil, nil, childErr
	}
	return pre, out, nil
}

func (tc *tempCtx) hoistCallArgs(call *mir.FunCall) ([]mir.Expr, *mir.FunCall, error) {
	var pre []mir.Expr
	calleePre, callee, err := tc.expr(call.Callee)
	if err != nil {
		return nil, nil, err
	}
	pre = append(pre, calleePre...)
	args := make([]mir.Expr, len(call.Args))
	for i, a := range call.Args {
		p, v, err := tc.expr(a)
		if err != nil {
			return nil, nil, err
		}
		pre = append(pre, p...)
		args[i] = v
	}
	return pre, funCall(call.Ty(), callee, args), nil
}
