package asyncsplit

import (
	"fmt"

	"shiika/internal/mir"
	"shiika/internal/types"
)

// splitter accumulates the extra chapter functions produced while walking
// one async function's (already tempified, already env-rewritten) body.
type splitter struct {
	fn        *mir.Func
	n         int // arity including self, pre-$env/$cont insertion.
	frameSize int
	byName    map[string]*mir.Func
	chapters  []*mir.Func
	seq       int
}

func (s *splitter) freshName() string {
	name := fmt.Sprintf("%s$%d", s.fn.Fullname, s.seq)
	s.seq++
	return name
}

// tailFunc builds whatever happens when a statement list runs off its end
// without an explicit Return or a chapter-splitting construct: at the
// function's own top level this is an implicit return of the body's last
// value (spec.md's examples never write a bare "return" for a trailing
// expression); inside an if-branch chapter it is instead a tail call to
// the branch's endif chapter (spec.md §4.5's "branch chapters tail-call
// the endif chapter, passing the branch value as an extra argument").
type tailFunc func(acc []mir.Expr, lastVal mir.Expr) (mir.Expr, error)

// process walks stmts, splitting the current chapter at the first async
// call site or async-containing if, and recursing into the remainder with
// the same tail continuation. It returns the completed body expression for
// whatever chapter stmts belongs to (new chapters it spawns along the way
// are appended to s.chapters as a side effect).
func (s *splitter) process(stmts []mir.Expr, tail tailFunc) (mir.Expr, error) {
	var acc []mir.Expr
	for i, st := range stmts {
		switch v := st.(type) {
		case *mir.Return:
			return s.finishReturn(acc, v)
		case *mir.If:
			if containsAsyncCall(v.Cond, s.byName) || containsAsyncCall(v.Then, s.byName) || containsAsyncCall(v.Else, s.byName) {
				return s.splitIf(acc, nil, v, stmts[i+1:], tail)
			}
			acc = append(acc, v)
		case *mir.While:
			if containsAsyncCall(v.Body, s.byName) {
				return s.splitWhile(acc, v, stmts[i+1:], tail)
			}
			acc = append(acc, v)
		case *mir.FunCall:
			if isAsyncCall(v, s.byName) {
				return s.splitCall(acc, nil, v, stmts[i+1:], tail)
			}
			acc = append(acc, v)
		case *mir.EnvSet:
			if cst, ok := v.Value.(*mir.Cast); ok {
				switch inner := cst.Value.(type) {
				case *mir.FunCall:
					if isAsyncCall(inner, s.byName) {
						idx := v.Index
						return s.splitCall(acc, &idx, inner, stmts[i+1:], tail)
					}
				case *mir.If:
					if containsAsyncCall(inner.Cond, s.byName) || containsAsyncCall(inner.Then, s.byName) || containsAsyncCall(inner.Else, s.byName) {
						idx := v.Index
						return s.splitIf(acc, &idx, inner, stmts[i+1:], tail)
					}
				}
			}
			acc = append(acc, v)
		default:
			acc = append(acc, st)
		}
	}
	var last mir.Expr
	if len(acc) > 0 {
		last = acc[len(acc)-1]
		acc = acc[:len(acc)-1]
	} else {
		last = voidVal()
	}
	return tail(acc, last)
}

// finishReturn implements spec.md §4.5's `return e` rule: pop the saved
// continuation off the frame and tail-call it with the return value,
// fusing the pop directly into the callee's continuation argument when e
// is itself an async call (the optimization named in §4.5 and carried
// forward verbatim by SPEC_FULL.md §4).
func (s *splitter) finishReturn(acc []mir.Expr, ret *mir.Return) (mir.Expr, error) {
	if ret.Value == nil {
		cont := popFrame(s.frameSize)
		call := funCall(types.FutureT, cont, []mir.Expr{argRef(types.EnvT, 0), voidVal()})
		return seqOf(append(acc, retExpr(call))), nil
	}
	if call, ok := ret.Value.(*mir.FunCall); ok && isAsyncCall(call, s.byName) {
		cont := popFrame(s.frameSize)
		args := append(append([]mir.Expr{argRef(types.EnvT, 0)}, call.Args...), cont)
		fused := funCall(types.FutureT, call.Callee, args)
		return seqOf(append(acc, retExpr(fused))), nil
	}
	cont := popFrame(s.frameSize)
	call := funCall(types.FutureT, cont, []mir.Expr{argRef(types.EnvT, 0), ret.Value})
	return seqOf(append(acc, retExpr(call))), nil
}

// splitCall closes the current chapter at an async call site: the call is
// tail-called with an extra continuation argument naming the freshly
// minted next chapter, which opens by storing $async_result into
// targetSlot (if the call's result is bound to a local) before continuing
// with rest under the same tail continuation.
func (s *splitter) splitCall(acc []mir.Expr, targetSlot *int, call *mir.FunCall, rest []mir.Expr, tail tailFunc) (mir.Expr, error) {
	nextName := s.freshName()
	newArgs := append(append([]mir.Expr{argRef(types.EnvT, 0)}, call.Args...), funcRef(nextName, types.Async))
	tailCall := funCall(types.FutureT, call.Callee, newArgs)
	curBody := seqOf(append(acc, retExpr(tailCall)))

	var contAcc []mir.Expr
	if targetSlot != nil {
		contAcc = append(contAcc, envSet(*targetSlot, argRef(types.Object, 1)))
	}
	childBody, err := s.process(rest, tail)
	if err != nil {
		return nil, err
	}
	fullChild := seqOf(append(contAcc, childBody))

	s.chapters = append(s.chapters, &mir.Func{
		Fullname:  nextName,
		Params:    []types.Type{types.EnvT, types.Object},
		Ret:       types.FutureT,
		Asyncness: types.Async,
		LVarCount: s.frameSize,
		Body:      fullChild,
	})
	return curBody, nil
}

// splitIf implements spec.md §4.5's if-splitting rule: two branch
// chapters ('t'/'f') and an endif chapter ('e'); the current chapter
// evaluates cond and tail-calls the selected branch with $env, each
// branch chapter tail-calls endif with its own value, and endif continues
// with rest (optionally storing the if's value into targetSlot first).
func (s *splitter) splitIf(acc []mir.Expr, targetSlot *int, ifn *mir.If, rest []mir.Expr, tail tailFunc) (mir.Expr, error) {
	endifName := s.freshName()
	thenName := s.freshName()
	elseName := s.freshName()

	branchTail := func(branchAcc []mir.Expr, lastVal mir.Expr) (mir.Expr, error) {
		call := funCall(types.FutureT, funcRef(endifName, types.Async), []mir.Expr{argRef(types.EnvT, 0), lastVal})
		return seqOf(append(branchAcc, retExpr(call))), nil
	}
	thenBody, err := s.process(stmtsOf(ifn.Then), branchTail)
	if err != nil {
		return nil, err
	}
	elseBody, err := s.process(stmtsOf(ifn.Else), branchTail)
	if err != nil {
		return nil, err
	}
	s.chapters = append(s.chapters,
		&mir.Func{Fullname: thenName, Params: []types.Type{types.EnvT}, Ret: types.FutureT, Asyncness: types.Async, LVarCount: s.frameSize, Body: thenBody},
		&mir.Func{Fullname: elseName, Params: []types.Type{types.EnvT}, Ret: types.FutureT, Asyncness: types.Async, LVarCount: s.frameSize, Body: elseBody},
	)

	envArg := argRef(types.EnvT, 0)
	callThen := funCall(types.FutureT, funcRef(thenName, types.Async), []mir.Expr{envArg})
	callElse := funCall(types.FutureT, funcRef(elseName, types.Async), []mir.Expr{envArg})
	curTail := retExpr(ifNode(types.FutureT, ifn.Cond, callThen, callElse))
	curBody := seqOf(append(acc, curTail))

	var endifAcc []mir.Expr
	if targetSlot != nil {
		endifAcc = append(endifAcc, envSet(*targetSlot, argRef(types.Object, 1)))
	}
	restBody, err := s.process(rest, tail)
	if err != nil {
		return nil, err
	}
	endifBody := seqOf(append(endifAcc, restBody))

	s.chapters = append(s.chapters, &mir.Func{
		Fullname:  endifName,
		Params:    []types.Type{types.EnvT, types.Object},
		Ret:       types.FutureT,
		Asyncness: types.Async,
		LVarCount: s.frameSize,
		Body:      endifBody,
	})
	return curBody, nil
}

// splitWhile implements the Open Question 1 decision recorded in
// DESIGN.md: a while loop whose body goes async is legal. It lowers to
// three chapters — 'c' (check) evaluates cond and tail-calls 'b' or 'a';
// 'b' (body) runs the loop body and tail-calls back to 'c'; 'a' (after)
// continues with rest, exactly mirroring splitIf's chapter shape but
// looping 'b' back to 'c' instead of forward to a shared endif.
func (s *splitter) splitWhile(acc []mir.Expr, w *mir.While, rest []mir.Expr, tail tailFunc) (mir.Expr, error) {
	checkName := s.freshName()
	bodyName := s.freshName()
	afterName := s.freshName()

	envArg := argRef(types.EnvT, 0)
	bodyTail := func(bodyAcc []mir.Expr, _ mir.Expr) (mir.Expr, error) {
		call := funCall(types.FutureT, funcRef(checkName, types.Async), []mir.Expr{envArg})
		return seqOf(append(bodyAcc, retExpr(call))), nil
	}
	bodyBody, err := s.process(stmtsOf(w.Body), bodyTail)
	if err != nil {
		return nil, err
	}
	s.chapters = append(s.chapters, &mir.Func{
		Fullname: bodyName, Params: []types.Type{types.EnvT}, Ret: types.FutureT,
		Asyncness: types.Async, LVarCount: s.frameSize, Body: bodyBody,
	})

	callBody := funCall(types.FutureT, funcRef(bodyName, types.Async), []mir.Expr{envArg})
	callAfter := funCall(types.FutureT, funcRef(afterName, types.Async), []mir.Expr{envArg})
	checkBody := retExpr(ifNode(types.FutureT, w.Cond, callBody, callAfter))
	s.chapters = append(s.chapters, &mir.Func{
		Fullname: checkName, Params: []types.Type{types.EnvT}, Ret: types.FutureT,
		Asyncness: types.Async, LVarCount: s.frameSize, Body: checkBody,
	})

	curTail := funCall(types.FutureT, funcRef(checkName, types.Async), []mir.Expr{envArg})
	curBody := seqOf(append(acc, retExpr(curTail)))

	restBody, err := s.process(rest, tail)
	if err != nil {
		return nil, err
	}
	s.chapters = append(s.chapters, &mir.Func{
		Fullname: afterName, Params: []types.Type{types.EnvT}, Ret: types.FutureT,
		Asyncness: types.Async, LVarCount: s.frameSize, Body: restBody,
	})
	return curBody, nil
}
