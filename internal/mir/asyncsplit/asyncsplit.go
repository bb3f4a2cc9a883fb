// Package asyncsplit implements C8: the CPS transformation that cuts every
// async MIR function into a chain of continuation chapters, threads an
// explicit $env frame stack through them, and rewrites locals/params into
// indexed frame slots (spec.md §4.5). It is the design centrepiece of the
// lowering pipeline and must run after C7 (internal/mir/asyncness) has
// resolved every function's Asyncness tag.
package asyncsplit

import (
	"shiika/internal/mir"
	"shiika/internal/types"
)

// Split rewrites every Async function in prog into its chapter functions
// and returns the fully split program. Sync functions pass through
// unchanged.
func Split(prog *mir.Program) (*mir.Program, error) {
	byName := make(map[string]*mir.Func, len(prog.Funcs))
	for _, f := range prog.Funcs {
		byName[f.Fullname] = f
	}

	out := &mir.Program{Consts: prog.Consts}
	for _, f := range prog.Funcs {
		if f.Asyncness != types.Async {
			out.Funcs = append(out.Funcs, f)
			continue
		}
		chapters, err := splitFunc(f, byName)
		if err != nil {
			return nil, err
		}
		out.Funcs = append(out.Funcs, chapters...)
	}
	return out, nil
}

// resolveAsync reports the statically-known asyncness of a call's callee.
// FuncRef carries its own resolved tag (post-C7); a VTableRef's
// MethodFullname is the statically resolved method name from the HIR call
// site, so it resolves the same way a direct call does when that function
// is defined in this program. Anything else (an unresolved vtable target,
// a wtable row, or a lambda's @func ivar dispatch) is genuinely dynamic and
// is conservatively treated as async, matching spec.md §4.4's "unknown ⇒
// conservatively async" rule carried over to call-site classification.
func resolveAsync(callee mir.Expr, byName map[string]*mir.Func) types.Asyncness {
	switch c := callee.(type) {
	case *mir.FuncRef:
		return c.Asyncness
	case *mir.VTableRef:
		if f, ok := byName[c.MethodFullname]; ok {
			return f.Asyncness
		}
		return types.Async
	default:
		return types.Async
	}
}

func isAsyncCall(call *mir.FunCall, byName map[string]*mir.Func) bool {
	return resolveAsync(call.Callee, byName) == types.Async
}

func containsAsyncCall(e mir.Expr, byName map[string]*mir.Func) bool {
	found := false
	mir.Walk(e, func(x mir.Expr) {
		if found {
			return
		}
		if call, ok := x.(*mir.FunCall); ok && isAsyncCall(call, byName) {
			found = true
		}
	})
	return found
}

// node constructors: exprBase is unexported, but its sole field (Type) is
// promoted and exported, so a zero-value literal plus a field assignment
// builds any mir node from outside the package without needing one.
func argRef(ty types.Type, idx int) *mir.ArgRef {
	n := &mir.ArgRef{Index: idx}
	n.Type = ty
	return n
}
func envRef(ty types.Type, idx int) *mir.EnvRef {
	n := &mir.EnvRef{Index: idx}
	n.Type = ty
	return n
}
func envSet(idx int, val mir.Expr) *mir.EnvSet {
	n := &mir.EnvSet{Index: idx, Value: val}
	n.Type = types.VoidT
	return n
}
func cast(kind mir.CastKind, ty types.Type, val mir.Expr) *mir.Cast {
	n := &mir.Cast{Kind: kind, Value: val}
	n.Type = ty
	return n
}
func funCall(ty types.Type, callee mir.Expr, args []mir.Expr) *mir.FunCall {
	n := &mir.FunCall{Callee: callee, Args: args}
	n.Type = ty
	return n
}
func funcRef(fullname string, async types.Asyncness) *mir.FuncRef {
	n := &mir.FuncRef{Fullname: fullname, Asyncness: async}
	n.Type = types.FutureT
	return n
}
func retExpr(val mir.Expr) *mir.Return {
	n := &mir.Return{Value: val}
	n.Type = types.FutureT
	return n
}
func pushFrame(size int) *mir.EnvPushFrame {
	n := &mir.EnvPushFrame{Size: size}
	n.Type = types.VoidT
	return n
}
func popFrame(size int) *mir.EnvPopFrame {
	n := &mir.EnvPopFrame{Size: size}
	n.Type = types.Object
	return n
}
func voidVal() *mir.PseudoVarRef {
	n := &mir.PseudoVarRef{Var: mir.VoidVal}
	n.Type = types.VoidT
	return n
}
func lvarDecl(ty types.Type, idx int, name string, val mir.Expr) *mir.LVarDecl {
	n := &mir.LVarDecl{Index: idx, Name: name, Value: val}
	n.Type = ty
	return n
}
func lvarSet(ty types.Type, idx int, name string, val mir.Expr) *mir.LVarSet {
	n := &mir.LVarSet{Index: idx, Name: name, Value: val}
	n.Type = ty
	return n
}
func lvarRef(ty types.Type, idx int, name string) *mir.LVarRef {
	n := &mir.LVarRef{Index: idx, Name: name}
	n.Type = ty
	return n
}
func returnNode(ty types.Type, val mir.Expr) *mir.Return {
	n := &mir.Return{Value: val}
	n.Type = ty
	return n
}
func ifNode(ty types.Type, cond, then, els mir.Expr) *mir.If {
	n := &mir.If{Cond: cond, Then: then, Else: els}
	n.Type = ty
	return n
}
func whileNode(cond, body mir.Expr) *mir.While {
	n := &mir.While{Cond: cond, Body: body}
	n.Type = types.VoidT
	return n
}

func seqOf(exprs []mir.Expr) mir.Expr {
	out := exprs[:0:0]
	for _, e := range exprs {
		if e != nil {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return &mir.Nop{}
	}
	if len(out) == 1 {
		return out[0]
	}
	n := &mir.Seq{Exprs: out}
	n.Type = out[len(out)-1].Ty()
	return n
}

func stmtsOf(e mir.Expr) []mir.Expr {
	if seq, ok := e.(*mir.Seq); ok {
		return seq.Exprs
	}
	if _, ok := e.(*mir.Nop); ok {
		return nil
	}
	return []mir.Expr{e}
}

// splitFunc implements the whole per-function pipeline: tempify, then the
// env-slot rewrite, then chapter decomposition.
func splitFunc(fn *mir.Func, byName map[string]*mir.Func) ([]*mir.Func, error) {
	n := len(fn.Params) // includes the implicit self/receiver at index 0.

	tc := &tempCtx{byName: byName, base: fn.LVarCount}
	body, err := tc.stmt(fn.Body)
	if err != nil {
		return nil, err
	}
	totalLVars := fn.LVarCount + tc.extra
	frameSize := 1 + n + totalLVars

	body = rewriteEnvSlots(body, n, totalLVars)

	s := &splitter{fn: fn, n: n, frameSize: frameSize, byName: byName}
	topTail := func(acc []mir.Expr, lastVal mir.Expr) (mir.Expr, error) {
		return s.finishReturn(acc, &mir.Return{Value: lastVal})
	}
	entryBody, err := s.process(stmtsOf(body), topTail)
	if err != nil {
		return nil, err
	}

	envTy := types.Type(types.EnvT)
	contTy := &types.FunType{Params: []types.Type{envTy, fn.Ret}, Ret: types.FutureT, Asyncness: types.Async}
	newParams := make([]types.Type, 0, n+2)
	newParams = append(newParams, envTy)
	newParams = append(newParams, fn.Params...)
	newParams = append(newParams, contTy)

	prelude := entryPrelude(frameSize, n, fn.Params, contTy)
	entryFunc := &mir.Func{
		Fullname:     fn.Fullname,
		Params:       newParams,
		Ret:          types.FutureT,
		Asyncness:    types.Lowered,
		LVarCount:    frameSize,
		Body:         seqOf(append(prelude, entryBody)),
		IsLambdaBody: fn.IsLambdaBody,
	}
	return append([]*mir.Func{entryFunc}, s.chapters...), nil
}

// entryPrelude builds the push_frame + initial env_set sequence every
// entry chapter starts with (spec.md §4.5 "Environment frame"): slot 0
// gets $cont, slots 1..n get the original arguments (including self).
func entryPrelude(frameSize, n int, params []types.Type, contTy types.Type) []mir.Expr {
	out := []mir.Expr{pushFrame(frameSize)}
	out = append(out, envSet(0, cast(toAnyKind(contTy), types.Object, argRef(contTy, n+1))))
	for i := 0; i < n; i++ {
		argTy := params[i]
		out = append(out, envSet(i+1, cast(toAnyKind(argTy), types.Object, argRef(argTy, i+1))))
	}
	return out
}

func toAnyKind(ty types.Type) mir.CastKind {
	if _, ok := ty.(*types.FunType); ok {
		return mir.FunToAny
	}
	if ct, ok := ty.(*types.ClassType); ok {
		switch ct.Base {
		case "Int":
			return mir.IntToAny
		case "Null":
			return mir.NullToAny
		}
	}
	return mir.ToAny
}
