// Package asyncness implements C7: the conservative fixed-point pass that
// marks every MIR function Sync or Async, then rewrites every FuncRef to
// the resolved tag (spec.md §4.4).
package asyncness

import (
	"fmt"

	"shiika/internal/cerr"
	"shiika/internal/mir"
	"shiika/internal/types"
)

// Infer classifies every function in prog whose Asyncness is
// types.Unknown, then rewrites call sites to the resolved tags and
// verifies no Sync function transitively contains an Async call.
func Infer(prog *mir.Program) error {
	byName := funcsByName(prog)

	unresolved := make(map[string]bool)
	for _, f := range prog.Funcs {
		if f.Asyncness == types.Unknown {
			unresolved[f.Fullname] = true
		}
	}

	// Worklist fixed point (spec.md §4.4): repeatedly classify every
	// still-unknown function until nothing more can be concluded.
	for {
		progressed := false
		for name := range unresolved {
			f := byName[name]
			async, deps := classify(f, byName)
			if async {
				f.Asyncness = types.Async
				delete(unresolved, name)
				progressed = true
				continue
			}
			if len(deps) == 0 {
				f.Asyncness = types.Sync
				delete(unresolved, name)
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	// "After the worklist stabilizes, any function with only unresolved
	// dependencies is marked sync" (spec.md §4.4).
	for name := range unresolved {
		byName[name].Asyncness = types.Sync
	}

	rewrite(prog, byName)

	return verifyNoSyncAsyncLeak(prog, byName)
}

func funcsByName(prog *mir.Program) map[string]*mir.Func {
	out := make(map[string]*mir.Func, len(prog.Funcs))
	for _, f := range prog.Funcs {
		out[f.Fullname] = f
	}
	return out
}

// calleeTarget resolves the statically-known function a FunCall's callee
// refers to, if any. A VTableRef callee resolves when its method fullname
// happens to be a fullname this program also defines (e.g. same-module
// calls); anything else, a WTableRef included, is indirect.
func calleeTarget(callee mir.Expr, byName map[string]*mir.Func) (*mir.Func, bool, bool) {
	switch c := callee.(type) {
	case *mir.FuncRef:
		f, ok := byName[c.Fullname]
		return f, ok, true
	case *mir.VTableRef:
		f, ok := byName[c.MethodFullname]
		return f, ok, true
	default:
		// WTableRef, lambda-ivar dispatch, or anything else: genuinely
		// indirect. "unknown ⇒ conservatively async" (spec.md §4.4).
		return nil, false, false
	}
}

// classify walks fn's body, returning whether it's definitely async and,
// if not, the set of still-unknown peers it depends on.
func classify(fn *mir.Func, byName map[string]*mir.Func) (bool, map[string]bool) {
	deps := make(map[string]bool)
	async := false
	mir.Walk(fn.Body, func(e mir.Expr) {
		if async {
			return
		}
		switch v := e.(type) {
		case *mir.Spawn:
			// spawn's task executes independently (spec.md §5); it does
			// not make the spawning function itself async.
		case *mir.FunCall:
			target, resolved, wasDirect := calleeTarget(v.Callee, byName)
			if !wasDirect {
				// Indirect call (module/wtable or lambda dispatch):
				// conservatively async unless the callee's own FuncRef
				// (when present, e.g. a VTableRef case we can't resolve)
				// carries a known-sync tag. MIR doesn't retain a static
				// function type on these callees, so §4.4's "unknown ⇒
				// conservatively async" applies directly.
				async = true
				return
			}
			if !resolved {
				// Callee not defined in this program (foreign/runtime
				// extern): treat as statically known sync unless it is
				// self-recursion, matching externs being "marked from
				// their declaration" (spec.md §4.4) — externs default to
				// sync here since the runtime contract (§6) names only
				// sync helper symbols; async externs would have arrived
				// pre-marked on a FuncRef already.
				return
			}
			if target.Fullname == fn.Fullname {
				// "call to self ⇒ ignored" (spec.md §4.4).
				return
			}
			switch target.Asyncness {
			case types.Async:
				async = true
			case types.Sync, types.Lowered:
				// no effect
			default:
				deps[target.Fullname] = true
			}
		}
	})
	return async, deps
}

// rewrite updates every FuncRef's carried Asyncness tag to the
// now-resolved value (other callees are left as they are), defaulting any
// FuncRef that is still Unknown (a dangling forward
// reference the worklist never reached, which a well-formed program
// never produces) to Async per spec.md §4.4's rewrite-pass rule.
func rewrite(prog *mir.Program, byName map[string]*mir.Func) {
	for _, f := range prog.Funcs {
		mir.Walk(f.Body, func(e mir.Expr) {
			if ref, ok := e.(*mir.FuncRef); ok {
				if target, ok := byName[ref.Fullname]; ok {
					ref.Asyncness = target.Asyncness
				} else if ref.Asyncness == types.Unknown {
					ref.Asyncness = types.Async
				}
			}
		})
	}
	for _, c := range prog.Consts {
		mir.Walk(c.Value, func(e mir.Expr) {
			if ref, ok := e.(*mir.FuncRef); ok {
				if target, ok := byName[ref.Fullname]; ok {
					ref.Asyncness = target.Asyncness
				}
			}
		})
	}
}

// verifyNoSyncAsyncLeak is the assertion pass of spec.md §4.4: no Sync
// function may transitively contain a call statically known to be Async.
func verifyNoSyncAsyncLeak(prog *mir.Program, byName map[string]*mir.Func) error {
	for _, f := range prog.Funcs {
		if f.Asyncness != types.Sync {
			continue
		}
		var bad error
		mir.Walk(f.Body, func(e mir.Expr) {
			if bad != nil {
				return
			}
			call, ok := e.(*mir.FunCall)
			if !ok {
				return
			}
			target, resolved, wasDirect := calleeTarget(call.Callee, byName)
			if !wasDirect || !resolved || target.Fullname == f.Fullname {
				return
			}
			if target.Asyncness == types.Async {
				bad = cerr.Bug(cerr.Loc{}, fmt.Sprintf("func %s", f.Fullname),
					"sync function %q calls async function %q", f.Fullname, target.Fullname)
			}
		})
		if bad != nil {
			return bad
		}
	}
	return nil
}
