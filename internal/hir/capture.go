package hir

import (
	"shiika/ast"
	"shiika/internal/cerr"
	"shiika/internal/types"
)

// resolveVarRef implements spec.md §4.2's name resolution: walk the
// context stack outward; when the name is found above a Lambda frame,
// every intervening lambda gets a capture record appended and the
// reference is rewritten to a capture index in the innermost lambda.
func (m *Maker) resolveVarRef(v *ast.VarRef) (Expr, error) {
	var (
		lambdasCrossed []*ctxFrame
		ownerFrame     *ctxFrame
		entry          *lvarEntry
	)
	m.cs.eachFrame(func(f *ctxFrame) bool {
		if f.Kind == LambdaFrame {
			lambdasCrossed = append(lambdasCrossed, f)
		}
		if f.lvars != nil {
			if e, ok := f.lvars[v.Name]; ok {
				ownerFrame = f
				entry = e
				return false
			}
		}
		return true
	})

	if entry == nil {
		return nil, cerr.NameErr(v.Loc, m.scopeName(), "undefined local variable %q", v.Name)
	}

	if ownerFrame.Kind == LambdaFrame {
		// The owning lambda reads its own locals directly; only the lambdas
		// nested inside it capture.
		lambdasCrossed = lambdasCrossed[:len(lambdasCrossed)-1]
	}
	if len(lambdasCrossed) == 0 {
		return &LVarRef{exprBase{entry.Ty}, v.Name}, nil
	}

	// The variable is declared outside at least one lambda boundary: every
	// intervening lambda records a capture (spec.md §3's lambda capture
	// descriptor). Every capture is by value: the closure holds a copy taken
	// when the lambda is created, no lvar is promoted to a heap cell, and a
	// later write on either side is not seen by the other.
	return m.appendCaptureChain(lambdasCrossed, v.Name, entry)
}

// appendCaptureChain records a capture on each lambda frame from the
// outermost crossed lambda down to the innermost, using CapFwd for every
// frame but the one adjacent to the declaration (spec.md §3: "Forwarded
// captures ... carry CapFwd{outer_cidx}").
func (m *Maker) appendCaptureChain(lambdas []*ctxFrame, name string, entry *lvarEntry) (Expr, error) {
	// lambdas is innermost-first (eachFrame walks inner to outer); process
	// outermost-first so each CapFwd can point at the index just assigned
	// in its enclosing lambda.
	idx := m.addCapture(lambdas[len(lambdas)-1], name, entry.Ty, CapLVar{Name: name})
	for i := len(lambdas) - 2; i >= 0; i-- {
		idx = m.addCapture(lambdas[i], name, entry.Ty, CapFwd{OuterIdx: idx})
	}
	return &LVarRef{exprBase{entry.Ty}, name}, nil
}

// addCapture appends (or reuses) a capture entry on lambda frame f for the
// given source name, returning its index within f's capture list.
func (m *Maker) addCapture(f *ctxFrame, name string, ty types.Type, detail CaptureDetail) int {
	if f.lambda == nil {
		f.lambda = &lambdaFrameState{CaptureOf: map[string]int{}}
	}
	if idx, ok := f.lambda.CaptureOf[name]; ok {
		return idx
	}
	idx := len(f.lambda.Captures)
	f.lambda.Captures = append(f.lambda.Captures, Capture{Ty: ty, Detail: detail})
	f.lambda.CaptureOf[name] = idx
	return idx
}

// resolveIVarRef resolves `@name` against the enclosing method's owner
// class.
func (m *Maker) resolveIVarRef(v *ast.IVarRef) (Expr, error) {
	var ms *methodFrameState
	m.cs.eachFrame(func(f *ctxFrame) bool {
		if f.method != nil {
			ms = f.method
			return false
		}
		return true
	})
	if ms == nil {
		return nil, cerr.ProgramErr(v.Loc, m.scopeName(), "@%s referenced outside a method", v.Name)
	}
	ci := m.dict.Get(ms.OwnerClass)
	if ci == nil {
		return nil, cerr.Bug(v.Loc, m.scopeName(), "unknown owner class %q", ms.OwnerClass)
	}
	iv, ok := ci.IVars[v.Name]
	if !ok {
		if ms.IsInit {
			// Referenced before assignment inside initialize: not yet an
			// error at the HIR level, since declaration order within
			// initialize is the thing declaring it; report unresolved.
			return nil, cerr.NameErr(v.Loc, m.scopeName(), "ivar @%s read before it is declared in initialize", v.Name)
		}
		return nil, cerr.NameErr(v.Loc, m.scopeName(), "unknown ivar @%s on %s", v.Name, ms.OwnerClass)
	}
	ty := iv.Type
	if ty == nil {
		ty = types.Object
	}
	return &IVarRef{exprBase{ty}, v.Name, iv.Index}, nil
}
