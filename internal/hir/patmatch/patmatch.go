// Package patmatch implements C5: lowering match-clause patterns into
// test+bind components and then into nested `if`s, per spec.md §4.3. It is
// decoupled from internal/hir's concrete node types (spec.md §2's
// dependency order puts C5 ahead of C3) via the Builder interface: the
// caller (internal/hir) supplies the actual expression-construction
// primitives, patmatch only supplies the control structure.
package patmatch

import "fmt"

// Pattern is one of the four pattern kinds of spec.md §4.3.
type Pattern interface{ patternNode() }

type Wildcard struct{}
type Var struct{ Name string }

// Literal holds the already-built, already-typed literal expression the
// target is compared against.
type Literal struct{ Value Expr }
type Extractor struct {
	Qualified string
	TyArgs    []interface{} // surface type-ref tokens, resolved by Builder.ResolveExtractor.
	Params    []Pattern
}

func (Wildcard) patternNode()  {}
func (Var) patternNode()       {}
func (Literal) patternNode()   {}
func (Extractor) patternNode() {}

// Expr is any already-typed expression, opaque to this package.
type Expr interface {
	Type() interface{}
}

// Clause is one `when pattern; body...` arm.
type Clause struct {
	Pattern Pattern
	Body    []Expr
}

// Field describes one projected field of an extractor pattern's resolved
// class (spec.md §4.3: "using the declared initializer parameters of the
// class as field order").
type Field struct {
	Name string
	Ty   interface{}
}

// Dict is the subset of the class dictionary patmatch needs.
type Dict interface {
	Conforms(a, b interface{}) bool
	LCA(a, b interface{}) (interface{}, bool)
	IsNever(interface{}) bool
	IsVoid(interface{}) bool
	VoidTy() interface{}
}

// Builder supplies the concrete expression-construction primitives.
type Builder interface {
	// ClassTest returns a bool-typed Expr testing that target's runtime
	// class equals resolvedClass.
	ClassTest(target Expr, resolvedClass string) Expr
	// LiteralTest returns a bool-typed Expr testing target for equality
	// against an already-built literal expression.
	LiteralTest(target Expr, literal Expr) Expr
	// Project returns an Expr calling the accessor for field on target.
	Project(target Expr, field Field) Expr
	// BindAssign returns an Expr that declares a clause-scoped lvar name
	// bound to value.
	BindAssign(name string, value Expr) Expr
	// ResolveExtractor resolves the extractor's class fullname (specialized
	// against target's type arguments where applicable) and its field
	// order, and verifies the specialized type conforms to targetTy
	// (spec.md §4.3 step 1).
	ResolveExtractor(qualified string, tyArgs []interface{}, targetTy interface{}) (resolvedClass string, fields []Field, err error)
	// If builds a conditional value-producing expression.
	If(cond Expr, then, els []Expr, resultTy interface{}) Expr
	// Panic builds a terminal expression that panics with msg.
	Panic(msg string) Expr
	// Seq wraps a list of expressions into one value-producing expression
	// of type ty (the value of the last one).
	Seq(exprs []Expr, ty interface{}) Expr
}

// component is one test or bind step produced while decomposing a pattern.
type component struct {
	isBind bool
	test   Expr   // non-nil when !isBind
	name   string // non-nil when isBind
	value  Expr
}

// Lower implements spec.md §4.3: decompose each clause into components,
// compile each to nested `if`s with a trailing synthetic panic, and
// compute the result type as the LCA of clause body types (Never-typed
// clauses ignored, Void propagated).
func Lower(b Builder, d Dict, target Expr, clauses []Clause) (Expr, interface{}, error) {
	resultTy, err := resultType(d, clauses)
	if err != nil {
		return nil, nil, err
	}

	tail := b.Panic("no matching clause found")
	for i := len(clauses) - 1; i >= 0; i-- {
		clauseExpr, err := lowerClause(b, clauses[i], target, resultTy)
		if err != nil {
			return nil, nil, err
		}
		comps, err := decompose(b, clauses[i].Pattern, target)
		if err != nil {
			return nil, nil, err
		}
		tail = buildNestedIf(b, comps, clauseExpr, tail, resultTy)
	}
	return tail, resultTy, nil
}

// lowerClause wraps a clause's body expressions into a single
// value-producing expression, without the pattern's test/bind prefix
// (those are threaded in by buildNestedIf).
func lowerClause(b Builder, c Clause, target Expr, resultTy interface{}) (Expr, error) {
	return b.Seq(c.Body, resultTy), nil
}

// decompose walks a pattern and produces its sequence of components
// (spec.md §4.3).
func decompose(b Builder, p Pattern, target Expr) ([]component, error) {
	switch v := p.(type) {
	case Wildcard:
		return nil, nil
	case Var:
		return []component{{isBind: true, name: v.Name, value: target}}, nil
	case Literal:
		return []component{{test: b.LiteralTest(target, v.Value)}}, nil
	case Extractor:
		resolved, fields, err := b.ResolveExtractor(v.Qualified, v.TyArgs, target.Type())
		if err != nil {
			return nil, err
		}
		comps := []component{{test: b.ClassTest(target, resolved)}}
		if len(fields) != len(v.Params) {
			return nil, fmt.Errorf("pattern %s expects %d fields, got %d", v.Qualified, len(fields), len(v.Params))
		}
		for i, sub := range v.Params {
			proj := b.Project(target, fields[i])
			subComps, err := decompose(b, sub, proj)
			if err != nil {
				return nil, err
			}
			comps = append(comps, subComps...)
		}
		return comps, nil
	default:
		return nil, fmt.Errorf("unknown pattern type %T", p)
	}
}

// buildNestedIf assembles components into the nested-if chain of spec.md
// §4.3: "A clause compiles to nested ifs with the tests as conditions and
// the binds as lvar-assigns preceding the body."
func buildNestedIf(b Builder, comps []component, body, elseBranch Expr, resultTy interface{}) Expr {
	// Walk from the last component backward: binds accumulate into a
	// prefix that precedes `body`; a test wraps everything built so far
	// in an `if cond then <built-so-far> else elseBranch`.
	built := body
	prefix := []Expr(nil)
	flush := func() {
		if len(prefix) == 0 {
			return
		}
		all := append(append([]Expr(nil), prefix...), built)
		built = b.Seq(all, resultTy)
		prefix = nil
	}
	for i := len(comps) - 1; i >= 0; i-- {
		c := comps[i]
		if c.isBind {
			prefix = append([]Expr{b.BindAssign(c.name, c.value)}, prefix...)
			continue
		}
		flush()
		built = b.If(c.test, []Expr{built}, []Expr{elseBranch}, resultTy)
	}
	flush()
	return built
}

// resultType computes the LCA of clause body types, ignoring Never-typed
// clauses and propagating Void if any clause is Void (spec.md §4.3).
func resultType(d Dict, clauses []Clause) (interface{}, error) {
	var acc interface{}
	sawVoid := false
	for _, c := range clauses {
		if len(c.Body) == 0 {
			continue
		}
		ty := c.Body[len(c.Body)-1].Type()
		if d.IsNever(ty) {
			continue
		}
		if d.IsVoid(ty) {
			sawVoid = true
			continue
		}
		if acc == nil {
			acc = ty
			continue
		}
		lca, ok := d.LCA(acc, ty)
		if !ok {
			return nil, fmt.Errorf("match clauses have no common ancestor type")
		}
		acc = lca
	}
	if sawVoid {
		return d.VoidTy(), nil
	}
	if acc == nil {
		return d.VoidTy(), nil
	}
	return acc, nil
}
