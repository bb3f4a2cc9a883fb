package patmatch

import (
	"fmt"
	"testing"
)

// fakeExpr is the test package's opaque, already-typed Expr: just a tag
// string describing what node it represents, plus its static type.
type fakeExpr struct {
	tag string
	ty  string
}

func (e *fakeExpr) Type() interface{} { return e.ty }
func (e *fakeExpr) String() string    { return e.tag }

func lit(tag, ty string) *fakeExpr { return &fakeExpr{tag: tag, ty: ty} }

// fakeBuilder records the shape it was asked to build as nested fakeExpr
// tags, so assertions can pattern-match on tag strings instead of needing
// a real expression tree.
type fakeBuilder struct{}

func (fakeBuilder) ClassTest(target Expr, resolvedClass string) Expr {
	return &fakeExpr{tag: fmt.Sprintf("classtest(%s,%s)", target.(*fakeExpr).tag, resolvedClass), ty: "Bool"}
}
func (fakeBuilder) LiteralTest(target, literal Expr) Expr {
	return &fakeExpr{tag: fmt.Sprintf("littest(%s,%s)", target.(*fakeExpr).tag, literal.(*fakeExpr).tag), ty: "Bool"}
}
func (fakeBuilder) Project(target Expr, field Field) Expr {
	return &fakeExpr{tag: fmt.Sprintf("project(%s,%s)", target.(*fakeExpr).tag, field.Name), ty: field.Ty.(string)}
}
func (fakeBuilder) BindAssign(name string, value Expr) Expr {
	return &fakeExpr{tag: fmt.Sprintf("bind(%s,%s)", name, value.(*fakeExpr).tag), ty: "Void"}
}
func (fakeBuilder) ResolveExtractor(qualified string, tyArgs []interface{}, targetTy interface{}) (string, []Field, error) {
	if qualified == "Maybe::Some" {
		return "Maybe::Some", []Field{{Name: "value", Ty: "Int"}}, nil
	}
	return "", nil, fmt.Errorf("unknown extractor %q", qualified)
}
func (fakeBuilder) If(cond Expr, then, els []Expr, resultTy interface{}) Expr {
	// patmatch always calls If with single-element then/els slices; use
	// their tags directly so test expectations stay readable.
	return &fakeExpr{tag: fmt.Sprintf("if(%s then %s else %s)", cond.(*fakeExpr).tag, then[0].(*fakeExpr).tag, els[0].(*fakeExpr).tag), ty: resultTy.(string)}
}
func (fakeBuilder) Panic(msg string) Expr {
	return &fakeExpr{tag: "panic(" + msg + ")", ty: "Never"}
}
func (fakeBuilder) Seq(exprs []Expr, ty interface{}) Expr {
	return &fakeExpr{tag: seqTag(exprs), ty: ty.(string)}
}

func seqTag(exprs []Expr) string {
	out := "["
	for i, e := range exprs {
		if i > 0 {
			out += ";"
		}
		out += e.(*fakeExpr).tag
	}
	return out + "]"
}

// fakeDict is the subset of the class dictionary patmatch needs, keyed on
// plain string type tags.
type fakeDict struct {
	ancestors map[string][]string // class -> ancestor chain, nearest first, Object last.
}

func (d fakeDict) Conforms(a, b interface{}) bool { return a == b }
func (d fakeDict) LCA(a, b interface{}) (interface{}, bool) {
	as, bs := a.(string), b.(string)
	if as == bs {
		return as, true
	}
	for _, anc := range d.ancestors[as] {
		for _, bnc := range d.ancestors[bs] {
			if anc == bnc {
				if anc == "Object" {
					return nil, false
				}
				return anc, true
			}
		}
	}
	return nil, false
}
func (d fakeDict) IsNever(t interface{}) bool { return t == "Never" }
func (d fakeDict) IsVoid(t interface{}) bool  { return t == "Void" }
func (d fakeDict) VoidTy() interface{}        { return "Void" }

func TestLowerWildcardProducesNoTest(t *testing.T) {
	target := lit("target", "Int")
	clauses := []Clause{{Pattern: Wildcard{}, Body: []Expr{lit("body", "Int")}}}

	got, resultTy, err := Lower(fakeBuilder{}, fakeDict{}, target, clauses)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	if resultTy.(string) != "Int" {
		t.Fatalf("resultTy = %v, want Int", resultTy)
	}
	// A bare wildcard has zero components, so the whole match degenerates
	// to the clause body with no `if` wrapper at all.
	if got.(*fakeExpr).tag != "[body]" {
		t.Fatalf("Lower(Wildcard) = %q, want the clause body unwrapped", got.(*fakeExpr).tag)
	}
}

func TestLowerLiteralPatternWrapsInIf(t *testing.T) {
	target := lit("target", "Int")
	one := lit("1", "Int")
	clauses := []Clause{
		{Pattern: Literal{Value: one}, Body: []Expr{lit("matched", "String")}},
	}
	got, _, err := Lower(fakeBuilder{}, fakeDict{}, target, clauses)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	tag := got.(*fakeExpr).tag
	if tag != "if(littest(target,1) then [matched] else panic(no matching clause found))" {
		t.Fatalf("Lower(Literal) = %q, unexpected shape", tag)
	}
}

func TestLowerVarPatternBindsWithoutATest(t *testing.T) {
	target := lit("target", "Int")
	clauses := []Clause{
		{Pattern: Var{Name: "x"}, Body: []Expr{lit("usex", "Int")}},
	}
	got, _, err := Lower(fakeBuilder{}, fakeDict{}, target, clauses)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	tag := got.(*fakeExpr).tag
	if tag != "[bind(x,target);[usex]]" {
		t.Fatalf("Lower(Var) = %q, want a bind prefix then the body, no if", tag)
	}
}

func TestLowerExtractorPatternProjectsFieldsInOrder(t *testing.T) {
	target := lit("target", "Maybe")
	clauses := []Clause{
		{
			Pattern: Extractor{Qualified: "Maybe::Some", Params: []Pattern{Var{Name: "v"}}},
			Body:    []Expr{lit("body", "Int")},
		},
	}
	got, _, err := Lower(fakeBuilder{}, fakeDict{}, target, clauses)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	tag := got.(*fakeExpr).tag
	want := "if(classtest(target,Maybe::Some) then [bind(v,project(target,value));[body]] else panic(no matching clause found))"
	if tag != want {
		t.Fatalf("Lower(Extractor) = %q, want %q", tag, want)
	}
}

func TestLowerExtractorFieldArityMismatchIsError(t *testing.T) {
	target := lit("target", "Maybe")
	clauses := []Clause{
		{
			Pattern: Extractor{Qualified: "Maybe::Some", Params: []Pattern{Var{Name: "a"}, Var{Name: "b"}}},
			Body:    []Expr{lit("body", "Int")},
		},
	}
	if _, _, err := Lower(fakeBuilder{}, fakeDict{}, target, clauses); err == nil {
		t.Fatal("Lower() accepted an extractor pattern with too many sub-patterns for its fields")
	}
}

func TestLowerUnresolvableExtractorIsError(t *testing.T) {
	target := lit("target", "Maybe")
	clauses := []Clause{
		{Pattern: Extractor{Qualified: "Nope::Ghost"}, Body: []Expr{lit("body", "Int")}},
	}
	if _, _, err := Lower(fakeBuilder{}, fakeDict{}, target, clauses); err == nil {
		t.Fatal("Lower() accepted an unresolvable extractor qualifier")
	}
}

func TestLowerMultipleClausesChainElseBranches(t *testing.T) {
	target := lit("target", "Int")
	one := lit("1", "Int")
	clauses := []Clause{
		{Pattern: Literal{Value: one}, Body: []Expr{lit("first", "Int")}},
		{Pattern: Wildcard{}, Body: []Expr{lit("second", "Int")}},
	}
	got, _, err := Lower(fakeBuilder{}, fakeDict{}, target, clauses)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	tag := got.(*fakeExpr).tag
	want := "if(littest(target,1) then [first] else [second])"
	if tag != want {
		t.Fatalf("Lower(multi-clause) = %q, want %q", tag, want)
	}
}

func TestResultTypeIgnoresNeverPropagatesVoid(t *testing.T) {
	clauses := []Clause{
		{Pattern: Wildcard{}, Body: []Expr{lit("a", "Never")}},
		{Pattern: Wildcard{}, Body: []Expr{lit("b", "Void")}},
	}
	_, resultTy, err := Lower(fakeBuilder{}, fakeDict{}, lit("t", "Int"), clauses)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	if resultTy.(string) != "Void" {
		t.Fatalf("resultTy = %v, want Void (Never ignored, Void propagated)", resultTy)
	}
}

func TestResultTypeTakesLCAOfClauseBodies(t *testing.T) {
	d := fakeDict{ancestors: map[string][]string{
		"Dog": {"Dog", "Animal", "Object"},
		"Cat": {"Cat", "Animal", "Object"},
	}}
	clauses := []Clause{
		{Pattern: Wildcard{}, Body: []Expr{lit("a", "Dog")}},
		{Pattern: Wildcard{}, Body: []Expr{lit("b", "Cat")}},
	}
	_, resultTy, err := Lower(fakeBuilder{}, d, lit("t", "Int"), clauses)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	if resultTy.(string) != "Animal" {
		t.Fatalf("resultTy = %v, want Animal (LCA of Dog and Cat)", resultTy)
	}
}

func TestResultTypeNoCommonAncestorIsError(t *testing.T) {
	d := fakeDict{ancestors: map[string][]string{
		"Dog": {"Dog", "Object"},
		"Car": {"Car", "Object"},
	}}
	clauses := []Clause{
		{Pattern: Wildcard{}, Body: []Expr{lit("a", "Dog")}},
		{Pattern: Wildcard{}, Body: []Expr{lit("b", "Car")}},
	}
	if _, _, err := Lower(fakeBuilder{}, d, lit("t", "Int"), clauses); err == nil {
		t.Fatal("Lower() accepted clauses whose only common ancestor is Object")
	}
}
