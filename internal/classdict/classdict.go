// Package classdict implements C2: the class dictionary. It is indexed
// once per compilation (spec.md §3, "Lifecycle") from the AST's class and
// module definitions, then queried read-only by every later stage.
package classdict

import (
	"fmt"

	"shiika/internal/cerr"
	"shiika/internal/types"
)

// MethodSig is a method's resolved signature.
type MethodSig struct {
	Fullname  string // owning-type-qualified, e.g. "Array#first"
	FirstName string
	Params    []types.Type
	Ret       types.Type
	Asyncness types.Asyncness
	// TyParams are the method's own type parameters (spec.md §4.1,
	// "Method-method lookup substitutes ... into the method's type
	// parameters").
	TyParams []TypeParamDecl
}

// TypeParamDecl is a declared type parameter with variance, shared by
// classes and methods.
type TypeParamDecl struct {
	Name     string
	Variance int // types.Covariant/Contravariant/Invariant mirrored here to avoid an import cycle with ast.
}

// IVar describes one instance variable slot.
type IVar struct {
	Index    int
	Type     types.Type
	Readonly bool
}

// ClassInfo is one entry in the dictionary: a class or module record.
type ClassInfo struct {
	Fullname   string
	TyParams   []TypeParamDecl
	Super      string // "" for Object and modules.
	Includes   []string
	IsModule   bool
	IsForeign  bool // imported from a serialized library bundle (spec.md §6).

	// MethodOrder preserves insertion order for vtable determinism
	// (spec.md §3 invariant).
	MethodOrder []string
	Methods     map[string]MethodSig
	IVars       map[string]IVar
}

func newClassInfo(fullname string) *ClassInfo {
	return &ClassInfo{
		Fullname: fullname,
		Methods:  make(map[string]MethodSig),
		IVars:    make(map[string]IVar),
	}
}

// AddMethod registers sig under its first name, preserving insertion
// order. Returns a fatal duplicate-method error if the first name is
// already registered on this exact class (spec.md §4.1 Failures).
func (c *ClassInfo) AddMethod(sig MethodSig) error {
	if _, ok := c.Methods[sig.FirstName]; ok {
		return cerr.New(cerr.Program, cerr.Loc{}, c.Fullname,
			"duplicate method %q on %s", sig.FirstName, c.Fullname)
	}
	c.Methods[sig.FirstName] = sig
	c.MethodOrder = append(c.MethodOrder, sig.FirstName)
	return nil
}

// Dict is the class dictionary: fullname -> ClassInfo.
type Dict struct {
	Classes map[string]*ClassInfo
}

// New returns an empty dictionary seeded with the bootstrap classes named
// in spec.md §4.7 ("Three bootstrap classes ... are initialized first").
func New() *Dict {
	d := &Dict{Classes: make(map[string]*ClassInfo)}
	obj := newClassInfo("Object")
	d.Classes["Object"] = obj
	for _, name := range []string{"Class", "Metaclass", "Never", "Void"} {
		ci := newClassInfo(name)
		ci.Super = "Object"
		d.Classes[name] = ci
	}
	return d
}

// AddClass registers a new class or module in the dictionary. It is fatal
// (spec.md §4.1) to register an unknown superclass.
func (d *Dict) AddClass(ci *ClassInfo) error {
	if ci.Super != "" {
		if _, ok := d.Classes[ci.Super]; !ok {
			return cerr.New(cerr.Name, cerr.Loc{}, ci.Fullname,
				"unknown superclass %q of %s", ci.Super, ci.Fullname)
		}
	}
	d.Classes[ci.Fullname] = ci
	return nil
}

// Get returns the ClassInfo for fullname, or nil.
func (d *Dict) Get(fullname string) *ClassInfo {
	return d.Classes[fullname]
}

// Supertype returns the fullname of ty's declared superclass, or "" if ty
// has none (Object, or a module).
func (d *Dict) Supertype(ty types.Type) (string, bool) {
	ct, ok := ty.(*types.ClassType)
	if !ok {
		return "", false
	}
	ci := d.Get(ct.Erasure().Base)
	if ci == nil || ci.Super == "" {
		return "", false
	}
	return ci.Super, true
}

// AncestorTypes returns the fullnames of ty and every ancestor up to and
// including Object, nearest first.
func (d *Dict) AncestorTypes(ty types.Type) []string {
	ct, ok := ty.(*types.ClassType)
	if !ok {
		return nil
	}
	out := []string{ct.Erasure().Base}
	cur := ct.Erasure().Base
	for {
		ci := d.Get(cur)
		if ci == nil || ci.Super == "" {
			return out
		}
		out = append(out, ci.Super)
		cur = ci.Super
	}
}

// LookupMethod walks the inheritance chain and included modules for name,
// returning the signature and the fullname of the type it was actually
// found in (so the call site can insert an upcast per spec.md §4.1).
func (d *Dict) LookupMethod(receiver types.Type, name string, loc cerr.Loc) (MethodSig, string, error) {
	ct, ok := receiver.(*types.ClassType)
	if !ok {
		return MethodSig{}, "", cerr.NameErr(loc, "", "cannot call method %q on non-class type %s", name, receiver)
	}
	base := ct.Erasure().Base
	for cur := base; cur != ""; {
		ci := d.Get(cur)
		if ci == nil {
			break
		}
		if sig, ok := ci.Methods[name]; ok {
			return sig, cur, nil
		}
		for _, incName := range ci.Includes {
			if sig, found := d.lookupModuleMethod(incName, name, ct); found {
				return sig, cur, nil
			}
		}
		cur = ci.Super
	}
	return MethodSig{}, "", cerr.NameErr(loc, "", "undefined method %q for %s", name, receiver)
}

// lookupModuleMethod substitutes the including class's type arguments into
// the module method's type parameters (spec.md §4.1).
func (d *Dict) lookupModuleMethod(moduleName, name string, receiver *types.ClassType) (MethodSig, bool) {
	mi := d.Get(moduleName)
	if mi == nil {
		return MethodSig{}, false
	}
	sig, ok := mi.Methods[name]
	if !ok {
		return MethodSig{}, false
	}
	return substituteSig(sig, receiver.TyArgs), true
}

func substituteSig(sig MethodSig, tyArgs []types.Type) MethodSig {
	out := sig
	out.Params = make([]types.Type, len(sig.Params))
	for i, p := range sig.Params {
		out.Params[i] = SubstituteType(p, tyArgs)
	}
	out.Ret = SubstituteType(sig.Ret, tyArgs)
	return out
}

// SubstituteType replaces every class-level TyParamRef in t (by index) with
// the corresponding entry of tyArgs, recursing into ClassType arguments.
// Method-level TyParamRefs are left untouched: they're only resolvable at
// a call site, against the arguments actually passed (C4), not against a
// receiver's class type arguments.
func SubstituteType(t types.Type, tyArgs []types.Type) types.Type {
	switch tt := t.(type) {
	case *types.TyParamRef:
		if tt.Kind == types.ClassParam && tt.Index >= 0 && tt.Index < len(tyArgs) {
			return tyArgs[tt.Index]
		}
		return tt
	case *types.ClassType:
		if len(tt.TyArgs) == 0 {
			return tt
		}
		args := make([]types.Type, len(tt.TyArgs))
		for i, a := range tt.TyArgs {
			args[i] = SubstituteType(a, tyArgs)
		}
		return &types.ClassType{Base: tt.Base, TyArgs: args, IsMeta: tt.IsMeta}
	default:
		return t
	}
}

// FindIVar looks up an ivar by name on class, without walking to
// ancestors beyond what's already folded into the class's own IVars map
// (ivars are inherited into the map at indexing time, §4.2).
func (d *Dict) FindIVar(classFullname, name string) (IVar, error) {
	ci := d.Get(classFullname)
	if ci == nil {
		return IVar{}, cerr.NameErr(cerr.Loc{}, classFullname, "unknown class %q", classFullname)
	}
	iv, ok := ci.IVars[name]
	if !ok {
		return IVar{}, cerr.NameErr(cerr.Loc{}, classFullname, "unknown ivar %q on %s", name, classFullname)
	}
	return iv, nil
}

func (d *Dict) String() string {
	return fmt.Sprintf("Dict{%d classes}", len(d.Classes))
}
