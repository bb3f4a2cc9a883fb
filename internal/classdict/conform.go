package classdict

import "shiika/internal/types"

// Conforms reports whether a is a subtype of b, implementing spec.md
// §4.1's "structural on function types ... nominal on classes/modules".
// Grounded on skc_ast2hir/src/type_system/subtyping.rs.
func (d *Dict) Conforms(a, b types.Type) bool {
	if types.IsNever(a) {
		return true
	}
	if sameType(a, b) {
		return true
	}
	if af, aok := a.(*types.FunType); aok {
		bf, bok := b.(*types.FunType)
		if !bok {
			return false
		}
		return d.funConforms(af, bf)
	}
	if ap, aok := a.(*types.TyParamRef); aok {
		if bp, bok := b.(*types.TyParamRef); bok {
			return ap.Kind == bp.Kind && ap.Index == bp.Index
		}
		if ap.Upper != nil {
			return d.Conforms(ap.Upper, b)
		}
		return d.Conforms(types.Object, b)
	}
	if bp, bok := b.(*types.TyParamRef); bok {
		if bp.Upper != nil {
			return d.Conforms(a, bp.Upper)
		}
		return d.Conforms(a, types.Object)
	}
	ac, aok := a.(*types.ClassType)
	bc, bok := b.(*types.ClassType)
	if !aok || !bok {
		return false
	}
	mod1 := d.isModule(ac)
	mod2 := d.isModule(bc)
	switch {
	case mod1 && mod2:
		return false
	case mod1 && !mod2:
		return types.IsObject(bc)
	case !mod1 && mod2:
		return d.classIncludesModule(ac, bc)
	default:
		return d.classConformsToClass(ac, bc)
	}
}

// funConforms is contravariant in params, covariant in return.
func (d *Dict) funConforms(a, b *types.FunType) bool {
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if !d.Conforms(b.Params[i], a.Params[i]) {
			return false
		}
	}
	if !a.Asyncness.Same(b.Asyncness) {
		return false
	}
	return d.Conforms(a.Ret, b.Ret)
}

func (d *Dict) isModule(t *types.ClassType) bool {
	ci := d.Get(t.Erasure().Base)
	return ci != nil && ci.IsModule
}

func (d *Dict) classIncludesModule(class, module *types.ClassType) bool {
	for _, anc := range d.AncestorTypes(class) {
		ci := d.Get(anc)
		if ci == nil {
			continue
		}
		for _, incName := range ci.Includes {
			if incName == module.Erasure().Base {
				return true
			}
		}
	}
	return false
}

func (d *Dict) classConformsToClass(a, b *types.ClassType) bool {
	for _, anc := range d.AncestorTypes(a) {
		if anc != b.Erasure().Base {
			continue
		}
		if len(b.TyArgs) == 0 {
			return true
		}
		if len(a.TyArgs) == len(b.TyArgs) {
			allNever := true
			for _, ta := range a.TyArgs {
				if !types.IsNever(ta) {
					allNever = false
					break
				}
			}
			if allNever {
				return true
			}
		}
		return sameType(a, b)
	}
	return false
}

func sameType(a, b types.Type) bool {
	return a.Fullname() == b.Fullname()
}

// NearestCommonAncestor returns the LCA of a and b per spec.md §4.1's
// tie-break rule: Some(Object) when either argument literally is Object,
// and None when the only common ancestor is Object. Ancestors are compared
// by base name only and the result carries no type arguments, so
// specialized ancestors that share a base are not told apart.
func (d *Dict) NearestCommonAncestor(a, b types.Type) (types.Type, bool) {
	if sameType(a, b) {
		return a, true
	}
	if types.IsObject(a) || types.IsObject(b) {
		return types.Object, true
	}
	ac, aok := a.(*types.ClassType)
	bc, bok := b.(*types.ClassType)
	if !aok || !bok {
		return nil, false
	}
	ancB := d.AncestorTypes(bc)
	for _, nb := range ancB {
		for _, na := range d.AncestorTypes(ac) {
			if na != nb {
				continue
			}
			if na == "Object" {
				return nil, false
			}
			return &types.ClassType{Base: na}, true
		}
	}
	return nil, false
}
