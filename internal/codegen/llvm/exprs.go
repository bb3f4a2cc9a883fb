package llvm

import (
	"fmt"

	"shiika/internal/mir"
	"shiika/internal/types"

	"tinygo.org/x/go-llvm"
)

// Sentinel integer tags for the three pseudo-values control flow ever
// inspects directly (spec.md §3's pseudo-vars). These are never heap
// objects: nothing in this compiler's own generated code ever dispatches a
// method call on True/False/Null, only `if`/`while` conditions and pointer
// equality against Null, so a bare tagged integer constant (rather than a
// fully headered {vtable_ptr, class_obj_ptr, ...} object) is enough and
// needs no shiika_malloc call to produce.
const (
	boolTagTrue  int64 = 1
	boolTagFalse int64 = 2
)

// genExpr lowers one MIR node to an LLVM value, returning whether it ended
// its basic block with a terminator (a Return, or an If/While all of whose
// reachable paths already terminated) so callers (Seq, If, While, the
// function-body trailer) know whether to keep appending instructions to
// the current insertion point.
func (f *fg) genExpr(e mir.Expr) (llvm.Value, bool, error) {
	g := f.g
	switch v := e.(type) {
	case *mir.IntLit:
		payload := g.b.CreateIntToPtr(llvm.ConstInt(g.i64Ty, uint64(v.Value), true), g.ptrTy, "")
		return g.boxScalar("Int", payload), false, nil

	case *mir.FloatLit:
		bits := llvm.ConstBitCast(llvm.ConstFloat(g.ctx.DoubleType(), v.Value), g.i64Ty)
		payload := g.b.CreateIntToPtr(bits, g.ptrTy, "")
		return g.boxScalar("Float", payload), false, nil

	case *mir.PseudoVarRef:
		switch v.Var {
		case mir.True:
			return g.b.CreateIntToPtr(llvm.ConstInt(g.i64Ty, uint64(boolTagTrue), false), g.ptrTy, ""), false, nil
		case mir.False:
			return g.b.CreateIntToPtr(llvm.ConstInt(g.i64Ty, uint64(boolTagFalse), false), g.ptrTy, ""), false, nil
		default: // VoidVal, Null
			return llvm.ConstNull(g.ptrTy), false, nil
		}

	case *mir.StringLit:
		if v.Idx < 0 || v.Idx >= len(g.strGlob) {
			return llvm.Value{}, false, fmt.Errorf("codegen: string literal index %d out of range", v.Idx)
		}
		return g.boxScalar("String", g.strGlob[v.Idx]), false, nil

	case *mir.LVarRef:
		return g.b.CreateLoad(f.locals[v.Index], ""), false, nil

	case *mir.LVarDecl:
		val, _, err := f.genExpr(v.Value)
		if err != nil {
			return llvm.Value{}, false, err
		}
		g.b.CreateStore(val, f.locals[v.Index])
		return val, false, nil

	case *mir.LVarSet:
		val, _, err := f.genExpr(v.Value)
		if err != nil {
			return llvm.Value{}, false, err
		}
		g.b.CreateStore(val, f.locals[v.Index])
		return val, false, nil

	case *mir.IVarRef:
		recv, _, err := f.genExpr(v.Receiver)
		if err != nil {
			return llvm.Value{}, false, err
		}
		return g.slotLoad(recv, objHeaderFields+v.Index), false, nil

	case *mir.IVarSet:
		recv, _, err := f.genExpr(v.Receiver)
		if err != nil {
			return llvm.Value{}, false, err
		}
		val, _, err := f.genExpr(v.Value)
		if err != nil {
			return llvm.Value{}, false, err
		}
		g.slotStore(recv, objHeaderFields+v.Index, val)
		return val, false, nil

	case *mir.ArgRef:
		return f.fn.Param(v.Index), false, nil

	case *mir.EnvRef:
		env, err := f.env()
		if err != nil {
			return llvm.Value{}, false, err
		}
		i64 := g.b.CreateCall(g.extern("chiika_env_ref"), []llvm.Value{
			env,
			llvm.ConstInt(g.i64Ty, uint64(v.Index), false),
			llvm.ConstInt(g.i64Ty, uint64(tagObject), false),
		}, "")
		return g.b.CreateIntToPtr(i64, g.ptrTy, ""), false, nil

	case *mir.EnvSet:
		env, err := f.env()
		if err != nil {
			return llvm.Value{}, false, err
		}
		val, tag, err := f.genTaggedI64(v.Value)
		if err != nil {
			return llvm.Value{}, false, err
		}
		g.b.CreateCall(g.extern("chiika_env_set"), []llvm.Value{
			env,
			llvm.ConstInt(g.i64Ty, uint64(v.Index), false),
			val,
			llvm.ConstInt(g.i64Ty, uint64(tag), false),
		}, "")
		return llvm.ConstNull(g.ptrTy), false, nil

	case *mir.EnvPushFrame:
		env, err := f.env()
		if err != nil {
			return llvm.Value{}, false, err
		}
		g.b.CreateCall(g.extern("chiika_env_push_frame"), []llvm.Value{
			env, llvm.ConstInt(g.i64Ty, uint64(v.Size), false),
		}, "")
		return llvm.ConstNull(g.ptrTy), false, nil

	case *mir.EnvPopFrame:
		env, err := f.env()
		if err != nil {
			return llvm.Value{}, false, err
		}
		i64 := g.b.CreateCall(g.extern("chiika_env_pop_frame"), []llvm.Value{
			env, llvm.ConstInt(g.i64Ty, uint64(v.Size), false),
		}, "")
		return g.b.CreateIntToPtr(i64, g.ptrTy, ""), false, nil

	case *mir.ConstRef:
		global, ok := g.constGlob.Get(v.Fullname)
		if !ok {
			return llvm.Value{}, false, fmt.Errorf("codegen: undeclared constant %q", v.Fullname)
		}
		return g.b.CreateLoad(global.(llvm.Value), ""), false, nil

	case *mir.ConstSet:
		val, _, err := f.genExpr(v.Value)
		if err != nil {
			return llvm.Value{}, false, err
		}
		global, ok := g.constGlob.Get(v.Fullname)
		if !ok {
			return llvm.Value{}, false, fmt.Errorf("codegen: undeclared constant %q", v.Fullname)
		}
		g.b.CreateStore(val, global.(llvm.Value))
		return val, false, nil

	case *mir.FuncRef:
		fnAny, ok := g.funcs.Get(v.Fullname)
		if !ok {
			return llvm.Value{}, false, fmt.Errorf("codegen: undeclared function %q", v.Fullname)
		}
		return g.b.CreateBitCast(fnAny.(llvm.Value), g.ptrTy, ""), false, nil

	case *mir.FunCall:
		return f.genFunCall(v)

	case *mir.VTableRef:
		return f.genVTableRef(v)

	case *mir.WTableRef:
		return f.genWTableRef(v)

	case *mir.If:
		return f.genIf(v)

	case *mir.While:
		return f.genWhile(v)

	case *mir.Spawn:
		val, _, err := f.genExpr(v.Func)
		if err != nil {
			return llvm.Value{}, false, err
		}
		g.b.CreateCall(g.extern("chiika_spawn"), []llvm.Value{val}, "")
		return llvm.ConstNull(g.ptrTy), false, nil

	case *mir.Alloc:
		return f.genAlloc(v.ClassFullname), false, nil

	case *mir.Return:
		return f.genReturn(v)

	case *mir.Seq:
		return f.genSeq(v)

	case *mir.Cast:
		return f.genCast(v)

	case *mir.CreateObject:
		raw := g.allocObject(v.ClassFullname)
		for i, iv := range v.IVars {
			val, _, err := f.genExpr(iv)
			if err != nil {
				return llvm.Value{}, false, err
			}
			g.slotStore(raw, objHeaderFields+i, val)
		}
		return raw, false, nil

	case *mir.CreateTypeObject:
		classObjAny, ok := g.classObjs.Get(v.ClassFullname)
		if !ok {
			return llvm.ConstNull(g.ptrTy), false, nil
		}
		return g.b.CreateBitCast(classObjAny.(llvm.Value), g.ptrTy, ""), false, nil

	case *mir.CreateNativeArray:
		val, err := f.genCreateNativeArray(v)
		return val, false, err

	case *mir.Unbox:
		val, _, err := f.genExpr(v.Value)
		if err != nil {
			return llvm.Value{}, false, err
		}
		return g.b.CreatePtrToInt(val, g.i64Ty, ""), false, nil

	case *mir.RawI64:
		return llvm.ConstInt(g.i64Ty, uint64(v.Value), true), false, nil

	case *mir.Nop:
		return llvm.Value{}, false, nil

	default:
		return llvm.Value{}, false, fmt.Errorf("codegen: unhandled MIR node %T", e)
	}
}

// genTaggedI64 produces the (i64_value, type_tag) pair chiika_env_set
// expects. A bare Cast node directly feeding an EnvSet is unwrapped so the
// tag reflects the taxonomy's special-cased kinds (spec.md §3's
// IntToAny/FunToAny/NullToAny) rather than always falling back to the
// generic object tag.
func (f *fg) genTaggedI64(e mir.Expr) (llvm.Value, int64, error) {
	g := f.g
	if c, ok := e.(*mir.Cast); ok {
		val, _, err := f.genExpr(c.Value)
		if err != nil {
			return llvm.Value{}, 0, err
		}
		tag := tagForCastKind(c.Kind)
		switch c.Kind {
		case mir.NullToAny:
			return llvm.ConstInt(g.i64Ty, 0, false), tag, nil
		default:
			return g.b.CreatePtrToInt(val, g.i64Ty, ""), tag, nil
		}
	}
	val, _, err := f.genExpr(e)
	if err != nil {
		return llvm.Value{}, 0, err
	}
	return g.b.CreatePtrToInt(val, g.i64Ty, ""), tagObject, nil
}

// genCast implements the cast taxonomy's 4-operation reduction (DESIGN.md's
// C10 entry): under genType's uniform generic-pointer representation,
// Force/Upcast are identity, ToAny/IntToAny/FunToAny are ptrtoint-to-i64,
// NullToAny is the constant-zero i64, and Recover/AnyToInt/AnyToFun are
// inttoptr back to the pointer representation. The distinct CastKind values
// only ever select a runtime type-id tag (tagForCastKind); they never
// change which of these four instructions is emitted.
func (f *fg) genCast(v *mir.Cast) (llvm.Value, bool, error) {
	g := f.g
	val, _, err := f.genExpr(v.Value)
	if err != nil {
		return llvm.Value{}, false, err
	}
	switch v.Kind {
	case mir.Force, mir.Upcast:
		return val, false, nil
	case mir.ToAny, mir.IntToAny, mir.FunToAny:
		return g.b.CreatePtrToInt(val, g.i64Ty, ""), false, nil
	case mir.NullToAny:
		return llvm.ConstInt(g.i64Ty, 0, false), false, nil
	case mir.Recover, mir.AnyToInt, mir.AnyToFun:
		return g.b.CreateIntToPtr(val, g.ptrTy, ""), false, nil
	default:
		return val, false, nil
	}
}

// genFunCall special-cases a direct call through a FuncRef callee (the
// common case for every ordinary method/function call) to call the
// statically declared, precisely typed function value directly, avoiding
// a pointer round-trip through the generic representation. Any other
// callee (an EnvPopFrame-recovered continuation, a boxed closure value) is
// an indirect call through a function-pointer bitcast computed from the
// call's own argument/return types, since those are the only types known
// at this call site.
func (f *fg) genFunCall(v *mir.FunCall) (llvm.Value, bool, error) {
	g := f.g
	args := make([]llvm.Value, len(v.Args))
	for i, a := range v.Args {
		val, _, err := f.genExpr(a)
		if err != nil {
			return llvm.Value{}, false, err
		}
		args[i] = val
	}

	if ref, ok := v.Callee.(*mir.FuncRef); ok {
		if fnAny, ok2 := g.funcs.Get(ref.Fullname); ok2 {
			return g.b.CreateCall(fnAny.(llvm.Value), args, ""), false, nil
		}
	}

	calleeVal, _, err := f.genExpr(v.Callee)
	if err != nil {
		return llvm.Value{}, false, err
	}
	retTy := g.genType(v.Ty())
	paramTys := make([]llvm.Type, len(args))
	for i := range paramTys {
		paramTys[i] = g.ptrTy
	}
	fnTy := llvm.FunctionType(retTy, paramTys, false)
	castCallee := g.b.CreateBitCast(calleeVal, llvm.PointerType(fnTy, 0), "")
	return g.b.CreateCall(castCallee, args, ""), false, nil
}

// receiverClass recovers the static erasure class name of a VTableRef/
// WTableRef's receiver, needed for the vtable/wtable layout lookups. A
// generic (TyParamRef) receiver can't occur here: both ref kinds are only
// ever produced against a receiver whose method dictionary lookup already
// resolved to a concrete class (spec.md §4.1), so an unspecialized Object
// fallback is only reached on a malformed program this compiler didn't
// itself produce.
func receiverClass(recv mir.Expr) string {
	if ct, ok := recv.Ty().(*types.ClassType); ok {
		return ct.Erasure().Base
	}
	return "Object"
}

func (f *fg) genVTableRef(v *mir.VTableRef) (llvm.Value, bool, error) {
	g := f.g
	recv, _, err := f.genExpr(v.Receiver)
	if err != nil {
		return llvm.Value{}, false, err
	}
	idx := v.Index
	if idx < 0 {
		idx = g.vtableIndexOf(v.ClassFullname, v.MethodFullname)
	}
	vtablePtr := g.slotLoad(recv, 0)
	arr := g.b.CreateBitCast(vtablePtr, g.ptrPtrTy(), "")
	slot := g.b.CreateGEP(arr, []llvm.Value{llvm.ConstInt(g.i64Ty, uint64(idx), false)}, "")
	return g.b.CreateLoad(slot, ""), false, nil
}

func (f *fg) genWTableRef(v *mir.WTableRef) (llvm.Value, bool, error) {
	g := f.g
	recv, _, err := f.genExpr(v.Receiver)
	if err != nil {
		return llvm.Value{}, false, err
	}
	cls := receiverClass(v.Receiver)
	idx := v.Index
	if idx < 0 {
		idx = g.wtableMethodIndex(cls, v.Module, v.MethodName)
	}
	key := moduleKeyOf(v.Module)
	return g.b.CreateCall(g.extern("shiika_lookup_wtable"), []llvm.Value{
		recv,
		llvm.ConstInt(g.i64Ty, key, false),
		llvm.ConstInt(g.i64Ty, uint64(idx), false),
	}, ""), false, nil
}

func (f *fg) genReturn(v *mir.Return) (llvm.Value, bool, error) {
	g := f.g
	if v.Value == nil {
		g.b.CreateRetVoid()
		return llvm.Value{}, true, nil
	}
	val, _, err := f.genExpr(v.Value)
	if err != nil {
		return llvm.Value{}, false, err
	}
	if types.IsVoid(v.Value.Ty()) || types.IsNever(v.Value.Ty()) {
		g.b.CreateRetVoid()
	} else {
		g.b.CreateRet(val)
	}
	return llvm.Value{}, true, nil
}

func (f *fg) genSeq(v *mir.Seq) (llvm.Value, bool, error) {
	var last llvm.Value
	for _, e := range v.Exprs {
		val, terminated, err := f.genExpr(e)
		if err != nil {
			return llvm.Value{}, false, err
		}
		last = val
		if terminated {
			return last, true, nil
		}
	}
	return last, false, nil
}

// genCondI1 converts a Bool-typed MIR expression into an i1 suitable for
// CreateCondBr by comparing its boolTagTrue/boolTagFalse sentinel (see this
// file's top) against the true tag.
func (f *fg) genCondI1(e mir.Expr) (llvm.Value, error) {
	g := f.g
	val, _, err := f.genExpr(e)
	if err != nil {
		return llvm.Value{}, err
	}
	asInt := g.b.CreatePtrToInt(val, g.i64Ty, "")
	return g.b.CreateICmp(llvm.IntEQ, asInt, llvm.ConstInt(g.i64Ty, uint64(boolTagTrue), false), ""), nil
}

func (f *fg) genIf(v *mir.If) (llvm.Value, bool, error) {
	g := f.g
	cond, err := f.genCondI1(v.Cond)
	if err != nil {
		return llvm.Value{}, false, err
	}
	thenBB := llvm.AddBasicBlock(f.fn, "then")
	elseBB := llvm.AddBasicBlock(f.fn, "else")
	g.b.CreateCondBr(cond, thenBB, elseBB)

	g.b.SetInsertPointAtEnd(thenBB)
	thenVal, thenTerm, err := f.genExpr(v.Then)
	if err != nil {
		return llvm.Value{}, false, err
	}
	thenEndBB := g.b.GetInsertBlock()

	g.b.SetInsertPointAtEnd(elseBB)
	var elseVal llvm.Value
	var elseTerm bool
	if v.Else != nil {
		elseVal, elseTerm, err = f.genExpr(v.Else)
		if err != nil {
			return llvm.Value{}, false, err
		}
	}
	elseEndBB := g.b.GetInsertBlock()

	if thenTerm && elseTerm {
		return llvm.Value{}, true, nil
	}

	mergeBB := llvm.AddBasicBlock(f.fn, "endif")
	if !thenTerm {
		g.b.SetInsertPointAtEnd(thenEndBB)
		g.b.CreateBr(mergeBB)
	}
	if !elseTerm {
		g.b.SetInsertPointAtEnd(elseEndBB)
		g.b.CreateBr(mergeBB)
	}
	g.b.SetInsertPointAtEnd(mergeBB)

	if types.IsVoid(v.Ty()) || types.IsNever(v.Ty()) {
		return llvm.Value{}, false, nil
	}
	phi := g.b.CreatePHI(g.ptrTy, "")
	var incoming []llvm.Value
	var blocks []llvm.BasicBlock
	if !thenTerm {
		incoming = append(incoming, thenVal)
		blocks = append(blocks, thenEndBB)
	}
	if !elseTerm {
		incoming = append(incoming, elseVal)
		blocks = append(blocks, elseEndBB)
	}
	phi.AddIncoming(incoming, blocks)
	return phi, false, nil
}

func (f *fg) genWhile(v *mir.While) (llvm.Value, bool, error) {
	g := f.g
	headBB := llvm.AddBasicBlock(f.fn, "while.head")
	bodyBB := llvm.AddBasicBlock(f.fn, "while.body")
	afterBB := llvm.AddBasicBlock(f.fn, "while.after")

	g.b.CreateBr(headBB)
	g.b.SetInsertPointAtEnd(headBB)
	cond, err := f.genCondI1(v.Cond)
	if err != nil {
		return llvm.Value{}, false, err
	}
	g.b.CreateCondBr(cond, bodyBB, afterBB)

	g.b.SetInsertPointAtEnd(bodyBB)
	_, bodyTerm, err := f.genExpr(v.Body)
	if err != nil {
		return llvm.Value{}, false, err
	}
	if !bodyTerm {
		g.b.CreateBr(headBB)
	}

	g.b.SetInsertPointAtEnd(afterBB)
	return llvm.ConstNull(g.ptrTy), false, nil
}

func (f *fg) genAlloc(classFullname string) llvm.Value {
	g := f.g
	raw := g.allocObject(classFullname)
	ci := g.dict.Get(classFullname)
	if ci != nil {
		for i := 0; i < len(ci.IVars); i++ {
			g.slotStore(raw, objHeaderFields+i, llvm.ConstNull(g.ptrTy))
		}
	}
	return raw
}

func (f *fg) genCreateNativeArray(v *mir.CreateNativeArray) (llvm.Value, error) {
	g := f.g
	n := len(v.Elems)
	size := llvm.ConstInt(g.i64Ty, uint64((objHeaderFields+1+n)*8), false)
	raw := g.b.CreateCall(g.extern("shiika_malloc"), []llvm.Value{size}, "")
	g.slotStore(raw, 0, llvm.ConstNull(g.ptrTy))
	g.slotStore(raw, 1, llvm.ConstNull(g.ptrTy))
	lenPtr := g.b.CreateIntToPtr(llvm.ConstInt(g.i64Ty, uint64(n), false), g.ptrTy, "")
	g.slotStore(raw, objHeaderFields, lenPtr)
	for i, el := range v.Elems {
		val, _, err := f.genExpr(el)
		if err != nil {
			return llvm.Value{}, err
		}
		g.slotStore(raw, objHeaderFields+1+i, val)
	}
	return raw, nil
}

// boxScalar allocates a minimal {vtable_ptr, class_obj_ptr, payload} object
// for one of the three library-defined primitive classes (Int/Float/
// String). These are boxed outside classdict's ordinary ivar bookkeeping:
// their single payload slot is a runtime/library concern (spec.md §6), not
// something a user class declaration ever produces, so allocObject's
// classdict.Get-driven sizing doesn't apply to them.
func (g *gen) boxScalar(classFullname string, payload llvm.Value) llvm.Value {
	size := llvm.ConstInt(g.i64Ty, uint64((objHeaderFields+1)*8), false)
	raw := g.b.CreateCall(g.extern("shiika_malloc"), []llvm.Value{size}, "")
	if vg, ok := g.vtableGlob.Get(classFullname); ok {
		g.slotStore(raw, 0, g.b.CreateBitCast(vg.(llvm.Value), g.ptrTy, ""))
	} else {
		g.slotStore(raw, 0, llvm.ConstNull(g.ptrTy))
	}
	if co, ok := g.classObjs.Get(classFullname); ok {
		g.slotStore(raw, 1, g.b.CreateBitCast(co.(llvm.Value), g.ptrTy, ""))
	} else {
		g.slotStore(raw, 1, llvm.ConstNull(g.ptrTy))
	}
	g.slotStore(raw, objHeaderFields, payload)
	return raw
}
