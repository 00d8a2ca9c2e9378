// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"github.com/tinwasm/wasmcore/wasm"
	"github.com/tinwasm/wasmcore/wasm/code"
)

// ConstExprKind distinguishes the two contexts a constant expression can
// appear in, since they differ in which globals/functions are addressable.
type ConstExprKind int

const (
	// ConstExprGlobalInit is a global's own initializer: only imported
	// globals are visible (no forward/self reference), and any ref.func it
	// names is resolved against declared_functions only at end-of-module.
	ConstExprGlobalInit ConstExprKind = iota
	// ConstExprOther is an element or data segment offset, or an element
	// segment's per-element expression: every declared global is visible,
	// and ref.func operands must already be in range and immediately join
	// declared_functions.
	ConstExprOther
)

// validateConstExpr checks that body is exactly one constant instruction
// followed by end, and that it produces expected. offset is added to
// instruction offsets (which are relative to body) for diagnostics.
func (ctx *Context) validateConstExpr(body []byte, expected wasm.ValueType, kind ConstExprKind, offset uint32) {
	r := wasm.NewReader(body)
	er := code.NewExprReader(r, ctx.Features)

	instr, ok, err := er.Next()
	if err != nil {
		ctx.reportDecodeErr(offset, err)
		return
	}
	if !ok || instr.Opcode == code.OpEnd {
		ctx.report(offset, wasm.TypeMismatch, "constant expression required")
		return
	}

	produced := ctx.typeConstInstr(instr, kind, offset)

	end, ok, err := er.Next()
	if err != nil {
		ctx.reportDecodeErr(offset, err)
		return
	}
	if !ok || end.Opcode != code.OpEnd {
		ctx.report(offset+end.Offset, wasm.TypeMismatch, "constant expression must contain exactly one instruction")
		return
	}

	if !assignable(produced, Concrete(expected)) {
		ctx.report(offset+instr.Offset, wasm.TypeMismatch, "constant expression type mismatch: expected %s, got %s", expected, produced)
	}
}

func (ctx *Context) typeConstInstr(instr code.Instruction, kind ConstExprKind, base uint32) StackType {
	off := base + instr.Offset
	switch instr.Opcode {
	case code.OpI32Const:
		return Concrete(wasm.ValueTypeI32)
	case code.OpI64Const:
		return Concrete(wasm.ValueTypeI64)
	case code.OpF32Const:
		return Concrete(wasm.ValueTypeF32)
	case code.OpF64Const:
		return Concrete(wasm.ValueTypeF64)

	case code.OpGlobalGet:
		idx := instr.Index
		var limit uint32
		if kind == ConstExprGlobalInit {
			limit = uint32(ctx.ImportedGlobalCount)
		} else {
			limit = uint32(len(ctx.Globals))
		}
		if idx >= limit {
			ctx.report(off, wasm.IndexOutOfRange, "unknown global %d", idx)
			return AnyType
		}
		g := ctx.Globals[idx]
		if g.Mutable {
			ctx.report(off, wasm.MutableGlobalInConstExpr, "constant expression may not read mutable global %d", idx)
		}
		return Concrete(g.Type)

	case code.OpRefNull:
		if !ctx.Features.Has(wasm.FeatureReferenceTypes) && instr.RefType != wasm.ValueTypeFuncref {
			ctx.report(off, wasm.FeatureDisabled, "ref.null requires reference-types feature")
		}
		return Concrete(instr.RefType)

	case code.OpRefFunc:
		idx := instr.Index
		if kind == ConstExprGlobalInit {
			ctx.DeferredFunctionRefs = append(ctx.DeferredFunctionRefs, idx)
		} else {
			if idx >= uint32(len(ctx.Functions)) {
				ctx.report(off, wasm.IndexOutOfRange, "unknown function %d", idx)
			} else {
				ctx.DeclaredFunctions[idx] = true
			}
		}
		return Concrete(wasm.ValueTypeFuncref)

	default:
		ctx.report(off, wasm.TypeMismatch, "constant expression required")
		return AnyType
	}
}

// resolveDeferredFunctionRefs checks every ref.func operand collected from
// global initializers against the now-complete declared_functions set, per
// spec §4.4's end-of-module resolution.
func (ctx *Context) resolveDeferredFunctionRefs() {
	for _, idx := range ctx.DeferredFunctionRefs {
		if idx >= uint32(len(ctx.Functions)) {
			ctx.report(0, wasm.IndexOutOfRange, "unknown function %d", idx)
			continue
		}
		if !ctx.DeclaredFunctions[idx] {
			ctx.report(0, wasm.UndeclaredFunctionRef, "function %d referenced by ref.func is never declared", idx)
		}
	}
}

func (ctx *Context) reportDecodeErr(base uint32, err error) {
	if de, ok := err.(*wasm.DecodeError); ok {
		ctx.report(base+de.Offset, de.Kind, "%v", de.Err)
		return
	}
	ctx.report(base, wasm.InvalidImmediate, "%v", err)
}

// validateFunctionBody runs the stack-typing algorithm over one function's
// instruction stream. locals is params++declared_locals; results is the
// function's declared result types.
func (ctx *Context) validateFunctionBody(body []byte, locals, results []wasm.ValueType, base uint32) {
	r := wasm.NewReader(body)
	er := code.NewExprReader(r, ctx.Features)
	v := newBodyValidator(ctx, locals, results)

	for {
		instr, ok, err := er.Next()
		if err != nil {
			ctx.reportDecodeErr(base, err)
			return
		}
		if !ok {
			break
		}
		off := base + instr.Offset
		v.apply(instr, off)
		if len(v.stack) > ctx.StackLimit {
			ctx.report(off, wasm.InternalLimitExceeded, "value stack depth exceeds limit %d", ctx.StackLimit)
			return
		}

		if instr.Opcode == code.OpEnd && len(v.frames) == 0 {
			break
		}
	}

	if len(v.frames) != 0 {
		ctx.report(base, wasm.TypeMismatch, "function body missing terminating end")
		return
	}
	if !r.Eof() {
		ctx.report(base+r.Pos(), wasm.TypeMismatch, "trailing bytes after function body end")
	}
}

// apply dispatches one instruction's typing rule against v's stack/frames.
func (v *bodyValidator) apply(instr code.Instruction, off uint32) {
	ctx := v.ctx

	switch instr.Opcode {
	case code.OpUnreachable:
		v.markUnreachable()

	case code.OpNop:
		// no-op

	case code.OpBlock, code.OpLoop, code.OpIf, code.OpTry:
		params, results, ok := blockSignature(ctx, instr.Block)
		if !ok {
			ctx.report(off, wasm.IndexOutOfRange, "unknown block type")
			params, results = nil, nil
		}
		if instr.Opcode == code.OpIf {
			v.popExpect(wasm.ValueTypeI32, off)
		}
		kind := map[byte]FrameKind{code.OpBlock: FrameBlock, code.OpLoop: FrameLoop, code.OpIf: FrameIf, code.OpTry: FrameTry}[instr.Opcode]
		v.enterFrame(kind, params, results, off)

	case code.OpElse:
		if v.top().kind != FrameIf {
			ctx.report(off, wasm.UnreachableMismatch, "else without matching if")
			return
		}
		v.restartFrame(FrameElse, off)

	case code.OpCatch:
		if v.top().kind != FrameTry {
			ctx.report(off, wasm.UnreachableMismatch, "catch without matching try")
			return
		}
		v.restartFrame(FrameCatch, off)

	case code.OpEnd:
		if v.top().kind == FrameIf {
			// if with no else: the two arms must agree, so the missing
			// else branch is only well-typed when params == results.
			f := *v.top()
			if !sameTypes(f.params, f.results) {
				ctx.report(off, wasm.TypeMismatch, "if without else must not change the value stack type")
			}
		}
		v.leaveFrame(off)

	case code.OpBr:
		v.branchTerminal(instr.Index, off)
	case code.OpBrIf:
		v.popExpect(wasm.ValueTypeI32, off)
		v.branchCheck(instr.Index, off)
	case code.OpBrTable:
		v.brTable(instr.BrTable, off)
	case code.OpReturn:
		v.branchTerminal(uint32(len(v.frames)-1), off)

	case code.OpCall:
		sig, ok := ctx.FunctionType(instr.Index)
		if !ok {
			ctx.report(off, wasm.IndexOutOfRange, "unknown function %d", instr.Index)
			return
		}
		v.popExpectMany(sig.Params, off)
		v.pushValues(sig.Results)

	case code.OpReturnCall:
		if !ctx.Features.Has(wasm.FeatureTailCall) {
			ctx.report(off, wasm.FeatureDisabled, "return_call requires tail-call feature")
		}
		sig, ok := ctx.FunctionType(instr.Index)
		if !ok {
			ctx.report(off, wasm.IndexOutOfRange, "unknown function %d", instr.Index)
			return
		}
		if !sameTypes(sig.Results, v.frames[0].results) {
			ctx.report(off, wasm.WrongFunctionSignature, "return_call target result type does not match enclosing function")
		}
		v.popExpectMany(sig.Params, off)
		v.markUnreachable()

	case code.OpCallIndirect, code.OpReturnCallIndirect:
		if instr.Opcode == code.OpReturnCallIndirect && !ctx.Features.Has(wasm.FeatureTailCall) {
			ctx.report(off, wasm.FeatureDisabled, "return_call_indirect requires tail-call feature")
		}
		if int(instr.CallIndirect.TableIndex) >= len(ctx.Tables) {
			ctx.report(off, wasm.IndexOutOfRange, "unknown table %d", instr.CallIndirect.TableIndex)
		}
		sig, ok := ctx.TypeOf(instr.CallIndirect.TypeIndex)
		if !ok {
			ctx.report(off, wasm.IndexOutOfRange, "unknown type %d", instr.CallIndirect.TypeIndex)
			v.popExpect(wasm.ValueTypeI32, off)
			return
		}
		v.popExpect(wasm.ValueTypeI32, off)
		if instr.Opcode == code.OpReturnCallIndirect {
			if !sameTypes(sig.Results, v.frames[0].results) {
				ctx.report(off, wasm.WrongFunctionSignature, "return_call_indirect target result type does not match enclosing function")
			}
			v.popExpectMany(sig.Params, off)
			v.markUnreachable()
		} else {
			v.popExpectMany(sig.Params, off)
			v.pushValues(sig.Results)
		}

	case code.OpDrop:
		v.popValue(off)

	case code.OpSelect:
		v.popExpect(wasm.ValueTypeI32, off)
		b := v.popValue(off)
		a := v.popValue(off)
		if !assignable(a, b) && !assignable(b, a) {
			ctx.report(off, wasm.TypeMismatch, "select operands must have the same type")
		}
		result := b
		if b.Any {
			result = a
		}
		v.push(result)

	case code.OpSelectT:
		v.popExpect(wasm.ValueTypeI32, off)
		if len(instr.Types) != 1 {
			ctx.report(off, wasm.InvalidImmediate, "select with types expects exactly one type")
		}
		var t wasm.ValueType
		if len(instr.Types) > 0 {
			t = instr.Types[0]
		}
		v.popExpect(t, off)
		v.popExpect(t, off)
		v.pushValue(t)

	case code.OpLocalGet:
		t, ok := v.localType(instr.Index)
		if !ok {
			ctx.report(off, wasm.IndexOutOfRange, "unknown local %d", instr.Index)
			v.push(AnyType)
			return
		}
		v.pushValue(t)
	case code.OpLocalSet:
		t, ok := v.localType(instr.Index)
		if !ok {
			ctx.report(off, wasm.IndexOutOfRange, "unknown local %d", instr.Index)
			v.popValue(off)
			return
		}
		v.popExpect(t, off)
	case code.OpLocalTee:
		t, ok := v.localType(instr.Index)
		if !ok {
			ctx.report(off, wasm.IndexOutOfRange, "unknown local %d", instr.Index)
			return
		}
		v.popExpect(t, off)
		v.pushValue(t)

	case code.OpGlobalGet:
		g, ok := ctx.GlobalType(instr.Index)
		if !ok {
			ctx.report(off, wasm.IndexOutOfRange, "unknown global %d", instr.Index)
			v.push(AnyType)
			return
		}
		v.pushValue(g.Type)
	case code.OpGlobalSet:
		g, ok := ctx.GlobalType(instr.Index)
		if !ok {
			ctx.report(off, wasm.IndexOutOfRange, "unknown global %d", instr.Index)
			v.popValue(off)
			return
		}
		if !g.Mutable {
			ctx.report(off, wasm.MutableGlobalInConstExpr, "global.set on immutable global %d", instr.Index)
		}
		v.popExpect(g.Type, off)

	case code.OpTableGet:
		t, ok := v.tableElemType(instr.Index, off)
		v.popExpect(wasm.ValueTypeI32, off)
		if ok {
			v.pushValue(t)
		} else {
			v.push(AnyType)
		}
	case code.OpTableSet:
		t, ok := v.tableElemType(instr.Index, off)
		if ok {
			v.popExpect(t, off)
		} else {
			v.popValue(off)
		}
		v.popExpect(wasm.ValueTypeI32, off)

	case code.OpRefNull:
		v.pushValue(instr.RefType)
	case code.OpRefIsNull:
		t := v.popValue(off)
		if !t.Any && !t.Type.IsReference() {
			ctx.report(off, wasm.TypeMismatch, "ref.is_null expects a reference type, got %s", t)
		}
		v.pushValue(wasm.ValueTypeI32)
	case code.OpRefFunc:
		if int(instr.Index) >= len(ctx.Functions) {
			ctx.report(off, wasm.IndexOutOfRange, "unknown function %d", instr.Index)
		} else {
			ctx.DeclaredFunctions[instr.Index] = true
		}
		v.pushValue(wasm.ValueTypeFuncref)

	default:
		applyNumericOrMemoryOrVector(v, instr, off)
	}
}

func (v *bodyValidator) push(t StackType) {
	v.stack = append(v.stack, t)
}

func (v *bodyValidator) tableElemType(idx uint32, off uint32) (wasm.ValueType, bool) {
	if int(idx) >= len(v.ctx.Tables) {
		v.ctx.report(off, wasm.IndexOutOfRange, "unknown table %d", idx)
		return 0, false
	}
	return v.ctx.Tables[idx].Element, true
}

func sameTypes(a, b []wasm.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// blockSignature resolves a decoded BlockType against the module's type
// section.
func blockSignature(ctx *Context, bt code.BlockType) (params, results []wasm.ValueType, ok bool) {
	switch {
	case bt.Empty:
		return nil, nil, true
	case !bt.HasIndex:
		return nil, []wasm.ValueType{bt.Value}, true
	default:
		sig, ok := ctx.TypeOf(bt.TypeIndex)
		if !ok {
			return nil, nil, false
		}
		if len(sig.Results) > 1 && !ctx.Features.Has(wasm.FeatureMultiValue) {
			ctx.report(0, wasm.FeatureDisabled, "multi-value block result requires multi-value feature")
		}
		return sig.Params, sig.Results, true
	}
}
