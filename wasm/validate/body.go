// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"github.com/tinwasm/wasmcore/wasm"
	"github.com/tinwasm/wasmcore/wasm/code"
)

// bodyValidator holds the value stack, label (control frame) stack, and
// local variable types of one function body being checked.
type bodyValidator struct {
	ctx    *Context
	locals []wasm.ValueType
	stack  []StackType
	frames []frame
}

func newBodyValidator(ctx *Context, locals []wasm.ValueType, results []wasm.ValueType) *bodyValidator {
	v := &bodyValidator{ctx: ctx, locals: locals}
	v.frames = append(v.frames, frame{kind: FrameFunction, results: results})
	return v
}

func (v *bodyValidator) top() *frame {
	return &v.frames[len(v.frames)-1]
}

func (v *bodyValidator) pushValue(t wasm.ValueType) {
	v.stack = append(v.stack, Concrete(t))
}

func (v *bodyValidator) pushValues(ts []wasm.ValueType) {
	for _, t := range ts {
		v.pushValue(t)
	}
}

// popAny pops the top of the stack, returning ok=false on underflow (unless
// the current frame is unreachable, in which case it manufactures Any
// without touching the stack).
func (v *bodyValidator) popAny() (StackType, bool) {
	f := v.top()
	if len(v.stack) == f.height {
		if f.unreachable {
			return AnyType, true
		}
		return StackType{}, false
	}
	t := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return t, true
}

// popValue pops the top of the stack with no type expectation (drop,
// untyped select, ref.is_null).
func (v *bodyValidator) popValue(offset uint32) StackType {
	t, ok := v.popAny()
	if !ok {
		v.ctx.report(offset, wasm.StackUnderflow, "stack underflow")
		return AnyType
	}
	return t
}

// popExpect pops the top of the stack and checks it is assignable to
// expected, reporting TypeMismatch and substituting Any on failure so the
// remainder of the body can be checked without cascading. An empty stack is
// reported as TypeMismatch rather than StackUnderflow: expected carries a
// concrete type to compare against, so the failure is "expected i32, got
// empty" rather than an untyped underflow.
func (v *bodyValidator) popExpect(expected wasm.ValueType, offset uint32) StackType {
	actual, ok := v.popAny()
	if !ok {
		v.ctx.report(offset, wasm.TypeMismatch, "type mismatch: expected %s, got empty", expected)
		return AnyType
	}
	if !assignable(actual, Concrete(expected)) {
		v.ctx.report(offset, wasm.TypeMismatch, "type mismatch: expected %s, got %s", expected, actual)
		return AnyType
	}
	return actual
}

func (v *bodyValidator) popExpectMany(expected []wasm.ValueType, offset uint32) {
	for i := len(expected) - 1; i >= 0; i-- {
		v.popExpect(expected[i], offset)
	}
}

func (v *bodyValidator) markUnreachable() {
	f := v.top()
	v.stack = v.stack[:f.height]
	f.unreachable = true
}

func (v *bodyValidator) enterFrame(kind FrameKind, params, results []wasm.ValueType, offset uint32) {
	v.popExpectMany(params, offset)
	v.frames = append(v.frames, frame{kind: kind, params: params, results: results, height: len(v.stack)})
	v.pushValues(params)
	if len(v.frames) > v.ctx.StackLimit {
		v.ctx.report(offset, wasm.InternalLimitExceeded, "control stack depth exceeds limit %d", v.ctx.StackLimit)
	}
}

// leaveFrame pops and checks the current frame's results, then pops the
// frame and pushes its results onto the (now current) outer frame.
func (v *bodyValidator) leaveFrame(offset uint32) frame {
	f := *v.top()
	v.popExpectMany(f.results, offset)
	if len(v.stack) != f.height {
		v.ctx.report(offset, wasm.TypeMismatch, "unexpected extra values at end of %s", f.kind)
		v.stack = v.stack[:f.height]
	}
	v.frames = v.frames[:len(v.frames)-1]
	v.pushValues(f.results)
	return f
}

// restartFrame closes out an if/try frame's then/try arm in place, the way
// else/catch do: unlike leaveFrame it does not pop the frame or push its
// results — it pops-and-checks results down to the frame's height, then
// relabels the same frame as its else/catch arm and pushes params back at
// that height so the new arm starts from the same state the then/try arm
// did.
func (v *bodyValidator) restartFrame(kind FrameKind, offset uint32) frame {
	f := *v.top()
	v.popExpectMany(f.results, offset)
	if len(v.stack) != f.height {
		v.ctx.report(offset, wasm.TypeMismatch, "unexpected extra values at end of %s", f.kind)
		v.stack = v.stack[:f.height]
	}
	top := v.top()
	top.kind = kind
	top.unreachable = false
	v.pushValues(f.params)
	return f
}

func (v *bodyValidator) frameAt(n uint32) (frame, bool) {
	if n >= uint32(len(v.frames)) {
		return frame{}, false
	}
	return v.frames[len(v.frames)-1-int(n)], true
}

// branchCheck validates (without marking unreachable) a br_if-style conditional
// target: the label types are popped to check them and then restored, since
// control may fall through.
func (v *bodyValidator) branchCheck(n uint32, offset uint32) {
	f, ok := v.frameAt(n)
	if !ok {
		v.ctx.report(offset, wasm.IndexOutOfRange, "unknown branch target %d", n)
		return
	}
	labels := f.labelTypes()
	v.popExpectMany(labels, offset)
	v.pushValues(labels)
}

// branchTerminal validates an unconditional branch target (br, return) and
// then marks the current frame unreachable, per the spec's "br truncates
// the value stack to the frame's height" rule.
func (v *bodyValidator) branchTerminal(n uint32, offset uint32) {
	f, ok := v.frameAt(n)
	if !ok {
		v.ctx.report(offset, wasm.IndexOutOfRange, "unknown branch target %d", n)
	} else {
		v.popExpectMany(f.labelTypes(), offset)
	}
	v.markUnreachable()
}

func (v *bodyValidator) brTable(bt code.BrTable, offset uint32) {
	def, ok := v.frameAt(bt.Default)
	if !ok {
		v.ctx.report(offset, wasm.IndexOutOfRange, "unknown branch target %d", bt.Default)
		v.markUnreachable()
		return
	}
	labels := def.labelTypes()
	popped := make([]StackType, len(labels))
	for i := len(labels) - 1; i >= 0; i-- {
		popped[i] = v.popExpect(labels[i], offset)
	}
	for _, target := range bt.Targets {
		f, ok := v.frameAt(target)
		if !ok {
			v.ctx.report(offset, wasm.IndexOutOfRange, "unknown branch target %d", target)
			continue
		}
		lt := f.labelTypes()
		if len(lt) != len(labels) {
			v.ctx.report(offset, wasm.TypeMismatch, "br_table target arity mismatch")
			continue
		}
		for i := range lt {
			if !assignable(popped[i], Concrete(lt[i])) {
				v.ctx.report(offset, wasm.TypeMismatch, "br_table target type mismatch: expected %s, got %s", lt[i], popped[i])
				break
			}
		}
	}
	v.markUnreachable()
}

func (v *bodyValidator) localType(idx uint32) (wasm.ValueType, bool) {
	if idx >= uint32(len(v.locals)) {
		return 0, false
	}
	return v.locals[idx], true
}
