// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"fmt"

	"github.com/tinwasm/wasmcore/wasm"
)

// StackType is a value-stack slot: either a concrete ValueType or the
// polymorphic bottom type Any, produced only once a frame has been marked
// unreachable. It deliberately does not reuse wasm.ValueType's zero value
// for Any, so a zero StackType is never silently treated as a wildcard.
type StackType struct {
	Any  bool
	Type wasm.ValueType
}

// AnyType is the polymorphic placeholder.
var AnyType = StackType{Any: true}

// Concrete wraps a value type as a definite stack slot.
func Concrete(t wasm.ValueType) StackType {
	return StackType{Type: t}
}

func (s StackType) String() string {
	if s.Any {
		return "any"
	}
	return s.Type.String()
}

// assignable reports whether a value of type actual may be consumed where
// expected is wanted: Any is compatible with anything in either position,
// identical concrete types always match, and the reference-types bottom
// type (nullref) is assignable to any reference type per the feature's
// subtyping rule.
func assignable(actual, expected StackType) bool {
	if actual.Any || expected.Any {
		return true
	}
	if actual.Type == expected.Type {
		return true
	}
	if actual.Type == wasm.ValueTypeNullref && expected.Type.IsReference() {
		return true
	}
	return false
}

// FrameKind tags the kind of control construct a label-stack frame was
// opened by.
type FrameKind int

const (
	FrameBlock FrameKind = iota
	FrameLoop
	FrameIf
	FrameElse
	FrameTry
	FrameCatch
	// FrameFunction is the single implicit outermost frame of a function
	// body.
	FrameFunction
)

func (k FrameKind) String() string {
	switch k {
	case FrameBlock:
		return "block"
	case FrameLoop:
		return "loop"
	case FrameIf:
		return "if"
	case FrameElse:
		return "else"
	case FrameTry:
		return "try"
	case FrameCatch:
		return "catch"
	case FrameFunction:
		return "function"
	default:
		return fmt.Sprintf("frame(%d)", int(k))
	}
}

// frame is one entry of the control/label stack.
type frame struct {
	kind        FrameKind
	params      []wasm.ValueType
	results     []wasm.ValueType
	height      int
	unreachable bool
}

// labelTypes returns the types a branch targeting this frame must supply:
// a loop's label is its entry parameters (branching re-enters the top), any
// other frame's label is its results.
func (f frame) labelTypes() []wasm.ValueType {
	if f.kind == FrameLoop {
		return f.params
	}
	return f.results
}
