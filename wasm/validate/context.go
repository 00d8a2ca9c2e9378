// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package validate type-checks a decoded Wasm module: structural rules for
// every section (limits, indices, duplicate names, feature gating) and the
// stack-based control/value typing of constant expressions and function
// bodies. It never re-derives bytes the decoder already parsed; it consumes
// *wasm.Module and package code's instruction stream.
package validate

import (
	"fmt"

	"github.com/tinwasm/wasmcore/wasm"
)

// Context is the accumulated state validation consults and grows as it
// walks a module's sections in declaration order.
type Context struct {
	Types []wasm.FunctionType

	// Functions holds, for every function in the module's function index
	// space, the index into Types; imported functions occupy the low
	// indices and are listed first.
	Functions             []uint32
	ImportedFunctionCount int

	Tables   []wasm.TableType
	Memories []wasm.MemoryType

	Globals             []wasm.GlobalType
	ImportedGlobalCount int

	Events []wasm.EventType

	ExportNames map[string]struct{}

	// DeclaredDataCount is the data-count section's value, when present.
	DeclaredDataCount *int

	// ElementSegmentTypes holds, for every element segment in declaration
	// order, its element reference type — consulted by table.init's typing
	// rule.
	ElementSegmentTypes []wasm.ValueType

	// DeclaredFunctions is the set of function indices legal as a ref.func
	// operand outside a global initializer: populated by element segments
	// naming functions, by exports, and by the start function. A ref.func
	// inside a global initializer does not add to it (see
	// DeferredFunctionRefs).
	DeclaredFunctions map[uint32]bool

	// DeferredFunctionRefs accumulates ref.func operands seen inside global
	// initializers; they are resolved against DeclaredFunctions (and the
	// function index space bound) only once the whole module has been
	// walked, since a global initializer may run before the rest of the
	// module declares the function it names.
	DeferredFunctionRefs []uint32

	Features wasm.Features
	Errors   wasm.ErrorSink

	// Path is the breadcrumb stack surfaced on every reported Diagnostic.
	Path []string

	// StackLimit bounds control- and value-stack depth during function body
	// validation, per the resource model's adversarial-input guard.
	StackLimit int
}

// DefaultStackLimit is the recommended bound on control/value stack depth.
const DefaultStackLimit = 100000

// NewContext builds an empty Context ready to have a module's sections fed
// into it by the section validators.
func NewContext(features wasm.Features, sink wasm.ErrorSink) *Context {
	if sink == nil {
		sink = wasm.NopSink{}
	}
	return &Context{
		ExportNames:      map[string]struct{}{},
		DeclaredFunctions: map[uint32]bool{},
		Features:          features,
		Errors:            sink,
		StackLimit:        DefaultStackLimit,
	}
}

func (c *Context) report(offset uint32, kind wasm.ErrorKind, format string, args ...interface{}) {
	c.Errors.Report(wasm.Diagnostic{
		Offset:  offset,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Context: append([]string(nil), c.Path...),
	})
}

func (c *Context) push(breadcrumb string) wasm.ContextGuard {
	return wasm.PushContext(&c.Path, breadcrumb)
}

// TypeOf returns the FunctionType at typeIdx, or ok=false if out of range.
func (c *Context) TypeOf(typeIdx uint32) (wasm.FunctionType, bool) {
	if typeIdx >= uint32(len(c.Types)) {
		return wasm.FunctionType{}, false
	}
	return c.Types[typeIdx], true
}

// FunctionType returns the signature of the function at funcIdx, or
// ok=false if out of range.
func (c *Context) FunctionType(funcIdx uint32) (wasm.FunctionType, bool) {
	if funcIdx >= uint32(len(c.Functions)) {
		return wasm.FunctionType{}, false
	}
	return c.TypeOf(c.Functions[funcIdx])
}

// GlobalType returns the type of the global at globalIdx, or ok=false if out
// of range.
func (c *Context) GlobalType(globalIdx uint32) (wasm.GlobalType, bool) {
	if globalIdx >= uint32(len(c.Globals)) {
		return wasm.GlobalType{}, false
	}
	return c.Globals[globalIdx], true
}
