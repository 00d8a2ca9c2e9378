// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinwasm/wasmcore/wasm"
	"github.com/tinwasm/wasmcore/wasm/validate"
)

func kinds(sink *wasm.CollectingSink) []wasm.ErrorKind {
	out := make([]wasm.ErrorKind, len(sink.Diagnostics))
	for i, d := range sink.Diagnostics {
		out[i] = d.Kind
	}
	return out
}

func TestValidateEmptyModule(t *testing.T) {
	sink := &wasm.CollectingSink{}
	validate.ValidateModule(&wasm.Module{}, wasm.Features{}, sink, true)
	assert.True(t, sink.Ok(), "%v", sink.Diagnostics)
}

func TestValidateIdentityFunction(t *testing.T) {
	m := &wasm.Module{
		Types:         []wasm.FunctionType{{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FunctionTypes: []uint32{0},
		Code: []wasm.Code{
			{Body: []byte{0x20, 0x00, 0x0b}}, // local.get 0; end
		},
	}

	sink := &wasm.CollectingSink{}
	validate.ValidateModule(m, wasm.Features{}, sink, true)
	assert.True(t, sink.Ok(), "%v", sink.Diagnostics)
}

func TestValidateStackUnderflow(t *testing.T) {
	m := &wasm.Module{
		Types:         []wasm.FunctionType{{}},
		FunctionTypes: []uint32{0},
		Code: []wasm.Code{
			// drop with nothing on the stack: no expected type to compare
			// against, so this is a genuine untyped underflow.
			{Body: []byte{0x1a, 0x0b}},
		},
	}

	sink := &wasm.CollectingSink{}
	validate.ValidateModule(m, wasm.Features{}, sink, true)
	require.NotEmpty(t, sink.Diagnostics)
	assert.Contains(t, kinds(sink), wasm.StackUnderflow)
}

func TestValidateTypeMismatchOnEmptyStack(t *testing.T) {
	m := &wasm.Module{
		Types:         []wasm.FunctionType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FunctionTypes: []uint32{0},
		Code: []wasm.Code{
			// i32.add with nothing on the stack: popExpect has a concrete
			// expected type, so an empty stack is reported as TypeMismatch
			// ("expected i32, got empty") rather than StackUnderflow.
			{Body: []byte{0x6a, 0x0b}},
		},
	}

	sink := &wasm.CollectingSink{}
	validate.ValidateModule(m, wasm.Features{}, sink, true)
	require.NotEmpty(t, sink.Diagnostics)
	assert.Contains(t, kinds(sink), wasm.TypeMismatch)
}

func TestValidateMutableGlobalInConstExpr(t *testing.T) {
	m := &wasm.Module{
		// Only imported globals are visible inside a global initializer;
		// import one mutable global so its use below is legal to reference
		// but illegal to read from a constant expression.
		Imports: []wasm.Import{
			{Module: "env", Field: "g", Kind: wasm.ExternalGlobal, Global: wasm.GlobalVar{Type: wasm.GlobalType{Type: wasm.ValueTypeI32, Mutable: true}}},
		},
		Globals: []wasm.GlobalEntry{
			// This global's initializer reads the mutable imported global,
			// which is illegal in a constant expression.
			{Type: wasm.GlobalType{Type: wasm.ValueTypeI32}, Init: []byte{0x23, 0x00, 0x0b}},
		},
	}

	sink := &wasm.CollectingSink{}
	validate.ValidateModule(m, wasm.NewFeatures(wasm.FeatureMutableGlobals), sink, true)
	require.NotEmpty(t, sink.Diagnostics)
	assert.Contains(t, kinds(sink), wasm.MutableGlobalInConstExpr)
}

func TestValidateDuplicateExport(t *testing.T) {
	m := &wasm.Module{
		Types:         []wasm.FunctionType{{}},
		FunctionTypes: []uint32{0, 0},
		Code: []wasm.Code{
			{Body: []byte{0x0b}},
			{Body: []byte{0x0b}},
		},
		Exports: []wasm.Export{
			{Name: "f", Kind: wasm.ExternalFunction, Index: 0},
			{Name: "f", Kind: wasm.ExternalFunction, Index: 1},
		},
	}

	sink := &wasm.CollectingSink{}
	validate.ValidateModule(m, wasm.Features{}, sink, true)
	require.NotEmpty(t, sink.Diagnostics)
	assert.Contains(t, kinds(sink), wasm.DuplicateExport)
}

func TestValidateDeferredRefFuncResolvedByElement(t *testing.T) {
	m := &wasm.Module{
		Types:         []wasm.FunctionType{{}},
		FunctionTypes: []uint32{0},
		Code: []wasm.Code{
			{Body: []byte{0x0b}},
		},
		Globals: []wasm.GlobalEntry{
			// ref.func 0 is only legal here once an element segment
			// separately declares function 0.
			{Type: wasm.GlobalType{Type: wasm.ValueTypeFuncref}, Init: []byte{0xd2, 0x00, 0x0b}},
		},
		Elements: []wasm.ElementSegment{
			{Mode: wasm.ElementDeclared, ElemType: wasm.ValueTypeFuncref, Funcidxs: []uint32{0}},
		},
	}

	sink := &wasm.CollectingSink{}
	validate.ValidateModule(m, wasm.NewFeatures(wasm.FeatureReferenceTypes, wasm.FeatureBulkMemory), sink, true)
	assert.True(t, sink.Ok(), "%v", sink.Diagnostics)
}

func TestValidateIfElseWithResult(t *testing.T) {
	m := &wasm.Module{
		Types:         []wasm.FunctionType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FunctionTypes: []uint32{0},
		Code: []wasm.Code{
			// i32.const 0; if (result i32); i32.const 1; else; i32.const 2; end; end
			{Body: []byte{0x41, 0x00, 0x04, 0x7f, 0x41, 0x01, 0x05, 0x41, 0x02, 0x0b, 0x0b}},
		},
	}

	sink := &wasm.CollectingSink{}
	validate.ValidateModule(m, wasm.Features{}, sink, true)
	assert.True(t, sink.Ok(), "%v", sink.Diagnostics)
}

func TestValidateUndeclaredFunctionRef(t *testing.T) {
	m := &wasm.Module{
		Types:         []wasm.FunctionType{{}},
		FunctionTypes: []uint32{0},
		Code: []wasm.Code{
			{Body: []byte{0x0b}},
		},
		Globals: []wasm.GlobalEntry{
			// No element segment, export, or start ever declares function 0,
			// so this ref.func must be rejected once the whole module is
			// known.
			{Type: wasm.GlobalType{Type: wasm.ValueTypeFuncref}, Init: []byte{0xd2, 0x00, 0x0b}},
		},
	}

	sink := &wasm.CollectingSink{}
	validate.ValidateModule(m, wasm.NewFeatures(wasm.FeatureReferenceTypes), sink, true)
	require.NotEmpty(t, sink.Diagnostics)
	assert.Contains(t, kinds(sink), wasm.UndeclaredFunctionRef)
}
