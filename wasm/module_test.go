// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinwasm/wasmcore/wasm"
	"github.com/tinwasm/wasmcore/wasm/leb128"
	"github.com/tinwasm/wasmcore/wasm/validate"
)

// section builds one top-level section: id byte, u32 LEB128 length, payload.
func section(id byte, payload []byte) []byte {
	buf := []byte{id}
	buf = leb128.PutVarUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

func vecLen(n int, items ...[]byte) []byte {
	buf := leb128.PutVarUint32(nil, uint32(n))
	for _, it := range items {
		buf = append(buf, it...)
	}
	return buf
}

// identityModule builds a minimal module exporting a single function
// `id: (i32) -> i32` that returns its argument unchanged.
func identityModule() []byte {
	header := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	typeSec := section(1, vecLen(1,
		[]byte{0x60, 0x01, 0x7f, 0x01, 0x7f}, // (i32) -> i32
	))

	funcSec := section(3, vecLen(1, []byte{0x00}))

	body := []byte{0x00} // no locals
	body = append(body, 0x20, 0x00) // local.get 0
	body = append(body, 0x0b)       // end
	codeEntry := leb128.PutVarUint32(nil, uint32(len(body)))
	codeEntry = append(codeEntry, body...)
	codeSec := section(10, vecLen(1, codeEntry))

	nameBytes := append(leb128.PutVarUint32(nil, 2), "id"...)
	exportEntry := append(append([]byte{}, nameBytes...), 0x00, 0x00)
	exportSec := section(7, vecLen(1, exportEntry))

	out := append([]byte{}, header...)
	out = append(out, typeSec...)
	out = append(out, funcSec...)
	out = append(out, exportSec...)
	out = append(out, codeSec...)
	return out
}

func TestDecodeModuleIdentity(t *testing.T) {
	m, err := wasm.DecodeModule(identityModule(), wasm.Features{})
	require.NoError(t, err)

	require.Len(t, m.Types, 1)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, m.Types[0].Params)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, m.Types[0].Results)

	require.Len(t, m.FunctionTypes, 1)
	assert.Equal(t, uint32(0), m.FunctionTypes[0])

	require.Len(t, m.Code, 1)
	require.Len(t, m.Exports, 1)
	assert.Equal(t, "id", m.Exports[0].Name)
}

func TestDecodeModuleValidates(t *testing.T) {
	m, err := wasm.DecodeModule(identityModule(), wasm.Features{})
	require.NoError(t, err)

	sink := &wasm.CollectingSink{}
	validate.ValidateModule(m, wasm.Features{}, sink, true)
	assert.True(t, sink.Ok(), "%v", sink.Diagnostics)
}

func TestDecodeModuleBadMagic(t *testing.T) {
	data := append([]byte{}, identityModule()...)
	data[0] = 0xff
	_, err := wasm.DecodeModule(data, wasm.Features{})
	require.Error(t, err)
	var decErr *wasm.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, wasm.BadMagic, decErr.Kind)
}

func TestDecodeModuleSectionOrder(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	funcSec := section(3, vecLen(1, []byte{0x00}))
	typeSec := section(1, vecLen(1, []byte{0x60, 0x00, 0x00}))

	data := append([]byte{}, header...)
	data = append(data, funcSec...) // function section before type section
	data = append(data, typeSec...)

	_, err := wasm.DecodeModule(data, wasm.Features{})
	require.Error(t, err)
	var decErr *wasm.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, wasm.SectionOrder, decErr.Kind)
}

func TestDecodeModuleDataCountWithoutDataSection(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	dataCountSec := section(12, leb128.PutVarUint32(nil, 2))

	features := wasm.NewFeatures(wasm.FeatureBulkMemory)
	data := append([]byte{}, header...)
	data = append(data, dataCountSec...)

	_, err := wasm.DecodeModule(data, features)
	require.Error(t, err)
	var decErr *wasm.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, wasm.SectionLengthMismatch, decErr.Kind)
}

func TestDecodeModuleDataCountMismatch(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	dataCountSec := section(12, leb128.PutVarUint32(nil, 2))
	dataSec := section(11, vecLen(1, append([]byte{0x00, 0x41, 0x00, 0x0b}, leb128.PutVarUint32(nil, 0)...)))

	features := wasm.NewFeatures(wasm.FeatureBulkMemory)
	data := append([]byte{}, header...)
	data = append(data, dataSec...)
	data = append(data, dataCountSec...)

	_, err := wasm.DecodeModule(data, features)
	require.Error(t, err)
	var decErr *wasm.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, wasm.SectionLengthMismatch, decErr.Kind)
}
