// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinwasm/wasmcore/wasm"
)

func TestDecodeBlockTypeEmpty(t *testing.T) {
	r := wasm.NewReader([]byte{0x40})
	bt, err := decodeBlockType(r)
	require.NoError(t, err)
	assert.True(t, bt.Empty)
}

func TestDecodeBlockTypeValue(t *testing.T) {
	r := wasm.NewReader([]byte{0x7f})
	bt, err := decodeBlockType(r)
	require.NoError(t, err)
	assert.False(t, bt.Empty)
	assert.False(t, bt.HasIndex)
	assert.Equal(t, wasm.ValueTypeI32, bt.Value)
}

func TestDecodeBlockTypeIndex(t *testing.T) {
	r := wasm.NewReader([]byte{0x05})
	bt, err := decodeBlockType(r)
	require.NoError(t, err)
	assert.True(t, bt.HasIndex)
	assert.Equal(t, uint32(5), bt.TypeIndex)
}

func TestReadExprSimple(t *testing.T) {
	// local.get 0; i32.const 1; i32.add; end
	body := []byte{OpLocalGet, 0x00, OpI32Const, 0x01, OpI32Add, OpEnd}
	r := wasm.NewReader(body)
	instrs, err := ReadExpr(r, wasm.Features{})
	require.NoError(t, err)
	require.Len(t, instrs, 4)
	assert.Equal(t, byte(OpLocalGet), instrs[0].Opcode)
	assert.Equal(t, uint32(0), instrs[0].Index)
	assert.Equal(t, byte(OpI32Const), instrs[1].Opcode)
	assert.Equal(t, int32(1), instrs[1].I32)
	assert.Equal(t, byte(OpI32Add), instrs[2].Opcode)
	assert.Equal(t, byte(OpEnd), instrs[3].Opcode)
	assert.True(t, r.Eof())
}

func TestReadExprNestedBlock(t *testing.T) {
	// block (empty) { nop } ; end
	body := []byte{OpBlock, 0x40, OpNop, OpEnd, OpEnd}
	r := wasm.NewReader(body)
	instrs, err := ReadExpr(r, wasm.Features{})
	require.NoError(t, err)
	require.Len(t, instrs, 4)
	assert.Equal(t, byte(OpBlock), instrs[0].Opcode)
	assert.True(t, instrs[0].Block.Empty)
	assert.Equal(t, byte(OpEnd), instrs[3].Opcode)
}

func TestExprReaderDepthTracking(t *testing.T) {
	body := []byte{OpBlock, 0x40, OpLoop, 0x40, OpNop, OpEnd, OpEnd, OpEnd}
	r := wasm.NewReader(body)
	er := NewExprReader(r, wasm.Features{})

	_, _, err := er.Next() // block
	require.NoError(t, err)
	assert.Equal(t, 1, er.Depth())

	_, _, err = er.Next() // loop
	require.NoError(t, err)
	assert.Equal(t, 2, er.Depth())

	_, _, err = er.Next() // nop
	require.NoError(t, err)
	assert.Equal(t, 2, er.Depth())

	_, _, err = er.Next() // end (closes loop)
	require.NoError(t, err)
	assert.Equal(t, 1, er.Depth())

	_, ok, err := er.Next() // end (closes block)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, er.Depth())

	_, ok, err = er.Next() // outermost end
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = er.Next() // exhausted
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeInstructionMemArg(t *testing.T) {
	// i32.load align=2 offset=4
	body := []byte{OpI32Load, 0x02, 0x04}
	r := wasm.NewReader(body)
	instr, err := decodeInstruction(r, wasm.Features{})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), instr.MemArg.Align)
	assert.Equal(t, uint32(4), instr.MemArg.Offset)
}

func TestDecodeInstructionUnknownOpcode(t *testing.T) {
	r := wasm.NewReader([]byte{0xfa})
	_, err := decodeInstruction(r, wasm.Features{})
	require.Error(t, err)
	var decErr *wasm.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, wasm.UnknownOpcode, decErr.Kind)
}

func TestDecodeInstructionFeatureGated(t *testing.T) {
	// sign extension op without the feature enabled.
	r := wasm.NewReader([]byte{OpI32Extend8S})
	_, err := decodeInstruction(r, wasm.Features{})
	require.Error(t, err)
	var decErr *wasm.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, wasm.FeatureDisabled, decErr.Kind)

	r2 := wasm.NewReader([]byte{OpI32Extend8S})
	_, err = decodeInstruction(r2, wasm.NewFeatures(wasm.FeatureSignExtensionOps))
	require.NoError(t, err)
}

func TestDecodeBulkMemoryPairFields(t *testing.T) {
	// memory.init dataIdx=1, memIdx=0 (0xfc 0x08)
	body := []byte{OpPrefixSat, 0x08, 0x01, 0x00}
	r := wasm.NewReader(body)
	instr, err := decodeInstruction(r, wasm.NewFeatures(wasm.FeatureBulkMemory))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), instr.Pair[0])
	assert.Equal(t, uint32(0), instr.Pair[1])
}
