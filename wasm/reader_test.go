// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinwasm/wasmcore/wasm/leb128"
)

func TestReaderPrimitives(t *testing.T) {
	data := []byte{0x2a, 0xe5, 0x8e, 0x26}
	r := NewReader(data)

	b, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, byte(0x2a), b)

	v, err := r.ReadVarU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(624485), v)

	assert.True(t, r.Eof())
}

func TestReaderPartialReadDoesNotAdvance(t *testing.T) {
	r := NewReader([]byte{0x80})
	pos := r.Pos()

	_, err := r.ReadVarU32()
	require.Error(t, err)
	assert.Equal(t, pos, r.Pos())
}

func TestReaderFloats(t *testing.T) {
	var buf []byte
	buf = append(buf, 0x00, 0x00, 0x80, 0x3f) // 1.0f
	buf = append(buf, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf0, 0x3f) // 1.0
	r := NewReader(buf)

	f32, err := r.ReadF32()
	require.NoError(t, err)
	assert.Equal(t, float32(1.0), f32)

	f64, err := r.ReadF64()
	require.NoError(t, err)
	assert.Equal(t, float64(1.0), f64)
}

func TestReaderString(t *testing.T) {
	var buf []byte
	buf = leb128.PutVarUint32(buf, 5)
	buf = append(buf, "hello"...)
	r := NewReader(buf)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestReaderStringInvalidUTF8(t *testing.T) {
	var buf []byte
	buf = leb128.PutVarUint32(buf, 2)
	buf = append(buf, 0xff, 0xfe)
	r := NewReader(buf)

	_, err := r.ReadString()
	require.Error(t, err)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, InvalidUtf8, decErr.Kind)
}

func TestReaderSubReaderBounds(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	r := NewReader(data)

	sub, err := r.SubReader(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), sub.Pos())
	assert.Equal(t, []byte{0x04, 0x05}, r.Remaining())

	b, err := sub.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)
}

func TestReaderVarU32Overflow(t *testing.T) {
	r := NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
	_, err := r.ReadVarU32()
	require.Error(t, err)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, LebOverflow, decErr.Kind)
}
