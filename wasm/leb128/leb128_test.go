// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package leb128

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVarUint32(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		v    uint32
		n    int
	}{
		{"zero", []byte{0x00}, 0, 1},
		{"one byte", []byte{0x7f}, 127, 1},
		{"two bytes", []byte{0xe5, 0x8e, 0x26}, 624485, 3},
		{"max u32", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xffffffff, 5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, n, err := GetVarUint32(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.v, v)
			assert.Equal(t, c.n, n)
		})
	}
}

func TestGetVarUint32Overflow(t *testing.T) {
	// A u32 encoded with a fifth byte carrying bits past bit 32 overflows.
	_, _, err := GetVarUint32([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestGetVarUint32UnusedBits(t *testing.T) {
	// The fifth byte of a u32 may only carry the top 4 bits; bit 5 set here
	// is out of range.
	_, _, err := GetVarUint32([]byte{0xff, 0xff, 0xff, 0xff, 0x1f})
	assert.ErrorIs(t, err, ErrUnusedBits)
}

func TestGetVarUint32UnexpectedEnd(t *testing.T) {
	_, _, err := GetVarUint32([]byte{0x80})
	assert.ErrorIs(t, err, ErrUnexpectedEnd)
}

func TestVarintRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 127, -128, 0x3fff, -0x4000, 0x7fffffff, -0x80000000}
	for _, v := range cases {
		enc := PutVarint64(nil, v)

		got32, n, err := GetVarint32(enc)
		if v >= -0x80000000 && v <= 0x7fffffff {
			require.NoError(t, err)
			assert.Equal(t, int32(v), got32)
			assert.Equal(t, len(enc), n)
		}

		got64, n, err := GetVarint64(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got64)
		assert.Equal(t, len(enc), n)
	}
}

func TestVaruintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 0xffffffff, 0xffffffffffffffff}
	for _, v := range cases {
		if v <= 0xffffffff {
			enc := PutVarUint32(nil, uint32(v))
			got, n, err := GetVarUint32(enc)
			require.NoError(t, err)
			assert.Equal(t, uint32(v), got)
			assert.Equal(t, len(enc), n)
		}

		enc64 := putVarUint64(v)
		got64, n, err := GetVarUint64(enc64)
		require.NoError(t, err)
		assert.Equal(t, v, got64)
		assert.Equal(t, len(enc64), n)
	}
}

func putVarUint64(v uint64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			return buf
		}
	}
}
