// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package leb128 decodes LEB128-encoded integers from a borrowed byte span.
//
// Every Get* function takes the remaining bytes of a module and returns the
// decoded value together with the number of bytes consumed; it never
// advances a caller-owned cursor itself and never returns a partial read on
// error, matching the "readers never partially advance" rule of the
// surrounding decoder.
package leb128

import (
	"golang.org/x/xerrors"
)

// ErrOverflow is returned when a LEB128 value uses more continuation bytes
// than the target width allows.
var ErrOverflow = xerrors.New("leb128: integer overflows target width")

// ErrUnusedBits is returned when the terminating byte of a LEB128 value sets
// bits beyond the target width.
var ErrUnusedBits = xerrors.New("leb128: unused bits set in terminating byte")

// ErrUnexpectedEnd is returned when the span runs out before a terminating
// byte (MSB clear) is seen.
var ErrUnexpectedEnd = xerrors.New("leb128: unexpected end of input")

// maxBytes returns the maximum number of LEB128 bytes that can encode an
// N-bit integer: ceil(N/7).
func maxBytes(bits int) int {
	return (bits + 6) / 7
}

// GetVarUint32 decodes an unsigned LEB128 value into a uint32.
func GetVarUint32(b []byte) (uint32, int, error) {
	v, n, err := getVarUint(b, 32)
	return uint32(v), n, err
}

// GetVarUint64 decodes an unsigned LEB128 value into a uint64.
func GetVarUint64(b []byte) (uint64, int, error) {
	return getVarUint(b, 64)
}

func getVarUint(b []byte, bits int) (uint64, int, error) {
	var result uint64
	var shift uint
	limit := maxBytes(bits)

	for i := 0; ; i++ {
		if i >= limit {
			return 0, 0, ErrOverflow
		}
		if i >= len(b) {
			return 0, 0, ErrUnexpectedEnd
		}
		c := b[i]
		low := uint64(c & 0x7f)

		if shift+7 > uint(bits) {
			// This is the last byte the target width allows: a continuation
			// bit here means too many bytes.
			if c&0x80 != 0 {
				return 0, 0, ErrOverflow
			}
			// The final byte may only have as many significant bits as are
			// left in the target width; higher bits must be zero.
			allowed := uint(bits) - shift
			if low>>allowed != 0 {
				return 0, 0, ErrUnusedBits
			}
		}

		result |= low << shift
		if c&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
}

// GetVarint32 decodes a signed LEB128 value into an int32.
func GetVarint32(b []byte) (int32, int, error) {
	v, n, err := getVarint(b, 32)
	return int32(v), n, err
}

// GetVarint64 decodes a signed LEB128 value into an int64.
func GetVarint64(b []byte) (int64, int, error) {
	return getVarint(b, 64)
}

func getVarint(b []byte, bits int) (int64, int, error) {
	var result int64
	var shift uint
	var c byte
	limit := maxBytes(bits)

	i := 0
	for {
		if i >= limit {
			return 0, 0, ErrOverflow
		}
		if i >= len(b) {
			return 0, 0, ErrUnexpectedEnd
		}
		c = b[i]
		low := int64(c & 0x7f)

		if shift+7 > uint(bits) {
			if c&0x80 != 0 {
				return 0, 0, ErrOverflow
			}
			allowed := uint(bits) - shift
			sign := (c & 0x40) != 0
			unused := low >> allowed
			var expect int64
			if sign {
				expect = (int64(1) << (7 - allowed)) - 1
			}
			if unused != expect {
				return 0, 0, ErrUnusedBits
			}
		}

		result |= low << shift
		shift += 7
		i++
		if c&0x80 == 0 {
			break
		}
	}

	if shift < uint(bits) && c&0x40 != 0 {
		result |= -1 << shift
	}
	return result, i, nil
}

// PutVarUint32 appends the unsigned LEB128 encoding of v to buf and returns
// the result.
func PutVarUint32(buf []byte, v uint32) []byte {
	return putVarUint(buf, uint64(v))
}

func putVarUint(buf []byte, v uint64) []byte {
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

// PutVarint64 appends the signed LEB128 encoding of v to buf and returns the
// result. Used only by tests that need to hand-assemble fixtures.
func PutVarint64(buf []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			buf = append(buf, b)
			return buf
		}
		buf = append(buf, b|0x80)
	}
}
