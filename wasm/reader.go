// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"math"
	"unicode/utf8"

	"github.com/tinwasm/wasmcore/wasm/leb128"
)

// Reader is a cursor over a borrowed byte span. It never takes ownership of
// data: callers must keep the backing array alive for as long as any Reader
// or lazy sequence derived from it is in use. A failed read leaves pos
// unchanged, so the same Reader can be probed speculatively by a caller that
// snapshots and restores Pos.
type Reader struct {
	data []byte
	pos  uint32
}

// NewReader wraps data for reading from the beginning.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current byte offset.
func (r *Reader) Pos() uint32 { return r.pos }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.data) - int(r.pos) }

// Eof reports whether the cursor has consumed the whole span.
func (r *Reader) Eof() bool { return int(r.pos) >= len(r.data) }

// Remaining returns the unread suffix without advancing the cursor.
func (r *Reader) Remaining() []byte { return r.data[r.pos:] }

func (r *Reader) fail(kind ErrorKind, cause error) error {
	return NewDecodeError(r.pos, kind, cause)
}

// ReadU8 reads one fixed-width byte.
func (r *Reader) ReadU8() (byte, error) {
	if r.Eof() {
		return 0, r.fail(UnexpectedEnd, errUnexpectedEnd)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadVarU32 reads an unsigned LEB128 integer of at most 32 significant
// bits.
func (r *Reader) ReadVarU32() (uint32, error) {
	v, n, err := leb128.GetVarUint32(r.Remaining())
	if err != nil {
		return 0, r.fail(lebErrorKind(err), err)
	}
	r.pos += uint32(n)
	return v, nil
}

// ReadVarU64 reads an unsigned LEB128 integer of at most 64 significant
// bits.
func (r *Reader) ReadVarU64() (uint64, error) {
	v, n, err := leb128.GetVarUint64(r.Remaining())
	if err != nil {
		return 0, r.fail(lebErrorKind(err), err)
	}
	r.pos += uint32(n)
	return v, nil
}

// ReadVarS32 reads a signed, sign-extended LEB128 integer of at most 32
// significant bits (used by i32.const).
func (r *Reader) ReadVarS32() (int32, error) {
	v, n, err := leb128.GetVarint32(r.Remaining())
	if err != nil {
		return 0, r.fail(lebErrorKind(err), err)
	}
	r.pos += uint32(n)
	return v, nil
}

// ReadVarS64 reads a signed, sign-extended LEB128 integer of at most 64
// significant bits (used by i64.const).
func (r *Reader) ReadVarS64() (int64, error) {
	v, n, err := leb128.GetVarint64(r.Remaining())
	if err != nil {
		return 0, r.fail(lebErrorKind(err), err)
	}
	r.pos += uint32(n)
	return v, nil
}

// ReadF32 reads a little-endian IEEE-754 single-precision float.
func (r *Reader) ReadF32() (float32, error) {
	if r.Len() < 4 {
		return 0, r.fail(UnexpectedEnd, errUnexpectedEnd)
	}
	bits := le32(r.data[r.pos:])
	r.pos += 4
	return math.Float32frombits(bits), nil
}

// ReadF64 reads a little-endian IEEE-754 double-precision float.
func (r *Reader) ReadF64() (float64, error) {
	if r.Len() < 8 {
		return 0, r.fail(UnexpectedEnd, errUnexpectedEnd)
	}
	bits := le64(r.data[r.pos:])
	r.pos += 8
	return math.Float64frombits(bits), nil
}

// ReadCount reads a u32 LEB128 vector-length prefix.
func (r *Reader) ReadCount() (uint32, error) {
	return r.ReadVarU32()
}

// ReadSubspan reads and returns exactly n raw bytes as a borrowed slice.
func (r *Reader) ReadSubspan(n uint32) ([]byte, error) {
	if uint32(r.Len()) < n {
		return nil, r.fail(UnexpectedEnd, errUnexpectedEnd)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadByteVec reads a u32-length-prefixed byte string.
func (r *Reader) ReadByteVec() ([]byte, error) {
	start := r.pos
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	b, err := r.ReadSubspan(n)
	if err != nil {
		r.pos = start
		return nil, err
	}
	return b, nil
}

// ReadString reads a u32-length-prefixed, UTF-8-validated string.
func (r *Reader) ReadString() (string, error) {
	start := r.pos
	b, err := r.ReadByteVec()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		err := r.fail(InvalidUtf8, errInvalidUtf8)
		r.pos = start
		return "", err
	}
	return string(b), nil
}

// SubReader carves out a bounded child Reader over the next n bytes and
// advances past them, so the child can be handed to a lazy sequence that
// must not read past its section's declared length.
func (r *Reader) SubReader(n uint32) (*Reader, error) {
	b, err := r.ReadSubspan(n)
	if err != nil {
		return nil, err
	}
	return &Reader{data: b}, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func lebErrorKind(err error) ErrorKind {
	switch err {
	case leb128.ErrOverflow:
		return LebOverflow
	case leb128.ErrUnusedBits:
		return LebUnusedBits
	default:
		return UnexpectedEnd
	}
}
