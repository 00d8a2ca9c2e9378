// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package code

import (
	"fmt"

	"github.com/tinwasm/wasmcore/wasm"
)

// BlockType is the decoded operand of block/loop/if/try: either the empty
// type, a single result value type, or an index into the module's type
// section for a multi-value signature.
type BlockType struct {
	// Empty is true when the block has neither parameters nor results.
	Empty bool
	// Value is set when the block has a single result and no parameters;
	// valid only when !Empty && !HasIndex.
	Value wasm.ValueType
	// HasIndex is true when the block's signature is given by TypeIndex
	// into the module's type section (the multi-value encoding).
	HasIndex  bool
	TypeIndex uint32
}

// decodeBlockType parses the signed-LEB128-encoded block type immediate: a
// single distinguished byte tags the empty type or one single result value
// type (i32, i64, f32, f64, v128, funcref, externref), anything else is the first byte of a (necessarily non-negative)
// signed LEB128 type section index. This mirrors the sign-bit discriminant
// the teacher's own decodeBlockType uses, expressed as a peek instead of a
// read-then-reinterpret.
func decodeBlockType(r *wasm.Reader) (BlockType, error) {
	peek := r.Remaining()
	if len(peek) == 0 {
		return BlockType{}, wasm.NewDecodeError(r.Pos(), wasm.UnexpectedEnd, fmt.Errorf("truncated block type"))
	}

	switch peek[0] {
	case 0x40:
		r.ReadU8() //nolint:errcheck // length already checked above
		return BlockType{Empty: true}, nil
	case byte(wasm.ValueTypeI32), byte(wasm.ValueTypeI64), byte(wasm.ValueTypeF32), byte(wasm.ValueTypeF64),
		byte(wasm.ValueTypeV128), byte(wasm.ValueTypeFuncref), byte(wasm.ValueTypeExternref):
		r.ReadU8() //nolint:errcheck
		return BlockType{Value: wasm.ValueType(peek[0])}, nil
	}

	start := r.Pos()
	idx, err := r.ReadVarS64()
	if err != nil {
		return BlockType{}, err
	}
	if idx < 0 {
		return BlockType{}, wasm.NewDecodeError(start, wasm.InvalidImmediate, fmt.Errorf("invalid block type index %d", idx))
	}
	return BlockType{HasIndex: true, TypeIndex: uint32(idx)}, nil
}
