// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package code

import (
	"fmt"

	"github.com/tinwasm/wasmcore/wasm"
)

// MemArg is the (align, offset) pair carried by every load/store and
// memory-related atomic instruction.
type MemArg struct {
	Align  uint32
	Offset uint32
	// MemoryIndex is non-zero only under the multi-memory feature; the MVP
	// encoding has no memory index field and always means memory 0.
	MemoryIndex uint32
}

// BrTable is the br_table immediate: a jump table of label indices plus the
// default taken when the scrutinee is out of range.
type BrTable struct {
	Targets []uint32
	Default uint32
}

// CallIndirect is the call_indirect / return_call_indirect immediate.
type CallIndirect struct {
	TypeIndex  uint32
	TableIndex uint32
}

// Instruction is one decoded opcode plus its single immediate. Exactly one
// of the typed fields below is meaningful for any given Opcode/Prefix pair;
// which one is a static property of the opcode, consulted once per
// instruction rather than re-derived per field access (see decodeInstruction).
type Instruction struct {
	Offset uint32
	Opcode byte
	// Prefix is the u32 LEB sub-opcode read after a 0xFC/0xFD/0xFE prefix
	// byte; zero for ordinary single-byte opcodes.
	Prefix uint32

	Block        BlockType
	Index        uint32 // local/global/func/table/memory/event/elem/data index
	CallIndirect CallIndirect
	BrTable      BrTable
	// Pair holds the two index immediates of the 0xFC bulk memory/table
	// operations (memory.init's (data, mem), memory.copy's (dst, src)
	// memory, table.init's (elem, table), table.copy's (dst, src) table).
	Pair         [2]uint32
	Types        []wasm.ValueType
	MemArg       MemArg
	I32          int32
	I64          int64
	F32          float32
	F64          float64
	V128         [16]byte
	RefType      wasm.ValueType
	LaneIdx      byte
	LaneIndices  []byte // i8x16.shuffle
}

// IsPrefixed reports whether Opcode is one of the 0xFC/0xFD/0xFE multi-byte
// prefixes, in which case Prefix holds the sub-opcode.
func (i Instruction) IsPrefixed() bool {
	return i.Opcode == OpPrefixSat || i.Opcode == OpPrefixSIMD || i.Opcode == OpPrefixThread
}

// decodeInstruction reads one opcode and its immediate from r. features
// gates which opcodes are recognized at all; an opcode unlocked only by a
// disabled feature reports FeatureDisabled rather than UnknownOpcode, so
// callers can tell "malformed" from "needs a flag" apart.
func decodeInstruction(r *wasm.Reader, features wasm.Features) (Instruction, error) {
	start := r.Pos()
	op, err := r.ReadU8()
	if err != nil {
		return Instruction{}, err
	}
	instr := Instruction{Offset: start, Opcode: op}

	switch op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn,
		OpDrop, OpSelect,
		OpI32Eqz, OpI32Eq, OpI32Ne, OpI32LtS, OpI32LtU, OpI32GtS, OpI32GtU, OpI32LeS, OpI32LeU, OpI32GeS, OpI32GeU,
		OpI64Eqz, OpI64Eq, OpI64Ne, OpI64LtS, OpI64LtU, OpI64GtS, OpI64GtU, OpI64LeS, OpI64LeU, OpI64GeS, OpI64GeU,
		OpF32Eq, OpF32Ne, OpF32Lt, OpF32Gt, OpF32Le, OpF32Ge,
		OpF64Eq, OpF64Ne, OpF64Lt, OpF64Gt, OpF64Le, OpF64Ge,
		OpI32Clz, OpI32Ctz, OpI32Popcnt, OpI32Add, OpI32Sub, OpI32Mul, OpI32DivS, OpI32DivU, OpI32RemS, OpI32RemU,
		OpI32And, OpI32Or, OpI32Xor, OpI32Shl, OpI32ShrS, OpI32ShrU, OpI32Rotl, OpI32Rotr,
		OpI64Clz, OpI64Ctz, OpI64Popcnt, OpI64Add, OpI64Sub, OpI64Mul, OpI64DivS, OpI64DivU, OpI64RemS, OpI64RemU,
		OpI64And, OpI64Or, OpI64Xor, OpI64Shl, OpI64ShrS, OpI64ShrU, OpI64Rotl, OpI64Rotr,
		OpF32Abs, OpF32Neg, OpF32Ceil, OpF32Floor, OpF32Trunc, OpF32Nearest, OpF32Sqrt,
		OpF32Add, OpF32Sub, OpF32Mul, OpF32Div, OpF32Min, OpF32Max, OpF32Copysign,
		OpF64Abs, OpF64Neg, OpF64Ceil, OpF64Floor, OpF64Trunc, OpF64Nearest, OpF64Sqrt,
		OpF64Add, OpF64Sub, OpF64Mul, OpF64Div, OpF64Min, OpF64Max, OpF64Copysign,
		OpI32WrapI64, OpI32TruncF32S, OpI32TruncF32U, OpI32TruncF64S, OpI32TruncF64U,
		OpI64ExtendI32S, OpI64ExtendI32U, OpI64TruncF32S, OpI64TruncF32U, OpI64TruncF64S, OpI64TruncF64U,
		OpF32ConvertI32S, OpF32ConvertI32U, OpF32ConvertI64S, OpF32ConvertI64U, OpF32DemoteF64,
		OpF64ConvertI32S, OpF64ConvertI32U, OpF64ConvertI64S, OpF64ConvertI64U, OpF64PromoteF32,
		OpI32ReinterpretF32, OpI64ReinterpretF64, OpF32ReinterpretI32, OpF64ReinterpretI64:
		// Empty immediate.
		return instr, nil

	case OpI32Extend8S, OpI32Extend16S, OpI64Extend8S, OpI64Extend16S, OpI64Extend32S:
		if !features.Has(wasm.FeatureSignExtensionOps) {
			return Instruction{}, featureErr(start, "sign-extension-ops")
		}
		return instr, nil

	case OpBlock, OpLoop, OpIf, OpTry:
		if op == OpTry && !features.Has(wasm.FeatureExceptions) {
			return Instruction{}, featureErr(start, "exceptions")
		}
		bt, err := decodeBlockType(r)
		if err != nil {
			return Instruction{}, err
		}
		instr.Block = bt
		return instr, nil

	case OpBr, OpBrIf, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet, OpCall, OpReturnCall:
		if (op == OpReturnCall) && !features.Has(wasm.FeatureTailCall) {
			return Instruction{}, featureErr(start, "tail-call")
		}
		idx, err := r.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Index = idx
		return instr, nil

	case OpCatch, OpThrow, OpRethrow, OpDelegate:
		if !features.Has(wasm.FeatureExceptions) {
			return Instruction{}, featureErr(start, "exceptions")
		}
		idx, err := r.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Index = idx
		return instr, nil

	case OpBrTable:
		n, err := r.ReadCount()
		if err != nil {
			return Instruction{}, err
		}
		targets := make([]uint32, 0, n)
		for k := uint32(0); k < n; k++ {
			t, err := r.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			targets = append(targets, t)
		}
		def, err := r.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.BrTable = BrTable{Targets: targets, Default: def}
		return instr, nil

	case OpCallIndirect, OpReturnCallIndirect:
		if op == OpReturnCallIndirect && !features.Has(wasm.FeatureTailCall) {
			return Instruction{}, featureErr(start, "tail-call")
		}
		typeIdx, err := r.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		tableIdx, err := r.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.CallIndirect = CallIndirect{TypeIndex: typeIdx, TableIndex: tableIdx}
		return instr, nil

	case OpTableGet, OpTableSet:
		if !features.Has(wasm.FeatureReferenceTypes) {
			return Instruction{}, featureErr(start, "reference-types")
		}
		idx, err := r.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Index = idx
		return instr, nil

	case OpSelectT:
		if !features.Has(wasm.FeatureReferenceTypes) {
			return Instruction{}, featureErr(start, "reference-types")
		}
		n, err := r.ReadCount()
		if err != nil {
			return Instruction{}, err
		}
		types := make([]wasm.ValueType, 0, n)
		for k := uint32(0); k < n; k++ {
			t, err := decodeValueTypeOperand(r)
			if err != nil {
				return Instruction{}, err
			}
			types = append(types, t)
		}
		instr.Types = types
		return instr, nil

	case OpRefNull:
		if !features.Has(wasm.FeatureReferenceTypes) {
			return Instruction{}, featureErr(start, "reference-types")
		}
		t, err := decodeValueTypeOperand(r)
		if err != nil {
			return Instruction{}, err
		}
		instr.RefType = t
		return instr, nil

	case OpRefIsNull:
		if !features.Has(wasm.FeatureReferenceTypes) {
			return Instruction{}, featureErr(start, "reference-types")
		}
		return instr, nil

	case OpRefFunc:
		if !features.Has(wasm.FeatureReferenceTypes) {
			return Instruction{}, featureErr(start, "reference-types")
		}
		idx, err := r.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Index = idx
		return instr, nil

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
		OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		ma, err := decodeMemArg(r, features.Has(wasm.FeatureMultiMemory))
		if err != nil {
			return Instruction{}, err
		}
		instr.MemArg = ma
		return instr, nil

	case OpMemorySize, OpMemoryGrow:
		idx, err := decodeMemoryIndexByte(r, features.Has(wasm.FeatureMultiMemory))
		if err != nil {
			return Instruction{}, err
		}
		instr.Index = idx
		return instr, nil

	case OpI32Const:
		v, err := r.ReadVarS32()
		if err != nil {
			return Instruction{}, err
		}
		instr.I32 = v
		return instr, nil

	case OpI64Const:
		v, err := r.ReadVarS64()
		if err != nil {
			return Instruction{}, err
		}
		instr.I64 = v
		return instr, nil

	case OpF32Const:
		v, err := r.ReadF32()
		if err != nil {
			return Instruction{}, err
		}
		instr.F32 = v
		return instr, nil

	case OpF64Const:
		v, err := r.ReadF64()
		if err != nil {
			return Instruction{}, err
		}
		instr.F64 = v
		return instr, nil

	case OpPrefixSat:
		return decodeSatPrefix(r, features)

	case OpPrefixSIMD:
		if !features.Has(wasm.FeatureSIMD) {
			return Instruction{}, featureErr(start, "simd")
		}
		return decodeSIMDPrefix(r)

	case OpPrefixThread:
		if !features.Has(wasm.FeatureThreads) {
			return Instruction{}, featureErr(start, "threads")
		}
		return decodeThreadPrefix(r, features.Has(wasm.FeatureMultiMemory))

	default:
		return Instruction{}, wasm.NewDecodeError(start, wasm.UnknownOpcode, fmt.Errorf("unknown opcode %#x", op))
	}
}

func decodeValueTypeOperand(r *wasm.Reader) (wasm.ValueType, error) {
	start := r.Pos()
	b, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	switch wasm.ValueType(b) {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64, wasm.ValueTypeV128,
		wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
		return wasm.ValueType(b), nil
	default:
		return 0, wasm.NewDecodeError(start, wasm.InvalidImmediate, fmt.Errorf("invalid value type %#x", b))
	}
}

func decodeMemArg(r *wasm.Reader, multiMemory bool) (MemArg, error) {
	align, err := r.ReadVarU32()
	if err != nil {
		return MemArg{}, err
	}
	var memIdx uint32
	// The multi-memory proposal steals the top bit of the align field to
	// flag a following memory index; plain MVP alignment never sets it.
	const memIdxFlag = 1 << 6
	if align&memIdxFlag != 0 {
		if !multiMemory {
			return MemArg{}, wasm.NewDecodeError(r.Pos(), wasm.FeatureDisabled, fmt.Errorf("memarg memory index requires multi-memory feature"))
		}
		align &^= memIdxFlag
		memIdx, err = r.ReadVarU32()
		if err != nil {
			return MemArg{}, err
		}
	}
	offset, err := r.ReadVarU32()
	if err != nil {
		return MemArg{}, err
	}
	return MemArg{Align: align, Offset: offset, MemoryIndex: memIdx}, nil
}

func decodeMemoryIndexByte(r *wasm.Reader, multiMemory bool) (uint32, error) {
	start := r.Pos()
	b, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	if b == 0 {
		return 0, nil
	}
	if !multiMemory {
		return 0, wasm.NewDecodeError(start, wasm.FeatureDisabled, fmt.Errorf("nonzero memory index requires multi-memory feature"))
	}
	return uint32(b), nil
}

func featureErr(offset uint32, name string) error {
	return wasm.NewDecodeError(offset, wasm.FeatureDisabled, fmt.Errorf("opcode requires %s feature", name))
}
