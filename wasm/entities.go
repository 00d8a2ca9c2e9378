// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import "fmt"

// Table is a table declaration (table section entry or table import type).
type Table struct {
	Type TableType
}

// Memory is a memory declaration (memory section entry or memory import
// type).
type Memory struct {
	Type MemoryType
}

// GlobalVar is a global declaration's type, shared between a plain global
// entry and a global import.
type GlobalVar struct {
	Type GlobalType
}

// Import describes one entry in the import section: a (module, field) name
// pair and a descriptor naming the kind of entity being imported.
type Import struct {
	Module string
	Field  string
	Kind   ExternalKind

	FuncTypeIndex uint32
	Table         Table
	Memory        Memory
	Global        GlobalVar
	Event         EventType
}

func decodeImport(r *Reader, features Features) (Import, error) {
	mod, err := r.ReadString()
	if err != nil {
		return Import{}, err
	}
	field, err := r.ReadString()
	if err != nil {
		return Import{}, err
	}
	kind, err := decodeExternalKind(r)
	if err != nil {
		return Import{}, err
	}

	imp := Import{Module: mod, Field: field, Kind: kind}
	switch kind {
	case ExternalFunction:
		imp.FuncTypeIndex, err = r.ReadVarU32()
	case ExternalTable:
		imp.Table.Type, err = decodeTableType(r, features.Has(FeatureReferenceTypes))
	case ExternalMemory:
		imp.Memory.Type, err = decodeMemoryType(r, features.Has(FeatureThreads))
	case ExternalGlobal:
		imp.Global.Type, err = decodeGlobalType(r)
	case ExternalEvent:
		if !features.Has(FeatureExceptions) {
			return Import{}, NewDecodeError(r.pos, FeatureDisabled, fmt.Errorf("event import requires exceptions feature"))
		}
		imp.Event, err = decodeEventType(r)
	}
	if err != nil {
		return Import{}, err
	}
	return imp, nil
}

// Export describes one entry in the export section: a unique name and the
// kind/index of the entity it refers to.
type Export struct {
	Name  string
	Kind  ExternalKind
	Index uint32
}

func decodeExport(r *Reader) (Export, error) {
	name, err := r.ReadString()
	if err != nil {
		return Export{}, err
	}
	kind, err := decodeExternalKind(r)
	if err != nil {
		return Export{}, err
	}
	idx, err := r.ReadVarU32()
	if err != nil {
		return Export{}, err
	}
	return Export{Name: name, Kind: kind, Index: idx}, nil
}

// ElementMode distinguishes the three ways an element segment can populate
// or describe a table.
type ElementMode int

const (
	ElementActive ElementMode = iota
	ElementPassive
	ElementDeclared
)

// ElementSegment is one entry of the element section. Its element list is
// encoded either as bare function indices (Funcidxs non-nil) or as a
// sequence of constant element expressions (Exprs non-nil), per spec §3's
// ElementSegment row; exactly one of the two is populated after decode.
type ElementSegment struct {
	Mode       ElementMode
	TableIndex uint32
	Offset     []byte // constant expression bytes, valid only when Mode == ElementActive
	ElemType   ValueType
	Funcidxs   []uint32
	Exprs      [][]byte // each a constant expression producing ElemType
}

func decodeElementSegment(r *Reader, features Features) (ElementSegment, error) {
	flags, err := r.ReadVarU32()
	if err != nil {
		return ElementSegment{}, err
	}

	if flags > 7 && !features.Has(FeatureBulkMemory) {
		return ElementSegment{}, NewDecodeError(r.pos, FeatureDisabled, fmt.Errorf("element segment flags %d require bulk-memory feature", flags))
	}
	if flags != 0 && !features.Has(FeatureBulkMemory) {
		return ElementSegment{}, NewDecodeError(r.pos, FeatureDisabled, fmt.Errorf("non-active element segment requires bulk-memory feature"))
	}

	seg := ElementSegment{ElemType: ValueTypeFuncref}

	usesExprs := flags&4 != 0
	hasExplicitTable := flags&2 != 0
	isActive := flags&1 == 0

	if isActive {
		seg.Mode = ElementActive
		if hasExplicitTable {
			seg.TableIndex, err = r.ReadVarU32()
			if err != nil {
				return ElementSegment{}, err
			}
		}
		seg.Offset, err = readConstExprBytes(r)
		if err != nil {
			return ElementSegment{}, err
		}
	} else if flags&2 != 0 {
		seg.Mode = ElementDeclared
	} else {
		seg.Mode = ElementPassive
	}

	if !isActive || hasExplicitTable || usesExprs {
		if usesExprs {
			t, err := decodeValueType(r)
			if err != nil {
				return ElementSegment{}, err
			}
			seg.ElemType = t
		} else {
			kind, err := r.ReadU8()
			if err != nil {
				return ElementSegment{}, err
			}
			if kind != 0 {
				return ElementSegment{}, NewDecodeError(r.pos-1, InvalidImmediate, fmt.Errorf("invalid elemkind %#x", kind))
			}
		}
	}

	n, err := r.ReadCount()
	if err != nil {
		return ElementSegment{}, err
	}
	if usesExprs {
		seg.Exprs = make([][]byte, 0, initialCap(n))
		for i := uint32(0); i < n; i++ {
			b, err := readConstExprBytes(r)
			if err != nil {
				return ElementSegment{}, err
			}
			seg.Exprs = append(seg.Exprs, b)
		}
	} else {
		seg.Funcidxs = make([]uint32, 0, initialCap(n))
		for i := uint32(0); i < n; i++ {
			idx, err := r.ReadVarU32()
			if err != nil {
				return ElementSegment{}, err
			}
			seg.Funcidxs = append(seg.Funcidxs, idx)
		}
	}

	return seg, nil
}

// DataSegment is one entry of the data section.
type DataSegment struct {
	Mode        ElementMode // only ElementActive or ElementPassive is ever produced
	MemoryIndex uint32
	Offset      []byte // constant expression bytes, valid only when Mode == ElementActive
	Bytes       []byte
}

func decodeDataSegment(r *Reader, features Features) (DataSegment, error) {
	flags, err := r.ReadVarU32()
	if err != nil {
		return DataSegment{}, err
	}
	if flags > 2 {
		return DataSegment{}, NewDecodeError(r.pos, InvalidImmediate, fmt.Errorf("invalid data segment flags %d", flags))
	}
	if flags != 0 && !features.Has(FeatureBulkMemory) {
		return DataSegment{}, NewDecodeError(r.pos, FeatureDisabled, fmt.Errorf("passive/explicit-memory data segment requires bulk-memory feature"))
	}

	seg := DataSegment{}
	switch flags {
	case 0:
		seg.Mode = ElementActive
		seg.Offset, err = readConstExprBytes(r)
	case 1:
		seg.Mode = ElementPassive
	case 2:
		seg.Mode = ElementActive
		seg.MemoryIndex, err = r.ReadVarU32()
		if err == nil {
			seg.Offset, err = readConstExprBytes(r)
		}
	}
	if err != nil {
		return DataSegment{}, err
	}

	seg.Bytes, err = r.ReadByteVec()
	if err != nil {
		return DataSegment{}, err
	}
	return seg, nil
}

// Local is one run-length-encoded run of same-typed locals in a function
// body.
type Local struct {
	Count uint32
	Type  ValueType
}

// Code is one entry of the code section: the function's declared locals
// (parameters are not included; the validator prepends them) and the opaque
// byte range of its expression, which the instruction decoder and validator
// parse lazily.
type Code struct {
	Locals []Local
	Body   []byte
}

func decodeCode(r *Reader) (Code, error) {
	size, err := r.ReadVarU32()
	if err != nil {
		return Code{}, err
	}
	sub, err := r.SubReader(size)
	if err != nil {
		return Code{}, err
	}

	n, err := sub.ReadCount()
	if err != nil {
		return Code{}, err
	}
	locals := make([]Local, 0, initialCap(n))
	var total uint64
	for i := uint32(0); i < n; i++ {
		count, err := sub.ReadVarU32()
		if err != nil {
			return Code{}, err
		}
		typ, err := decodeValueType(sub)
		if err != nil {
			return Code{}, err
		}
		total += uint64(count)
		if total > math32Max {
			return Code{}, NewDecodeError(sub.pos, InvalidImmediate, fmt.Errorf("local count overflows u32"))
		}
		locals = append(locals, Local{Count: count, Type: typ})
	}

	return Code{Locals: locals, Body: sub.Remaining()}, nil
}

const math32Max = 1<<32 - 1

// readConstExprBytes scans forward to (and including) the matching `end`
// opcode of a constant expression, returning the raw bytes so that the
// expression validator (package validate) can type-check it on demand
// without the structural decoder needing any opcode knowledge itself.
func readConstExprBytes(r *Reader) ([]byte, error) {
	start := r.pos
	depth := 0
	for {
		op, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		switch op {
		case 0x02, 0x03, 0x04: // block, loop, if: consume blocktype immediate
			depth++
			if _, err := skipBlockType(r); err != nil {
				return nil, err
			}
		case 0x0b: // end
			if depth == 0 {
				return r.data[start:r.pos], nil
			}
			depth--
		default:
			if err := skipInstructionImmediate(r, op); err != nil {
				return nil, err
			}
		}
	}
}

// skipBlockType consumes a blocktype immediate without interpreting it.
func skipBlockType(r *Reader) (struct{}, error) {
	if r.Eof() {
		return struct{}{}, r.fail(UnexpectedEnd, errUnexpectedEnd)
	}
	switch r.data[r.pos] {
	case 0x40, byte(ValueTypeI32), byte(ValueTypeI64), byte(ValueTypeF32), byte(ValueTypeF64),
		byte(ValueTypeV128), byte(ValueTypeFuncref), byte(ValueTypeExternref):
		r.pos++
		return struct{}{}, nil
	default:
		_, err := r.ReadVarS64()
		return struct{}{}, err
	}
}

// skipInstructionImmediate consumes the immediate of a single instruction
// whose opcode has already been read, for the narrow set of opcodes a
// constant expression may legally contain plus enough of the rest to scan
// past nested control opcodes it cannot legally contain (defense in depth:
// the validator rejects those regardless).
func skipInstructionImmediate(r *Reader, op byte) error {
	switch op {
	case 0x41: // i32.const
		_, err := r.ReadVarS32()
		return err
	case 0x42: // i64.const
		_, err := r.ReadVarS64()
		return err
	case 0x43: // f32.const
		_, err := r.ReadF32()
		return err
	case 0x44: // f64.const
		_, err := r.ReadF64()
		return err
	case 0x23, 0x20, 0x21, 0x22, 0x0c, 0x0d, 0x10: // global.get and friends: one index immediate
		_, err := r.ReadVarU32()
		return err
	case 0xd0: // ref.null
		_, err := decodeValueType(r)
		return err
	case 0xd1: // ref.is_null
		return nil
	case 0xd2: // ref.func
		_, err := r.ReadVarU32()
		return err
	default:
		// Everything else is rejected by the validator as "constant
		// expression required"; the scan only needs to not desynchronize,
		// so treat unknown opcodes as immediate-free.
		return nil
	}
}

// Start is the start section: the index of the niladic start function.
type Start struct {
	FuncIndex uint32
}
