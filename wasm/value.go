// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import "fmt"

// ValueType is one of the value types the Wasm type system admits. It never
// appears on disk as anything but one of these tagged bytes; the checker's
// polymorphic "Any" bottom type is a distinct StackType in package validate,
// not a ValueType.
type ValueType byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeV128      ValueType = 0x7b
	ValueTypeFuncref   ValueType = 0x70
	ValueTypeExternref ValueType = 0x6f
	// ValueTypeNullref is a reference-types extension admitted by the
	// original wasp source for the bottom reference type; it never appears
	// on disk without the reference-types feature.
	ValueTypeNullref ValueType = 0x69
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	case ValueTypeNullref:
		return "nullref"
	default:
		return fmt.Sprintf("valuetype(%#x)", byte(t))
	}
}

// IsReference reports whether t is one of the reference types.
func (t ValueType) IsReference() bool {
	return t == ValueTypeFuncref || t == ValueTypeExternref || t == ValueTypeNullref
}

// IsNumeric reports whether t is one of the four MVP numeric types.
func (t ValueType) IsNumeric() bool {
	switch t {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return true
	default:
		return false
	}
}

func decodeValueType(r *Reader) (ValueType, error) {
	b, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	switch ValueType(b) {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeV128,
		ValueTypeFuncref, ValueTypeExternref, ValueTypeNullref:
		return ValueType(b), nil
	default:
		return 0, NewDecodeError(r.pos-1, InvalidImmediate, fmt.Errorf("invalid value type %#x", b))
	}
}

// Mutability distinguishes a constant global from a mutable one.
type Mutability byte

const (
	Const Mutability = 0
	Var   Mutability = 1
)

func decodeMutability(r *Reader) (Mutability, error) {
	b, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	if b > 1 {
		return 0, NewDecodeError(r.pos-1, InvalidImmediate, fmt.Errorf("invalid mutability %#x", b))
	}
	return Mutability(b), nil
}

// ExternalKind tags the kind of entity an import or export refers to.
type ExternalKind byte

const (
	ExternalFunction ExternalKind = 0
	ExternalTable    ExternalKind = 1
	ExternalMemory   ExternalKind = 2
	ExternalGlobal   ExternalKind = 3
	ExternalEvent    ExternalKind = 4
)

func (k ExternalKind) String() string {
	switch k {
	case ExternalFunction:
		return "func"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	case ExternalEvent:
		return "event"
	default:
		return fmt.Sprintf("external(%d)", byte(k))
	}
}

func decodeExternalKind(r *Reader) (ExternalKind, error) {
	b, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	if b > byte(ExternalEvent) {
		return 0, NewDecodeError(r.pos-1, InvalidImmediate, fmt.Errorf("invalid external kind %#x", b))
	}
	return ExternalKind(b), nil
}

// Limits describes the size range of a table or memory.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
	Shared bool
}

func decodeLimits(r *Reader, allowShared bool) (Limits, error) {
	flags, err := r.ReadU8()
	if err != nil {
		return Limits{}, err
	}
	hasMax := flags&0x01 != 0
	shared := flags&0x02 != 0
	if shared && !allowShared {
		return Limits{}, NewDecodeError(r.pos-1, InvalidImmediate, fmt.Errorf("shared flag requires threads feature"))
	}
	if flags &^ 0x03 != 0 {
		return Limits{}, NewDecodeError(r.pos-1, InvalidImmediate, fmt.Errorf("invalid limits flags %#x", flags))
	}

	min, err := r.ReadVarU32()
	if err != nil {
		return Limits{}, err
	}
	l := Limits{Min: min, HasMax: hasMax, Shared: shared}
	if hasMax {
		max, err := r.ReadVarU32()
		if err != nil {
			return Limits{}, err
		}
		l.Max = max
	}
	return l, nil
}

// TableType is the element type and size limits of a table.
type TableType struct {
	Limits  Limits
	Element ValueType
}

func decodeTableType(r *Reader, refTypesEnabled bool) (TableType, error) {
	elem, err := decodeValueType(r)
	if err != nil {
		return TableType{}, err
	}
	if !elem.IsReference() {
		return TableType{}, NewDecodeError(r.pos, InvalidImmediate, fmt.Errorf("table element type must be a reference type, got %s", elem))
	}
	if elem != ValueTypeFuncref && !refTypesEnabled {
		return TableType{}, NewDecodeError(r.pos, FeatureDisabled, fmt.Errorf("externref table requires reference-types feature"))
	}
	limits, err := decodeLimits(r, false)
	if err != nil {
		return TableType{}, err
	}
	return TableType{Limits: limits, Element: elem}, nil
}

// MemoryType is the page-count limits of a linear memory.
type MemoryType struct {
	Limits Limits
}

func decodeMemoryType(r *Reader, threadsEnabled bool) (MemoryType, error) {
	limits, err := decodeLimits(r, threadsEnabled)
	if err != nil {
		return MemoryType{}, err
	}
	return MemoryType{Limits: limits}, nil
}

// GlobalType is the value type and mutability of a global.
type GlobalType struct {
	Type    ValueType
	Mutable bool
}

func decodeGlobalType(r *Reader) (GlobalType, error) {
	t, err := decodeValueType(r)
	if err != nil {
		return GlobalType{}, err
	}
	m, err := decodeMutability(r)
	if err != nil {
		return GlobalType{}, err
	}
	return GlobalType{Type: t, Mutable: m == Var}, nil
}

// At pairs a decoded value with the byte offset it started at, for
// diagnostics only; it never participates in equality/identity of the
// decoded entity itself.
type At[T any] struct {
	Value  T
	Offset uint32
}
