// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import "fmt"

// FunctionType is a function signature: its parameter and result value
// types, in declaration order.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

func (t FunctionType) String() string {
	return fmt.Sprintf("%v -> %v", t.Params, t.Results)
}

func decodeFunctionType(r *Reader) (FunctionType, error) {
	form, err := r.ReadU8()
	if err != nil {
		return FunctionType{}, err
	}
	if form != 0x60 {
		return FunctionType{}, NewDecodeError(r.pos-1, InvalidImmediate, fmt.Errorf("invalid functype form %#x", form))
	}

	params, err := decodeValueTypeVec(r)
	if err != nil {
		return FunctionType{}, err
	}
	results, err := decodeValueTypeVec(r)
	if err != nil {
		return FunctionType{}, err
	}
	return FunctionType{Params: params, Results: results}, nil
}

func decodeValueTypeVec(r *Reader) ([]ValueType, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	out := make([]ValueType, 0, initialCap(n))
	for i := uint32(0); i < n; i++ {
		t, err := decodeValueType(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// EventType is the attribute and referenced function type index of an
// exceptions-feature event.
type EventType struct {
	Attribute byte
	TypeIndex uint32
}

func decodeEventType(r *Reader) (EventType, error) {
	attr, err := r.ReadU8()
	if err != nil {
		return EventType{}, err
	}
	idx, err := r.ReadVarU32()
	if err != nil {
		return EventType{}, err
	}
	return EventType{Attribute: attr, TypeIndex: idx}, nil
}

// initialCap bounds a pre-allocation hint derived from an attacker-controlled
// length field: it never allocates more than a small constant ahead of what
// the remaining input could plausibly contain.
func initialCap(declared uint32) uint32 {
	const capBound = 1 << 16
	if declared > capBound {
		return capBound
	}
	return declared
}
