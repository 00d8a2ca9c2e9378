// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import "fmt"

// CustomSectionName is the well-known name of the debugging name section.
const CustomSectionName = "name"

// NameType tags a subsection of the name section.
type NameType byte

const (
	NameModule   NameType = 0
	NameFunction NameType = 1
	NameLocal    NameType = 2
)

// Naming is one (index, name) pair inside a name map.
type Naming struct {
	Index uint32
	Name  string
}

// LocalNames is the set of local names declared for one function.
type LocalNames struct {
	FuncIndex uint32
	Names     []Naming
}

// NameSection is the decoded "name" custom section: linking/debug metadata
// framed by the same generic lazy-section machinery as any other custom
// section, per spec §1's "needs no bespoke algorithm" note.
type NameSection struct {
	ModuleName    string
	HasModuleName bool
	FunctionNames []Naming
	LocalNames    []LocalNames
}

// Decode parses the subsections of a "name" custom section's payload.
func (s *NameSection) Decode(r *Reader) error {
	for !r.Eof() {
		typ, err := r.ReadU8()
		if err != nil {
			return err
		}
		size, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		sub, err := r.SubReader(size)
		if err != nil {
			return err
		}

		switch NameType(typ) {
		case NameModule:
			name, err := sub.ReadString()
			if err != nil {
				return err
			}
			s.ModuleName, s.HasModuleName = name, true
		case NameFunction:
			names, err := readNameMap(sub)
			if err != nil {
				return err
			}
			s.FunctionNames = names
		case NameLocal:
			n, err := sub.ReadCount()
			if err != nil {
				return err
			}
			funcs := make([]LocalNames, 0, initialCap(n))
			for i := uint32(0); i < n; i++ {
				idx, err := sub.ReadVarU32()
				if err != nil {
					return err
				}
				names, err := readNameMap(sub)
				if err != nil {
					return err
				}
				funcs = append(funcs, LocalNames{FuncIndex: idx, Names: names})
			}
			s.LocalNames = funcs
		default:
			return NewDecodeError(sub.pos, InvalidImmediate, fmt.Errorf("unsupported name subsection %d", typ))
		}
	}
	return nil
}

func readNameMap(r *Reader) ([]Naming, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	out := make([]Naming, 0, initialCap(n))
	for i := uint32(0); i < n; i++ {
		idx, err := r.ReadVarU32()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, Naming{Index: idx, Name: name})
	}
	return out, nil
}
