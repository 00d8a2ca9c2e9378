// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import "fmt"

// CustomSection is a name-tagged section whose payload is opaque to the
// core; linking, relocation, and name metadata all live here, decoded (if at
// all) by the same generic lazy machinery that decodes known sections.
type CustomSection struct {
	Name string
	Data []byte
}

// Module is the materialized, in-memory representation of a decoded Wasm
// module. Materializing it is optional: a streaming consumer can pull
// SectionDecoder directly and validate without ever building one of these.
type Module struct {
	Version uint32

	Types []FunctionType

	Imports []Import

	// FunctionTypes holds, for each function defined in this module's own
	// code section (not imported), the index into Types. Imported functions
	// occupy the low indices of the function index space and are not
	// repeated here.
	FunctionTypes []uint32

	Tables   []Table
	Memories []Memory
	Globals  []GlobalEntry
	Exports  []Export
	Start    *Start
	Elements []ElementSegment
	Code     []Code
	Data     []DataSegment
	Events   []EventType

	// DataCount is non-nil iff the data-count section was present.
	DataCount *uint32

	Customs []CustomSection
}

// Custom returns the first custom section with the given name, or nil.
func (m *Module) Custom(name string) *CustomSection {
	for i := range m.Customs {
		if m.Customs[i].Name == name {
			return &m.Customs[i]
		}
	}
	return nil
}

// Names decodes and returns this module's "name" custom section, or nil if
// the module has none.
func (m *Module) Names() (*NameSection, error) {
	s := m.Custom(CustomSectionName)
	if s == nil {
		return nil, nil
	}
	var names NameSection
	if err := names.Decode(NewReader(s.Data)); err != nil {
		return nil, err
	}
	return &names, nil
}

// DecodeModule eagerly decodes the whole of data into a Module, using
// features to gate which section shapes and element/data segment encodings
// are accepted. Each lazy per-section sequence is drained fully; streaming
// callers that want to validate without materializing should use
// NewSectionDecoder directly instead.
func DecodeModule(data []byte, features Features) (*Module, error) {
	r := NewReader(data)
	if err := DecodeHeader(r); err != nil {
		return nil, err
	}

	m := &Module{Version: Version}
	sections := NewSectionDecoder(r)

	for {
		sec, ok, err := sections.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		switch sec.ID {
		case SectionCustom:
			m.Customs = append(m.Customs, CustomSection{Name: sec.Name, Data: sec.Payload.Remaining()})

		case SectionType:
			seq, err := NewLazySeq(sec.Payload, decodeFunctionType)
			if err != nil {
				return nil, err
			}
			if m.Types, err = All(seq); err != nil {
				return nil, err
			}

		case SectionImport:
			seq, err := NewLazySeq(sec.Payload, func(r *Reader) (Import, error) { return decodeImport(r, features) })
			if err != nil {
				return nil, err
			}
			if m.Imports, err = All(seq); err != nil {
				return nil, err
			}

		case SectionFunction:
			seq, err := NewLazySeq(sec.Payload, (*Reader).ReadVarU32)
			if err != nil {
				return nil, err
			}
			if m.FunctionTypes, err = All(seq); err != nil {
				return nil, err
			}

		case SectionTable:
			seq, err := NewLazySeq(sec.Payload, func(r *Reader) (Table, error) {
				t, err := decodeTableType(r, features.Has(FeatureReferenceTypes))
				return Table{Type: t}, err
			})
			if err != nil {
				return nil, err
			}
			if m.Tables, err = All(seq); err != nil {
				return nil, err
			}

		case SectionMemory:
			seq, err := NewLazySeq(sec.Payload, func(r *Reader) (Memory, error) {
				t, err := decodeMemoryType(r, features.Has(FeatureThreads))
				return Memory{Type: t}, err
			})
			if err != nil {
				return nil, err
			}
			if m.Memories, err = All(seq); err != nil {
				return nil, err
			}

		case SectionGlobal:
			seq, err := NewLazySeq(sec.Payload, decodeGlobalEntry)
			if err != nil {
				return nil, err
			}
			if m.Globals, err = All(seq); err != nil {
				return nil, err
			}

		case SectionExport:
			seq, err := NewLazySeq(sec.Payload, decodeExport)
			if err != nil {
				return nil, err
			}
			if m.Exports, err = All(seq); err != nil {
				return nil, err
			}

		case SectionStart:
			idx, err := sec.Payload.ReadVarU32()
			if err != nil {
				return nil, err
			}
			m.Start = &Start{FuncIndex: idx}

		case SectionElement:
			seq, err := NewLazySeq(sec.Payload, func(r *Reader) (ElementSegment, error) { return decodeElementSegment(r, features) })
			if err != nil {
				return nil, err
			}
			if m.Elements, err = All(seq); err != nil {
				return nil, err
			}

		case SectionCode:
			seq, err := NewLazySeq(sec.Payload, decodeCode)
			if err != nil {
				return nil, err
			}
			if m.Code, err = All(seq); err != nil {
				return nil, err
			}

		case SectionData:
			seq, err := NewLazySeq(sec.Payload, func(r *Reader) (DataSegment, error) { return decodeDataSegment(r, features) })
			if err != nil {
				return nil, err
			}
			if m.Data, err = All(seq); err != nil {
				return nil, err
			}

		case SectionDataCount:
			if !features.Has(FeatureBulkMemory) {
				return nil, NewDecodeError(sec.Offset, FeatureDisabled, fmt.Errorf("data count section requires bulk-memory feature"))
			}
			n, err := sec.Payload.ReadVarU32()
			if err != nil {
				return nil, err
			}
			m.DataCount = &n

		case SectionEvent:
			if !features.Has(FeatureExceptions) {
				return nil, NewDecodeError(sec.Offset, FeatureDisabled, fmt.Errorf("event section requires exceptions feature"))
			}
			seq, err := NewLazySeq(sec.Payload, decodeEventType)
			if err != nil {
				return nil, err
			}
			if m.Events, err = All(seq); err != nil {
				return nil, err
			}
		}
	}

	if m.DataCount != nil && int(*m.DataCount) != len(m.Data) {
		return nil, NewDecodeError(0, SectionLengthMismatch, fmt.Errorf("data count %d does not match data section length %d", *m.DataCount, len(m.Data)))
	}

	return m, nil
}
