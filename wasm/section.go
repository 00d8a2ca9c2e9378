// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import "fmt"

// SectionID is a 1-byte code that tags a top-level section as custom (0) or
// one of the known kinds.
type SectionID uint8

const (
	SectionCustom    SectionID = 0
	SectionType      SectionID = 1
	SectionImport    SectionID = 2
	SectionFunction  SectionID = 3
	SectionTable     SectionID = 4
	SectionMemory    SectionID = 5
	SectionGlobal    SectionID = 6
	SectionExport    SectionID = 7
	SectionStart     SectionID = 8
	SectionElement   SectionID = 9
	SectionCode      SectionID = 10
	SectionData      SectionID = 11
	SectionDataCount SectionID = 12
	SectionEvent     SectionID = 13
)

var sectionNames = map[SectionID]string{
	SectionCustom:    "custom",
	SectionType:      "type",
	SectionImport:    "import",
	SectionFunction:  "function",
	SectionTable:     "table",
	SectionMemory:    "memory",
	SectionGlobal:    "global",
	SectionExport:    "export",
	SectionStart:     "start",
	SectionElement:   "element",
	SectionCode:      "code",
	SectionData:      "data",
	SectionDataCount: "data count",
	SectionEvent:     "event",
}

func (id SectionID) String() string {
	if n, ok := sectionNames[id]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", uint8(id))
}

const (
	Magic   uint32 = 0x6d736100
	Version uint32 = 0x1
)

// Section is one top-level section: either a known id with its raw payload,
// or a custom section tagged by name. Payload is a bounded Reader that never
// reads past the section's declared length.
type Section struct {
	ID      SectionID
	Name    string // only set when ID == SectionCustom
	Offset  uint32 // byte offset of the payload, for diagnostics
	Payload *Reader
}

// SectionDecoder is a lazy, restartable view over a module's section
// sequence: pulling Next advances a cursor and yields one Section at a time;
// an exhausted decoder keeps returning ok=false.
type SectionDecoder struct {
	r            *Reader
	lastKnownID  SectionID
	sawLastKnown bool
}

// NewSectionDecoder wraps r, which must already be positioned just past the
// magic and version.
func NewSectionDecoder(r *Reader) *SectionDecoder {
	return &SectionDecoder{r: r}
}

// Next decodes the next section. ok is false with a nil error once the input
// is exhausted.
func (d *SectionDecoder) Next() (sec Section, ok bool, err error) {
	if d.r.Eof() {
		return Section{}, false, nil
	}

	idByte, err := d.r.ReadU8()
	if err != nil {
		return Section{}, false, err
	}
	id := SectionID(idByte)
	if id != SectionCustom {
		if id > SectionEvent {
			return Section{}, false, NewDecodeError(d.r.pos-1, UnknownSection, fmt.Errorf("unknown section id %d", idByte))
		}
		if d.sawLastKnown && id <= d.lastKnownID {
			return Section{}, false, NewDecodeError(d.r.pos-1, SectionOrder, fmt.Errorf("section %s out of order after %s", id, d.lastKnownID))
		}
		d.lastKnownID = id
		d.sawLastKnown = true
	}

	size, err := d.r.ReadVarU32()
	if err != nil {
		return Section{}, false, err
	}
	offset := d.r.pos
	payload, err := d.r.SubReader(size)
	if err != nil {
		return Section{}, false, NewDecodeError(offset, SectionLengthMismatch, err)
	}

	sec = Section{ID: id, Offset: offset, Payload: payload}
	if id == SectionCustom {
		name, err := payload.ReadString()
		if err != nil {
			return Section{}, false, err
		}
		sec.Name = name
	}
	return sec, true, nil
}

// DecodeHeader reads and validates the magic number and version from the
// start of r.
func DecodeHeader(r *Reader) error {
	magic, err := r.readU32Fixed()
	if err != nil {
		return err
	}
	if magic != Magic {
		return NewDecodeError(0, BadMagic, fmt.Errorf("magic header not detected"))
	}
	version, err := r.readU32Fixed()
	if err != nil {
		return err
	}
	if version != Version {
		return NewDecodeError(4, BadVersion, fmt.Errorf("unknown binary version %#x", version))
	}
	return nil
}

func (r *Reader) readU32Fixed() (uint32, error) {
	b, err := r.ReadSubspan(4)
	if err != nil {
		return 0, err
	}
	return le32(b), nil
}

// LazySeq is a restartable, on-demand view over a u32-count-prefixed vector:
// pulling Next decodes one more element and advances the cursor. It never
// buffers more than one decoded element at a time.
type LazySeq[T any] struct {
	r         *Reader
	remaining uint32
	decode    func(*Reader) (T, error)
	done      bool
}

// NewLazySeq reads the vector's u32 count prefix from r and returns a
// sequence that decodes one T per Next call using decode.
func NewLazySeq[T any](r *Reader, decode func(*Reader) (T, error)) (*LazySeq[T], error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	return &LazySeq[T]{r: r, remaining: n, decode: decode}, nil
}

// Next decodes the next element. ok is false with a nil error once the
// declared count is exhausted; an exhausted sequence stays exhausted.
func (s *LazySeq[T]) Next() (v T, ok bool, err error) {
	if s.done || s.remaining == 0 {
		s.done = true
		return v, false, nil
	}
	v, err = s.decode(s.r)
	if err != nil {
		s.done = true
		return v, false, err
	}
	s.remaining--
	return v, true, nil
}

// Len returns the number of elements not yet pulled.
func (s *LazySeq[T]) Len() uint32 { return s.remaining }

// All drains the sequence into a slice. Used by the eager Module
// materialization path; streaming consumers should call Next directly.
func All[T any](s *LazySeq[T]) ([]T, error) {
	out := make([]T, 0, initialCap(s.remaining))
	for {
		v, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}
