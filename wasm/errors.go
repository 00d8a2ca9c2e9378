// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"fmt"

	"golang.org/x/xerrors"
)

// ErrorKind is the closed set of error kinds a decoder or validator can
// report. It intentionally has no "other"/"unknown" member: every failure
// this package can produce is named here.
type ErrorKind int

const (
	_ ErrorKind = iota

	// Decode errors.
	UnexpectedEnd
	LebOverflow
	LebUnusedBits
	InvalidUtf8
	BadMagic
	BadVersion
	UnknownSection
	SectionOrder
	SectionLengthMismatch
	UnknownOpcode
	InvalidImmediate
	FeatureDisabled

	// Structural validation errors.
	IndexOutOfRange
	DuplicateExport
	TooManyTables
	TooManyMemories
	SharedNotAllowed
	LimitsMismatch
	PageCountExceeded

	// Code validation errors.
	TypeMismatch
	StackUnderflow
	UnalignedLabel
	UnreachableMismatch
	WrongFunctionSignature
	MutableGlobalInConstExpr
	UndeclaredFunctionRef

	// Resource errors.
	InternalLimitExceeded
)

var errorKindNames = map[ErrorKind]string{
	UnexpectedEnd:            "UnexpectedEnd",
	LebOverflow:              "LebOverflow",
	LebUnusedBits:            "LebUnusedBits",
	InvalidUtf8:              "InvalidUtf8",
	BadMagic:                 "BadMagic",
	BadVersion:               "BadVersion",
	UnknownSection:           "UnknownSection",
	SectionOrder:             "SectionOrder",
	SectionLengthMismatch:    "SectionLengthMismatch",
	UnknownOpcode:            "UnknownOpcode",
	InvalidImmediate:         "InvalidImmediate",
	FeatureDisabled:          "FeatureDisabled",
	IndexOutOfRange:          "IndexOutOfRange",
	DuplicateExport:          "DuplicateExport",
	TooManyTables:            "TooManyTables",
	TooManyMemories:          "TooManyMemories",
	SharedNotAllowed:         "SharedNotAllowed",
	LimitsMismatch:           "LimitsMismatch",
	PageCountExceeded:        "PageCountExceeded",
	TypeMismatch:             "TypeMismatch",
	StackUnderflow:           "StackUnderflow",
	UnalignedLabel:           "UnalignedLabel",
	UnreachableMismatch:      "UnreachableMismatch",
	WrongFunctionSignature:   "WrongFunctionSignature",
	MutableGlobalInConstExpr: "MutableGlobalInConstExpr",
	UndeclaredFunctionRef:    "UndeclaredFunctionRef",
	InternalLimitExceeded:    "InternalLimitExceeded",
}

func (k ErrorKind) String() string {
	if n, ok := errorKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

var (
	errUnexpectedEnd = xerrors.New("unexpected end of input")
	errInvalidUtf8   = xerrors.New("invalid utf-8 string")
)

// Diagnostic is a single decode or validation finding: a byte offset, a
// closed-set kind, a human-readable message, and the breadcrumb stack that
// was active when it was reported.
type Diagnostic struct {
	Offset  uint32
	Kind    ErrorKind
	Message string
	Context []string
}

func (d Diagnostic) Error() string {
	if len(d.Context) == 0 {
		return fmt.Sprintf("offset %#x: %s: %s", d.Offset, d.Kind, d.Message)
	}
	return fmt.Sprintf("offset %#x: %s: %s (in %v)", d.Offset, d.Kind, d.Message, d.Context)
}

// ErrorSink is the abstract diagnostic collector threaded through decoding
// and validation. It has no opinion on formatting or aggregation: callers
// decide whether report is fatal, logged, or merely counted.
type ErrorSink interface {
	Report(d Diagnostic)
}

// CollectingSink is the default ErrorSink: it appends every diagnostic to a
// slice in report order.
type CollectingSink struct {
	Diagnostics []Diagnostic
}

func (s *CollectingSink) Report(d Diagnostic) {
	s.Diagnostics = append(s.Diagnostics, d)
}

// Ok reports whether no diagnostic has been collected yet.
func (s *CollectingSink) Ok() bool {
	return len(s.Diagnostics) == 0
}

// NopSink discards every diagnostic. Useful when only the boolean
// valid/invalid result of validation matters.
type NopSink struct{}

func (NopSink) Report(Diagnostic) {}

// ContextGuard pushes a human-readable breadcrumb (e.g. "function 3") onto a
// shared path on construction and pops it on Close, modelling scoped
// acquisition with guaranteed release around nested validation.
type ContextGuard struct {
	path  *[]string
	depth int
}

// PushContext pushes breadcrumb onto path and returns a guard that pops it.
// Callers are expected to `defer guard.Close()`.
func PushContext(path *[]string, breadcrumb string) ContextGuard {
	*path = append(*path, breadcrumb)
	return ContextGuard{path: path, depth: len(*path)}
}

func (g ContextGuard) Close() {
	if g.path == nil || len(*g.path) != g.depth {
		return
	}
	*g.path = (*g.path)[:g.depth-1]
}

// DecodeError wraps a low-level decode failure (LEB128 overflow, truncated
// span, bad UTF-8) with the byte offset at which it was discovered and its
// ErrorKind, via golang.org/x/xerrors so the original cause remains
// inspectable with xerrors.Is/As.
type DecodeError struct {
	Offset uint32
	Kind   ErrorKind
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at offset %#x: %s: %v", e.Offset, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError builds a DecodeError, wrapping cause with xerrors so a
// frame is recorded.
func NewDecodeError(offset uint32, kind ErrorKind, cause error) *DecodeError {
	return &DecodeError{
		Offset: offset,
		Kind:   kind,
		Err:    xerrors.Errorf("%s: %w", kind, cause),
	}
}

// ValidationError is a lightweight error value for call sites (mostly in
// tests and simple callers) that want a plain Go error instead of routing
// through an ErrorSink. ValidateModule itself always reports through the
// sink; this exists for the same reason the teacher's wasm.ValidationError
// did, generalized to carry a Kind.
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds a ValidationError of the given kind.
func Errorf(kind ErrorKind, format string, args ...interface{}) ValidationError {
	return ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
