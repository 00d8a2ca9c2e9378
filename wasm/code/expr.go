// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package code

import "github.com/tinwasm/wasmcore/wasm"

// ExprReader yields the instructions of one expression (a function body or
// a constant expression) lazily, one at a time, stopping after the `end`
// that closes the outermost implicit block. It tracks only nesting depth,
// not stack types — pairing every push from block/loop/if with the pop from
// its matching end/else is package validate's job.
type ExprReader struct {
	r        *wasm.Reader
	features wasm.Features
	depth    int
	done     bool
}

// NewExprReader wraps r, which must be positioned at the first instruction
// of the expression.
func NewExprReader(r *wasm.Reader, features wasm.Features) *ExprReader {
	return &ExprReader{r: r, features: features}
}

// Next decodes the next instruction. ok is false with a nil error once the
// expression's closing end has been consumed and returned; an exhausted
// reader stays exhausted.
func (e *ExprReader) Next() (instr Instruction, ok bool, err error) {
	if e.done {
		return Instruction{}, false, nil
	}

	instr, err = decodeInstruction(e.r, e.features)
	if err != nil {
		e.done = true
		return Instruction{}, false, err
	}

	switch instr.Opcode {
	case OpBlock, OpLoop, OpIf, OpTry:
		e.depth++
	case OpEnd:
		if e.depth == 0 {
			e.done = true
		} else {
			e.depth--
		}
	}

	return instr, true, nil
}

// Depth returns the current nesting depth: the number of unmatched
// block/loop/if/try openers seen so far.
func (e *ExprReader) Depth() int { return e.depth }

// ReadExpr drains r's expression in full, per spec for constant expressions
// and other call sites that want the whole instruction list rather than a
// pull-based iterator.
func ReadExpr(r *wasm.Reader, features wasm.Features) ([]Instruction, error) {
	er := NewExprReader(r, features)
	var out []Instruction
	for {
		instr, ok, err := er.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, instr)
	}
}
