// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

// GlobalEntry declares a global variable: its type and its initializer, a
// constant expression whose raw bytes are validated lazily by package
// validate.
type GlobalEntry struct {
	Type GlobalType
	Init []byte
}

func decodeGlobalEntry(r *Reader) (GlobalEntry, error) {
	typ, err := decodeGlobalType(r)
	if err != nil {
		return GlobalEntry{}, err
	}
	init, err := readConstExprBytes(r)
	if err != nil {
		return GlobalEntry{}, err
	}
	return GlobalEntry{Type: typ, Init: init}, nil
}
