// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"strconv"

	"github.com/tinwasm/wasmcore/wasm"
)

// ValidateModule runs every structural section validator and, if
// validateCode is true, the stack-typing algorithm over every function
// body. It never stops at the first error: every independent check reports
// its own diagnostic to sink, so a single pass surfaces as many problems as
// possible, mirroring spec §4.5's "does not short-circuit" rule.
func ValidateModule(m *wasm.Module, features wasm.Features, sink wasm.ErrorSink, validateCode bool) *Context {
	ctx := NewContext(features, sink)
	ctx.build(m)

	ctx.validateTypes(m)
	ctx.validateImports(m)
	ctx.validateTables(m)
	ctx.validateMemories(m)
	ctx.validateGlobals(m)
	ctx.validateElements(m)
	ctx.validateData(m)
	ctx.validateEvents(m)
	ctx.validateStart(m)
	ctx.validateExports(m)
	ctx.validateFunctions(m, validateCode)

	ctx.resolveDeferredFunctionRefs()
	return ctx
}

// build populates every index-space field of ctx from m, in the order the
// binary format itself declares them (imports first, then the module's own
// declarations), before any cross-referencing validation runs.
func (ctx *Context) build(m *wasm.Module) {
	ctx.Types = append(ctx.Types, m.Types...)

	for _, imp := range m.Imports {
		switch imp.Kind {
		case wasm.ExternalFunction:
			ctx.Functions = append(ctx.Functions, imp.FuncTypeIndex)
			ctx.ImportedFunctionCount++
		case wasm.ExternalTable:
			ctx.Tables = append(ctx.Tables, imp.Table.Type)
		case wasm.ExternalMemory:
			ctx.Memories = append(ctx.Memories, imp.Memory.Type)
		case wasm.ExternalGlobal:
			ctx.Globals = append(ctx.Globals, imp.Global.Type)
			ctx.ImportedGlobalCount++
		case wasm.ExternalEvent:
			ctx.Events = append(ctx.Events, imp.Event)
		}
	}

	for _, idx := range m.FunctionTypes {
		ctx.Functions = append(ctx.Functions, idx)
	}
	for _, t := range m.Tables {
		ctx.Tables = append(ctx.Tables, t.Type)
	}
	for _, mem := range m.Memories {
		ctx.Memories = append(ctx.Memories, mem.Type)
	}
	for _, g := range m.Globals {
		ctx.Globals = append(ctx.Globals, g.Type)
	}
	ctx.Events = append(ctx.Events, m.Events...)

	if m.DataCount != nil {
		n := int(*m.DataCount)
		ctx.DeclaredDataCount = &n
	}

	ctx.ElementSegmentTypes = make([]wasm.ValueType, len(m.Elements))
	for i, e := range m.Elements {
		ctx.ElementSegmentTypes[i] = e.ElemType
	}
}

func (ctx *Context) validateTypes(m *wasm.Module) {
	guard := ctx.push("types")
	defer guard.Close()
	for i, t := range m.Types {
		if len(t.Results) > 1 && !ctx.Features.Has(wasm.FeatureMultiValue) {
			ctx.report(0, wasm.FeatureDisabled, "type %d: multiple results require multi-value feature", i)
		}
	}
}

func (ctx *Context) validateLimits(l wasm.Limits, maxPages uint32, off uint32) {
	if l.HasMax && l.Min > l.Max {
		ctx.report(off, wasm.LimitsMismatch, "size minimum %d greater than maximum %d", l.Min, l.Max)
	}
	if maxPages > 0 {
		if l.Min > maxPages {
			ctx.report(off, wasm.PageCountExceeded, "initial size %d exceeds %d pages", l.Min, maxPages)
		}
		if l.HasMax && l.Max > maxPages {
			ctx.report(off, wasm.PageCountExceeded, "maximum size %d exceeds %d pages", l.Max, maxPages)
		}
	}
}

func (ctx *Context) validateImports(m *wasm.Module) {
	guard := ctx.push("imports")
	defer guard.Close()
	for i, imp := range m.Imports {
		switch imp.Kind {
		case wasm.ExternalFunction:
			if _, ok := ctx.TypeOf(imp.FuncTypeIndex); !ok {
				ctx.report(0, wasm.IndexOutOfRange, "import %d: unknown type %d", i, imp.FuncTypeIndex)
			}
		case wasm.ExternalTable:
			ctx.validateLimits(imp.Table.Type.Limits, 0, 0)
		case wasm.ExternalMemory:
			ctx.validateLimits(imp.Memory.Type.Limits, 65536, 0)
		case wasm.ExternalGlobal:
			if imp.Global.Type.Mutable && !ctx.Features.Has(wasm.FeatureMutableGlobals) {
				ctx.report(0, wasm.FeatureDisabled, "import %d: mutable global import requires mutable-globals feature", i)
			}
		case wasm.ExternalEvent:
			if t, ok := ctx.TypeOf(imp.Event.TypeIndex); ok && len(t.Results) != 0 {
				ctx.report(0, wasm.InvalidImmediate, "import %d: event function type must have no results", i)
			}
		}
	}
}

func (ctx *Context) validateTables(m *wasm.Module) {
	if len(ctx.Tables) > 1 && !ctx.Features.Has(wasm.FeatureReferenceTypes) {
		ctx.report(0, wasm.TooManyTables, "more than one table requires reference-types feature")
	}
	for _, t := range m.Tables {
		ctx.validateLimits(t.Type.Limits, 0, 0)
	}
}

func (ctx *Context) validateMemories(m *wasm.Module) {
	if len(ctx.Memories) > 1 && !ctx.Features.Has(wasm.FeatureMultiMemory) {
		ctx.report(0, wasm.TooManyMemories, "more than one memory requires multi-memory feature")
	}
	for _, mem := range m.Memories {
		ctx.validateLimits(mem.Type.Limits, 65536, 0)
		if mem.Type.Limits.Shared && !mem.Type.Limits.HasMax {
			ctx.report(0, wasm.LimitsMismatch, "shared memory must declare a maximum size")
		}
	}
}

func (ctx *Context) validateGlobals(m *wasm.Module) {
	guard := ctx.push("globals")
	defer guard.Close()
	for i, g := range m.Globals {
		idx := ctx.ImportedGlobalCount + i
		ctx.validateConstExpr(g.Init, ctx.Globals[idx].Type, ConstExprGlobalInit, 0)
	}
}

func (ctx *Context) validateElements(m *wasm.Module) {
	guard := ctx.push("elements")
	defer guard.Close()
	for i, e := range m.Elements {
		if e.Mode == wasm.ElementActive {
			if int(e.TableIndex) >= len(ctx.Tables) {
				ctx.report(0, wasm.IndexOutOfRange, "element %d: unknown table %d", i, e.TableIndex)
			}
			ctx.validateConstExpr(e.Offset, wasm.ValueTypeI32, ConstExprOther, 0)
		}

		if e.Funcidxs != nil {
			for _, fi := range e.Funcidxs {
				if int(fi) >= len(ctx.Functions) {
					ctx.report(0, wasm.IndexOutOfRange, "element %d: unknown function %d", i, fi)
				} else {
					ctx.DeclaredFunctions[fi] = true
				}
			}
		}
		for _, expr := range e.Exprs {
			ctx.validateConstExpr(expr, e.ElemType, ConstExprOther, 0)
		}
		if e.Mode == wasm.ElementDeclared {
			// Declared-mode segments exist purely to add their members to
			// declared_functions; funcidx members were already added above.
		}
	}
}

func (ctx *Context) validateData(m *wasm.Module) {
	guard := ctx.push("data")
	defer guard.Close()
	for i, d := range m.Data {
		if d.Mode == wasm.ElementActive {
			if int(d.MemoryIndex) >= len(ctx.Memories) {
				ctx.report(0, wasm.IndexOutOfRange, "data %d: unknown memory %d", i, d.MemoryIndex)
			}
			ctx.validateConstExpr(d.Offset, wasm.ValueTypeI32, ConstExprOther, 0)
		}
	}
}

func (ctx *Context) validateEvents(m *wasm.Module) {
	if len(m.Events) > 0 && !ctx.Features.Has(wasm.FeatureExceptions) {
		ctx.report(0, wasm.FeatureDisabled, "event section requires exceptions feature")
	}
	for i, e := range m.Events {
		if t, ok := ctx.TypeOf(e.TypeIndex); ok && len(t.Results) != 0 {
			ctx.report(0, wasm.InvalidImmediate, "event %d: function type must have no results", i)
		}
	}
}

func (ctx *Context) validateStart(m *wasm.Module) {
	if m.Start == nil {
		return
	}
	sig, ok := ctx.FunctionType(m.Start.FuncIndex)
	if !ok {
		ctx.report(0, wasm.IndexOutOfRange, "start: unknown function %d", m.Start.FuncIndex)
		return
	}
	ctx.DeclaredFunctions[m.Start.FuncIndex] = true
	if len(sig.Params) != 0 || len(sig.Results) != 0 {
		ctx.report(0, wasm.WrongFunctionSignature, "start function must take no parameters and return no results")
	}
}

func (ctx *Context) validateExports(m *wasm.Module) {
	guard := ctx.push("exports")
	defer guard.Close()
	for _, e := range m.Exports {
		if _, dup := ctx.ExportNames[e.Name]; dup {
			ctx.report(0, wasm.DuplicateExport, "duplicate export name %q", e.Name)
		} else {
			ctx.ExportNames[e.Name] = struct{}{}
		}

		switch e.Kind {
		case wasm.ExternalFunction:
			if int(e.Index) >= len(ctx.Functions) {
				ctx.report(0, wasm.IndexOutOfRange, "export %q: unknown function %d", e.Name, e.Index)
			} else {
				ctx.DeclaredFunctions[e.Index] = true
			}
		case wasm.ExternalTable:
			if int(e.Index) >= len(ctx.Tables) {
				ctx.report(0, wasm.IndexOutOfRange, "export %q: unknown table %d", e.Name, e.Index)
			}
		case wasm.ExternalMemory:
			if int(e.Index) >= len(ctx.Memories) {
				ctx.report(0, wasm.IndexOutOfRange, "export %q: unknown memory %d", e.Name, e.Index)
			}
		case wasm.ExternalGlobal:
			g, ok := ctx.GlobalType(e.Index)
			if !ok {
				ctx.report(0, wasm.IndexOutOfRange, "export %q: unknown global %d", e.Name, e.Index)
			} else if g.Mutable && !ctx.Features.Has(wasm.FeatureMutableGlobals) {
				ctx.report(0, wasm.FeatureDisabled, "export %q: mutable global export requires mutable-globals feature", e.Name)
			}
		case wasm.ExternalEvent:
			if int(e.Index) >= len(ctx.Events) {
				ctx.report(0, wasm.IndexOutOfRange, "export %q: unknown event %d", e.Name, e.Index)
			}
		}
	}
}

func (ctx *Context) validateFunctions(m *wasm.Module, validateCode bool) {
	if len(m.FunctionTypes) != len(m.Code) {
		ctx.report(0, wasm.SectionLengthMismatch, "function section declares %d functions but code section has %d bodies", len(m.FunctionTypes), len(m.Code))
		return
	}
	if !validateCode {
		return
	}

	guard := ctx.push("code")
	defer guard.Close()

	for i, typeIdx := range m.FunctionTypes {
		sig, ok := ctx.TypeOf(typeIdx)
		if !ok {
			ctx.report(0, wasm.IndexOutOfRange, "function %d: unknown type %d", i, typeIdx)
			continue
		}

		body := m.Code[i]
		locals := append(append([]wasm.ValueType(nil), sig.Params...), expandLocals(body.Locals)...)

		fnGuard := ctx.push(functionLabel(ctx.ImportedFunctionCount + i))
		ctx.validateFunctionBody(body.Body, locals, sig.Results, 0)
		fnGuard.Close()
	}
}

func expandLocals(locals []wasm.Local) []wasm.ValueType {
	var out []wasm.ValueType
	for _, l := range locals {
		for i := uint32(0); i < l.Count; i++ {
			out = append(out, l.Type)
		}
	}
	return out
}

func functionLabel(idx int) string {
	return "function " + strconv.Itoa(idx)
}
