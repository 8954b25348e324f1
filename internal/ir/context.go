// SPDX-License-Identifier: Apache-2.0

// Package ir models lifted machine code as a typed intermediate
// representation in static single assignment form: functions made of
// basic blocks, instructions as one tagged sum over operation kinds, and
// values that are either constants or references to their producing
// instruction. A Context owns every type and function and interns all
// types, so type equality is structural.
package ir

import "fmt"

// Context is the process-wide factory and type registry. All types are
// interned here, so two structurally equal types are always the same
// pointer and type equality is plain pointer comparison.
type Context struct {
	// PointerWidth is the width in bits of every pointer type created by
	// this context.
	PointerWidth int

	// Pre-built common types.
	Void   *Type
	Bool   *Type
	Byte   *Type
	Half   *Type
	Word   *Type
	Double *Type

	intTypes  map[int]*Type
	ptrTypes  map[*Type]*Type
	funcTypes []*Type

	functions map[uint64]*Function
}

// NewContext creates a context for an architecture with the given pointer
// width in bits.
func NewContext(pointerWidth int) *Context {
	if pointerWidth <= 0 {
		panic(fmt.Sprintf("ir: invalid pointer width %d", pointerWidth))
	}

	ctx := &Context{
		PointerWidth: pointerWidth,
		intTypes:     make(map[int]*Type),
		ptrTypes:     make(map[*Type]*Type),
		functions:    make(map[uint64]*Function),
	}
	ctx.Void = &Type{ctx: ctx, Kind: KindVoid}
	ctx.Bool = ctx.IntType(1)
	ctx.Byte = ctx.IntType(8)
	ctx.Half = ctx.IntType(16)
	ctx.Word = ctx.IntType(32)
	ctx.Double = ctx.IntType(64)
	return ctx
}

// IntType returns the interned integer type of the given width in bits.
func (c *Context) IntType(width int) *Type {
	if width < 1 {
		panic(fmt.Sprintf("ir: invalid integer width %d", width))
	}
	if typ, ok := c.intTypes[width]; ok {
		return typ
	}
	typ := &Type{ctx: c, Kind: KindInt, Width: width}
	c.intTypes[width] = typ
	return typ
}

// PointerType returns the interned pointer type for the given pointee.
// Its width is the context pointer width.
func (c *Context) PointerType(pointee *Type) *Type {
	if typ, ok := c.ptrTypes[pointee]; ok {
		return typ
	}
	typ := &Type{ctx: c, Kind: KindPointer, Width: c.PointerWidth, Pointee: pointee}
	c.ptrTypes[pointee] = typ
	return typ
}

// FunctionType returns the interned function type with the given return
// and argument types.
func (c *Context) FunctionType(ret *Type, args []*Type) *Type {
	for _, typ := range c.funcTypes {
		if typ.Ret != ret || len(typ.Args) != len(args) {
			continue
		}
		same := true
		for i, arg := range typ.Args {
			if arg != args[i] {
				same = false
				break
			}
		}
		if same {
			return typ
		}
	}
	typ := &Type{
		ctx:   c,
		Kind:  KindFunction,
		Width: c.PointerWidth,
		Ret:   ret,
		Args:  append([]*Type(nil), args...),
	}
	c.funcTypes = append(c.funcTypes, typ)
	return typ
}

// CreateFunction creates a function at the given address and registers it.
// The function starts with a single empty basic block as its entry.
func (c *Context) CreateFunction(address uint64) *Function {
	fn := newFunction(c, address)
	c.functions[address] = fn
	return fn
}

// Function returns the function registered at address, or nil.
func (c *Context) Function(address uint64) *Function {
	return c.functions[address]
}

// Functions returns every registered function, ordered by address.
func (c *Context) Functions() []*Function {
	addrs := make([]uint64, 0, len(c.functions))
	for addr := range c.functions {
		addrs = append(addrs, addr)
	}
	for i := 1; i < len(addrs); i++ {
		for j := i; j > 0 && addrs[j] < addrs[j-1]; j-- {
			addrs[j], addrs[j-1] = addrs[j-1], addrs[j]
		}
	}
	fns := make([]*Function, len(addrs))
	for i, addr := range addrs {
		fns[i] = c.functions[addr]
	}
	return fns
}
