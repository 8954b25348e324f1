// SPDX-License-Identifier: Apache-2.0
package ir

import "fmt"

// Form is the representational mode of a function.
type Form int

const (
	// FormPure is the flat representation: every instruction sits in a
	// block's instruction list.
	FormPure Form = iota
	// FormExpr marks that single-use computing instructions have been
	// spliced into their consumer's expression tree and removed from the
	// block lists.
	FormExpr
)

func (f Form) String() string {
	if f == FormExpr {
		return "expr"
	}
	return "pure"
}

// Function is an ordered list of basic blocks; the block at index 0 is
// the entry point.
type Function struct {
	ctx *Context

	// Address is the machine address the function was lifted from.
	Address uint64

	ReturnType *Type
	ArgTypes   []*Type

	blocks []*BasicBlock
	form   Form
}

func newFunction(ctx *Context, address uint64) *Function {
	fn := &Function{
		ctx:        ctx,
		Address:    address,
		ReturnType: ctx.Void,
	}
	fn.blocks = []*BasicBlock{newBasicBlock(fn)}
	return fn
}

// Context returns the owning context.
func (fn *Function) Context() *Context { return fn.ctx }

// Name returns the listing name derived from the address.
func (fn *Function) Name() string {
	return fmt.Sprintf("sub_%x", fn.Address)
}

// Entry returns the entry basic block.
func (fn *Function) Entry() *BasicBlock { return fn.blocks[0] }

// Blocks returns the live block slice. Callers that remove blocks while
// iterating must iterate by index.
func (fn *Function) Blocks() []*BasicBlock { return fn.blocks }

// NumBlocks returns the number of basic blocks.
func (fn *Function) NumBlocks() int { return len(fn.blocks) }

// Block returns the basic block at index i.
func (fn *Function) Block(i int) *BasicBlock { return fn.blocks[i] }

// IndexOf returns the index of bb in the block list.
func (fn *Function) IndexOf(bb *BasicBlock) int {
	for i, candidate := range fn.blocks {
		if candidate == bb {
			return i
		}
	}
	panic(fmt.Sprintf("ir: %s does not belong to %s", bb.Name(), fn.Name()))
}

// CreateBasicBlock appends a new empty basic block.
func (fn *Function) CreateBasicBlock() *BasicBlock {
	bb := newBasicBlock(fn)
	fn.blocks = append(fn.blocks, bb)
	return bb
}

// CreateEntryBlock prepends a new empty basic block, making it the
// function's entry point.
func (fn *Function) CreateEntryBlock() *BasicBlock {
	bb := newBasicBlock(fn)
	fn.blocks = append([]*BasicBlock{bb}, fn.blocks...)
	return bb
}

// RemoveBlock drops the basic block at index i. The caller is
// responsible for predecessor caches and phi references.
func (fn *Function) RemoveBlock(i int) {
	copy(fn.blocks[i:], fn.blocks[i+1:])
	fn.blocks = fn.blocks[:len(fn.blocks)-1]
}

// ReplaceValue rebinds every use of old to new across the function.
func (fn *Function) ReplaceValue(old, new Value) {
	for _, bb := range fn.blocks {
		bb.ReplaceValue(old, new)
	}
}

// Form returns the representational mode of the function.
func (fn *Function) Form() Form { return fn.form }

// SetForm switches the representational mode.
func (fn *Function) SetForm(form Form) { fn.form = form }
