// SPDX-License-Identifier: Apache-2.0
package ir

import "fmt"

// BasicBlock is an ordered sequence of instructions in one function,
// ending in a terminator once fully built. The predecessor set is a
// cache maintained alongside the live terminators; passes that rewire
// control flow update it explicitly.
type BasicBlock struct {
	fn    *Function
	insns []*Instruction
	preds map[*BasicBlock]bool
}

func newBasicBlock(fn *Function) *BasicBlock {
	return &BasicBlock{fn: fn, preds: make(map[*BasicBlock]bool)}
}

// Function returns the function owning this block.
func (bb *BasicBlock) Function() *Function { return bb.fn }

// Context returns the owning context.
func (bb *BasicBlock) Context() *Context { return bb.fn.ctx }

// Len returns the number of listed instructions.
func (bb *BasicBlock) Len() int { return len(bb.insns) }

// At returns the instruction at index i.
func (bb *BasicBlock) At(i int) *Instruction { return bb.insns[i] }

// Last returns the final instruction, the terminator of a fully-built
// block.
func (bb *BasicBlock) Last() *Instruction {
	if len(bb.insns) == 0 {
		panic("ir: empty basic block has no last instruction")
	}
	return bb.insns[len(bb.insns)-1]
}

// Instructions returns the live instruction slice. Callers that mutate
// the block while iterating must iterate by index.
func (bb *BasicBlock) Instructions() []*Instruction { return bb.insns }

// Insert places insn at index i and refreshes the predecessor caches of
// the block's current successors.
func (bb *BasicBlock) Insert(i int, insn *Instruction) {
	bb.insns = append(bb.insns, nil)
	copy(bb.insns[i+1:], bb.insns[i:])
	bb.insns[i] = insn
	for _, succ := range bb.successors(true) {
		succ.addPredecessor(bb)
	}
}

// Append places insn at the end of the block.
func (bb *BasicBlock) Append(insn *Instruction) {
	bb.Insert(len(bb.insns), insn)
}

// Replace swaps the instruction at index i. Callers replacing the
// terminator are responsible for the successors' predecessor caches.
func (bb *BasicBlock) Replace(i int, insn *Instruction) {
	bb.insns[i] = insn
}

// Remove drops the instruction at index i. Callers removing the
// terminator are responsible for the successors' predecessor caches.
func (bb *BasicBlock) Remove(i int) {
	copy(bb.insns[i:], bb.insns[i+1:])
	bb.insns = bb.insns[:len(bb.insns)-1]
}

// ReplaceValue rebinds every use of old to new across the block.
func (bb *BasicBlock) ReplaceValue(old, new Value) {
	for _, insn := range bb.insns {
		insn.MapInputs(func(v Value) Value {
			if v == old {
				return new
			}
			return v
		})
	}
}

// Successors returns the successor blocks determined by the terminator.
// Querying a block that is not terminated is a structural error.
func (bb *BasicBlock) Successors() []*BasicBlock {
	return bb.successors(false)
}

// SuccessorsIncomplete is Successors for blocks still under
// construction: an unterminated block contributes no edges.
func (bb *BasicBlock) SuccessorsIncomplete() []*BasicBlock {
	return bb.successors(true)
}

func (bb *BasicBlock) successors(allowIncomplete bool) []*BasicBlock {
	if len(bb.insns) == 0 {
		if !allowIncomplete {
			panic("ir: successors of an empty basic block")
		}
		return nil
	}
	switch last := bb.insns[len(bb.insns)-1]; last.Op {
	case OpJump:
		return []*BasicBlock{last.dests[0]}
	case OpBranch:
		return []*BasicBlock{last.dests[0], last.dests[1]}
	case OpRet, OpUndef:
		return nil
	default:
		if !allowIncomplete {
			panic("ir: successors of an unterminated basic block")
		}
		return nil
	}
}

// Predecessors returns the cached predecessor blocks in function order.
func (bb *BasicBlock) Predecessors() []*BasicBlock {
	preds := make([]*BasicBlock, 0, len(bb.preds))
	for _, candidate := range bb.fn.blocks {
		if bb.preds[candidate] {
			preds = append(preds, candidate)
		}
	}
	return preds
}

// HasPredecessor reports whether pred is in the predecessor cache.
func (bb *BasicBlock) HasPredecessor(pred *BasicBlock) bool {
	return bb.preds[pred]
}

func (bb *BasicBlock) addPredecessor(pred *BasicBlock) {
	bb.preds[pred] = true
}

// RewirePredecessor updates the cache after a pass redirects an edge.
func (bb *BasicBlock) RewirePredecessor(old, new *BasicBlock) {
	if bb.preds[old] {
		delete(bb.preds, old)
		bb.preds[new] = true
	}
}

// Name returns the positional label of the block within its function.
func (bb *BasicBlock) Name() string {
	for i, candidate := range bb.fn.blocks {
		if candidate == bb {
			return fmt.Sprintf("%%bb_%d", i)
		}
	}
	return "%bb_?"
}

func (bb *BasicBlock) String() string {
	return fmt.Sprintf("<BasicBlock %s>", bb.Name())
}
