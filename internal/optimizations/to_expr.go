// SPDX-License-Identifier: Apache-2.0
package optimizations

import (
	"relift/internal/analysis"
	"relift/internal/ir"
)

// ToExpr splices computing instructions used exactly once into their
// consumer's expression tree: the instruction is flagged inline and
// removed from its block's list, while staying reachable through the
// consumer's input value. Afterwards the function is in expression form.
//
// Loads are never inlined: moving them to their use point could cross an
// intervening store and read a different value. Neither is an
// instruction whose expression tree contains a phi node defined in
// another block, since a phi is only meaningful at the head of its own
// block.
type ToExpr struct{}

// Name implements Optimization.
func (*ToExpr) Name() string { return "to-expr" }

// ProcessFunction implements Optimization.
func (*ToExpr) ProcessFunction(fn *ir.Function) {
	uses := analysis.Uses(fn)

	// Attribute every instruction, including already-inlined ones, to
	// the block its expression tree lives in.
	homeBlock := make(map[*ir.Instruction]*ir.BasicBlock)
	for _, bb := range fn.Blocks() {
		for _, root := range bb.Instructions() {
			for sub := range analysis.InlinedInstructions(root) {
				homeBlock[sub] = bb
			}
		}
	}

	for _, bb := range fn.Blocks() {
		var toRemove []int
		for i, insn := range bb.Instructions() {
			if !insn.IsComputing() || uses.Count(insn) != 1 {
				continue
			}
			if insn.Op == ir.OpLoad || insn.Op == ir.OpRload {
				continue
			}
			if phiOutsideBlock(insn, homeBlock[uses.Only(insn)], homeBlock) {
				continue
			}
			insn.Inline = true
			toRemove = append(toRemove, i)
		}
		for i := len(toRemove) - 1; i >= 0; i-- {
			bb.Remove(toRemove[i])
		}
	}

	fn.SetForm(ir.FormExpr)
}

// phiOutsideBlock reports whether insn's expression tree contains a phi
// node that does not live in bb.
func phiOutsideBlock(insn *ir.Instruction, bb *ir.BasicBlock, homeBlock map[*ir.Instruction]*ir.BasicBlock) bool {
	for sub := range analysis.InlinedInstructions(insn) {
		if sub.Op == ir.OpPhi && homeBlock[sub] != bb {
			return true
		}
	}
	return false
}
