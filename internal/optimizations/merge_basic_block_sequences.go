// SPDX-License-Identifier: Apache-2.0
package optimizations

import (
	"relift/internal/analysis"
	"relift/internal/ir"
)

// MergeBasicBlockSequences collapses chains of basic blocks where each
// link has a single predecessor and its predecessor a single successor:
// the intermediate jumps disappear, every instruction moves into the
// first block of the chain in execution order, and the trailing blocks
// are deleted.
type MergeBasicBlockSequences struct {
	fn    *ir.Function
	preds analysis.PredecessorMap
}

// Name implements Optimization.
func (*MergeBasicBlockSequences) Name() string { return "merge-basic-block-sequences" }

// ProcessFunction implements Optimization.
func (*MergeBasicBlockSequences) ProcessFunction(fn *ir.Function) {
	pass := &MergeBasicBlockSequences{fn: fn, preds: analysis.Predecessors(fn, false)}
	pass.process()
}

func (p *MergeBasicBlockSequences) process() {
	processed := make(map[*ir.BasicBlock]bool)
	toRemove := make(map[*ir.BasicBlock]bool)

	for _, bb := range p.fn.Blocks() {
		if processed[bb] {
			continue
		}

		// Collect the chain bb belongs to by walking backwards, then put
		// it in execution order.
		var sequence []*ir.BasicBlock
		for cur := bb; cur != nil; cur = p.previousInSequence(cur) {
			sequence = append(sequence, cur)
			processed[cur] = true
		}
		if len(sequence) == 1 {
			continue
		}
		for i, j := 0, len(sequence)-1; i < j; i, j = i+1, j-1 {
			sequence[i], sequence[j] = sequence[j], sequence[i]
		}

		first := sequence[0]
		last := sequence[len(sequence)-1]

		// Drop the jumps linking the chain; the last block keeps its
		// terminator.
		for _, link := range sequence[:len(sequence)-1] {
			link.Remove(link.Len() - 1)
		}

		// The last block's successors now hang off the first block:
		// update the predecessor caches, the live predecessor map and
		// every phi node naming the last block.
		for _, succ := range last.Successors() {
			succ.RewirePredecessor(last, first)
			replacePred(p.preds, succ, last, first)
			for _, root := range succ.Instructions() {
				for sub := range analysis.InlinedInstructions(root) {
					if sub.Op == ir.OpPhi {
						sub.ReplacePredecessor(last, first)
					}
				}
			}
		}

		// Splice the chain's instructions into the first block,
		// preserving execution order.
		for _, link := range sequence[1:] {
			for _, insn := range link.Instructions() {
				first.Append(insn)
			}
			toRemove[link] = true
		}
	}

	// Delete at the end to keep indices valid during the scan.
	for i := p.fn.NumBlocks() - 1; i >= 0; i-- {
		if toRemove[p.fn.Block(i)] {
			p.fn.RemoveBlock(i)
		}
	}
}

// previousInSequence returns the block preceding bb in its chain: its
// unique predecessor, provided bb is that predecessor's unique
// successor. It returns nil when bb starts a chain.
func (p *MergeBasicBlockSequences) previousInSequence(bb *ir.BasicBlock) *ir.BasicBlock {
	if len(p.preds[bb]) != 1 {
		return nil
	}
	pred := p.preds[bb][0]
	if len(pred.Successors()) != 1 {
		return nil
	}
	return pred
}
