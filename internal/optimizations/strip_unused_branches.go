// SPDX-License-Identifier: Apache-2.0
package optimizations

import (
	"relift/internal/analysis"
	"relift/internal/ir"
)

// StripUnusedBranches removes if/then(/else) shapes whose arms compute
// nothing: a branch to one or two blocks that only jump to a common join
// is rewritten into a direct jump, and the empty arms are deleted.
// Arms referenced by a phi node must stay, since the phi distinguishes
// the paths.
type StripUnusedBranches struct {
	fn    *ir.Function
	preds analysis.PredecessorMap
}

// Name implements Optimization.
func (*StripUnusedBranches) Name() string { return "strip-unused-branches" }

// branchMatch describes a strippable region: the then arm, the optional
// else arm, and the join block both arms lead to.
type branchMatch struct {
	thenBB *ir.BasicBlock
	elseBB *ir.BasicBlock
	nextBB *ir.BasicBlock
}

// ProcessFunction implements Optimization.
func (*StripUnusedBranches) ProcessFunction(fn *ir.Function) {
	pass := &StripUnusedBranches{fn: fn, preds: analysis.Predecessors(fn, false)}
	pass.process()
}

func (p *StripUnusedBranches) process() {
	toRemove := make(map[*ir.BasicBlock]bool)

	for _, bb := range p.fn.Blocks() {
		if toRemove[bb] || bb.Len() == 0 {
			continue
		}
		last := bb.Last()
		if last.Op != ir.OpBranch {
			continue
		}

		match := p.matchIfPattern(last.DestTrue(), last.DestFalse())
		if match == nil {
			match = p.matchIfPattern(last.DestFalse(), last.DestTrue())
		}
		if match == nil {
			continue
		}

		// The arms may only hold their jump terminator and must not be
		// named by any phi node; otherwise removing them changes meaning.
		if match.thenBB.Len() != 1 || p.isReferenced(match.thenBB) {
			continue
		}
		if match.elseBB != nil &&
			(match.elseBB.Len() != 1 || p.isReferenced(match.elseBB)) {
			continue
		}

		// Reduce the branch to a jump straight to the join block.
		jump := ir.NewJump(p.fn, match.nextBB)
		jump.Origin = last.Origin
		bb.Replace(bb.Len()-1, jump)

		toRemove[match.thenBB] = true
		delete(p.preds, match.thenBB)
		match.nextBB.RewirePredecessor(match.thenBB, bb)
		replacePred(p.preds, match.nextBB, match.thenBB, bb)
		if match.elseBB != nil {
			toRemove[match.elseBB] = true
			delete(p.preds, match.elseBB)
			match.nextBB.RewirePredecessor(match.elseBB, bb)
			replacePred(p.preds, match.nextBB, match.elseBB, bb)
		}
	}

	// Delete at the end to keep indices valid during the scan.
	for i := p.fn.NumBlocks() - 1; i >= 0; i-- {
		if toRemove[p.fn.Block(i)] {
			p.fn.RemoveBlock(i)
		}
	}
}

// isReferenced reports whether bb is named by a phi node in one of its
// successors, diving into inlined expression trees.
func (p *StripUnusedBranches) isReferenced(bb *ir.BasicBlock) bool {
	for _, succ := range bb.Successors() {
		for _, root := range succ.Instructions() {
			for sub := range analysis.InlinedInstructions(root) {
				if sub.Op != ir.OpPhi {
					continue
				}
				for _, pair := range sub.Pairs() {
					if pair.Block == bb {
						return true
					}
				}
			}
		}
	}
	return false
}

// matchIfPattern matches an if/then(/else) shape below a branch whose
// destinations are left and right, trying left as the then arm. Order
// matters, so callers also try the swapped arguments.
func (p *StripUnusedBranches) matchIfPattern(left, right *ir.BasicBlock) *branchMatch {
	if len(p.preds[left]) != 1 {
		return nil
	}
	succs := left.Successors()
	if len(succs) != 1 {
		return nil
	}
	next := succs[0]

	// Either the branch falls through to the join directly (no else
	// arm)...
	if next == right {
		return &branchMatch{thenBB: left, nextBB: next}
	}
	// ... or the other destination is an equally trivial else arm.
	if len(p.preds[right]) == 1 {
		if rightSuccs := right.Successors(); len(rightSuccs) == 1 && rightSuccs[0] == next {
			return &branchMatch{thenBB: left, elseBB: right, nextBB: next}
		}
	}
	return nil
}

// replacePred updates a live predecessor map after the edge old->bb was
// replaced by new->bb.
func replacePred(preds analysis.PredecessorMap, bb, old, new *ir.BasicBlock) {
	list := preds[bb]
	hasNew := false
	for _, pred := range list {
		if pred == new {
			hasNew = true
			break
		}
	}
	for i, pred := range list {
		if pred != old {
			continue
		}
		if hasNew {
			preds[bb] = append(list[:i], list[i+1:]...)
		} else {
			list[i] = new
		}
		return
	}
}
