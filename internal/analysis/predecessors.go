// SPDX-License-Identifier: Apache-2.0
package analysis

import "relift/internal/ir"

// PredecessorMap maps every block to its predecessors, ordered by block
// index within the function.
type PredecessorMap map[*ir.BasicBlock][]*ir.BasicBlock

// Predecessors accumulates the reverse of every successor edge. With
// allowIncomplete set, unterminated blocks contribute no edges instead
// of being structural errors.
func Predecessors(fn *ir.Function, allowIncomplete bool) PredecessorMap {
	sets := make(map[*ir.BasicBlock]map[*ir.BasicBlock]bool)
	for _, bb := range fn.Blocks() {
		var succs []*ir.BasicBlock
		if allowIncomplete {
			succs = bb.SuccessorsIncomplete()
		} else {
			succs = bb.Successors()
		}
		for _, succ := range succs {
			if sets[succ] == nil {
				sets[succ] = make(map[*ir.BasicBlock]bool)
			}
			sets[succ][bb] = true
		}
	}

	preds := make(PredecessorMap, len(sets))
	for bb, set := range sets {
		list := make([]*ir.BasicBlock, 0, len(set))
		for _, candidate := range fn.Blocks() {
			if set[candidate] {
				list = append(list, candidate)
			}
		}
		preds[bb] = list
	}
	return preds
}
