// SPDX-License-Identifier: Apache-2.0
package optimizations

import (
	"fmt"

	"relift/internal/analysis"
	"relift/internal/ir"
)

// PhiToSelect turns two-input phi nodes into select instructions when
// their block closes an if/then(/else) region.
//
// The resulting select references values defined in blocks that do not
// dominate it, so the function stops being a strict SSA representation.
// That is acceptable only because the subsequent expression inlining
// absorbs the select into a tree evaluated inside the join block, which
// is why this pass refuses to run on a function already in expression
// form.
type PhiToSelect struct {
	fn    *ir.Function
	preds analysis.PredecessorMap
}

// Name implements Optimization.
func (*PhiToSelect) Name() string { return "phi-to-select" }

// ifMatch describes a matched if/then(/else) region feeding a join
// block: the branch condition, and which predecessor the true and false
// arms reach the join through.
type ifMatch struct {
	condition ir.Value
	truePred  *ir.BasicBlock
	falsePred *ir.BasicBlock
}

// ProcessFunction implements Optimization.
func (*PhiToSelect) ProcessFunction(fn *ir.Function) {
	if fn.Form() != ir.FormPure {
		panic("optimizations: phi-to-select requires a function in pure form")
	}
	pass := &PhiToSelect{fn: fn, preds: analysis.Predecessors(fn, false)}
	pass.process()
}

func (p *PhiToSelect) process() {
	for _, bb := range p.fn.Blocks() {
		// Only phi nodes with two inputs qualify, so the block needs
		// exactly two predecessors.
		preds := p.preds[bb]
		if len(preds) != 2 {
			continue
		}

		match := p.matchIfPattern(preds[0], preds[1])
		if match == nil {
			match = p.matchIfPattern(preds[1], preds[0])
		}
		if match == nil {
			continue
		}

		for i := 0; i < bb.Len(); i++ {
			insn := bb.At(i)
			if insn.Op != ir.OpPhi {
				continue
			}

			var trueValue, falseValue ir.Value
			for _, pair := range insn.Pairs() {
				switch pair.Block {
				case match.truePred:
					trueValue = pair.Value
				case match.falsePred:
					falseValue = pair.Value
				}
			}
			if !trueValue.Valid() || !falseValue.Valid() {
				panic(fmt.Sprintf("optimizations: phi in %s lacks an operand for its if pattern",
					bb.Name()))
			}

			sel := ir.NewSelect(p.fn, match.condition, trueValue, falseValue)
			sel.Origin = insn.Origin
			bb.Replace(i, sel)
			p.fn.ReplaceValue(insn.AsValue(), sel.AsValue())
		}
	}
}

// matchIfPattern matches an if/then(/else) region reaching a join block
// through predecessors left and right, trying left as the then side.
// Order matters, so callers also try the swapped arguments.
func (p *PhiToSelect) matchIfPattern(left, right *ir.BasicBlock) *ifMatch {
	leftPreds := p.preds[left]
	if len(leftPreds) != 1 {
		return nil
	}
	origin := leftPreds[0]

	// Either right is the branching block itself (no else side), or both
	// sides hang off the same branching block.
	if origin != right {
		rightPreds := p.preds[right]
		if len(rightPreds) != 1 || rightPreds[0] != origin {
			return nil
		}
	}

	branch := origin.Last()
	if branch.Op != ir.OpBranch {
		return nil
	}

	// Associate each arm of the branch with the predecessor it reaches
	// the join through.
	switch {
	case branch.DestTrue() == left:
		return &ifMatch{condition: branch.Condition(), truePred: left, falsePred: right}
	case branch.DestFalse() == left:
		return &ifMatch{condition: branch.Condition(), truePred: right, falsePred: left}
	}
	return nil
}
