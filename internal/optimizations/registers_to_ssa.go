// SPDX-License-Identifier: Apache-2.0
package optimizations

import (
	"fmt"

	"relift/internal/analysis"
	"relift/internal/ir"
)

// RegistersToSSA eliminates register load/store traffic so that every
// scalar dataflow is expressed directly through value operands and phi
// nodes.
//
// A synthetic entry block seeds one rload per register, making every
// register defined at the start; phi nodes are placed on the iterated
// dominance frontier of each register's store sites; and a renaming walk
// down the dominator tree replaces rloads with copies of the current
// definition and deletes rstores. Register barriers (call, ret, undef)
// can read or write any register, so definitions are flushed back into
// the registers before them and reloaded after those that can return.
type RegistersToSSA struct {
	fn  *ir.Function
	bld *ir.Builder

	// Registers in the deterministic order they were discovered.
	regs []*ir.Register
	// Register -> blocks storing into it (including the synthetic entry
	// and barrier blocks).
	storeSites map[*ir.Register]map[*ir.BasicBlock]bool
	// Reverse mapping of storeSites.
	storedRegisters map[*ir.BasicBlock]map[*ir.Register]bool

	// Register -> stack of definitions; the top is the value an rload of
	// the register resolves to at the current renaming point.
	defStacks map[*ir.Register][]ir.Value

	domTree *analysis.Tree
}

// Name implements Optimization.
func (*RegistersToSSA) Name() string { return "registers-to-ssa" }

// IsRegisterBarrier reports whether insn can opaquely read or write
// every register, forcing a flush before it and a reload after it.
func IsRegisterBarrier(insn *ir.Instruction) bool {
	switch insn.Op {
	case ir.OpCall, ir.OpRet, ir.OpUndef:
		return true
	}
	return false
}

// ProcessFunction implements Optimization.
func (*RegistersToSSA) ProcessFunction(fn *ir.Function) {
	pass := &RegistersToSSA{
		fn:              fn,
		bld:             ir.NewBuilder(),
		storeSites:      make(map[*ir.Register]map[*ir.BasicBlock]bool),
		storedRegisters: make(map[*ir.BasicBlock]map[*ir.Register]bool),
		defStacks:       make(map[*ir.Register][]ir.Value),
	}
	pass.process()
}

func (p *RegistersToSSA) process() {
	p.collectRegisters()

	// Introduce one load per register at a new entry point and treat them
	// as the initial definitions. Loads that are not dominated by any
	// store inherit these values.
	oldEntry := p.fn.Entry()
	newEntry := p.fn.CreateEntryBlock()
	p.bld.PositionAtEnd(newEntry)
	for _, reg := range p.regs {
		p.pushDef(reg, p.bld.BuildRload(reg))
		p.storeSites[reg][newEntry] = true
		for site := range p.storeSites[reg] {
			p.markStored(site, reg)
		}
	}
	p.bld.BuildJump(oldEntry)

	// A block containing a barrier redefines every register, so its
	// successors must receive fresh values: make it a store site for all
	// of them.
	for _, bb := range p.fn.Blocks() {
		for _, insn := range bb.Instructions() {
			if IsRegisterBarrier(insn) {
				for _, reg := range p.regs {
					p.storeSites[reg][bb] = true
					p.markStored(bb, reg)
				}
				break
			}
		}
	}

	var frontiers analysis.FrontierMap
	p.domTree, frontiers = analysis.DominanceFrontiers(p.fn)

	for _, reg := range p.regs {
		p.createPhiNodes(reg, frontiers)
	}

	// Rename down the dominator tree. The new entry point itself is
	// never renamed (its seeding loads are the roots of the definition
	// chains), but the former entry may carry phi nodes whose operand
	// for the seeding edge still must resolve.
	p.resolveSuccessorPhis(newEntry)
	for _, child := range p.domTree.Children(newEntry) {
		p.transformRegInsns(child)
	}

	p.checkNoDummyLeft()
}

// collectRegisters gathers every register the function touches, keyed by
// first appearance, and the blocks that store into each.
func (p *RegistersToSSA) collectRegisters() {
	track := func(reg *ir.Register) map[*ir.BasicBlock]bool {
		if p.storeSites[reg] == nil {
			p.regs = append(p.regs, reg)
			p.storeSites[reg] = make(map[*ir.BasicBlock]bool)
		}
		return p.storeSites[reg]
	}
	for _, bb := range p.fn.Blocks() {
		for _, insn := range bb.Instructions() {
			switch insn.Op {
			case ir.OpRstore:
				track(insn.Register())[bb] = true
			case ir.OpRload:
				track(insn.Register())
			}
		}
	}
}

func (p *RegistersToSSA) markStored(bb *ir.BasicBlock, reg *ir.Register) {
	if p.storedRegisters[bb] == nil {
		p.storedRegisters[bb] = make(map[*ir.Register]bool)
	}
	p.storedRegisters[bb][reg] = true
}

func (p *RegistersToSSA) pushDef(reg *ir.Register, value ir.Value) {
	p.defStacks[reg] = append(p.defStacks[reg], value)
}

func (p *RegistersToSSA) topDef(reg *ir.Register) ir.Value {
	stack := p.defStacks[reg]
	return stack[len(stack)-1]
}

// createPhiNodes inserts a phi node for reg at the start of every block
// in the iterated dominance frontier of its store sites. The operands
// are placeholder dummy arguments resolved during renaming. Each phi is
// followed by an rstore of it to reg, which renaming turns into reg's
// current definition and removes.
func (p *RegistersToSSA) createPhiNodes(reg *ir.Register, frontiers analysis.FrontierMap) {
	visited := make(map[*ir.BasicBlock]bool)

	var queue []*ir.BasicBlock
	for _, bb := range p.fn.Blocks() {
		if p.storeSites[reg][bb] {
			queue = append(queue, bb)
		}
	}

	for len(queue) > 0 {
		site := queue[0]
		queue = queue[1:]
		for _, bb := range frontiers[site] {
			if visited[bb] {
				continue
			}
			visited[bb] = true

			preds := bb.Predecessors()
			pairs := make([]ir.PhiPair, len(preds))
			for i, pred := range preds {
				pairs[i] = ir.PhiPair{
					Block: pred,
					Value: ir.NewDummyPhi(p.fn, reg).AsValue(),
				}
			}
			p.bld.PositionAtStart(bb)
			phi := p.bld.BuildPhi(pairs)
			p.bld.BuildRstore(reg, phi)

			// The phi is itself a new definition of reg; iterate unless
			// the block already was a store site.
			if !p.storedRegisters[bb][reg] {
				queue = append(queue, bb)
			}
		}
	}
}

type blockEdit struct {
	index  int
	insert bool
	insn   *ir.Instruction
}

// transformRegInsns renames one block, resolves the phi operands of its
// successors, then recurses into its dominator-tree children.
func (p *RegistersToSSA) transformRegInsns(bb *ir.BasicBlock) {
	defsIntroduced := make(map[*ir.Register]int)
	introduce := func(reg *ir.Register, value ir.Value) {
		p.pushDef(reg, value)
		defsIntroduced[reg]++
	}

	// The block is analyzed first and edited afterwards; one cannot
	// iterate a list and reshape it at the same time.
	var edits []blockEdit

	for i := 0; i < bb.Len(); i++ {
		insn := bb.At(i)
		switch {
		case insn.Op == ir.OpRload && p.defStacks[insn.Register()] != nil:
			// Register loads become plain copies of the current
			// definition.
			replacement := ir.NewCopy(p.fn, p.topDef(insn.Register()))
			replacement.Origin = insn.Origin
			bb.Replace(i, replacement)
			p.fn.ReplaceValue(insn.AsValue(), replacement.AsValue())

		case insn.Op == ir.OpRstore:
			// Register stores disappear; the stored value becomes the
			// current definition.
			introduce(insn.Register(), insn.StoredValue())
			edits = append(edits, blockEdit{index: i})

		case IsRegisterBarrier(insn):
			// Flush the current definitions into the registers right
			// before the barrier.
			for _, reg := range p.regs {
				flush := ir.NewRstore(p.fn, reg, p.topDef(reg))
				flush.Origin = insn.Origin
				edits = append(edits, blockEdit{index: i, insert: true, insn: flush})
			}
			// If the barrier can return, reload every register after it.
			if insn.Op != ir.OpRet && insn.Op != ir.OpUndef {
				for _, reg := range p.regs {
					reload := ir.NewRload(p.fn, reg)
					reload.Origin = insn.Origin
					edits = append(edits, blockEdit{index: i + 1, insert: true, insn: reload})
					introduce(reg, reload.AsValue())
				}
			}
		}
	}

	// Apply the edits largest index first so pending indices stay valid.
	for i := len(edits) - 1; i >= 0; i-- {
		if edits[i].insert {
			bb.Insert(edits[i].index, edits[i].insn)
		} else {
			bb.Remove(edits[i].index)
		}
	}

	p.resolveSuccessorPhis(bb)

	for _, child := range p.domTree.Children(bb) {
		p.transformRegInsns(child)
	}

	// Hide the definitions introduced here from the caller.
	for reg, count := range defsIntroduced {
		stack := p.defStacks[reg]
		p.defStacks[reg] = stack[:len(stack)-count]
	}
}

// resolveSuccessorPhis fills in the placeholder phi operands that bb's
// successors carry for the edge coming from bb, using the definitions
// current at the end of bb.
func (p *RegistersToSSA) resolveSuccessorPhis(bb *ir.BasicBlock) {
	for _, succ := range bb.Successors() {
		for _, insn := range succ.Instructions() {
			if insn.Op != ir.OpPhi {
				continue
			}
			if reg := dummyArgumentFor(insn, bb); reg != nil {
				insn.SetPhiValue(bb, p.topDef(reg))
			}
		}
	}
}

// dummyArgumentFor returns the register of the placeholder operand phi
// carries for predecessor bb, or nil if that operand is already
// resolved.
func dummyArgumentFor(phi *ir.Instruction, bb *ir.BasicBlock) *ir.Register {
	for _, pair := range phi.Pairs() {
		if pair.Block != bb {
			continue
		}
		if pair.Value.Def != nil && pair.Value.Def.Op == ir.OpDummyPhi {
			return pair.Value.Def.Register()
		}
		return nil
	}
	return nil
}

// checkNoDummyLeft asserts the renaming resolved every placeholder.
func (p *RegistersToSSA) checkNoDummyLeft() {
	for _, bb := range p.fn.Blocks() {
		for _, insn := range bb.Instructions() {
			for _, input := range insn.Inputs() {
				if input.Def != nil && input.Def.Op == ir.OpDummyPhi {
					panic(fmt.Sprintf(
						"optimizations: unresolved dummy phi argument for %s in %s",
						input.Def.Register().Name, bb.Name()))
				}
			}
		}
	}
}
