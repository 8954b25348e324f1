// SPDX-License-Identifier: Apache-2.0
package optimizations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relift/internal/interp"
	"relift/internal/ir"
	"relift/internal/irtest"
	"relift/internal/optimizations"
)

// buildConstantDiamond builds a branch on ra != 0 whose join merges two
// constants into rd through a phi. With swapArms, the branch targets are
// exchanged so the false arm comes first.
func buildConstantDiamond(f *irtest.Fixture, bld *ir.Builder, swapArms bool) (join *ir.BasicBlock) {
	word := f.RegA.Type
	bbTrue := bld.CreateBasicBlock()
	bbFalse := bld.CreateBasicBlock()
	join = bld.CreateBasicBlock()

	cond := bld.BuildNe(bld.BuildRload(f.RegA), word.Const(0))
	if swapArms {
		bld.BuildBranch(bld.BuildXor(cond, f.Ctx.Bool.Const(1)), bbFalse, bbTrue)
	} else {
		bld.BuildBranch(cond, bbTrue, bbFalse)
	}

	bld.PositionAtEnd(bbTrue)
	bld.BuildJump(join)
	bld.PositionAtEnd(bbFalse)
	bld.BuildJump(join)

	bld.PositionAtEnd(join)
	phi := bld.BuildPhi([]ir.PhiPair{
		{Block: bbTrue, Value: word.Const(10)},
		{Block: bbFalse, Value: word.Const(20)},
	})
	bld.BuildRstore(f.RegD, phi)
	bld.BuildRet()
	return join
}

func checkConstantDiamond(t *testing.T, f *irtest.Fixture, fn *ir.Function) {
	t.Helper()
	registers := irtest.Run(t, fn, interp.RegisterMap{f.RegA: irtest.Live(f.RegA, 1)})
	assert.Equal(t, irtest.Live(f.RegD, 10), registers[f.RegD])
	registers = irtest.Run(t, fn, interp.RegisterMap{f.RegA: irtest.Live(f.RegA, 0)})
	assert.Equal(t, irtest.Live(f.RegD, 20), registers[f.RegD])
}

func TestPhiToSelect(t *testing.T) {
	for _, swapArms := range []bool{false, true} {
		f := irtest.NewFixture()
		fn, bld := f.NewFunction()
		join := buildConstantDiamond(f, bld, swapArms)
		checkConstantDiamond(t, f, fn)

		(&optimizations.PhiToSelect{}).ProcessFunction(fn)

		// The phi became a select on the branch condition, with the arm
		// values associated to the right sides.
		sel := join.At(0)
		require.Equal(t, ir.OpSelect, sel.Op)
		checkConstantDiamond(t, f, fn)
	}
}

func TestPhiToSelectWithoutElse(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	word := f.RegA.Type

	// if/then without an else arm: the branch falls through to the join.
	bbThen := bld.CreateBasicBlock()
	bbJoin := bld.CreateBasicBlock()

	entry := fn.Entry()
	cond := bld.BuildNe(bld.BuildRload(f.RegA), word.Const(0))
	bld.BuildBranch(cond, bbThen, bbJoin)

	bld.PositionAtEnd(bbThen)
	bld.BuildJump(bbJoin)

	bld.PositionAtEnd(bbJoin)
	phi := bld.BuildPhi([]ir.PhiPair{
		{Block: bbThen, Value: word.Const(1)},
		{Block: entry, Value: word.Const(2)},
	})
	bld.BuildRstore(f.RegD, phi)
	bld.BuildRet()

	(&optimizations.PhiToSelect{}).ProcessFunction(fn)

	sel := bbJoin.At(0)
	require.Equal(t, ir.OpSelect, sel.Op)
	assert.Equal(t, word.Const(1), sel.TrueValue())
	assert.Equal(t, word.Const(2), sel.FalseValue())

	registers := irtest.Run(t, fn, interp.RegisterMap{f.RegA: irtest.Live(f.RegA, 5)})
	assert.Equal(t, irtest.Live(f.RegD, 1), registers[f.RegD])
	registers = irtest.Run(t, fn, interp.RegisterMap{f.RegA: irtest.Live(f.RegA, 0)})
	assert.Equal(t, irtest.Live(f.RegD, 2), registers[f.RegD])
}

func TestPhiToSelectIgnoresLoops(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	f.BuildSimpleLoop(bld)

	(&optimizations.PhiToSelect{}).ProcessFunction(fn)

	// A loop header's phis do not match the if pattern and must survive.
	f.CheckSimpleLoop(t, fn)
	var phis int
	for _, bb := range fn.Blocks() {
		for _, insn := range bb.Instructions() {
			if insn.Op == ir.OpPhi {
				phis++
			}
		}
	}
	assert.Equal(t, 2, phis)
}

func TestPhiToSelectRefusesExprForm(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	f.BuildEmpty(bld)
	fn.SetForm(ir.FormExpr)

	assert.Panics(t, func() {
		(&optimizations.PhiToSelect{}).ProcessFunction(fn)
	})
}
