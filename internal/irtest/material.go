// SPDX-License-Identifier: Apache-2.0

// Package irtest provides the shared fixtures of the test suite: a
// context with four word-sized registers and builders plus checkers for
// the standard scenarios. The checkers run the interpreter, so they can
// validate a function both before and after a transformation.
package irtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"relift/internal/interp"
	"relift/internal/ir"
)

// Fixture is a context with the standard test registers.
type Fixture struct {
	Ctx  *ir.Context
	RegA *ir.Register
	RegB *ir.Register
	RegC *ir.Register
	RegD *ir.Register
}

// NewFixture creates a 32-bit context with registers ra through rd.
func NewFixture() *Fixture {
	ctx := ir.NewContext(32)
	return &Fixture{
		Ctx:  ctx,
		RegA: ir.NewRegister(ctx, "ra", 32),
		RegB: ir.NewRegister(ctx, "rb", 32),
		RegC: ir.NewRegister(ctx, "rc", 32),
		RegD: ir.NewRegister(ctx, "rd", 32),
	}
}

// NewFunction creates a fresh function and a builder positioned at its
// entry.
func (f *Fixture) NewFunction() (*ir.Function, *ir.Builder) {
	fn := f.Ctx.CreateFunction(0)
	bld := ir.NewBuilder()
	bld.PositionAtEnd(fn.Entry())
	return fn, bld
}

// Live wraps a defined register value.
func Live(reg *ir.Register, bits uint64) interp.LiveValue {
	return interp.NewLiveValue(reg.Type, bits)
}

// Run executes fn and requires success, returning the final registers.
func Run(t *testing.T, fn *ir.Function, registers interp.RegisterMap) interp.RegisterMap {
	t.Helper()
	_, err := interp.Run(fn, registers)
	require.NoError(t, err)
	return registers
}

// BuildEmpty builds:
//
//	ret
func (f *Fixture) BuildEmpty(bld *ir.Builder) {
	bld.BuildRet()
}

// CheckEmpty verifies the empty scenario: no registers touched, no
// return value.
func (f *Fixture) CheckEmpty(t *testing.T, fn *ir.Function) {
	t.Helper()
	registers := interp.RegisterMap{}
	ret, err := interp.Run(fn, registers)
	require.NoError(t, err)
	require.Nil(t, ret)
	require.Empty(t, registers)
}

// BuildSimpleRstore builds:
//
//	rstore i to $ra
//	ret
func (f *Fixture) BuildSimpleRstore(bld *ir.Builder, i int64) {
	bld.BuildRstore(f.RegA, f.RegA.Type.Const(i))
	bld.BuildRet()
}

// CheckSimpleRstore verifies a constant ends up in ra.
func (f *Fixture) CheckSimpleRstore(t *testing.T, fn *ir.Function, i int64) {
	t.Helper()
	registers := Run(t, fn, interp.RegisterMap{})
	require.Equal(t, interp.RegisterMap{
		f.RegA: Live(f.RegA, uint64(i)),
	}, registers)
}

// BuildSimplePhi builds a two-armed branch on ra != 0 whose arms load rb
// and rc, joined by a phi stored into rd:
//
//	%bb_0:
//	  %0 = rload i32 $ra
//	  %1 = %0 != i32 0x0
//	  branch if %1 then %bb_1 else %bb_2
//	%bb_1:
//	  %2 = rload i32 $rb
//	  jump %bb_3
//	%bb_2:
//	  %3 = rload i32 $rc
//	  jump %bb_3
//	%bb_3:
//	  %4 = phi %bb_1 => %2, %bb_2 => %3
//	  rstore %4 to i32 $rd
//	  ret
func (f *Fixture) BuildSimplePhi(bld *ir.Builder) {
	bbTrue := bld.CreateBasicBlock()
	bbFalse := bld.CreateBasicBlock()
	bbEnd := bld.CreateBasicBlock()

	bld.BuildBranch(
		bld.BuildNe(bld.BuildRload(f.RegA), f.RegA.Type.Const(0)),
		bbTrue, bbFalse,
	)

	bld.PositionAtEnd(bbTrue)
	valueTrue := bld.BuildRload(f.RegB)
	bld.BuildJump(bbEnd)

	bld.PositionAtEnd(bbFalse)
	valueFalse := bld.BuildRload(f.RegC)
	bld.BuildJump(bbEnd)

	bld.PositionAtEnd(bbEnd)
	valueEnd := bld.BuildPhi([]ir.PhiPair{
		{Block: bbTrue, Value: valueTrue},
		{Block: bbFalse, Value: valueFalse},
	})
	bld.BuildRstore(f.RegD, valueEnd)
	bld.BuildRet()
}

// CheckSimplePhi verifies both arms: ra=1 routes rb into rd, ra=0
// routes rc.
func (f *Fixture) CheckSimplePhi(t *testing.T, fn *ir.Function) {
	t.Helper()

	registers := Run(t, fn, interp.RegisterMap{
		f.RegA: Live(f.RegA, 1),
		f.RegB: Live(f.RegB, 1),
		f.RegC: Live(f.RegC, 2),
	})
	require.Equal(t, interp.RegisterMap{
		f.RegA: Live(f.RegA, 1),
		f.RegB: Live(f.RegB, 1),
		f.RegC: Live(f.RegC, 2),
		f.RegD: Live(f.RegD, 1),
	}, registers)

	registers = Run(t, fn, interp.RegisterMap{
		f.RegA: Live(f.RegA, 0),
		f.RegB: Live(f.RegB, 1),
		f.RegC: Live(f.RegC, 2),
	})
	require.Equal(t, interp.RegisterMap{
		f.RegA: Live(f.RegA, 0),
		f.RegB: Live(f.RegB, 1),
		f.RegC: Live(f.RegC, 2),
		f.RegD: Live(f.RegD, 2),
	}, registers)
}

// BuildSimpleLoop builds a loop computing 2^ra into rb.
func (f *Fixture) BuildSimpleLoop(bld *ir.Builder) {
	fn := bld.Block().Function()
	bbCond := bld.CreateBasicBlock()
	bbLoop := bld.CreateBasicBlock()
	bbEnd := bld.CreateBasicBlock()

	word := f.RegA.Type
	n := bld.BuildRload(f.RegA)
	bld.BuildJump(bbCond)

	bld.PositionAtEnd(bbCond)
	iCond := bld.BuildPhi([]ir.PhiPair{
		{Block: fn.Entry(), Value: word.Const(0)},
		{Block: bbLoop},
	})
	resultCond := bld.BuildPhi([]ir.PhiPair{
		{Block: fn.Entry(), Value: word.Const(1)},
		{Block: bbLoop},
	})
	bld.BuildBranch(bld.BuildUlt(iCond, n), bbLoop, bbEnd)

	bld.PositionAtEnd(bbLoop)
	iLoop := bld.BuildAdd(iCond, word.Const(1))
	resultLoop := bld.BuildMul(resultCond, word.Const(2))
	bld.BuildJump(bbCond)

	iCond.Def.SetPhiValue(bbLoop, iLoop)
	resultCond.Def.SetPhiValue(bbLoop, resultLoop)

	bld.PositionAtEnd(bbEnd)
	bld.BuildRstore(f.RegB, resultCond)
	bld.BuildRet()
}

// CheckSimpleLoop verifies 2^ra for ra in {0, 1, 2}.
func (f *Fixture) CheckSimpleLoop(t *testing.T, fn *ir.Function) {
	t.Helper()
	for _, tc := range []struct{ n, want uint64 }{
		{0, 1},
		{1, 2},
		{2, 4},
	} {
		registers := Run(t, fn, interp.RegisterMap{f.RegA: Live(f.RegA, tc.n)})
		require.Equal(t, interp.RegisterMap{
			f.RegA: Live(f.RegA, tc.n),
			f.RegB: Live(f.RegB, tc.want),
		}, registers, "2^%d", tc.n)
	}
}

// BuildMergeChain3 builds three chained blocks that together compute
// rb = ra + 1.
func (f *Fixture) BuildMergeChain3(bld *ir.Builder) {
	bbNext := bld.CreateBasicBlock()
	bbEnd := bld.CreateBasicBlock()

	aValue := bld.BuildRload(f.RegA)
	bld.BuildJump(bbNext)

	bld.PositionAtEnd(bbNext)
	bValue := bld.BuildAdd(aValue, f.RegA.Type.Const(1))
	bld.BuildJump(bbEnd)

	bld.PositionAtEnd(bbEnd)
	bld.BuildRstore(f.RegB, bValue)
	bld.BuildRet()
}

// CheckMergeChain3 verifies rb = ra + 1.
func (f *Fixture) CheckMergeChain3(t *testing.T, fn *ir.Function) {
	t.Helper()
	registers := Run(t, fn, interp.RegisterMap{f.RegA: Live(f.RegA, 1)})
	require.Equal(t, interp.RegisterMap{
		f.RegA: Live(f.RegA, 1),
		f.RegB: Live(f.RegB, 2),
	}, registers)
}
