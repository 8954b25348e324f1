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

func TestCopyEliminationRebindsThroughChains(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	word := f.RegA.Type

	source := bld.BuildRload(f.RegA)
	copy1 := bld.BuildCopy(source)
	copy2 := bld.BuildCopy(copy1)
	sum := bld.BuildAdd(copy2, word.Const(1))
	bld.BuildRstore(f.RegB, sum)
	bld.BuildRet()

	(&optimizations.CopyElimination{}).ProcessFunction(fn)

	// The addition now reads the rload directly; the copies are orphaned
	// but still listed until dead-code elimination runs.
	assert.Equal(t, []ir.Value{source, word.Const(1)}, sum.Def.Inputs())
	assert.Equal(t, 6, fn.Entry().Len())

	registers := irtest.Run(t, fn, interp.RegisterMap{f.RegA: irtest.Live(f.RegA, 1)})
	assert.Equal(t, irtest.Live(f.RegB, 2), registers[f.RegB])
}

func TestCopyEliminationIdempotent(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()

	source := bld.BuildRload(f.RegA)
	bld.BuildRstore(f.RegB, bld.BuildCopy(source))
	bld.BuildRet()

	(&optimizations.CopyElimination{}).ProcessFunction(fn)
	first := ir.FormatString(fn.Format())
	(&optimizations.CopyElimination{}).ProcessFunction(fn)
	assert.Equal(t, first, ir.FormatString(fn.Format()))
}

func TestOriginalValue(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()

	source := bld.BuildRload(f.RegA)
	copied := bld.BuildCopy(source)
	bld.BuildRet()
	_ = fn

	assert.Equal(t, source, optimizations.OriginalValue(copied))
	assert.Equal(t, source, optimizations.OriginalValue(source))

	constant := f.RegA.Type.Const(3)
	assert.Equal(t, constant, optimizations.OriginalValue(constant))
}

func TestDCERemovesUnusedComputations(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	word := f.RegA.Type

	used := bld.BuildRload(f.RegA)
	bld.BuildAdd(used, word.Const(1)) // dead
	bld.BuildCopy(used)               // dead
	kept := bld.BuildMul(used, word.Const(3))
	bld.BuildRstore(f.RegB, kept)
	bld.BuildRet()

	(&optimizations.DeadCodeElimination{}).ProcessFunction(fn)

	// Only the store's dataflow survives: rload, mul, rstore, ret.
	entry := fn.Entry()
	require.Equal(t, 4, entry.Len())
	assert.Equal(t, ir.OpRload, entry.At(0).Op)
	assert.Equal(t, ir.OpMul, entry.At(1).Op)

	registers := irtest.Run(t, fn, interp.RegisterMap{f.RegA: irtest.Live(f.RegA, 2)})
	assert.Equal(t, irtest.Live(f.RegB, 6), registers[f.RegB])
}

func TestDCEKeepsTransitiveInputs(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	word := f.RegA.Type

	a := bld.BuildRload(f.RegA)
	b := bld.BuildAdd(a, word.Const(1))
	c := bld.BuildMul(b, word.Const(2))
	bld.BuildRstore(f.RegB, c)
	bld.BuildRet()

	(&optimizations.DeadCodeElimination{}).ProcessFunction(fn)

	// The whole chain feeds the store; nothing may disappear.
	assert.Equal(t, 5, fn.Entry().Len())
}

func TestDCEIdempotent(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	word := f.RegA.Type

	value := bld.BuildRload(f.RegA)
	bld.BuildAdd(value, word.Const(1))
	bld.BuildRstore(f.RegB, value)
	bld.BuildRet()

	(&optimizations.DeadCodeElimination{}).ProcessFunction(fn)
	first := ir.FormatString(fn.Format())
	(&optimizations.DeadCodeElimination{}).ProcessFunction(fn)
	assert.Equal(t, first, ir.FormatString(fn.Format()))
}
