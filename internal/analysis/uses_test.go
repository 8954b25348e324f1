// SPDX-License-Identifier: Apache-2.0
package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relift/internal/analysis"
	"relift/internal/ir"
	"relift/internal/irtest"
)

func TestUses(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	word := f.RegA.Type

	value := bld.BuildRload(f.RegA)
	sum := bld.BuildAdd(value, word.Const(1))
	product := bld.BuildMul(sum, sum)
	bld.BuildRstore(f.RegB, product)
	bld.BuildRstore(f.RegC, product)
	bld.BuildRet()

	uses := analysis.Uses(fn)

	require.Equal(t, 1, uses.Count(value.Def))
	assert.Same(t, sum.Def, uses.Only(value.Def))

	// Both operands of the multiplication are the same value: one user.
	require.Equal(t, 1, uses.Count(sum.Def))
	assert.Same(t, product.Def, uses.Only(sum.Def))

	// Two distinct rstores consume the product.
	assert.Equal(t, 2, uses.Count(product.Def))
	assert.Panics(t, func() { uses.Only(product.Def) })
}

func TestUsesDiveIntoInlinedTrees(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	word := f.RegA.Type

	value := bld.BuildRload(f.RegA)
	sum := bld.BuildAdd(value, word.Const(1))
	bld.BuildRstore(f.RegB, sum)
	bld.BuildRet()

	// Inline the addition into the rstore by hand.
	sum.Def.Inline = true
	fn.Entry().Remove(1)
	fn.SetForm(ir.FormExpr)

	uses := analysis.Uses(fn)

	// The rload's use sits inside the rstore's expression tree; the
	// recorded user is the inlined addition, not the rstore.
	require.Equal(t, 1, uses.Count(value.Def))
	assert.Same(t, sum.Def, uses.Only(value.Def))
}

func TestInlinedInstructions(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	word := f.RegA.Type

	value := bld.BuildRload(f.RegA)
	sum := bld.BuildAdd(value, word.Const(1))
	product := bld.BuildMul(sum, word.Const(2))
	bld.BuildRstore(f.RegB, product)
	bld.BuildRet()

	// Before inlining, a tree is just its root.
	assert.Equal(t, map[*ir.Instruction]bool{product.Def: true},
		analysis.InlinedInstructions(product.Def))

	sum.Def.Inline = true
	fn.Entry().Remove(1)

	assert.Equal(t, map[*ir.Instruction]bool{
		product.Def: true,
		sum.Def:     true,
	}, analysis.InlinedInstructions(product.Def))

	// The rload is not inlined, so the walk stops at its value.
	assert.NotContains(t, analysis.InlinedInstructions(product.Def), value.Def)
}
