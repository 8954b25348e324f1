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

// node mirrors a tree as nested literals, which keeps expected trees
// easy to write in test cases.
type node struct {
	block    *ir.BasicBlock
	children map[*ir.BasicBlock]node
}

func toNodes(tree *analysis.Tree) node {
	var convert func(bb *ir.BasicBlock) node
	convert = func(bb *ir.BasicBlock) node {
		children := make(map[*ir.BasicBlock]node)
		for _, child := range tree.Children(bb) {
			children[child] = convert(child)
		}
		return node{block: bb, children: children}
	}
	return convert(tree.Root())
}

func leaf(bb *ir.BasicBlock) node {
	return node{block: bb, children: map[*ir.BasicBlock]node{}}
}

func TestDominanceSingle(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	bld.BuildRet()

	tree := analysis.DominatorTree(fn)
	assert.Equal(t, leaf(fn.Entry()), toNodes(tree))
}

func TestDominanceChained(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	bbA := fn.CreateBasicBlock()
	bbB := fn.CreateBasicBlock()
	bld.BuildJump(bbA)

	bld.PositionAtEnd(bbA)
	bld.BuildJump(bbB)

	bld.PositionAtEnd(bbB)
	bld.BuildRet()

	tree := analysis.DominatorTree(fn)
	assert.Equal(t, node{fn.Entry(), map[*ir.BasicBlock]node{
		bbA: {bbA, map[*ir.BasicBlock]node{
			bbB: leaf(bbB),
		}},
	}}, toNodes(tree))
}

func buildDiamond(f *irtest.Fixture, fn *ir.Function, bld *ir.Builder) (bbA, bbB, bbC *ir.BasicBlock) {
	bbA = fn.CreateBasicBlock()
	bbB = fn.CreateBasicBlock()
	bbC = fn.CreateBasicBlock()

	value := bld.BuildRload(f.RegA)
	bld.BuildBranch(bld.BuildEq(value, f.RegA.Type.Const(0)), bbA, bbB)

	bld.PositionAtEnd(bbA)
	bld.BuildJump(bbC)

	bld.PositionAtEnd(bbB)
	bld.BuildJump(bbC)

	bld.PositionAtEnd(bbC)
	bld.BuildRet()
	return bbA, bbB, bbC
}

func TestDominanceDiamond(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	bbA, bbB, bbC := buildDiamond(f, fn, bld)

	tree := analysis.DominatorTree(fn)
	assert.Equal(t, node{fn.Entry(), map[*ir.BasicBlock]node{
		bbA: leaf(bbA),
		bbB: leaf(bbB),
		bbC: leaf(bbC),
	}}, toNodes(tree))
}

func TestDominanceLoop(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	bbA := fn.CreateBasicBlock()
	bbB := fn.CreateBasicBlock()
	bld.BuildJump(bbA)

	bld.PositionAtEnd(bbA)
	value := bld.BuildRload(f.RegA)
	bld.BuildBranch(bld.BuildEq(value, f.RegA.Type.Const(0)), bbA, bbB)

	bld.PositionAtEnd(bbB)
	bld.BuildRet()

	tree := analysis.DominatorTree(fn)
	assert.Equal(t, node{fn.Entry(), map[*ir.BasicBlock]node{
		bbA: {bbA, map[*ir.BasicBlock]node{
			bbB: leaf(bbB),
		}},
	}}, toNodes(tree))
}

func TestDominatorTreeProperties(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	buildDiamond(f, fn, bld)

	tree := analysis.DominatorTree(fn)

	// Every block is reachable here, so the tree holds all of them, with
	// the entry as root.
	require.Equal(t, fn.NumBlocks(), tree.Size())
	require.Same(t, fn.Entry(), tree.Root())

	// For every CFG edge A -> B, idom(B) dominates A.
	for _, bb := range fn.Blocks() {
		for _, succ := range bb.Successors() {
			idom := tree.Parent(succ)
			if idom == nil {
				continue
			}
			assert.True(t, idom == bb || tree.IsAncestor(bb, idom),
				"idom(%s) = %s must dominate %s", succ.Name(), idom.Name(), bb.Name())
		}
	}
}

func TestDFSTree(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	bbA, bbB, bbC := buildDiamond(f, fn, bld)

	tree, numbers := analysis.DFSTree(fn)
	require.Same(t, fn.Entry(), tree.Root())
	assert.Equal(t, 0, numbers[fn.Entry()])

	// Pre-order: the entry first, then the true arm and its subtree.
	assert.Equal(t, 1, numbers[bbA])
	assert.Equal(t, 2, numbers[bbC])
	assert.Equal(t, 3, numbers[bbB])
	assert.Same(t, fn.Entry(), tree.Parent(bbA))
	assert.Same(t, bbA, tree.Parent(bbC))
}

func TestDominanceFrontiers(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	bbA, bbB, bbC := buildDiamond(f, fn, bld)

	_, frontiers := analysis.DominanceFrontiers(fn)

	assert.Empty(t, frontiers[fn.Entry()])
	assert.Equal(t, []*ir.BasicBlock{bbC}, frontiers[bbA])
	assert.Equal(t, []*ir.BasicBlock{bbC}, frontiers[bbB])
	assert.Empty(t, frontiers[bbC])
}

func TestDominanceFrontiersLoopHeader(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	bbA := fn.CreateBasicBlock()
	bbB := fn.CreateBasicBlock()
	bld.BuildJump(bbA)

	bld.PositionAtEnd(bbA)
	value := bld.BuildRload(f.RegA)
	bld.BuildBranch(bld.BuildEq(value, f.RegA.Type.Const(0)), bbA, bbB)

	bld.PositionAtEnd(bbB)
	bld.BuildRet()

	_, frontiers := analysis.DominanceFrontiers(fn)

	// A loop header is in its own dominance frontier.
	assert.Equal(t, []*ir.BasicBlock{bbA}, frontiers[bbA])
}

func TestPredecessors(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	bbA, bbB, bbC := buildDiamond(f, fn, bld)

	preds := analysis.Predecessors(fn, false)
	assert.Empty(t, preds[fn.Entry()])
	assert.Equal(t, []*ir.BasicBlock{fn.Entry()}, preds[bbA])
	assert.Equal(t, []*ir.BasicBlock{fn.Entry()}, preds[bbB])
	assert.Equal(t, []*ir.BasicBlock{bbA, bbB}, preds[bbC])

	// The reverse-edge map must agree with the successor relation.
	for _, bb := range fn.Blocks() {
		for _, succ := range bb.Successors() {
			assert.Contains(t, preds[succ], bb)
		}
	}
}

func TestPredecessorsIncomplete(t *testing.T) {
	f := irtest.NewFixture()
	fn, bld := f.NewFunction()
	bld.BuildRet()
	fn.CreateBasicBlock()

	assert.Panics(t, func() { analysis.Predecessors(fn, false) })
	assert.NotPanics(t, func() { analysis.Predecessors(fn, true) })
}
