// SPDX-License-Identifier: Apache-2.0
package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeInterning(t *testing.T) {
	ctx := NewContext(32)

	assert.Same(t, ctx.IntType(32), ctx.Word)
	assert.Same(t, ctx.IntType(7), ctx.IntType(7))
	assert.NotSame(t, ctx.IntType(7), ctx.IntType(8))

	ptr := ctx.PointerType(ctx.Word)
	assert.Same(t, ptr, ctx.PointerType(ctx.Word))
	assert.Equal(t, 32, ptr.Width)
	assert.Same(t, ctx.Word, ptr.Pointee)

	fnType := ctx.FunctionType(ctx.Void, []*Type{ctx.Word, ctx.Byte})
	assert.Same(t, fnType, ctx.FunctionType(ctx.Void, []*Type{ctx.Word, ctx.Byte}))
	assert.NotSame(t, fnType, ctx.FunctionType(ctx.Void, []*Type{ctx.Word}))
}

func TestTypePredicates(t *testing.T) {
	ctx := NewContext(16)

	assert.True(t, ctx.Void.IsVoid())
	assert.True(t, ctx.Bool.IsInt())
	assert.Equal(t, 1, ctx.Bool.Width)
	assert.True(t, ctx.PointerType(ctx.Half).IsPointer())
	assert.Equal(t, 16, ctx.PointerType(ctx.Half).Width)
}

func TestIntConst(t *testing.T) {
	ctx := NewContext(32)

	v := ctx.Word.Const(42)
	require.True(t, v.IsConst())
	assert.Equal(t, uint64(42), v.ConstBits())
	assert.Same(t, ctx.Word, v.Type)

	// Negative literals wrap to two's complement at the type width.
	neg := ctx.Byte.Const(-1)
	assert.Equal(t, uint64(0xff), neg.ConstBits())

	assert.Panics(t, func() { ctx.Byte.Const(256) })
	assert.Panics(t, func() { ctx.Byte.Const(-129) })
	assert.Panics(t, func() { ctx.Void.Const(0) })
	assert.NotPanics(t, func() { ctx.Byte.Const(255) })
	assert.NotPanics(t, func() { ctx.Bool.Const(1) })
}

func TestValueEquality(t *testing.T) {
	ctx := NewContext(32)

	assert.Equal(t, ctx.Word.Const(1), ctx.Word.Const(1))
	assert.NotEqual(t, ctx.Word.Const(1), ctx.Word.Const(2))
	assert.NotEqual(t, ctx.Word.Const(1), ctx.Byte.Const(1))

	var unset Value
	assert.False(t, unset.Valid())
	assert.True(t, ctx.Word.Const(0).Valid())
}

func TestTypeString(t *testing.T) {
	ctx := NewContext(32)

	assert.Equal(t, "void", ctx.Void.String())
	assert.Equal(t, "i32", ctx.Word.String())
	assert.Equal(t, "i8*", ctx.PointerType(ctx.Byte).String())
	assert.Equal(t, "void(i32, i8)",
		ctx.FunctionType(ctx.Void, []*Type{ctx.Word, ctx.Byte}).String())
}
