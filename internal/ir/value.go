// SPDX-License-Identifier: Apache-2.0
package ir

import "fmt"

// Value is the unit of dataflow: a typed payload that is either a
// compile-time integer constant or a reference to the instruction that
// produces it. Value is comparable; since types are interned, == is
// structural equality.
type Value struct {
	Type *Type
	// Def is the producing instruction, nil for constants.
	Def *Instruction
	// Bits is the constant payload, meaningful only when Def is nil.
	Bits uint64
}

// Valid reports whether v carries a value at all. The zero Value is the
// "not yet known" placeholder used while phi nodes are under
// construction.
func (v Value) Valid() bool { return v.Type != nil }

// IsConst reports whether v is a compile-time constant.
func (v Value) IsConst() bool { return v.Type != nil && v.Def == nil }

// ConstBits returns the constant payload of v.
func (v Value) ConstBits() uint64 {
	if !v.IsConst() {
		panic("ir: ConstBits on a non-constant value")
	}
	return v.Bits
}

func (v Value) String() string {
	switch {
	case !v.Valid():
		return "<unset>"
	case v.IsConst():
		return fmt.Sprintf("%s %#x", v.Type, v.Bits)
	default:
		return v.Def.Name()
	}
}
