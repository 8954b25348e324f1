// SPDX-License-Identifier: Apache-2.0
package ir

import "fmt"

// Component is one slice of a composite register: a narrower register
// holding the bits of the composite starting at Shift.
type Component struct {
	Reg   *Register
	Shift int
}

// Register is a named machine storage cell with an integer type.
// Registers are mutable locations, not SSA values: they are read with
// rload and written with rstore. A composite register has no storage of
// its own; it aliases its component registers at the given bit offsets,
// the way a wide accumulator aliases its halves.
type Register struct {
	Name       string
	Type       *Type
	Components []Component
}

// NewRegister creates an atomic register of the given width.
func NewRegister(ctx *Context, name string, width int) *Register {
	return &Register{Name: name, Type: ctx.IntType(width)}
}

// NewCompositeRegister creates a register aliasing the given components.
func NewCompositeRegister(ctx *Context, name string, width int, components []Component) *Register {
	for _, comp := range components {
		if comp.Shift < 0 || comp.Shift+comp.Reg.Type.Width > width {
			panic(fmt.Sprintf("ir: component %s does not fit register %s", comp.Reg.Name, name))
		}
	}
	return &Register{
		Name:       name,
		Type:       ctx.IntType(width),
		Components: append([]Component(nil), components...),
	}
}

// IsComposite reports whether r aliases component registers.
func (r *Register) IsComposite() bool { return len(r.Components) > 0 }

// LoadVia builds the instructions reading r at the builder's cursor and
// returns the loaded value. For an atomic register this is a single
// rload; for a composite one, each component is loaded, widened, shifted
// into place and accumulated.
func (r *Register) LoadVia(b *Builder) Value {
	if !r.IsComposite() {
		return b.BuildRload(r)
	}
	var result Value
	for _, comp := range r.Components {
		val := b.BuildZext(r.Type, b.BuildRload(comp.Reg))
		if comp.Shift != 0 {
			val = b.BuildLshl(val, r.Type.Const(int64(comp.Shift)))
		}
		if result.Valid() {
			result = b.BuildOr(result, val)
		} else {
			result = val
		}
	}
	return result
}

// StoreVia builds the instructions writing value to r at the builder's
// cursor. For a composite register the value is sliced back into the
// component registers.
func (r *Register) StoreVia(b *Builder, value Value) {
	if value.Type != r.Type {
		panic(fmt.Sprintf("ir: storing %s value to %s register %s",
			value.Type, r.Type, r.Name))
	}
	if !r.IsComposite() {
		b.BuildRstore(r, value)
		return
	}
	for _, comp := range r.Components {
		val := value
		if comp.Shift != 0 {
			val = b.BuildLshr(val, r.Type.Const(int64(comp.Shift)))
		}
		b.BuildRstore(comp.Reg, b.BuildTrunc(comp.Reg.Type, val))
	}
}

func (r *Register) String() string {
	return "$" + r.Name
}
