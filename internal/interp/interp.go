// SPDX-License-Identifier: Apache-2.0

// Package interp executes IR functions directly. It is the executable
// semantics of the IR: the test suite runs functions through it before
// and after each transformation and compares the resulting register
// state.
package interp

import (
	"errors"
	"fmt"

	"relift/internal/ir"
)

// Runtime failure classes, distinguishable with errors.Is.
var (
	ErrDivideByZero = errors.New("division by zero")
	ErrUndef        = errors.New("use of an undefined value")
	ErrUnsupported  = errors.New("unsupported instruction")
	ErrBadMemory    = errors.New("invalid memory access")
)

// LiveValue is a runtime value: a type plus an unsigned payload masked
// to the type width, or the distinguished undef state when no payload
// has been set. LiveValue is comparable.
type LiveValue struct {
	Type    *ir.Type
	bits    uint64
	defined bool
}

// NewLiveValue creates a defined value, masking bits to the type width.
func NewLiveValue(typ *ir.Type, bits uint64) LiveValue {
	return LiveValue{Type: typ, bits: bits & widthMask(typ.Width), defined: true}
}

// UndefValue creates the undef value of the given type.
func UndefValue(typ *ir.Type) LiveValue {
	return LiveValue{Type: typ}
}

// FromValue converts a compile-time constant into a LiveValue.
func FromValue(v ir.Value) LiveValue {
	return NewLiveValue(v.Type, v.ConstBits())
}

// IsUndef reports whether lv has no payload.
func (lv LiveValue) IsUndef() bool { return !lv.defined }

// Unsigned returns the payload zero-extended.
func (lv LiveValue) Unsigned() (uint64, error) {
	if !lv.defined {
		return 0, ErrUndef
	}
	return lv.bits, nil
}

// Signed returns the payload sign-extended from the type width.
func (lv LiveValue) Signed() (int64, error) {
	if !lv.defined {
		return 0, ErrUndef
	}
	return signExtend(lv.bits, lv.Type.Width), nil
}

func (lv LiveValue) String() string {
	if !lv.defined {
		return fmt.Sprintf("<%s undef>", lv.Type)
	}
	return fmt.Sprintf("<%s %d>", lv.Type, lv.bits)
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

func signExtend(bits uint64, width int) int64 {
	if width >= 64 {
		return int64(bits)
	}
	sign := uint64(1) << uint(width-1)
	if bits&sign != 0 {
		return int64(bits | ^widthMask(width))
	}
	return int64(bits)
}

// RegisterMap holds the machine register state. Run reads it for the
// initial state and mutates it in place with the final state.
type RegisterMap map[*ir.Register]LiveValue

type memoryCell struct {
	typ   *ir.Type
	value LiveValue
}

// Interpreter executes one function over a register map.
type Interpreter struct {
	fn        *ir.Function
	registers RegisterMap

	values map[*ir.Instruction]LiveValue

	memory   map[uint64]*memoryCell
	nextAddr uint64

	lastBB    *ir.BasicBlock
	currentBB *ir.BasicBlock

	returnValue *LiveValue
}

// Run executes fn with the given initial register state. The register
// map is mutated in place; the returned value is nil for a void return.
func Run(fn *ir.Function, registers RegisterMap) (*LiveValue, error) {
	in := &Interpreter{
		fn:        fn,
		registers: registers,
		values:    make(map[*ir.Instruction]LiveValue),
		memory:    make(map[uint64]*memoryCell),
		nextAddr:  1,
		currentBB: fn.Entry(),
	}
	if err := in.process(); err != nil {
		return nil, err
	}
	return in.returnValue, nil
}

func (in *Interpreter) process() error {
	for in.currentBB != nil {
		var next *ir.BasicBlock
		for _, insn := range in.currentBB.Instructions() {
			switch {
			case insn.IsTerminator() || insn.Op == ir.OpCall:
				bb, err := in.evalControlFlow(insn)
				if err != nil {
					return err
				}
				next = bb
			case insn.IsComputing():
				value, err := in.evalComputing(insn)
				if err != nil {
					return err
				}
				in.values[insn] = value
			default:
				if err := in.evalEffect(insn); err != nil {
					return err
				}
			}
		}
		in.lastBB = in.currentBB
		in.currentBB = next
	}
	return nil
}

// getValue resolves an input: constants directly, listed instructions
// through the recorded values, inlined instructions by evaluating their
// expression tree on demand.
func (in *Interpreter) getValue(v ir.Value) (LiveValue, error) {
	if v.Def == nil {
		return FromValue(v), nil
	}
	if value, ok := in.values[v.Def]; ok {
		return value, nil
	}
	if v.Def.Inline {
		return in.evalComputing(v.Def)
	}
	return LiveValue{}, fmt.Errorf("interp: value of %s %s was never computed",
		v.Def.Op, v.Def.Name())
}

func (in *Interpreter) evalControlFlow(insn *ir.Instruction) (*ir.BasicBlock, error) {
	switch insn.Op {
	case ir.OpJump:
		return insn.Destination(), nil

	case ir.OpBranch:
		cond, err := in.getValue(insn.Condition())
		if err != nil {
			return nil, err
		}
		bits, err := cond.Unsigned()
		if err != nil {
			return nil, fmt.Errorf("interp: branch condition: %w", err)
		}
		if bits != 0 {
			return insn.DestTrue(), nil
		}
		return insn.DestFalse(), nil

	case ir.OpRet:
		if value, ok := insn.ReturnValue(); ok {
			ret, err := in.getValue(value)
			if err != nil {
				return nil, err
			}
			in.returnValue = &ret
		}
		return nil, nil

	case ir.OpCall:
		return nil, fmt.Errorf("interp: call: %w", ErrUnsupported)

	case ir.OpUndef:
		return nil, fmt.Errorf("interp: undef: %w", ErrUnsupported)
	}
	panic(fmt.Sprintf("interp: %s is not control flow", insn.Op))
}

func (in *Interpreter) evalEffect(insn *ir.Instruction) error {
	switch insn.Op {
	case ir.OpStore:
		addr, err := in.getValue(insn.StoreDest())
		if err != nil {
			return err
		}
		addrBits, err := addr.Unsigned()
		if err != nil {
			return fmt.Errorf("interp: store address: %w", err)
		}
		cell, ok := in.memory[addrBits]
		if !ok {
			return fmt.Errorf("interp: store to %#x: %w", addrBits, ErrBadMemory)
		}
		if cell.typ != addr.Type.Pointee {
			return fmt.Errorf("interp: store of %s into %s cell: %w",
				addr.Type.Pointee, cell.typ, ErrBadMemory)
		}
		value, err := in.getValue(insn.StoredValue())
		if err != nil {
			return err
		}
		cell.value = value
		return nil

	case ir.OpRstore:
		value, err := in.getValue(insn.StoredValue())
		if err != nil {
			return err
		}
		in.registers[insn.Register()] = value
		return nil
	}
	panic(fmt.Sprintf("interp: %s is not an effect", insn.Op))
}

func (in *Interpreter) evalComputing(insn *ir.Instruction) (LiveValue, error) {
	switch insn.Op {
	case ir.OpPhi:
		for _, pair := range insn.Pairs() {
			if pair.Block == in.lastBB {
				return in.getValue(pair.Value)
			}
		}
		origin := "function entry"
		if in.lastBB != nil {
			origin = in.lastBB.Name()
		}
		return LiveValue{}, fmt.Errorf("interp: phi has no pair for predecessor %s", origin)

	case ir.OpZext, ir.OpTrunc, ir.OpBitcast:
		value, err := in.getValue(insn.Operand())
		if err != nil {
			return LiveValue{}, err
		}
		bits, err := value.Unsigned()
		if err != nil {
			return LiveValue{}, fmt.Errorf("interp: %s operand: %w", insn.Op, err)
		}
		return NewLiveValue(insn.DestType(), bits), nil

	case ir.OpSext:
		value, err := in.getValue(insn.Operand())
		if err != nil {
			return LiveValue{}, err
		}
		bits, err := value.Signed()
		if err != nil {
			return LiveValue{}, fmt.Errorf("interp: sext operand: %w", err)
		}
		return NewLiveValue(insn.DestType(), uint64(bits)), nil

	case ir.OpLoad:
		addr, err := in.getValue(insn.Operand())
		if err != nil {
			return LiveValue{}, err
		}
		addrBits, err := addr.Unsigned()
		if err != nil {
			return LiveValue{}, fmt.Errorf("interp: load address: %w", err)
		}
		cell, ok := in.memory[addrBits]
		if !ok {
			return LiveValue{}, fmt.Errorf("interp: load from %#x: %w", addrBits, ErrBadMemory)
		}
		if cell.typ != addr.Type.Pointee {
			return LiveValue{}, fmt.Errorf("interp: load of %s from %s cell: %w",
				addr.Type.Pointee, cell.typ, ErrBadMemory)
		}
		return cell.value, nil

	case ir.OpRload:
		reg := insn.Register()
		if value, ok := in.registers[reg]; ok {
			return value, nil
		}
		return UndefValue(reg.Type), nil

	case ir.OpAlloca:
		addr := in.nextAddr
		in.nextAddr++
		in.memory[addr] = &memoryCell{
			typ:   insn.StoredType(),
			value: UndefValue(insn.StoredType()),
		}
		return NewLiveValue(insn.Type(), addr), nil

	case ir.OpSelect:
		cond, err := in.getValue(insn.Condition())
		if err != nil {
			return LiveValue{}, err
		}
		bits, err := cond.Unsigned()
		if err != nil {
			return LiveValue{}, fmt.Errorf("interp: select condition: %w", err)
		}
		if bits != 0 {
			return in.getValue(insn.TrueValue())
		}
		return in.getValue(insn.FalseValue())

	case ir.OpCopy:
		return in.getValue(insn.Operand())

	case ir.OpCat:
		return LiveValue{}, fmt.Errorf("interp: cat: %w", ErrUnsupported)

	case ir.OpDummyPhi:
		return LiveValue{}, fmt.Errorf("interp: dummy phi argument: %w", ErrUnsupported)
	}

	if insn.Op.IsBinary() {
		return in.evalBinary(insn)
	}
	if insn.Op.IsComparison() {
		return in.evalComparison(insn)
	}
	panic(fmt.Sprintf("interp: %s is not a computing instruction", insn.Op))
}

func (in *Interpreter) binaryOperands(insn *ir.Instruction) (LiveValue, LiveValue, error) {
	left, err := in.getValue(insn.Left())
	if err != nil {
		return LiveValue{}, LiveValue{}, err
	}
	right, err := in.getValue(insn.Right())
	if err != nil {
		return LiveValue{}, LiveValue{}, err
	}
	if left.IsUndef() || right.IsUndef() {
		return LiveValue{}, LiveValue{}, fmt.Errorf("interp: %s operand: %w", insn.Op, ErrUndef)
	}
	return left, right, nil
}

func (in *Interpreter) evalBinary(insn *ir.Instruction) (LiveValue, error) {
	left, right, err := in.binaryOperands(insn)
	if err != nil {
		return LiveValue{}, err
	}
	typ := insn.Type()
	lu, _ := left.Unsigned()
	ru, _ := right.Unsigned()

	switch insn.Op {
	case ir.OpAdd:
		return NewLiveValue(typ, lu+ru), nil
	case ir.OpSub:
		return NewLiveValue(typ, lu-ru), nil
	case ir.OpMul:
		return NewLiveValue(typ, lu*ru), nil
	case ir.OpUdiv:
		if ru == 0 {
			return LiveValue{}, fmt.Errorf("interp: udiv: %w", ErrDivideByZero)
		}
		return NewLiveValue(typ, lu/ru), nil
	case ir.OpSdiv:
		ls, _ := left.Signed()
		rs, _ := right.Signed()
		if rs == 0 {
			return LiveValue{}, fmt.Errorf("interp: sdiv: %w", ErrDivideByZero)
		}
		return NewLiveValue(typ, uint64(floorDiv(ls, rs))), nil
	case ir.OpLshl:
		if ru >= 64 {
			return NewLiveValue(typ, 0), nil
		}
		return NewLiveValue(typ, lu<<ru), nil
	case ir.OpLshr:
		if ru >= 64 {
			return NewLiveValue(typ, 0), nil
		}
		return NewLiveValue(typ, lu>>ru), nil
	case ir.OpAshr:
		ls, _ := left.Signed()
		if ru >= 63 {
			ru = 63
		}
		return NewLiveValue(typ, uint64(ls>>ru)), nil
	case ir.OpAnd:
		return NewLiveValue(typ, lu&ru), nil
	case ir.OpOr:
		return NewLiveValue(typ, lu|ru), nil
	case ir.OpXor:
		return NewLiveValue(typ, lu^ru), nil
	}
	panic(fmt.Sprintf("interp: %s is not a binary operation", insn.Op))
}

func (in *Interpreter) evalComparison(insn *ir.Instruction) (LiveValue, error) {
	left, right, err := in.binaryOperands(insn)
	if err != nil {
		return LiveValue{}, err
	}

	var result bool
	switch insn.Op {
	case ir.OpEq, ir.OpNe, ir.OpUle, ir.OpUlt, ir.OpUge, ir.OpUgt:
		lu, _ := left.Unsigned()
		ru, _ := right.Unsigned()
		switch insn.Op {
		case ir.OpEq:
			result = lu == ru
		case ir.OpNe:
			result = lu != ru
		case ir.OpUle:
			result = lu <= ru
		case ir.OpUlt:
			result = lu < ru
		case ir.OpUge:
			result = lu >= ru
		case ir.OpUgt:
			result = lu > ru
		}
	default:
		ls, _ := left.Signed()
		rs, _ := right.Signed()
		switch insn.Op {
		case ir.OpSle:
			result = ls <= rs
		case ir.OpSlt:
			result = ls < rs
		case ir.OpSge:
			result = ls >= rs
		case ir.OpSgt:
			result = ls > rs
		}
	}

	bits := uint64(0)
	if result {
		bits = 1
	}
	return NewLiveValue(insn.Type(), bits), nil
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
