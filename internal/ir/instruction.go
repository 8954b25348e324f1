// SPDX-License-Identifier: Apache-2.0
package ir

import "fmt"

// Opcode discriminates the Instruction variants.
type Opcode uint8

const (
	// Control flow.
	OpJump Opcode = iota
	OpBranch
	OpCall
	OpRet

	// Phi node.
	OpPhi

	// Conversions.
	OpZext
	OpSext
	OpTrunc
	OpBitcast

	// Arithmetic.
	OpAdd
	OpSub
	OpMul
	OpSdiv
	OpUdiv

	// Bitwise and shifts.
	OpLshl
	OpLshr
	OpAshr
	OpAnd
	OpOr
	OpXor

	// Concatenation.
	OpCat

	// Comparisons, all producing i1.
	OpEq
	OpNe
	OpSle
	OpSlt
	OpSge
	OpSgt
	OpUle
	OpUlt
	OpUge
	OpUgt

	// Memory.
	OpLoad
	OpStore

	// Registers.
	OpRload
	OpRstore

	// Stack.
	OpAlloca

	// Scalar.
	OpSelect
	OpCopy

	// Undefined behavior; terminates the block.
	OpUndef

	// OpDummyPhi is the placeholder phi operand installed during SSA
	// construction, resolved to a real definition during renaming. It
	// never survives the pass that created it.
	OpDummyPhi
)

var opcodeNames = map[Opcode]string{
	OpJump:     "jump",
	OpBranch:   "branch",
	OpCall:     "call",
	OpRet:      "ret",
	OpPhi:      "phi",
	OpZext:     "zext",
	OpSext:     "sext",
	OpTrunc:    "trunc",
	OpBitcast:  "bitcast",
	OpAdd:      "add",
	OpSub:      "sub",
	OpMul:      "mul",
	OpSdiv:     "sdiv",
	OpUdiv:     "udiv",
	OpLshl:     "lshl",
	OpLshr:     "lshr",
	OpAshr:     "ashr",
	OpAnd:      "and",
	OpOr:       "or",
	OpXor:      "xor",
	OpCat:      "cat",
	OpEq:       "eq",
	OpNe:       "ne",
	OpSle:      "sle",
	OpSlt:      "slt",
	OpSge:      "sge",
	OpSgt:      "sgt",
	OpUle:      "ule",
	OpUlt:      "ult",
	OpUge:      "uge",
	OpUgt:      "ugt",
	OpLoad:     "load",
	OpStore:    "store",
	OpRload:    "rload",
	OpRstore:   "rstore",
	OpAlloca:   "alloca",
	OpSelect:   "select",
	OpCopy:     "copy",
	OpUndef:    "undef",
	OpDummyPhi: "dummy",
}

func (op Opcode) String() string { return opcodeNames[op] }

// IsBinary reports whether op is a two-operand arithmetic/bitwise kind.
func (op Opcode) IsBinary() bool { return op >= OpAdd && op <= OpXor }

// IsComparison reports whether op is a comparison kind.
func (op Opcode) IsComparison() bool { return op >= OpEq && op <= OpUgt }

// IsConversion reports whether op is a width/representation conversion.
func (op Opcode) IsConversion() bool { return op >= OpZext && op <= OpBitcast }

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool {
	return op == OpJump || op == OpBranch || op == OpRet || op == OpUndef
}

// PhiPair associates an incoming value with the predecessor block it
// flows in from. A pair's Value may be left unset while the phi is under
// construction (back edges of loops).
type PhiPair struct {
	Block *BasicBlock
	Value Value
}

// Instruction is a single tagged sum over every operation kind. Which
// fields are meaningful depends on Op; use the accessors. An instruction
// belongs to the blocks of exactly one function, except while it is
// inlined into a consumer's expression tree, in which case it is listed
// nowhere but stays reachable through the consumer's input values.
type Instruction struct {
	fn *Function

	Op Opcode

	// Origin is an opaque source-mapping annotation. Analyses never
	// consume it; it only resurfaces in listings.
	Origin string

	// Inline marks an instruction spliced into its unique consumer's
	// expression tree (FormExpr functions only).
	Inline bool

	destType *Type   // conversions, alloca (stored type), cat (result)
	a, b, c  Value   // generic operands, see accessors
	args     []Value // call arguments, cat operands
	pairs    []PhiPair
	dests    [2]*BasicBlock // jump/branch destinations
	reg      *Register      // rload, rstore, dummy phi
}

// Function returns the function this instruction belongs to.
func (insn *Instruction) Function() *Function { return insn.fn }

// Context returns the owning context.
func (insn *Instruction) Context() *Context { return insn.fn.ctx }

// Type returns the type of the value this instruction produces, or the
// void type if it produces none.
func (insn *Instruction) Type() *Type {
	ctx := insn.Context()
	switch insn.Op {
	case OpJump, OpBranch, OpRet, OpStore, OpRstore, OpUndef:
		return ctx.Void
	case OpCall:
		return insn.a.Type.Ret
	case OpPhi:
		for _, pair := range insn.pairs {
			if pair.Value.Valid() {
				return pair.Value.Type
			}
		}
		panic("ir: phi with no resolved pair")
	case OpZext, OpSext, OpTrunc, OpBitcast, OpCat:
		return insn.destType
	case OpAlloca:
		return ctx.PointerType(insn.destType)
	case OpLoad:
		return insn.a.Type.Pointee
	case OpRload, OpDummyPhi:
		return insn.reg.Type
	case OpSelect:
		return insn.b.Type
	default:
		if insn.Op.IsComparison() {
			return ctx.Bool
		}
		// Binary operations and copy take their left/only operand's type.
		return insn.a.Type
	}
}

// IsComputing reports whether the instruction produces a value that
// participates in SSA dataflow. Calls are deliberately excluded: they
// are opaque control flow with register side effects.
func (insn *Instruction) IsComputing() bool {
	switch insn.Op {
	case OpJump, OpBranch, OpCall, OpRet, OpStore, OpRstore, OpUndef:
		return false
	}
	return true
}

// IsTerminator reports whether the instruction ends its block.
func (insn *Instruction) IsTerminator() bool { return insn.Op.IsTerminator() }

// AsValue returns the Value produced by this instruction.
func (insn *Instruction) AsValue() Value {
	typ := insn.Type()
	if typ.IsVoid() {
		panic(fmt.Sprintf("ir: %s instruction has no value", insn.Op))
	}
	return Value{Type: typ, Def: insn}
}

// MapInputs applies f to every input value of the instruction and stores
// the result back, enabling uniform operand rewriting. Unset phi
// operands are skipped.
func (insn *Instruction) MapInputs(f func(Value) Value) {
	switch insn.Op {
	case OpBranch:
		insn.a = f(insn.a)
	case OpCall:
		insn.a = f(insn.a)
		for i := range insn.args {
			insn.args[i] = f(insn.args[i])
		}
	case OpRet:
		if insn.a.Valid() {
			insn.a = f(insn.a)
		}
	case OpPhi:
		for i := range insn.pairs {
			if insn.pairs[i].Value.Valid() {
				insn.pairs[i].Value = f(insn.pairs[i].Value)
			}
		}
	case OpZext, OpSext, OpTrunc, OpBitcast, OpLoad, OpCopy:
		insn.a = f(insn.a)
	case OpCat:
		for i := range insn.args {
			insn.args[i] = f(insn.args[i])
		}
	case OpStore:
		insn.a = f(insn.a)
		insn.b = f(insn.b)
	case OpRstore:
		insn.b = f(insn.b)
	case OpSelect:
		insn.a = f(insn.a)
		insn.b = f(insn.b)
		insn.c = f(insn.c)
	case OpJump, OpRload, OpAlloca, OpUndef, OpDummyPhi:
		// No value inputs.
	default:
		// Binary operations and comparisons.
		insn.a = f(insn.a)
		insn.b = f(insn.b)
	}
}

// Inputs returns a snapshot of every input value, derived from MapInputs.
func (insn *Instruction) Inputs() []Value {
	var inputs []Value
	insn.MapInputs(func(v Value) Value {
		inputs = append(inputs, v)
		return v
	})
	return inputs
}

// Name returns the SSA listing name of the instruction's value, found by
// numbering instructions across the function's blocks. Inlined
// instructions are no longer listed and print structurally instead.
func (insn *Instruction) Name() string {
	i := 0
	for _, bb := range insn.fn.blocks {
		for _, candidate := range bb.insns {
			if candidate == insn {
				return fmt.Sprintf("%%%d", i)
			}
			i++
		}
	}
	return fmt.Sprintf("%%<%s>", insn.Op)
}

// Accessors. Each panics when the opcode does not carry the field.

func (insn *Instruction) checkOp(ops ...Opcode) {
	for _, op := range ops {
		if insn.Op == op {
			return
		}
	}
	panic(fmt.Sprintf("ir: %s instruction has no such operand", insn.Op))
}

// Destination returns the target of a jump.
func (insn *Instruction) Destination() *BasicBlock {
	insn.checkOp(OpJump)
	return insn.dests[0]
}

// Condition returns the condition of a branch or select.
func (insn *Instruction) Condition() Value {
	insn.checkOp(OpBranch, OpSelect)
	return insn.a
}

// DestTrue returns the taken destination of a branch.
func (insn *Instruction) DestTrue() *BasicBlock {
	insn.checkOp(OpBranch)
	return insn.dests[0]
}

// DestFalse returns the fall-through destination of a branch.
func (insn *Instruction) DestFalse() *BasicBlock {
	insn.checkOp(OpBranch)
	return insn.dests[1]
}

// Callee returns the called function value.
func (insn *Instruction) Callee() Value {
	insn.checkOp(OpCall)
	return insn.a
}

// Args returns the call arguments or cat operands.
func (insn *Instruction) Args() []Value {
	insn.checkOp(OpCall, OpCat)
	return insn.args
}

// ReturnValue returns the operand of a ret in a non-void function. The
// second result is false for a void return.
func (insn *Instruction) ReturnValue() (Value, bool) {
	insn.checkOp(OpRet)
	return insn.a, insn.a.Valid()
}

// Pairs returns the phi's (predecessor, value) pairs.
func (insn *Instruction) Pairs() []PhiPair {
	insn.checkOp(OpPhi)
	return insn.pairs
}

// SetPhiValue resolves the pair for the given predecessor block.
func (insn *Instruction) SetPhiValue(bb *BasicBlock, value Value) {
	insn.checkOp(OpPhi)
	if typ := insn.Type(); value.Type != typ {
		panic(fmt.Sprintf("ir: phi operand type %s, want %s", value.Type, typ))
	}
	for i := range insn.pairs {
		if insn.pairs[i].Block == bb {
			insn.pairs[i].Value = value
			return
		}
	}
	panic(fmt.Sprintf("ir: %s is not a predecessor of this phi", bb.Name()))
}

// ReplacePredecessor renames a phi's incoming block.
func (insn *Instruction) ReplacePredecessor(old, new *BasicBlock) {
	insn.checkOp(OpPhi)
	for i := range insn.pairs {
		if insn.pairs[i].Block == old {
			insn.pairs[i].Block = new
		}
	}
}

// DestType returns a conversion's destination type.
func (insn *Instruction) DestType() *Type {
	insn.checkOp(OpZext, OpSext, OpTrunc, OpBitcast)
	return insn.destType
}

// Left returns the left operand of a binary operation or comparison.
func (insn *Instruction) Left() Value {
	if !insn.Op.IsBinary() && !insn.Op.IsComparison() {
		panic(fmt.Sprintf("ir: %s instruction has no such operand", insn.Op))
	}
	return insn.a
}

// Right returns the right operand of a binary operation or comparison.
func (insn *Instruction) Right() Value {
	if !insn.Op.IsBinary() && !insn.Op.IsComparison() {
		panic(fmt.Sprintf("ir: %s instruction has no such operand", insn.Op))
	}
	return insn.b
}

// Operand returns the single value operand of a conversion, load, copy
// or ret.
func (insn *Instruction) Operand() Value {
	insn.checkOp(OpZext, OpSext, OpTrunc, OpBitcast, OpLoad, OpCopy, OpRet)
	return insn.a
}

// StoreDest returns the pointer written by a store.
func (insn *Instruction) StoreDest() Value {
	insn.checkOp(OpStore)
	return insn.a
}

// StoredValue returns the value written by a store or rstore.
func (insn *Instruction) StoredValue() Value {
	insn.checkOp(OpStore, OpRstore)
	return insn.b
}

// Register returns the register of an rload, rstore or dummy phi operand.
func (insn *Instruction) Register() *Register {
	insn.checkOp(OpRload, OpRstore, OpDummyPhi)
	return insn.reg
}

// StoredType returns the type alloca reserves storage for.
func (insn *Instruction) StoredType() *Type {
	insn.checkOp(OpAlloca)
	return insn.destType
}

// TrueValue returns the value a select produces on a true condition.
func (insn *Instruction) TrueValue() Value {
	insn.checkOp(OpSelect)
	return insn.b
}

// FalseValue returns the value a select produces on a false condition.
func (insn *Instruction) FalseValue() Value {
	insn.checkOp(OpSelect)
	return insn.c
}

// Constructors. Operand types are validated eagerly; malformed inputs
// are structural errors and panic.

func newInsn(fn *Function, op Opcode) *Instruction {
	return &Instruction{fn: fn, Op: op}
}

// NewJump creates an unconditional jump to dest.
func NewJump(fn *Function, dest *BasicBlock) *Instruction {
	insn := newInsn(fn, OpJump)
	insn.dests[0] = dest
	return insn
}

// NewBranch creates a conditional branch. The condition must be i1.
func NewBranch(fn *Function, cond Value, destTrue, destFalse *BasicBlock) *Instruction {
	if cond.Type != fn.ctx.Bool {
		panic(fmt.Sprintf("ir: branch condition type %s, want i1", cond.Type))
	}
	insn := newInsn(fn, OpBranch)
	insn.a = cond
	insn.dests[0] = destTrue
	insn.dests[1] = destFalse
	return insn
}

// NewCall creates a call. The callee must have a function type and the
// argument types must match its signature.
func NewCall(fn *Function, callee Value, args ...Value) *Instruction {
	if !callee.Type.IsFunction() {
		panic(fmt.Sprintf("ir: calling non-function type %s", callee.Type))
	}
	if len(args) != len(callee.Type.Args) {
		panic(fmt.Sprintf("ir: call with %d arguments, want %d",
			len(args), len(callee.Type.Args)))
	}
	for i, arg := range args {
		if arg.Type != callee.Type.Args[i] {
			panic(fmt.Sprintf("ir: call argument %d has type %s, want %s",
				i, arg.Type, callee.Type.Args[i]))
		}
	}
	insn := newInsn(fn, OpCall)
	insn.a = callee
	insn.args = append([]Value(nil), args...)
	return insn
}

// NewRet creates a return. A non-void function takes exactly one operand
// of its return type; a void function takes none.
func NewRet(fn *Function, values ...Value) *Instruction {
	insn := newInsn(fn, OpRet)
	if fn.ReturnType.IsVoid() {
		if len(values) != 0 {
			panic("ir: ret with a value in a void function")
		}
		return insn
	}
	if len(values) != 1 {
		panic(fmt.Sprintf("ir: ret with %d values, want 1", len(values)))
	}
	if values[0].Type != fn.ReturnType {
		panic(fmt.Sprintf("ir: ret operand type %s, want %s",
			values[0].Type, fn.ReturnType))
	}
	insn.a = values[0]
	return insn
}

// NewPhi creates a phi node from pairs. Every pair must name a distinct
// block of fn, resolved pair values must share one type, and at least
// one pair must be resolved.
func NewPhi(fn *Function, pairs []PhiPair) *Instruction {
	if len(pairs) == 0 {
		panic("ir: phi with no pairs")
	}
	var typ *Type
	seen := make(map[*BasicBlock]bool, len(pairs))
	for _, pair := range pairs {
		if seen[pair.Block] {
			panic(fmt.Sprintf("ir: duplicate phi predecessor %s", pair.Block.Name()))
		}
		seen[pair.Block] = true
		if pair.Block.fn != fn {
			panic("ir: phi predecessor from another function")
		}
		if !pair.Value.Valid() {
			continue
		}
		if typ == nil {
			typ = pair.Value.Type
		} else if pair.Value.Type != typ {
			panic(fmt.Sprintf("ir: phi operand types %s and %s differ",
				typ, pair.Value.Type))
		}
	}
	if typ == nil {
		panic("ir: phi with no resolved pair")
	}
	insn := newInsn(fn, OpPhi)
	insn.pairs = append([]PhiPair(nil), pairs...)
	return insn
}

// NewConversion creates a zext, sext, trunc or bitcast to destType.
func NewConversion(fn *Function, op Opcode, destType *Type, value Value) *Instruction {
	if !op.IsConversion() {
		panic(fmt.Sprintf("ir: %s is not a conversion", op))
	}
	if op == OpBitcast {
		if value.Type.Width != destType.Width {
			panic(fmt.Sprintf("ir: bitcast between %s and %s of different widths",
				value.Type, destType))
		}
	} else {
		if !value.Type.IsInt() || !destType.IsInt() {
			panic(fmt.Sprintf("ir: %s between non-integer types %s and %s",
				op, value.Type, destType))
		}
		switch op {
		case OpZext, OpSext:
			if value.Type.Width > destType.Width {
				panic(fmt.Sprintf("ir: %s from %s to narrower %s", op, value.Type, destType))
			}
		case OpTrunc:
			if value.Type.Width < destType.Width {
				panic(fmt.Sprintf("ir: trunc from %s to wider %s", value.Type, destType))
			}
		}
	}
	insn := newInsn(fn, op)
	insn.destType = destType
	insn.a = value
	return insn
}

// NewBinary creates an arithmetic or bitwise operation. Except for
// shifts, whose amount may have a different width, operand types must
// match.
func NewBinary(fn *Function, op Opcode, left, right Value) *Instruction {
	if !op.IsBinary() {
		panic(fmt.Sprintf("ir: %s is not a binary operation", op))
	}
	shift := op == OpLshl || op == OpLshr || op == OpAshr
	if !shift && left.Type != right.Type {
		panic(fmt.Sprintf("ir: %s operand types %s and %s differ",
			op, left.Type, right.Type))
	}
	if !left.Type.IsInt() || !right.Type.IsInt() {
		panic(fmt.Sprintf("ir: %s on non-integer operands", op))
	}
	insn := newInsn(fn, op)
	insn.a = left
	insn.b = right
	return insn
}

// NewCat creates a concatenation; the result is an integer whose width
// is the sum of the operand widths, first operand in the high bits.
func NewCat(fn *Function, operands ...Value) *Instruction {
	if len(operands) == 0 {
		panic("ir: cat with no operands")
	}
	width := 0
	for _, op := range operands {
		if !op.Type.IsInt() {
			panic(fmt.Sprintf("ir: cat of non-integer type %s", op.Type))
		}
		width += op.Type.Width
	}
	insn := newInsn(fn, OpCat)
	insn.destType = fn.ctx.IntType(width)
	insn.args = append([]Value(nil), operands...)
	return insn
}

// NewComparison creates a comparison producing i1.
func NewComparison(fn *Function, op Opcode, left, right Value) *Instruction {
	if !op.IsComparison() {
		panic(fmt.Sprintf("ir: %s is not a comparison", op))
	}
	if left.Type != right.Type {
		panic(fmt.Sprintf("ir: %s operand types %s and %s differ",
			op, left.Type, right.Type))
	}
	insn := newInsn(fn, op)
	insn.a = left
	insn.b = right
	return insn
}

// NewLoad creates a memory load through a pointer.
func NewLoad(fn *Function, source Value) *Instruction {
	if !source.Type.IsPointer() {
		panic(fmt.Sprintf("ir: load through non-pointer type %s", source.Type))
	}
	insn := newInsn(fn, OpLoad)
	insn.a = source
	return insn
}

// NewStore creates a memory store through a pointer.
func NewStore(fn *Function, dest, value Value) *Instruction {
	if !dest.Type.IsPointer() || dest.Type.Pointee != value.Type {
		panic(fmt.Sprintf("ir: storing %s through %s", value.Type, dest.Type))
	}
	insn := newInsn(fn, OpStore)
	insn.a = dest
	insn.b = value
	return insn
}

// NewRload creates a register load.
func NewRload(fn *Function, reg *Register) *Instruction {
	insn := newInsn(fn, OpRload)
	insn.reg = reg
	return insn
}

// NewRstore creates a register store.
func NewRstore(fn *Function, reg *Register, value Value) *Instruction {
	if reg.Type != value.Type {
		panic(fmt.Sprintf("ir: storing %s value to %s register %s",
			value.Type, reg.Type, reg.Name))
	}
	insn := newInsn(fn, OpRstore)
	insn.reg = reg
	insn.b = value
	return insn
}

// NewAlloca creates a stack allocation for one cell of storedType,
// producing a fresh pointer to undef storage.
func NewAlloca(fn *Function, storedType *Type) *Instruction {
	insn := newInsn(fn, OpAlloca)
	insn.destType = storedType
	return insn
}

// NewSelect creates a scalar conditional. The condition must be i1 and
// both arms must share a type.
func NewSelect(fn *Function, cond, trueValue, falseValue Value) *Instruction {
	if cond.Type != fn.ctx.Bool {
		panic(fmt.Sprintf("ir: select condition type %s, want i1", cond.Type))
	}
	if trueValue.Type != falseValue.Type {
		panic(fmt.Sprintf("ir: select arm types %s and %s differ",
			trueValue.Type, falseValue.Type))
	}
	insn := newInsn(fn, OpSelect)
	insn.a = cond
	insn.b = trueValue
	insn.c = falseValue
	return insn
}

// NewCopy creates a value copy.
func NewCopy(fn *Function, value Value) *Instruction {
	insn := newInsn(fn, OpCopy)
	insn.a = value
	return insn
}

// NewUndef creates the undefined-behavior terminator.
func NewUndef(fn *Function) *Instruction {
	return newInsn(fn, OpUndef)
}

// NewDummyPhi creates the SSA-construction placeholder standing for the
// current definition of reg, to be resolved during renaming.
func NewDummyPhi(fn *Function, reg *Register) *Instruction {
	insn := newInsn(fn, OpDummyPhi)
	insn.reg = reg
	return insn
}
