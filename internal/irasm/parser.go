// SPDX-License-Identifier: Apache-2.0

// Package irasm assembles the textual form of the IR into functions,
// driving the regular builder. It is the data front end used by the CLI
// and the language server; machine-code front ends construct functions
// through the builder directly.
package irasm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"relift/internal/ir"
)

// ParseError is one diagnostic produced while parsing or assembling.
type ParseError struct {
	Position lexer.Position
	Message  string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Position, e.Message)
}

// Program is the result of assembling one source file.
type Program struct {
	Context   *ir.Context
	Functions []*ir.Function
	Registers map[string]*ir.Register
}

var asmParser = participle.MustBuild[File](
	participle.Lexer(AsmLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(3),
)

// ParseSource parses the textual form without building IR.
func ParseSource(path, source string) (*File, error) {
	return asmParser.ParseString(path, source)
}

// Assemble parses and builds source into IR over a fresh 32-bit
// context. All diagnostics are reported together; the returned program
// is nil if there are any.
func Assemble(path, source string) (*Program, []ParseError) {
	file, err := ParseSource(path, source)
	if err != nil {
		return nil, []ParseError{convertParticipleError(err)}
	}

	a := &assembler{
		program: &Program{
			Context:   ir.NewContext(32),
			Registers: make(map[string]*ir.Register),
		},
	}
	for i, decl := range file.Functions {
		a.assembleFunction(uint64(i), decl)
	}
	if len(a.errors) > 0 {
		return nil, a.errors
	}
	return a.program, nil
}

func convertParticipleError(err error) ParseError {
	if perr, ok := err.(participle.Error); ok {
		return ParseError{Position: perr.Position(), Message: perr.Message()}
	}
	return ParseError{Message: err.Error()}
}

type phiFixup struct {
	pos   lexer.Position
	insn  *ir.Instruction
	block *ir.BasicBlock
	name  string
}

type assembler struct {
	program *Program
	errors  []ParseError

	fn     *ir.Function
	bld    *ir.Builder
	blocks map[string]*ir.BasicBlock
	values map[string]ir.Value
	fixups []phiFixup
}

func (a *assembler) errorf(pos lexer.Position, format string, args ...any) {
	a.errors = append(a.errors, ParseError{Position: pos, Message: fmt.Sprintf(format, args...)})
}

// capture runs build, converting a structural panic from the IR layer
// into a positioned diagnostic.
func (a *assembler) capture(pos lexer.Position, build func()) {
	defer func() {
		if r := recover(); r != nil {
			a.errorf(pos, "%v", r)
		}
	}()
	build()
}

var subNamePattern = regexp.MustCompile(`^sub_([0-9a-fA-F]+)$`)

func (a *assembler) assembleFunction(index uint64, decl *FuncDecl) {
	address := index
	if m := subNamePattern.FindStringSubmatch(decl.Name); m != nil {
		if parsed, err := strconv.ParseUint(m[1], 16, 64); err == nil {
			address = parsed
		}
	}

	a.fn = a.program.Context.CreateFunction(address)
	a.bld = ir.NewBuilder()
	a.blocks = make(map[string]*ir.BasicBlock)
	a.values = make(map[string]ir.Value)
	a.fixups = nil
	a.program.Functions = append(a.program.Functions, a.fn)

	for _, reg := range decl.Regs {
		a.declareRegister(reg)
	}

	if len(decl.Blocks) == 0 {
		a.errorf(decl.Pos, "function @%s has no basic blocks", decl.Name)
		return
	}

	// First pass: materialize the labelled blocks so control flow can
	// reference them in any order.
	for i, block := range decl.Blocks {
		if _, dup := a.blocks[block.Label]; dup {
			a.errorf(block.Pos, "duplicate block label %q", block.Label)
			continue
		}
		if i == 0 {
			a.blocks[block.Label] = a.fn.Entry()
		} else {
			a.blocks[block.Label] = a.fn.CreateBasicBlock()
		}
	}

	// Second pass: build the instructions.
	for _, block := range decl.Blocks {
		bb := a.blocks[block.Label]
		if bb == nil {
			continue
		}
		a.bld.PositionAtEnd(bb)
		for _, instr := range block.Instrs {
			a.capture(instr.Pos, func() { a.buildInstr(instr) })
		}
	}

	// Phi operands may reference values defined later; resolve them now
	// that the whole function is built.
	for _, fixup := range a.fixups {
		value, ok := a.values[fixup.name]
		if !ok {
			a.errorf(fixup.pos, "undefined value %%%s", fixup.name)
			continue
		}
		a.capture(fixup.pos, func() { fixup.insn.SetPhiValue(fixup.block, value) })
	}
}

func (a *assembler) declareRegister(decl *RegDecl) {
	name := strings.TrimPrefix(decl.Name, "$")
	if _, dup := a.program.Registers[name]; dup {
		return
	}
	typ, err := a.resolveType(decl.Type)
	if err != nil {
		a.errorf(decl.Pos, "%v", err)
		return
	}
	if !typ.IsInt() {
		a.errorf(decl.Pos, "register $%s must have an integer type", name)
		return
	}
	a.program.Registers[name] = ir.NewRegister(a.program.Context, name, typ.Width)
}

var intTypePattern = regexp.MustCompile(`^i([0-9]+)$`)

func (a *assembler) resolveType(ref *TypeRef) (*ir.Type, error) {
	var typ *ir.Type
	switch m := intTypePattern.FindStringSubmatch(ref.Name); {
	case ref.Name == "void":
		typ = a.program.Context.Void
	case m != nil:
		width, err := strconv.Atoi(m[1])
		if err != nil || width < 1 {
			return nil, fmt.Errorf("invalid integer type %q", ref.Name)
		}
		typ = a.program.Context.IntType(width)
	default:
		return nil, fmt.Errorf("unknown type %q", ref.Name)
	}
	for range ref.Stars {
		typ = a.program.Context.PointerType(typ)
	}
	return typ, nil
}

func (a *assembler) register(name string) *ir.Register {
	reg := a.program.Registers[strings.TrimPrefix(name, "$")]
	if reg == nil {
		panic(fmt.Sprintf("undeclared register %s", name))
	}
	return reg
}

func (a *assembler) block(name string) *ir.BasicBlock {
	bb := a.blocks[name]
	if bb == nil {
		panic(fmt.Sprintf("undefined block label %q", name))
	}
	return bb
}

func (a *assembler) operand(op *Operand) ir.Value {
	if op.Var != "" {
		name := strings.TrimPrefix(op.Var, "%")
		value, ok := a.values[name]
		if !ok {
			panic(fmt.Sprintf("undefined value %%%s", name))
		}
		return value
	}
	typ, err := a.resolveType(op.Lit.Type)
	if err != nil {
		panic(err.Error())
	}
	literal, err := strconv.ParseInt(op.Lit.Value, 0, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid integer literal %q", op.Lit.Value))
	}
	return typ.Const(literal)
}

var genericOpcodes = map[string]ir.Opcode{
	"add": ir.OpAdd, "sub": ir.OpSub, "mul": ir.OpMul,
	"sdiv": ir.OpSdiv, "udiv": ir.OpUdiv,
	"lshl": ir.OpLshl, "lshr": ir.OpLshr, "ashr": ir.OpAshr,
	"and": ir.OpAnd, "or": ir.OpOr, "xor": ir.OpXor,
	"cat": ir.OpCat,
	"eq":  ir.OpEq, "ne": ir.OpNe,
	"sle": ir.OpSle, "slt": ir.OpSlt, "sge": ir.OpSge, "sgt": ir.OpSgt,
	"ule": ir.OpUle, "ult": ir.OpUlt, "uge": ir.OpUge, "ugt": ir.OpUgt,
	"copy": ir.OpCopy,
}

var convOpcodes = map[string]ir.Opcode{
	"zext": ir.OpZext, "sext": ir.OpSext,
	"trunc": ir.OpTrunc, "bitcast": ir.OpBitcast,
}

func (a *assembler) buildInstr(instr *Instr) {
	switch {
	case instr.Jump != nil:
		a.bld.BuildJump(a.block(instr.Jump.Dest))

	case instr.Branch != nil:
		a.bld.BuildBranch(
			a.operand(instr.Branch.Cond),
			a.block(instr.Branch.DestTrue),
			a.block(instr.Branch.DestFalse),
		)

	case instr.Ret != nil:
		if instr.Ret.Value != nil {
			value := a.operand(instr.Ret.Value)
			a.fn.ReturnType = value.Type
			a.bld.BuildRet(value)
		} else {
			a.bld.BuildRet()
		}

	case instr.Undef != nil:
		a.bld.BuildUndef()

	case instr.Store != nil:
		a.bld.BuildStore(a.operand(instr.Store.Dest), a.operand(instr.Store.Value))

	case instr.Rstore != nil:
		a.bld.BuildRstore(
			a.register(instr.Rstore.Reg),
			a.operand(instr.Rstore.Value),
		)

	case instr.Assign != nil:
		a.buildAssign(instr.Pos, instr.Assign)
	}
}

func (a *assembler) buildAssign(pos lexer.Position, assign *AssignInstr) {
	name := strings.TrimPrefix(assign.Name, "%")
	if _, dup := a.values[name]; dup {
		panic(fmt.Sprintf("value %%%s defined twice", name))
	}

	var value ir.Value
	switch {
	case assign.Phi != nil:
		value = a.buildPhi(assign.Phi)

	case assign.Conv != nil:
		destType, err := a.resolveType(assign.Conv.Dest)
		if err != nil {
			panic(err.Error())
		}
		insn := ir.NewConversion(a.fn, convOpcodes[assign.Conv.Op], destType,
			a.operand(assign.Conv.Value))
		value = a.insert(insn)

	case assign.Alloca != nil:
		storedType, err := a.resolveType(assign.Alloca.Type)
		if err != nil {
			panic(err.Error())
		}
		value = a.bld.BuildAlloca(storedType)

	case assign.Load != nil:
		value = a.bld.BuildLoad(a.operand(assign.Load.Ptr))

	case assign.Rload != nil:
		value = a.bld.BuildRload(a.register(assign.Rload.Reg))

	case assign.Select != nil:
		value = a.bld.BuildSelect(
			a.operand(assign.Select.Cond),
			a.operand(assign.Select.TrueValue),
			a.operand(assign.Select.FalseValue),
		)

	case assign.Generic != nil:
		value = a.buildGeneric(assign.Generic)
	}

	a.values[name] = value
}

func (a *assembler) buildPhi(expr *PhiExpr) ir.Value {
	pairs := make([]ir.PhiPair, len(expr.Arms))
	var pending []*PhiArm
	for i, arm := range expr.Arms {
		pairs[i].Block = a.block(arm.Label)
		// Forward references are legal in phi arms only; everything else
		// resolves immediately.
		if arm.Value.Var != "" {
			if _, known := a.values[strings.TrimPrefix(arm.Value.Var, "%")]; !known {
				pending = append(pending, arm)
				continue
			}
		}
		pairs[i].Value = a.operand(arm.Value)
	}

	insn := ir.NewPhi(a.fn, pairs)
	value := a.insert(insn)
	for _, arm := range pending {
		a.fixups = append(a.fixups, phiFixup{
			pos:   arm.Pos,
			insn:  insn,
			block: a.block(arm.Label),
			name:  strings.TrimPrefix(arm.Value.Var, "%"),
		})
	}
	return value
}

func (a *assembler) buildGeneric(expr *GenericExpr) ir.Value {
	op, known := genericOpcodes[expr.Op]
	if !known {
		panic(fmt.Sprintf("unknown operation %q", expr.Op))
	}

	operands := make([]ir.Value, len(expr.Operands))
	for i, operand := range expr.Operands {
		operands[i] = a.operand(operand)
	}

	var insn *ir.Instruction
	switch {
	case op == ir.OpCat:
		insn = ir.NewCat(a.fn, operands...)
	case op == ir.OpCopy:
		if len(operands) != 1 {
			panic("copy takes exactly one operand")
		}
		insn = ir.NewCopy(a.fn, operands[0])
	case op.IsComparison():
		if len(operands) != 2 {
			panic(fmt.Sprintf("%s takes exactly two operands", expr.Op))
		}
		insn = ir.NewComparison(a.fn, op, operands[0], operands[1])
	default:
		if len(operands) != 2 {
			panic(fmt.Sprintf("%s takes exactly two operands", expr.Op))
		}
		insn = ir.NewBinary(a.fn, op, operands[0], operands[1])
	}
	return a.insert(insn)
}

// insert places a hand-constructed instruction at the builder cursor.
func (a *assembler) insert(insn *ir.Instruction) ir.Value {
	bb := a.bld.Block()
	bb.Insert(bb.Len(), insn)
	a.bld.PositionAtEnd(bb)
	return insn.AsValue()
}
