// SPDX-License-Identifier: Apache-2.0
package irasm

import "github.com/alecthomas/participle/v2/lexer"

// File is the root of the textual IR grammar: a sequence of function
// definitions.
type File struct {
	Functions []*FuncDecl `@@*`
}

// FuncDecl is one function: register declarations first, then labelled
// basic blocks.
//
//	func @sub_100 {
//	  reg $ra: i32
//	bb0:
//	  ...
//	}
type FuncDecl struct {
	Pos    lexer.Position
	Name   string     `"func" "@" @Ident "{"`
	Regs   []*RegDecl `@@*`
	Blocks []*Block   `@@* "}"`
}

// RegDecl declares a register and its type: reg $ra: i32
type RegDecl struct {
	Pos  lexer.Position
	Name string   `"reg" @RegName ":"`
	Type *TypeRef `@@`
}

// Block is a labelled instruction sequence.
type Block struct {
	Pos    lexer.Position
	Label  string   `@Ident ":"`
	Instrs []*Instr `@@*`
}

// Instr is one instruction in either of its two shapes: a void
// operation, or a named value assignment.
type Instr struct {
	Pos    lexer.Position
	Jump   *JumpInstr   `  @@`
	Branch *BranchInstr `| @@`
	Ret    *RetInstr    `| @@`
	Undef  *UndefInstr  `| @@`
	Store  *StoreInstr  `| @@`
	Rstore *RstoreInstr `| @@`
	Assign *AssignInstr `| @@`
}

// JumpInstr: jump bb1
type JumpInstr struct {
	Dest string `"jump" @Ident`
}

// BranchInstr: branch %cond, bb1, bb2
type BranchInstr struct {
	Cond      *Operand `"branch" @@`
	DestTrue  string   `"," @Ident`
	DestFalse string   `"," @Ident`
}

// RetInstr: ret [value]
type RetInstr struct {
	Value *Operand `"ret" @@?`
}

// UndefInstr: undef
type UndefInstr struct {
	Tok string `@"undef"`
}

// StoreInstr: store %ptr, %value
type StoreInstr struct {
	Dest  *Operand `"store" @@`
	Value *Operand `"," @@`
}

// RstoreInstr: rstore $ra, %value
type RstoreInstr struct {
	Reg   string   `"rstore" @RegName`
	Value *Operand `"," @@`
}

// AssignInstr: %name = <expression>
type AssignInstr struct {
	Pos     lexer.Position
	Name    string       `@VarName "="`
	Phi     *PhiExpr     `( @@`
	Conv    *ConvExpr    `| @@`
	Alloca  *AllocaExpr  `| @@`
	Load    *LoadExpr    `| @@`
	Rload   *RloadExpr   `| @@`
	Select  *SelectExpr  `| @@`
	Generic *GenericExpr `| @@ )`
}

// PhiExpr: phi [bb1, %x], [bb2, %y]
type PhiExpr struct {
	Arms []*PhiArm `"phi" @@ ("," @@)*`
}

// PhiArm is one [predecessor, value] pair.
type PhiArm struct {
	Pos   lexer.Position
	Label string   `"[" @Ident ","`
	Value *Operand `@@ "]"`
}

// ConvExpr: zext %x to i64
type ConvExpr struct {
	Op    string   `@("zext" | "sext" | "trunc" | "bitcast")`
	Value *Operand `@@`
	Dest  *TypeRef `"to" @@`
}

// AllocaExpr: alloca i32
type AllocaExpr struct {
	Type *TypeRef `"alloca" @@`
}

// LoadExpr: load %ptr
type LoadExpr struct {
	Ptr *Operand `"load" @@`
}

// RloadExpr: rload $ra
type RloadExpr struct {
	Reg string `"rload" @RegName`
}

// SelectExpr: select %cond, %t, %f
type SelectExpr struct {
	Cond       *Operand `"select" @@`
	TrueValue  *Operand `"," @@`
	FalseValue *Operand `"," @@`
}

// GenericExpr covers the uniform operand-list operations: binary
// arithmetic, comparisons, cat and copy.
type GenericExpr struct {
	Pos      lexer.Position
	Op       string     `@Ident`
	Operands []*Operand `@@ ("," @@)*`
}

// Operand is a reference to a named value or a typed integer literal.
type Operand struct {
	Pos lexer.Position
	Var string   `  @VarName`
	Lit *Literal `| @@`
}

// Literal is a typed constant such as i32 42.
type Literal struct {
	Type  *TypeRef `@@`
	Value string   `@Integer`
}

// TypeRef names a type: void, iN, or a pointer with trailing stars.
type TypeRef struct {
	Pos   lexer.Position
	Name  string   `@Ident`
	Stars []string `@"*"*`
}
