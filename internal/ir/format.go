// SPDX-License-Identifier: Apache-2.0
package ir

import (
	"fmt"
	"sort"
	"strings"
)

// TokenClass classifies a piece of formatted output so that renderers
// can style listings without re-parsing them.
type TokenClass int

const (
	TokText TokenClass = iota
	TokKeyword
	TokType
	TokOperator
	TokOpcode
	TokPunct
	TokName
	TokLabel
	TokNumber
	TokComment
)

// Token is one (class, text) piece of a formatted listing.
type Token struct {
	Class TokenClass
	Text  string
}

func text(s string) Token     { return Token{TokText, s} }
func keyword(s string) Token  { return Token{TokKeyword, s} }
func punct(s string) Token    { return Token{TokPunct, s} }
func opcode(op Opcode) Token  { return Token{TokOpcode, op.String()} }
func operator(s string) Token { return Token{TokOperator, s} }

// FormatString flattens a token stream to plain text.
func FormatString(tokens []Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(tok.Text)
	}
	return sb.String()
}

// Format renders every function of the context.
func (c *Context) Format() []Token {
	fns := c.Functions()
	if len(fns) == 0 {
		return []Token{{TokComment, "; Empty context"}}
	}
	var tokens []Token
	for i, fn := range fns {
		if i > 0 {
			tokens = append(tokens, text("\n"))
		}
		tokens = append(tokens, fn.Format()...)
	}
	return tokens
}

// Format renders the function header and every block.
func (fn *Function) Format() []Token {
	tokens := []Token{
		{TokName, fn.Name()},
		punct("()"),
		text(" "),
		punct("{"),
		text("\n"),
	}
	for i, bb := range fn.blocks {
		if i > 0 {
			tokens = append(tokens, text("\n"))
		}
		tokens = append(tokens, bb.Format()...)
	}
	return append(tokens, punct("}"), text("\n"))
}

// FormatLabel renders the block's label reference.
func (bb *BasicBlock) FormatLabel() []Token {
	return []Token{{TokLabel, bb.Name()}}
}

// Format renders the block: label, predecessor comment, instructions,
// with an origin comment line wherever the rolling origin changes.
func (bb *BasicBlock) Format() []Token {
	indent := text("    ")

	tokens := append(bb.FormatLabel(), punct(":"), text("\n"))
	if len(bb.preds) > 0 {
		names := make([]string, 0, len(bb.preds))
		for pred := range bb.preds {
			names = append(names, pred.Name())
		}
		sort.Strings(names)
		tokens = append(tokens,
			indent,
			Token{TokComment, "; Predecessors: " + strings.Join(names, ", ")},
			text("\n"),
		)
	}

	origin := ""
	for _, insn := range bb.insns {
		if insn.Origin != origin {
			origin = insn.Origin
			tokens = append(tokens,
				indent,
				Token{TokComment, "; " + origin},
				text("\n"),
			)
		}
		tokens = append(tokens, indent)
		tokens = append(tokens, insn.Format()...)
		tokens = append(tokens, text("\n"))
	}
	return tokens
}

// Format renders the type.
func (t *Type) Format() []Token {
	switch t.Kind {
	case KindVoid:
		return []Token{{TokType, "void"}}
	case KindInt:
		return []Token{{TokType, fmt.Sprintf("i%d", t.Width)}}
	case KindPointer:
		return append(t.Pointee.Format(), punct("*"))
	default:
		tokens := append(t.Ret.Format(), punct("("))
		for i, arg := range t.Args {
			if i > 0 {
				tokens = append(tokens, punct(","), text(" "))
			}
			tokens = append(tokens, arg.Format()...)
		}
		return append(tokens, punct(")"))
	}
}

// Format renders the value: a typed literal for constants, the defining
// instruction's name (or inlined body) otherwise.
func (v Value) Format() []Token {
	switch {
	case !v.Valid():
		return []Token{keyword("<unset>")}
	case v.IsConst():
		return append(v.Type.Format(),
			text(" "),
			Token{TokNumber, fmt.Sprintf("%#x", v.Bits)},
		)
	case v.Def.Inline:
		tokens := []Token{punct("(")}
		tokens = append(tokens, v.Def.formatBody()...)
		return append(tokens, punct(")"))
	default:
		return []Token{{TokName, v.Def.Name()}}
	}
}

// Format renders the register reference.
func (r *Register) Format() []Token {
	return []Token{{TokName, "$" + r.Name}}
}

var binaryImages = map[Opcode]string{
	OpAdd:  "+",
	OpSub:  "-",
	OpMul:  "*",
	OpSdiv: "/s",
	OpUdiv: "/u",
	OpLshl: "<<",
	OpLshr: ">>u",
	OpAshr: ">>s",
	OpAnd:  "&",
	OpOr:   "|",
	OpXor:  "^",
}

var comparisonImages = map[Opcode]string{
	OpEq:  "==",
	OpNe:  "!=",
	OpSle: "<=s",
	OpSlt: "<s",
	OpSge: ">=s",
	OpSgt: ">s",
	OpUle: "<=u",
	OpUlt: "<u",
	OpUge: ">=u",
	OpUgt: ">u",
}

// Format renders the instruction, prefixing "%n = " for value-producing
// kinds.
func (insn *Instruction) Format() []Token {
	body := insn.formatBody()
	if insn.Type().IsVoid() {
		return body
	}
	return append([]Token{
		{TokName, insn.Name()},
		text(" "),
		operator("="),
		text(" "),
	}, body...)
}

func (insn *Instruction) formatBody() []Token {
	switch insn.Op {
	case OpJump:
		return append([]Token{opcode(OpJump), text(" ")},
			insn.dests[0].FormatLabel()...)

	case OpBranch:
		tokens := []Token{opcode(OpBranch), text(" "), keyword("if"), text(" ")}
		tokens = append(tokens, insn.a.Format()...)
		tokens = append(tokens, text(" "), keyword("then"), text(" "))
		tokens = append(tokens, insn.dests[0].FormatLabel()...)
		tokens = append(tokens, text(" "), keyword("else"), text(" "))
		return append(tokens, insn.dests[1].FormatLabel()...)

	case OpCall:
		tokens := []Token{opcode(OpCall), text(" ")}
		tokens = append(tokens, insn.Type().Format()...)
		tokens = append(tokens, text(" "))
		tokens = append(tokens, insn.a.Format()...)
		tokens = append(tokens, punct("("))
		for i, arg := range insn.args {
			if i > 0 {
				tokens = append(tokens, punct(","), text(" "))
			}
			tokens = append(tokens, arg.Format()...)
		}
		return append(tokens, punct(")"))

	case OpRet:
		tokens := []Token{opcode(OpRet)}
		if insn.a.Valid() {
			tokens = append(tokens, text(" "))
			tokens = append(tokens, insn.a.Format()...)
		}
		return tokens

	case OpPhi:
		tokens := []Token{opcode(OpPhi), text(" ")}
		for i, pair := range insn.pairs {
			if i > 0 {
				tokens = append(tokens, punct(","), text(" "))
			}
			tokens = append(tokens, pair.Block.FormatLabel()...)
			tokens = append(tokens, text(" "), punct("=>"), text(" "))
			tokens = append(tokens, pair.Value.Format()...)
		}
		return tokens

	case OpZext, OpSext, OpTrunc, OpBitcast:
		tokens := []Token{opcode(insn.Op), text(" ")}
		tokens = append(tokens, insn.a.Format()...)
		tokens = append(tokens, text(" "), keyword("to"), text(" "))
		return append(tokens, insn.destType.Format()...)

	case OpCat:
		tokens := []Token{opcode(OpCat), text(" ")}
		for i, op := range insn.args {
			if i > 0 {
				tokens = append(tokens, punct(","), text(" "))
			}
			tokens = append(tokens, op.Format()...)
		}
		return tokens

	case OpLoad:
		tokens := []Token{opcode(OpLoad), text(" ")}
		tokens = append(tokens, insn.a.Type.Format()...)
		tokens = append(tokens, text(" "))
		return append(tokens, insn.a.Format()...)

	case OpRload:
		tokens := []Token{opcode(OpRload), text(" ")}
		tokens = append(tokens, insn.reg.Type.Format()...)
		tokens = append(tokens, text(" "))
		return append(tokens, insn.reg.Format()...)

	case OpStore:
		tokens := []Token{opcode(OpStore), text(" ")}
		tokens = append(tokens, insn.b.Format()...)
		tokens = append(tokens, text(" "), keyword("to"), text(" "))
		tokens = append(tokens, insn.a.Type.Format()...)
		tokens = append(tokens, text(" "))
		return append(tokens, insn.a.Format()...)

	case OpRstore:
		tokens := []Token{opcode(OpRstore), text(" ")}
		tokens = append(tokens, insn.b.Format()...)
		tokens = append(tokens, text(" "), keyword("to"), text(" "))
		tokens = append(tokens, insn.reg.Type.Format()...)
		tokens = append(tokens, text(" "))
		return append(tokens, insn.reg.Format()...)

	case OpAlloca:
		tokens := []Token{opcode(OpAlloca), text(" ")}
		return append(tokens, insn.destType.Format()...)

	case OpSelect:
		tokens := []Token{opcode(OpSelect), text(" "), keyword("if"), text(" ")}
		tokens = append(tokens, insn.a.Format()...)
		tokens = append(tokens, text(" "), keyword("then"), text(" "))
		tokens = append(tokens, insn.b.Format()...)
		tokens = append(tokens, text(" "), keyword("else"), text(" "))
		return append(tokens, insn.c.Format()...)

	case OpCopy:
		return append([]Token{opcode(OpCopy), text(" ")}, insn.a.Format()...)

	case OpUndef:
		return []Token{opcode(OpUndef)}

	case OpDummyPhi:
		return append([]Token{keyword("dummy"), text(" ")}, insn.reg.Format()...)

	default:
		if image, ok := binaryImages[insn.Op]; ok {
			tokens := append([]Token{}, insn.a.Format()...)
			tokens = append(tokens, text(" "), operator(image), text(" "))
			return append(tokens, insn.b.Format()...)
		}
		if image, ok := comparisonImages[insn.Op]; ok {
			tokens := append([]Token{}, insn.a.Format()...)
			tokens = append(tokens, text(" "), operator(image), text(" "))
			return append(tokens, insn.b.Format()...)
		}
		panic(fmt.Sprintf("ir: unformattable opcode %d", insn.Op))
	}
}
