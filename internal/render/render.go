// SPDX-License-Identifier: Apache-2.0

// Package render turns the core's token streams into terminal listings
// and Graphviz graphs. The core only guarantees that everything can be
// formatted; the visual appearance lives entirely here.
package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"relift/internal/ir"
)

var classColors = map[ir.TokenClass]*color.Color{
	ir.TokKeyword: color.New(color.FgMagenta),
	ir.TokType:    color.New(color.FgCyan),
	ir.TokOpcode:  color.New(color.FgYellow),
	ir.TokOperator: color.New(color.FgYellow),
	ir.TokName:    color.New(color.FgGreen),
	ir.TokLabel:   color.New(color.FgBlue, color.Bold),
	ir.TokNumber:  color.New(color.FgRed),
	ir.TokComment: color.New(color.Faint),
}

// Listing renders a token stream with ANSI colors.
func Listing(tokens []ir.Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		if c, ok := classColors[tok.Class]; ok {
			sb.WriteString(c.Sprint(tok.Text))
		} else {
			sb.WriteString(tok.Text)
		}
	}
	return sb.String()
}

// PlainListing renders a token stream without styling.
func PlainListing(tokens []ir.Token) string {
	return ir.FormatString(tokens)
}

// FunctionToDot renders the function's control-flow graph in Graphviz
// dot syntax, one box per basic block holding its listing.
func FunctionToDot(fn *ir.Function) string {
	var sb strings.Builder
	sb.WriteString("digraph {\n")
	sb.WriteString("graph [fontname=monospace];\n")
	sb.WriteString("node [shape=box,fontname=monospace];\n")

	name := func(bb *ir.BasicBlock) string {
		return strings.TrimPrefix(bb.Name(), "%")
	}

	for _, bb := range fn.Blocks() {
		label := dotEscape(ir.FormatString(bb.Format()))
		fmt.Fprintf(&sb, "%s [label=\"%s\"];\n", name(bb), label)
		for _, succ := range bb.SuccessorsIncomplete() {
			fmt.Fprintf(&sb, "%s -> %s;\n", name(bb), name(succ))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func dotEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	// Left-aligned line breaks keep the listing readable inside a box.
	s = strings.ReplaceAll(s, "\n", `\l`)
	return s
}
