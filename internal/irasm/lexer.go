// SPDX-License-Identifier: Apache-2.0
package irasm

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// AsmLexer tokenizes the textual IR form.
var AsmLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{"Comment", `;[^\n]*`, nil},

		// Value and register references
		{"VarName", `%[a-zA-Z0-9_.]+`, nil},
		{"RegName", `\$[a-zA-Z0-9_.]+`, nil},

		// Keywords, opcodes, labels and type names (order matters)
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_.]*`, nil},

		// Integer literals
		{"Integer", `-?(0x[0-9a-fA-F]+|[0-9]+)`, nil},

		// Punctuation
		{"Punctuation", `[{}\[\]():,@=*]`, nil},

		// Whitespace
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
