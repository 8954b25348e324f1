// SPDX-License-Identifier: Apache-2.0
package lsp

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"relift/internal/irasm"
)

// ConvertParseErrors transforms assembler diagnostics into LSP
// diagnostics for IDE display. The result is never nil, so publishing
// it clears previously reported problems.
func ConvertParseErrors(parseErrors []irasm.ParseError) []protocol.Diagnostic {
	diagnostics := make([]protocol.Diagnostic, 0, len(parseErrors))

	for _, parseErr := range parseErrors {
		line := parseErr.Position.Line
		column := parseErr.Position.Column
		if line < 1 {
			line = 1
		}
		if column < 1 {
			column = 1
		}

		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{
					Line:      uint32(line - 1),
					Character: uint32(column - 1),
				},
				End: protocol.Position{
					Line:      uint32(line - 1),
					Character: uint32(column + 4),
				},
			},
			Severity: ptrSeverity(protocol.DiagnosticSeverityError),
			Source:   ptrString("relift-asm"),
			Message:  parseErr.Message,
		})
	}

	return diagnostics
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
