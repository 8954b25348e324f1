// SPDX-License-Identifier: Apache-2.0
package main

import (
	"log"
	"os"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"relift/internal/lsp"
)

const lsName = "relift"

var (
	version = "0.0.1"
	handler protocol.Handler
)

func main() {
	commonlog.Configure(1, nil)

	asmHandler := lsp.NewHandler()

	handler = protocol.Handler{
		Initialize:            asmHandler.Initialize,
		Initialized:           asmHandler.Initialized,
		Shutdown:              asmHandler.Shutdown,
		SetTrace:              asmHandler.SetTrace,
		TextDocumentDidOpen:   asmHandler.TextDocumentDidOpen,
		TextDocumentDidChange: asmHandler.TextDocumentDidChange,
		TextDocumentDidClose:  asmHandler.TextDocumentDidClose,
	}

	s := server.NewServer(&handler, lsName, false)

	log.Printf("Starting %s LSP server %s...", lsName, version)

	if err := s.RunStdio(); err != nil {
		log.Println("Error starting relift LSP server:", err)
		os.Exit(1)
	}
}
