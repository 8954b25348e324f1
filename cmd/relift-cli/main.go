// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"relift/internal/irasm"
	"relift/internal/optimizations"
	"relift/internal/render"
)

func main() {
	optimize := flag.Bool("opt", false, "run the optimization pipeline before printing")
	dot := flag.Bool("dot", false, "emit a Graphviz graph instead of a listing")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage: relift [-opt] [-dot] <file.rir>")
		os.Exit(1)
	}
	if *verbose {
		commonlog.Configure(1, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	path := flag.Arg(0)
	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("Failed to read file: %s", err)
		os.Exit(1)
	}

	program, errs := irasm.Assemble(path, string(source))
	if len(errs) > 0 {
		reportErrors(string(source), errs)
		os.Exit(1)
	}

	if *optimize {
		pipeline := optimizations.NewPipeline()
		for _, fn := range program.Functions {
			pipeline.Run(fn)
		}
	}

	for i, fn := range program.Functions {
		if i > 0 {
			fmt.Println()
		}
		if *dot {
			fmt.Print(render.FunctionToDot(fn))
		} else {
			fmt.Print(render.Listing(fn.Format()))
		}
	}
}

// reportErrors prints caret-style diagnostics for assembly errors.
func reportErrors(src string, errs []irasm.ParseError) {
	lines := strings.Split(src, "\n")

	for _, e := range errs {
		pos := e.Position
		if pos.Line <= 0 || pos.Line > len(lines) {
			color.Red("error: %s", e.Message)
			continue
		}

		line := lines[pos.Line-1]
		column := pos.Column
		if column < 1 {
			column = 1
		}
		caret := strings.Repeat(" ", column-1) + "^"

		color.Red("error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
		fmt.Println(line)
		color.HiRed(caret)
		fmt.Printf("→ %s\n", e.Message)
	}
}
