// SPDX-License-Identifier: Apache-2.0

// Package optimizations rewrites IR functions in place: register traffic
// is lifted to SSA form, control flow is collapsed into expressions, and
// redundancy is removed. Each pass holds the function exclusively and
// runs to completion; derived analyses are recomputed per pass.
package optimizations

import (
	"github.com/tliron/commonlog"

	"relift/internal/ir"
)

var log = commonlog.GetLogger("relift.optimizations")

// Optimization is a single function-level transformation. Its
// precondition violations are structural errors; its postcondition is a
// structurally valid function of the same or promoted form.
type Optimization interface {
	Name() string
	ProcessFunction(fn *ir.Function)
}

// Pipeline runs a fixed sequence of passes.
type Pipeline struct {
	passes []Optimization
}

// NewPipeline creates the canonical decompilation pipeline. The second
// expression-inlining run absorbs values exposed by branch stripping and
// block merging.
func NewPipeline() *Pipeline {
	p := &Pipeline{}
	p.AddPass(&RegistersToSSA{})
	p.AddPass(&CopyElimination{})
	p.AddPass(&DeadCodeElimination{})
	p.AddPass(&PhiToSelect{})
	p.AddPass(&ToExpr{})
	p.AddPass(&StripUnusedBranches{})
	p.AddPass(&MergeBasicBlockSequences{})
	p.AddPass(&ToExpr{})
	return p
}

// AddPass appends a pass to the pipeline.
func (p *Pipeline) AddPass(pass Optimization) {
	p.passes = append(p.passes, pass)
}

// Passes returns the configured pass sequence.
func (p *Pipeline) Passes() []Optimization {
	return p.passes
}

// Run applies every pass to fn in order.
func (p *Pipeline) Run(fn *ir.Function) {
	for _, pass := range p.passes {
		log.Debugf("%s: %s", fn.Name(), pass.Name())
		pass.ProcessFunction(fn)
	}
	log.Infof("%s: ran %d passes", fn.Name(), len(p.passes))
}
