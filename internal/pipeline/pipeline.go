// Package pipeline builds and runs ordered compositions of annotation stages.
//
// A Registry maps stage names to factories, a Cache holds constructed stages
// keyed by configuration signature, and a Builder validates that every stage's
// requirements are provided by the stages before it. The resulting Pipeline
// runs its stages in order over a document.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
)

// Pipeline is a validated, ordered sequence of stages.
// It is safe for concurrent Run calls with distinct documents.
type Pipeline struct {
	stages   []Stage
	provided capability.Set
	newlines document.NewlineMode

	docs   atomic.Int64
	tokens atomic.Int64
	nanos  atomic.Int64
}

func newPipeline(stages []Stage, provided capability.Set, mode document.NewlineMode) *Pipeline {
	return &Pipeline{
		stages:   stages,
		provided: provided,
		newlines: mode,
	}
}

// Stages returns the stages in run order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Names returns the stage names in run order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Provides returns everything the pipeline guarantees on a document.
func (p *Pipeline) Provides() capability.Set {
	return p.provided.Clone()
}

// NewlineMode reports how line breaks were treated when the pipeline was
// built. It is NewlineNever when no stage segments sentences.
func (p *Pipeline) NewlineMode() document.NewlineMode {
	return p.newlines
}

// Run applies every stage to doc in order. The first failure stops the run
// and is returned attributed to its stage; stages are never skipped,
// reordered or retried.
func (p *Pipeline) Run(ctx context.Context, doc *document.Document) error {
	start := time.Now()
	for _, s := range p.stages {
		if err := s.Apply(ctx, doc); err != nil {
			return &StageError{Stage: s.Name(), Kind: ErrStageFailed, Err: err}
		}
	}
	p.docs.Add(1)
	p.tokens.Add(int64(len(doc.Tokens())))
	p.nanos.Add(int64(time.Since(start)))
	return nil
}

// Process creates a document from text and runs it.
func (p *Pipeline) Process(ctx context.Context, id, text string) (*document.Document, error) {
	doc := document.New(id, "", text)
	if err := p.Run(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Throughput summarizes successful runs.
type Throughput struct {
	Documents    int64         `json:"documents" yaml:"documents"`
	Tokens       int64         `json:"tokens" yaml:"tokens"`
	Elapsed      time.Duration `json:"elapsed" yaml:"elapsed"`
	TokensPerSec float64       `json:"tokens_per_sec" yaml:"tokens_per_sec"`
}

// Stats returns the running totals across all runs of this pipeline.
func (p *Pipeline) Stats() Throughput {
	t := Throughput{
		Documents: p.docs.Load(),
		Tokens:    p.tokens.Load(),
		Elapsed:   time.Duration(p.nanos.Load()),
	}
	if secs := t.Elapsed.Seconds(); secs > 0 {
		t.TokensPerSec = float64(t.Tokens) / secs
	}
	return t
}
