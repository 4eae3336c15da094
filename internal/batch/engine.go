// Package batch plans and executes annotation over many input files.
//
// A Planner resolves each input's output path and decides which inputs to
// skip. An Engine then runs the remaining jobs on a bounded set of workers,
// writing one artifact per job and keeping processed, skipped and errored
// counts.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/outputs"
)

const defaultProgressEvery = 1000

// Annotator runs a pipeline over one document. *pipeline.Pipeline
// implements it.
type Annotator interface {
	Run(ctx context.Context, doc *document.Document) error
	NewlineMode() document.NewlineMode
}

// AnnotatorFactory supplies the annotator a worker uses. It is called once
// per worker.
type AnnotatorFactory func() (Annotator, error)

// Indexer records a finished document.
type Indexer interface {
	IndexDocument(ctx context.Context, doc *document.Document, output string, format string) error
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Workers is the number of concurrent jobs. Values below 1 mean 1.
	Workers int

	// ContinueOnError tolerates annotation failures. Read, write and index
	// failures always stop the batch.
	ContinueOnError bool

	// NoClobber rechecks each output right before its job runs.
	NoClobber bool

	Format  outputs.Format
	Writer  outputs.Writer
	Reader  *Reader
	Indexer Indexer // Optional

	// ProgressEvery logs a progress line after this many processed
	// documents. Defaults to 1000.
	ProgressEvery int

	Logger *slog.Logger
}

// Engine executes planned jobs.
type Engine struct {
	workers         int
	continueOnError bool
	noClobber       bool
	format          outputs.Format
	writer          outputs.Writer
	reader          *Reader
	indexer         Indexer
	progressEvery   int
	logger          *slog.Logger
}

// NewEngine creates an engine.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	progressEvery := cfg.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = defaultProgressEvery
	}
	reader := cfg.Reader
	if reader == nil {
		reader = NewReader(ReaderConfig{Logger: logger})
	}
	return &Engine{
		workers:         workers,
		continueOnError: cfg.ContinueOnError,
		noClobber:       cfg.NoClobber,
		format:          cfg.Format,
		writer:          cfg.Writer,
		reader:          reader,
		indexer:         cfg.Indexer,
		progressEvery:   progressEvery,
		logger:          logger.With("component", "batch_engine"),
	}
}

// Result summarizes one Execute call.
type Result struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Total     int           `json:"total" yaml:"total"`
	Processed int           `json:"processed" yaml:"processed"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Errored   int           `json:"errored" yaml:"errored"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
}

// counters are shared by the workers of one run.
type counters struct {
	mu        sync.Mutex
	processed int
	skipped   int
	errored   int
}

func (c *counters) addProcessed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed++
	return c.processed
}

func (c *counters) addSkipped() {
	c.mu.Lock()
	c.skipped++
	c.mu.Unlock()
}

func (c *counters) addErrored() {
	c.mu.Lock()
	c.errored++
	c.mu.Unlock()
}

// run carries the per-Execute state.
type run struct {
	*Engine
	logger *slog.Logger
	counts *counters
	total  int
}

// Execute runs jobs. Planned skips are counted without running. With one
// worker, jobs run in order on the calling goroutine; otherwise exactly
// Workers goroutines take jobs from one shared queue.
//
// The first failure that is not tolerated stops scheduling; jobs already
// running finish, and the failure is returned with the counts so far.
func (e *Engine) Execute(ctx context.Context, jobs []Job, newAnnotator AnnotatorFactory) (Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	r := &run{
		Engine: e,
		logger: e.logger.With("run_id", runID),
		counts: &counters{},
		total:  len(jobs),
	}

	pending := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Skip {
			r.counts.addSkipped()
			r.logger.Info("skipping input", "job_id", job.ID, "input", job.Input, "reason", job.Reason)
			continue
		}
		pending = append(pending, job)
	}

	r.logger.Info("batch started", "jobs", len(jobs), "pending", len(pending), "workers", e.workers)
	var err error
	if e.workers == 1 {
		err = r.sequential(ctx, pending, newAnnotator)
	} else {
		err = r.parallel(ctx, pending, newAnnotator)
	}

	res := r.result(start)
	res.RunID = runID
	if err != nil {
		r.logger.Error("batch stopped", "error", err, "processed", res.Processed, "skipped", res.Skipped, "errored", res.Errored)
		return res, err
	}
	r.logger.Info("batch finished", "processed", res.Processed, "skipped", res.Skipped, "errored", res.Errored, "elapsed", res.Elapsed)
	return res, nil
}

func (r *run) result(start time.Time) Result {
	r.counts.mu.Lock()
	defer r.counts.mu.Unlock()
	return Result{
		Total:     r.total,
		Processed: r.counts.processed,
		Skipped:   r.counts.skipped,
		Errored:   r.counts.errored,
		Elapsed:   time.Since(start),
	}
}

func (r *run) sequential(ctx context.Context, jobs []Job, newAnnotator AnnotatorFactory) error {
	if len(jobs) == 0 {
		return nil
	}
	ann, err := newAnnotator()
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.process(ctx, ann, job); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) parallel(ctx context.Context, jobs []Job, newAnnotator AnnotatorFactory) error {
	queue := make(chan Job, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		workerID := i
		g.Go(func() error {
			ann, err := newAnnotator()
			if err != nil {
				return err
			}
			r.logger.Debug("batch worker started", "worker_id", workerID)
			for job := range queue {
				// A stopped batch takes no new jobs. The job itself runs
				// under ctx so in-flight work is not cut short by a
				// sibling's failure.
				if gctx.Err() != nil {
					return nil
				}
				if err := r.process(ctx, ann, job); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// process runs one job. It returns nil for outcomes that are counted
// (processed, skipped, tolerated failure) and an error for failures that
// stop the batch.
func (r *run) process(ctx context.Context, ann Annotator, job Job) error {
	logger := r.logger.With("job_id", job.ID, "input", job.Input, "output", job.Output)

	if r.noClobber && exists(job.Output) {
		r.counts.addSkipped()
		logger.Info("skipping input", "reason", ReasonExists)
		return nil
	}

	probe, err := r.reader.Read(ctx, job)
	if err != nil {
		return &JobError{JobID: job.ID, Input: job.Input, Kind: ErrInputRead, Err: err}
	}
	if probe.Fallback {
		logger.Warn("input is not a serialized document, annotated as text")
	}

	if err := annotate(ctx, ann, probe.Doc); err != nil {
		if r.continueOnError {
			r.counts.addErrored()
			logger.Error("annotation failed", "error", err)
			return nil
		}
		return &JobError{JobID: job.ID, Input: job.Input, Kind: ErrAnnotation, Err: err}
	}

	opts := outputs.Options{Newlines: ann.NewlineMode()}
	err = writeAtomic(job.Output, func(w io.Writer) error {
		return r.writer.Write(w, probe.Doc, opts)
	})
	if err != nil {
		return &JobError{JobID: job.ID, Input: job.Input, Kind: ErrOutputWrite, Err: err}
	}

	if r.indexer != nil {
		if err := r.indexer.IndexDocument(ctx, probe.Doc, job.Output, string(r.format)); err != nil {
			return &JobError{JobID: job.ID, Input: job.Input, Kind: ErrIndexWrite, Err: err}
		}
	}

	n := r.counts.addProcessed()
	logger.Debug("processed input")
	if n%r.progressEvery == 0 {
		r.logger.Info("batch progress", "processed", n, "total", r.total)
	}
	return nil
}

// annotate runs the annotator, turning a panic into an error.
func annotate(ctx context.Context, ann Annotator, doc *document.Document) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return ann.Run(ctx, doc)
}

// writeAtomic writes path through a temporary file in the same directory,
// creating parent directories as needed.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
