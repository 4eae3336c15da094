package batch

import (
	"crypto/rand"
	mrand "math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jackzampolin/textpipe/internal/outputs"
)

// Skip reasons reported on planned jobs.
const (
	ReasonExcluded       = "excluded"
	ReasonOverwriteInput = "output would overwrite input"
	ReasonExists         = "already exists"
)

// Policy holds the batch knobs that decide where outputs go and which
// inputs are skipped.
type Policy struct {
	// Exclude holds input base names to skip.
	Exclude map[string]struct{}

	// InputDir, when set, is the root whose relative layout is mirrored
	// under OutputDir.
	InputDir string

	// OutputDir is where artifacts are written. Empty means the current
	// directory.
	OutputDir string

	// OutputExtension overrides Format.DefaultExtension.
	OutputExtension string

	// ReplaceExtension strips the input's last extension before appending
	// the output extension.
	ReplaceExtension bool

	// NoClobber skips inputs whose output already exists.
	NoClobber bool

	// Randomize shuffles the planned jobs. A nonzero Seed makes the order
	// reproducible.
	Randomize bool
	Seed      int64

	Format outputs.Format
}

// Extension returns the output extension in effect.
func (p Policy) Extension() string {
	if p.OutputExtension != "" {
		return p.OutputExtension
	}
	return p.Format.DefaultExtension()
}

// Job is one planned unit of batch work.
type Job struct {
	ID     string
	Input  string
	Output string
	Skip   bool
	Reason string
}

// Planner turns inputs into jobs.
type Planner struct {
	policy Policy

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewPlanner creates a planner for policy.
func NewPlanner(policy Policy) *Planner {
	return &Planner{
		policy:  policy,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Policy returns the planner's policy.
func (p *Planner) Policy() Policy {
	return p.policy
}

// Plan resolves an output for every input and marks the ones to skip.
// Checks apply in order and the first match decides: excluded, output would
// overwrite input, already exists (with NoClobber).
func (p *Planner) Plan(inputs []string) []Job {
	jobs := make([]Job, 0, len(inputs))
	for _, input := range inputs {
		job := Job{ID: p.newID(), Input: input, Output: p.ResolveOutput(input)}
		switch {
		case p.excluded(input):
			job.Skip, job.Reason = true, ReasonExcluded
		case sameFile(input, job.Output):
			job.Skip, job.Reason = true, ReasonOverwriteInput
		case p.policy.NoClobber && exists(job.Output):
			job.Skip, job.Reason = true, ReasonExists
		}
		jobs = append(jobs, job)
	}

	if p.policy.Randomize {
		seed := p.policy.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		r := mrand.New(mrand.NewSource(seed))
		r.Shuffle(len(jobs), func(i, j int) { jobs[i], jobs[j] = jobs[j], jobs[i] })
	}
	return jobs
}

// ResolveOutput returns the output path for input. It touches no files.
func (p *Planner) ResolveOutput(input string) string {
	dir := p.policy.OutputDir
	if dir == "" {
		dir = "."
	}
	if p.policy.InputDir != "" {
		if rel, ok := relativeDir(p.policy.InputDir, filepath.Dir(input)); ok {
			dir = filepath.Join(dir, rel)
		}
	}

	name := filepath.Base(input)
	if p.policy.ReplaceExtension {
		if ext := filepath.Ext(name); ext != "" && ext != name {
			name = strings.TrimSuffix(name, ext)
		}
	}
	if ext := p.policy.Extension(); !strings.HasSuffix(name, ext) {
		name += ext
	}
	return filepath.Join(dir, name)
}

func (p *Planner) excluded(input string) bool {
	_, ok := p.policy.Exclude[filepath.Base(input)]
	return ok
}

func (p *Planner) newID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ulid.MustNew(ulid.Now(), p.entropy).String()
}

// relativeDir returns dir relative to base when dir lies inside base.
func relativeDir(base, dir string) (string, bool) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absBase, absDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// canonical resolves path to an absolute path with symlinks evaluated as
// far as they exist.
func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs))
	}
	return abs
}

func sameFile(a, b string) bool {
	return canonical(a) == canonical(b)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
