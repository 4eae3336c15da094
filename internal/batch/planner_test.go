package batch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/textpipe/internal/outputs"
)

func TestResolveOutput(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		input  string
		want   string
	}{
		{
			name:   "default extension appended",
			policy: Policy{OutputDir: "out", Format: outputs.FormatXML},
			input:  "in/a.txt",
			want:   filepath.Join("out", "a.txt.xml"),
		},
		{
			name:   "replace extension",
			policy: Policy{OutputDir: "out", Format: outputs.FormatJSON, ReplaceExtension: true},
			input:  "in/a.txt",
			want:   filepath.Join("out", "a.json"),
		},
		{
			name:   "only the last extension is replaced",
			policy: Policy{OutputDir: "out", Format: outputs.FormatXML, ReplaceExtension: true},
			input:  "in/a.ser.gz",
			want:   filepath.Join("out", "a.ser.xml"),
		},
		{
			name:   "extension not doubled",
			policy: Policy{OutputDir: "out", Format: outputs.FormatXML},
			input:  "in/a.xml",
			want:   filepath.Join("out", "a.xml"),
		},
		{
			name:   "custom extension",
			policy: Policy{OutputDir: "out", OutputExtension: ".ann", Format: outputs.FormatXML},
			input:  "a.txt",
			want:   filepath.Join("out", "a.txt.ann"),
		},
		{
			name:   "relative layout mirrored",
			policy: Policy{OutputDir: "out", InputDir: "in", Format: outputs.FormatText},
			input:  "in/x/y/a.txt",
			want:   filepath.Join("out", "x", "y", "a.txt.out"),
		},
		{
			name:   "input outside input dir is written flat",
			policy: Policy{OutputDir: "out", InputDir: "in", Format: outputs.FormatText},
			input:  "elsewhere/a.txt",
			want:   filepath.Join("out", "a.txt.out"),
		},
		{
			name:   "current directory by default",
			policy: Policy{Format: outputs.FormatCoNLL},
			input:  "/data/a.txt",
			want:   "a.txt.conll",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlanner(tt.policy)
			got := p.ResolveOutput(tt.input)
			if got != tt.want {
				t.Errorf("ResolveOutput(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := p.ResolveOutput(tt.input); again != got {
				t.Errorf("ResolveOutput is not stable: %q then %q", got, again)
			}
		})
	}
}

func TestPlanSkipPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.txt":     "a",
		"b.xml":     "b",
		"c.txt":     "c",
		"c.txt.xml": "old output",
		"d.txt":     "d",
		"e.xml":     "e",
	})

	policy := Policy{
		OutputDir: dir,
		Format:    outputs.FormatXML,
		NoClobber: true,
		Exclude:   map[string]struct{}{"a.txt": {}, "e.xml": {}},
	}
	jobs := NewPlanner(policy).Plan([]string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.xml"),
		filepath.Join(dir, "c.txt"),
		filepath.Join(dir, "d.txt"),
		filepath.Join(dir, "e.xml"),
	})

	want := []string{
		ReasonExcluded,
		ReasonOverwriteInput,
		ReasonExists,
		"",
		ReasonExcluded, // excluded wins over overwrite
	}
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %d", len(want), len(jobs))
	}
	for i, job := range jobs {
		if job.Reason != want[i] || job.Skip != (want[i] != "") {
			t.Errorf("job %s: got skip=%v reason=%q, want %q", filepath.Base(job.Input), job.Skip, job.Reason, want[i])
		}
	}
}

func TestPlanOverwriteThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"real/a.xml": "a"})
	link := filepath.Join(dir, "link")
	if err := os.Symlink(filepath.Join(dir, "real"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	policy := Policy{OutputDir: link, Format: outputs.FormatXML}
	jobs := NewPlanner(policy).Plan([]string{filepath.Join(dir, "real", "a.xml")})
	if jobs[0].Reason != ReasonOverwriteInput {
		t.Errorf("expected overwrite detection through symlink, got %q", jobs[0].Reason)
	}
}

func TestPlanIDsAndOrder(t *testing.T) {
	inputs := make([]string, 50)
	for i := range inputs {
		inputs[i] = filepath.Join("in", strings.Repeat("x", i+1)+".txt")
	}

	t.Run("unique ids, input order", func(t *testing.T) {
		jobs := NewPlanner(Policy{OutputDir: "out", Format: outputs.FormatXML}).Plan(inputs)
		seen := make(map[string]bool)
		for i, job := range jobs {
			if job.Input != inputs[i] {
				t.Fatalf("expected input order to be preserved")
			}
			if seen[job.ID] {
				t.Fatalf("duplicate job id %s", job.ID)
			}
			seen[job.ID] = true
		}
	})

	t.Run("seeded shuffle is reproducible", func(t *testing.T) {
		policy := Policy{OutputDir: "out", Format: outputs.FormatXML, Randomize: true, Seed: 42}
		first := NewPlanner(policy).Plan(inputs)
		second := NewPlanner(policy).Plan(inputs)

		moved := false
		for i := range first {
			if first[i].Input != second[i].Input {
				t.Fatal("expected the same order for the same seed")
			}
			if first[i].Input != inputs[i] {
				moved = true
			}
		}
		if !moved {
			t.Error("expected a shuffled order")
		}
	})
}
