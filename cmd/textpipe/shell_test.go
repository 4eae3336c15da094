package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackzampolin/textpipe/internal/annotators"
	"github.com/jackzampolin/textpipe/internal/config"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

func newTestSession(t *testing.T) *session {
	t.Helper()
	reg, err := annotators.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := pipeline.NewCache(reg, quiet)
	return &session{
		builder:   pipeline.NewBuilder(cache, quiet),
		cache:     cache,
		overrides: pipeline.Properties{},
	}
}

func newTestShell(t *testing.T, s *session, cfg *config.Config, input string) (*shell, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	p, err := s.build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	w, err := shellWriter(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var out, prompt bytes.Buffer
	sh := &shell{
		in:     strings.NewReader(input),
		out:    &out,
		prompt: &prompt,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	sh.set(p, w)
	return sh, &out, &prompt
}

func TestShellRun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Batch.OutputFormat = "text"

	t.Run("annotates each line until q", func(t *testing.T) {
		sh, out, prompt := newTestShell(t, newTestSession(t), cfg, "Hello there.\n\nSecond line here.\nq\nnever read\n")
		if err := sh.run(context.Background()); err != nil {
			t.Fatalf("run: %v", err)
		}
		if got := strings.Count(out.String(), "Document: ID="); got != 2 {
			t.Errorf("expected 2 documents, got %d:\n%s", got, out.String())
		}
		if strings.Contains(out.String(), "never") {
			t.Error("expected input after q to be ignored")
		}
		if got := strings.Count(prompt.String(), shellPrompt); got != 4 {
			t.Errorf("expected 4 prompts, got %d", got)
		}
	})

	t.Run("stops at EOF", func(t *testing.T) {
		sh, out, _ := newTestShell(t, newTestSession(t), cfg, "Just one")
		if err := sh.run(context.Background()); err != nil {
			t.Fatalf("run: %v", err)
		}
		if !strings.Contains(out.String(), "[Text=Just") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		sh, _, _ := newTestShell(t, newTestSession(t), cfg, "text\n")
		if err := sh.run(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestShellWriter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Batch.OutputFormat = "serialized"
	if _, err := shellWriter(cfg); !errors.Is(err, errSerializedShell) {
		t.Errorf("expected errSerializedShell, got %v", err)
	}

	cfg.Batch.OutputFormat = "yaml"
	if _, err := shellWriter(cfg); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestShellReload(t *testing.T) {
	s := newTestSession(t)
	cfg := config.DefaultConfig()
	cfg.Batch.OutputFormat = "conll"
	sh, _, _ := newTestShell(t, s, cfg, "")

	t.Run("applies a valid config", func(t *testing.T) {
		next := config.DefaultConfig()
		next.Annotators = []string{"tokenize", "lemma"}
		next.Batch.OutputFormat = "json"
		sh.reload(s, next)

		p, _ := sh.current()
		if got := strings.Join(p.Names(), ","); got != "tokenize,lemma" {
			t.Errorf("expected reloaded pipeline, got %s", got)
		}
	})

	t.Run("keeps the previous pipeline on error", func(t *testing.T) {
		bad := config.DefaultConfig()
		bad.Annotators = []string{"lemma"}
		sh.reload(s, bad)

		p, _ := sh.current()
		if got := strings.Join(p.Names(), ","); got != "tokenize,lemma" {
			t.Errorf("expected previous pipeline kept, got %s", got)
		}
	})

	t.Run("rejects serialized output", func(t *testing.T) {
		bad := config.DefaultConfig()
		bad.Batch.OutputFormat = "serialized"
		sh.reload(s, bad)

		p, _ := sh.current()
		if len(p.Names()) != 2 {
			t.Errorf("expected previous pipeline kept, got %v", p.Names())
		}
	})
}
