package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/textpipe/internal/config"
	"github.com/jackzampolin/textpipe/internal/outputs"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

const shellPrompt = "NLP> "

// errSerializedShell is returned when the shell is asked for binary output.
var errSerializedShell = errors.New("the serialized format cannot be printed in the interactive shell")

// shell annotates one document per input line.
type shell struct {
	in     io.Reader
	out    io.Writer
	prompt io.Writer
	logger *slog.Logger

	mu       sync.RWMutex
	pipeline *pipeline.Pipeline
	writer   outputs.Writer
}

func shellWriter(cfg *config.Config) (outputs.Writer, error) {
	format, err := outputs.ParseFormat(cfg.Batch.OutputFormat)
	if err != nil {
		return nil, err
	}
	if format == outputs.FormatSerialized {
		return nil, errSerializedShell
	}
	return outputs.NewWriter(format, nil)
}

func runShell(cmd *cobra.Command, mgr *config.Manager, s *session) error {
	cfg := mgr.Get()
	w, err := shellWriter(cfg)
	if err != nil {
		return err
	}
	p, err := s.build(cfg)
	if err != nil {
		return err
	}

	sh := &shell{
		in:     cmd.InOrStdin(),
		out:    cmd.OutOrStdout(),
		prompt: cmd.ErrOrStderr(),
		logger: logger.With("component", "shell"),
	}
	sh.set(p, w)

	if mgr.ConfigFile() != "" {
		mgr.OnChange(func(cfg *config.Config) {
			sh.reload(s, cfg)
		})
		mgr.WatchConfig()
	}

	return sh.run(cmd.Context())
}

func (sh *shell) set(p *pipeline.Pipeline, w outputs.Writer) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.pipeline = p
	sh.writer = w
}

func (sh *shell) current() (*pipeline.Pipeline, outputs.Writer) {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.pipeline, sh.writer
}

// reload drops cached stages and rebuilds from cfg. On failure the previous
// pipeline stays in use.
func (sh *shell) reload(s *session, cfg *config.Config) {
	w, err := shellWriter(cfg)
	if err != nil {
		sh.logger.Error("config reload rejected", "error", err)
		return
	}
	s.cache.Reset()
	p, err := s.build(cfg)
	if err != nil {
		sh.logger.Error("config reload rejected", "error", err)
		return
	}
	sh.set(p, w)
	sh.logger.Info("pipeline reloaded", "stages", strings.Join(p.Names(), ","))
}

// run reads until EOF, "q" or cancellation. A failing line is reported and
// the shell continues.
func (sh *shell) run(ctx context.Context) error {
	sc := bufio.NewScanner(sh.in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(sh.prompt, shellPrompt)
		if !sc.Scan() {
			fmt.Fprintln(sh.prompt)
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "q" {
			return nil
		}
		if trimmed == "" {
			continue
		}

		p, w := sh.current()
		doc, err := p.Process(ctx, ulid.Make().String(), line)
		if err != nil {
			sh.logger.Error("annotation failed", "error", err)
			fmt.Fprintf(sh.prompt, "error: %v\n", err)
			continue
		}
		if err := w.Write(sh.out, doc, outputs.Options{Newlines: p.NewlineMode()}); err != nil {
			return err
		}
	}
}
