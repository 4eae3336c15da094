// Package report renders structured command output as YAML or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/textpipe/internal/batch"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

// Format is a structured output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat maps a --output value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatYAML:
		return FormatYAML, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// Printer writes values in one format.
type Printer struct {
	w      io.Writer
	format Format
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

// Print writes data to the printer's writer.
func (p *Printer) Print(data any) error {
	return To(p.w, p.format, data)
}

// To writes data to w in the given format.
func To(w io.Writer, format Format, data any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// StageInfo describes one registered stage.
type StageInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Requires    []string `json:"requires" yaml:"requires"`
	Provides    []string `json:"provides" yaml:"provides"`
	Error       string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary is printed when a batch run finishes.
type Summary struct {
	RunID        string  `json:"run_id" yaml:"run_id"`
	Total        int     `json:"total" yaml:"total"`
	Processed    int     `json:"processed" yaml:"processed"`
	Skipped      int     `json:"skipped" yaml:"skipped"`
	Errored      int     `json:"errored" yaml:"errored"`
	Elapsed      string  `json:"elapsed" yaml:"elapsed"`
	Tokens       int64   `json:"tokens" yaml:"tokens"`
	TokensPerSec float64 `json:"tokens_per_sec" yaml:"tokens_per_sec"`
}

// NewSummary combines a batch result with the throughput of every worker
// pipeline. The rate is measured against wall-clock time.
func NewSummary(res batch.Result, stats []pipeline.Throughput) Summary {
	s := Summary{
		RunID:     res.RunID,
		Total:     res.Total,
		Processed: res.Processed,
		Skipped:   res.Skipped,
		Errored:   res.Errored,
		Elapsed:   res.Elapsed.Round(time.Millisecond).String(),
	}
	for _, st := range stats {
		s.Tokens += st.Tokens
	}
	if secs := res.Elapsed.Seconds(); secs > 0 {
		s.TokensPerSec = float64(s.Tokens) / secs
	}
	return s
}
