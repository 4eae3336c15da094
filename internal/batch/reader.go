package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/outputs"
)

// SerializedExtension marks inputs that are probed as serialized artifacts.
const SerializedExtension = ".ser.gz"

// Probe is the outcome of reading one input.
type Probe struct {
	Doc *document.Document

	// Structured is set when the input was restored from a serialized
	// artifact.
	Structured bool

	// Fallback is set when the input looked serialized but was not, and was
	// read as raw text instead.
	Fallback bool
}

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	// Serializer decodes serialized inputs. Defaults to gob.
	Serializer outputs.Serializer

	// PDFToText is the text extraction command for PDF inputs.
	// Defaults to "pdftotext".
	PDFToText string

	Logger *slog.Logger
}

// Reader loads job inputs as documents.
type Reader struct {
	serializer outputs.Serializer
	pdfToText  string
	logger     *slog.Logger
}

// NewReader creates a reader.
func NewReader(cfg ReaderConfig) *Reader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ser := cfg.Serializer
	if ser == nil {
		ser = outputs.GobSerializer{}
	}
	pdfToText := cfg.PDFToText
	if pdfToText == "" {
		pdfToText = "pdftotext"
	}
	return &Reader{
		serializer: ser,
		pdfToText:  pdfToText,
		logger:     logger.With("component", "batch_reader"),
	}
}

// Read loads the job's input. Serialized inputs are probed with a structured
// read first and fall back to raw text only when the content is not an
// artifact; missing files and permission errors are always returned.
func (r *Reader) Read(ctx context.Context, job Job) (Probe, error) {
	lower := strings.ToLower(job.Input)
	switch {
	case strings.HasSuffix(lower, SerializedExtension):
		return r.readSerialized(job)
	case strings.HasSuffix(lower, ".pdf"):
		return r.readPDF(ctx, job)
	}

	data, err := os.ReadFile(job.Input)
	if err != nil {
		return Probe{}, err
	}
	return Probe{Doc: document.New(job.ID, job.Input, string(data))}, nil
}

func (r *Reader) readSerialized(job Job) (Probe, error) {
	f, err := os.Open(job.Input)
	if err != nil {
		return Probe{}, err
	}
	defer f.Close()

	doc, err := outputs.ReadSerialized(f, r.serializer)
	if err == nil {
		doc.ID = job.ID
		doc.Source = job.Input
		return Probe{Doc: doc, Structured: true}, nil
	}
	if !errors.Is(err, outputs.ErrFormatMismatch) {
		return Probe{}, err
	}

	r.logger.Debug("input is not a serialized document, reading as text", "input", job.Input, "reason", err)
	data, err := os.ReadFile(job.Input)
	if err != nil {
		return Probe{}, err
	}
	return Probe{Doc: document.New(job.ID, job.Input, string(data)), Fallback: true}, nil
}

func (r *Reader) readPDF(ctx context.Context, job Job) (Probe, error) {
	f, err := os.Open(job.Input)
	if err != nil {
		return Probe{}, err
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pages, err := api.PageCount(f, conf)
	f.Close()
	if err != nil {
		return Probe{}, fmt.Errorf("failed to get page count: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.pdfToText, "-layout", "-enc", "UTF-8", job.Input, "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Probe{}, fmt.Errorf("%s failed: %w (output: %s)", r.pdfToText, err, strings.TrimSpace(stderr.String()))
	}

	doc := document.New(job.ID, job.Input, string(out))
	document.Set(doc, document.PageCountKey, pages)
	r.logger.Debug("extracted pdf text", "input", job.Input, "pages", pages, "bytes", len(out))
	return Probe{Doc: doc}, nil
}
