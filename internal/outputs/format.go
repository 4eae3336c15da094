// Package outputs renders annotated documents in the supported formats and
// reads back serialized artifacts.
package outputs

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackzampolin/textpipe/internal/document"
)

var (
	// ErrUnknownFormat is returned for an unrecognized output format name.
	ErrUnknownFormat = errors.New("unknown output format")

	// ErrUnknownSerializer is returned for an unrecognized serializer name.
	ErrUnknownSerializer = errors.New("unknown serializer")

	// ErrFormatMismatch is returned when input is not a serialized artifact
	// of the expected kind. Callers may fall back to reading raw text.
	ErrFormatMismatch = errors.New("input is not a serialized document")

	// ErrCorruptArtifact is returned when input is a serialized artifact
	// that cannot be read back: truncated, failing its checksum, or
	// carrying an unsupported version or unknown value.
	ErrCorruptArtifact = errors.New("corrupt serialized document")
)

// Format names an output format.
type Format string

const (
	FormatText       Format = "text"
	FormatXML        Format = "xml"
	FormatJSON       Format = "json"
	FormatCoNLL      Format = "conll"
	FormatSerialized Format = "serialized"
)

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatText, FormatXML, FormatJSON, FormatCoNLL, FormatSerialized}
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// DefaultExtension returns the file extension, with its dot, used for
// outputs in this format when none is configured.
func (f Format) DefaultExtension() string {
	switch f {
	case FormatXML:
		return ".xml"
	case FormatJSON:
		return ".json"
	case FormatCoNLL:
		return ".conll"
	case FormatSerialized:
		return ".ser.gz"
	default:
		return ".out"
	}
}

// Options controls rendering.
type Options struct {
	// Newlines is the pipeline's newline mode. With NewlineNever, line
	// breaks inside a sentence are rendered as spaces.
	Newlines document.NewlineMode
}

// Writer renders one document.
type Writer interface {
	Write(w io.Writer, doc *document.Document, opts Options) error
}

// NewWriter returns the writer for format. ser is used only by
// FormatSerialized and defaults to gob.
func NewWriter(format Format, ser Serializer) (Writer, error) {
	switch format {
	case FormatText:
		return textWriter{}, nil
	case FormatXML:
		return xmlWriter{}, nil
	case FormatJSON:
		return jsonWriter{}, nil
	case FormatCoNLL:
		return conllWriter{}, nil
	case FormatSerialized:
		if ser == nil {
			ser = GobSerializer{}
		}
		return serializedWriter{ser: ser}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
