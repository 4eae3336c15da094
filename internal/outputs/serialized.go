package outputs

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/jackzampolin/textpipe/internal/document"
)

const envelopeVersion = 1

// errEnvelope marks a failure to decode the outer envelope, meaning the
// stream holds something other than this serializer's artifact.
var errEnvelope = errors.New("unrecognized envelope")

// Serializer encodes whole documents, including every stored value, so a
// later run can resume from them.
type Serializer interface {
	Name() string
	Encode(w io.Writer, doc *document.Document) error
	Decode(r io.Reader) (*document.Document, error)
}

// NewSerializer returns the serializer registered under name. The empty
// name selects gob.
func NewSerializer(name string) (Serializer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gob":
		return GobSerializer{}, nil
	case "json":
		return JSONSerializer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSerializer, name)
	}
}

type gobEnvelope struct {
	Version int
	ID      string
	Source  string
	Text    string
	Values  map[string][]byte
}

// GobSerializer uses encoding/gob for the envelope and every value.
type GobSerializer struct{}

func (GobSerializer) Name() string { return "gob" }

func (GobSerializer) Encode(w io.Writer, doc *document.Document) error {
	values, err := doc.EncodeValues(func(v any) ([]byte, error) {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		return err
	}
	return gob.NewEncoder(w).Encode(gobEnvelope{
		Version: envelopeVersion,
		ID:      doc.ID,
		Source:  doc.Source,
		Text:    doc.Text,
		Values:  values,
	})
}

func (GobSerializer) Decode(r io.Reader) (*document.Document, error) {
	var env gobEnvelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %w", errEnvelope, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	doc := document.New(env.ID, env.Source, env.Text)
	err := doc.DecodeValues(env.Values, func(data []byte, target any) error {
		return gob.NewDecoder(bytes.NewReader(data)).Decode(target)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type jsonEnvelope struct {
	Version int                        `json:"version"`
	ID      string                     `json:"id"`
	Source  string                     `json:"source,omitempty"`
	Text    string                     `json:"text"`
	Values  map[string]json.RawMessage `json:"values"`
}

// JSONSerializer uses encoding/json for the envelope and every value.
type JSONSerializer struct{}

func (JSONSerializer) Name() string { return "json" }

func (JSONSerializer) Encode(w io.Writer, doc *document.Document) error {
	values, err := doc.EncodeValues(json.Marshal)
	if err != nil {
		return err
	}
	env := jsonEnvelope{
		Version: envelopeVersion,
		ID:      doc.ID,
		Source:  doc.Source,
		Text:    doc.Text,
		Values:  make(map[string]json.RawMessage, len(values)),
	}
	for k, v := range values {
		env.Values[k] = v
	}
	return json.NewEncoder(w).Encode(env)
}

func (JSONSerializer) Decode(r io.Reader) (*document.Document, error) {
	var env jsonEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %w", errEnvelope, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	values := make(map[string][]byte, len(env.Values))
	for k, v := range env.Values {
		values[k] = v
	}
	doc := document.New(env.ID, env.Source, env.Text)
	if err := doc.DecodeValues(values, json.Unmarshal); err != nil {
		return nil, err
	}
	return doc, nil
}

type serializedWriter struct {
	ser Serializer
}

// Write gzips the serializer's encoding of doc.
func (s serializedWriter) Write(w io.Writer, doc *document.Document, opts Options) error {
	gz := gzip.NewWriter(w)
	if err := s.ser.Encode(gz, doc); err != nil {
		_ = gz.Close()
		return fmt.Errorf("serialize with %s: %w", s.ser.Name(), err)
	}
	return gz.Close()
}

// ReadSerialized decodes a gzipped artifact written by the serialized
// format. Input without a gzip header, or whose envelope is not this
// serializer's, yields ErrFormatMismatch. A damaged artifact yields
// ErrCorruptArtifact. File system errors are returned unwrapped.
func ReadSerialized(r io.Reader, ser Serializer) (*document.Document, error) {
	if ser == nil {
		ser = GobSerializer{}
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		// Too short or not gzip at all: plain text, not a damaged artifact.
		if errors.Is(err, gzip.ErrHeader) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", ErrFormatMismatch, err)
		}
		return nil, err
	}
	defer gz.Close()

	doc, err := ser.Decode(gz)
	if err != nil {
		return nil, classifyDecodeError(err)
	}
	return doc, nil
}

// classifyDecodeError sorts a failure inside a valid gzip stream. Damage to
// the stream takes precedence over an envelope mismatch.
func classifyDecodeError(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return err
	}
	var corrupt flate.CorruptInputError
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, gzip.ErrChecksum),
		errors.Is(err, gzip.ErrHeader),
		errors.As(err, &corrupt):
		return fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	case errors.Is(err, errEnvelope):
		return fmt.Errorf("%w: %v", ErrFormatMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
}
