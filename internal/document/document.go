// Package document holds the per-document state threaded through one
// pipeline run.
//
// A Document is a typed key/value store. Stages read what earlier stages
// wrote through typed keys and add their own results. A Document is owned by
// the run that created it and is never shared across concurrent runs, so it
// carries no locking.
package document

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownKey is returned when decoding a value for a key that was never
// declared with NewKey.
var ErrUnknownKey = errors.New("unknown document key")

// Key identifies a value of type T stored on a Document.
type Key[T any] struct {
	name string
}

// Name returns the key's wire name.
func (k Key[T]) Name() string { return k.name }

// decoders maps declared key names to a function that decodes a value of the
// key's concrete type. It lets serializers restore typed values without a
// type registry per format.
var (
	decodersMu sync.RWMutex
	decoders   = map[string]func(unmarshal func(any) error) (any, error){}
)

// NewKey declares a key. Declaring the same name twice with different types
// panics; keys are expected to be package-level variables.
func NewKey[T any](name string) Key[T] {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	if _, exists := decoders[name]; exists {
		panic(fmt.Sprintf("document: key %q declared twice", name))
	}
	decoders[name] = func(unmarshal func(any) error) (any, error) {
		var v T
		if err := unmarshal(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return Key[T]{name: name}
}

// Document is the mutable record for one input.
type Document struct {
	// ID identifies the document within a batch run (the job ID) or session.
	ID string
	// Source is where the text came from, usually an input path.
	Source string
	// Text is the document text. Stages such as cleanxml may rewrite it
	// before tokenization.
	Text string

	values map[string]any
}

// New creates a document holding text.
func New(id, source, text string) *Document {
	return &Document{
		ID:     id,
		Source: source,
		Text:   text,
		values: make(map[string]any),
	}
}

// Get returns the value stored under k.
func Get[T any](d *Document, k Key[T]) (T, bool) {
	v, ok := d.values[k.name]
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Set stores v under k, replacing any previous value.
func Set[T any](d *Document, k Key[T], v T) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	d.values[k.name] = v
}

// Has reports whether a value is stored under k.
func Has[T any](d *Document, k Key[T]) bool {
	_, ok := d.values[k.name]
	return ok
}

// Keys returns the names of all stored values, sorted.
func (d *Document) Keys() []string {
	names := make([]string, 0, len(d.values))
	for name := range d.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncodeValues marshals every stored value with marshal.
func (d *Document) EncodeValues(marshal func(any) ([]byte, error)) (map[string][]byte, error) {
	out := make(map[string][]byte, len(d.values))
	for _, name := range d.Keys() {
		data, err := marshal(d.values[name])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}

// DecodeValues restores values produced by EncodeValues.
func (d *Document) DecodeValues(encoded map[string][]byte, unmarshal func([]byte, any) error) error {
	if d.values == nil {
		d.values = make(map[string]any, len(encoded))
	}
	decodersMu.RLock()
	defer decodersMu.RUnlock()
	for name, data := range encoded {
		decode, ok := decoders[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKey, name)
		}
		v, err := decode(func(target any) error { return unmarshal(data, target) })
		if err != nil {
			return fmt.Errorf("decode %q: %w", name, err)
		}
		d.values[name] = v
	}
	return nil
}
