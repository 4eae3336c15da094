package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
)

// Stage is one unit of document processing.
//
// Stages are immutable once constructed and are shared by every pipeline
// built from the same cache, across goroutines. Apply must therefore be safe
// to call concurrently with distinct documents.
type Stage interface {
	// Name is the registry name the stage was constructed under.
	Name() string

	// Requires lists what must already be on the document.
	Requires() capability.Set

	// Provides lists what the stage guarantees after Apply returns nil.
	Provides() capability.Set

	// Apply annotates doc in place.
	Apply(ctx context.Context, doc *document.Document) error
}

// NewlineModer is implemented by sentence-splitting stages so the builder
// can record how line breaks were treated.
type NewlineModer interface {
	NewlineMode() document.NewlineMode
}

// Properties is the flat "<stage>.<option>" configuration consulted when
// constructing stages.
type Properties map[string]string

// Get returns the value for key or def when unset.
func (p Properties) Get(key, def string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Bool parses key as a boolean, returning def when unset or unparsable.
func (p Properties) Bool(key string, def bool) bool {
	v, ok := p[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// Int parses key as an integer, returning def when unset or unparsable.
func (p Properties) Int(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// signature digests the properties relevant to one stage: every key under
// "<name>." plus any extra keys the factory declares.
func signature(name string, extra []string, props Properties) string {
	prefix := name + "."
	relevant := make([]string, 0, len(props))
	for k := range props {
		if strings.HasPrefix(k, prefix) {
			relevant = append(relevant, k)
		}
	}
	for _, k := range extra {
		if _, ok := props[k]; ok && !strings.HasPrefix(k, prefix) {
			relevant = append(relevant, k)
		}
	}
	sort.Strings(relevant)

	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	for _, k := range relevant {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(props[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
