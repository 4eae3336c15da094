// Package capability enumerates the kinds of information a pipeline stage
// can require from, or guarantee to, the stages around it.
package capability

import (
	"sort"
	"strings"
)

// Capability tags one unit of information present on a document.
type Capability string

const (
	CleanXML      Capability = "cleanxml"
	Tokenize      Capability = "tokenize"
	SentenceSplit Capability = "ssplit"
	Lemma         Capability = "lemma"
	Stopwords     Capability = "stopwords"
	Phrases       Capability = "phrases"
	NER           Capability = "ner"
	Categories    Capability = "categories"
	Quote         Capability = "quote"
	Sentiment     Capability = "sentiment"
)

// All returns every known capability in declaration order.
func All() []Capability {
	return []Capability{
		CleanXML,
		Tokenize,
		SentenceSplit,
		Lemma,
		Stopwords,
		Phrases,
		NER,
		Categories,
		Quote,
		Sentiment,
	}
}

// rank orders capabilities for deterministic reporting. Unknown tags sort
// after known ones, alphabetically.
func rank(c Capability) int {
	for i, known := range All() {
		if known == c {
			return i
		}
	}
	return len(All())
}

// Set is an unordered collection of capabilities.
// The zero value is an empty set ready for reads; use Of or Add to populate.
type Set map[Capability]struct{}

// Of builds a set from the given capabilities.
func Of(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether c is in the set.
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Add merges other into s.
func (s Set) Add(other Set) {
	for c := range other {
		s[c] = struct{}{}
	}
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	out.Add(s)
	return out
}

// Sorted returns the members in a stable order.
func (s Set) Sorted() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}

// FirstMissing returns the first capability of s (in stable order) that is
// not present in satisfied.
func (s Set) FirstMissing(satisfied Set) (Capability, bool) {
	for _, c := range s.Sorted() {
		if !satisfied.Has(c) {
			return c, true
		}
	}
	return "", false
}

// Strings renders the set for logs and CLI output.
func (s Set) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, c := range sorted {
		out[i] = string(c)
	}
	return out
}

func (s Set) String() string {
	return "{" + strings.Join(s.Strings(), ", ") + "}"
}
