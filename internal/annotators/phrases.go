package annotators

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

// DictEntry is one multi-token dictionary line.
type DictEntry struct {
	Canonical string
	Variants  []string
	Category  string
}

// LoadDict reads a dictionary in "canonical|variant1|variant2|category"
// format. Blank lines and lines starting with # are ignored.
func LoadDict(path string) ([]DictEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []DictEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		entries = append(entries, DictEntry{
			Canonical: parts[0],
			Variants:  parts[1 : len(parts)-1],
			Category:  parts[len(parts)-1],
		})
	}
	return entries, nil
}

// phraseMatcher recognizes dictionary phrases by greedy longest match over
// lowercased token words.
type phraseMatcher struct {
	dict   map[string]DictEntry
	maxLen int
}

func newPhraseMatcher(entries []DictEntry) *phraseMatcher {
	m := &phraseMatcher{dict: make(map[string]DictEntry), maxLen: 1}
	add := func(phrase string, e DictEntry) {
		key := phraseKey(phrase)
		if key == "" {
			return
		}
		m.dict[key] = e
		if n := len(strings.Fields(key)); n > m.maxLen {
			m.maxLen = n
		}
	}
	for _, e := range entries {
		add(e.Canonical, e)
		for _, v := range e.Variants {
			add(v, e)
		}
	}
	return m
}

// phraseKey normalizes a phrase the way token sequences are normalized, so
// "State-of-the-art" in a dictionary matches the same tokens in text.
func phraseKey(phrase string) string {
	toks := Tokenize(phrase, true)
	words := make([]string, len(toks))
	for i, t := range toks {
		words[i] = t.Word
	}
	return strings.Join(words, " ")
}

// match returns mentions found in toks[begin:end].
func (m *phraseMatcher) match(toks []document.Token, begin, end int, typeOf func(DictEntry) string) []document.Mention {
	var out []document.Mention
	for i := begin; i < end; {
		longest := m.maxLen
		if rem := end - i; longest > rem {
			longest = rem
		}
		matched := 0
		for n := longest; n >= 1; n-- {
			words := make([]string, n)
			for j := 0; j < n; j++ {
				words[j] = strings.ToLower(toks[i+j].Word)
			}
			if e, ok := m.dict[strings.Join(words, " ")]; ok {
				out = append(out, document.Mention{
					Type:       typeOf(e),
					Value:      e.Canonical,
					TokenBegin: i,
					TokenEnd:   i + n,
				})
				matched = n
				break
			}
		}
		if matched == 0 {
			matched = 1
		}
		i += matched
	}
	return out
}

type phraseRecognizer struct {
	stage
	matcher *phraseMatcher
}

func phrasesFactory() pipeline.Factory {
	return pipeline.Factory{
		Name:        "phrases",
		Description: "Recognize dictionary phrases and map variants to canonical forms",
		New: func(props pipeline.Properties) (pipeline.Stage, error) {
			var entries []DictEntry
			if path := props.Get("phrases.dict", ""); path != "" {
				var err error
				entries, err = LoadDict(path)
				if err != nil {
					return nil, fmt.Errorf("load dictionary: %w", err)
				}
			}
			return &phraseRecognizer{
				stage: stage{
					name:     "phrases",
					requires: capability.Of(capability.Tokenize),
					provides: capability.Of(capability.Phrases),
				},
				matcher: newPhraseMatcher(entries),
			}, nil
		},
	}
}

// Apply stores the recognized phrases.
func (s *phraseRecognizer) Apply(ctx context.Context, doc *document.Document) error {
	toks := doc.Tokens()
	found := s.matcher.match(toks, 0, len(toks), func(e DictEntry) string { return e.Category })
	document.Set(doc, document.PhrasesKey, found)
	return nil
}
