package annotators

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

// Taxonomy is the YAML layout shared by the ner gazetteer and the
// categories taxonomy.
type Taxonomy struct {
	Sectors  map[string][]string            `yaml:"sectors"`
	Events   map[string][]string            `yaml:"events"`
	Regions  map[string][]string            `yaml:"regions"`
	Entities map[string]map[string][]string `yaml:"entities"`
}

// LoadTaxonomy reads a taxonomy file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	var tax Taxonomy
	if err := loadYAML(path, &tax); err != nil {
		return nil, err
	}
	return &tax, nil
}

type entityRecognizer struct {
	stage
	matcher *phraseMatcher
}

func nerFactory() pipeline.Factory {
	return pipeline.Factory{
		Name:        "ner",
		Description: "Tag gazetteer entities within sentences",
		New: func(props pipeline.Properties) (pipeline.Stage, error) {
			tax := &Taxonomy{}
			if path := props.Get("ner.gazetteer", ""); path != "" {
				var err error
				if tax, err = LoadTaxonomy(path); err != nil {
					return nil, fmt.Errorf("load gazetteer: %w", err)
				}
			}
			var entries []DictEntry
			for entityType, names := range tax.Entities {
				for name, keywords := range names {
					entries = append(entries, DictEntry{Canonical: name, Variants: keywords, Category: entityType})
				}
			}
			// Deterministic precedence when two types claim the same keyword.
			sort.Slice(entries, func(i, j int) bool {
				if entries[i].Category != entries[j].Category {
					return entries[i].Category > entries[j].Category
				}
				return entries[i].Canonical > entries[j].Canonical
			})
			return &entityRecognizer{
				stage: stage{
					name:     "ner",
					requires: capability.Of(capability.Tokenize, capability.SentenceSplit),
					provides: capability.Of(capability.NER),
				},
				matcher: newPhraseMatcher(entries),
			}, nil
		},
	}
}

// Apply stores entity mentions and sets Token.NER on the covered tokens.
// Mentions never cross sentence boundaries.
func (s *entityRecognizer) Apply(ctx context.Context, doc *document.Document) error {
	toks := doc.Tokens()
	out := make([]document.Token, len(toks))
	copy(out, toks)

	var mentions []document.Mention
	for _, sent := range doc.SentencesOrWhole() {
		found := s.matcher.match(out, sent.TokenBegin, sent.TokenEnd, func(e DictEntry) string { return e.Category })
		for _, m := range found {
			for i := m.TokenBegin; i < m.TokenEnd; i++ {
				out[i].NER = m.Type
			}
		}
		mentions = append(mentions, found...)
	}
	document.Set(doc, document.TokensKey, out)
	document.Set(doc, document.EntitiesKey, mentions)
	return nil
}

type categorizer struct {
	stage
	categories map[string][]string // category -> lowercase keywords
}

func categoriesFactory() pipeline.Factory {
	return pipeline.Factory{
		Name:        "categories",
		Description: "Assign taxonomy categories from keyword hits",
		New: func(props pipeline.Properties) (pipeline.Stage, error) {
			tax := &Taxonomy{}
			if path := props.Get("categories.taxonomy", ""); path != "" {
				var err error
				if tax, err = LoadTaxonomy(path); err != nil {
					return nil, fmt.Errorf("load taxonomy: %w", err)
				}
			}
			cats := make(map[string][]string)
			for _, group := range []map[string][]string{tax.Sectors, tax.Events, tax.Regions} {
				for name, keywords := range group {
					for _, kw := range keywords {
						cats[name] = append(cats[name], phraseKey(kw))
					}
				}
			}
			return &categorizer{
				stage: stage{
					name:     "categories",
					requires: capability.Of(capability.Tokenize),
					provides: capability.Of(capability.Categories),
				},
				categories: cats,
			}, nil
		},
	}
}

// Apply stores the sorted list of matching categories.
func (s *categorizer) Apply(ctx context.Context, doc *document.Document) error {
	words := make([]string, 0, len(doc.Tokens()))
	for _, tok := range doc.Tokens() {
		words = append(words, strings.ToLower(tok.Word))
	}
	text := " " + strings.Join(words, " ") + " "

	var found []string
	for name, keywords := range s.categories {
		for _, kw := range keywords {
			if kw != "" && strings.Contains(text, " "+kw+" ") {
				found = append(found, name)
				break
			}
		}
	}
	sort.Strings(found)
	document.Set(doc, document.CategoriesKey, found)
	return nil
}
