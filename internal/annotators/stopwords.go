package annotators

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
	"had", "has", "have", "he", "her", "his", "i", "if", "in", "into", "is",
	"it", "its", "of", "on", "or", "our", "she", "so", "than", "that", "the",
	"their", "them", "then", "there", "these", "they", "this", "to", "was",
	"we", "were", "what", "when", "which", "who", "will", "with", "you",
}

// Stoplist is the YAML layout of a stopword file.
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

type stopwordMarker struct {
	stage
	stops map[string]struct{}
}

func stopwordsFactory() pipeline.Factory {
	return pipeline.Factory{
		Name:        "stopwords",
		Description: "Flag function words (stopwords.file replaces the built-in list)",
		New: func(props pipeline.Properties) (pipeline.Stage, error) {
			terms := defaultStopwords
			if path := props.Get("stopwords.file", ""); path != "" {
				var sl Stoplist
				if err := loadYAML(path, &sl); err != nil {
					return nil, fmt.Errorf("load stoplist: %w", err)
				}
				terms = sl.Terms
			}
			stops := make(map[string]struct{}, len(terms))
			for _, t := range terms {
				stops[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
			}
			return &stopwordMarker{
				stage: stage{
					name:     "stopwords",
					requires: capability.Of(capability.Tokenize),
					provides: capability.Of(capability.Stopwords),
				},
				stops: stops,
			}, nil
		},
	}
}

// Apply sets Token.Stop on tokens found in the stop list.
func (s *stopwordMarker) Apply(ctx context.Context, doc *document.Document) error {
	toks := doc.Tokens()
	out := make([]document.Token, len(toks))
	for i, tok := range toks {
		_, tok.Stop = s.stops[strings.ToLower(tok.Word)]
		out[i] = tok
	}
	document.Set(doc, document.TokensKey, out)
	return nil
}
