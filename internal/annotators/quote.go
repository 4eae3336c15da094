package annotators

import (
	"context"
	"unicode/utf8"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

// quotePairs maps opening quote marks to their closing mark.
var quotePairs = map[rune]rune{
	'"': '"',
	'“': '”',
	'«': '»',
	'„': '“',
}

type quoteFinder struct {
	stage
}

func quoteFactory() pipeline.Factory {
	return pipeline.Factory{
		Name:        "quote",
		Description: "Find quoted passages in the text",
		New: func(props pipeline.Properties) (pipeline.Stage, error) {
			return &quoteFinder{stage: stage{
				name:     "quote",
				provides: capability.Of(capability.Quote),
			}}, nil
		},
	}
}

// Apply stores the quoted passages.
func (s *quoteFinder) Apply(ctx context.Context, doc *document.Document) error {
	document.Set(doc, document.QuotesKey, FindQuotes(doc.Text))
	return nil
}

// FindQuotes returns the non-empty passages between matching quote marks.
// Begin and End are the byte offsets of the passage without its marks.
// Quotes do not nest; an unclosed quote is ignored.
func FindQuotes(text string) []document.QuoteSpan {
	var out []document.QuoteSpan
	var closing rune
	open := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case open >= 0 && r == closing:
			if i > open {
				out = append(out, document.QuoteSpan{Text: text[open:i], Begin: open, End: i})
			}
			open = -1
		case open < 0:
			if c, ok := quotePairs[r]; ok {
				closing = c
				open = i + size
			}
		}
		i += size
	}
	return out
}
