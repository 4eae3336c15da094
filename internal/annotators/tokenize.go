package annotators

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

type tokenizer struct {
	stage
	lowercase bool
}

func tokenizeFactory() pipeline.Factory {
	return pipeline.Factory{
		Name:        "tokenize",
		Description: "Split text into word and punctuation tokens with offsets",
		New: func(props pipeline.Properties) (pipeline.Stage, error) {
			return &tokenizer{
				stage: stage{
					name:     "tokenize",
					provides: capability.Of(capability.Tokenize),
				},
				lowercase: props.Bool("tokenize.lowercase", false),
			}, nil
		},
	}
}

// Apply stores the document's tokens.
func (s *tokenizer) Apply(ctx context.Context, doc *document.Document) error {
	document.Set(doc, document.TokensKey, Tokenize(doc.Text, s.lowercase))
	return nil
}

// Tokenize splits text into words and punctuation marks. Letters and digits
// form words; a hyphen or apostrophe joins two word runs ("state-of-the-art",
// "don't"). Every other non-space rune is a token of its own. Begin and End
// are byte offsets into text.
func Tokenize(text string, lowercase bool) []document.Token {
	var toks []document.Token
	emit := func(begin, end int) {
		word := text[begin:end]
		tok := document.Token{Word: word, Begin: begin, End: end}
		if lowercase {
			if lower := strings.ToLower(word); lower != word {
				tok.Word = lower
				tok.Original = word
			}
		}
		toks = append(toks, tok)
	}

	start := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case isWordRune(r):
			if start < 0 {
				start = i
			}
		case start >= 0 && isJoiner(r) && startsWithWordRune(text[i+size:]):
			// Part of the current word.
		default:
			if start >= 0 {
				emit(start, i)
				start = -1
			}
			if !unicode.IsSpace(r) {
				emit(i, i+size)
			}
		}
		i += size
	}
	if start >= 0 {
		emit(start, len(text))
	}
	return toks
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}

func isJoiner(r rune) bool {
	return r == '-' || r == '\'' || r == '’'
}

func startsWithWordRune(s string) bool {
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return isWordRune(r)
}
