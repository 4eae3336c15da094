package annotators

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

var (
	terminals = map[string]bool{".": true, "!": true, "?": true, "…": true}
	closers   = map[string]bool{"\"": true, "'": true, ")": true, "]": true, "”": true, "’": true, "»": true}

	// abbreviations do not end a sentence when followed by a period.
	abbreviations = map[string]bool{
		"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
		"st": true, "jr": true, "sr": true, "vs": true, "etc": true,
		"inc": true, "ltd": true, "co": true, "corp": true, "no": true,
	}
)

type sentenceSplitter struct {
	stage
	mode document.NewlineMode
}

func ssplitFactory() pipeline.Factory {
	return pipeline.Factory{
		Name:        "ssplit",
		Description: "Group tokens into sentences",
		New: func(props pipeline.Properties) (pipeline.Stage, error) {
			mode, err := document.ParseNewlineMode(props.Get("ssplit.newline_is_sentence_break", ""))
			if err != nil {
				return nil, fmt.Errorf("ssplit.newline_is_sentence_break: %w", err)
			}
			return &sentenceSplitter{
				stage: stage{
					name:     "ssplit",
					requires: capability.Of(capability.Tokenize),
					provides: capability.Of(capability.SentenceSplit),
				},
				mode: mode,
			}, nil
		},
	}
}

// NewlineMode reports how line breaks are treated.
func (s *sentenceSplitter) NewlineMode() document.NewlineMode {
	return s.mode
}

// Apply stores the document's sentences.
func (s *sentenceSplitter) Apply(ctx context.Context, doc *document.Document) error {
	document.Set(doc, document.SentencesKey, SplitSentences(doc.Text, doc.Tokens(), s.mode))
	return nil
}

// SplitSentences segments toks. A sentence ends after terminal punctuation
// and any closing quotes or brackets that follow it, and, depending on mode,
// at line breaks between tokens. Empty sentences are never produced.
func SplitSentences(text string, toks []document.Token, mode document.NewlineMode) []document.Sentence {
	var out []document.Sentence
	begin := 0
	flush := func(end int) {
		if end > begin {
			out = append(out, document.Sentence{Index: len(out), TokenBegin: begin, TokenEnd: end})
		}
		begin = end
	}

	ending := false
	for i, tok := range toks {
		if i > begin && mode != document.NewlineNever && newlineBreak(text, toks[i-1], tok, mode) {
			flush(i)
			ending = false
		}
		if ending {
			if terminals[tok.Word] || closers[tok.Word] {
				continue
			}
			flush(i)
			ending = false
		}
		if terminals[tok.Word] && !(tok.Word == "." && i > 0 && abbreviations[strings.ToLower(toks[i-1].Word)]) {
			ending = true
		}
	}
	flush(len(toks))
	return out
}

func newlineBreak(text string, prev, next document.Token, mode document.NewlineMode) bool {
	if prev.End > next.Begin || next.Begin > len(text) {
		return false
	}
	n := strings.Count(text[prev.End:next.Begin], "\n")
	switch mode {
	case document.NewlineAlways:
		return n >= 1
	case document.NewlineTwo:
		return n >= 2
	}
	return false
}
