package document

import "fmt"

// NewlineMode says how line breaks in the text relate to sentence breaks.
// A pipeline computes it once at build time and hands it to whatever needs to
// present sentences (sentence splitting, output writers).
type NewlineMode string

const (
	// NewlineNever ignores line breaks. With no sentence splitter in the
	// pipeline the whole document is presented as one sentence.
	NewlineNever NewlineMode = "never"
	// NewlineAlways treats every line break as a sentence break.
	NewlineAlways NewlineMode = "always"
	// NewlineTwo treats two or more consecutive line breaks as a sentence break.
	NewlineTwo NewlineMode = "two"
)

// ParseNewlineMode parses a configured mode. The empty string means
// NewlineNever.
func ParseNewlineMode(s string) (NewlineMode, error) {
	switch NewlineMode(s) {
	case "", NewlineNever:
		return NewlineNever, nil
	case NewlineAlways, NewlineTwo:
		return NewlineMode(s), nil
	default:
		return "", fmt.Errorf("invalid newline mode %q (want never, always or two)", s)
	}
}

// SentencesOrWhole returns the document's sentences, or a single sentence
// covering every token when none were segmented.
func (d *Document) SentencesOrWhole() []Sentence {
	if sents := d.Sentences(); len(sents) > 0 {
		return sents
	}
	toks := d.Tokens()
	if len(toks) == 0 {
		return nil
	}
	return []Sentence{{Index: 0, TokenBegin: 0, TokenEnd: len(toks)}}
}
