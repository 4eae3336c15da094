package annotators

import (
	"context"
	"strings"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

var irregularLemmas = map[string]string{
	"am": "be", "is": "be", "are": "be", "was": "be", "were": "be", "been": "be", "being": "be",
	"has": "have", "had": "have", "having": "have",
	"does": "do", "did": "do", "done": "do",
	"went": "go", "gone": "go", "goes": "go",
	"said": "say", "made": "make", "took": "take", "taken": "take",
	"came": "come", "saw": "see", "seen": "see", "got": "get",
	"men": "man", "women": "woman", "children": "child", "people": "person",
	"mice": "mouse", "feet": "foot", "teeth": "tooth",
	"better": "good", "best": "good", "worse": "bad", "worst": "bad",
}

type lemmatizer struct {
	stage
}

func lemmaFactory() pipeline.Factory {
	return pipeline.Factory{
		Name:        "lemma",
		Description: "Attach a dictionary form to every token",
		New: func(props pipeline.Properties) (pipeline.Stage, error) {
			return &lemmatizer{stage: stage{
				name:     "lemma",
				requires: capability.Of(capability.Tokenize),
				provides: capability.Of(capability.Lemma),
			}}, nil
		},
	}
}

// Apply sets Token.Lemma on every token.
func (s *lemmatizer) Apply(ctx context.Context, doc *document.Document) error {
	toks := doc.Tokens()
	out := make([]document.Token, len(toks))
	for i, tok := range toks {
		tok.Lemma = Lemmatize(tok.Word)
		out[i] = tok
	}
	document.Set(doc, document.TokensKey, out)
	return nil
}

// Lemmatize returns a lowercase dictionary form of word using an irregular
// table and English suffix rules.
func Lemmatize(word string) string {
	w := strings.ToLower(word)
	if lemma, ok := irregularLemmas[w]; ok {
		return lemma
	}
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && (strings.HasSuffix(w, "sses") || strings.HasSuffix(w, "shes") || strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "xes")):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:len(w)-1]
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		return undouble(w[:len(w)-3])
	case len(w) > 4 && strings.HasSuffix(w, "ied"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		return undouble(w[:len(w)-2])
	}
	return w
}

// undouble collapses a doubled final consonant left by suffix stripping
// ("running" -> "runn" -> "run").
func undouble(stem string) string {
	n := len(stem)
	if n >= 3 && stem[n-1] == stem[n-2] && !strings.ContainsRune("aeiouslz", rune(stem[n-1])) {
		return stem[:n-1]
	}
	return stem
}
