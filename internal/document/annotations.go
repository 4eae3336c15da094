package document

// Token is one word or punctuation mark with its character offsets into the
// document text.
type Token struct {
	Word     string `json:"word" xml:"word"`
	Original string `json:"original,omitempty" xml:"original,omitempty"`
	Begin    int    `json:"begin" xml:"begin"`
	End      int    `json:"end" xml:"end"`
	Lemma    string `json:"lemma,omitempty" xml:"lemma,omitempty"`
	NER      string `json:"ner,omitempty" xml:"ner,omitempty"`
	Stop     bool   `json:"stop,omitempty" xml:"stop,omitempty"`
}

// Sentence is a half-open token range [TokenBegin, TokenEnd).
type Sentence struct {
	Index      int    `json:"index"`
	TokenBegin int    `json:"token_begin"`
	TokenEnd   int    `json:"token_end"`
	Sentiment  string `json:"sentiment,omitempty"`
}

// Mention is a typed span over tokens, used for entities and phrases.
type Mention struct {
	Type       string `json:"type"`
	Value      string `json:"value"`
	TokenBegin int    `json:"token_begin"`
	TokenEnd   int    `json:"token_end"`
}

// QuoteSpan is a quoted passage in the document text.
type QuoteSpan struct {
	Text  string `json:"text"`
	Begin int    `json:"begin"`
	End   int    `json:"end"`
}

// SentimentResult is the document-level sentiment label.
type SentimentResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Well-known keys written by the built-in stages.
var (
	RawTextKey    = NewKey[string]("raw_text")
	TokensKey     = NewKey[[]Token]("tokens")
	SentencesKey  = NewKey[[]Sentence]("sentences")
	PhrasesKey    = NewKey[[]Mention]("phrases")
	EntitiesKey   = NewKey[[]Mention]("entities")
	CategoriesKey = NewKey[[]string]("categories")
	QuotesKey     = NewKey[[]QuoteSpan]("quotes")
	SentimentKey  = NewKey[SentimentResult]("sentiment")
	PageCountKey  = NewKey[int]("page_count")
)

// Tokens is shorthand for Get(d, TokensKey).
func (d *Document) Tokens() []Token {
	toks, _ := Get(d, TokensKey)
	return toks
}

// Sentences is shorthand for Get(d, SentencesKey).
func (d *Document) Sentences() []Sentence {
	sents, _ := Get(d, SentencesKey)
	return sents
}
