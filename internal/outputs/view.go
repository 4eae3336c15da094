package outputs

import (
	"encoding/xml"
	"strings"

	"github.com/jackzampolin/textpipe/internal/document"
)

// documentView is the shape shared by the xml and json writers.
type documentView struct {
	XMLName    xml.Name                  `xml:"document" json:"-"`
	ID         string                    `xml:"docId,omitempty" json:"docId,omitempty"`
	Source     string                    `xml:"source,omitempty" json:"source,omitempty"`
	PageCount  int                       `xml:"pageCount,omitempty" json:"pageCount,omitempty"`
	Sentences  []sentenceView            `xml:"sentences>sentence" json:"sentences"`
	Entities   []mentionView             `xml:"entities>entity,omitempty" json:"entities,omitempty"`
	Phrases    []mentionView             `xml:"phrases>phrase,omitempty" json:"phrases,omitempty"`
	Categories []string                  `xml:"categories>category,omitempty" json:"categories,omitempty"`
	Quotes     []quoteView               `xml:"quotes>quote,omitempty" json:"quotes,omitempty"`
	Sentiment  *document.SentimentResult `xml:"sentiment,omitempty" json:"sentiment,omitempty"`
}

type sentenceView struct {
	Index     int         `xml:"id,attr" json:"index"`
	Sentiment string      `xml:"sentiment,attr,omitempty" json:"sentiment,omitempty"`
	Text      string      `xml:"-" json:"text"`
	Tokens    []tokenView `xml:"tokens>token" json:"tokens"`
}

type tokenView struct {
	ID    int    `xml:"id,attr" json:"index"`
	Word  string `xml:"word" json:"word"`
	Lemma string `xml:"lemma,omitempty" json:"lemma,omitempty"`
	Begin int    `xml:"CharacterOffsetBegin" json:"characterOffsetBegin"`
	End   int    `xml:"CharacterOffsetEnd" json:"characterOffsetEnd"`
	NER   string `xml:"NER,omitempty" json:"ner,omitempty"`
	Stop  bool   `xml:"stop,omitempty" json:"stop,omitempty"`
}

type mentionView struct {
	Type  string `xml:"type,attr" json:"type"`
	Value string `xml:",chardata" json:"text"`
	Begin int    `xml:"tokenBegin,attr" json:"tokenBegin"`
	End   int    `xml:"tokenEnd,attr" json:"tokenEnd"`
}

type quoteView struct {
	Text  string `xml:",chardata" json:"text"`
	Begin int    `xml:"begin,attr" json:"begin"`
	End   int    `xml:"end,attr" json:"end"`
}

// sentenceText returns the text spanned by sentence s.
func sentenceText(doc *document.Document, s document.Sentence, opts Options) string {
	toks := doc.Tokens()
	if s.TokenEnd <= s.TokenBegin || s.TokenEnd > len(toks) {
		return ""
	}
	begin, end := toks[s.TokenBegin].Begin, toks[s.TokenEnd-1].End
	if begin < 0 || end > len(doc.Text) || begin > end {
		return ""
	}
	text := doc.Text[begin:end]
	if opts.Newlines == document.NewlineNever || opts.Newlines == "" {
		text = strings.Join(strings.Fields(text), " ")
	}
	return text
}

func newView(doc *document.Document, opts Options) documentView {
	v := documentView{ID: doc.ID, Source: doc.Source}
	v.PageCount, _ = document.Get(doc, document.PageCountKey)

	toks := doc.Tokens()
	for _, s := range doc.SentencesOrWhole() {
		sv := sentenceView{Index: s.Index + 1, Sentiment: s.Sentiment, Text: sentenceText(doc, s, opts)}
		for i := s.TokenBegin; i < s.TokenEnd && i < len(toks); i++ {
			t := toks[i]
			sv.Tokens = append(sv.Tokens, tokenView{
				ID:    i - s.TokenBegin + 1,
				Word:  t.Word,
				Lemma: t.Lemma,
				Begin: t.Begin,
				End:   t.End,
				NER:   t.NER,
				Stop:  t.Stop,
			})
		}
		v.Sentences = append(v.Sentences, sv)
	}

	if ents, ok := document.Get(doc, document.EntitiesKey); ok {
		v.Entities = mentionViews(ents)
	}
	if phrases, ok := document.Get(doc, document.PhrasesKey); ok {
		v.Phrases = mentionViews(phrases)
	}
	v.Categories, _ = document.Get(doc, document.CategoriesKey)
	if quotes, ok := document.Get(doc, document.QuotesKey); ok {
		for _, q := range quotes {
			v.Quotes = append(v.Quotes, quoteView{Text: q.Text, Begin: q.Begin, End: q.End})
		}
	}
	if sent, ok := document.Get(doc, document.SentimentKey); ok {
		v.Sentiment = &sent
	}
	return v
}

func mentionViews(ms []document.Mention) []mentionView {
	out := make([]mentionView, len(ms))
	for i, m := range ms {
		out[i] = mentionView{Type: m.Type, Value: m.Value, Begin: m.TokenBegin, End: m.TokenEnd}
	}
	return out
}
