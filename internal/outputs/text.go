package outputs

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/jackzampolin/textpipe/internal/document"
)

type textWriter struct{}

// Write renders a human-readable summary with one bracketed line per token.
func (textWriter) Write(w io.Writer, doc *document.Document, opts Options) error {
	v := newView(doc, opts)
	bw := bufio.NewWriter(w)

	tokens := 0
	for _, s := range v.Sentences {
		tokens += len(s.Tokens)
	}
	fmt.Fprintf(bw, "Document: ID=%s (%d sentences, %d tokens)\n", doc.ID, len(v.Sentences), tokens)

	for _, s := range v.Sentences {
		fmt.Fprintf(bw, "\nSentence #%d (%d tokens", s.Index, len(s.Tokens))
		if s.Sentiment != "" {
			fmt.Fprintf(bw, ", sentiment: %s", s.Sentiment)
		}
		fmt.Fprintf(bw, "):\n%s\n", s.Text)
		for _, t := range s.Tokens {
			fmt.Fprintf(bw, "[Text=%s CharacterOffsetBegin=%d CharacterOffsetEnd=%d", t.Word, t.Begin, t.End)
			if t.Lemma != "" {
				fmt.Fprintf(bw, " Lemma=%s", t.Lemma)
			}
			if t.NER != "" {
				fmt.Fprintf(bw, " NamedEntityTag=%s", t.NER)
			}
			if t.Stop {
				bw.WriteString(" Stop=true")
			}
			bw.WriteString("]\n")
		}
	}

	if len(v.Entities) > 0 {
		bw.WriteString("\nExtracted the following named entity mentions:\n")
		for _, m := range v.Entities {
			fmt.Fprintf(bw, "%s\t%s\n", m.Value, m.Type)
		}
	}
	if len(v.Phrases) > 0 {
		bw.WriteString("\nPhrases:\n")
		for _, m := range v.Phrases {
			fmt.Fprintf(bw, "%s\t%s\n", m.Value, m.Type)
		}
	}
	if len(v.Categories) > 0 {
		fmt.Fprintf(bw, "\nCategories: %s\n", strings.Join(v.Categories, ", "))
	}
	if len(v.Quotes) > 0 {
		bw.WriteString("\nQuotes:\n")
		for _, q := range v.Quotes {
			fmt.Fprintf(bw, "%q\n", q.Text)
		}
	}
	if v.Sentiment != nil {
		fmt.Fprintf(bw, "\nSentiment: %s (%.2f)\n", v.Sentiment.Label, v.Sentiment.Score)
	}
	return bw.Flush()
}

type xmlWriter struct{}

// Write renders the document as indented XML.
func (xmlWriter) Write(w io.Writer, doc *document.Document, opts Options) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	root := struct {
		XMLName  xml.Name     `xml:"root"`
		Document documentView `xml:"document"`
	}{Document: newView(doc, opts)}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

type jsonWriter struct{}

// Write renders the document as indented JSON.
func (jsonWriter) Write(w io.Writer, doc *document.Document, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newView(doc, opts))
}

type conllWriter struct{}

// Write renders one token per line (index, word, lemma, entity tag) with a
// blank line after each sentence. Missing values are "_".
func (conllWriter) Write(w io.Writer, doc *document.Document, opts Options) error {
	bw := bufio.NewWriter(w)
	for _, s := range newView(doc, opts).Sentences {
		for _, t := range s.Tokens {
			fmt.Fprintf(bw, "%d\t%s\t%s\t%s\n", t.ID, t.Word, orBlank(t.Lemma), orBlank(t.NER))
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func orBlank(s string) string {
	if s == "" {
		return "_"
	}
	return s
}
