package annotators

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

// blockElements end a line of text when they close.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"title": true, "headline": true, "para": true, "doc": true, "text": true,
	"s": true, "sentence": true, "section": true, "article": true,
}

var blankLines = regexp.MustCompile(`\n{3,}`)

type cleanXML struct {
	stage
	keepRaw bool
}

func cleanXMLFactory() pipeline.Factory {
	return pipeline.Factory{
		Name:        "cleanxml",
		Description: "Strip XML/HTML markup, keeping text content",
		New: func(props pipeline.Properties) (pipeline.Stage, error) {
			return &cleanXML{
				stage: stage{
					name:     "cleanxml",
					provides: capability.Of(capability.CleanXML),
				},
				keepRaw: props.Bool("cleanxml.keep_raw", false),
			}, nil
		},
	}
}

// Apply replaces the document text with the markup's text content.
func (s *cleanXML) Apply(ctx context.Context, doc *document.Document) error {
	root, err := html.Parse(strings.NewReader(doc.Text))
	if err != nil {
		return fmt.Errorf("parse markup: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(root)

	if s.keepRaw {
		document.Set(doc, document.RawTextKey, doc.Text)
	}
	doc.Text = strings.TrimSpace(blankLines.ReplaceAllString(b.String(), "\n\n"))
	return nil
}
