package outputs_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/jackzampolin/textpipe/internal/annotators"
	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/outputs"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

const resumeText = "The cats were running home. She said \"we are nearly there\" and smiled.\n\nDogs barked at the parked cars."

func buildPipeline(t *testing.T, b *pipeline.Builder, names []string, enforce bool) *pipeline.Pipeline {
	t.Helper()
	p, err := b.Build(names, pipeline.Properties{"ssplit.newline_is_sentence_break": "two"}, enforce)
	if err != nil {
		t.Fatalf("Build(%v): %v", names, err)
	}
	return p
}

func renderXML(t *testing.T, doc *document.Document, mode document.NewlineMode) string {
	t.Helper()
	w, err := outputs.NewWriter(outputs.FormatXML, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := w.Write(&buf, doc, outputs.Options{Newlines: mode}); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

// A run resumed from a serialized partial result matches a single full run.
func TestResumeFromSerializedMatchesFullRun(t *testing.T) {
	ctx := context.Background()
	reg, err := annotators.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	b := pipeline.NewBuilder(pipeline.NewCache(reg, nil), nil)

	full := buildPipeline(t, b, []string{"tokenize", "ssplit", "lemma", "stopwords", "quote"}, true)
	first := buildPipeline(t, b, []string{"tokenize", "ssplit"}, true)
	rest := buildPipeline(t, b, []string{"lemma", "stopwords", "quote"}, false)

	want, err := full.Process(ctx, "doc", resumeText)
	if err != nil {
		t.Fatal(err)
	}
	wantXML := renderXML(t, want, full.NewlineMode())

	for _, name := range []string{"gob", "json"} {
		t.Run(name, func(t *testing.T) {
			ser, err := outputs.NewSerializer(name)
			if err != nil {
				t.Fatal(err)
			}
			w, err := outputs.NewWriter(outputs.FormatSerialized, ser)
			if err != nil {
				t.Fatal(err)
			}

			partial, err := first.Process(ctx, "doc", resumeText)
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			if err := w.Write(&buf, partial, outputs.Options{}); err != nil {
				t.Fatal(err)
			}

			restored, err := outputs.ReadSerialized(&buf, ser)
			if err != nil {
				t.Fatalf("ReadSerialized: %v", err)
			}
			if err := rest.Run(ctx, restored); err != nil {
				t.Fatalf("resumed run: %v", err)
			}

			if got := renderXML(t, restored, full.NewlineMode()); got != wantXML {
				t.Errorf("resumed output differs from full run\ngot:\n%s\nwant:\n%s", got, wantXML)
			}
		})
	}
}
