package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/outputs"
)

func TestReaderRead(t *testing.T) {
	dir := t.TempDir()
	r := NewReader(ReaderConfig{})

	t.Run("plain text", func(t *testing.T) {
		path := filepath.Join(dir, "a.txt")
		if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
			t.Fatal(err)
		}
		probe, err := r.Read(context.Background(), Job{ID: "j1", Input: path})
		if err != nil {
			t.Fatal(err)
		}
		if probe.Doc.Text != "hello" || probe.Doc.ID != "j1" || probe.Doc.Source != path {
			t.Errorf("unexpected document %+v", probe.Doc)
		}
		if probe.Structured || probe.Fallback {
			t.Errorf("unexpected probe flags %+v", probe)
		}
	})

	t.Run("serialized artifact resumes", func(t *testing.T) {
		doc := document.New("old", "orig.txt", "Resume me")
		document.Set(doc, document.TokensKey, []document.Token{{Word: "Resume", Begin: 0, End: 6}})
		path := filepath.Join(dir, "b.ser.gz")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		w, _ := outputs.NewWriter(outputs.FormatSerialized, nil)
		if err := w.Write(f, doc, outputs.Options{}); err != nil {
			t.Fatal(err)
		}
		f.Close()

		probe, err := r.Read(context.Background(), Job{ID: "j2", Input: path})
		if err != nil {
			t.Fatal(err)
		}
		if !probe.Structured || probe.Fallback {
			t.Errorf("expected a structured read, got %+v", probe)
		}
		if probe.Doc.Text != "Resume me" || len(probe.Doc.Tokens()) != 1 || probe.Doc.ID != "j2" {
			t.Errorf("unexpected restored document %+v", probe.Doc)
		}
	})

	t.Run("text posing as serialized falls back", func(t *testing.T) {
		path := filepath.Join(dir, "c.ser.gz")
		if err := os.WriteFile(path, []byte("not gzip at all"), 0o644); err != nil {
			t.Fatal(err)
		}
		probe, err := r.Read(context.Background(), Job{ID: "j3", Input: path})
		if err != nil {
			t.Fatal(err)
		}
		if !probe.Fallback || probe.Doc.Text != "not gzip at all" {
			t.Errorf("expected raw text fallback, got %+v", probe)
		}
	})

	t.Run("truncated artifact is an error", func(t *testing.T) {
		doc := document.New("old", "orig.txt", "A damaged artifact must not become text.")
		document.Set(doc, document.TokensKey, []document.Token{{Word: "A", Begin: 0, End: 1}})
		var buf bytes.Buffer
		w, _ := outputs.NewWriter(outputs.FormatSerialized, nil)
		if err := w.Write(&buf, doc, outputs.Options{}); err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, "truncated.ser.gz")
		if err := os.WriteFile(path, buf.Bytes()[:buf.Len()/2], 0o644); err != nil {
			t.Fatal(err)
		}

		probe, err := r.Read(context.Background(), Job{ID: "j5", Input: path})
		if !errors.Is(err, outputs.ErrCorruptArtifact) {
			t.Fatalf("expected ErrCorruptArtifact, got err=%v probe=%+v", err, probe)
		}
		if probe.Doc != nil || probe.Fallback {
			t.Errorf("expected no fallback document, got %+v", probe)
		}
	})

	t.Run("missing serialized input is an error", func(t *testing.T) {
		_, err := r.Read(context.Background(), Job{ID: "j4", Input: filepath.Join(dir, "missing.ser.gz")})
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})

	t.Run("invalid pdf", func(t *testing.T) {
		path := filepath.Join(dir, "d.pdf")
		if err := os.WriteFile(path, []byte("plain"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := r.Read(context.Background(), Job{ID: "j5", Input: path}); err == nil {
			t.Error("expected an error for an invalid pdf")
		}
	})
}
