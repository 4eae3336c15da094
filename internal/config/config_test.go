package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/jackzampolin/textpipe/internal/pipeline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Batch.OutputFormat != "xml" {
		t.Errorf("expected xml default format, got %s", cfg.Batch.OutputFormat)
	}
	if cfg.Batch.Threads != 1 {
		t.Errorf("expected 1 thread, got %d", cfg.Batch.Threads)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestConfig_Properties(t *testing.T) {
	t.Setenv("TEST_SENTIMENT_KEY", "sk-123")

	cfg := &Config{
		Stages: map[string]map[string]any{
			"ssplit":    {"newline_is_sentence_break": "always"},
			"tokenize":  {"lowercase": true},
			"sentiment": {"api_key": "${TEST_SENTIMENT_KEY}", "max_repairs": 3},
			"phrases":   {"dict": []any{"a.txt", "b.txt"}},
		},
	}

	props := cfg.Properties()
	want := map[string]string{
		"ssplit.newline_is_sentence_break": "always",
		"tokenize.lowercase":               "true",
		"sentiment.api_key":                "sk-123",
		"sentiment.max_repairs":            "3",
		"phrases.dict":                     "a.txt,b.txt",
	}
	for k, v := range want {
		if props[k] != v {
			t.Errorf("%s: expected %q, got %q", k, v, props[k])
		}
	}
	if len(props) != len(want) {
		t.Errorf("expected %d properties, got %d", len(want), len(props))
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{Annotators: []string{" , "}}
	if err := cfg.Validate(); !errors.Is(err, pipeline.ErrMissingProperty) {
		t.Errorf("expected ErrMissingProperty, got %v", err)
	}

	cfg.Annotators = []string{"tokenize, ssplit", "lemma"}
	names := cfg.Names()
	if len(names) != 3 || names[0] != "tokenize" || names[2] != "lemma" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestSerializerNames(t *testing.T) {
	b := BatchConfig{Serializer: "gob"}
	if b.InputSerializerName() != "gob" || b.OutputSerializerName() != "gob" {
		t.Error("expected both serializers to fall back to gob")
	}
	b.InputSerializer = "json"
	if b.InputSerializerName() != "json" || b.OutputSerializerName() != "gob" {
		t.Error("expected input serializer override only")
	}
}

func TestParseOverrides(t *testing.T) {
	props, err := ParseOverrides([]string{"tokenize.lowercase=true", "ner.gazetteer=a=b.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	if props["tokenize.lowercase"] != "true" || props["ner.gazetteer"] != "a=b.yaml" {
		t.Errorf("unexpected overrides %v", props)
	}

	if _, err := ParseOverrides([]string{"novalue"}); err == nil {
		t.Error("expected error for missing '='")
	}

	merged := Merge(pipeline.Properties{"a": "1", "b": "1"}, props)
	if merged["a"] != "1" || merged["tokenize.lowercase"] != "true" {
		t.Errorf("unexpected merge %v", merged)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
annotators: [tokenize, ssplit, ner]
stages:
  ner:
    gazetteer: people.yaml
batch:
  threads: 4
  output_format: json
`)

		mgr, err := NewManager(configFile, "")
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if got := cfg.Names(); len(got) != 3 || got[2] != "ner" {
			t.Errorf("unexpected annotators %v", got)
		}
		if cfg.Batch.Threads != 4 || cfg.Batch.OutputFormat != "json" {
			t.Errorf("unexpected batch config %+v", cfg.Batch)
		}
		if cfg.Batch.Serializer != "gob" {
			t.Errorf("expected default serializer, got %s", cfg.Batch.Serializer)
		}
		props := cfg.Properties()
		if props["ner.gazetteer"] != "people.yaml" {
			t.Errorf("expected ner.gazetteer from file, got %q", props["ner.gazetteer"])
		}
		if props["ssplit.newline_is_sentence_break"] != "two" {
			t.Errorf("expected default ssplit option, got %q", props["ssplit.newline_is_sentence_break"])
		}
		if mgr.ConfigFile() != configFile {
			t.Errorf("expected %s in use, got %s", configFile, mgr.ConfigFile())
		}
	})

	t.Run("file stage options merge with defaults", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-default")
		mgr, err := NewManager(writeConfig(t, `
annotators: [tokenize, ssplit]
stages:
  ssplit:
    extra: "1"
  tokenize:
    lowercase: true
`), "")
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		props := mgr.Get().Properties()
		want := map[string]string{
			"ssplit.newline_is_sentence_break": "two",
			"ssplit.extra":                     "1",
			"tokenize.lowercase":               "true",
			"sentiment.api_key":                "sk-default",
		}
		for k, v := range want {
			if props[k] != v {
				t.Errorf("%s: expected %q, got %q", k, v, props[k])
			}
		}
	})

	t.Run("file overrides a default stage option", func(t *testing.T) {
		mgr, err := NewManager(writeConfig(t, `
annotators: [tokenize, ssplit]
stages:
  ssplit:
    newline_is_sentence_break: always
`), "")
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Properties()["ssplit.newline_is_sentence_break"]; got != "always" {
			t.Errorf("expected always, got %q", got)
		}
	})

	t.Run("defaults without file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if !mgr.Get().EnforceRequirements {
			t.Error("expected enforce_requirements default true")
		}
		if mgr.ConfigFile() != "" {
			t.Errorf("expected no config file, got %s", mgr.ConfigFile())
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("TEXTPIPE_BATCH_THREADS", "8")
		mgr, err := NewManager(writeConfig(t, "annotators: [tokenize]\n"), "")
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if mgr.Get().Batch.Threads != 8 {
			t.Errorf("expected 8 threads from env, got %d", mgr.Get().Batch.Threads)
		}
	})

	t.Run("missing annotators", func(t *testing.T) {
		_, err := NewManager(writeConfig(t, "annotators: \"\"\n"), "")
		if !errors.Is(err, pipeline.ErrMissingProperty) {
			t.Errorf("expected ErrMissingProperty, got %v", err)
		}
	})
}

func TestManager_BindPFlag(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "annotators: [tokenize]\n"), "")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("threads", 1, "")
	if err := mgr.BindPFlag("batch.threads", flags.Lookup("threads")); err != nil {
		t.Fatal(err)
	}
	if err := flags.Parse([]string{"--threads", "6"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := mgr.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Batch.Threads != 6 || mgr.Get().Batch.Threads != 6 {
		t.Errorf("expected flag value 6, got %d", cfg.Batch.Threads)
	}

	if err := mgr.BindPFlag("batch.seed", nil); err == nil {
		t.Error("expected error binding nil flag")
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	mgr, err := NewManager(path, "")
	if err != nil {
		t.Fatalf("failed to load written default: %v", err)
	}
	cfg := mgr.Get()
	if names := cfg.Names(); len(names) != 2 || names[0] != "tokenize" || names[1] != "ssplit" {
		t.Errorf("unexpected annotators %v", names)
	}
	if cfg.Batch.PDFToText != "pdftotext" {
		t.Errorf("expected pdftotext default, got %q", cfg.Batch.PDFToText)
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "annotators: [tokenize]\n"), "")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "annotators: [tokenize]\n"), "")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = mgr.Get().Names()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, "annotators: [tokenize]\n")

	mgr, err := NewManager(configFile, "")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var callbackCount atomic.Int32

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("annotators: [tokenize, ssplit, lemma]\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 && len(mgr.Get().Names()) == 3 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := len(mgr.Get().Names()); got != 3 {
		t.Errorf("config not updated: expected 3 annotators, got %d", got)
	}
}
