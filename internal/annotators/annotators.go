// Package annotators provides the built-in pipeline stages.
//
// Every stage here is deterministic and safe for concurrent Apply calls.
// Resources named by properties (stop lists, dictionaries, gazetteers) are
// loaded once at construction.
package annotators

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

// Factories returns every built-in stage factory in the order they are
// usually run.
func Factories() []pipeline.Factory {
	return []pipeline.Factory{
		cleanXMLFactory(),
		tokenizeFactory(),
		ssplitFactory(),
		lemmaFactory(),
		stopwordsFactory(),
		phrasesFactory(),
		nerFactory(),
		categoriesFactory(),
		quoteFactory(),
		sentimentFactory(),
	}
}

// Register adds every built-in stage to reg.
func Register(reg *pipeline.Registry) error {
	for _, f := range Factories() {
		if err := reg.Register(f); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in stages.
func NewRegistry() (*pipeline.Registry, error) {
	reg := pipeline.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// stage carries the identity shared by every built-in stage.
type stage struct {
	name     string
	requires capability.Set
	provides capability.Set
}

func (s stage) Name() string             { return s.name }
func (s stage) Requires() capability.Set { return s.requires }
func (s stage) Provides() capability.Set { return s.provides }

// loadYAML reads path into out.
func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
