package pipeline

import (
	"log/slog"
	"strings"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
)

// Builder turns an ordered list of stage names into a validated Pipeline.
type Builder struct {
	cache  *Cache
	logger *slog.Logger
}

// NewBuilder creates a builder that draws stages from cache.
func NewBuilder(cache *Cache, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cache: cache, logger: logger.With("component", "pipeline_builder")}
}

// Build fetches or constructs each named stage in order. When enforce is set,
// each stage's requirements must be covered by what the stages before it
// provide; the first violation fails the build naming the stage and the
// missing capability. Blank names are skipped. Build never returns a partial
// pipeline.
func (b *Builder) Build(names []string, props Properties, enforce bool) (*Pipeline, error) {
	satisfied := make(capability.Set)
	stages := make([]Stage, 0, len(names))
	mode := document.NewlineNever
	segmented := false

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}

		s, err := b.cache.Get(name, props)
		if err != nil {
			return nil, err
		}

		if enforce {
			if missing, ok := s.Requires().FirstMissing(satisfied); ok {
				return nil, &RequirementError{Stage: name, Missing: missing}
			}
		}

		provides := s.Provides()
		satisfied.Add(provides)
		if provides.Has(capability.SentenceSplit) {
			segmented = true
			if m, ok := s.(NewlineModer); ok {
				mode = m.NewlineMode()
			}
		}
		stages = append(stages, s)
		b.logger.Debug("added stage", "stage", name, "requires", s.Requires().String(), "provides", provides.String())
	}

	if len(stages) == 0 {
		return nil, ErrEmptyPipeline
	}
	if !segmented {
		b.logger.Debug("no sentence splitter configured; documents are presented as one sentence")
	}

	return newPipeline(stages, satisfied, mode), nil
}

// ParseNames splits a comma or whitespace separated stage list.
func ParseNames(list string) []string {
	return strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
