package config

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/textpipe/internal/pipeline"
)

// Config holds textpipe configuration.
// Stored at: {home}/config.yaml
type Config struct {
	// Annotators lists the pipeline stages in order. A single
	// comma-separated string is accepted too.
	Annotators          []string `mapstructure:"annotators" yaml:"annotators"`
	EnforceRequirements bool     `mapstructure:"enforce_requirements" yaml:"enforce_requirements"`

	// Stages holds per-stage options, flattened to "<stage>.<option>".
	Stages map[string]map[string]any `mapstructure:"stages" yaml:"stages"`

	Batch BatchConfig `mapstructure:"batch" yaml:"batch"`
	Index IndexConfig `mapstructure:"index" yaml:"index"`
}

// BatchConfig holds batch processing knobs.
type BatchConfig struct {
	OutputDirectory  string `mapstructure:"output_directory" yaml:"output_directory"`
	InputDirectory   string `mapstructure:"input_directory" yaml:"input_directory"`
	OutputFormat     string `mapstructure:"output_format" yaml:"output_format"`       // text, xml, json, conll, serialized
	OutputExtension  string `mapstructure:"output_extension" yaml:"output_extension"` // Overrides the format default
	ReplaceExtension bool   `mapstructure:"replace_extension" yaml:"replace_extension"`
	NoClobber        bool   `mapstructure:"no_clobber" yaml:"no_clobber"`
	Randomize        bool   `mapstructure:"randomize" yaml:"randomize"`
	Seed             int64  `mapstructure:"seed" yaml:"seed"`
	ContinueOnError  bool   `mapstructure:"continue_on_error" yaml:"continue_on_error"`
	Threads          int    `mapstructure:"threads" yaml:"threads"`
	ExcludeFiles     string `mapstructure:"exclude_files" yaml:"exclude_files"` // File of base names to skip
	Extension        string `mapstructure:"extension" yaml:"extension"`         // Filter for directory walks
	Serializer       string `mapstructure:"serializer" yaml:"serializer"`       // gob or json
	InputSerializer  string `mapstructure:"input_serializer" yaml:"input_serializer"`
	OutputSerializer string `mapstructure:"output_serializer" yaml:"output_serializer"`
	PDFToText        string `mapstructure:"pdftotext" yaml:"pdftotext"`
}

// IndexConfig configures the sqlite document index.
type IndexConfig struct {
	// Path to the index database. Empty disables indexing.
	Path string `mapstructure:"path" yaml:"path"`
}

// Names returns the configured stage names in order.
func (c *Config) Names() []string {
	return pipeline.ParseNames(strings.Join(c.Annotators, ","))
}

// Validate checks that the configuration can build a pipeline.
func (c *Config) Validate() error {
	if len(c.Names()) == 0 {
		return fmt.Errorf("%w: annotators", pipeline.ErrMissingProperty)
	}
	return nil
}

// Properties flattens the stage options into "<stage>.<option>" properties.
// ${ENV_VAR} references are resolved.
func (c *Config) Properties() pipeline.Properties {
	props := make(pipeline.Properties)
	for stage, opts := range c.Stages {
		for key, value := range opts {
			props[stage+"."+key] = ResolveEnvVars(propertyString(value))
		}
	}
	return props
}

// InputSerializerName returns the serializer used to read inputs.
func (b BatchConfig) InputSerializerName() string {
	if b.InputSerializer != "" {
		return b.InputSerializer
	}
	return b.Serializer
}

// OutputSerializerName returns the serializer used to write outputs.
func (b BatchConfig) OutputSerializerName() string {
	if b.OutputSerializer != "" {
		return b.OutputSerializer
	}
	return b.Serializer
}

func propertyString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = propertyString(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

// ParseOverrides parses "key=value" pairs into properties.
func ParseOverrides(pairs []string) (pipeline.Properties, error) {
	props := make(pipeline.Properties, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q: want key=value", pair)
		}
		props[key] = value
	}
	return props, nil
}

// Merge returns props with overrides applied on top.
func Merge(props, overrides pipeline.Properties) pipeline.Properties {
	out := make(pipeline.Properties, len(props)+len(overrides))
	for k, v := range props {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
