package config

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Annotators:          []string{"tokenize", "ssplit"},
		EnforceRequirements: true,
		Stages: map[string]map[string]any{
			"ssplit": {
				"newline_is_sentence_break": "two",
			},
			"sentiment": {
				"api_key": "${OPENAI_API_KEY}",
			},
		},
		Batch: BatchConfig{
			OutputDirectory: ".",
			OutputFormat:    "xml",
			Threads:         1,
			Serializer:      "gob",
			PDFToText:       "pdftotext",
		},
	}
}
