package annotators

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/textpipe/internal/capability"
	"github.com/jackzampolin/textpipe/internal/document"
	"github.com/jackzampolin/textpipe/internal/pipeline"
)

const (
	defaultSentimentModel = "gpt-4o-mini"
	defaultMaxRepairs     = 2
)

// errInvalidOutput marks a model response that failed parsing or schema
// validation and may be repaired by asking again.
var errInvalidOutput = errors.New("invalid sentiment output")

const sentimentSchema = `{
  "type": "object",
  "required": ["label", "score", "sentences"],
  "properties": {
    "label": {"enum": ["positive", "negative", "neutral"]},
    "score": {"type": "number", "minimum": -1, "maximum": 1},
    "sentences": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["index", "label"],
        "properties": {
          "index": {"type": "integer", "minimum": 0},
          "label": {"enum": ["positive", "negative", "neutral"]}
        }
      }
    }
  }
}`

const sentimentSystemPrompt = `You label sentiment. Reply with ONLY a JSON object (no markdown, no commentary) matching this schema:
` + sentimentSchema + `
"label" and "score" describe the whole document (score from -1 negative to 1 positive). "sentences" has one entry per numbered input sentence.`

type sentimentResponse struct {
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	Sentences []struct {
		Index int    `json:"index"`
		Label string `json:"label"`
	} `json:"sentences"`
}

// SentimentConfig configures the sentiment stage.
type SentimentConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRepairs int
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
}

type sentimentTagger struct {
	stage
	client     openai.Client
	model      string
	maxRepairs int
	schema     *jsonschema.Schema
}

func sentimentFactory() pipeline.Factory {
	return pipeline.Factory{
		Name:        "sentiment",
		Description: "Label document and sentence sentiment with an OpenAI-compatible chat model",
		New: func(props pipeline.Properties) (pipeline.Stage, error) {
			return NewSentiment(SentimentConfig{
				APIKey:     os.ExpandEnv(props.Get("sentiment.api_key", "${OPENAI_API_KEY}")),
				BaseURL:    props.Get("sentiment.base_url", ""),
				Model:      props.Get("sentiment.model", ""),
				MaxRepairs: props.Int("sentiment.max_repairs", defaultMaxRepairs),
			})
		},
	}
}

// NewSentiment builds the sentiment stage.
func NewSentiment(cfg SentimentConfig) (pipeline.Stage, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sentiment.api_key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultSentimentModel
	}
	if cfg.MaxRepairs < 0 {
		cfg.MaxRepairs = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("sentiment.json", bytes.NewReader([]byte(sentimentSchema))); err != nil {
		return nil, fmt.Errorf("failed to load sentiment schema: %w", err)
	}
	schema, err := compiler.Compile("sentiment.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile sentiment schema: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(2),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &sentimentTagger{
		stage: stage{
			name:     "sentiment",
			requires: capability.Of(capability.Tokenize, capability.SentenceSplit),
			provides: capability.Of(capability.Sentiment),
		},
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		maxRepairs: cfg.MaxRepairs,
		schema:     schema,
	}, nil
}

// Apply labels the document and each sentence. A response that fails
// validation is sent back to the model with the problem, up to maxRepairs
// times. Transport errors are returned as is.
func (s *sentimentTagger) Apply(ctx context.Context, doc *document.Document) error {
	sents := doc.SentencesOrWhole()
	if len(sents) == 0 {
		document.Set(doc, document.SentimentKey, document.SentimentResult{Label: "neutral"})
		return nil
	}

	toks := doc.Tokens()
	var prompt strings.Builder
	for _, sent := range sents {
		begin, end := toks[sent.TokenBegin].Begin, toks[sent.TokenEnd-1].End
		fmt.Fprintf(&prompt, "%d: %s\n", sent.Index, strings.TrimSpace(doc.Text[begin:end]))
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(sentimentSystemPrompt),
		openai.UserMessage(prompt.String()),
	}

	var result sentimentResponse
	err := retry.Do(
		func() error {
			resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
				Model:       openai.ChatModel(s.model),
				Messages:    messages,
				Temperature: openai.Float(0),
			})
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("%w: no choices returned", errInvalidOutput)
			}
			content := resp.Choices[0].Message.Content
			parsed, verr := s.decode(content)
			if verr != nil {
				messages = append(messages,
					openai.AssistantMessage(content),
					openai.UserMessage(fmt.Sprintf("That reply was rejected: %v. Return ONLY the corrected JSON object.", verr)),
				)
				return fmt.Errorf("%w: %v", errInvalidOutput, verr)
			}
			result = parsed
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.maxRepairs+1)),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errInvalidOutput) }),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}

	labeled := make([]document.Sentence, len(doc.Sentences()))
	copy(labeled, doc.Sentences())
	for _, sl := range result.Sentences {
		if sl.Index >= 0 && sl.Index < len(labeled) {
			labeled[sl.Index].Sentiment = sl.Label
		}
	}
	if len(labeled) > 0 {
		document.Set(doc, document.SentencesKey, labeled)
	}
	document.Set(doc, document.SentimentKey, document.SentimentResult{Label: result.Label, Score: result.Score})
	return nil
}

// decode parses and validates one model reply.
func (s *sentimentTagger) decode(content string) (sentimentResponse, error) {
	var out sentimentResponse
	raw := extractJSONObject(content)
	if raw == "" {
		return out, errors.New("no JSON object found")
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return out, fmt.Errorf("malformed JSON: %w", err)
	}
	if err := s.schema.Validate(v); err != nil {
		return out, fmt.Errorf("does not match schema: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, err
	}
	return out, nil
}

// extractJSONObject strips markdown fences and surrounding prose.
func extractJSONObject(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return content[start : end+1]
}
