package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	critiqueDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "inklaunch",
		Subsystem: "ai",
		Name:      "critique_duration_seconds",
		Help:      "Duration of manuscript critique requests",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"model"})

	critiqueFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inklaunch",
		Subsystem: "ai",
		Name:      "critique_failures_total",
		Help:      "Number of failed manuscript critique requests",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI critic.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAICritic implements Critic against the OpenAI chat completion API.
type OpenAICritic struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAICritic builds a critic using the provided configuration.
func NewOpenAICritic(cfg OpenAIConfig) (*OpenAICritic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1500
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAICritic{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/inklaunch-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_critic").Logger(),
	}, nil
}

// Critique sends the manuscript to OpenAI and returns the raw response text.
func (c *OpenAICritic) Critique(parent context.Context, req CritiqueRequest) (Critique, error) {
	ctx, span := c.tracer.Start(parent, "openai.critique", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.Int("manuscript.word_count", req.WordCount),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: criticSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: buildCritiquePrompt(req)},
		},
	})
	duration := time.Since(start)
	critiqueDuration.WithLabelValues(c.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		return Critique{}, c.fail(span, fmt.Errorf("openai critique: %w", err))
	}

	if len(resp.Choices) == 0 {
		return Critique{}, c.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return Critique{}, c.fail(span, fmt.Errorf("empty critique returned from openai"))
	}

	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}

	c.logger.Debug().
		Str("model", model).
		Dur("duration", duration).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("critique completed")

	return Critique{Text: content, ModelVersion: model, Duration: duration}, nil
}

func (c *OpenAICritic) fail(span trace.Span, err error) error {
	critiqueFailures.WithLabelValues(c.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func criticSystemPrompt() string {
	return "You are an experienced literary competition judge. Assess the manuscript against each weighted criterion " +
		"on a 0-100 scale. Answer using exactly these section headers, each on its own line: CRITERION SCORES, " +
		"WEIGHTED OVERALL SCORE, CONFIDENCE, STRENGTHS, WEAKNESSES, DETAILED FEEDBACK."
}

func buildCritiquePrompt(req CritiqueRequest) string {
	keys := make([]string, 0, len(req.WeightedCriteria))
	for key := range req.WeightedCriteria {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder := strings.Builder{}
	builder.WriteString("# Manuscript\n")
	builder.WriteString(req.ManuscriptTitle)
	builder.WriteString("\n\n## Genre\n")
	builder.WriteString(req.Genre)
	builder.WriteString(fmt.Sprintf("\n\n## Word Count\n%d", req.WordCount))
	builder.WriteString("\n\n## Synopsis\n")
	builder.WriteString(req.Synopsis)
	builder.WriteString("\n\n## Evaluation Criteria\n")
	for _, key := range keys {
		builder.WriteString(fmt.Sprintf("- %s (weight %d%%)\n", key, req.WeightedCriteria[key]))
	}
	builder.WriteString("\nFormat:\n")
	builder.WriteString("CRITERION SCORES\n")
	for _, key := range keys {
		builder.WriteString(fmt.Sprintf("%s: <score> — <one sentence justification>\n", key))
	}
	builder.WriteString("WEIGHTED OVERALL SCORE: <0-100>\n")
	builder.WriteString("CONFIDENCE: <0-100>%\n")
	builder.WriteString("STRENGTHS\n- <strength>\n")
	builder.WriteString("WEAKNESSES\n- <weakness>\n")
	builder.WriteString("DETAILED FEEDBACK\n<two or three paragraphs>\n")
	return builder.String()
}
