package ai

import (
	"context"
	"errors"
	"fmt"
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

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "completion_duration_seconds",
		Help:      "Duration of AI completion requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "completion_failures_total",
		Help:      "Number of AI completion failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the chat completion backend.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIBackend implements Backend against any OpenAI-compatible chat
// completion API.
type OpenAIBackend struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIBackend builds a new backend using the provided configuration.
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("ai api key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-autograder/pkg/ai/openai"),
		logger: logger,
	}, nil
}

// Complete sends a single-message chat completion to model.
func (b *OpenAIBackend) Complete(parent context.Context, model, prompt string) (string, error) {
	ctx, span := b.tracer.Start(parent, "ai.complete", trace.WithAttributes(
		attribute.String("model", model),
	))
	defer span.End()

	start := time.Now()
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   b.cfg.MaxTokens,
		Temperature: b.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	aiDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", b.fail(span, model, fmt.Errorf("ai complete: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", b.fail(span, model, errors.New("no choices returned from model"))
	}

	span.SetAttributes(attribute.Int("tokens.total", resp.Usage.TotalTokens))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (b *OpenAIBackend) fail(span trace.Span, model string, err error) error {
	aiFailures.WithLabelValues(model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	b.logger.Debug().Err(err).Str("model", model).Msg("completion failed")
	return err
}
