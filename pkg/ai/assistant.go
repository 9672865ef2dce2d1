package ai

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var aiFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gema",
	Subsystem: "ai",
	Name:      "fallbacks_total",
	Help:      "Number of AI operations that returned fallback content",
}, []string{"operation"})

// Assistant wraps a Generator with the content operations used by the
// platform. Every operation degrades to a deterministic fallback instead of
// returning an error.
type Assistant struct {
	gen    Generator
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewAssistant constructs an assistant. A nil generator behaves like an
// unconfigured model.
func NewAssistant(gen Generator, logger zerolog.Logger) *Assistant {
	return &Assistant{
		gen:    gen,
		logger: logger.With().Str("component", "ai_assistant").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-autograder/pkg/ai"),
	}
}

func (a *Assistant) generate(ctx context.Context, operation, prompt string) (string, error) {
	ctx, span := a.tracer.Start(ctx, "ai."+operation, trace.WithAttributes(
		attribute.String("operation", operation),
	))
	defer span.End()

	if a.gen == nil {
		return "", ErrNotConfigured
	}
	return a.gen.Generate(ctx, prompt)
}

func (a *Assistant) fallback(operation string, err error, raw string) {
	aiFallbacks.WithLabelValues(operation).Inc()

	event := a.logger.Error()
	if errors.Is(err, ErrNotConfigured) {
		event = a.logger.Warn()
	}
	event = event.Err(err).Str("operation", operation)
	if raw != "" {
		event = event.Str("raw_response", truncate(raw, 2000))
	}
	event.Msgf("%s fell back to default content", operation)
}
