package ai

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"cookflow/internal/config"
)

var tracer = otel.Tracer("cookflow/internal/ai")

// Generator turns a prompt into the raw text of the first generated candidate.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewGenerator picks the backend named in cfg.
func NewGenerator(ctx context.Context, cfg config.GeminiConfig) (Generator, error) {
	switch cfg.Backend {
	case "", "rest":
		return NewRESTClient(cfg.APIKey, cfg.Model, cfg.Endpoint, cfg.StrictSchema), nil
	case "sdk":
		return NewSDKClient(ctx, cfg.APIKey, cfg.Model, cfg.Endpoint)
	case "mock":
		return Mock{}, nil
	default:
		return nil, fmt.Errorf("unknown gemini backend %q", cfg.Backend)
	}
}

type Extractor struct {
	gen Generator
}

func NewExtractor(gen Generator) *Extractor {
	return &Extractor{gen: gen}
}

// Extract asks the model for a recipe from fetched page text. Nothing is
// retried; the caller stamps ID, SourceURL and AddedDate.
func (e *Extractor) Extract(ctx context.Context, content string) (*Recipe, error) {
	ctx, span := tracer.Start(ctx, "ai.Extract")
	defer span.End()

	text, err := e.gen.Generate(ctx, BuildPrompt(content))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return nil, err
	}
	recipe, err := DecodeRecipe(text)
	if err != nil {
		slog.WarnContext(ctx, "model returned unusable recipe", "error", err, "length", len(text))
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("recipe.title", recipe.Title),
		attribute.Int("recipe.ingredients", len(recipe.Ingredients)),
	)
	return recipe, nil
}

// ExtractRecipe is the one-shot form against the public Gemini API.
func ExtractRecipe(ctx context.Context, content, apiKey, model string) (*Recipe, error) {
	if model == "" {
		model = config.DefaultGeminiModel
	}
	return NewExtractor(NewRESTClient(apiKey, model, "", false)).Extract(ctx, content)
}
