package recipes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"cookflow/internal/ai"
	"cookflow/internal/billing"
	"cookflow/internal/quota"
	"cookflow/internal/scrape"
)

var tracer = otel.Tracer("cookflow/internal/recipes")

var (
	ErrEmptyURL      = errors.New("empty video url")
	ErrMissingAPIKey = errors.New("gemini api key not configured")
)

const (
	emptyURLMessage      = "Please enter a video URL"
	missingAPIKeyMessage = "Missing Gemini API key. Add EXPO_PUBLIC_GEMINI_API_KEY to .env"
)

// QuotaExceededError means the free plan is used up for the month. Callers
// show the paywall instead of an error.
type QuotaExceededError struct {
	Decision quota.Decision
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("free extractions used up for this month (%d of %d)", e.Decision.Used, e.Decision.Limit)
}

type recipeExtractor interface {
	Extract(ctx context.Context, content string) (*ai.Recipe, error)
}

type Pipeline struct {
	fetcher   scrape.ContentFetcher
	extractor recipeExtractor
	quota     *quota.Gate
	billing   billing.Entitlements
	store     *Store
	apiKey    string
	now       func() time.Time
}

func NewPipeline(fetcher scrape.ContentFetcher, extractor recipeExtractor, gate *quota.Gate, ent billing.Entitlements, store *Store, apiKey string) *Pipeline {
	if ent == nil {
		ent = billing.Static(false)
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		quota:     gate,
		billing:   ent,
		store:     store,
		apiKey:    apiKey,
		now:       time.Now,
	}
}

type Request struct {
	URL    string `json:"url"`
	UserID string `json:"userId,omitempty"`
}

type Result struct {
	Recipe *ai.Recipe `json:"recipe"`
	// Saved is false when the recipe was extracted but could not be stored.
	Saved bool           `json:"saved"`
	Quota quota.Decision `json:"quota"`
	Pro   bool           `json:"pro"`
}

// Extract runs one URL through quota, fetch, generation and storage. Quota is
// consumed only once the recipe is stored; until then the free slot is held
// by a reservation so parallel requests cannot overrun the limit. Nothing is
// retried.
func (p *Pipeline) Extract(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "recipes.Extract")
	defer span.End()

	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, ErrEmptyURL
	}
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	span.SetAttributes(attribute.String("url", url), attribute.String("source", scrape.Classify(url).String()))

	pro := billing.CheckPro(ctx, p.billing, req.UserID)
	decision, slot := p.quota.Reserve(ctx, pro)
	if !decision.Allowed {
		slog.InfoContext(ctx, "free quota exhausted", "used", decision.Used, "limit", decision.Limit)
		return nil, &QuotaExceededError{Decision: decision}
	}
	defer slot.Release()

	content, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	recipe, err := p.extractor.Extract(ctx, content)
	if err != nil {
		slog.ErrorContext(ctx, "Extraction error", "url", url, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "extract failed")
		return nil, err
	}
	recipe.Stamp(url, p.now())

	res := &Result{Recipe: recipe, Quota: decision, Pro: pro}
	if err := p.store.SaveRecipe(ctx, *recipe); err != nil {
		slog.ErrorContext(ctx, "recipe extracted but not saved", "title", recipe.Title, "error", err)
		return res, nil
	}
	res.Saved = true

	if !pro {
		used, err := slot.Commit(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to record extraction", "error", err)
		} else {
			res.Quota.Used = used
			res.Quota.Allowed = used < res.Quota.Limit
		}
	}
	slog.InfoContext(ctx, "recipe extracted", "id", recipe.ID, "title", recipe.Title, "pro", pro)
	return res, nil
}

// UserMessage returns the message to show for an Extract failure.
func UserMessage(err error) string {
	var qe *QuotaExceededError
	var ee *scrape.ExtractionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyURL):
		return emptyURLMessage
	case errors.Is(err, ErrMissingAPIKey):
		return missingAPIKeyMessage
	case errors.As(err, &qe):
		return qe.Error()
	case errors.As(err, &ee):
		return ee.Error()
	default:
		return ai.UserMessage(err)
	}
}
