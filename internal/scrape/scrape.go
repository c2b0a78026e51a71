// Package scrape turns a recipe or video URL into a short plain-text summary
// (title, description, structured recipe data) for the model. No HTML is
// passed on.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// UserAgent is a desktop browser string. YouTube serves a bot page without it.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

const maxPageBytes = 5 << 20

const extractionMessage = "Could not extract video content. Please ensure the URL is valid and accessible."

var tracer = otel.Tracer("cookflow/internal/scrape")

var videoIDRe = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&\s?#]+)`)

// ExtractionError is returned for every fetch failure. Its message is the
// one shown to users; the cause is available through errors.Unwrap.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string { return extractionMessage }

func (e *ExtractionError) Unwrap() error { return e.Err }

var (
	ErrUnsupportedURL = errors.New("unsupported url")
	ErrNoContent      = errors.New("no title or description found")
)

type Kind int

const (
	KindGeneric Kind = iota
	KindYouTube
)

func (k Kind) String() string {
	if k == KindYouTube {
		return "youtube"
	}
	return "generic"
}

// Classify picks the strategy for rawURL.
func Classify(rawURL string) Kind {
	if _, ok := VideoID(rawURL); ok {
		return KindYouTube
	}
	return KindGeneric
}

// VideoID isolates the id from youtube.com/watch?v=ID or youtu.be/ID links.
func VideoID(rawURL string) (string, bool) {
	m := videoIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

type Options struct {
	Timeout time.Duration
	Retries int
	// Rate is requests per second across all fetches. Zero disables limiting.
	Rate float64
}

// Fetcher dispatches between the YouTube and generic strategies.
type Fetcher struct {
	client  *retryablehttp.Client
	limiter *rate.Limiter
	youtube *YouTube
	generic *Generic
}

var _ ContentFetcher = (*Fetcher)(nil)

func New(opts Options) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.Retries
	client.Logger = slog.Default()
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	f := &Fetcher{client: client, limiter: limiter}
	f.youtube = &YouTube{get: f.get, WatchURL: "https://www.youtube.com/watch?v="}
	f.generic = &Generic{get: f.get}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	kind := Classify(rawURL)
	ctx, span := tracer.Start(ctx, "scrape.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("scrape.kind", kind.String()))

	var content string
	var err error
	if kind == KindYouTube {
		content, err = f.youtube.Fetch(ctx, rawURL)
	} else {
		content, err = f.generic.Fetch(ctx, rawURL)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Error getting video content", "url", rawURL, "kind", kind.String(), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return "", &ExtractionError{URL: rawURL, Err: err}
	}
	return content, nil
}

type getFunc func(ctx context.Context, rawURL string) (*goquery.Document, error)

func (f *Fetcher) get(ctx context.Context, rawURL string) (*goquery.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(b))
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}
