package scrape

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Generic reads Open Graph, Twitter card and standard meta tags plus any
// schema.org Recipe block.
type Generic struct {
	get getFunc
}

func (g *Generic) Fetch(ctx context.Context, rawURL string) (string, error) {
	doc, err := g.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return genericContent(doc, rawURL)
}

func genericContent(doc *goquery.Document, rawURL string) (string, error) {
	title := firstNonEmpty(
		metaProperty(doc, "og:title"),
		metaName(doc, "twitter:title"),
		titleTag(doc),
	)
	description := firstNonEmpty(
		metaProperty(doc, "og:description"),
		metaName(doc, "description"),
		metaName(doc, "twitter:description"),
	)
	keywords := metaName(doc, "keywords")

	if title == "" && description == "" {
		return "", fmt.Errorf("%w: could not extract content from URL", ErrNoContent)
	}

	lines := []string{
		"Video/Recipe Title: " + title,
		"Description: " + description,
		"Keywords: " + keywords,
	}
	if r, ok := findRecipe(jsonLDBlocks(doc)); ok {
		lines = append(lines, r.summary())
	}
	lines = append(lines, "Video URL: "+rawURL)
	return strings.Join(lines, "\n"), nil
}
