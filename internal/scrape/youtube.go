package scrape

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// YouTube reads the watch page for title and description.
type YouTube struct {
	get getFunc
	// WatchURL is the prefix the video id is appended to.
	WatchURL string
}

func (y *YouTube) Fetch(ctx context.Context, rawURL string) (string, error) {
	id, ok := VideoID(rawURL)
	if !ok {
		return "", fmt.Errorf("%w: invalid YouTube URL", ErrUnsupportedURL)
	}
	doc, err := y.get(ctx, y.WatchURL+id)
	if err != nil {
		return "", err
	}
	return youTubeContent(doc, rawURL)
}

func youTubeContent(doc *goquery.Document, rawURL string) (string, error) {
	title := strings.TrimSpace(strings.Replace(" "+titleTag(doc), " - YouTube", "", 1))
	description := metaName(doc, "description")
	structured := ""
	for _, block := range jsonLDBlocks(doc) {
		if obj, ok := block.(map[string]any); ok {
			structured = stringValue(obj["description"])
			break
		}
	}

	if title == "" && description == "" && structured == "" {
		return "", fmt.Errorf("%w: could not extract video information", ErrNoContent)
	}
	return strings.Join([]string{
		"Video Title: " + title,
		"Video Description: " + firstNonEmpty(description, structured),
		"Video URL: " + rawURL,
	}, "\n"), nil
}
