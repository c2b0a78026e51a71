package scrape

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var spaceRe = regexp.MustCompile(`\s+`)

func norm(s string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

func metaName(doc *goquery.Document, name string) string {
	v, _ := doc.Find(fmt.Sprintf(`meta[name="%s"]`, name)).First().Attr("content")
	return norm(v)
}

func metaProperty(doc *goquery.Document, property string) string {
	v, _ := doc.Find(fmt.Sprintf(`meta[property="%s"]`, property)).First().Attr("content")
	return norm(v)
}

func titleTag(doc *goquery.Document) string {
	return norm(doc.Find("title").First().Text())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
