package scrape

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
)

// jsonLDBlocks decodes every ld+json script, skipping ones that do not parse.
func jsonLDBlocks(doc *goquery.Document) []any {
	var blocks []any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err == nil {
			blocks = append(blocks, v)
		}
	})
	return blocks
}

type schemaRecipe struct {
	Name         string
	Ingredients  []string
	Instructions []string
}

func (r schemaRecipe) summary() string {
	return strings.Join([]string{
		"Recipe Name: " + r.Name,
		"Ingredients: " + strings.Join(r.Ingredients, ", "),
		"Instructions: " + strings.Join(r.Instructions, " "),
	}, "\n")
}

// findRecipe returns the first schema.org Recipe among blocks, looking into
// top-level arrays and @graph containers.
func findRecipe(blocks []any) (schemaRecipe, bool) {
	for _, b := range blocks {
		switch v := b.(type) {
		case map[string]any:
			if isRecipe(v) {
				return decodeRecipe(v), true
			}
			if graph, ok := v["@graph"].([]any); ok {
				if r, ok := findRecipe(graph); ok {
					return r, true
				}
			}
		case []any:
			if r, ok := findRecipe(v); ok {
				return r, true
			}
		}
	}
	return schemaRecipe{}, false
}

func isRecipe(m map[string]any) bool {
	switch t := m["@type"].(type) {
	case string:
		return strings.EqualFold(t, "Recipe")
	case []any:
		return lo.ContainsBy(t, func(v any) bool {
			s, ok := v.(string)
			return ok && strings.EqualFold(s, "Recipe")
		})
	}
	return false
}

func decodeRecipe(m map[string]any) schemaRecipe {
	var ingredients []string
	if list, ok := m["recipeIngredient"].([]any); ok {
		ingredients = lo.FilterMap(list, func(v any, _ int) (string, bool) {
			s, ok := v.(string)
			return norm(s), ok && norm(s) != ""
		})
	}
	return schemaRecipe{
		Name:         stringValue(m["name"]),
		Ingredients:  ingredients,
		Instructions: flattenInstructions(m["recipeInstructions"]),
	}
}

// flattenInstructions accepts plain strings, HowToStep objects with text and
// HowToSection objects holding more steps.
func flattenInstructions(v any) []string {
	var out []string
	switch val := v.(type) {
	case string:
		if s := norm(val); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, step := range val {
			out = append(out, flattenInstructions(step)...)
		}
	case map[string]any:
		if items, ok := val["itemListElement"]; ok {
			out = append(out, flattenInstructions(items)...)
		} else if s := norm(stringValue(val["text"])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
