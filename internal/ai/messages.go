package ai

import (
	"strings"
)

// recipePrompt wraps fetched page text with the extraction instructions. The
// model is asked for bare JSON but fenced replies are still accepted.
const recipePrompt = `Analyze this recipe video/content and extract recipe information.

{{content}}

Return ONLY a valid JSON object with this exact structure (no markdown, no backticks, no explanation):

{
  "title": "Recipe Name",
  "servings": 4,
  "prepTime": "15 mins",
  "cookTime": "30 mins",
  "ingredients": [
    {"item": "ingredient name", "amount": "2 cups", "category": "pantry"}
  ],
  "instructions": ["Step 1 description", "Step 2 description"],
  "tags": ["dinner", "easy"],
  "imageUrl": null
}

Valid categories: {{categories}}

Rules:
- Extract ALL ingredients mentioned with their amounts
- Create clear, numbered step-by-step instructions
- Infer reasonable values if exact amounts are missing
- Use appropriate categories for each ingredient
- Add relevant tags based on cuisine type, difficulty, meal type`

// BuildPrompt embeds content into the extraction instructions.
func BuildPrompt(content string) string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	r := strings.NewReplacer(
		"{{content}}", content,
		"{{categories}}", strings.Join(names, ", "),
	)
	return r.Replace(recipePrompt)
}
