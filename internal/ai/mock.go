package ai

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/samber/lo"
)

// Mock answers every prompt with the same recipe. Used for local runs
// without a Gemini key.
type Mock struct{}

func (Mock) Generate(ctx context.Context, prompt string) (string, error) {
	slog.InfoContext(ctx, "mock generator answering", "prompt_length", len(prompt))
	servings := Servings(2)
	recipe := Recipe{
		Title:    "Glue Pizza",
		Servings: &servings,
		PrepTime: "10 minutes",
		CookTime: "15 minutes",
		Ingredients: []Ingredient{
			{Item: "dough", Amount: "1 lb", Category: CategoryBakery},
			{Item: "tomato sauce", Amount: "8 oz", Category: CategoryPantry},
			{Item: "glue", Amount: "1 oz"},
			{Item: "glue", Amount: "1 oz"},
			{Item: "cheese", Amount: "1/2 lb", Category: CategoryDairy},
		},
		Instructions: []string{
			"roll dough",
			"mix glue and sauce",
			"attach cheese to dough with sticky sauce",
			"bake that sucker",
		},
		Tags: []string{"dinner", "mock"},
	}
	return "```json\n" + string(lo.Must(json.Marshal(recipe))) + "\n```", nil
}
