package ai

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

type Category string

const (
	CategoryProduce Category = "produce"
	CategoryDairy   Category = "dairy"
	CategoryMeat    Category = "meat"
	CategoryPantry  Category = "pantry"
	CategoryFrozen  Category = "frozen"
	CategoryBakery  Category = "bakery"
	CategorySpices  Category = "spices"
	CategoryOther   Category = "other"
)

// Categories is the closed set the model is asked to pick from.
var Categories = []Category{
	CategoryProduce, CategoryDairy, CategoryMeat, CategoryPantry,
	CategoryFrozen, CategoryBakery, CategorySpices, CategoryOther,
}

// Known reports whether c is one of Categories. Generated categories are
// stored as given; this is only used for display.
func (c Category) Known() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

type Ingredient struct {
	Item     string   `json:"item" jsonschema:"required"`
	Amount   string   `json:"amount,omitempty"`
	Category Category `json:"category,omitempty" jsonschema:"enum=produce,enum=dairy,enum=meat,enum=pantry,enum=frozen,enum=bakery,enum=spices,enum=other"`
}

type Servings int

// parseServings accepts a number or a string with a leading number ("4",
// "4-6" -> 4). Anything else is dropped rather than failing the recipe.
func parseServings(raw json.RawMessage) *Servings {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		s := Servings(n)
		return &s
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil
	}
	str = strings.TrimSpace(str)
	end := 0
	for end < len(str) && str[end] >= '0' && str[end] <= '9' {
		end++
	}
	v, err := strconv.Atoi(str[:end])
	if err != nil {
		return nil
	}
	s := Servings(v)
	return &s
}

type Recipe struct {
	ID           string       `json:"id,omitempty" jsonschema:"-"`
	Title        string       `json:"title" jsonschema:"required"`
	Servings     *Servings    `json:"servings,omitempty"`
	PrepTime     string       `json:"prepTime,omitempty"`
	CookTime     string       `json:"cookTime,omitempty"`
	Ingredients  []Ingredient `json:"ingredients" jsonschema:"required"`
	Instructions []string     `json:"instructions" jsonschema:"required"`
	Tags         []string     `json:"tags,omitempty"`
	ImageURL     *string      `json:"imageUrl,omitempty"`
	SourceURL    string       `json:"sourceUrl,omitempty" jsonschema:"-"`
	AddedDate    string       `json:"addedDate,omitempty" jsonschema:"-"`
}

func (r *Recipe) UnmarshalJSON(b []byte) error {
	type plain Recipe
	var p struct {
		plain
		Servings json.RawMessage `json:"servings"`
	}
	err := json.Unmarshal(b, &p)
	var typeErr *json.UnmarshalTypeError
	if err != nil && !errors.As(err, &typeErr) {
		return err
	}
	*r = Recipe(p.plain)
	r.Servings = parseServings(p.Servings)
	return err
}

// Validate is the boundary check applied right after decoding a generated
// recipe. Individual ingredient fields are trusted as given.
func (r *Recipe) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return validationError("Recipe missing title")
	}
	if len(r.Ingredients) == 0 {
		return validationError("Recipe missing ingredients")
	}
	if len(r.Instructions) == 0 {
		return validationError("Recipe missing instructions")
	}
	return nil
}

// Stamp assigns the identity fields once a recipe is accepted for storage.
func (r *Recipe) Stamp(sourceURL string, now time.Time) {
	r.ID = strconv.FormatInt(now.UnixMilli(), 10)
	r.SourceURL = sourceURL
	r.AddedDate = now.UTC().Format(time.RFC3339Nano)
}

// DecodeRecipe parses generated text into a validated recipe, tolerating a
// surrounding markdown code fence.
func DecodeRecipe(text string) (*Recipe, error) {
	cleaned := stripCodeFence(text)
	var recipe Recipe
	if err := json.Unmarshal([]byte(cleaned), &recipe); err != nil {
		// a wrongly typed field still decodes the rest, so report what is missing first
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if verr := recipe.Validate(); verr != nil {
				return nil, verr
			}
		}
		return nil, &Error{Kind: ErrInvalidRecipe, Message: "Invalid recipe format: " + err.Error(), Err: err}
	}
	if err := recipe.Validate(); err != nil {
		return nil, err
	}
	return &recipe, nil
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimPrefix(trimmed, "json")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
