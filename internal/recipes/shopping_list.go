package recipes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/text/cases"

	"cookflow/internal/ai"
	"cookflow/internal/cache"
)

// GroceryEntry is one row of the grocery checklist.
type GroceryEntry struct {
	ID         string      `json:"id"`
	Item       string      `json:"item"`
	Amount     string      `json:"amount,omitempty"`
	Category   ai.Category `json:"category,omitempty"`
	Checked    bool        `json:"checked"`
	FromRecipe string      `json:"fromRecipe"`
}

// legacyIDPrefix marks ids derived for entries stored as bare strings.
const legacyIDPrefix = "legacy-"

// UnmarshalJSON also accepts a bare string, which older lists stored for
// items added by hand. Such entries get an id derived from the item so they
// can be toggled like any other row.
func (g *GroceryEntry) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*g = GroceryEntry{ID: legacyIDPrefix + s, Item: s}
		return nil
	}
	type plain GroceryEntry
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*g = GroceryEntry(p)
	return nil
}

func (g GroceryEntry) Label() string {
	return FormatGroceryItemLabel(g)
}

// Matcher maps an item to the key used to detect duplicates on merge.
type Matcher func(item string) string

// ExactMatch treats items as duplicates only when the text is identical.
func ExactMatch(item string) string { return item }

var folder = cases.Fold()

// FoldMatch ignores case and runs of whitespace.
func FoldMatch(item string) string {
	return folder.String(strings.Join(strings.Fields(item), " "))
}

func MatcherFor(name string) (Matcher, error) {
	switch name {
	case "", "exact":
		return ExactMatch, nil
	case "fold":
		return FoldMatch, nil
	default:
		return nil, fmt.Errorf("unknown grocery match %q", name)
	}
}

// MergeIngredients appends an entry for every ingredient of recipe whose item
// is not on existing yet. existing is not modified. Ingredients without an
// item are skipped and repeats within the recipe are added once.
func MergeIngredients(existing []GroceryEntry, recipe ai.Recipe, now time.Time, match Matcher) ([]GroceryEntry, int) {
	if match == nil {
		match = ExactMatch
	}
	seen := lo.SliceToMap(existing, func(g GroceryEntry) (string, struct{}) {
		return match(g.Item), struct{}{}
	})
	merged := make([]GroceryEntry, len(existing), len(existing)+len(recipe.Ingredients))
	copy(merged, existing)

	ms := now.UnixMilli()
	added := 0
	for _, ing := range recipe.Ingredients {
		if ing.Item == "" {
			continue
		}
		key := match(ing.Item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, GroceryEntry{
			ID:         fmt.Sprintf("%s-%s-%d", recipe.ID, ing.Item, ms),
			Item:       ing.Item,
			Amount:     ing.Amount,
			Category:   ing.Category,
			FromRecipe: recipe.Title,
		})
		added++
	}
	return merged, added
}

// AddToGroceryList merges recipe into the grocery list and records it in the
// added-recipes index. Both keys are written together.
func (s *Store) AddToGroceryList(ctx context.Context, recipe ai.Recipe) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.GroceryList(ctx)
	if err != nil {
		return 0, err
	}
	added, err := s.AddedRecipes(ctx)
	if err != nil {
		return 0, err
	}

	merged, n := MergeIngredients(list, recipe, s.now(), s.match)
	added = append(added, recipe.ID)

	listJSON := lo.Must(json.Marshal(merged))
	addedJSON := lo.Must(json.Marshal(added))
	err = s.cache.MultiSet(ctx, []cache.Entry{
		{Key: GroceryListKey, Value: string(listJSON)},
		{Key: AddedRecipesKey, Value: string(addedJSON)},
	})
	if err != nil {
		slog.ErrorContext(ctx, "Error adding to grocery list", "recipe", recipe.ID, "error", err)
		return 0, err
	}
	slog.InfoContext(ctx, "added to grocery list", "recipe", recipe.ID, "added", n, "total", len(merged))
	return n, nil
}

// ToggleItem flips the checked state of one entry and returns it.
func (s *Store) ToggleItem(ctx context.Context, id string) (*GroceryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.GroceryList(ctx)
	if err != nil {
		return nil, err
	}
	_, idx, ok := lo.FindIndexOf(list, func(g GroceryEntry) bool { return g.ID == id })
	if !ok {
		return nil, ErrItemNotFound
	}
	list[idx].Checked = !list[idx].Checked
	if err := s.save(ctx, GroceryListKey, list); err != nil {
		return nil, err
	}
	return &list[idx], nil
}

// ClearChecked drops checked entries and reports how many were removed.
func (s *Store) ClearChecked(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.GroceryList(ctx)
	if err != nil {
		return 0, err
	}
	kept := lo.Reject(list, func(g GroceryEntry, _ int) bool { return g.Checked })
	removed := len(list) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.save(ctx, GroceryListKey, kept)
}

type CategoryGroup struct {
	Category ai.Category    `json:"category"`
	Items    []GroceryEntry `json:"items"`
}

// GroupByCategory buckets entries by category, "other" when unset. Buckets
// appear in the order their first entry does.
func GroupByCategory(list []GroceryEntry) []CategoryGroup {
	var groups []CategoryGroup
	index := map[ai.Category]int{}
	for _, g := range list {
		cat := g.Category
		if cat == "" {
			cat = ai.CategoryOther
		}
		i, ok := index[cat]
		if !ok {
			i = len(groups)
			index[cat] = i
			groups = append(groups, CategoryGroup{Category: cat})
		}
		groups[i].Items = append(groups[i].Items, g)
	}
	return groups
}

// FormatGroceryItemLabel renders a string as is, or an entry or ingredient as
// "amount item".
func FormatGroceryItemLabel(v any) string {
	var amount, item string
	switch t := v.(type) {
	case string:
		return t
	case GroceryEntry:
		amount, item = t.Amount, t.Item
	case *GroceryEntry:
		amount, item = t.Amount, t.Item
	case ai.Ingredient:
		amount, item = t.Amount, t.Item
	case map[string]any:
		amount, _ = t["amount"].(string)
		item, _ = t["item"].(string)
	default:
		return ""
	}
	if amount != "" {
		amount += " "
	}
	return strings.TrimSpace(amount + item)
}

type Summary struct {
	Total     int `json:"total"`
	Unchecked int `json:"unchecked"`
}

func Summarize(list []GroceryEntry) Summary {
	return Summary{
		Total:     len(list),
		Unchecked: lo.CountBy(list, func(g GroceryEntry) bool { return !g.Checked }),
	}
}

func (s Summary) String() string {
	switch {
	case s.Total == 0:
		return "No items yet"
	case s.Unchecked == 0:
		return "All done!"
	default:
		return fmt.Sprintf("%d left to get", s.Unchecked)
	}
}
