package recipes

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cookflow/internal/ai"
	"cookflow/internal/cache"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func soup() ai.Recipe {
	return ai.Recipe{
		ID:    "100",
		Title: "Soup",
		Ingredients: []ai.Ingredient{
			{Item: "egg", Amount: "2", Category: ai.CategoryDairy},
			{Item: "milk", Amount: "1 cup", Category: ai.CategoryDairy},
		},
		Instructions: []string{"stir"},
	}
}

func TestMergeIngredientsSkipsExistingItems(t *testing.T) {
	existing := []GroceryEntry{{ID: "1-egg-5", Item: "egg", Checked: true, FromRecipe: "Omelette"}}

	merged, added := MergeIngredients(existing, soup(), fixedNow, ExactMatch)
	assert.Equal(t, 1, added)
	require.Len(t, merged, 2)
	assert.Equal(t, existing[0], merged[0], "existing entry must be untouched")
	assert.Equal(t, GroceryEntry{
		ID:         "100-milk-1792065600000",
		Item:       "milk",
		Amount:     "1 cup",
		Category:   ai.CategoryDairy,
		FromRecipe: "Soup",
	}, merged[1])
	assert.Len(t, existing, 1, "input slice reused")
}

func TestMergeIngredientsExactIsCaseSensitive(t *testing.T) {
	existing := []GroceryEntry{{ID: "x", Item: "Egg"}}
	_, added := MergeIngredients(existing, soup(), fixedNow, ExactMatch)
	assert.Equal(t, 2, added)

	_, added = MergeIngredients(existing, soup(), fixedNow, FoldMatch)
	assert.Equal(t, 1, added)
}

func TestMergeIngredientsWithinRecipe(t *testing.T) {
	r := ai.Recipe{ID: "7", Title: "Pizza", Ingredients: []ai.Ingredient{
		{Item: "glue"}, {Item: "glue"}, {Item: ""}, {Item: "cheese"},
	}}
	merged, added := MergeIngredients(nil, r, fixedNow, nil)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"glue", "cheese"}, []string{merged[0].Item, merged[1].Item})
}

func TestFoldMatch(t *testing.T) {
	assert.Equal(t, FoldMatch("olive  Oil"), FoldMatch(" OLIVE oil"))
	assert.NotEqual(t, ExactMatch("olive oil"), ExactMatch("Olive oil"))

	m, err := MatcherFor("fold")
	require.NoError(t, err)
	assert.Equal(t, m("STRASSE"), m("straße"))
	_, err = MatcherFor("soundex")
	require.Error(t, err)
}

func TestGroceryEntryAcceptsPlainString(t *testing.T) {
	var list []GroceryEntry
	require.NoError(t, json.Unmarshal([]byte(`["paper towels",{"id":"a","item":"egg","checked":true,"fromRecipe":"Soup"}]`), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "paper towels", list[0].Item)
	assert.Equal(t, "legacy-paper towels", list[0].ID)
	assert.True(t, list[1].Checked)

	merged, added := MergeIngredients(list, ai.Recipe{Ingredients: []ai.Ingredient{{Item: "paper towels"}}}, fixedNow, ExactMatch)
	assert.Zero(t, added)
	assert.Len(t, merged, 2)
}

func TestToggleLegacyEntries(t *testing.T) {
	ctx := context.Background()
	s, c := newTestStore(t)
	require.NoError(t, c.Set(ctx, GroceryListKey, `["paper towels","foil"]`))

	g, err := s.ToggleItem(ctx, "legacy-foil")
	require.NoError(t, err)
	assert.Equal(t, "foil", g.Item)
	assert.True(t, g.Checked)

	list, err := s.GroceryList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].Checked)
	assert.True(t, list[1].Checked)
	assert.Equal(t, "legacy-foil", list[1].ID, "id survives the rewrite")
}

func TestGroupByCategory(t *testing.T) {
	list := []GroceryEntry{
		{Item: "milk", Category: ai.CategoryDairy},
		{Item: "foil"},
		{Item: "basil", Category: ai.CategoryProduce},
		{Item: "butter", Category: ai.CategoryDairy},
		{Item: "napkins", Category: ai.CategoryOther},
	}
	groups := GroupByCategory(list)
	require.Len(t, groups, 3)
	assert.Equal(t, ai.CategoryDairy, groups[0].Category)
	assert.Equal(t, ai.CategoryOther, groups[1].Category)
	assert.Equal(t, ai.CategoryProduce, groups[2].Category)
	assert.Len(t, groups[0].Items, 2)
	assert.Len(t, groups[1].Items, 2)
	assert.Nil(t, GroupByCategory(nil))
}

func TestFormatGroceryItemLabel(t *testing.T) {
	assert.Equal(t, "2 cups flour", FormatGroceryItemLabel(map[string]any{"amount": "2 cups", "item": "flour"}))
	assert.Equal(t, "2 cups flour", FormatGroceryItemLabel(GroceryEntry{Amount: "2 cups", Item: "flour"}))
	assert.Equal(t, "2 cups flour", FormatGroceryItemLabel(ai.Ingredient{Amount: "2 cups", Item: "flour"}))
	assert.Equal(t, "plain text", FormatGroceryItemLabel("plain text"))
	assert.Equal(t, "salt", FormatGroceryItemLabel(&GroceryEntry{Item: "salt"}))
	assert.Equal(t, "1 pinch", FormatGroceryItemLabel(map[string]any{"amount": "1 pinch"}))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "No items yet", Summarize(nil).String())
	list := []GroceryEntry{{Item: "a", Checked: true}, {Item: "b"}}
	sum := Summarize(list)
	assert.Equal(t, Summary{Total: 2, Unchecked: 1}, sum)
	assert.Equal(t, "1 left to get", sum.String())
	list[1].Checked = true
	assert.Equal(t, "All done!", Summarize(list).String())
}

func newTestStore(t *testing.T) (*Store, cache.Cache) {
	t.Helper()
	c := cache.NewInMemoryCache()
	s := NewStore(c, ExactMatch)
	s.now = func() time.Time { return fixedNow }
	return s, c
}

func TestAddToGroceryList(t *testing.T) {
	ctx := context.Background()
	s, c := newTestStore(t)
	require.NoError(t, c.Set(ctx, GroceryListKey, `[{"id":"1-egg-5","item":"egg","checked":true,"fromRecipe":"Omelette"}]`))

	n, err := s.AddToGroceryList(ctx, soup())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := s.GroceryList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Checked)
	assert.Equal(t, "milk", list[1].Item)

	added, err := s.AddedRecipes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"100"}, added)
}

func TestAddToGroceryListConcurrent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i, item := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := ai.Recipe{ID: string(rune('0' + i)), Title: item, Ingredients: []ai.Ingredient{{Item: item}, {Item: "salt"}}}
			_, err := s.AddToGroceryList(ctx, r)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := s.GroceryList(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 9, "eight items plus one salt")
	added, err := s.AddedRecipes(ctx)
	require.NoError(t, err)
	assert.Len(t, added, 8)
}

func TestDeleteRecipeKeepsGroceryEntries(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	r := soup()
	require.NoError(t, s.SaveRecipe(ctx, r))
	require.NoError(t, s.SaveRecipe(ctx, ai.Recipe{ID: "200", Title: "Toast"}))
	_, err := s.AddToGroceryList(ctx, r)
	require.NoError(t, err)

	require.NoError(t, s.DeleteRecipe(ctx, r.ID))
	recipes, err := s.Recipes(ctx)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Equal(t, "Toast", recipes[0].Title)

	list, err := s.GroceryList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, g := range list {
		assert.Equal(t, "Soup", g.FromRecipe)
	}

	toggled, err := s.ToggleItem(ctx, list[0].ID)
	require.NoError(t, err)
	assert.True(t, toggled.Checked)

	assert.ErrorIs(t, s.DeleteRecipe(ctx, r.ID), ErrRecipeNotFound)
}

func TestToggleAndClear(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, err := s.AddToGroceryList(ctx, soup())
	require.NoError(t, err)
	list, err := s.GroceryList(ctx)
	require.NoError(t, err)

	_, err = s.ToggleItem(ctx, "nope")
	assert.ErrorIs(t, err, ErrItemNotFound)

	g, err := s.ToggleItem(ctx, list[0].ID)
	require.NoError(t, err)
	assert.True(t, g.Checked)
	g, err = s.ToggleItem(ctx, list[0].ID)
	require.NoError(t, err)
	assert.False(t, g.Checked)

	n, err := s.ClearChecked(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.ToggleItem(ctx, list[1].ID)
	require.NoError(t, err)
	n, err = s.ClearChecked(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err = s.GroceryList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "egg", list[0].Item)
}

func TestStoreEmpty(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	recipes, err := s.Recipes(ctx)
	require.NoError(t, err)
	assert.Empty(t, recipes)
	_, err = s.Recipe(ctx, "1")
	assert.ErrorIs(t, err, ErrRecipeNotFound)
}
