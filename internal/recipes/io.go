package recipes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cookflow/internal/ai"
	"cookflow/internal/cache"
)

// Keys of the persisted collections. Every value is a JSON document.
const (
	RecipesKey      = "recipes"
	GroceryListKey  = "groceryList"
	AddedRecipesKey = "addedRecipes"
)

var (
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrItemNotFound   = errors.New("grocery item not found")
)

// Store keeps recipes and the grocery list in a cache. Writes are whole
// collection rewrites with no versioning. Read-modify-write sequences are
// serialized within the process; separate processes sharing a backend are
// last-write-wins.
type Store struct {
	cache cache.Cache
	match Matcher
	now   func() time.Time
	mu    sync.Mutex
}

func NewStore(c cache.Cache, match Matcher) *Store {
	if match == nil {
		match = ExactMatch
	}
	return &Store{cache: c, match: match, now: time.Now}
}

func (s *Store) Recipes(ctx context.Context) ([]ai.Recipe, error) {
	var recipes []ai.Recipe
	if err := s.load(ctx, RecipesKey, &recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

func (s *Store) Recipe(ctx context.Context, id string) (*ai.Recipe, error) {
	recipes, err := s.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range recipes {
		if recipes[i].ID == id {
			return &recipes[i], nil
		}
	}
	return nil, ErrRecipeNotFound
}

// SaveRecipe appends recipe to the collection.
func (s *Store) SaveRecipe(ctx context.Context, recipe ai.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipes, err := s.Recipes(ctx)
	if err != nil {
		return err
	}
	recipes = append(recipes, recipe)
	slog.InfoContext(ctx, "storing recipe", "title", recipe.Title, "id", recipe.ID)
	return s.save(ctx, RecipesKey, recipes)
}

// DeleteRecipe removes the recipe only. Grocery entries already derived from
// it stay on the list.
func (s *Store) DeleteRecipe(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipes, err := s.Recipes(ctx)
	if err != nil {
		return err
	}
	kept := make([]ai.Recipe, 0, len(recipes))
	for _, r := range recipes {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(recipes) {
		return ErrRecipeNotFound
	}
	return s.save(ctx, RecipesKey, kept)
}

func (s *Store) GroceryList(ctx context.Context) ([]GroceryEntry, error) {
	var list []GroceryEntry
	if err := s.load(ctx, GroceryListKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AddedRecipes lists recipe ids already merged into the grocery list. It only
// drives whether "add to grocery" is offered.
func (s *Store) AddedRecipes(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.load(ctx, AddedRecipesKey, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) load(ctx context.Context, key string, v any) error {
	raw, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, key, string(b)); err != nil {
		slog.ErrorContext(ctx, "Storage error", "key", key, "error", err)
		return err
	}
	return nil
}
