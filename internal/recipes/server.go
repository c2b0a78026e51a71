package recipes

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"

	"cookflow/internal/ai"
	"cookflow/internal/billing"
	"cookflow/internal/quota"
)

type server struct {
	pipeline *Pipeline
	store    *Store
	quota    *quota.Gate
	billing  billing.Entitlements
	group    singleflight.Group
}

// NewHandler serves the JSON API for extraction, recipes and the grocery list.
func NewHandler(p *Pipeline) *server {
	return &server{
		pipeline: p,
		store:    p.store,
		quota:    p.quota,
		billing:  p.billing,
	}
}

func (s *server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /extract", s.handleExtract)
	mux.HandleFunc("GET /recipes", s.handleRecipes)
	mux.HandleFunc("DELETE /recipes/{id}", s.handleDeleteRecipe)
	mux.HandleFunc("POST /recipes/{id}/grocery", s.handleAddToGrocery)
	mux.HandleFunc("GET /grocery", s.handleGrocery)
	mux.HandleFunc("POST /grocery/{id}/toggle", s.handleToggle)
	mux.HandleFunc("POST /grocery/clear", s.handleClear)
	mux.HandleFunc("GET /quota", s.handleQuota)
}

type errorResponse struct {
	Error string          `json:"error"`
	Quota *quota.Decision `json:"quota,omitempty"`
}

func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	// a double submit of the same url shares one extraction. The work outlives
	// a caller that goes away so the quota and the store stay consistent.
	v, err, shared := s.group.Do(req.UserID+"\x00"+req.URL, func() (any, error) {
		return s.pipeline.Extract(context.WithoutCancel(ctx), req)
	})
	if shared {
		slog.InfoContext(ctx, "joined in-flight extraction", "url", req.URL)
	}
	if err != nil {
		status := extractStatus(err)
		resp := errorResponse{Error: UserMessage(err)}
		var qe *QuotaExceededError
		if errors.As(err, &qe) {
			resp.Quota = &qe.Decision
		}
		writeJSON(ctx, w, status, resp)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, v.(*Result))
}

func extractStatus(err error) int {
	var qe *QuotaExceededError
	switch {
	case errors.Is(err, ErrEmptyURL):
		return http.StatusBadRequest
	case errors.Is(err, ErrMissingAPIKey):
		return http.StatusInternalServerError
	case errors.As(err, &qe):
		return http.StatusPaymentRequired
	case errors.Is(err, ai.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ai.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recipes, err := s.store.Recipes(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load recipes", "error", err)
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to load recipes"})
		return
	}
	added, err := s.store.AddedRecipes(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load added recipes", "error", err)
	}
	if recipes == nil {
		recipes = []ai.Recipe{}
	}
	if added == nil {
		added = []string{}
	}
	writeJSON(ctx, w, http.StatusOK, struct {
		Recipes      []ai.Recipe `json:"recipes"`
		AddedRecipes []string    `json:"addedRecipes"`
	}{recipes, added})
}

func (s *server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	err := s.store.DeleteRecipe(ctx, id)
	if errors.Is(err, ErrRecipeNotFound) {
		writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "recipe not found"})
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete recipe", "id", id, "error", err)
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to delete recipe"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAddToGrocery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	recipe, err := s.store.Recipe(ctx, id)
	if errors.Is(err, ErrRecipeNotFound) {
		writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "recipe not found"})
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load recipe", "id", id, "error", err)
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to load recipe"})
		return
	}
	n, err := s.store.AddToGroceryList(ctx, *recipe)
	if err != nil {
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to update grocery list"})
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]int{"added": n})
}

type groceryResponse struct {
	Summary Summary         `json:"summary"`
	Status  string          `json:"status"`
	Groups  []CategoryGroup `json:"groups"`
}

func (s *server) handleGrocery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := s.store.GroceryList(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load grocery list", "error", err)
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to load grocery list"})
		return
	}
	sum := Summarize(list)
	groups := GroupByCategory(list)
	if groups == nil {
		groups = []CategoryGroup{}
	}
	writeJSON(ctx, w, http.StatusOK, groceryResponse{Summary: sum, Status: sum.String(), Groups: groups})
}

func (s *server) handleToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entry, err := s.store.ToggleItem(ctx, r.PathValue("id"))
	if errors.Is(err, ErrItemNotFound) {
		writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "item not found"})
		return
	}
	if err != nil {
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to update grocery list"})
		return
	}
	writeJSON(ctx, w, http.StatusOK, entry)
}

func (s *server) handleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := s.store.ClearChecked(ctx)
	if err != nil {
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to update grocery list"})
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]int{"removed": n})
}

func (s *server) handleQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pro := billing.CheckPro(ctx, s.billing, r.URL.Query().Get("userId"))
	writeJSON(ctx, w, http.StatusOK, struct {
		quota.Decision
		Pro bool `json:"pro"`
	}{s.quota.CanExtractFree(ctx, pro), pro})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
