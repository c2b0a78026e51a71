// Package quota limits free extractions per calendar month. The counter is
// kept client side in the same key-value store as the recipes.
package quota

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"cookflow/internal/cache"
)

const (
	KeyMonth = "extractionsMonth"
	KeyCount = "extractionsCount"

	FreeLimit = 3
)

type Decision struct {
	Allowed bool `json:"allowed"`
	Used    int  `json:"used"`
	Limit   int  `json:"limit"`
}

type Gate struct {
	store cache.Cache
	now   func() time.Time
	mu    sync.Mutex
	// pending counts reservations not yet committed or released.
	pending int
}

func New(store cache.Cache) *Gate {
	return &Gate{store: store, now: time.Now}
}

// WithClock replaces the time source, used by tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Month formats t as YYYY-MM in t's own location.
func Month(t time.Time) string {
	return t.Format("2006-01")
}

// Used is the number of free extractions this month. A stored month other
// than the current one counts as zero; it is only overwritten on the next
// Increment. Read failures also count as zero.
func (g *Gate) Used(ctx context.Context) int {
	month, err := g.get(ctx, KeyMonth)
	if err != nil {
		slog.WarnContext(ctx, "failed to read extraction month", "error", err)
		return 0
	}
	if month != Month(g.now()) {
		return 0
	}
	countStr, err := g.get(ctx, KeyCount)
	if err != nil {
		slog.WarnContext(ctx, "failed to read extraction count", "error", err)
		return 0
	}
	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || count < 0 {
		return 0
	}
	return count
}

func (g *Gate) CanExtractFree(ctx context.Context, isPro bool) Decision {
	if isPro {
		return Decision{Allowed: true, Used: 0, Limit: FreeLimit}
	}
	used := g.Used(ctx)
	return Decision{Allowed: used < FreeLimit, Used: used, Limit: FreeLimit}
}

// Reservation holds one free slot between the quota check and the moment
// the extraction is stored. A nil Reservation is valid and does nothing.
type Reservation struct {
	g    *Gate
	done bool
}

// Reserve is CanExtractFree for callers that go on to spend the slot. While a
// reservation is outstanding it counts against the limit, so concurrent
// extractions cannot all pass the check. Pro users get a nil reservation.
func (g *Gate) Reserve(ctx context.Context, isPro bool) (Decision, *Reservation) {
	if isPro {
		return g.CanExtractFree(ctx, true), nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	used := g.Used(ctx)
	d := Decision{Allowed: used+g.pending < FreeLimit, Used: used, Limit: FreeLimit}
	if !d.Allowed {
		return d, nil
	}
	g.pending++
	return d, &Reservation{g: g}
}

// Commit records the extraction and frees the reservation.
func (r *Reservation) Commit(ctx context.Context) (int, error) {
	if r == nil || r.done {
		return 0, errors.New("quota: reservation already settled")
	}
	r.g.mu.Lock()
	defer r.g.mu.Unlock()
	r.done = true
	r.g.pending--
	return r.g.increment(ctx)
}

// Release gives the slot back without counting it. Safe after Commit.
func (r *Reservation) Release() {
	if r == nil {
		return
	}
	r.g.mu.Lock()
	defer r.g.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.g.pending--
}

// Increment records one more extraction for the current month and returns the
// new count. Month and count are written together.
func (g *Gate) Increment(ctx context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.increment(ctx)
}

func (g *Gate) increment(ctx context.Context) (int, error) {
	month := Month(g.now())
	count := g.Used(ctx) + 1
	err := g.store.MultiSet(ctx, []cache.Entry{
		{Key: KeyMonth, Value: month},
		{Key: KeyCount, Value: strconv.Itoa(count)},
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (g *Gate) get(ctx context.Context, key string) (string, error) {
	v, err := g.store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return "", nil
	}
	return v, err
}
