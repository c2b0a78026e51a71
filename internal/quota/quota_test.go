package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cookflow/internal/cache"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestFreeLimitWithinMonth(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 10, 3, 9, 0, 0, 0, time.UTC)}
	g := New(cache.NewInMemoryCache()).WithClock(clock.now)

	for i := 0; i < FreeLimit; i++ {
		d := g.CanExtractFree(ctx, false)
		require.True(t, d.Allowed, "call %d", i+1)
		assert.Equal(t, i, d.Used)
		assert.Equal(t, FreeLimit, d.Limit)
		n, err := g.Increment(ctx)
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}

	d := g.CanExtractFree(ctx, false)
	assert.False(t, d.Allowed)
	assert.Equal(t, 3, d.Used)

	// pro users are never limited
	assert.Equal(t, Decision{Allowed: true, Used: 0, Limit: FreeLimit}, g.CanExtractFree(ctx, true))

	clock.t = time.Date(2026, 11, 1, 0, 0, 1, 0, time.UTC)
	d = g.CanExtractFree(ctx, false)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Used)
}

func TestRolloverWritesOnlyOnIncrement(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryCache()
	require.NoError(t, store.MultiSet(ctx, []cache.Entry{
		{Key: KeyMonth, Value: "2026-09"},
		{Key: KeyCount, Value: "3"},
	}))
	g := New(store).WithClock(func() time.Time { return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) })

	assert.Equal(t, 0, g.Used(ctx))
	month, _ := store.Get(ctx, KeyMonth)
	assert.Equal(t, "2026-09", month)

	n, err := g.Increment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	month, _ = store.Get(ctx, KeyMonth)
	count, _ := store.Get(ctx, KeyCount)
	assert.Equal(t, "2026-10", month)
	assert.Equal(t, "1", count)
}

func TestUsedToleratesGarbage(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryCache()
	require.NoError(t, store.MultiSet(ctx, []cache.Entry{
		{Key: KeyMonth, Value: "2026-10"},
		{Key: KeyCount, Value: "many"},
	}))
	g := New(store).WithClock(func() time.Time { return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) })
	assert.Equal(t, 0, g.Used(ctx))
}

type brokenStore struct{ cache.Cache }

func (brokenStore) Get(context.Context, string) (string, error) { return "", errors.New("disk on fire") }
func (brokenStore) MultiSet(context.Context, []cache.Entry) error {
	return errors.New("disk on fire")
}

func TestStoreFailures(t *testing.T) {
	g := New(brokenStore{})
	assert.True(t, g.CanExtractFree(context.Background(), false).Allowed)
	_, err := g.Increment(context.Background())
	require.Error(t, err)
}

func TestReserveCountsOutstandingSlots(t *testing.T) {
	ctx := context.Background()
	g := New(cache.NewInMemoryCache()).WithClock((&fakeClock{t: time.Date(2026, 10, 3, 9, 0, 0, 0, time.UTC)}).now)

	var slots []*Reservation
	for i := 0; i < FreeLimit; i++ {
		d, r := g.Reserve(ctx, false)
		require.True(t, d.Allowed, "reservation %d", i+1)
		require.NotNil(t, r)
		slots = append(slots, r)
	}
	d, r := g.Reserve(ctx, false)
	assert.False(t, d.Allowed)
	assert.Nil(t, r)
	assert.Equal(t, 0, d.Used, "nothing committed yet")

	// a released slot can be taken again
	slots[0].Release()
	slots[0].Release()
	d, r = g.Reserve(ctx, false)
	require.True(t, d.Allowed)
	slots[0] = r

	for i, r := range slots {
		n, err := r.Commit(ctx)
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
		r.Release()
	}
	assert.Equal(t, FreeLimit, g.Used(ctx))
	d, _ = g.Reserve(ctx, false)
	assert.False(t, d.Allowed)

	_, err := slots[0].Commit(ctx)
	require.Error(t, err)
}

func TestReservePro(t *testing.T) {
	g := New(cache.NewInMemoryCache())
	d, r := g.Reserve(context.Background(), true)
	assert.True(t, d.Allowed)
	assert.Nil(t, r)
	r.Release()
}
