// Package cache is the key-value persistence used for recipes, the grocery
// list and the free extraction counter. Values are opaque strings, JSON for
// everything except the quota pair.
package cache

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("cache: key not found")

type Entry struct {
	Key   string
	Value string
}

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// MultiSet writes all entries. Backends that can do so write them atomically.
	MultiSet(ctx context.Context, entries []Entry) error
}

// Closer is implemented by backends holding a connection.
type Closer interface {
	Close() error
}

// Close releases c if it holds resources.
func Close(c Cache) error {
	if closer, ok := c.(Closer); ok {
		return closer.Close()
	}
	return nil
}
