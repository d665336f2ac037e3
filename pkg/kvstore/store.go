// Package kvstore provides the string key-value persistence used for cart
// snapshots and cached catalog data. Implementations are safe for concurrent use.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the get/set/remove contract every backend satisfies.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Change describes a write observed on a watched key.
type Change struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Removed bool   `json:"removed"`
}

// Watcher is implemented by stores that can report writes to a key, including
// writes made by other processes sharing the same backend.
type Watcher interface {
	Watch(ctx context.Context, key string) (<-chan Change, error)
}
