package kvstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleStore persists values in an on-disk pebble database. Watchers only see
// writes made through this instance; pebble is single-process.
type PebbleStore struct {
	db     *pebble.DB
	notify *notifier
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: db, notify: newNotifier()}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) Get(_ context.Context, key string) (string, error) {
	value, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("pebble get failed: %w", err)
	}
	// value is only valid until closer.Close
	out := string(value)
	if err := closer.Close(); err != nil {
		return "", fmt.Errorf("pebble get close failed: %w", err)
	}
	return out, nil
}

func (p *PebbleStore) Set(_ context.Context, key, value string) error {
	if err := p.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("pebble set failed: %w", err)
	}
	p.notify.publish(Change{Key: key, Value: value})
	return nil
}

func (p *PebbleStore) Remove(_ context.Context, key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete failed: %w", err)
	}
	p.notify.publish(Change{Key: key, Removed: true})
	return nil
}

func (p *PebbleStore) Watch(ctx context.Context, key string) (<-chan Change, error) {
	return p.notify.watch(ctx, key), nil
}
