package cart

import (
	"context"
	"errors"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/pkg/kvstore"
)

// Follow reloads the cart whenever another writer changes the snapshot key,
// until ctx is cancelled. A reload is applied exactly like Load except that
// the value already in the store is not written back.
//
// Every change re-reads the key, so the cart ends up on whatever the store
// holds now rather than on the payload carried by a possibly stale event.
func (c *Cart) Follow(ctx context.Context, watcher kvstore.Watcher) error {
	changes, err := watcher.Watch(ctx, c.key)
	if err != nil {
		return err
	}

	go func() {
		for change := range changes {
			c.applyRemote(ctx, change)
		}
	}()
	return nil
}

func (c *Cart) applyRemote(ctx context.Context, change kvstore.Change) {
	c.mu.Lock()

	payload, removed := c.current(ctx, change)
	if payload == c.lastPayload {
		c.mu.Unlock()
		return
	}

	var lines []model.CartLine
	if !removed {
		decoded, err := Decode(payload)
		if err != nil {
			c.persistenceWarning("Discarding corrupt cart snapshot from another writer", err)
		} else {
			lines = decoded
		}
	}

	c.lines = lines
	c.lastPayload = payload
	c.log.Info("Cart reloaded after external change", map[string]interface{}{
		"lines":   len(lines),
		"removed": removed,
	})
	snapshot := copyLines(lines)
	notify := c.onRemoteChange
	c.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

// current returns the stored payload, "" when the key is gone. When the store
// cannot be read the event's own payload is used. Must be called with c.mu held.
func (c *Cart) current(ctx context.Context, change kvstore.Change) (string, bool) {
	if c.store == nil {
		if change.Removed {
			return "", true
		}
		return change.Value, false
	}

	readCtx, cancel := context.WithTimeout(ctx, c.persistTimeout)
	defer cancel()

	payload, err := c.store.Get(readCtx, c.key)
	switch {
	case err == nil:
		return payload, false
	case errors.Is(err, kvstore.ErrNotFound):
		return "", true
	}

	c.persistenceWarning("Failed to re-read cart snapshot, using change payload", err)
	if change.Removed {
		return "", true
	}
	return change.Value, false
}
