package kvstore

import (
	"context"
	"sync"

	"github.com/achlys/whimsical-backend/pkg/logger"
)

const watchBuffer = 16

// notifier fans out in-process changes to watchers of a key.
type notifier struct {
	mu       sync.Mutex
	watchers map[string]map[chan Change]struct{}
}

func newNotifier() *notifier {
	return &notifier{watchers: make(map[string]map[chan Change]struct{})}
}

func (n *notifier) watch(ctx context.Context, key string) <-chan Change {
	ch := make(chan Change, watchBuffer)

	n.mu.Lock()
	if n.watchers[key] == nil {
		n.watchers[key] = make(map[chan Change]struct{})
	}
	n.watchers[key][ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.watchers[key], ch)
		if len(n.watchers[key]) == 0 {
			delete(n.watchers, key)
		}
		n.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (n *notifier) publish(change Change) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.watchers[change.Key] {
		select {
		case ch <- change:
		default:
			logger.Warn("Dropping key change notification: watcher buffer full", map[string]interface{}{
				"key": change.Key,
			})
		}
	}
}
