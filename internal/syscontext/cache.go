// Package syscontext caches the shared system-context document that gets
// prepended to agent-flow prompts. It is the only process-local state shared
// across pipeline executions.
package syscontext

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/metrics"
	"github.com/pagerelay/pagerelay/internal/workspace"
)

// DefaultTTL is how long a fetched system context stays fresh.
const DefaultTTL = 5 * time.Minute

// Source yields the current system-context text. Injected so pipelines can
// run without it in tests.
type Source interface {
	Get(ctx context.Context) (string, error)
}

// Empty is a Source with no content.
type Empty struct{}

// Get returns no context.
func (Empty) Get(context.Context) (string, error) { return "", nil }

// Cache is a time-expiring check-then-fetch-on-miss source backed by one
// workspace page. Two concurrent misses may both refetch; both converge to
// the same value, so no fetch-side locking is done.
type Cache struct {
	ws     workspace.Client
	pageID string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	value     string
	fetchedAt time.Time
}

// NewCache creates a cache over the given system-context page.
func NewCache(ws workspace.Client, pageID string, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ws: ws, pageID: pageID, ttl: ttl, logger: logger, now: time.Now}
}

// Get returns the cached text, refreshing it when stale. A refresh failure
// falls back to the stale value when one exists.
func (c *Cache) Get(ctx context.Context) (string, error) {
	c.mu.RLock()
	value, fetchedAt := c.value, c.fetchedAt
	c.mu.RUnlock()

	if !fetchedAt.IsZero() && c.now().Sub(fetchedAt) < c.ttl {
		return value, nil
	}

	doc, err := c.ws.FetchDocument(ctx, c.pageID)
	if err != nil {
		metrics.SystemContextRefreshes.WithLabelValues("error").Inc()
		if !fetchedAt.IsZero() {
			c.logger.Warn("System context refresh failed, serving stale value",
				zap.String("page_id", c.pageID),
				zap.Error(err))
			return value, nil
		}
		return "", err
	}
	metrics.SystemContextRefreshes.WithLabelValues("ok").Inc()

	c.mu.Lock()
	c.value = doc.Content
	c.fetchedAt = c.now()
	c.mu.Unlock()
	return doc.Content, nil
}
