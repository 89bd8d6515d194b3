// Package unread caches per-annotation unread counts. Counting walks the
// discussion timeline on the remote store, so the reconciler would otherwise
// recount every annotation on every pass. Entries are invalidated when the
// timeline or the viewer's read marker changes.
package unread

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/remote"
)

// Cache is a caching decorator around an UnreadCalculator.
type Cache struct {
	inner      remote.UnreadCalculator
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	mu      sync.Mutex
	entries map[string]annotation.UnreadCount
}

var _ remote.UnreadCalculator = (*Cache)(nil)

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(inner remote.UnreadCalculator, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{
		inner:      inner,
		cacheTotal: cacheTotal,
		logger:     logger,
		entries:    map[string]annotation.UnreadCount{},
	}
}

// CalculateUnread returns a cached count or asks the inner calculator.
func (c *Cache) CalculateUnread(ctx context.Context, annotationID string) (annotation.UnreadCount, error) {
	c.mu.Lock()
	cached, ok := c.entries[annotationID]
	c.mu.Unlock()
	if ok {
		c.incCache("hit")
		return cached, nil
	}

	c.incCache("miss")

	count, err := c.inner.CalculateUnread(ctx, annotationID)
	if err != nil {
		return annotation.UnreadCount{}, fmt.Errorf("calculate unread for %s: %w", annotationID, err)
	}

	c.mu.Lock()
	c.entries[annotationID] = count
	c.mu.Unlock()
	return count, nil
}

// Invalidate drops one annotation's cached count.
func (c *Cache) Invalidate(annotationID string) {
	c.mu.Lock()
	delete(c.entries, annotationID)
	c.mu.Unlock()
	c.logger.Debug("unread count invalidated", zap.String("annotation", annotationID))
}

// InvalidateAll drops every cached count.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = map[string]annotation.UnreadCount{}
	c.mu.Unlock()
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
