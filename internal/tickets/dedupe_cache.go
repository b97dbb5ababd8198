package tickets

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/complynav/compliance-navigator/pkg/logging"
	"github.com/complynav/compliance-navigator/pkg/tracing"
)

const markerCacheTTL = 10 * time.Minute

// DedupeCache short-circuits repeated SearchByMarker lookups against the
// same tracker within a single dry-run/execute cycle. Redis absence
// degrades gracefully to a live search every time — this is an optimisation,
// never a correctness dependency.
type DedupeCache struct {
	client *redis.Client
	logger *logging.Logger
	tracer *tracing.TracingService
}

// NewDedupeCache returns nil (a valid, inert cache) when addr is empty. A
// nil tracer is replaced with a no-op one so Get/Set never need a nil check
// on it.
func NewDedupeCache(addr, password string, db int, logger *logging.Logger, tracer *tracing.TracingService) *DedupeCache {
	if addr == "" {
		return nil
	}
	if tracer == nil {
		tracer, _ = tracing.NewTracingService(&tracing.Config{Enabled: false})
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &DedupeCache{client: client, logger: logger, tracer: tracer}
}

func (c *DedupeCache) key(target, marker string) string {
	return "cn:ticket-marker:" + target + ":" + marker
}

// Get returns the cached issue ID for marker, or "" if absent/unavailable.
func (c *DedupeCache) Get(ctx context.Context, target, marker string) string {
	if c == nil {
		return ""
	}
	key := c.key(target, marker)
	ctx, span := c.tracer.StartDedupeCacheSpan(ctx, "get", key)
	defer span.End()

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return ""
	}
	return val
}

// Set caches marker -> issueID for a short TTL. Failures are logged and
// swallowed.
func (c *DedupeCache) Set(ctx context.Context, target, marker, issueID string) {
	if c == nil {
		return
	}
	key := c.key(target, marker)
	ctx, span := c.tracer.StartDedupeCacheSpan(ctx, "set", key)
	defer span.End()

	if err := c.client.Set(ctx, key, issueID, markerCacheTTL).Err(); err != nil && c.logger != nil {
		c.logger.WithComponent("tickets").WithError(err).Warn("dedupe cache write failed")
	}
}
