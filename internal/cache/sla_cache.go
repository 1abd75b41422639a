// Package cache provides an optional redis-backed memo of SLA evaluations.
// The evaluator is cheap, so the cache only matters under heavy list-polling;
// everything degrades to a direct evaluation when redis is absent.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// SLAStatusCache memoizes evaluator output per (ticket, minute bucket).
// Entries must be invalidated whenever a ticket's state or resolution
// timestamp changes.
type SLAStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSLAStatusCache constructs the cache. A nil client yields a disabled
// cache whose methods are safe no-ops.
func NewSLAStatusCache(client *redis.Client, ttl time.Duration) *SLAStatusCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SLAStatusCache{client: client, ttl: ttl}
}

func (c *SLAStatusCache) key(ticketID string, now time.Time) string {
	return fmt.Sprintf("sla:%s:%d", ticketID, now.Unix()/60)
}

// Get returns the cached status for the ticket's current minute bucket, or
// (zero, false) on miss or any redis error. Errors are deliberately
// indistinguishable from misses: the caller just evaluates.
func (c *SLAStatusCache) Get(ctx context.Context, ticketID string, now time.Time) (domain.SLAStatus, bool) {
	if c == nil || c.client == nil {
		return domain.SLAStatus{}, false
	}
	raw, err := c.client.Get(ctx, c.key(ticketID, now)).Bytes()
	if err != nil {
		return domain.SLAStatus{}, false
	}
	var status domain.SLAStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return domain.SLAStatus{}, false
	}
	return status, true
}

// Set stores the status under the current minute bucket.
func (c *SLAStatusCache) Set(ctx context.Context, ticketID string, now time.Time, status domain.SLAStatus) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(ticketID, now), raw, c.ttl).Err()
}

// Invalidate drops all buckets for a ticket. Called on every transition.
func (c *SLAStatusCache) Invalidate(ctx context.Context, ticketID string) {
	if c == nil || c.client == nil {
		return
	}
	pattern := fmt.Sprintf("sla:%s:*", ticketID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}
