package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/covault/covault/pkg/observability"
)

// SnapshotFetcher produces billing snapshots. *Adapter implements it.
type SnapshotFetcher interface {
	GetBillingSnapshot(ctx context.Context, customerID, subscriptionID string) (*Snapshot, error)
}

// SnapshotCache caches billing snapshots in two tiers: an in-process
// expirable LRU in front of an optional shared Redis tier. Snapshots are
// read-heavy and tolerate short staleness; mutations go through Invalidate.
type SnapshotCache struct {
	fetcher SnapshotFetcher
	l1      *lru.LRU[string, *Snapshot]
	redis   *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewSnapshotCache creates a new SnapshotCache. A nil redisClient disables
// the shared tier; logger and metrics may be nil.
func NewSnapshotCache(fetcher SnapshotFetcher, redisClient *redis.Client, maxEntries int, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *SnapshotCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &SnapshotCache{
		fetcher: fetcher,
		l1:      lru.NewLRU[string, *Snapshot](maxEntries, nil, ttl),
		redis:   redisClient,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func snapshotKey(orgID uuid.UUID) string {
	return fmt.Sprintf("billing:snapshot:%s", orgID)
}

// Get returns the organization's billing snapshot, fetching from the
// provider on a cache miss. Cache tier failures degrade to a fetch rather
// than failing the read.
func (c *SnapshotCache) Get(ctx context.Context, orgID uuid.UUID, customerID, subscriptionID string) (*Snapshot, error) {
	key := snapshotKey(orgID)

	if snapshot, ok := c.l1.Get(key); ok {
		c.metrics.CacheHitsTotal.WithLabelValues("l1").Inc()
		return snapshot, nil
	}
	c.metrics.CacheMissesTotal.WithLabelValues("l1").Inc()

	if c.redis != nil {
		cached, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			var snapshot Snapshot
			if err := json.Unmarshal([]byte(cached), &snapshot); err == nil {
				c.metrics.CacheHitsTotal.WithLabelValues("l2").Inc()
				c.l1.Add(key, &snapshot)
				return &snapshot, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Debug("snapshot cache read failed")
		}
		c.metrics.CacheMissesTotal.WithLabelValues("l2").Inc()
	}

	snapshot, err := c.fetcher.GetBillingSnapshot(ctx, customerID, subscriptionID)
	if err != nil {
		return nil, err
	}

	c.l1.Add(key, snapshot)
	if c.redis != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
				c.logger.WithError(err).Debug("snapshot cache write failed")
			}
		}
	}
	return snapshot, nil
}

// Invalidate drops the organization's cached snapshot from both tiers. Call
// it after any operation that changes remote billing state.
func (c *SnapshotCache) Invalidate(ctx context.Context, orgID uuid.UUID) {
	key := snapshotKey(orgID)
	c.l1.Remove(key)
	if c.redis != nil {
		if err := c.redis.Del(ctx, key).Err(); err != nil {
			c.logger.WithError(err).Debug("snapshot cache invalidation failed")
		}
	}
}
