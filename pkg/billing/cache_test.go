package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	mu       sync.Mutex
	calls    int
	snapshot *Snapshot
	err      error
}

func (f *countingFetcher) GetBillingSnapshot(ctx context.Context, customerID, subscriptionID string) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func (f *countingFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testSnapshot() *Snapshot {
	return &Snapshot{
		PaymentSource: &PaymentSource{Brand: "Visa", Last4: "4242", ExpMonth: 4, ExpYear: 2027},
		Subscription:  &Subscription{ID: "sub_1", Status: SubscriptionStatusActive},
		Charges: []Charge{
			{ID: "ch_1", AmountCents: 1500, Currency: "usd", Status: ChargeStatusSucceeded, CreatedAt: time.Unix(1500000000, 0).UTC()},
		},
	}
}

func TestSnapshotCache_FetchesOnceThenServesFromL1(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	fetcher := &countingFetcher{snapshot: testSnapshot()}
	cache := NewSnapshotCache(fetcher, client, 16, time.Minute, nil, nil)
	orgID := uuid.New()

	first, err := cache.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, fetcher.callCount())

	second, err := cache.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.callCount(), "second read should not hit the fetcher")
	assert.Equal(t, first.Subscription.ID, second.Subscription.ID)
	assert.Equal(t, "4242", second.PaymentSource.Last4)
}

func TestSnapshotCache_ServesFromRedisAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	fetcher := &countingFetcher{snapshot: testSnapshot()}
	orgID := uuid.New()

	warm := NewSnapshotCache(fetcher, client, 16, time.Minute, nil, nil)
	_, err := warm.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.callCount())
	assert.True(t, mr.Exists(fmt.Sprintf("billing:snapshot:%s", orgID)))

	// A fresh instance has an empty in-process tier but shares the redis tier.
	cold := NewSnapshotCache(fetcher, client, 16, time.Minute, nil, nil)
	got, err := cold.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.callCount(), "redis hit should not hit the fetcher")
	require.NotNil(t, got.Subscription)
	assert.Equal(t, "sub_1", got.Subscription.ID)
	require.Len(t, got.Charges, 1)
	assert.Equal(t, int64(1500), got.Charges[0].AmountCents)
}

func TestSnapshotCache_InvalidateForcesRefetch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	fetcher := &countingFetcher{snapshot: testSnapshot()}
	cache := NewSnapshotCache(fetcher, client, 16, time.Minute, nil, nil)
	orgID := uuid.New()

	_, err := cache.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.NoError(t, err)

	cache.Invalidate(context.Background(), orgID)
	assert.False(t, mr.Exists(fmt.Sprintf("billing:snapshot:%s", orgID)))

	_, err = cache.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestSnapshotCache_FetcherErrorPropagates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	boom := errors.New("provider down")
	fetcher := &countingFetcher{err: boom}
	cache := NewSnapshotCache(fetcher, client, 16, time.Minute, nil, nil)
	orgID := uuid.New()

	_, err := cache.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(fmt.Sprintf("billing:snapshot:%s", orgID)), "failures are not cached")
}

func TestSnapshotCache_RedisOutageFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	fetcher := &countingFetcher{snapshot: testSnapshot()}
	cache := NewSnapshotCache(fetcher, client, 16, time.Minute, nil, nil)
	orgID := uuid.New()

	got, err := cache.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.NoError(t, err, "redis outage must not fail reads")
	require.NotNil(t, got)
	assert.Equal(t, 1, fetcher.callCount())

	// In-process tier still works without redis.
	_, err = cache.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestSnapshotCache_NoRedisConfigured(t *testing.T) {
	fetcher := &countingFetcher{snapshot: testSnapshot()}
	cache := NewSnapshotCache(fetcher, nil, 16, time.Minute, nil, nil)
	orgID := uuid.New()

	_, err := cache.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.callCount())

	cache.Invalidate(context.Background(), orgID)
	_, err = cache.Get(context.Background(), orgID, "cus_1", "sub_1")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}
