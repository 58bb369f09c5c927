package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"marketplace-service/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory stand-in for the handful of commands the cache
// issues. Expiry is recorded but not enforced.
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = strconv.Itoa(value.(int))
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func TestVersion_SeedsOnFirstUse(t *testing.T) {
	rdb := newFakeRedis()
	c := newRedisUnreadCache(rdb, time.Minute, nil)

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, "1", rdb.data[UnreadVersionKey])
}

func TestSetGet_RoundTripUnderVersion(t *testing.T) {
	rdb := newFakeRedis()
	c := newRedisUnreadCache(rdb, time.Minute, nil)
	ctx := context.Background()

	summary := &models.UnreadSummary{Support: 2, Refund: 1, Total: 3, Comment: 5}
	c.Set(ctx, 4, summary)

	got, ok := c.Get(ctx, 4)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Total)
	assert.Equal(t, int64(5), got.Comment)
	assert.Equal(t, time.Minute, rdb.ttls["notifications:unread:v4"])

	_, ok = c.Get(ctx, 5)
	assert.False(t, ok)
}

func TestInvalidate_OrphansPreviousSummary(t *testing.T) {
	rdb := newFakeRedis()
	c := newRedisUnreadCache(rdb, 0, nil)
	ctx := context.Background()

	v, err := c.Version(ctx)
	require.NoError(t, err)
	c.Set(ctx, v, &models.UnreadSummary{Total: 1})

	require.NoError(t, c.Invalidate(ctx))

	next, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, v+1, next)
	_, ok := c.Get(ctx, next)
	assert.False(t, ok)
	assert.Equal(t, DefaultUnreadTTL, rdb.ttls[key(v)])
}

func TestGet_MissOnRedisError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failGet = errors.New("connection refused")
	c := newRedisUnreadCache(rdb, time.Minute, nil)

	_, ok := c.Get(context.Background(), 1)
	assert.False(t, ok)

	_, err := c.Version(context.Background())
	assert.Error(t, err)
}
