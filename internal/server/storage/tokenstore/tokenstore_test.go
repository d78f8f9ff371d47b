package tokenstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowantree/go-chunkvault/internal/pkg/cache"
)

// fakeCache is an in-memory cache.Cache stand-in, narrowed to the
// Set/Get/Del/Exists surface RedisStore actually exercises; the remaining
// interface methods are stubs, unreachable from these tests.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (f *fakeCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = b
	return nil
}

func (f *fakeCache) Get(ctx context.Context, key string, target any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(b, target)
}

func (f *fakeCache) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok, nil
}

func (f *fakeCache) HSet(ctx context.Context, key, field string, value any) error { return nil }
func (f *fakeCache) HMSet(ctx context.Context, key string, fields map[string]any) error {
	return nil
}
func (f *fakeCache) HGet(ctx context.Context, key, field string) (string, error) { return "", nil }
func (f *fakeCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return nil, nil
}
func (f *fakeCache) HDel(ctx context.Context, key string, fields ...string) error { return nil }
func (f *fakeCache) ZAdd(ctx context.Context, key string, members ...*redis.Z) *redis.IntCmd {
	return redis.NewIntCmd(ctx)
}
func (f *fakeCache) ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	return redis.NewStringSliceCmd(ctx)
}
func (f *fakeCache) ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd {
	return redis.NewIntCmd(ctx)
}
func (f *fakeCache) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}
func (f *fakeCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (f *fakeCache) TTL(ctx context.Context, key string) (time.Duration, error) { return 0, nil }
func (f *fakeCache) TxPipeline() redis.Pipeliner                                { return nil }

var _ cache.Cache = (*fakeCache)(nil)

func TestTrackThenIsRevoked_False(t *testing.T) {
	store := NewRedisStore(newFakeCache())
	ctx := context.Background()

	require.NoError(t, store.Track(ctx, "tok1", "file1", time.Minute))

	revoked, err := store.IsRevoked(ctx, "tok1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestIsRevoked_UntrackedTokenIsRevoked(t *testing.T) {
	store := NewRedisStore(newFakeCache())
	revoked, err := store.IsRevoked(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevoke_MarksTokenRevoked(t *testing.T) {
	store := NewRedisStore(newFakeCache())
	ctx := context.Background()

	require.NoError(t, store.Track(ctx, "tok2", "file2", time.Minute))
	require.NoError(t, store.Revoke(ctx, "tok2"))

	revoked, err := store.IsRevoked(ctx, "tok2")
	require.NoError(t, err)
	assert.True(t, revoked)
}
