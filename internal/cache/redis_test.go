package cache

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("SPEEDNET_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SPEEDNET_TEST_REDIS_ADDR not set")
	}
	r, err := NewRedis(context.Background(), RedisOptions{
		Addr:      addr,
		KeyPrefix: "speednet-test:" + uuid.NewString() + ":",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.InvalidatePrefix(context.Background(), "")
		_ = r.Close()
	})
	return r
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)

	_, ok, err := r.Get(ctx, "sessions:list:acme:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "sessions:list:acme:1", []byte("v"), time.Minute))
	got, ok, err := r.Get(ctx, "sessions:list:acme:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
}

func TestRedisInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)

	for _, key := range []string{"sessions:list:acme:1", "sessions:list:acme:2", "sessions:list:_all:1"} {
		require.NoError(t, r.Set(ctx, key, []byte("v"), time.Minute))
	}
	require.NoError(t, r.InvalidatePrefix(ctx, "sessions:list:acme:"))

	_, ok, _ := r.Get(ctx, "sessions:list:acme:2")
	assert.False(t, ok)
	_, ok, _ = r.Get(ctx, "sessions:list:_all:1")
	assert.True(t, ok)
}

// pagedScanner serves SCAN results one page per cursor and records unlinks.
type pagedScanner struct {
	pages    [][]string
	patterns []string
	unlinked []string
	scanErr  error
}

func (p *pagedScanner) Scan(_ context.Context, cursor uint64, match string, _ int64) *redis.ScanCmd {
	p.patterns = append(p.patterns, match)
	if p.scanErr != nil {
		return redis.NewScanCmdResult(nil, 0, p.scanErr)
	}
	next := cursor + 1
	if int(next) >= len(p.pages) {
		next = 0
	}
	return redis.NewScanCmdResult(p.pages[cursor], next, nil)
}

func (p *pagedScanner) Unlink(_ context.Context, keys ...string) *redis.IntCmd {
	p.unlinked = append(p.unlinked, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestUnlinkMatching(t *testing.T) {
	ctx := context.Background()

	t.Run("follows the cursor to the end", func(t *testing.T) {
		scanner := &pagedScanner{pages: [][]string{{"a:1", "a:2"}, {}, {"a:3"}}}
		require.NoError(t, unlinkMatching(ctx, scanner, "a:*"))
		assert.Equal(t, []string{"a:1", "a:2", "a:3"}, scanner.unlinked)
		assert.Equal(t, []string{"a:*", "a:*", "a:*"}, scanner.patterns)
	})

	t.Run("wraps scan failures", func(t *testing.T) {
		boom := errors.New("boom")
		err := unlinkMatching(ctx, &pagedScanner{scanErr: boom}, "a:*")
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "redis scan")
	})
}

func TestRedisClusterInvalidatePrefix(t *testing.T) {
	addrs := os.Getenv("SPEEDNET_TEST_REDIS_CLUSTER_ADDRS")
	if addrs == "" {
		t.Skip("SPEEDNET_TEST_REDIS_CLUSTER_ADDRS not set")
	}
	ctx := context.Background()
	client := redis.NewClusterClient(&redis.ClusterOptions{Addrs: strings.Split(addrs, ",")})
	require.NoError(t, client.Ping(ctx).Err())
	r := NewRedisWithClient(client, "speednet-test:"+uuid.NewString()+":")
	t.Cleanup(func() { _ = r.Close() })

	require.NoError(t, r.Set(ctx, "sessions:list:_all:1", []byte("v"), time.Minute))
	// Enough keys to land on every master.
	for range 64 {
		require.NoError(t, r.Set(ctx, "sessions:list:acme:"+uuid.NewString(), []byte("v"), time.Minute))
	}
	require.NoError(t, r.InvalidatePrefix(ctx, "sessions:list:acme:"))

	var remaining atomic.Int64
	require.NoError(t, client.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		keys, err := node.Keys(ctx, r.keyPrefix+"sessions:list:acme:*").Result()
		remaining.Add(int64(len(keys)))
		return err
	}))
	assert.Zero(t, remaining.Load())
	_, ok, err := r.Get(ctx, "sessions:list:_all:1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, r.InvalidatePrefix(ctx, ""))
}

func TestNewRedisRequiresAddress(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisOptions{})
	require.Error(t, err)
}
