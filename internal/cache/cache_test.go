package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoresCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(4, nil)

	value := []byte("hello")
	require.NoError(t, c.Set(ctx, "k", value, time.Minute))
	value[0] = 'j'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(got))

	got[0] = 'y'
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "hello", string(again))
}

func TestMemoryExpiresEntries(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	c := NewMemory(4, func() time.Time { return current })

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	_, ok, _ := c.Get(ctx, "k")
	require.True(t, ok, "hit before expiry")

	current = current.Add(time.Second)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok, "entry expires at its deadline")
	assert.Equal(t, 0, c.Len())
}

func TestMemoryEvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	c := NewMemory(2, func() time.Time { return current })

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "new", []byte("3"), time.Minute))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "short")
	assert.False(t, ok, "entry nearest expiry is evicted")
	_, ok, _ = c.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemoryInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10, nil)
	for _, key := range []string{"sessions:list:acme:1", "sessions:list:acme:2", "sessions:list:_all:1", "sessions:runtime:s1:x"} {
		require.NoError(t, c.Set(ctx, key, []byte("v"), time.Minute))
	}

	require.NoError(t, c.InvalidatePrefix(ctx, "sessions:list:acme:"))

	_, ok, _ := c.Get(ctx, "sessions:list:acme:1")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "sessions:list:_all:1")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "sessions:runtime:s1:x")
	assert.True(t, ok)
}

func TestNopNeverHits(t *testing.T) {
	ctx := context.Background()
	var c Cache = Nop{}
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10, nil)
	calls := 0
	produce := func(context.Context) (payload, error) {
		calls++
		return payload{Name: "list", Count: calls}, nil
	}

	first, err := Remember(ctx, c, "k", time.Minute, produce)
	require.NoError(t, err)
	second, err := Remember(ctx, c, "k", time.Minute, produce)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	require.NoError(t, c.InvalidatePrefix(ctx, "k"))
	third, err := Remember(ctx, c, "k", time.Minute, produce)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Count)
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10, nil)
	boom := errors.New("boom")

	_, err := Remember(ctx, c, "k", time.Minute, func(context.Context) (payload, error) {
		return payload{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}

func (failingCache) InvalidatePrefix(context.Context, string) error { return errors.New("down") }

func TestRememberIgnoresCacheFailures(t *testing.T) {
	got, err := Remember(context.Background(), failingCache{}, "k", time.Minute, func(context.Context) (payload, error) {
		return payload{Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)

	InvalidatePrefixes(context.Background(), failingCache{}, "a", "b")
}

func TestRememberTreatsGarbageAsMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10, nil)
	require.NoError(t, c.Set(ctx, "k", []byte("{not json"), time.Minute))

	got, err := Remember(ctx, c, "k", time.Minute, func(context.Context) (payload, error) {
		return payload{Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)
}

func TestHashAndFingerprint(t *testing.T) {
	assert.NotEqual(t, Hash("ab", "c"), Hash("a", "bc"))
	assert.Equal(t, Hash("x", "y"), Hash("x", "y"))
	assert.Len(t, Hash("x"), 32)

	assert.Equal(t, ScopeFingerprint([]string{"b", "a", "a"}), ScopeFingerprint([]string{"a", "b"}))
	assert.NotEqual(t, ScopeFingerprint([]string{"a"}), ScopeFingerprint([]string{"a", "b"}))
	assert.Equal(t, "any", ScopeFingerprint(nil))
	assert.Equal(t, "sessions:list:acme", Key("sessions", "list", "acme"))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `sessions:list:a\*b\?\[c\]:`, escapeGlob("sessions:list:a*b?[c]:"))
}
