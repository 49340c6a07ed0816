package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetDelete(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	type entry struct {
		Name string `json:"name"`
	}
	var got entry
	hit, err := cache.Get(ctx, CacheKey("user", "u1"), &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, CacheKey("user", "u1"), entry{Name: "Ravi"}))
	assert.True(t, mr.Exists("cache:user:u1"))
	assert.Equal(t, DefaultCacheTTL, mr.TTL("cache:user:u1"))

	hit, err = cache.Get(ctx, CacheKey("user", "u1"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Ravi", got.Name)

	require.NoError(t, cache.Delete(ctx, CacheKey("user", "u1")))
	assert.False(t, mr.Exists("cache:user:u1"))
}

func TestCache_ClampsTTL(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetWithTTL(ctx, "short", 1, time.Second))
	assert.Equal(t, MinCacheTTL, mr.TTL("cache:short"))

	require.NoError(t, cache.SetWithTTL(ctx, "long", 1, 48*time.Hour))
	assert.Equal(t, MaxCacheTTL, mr.TTL("cache:long"))
}

func TestCache_UndecodableEntry(t *testing.T) {
	mr, cache := newTestCache(t)
	require.NoError(t, mr.Set("cache:bad", "{"))

	var v map[string]any
	_, err := cache.Get(context.Background(), "bad", &v)
	require.Error(t, err)
}

func TestFeedHub_CoalescesAndUnsubscribes(t *testing.T) {
	hub := NewFeedHub()
	ch, cancel := hub.Subscribe()
	other, cancelOther := hub.Subscribe()
	defer cancelOther()
	assert.Equal(t, 2, hub.Subscribers())

	hub.Notify()
	hub.Notify()
	hub.Notify()

	select {
	case <-ch:
	default:
		t.Fatal("expected a signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}
	<-other

	cancel()
	cancel()
	assert.Equal(t, 1, hub.Subscribers())
	hub.Notify()
	select {
	case <-ch:
		t.Fatal("cancelled subscriber received a signal")
	default:
	}
}
