package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"linkedpost/domain/model"
	"linkedpost/infrastructure/cache"
)

func setupProfileCache(t *testing.T) (*cache.ProfileCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewProfileCache(client, time.Minute), mr
}

func TestProfileCache_SetGet(t *testing.T) {
	pc, mr := setupProfileCache(t)
	ctx := context.Background()

	_, ok := pc.Get(ctx, "token-a")
	assert.False(t, ok)

	pc.Set(ctx, "token-a", &model.LinkedInProfile{Sub: "abc", Name: "Ada"})
	p, ok := pc.Get(ctx, "token-a")
	require.True(t, ok)
	assert.Equal(t, "abc", p.Sub)

	for _, key := range mr.Keys() {
		assert.NotContains(t, key, "token-a")
	}

	_, ok = pc.Get(ctx, "token-b")
	assert.False(t, ok)
}

func TestProfileCache_Expiry(t *testing.T) {
	pc, mr := setupProfileCache(t)
	ctx := context.Background()

	pc.Set(ctx, "tok", &model.LinkedInProfile{Sub: "abc"})
	mr.FastForward(2 * time.Minute)

	_, ok := pc.Get(ctx, "tok")
	assert.False(t, ok)
}

func TestProfileCache_Forget(t *testing.T) {
	pc, _ := setupProfileCache(t)
	ctx := context.Background()

	pc.Set(ctx, "tok", &model.LinkedInProfile{Sub: "abc"})
	pc.Forget(ctx, "tok")

	_, ok := pc.Get(ctx, "tok")
	assert.False(t, ok)
}

func TestNewCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := cache.NewCache(ctx, "127.0.0.1:1", "", "")
	assert.Error(t, err)
}

func TestNewCache_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := cache.NewCache(context.Background(), mr.Addr(), "", "")
	require.NoError(t, err)
	defer client.Close()
}
