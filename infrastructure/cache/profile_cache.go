package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"linkedpost/domain/model"
	"linkedpost/infrastructure/logger"

	"github.com/redis/go-redis/v9"
)

const profileKeyPrefix = "linkedin:profile:"

// ProfileCache keeps LinkedIn userinfo responses keyed by a hash of the access
// token, so the token itself never lands in Redis.
type ProfileCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewProfileCache(client redis.Cmdable, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ProfileCache{client: client, ttl: ttl}
}

func profileKey(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return profileKeyPrefix + hex.EncodeToString(sum[:])
}

// Get treats every Redis failure as a miss.
func (c *ProfileCache) Get(ctx context.Context, accessToken string) (*model.LinkedInProfile, bool) {
	raw, err := c.client.Get(ctx, profileKey(accessToken)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.GetLogger().WithField("error", err).Warn("profile cache read failed")
		}
		return nil, false
	}
	p := &model.LinkedInProfile{}
	if err := json.Unmarshal(raw, p); err != nil || p.Sub == "" {
		return nil, false
	}
	return p, true
}

func (c *ProfileCache) Set(ctx context.Context, accessToken string, profile *model.LinkedInProfile) {
	if profile == nil {
		return
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, profileKey(accessToken), raw, c.ttl).Err(); err != nil {
		logger.GetLogger().WithField("error", err).Warn("profile cache write failed")
	}
}

// Forget drops the cached profile, e.g. when the member disconnects.
func (c *ProfileCache) Forget(ctx context.Context, accessToken string) {
	_ = c.client.Del(ctx, profileKey(accessToken)).Err()
}
