//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kinerja/internal/cache"
	"kinerja/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = cache.NewRedisCache(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestSetGetRoundtrip() {
	ctx := context.Background()
	scope := cache.Scope{InstitutionID: uuid.New(), Period: "2025-Q1"}
	key := cache.Key(scope, "compliance")

	_, hit, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.False(hit)

	s.Require().NoError(s.cache.Set(ctx, scope, key, []byte(`{"score":95.5}`)))

	value, hit, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.True(hit)
	s.JSONEq(`{"score":95.5}`, string(value))
}

func (s *RedisCacheSuite) TestInvalidateRemovesWholeScope() {
	ctx := context.Background()
	scope := cache.Scope{InstitutionID: uuid.New(), Period: "2025-Q1"}
	other := cache.Scope{InstitutionID: scope.InstitutionID, Period: "2025-Q2"}

	keys := []string{
		cache.Key(scope, "compliance"),
		cache.Key(scope, "submissions"),
	}
	for _, key := range keys {
		s.Require().NoError(s.cache.Set(ctx, scope, key, []byte("cached")))
	}
	otherKey := cache.Key(other, "compliance")
	s.Require().NoError(s.cache.Set(ctx, other, otherKey, []byte("kept")))

	s.Require().NoError(s.cache.Invalidate(ctx, scope))

	for _, key := range keys {
		_, hit, err := s.cache.Get(ctx, key)
		s.Require().NoError(err)
		s.False(hit, "key %s should be gone", key)
	}
	_, hit, err := s.cache.Get(ctx, otherKey)
	s.Require().NoError(err)
	s.True(hit, "other period must survive invalidation")
}
