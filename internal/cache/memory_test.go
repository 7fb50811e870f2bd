package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kinerja/pkg/domain"
)

type MemoryCacheSuite struct {
	suite.Suite
	cache *MemoryCache
	scope Scope
	clock time.Time
}

func TestMemoryCacheSuite(t *testing.T) {
	suite.Run(t, new(MemoryCacheSuite))
}

func (s *MemoryCacheSuite) SetupTest() {
	s.cache = NewMemoryCache(5 * time.Minute)
	s.clock = time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	s.cache.now = func() time.Time { return s.clock }
	s.scope = Scope{InstitutionID: uuid.New(), Period: domain.Period("2024-Q2")}
}

func (s *MemoryCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	key := Key(s.scope, "statistics")

	_, found, err := s.cache.Get(ctx, key)
	s.NoError(err)
	s.False(found)

	s.NoError(s.cache.Set(ctx, s.scope, key, []byte(`{"total":3}`)))

	value, found, err := s.cache.Get(ctx, key)
	s.NoError(err)
	s.True(found)
	s.Equal([]byte(`{"total":3}`), value)
}

func (s *MemoryCacheSuite) TestInvalidateRemovesWholeScope() {
	ctx := context.Background()
	statsKey := Key(s.scope, "statistics")
	recordKey := Key(s.scope, "submission", uuid.NewString())
	s.NoError(s.cache.Set(ctx, s.scope, statsKey, []byte("a")))
	s.NoError(s.cache.Set(ctx, s.scope, recordKey, []byte("b")))

	// A different scope is untouched.
	other := Scope{InstitutionID: uuid.New(), Period: domain.Period("2024-Q2")}
	otherKey := Key(other, "statistics")
	s.NoError(s.cache.Set(ctx, other, otherKey, []byte("c")))

	s.NoError(s.cache.Invalidate(ctx, s.scope))

	_, found, _ := s.cache.Get(ctx, statsKey)
	s.False(found)
	_, found, _ = s.cache.Get(ctx, recordKey)
	s.False(found)
	_, found, _ = s.cache.Get(ctx, otherKey)
	s.True(found)
}

func (s *MemoryCacheSuite) TestTTLBoundsStaleness() {
	ctx := context.Background()
	key := Key(s.scope, "statistics")
	s.NoError(s.cache.Set(ctx, s.scope, key, []byte("x")))

	s.clock = s.clock.Add(6 * time.Minute)

	_, found, err := s.cache.Get(ctx, key)
	s.NoError(err)
	s.False(found)
}

func (s *MemoryCacheSuite) TestInvalidateEmptyScopeIsNoOp() {
	s.NoError(s.cache.Invalidate(context.Background(), s.scope))
}
