// Package cache memoizes read-heavy aggregates keyed by entity, institution,
// and period. Invalidation is explicit and scope-driven: every cached key is
// registered in a per-(institution, period) index, and mutations remove the
// whole scope by direct lookup rather than scanning the key space. A short
// TTL bounds staleness for readers racing an invalidation.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kinerja/pkg/domain"
)

// Cache is the read-through contract shared by the redis and memory
// implementations. Values are opaque JSON blobs; callers own serialization.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value under key and registers the key in its scope index.
	Set(ctx context.Context, scope Scope, key string, value []byte) error
	// Invalidate removes every key registered under the scope.
	Invalidate(ctx context.Context, scope Scope) error
}

// Scope identifies the institution+period slice of the key space a mutation
// must invalidate.
type Scope struct {
	InstitutionID uuid.UUID
	Period        domain.Period
}

func (s Scope) String() string {
	return fmt.Sprintf("%s:%s", s.InstitutionID, s.Period)
}

// Key builds a cache key inside a scope for a named aggregate.
func Key(scope Scope, kind string, parts ...string) string {
	key := fmt.Sprintf("kinerja:%s:%s", kind, scope)
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// DefaultTTL bounds staleness of cached aggregates. Readers may observe a
// value this old while an invalidation is in flight.
const DefaultTTL = 5 * time.Minute
