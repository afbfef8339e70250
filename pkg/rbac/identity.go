package rbac

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/storygate/pkg/ability"
	"github.com/platinummonkey/storygate/pkg/observability"
)

// IdentityProvider resolves a user ID to the role and permissions the
// ability engine evaluates
type IdentityProvider interface {
	Identity(ctx context.Context, userID int64) (*ability.Identity, error)
}

// defaultIdentityCacheSize bounds the number of cached identities
const defaultIdentityCacheSize = 4096

// CachedIdentityProvider memoizes identities for a short TTL. Errors are
// never cached.
type CachedIdentityProvider struct {
	next    IdentityProvider
	cache   *lru.LRU[int64, ability.Identity]
	metrics *observability.Metrics
}

// NewCachedIdentityProvider wraps next with an expiring LRU. A non-positive
// ttl returns next unchanged.
func NewCachedIdentityProvider(next IdentityProvider, size int, ttl time.Duration, metrics *observability.Metrics) IdentityProvider {
	if ttl <= 0 {
		return next
	}
	if size <= 0 {
		size = defaultIdentityCacheSize
	}

	return &CachedIdentityProvider{
		next:    next,
		cache:   lru.NewLRU[int64, ability.Identity](size, nil, ttl),
		metrics: metrics,
	}
}

// Identity returns the cached identity or loads it from the wrapped provider
func (c *CachedIdentityProvider) Identity(ctx context.Context, userID int64) (*ability.Identity, error) {
	if id, ok := c.cache.Get(userID); ok {
		c.metrics.RecordIdentityCache(true)
		return copyIdentity(id), nil
	}
	c.metrics.RecordIdentityCache(false)

	id, err := c.next.Identity(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(userID, *copyIdentity(*id))
	return id, nil
}

// Invalidate drops one user's cached identity
func (c *CachedIdentityProvider) Invalidate(userID int64) {
	c.cache.Remove(userID)
}

// Purge drops every cached identity
func (c *CachedIdentityProvider) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached identities
func (c *CachedIdentityProvider) Len() int {
	return c.cache.Len()
}

func copyIdentity(id ability.Identity) *ability.Identity {
	out := ability.Identity{RoleName: id.RoleName}
	if id.Permissions != nil {
		out.Permissions = append([]string(nil), id.Permissions...)
	}
	return &out
}

// invalidator is implemented by providers that cache identities
type invalidator interface {
	Invalidate(userID int64)
	Purge()
}
