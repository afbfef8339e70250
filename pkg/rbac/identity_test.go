package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/platinummonkey/storygate/pkg/ability"
	"github.com/platinummonkey/storygate/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIdentities serves identities from a map and counts lookups
type fakeIdentities struct {
	identities map[int64]*ability.Identity
	err        error
	calls      int
}

func (f *fakeIdentities) Identity(ctx context.Context, userID int64) (*ability.Identity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	id, ok := f.identities[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return id, nil
}

func TestNewCachedIdentityProvider_ZeroTTLDisablesCache(t *testing.T) {
	next := &fakeIdentities{}
	provider := NewCachedIdentityProvider(next, 10, 0, nil)
	assert.Same(t, next, provider)
}

func TestCachedIdentityProvider_HitsAndMisses(t *testing.T) {
	next := &fakeIdentities{identities: map[int64]*ability.Identity{
		1: {RoleName: "EDITOR", Permissions: []string{"story:update"}},
	}}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	provider := NewCachedIdentityProvider(next, 10, time.Minute, metrics)
	ctx := context.Background()

	first, err := provider.Identity(ctx, 1)
	require.NoError(t, err)
	second, err := provider.Identity(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IdentityCacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IdentityCacheMissesTotal))

	// callers cannot mutate the cached copy
	second.Permissions[0] = "role:delete"
	third, err := provider.Identity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"story:update"}, third.Permissions)
}

func TestCachedIdentityProvider_ErrorsNotCached(t *testing.T) {
	next := &fakeIdentities{err: errors.New("db down")}
	provider := NewCachedIdentityProvider(next, 10, time.Minute, nil)
	ctx := context.Background()

	_, err := provider.Identity(ctx, 1)
	assert.Error(t, err)
	_, err = provider.Identity(ctx, 1)
	assert.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedIdentityProvider_InvalidateAndPurge(t *testing.T) {
	next := &fakeIdentities{identities: map[int64]*ability.Identity{
		1: {RoleName: "USER"},
		2: {RoleName: "AUTHOR"},
	}}
	provider := NewCachedIdentityProvider(next, 10, time.Minute, nil).(*CachedIdentityProvider)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		_, err := provider.Identity(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, provider.Len())

	provider.Invalidate(1)
	assert.Equal(t, 1, provider.Len())

	provider.Purge()
	assert.Equal(t, 0, provider.Len())
}

func TestCachedIdentityProvider_Expiry(t *testing.T) {
	next := &fakeIdentities{identities: map[int64]*ability.Identity{1: {RoleName: "USER"}}}
	provider := NewCachedIdentityProvider(next, 10, 20*time.Millisecond, nil)
	ctx := context.Background()

	_, err := provider.Identity(ctx, 1)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = provider.Identity(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, next.calls)
}
