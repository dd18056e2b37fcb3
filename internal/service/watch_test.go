package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
	"github.com/feedbridge/twitter-bridge/internal/biz/usecase"
)

func newTestWatchService(t *testing.T, store *memoryStore) (*WatchService, *usecase.WatchRegistry) {
	t.Helper()
	quota, err := usecase.NewQuotaTracker(usecase.QuotaConfig{Endpoints: fastEndpoints(), Margin: 0.5, MinUpdatePeriod: time.Minute})
	require.NoError(t, err)
	registry := usecase.NewWatchRegistry()
	return NewWatchService(registry, store, quota, nil), registry
}

func TestWatchService_RegisterAccount(t *testing.T) {
	store := newMemoryStore()
	svc, registry := newTestWatchService(t, store)

	require.NoError(t, svc.RegisterAccount(context.Background(), " u1 ", "secret"))

	cred, err := store.GetCredential(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "secret", cred.Token)
	assert.Equal(t, []string{"u1"}, registry.KnownAccounts())
}

func TestWatchService_RejectsIncompleteRegistrations(t *testing.T) {
	svc, _ := newTestWatchService(t, newMemoryStore())

	assert.True(t, errors.Is(svc.RegisterAccount(context.Background(), "u1", ""), ErrInvalidWatch))
	assert.True(t, errors.Is(svc.WatchChannel("u1", " "), ErrInvalidWatch))
	assert.True(t, errors.Is(svc.WatchChannel("", "golang"), ErrInvalidWatch))
	assert.True(t, errors.Is(svc.WatchTimeline(""), ErrInvalidWatch))
	assert.True(t, errors.Is(svc.WatchFollowers(""), ErrInvalidWatch))
}

func TestWatchService_Watches(t *testing.T) {
	svc, _ := newTestWatchService(t, newMemoryStore())

	require.NoError(t, svc.WatchChannel("u1", "@golang"))
	require.NoError(t, svc.WatchTimeline("u1"))
	require.NoError(t, svc.WatchFollowers("u2"))

	watches := svc.Watches()
	require.Len(t, watches.Monitors, 1)
	assert.Equal(t, []string{"golang"}, watches.Monitors[0].Channels)
	assert.Equal(t, []string{"u1"}, watches.Timelines)
	assert.Equal(t, []string{"u2"}, watches.Followers)
}

func TestWatchService_Restore(t *testing.T) {
	store := newMemoryStore("u2", "u1")
	svc, registry := newTestWatchService(t, store)

	n, err := svc.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"u1", "u2"}, registry.KnownAccounts())
}

func TestWatchService_Quota(t *testing.T) {
	svc, _ := newTestWatchService(t, newMemoryStore())
	assert.Empty(t, svc.Quota())

	due, err := svc.quota.IsDue("u1", domain.EndpointFollowersIDs, 1, "")
	require.NoError(t, err)
	require.True(t, due)

	status := svc.Quota()
	require.Len(t, status, 1)
	assert.Equal(t, "u1", status[0].ConnectionID)
	assert.Equal(t, domain.EndpointFollowersIDs, status[0].Bucket)
	assert.Contains(t, status[0].Checked, "")
}
