package mcp

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbridge/twitter-bridge/internal/api"
	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
	"github.com/feedbridge/twitter-bridge/internal/biz/usecase"
	"github.com/feedbridge/twitter-bridge/internal/service"
)

type memoryAccounts struct {
	tokens map[string]string
}

func (m *memoryAccounts) RegisterAccount(ctx context.Context, cred *domain.Credential) error {
	m.tokens[cred.AccountID] = cred.Token
	return nil
}

func (m *memoryAccounts) GetCredential(ctx context.Context, accountID string) (*domain.Credential, error) {
	token, ok := m.tokens[accountID]
	if !ok {
		return nil, domain.ErrUnknownAccount
	}
	return &domain.Credential{AccountID: accountID, Token: token}, nil
}

func (m *memoryAccounts) ListKnownAccounts(ctx context.Context) ([]string, error) {
	return nil, nil
}

// newBridge starts the real control-plane API over in-memory state
func newBridge(t *testing.T) (*Server, *Client, *memoryAccounts) {
	t.Helper()

	quota, err := usecase.NewQuotaTracker(usecase.QuotaConfig{
		Endpoints: map[string]domain.EndpointLimit{
			domain.EndpointFollowersIDs: {LimitWindow: 15 * time.Minute, PerUserLimit: 15},
		},
		Margin: 0.5,
	})
	require.NoError(t, err)

	accounts := &memoryAccounts{tokens: make(map[string]string)}
	watches := service.NewWatchService(usecase.NewWatchRegistry(), accounts, quota, nil)

	httpServer := httptest.NewServer(api.NewServer(watches, 0, nil).Handler())
	t.Cleanup(httpServer.Close)

	client := NewClient(httpServer.URL + "/")
	return NewServer(client, "test"), client, accounts
}

func TestTools_RegisterAndWatch(t *testing.T) {
	server, _, accounts := newBridge(t)
	ctx := context.Background()

	_, out, err := server.handleRegisterAccount(ctx, nil, RegisterAccountInput{Account: "u1", Token: "secret"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "secret", accounts.tokens["u1"])

	_, out, _ = server.handleWatchChannel(ctx, nil, WatchChannelInput{Account: "u1", Channel: "@golang"})
	assert.True(t, out.Success)
	_, out, _ = server.handleWatchTimeline(ctx, nil, AccountInput{Account: "u1"})
	assert.True(t, out.Success)
	_, out, _ = server.handleWatchFollowers(ctx, nil, AccountInput{Account: "u2"})
	assert.True(t, out.Success)

	_, list, err := server.handleListWatches(ctx, nil, ListWatchesInput{})
	require.NoError(t, err)
	require.Empty(t, list.Error)
	require.Len(t, list.Watches.Monitors, 1)
	assert.Equal(t, "u1", list.Watches.Monitors[0].Account)
	assert.Equal(t, []string{"golang"}, list.Watches.Monitors[0].Channels)
	assert.Equal(t, []string{"u1"}, list.Watches.Timelines)
	assert.Equal(t, []string{"u1", "u2"}, list.Watches.Followers)
}

func TestTools_ReportBridgeErrors(t *testing.T) {
	server, _, _ := newBridge(t)

	_, out, err := server.handleWatchChannel(context.Background(), nil, WatchChannelInput{Account: "u1"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "HTTP 400")
}

func TestClient_GetQuota(t *testing.T) {
	_, client, _ := newBridge(t)

	require.NoError(t, client.WatchFollowers("u1"))
	buckets, err := client.GetQuota()
	require.NoError(t, err)
	assert.Empty(t, buckets, "nothing polled yet")
}

func TestClient_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.ListWatches()
	assert.Error(t, err)
}
