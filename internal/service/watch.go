package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
	"github.com/feedbridge/twitter-bridge/internal/biz/repo"
	"github.com/feedbridge/twitter-bridge/internal/biz/usecase"
)

// ErrInvalidWatch is returned for registrations missing an account or channel
var ErrInvalidWatch = errors.New("invalid watch")

// WatchSnapshot lists the registered watches
type WatchSnapshot struct {
	Monitors  []usecase.MonitorSet `json:"monitors"`
	Timelines []string             `json:"timelines"`
	Followers []string             `json:"followers"`
}

// WatchService is the control plane: it registers accounts and watches.
// The poll scheduler picks new watches up on its next tick.
type WatchService struct {
	registry *usecase.WatchRegistry
	accounts repo.AccountRepo
	quota    *usecase.QuotaTracker
	logger   *zap.Logger
}

// NewWatchService creates a new watch service
func NewWatchService(registry *usecase.WatchRegistry, accounts repo.AccountRepo, quota *usecase.QuotaTracker, logger *zap.Logger) *WatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatchService{
		registry: registry,
		accounts: accounts,
		quota:    quota,
		logger:   logger,
	}
}

// Restore re-registers every persisted account as a follower watch
func (s *WatchService) Restore(ctx context.Context) (int, error) {
	accounts, err := s.accounts.ListKnownAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list known accounts: %w", err)
	}
	for _, accountID := range accounts {
		s.registry.AddKnownAccount(accountID)
	}
	s.logger.Info("known accounts restored", zap.Int("count", len(accounts)))
	return len(accounts), nil
}

// RegisterAccount stores the account's token and starts watching its followers
func (s *WatchService) RegisterAccount(ctx context.Context, accountID, token string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" || token == "" {
		return fmt.Errorf("%w: account and token are required", ErrInvalidWatch)
	}

	if err := s.accounts.RegisterAccount(ctx, &domain.Credential{AccountID: accountID, Token: token}); err != nil {
		return fmt.Errorf("failed to register account: %w", err)
	}
	s.registry.AddKnownAccount(accountID)

	s.logger.Info("account registered", zap.String("account", accountID))
	return nil
}

// WatchChannel starts monitoring a public channel on behalf of an account
func (s *WatchService) WatchChannel(accountID, channel string) error {
	accountID = strings.TrimSpace(accountID)
	channel = strings.TrimPrefix(strings.TrimSpace(channel), "@")
	if accountID == "" || channel == "" {
		return fmt.Errorf("%w: account and channel are required", ErrInvalidWatch)
	}

	s.registry.AddMonitor(accountID, channel)
	s.logger.Info("channel watch added", zap.String("account", accountID), zap.String("channel", channel))
	return nil
}

// WatchTimeline starts following the account's home timeline
func (s *WatchService) WatchTimeline(accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("%w: account is required", ErrInvalidWatch)
	}

	s.registry.AddTimeline(accountID)
	s.logger.Info("timeline watch added", zap.String("account", accountID))
	return nil
}

// WatchFollowers starts diffing the account's follower set
func (s *WatchService) WatchFollowers(accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("%w: account is required", ErrInvalidWatch)
	}

	s.registry.AddFollowerWatch(accountID)
	s.logger.Info("follower watch added", zap.String("account", accountID))
	return nil
}

// Watches returns the registered watches
func (s *WatchService) Watches() WatchSnapshot {
	return WatchSnapshot{
		Monitors:  s.registry.Monitors(),
		Timelines: s.registry.Timelines(),
		Followers: s.registry.KnownAccounts(),
	}
}

// Quota returns the quota tracker's bucket state
func (s *WatchService) Quota() []usecase.BucketStatus {
	return s.quota.Snapshot()
}
