package repo

import (
	"context"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
)

// FollowerRepo persists follower snapshots as membership rows
type FollowerRepo interface {
	// GetFollowerSnapshot returns the followers currently believed to follow the account
	GetFollowerSnapshot(ctx context.Context, accountID string) ([]domain.FollowerID, error)

	// AddFollower records a membership
	AddFollower(ctx context.Context, accountID string, follower domain.FollowerID) error

	// RemoveFollower deletes a membership
	RemoveFollower(ctx context.Context, accountID string, follower domain.FollowerID) error

	// IsSnapshotSeeded reports whether a baseline snapshot was ever stored for the account
	IsSnapshotSeeded(ctx context.Context, accountID string) (bool, error)

	// SeedSnapshot replaces the stored followers with the baseline set
	SeedSnapshot(ctx context.Context, accountID string, followers []domain.FollowerID) error
}
