package repo

import (
	"context"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
)

// FeedRepo is the quota-limited remote feed
type FeedRepo interface {
	// FetchRecentItems returns the latest count items posted by channel, newest first
	FetchRecentItems(ctx context.Context, cred *domain.Credential, channel string, count int) ([]*domain.Item, error)

	// FetchTimelineSince returns the home timeline items newer than sinceID, newest first.
	// sinceID 0 means no lower bound; filtering happens server side.
	FetchTimelineSince(ctx context.Context, cred *domain.Credential, sinceID int64) ([]*domain.Item, error)

	// FetchFollowerIDs returns the complete current follower set of the credential's account
	FetchFollowerIDs(ctx context.Context, cred *domain.Credential) ([]domain.FollowerID, error)
}
