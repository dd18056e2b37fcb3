package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
	"github.com/feedbridge/twitter-bridge/internal/biz/repo"
	"github.com/feedbridge/twitter-bridge/internal/infra/twitter"
)

// twitterRepo implements FeedRepo over the REST API
type twitterRepo struct {
	client *twitter.Client
}

// NewTwitterRepo creates a new feed repository backed by the REST API
func NewTwitterRepo(client *twitter.Client) repo.FeedRepo {
	return &twitterRepo{client: client}
}

// FetchRecentItems returns the channel's latest items, newest first
func (r *twitterRepo) FetchRecentItems(ctx context.Context, cred *domain.Credential, channel string, count int) ([]*domain.Item, error) {
	tweets, err := r.client.UserTimeline(ctx, cred.Token, channel, count)
	if err != nil {
		return nil, classify(err)
	}
	return toItems(tweets), nil
}

// FetchTimelineSince returns home timeline items newer than sinceID
func (r *twitterRepo) FetchTimelineSince(ctx context.Context, cred *domain.Credential, sinceID int64) ([]*domain.Item, error) {
	tweets, err := r.client.HomeTimeline(ctx, cred.Token, sinceID)
	if err != nil {
		return nil, classify(err)
	}
	return toItems(tweets), nil
}

// FetchFollowerIDs returns the complete follower set of the account
func (r *twitterRepo) FetchFollowerIDs(ctx context.Context, cred *domain.Credential) ([]domain.FollowerID, error) {
	ids, err := r.client.FollowerIDs(ctx, cred.Token)
	if err != nil {
		return nil, classify(err)
	}

	followers := make([]domain.FollowerID, len(ids))
	for i, id := range ids {
		followers[i] = domain.FollowerID(id)
	}
	return followers, nil
}

// classify marks quota refusals with domain.ErrRateLimited
func classify(err error) error {
	var apiErr *twitter.APIError
	if errors.As(err, &apiErr) && apiErr.RateLimited() {
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}
	return err
}

func toItems(tweets []*twitter.Tweet) []*domain.Item {
	items := make([]*domain.Item, 0, len(tweets))
	for _, t := range tweets {
		items = append(items, &domain.Item{
			ID:        t.ID,
			Author:    t.User.ScreenName,
			Text:      t.Body(),
			URL:       statusURL(t.User.ScreenName, t.ID),
			CreatedAt: t.Created(),
			Raw:       t.Raw,
		})
	}
	return items
}
