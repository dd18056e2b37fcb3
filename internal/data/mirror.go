package data

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
	"github.com/feedbridge/twitter-bridge/internal/biz/repo"
)

// mirrorRepo reads public channels from an RSS mirror and leaves the
// authenticated calls (home timeline, followers) to the REST API.
type mirrorRepo struct {
	urlTemplate string // contains one %s for the channel
	parser      *gofeed.Parser
	api         repo.FeedRepo
}

// NewMirrorRepo creates a feed repository that fetches channel items from
// urlTemplate (e.g. "https://mirror.example/%s/rss").
func NewMirrorRepo(urlTemplate string, api repo.FeedRepo) repo.FeedRepo {
	parser := gofeed.NewParser()
	parser.UserAgent = "twitter-bridge/1.0"
	return &mirrorRepo{
		urlTemplate: urlTemplate,
		parser:      parser,
		api:         api,
	}
}

// FetchRecentItems parses the mirror feed of the channel and returns its latest items, newest first
func (r *mirrorRepo) FetchRecentItems(ctx context.Context, cred *domain.Credential, channel string, count int) ([]*domain.Item, error) {
	feedURL := fmt.Sprintf(r.urlTemplate, url.PathEscape(channel))
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mirror feed: %w", err)
	}

	items := make([]*domain.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		id, ok := statusIDOf(entry)
		if !ok {
			continue
		}

		item := &domain.Item{
			ID:     id,
			Author: channel,
			Text:   entry.Title,
			URL:    statusURL(channel, id),
		}
		if entry.Description != "" {
			item.Text = entry.Description
		}
		if entry.PublishedParsed != nil {
			item.CreatedAt = entry.PublishedParsed.UTC()
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].ID > items[j].ID
	})
	if len(items) > count {
		items = items[:count]
	}
	return items, nil
}

// FetchTimelineSince delegates to the REST API
func (r *mirrorRepo) FetchTimelineSince(ctx context.Context, cred *domain.Credential, sinceID int64) ([]*domain.Item, error) {
	return r.api.FetchTimelineSince(ctx, cred, sinceID)
}

// FetchFollowerIDs delegates to the REST API
func (r *mirrorRepo) FetchFollowerIDs(ctx context.Context, cred *domain.Credential) ([]domain.FollowerID, error) {
	return r.api.FetchFollowerIDs(ctx, cred)
}

// statusIDOf extracts the numeric status id from an entry link such as
// https://mirror.example/golang/status/1234#m
func statusIDOf(entry *gofeed.Item) (int64, bool) {
	for _, candidate := range []string{entry.Link, entry.GUID} {
		if candidate == "" {
			continue
		}
		u, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		last := path.Base(strings.TrimRight(u.Path, "/"))
		if id, err := strconv.ParseInt(last, 10, 64); err == nil && id > 0 {
			return id, true
		}
		if id, err := strconv.ParseInt(candidate, 10, 64); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func statusURL(screenName string, id int64) string {
	if screenName == "" {
		return ""
	}
	return fmt.Sprintf("https://twitter.com/%s/status/%d", screenName, id)
}
