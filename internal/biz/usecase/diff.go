package usecase

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
	"github.com/feedbridge/twitter-bridge/internal/biz/repo"
)

// DefaultItemsPerCheck is how many items a channel check fetches
const DefaultItemsPerCheck = 10

// DiffEngine reconciles freshly fetched feed state against what was already
// emitted and forwards only new events to the sink.
//
// Every pipeline persists the new cursor or membership row before emitting
// the matching event. A crash between the two loses that one event instead
// of emitting it twice on restart.
type DiffEngine struct {
	feed      repo.FeedRepo
	accounts  repo.AccountRepo
	cursors   repo.CursorRepo
	followers repo.FollowerRepo
	sink      repo.EventSink
	batchSize int
	logger    *zap.Logger
}

// NewDiffEngine creates a diff engine. batchSize <= 0 selects DefaultItemsPerCheck.
func NewDiffEngine(
	feed repo.FeedRepo,
	accounts repo.AccountRepo,
	cursors repo.CursorRepo,
	followers repo.FollowerRepo,
	sink repo.EventSink,
	batchSize int,
	logger *zap.Logger,
) *DiffEngine {
	if batchSize <= 0 {
		batchSize = DefaultItemsPerCheck
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiffEngine{
		feed:      feed,
		accounts:  accounts,
		cursors:   cursors,
		followers: followers,
		sink:      sink,
		batchSize: batchSize,
		logger:    logger,
	}
}

// BatchSize returns how many items a channel check fetches
func (e *DiffEngine) BatchSize() int {
	return e.batchSize
}

// CheckChannel fetches the latest items of a monitored channel and emits the new ones.
//
// Only the latest BatchSize items are fetched. When a channel publishes more
// than that between two checks, the older part of the burst is never emitted.
func (e *DiffEngine) CheckChannel(ctx context.Context, accountID, channel string) (int, error) {
	cred, err := e.accounts.GetCredential(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("get credential: %w", err)
	}

	items, err := e.feed.FetchRecentItems(ctx, cred, channel, e.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch recent items: %w", err)
	}

	return e.DiffChannel(ctx, accountID, channel, items)
}

// DiffChannel emits, oldest first, every item above the stored cursor of
// (accountID, channel) and advances the cursor past it.
func (e *DiffEngine) DiffChannel(ctx context.Context, accountID, channel string, items []*domain.Item) (int, error) {
	cursor, _, err := e.cursors.GetChannelCursor(ctx, accountID, channel)
	if err != nil {
		return 0, fmt.Errorf("get channel cursor: %w", err)
	}

	emitted := 0
	for _, item := range oldestFirst(items) {
		if item.ID <= cursor {
			continue
		}
		if err := e.cursors.SetChannelCursor(ctx, accountID, channel, item.ID); err != nil {
			return emitted, fmt.Errorf("set channel cursor: %w", err)
		}
		cursor = item.ID

		if err := e.sink.OnChannelUpdate(ctx, domain.NewChannelUpdate(accountID, channel, item)); err != nil {
			return emitted, fmt.Errorf("emit channel update %d: %w", item.ID, err)
		}
		emitted++
	}

	if emitted > 0 {
		e.logger.Debug("channel updates emitted",
			zap.String("account", accountID), zap.String("channel", channel),
			zap.Int("count", emitted), zap.Int64("cursor", cursor))
	}
	return emitted, nil
}

// CheckTimeline fetches the home timeline since the stored cursor and emits every new item
func (e *DiffEngine) CheckTimeline(ctx context.Context, accountID string) (int, error) {
	cred, err := e.accounts.GetCredential(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("get credential: %w", err)
	}

	since, _, err := e.cursors.GetTimelineCursor(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("get timeline cursor: %w", err)
	}

	items, err := e.feed.FetchTimelineSince(ctx, cred, since)
	if err != nil {
		return 0, fmt.Errorf("fetch timeline: %w", err)
	}

	return e.DiffTimeline(ctx, accountID, since, items)
}

// DiffTimeline emits timeline items oldest first, moving the cursor to the
// newest one. Items at or below since are dropped in case the remote side
// includes the boundary item.
func (e *DiffEngine) DiffTimeline(ctx context.Context, accountID string, since int64, items []*domain.Item) (int, error) {
	cursor := since
	emitted := 0
	for _, item := range oldestFirst(items) {
		if item.ID <= cursor {
			continue
		}
		if err := e.cursors.SetTimelineCursor(ctx, accountID, item.ID); err != nil {
			return emitted, fmt.Errorf("set timeline cursor: %w", err)
		}
		cursor = item.ID

		if err := e.sink.OnTimelineUpdate(ctx, domain.NewTimelineUpdate(accountID, item)); err != nil {
			return emitted, fmt.Errorf("emit timeline update %d: %w", item.ID, err)
		}
		emitted++
	}

	if emitted > 0 {
		e.logger.Debug("timeline updates emitted",
			zap.String("account", accountID), zap.Int("count", emitted), zap.Int64("cursor", cursor))
	}
	return emitted, nil
}

// CheckFollowers fetches the complete follower set and diffs it against the snapshot
func (e *DiffEngine) CheckFollowers(ctx context.Context, accountID string) (int, error) {
	cred, err := e.accounts.GetCredential(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("get credential: %w", err)
	}

	current, err := e.feed.FetchFollowerIDs(ctx, cred)
	if err != nil {
		return 0, fmt.Errorf("fetch follower ids: %w", err)
	}

	return e.DiffFollowers(ctx, accountID, current)
}

// DiffFollowers compares the full current follower set with the persisted
// snapshot: new ids become follows, missing ids become unfollows. The first
// run for an account with no stored membership stores the set as a
// baseline and emits nothing.
func (e *DiffEngine) DiffFollowers(ctx context.Context, accountID string, current []domain.FollowerID) (int, error) {
	stored, err := e.followers.GetFollowerSnapshot(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("get follower snapshot: %w", err)
	}

	// Stored rows always count as a baseline, marker or not
	if len(stored) == 0 {
		seeded, err := e.followers.IsSnapshotSeeded(ctx, accountID)
		if err != nil {
			return 0, fmt.Errorf("check snapshot: %w", err)
		}
		if !seeded {
			if err := e.followers.SeedSnapshot(ctx, accountID, dedupeFollowers(current)); err != nil {
				return 0, fmt.Errorf("seed snapshot: %w", err)
			}
			e.logger.Info("follower snapshot seeded",
				zap.String("account", accountID), zap.Int("followers", len(current)))
			return 0, nil
		}
	}

	newSet := toFollowerSet(current)
	oldSet := toFollowerSet(stored)

	emitted := 0
	for _, id := range sortedFollowers(newSet) {
		if _, ok := oldSet[id]; ok {
			continue
		}
		if err := e.followers.AddFollower(ctx, accountID, id); err != nil {
			return emitted, fmt.Errorf("add follower %d: %w", id, err)
		}
		if err := e.sink.OnFollow(ctx, domain.NewFollow(accountID, id)); err != nil {
			return emitted, fmt.Errorf("emit follow %d: %w", id, err)
		}
		emitted++
	}

	for _, id := range sortedFollowers(oldSet) {
		if _, ok := newSet[id]; ok {
			continue
		}
		if err := e.followers.RemoveFollower(ctx, accountID, id); err != nil {
			return emitted, fmt.Errorf("remove follower %d: %w", id, err)
		}
		if err := e.sink.OnUnfollow(ctx, domain.NewUnfollow(accountID, id)); err != nil {
			return emitted, fmt.Errorf("emit unfollow %d: %w", id, err)
		}
		emitted++
	}

	if emitted > 0 {
		e.logger.Debug("follower changes emitted",
			zap.String("account", accountID), zap.Int("count", emitted))
	}
	return emitted, nil
}

// oldestFirst returns the items ordered by increasing id without touching the input
func oldestFirst(items []*domain.Item) []*domain.Item {
	sorted := make([]*domain.Item, 0, len(items))
	for _, item := range items {
		if item != nil {
			sorted = append(sorted, item)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func toFollowerSet(ids []domain.FollowerID) map[domain.FollowerID]struct{} {
	set := make(map[domain.FollowerID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortedFollowers(set map[domain.FollowerID]struct{}) []domain.FollowerID {
	ids := make([]domain.FollowerID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func dedupeFollowers(ids []domain.FollowerID) []domain.FollowerID {
	return sortedFollowers(toFollowerSet(ids))
}
