package repo

import (
	"context"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
)

// EventSink receives the events emitted by the diff pipelines
type EventSink interface {
	OnChannelUpdate(ctx context.Context, event *domain.Event) error
	OnTimelineUpdate(ctx context.Context, event *domain.Event) error
	OnFollow(ctx context.Context, event *domain.Event) error
	OnUnfollow(ctx context.Context, event *domain.Event) error
}
