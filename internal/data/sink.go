package data

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
	"github.com/feedbridge/twitter-bridge/internal/biz/repo"
	"github.com/feedbridge/twitter-bridge/internal/infra/platform"
)

// TextSender posts plain text to a chat
type TextSender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// chatSink announces events in a chat
type chatSink struct {
	sender TextSender
	chatID string
}

// NewChatSink creates a sink posting one chat message per event
func NewChatSink(sender TextSender, chatID string) repo.EventSink {
	return &chatSink{sender: sender, chatID: chatID}
}

func (s *chatSink) OnChannelUpdate(ctx context.Context, event *domain.Event) error {
	return s.sender.SendText(ctx, s.chatID, formatEvent(event))
}

func (s *chatSink) OnTimelineUpdate(ctx context.Context, event *domain.Event) error {
	return s.sender.SendText(ctx, s.chatID, formatEvent(event))
}

func (s *chatSink) OnFollow(ctx context.Context, event *domain.Event) error {
	return s.sender.SendText(ctx, s.chatID, formatEvent(event))
}

func (s *chatSink) OnUnfollow(ctx context.Context, event *domain.Event) error {
	return s.sender.SendText(ctx, s.chatID, formatEvent(event))
}

func formatEvent(event *domain.Event) string {
	switch event.Type {
	case domain.EventTypeChannelUpdate:
		return fmt.Sprintf("[%s] @%s: %s\n%s", event.AccountID, event.Channel, event.Item.Text, event.Item.URL)
	case domain.EventTypeTimelineUpdate:
		return fmt.Sprintf("[%s] timeline @%s: %s\n%s", event.AccountID, event.Item.Author, event.Item.Text, event.Item.URL)
	case domain.EventTypeFollow:
		return fmt.Sprintf("[%s] new follower %d", event.AccountID, event.FollowerID)
	case domain.EventTypeUnfollow:
		return fmt.Sprintf("[%s] lost follower %d", event.AccountID, event.FollowerID)
	}
	return fmt.Sprintf("[%s] %s", event.AccountID, event.Type)
}

// Notifier pushes notifications to the automation platform
type Notifier interface {
	Notify(ctx context.Context, n *platform.Notification) error
}

// platformSink forwards events to the automation platform
type platformSink struct {
	notifier Notifier
}

// NewPlatformSink creates a sink pushing every event to the platform
func NewPlatformSink(notifier Notifier) repo.EventSink {
	return &platformSink{notifier: notifier}
}

func (s *platformSink) OnChannelUpdate(ctx context.Context, event *domain.Event) error {
	return s.notify(ctx, event, event.Item.Text)
}

func (s *platformSink) OnTimelineUpdate(ctx context.Context, event *domain.Event) error {
	return s.notify(ctx, event, event.Item.Text)
}

func (s *platformSink) OnFollow(ctx context.Context, event *domain.Event) error {
	return s.notify(ctx, event, event.FollowerID)
}

func (s *platformSink) OnUnfollow(ctx context.Context, event *domain.Event) error {
	return s.notify(ctx, event, event.FollowerID)
}

func (s *platformSink) notify(ctx context.Context, event *domain.Event, value any) error {
	return s.notifier.Notify(ctx, &platform.Notification{
		Type:    "NOTIFICATION",
		Key:     string(event.Type),
		ToUser:  event.AccountID,
		Value:   value,
		Content: event,
	})
}

// multiSink delivers every event to all of its sinks
type multiSink struct {
	sinks  []repo.EventSink
	logger *zap.Logger
}

// NewMultiSink fans events out to sinks. Every sink is tried. A failing
// sink is logged; the delivery only fails when no sink accepted the event.
func NewMultiSink(logger *zap.Logger, sinks ...repo.EventSink) repo.EventSink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &multiSink{sinks: sinks, logger: logger}
}

func (m *multiSink) OnChannelUpdate(ctx context.Context, event *domain.Event) error {
	return m.each(event, func(s repo.EventSink) error { return s.OnChannelUpdate(ctx, event) })
}

func (m *multiSink) OnTimelineUpdate(ctx context.Context, event *domain.Event) error {
	return m.each(event, func(s repo.EventSink) error { return s.OnTimelineUpdate(ctx, event) })
}

func (m *multiSink) OnFollow(ctx context.Context, event *domain.Event) error {
	return m.each(event, func(s repo.EventSink) error { return s.OnFollow(ctx, event) })
}

func (m *multiSink) OnUnfollow(ctx context.Context, event *domain.Event) error {
	return m.each(event, func(s repo.EventSink) error { return s.OnUnfollow(ctx, event) })
}

func (m *multiSink) each(event *domain.Event, deliver func(repo.EventSink) error) error {
	var errs []error
	for i, s := range m.sinks {
		if err := deliver(s); err != nil {
			m.logger.Warn("sink delivery failed",
				zap.Int("sink", i),
				zap.String("type", string(event.Type)),
				zap.String("account", event.AccountID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m.sinks) {
		return errors.Join(errs...)
	}
	return nil
}

// Deliver hands event to the sink callback matching its type
func Deliver(ctx context.Context, sink repo.EventSink, event *domain.Event) error {
	switch event.Type {
	case domain.EventTypeChannelUpdate:
		return sink.OnChannelUpdate(ctx, event)
	case domain.EventTypeTimelineUpdate:
		return sink.OnTimelineUpdate(ctx, event)
	case domain.EventTypeFollow:
		return sink.OnFollow(ctx, event)
	case domain.EventTypeUnfollow:
		return sink.OnUnfollow(ctx, event)
	}
	return fmt.Errorf("unknown event type %q", event.Type)
}
