package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the kind of an emitted event
type EventType string

const (
	EventTypeChannelUpdate  EventType = "channel_update"
	EventTypeTimelineUpdate EventType = "timeline_update"
	EventTypeFollow         EventType = "follow"
	EventTypeUnfollow       EventType = "unfollow"
)

// Event is something new observed on a watch.
// ID is unique per emission, so a sink can spot replays after a crash.
type Event struct {
	ID         string     `json:"id"`
	Type       EventType  `json:"type"`
	AccountID  string     `json:"account_id"`
	Channel    string     `json:"channel,omitempty"`
	Item       *Item      `json:"item,omitempty"`
	FollowerID FollowerID `json:"follower_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func newEvent(t EventType, accountID string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		AccountID: accountID,
		CreatedAt: time.Now(),
	}
}

// NewChannelUpdate builds the event for a new item on a monitored channel
func NewChannelUpdate(accountID, channel string, item *Item) *Event {
	e := newEvent(EventTypeChannelUpdate, accountID)
	e.Channel = channel
	e.Item = item
	return e
}

// NewTimelineUpdate builds the event for a new item on a home timeline
func NewTimelineUpdate(accountID string, item *Item) *Event {
	e := newEvent(EventTypeTimelineUpdate, accountID)
	e.Item = item
	return e
}

// NewFollow builds the event for a new follower
func NewFollow(accountID string, follower FollowerID) *Event {
	e := newEvent(EventTypeFollow, accountID)
	e.FollowerID = follower
	return e
}

// NewUnfollow builds the event for a lost follower
func NewUnfollow(accountID string, follower FollowerID) *Event {
	e := newEvent(EventTypeUnfollow, accountID)
	e.FollowerID = follower
	return e
}
