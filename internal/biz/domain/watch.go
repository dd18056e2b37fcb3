package domain

import "fmt"

// WatchKind tags a standing subscription
type WatchKind string

const (
	WatchKindChannel   WatchKind = "channel"
	WatchKindTimeline  WatchKind = "timeline"
	WatchKindFollowers WatchKind = "followers"
)

// Watch is a standing subscription to one slice of the remote feed for one account.
// Channel is only set for WatchKindChannel.
type Watch struct {
	Kind      WatchKind
	AccountID string
	Channel   string
}

// Endpoint returns the remote endpoint a check of this watch calls
func (w Watch) Endpoint() string {
	switch w.Kind {
	case WatchKindChannel:
		return EndpointUserTimeline
	case WatchKindTimeline:
		return EndpointHomeTimeline
	case WatchKindFollowers:
		return EndpointFollowersIDs
	}
	return ""
}

// Key identifies the watch, used to keep a single poller per watch in flight
func (w Watch) Key() string {
	if w.Kind == WatchKindChannel {
		return fmt.Sprintf("%s/%s/%s", w.Kind, w.AccountID, w.Channel)
	}
	return fmt.Sprintf("%s/%s", w.Kind, w.AccountID)
}

func (w Watch) String() string {
	return w.Key()
}
