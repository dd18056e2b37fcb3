package domain

import "time"

// Endpoints polled by the scheduler
const (
	EndpointUserTimeline = "statuses/user_timeline"
	EndpointHomeTimeline = "statuses/home_timeline"
	EndpointFollowersIDs = "followers/ids"
)

// EndpointLimit is the per-credential quota of one remote endpoint.
// Endpoints sharing a Group draw from one quota pool.
type EndpointLimit struct {
	LimitWindow  time.Duration
	PerUserLimit int
	Group        string
}

// Bucket returns the name of the quota pool the endpoint draws from
func (l EndpointLimit) Bucket(endpoint string) string {
	if l.Group != "" {
		return l.Group
	}
	return endpoint
}
