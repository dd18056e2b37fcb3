package domain

import (
	"encoding/json"
	"time"
)

// Item is a single entry of a remote feed (a tweet).
// IDs grow monotonically with publication order.
type Item struct {
	ID        int64           `json:"id"`
	Author    string          `json:"author"`
	Text      string          `json:"text"`
	URL       string          `json:"url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Raw       json.RawMessage `json:"raw,omitempty"` // payload as returned by the remote API
}

// FollowerID is the remote id of a follower account
type FollowerID int64

// Credential is the access token a watch's account polls with
type Credential struct {
	AccountID string
	Token     string
}
