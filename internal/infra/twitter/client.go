package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public REST API root
const DefaultBaseURL = "https://api.twitter.com"

// followerPageSize is the largest page followers/ids returns
const followerPageSize = 5000

// maxTimelineCount is the largest page home_timeline returns
const maxTimelineCount = 200

// DefaultMaxFollowerPages bounds one follower set fetch to 75,000 ids
const DefaultMaxFollowerPages = 15

// Tweet is the subset of a v1.1 status the bridge needs.
// Raw holds the status exactly as received.
type Tweet struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	FullText  string `json:"full_text"`
	CreatedAt string `json:"created_at"`
	User      struct {
		ScreenName string `json:"screen_name"`
	} `json:"user"`

	Raw json.RawMessage `json:"-"`
}

// Body returns the full text when the API sent it, the short text otherwise
func (t *Tweet) Body() string {
	if t.FullText != "" {
		return t.FullText
	}
	return t.Text
}

// Created parses CreatedAt; the zero time is returned if it is malformed
func (t *Tweet) Created() time.Time {
	created, err := time.Parse(time.RubyDate, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return created
}

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter API HTTP %d: %s", e.StatusCode, e.Body)
}

// RateLimited reports whether the API refused the call for quota reasons
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Config configures the client
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond and Burst bound the raw call rate of one credential.
	// The quota tracker schedules far below this; the limiter only smooths bursts.
	RequestsPerSecond float64
	Burst             int
	// MaxFollowerPages caps the pages one FollowerIDs call may walk
	MaxFollowerPages int
}

// Client calls the v1.1 REST endpoints on behalf of registered accounts
type Client struct {
	baseURL    string
	httpClient *http.Client
	perSecond  rate.Limit
	burst      int
	maxPages   int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a new Twitter client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxFollowerPages <= 0 {
		cfg.MaxFollowerPages = DefaultMaxFollowerPages
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		perSecond:  rate.Limit(cfg.RequestsPerSecond),
		burst:      cfg.Burst,
		maxPages:   cfg.MaxFollowerPages,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// UserTimeline returns the latest count tweets of a public account, newest first
func (c *Client) UserTimeline(ctx context.Context, token, screenName string, count int) ([]*Tweet, error) {
	query := url.Values{}
	query.Set("screen_name", screenName)
	query.Set("count", strconv.Itoa(count))
	query.Set("tweet_mode", "extended")

	return c.getTweets(ctx, token, "/1.1/statuses/user_timeline.json", query)
}

// HomeTimeline returns the token owner's home timeline items newer than
// sinceID, newest first. A zero sinceID returns the latest page.
func (c *Client) HomeTimeline(ctx context.Context, token string, sinceID int64) ([]*Tweet, error) {
	query := url.Values{}
	query.Set("count", strconv.Itoa(maxTimelineCount))
	query.Set("tweet_mode", "extended")
	if sinceID > 0 {
		query.Set("since_id", strconv.FormatInt(sinceID, 10))
	}

	return c.getTweets(ctx, token, "/1.1/statuses/home_timeline.json", query)
}

// FollowerIDs returns every follower id of the token owner, walking all
// pages. A set that needs more than MaxFollowerPages pages is an error;
// a partial set is never returned.
func (c *Client) FollowerIDs(ctx context.Context, token string) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]bool)
	cursor := int64(-1)
	for pages := 0; cursor != 0; pages++ {
		if pages == c.maxPages {
			return nil, fmt.Errorf("follower set exceeds %d pages", c.maxPages)
		}
		seen[cursor] = true

		query := url.Values{}
		query.Set("cursor", strconv.FormatInt(cursor, 10))
		query.Set("count", strconv.Itoa(followerPageSize))

		var page struct {
			IDs        []int64 `json:"ids"`
			NextCursor int64   `json:"next_cursor"`
		}
		body, err := c.get(ctx, token, "/1.1/followers/ids.json", query)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to decode follower ids: %w", err)
		}

		ids = append(ids, page.IDs...)
		if seen[page.NextCursor] {
			return nil, fmt.Errorf("follower pages loop at cursor %d", page.NextCursor)
		}
		cursor = page.NextCursor
	}
	return ids, nil
}

func (c *Client) getTweets(ctx context.Context, token, path string, query url.Values) ([]*Tweet, error) {
	body, err := c.get(ctx, token, path, query)
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("failed to decode timeline: %w", err)
	}

	tweets := make([]*Tweet, 0, len(raws))
	for _, raw := range raws {
		var tweet Tweet
		if err := json.Unmarshal(raw, &tweet); err != nil {
			return nil, fmt.Errorf("failed to decode tweet: %w", err)
		}
		tweet.Raw = raw
		tweets = append(tweets, &tweet)
	}
	return tweets, nil
}

func (c *Client) get(ctx context.Context, token, path string, query url.Values) ([]byte, error) {
	if err := c.limiter(token).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.clientFor(token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// clientFor wraps the shared HTTP client with the account's bearer token
func (c *Client) clientFor(token string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &http.Client{
		Timeout:   c.httpClient.Timeout,
		Transport: &oauth2.Transport{Source: src, Base: c.httpClient.Transport},
	}
}

func (c *Client) limiter(token string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[token]
	if !ok {
		l = rate.NewLimiter(c.perSecond, c.burst)
		c.limiters[token] = l
	}
	return l
}
