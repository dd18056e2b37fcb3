package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the HTTP client for the bridge control-plane API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new control-plane client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// MonitorSet lists the channels one account monitors
type MonitorSet struct {
	Account  string   `json:"account"`
	Channels []string `json:"channels"`
}

// Watches is the registry snapshot served by the bridge
type Watches struct {
	Monitors  []MonitorSet `json:"monitors"`
	Timelines []string     `json:"timelines"`
	Followers []string     `json:"followers"`
}

// Bucket is the state of one quota bucket
type Bucket struct {
	ConnectionID string               `json:"connection_id"`
	Bucket       string               `json:"bucket"`
	LastIntent   *time.Time           `json:"last_intent,omitempty"`
	Checked      map[string]time.Time `json:"checked"`
	Succeeded    map[string]time.Time `json:"succeeded"`
}

// ============ Accounts ============

// RegisterAccount stores an account's access token on the bridge
func (c *Client) RegisterAccount(account, token string) error {
	body := map[string]string{"account": account, "token": token}
	return c.post("/api/accounts", body, nil)
}

// ============ Watches ============

// WatchChannel starts monitoring a public channel for an account
func (c *Client) WatchChannel(account, channel string) error {
	body := map[string]string{"account": account, "channel": channel}
	return c.post("/api/watches/channel", body, nil)
}

// WatchTimeline starts following an account's home timeline
func (c *Client) WatchTimeline(account string) error {
	return c.post("/api/watches/timeline", map[string]string{"account": account}, nil)
}

// WatchFollowers starts diffing an account's followers
func (c *Client) WatchFollowers(account string) error {
	return c.post("/api/watches/followers", map[string]string{"account": account}, nil)
}

// ListWatches returns every registered watch
func (c *Client) ListWatches() (*Watches, error) {
	var watches Watches
	if err := c.get("/api/watches", &watches); err != nil {
		return nil, err
	}
	return &watches, nil
}

// ============ Quota ============

// GetQuota returns the state of every quota bucket
func (c *Client) GetQuota() ([]Bucket, error) {
	var result struct {
		Buckets []Bucket `json:"buckets"`
	}
	if err := c.get("/api/quota", &result); err != nil {
		return nil, err
	}
	return result.Buckets, nil
}

// ============ Helpers ============

func (c *Client) get(path string, result interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) post(path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("HTTP POST failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
