package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
)

// EndpointsConfig is the per-credential quota table of the remote API
type EndpointsConfig struct {
	Endpoints map[string]EndpointSpec `yaml:"endpoints"`

	// Source is the file the table was read from, empty for the built-in table
	Source string `yaml:"-"`
}

// EndpointSpec is one row of the quota table
type EndpointSpec struct {
	LimitWindow  time.Duration `yaml:"limit_window"`
	PerUserLimit int           `yaml:"per_user_limit"`
	Group        string        `yaml:"group,omitempty"`
}

// LoadEndpoints reads the quota table. An explicit configPath must exist;
// without one the usual locations are searched and the built-in table is
// used when none has a file. Entries in the file override or extend the
// built-in ones.
func LoadEndpoints(configPath string) (*EndpointsConfig, error) {
	var data []byte
	var loadedPath string

	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read endpoints config: %w", err)
		}
		data, loadedPath = raw, configPath
	} else {
		for _, p := range endpointsSearchPaths() {
			if raw, err := os.ReadFile(p); err == nil {
				data, loadedPath = raw, p
				break
			}
		}
	}

	config := DefaultEndpointsConfig()
	if data == nil {
		return config, nil
	}

	var file EndpointsConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	for name, ep := range file.Endpoints {
		config.Endpoints[name] = ep
	}
	config.Source = loadedPath

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func endpointsSearchPaths() []string {
	paths := []string{
		"configs/endpoints.yaml",
		"/etc/twitter-bridge/endpoints.yaml",
	}
	if execPath, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "endpoints.yaml"))
	}
	return paths
}

// Validate rejects rows that would make the quota math meaningless
func (c *EndpointsConfig) Validate() error {
	for name, ep := range c.Endpoints {
		if ep.LimitWindow <= 0 {
			return &ConfigError{Field: "endpoints." + name + ".limit_window", Message: "must be positive"}
		}
		if ep.PerUserLimit <= 0 {
			return &ConfigError{Field: "endpoints." + name + ".per_user_limit", Message: "must be positive"}
		}
	}
	return nil
}

// Limits converts the table for the quota tracker
func (c *EndpointsConfig) Limits() map[string]domain.EndpointLimit {
	limits := make(map[string]domain.EndpointLimit, len(c.Endpoints))
	for name, ep := range c.Endpoints {
		limits[name] = domain.EndpointLimit{
			LimitWindow:  ep.LimitWindow,
			PerUserLimit: ep.PerUserLimit,
			Group:        ep.Group,
		}
	}
	return limits
}

// DefaultEndpointsConfig returns the built-in quota table
func DefaultEndpointsConfig() *EndpointsConfig {
	const window = 15 * time.Minute

	endpoints := map[string]EndpointSpec{
		// POST
		"statuses/update":            {LimitWindow: 3 * time.Hour, PerUserLimit: 300, Group: "create_content"},
		"statuses/retweet/:id":       {LimitWindow: 3 * time.Hour, PerUserLimit: 300, Group: "create_content"},
		"favorites/create":           {LimitWindow: 24 * time.Hour, PerUserLimit: 1000},
		"friendships/create":         {LimitWindow: 24 * time.Hour, PerUserLimit: 400},
		"direct_messages/events/new": {LimitWindow: 24 * time.Hour, PerUserLimit: 1000},
	}

	perWindow := map[string]int{
		"account/verify_credentials":      75,
		"application/rate_limit_status":   180,
		"favorites/list":                  75,
		"followers/ids":                   15,
		"followers/list":                  15,
		"friends/ids":                     15,
		"friends/list":                    15,
		"friendships/show":                180,
		"geo/id/:place_id":                75,
		"help/configuration":              15,
		"help/languages":                  15,
		"help/privacy":                    15,
		"help/tos":                        15,
		"lists/list":                      15,
		"lists/members":                   900,
		"lists/members/show":              15,
		"lists/memberships":               75,
		"lists/ownerships":                15,
		"lists/show":                      75,
		"lists/statuses":                  900,
		"lists/subscribers":               180,
		"lists/subscribers/show":          15,
		"lists/subscriptions":             15,
		"search/tweets":                   180,
		"statuses/home_timeline":          15,
		"statuses/lookup":                 900,
		"statuses/mentions_timeline":      75,
		"statuses/retweeters/ids":         75,
		"statuses/retweets_of_me":         75,
		"statuses/retweets/:id":           75,
		"statuses/show/:id":               900,
		"statuses/user_timeline":          900,
		"trends/available":                75,
		"trends/closest":                  75,
		"trends/place":                    75,
		"users/lookup":                    900,
		"users/search":                    900,
		"users/show":                      900,
		"users/suggestions":               15,
		"users/suggestions/:slug":         15,
		"users/suggestions/:slug/members": 15,
	}
	for name, limit := range perWindow {
		endpoints[name] = EndpointSpec{LimitWindow: window, PerUserLimit: limit}
	}

	return &EndpointsConfig{Endpoints: endpoints}
}
