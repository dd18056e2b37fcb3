package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/feedbridge/twitter-bridge/internal/biz/usecase"
	"github.com/feedbridge/twitter-bridge/internal/infra/twitter"
	"github.com/feedbridge/twitter-bridge/internal/service"
)

// Config represents application configuration
type Config struct {
	// SQLite database holding accounts, cursors and follower snapshots
	DBPath string

	// Quota configuration
	Quota QuotaConfig

	// Scheduler configuration
	Scheduler SchedulerConfig

	// Twitter API configuration
	Twitter TwitterConfig

	// Platform websocket sink (optional)
	Platform PlatformConfig

	// Feishu chat sink (optional)
	Feishu FeishuConfig

	// Control-plane HTTP API
	API APIConfig

	// Debug mode
	Debug bool
}

// QuotaConfig contains quota tracker configuration
type QuotaConfig struct {
	EndpointsPath   string
	Margin          float64 // share of the remote quota the bridge may use, in (0,1)
	MinUpdatePeriod time.Duration
}

// SchedulerConfig contains poll loop configuration
type SchedulerConfig struct {
	TickInterval  time.Duration
	FetchTimeout  time.Duration
	Workers       int
	ItemsPerCheck int
}

// TwitterConfig contains remote API configuration
type TwitterConfig struct {
	BaseURL          string
	MirrorURL        string // RSS mirror URL template with one %s for the channel
	MaxFollowerPages int
}

// PlatformConfig contains platform notifier configuration
type PlatformConfig struct {
	Endpoint string
	Token    string
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
	ChatID    string
}

// APIConfig contains control-plane API configuration
type APIConfig struct {
	Port int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Database path
	dbPath := os.Getenv("BRIDGE_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".twitter-bridge", "bridge.db")
	}

	// Share of the quota the bridge may use
	margin := 0.5
	if val := os.Getenv("RATE_LIMIT_MARGIN"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			margin = parsed
		}
	}

	baseURL := os.Getenv("TWITTER_API_BASE_URL")
	if baseURL == "" {
		baseURL = twitter.DefaultBaseURL
	}

	return &Config{
		DBPath: dbPath,
		Quota: QuotaConfig{
			EndpointsPath:   os.Getenv("ENDPOINTS_CONFIG_PATH"),
			Margin:          margin,
			MinUpdatePeriod: time.Duration(intFromEnv("MIN_UPDATE_PERIOD_SECONDS", 60)) * time.Second,
		},
		Scheduler: SchedulerConfig{
			TickInterval:  time.Duration(intFromEnv("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
			FetchTimeout:  time.Duration(intFromEnv("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
			Workers:       intFromEnv("POLL_WORKERS", 4),
			ItemsPerCheck: intFromEnv("TWEETS_PER_CHECK", usecase.DefaultItemsPerCheck),
		},
		Twitter: TwitterConfig{
			BaseURL:          baseURL,
			MirrorURL:        os.Getenv("FEED_MIRROR_URL"),
			MaxFollowerPages: intFromEnv("MAX_FOLLOWER_PAGES", twitter.DefaultMaxFollowerPages),
		},
		Platform: PlatformConfig{
			Endpoint: os.Getenv("PLATFORM_ENDPOINT"),
			Token:    os.Getenv("PLATFORM_AUTH_TOKEN"),
		},
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			ChatID:    os.Getenv("FEISHU_CHAT_ID"),
		},
		API: APIConfig{
			Port: intFromEnv("API_PORT", 9876),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}
}

// intFromEnv returns the integer value of key, or def when unset or malformed
func intFromEnv(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Quota.Margin <= 0 || c.Quota.Margin >= 1 {
		return &ConfigError{Field: "RATE_LIMIT_MARGIN", Message: "must be strictly between 0 and 1"}
	}
	if c.Quota.MinUpdatePeriod < 0 {
		return &ConfigError{Field: "MIN_UPDATE_PERIOD_SECONDS", Message: "must not be negative"}
	}
	if c.Scheduler.TickInterval <= 0 {
		return &ConfigError{Field: "TICK_INTERVAL_MS", Message: "must be positive"}
	}
	if c.Scheduler.FetchTimeout <= 0 {
		return &ConfigError{Field: "FETCH_TIMEOUT_SECONDS", Message: "must be positive"}
	}
	if c.Scheduler.Workers <= 0 {
		return &ConfigError{Field: "POLL_WORKERS", Message: "must be positive"}
	}
	if c.Scheduler.ItemsPerCheck <= 0 {
		return &ConfigError{Field: "TWEETS_PER_CHECK", Message: "must be positive"}
	}
	if c.Twitter.MaxFollowerPages <= 0 {
		return &ConfigError{Field: "MAX_FOLLOWER_PAGES", Message: "must be positive"}
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "must be a valid port"}
	}

	feishuSet := c.Feishu.AppID != "" || c.Feishu.AppSecret != "" || c.Feishu.ChatID != ""
	if feishuSet && (c.Feishu.AppID == "" || c.Feishu.AppSecret == "" || c.Feishu.ChatID == "") {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET/FEISHU_CHAT_ID", Message: "all three are required together"}
	}
	if !feishuSet && c.Platform.Endpoint == "" {
		return &ConfigError{Field: "PLATFORM_ENDPOINT/FEISHU_CHAT_ID", Message: "at least one event sink is required"}
	}
	return nil
}

// ToQuotaConfig builds the quota tracker configuration
func (c *Config) ToQuotaConfig(endpoints *EndpointsConfig) usecase.QuotaConfig {
	return usecase.QuotaConfig{
		Endpoints:       endpoints.Limits(),
		Margin:          c.Quota.Margin,
		MinUpdatePeriod: c.Quota.MinUpdatePeriod,
	}
}

// ToSchedulerConfig builds the poll scheduler configuration
func (c *Config) ToSchedulerConfig() service.SchedulerConfig {
	return service.SchedulerConfig{
		TickInterval: c.Scheduler.TickInterval,
		FetchTimeout: c.Scheduler.FetchTimeout,
		Workers:      c.Scheduler.Workers,
	}
}

// ToTwitterConfig builds the REST client configuration
func (c *Config) ToTwitterConfig() twitter.Config {
	return twitter.Config{
		BaseURL:          c.Twitter.BaseURL,
		Timeout:          c.Scheduler.FetchTimeout,
		MaxFollowerPages: c.Twitter.MaxFollowerPages,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
