package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/feedbridge/twitter-bridge/internal/api"
	"github.com/feedbridge/twitter-bridge/internal/biz"
	"github.com/feedbridge/twitter-bridge/internal/biz/repo"
	"github.com/feedbridge/twitter-bridge/internal/conf"
	"github.com/feedbridge/twitter-bridge/internal/data"
	"github.com/feedbridge/twitter-bridge/internal/infra/feishu"
	"github.com/feedbridge/twitter-bridge/internal/infra/platform"
	"github.com/feedbridge/twitter-bridge/internal/infra/twitter"
	"github.com/feedbridge/twitter-bridge/internal/service"
)

type args struct {
	EnvFile   string `arg:"--env-file" default:".env" help:"dotenv file to load before reading the environment"`
	Endpoints string `arg:"-e,--endpoints" help:"endpoint quota table (yaml)"`
	DB        string `arg:"--db" help:"SQLite database path"`
	APIPort   int    `arg:"-p,--api-port" help:"control-plane HTTP port"`
	Debug     bool   `arg:"-d,--debug" help:"development logging"`
}

func (args) Description() string {
	return "twitter-bridge polls watched feeds within their rate limits and forwards new items, follows and unfollows"
}

func main() {
	var a args
	arg.MustParse(&a)

	// Load .env file
	if err := godotenv.Load(a.EnvFile); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration; flags win over the environment
	cfg := conf.LoadFromEnv()
	if a.Endpoints != "" {
		cfg.Quota.EndpointsPath = a.Endpoints
	}
	if a.DB != "" {
		cfg.DBPath = a.DB
	}
	if a.APIPort != 0 {
		cfg.API.Port = a.APIPort
	}
	if a.Debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("bridge stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("bridge stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *conf.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	endpoints, err := conf.LoadEndpoints(cfg.Quota.EndpointsPath)
	if err != nil {
		return fmt.Errorf("failed to load endpoints: %w", err)
	}
	logger.Info("endpoint table loaded", zap.String("source", endpoints.Source), zap.Int("endpoints", len(endpoints.Endpoints)))

	// Event sinks
	var sinks []repo.EventSink
	if cfg.Feishu.ChatID != "" {
		feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
		sinks = append(sinks, data.NewChatSink(feishuClient, cfg.Feishu.ChatID))
		logger.Info("feishu sink enabled", zap.String("chat_id", cfg.Feishu.ChatID))
	}
	if cfg.Platform.Endpoint != "" {
		notifier := platform.NewNotifier(cfg.Platform.Endpoint, cfg.Platform.Token)
		defer notifier.Close()
		sinks = append(sinks, data.NewPlatformSink(notifier))
		logger.Info("platform sink enabled", zap.String("endpoint", cfg.Platform.Endpoint))
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(twitter.NewClient(cfg.ToTwitterConfig()), cfg.DBPath, cfg.Twitter.MirrorURL,
		logger.Named("sink"), sinks...)
	if err != nil {
		return err
	}
	defer repos.Close()
	logger.Info("store opened", zap.String("db", cfg.DBPath))

	// Initialize usecase layer
	ucs, err := biz.NewUsecases(cfg.ToQuotaConfig(endpoints), repos.Feed, repos.Store, repos.Sink,
		cfg.Scheduler.ItemsPerCheck, logger)
	if err != nil {
		return err
	}

	// Initialize service layer
	watches := service.NewWatchService(ucs.Registry, repos.Store, ucs.Quota, logger.Named("watch"))
	if _, err := watches.Restore(ctx); err != nil {
		return err
	}
	scheduler := service.NewPollScheduler(ucs.Registry, ucs.Quota, ucs.Diff, cfg.ToSchedulerConfig(), logger.Named("scheduler"))

	// Control-plane HTTP API
	apiServer := api.NewServer(watches, cfg.API.Port, logger.Named("api"))
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("API server error", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		apiServer.Stop(shutdownCtx)
	}()

	logger.Info("starting twitter bridge", zap.Int("api_port", cfg.API.Port), zap.Int("workers", cfg.Scheduler.Workers))
	return scheduler.Run(ctx)
}
