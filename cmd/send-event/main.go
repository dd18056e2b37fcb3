package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
	"github.com/feedbridge/twitter-bridge/internal/biz/repo"
	"github.com/feedbridge/twitter-bridge/internal/conf"
	"github.com/feedbridge/twitter-bridge/internal/data"
	"github.com/feedbridge/twitter-bridge/internal/infra/feishu"
	"github.com/feedbridge/twitter-bridge/internal/infra/platform"
)

// send-event pushes one synthetic event through the configured sinks, to
// check a sink setup without waiting for real feed activity.
type args struct {
	Type     string `arg:"positional,required" help:"channel_update, timeline_update, follow or unfollow"`
	Account  string `arg:"-a,--account" default:"test" help:"account the event belongs to"`
	Channel  string `arg:"-c,--channel" default:"test" help:"channel for channel_update"`
	Text     string `arg:"-t,--text" default:"twitter-bridge test event" help:"item text"`
	Follower int64  `arg:"-f,--follower" default:"1" help:"follower id for follow and unfollow"`
}

func main() {
	var a args
	arg.MustParse(&a)
	godotenv.Load()

	cfg := conf.LoadFromEnv()

	var sinks []repo.EventSink
	if cfg.Feishu.ChatID != "" {
		sinks = append(sinks, data.NewChatSink(feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret), cfg.Feishu.ChatID))
	}
	if cfg.Platform.Endpoint != "" {
		notifier := platform.NewNotifier(cfg.Platform.Endpoint, cfg.Platform.Token)
		defer notifier.Close()
		sinks = append(sinks, data.NewPlatformSink(notifier))
	}
	if len(sinks) == 0 {
		fmt.Println("Error: set FEISHU_CHAT_ID or PLATFORM_ENDPOINT")
		os.Exit(1)
	}

	item := &domain.Item{ID: time.Now().Unix(), Author: a.Channel, Text: a.Text, CreatedAt: time.Now()}
	var event *domain.Event
	switch domain.EventType(a.Type) {
	case domain.EventTypeChannelUpdate:
		event = domain.NewChannelUpdate(a.Account, a.Channel, item)
	case domain.EventTypeTimelineUpdate:
		event = domain.NewTimelineUpdate(a.Account, item)
	case domain.EventTypeFollow:
		event = domain.NewFollow(a.Account, domain.FollowerID(a.Follower))
	case domain.EventTypeUnfollow:
		event = domain.NewUnfollow(a.Account, domain.FollowerID(a.Follower))
	default:
		fmt.Printf("Error: unknown event type %q\n", a.Type)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if err := data.Deliver(ctx, data.NewMultiSink(logger, sinks...), event); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Event %s sent to %d sink(s)\n", event.ID, len(sinks))
}
