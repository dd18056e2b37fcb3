package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
	"github.com/feedbridge/twitter-bridge/internal/biz/usecase"
)

// SchedulerConfig tunes the poll loop
type SchedulerConfig struct {
	TickInterval time.Duration // how often every watch is reconsidered
	FetchTimeout time.Duration // deadline for one check, remote calls included
	Workers      int           // max checks running at once
}

// DefaultSchedulerConfig is used for zero fields of a SchedulerConfig
var DefaultSchedulerConfig = SchedulerConfig{
	TickInterval: time.Second,
	FetchTimeout: 30 * time.Second,
	Workers:      4,
}

// PollScheduler drives every registered watch: it asks the quota tracker
// whether the watch is due and, if so, hands the check to a bounded worker
// pool so one slow account never stalls the others.
//
// Quota is tracked per account (the connection), with channels as the
// elements sharing that account's user_timeline budget.
type PollScheduler struct {
	registry *usecase.WatchRegistry
	quota    *usecase.QuotaTracker
	diff     *usecase.DiffEngine
	cfg      SchedulerConfig
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewPollScheduler creates a new poll scheduler
func NewPollScheduler(
	registry *usecase.WatchRegistry,
	quota *usecase.QuotaTracker,
	diff *usecase.DiffEngine,
	cfg SchedulerConfig,
	logger *zap.Logger,
) *PollScheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultSchedulerConfig.TickInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultSchedulerConfig.FetchTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultSchedulerConfig.Workers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollScheduler{
		registry: registry,
		quota:    quota,
		diff:     diff,
		cfg:      cfg,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Run polls until ctx is cancelled or a fatal fault occurs. It waits for the
// checks in flight before returning. A nil error means a clean shutdown;
// anything else wraps domain.ErrFatal.
func (s *PollScheduler) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(s.cfg.Workers)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		zap.Duration("tick", s.cfg.TickInterval),
		zap.Duration("fetch_timeout", s.cfg.FetchTimeout),
		zap.Int("workers", s.cfg.Workers))

	loopErr := s.tick(gctx, g)
	for loopErr == nil && gctx.Err() == nil {
		select {
		case <-gctx.Done():
		case <-ticker.C:
			loopErr = s.tick(gctx, g)
		}
	}
	if loopErr != nil {
		cancel()
	}

	waitErr := g.Wait()
	s.logger.Info("scheduler stopped")

	if loopErr != nil {
		return loopErr
	}
	return waitErr
}

// tick walks the registry once: follower watches first, then home
// timelines, then channel monitors.
func (s *PollScheduler) tick(ctx context.Context, g *errgroup.Group) error {
	for _, accountID := range s.registry.KnownAccounts() {
		w := domain.Watch{Kind: domain.WatchKindFollowers, AccountID: accountID}
		if err := s.dispatch(ctx, g, w, 1); err != nil {
			return err
		}
	}

	for _, accountID := range s.registry.Timelines() {
		w := domain.Watch{Kind: domain.WatchKindTimeline, AccountID: accountID}
		if err := s.dispatch(ctx, g, w, 1); err != nil {
			return err
		}
	}

	for _, monitor := range s.registry.Monitors() {
		for _, channel := range monitor.Channels {
			w := domain.Watch{Kind: domain.WatchKindChannel, AccountID: monitor.AccountID, Channel: channel}
			// Read live so a channel added mid-tick already shrinks everyone's share
			groupSize := s.registry.ChannelCount(monitor.AccountID)
			if err := s.dispatch(ctx, g, w, groupSize); err != nil {
				return err
			}
		}
	}
	return nil
}

// dispatch consults the quota tracker and, on a due verdict, starts the check.
// A watch whose previous check is still running is skipped before asking,
// so it does not burn a slot.
func (s *PollScheduler) dispatch(ctx context.Context, g *errgroup.Group, w domain.Watch, groupSize int) error {
	if ctx.Err() != nil {
		return nil
	}

	key := w.Key()
	if s.isInflight(key) {
		return nil
	}

	endpoint := w.Endpoint()
	due, err := s.quota.IsDue(w.AccountID, endpoint, groupSize, w.Channel)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrFatal, w, err)
	}
	if !due {
		return nil
	}

	if err := s.quota.NotifyIntent(w.AccountID, endpoint); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrFatal, w, err)
	}

	s.setInflight(key, true)
	g.Go(func() error {
		defer s.setInflight(key, false)
		return s.check(ctx, w)
	})
	return nil
}

// check runs one watch. Its own failures are logged and swallowed; only
// faults of the loop itself come back as errors.
func (s *PollScheduler) check(ctx context.Context, w domain.Watch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic while checking %s: %v", domain.ErrFatal, w, r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	var emitted int
	var checkErr error
	switch w.Kind {
	case domain.WatchKindFollowers:
		emitted, checkErr = s.diff.CheckFollowers(callCtx, w.AccountID)
	case domain.WatchKindTimeline:
		emitted, checkErr = s.diff.CheckTimeline(callCtx, w.AccountID)
	case domain.WatchKindChannel:
		emitted, checkErr = s.diff.CheckChannel(callCtx, w.AccountID, w.Channel)
	default:
		return fmt.Errorf("%w: unknown watch kind %q", domain.ErrFatal, w.Kind)
	}

	if checkErr != nil {
		if ctx.Err() != nil {
			return nil
		}
		fields := []zap.Field{
			zap.String("watch", w.Key()),
			zap.String("account", w.AccountID),
			zap.String("channel", w.Channel),
			zap.Int("emitted", emitted),
			zap.Error(checkErr),
		}
		// The quota period already spaces the retry
		if errors.Is(checkErr, domain.ErrRateLimited) {
			s.logger.Warn("check rate limited", fields...)
			return nil
		}
		s.logger.Error("check failed", fields...)
		return nil
	}

	if err := s.quota.Confirm(w.AccountID, w.Endpoint(), w.Channel); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrFatal, w, err)
	}

	s.logger.Debug("check done",
		zap.String("watch", w.Key()),
		zap.Int("emitted", emitted),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (s *PollScheduler) isInflight(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[key]
	return ok
}

func (s *PollScheduler) setInflight(key string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if running {
		s.inflight[key] = struct{}{}
	} else {
		delete(s.inflight, key)
	}
}
