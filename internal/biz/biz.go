package biz

import (
	"go.uber.org/zap"

	"github.com/feedbridge/twitter-bridge/internal/biz/repo"
	"github.com/feedbridge/twitter-bridge/internal/biz/usecase"
)

// Persistence is the durable state the diff engine reads and advances
type Persistence interface {
	repo.AccountRepo
	repo.CursorRepo
	repo.FollowerRepo
}

// Usecases contains all usecases
type Usecases struct {
	Quota    *usecase.QuotaTracker
	Registry *usecase.WatchRegistry
	Diff     *usecase.DiffEngine
}

// NewUsecases creates all usecases
func NewUsecases(
	quotaCfg usecase.QuotaConfig,
	feed repo.FeedRepo,
	store Persistence,
	sink repo.EventSink,
	itemsPerCheck int,
	logger *zap.Logger,
) (*Usecases, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	quota, err := usecase.NewQuotaTracker(quotaCfg)
	if err != nil {
		return nil, err
	}

	return &Usecases{
		Quota:    quota,
		Registry: usecase.NewWatchRegistry(),
		Diff:     usecase.NewDiffEngine(feed, store, store, store, sink, itemsPerCheck, logger.Named("diff")),
	}, nil
}
