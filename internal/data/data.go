package data

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/feedbridge/twitter-bridge/internal/biz/repo"
	"github.com/feedbridge/twitter-bridge/internal/infra/twitter"
)

// Repositories contains all repositories
type Repositories struct {
	Store *Store
	Feed  repo.FeedRepo
	Sink  repo.EventSink
}

// NewRepositories creates all repositories. When mirrorURL is set, public
// channels are read from the RSS mirror instead of the REST API.
func NewRepositories(
	twitterClient *twitter.Client,
	dbPath string,
	mirrorURL string,
	logger *zap.Logger,
	sinks ...repo.EventSink,
) (*Repositories, error) {
	if len(sinks) == 0 {
		return nil, errors.New("at least one event sink is required")
	}

	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	feed := NewTwitterRepo(twitterClient)
	if mirrorURL != "" {
		feed = NewMirrorRepo(mirrorURL, feed)
	}

	return &Repositories{
		Store: store,
		Feed:  feed,
		Sink:  NewMultiSink(logger, sinks...),
	}, nil
}

// Close releases the database
func (r *Repositories) Close() error {
	return r.Store.Close()
}
