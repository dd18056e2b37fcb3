package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
	"github.com/feedbridge/twitter-bridge/internal/biz/usecase"
)

func TestDiffEngine_StoredFollowersWithoutMarker(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// rows written before the account had a seed marker
	for _, id := range []int64{1, 2, 3} {
		_, err := store.db.ExecContext(ctx,
			`INSERT INTO followers (account_id, follower_id, created_at) VALUES (?, ?, ?)`,
			"u1", id, time.Now().Unix())
		require.NoError(t, err)
	}

	notifier := &capturingNotifier{}
	engine := usecase.NewDiffEngine(&fixedFeed{}, store, store, store, NewPlatformSink(notifier), 0, nil)

	emitted, err := engine.DiffFollowers(ctx, "u1", []domain.FollowerID{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 2, emitted)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, string(domain.EventTypeFollow), notifier.sent[0].Key)
	assert.Equal(t, domain.FollowerID(4), notifier.sent[0].Value)
	assert.Equal(t, string(domain.EventTypeUnfollow), notifier.sent[1].Key)
	assert.Equal(t, domain.FollowerID(1), notifier.sent[1].Value)

	ids, err := store.GetFollowerSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []domain.FollowerID{2, 3, 4}, ids)
}

func TestDiffEngine_OneFailingSinkKeepsDelivering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	healthy := &capturingNotifier{}
	sink := NewMultiSink(nil,
		NewChatSink(&capturingSender{err: errors.New("chat down")}, "oc_1"),
		NewPlatformSink(healthy))
	engine := usecase.NewDiffEngine(&fixedFeed{}, store, store, store, sink, 0, nil)

	items := []*domain.Item{{ID: 30, Text: "c"}, {ID: 20, Text: "b"}, {ID: 10, Text: "a"}}
	emitted, err := engine.DiffChannel(ctx, "u1", "golang", items)
	require.NoError(t, err)
	assert.Equal(t, 3, emitted)

	require.Len(t, healthy.sent, 3)
	assert.Equal(t, "a", healthy.sent[0].Value)
	assert.Equal(t, "c", healthy.sent[2].Value)

	cursor, ok, err := store.GetChannelCursor(ctx, "u1", "golang")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(30), cursor)
}
