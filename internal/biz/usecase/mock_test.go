package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
)

// mockFeedRepo serves canned feed state
type mockFeedRepo struct {
	mu        sync.Mutex
	recent    map[string][]*domain.Item
	timeline  []*domain.Item
	followers []domain.FollowerID
	err       error
	sinceSeen []int64
}

func (m *mockFeedRepo) FetchRecentItems(ctx context.Context, cred *domain.Credential, channel string, count int) ([]*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	items := m.recent[channel]
	if len(items) > count {
		items = items[:count]
	}
	return items, nil
}

func (m *mockFeedRepo) FetchTimelineSince(ctx context.Context, cred *domain.Credential, sinceID int64) ([]*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinceSeen = append(m.sinceSeen, sinceID)
	if m.err != nil {
		return nil, m.err
	}
	var items []*domain.Item
	for _, item := range m.timeline {
		if item.ID > sinceID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (m *mockFeedRepo) FetchFollowerIDs(ctx context.Context, cred *domain.Credential) ([]domain.FollowerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.FollowerID(nil), m.followers...), nil
}

type mockAccountRepo struct {
	creds map[string]*domain.Credential
}

func newMockAccountRepo(accounts ...string) *mockAccountRepo {
	m := &mockAccountRepo{creds: make(map[string]*domain.Credential)}
	for _, a := range accounts {
		m.creds[a] = &domain.Credential{AccountID: a, Token: "token-" + a}
	}
	return m
}

func (m *mockAccountRepo) RegisterAccount(ctx context.Context, cred *domain.Credential) error {
	m.creds[cred.AccountID] = cred
	return nil
}

func (m *mockAccountRepo) GetCredential(ctx context.Context, accountID string) (*domain.Credential, error) {
	cred, ok := m.creds[accountID]
	if !ok {
		return nil, domain.ErrUnknownAccount
	}
	return cred, nil
}

func (m *mockAccountRepo) ListKnownAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	for a := range m.creds {
		accounts = append(accounts, a)
	}
	return accounts, nil
}

type mockCursorRepo struct {
	mu        sync.Mutex
	channels  map[string]int64
	timelines map[string]int64
	failSet   bool
}

func newMockCursorRepo() *mockCursorRepo {
	return &mockCursorRepo{
		channels:  make(map[string]int64),
		timelines: make(map[string]int64),
	}
}

func (m *mockCursorRepo) GetChannelCursor(ctx context.Context, accountID, channel string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.channels[accountID+"/"+channel]
	return id, ok, nil
}

func (m *mockCursorRepo) SetChannelCursor(ctx context.Context, accountID, channel string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("disk full")
	}
	key := accountID + "/" + channel
	if id > m.channels[key] {
		m.channels[key] = id
	}
	return nil
}

func (m *mockCursorRepo) GetTimelineCursor(ctx context.Context, accountID string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.timelines[accountID]
	return id, ok, nil
}

func (m *mockCursorRepo) SetTimelineCursor(ctx context.Context, accountID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("disk full")
	}
	if id > m.timelines[accountID] {
		m.timelines[accountID] = id
	}
	return nil
}

type mockFollowerRepo struct {
	mu        sync.Mutex
	snapshots map[string]map[domain.FollowerID]struct{}
	seeded    map[string]bool
}

func newMockFollowerRepo() *mockFollowerRepo {
	return &mockFollowerRepo{
		snapshots: make(map[string]map[domain.FollowerID]struct{}),
		seeded:    make(map[string]bool),
	}
}

func (m *mockFollowerRepo) GetFollowerSnapshot(ctx context.Context, accountID string) ([]domain.FollowerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedFollowers(m.snapshots[accountID]), nil
}

// AddFollower only writes the row, like a store that keeps no seed marker
func (m *mockFollowerRepo) AddFollower(ctx context.Context, accountID string, id domain.FollowerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots[accountID] == nil {
		m.snapshots[accountID] = make(map[domain.FollowerID]struct{})
	}
	m.snapshots[accountID][id] = struct{}{}
	return nil
}

func (m *mockFollowerRepo) RemoveFollower(ctx context.Context, accountID string, id domain.FollowerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots[accountID], id)
	return nil
}

func (m *mockFollowerRepo) IsSnapshotSeeded(ctx context.Context, accountID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seeded[accountID], nil
}

func (m *mockFollowerRepo) SeedSnapshot(ctx context.Context, accountID string, ids []domain.FollowerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[accountID] = toFollowerSet(ids)
	m.seeded[accountID] = true
	return nil
}

// recordingSink keeps every event it receives
type recordingSink struct {
	mu     sync.Mutex
	events []*domain.Event
	failOn int64
}

func (s *recordingSink) record(event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != 0 && event.Item != nil && event.Item.ID == s.failOn {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) OnChannelUpdate(ctx context.Context, event *domain.Event) error {
	return s.record(event)
}

func (s *recordingSink) OnTimelineUpdate(ctx context.Context, event *domain.Event) error {
	return s.record(event)
}

func (s *recordingSink) OnFollow(ctx context.Context, event *domain.Event) error {
	return s.record(event)
}

func (s *recordingSink) OnUnfollow(ctx context.Context, event *domain.Event) error {
	return s.record(event)
}

func (s *recordingSink) Events() []*domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Event(nil), s.events...)
}

func items(ids ...int64) []*domain.Item {
	result := make([]*domain.Item, 0, len(ids))
	for _, id := range ids {
		result = append(result, &domain.Item{ID: id, Author: "author"})
	}
	return result
}
