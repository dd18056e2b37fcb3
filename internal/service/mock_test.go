package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
)

// stubFeed serves per-account canned results and counts calls
type stubFeed struct {
	mu        sync.Mutex
	items     map[string][]*domain.Item // by channel
	followers map[string][]domain.FollowerID
	failFor   map[string]bool // account ids whose calls fail
	failWith  error           // error of failing calls, a generic one when nil
	block     chan struct{}   // when set, channel fetches wait on it
	panicFor  string
	calls     map[string]int
	order     []string
}

func newStubFeed() *stubFeed {
	return &stubFeed{
		items:     make(map[string][]*domain.Item),
		followers: make(map[string][]domain.FollowerID),
		failFor:   make(map[string]bool),
		calls:     make(map[string]int),
	}
}

func (f *stubFeed) count(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	f.order = append(f.order, key)
}

// Order returns every call key in the order the calls started
func (f *stubFeed) Order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func (f *stubFeed) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// failure must be called with f.mu held
func (f *stubFeed) failure() error {
	if f.failWith != nil {
		return f.failWith
	}
	return errors.New("remote unavailable")
}

func (f *stubFeed) FetchRecentItems(ctx context.Context, cred *domain.Credential, channel string, count int) ([]*domain.Item, error) {
	f.count("channel/" + cred.AccountID + "/" + channel)
	if cred.AccountID == f.panicFor {
		panic("feed exploded")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[cred.AccountID] {
		return nil, f.failure()
	}
	return f.items[channel], nil
}

func (f *stubFeed) FetchTimelineSince(ctx context.Context, cred *domain.Credential, sinceID int64) ([]*domain.Item, error) {
	f.count("timeline/" + cred.AccountID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[cred.AccountID] {
		return nil, f.failure()
	}
	return nil, nil
}

func (f *stubFeed) FetchFollowerIDs(ctx context.Context, cred *domain.Credential) ([]domain.FollowerID, error) {
	f.count("followers/" + cred.AccountID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[cred.AccountID] {
		return nil, f.failure()
	}
	return f.followers[cred.AccountID], nil
}

// memoryStore is an in-memory AccountRepo, CursorRepo and FollowerRepo
type memoryStore struct {
	mu        sync.Mutex
	creds     map[string]*domain.Credential
	channels  map[string]int64
	timelines map[string]int64
	followers map[string]map[domain.FollowerID]struct{}
	seeded    map[string]bool
}

func newMemoryStore(accounts ...string) *memoryStore {
	s := &memoryStore{
		creds:     make(map[string]*domain.Credential),
		channels:  make(map[string]int64),
		timelines: make(map[string]int64),
		followers: make(map[string]map[domain.FollowerID]struct{}),
		seeded:    make(map[string]bool),
	}
	for _, a := range accounts {
		s.creds[a] = &domain.Credential{AccountID: a, Token: "t"}
	}
	return s
}

func (s *memoryStore) RegisterAccount(ctx context.Context, cred *domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.AccountID] = cred
	return nil
}

func (s *memoryStore) GetCredential(ctx context.Context, accountID string) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[accountID]
	if !ok {
		return nil, domain.ErrUnknownAccount
	}
	return cred, nil
}

func (s *memoryStore) ListKnownAccounts(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts := make([]string, 0, len(s.creds))
	for a := range s.creds {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	return accounts, nil
}

func (s *memoryStore) GetChannelCursor(ctx context.Context, accountID, channel string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.channels[accountID+"/"+channel]
	return id, ok, nil
}

func (s *memoryStore) SetChannelCursor(ctx context.Context, accountID, channel string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.channels[accountID+"/"+channel] {
		s.channels[accountID+"/"+channel] = id
	}
	return nil
}

func (s *memoryStore) GetTimelineCursor(ctx context.Context, accountID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.timelines[accountID]
	return id, ok, nil
}

func (s *memoryStore) SetTimelineCursor(ctx context.Context, accountID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.timelines[accountID] {
		s.timelines[accountID] = id
	}
	return nil
}

func (s *memoryStore) GetFollowerSnapshot(ctx context.Context, accountID string) ([]domain.FollowerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []domain.FollowerID
	for id := range s.followers[accountID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memoryStore) AddFollower(ctx context.Context, accountID string, id domain.FollowerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.followers[accountID] == nil {
		s.followers[accountID] = make(map[domain.FollowerID]struct{})
	}
	s.followers[accountID][id] = struct{}{}
	s.seeded[accountID] = true
	return nil
}

func (s *memoryStore) RemoveFollower(ctx context.Context, accountID string, id domain.FollowerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.followers[accountID], id)
	return nil
}

func (s *memoryStore) IsSnapshotSeeded(ctx context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeded[accountID], nil
}

func (s *memoryStore) SeedSnapshot(ctx context.Context, accountID string, ids []domain.FollowerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[domain.FollowerID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	s.followers[accountID] = set
	s.seeded[accountID] = true
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (l *eventLog) add(event *domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *eventLog) OnChannelUpdate(ctx context.Context, event *domain.Event) error  { return l.add(event) }
func (l *eventLog) OnTimelineUpdate(ctx context.Context, event *domain.Event) error { return l.add(event) }
func (l *eventLog) OnFollow(ctx context.Context, event *domain.Event) error         { return l.add(event) }
func (l *eventLog) OnUnfollow(ctx context.Context, event *domain.Event) error       { return l.add(event) }

func (l *eventLog) ForAccount(accountID string) []*domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []*domain.Event
	for _, e := range l.events {
		if e.AccountID == accountID {
			result = append(result, e)
		}
	}
	return result
}
