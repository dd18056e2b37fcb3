package usecase

import (
	"sort"
	"sync"
)

// MonitorSet is a snapshot of the channels monitored by one account
type MonitorSet struct {
	AccountID string   `json:"account"`
	Channels  []string `json:"channels"`
}

// WatchRegistry holds the active watches. Control-plane writers and the
// scheduler's readers may run concurrently; readers always get copies.
//
// Watches live as long as the process.
type WatchRegistry struct {
	mu        sync.RWMutex
	monitors  map[string][]string
	order     []string // accounts in first-registration order
	timelines map[string]struct{}
	accounts  map[string]struct{}
}

// NewWatchRegistry creates an empty registry
func NewWatchRegistry() *WatchRegistry {
	return &WatchRegistry{
		monitors:  make(map[string][]string),
		timelines: make(map[string]struct{}),
		accounts:  make(map[string]struct{}),
	}
}

// AddMonitor adds a channel monitor. Registering the same channel twice keeps
// both entries; the cursor makes the second check a no-op.
func (r *WatchRegistry) AddMonitor(accountID, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.monitors[accountID]; !ok {
		r.order = append(r.order, accountID)
	}
	r.monitors[accountID] = append(r.monitors[accountID], channel)
}

// AddTimeline adds a home timeline watch
func (r *WatchRegistry) AddTimeline(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timelines[accountID] = struct{}{}
}

// AddFollowerWatch adds a follower-set watch
func (r *WatchRegistry) AddFollowerWatch(accountID string) {
	r.AddKnownAccount(accountID)
}

// AddKnownAccount marks an account as known. Every known account has its
// follower set checked.
func (r *WatchRegistry) AddKnownAccount(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[accountID] = struct{}{}
}

// Monitors returns a copy of every account's monitored channels
func (r *WatchRegistry) Monitors() []MonitorSet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]MonitorSet, 0, len(r.order))
	for _, accountID := range r.order {
		channels := r.monitors[accountID]
		result = append(result, MonitorSet{
			AccountID: accountID,
			Channels:  append([]string(nil), channels...),
		})
	}
	return result
}

// ChannelCount returns how many channels the account monitors right now
func (r *WatchRegistry) ChannelCount(accountID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.monitors[accountID])
}

// Timelines returns the accounts with a home timeline watch, sorted
func (r *WatchRegistry) Timelines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.timelines)
}

// KnownAccounts returns the known accounts, sorted
func (r *WatchRegistry) KnownAccounts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.accounts)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
