package usecase

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
)

// QuotaConfig holds the static quota table and pacing constants
type QuotaConfig struct {
	Endpoints       map[string]domain.EndpointLimit
	Margin          float64       // Fraction of the nominal quota the scheduler may use, in (0, 1)
	MinUpdatePeriod time.Duration // Floor between two checks of the same element
}

type bucketKey struct {
	connectionID string
	bucket       string
}

type bucketState struct {
	active    time.Time
	checked   map[string]time.Time
	succeeded map[string]time.Time
}

// BucketStatus is a read-only view of one quota bucket
type BucketStatus struct {
	ConnectionID string               `json:"connection_id"`
	Bucket       string               `json:"bucket"`
	LastIntent   *time.Time           `json:"last_intent,omitempty"`
	Checked      map[string]time.Time `json:"checked"`
	Succeeded    map[string]time.Time `json:"succeeded"`
}

// QuotaTracker decides when a watch may be checked again without exceeding
// the remote quota of its credential. A bucket's quota is split evenly
// between the elements currently sharing it.
type QuotaTracker struct {
	endpoints       map[string]domain.EndpointLimit
	margin          float64
	minUpdatePeriod time.Duration
	now             func() time.Time

	mu      sync.Mutex
	buckets map[bucketKey]*bucketState
}

// NewQuotaTracker creates a tracker; the margin must lie strictly between 0 and 1
func NewQuotaTracker(cfg QuotaConfig) (*QuotaTracker, error) {
	if !(cfg.Margin > 0 && cfg.Margin < 1) {
		return nil, fmt.Errorf("rate limit margin must be in (0, 1), got %v", cfg.Margin)
	}
	if cfg.MinUpdatePeriod < 0 {
		return nil, fmt.Errorf("min update period must not be negative, got %v", cfg.MinUpdatePeriod)
	}

	endpoints := make(map[string]domain.EndpointLimit, len(cfg.Endpoints))
	for name, limit := range cfg.Endpoints {
		if limit.PerUserLimit <= 0 || limit.LimitWindow <= 0 {
			return nil, fmt.Errorf("endpoint %s: limit window and per user limit must be positive", name)
		}
		endpoints[name] = limit
	}

	return &QuotaTracker{
		endpoints:       endpoints,
		margin:          cfg.Margin,
		minUpdatePeriod: cfg.MinUpdatePeriod,
		now:             time.Now,
		buckets:         make(map[bucketKey]*bucketState),
	}, nil
}

func (t *QuotaTracker) limit(endpoint string) (domain.EndpointLimit, error) {
	limit, ok := t.endpoints[endpoint]
	if !ok {
		return domain.EndpointLimit{}, fmt.Errorf("%w: %s", domain.ErrUnknownEndpoint, endpoint)
	}
	return limit, nil
}

// bucket must be called with t.mu held
func (t *QuotaTracker) bucket(connectionID, endpoint string, limit domain.EndpointLimit) *bucketState {
	key := bucketKey{connectionID: connectionID, bucket: limit.Bucket(endpoint)}
	state, ok := t.buckets[key]
	if !ok {
		state = &bucketState{
			checked:   make(map[string]time.Time),
			succeeded: make(map[string]time.Time),
		}
		t.buckets[key] = state
	}
	return state
}

// ElementPeriod returns the minimum spacing between two checks of one element
// when groupSize elements share the endpoint's bucket. The MinUpdatePeriod
// floor is not included.
func (t *QuotaTracker) ElementPeriod(endpoint string, groupSize int) (time.Duration, error) {
	limit, err := t.limit(endpoint)
	if err != nil {
		return 0, err
	}
	if groupSize < 1 {
		groupSize = 1
	}
	single := float64(limit.LimitWindow) / float64(limit.PerUserLimit) / t.margin
	return time.Duration(single * float64(groupSize)), nil
}

// NotifyIntent records that a call to endpoint is about to be issued for connectionID.
// It never gates the call.
func (t *QuotaTracker) NotifyIntent(connectionID, endpoint string) error {
	limit, err := t.limit(endpoint)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.bucket(connectionID, endpoint, limit).active = t.now()
	return nil
}

// IsDue reports whether element may be checked now. groupSize is the number of
// elements sharing the bucket at call time. A due verdict consumes the slot:
// the element's check time is stamped before returning.
func (t *QuotaTracker) IsDue(connectionID, endpoint string, groupSize int, element string) (bool, error) {
	period, err := t.ElementPeriod(endpoint, groupSize)
	if err != nil {
		return false, err
	}
	limit, _ := t.limit(endpoint)

	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.bucket(connectionID, endpoint, limit)
	now := t.now()

	last, checked := state.checked[element]
	if checked {
		elapsed := now.Sub(last)
		if elapsed <= t.minUpdatePeriod || elapsed <= period {
			return false, nil
		}
	}

	state.checked[element] = now
	return true, nil
}

// Confirm records that the check of element finished successfully.
// It does not affect scheduling.
func (t *QuotaTracker) Confirm(connectionID, endpoint, element string) error {
	limit, err := t.limit(endpoint)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.bucket(connectionID, endpoint, limit).succeeded[element] = t.now()
	return nil
}

// Snapshot returns a copy of every bucket's state, ordered by connection and bucket
func (t *QuotaTracker) Snapshot() []BucketStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]BucketStatus, 0, len(t.buckets))
	for key, state := range t.buckets {
		status := BucketStatus{
			ConnectionID: key.connectionID,
			Bucket:       key.bucket,
			Checked:      make(map[string]time.Time, len(state.checked)),
			Succeeded:    make(map[string]time.Time, len(state.succeeded)),
		}
		if !state.active.IsZero() {
			active := state.active
			status.LastIntent = &active
		}
		for k, v := range state.checked {
			status.Checked[k] = v
		}
		for k, v := range state.succeeded {
			status.Succeeded[k] = v
		}
		result = append(result, status)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ConnectionID != result[j].ConnectionID {
			return result[i].ConnectionID < result[j].ConnectionID
		}
		return result[i].Bucket < result[j].Bucket
	})
	return result
}
