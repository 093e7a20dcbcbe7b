package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxFailures = 5
	defaultBlockWindow = 15 * time.Minute
)

// Throttle counts login failures per source address and blocks brute
// force attempts. The window slides from the LAST failure, so resuming a
// brute-force run keeps the block alive instead of waiting out a fixed
// window. Authentication entry points call IsBlocked before touching
// credential hashes.
type Throttle struct {
	store       FailureCounterStore
	maxFailures int
	window      time.Duration
	now         func() time.Time
}

// ThrottleOption configures a Throttle.
type ThrottleOption func(*Throttle)

// WithMaxFailures sets the failure threshold N.
func WithMaxFailures(n int) ThrottleOption {
	return func(t *Throttle) {
		if n > 0 {
			t.maxFailures = n
		}
	}
}

// WithBlockWindow sets the sliding window W.
func WithBlockWindow(w time.Duration) ThrottleOption {
	return func(t *Throttle) {
		if w > 0 {
			t.window = w
		}
	}
}

// WithThrottleClock overrides the time source (useful for tests).
func WithThrottleClock(now func() time.Time) ThrottleOption {
	return func(t *Throttle) {
		if now != nil {
			t.now = now
		}
	}
}

// NewThrottle constructs a Throttle over the counter store.
func NewThrottle(store FailureCounterStore, opts ...ThrottleOption) *Throttle {
	t := &Throttle{
		store:       store,
		maxFailures: defaultMaxFailures,
		window:      defaultBlockWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsBlocked reports whether the source address is currently blocked.
func (t *Throttle) IsBlocked(ctx context.Context, addr string) (bool, error) {
	addr = normalizeAddr(addr)
	if addr == "" {
		return false, nil
	}
	rec, err := t.store.Get(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if rec.Count < t.maxFailures {
		return false, nil
	}
	return t.now().Sub(rec.LastFailure) < t.window, nil
}

// RecordFailure bumps the failure counter for the address. The increment
// is atomic in the store, two concurrent failures never under-count. A
// counter whose last failure predates the window restarts from scratch,
// so one stray failure long after a block does not re-block the source.
func (t *Throttle) RecordFailure(ctx context.Context, addr string) error {
	addr = normalizeAddr(addr)
	if addr == "" {
		return nil
	}
	now := t.now()
	_, err := t.store.Increment(ctx, addr, now, now.Add(-t.window))
	return err
}

// RecordSuccess clears the counter for the address immediately.
func (t *Throttle) RecordSuccess(ctx context.Context, addr string) error {
	addr = normalizeAddr(addr)
	if addr == "" {
		return nil
	}
	return t.store.Reset(ctx, addr)
}

func normalizeAddr(addr string) string {
	return strings.TrimSpace(addr)
}

// MemCounterStore is a mutex-guarded in-memory FailureCounterStore. It is
// the default backing store; deployments spanning several instances plug
// in the Postgres store instead.
type MemCounterStore struct {
	mu      sync.Mutex
	records map[string]FailureRecord
}

// NewMemCounterStore constructs an empty in-memory counter store.
func NewMemCounterStore() *MemCounterStore {
	return &MemCounterStore{records: make(map[string]FailureRecord)}
}

func (s *MemCounterStore) Increment(_ context.Context, addr string, at, staleBefore time.Time) (FailureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[addr]
	if rec.Count > 0 && rec.LastFailure.Before(staleBefore) {
		rec.Count = 0
	}
	rec.Addr = addr
	rec.Count++
	rec.LastFailure = at
	s.records[addr] = rec
	return rec, nil
}

func (s *MemCounterStore) Get(_ context.Context, addr string) (FailureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[addr]
	if !ok {
		return FailureRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemCounterStore) Reset(_ context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, addr)
	return nil
}
