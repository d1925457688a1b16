package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/rates-proxy-go/internal/quota"
)

// QuotaMemoryStore is an in-process implementation of quota.Store. It is
// only correct under a single running instance; state is lost on restart.
type QuotaMemoryStore struct {
	mu          sync.Mutex
	minuteCount int64
	windowStart time.Time
	monthKey    string
	monthCount  int64
}

// NewQuotaMemoryStore creates a new in-memory quota store.
func NewQuotaMemoryStore() *QuotaMemoryStore {
	return &QuotaMemoryStore{}
}

func (s *QuotaMemoryStore) Consume(
	_ context.Context, now time.Time, window time.Duration, minuteMax, monthMax int64,
) (quota.Usage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolve(now, window)

	if s.minuteCount >= minuteMax || s.monthCount >= monthMax {
		return s.usage(), false, nil
	}

	s.minuteCount++
	s.monthCount++

	return s.usage(), true, nil
}

func (s *QuotaMemoryStore) Snapshot(
	_ context.Context, now time.Time, window time.Duration,
) (quota.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.usage()

	// Report rolled-over windows without mutating them
	if s.windowStart.IsZero() || now.Sub(s.windowStart) >= window {
		u.MinuteCount = 0
		u.WindowStart = now
	}

	if s.monthKey != quota.MonthKey(now) {
		u.MonthCount = 0
	}

	return u, nil
}

// resolve replaces expired records. The minute record is replaced wholesale
// once the window has elapsed; the month counter resets when the UTC
// calendar month of now differs from the stored key.
func (s *QuotaMemoryStore) resolve(now time.Time, window time.Duration) {
	if s.windowStart.IsZero() || now.Sub(s.windowStart) >= window {
		s.windowStart = now
		s.minuteCount = 0
	}

	if key := quota.MonthKey(now); s.monthKey != key {
		s.monthKey = key
		s.monthCount = 0
	}
}

func (s *QuotaMemoryStore) usage() quota.Usage {
	return quota.Usage{
		MinuteCount: s.minuteCount,
		WindowStart: s.windowStart,
		MonthCount:  s.monthCount,
	}
}

// Compile-time check.
var _ quota.Store = (*QuotaMemoryStore)(nil)
