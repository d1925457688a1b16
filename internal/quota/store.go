package quota

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable indicates the shared quota backend could not be
// reached. It must never be interpreted as an allow.
var ErrStoreUnavailable = errors.New("quota store unavailable")

// Usage is the state of both counters as observed by a store operation.
// MinuteCount and WindowStart describe the rolling minute window;
// MonthCount is the running total for the current UTC calendar month.
type Usage struct {
	MinuteCount int64
	WindowStart time.Time
	MonthCount  int64
}

// Store persists the two quota counter records.
//
// Consume atomically resolves both windows against now and, only if both
// counts are below the supplied caps, increments both counters by one.
// The returned Usage reflects the state after the operation (post-increment
// on allow, untouched on deny) and incremented reports whether the unit was
// spent. Implementations must guarantee that two concurrent Consume calls
// cannot both observe count < max and both increment past the cap.
//
// Snapshot resolves the windows the same way but never mutates state.
type Store interface {
	Consume(ctx context.Context, now time.Time, window time.Duration, minuteMax, monthMax int64) (Usage, bool, error)
	Snapshot(ctx context.Context, now time.Time, window time.Duration) (Usage, error)
}

// MonthKey returns the calendar-month key for t in UTC, e.g. "2026-7" for
// August 2026 (months are zero-based to match the persisted layout).
func MonthKey(t time.Time) string {
	u := t.UTC()

	return fmt.Sprintf("%d-%d", u.Year(), int(u.Month())-1)
}

// NextMonthStart returns the first instant of the UTC calendar month
// following t.
func NextMonthStart(t time.Time) time.Time {
	u := t.UTC()

	return time.Date(u.Year(), u.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
