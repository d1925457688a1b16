package quota

import (
	"context"
	"time"
)

// DefaultWindow is the rolling minute window applied to the per-minute cap.
const DefaultWindow = time.Minute

// Reason identifies which cap a denied request violated.
type Reason string

const (
	// ReasonMinute means the rolling per-minute cap was exhausted.
	ReasonMinute Reason = "minute"
	// ReasonMonth means the calendar-month cap was exhausted.
	ReasonMonth Reason = "month"
)

// Limits holds the two request caps shared across all callers.
type Limits struct {
	MinuteMax int64
	MonthMax  int64
}

// Headers is the standardized quota metadata attached to every outcome.
// Reset values are epoch seconds.
type Headers struct {
	LimitMinute     int64
	RemainingMinute int64
	ResetMinute     int64
	LimitMonth      int64
	RemainingMonth  int64
	ResetMonth      int64
}

// Decision is the outcome of a single quota check. RetryAfterSeconds is
// only set for minute-cap denials; month resets are calendar-scale.
type Decision struct {
	Allowed           bool
	Reason            Reason
	RetryAfterSeconds int64
	Headers           Headers
}

// Tracker enforces the minute and month caps against an injected Store.
// A single Tracker is shared by every upstream-backed route so both
// resources draw from the same quota.
type Tracker struct {
	store  Store
	limits Limits
	window time.Duration
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithWindow overrides the rolling minute window duration.
func WithWindow(d time.Duration) Option {
	return func(t *Tracker) { t.window = d }
}

// WithNow overrides the clock, letting tests control time.
func WithNow(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a quota tracker over the given store and caps.
func NewTracker(store Store, limits Limits, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		limits: limits,
		window: DefaultWindow,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Limits returns the configured caps.
func (t *Tracker) Limits() Limits {
	return t.limits
}

// Consume spends one quota unit if both caps allow it. On denial the
// headers reflect the current, unincremented counts and no state is
// mutated. A request over both caps is reported as a minute violation.
func (t *Tracker) Consume(ctx context.Context) (Decision, error) {
	now := t.now()

	usage, incremented, err := t.store.Consume(ctx, now, t.window, t.limits.MinuteMax, t.limits.MonthMax)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{
		Allowed: incremented,
		Headers: t.headers(usage, now),
	}

	if incremented {
		return decision, nil
	}

	if usage.MinuteCount >= t.limits.MinuteMax {
		decision.Reason = ReasonMinute
		decision.RetryAfterSeconds = t.retryAfter(usage.WindowStart, now)
	} else {
		decision.Reason = ReasonMonth
	}

	return decision, nil
}

// Snapshot reports current usage without spending quota.
func (t *Tracker) Snapshot(ctx context.Context) (Decision, error) {
	now := t.now()

	usage, err := t.store.Snapshot(ctx, now, t.window)
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		Allowed: usage.MinuteCount < t.limits.MinuteMax && usage.MonthCount < t.limits.MonthMax,
		Headers: t.headers(usage, now),
	}, nil
}

func (t *Tracker) headers(usage Usage, now time.Time) Headers {
	return Headers{
		LimitMinute:     t.limits.MinuteMax,
		RemainingMinute: remaining(t.limits.MinuteMax, usage.MinuteCount),
		ResetMinute:     usage.WindowStart.Add(t.window).Unix(),
		LimitMonth:      t.limits.MonthMax,
		RemainingMonth:  remaining(t.limits.MonthMax, usage.MonthCount),
		ResetMonth:      NextMonthStart(now).Unix(),
	}
}

// retryAfter is the whole number of seconds until the minute window clears,
// rounded up and never below one.
func (t *Tracker) retryAfter(windowStart, now time.Time) int64 {
	until := windowStart.Add(t.window).Sub(now)

	seconds := int64((until + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	return seconds
}

func remaining(limit, count int64) int64 {
	if count >= limit {
		return 0
	}

	return limit - count
}
