package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/serroba/rates-proxy-go/internal/cache"
	"github.com/serroba/rates-proxy-go/internal/quota"
	"go.uber.org/zap"
)

// Fetch invokes the upstream resource and returns its HTTP status and raw
// JSON payload. A non-nil error means the upstream could not be reached at
// all (transport failure), as opposed to answering with a non-success
// status.
type Fetch func(ctx context.Context) (int, json.RawMessage, error)

// Result is the outcome of one pass through the gate, ready to be written
// at the HTTP boundary. Payload is set on success only; Message on the
// quota-denied and upstream-failure shapes. RetryAfterSeconds is non-zero
// only for minute-cap denials.
type Result struct {
	Status            int
	Payload           json.RawMessage
	Message           string
	Headers           quota.Headers
	Reason            quota.Reason
	RetryAfterSeconds int64
	CacheHit          bool
}

// Success reports whether the result carries an upstream payload.
func (r Result) Success() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}

// Gate sequences quota check, cache lookup, upstream call, and cache write
// for every upstream-backed route.
type Gate struct {
	tracker *quota.Tracker
	logger  *zap.Logger
}

// New creates a gate over the shared quota tracker.
func New(tracker *quota.Tracker, logger *zap.Logger) *Gate {
	return &Gate{
		tracker: tracker,
		logger:  logger,
	}
}

// Tracker returns the shared quota tracker, for status reporting.
func (g *Gate) Tracker() *quota.Tracker {
	return g.tracker
}

// Proxy runs the fixed per-request protocol, short-circuiting at the first
// terminal step. Exactly one quota unit is spent per allowed request,
// whether it ends in a cache hit, an upstream success, or an upstream
// failure; a denied request spends nothing. A store fault is returned as
// an error and must surface as a server-side failure, never an allow.
func (g *Gate) Proxy(ctx context.Context, c cache.Cache, key string, fetch Fetch) (Result, error) {
	decision, err := g.tracker.Consume(ctx)
	if err != nil {
		return Result{}, err
	}

	if !decision.Allowed {
		g.logger.Warn("quota exceeded",
			zap.String("reason", string(decision.Reason)),
			zap.Int64("retry_after_seconds", decision.RetryAfterSeconds),
		)

		return Result{
			Status:            http.StatusTooManyRequests,
			Message:           fmt.Sprintf("Rate limit exceeded: %s", decision.Reason),
			Headers:           decision.Headers,
			Reason:            decision.Reason,
			RetryAfterSeconds: decision.RetryAfterSeconds,
		}, nil
	}

	if payload, ok := c.Get(key); ok {
		return Result{
			Status:   http.StatusOK,
			Payload:  payload,
			Headers:  decision.Headers,
			CacheHit: true,
		}, nil
	}

	status, payload, err := fetch(ctx)
	if err != nil {
		g.logger.Error("upstream unreachable", zap.String("cache_key", key), zap.Error(err))

		status = http.StatusBadGateway
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return Result{
			Status:  status,
			Message: fmt.Sprintf("Upstream error: %d", status),
			Headers: decision.Headers,
		}, nil
	}

	c.Put(key, payload)

	return Result{
		Status:  status,
		Payload: payload,
		Headers: decision.Headers,
	}, nil
}
