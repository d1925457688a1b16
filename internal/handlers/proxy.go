package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/rates-proxy-go/internal/analytics"
	"github.com/serroba/rates-proxy-go/internal/cache"
	"github.com/serroba/rates-proxy-go/internal/gate"
	"github.com/serroba/rates-proxy-go/internal/messaging"
	"github.com/serroba/rates-proxy-go/internal/quota"
	"go.uber.org/zap"
)

// RatesSource is the upstream collaborator invoked on cache misses.
type RatesSource interface {
	Latest(ctx context.Context) (int, json.RawMessage, error)
	History(ctx context.Context, id string, limit, page int) (int, json.RawMessage, error)
}

// ProxyHandler serves the two upstream-backed routes through the shared
// quota-and-cache gate.
type ProxyHandler struct {
	gate          *gate.Gate
	latestCache   cache.Cache
	historyCache  cache.Cache
	source        RatesSource
	publishServed messaging.Publish[analytics.RequestServedEvent]
	publishDenied messaging.Publish[analytics.QuotaDeniedEvent]
	logger        *zap.Logger
}

// NewProxyHandler creates a new proxy handler. Both routes share the one
// gate (and therefore the one quota tracker); each has its own cache shape.
func NewProxyHandler(
	g *gate.Gate,
	latestCache, historyCache cache.Cache,
	source RatesSource,
	publishServed messaging.Publish[analytics.RequestServedEvent],
	publishDenied messaging.Publish[analytics.QuotaDeniedEvent],
	logger *zap.Logger,
) *ProxyHandler {
	return &ProxyHandler{
		gate:          g,
		latestCache:   latestCache,
		historyCache:  historyCache,
		source:        source,
		publishServed: publishServed,
		publishDenied: publishDenied,
		logger:        logger,
	}
}

// LatestRates proxies the parameterless latest-rates resource.
func (h *ProxyHandler) LatestRates(ctx context.Context, _ *struct{}) (*huma.StreamResponse, error) {
	result, err := h.gate.Proxy(ctx, h.latestCache, "latest", h.source.Latest)
	if err != nil {
		return nil, huma.Error500InternalServerError("quota backend unavailable", err)
	}

	h.publishOutcome(ctx, "/rates/latest", result)

	return proxyResponse(result), nil
}

// SymbolHistory proxies one page of per-symbol history.
func (h *ProxyHandler) SymbolHistory(ctx context.Context, req *HistoryRequest) (*huma.StreamResponse, error) {
	key := cache.Key(
		"id", req.ID,
		"limit", strconv.Itoa(req.Limit),
		"page", strconv.Itoa(req.Page),
	)

	fetch := func(ctx context.Context) (int, json.RawMessage, error) {
		return h.source.History(ctx, req.ID, req.Limit, req.Page)
	}

	result, err := h.gate.Proxy(ctx, h.historyCache, key, fetch)
	if err != nil {
		return nil, huma.Error500InternalServerError("quota backend unavailable", err)
	}

	h.publishOutcome(ctx, "/symbols/{id}/history", result)

	return proxyResponse(result), nil
}

func (h *ProxyHandler) publishOutcome(ctx context.Context, route string, result gate.Result) {
	meta := RequestMetaFromContext(ctx)
	now := time.Now()

	if result.Status == http.StatusTooManyRequests {
		event := &analytics.QuotaDeniedEvent{
			RequestID:         meta.RequestID,
			Route:             route,
			Reason:            string(result.Reason),
			RetryAfterSeconds: result.RetryAfterSeconds,
			ClientIP:          meta.ClientIP,
			UserAgent:         meta.UserAgent,
			DeniedAt:          now,
		}

		if err := h.publishDenied(event); err != nil {
			h.logger.Error("failed to publish quota denied event",
				zap.String("requestId", meta.RequestID),
				zap.Error(err),
			)
		}

		return
	}

	event := &analytics.RequestServedEvent{
		RequestID:       meta.RequestID,
		Route:           route,
		CacheHit:        result.CacheHit,
		Status:          result.Status,
		RemainingMinute: result.Headers.RemainingMinute,
		RemainingMonth:  result.Headers.RemainingMonth,
		ClientIP:        meta.ClientIP,
		UserAgent:       meta.UserAgent,
		ServedAt:        now,
	}

	if err := h.publishServed(event); err != nil {
		h.logger.Error("failed to publish request served event",
			zap.String("requestId", meta.RequestID),
			zap.Error(err),
		)
	}
}

// proxyResponse writes a gate result at the HTTP boundary: quota headers on
// every outcome, Retry-After only on minute denials, the upstream payload
// verbatim on success, and the error envelope otherwise.
func proxyResponse(result gate.Result) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			setQuotaHeaders(ctx, result.Headers)

			if result.RetryAfterSeconds > 0 {
				ctx.SetHeader("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
			}

			ctx.SetHeader("Content-Type", "application/json")
			ctx.SetStatus(result.Status)

			if result.Success() {
				_, _ = ctx.BodyWriter().Write(result.Payload)

				return
			}

			_ = json.NewEncoder(ctx.BodyWriter()).Encode(errorEnvelope{
				Success: false,
				Message: result.Message,
			})
		},
	}
}

func setQuotaHeaders(ctx huma.Context, h quota.Headers) {
	ctx.SetHeader("X-RateLimit-Limit-Minute", strconv.FormatInt(h.LimitMinute, 10))
	ctx.SetHeader("X-RateLimit-Remaining-Minute", strconv.FormatInt(h.RemainingMinute, 10))
	ctx.SetHeader("X-RateLimit-Reset-Minute", strconv.FormatInt(h.ResetMinute, 10))
	ctx.SetHeader("X-RateLimit-Limit-Month", strconv.FormatInt(h.LimitMonth, 10))
	ctx.SetHeader("X-RateLimit-Remaining-Month", strconv.FormatInt(h.RemainingMonth, 10))
	ctx.SetHeader("X-RateLimit-Reset-Month", strconv.FormatInt(h.ResetMonth, 10))
}
