package store

import (
	"context"

	"github.com/serroba/rates-proxy-go/internal/analytics"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of analytics.Store that logs events.
// It is used when no database is configured.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op analytics store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveRequestServed(_ context.Context, event *analytics.RequestServedEvent) error {
	n.logger.Info("request served event received",
		zap.String("requestId", event.RequestID),
		zap.String("route", event.Route),
		zap.Bool("cacheHit", event.CacheHit),
		zap.Int("status", event.Status),
	)

	return nil
}

func (n *Noop) SaveQuotaDenied(_ context.Context, event *analytics.QuotaDeniedEvent) error {
	n.logger.Info("quota denied event received",
		zap.String("requestId", event.RequestID),
		zap.String("route", event.Route),
		zap.String("reason", event.Reason),
	)

	return nil
}
