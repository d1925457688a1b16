package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/rates-proxy-go/internal/quota"
)

// QuotaHandler reports current quota usage without spending any.
type QuotaHandler struct {
	tracker *quota.Tracker
}

// NewQuotaHandler creates a new quota status handler.
func NewQuotaHandler(tracker *quota.Tracker) *QuotaHandler {
	return &QuotaHandler{tracker: tracker}
}

// Status returns a read-only snapshot of both counters.
func (h *QuotaHandler) Status(ctx context.Context, _ *struct{}) (*QuotaStatusResponse, error) {
	decision, err := h.tracker.Snapshot(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("quota backend unavailable", err)
	}

	resp := &QuotaStatusResponse{}
	resp.Body.Success = true
	resp.Body.Minute = QuotaWindowStatus{
		Limit:     decision.Headers.LimitMinute,
		Remaining: decision.Headers.RemainingMinute,
		Reset:     decision.Headers.ResetMinute,
	}
	resp.Body.Month = QuotaWindowStatus{
		Limit:     decision.Headers.LimitMonth,
		Remaining: decision.Headers.RemainingMonth,
		Reset:     decision.Headers.ResetMonth,
	}

	return resp, nil
}
