package analytics

import "time"

const (
	// TopicRequestServed carries one event per request the gate answered.
	TopicRequestServed = "proxy.request.served"
	// TopicQuotaDenied carries one event per quota-denied request.
	TopicQuotaDenied = "proxy.quota.denied"
)

// RequestServedEvent is emitted for every allowed request, whether it was
// answered from cache or by the upstream.
type RequestServedEvent struct {
	RequestID       string    `json:"requestId"`
	Route           string    `json:"route"`
	CacheHit        bool      `json:"cacheHit"`
	Status          int       `json:"status"`
	RemainingMinute int64     `json:"remainingMinute"`
	RemainingMonth  int64     `json:"remainingMonth"`
	ClientIP        string    `json:"clientIp"`
	UserAgent       string    `json:"userAgent"`
	ServedAt        time.Time `json:"servedAt"`
}

// QuotaDeniedEvent is emitted when the gate rejects a request over a cap.
type QuotaDeniedEvent struct {
	RequestID         string    `json:"requestId"`
	Route             string    `json:"route"`
	Reason            string    `json:"reason"`
	RetryAfterSeconds int64     `json:"retryAfterSeconds,omitempty"`
	ClientIP          string    `json:"clientIp"`
	UserAgent         string    `json:"userAgent"`
	DeniedAt          time.Time `json:"deniedAt"`
}
