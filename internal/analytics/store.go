package analytics

import "context"

// Store defines the interface for persisting analytics events.
type Store interface {
	SaveRequestServed(ctx context.Context, event *RequestServedEvent) error
	SaveQuotaDenied(ctx context.Context, event *QuotaDeniedEvent) error
}
