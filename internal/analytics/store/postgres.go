package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/rates-proxy-go/internal/analytics"
)

// Postgres persists analytics events to PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE request_log (
//	    request_id       TEXT NOT NULL,
//	    route            TEXT NOT NULL,
//	    cache_hit        BOOLEAN NOT NULL,
//	    status           INT NOT NULL,
//	    remaining_minute BIGINT NOT NULL,
//	    remaining_month  BIGINT NOT NULL,
//	    client_ip        TEXT,
//	    user_agent       TEXT,
//	    served_at        TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE quota_denials (
//	    request_id          TEXT NOT NULL,
//	    route               TEXT NOT NULL,
//	    reason              TEXT NOT NULL,
//	    retry_after_seconds BIGINT NOT NULL,
//	    client_ip           TEXT,
//	    user_agent          TEXT,
//	    denied_at           TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a new PostgreSQL-backed analytics store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) SaveRequestServed(ctx context.Context, event *analytics.RequestServedEvent) error {
	query := `
		INSERT INTO request_log (
			request_id, route, cache_hit, status,
			remaining_minute, remaining_month,
			client_ip, user_agent, served_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := p.pool.Exec(ctx, query,
		event.RequestID,
		event.Route,
		event.CacheHit,
		event.Status,
		event.RemainingMinute,
		event.RemainingMonth,
		event.ClientIP,
		event.UserAgent,
		event.ServedAt,
	)

	return err
}

func (p *Postgres) SaveQuotaDenied(ctx context.Context, event *analytics.QuotaDeniedEvent) error {
	query := `
		INSERT INTO quota_denials (
			request_id, route, reason, retry_after_seconds,
			client_ip, user_agent, denied_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := p.pool.Exec(ctx, query,
		event.RequestID,
		event.Route,
		event.Reason,
		event.RetryAfterSeconds,
		event.ClientIP,
		event.UserAgent,
		event.DeniedAt,
	)

	return err
}

// Compile-time check.
var _ analytics.Store = (*Postgres)(nil)
