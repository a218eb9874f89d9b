package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool against the configured DSN.
func Connect(dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 5
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// migrations are idempotent and run on every start.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS briefs (
		id BIGSERIAL PRIMARY KEY,
		venue_name TEXT NOT NULL,
		venue_type TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		contact_name TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		product TEXT NOT NULL DEFAULT 'syb',
		liked_playlist_ids JSONB NOT NULL DEFAULT '[]',
		conversation_summary TEXT NOT NULL DEFAULT '',
		raw_data JSONB,
		schedule_data JSONB,
		status TEXT NOT NULL DEFAULT 'submitted',
		syb_account_id TEXT,
		syb_schedule_id TEXT,
		automation_tier TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS venues (
		id BIGSERIAL PRIMARY KEY,
		venue_name TEXT NOT NULL UNIQUE,
		location TEXT NOT NULL DEFAULT '',
		venue_type TEXT NOT NULL DEFAULT '',
		syb_account_id TEXT,
		latest_brief_id BIGINT REFERENCES briefs(id),
		auto_schedule BOOLEAN NOT NULL DEFAULT FALSE,
		approved_brief_count INT NOT NULL DEFAULT 0,
		timezone TEXT NOT NULL DEFAULT 'Asia/Bangkok',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS zone_mappings (
		id BIGSERIAL PRIMARY KEY,
		venue_name TEXT NOT NULL,
		brief_zone_name TEXT NOT NULL,
		syb_zone_id TEXT NOT NULL,
		syb_zone_name TEXT NOT NULL DEFAULT '',
		syb_account_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (venue_name, brief_zone_name)
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_entries (
		id BIGSERIAL PRIMARY KEY,
		brief_id BIGINT NOT NULL REFERENCES briefs(id),
		zone_id TEXT NOT NULL,
		zone_name TEXT NOT NULL DEFAULT '',
		playlist_syb_id TEXT NOT NULL,
		playlist_name TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL DEFAULT '',
		days TEXT NOT NULL DEFAULT 'daily',
		timezone TEXT NOT NULL DEFAULT 'Asia/Bangkok',
		status TEXT NOT NULL DEFAULT 'active',
		last_assigned_at TIMESTAMPTZ,
		retry_count INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS approval_tokens (
		id BIGSERIAL PRIMARY KEY,
		brief_id BIGINT NOT NULL REFERENCES briefs(id),
		token TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		used_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS follow_ups (
		id BIGSERIAL PRIMARY KEY,
		brief_id BIGINT NOT NULL REFERENCES briefs(id),
		type TEXT NOT NULL,
		scheduled_for TIMESTAMPTZ NOT NULL,
		sent_at TIMESTAMPTZ,
		opened_at TIMESTAMPTZ,
		tracking_id TEXT NOT NULL UNIQUE
	)`,
	`ALTER TABLE venues ADD COLUMN IF NOT EXISTS timezone TEXT NOT NULL DEFAULT 'Asia/Bangkok'`,
	`ALTER TABLE briefs ADD COLUMN IF NOT EXISTS automation_tier TEXT`,
	`ALTER TABLE follow_ups ADD COLUMN IF NOT EXISTS opened_at TIMESTAMPTZ`,
	`CREATE INDEX IF NOT EXISTS idx_venues_name ON venues (venue_name)`,
	`CREATE INDEX IF NOT EXISTS idx_briefs_venue ON briefs (venue_name)`,
	`CREATE INDEX IF NOT EXISTS idx_briefs_email ON briefs (contact_email)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_active ON schedule_entries (status, start_time) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS idx_tokens_token ON approval_tokens (token)`,
	`CREATE INDEX IF NOT EXISTS idx_follow_ups_due ON follow_ups (scheduled_for) WHERE sent_at IS NULL`,
}

// Migrate applies the idempotent schema, statement by statement.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
