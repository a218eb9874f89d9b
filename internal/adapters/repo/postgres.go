package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"music-concierge/internal/domain"
	"music-concierge/internal/infra/metrics"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Postgres implements the domain repositories on top of pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Postgres)(nil)

// NewPostgres builds the database adapter.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// CreateBrief persists a submitted brief.
func (p *Postgres) CreateBrief(ctx context.Context, brief domain.Brief) (domain.Brief, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	liked, err := json.Marshal(brief.LikedPlaylists)
	if err != nil {
		return domain.Brief{}, fmt.Errorf("marshal liked playlists: %w", err)
	}
	if brief.Status == "" {
		brief.Status = domain.BriefSubmitted
	}

	start := time.Now()
	err = p.pool.QueryRow(ctx, `
INSERT INTO briefs (venue_name, venue_type, location, contact_name, contact_email, contact_phone, product,
	liked_playlist_ids, conversation_summary, raw_data, schedule_data, status, syb_account_id, automation_tier)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13,''), NULLIF($14,''))
RETURNING id, created_at
`, brief.VenueName, brief.VenueType, brief.Location, brief.ContactName, brief.ContactEmail, brief.ContactPhone,
		brief.Product, liked, brief.ConversationSummary, brief.RawData, brief.ScheduleData, brief.Status,
		brief.SybAccountID, brief.AutomationTier).Scan(&brief.ID, &brief.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "briefs_insert", "briefs", start, err)
	if err != nil {
		return domain.Brief{}, err
	}
	return brief, nil
}

// GetBrief loads one brief by id.
func (p *Postgres) GetBrief(ctx context.Context, id int64) (domain.Brief, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		brief     domain.Brief
		liked     []byte
		accountID sql.NullString
		schedID   sql.NullString
		tier      sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, venue_name, venue_type, location, contact_name, contact_email, contact_phone, product,
	liked_playlist_ids, conversation_summary, COALESCE(raw_data, 'null'), COALESCE(schedule_data, 'null'),
	status, syb_account_id, syb_schedule_id, automation_tier, created_at
FROM briefs WHERE id = $1
`, id).Scan(&brief.ID, &brief.VenueName, &brief.VenueType, &brief.Location, &brief.ContactName,
		&brief.ContactEmail, &brief.ContactPhone, &brief.Product, &liked, &brief.ConversationSummary,
		&brief.RawData, &brief.ScheduleData, &brief.Status, &accountID, &schedID, &tier, &brief.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "briefs_get", "briefs", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Brief{}, ErrNotFound
	}
	if err != nil {
		return domain.Brief{}, err
	}
	if len(liked) > 0 {
		_ = json.Unmarshal(liked, &brief.LikedPlaylists)
	}
	brief.SybAccountID = accountID.String
	brief.SybScheduleID = schedID.String
	brief.AutomationTier = tier.String
	return brief, nil
}

// UpdateBriefStatus moves a brief along its lifecycle.
func (p *Postgres) UpdateBriefStatus(ctx context.Context, id int64, status string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE briefs SET status = $2 WHERE id = $1`, id, status)
	metrics.ObserveNetworkRequest("postgres", "briefs_update_status", "briefs", start, err)
	return err
}

// SetBriefSchedule records the id of a pre-built remote schedule.
func (p *Postgres) SetBriefSchedule(ctx context.Context, id int64, sybScheduleID string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE briefs SET syb_schedule_id = $2 WHERE id = $1`, id, sybScheduleID)
	metrics.ObserveNetworkRequest("postgres", "briefs_set_schedule", "briefs", start, err)
	return err
}

// UpsertVenue creates or refreshes the venue row keyed by name.
func (p *Postgres) UpsertVenue(ctx context.Context, venue domain.Venue) (domain.Venue, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if venue.Timezone == "" {
		venue.Timezone = "Asia/Bangkok"
	}
	var (
		out       domain.Venue
		accountID sql.NullString
		latest    sql.NullInt64
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO venues (venue_name, location, venue_type, syb_account_id, timezone)
VALUES ($1, $2, $3, NULLIF($4,''), $5)
ON CONFLICT (venue_name) DO UPDATE SET
	location = COALESCE(NULLIF(EXCLUDED.location,''), venues.location),
	venue_type = COALESCE(NULLIF(EXCLUDED.venue_type,''), venues.venue_type),
	syb_account_id = COALESCE(EXCLUDED.syb_account_id, venues.syb_account_id),
	updated_at = now()
RETURNING id, venue_name, location, venue_type, syb_account_id, latest_brief_id,
	auto_schedule, approved_brief_count, timezone, created_at, updated_at
`, venue.VenueName, venue.Location, venue.VenueType, venue.SybAccountID, venue.Timezone).
		Scan(&out.ID, &out.VenueName, &out.Location, &out.VenueType, &accountID, &latest,
			&out.AutoSchedule, &out.ApprovedBriefCount, &out.Timezone, &out.CreatedAt, &out.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "venues_upsert", "venues", start, err)
	if err != nil {
		return domain.Venue{}, err
	}
	out.SybAccountID = accountID.String
	if latest.Valid {
		out.LatestBriefID = &latest.Int64
	}
	return out, nil
}

// GetVenue loads one venue by name.
func (p *Postgres) GetVenue(ctx context.Context, venueName string) (domain.Venue, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		out       domain.Venue
		accountID sql.NullString
		latest    sql.NullInt64
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, venue_name, location, venue_type, syb_account_id, latest_brief_id,
	auto_schedule, approved_brief_count, timezone, created_at, updated_at
FROM venues WHERE venue_name = $1
`, venueName).Scan(&out.ID, &out.VenueName, &out.Location, &out.VenueType, &accountID, &latest,
		&out.AutoSchedule, &out.ApprovedBriefCount, &out.Timezone, &out.CreatedAt, &out.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "venues_get", "venues", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Venue{}, ErrNotFound
	}
	if err != nil {
		return domain.Venue{}, err
	}
	out.SybAccountID = accountID.String
	if latest.Valid {
		out.LatestBriefID = &latest.Int64
	}
	return out, nil
}

// SetLatestBrief points the venue at its newest brief.
func (p *Postgres) SetLatestBrief(ctx context.Context, venueName string, briefID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE venues SET latest_brief_id = $2, updated_at = now() WHERE venue_name = $1`, venueName, briefID)
	metrics.ObserveNetworkRequest("postgres", "venues_set_latest", "venues", start, err)
	return err
}

// IncrementApprovedCount bumps the approval counter used by auto-schedule.
func (p *Postgres) IncrementApprovedCount(ctx context.Context, venueName string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE venues SET approved_brief_count = approved_brief_count + 1, updated_at = now() WHERE venue_name = $1`, venueName)
	metrics.ObserveNetworkRequest("postgres", "venues_inc_approved", "venues", start, err)
	return err
}

// UpsertZoneMapping learns one zone mapping for a venue.
func (p *Postgres) UpsertZoneMapping(ctx context.Context, mapping domain.ZoneMapping) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, upsertZoneMappingSQL,
		mapping.VenueName, mapping.BriefZoneName, mapping.SybZoneID, mapping.SybZoneName, mapping.SybAccountID)
	metrics.ObserveNetworkRequest("postgres", "zone_mappings_upsert", "zone_mappings", start, err)
	return err
}

const upsertZoneMappingSQL = `
INSERT INTO zone_mappings (venue_name, brief_zone_name, syb_zone_id, syb_zone_name, syb_account_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (venue_name, brief_zone_name) DO UPDATE SET
	syb_zone_id = EXCLUDED.syb_zone_id,
	syb_zone_name = EXCLUDED.syb_zone_name,
	syb_account_id = EXCLUDED.syb_account_id`

// ListZoneMappings returns the mappings learned for a venue.
func (p *Postgres) ListZoneMappings(ctx context.Context, venueName string) ([]domain.ZoneMapping, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, venue_name, brief_zone_name, syb_zone_id, syb_zone_name, syb_account_id, created_at
FROM zone_mappings WHERE venue_name = $1 ORDER BY id
`, venueName)
	metrics.ObserveNetworkRequest("postgres", "zone_mappings_list", "zone_mappings", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ZoneMapping
	for rows.Next() {
		var m domain.ZoneMapping
		if err := rows.Scan(&m.ID, &m.VenueName, &m.BriefZoneName, &m.SybZoneID, &m.SybZoneName, &m.SybAccountID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateScheduleEntries inserts the executor's work list for a brief.
func (p *Postgres) CreateScheduleEntries(ctx context.Context, entries []domain.ScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertEntries(ctx context.Context, tx pgx.Tx, entries []domain.ScheduleEntry) error {
	for _, e := range entries {
		start := time.Now()
		_, err := tx.Exec(ctx, `
INSERT INTO schedule_entries (brief_id, zone_id, zone_name, playlist_syb_id, playlist_name,
	start_time, end_time, days, timezone, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active')
`, e.BriefID, e.ZoneID, e.ZoneName, e.PlaylistSybID, e.PlaylistName, e.StartTime, e.EndTime, e.Days, e.Timezone)
		metrics.ObserveNetworkRequest("postgres", "entries_insert", "schedule_entries", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListActiveEntries returns every active entry for the executor tick.
func (p *Postgres) ListActiveEntries(ctx context.Context) ([]domain.ScheduleEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, brief_id, zone_id, zone_name, playlist_syb_id, playlist_name,
	start_time, end_time, days, timezone, status, last_assigned_at, retry_count
FROM schedule_entries WHERE status = 'active' ORDER BY id
`)
	metrics.ObserveNetworkRequest("postgres", "entries_list_active", "schedule_entries", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScheduleEntry
	for rows.Next() {
		var (
			e        domain.ScheduleEntry
			assigned sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.BriefID, &e.ZoneID, &e.ZoneName, &e.PlaylistSybID, &e.PlaylistName,
			&e.StartTime, &e.EndTime, &e.Days, &e.Timezone, &e.Status, &assigned, &e.RetryCount); err != nil {
			return nil, err
		}
		if assigned.Valid {
			t := assigned.Time
			e.LastAssignedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountActiveEntries counts active entries for the keepalive arbiter.
func (p *Postgres) CountActiveEntries(ctx context.Context) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM schedule_entries WHERE status = 'active'`).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "entries_count_active", "schedule_entries", start, err)
	return count, err
}

// MarkAssigned records a successful assignment and clears the retry counter.
func (p *Postgres) MarkAssigned(ctx context.Context, entryID int64, at time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE schedule_entries SET last_assigned_at = $2, retry_count = 0
WHERE id = $1 AND (last_assigned_at IS NULL OR last_assigned_at <= $2)
`, entryID, at.UTC())
	metrics.ObserveNetworkRequest("postgres", "entries_mark_assigned", "schedule_entries", start, err)
	return err
}

// RecordAssignFailure bumps the retry counter; the entry turns terminal
// at maxRetries.
func (p *Postgres) RecordAssignFailure(ctx context.Context, entryID int64, maxRetries int) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE schedule_entries SET retry_count = retry_count + 1,
	status = CASE WHEN retry_count + 1 >= $2 THEN 'error' ELSE status END
WHERE id = $1
`, entryID, maxRetries)
	metrics.ObserveNetworkRequest("postgres", "entries_record_failure", "schedule_entries", start, err)
	return err
}

// CreateToken issues an approval token.
func (p *Postgres) CreateToken(ctx context.Context, briefID int64, token string, expiresAt time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO approval_tokens (brief_id, token, expires_at) VALUES ($1, $2, $3)
`, briefID, token, expiresAt.UTC())
	metrics.ObserveNetworkRequest("postgres", "tokens_insert", "approval_tokens", start, err)
	return err
}

// GetToken loads a token row.
func (p *Postgres) GetToken(ctx context.Context, token string) (domain.ApprovalToken, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		out  domain.ApprovalToken
		used sql.NullTime
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, brief_id, token, expires_at, used_at, created_at FROM approval_tokens WHERE token = $1
`, token).Scan(&out.ID, &out.BriefID, &out.Token, &out.ExpiresAt, &used, &out.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "tokens_get", "approval_tokens", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ApprovalToken{}, ErrNotFound
	}
	if err != nil {
		return domain.ApprovalToken{}, err
	}
	if used.Valid {
		t := used.Time
		out.UsedAt = &t
	}
	return out, nil
}

// ConsumeToken sets used_at once; a second call reports false.
func (p *Postgres) ConsumeToken(ctx context.Context, token string, at time.Time) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	tag, err := p.pool.Exec(ctx, consumeTokenSQL, token, at.UTC())
	metrics.ObserveNetworkRequest("postgres", "tokens_consume", "approval_tokens", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const consumeTokenSQL = `
UPDATE approval_tokens SET used_at = $2
WHERE token = $1 AND used_at IS NULL AND expires_at > $2`

// CreateFollowUps schedules follow-up emails for a brief.
func (p *Postgres) CreateFollowUps(ctx context.Context, followUps []domain.FollowUp) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	for _, f := range followUps {
		start := time.Now()
		_, err := p.pool.Exec(ctx, `
INSERT INTO follow_ups (brief_id, type, scheduled_for, tracking_id) VALUES ($1, $2, $3, $4)
`, f.BriefID, f.Type, f.ScheduledFor.UTC(), f.TrackingID)
		metrics.ObserveNetworkRequest("postgres", "follow_ups_insert", "follow_ups", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// DueFollowUps returns unsent follow-ups whose time has come, joined
// with the brief's contact.
func (p *Postgres) DueFollowUps(ctx context.Context, now time.Time, limit int) ([]domain.FollowUpJob, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT f.id, f.brief_id, f.type, f.scheduled_for, f.tracking_id, b.venue_name, b.contact_name, b.contact_email
FROM follow_ups f JOIN briefs b ON b.id = f.brief_id
WHERE f.sent_at IS NULL AND f.scheduled_for <= $1
ORDER BY f.scheduled_for
LIMIT $2
`, now.UTC(), limit)
	metrics.ObserveNetworkRequest("postgres", "follow_ups_due", "follow_ups", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FollowUpJob
	for rows.Next() {
		var job domain.FollowUpJob
		if err := rows.Scan(&job.ID, &job.BriefID, &job.Type, &job.ScheduledFor, &job.TrackingID,
			&job.VenueName, &job.ContactName, &job.ContactEmail); err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// MarkFollowUpSent stamps sent_at exactly once.
func (p *Postgres) MarkFollowUpSent(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE follow_ups SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL`, id, at.UTC())
	metrics.ObserveNetworkRequest("postgres", "follow_ups_mark_sent", "follow_ups", start, err)
	return err
}

// MarkFollowUpOpened stamps opened_at the first time a pixel fires.
func (p *Postgres) MarkFollowUpOpened(ctx context.Context, trackingID string, at time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE follow_ups SET opened_at = $2 WHERE tracking_id = $1 AND opened_at IS NULL
`, trackingID, at.UTC())
	metrics.ObserveNetworkRequest("postgres", "follow_ups_mark_opened", "follow_ups", start, err)
	return err
}

// Approve performs the token redemption unit of work in one
// transaction: mapping upserts, entry materialization, token consume,
// brief status, venue counter. On any failure the token stays
// redeemable and no half-state persists.
func (p *Postgres) Approve(ctx context.Context, req domain.ApproveRequest) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.Begin(ctx)
	metrics.ObserveNetworkRequest("postgres", "approve_begin", "approval_tokens", start, err)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, consumeTokenSQL, req.Token, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return domain.ErrTokenConsumed
	}

	for _, m := range req.Mappings {
		if _, err := tx.Exec(ctx, upsertZoneMappingSQL,
			m.VenueName, m.BriefZoneName, m.SybZoneID, m.SybZoneName, m.SybAccountID); err != nil {
			return err
		}
	}
	if err := insertEntries(ctx, tx, req.Entries); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE briefs SET status = $2 WHERE id = $1`, req.BriefID, req.NewStatus); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
UPDATE venues SET approved_brief_count = approved_brief_count + 1, updated_at = now() WHERE venue_name = $1
`, req.VenueName); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
