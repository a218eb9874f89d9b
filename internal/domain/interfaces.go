package domain

import (
	"context"
	"errors"
	"time"
)

// ErrTokenConsumed reports that an approval token was already redeemed
// or has expired by the time the transaction ran.
var ErrTokenConsumed = errors.New("approval token consumed")

// BriefRepo manages persisted briefs.
type BriefRepo interface {
	CreateBrief(ctx context.Context, brief Brief) (Brief, error)
	GetBrief(ctx context.Context, id int64) (Brief, error)
	UpdateBriefStatus(ctx context.Context, id int64, status string) error
	SetBriefSchedule(ctx context.Context, id int64, sybScheduleID string) error
}

// VenueRepo manages durable venue records.
type VenueRepo interface {
	UpsertVenue(ctx context.Context, venue Venue) (Venue, error)
	GetVenue(ctx context.Context, venueName string) (Venue, error)
	SetLatestBrief(ctx context.Context, venueName string, briefID int64) error
	IncrementApprovedCount(ctx context.Context, venueName string) error
}

// ZoneMappingRepo learns and reuses zone mappings per venue.
type ZoneMappingRepo interface {
	UpsertZoneMapping(ctx context.Context, mapping ZoneMapping) error
	ListZoneMappings(ctx context.Context, venueName string) ([]ZoneMapping, error)
}

// ScheduleEntryRepo is the executor's durable work list.
type ScheduleEntryRepo interface {
	CreateScheduleEntries(ctx context.Context, entries []ScheduleEntry) error
	ListActiveEntries(ctx context.Context) ([]ScheduleEntry, error)
	CountActiveEntries(ctx context.Context) (int, error)
	MarkAssigned(ctx context.Context, entryID int64, at time.Time) error
	RecordAssignFailure(ctx context.Context, entryID int64, maxRetries int) error
}

// TokenRepo issues and consumes approval tokens.
type TokenRepo interface {
	CreateToken(ctx context.Context, briefID int64, token string, expiresAt time.Time) error
	GetToken(ctx context.Context, token string) (ApprovalToken, error)
	ConsumeToken(ctx context.Context, token string, at time.Time) (bool, error)
}

// FollowUpRepo schedules and resolves follow-up emails.
type FollowUpRepo interface {
	CreateFollowUps(ctx context.Context, followUps []FollowUp) error
	DueFollowUps(ctx context.Context, now time.Time, limit int) ([]FollowUpJob, error)
	MarkFollowUpSent(ctx context.Context, id int64, at time.Time) error
	MarkFollowUpOpened(ctx context.Context, trackingID string, at time.Time) error
}

// Store aggregates every repository the service persists through.
type Store interface {
	BriefRepo
	VenueRepo
	ZoneMappingRepo
	ScheduleEntryRepo
	TokenRepo
	FollowUpRepo
	Approve(ctx context.Context, req ApproveRequest) error
}

// ApproveRequest is the single-transaction unit of work for token redemption.
type ApproveRequest struct {
	Token     string
	BriefID   int64
	VenueName string
	Mappings  []ZoneMapping
	Entries   []ScheduleEntry
	// NewStatus is BriefScheduled when a remote schedule was bound,
	// BriefApproved otherwise.
	NewStatus string
}

// MusicPlatform is the external platform the executor drives.
type MusicPlatform interface {
	AccountsPage(ctx context.Context, cursor string) (AccountsPage, error)
	Zones(ctx context.Context, accountID string) ([]Zone, error)
	CreateSchedule(ctx context.Context, input CreateScheduleInput) (string, error)
	AddToMusicLibrary(ctx context.Context, parentID, sourceID string) error
	AssignSource(ctx context.Context, zoneIDs []string, sourceID string) error
}

// AccountsPage is one page of the platform account listing.
type AccountsPage struct {
	Accounts  []Account
	HasNext   bool
	EndCursor string
}

// ScheduleSlot is one weekly RRULE slot of a remote schedule.
type ScheduleSlot struct {
	RRule       string   `json:"rrule"`
	Start       string   `json:"start"`
	Duration    int64    `json:"duration"`
	PlaylistIDs []string `json:"playlistIds"`
}

// CreateScheduleInput describes a remote schedule to pre-build.
type CreateScheduleInput struct {
	OwnerID     string
	Name        string
	PresentAs   string
	Description string
	Slots       []ScheduleSlot
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title       string
	Description string
	URL         string
}

// Searcher runs web research queries for the consultation engine.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
	Configured() bool
}

// Mailer delivers HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
