package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"music-concierge/internal/domain"
	"music-concierge/internal/usecase/accounts"
	"music-concierge/internal/usecase/submission"
)

// Token validation errors, rendered as explanatory pages.
var (
	ErrTokenNotFound = errors.New("approval token not found")
	ErrTokenExpired  = errors.New("approval token expired")
	ErrTokenUsed     = errors.New("approval token already used")
)

// Service finalizes briefs: zone mapping, entry materialization or
// remote schedule binding, token consumption.
type Service struct {
	store    domain.Store
	platform domain.MusicPlatform
	accounts *accounts.Cache
	log      zerolog.Logger
}

// NewService wires the approval service.
func NewService(store domain.Store, platform domain.MusicPlatform, cache *accounts.Cache, logger zerolog.Logger) *Service {
	return &Service{store: store, platform: platform, accounts: cache, log: logger}
}

// Page carries everything the approval page needs to render.
type Page struct {
	Brief         domain.Brief
	Venue         domain.Venue
	ZoneNames     []string
	PlatformZones []domain.Zone
	Preselected   map[string]string
	Prebuilt      bool
}

func (s *Service) validToken(ctx context.Context, token string) (domain.ApprovalToken, error) {
	t, err := s.store.GetToken(ctx, token)
	if err != nil {
		return domain.ApprovalToken{}, ErrTokenNotFound
	}
	if t.UsedAt != nil {
		return domain.ApprovalToken{}, ErrTokenUsed
	}
	if time.Now().After(t.ExpiresAt) {
		return domain.ApprovalToken{}, ErrTokenExpired
	}
	return t, nil
}

// Prepare validates the token and gathers the page data: brief zones
// joined with the platform's sound zones, pre-selecting learned
// mappings.
func (s *Service) Prepare(ctx context.Context, token string) (Page, error) {
	t, err := s.validToken(ctx, token)
	if err != nil {
		return Page{}, err
	}
	brief, err := s.store.GetBrief(ctx, t.BriefID)
	if err != nil {
		return Page{}, fmt.Errorf("load brief: %w", err)
	}
	venue, err := s.store.GetVenue(ctx, brief.VenueName)
	if err != nil {
		return Page{}, fmt.Errorf("load venue: %w", err)
	}

	page := Page{
		Brief:    brief,
		Venue:    venue,
		Prebuilt: brief.SybScheduleID != "",
	}
	page.ZoneNames = briefZoneNames(brief)
	page.PlatformZones = s.discoverZones(ctx, brief, venue)

	mappings, err := s.store.ListZoneMappings(ctx, venue.VenueName)
	if err == nil {
		page.Preselected = make(map[string]string, len(mappings))
		for _, m := range mappings {
			page.Preselected[m.BriefZoneName] = m.SybZoneID
		}
	}
	return page, nil
}

func briefZoneNames(brief domain.Brief) []string {
	var data domain.ScheduleData
	if err := json.Unmarshal(brief.ScheduleData, &data); err == nil && len(data.Slots) > 0 {
		names := make([]string, 0, len(data.Slots))
		if len(data.ZoneNames) > 0 {
			for _, name := range data.ZoneNames {
				if _, ok := data.Slots[name]; ok {
					names = append(names, name)
				}
			}
		}
		for zone := range data.Slots {
			if !contains(names, zone) {
				names = append(names, zone)
			}
		}
		return names
	}
	return []string{submission.DefaultZoneName}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// discoverZones prefers the confirmed account, then falls back to a
// name search in the account cache.
func (s *Service) discoverZones(ctx context.Context, brief domain.Brief, venue domain.Venue) []domain.Zone {
	accountID := brief.SybAccountID
	if accountID == "" {
		accountID = venue.SybAccountID
	}
	if accountID == "" && s.accounts != nil {
		if matches, err := s.accounts.Search(ctx, venue.VenueName); err == nil && len(matches) > 0 {
			accountID = matches[0].ID
		}
	}
	if accountID == "" || s.platform == nil {
		return nil
	}
	zones, err := s.platform.Zones(ctx, accountID)
	if err != nil {
		s.log.Warn().Err(err).Str("account", accountID).Msg("approval: zone discovery failed")
		return nil
	}
	return zones
}

// Result reports what approval did.
type Result struct {
	Brief     domain.Brief
	NewStatus string
	Entries   int
}

// Approve redeems the token. A pre-built remote schedule is bound
// first, outside the transaction; otherwise schedule entries are
// materialized. The zone mappings, entries, token consumption and
// status then persist in one transaction. A remote bind failure
// leaves the token redeemable so the operator can retry the link.
func (s *Service) Approve(ctx context.Context, token string, selections map[string]string) (Result, error) {
	t, err := s.validToken(ctx, token)
	if err != nil {
		return Result{}, err
	}
	brief, err := s.store.GetBrief(ctx, t.BriefID)
	if err != nil {
		return Result{}, fmt.Errorf("load brief: %w", err)
	}
	venue, err := s.store.GetVenue(ctx, brief.VenueName)
	if err != nil {
		return Result{}, fmt.Errorf("load venue: %w", err)
	}

	zoneNames := make(map[string]string)
	for _, z := range s.discoverZones(ctx, brief, venue) {
		zoneNames[z.ID] = z.Name
	}

	var (
		mappings []domain.ZoneMapping
		zoneIDs  []string
	)
	for briefZone, zoneID := range selections {
		if zoneID == "" {
			continue
		}
		mappings = append(mappings, domain.ZoneMapping{
			VenueName:     venue.VenueName,
			BriefZoneName: briefZone,
			SybZoneID:     zoneID,
			SybZoneName:   zoneNames[zoneID],
			SybAccountID:  brief.SybAccountID,
		})
		zoneIDs = append(zoneIDs, zoneID)
	}
	if len(mappings) == 0 {
		return Result{}, fmt.Errorf("no zones selected")
	}

	req := domain.ApproveRequest{
		Token:     token,
		BriefID:   brief.ID,
		VenueName: venue.VenueName,
		Mappings:  mappings,
	}
	if brief.SybScheduleID != "" {
		// Bind first: if the platform rejects, the token stays live.
		if err := s.platform.AssignSource(ctx, zoneIDs, brief.SybScheduleID); err != nil {
			return Result{}, fmt.Errorf("bind remote schedule: %w", err)
		}
		req.NewStatus = domain.BriefScheduled
	} else {
		var data domain.ScheduleData
		if err := json.Unmarshal(brief.ScheduleData, &data); err != nil {
			return Result{}, fmt.Errorf("decode schedule data: %w", err)
		}
		byZone := make(map[string]domain.ZoneMapping, len(mappings))
		for _, m := range mappings {
			byZone[m.BriefZoneName] = m
		}
		req.Entries = submission.MaterializeEntries(brief.ID, data, byZone, venue.Timezone)
		req.NewStatus = domain.BriefApproved
	}

	if err := s.store.Approve(ctx, req); err != nil {
		if errors.Is(err, domain.ErrTokenConsumed) {
			return Result{}, ErrTokenUsed
		}
		return Result{}, fmt.Errorf("approve transaction: %w", err)
	}
	return Result{Brief: brief, NewStatus: req.NewStatus, Entries: len(req.Entries)}, nil
}
