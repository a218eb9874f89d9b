package submission

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"music-concierge/internal/domain"
	"music-concierge/internal/usecase/catalog"
	"music-concierge/internal/usecase/dayparts"
	"music-concierge/internal/usecase/designer"
)

// ErrMissingVenueName rejects a submission without a venue.
var ErrMissingVenueName = errors.New("venueName is required")

const (
	tokenBytes     = 32
	tokenTTL       = 7 * 24 * time.Hour
	autoMinApprove = 2

	// DefaultZoneName stands in for the zone of a single-zone brief.
	DefaultZoneName = "Main"
)

// Payload is the submit request body.
type Payload struct {
	VenueName    string `json:"venueName"`
	VenueType    string `json:"venueType"`
	Location     string `json:"location"`
	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
	ContactPhone string `json:"contactPhone"`
	Product      string `json:"product"`

	Vibes      []string `json:"vibes"`
	Energy     int      `json:"energy"`
	Hours      string   `json:"hours"`
	Vocals     string   `json:"vocals"`
	AvoidList  string   `json:"avoidList"`
	GenreHints []string `json:"genreHints"`

	GuestProfile string `json:"guestProfile"`
	AgeRange     string `json:"ageRange"`
	Nationality  string `json:"nationality"`
	MoodChanges  string `json:"moodChanges"`

	LikedPlaylists     []string                `json:"likedPlaylists"`
	AllRecommendations []domain.Recommendation `json:"allRecommendations"`
	DaypartsMetadata   []domain.Daypart        `json:"daypartsMetadata"`
	ExtractedBrief     map[string]any          `json:"extractedBrief"`

	ConversationSummary string   `json:"conversationSummary"`
	MultiZone           bool     `json:"multiZone"`
	ZoneNames           []string `json:"zoneNames"`

	WeekendDayparts        []domain.Daypart        `json:"weekendDayparts"`
	WeekendRecommendations []domain.Recommendation `json:"weekendRecommendations"`
	WeekendLikedPlaylists  []string                `json:"weekendLikedPlaylists"`

	SybAccountID string `json:"sybAccountId"`
	Website      string `json:"website"`
}

// Result reports what the submit flow did.
type Result struct {
	BriefID          int64
	ApprovalURL      string
	AutoScheduled    bool
	RemoteScheduleID string
}

// Service owns the submit side of the approval flow.
type Service struct {
	store    domain.Store
	platform domain.MusicPlatform
	mailer   domain.Mailer
	catalog  *catalog.Catalog
	baseURL  string
	notify   string
	log      zerolog.Logger
}

// NewService wires the submission service. store may be nil, which
// degrades the flow to email-only.
func NewService(store domain.Store, platform domain.MusicPlatform, mailer domain.Mailer,
	cat *catalog.Catalog, baseURL, notifyEmail string, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		platform: platform,
		mailer:   mailer,
		catalog:  cat,
		baseURL:  strings.TrimRight(baseURL, "/"),
		notify:   notifyEmail,
		log:      logger,
	}
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := crand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Submit persists the brief, issues the approval capability (or
// auto-schedules an eligible venue), pre-builds the remote schedule
// when an account is confirmed, and sends the notification email.
func (s *Service) Submit(ctx context.Context, payload Payload) (Result, error) {
	if strings.TrimSpace(payload.VenueName) == "" {
		return Result{}, ErrMissingVenueName
	}

	parts := payload.DaypartsMetadata
	if len(parts) == 0 {
		parts = dayparts.Generate(payload.Hours, payload.Energy)
	}
	designerBrief := designer.Build(domain.BriefInput{
		VenueType:  payload.VenueType,
		Vibes:      payload.Vibes,
		Energy:     payload.Energy,
		Hours:      payload.Hours,
		Vocals:     payload.Vocals,
		AvoidList:  payload.AvoidList,
		GenreHints: payload.GenreHints,
	}, parts)
	scheduleData := s.buildScheduleData(payload, parts)

	var result Result
	if s.store == nil {
		// Degraded mode: no persistence, notification only.
		if err := s.sendSubmitEmail(ctx, payload, designerBrief, 0, "", ""); err != nil {
			return Result{}, err
		}
		return result, nil
	}

	rawData, err := json.Marshal(map[string]any{
		"payload":        payload,
		"designerBrief":  designerBrief,
		"extractedBrief": payload.ExtractedBrief,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal raw data: %w", err)
	}
	scheduleJSON, err := json.Marshal(scheduleData)
	if err != nil {
		return Result{}, fmt.Errorf("marshal schedule data: %w", err)
	}

	brief, err := s.store.CreateBrief(ctx, domain.Brief{
		VenueName:           payload.VenueName,
		VenueType:           payload.VenueType,
		Location:            payload.Location,
		ContactName:         payload.ContactName,
		ContactEmail:        payload.ContactEmail,
		ContactPhone:        payload.ContactPhone,
		Product:             payload.Product,
		LikedPlaylists:      payload.LikedPlaylists,
		ConversationSummary: payload.ConversationSummary,
		RawData:             rawData,
		ScheduleData:        scheduleJSON,
		SybAccountID:        payload.SybAccountID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create brief: %w", err)
	}
	result.BriefID = brief.ID

	venue, err := s.store.UpsertVenue(ctx, domain.Venue{
		VenueName:    payload.VenueName,
		Location:     payload.Location,
		VenueType:    payload.VenueType,
		SybAccountID: payload.SybAccountID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("upsert venue: %w", err)
	}
	if err := s.store.SetLatestBrief(ctx, venue.VenueName, brief.ID); err != nil {
		s.log.Warn().Err(err).Msg("submit: set latest brief")
	}

	// Pre-build the remote schedule when the account is confirmed.
	remoteScheduleID := s.prebuildRemoteSchedule(ctx, payload, brief.ID, scheduleData)
	if remoteScheduleID != "" {
		if err := s.store.SetBriefSchedule(ctx, brief.ID, remoteScheduleID); err != nil {
			s.log.Warn().Err(err).Msg("submit: record remote schedule")
		}
		result.RemoteScheduleID = remoteScheduleID
	}

	// The approval leg only exists for Soundtrack Your Brand venues.
	isSyb := payload.Product == "" || payload.Product == "syb"
	if isSyb && s.tryAutoSchedule(ctx, brief, venue, scheduleData) {
		result.AutoScheduled = true
	} else {
		if isSyb {
			token, err := generateToken()
			if err != nil {
				return Result{}, fmt.Errorf("generate token: %w", err)
			}
			if err := s.store.CreateToken(ctx, brief.ID, token, time.Now().Add(tokenTTL)); err != nil {
				return Result{}, fmt.Errorf("create token: %w", err)
			}
			result.ApprovalURL = s.baseURL + "/approve/" + token
		}

		now := time.Now()
		followUps := []domain.FollowUp{
			{BriefID: brief.ID, Type: domain.FollowUp7Day, ScheduledFor: now.AddDate(0, 0, 7), TrackingID: uuid.NewString()},
			{BriefID: brief.ID, Type: domain.FollowUp30Day, ScheduledFor: now.AddDate(0, 0, 30), TrackingID: uuid.NewString()},
		}
		if err := s.store.CreateFollowUps(ctx, followUps); err != nil {
			s.log.Warn().Err(err).Msg("submit: schedule follow-ups")
		}
	}

	if err := s.sendSubmitEmail(ctx, payload, designerBrief, brief.ID, result.ApprovalURL, remoteScheduleID); err != nil {
		return result, err
	}
	return result, nil
}

// tryAutoSchedule materializes entries without human approval for
// venues that earned it: the flag is set, at least two briefs were
// approved before, and zone mappings are known.
func (s *Service) tryAutoSchedule(ctx context.Context, brief domain.Brief, venue domain.Venue, data domain.ScheduleData) bool {
	if !venue.AutoSchedule || venue.ApprovedBriefCount < autoMinApprove {
		return false
	}
	mappings, err := s.store.ListZoneMappings(ctx, venue.VenueName)
	if err != nil || len(mappings) == 0 {
		return false
	}
	byZone := make(map[string]domain.ZoneMapping, len(mappings))
	for _, m := range mappings {
		byZone[m.BriefZoneName] = m
	}
	entries := MaterializeEntries(brief.ID, data, byZone, venue.Timezone)
	if len(entries) == 0 {
		return false
	}
	if err := s.store.CreateScheduleEntries(ctx, entries); err != nil {
		s.log.Error().Err(err).Msg("submit: auto-schedule entries")
		return false
	}
	if err := s.store.UpdateBriefStatus(ctx, brief.ID, domain.BriefApproved); err != nil {
		s.log.Error().Err(err).Msg("submit: auto-schedule status")
	}
	if err := s.store.IncrementApprovedCount(ctx, venue.VenueName); err != nil {
		s.log.Warn().Err(err).Msg("submit: auto-schedule counter")
	}
	return true
}

// buildScheduleData resolves liked playlists against the
// recommendations and daypart metadata into materializable slots.
func (s *Service) buildScheduleData(payload Payload, parts []domain.Daypart) domain.ScheduleData {
	ranges := make(map[string]string, len(parts))
	order := make([]string, 0, len(parts))
	for _, dp := range parts {
		ranges[dp.Key] = dp.TimeRange
		order = append(order, dp.Key)
	}

	data := domain.ScheduleData{
		MultiZone:    payload.MultiZone,
		ZoneNames:    payload.ZoneNames,
		Dayparts:     map[string][]domain.Daypart{"": parts},
		DaypartOrder: order,
		Slots:        s.resolveSlots(payload.LikedPlaylists, payload.AllRecommendations, ranges, domain.DaysDaily),
	}
	if len(payload.WeekendLikedPlaylists) > 0 {
		weekendRanges := ranges
		if len(payload.WeekendDayparts) > 0 {
			weekendRanges = make(map[string]string, len(payload.WeekendDayparts))
			for _, dp := range payload.WeekendDayparts {
				weekendRanges[dp.Key] = dp.TimeRange
			}
			data.WeekendDayparts = map[string][]domain.Daypart{"": payload.WeekendDayparts}
		}
		data.WeekendSlots = s.resolveSlots(payload.WeekendLikedPlaylists, payload.WeekendRecommendations, weekendRanges, domain.DaysWeekend)
	}
	return data
}

// resolveSlots maps liked playlist names through the recommendations
// they came from, keyed by the zone each pick belongs to.
func (s *Service) resolveSlots(liked []string, recs []domain.Recommendation, ranges map[string]string, days string) map[string][]domain.PlannedSlot {
	out := make(map[string][]domain.PlannedSlot)
	for _, name := range liked {
		rec, ok := findRecommendation(recs, name)
		if !ok {
			continue
		}
		zone := rec.ZoneName
		if zone == "" {
			zone = DefaultZoneName
		}
		sybID := ""
		if p, found := s.catalog.Resolve(rec.PlaylistID); found {
			sybID = p.SybID
		} else if p, found := s.catalog.Resolve(name); found {
			sybID = p.SybID
		}
		out[zone] = append(out[zone], domain.PlannedSlot{
			PlaylistName:  rec.PlaylistName,
			PlaylistSybID: sybID,
			Daypart:       rec.Daypart,
			TimeRange:     ranges[rec.Daypart],
			Days:          days,
		})
	}
	return out
}

func findRecommendation(recs []domain.Recommendation, ref string) (domain.Recommendation, bool) {
	for _, rec := range recs {
		if strings.EqualFold(rec.PlaylistName, ref) || rec.PlaylistID == ref {
			return rec, true
		}
	}
	return domain.Recommendation{}, false
}

// MaterializeEntries turns planned slots into executor entries using
// the venue's learned zone mappings.
func MaterializeEntries(briefID int64, data domain.ScheduleData, mappings map[string]domain.ZoneMapping, timezone string) []domain.ScheduleEntry {
	if timezone == "" {
		timezone = "Asia/Bangkok"
	}
	var entries []domain.ScheduleEntry
	appendSlots := func(slots map[string][]domain.PlannedSlot) {
		for zone, zoneSlots := range slots {
			mapping, ok := mappings[zone]
			if !ok {
				continue
			}
			for _, slot := range zoneSlots {
				startTime, endTime, ok := splitTimeRange(slot.TimeRange)
				if !ok || slot.PlaylistSybID == "" {
					continue
				}
				entries = append(entries, domain.ScheduleEntry{
					BriefID:       briefID,
					ZoneID:        mapping.SybZoneID,
					ZoneName:      mapping.SybZoneName,
					PlaylistSybID: slot.PlaylistSybID,
					PlaylistName:  slot.PlaylistName,
					StartTime:     startTime,
					EndTime:       endTime,
					Days:          slot.Days,
					Timezone:      timezone,
					Status:        domain.EntryActive,
				})
			}
		}
	}
	appendSlots(data.Slots)
	appendSlots(data.WeekendSlots)
	return entries
}

func splitTimeRange(timeRange string) (string, string, bool) {
	parts := strings.SplitN(timeRange, "-", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}
