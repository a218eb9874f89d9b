package submission

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"music-concierge/internal/domain"
	"music-concierge/internal/usecase/catalog"
)

type stubStore struct {
	venue     domain.Venue
	mappings  []domain.ZoneMapping
	brief     domain.Brief
	token     string
	tokenTTL  time.Time
	followUps []domain.FollowUp
	entries   []domain.ScheduleEntry
	statuses  []string
}

func (s *stubStore) CreateBrief(_ context.Context, b domain.Brief) (domain.Brief, error) {
	b.ID = 7
	s.brief = b
	return b, nil
}
func (s *stubStore) GetBrief(context.Context, int64) (domain.Brief, error) { return s.brief, nil }
func (s *stubStore) UpdateBriefStatus(_ context.Context, _ int64, status string) error {
	s.statuses = append(s.statuses, status)
	return nil
}
func (s *stubStore) SetBriefSchedule(_ context.Context, _ int64, id string) error {
	s.brief.SybScheduleID = id
	return nil
}
func (s *stubStore) UpsertVenue(_ context.Context, v domain.Venue) (domain.Venue, error) {
	if s.venue.VenueName == "" {
		s.venue = v
	}
	return s.venue, nil
}
func (s *stubStore) GetVenue(context.Context, string) (domain.Venue, error) { return s.venue, nil }
func (s *stubStore) SetLatestBrief(context.Context, string, int64) error    { return nil }
func (s *stubStore) IncrementApprovedCount(context.Context, string) error {
	s.venue.ApprovedBriefCount++
	return nil
}
func (s *stubStore) UpsertZoneMapping(context.Context, domain.ZoneMapping) error { return nil }
func (s *stubStore) ListZoneMappings(context.Context, string) ([]domain.ZoneMapping, error) {
	return s.mappings, nil
}
func (s *stubStore) CreateScheduleEntries(_ context.Context, entries []domain.ScheduleEntry) error {
	s.entries = append(s.entries, entries...)
	return nil
}
func (s *stubStore) ListActiveEntries(context.Context) ([]domain.ScheduleEntry, error) {
	return s.entries, nil
}
func (s *stubStore) CountActiveEntries(context.Context) (int, error) { return len(s.entries), nil }
func (s *stubStore) MarkAssigned(context.Context, int64, time.Time) error {
	return nil
}
func (s *stubStore) RecordAssignFailure(context.Context, int64, int) error { return nil }
func (s *stubStore) CreateToken(_ context.Context, _ int64, token string, expires time.Time) error {
	s.token = token
	s.tokenTTL = expires
	return nil
}
func (s *stubStore) GetToken(context.Context, string) (domain.ApprovalToken, error) {
	return domain.ApprovalToken{}, nil
}
func (s *stubStore) ConsumeToken(context.Context, string, time.Time) (bool, error) {
	return true, nil
}
func (s *stubStore) CreateFollowUps(_ context.Context, f []domain.FollowUp) error {
	s.followUps = append(s.followUps, f...)
	return nil
}
func (s *stubStore) DueFollowUps(context.Context, time.Time, int) ([]domain.FollowUpJob, error) {
	return nil, nil
}
func (s *stubStore) MarkFollowUpSent(context.Context, int64, time.Time) error    { return nil }
func (s *stubStore) MarkFollowUpOpened(context.Context, string, time.Time) error { return nil }
func (s *stubStore) Approve(context.Context, domain.ApproveRequest) error        { return nil }

type stubMailer struct {
	sent []string
	err  error
}

func (m *stubMailer) Send(_ context.Context, to, subject, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+": "+subject)
	return nil
}

func loadTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "syb_playlists.json"))
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	cat, err := catalog.Parse(raw)
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	return cat
}

func basePayload() Payload {
	return Payload{
		VenueName:    "Blue Orchid",
		VenueType:    "bar-lounge",
		ContactName:  "Nina",
		ContactEmail: "nina@example.com",
		Product:      "syb",
		Vibes:        []string{"sophisticated"},
		Energy:       7,
		Hours:        "17:00-02:00",
		DaypartsMetadata: []domain.Daypart{
			{Key: "opening", TimeRange: "17:00-20:00", Energy: 5},
			{Key: "peak-hours", TimeRange: "20:00-23:00", Energy: 7},
		},
		LikedPlaylists: []string{"Golden Hour Rooftop", "Velvet Lounge"},
		AllRecommendations: []domain.Recommendation{
			{PlaylistID: "golden-hour-rooftop", PlaylistName: "Golden Hour Rooftop", Daypart: "opening"},
			{PlaylistID: "velvet-lounge", PlaylistName: "Velvet Lounge", Daypart: "peak-hours"},
		},
	}
}

func TestSubmitIssuesTokenAndFollowUps(t *testing.T) {
	store := &stubStore{}
	mailer := &stubMailer{}
	svc := NewService(store, nil, mailer, loadTestCatalog(t), "https://music.example.com", "production@example.com", zerolog.Nop())

	result, err := svc.Submit(context.Background(), basePayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BriefID != 7 {
		t.Errorf("brief id %d, want 7", result.BriefID)
	}
	if len(store.token) != 64 {
		t.Errorf("token should be 256-bit hex (64 chars), got %d", len(store.token))
	}
	if result.ApprovalURL != "https://music.example.com/approve/"+store.token {
		t.Errorf("unexpected approval url %q", result.ApprovalURL)
	}
	wantExpiry := time.Now().Add(7 * 24 * time.Hour)
	if store.tokenTTL.Before(wantExpiry.Add(-time.Minute)) || store.tokenTTL.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("token expiry %v not ~7 days out", store.tokenTTL)
	}
	if len(store.followUps) != 2 {
		t.Fatalf("expected 7-day and 30-day follow-ups, got %d", len(store.followUps))
	}
	if store.followUps[0].Type != domain.FollowUp7Day || store.followUps[1].Type != domain.FollowUp30Day {
		t.Errorf("unexpected follow-up types %q %q", store.followUps[0].Type, store.followUps[1].Type)
	}
	if store.followUps[0].TrackingID == "" || store.followUps[0].TrackingID == store.followUps[1].TrackingID {
		t.Error("follow-ups need distinct tracking ids")
	}
	if len(mailer.sent) != 1 {
		t.Errorf("expected one notification email, got %d", len(mailer.sent))
	}

	var data domain.ScheduleData
	if err := json.Unmarshal(store.brief.ScheduleData, &data); err != nil {
		t.Fatalf("decode schedule data: %v", err)
	}
	slots := data.Slots[DefaultZoneName]
	if len(slots) != 2 {
		t.Fatalf("expected 2 planned slots, got %d", len(slots))
	}
	if slots[0].TimeRange != "17:00-20:00" || slots[0].Days != domain.DaysDaily {
		t.Errorf("unexpected first slot %+v", slots[0])
	}
	if slots[0].PlaylistSybID == "" {
		t.Error("slot should resolve the platform playlist id")
	}
}

func TestSubmitScheduleDataRoundTrip(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, nil, &stubMailer{}, loadTestCatalog(t), "https://x", "n@x", zerolog.Nop())
	if _, err := svc.Submit(context.Background(), basePayload()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var first domain.ScheduleData
	if err := json.Unmarshal(store.brief.ScheduleData, &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	again, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	var second domain.ScheduleData
	if err := json.Unmarshal(again, &second); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if len(second.Slots[DefaultZoneName]) != len(first.Slots[DefaultZoneName]) ||
		second.DaypartOrder[0] != first.DaypartOrder[0] {
		t.Error("schedule data does not round-trip")
	}
}

func TestSubmitRequiresVenueName(t *testing.T) {
	svc := NewService(&stubStore{}, nil, &stubMailer{}, loadTestCatalog(t), "https://x", "n@x", zerolog.Nop())
	payload := basePayload()
	payload.VenueName = "  "
	if _, err := svc.Submit(context.Background(), payload); err != ErrMissingVenueName {
		t.Errorf("expected ErrMissingVenueName, got %v", err)
	}
}

func TestSubmitAutoSchedule(t *testing.T) {
	store := &stubStore{
		venue: domain.Venue{
			VenueName:          "Blue Orchid",
			AutoSchedule:       true,
			ApprovedBriefCount: 2,
			Timezone:           "Asia/Bangkok",
		},
		mappings: []domain.ZoneMapping{
			{VenueName: "Blue Orchid", BriefZoneName: DefaultZoneName, SybZoneID: "z1", SybZoneName: "Main Floor"},
		},
	}
	svc := NewService(store, nil, &stubMailer{}, loadTestCatalog(t), "https://x", "n@x", zerolog.Nop())

	result, err := svc.Submit(context.Background(), basePayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.AutoScheduled {
		t.Fatal("eligible venue with mappings should auto-schedule")
	}
	if result.ApprovalURL != "" {
		t.Error("auto-scheduled submissions issue no approval link")
	}
	if len(store.entries) != 2 {
		t.Fatalf("expected 2 schedule entries, got %d", len(store.entries))
	}
	for _, e := range store.entries {
		if e.ZoneID != "z1" || e.Timezone != "Asia/Bangkok" || e.Status != domain.EntryActive {
			t.Errorf("unexpected entry %+v", e)
		}
	}
	if len(store.statuses) != 1 || store.statuses[0] != domain.BriefApproved {
		t.Errorf("brief should be approved, statuses %v", store.statuses)
	}
}

func TestSubmitNotEligibleWithoutHistory(t *testing.T) {
	store := &stubStore{
		venue: domain.Venue{VenueName: "Blue Orchid", AutoSchedule: true, ApprovedBriefCount: 1},
		mappings: []domain.ZoneMapping{
			{BriefZoneName: DefaultZoneName, SybZoneID: "z1"},
		},
	}
	svc := NewService(store, nil, &stubMailer{}, loadTestCatalog(t), "https://x", "n@x", zerolog.Nop())
	result, err := svc.Submit(context.Background(), basePayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AutoScheduled {
		t.Error("one prior approval must not be enough for auto-schedule")
	}
	if result.ApprovalURL == "" {
		t.Error("ineligible venue still needs an approval link")
	}
}

func TestMaterializeEntriesWithWeekend(t *testing.T) {
	data := domain.ScheduleData{
		Slots: map[string][]domain.PlannedSlot{
			DefaultZoneName: {
				{PlaylistName: "A", PlaylistSybID: "syb-a", Daypart: "opening", TimeRange: "17:00-20:00", Days: domain.DaysDaily},
				{PlaylistName: "B", PlaylistSybID: "syb-b", Daypart: "peak-hours", TimeRange: "20:00-23:00", Days: domain.DaysDaily},
			},
		},
		WeekendSlots: map[string][]domain.PlannedSlot{
			DefaultZoneName: {
				{PlaylistName: "C", PlaylistSybID: "syb-c", Daypart: "opening", TimeRange: "17:00-21:00", Days: domain.DaysWeekend},
				{PlaylistName: "D", PlaylistSybID: "syb-d", Daypart: "peak-hours", TimeRange: "21:00-01:00", Days: domain.DaysWeekend},
			},
		},
	}
	mappings := map[string]domain.ZoneMapping{
		DefaultZoneName: {SybZoneID: "z1", SybZoneName: "Main Floor"},
	}
	entries := MaterializeEntries(42, data, mappings, "Asia/Bangkok")
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	daily, weekend := 0, 0
	for _, e := range entries {
		if e.BriefID != 42 || e.Timezone != "Asia/Bangkok" || e.ZoneID != "z1" {
			t.Errorf("unexpected entry %+v", e)
		}
		switch e.Days {
		case domain.DaysDaily:
			daily++
		case domain.DaysWeekend:
			weekend++
		}
	}
	if daily != 2 || weekend != 2 {
		t.Errorf("expected 2 daily + 2 weekend, got %d/%d", daily, weekend)
	}
}

type stubPlatform struct {
	created    []domain.CreateScheduleInput
	scheduleID string
	libraryAdd int
}

func (p *stubPlatform) AccountsPage(context.Context, string) (domain.AccountsPage, error) {
	return domain.AccountsPage{}, nil
}
func (p *stubPlatform) Zones(context.Context, string) ([]domain.Zone, error) { return nil, nil }
func (p *stubPlatform) CreateSchedule(_ context.Context, input domain.CreateScheduleInput) (string, error) {
	p.created = append(p.created, input)
	return p.scheduleID, nil
}
func (p *stubPlatform) AddToMusicLibrary(context.Context, string, string) error {
	p.libraryAdd++
	return nil
}
func (p *stubPlatform) AssignSource(context.Context, []string, string) error { return nil }

func TestSubmitPrebuildsMultiZoneSchedule(t *testing.T) {
	store := &stubStore{}
	platform := &stubPlatform{scheduleID: "sched-9"}
	svc := NewService(store, platform, &stubMailer{}, loadTestCatalog(t), "https://x", "n@x", zerolog.Nop())

	payload := basePayload()
	payload.SybAccountID = "acc-1"
	payload.MultiZone = true
	payload.ZoneNames = []string{"Lobby", "Pool"}
	payload.LikedPlaylists = []string{"Lobby Elegance", "Island Pool Club"}
	payload.AllRecommendations = []domain.Recommendation{
		{PlaylistID: "lobby-elegance", PlaylistName: "Lobby Elegance", Daypart: "opening", ZoneName: "Lobby"},
		{PlaylistID: "island-pool-club", PlaylistName: "Island Pool Club", Daypart: "peak-hours", ZoneName: "Pool"},
	}

	result, err := svc.Submit(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RemoteScheduleID != "sched-9" {
		t.Fatalf("remote schedule id %q", result.RemoteScheduleID)
	}
	if len(platform.created) != 1 {
		t.Fatalf("expected one remote schedule, got %d", len(platform.created))
	}
	input := platform.created[0]
	// Every zone's liked playlists land in the single schedule.
	found := make(map[string]bool)
	for _, slot := range input.Slots {
		for _, id := range slot.PlaylistIDs {
			found[id] = true
		}
	}
	if len(found) != 2 {
		t.Errorf("schedule must merge both zones' playlists, got %v", found)
	}
	if input.OwnerID != "acc-1" || input.PresentAs != "daily" {
		t.Errorf("unexpected schedule input %+v", input)
	}
	if platform.libraryAdd != 1 {
		t.Errorf("expected one library add, got %d", platform.libraryAdd)
	}
}

func TestSlotTimingWrap(t *testing.T) {
	start, duration, ok := slotTiming("23:00-02:00")
	if !ok {
		t.Fatal("expected parse")
	}
	if start != "230000" {
		t.Errorf("start %q, want 230000", start)
	}
	if duration != 3*60*60*1000 {
		t.Errorf("duration %d, want 3h in ms", duration)
	}
}

func TestBuildSlotsRRule(t *testing.T) {
	data := domain.ScheduleData{
		Slots: map[string][]domain.PlannedSlot{
			DefaultZoneName: {{PlaylistSybID: "syb-a", TimeRange: "09:00-12:00", Days: domain.DaysWeekday}},
		},
		WeekendSlots: map[string][]domain.PlannedSlot{
			DefaultZoneName: {{PlaylistSybID: "syb-b", TimeRange: "10:00-14:00", Days: domain.DaysWeekend}},
		},
	}
	slots := buildSlots(data, nil)
	if len(slots) != 7 {
		t.Fatalf("expected 5 weekday + 2 weekend slots, got %d", len(slots))
	}
	if slots[0].RRule != "FREQ=WEEKLY;BYDAY=MO" {
		t.Errorf("unexpected first rrule %q", slots[0].RRule)
	}
	if slots[5].RRule != "FREQ=WEEKLY;BYDAY=SA" {
		t.Errorf("unexpected weekend rrule %q", slots[5].RRule)
	}
	if slots[0].Start != "090000" || slots[0].Duration != 3*60*60*1000 {
		t.Errorf("unexpected timing %+v", slots[0])
	}
}

func TestBuildSlotsMergesAllZones(t *testing.T) {
	data := domain.ScheduleData{
		Slots: map[string][]domain.PlannedSlot{
			"Lobby": {{PlaylistSybID: "syb-lobby", TimeRange: "06:00-12:00", Days: domain.DaysDaily}},
			"Pool":  {{PlaylistSybID: "syb-pool", TimeRange: "09:00-19:00", Days: domain.DaysDaily}},
		},
	}
	slots := buildSlots(data, []string{"Lobby", "Pool"})
	if len(slots) != 14 {
		t.Fatalf("expected 7 slots per zone playlist, got %d", len(slots))
	}
	// Zone order from the submission is preserved: lobby's week first.
	if slots[0].PlaylistIDs[0] != "syb-lobby" || slots[7].PlaylistIDs[0] != "syb-pool" {
		t.Errorf("slots not merged in zone order: %q then %q",
			slots[0].PlaylistIDs[0], slots[7].PlaylistIDs[0])
	}
}
