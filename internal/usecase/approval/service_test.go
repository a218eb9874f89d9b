package approval

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"music-concierge/internal/domain"
)

type stubStore struct {
	brief    domain.Brief
	venue    domain.Venue
	token    domain.ApprovalToken
	tokenErr error

	approved *domain.ApproveRequest
}

func (s *stubStore) CreateBrief(context.Context, domain.Brief) (domain.Brief, error) {
	return domain.Brief{}, nil
}
func (s *stubStore) GetBrief(context.Context, int64) (domain.Brief, error) { return s.brief, nil }
func (s *stubStore) UpdateBriefStatus(context.Context, int64, string) error {
	return nil
}
func (s *stubStore) SetBriefSchedule(context.Context, int64, string) error { return nil }
func (s *stubStore) UpsertVenue(context.Context, domain.Venue) (domain.Venue, error) {
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
	return nil, nil
}
func (s *stubStore) CreateScheduleEntries(context.Context, []domain.ScheduleEntry) error {
	return nil
}
func (s *stubStore) ListActiveEntries(context.Context) ([]domain.ScheduleEntry, error) {
	return nil, nil
}
func (s *stubStore) CountActiveEntries(context.Context) (int, error)      { return 0, nil }
func (s *stubStore) MarkAssigned(context.Context, int64, time.Time) error { return nil }
func (s *stubStore) RecordAssignFailure(context.Context, int64, int) error {
	return nil
}
func (s *stubStore) CreateToken(context.Context, int64, string, time.Time) error { return nil }
func (s *stubStore) GetToken(context.Context, string) (domain.ApprovalToken, error) {
	return s.token, s.tokenErr
}
func (s *stubStore) ConsumeToken(context.Context, string, time.Time) (bool, error) {
	return true, nil
}
func (s *stubStore) CreateFollowUps(context.Context, []domain.FollowUp) error { return nil }
func (s *stubStore) DueFollowUps(context.Context, time.Time, int) ([]domain.FollowUpJob, error) {
	return nil, nil
}
func (s *stubStore) MarkFollowUpSent(context.Context, int64, time.Time) error    { return nil }
func (s *stubStore) MarkFollowUpOpened(context.Context, string, time.Time) error { return nil }

// Approve emulates the transactional token consume: first call wins.
func (s *stubStore) Approve(_ context.Context, req domain.ApproveRequest) error {
	if s.token.UsedAt != nil {
		return domain.ErrTokenConsumed
	}
	now := time.Now()
	s.token.UsedAt = &now
	s.approved = &req
	return nil
}

type stubPlatform struct {
	zones      []domain.Zone
	assigned   [][]string
	assignedTo string
	assignErr  error
}

func (p *stubPlatform) AccountsPage(context.Context, string) (domain.AccountsPage, error) {
	return domain.AccountsPage{}, nil
}
func (p *stubPlatform) Zones(context.Context, string) ([]domain.Zone, error) {
	return p.zones, nil
}
func (p *stubPlatform) CreateSchedule(context.Context, domain.CreateScheduleInput) (string, error) {
	return "", nil
}
func (p *stubPlatform) AddToMusicLibrary(context.Context, string, string) error { return nil }
func (p *stubPlatform) AssignSource(_ context.Context, zones []string, source string) error {
	if p.assignErr != nil {
		return p.assignErr
	}
	p.assigned = append(p.assigned, zones)
	p.assignedTo = source
	return nil
}

func scheduleJSON(t *testing.T) []byte {
	t.Helper()
	data := domain.ScheduleData{
		Dayparts:     map[string][]domain.Daypart{"": {{Key: "opening", TimeRange: "17:00-20:00"}}},
		DaypartOrder: []string{"opening"},
		Slots: map[string][]domain.PlannedSlot{
			"Main": {
				{PlaylistName: "A", PlaylistSybID: "syb-a", Daypart: "opening", TimeRange: "17:00-20:00", Days: domain.DaysDaily},
			},
		},
	}
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal schedule data: %v", err)
	}
	return raw
}

func validStore(t *testing.T) *stubStore {
	t.Helper()
	return &stubStore{
		brief: domain.Brief{
			ID:           9,
			VenueName:    "Blue Orchid",
			SybAccountID: "acc-1",
			ScheduleData: scheduleJSON(t),
			Status:       domain.BriefSubmitted,
		},
		venue: domain.Venue{VenueName: "Blue Orchid", Timezone: "Asia/Bangkok"},
		token: domain.ApprovalToken{BriefID: 9, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
	}
}

func TestApproveMaterializesEntries(t *testing.T) {
	store := validStore(t)
	platform := &stubPlatform{zones: []domain.Zone{{ID: "z1", Name: "Main Floor"}}}
	svc := NewService(store, platform, nil, zerolog.Nop())

	result, err := svc.Approve(context.Background(), "tok", map[string]string{"Main": "z1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NewStatus != domain.BriefApproved {
		t.Errorf("status %q, want approved", result.NewStatus)
	}
	if store.approved == nil {
		t.Fatal("approve transaction never ran")
	}
	if len(store.approved.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.approved.Entries))
	}
	e := store.approved.Entries[0]
	if e.ZoneID != "z1" || e.StartTime != "17:00" || e.Timezone != "Asia/Bangkok" {
		t.Errorf("unexpected entry %+v", e)
	}
	if len(store.approved.Mappings) != 1 || store.approved.Mappings[0].SybZoneName != "Main Floor" {
		t.Errorf("unexpected mappings %+v", store.approved.Mappings)
	}
	if len(platform.assigned) != 0 {
		t.Error("no remote schedule means no direct bind at approval")
	}
}

func TestApproveBindsPrebuiltSchedule(t *testing.T) {
	store := validStore(t)
	store.brief.SybScheduleID = "sched-1"
	platform := &stubPlatform{zones: []domain.Zone{{ID: "z1", Name: "Main Floor"}}}
	svc := NewService(store, platform, nil, zerolog.Nop())

	result, err := svc.Approve(context.Background(), "tok", map[string]string{"Main": "z1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NewStatus != domain.BriefScheduled {
		t.Errorf("status %q, want scheduled", result.NewStatus)
	}
	if platform.assignedTo != "sched-1" {
		t.Errorf("bind source %q, want sched-1", platform.assignedTo)
	}
	if len(store.approved.Entries) != 0 {
		t.Error("remote bind must not materialize local entries")
	}
}

func TestApproveSecondSubmitRejected(t *testing.T) {
	store := validStore(t)
	platform := &stubPlatform{zones: []domain.Zone{{ID: "z1"}}}
	svc := NewService(store, platform, nil, zerolog.Nop())

	if _, err := svc.Approve(context.Background(), "tok", map[string]string{"Main": "z1"}); err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
	first := *store.approved
	_, err := svc.Approve(context.Background(), "tok", map[string]string{"Main": "z1"})
	if err != ErrTokenUsed {
		t.Fatalf("second approve should report a used token, got %v", err)
	}
	if store.approved.BriefID != first.BriefID || len(store.approved.Entries) != len(first.Entries) {
		t.Error("second submit must not change the approved state")
	}
}

func TestApproveExpiredToken(t *testing.T) {
	store := validStore(t)
	store.token.ExpiresAt = time.Now().Add(-time.Minute)
	svc := NewService(store, &stubPlatform{}, nil, zerolog.Nop())
	if _, err := svc.Approve(context.Background(), "tok", map[string]string{"Main": "z1"}); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestApproveBindFailureKeepsToken(t *testing.T) {
	store := validStore(t)
	store.brief.SybScheduleID = "sched-1"
	platform := &stubPlatform{assignErr: context.DeadlineExceeded}
	svc := NewService(store, platform, nil, zerolog.Nop())

	if _, err := svc.Approve(context.Background(), "tok", map[string]string{"Main": "z1"}); err == nil {
		t.Fatal("bind failure must surface")
	}
	if store.token.UsedAt != nil {
		t.Error("token must stay redeemable after a bind failure")
	}
}

func TestPrepareJoinsMappings(t *testing.T) {
	store := validStore(t)
	platform := &stubPlatform{zones: []domain.Zone{{ID: "z1", Name: "Main Floor"}}}
	svc := NewService(store, platform, nil, zerolog.Nop())

	page, err := svc.Prepare(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.ZoneNames) != 1 || page.ZoneNames[0] != "Main" {
		t.Errorf("unexpected zone names %v", page.ZoneNames)
	}
	if len(page.PlatformZones) != 1 {
		t.Errorf("expected discovered platform zones, got %v", page.PlatformZones)
	}
}
