package accounts

import (
	"context"
	"testing"
	"time"

	"music-concierge/internal/domain"
)

type fakePlatform struct {
	pages []domain.AccountsPage
	calls int
}

func (f *fakePlatform) AccountsPage(_ context.Context, cursor string) (domain.AccountsPage, error) {
	idx := 0
	if cursor != "" {
		for i, p := range f.pages {
			if p.EndCursor == cursor {
				idx = i + 1
				break
			}
		}
	}
	f.calls++
	return f.pages[idx], nil
}

func (f *fakePlatform) Zones(context.Context, string) ([]domain.Zone, error) { return nil, nil }
func (f *fakePlatform) CreateSchedule(context.Context, domain.CreateScheduleInput) (string, error) {
	return "", nil
}
func (f *fakePlatform) AddToMusicLibrary(context.Context, string, string) error { return nil }
func (f *fakePlatform) AssignSource(context.Context, []string, string) error    { return nil }

func newFake() *fakePlatform {
	return &fakePlatform{pages: []domain.AccountsPage{
		{
			Accounts: []domain.Account{
				{ID: "a1", BusinessName: "The Grand Hotel"},
				{ID: "a2", BusinessName: "Grand Cafe Bangkok"},
			},
			HasNext:   true,
			EndCursor: "p1",
		},
		{
			Accounts: []domain.Account{
				{ID: "a3", BusinessName: "Grand"},
				{ID: "a4", BusinessName: "Riverside Grand Lounge"},
			},
		},
	}}
}

func TestSearchRanking(t *testing.T) {
	fake := newFake()
	cache := NewCache(fake)
	got, err := cache.Search(context.Background(), "grand")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 matches, got %d", len(got))
	}
	// Exact first, then prefixes in platform order, then substrings.
	wantIDs := []string{"a3", "a2", "a1", "a4"}
	for i, a := range got {
		if a.ID != wantIDs[i] {
			t.Errorf("position %d: got %s, want %s", i, a.ID, wantIDs[i])
		}
	}
	if fake.calls != 2 {
		t.Errorf("expected a full pagination walk of 2 pages, got %d calls", fake.calls)
	}
}

func TestSearchUsesCacheWithinTTL(t *testing.T) {
	fake := newFake()
	cache := NewCache(fake)
	now := time.Now()
	cache.now = func() time.Time { return now }

	if _, err := cache.Search(context.Background(), "hotel"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.Search(context.Background(), "cafe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("second search should hit the cache, got %d page calls", fake.calls)
	}

	now = now.Add(31 * time.Minute)
	if _, err := cache.Search(context.Background(), "cafe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 4 {
		t.Errorf("stale cache should refresh, got %d page calls", fake.calls)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	cache := NewCache(newFake())
	got, err := cache.Search(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("blank query should match nothing, got %v", got)
	}
}
