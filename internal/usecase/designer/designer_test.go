package designer

import (
	"testing"

	"music-concierge/internal/domain"
)

func TestBuildRanksGenres(t *testing.T) {
	parts := []domain.Daypart{
		{Key: "opening", Energy: 5},
		{Key: "peak-hours", Energy: 7},
		{Key: "wind-down", Energy: 8},
	}
	brief := Build(domain.BriefInput{
		VenueType: "bar-lounge",
		Vibes:     []string{"sophisticated", "trendy"},
		Energy:    7,
	}, parts)

	if len(brief.TopGenres) == 0 || len(brief.TopGenres) > 8 {
		t.Fatalf("top genres length %d out of range", len(brief.TopGenres))
	}
	// deep house scores 2.5: both vibes carry it plus the venue boost.
	if brief.TopGenres[0] != "deep house" {
		t.Errorf("expected deep house first, got %q", brief.TopGenres[0])
	}
	if len(brief.BPMRanges) != 2 {
		t.Errorf("expected one BPM range per vibe, got %v", brief.BPMRanges)
	}
}

func TestBuildDaypartGenreCounts(t *testing.T) {
	parts := []domain.Daypart{
		{Key: "opening", Energy: 5},
		{Key: "peak-hours", Energy: 7},
		{Key: "wind-down", Energy: 8},
	}
	brief := Build(domain.BriefInput{
		VenueType: "bar-lounge",
		Vibes:     []string{"sophisticated", "trendy", "energetic"},
		Energy:    7,
	}, parts)

	if got := len(brief.DaypartGenres["opening"]); got != 5 {
		t.Errorf("opening below base energy should carry 5 genres, got %d", got)
	}
	if got := len(brief.DaypartGenres["peak-hours"]); got != 6 {
		t.Errorf("peak at base energy should carry 6 genres, got %d", got)
	}
	if got := len(brief.DaypartGenres["wind-down"]); got != 6 {
		t.Errorf("wind-down above base energy should carry 6 genres, got %d", got)
	}
	want := []string{"opening", "peak-hours", "wind-down"}
	for i, key := range brief.DaypartOrder {
		if key != want[i] {
			t.Errorf("daypart order %v, want %v", brief.DaypartOrder, want)
			break
		}
	}
}

func TestBuildUnknownVibes(t *testing.T) {
	brief := Build(domain.BriefInput{Vibes: []string{"unheard-of"}}, nil)
	if len(brief.TopGenres) != 0 {
		t.Errorf("unknown vibe should produce no genres, got %v", brief.TopGenres)
	}
	if len(brief.BPMRanges) != 0 {
		t.Errorf("unknown vibe should produce no BPM ranges, got %v", brief.BPMRanges)
	}
}
