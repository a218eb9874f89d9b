package matcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"music-concierge/internal/domain"
	"music-concierge/internal/usecase/catalog"
	"music-concierge/internal/usecase/dayparts"
)

func loadCatalog(t *testing.T) *catalog.Catalog {
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

func TestMatchRooftopBar(t *testing.T) {
	cat := loadCatalog(t)
	m := New(cat)
	input := domain.BriefInput{
		VenueType:  "bar-lounge",
		Vibes:      []string{"sophisticated", "trendy"},
		Energy:     7,
		Hours:      "17:00-02:00",
		Vocals:     "mix",
		GenreHints: []string{"deep house", "nu-disco", "lounge", "cocktail"},
	}
	parts := dayparts.Generate(input.Hours, input.Energy)
	if len(parts) != 3 {
		t.Fatalf("expected 3 dayparts, got %d", len(parts))
	}
	recs, notes := m.Match(input, parts)
	if len(recs) == 0 {
		t.Fatal("expected recommendations")
	}
	if notes == "" {
		t.Error("expected designer notes")
	}

	best := recs[0]
	for _, r := range recs {
		if r.MatchScore > best.MatchScore {
			best = r
		}
	}
	if best.MatchScore < 85 || best.MatchScore > 95 {
		t.Errorf("best score %d outside [85,95]", best.MatchScore)
	}
	p, ok := cat.ByID(best.PlaylistID)
	if !ok {
		t.Fatalf("pick %q not in catalog", best.PlaylistID)
	}
	barOrLounge := false
	for _, c := range p.Categories {
		if c == "bar" || c == "lounge" {
			barOrLounge = true
		}
	}
	if !barOrLounge {
		t.Errorf("best pick %q should intersect bar/lounge, categories %v", p.Name, p.Categories)
	}

	seen := make(map[string]bool)
	for _, r := range recs {
		if seen[r.PlaylistID] {
			t.Errorf("playlist %q picked twice across dayparts", r.PlaylistID)
		}
		seen[r.PlaylistID] = true
		if r.MatchScore < 55 || r.MatchScore > 95 {
			t.Errorf("score %d outside [55,95]", r.MatchScore)
		}
	}
}

func TestMatchQuietCafeAvoidList(t *testing.T) {
	cat := loadCatalog(t)
	m := New(cat)
	input := domain.BriefInput{
		VenueType: "cafe",
		Vibes:     []string{"warm", "relaxed"},
		Energy:    3,
		Hours:     "7am-6pm",
		Vocals:    "instrumental",
		AvoidList: "no edm, no hip hop",
	}
	parts := dayparts.Generate(input.Hours, input.Energy)
	if len(parts) != 3 {
		t.Fatalf("expected 3 dayparts, got %d", len(parts))
	}
	recs, _ := m.Match(input, parts)
	if len(recs) == 0 {
		t.Fatal("expected recommendations")
	}
	for _, r := range recs {
		p, _ := cat.ByID(r.PlaylistID)
		text := strings.ToLower(p.Name + " " + p.Description)
		if strings.Contains(text, "edm") || strings.Contains(text, "hip hop") {
			t.Errorf("pick %q contains an avoided term", p.Name)
		}
	}
}

func TestMatchHyphenNormalization(t *testing.T) {
	cat := loadCatalog(t)
	m := New(cat)
	input := domain.BriefInput{
		VenueType: "bar",
		Vibes:     []string{"energetic"},
		Energy:    8,
		Hours:     "20:00-02:00",
		AvoidList: "no hip-hop or rap",
	}
	recs, _ := m.Match(input, dayparts.Generate(input.Hours, input.Energy))
	for _, r := range recs {
		p, _ := cat.ByID(r.PlaylistID)
		text := strings.ReplaceAll(strings.ToLower(p.Name+" "+p.Description), "-", " ")
		if strings.Contains(text, "hip hop") {
			t.Errorf("hyphenated avoid term should exclude %q", p.Name)
		}
	}
}

func TestNormalizeAvoidList(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"no edm, no hip hop", []string{"edm", "hip hop"}},
		{"no hip-hop or rap", []string{"hip hop", "rap"}},
		{"mainstream hits and country", []string{"country"}},
		{"", nil},
	}
	for _, tc := range cases {
		got := normalizeAvoidList(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("%q: got %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%q: got %v, want %v", tc.in, got, tc.want)
				break
			}
		}
	}
}

func TestMatchInstrumentalBoost(t *testing.T) {
	cat := loadCatalog(t)
	m := New(cat)
	base := domain.BriefInput{VenueType: "spa", Vibes: []string{"zen"}, Energy: 2, Hours: "10:00-20:00"}

	withBoost := base
	withBoost.Vocals = "instrumental"
	recs, _ := m.Match(withBoost, dayparts.Generate(base.Hours, base.Energy))
	if len(recs) == 0 {
		t.Fatal("expected recommendations")
	}
	p, _ := cat.ByID(recs[0].PlaylistID)
	if !instrumentalRe.MatchString(strings.ToLower(p.Name + " " + p.Description)) {
		t.Errorf("top spa pick %q should match the instrumental boost", p.Name)
	}
}
