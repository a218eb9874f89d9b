package matcher

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"music-concierge/internal/domain"
	"music-concierge/internal/usecase/catalog"
	"music-concierge/internal/usecase/dayparts"
)

const maxPicks = 12

// Matcher scores the catalog against a brief deterministically.
type Matcher struct {
	catalog *catalog.Catalog
}

// New builds a matcher over the loaded catalog.
func New(c *catalog.Catalog) *Matcher {
	return &Matcher{catalog: c}
}

// Catalog exposes the catalog the matcher scores against.
func (m *Matcher) Catalog() *catalog.Catalog {
	return m.catalog
}

var (
	instrumentalRe = regexp.MustCompile(`instrumental|piano|ambient|nature`)
	mostlyInstRe   = regexp.MustCompile(`instrumental|piano|acoustic`)
)

type scored struct {
	index   int
	base    float64
	matched bool
	vibes   []string
}

// scoreCatalog computes the daypart-independent base score per playlist.
func (m *Matcher) scoreCatalog(input domain.BriefInput) []scored {
	targetCats := catalog.VenueCategories(input.VenueType)
	avoidTerms := normalizeAvoidList(input.AvoidList)

	out := make([]scored, 0, len(m.catalog.Playlists))
	for i, p := range m.catalog.Playlists {
		text := strings.ToLower(p.Name + " " + p.Description)
		s := scored{index: i}

		if n := intersection(p.Categories, targetCats); n > 0 {
			s.base += float64(2 + n)
			s.matched = true
		}
		for _, vibe := range input.Vibes {
			hit := false
			for _, kw := range catalog.VibeKeywords(vibe) {
				if strings.Contains(text, kw) {
					s.base += 0.5
					hit = true
				}
			}
			if hit {
				s.vibes = append(s.vibes, vibe)
			}
		}
		// Genre hints are the strongest positive signal.
		for _, hint := range input.GenreHints {
			if hint = strings.ToLower(strings.TrimSpace(hint)); hint != "" && strings.Contains(text, hint) {
				s.base += 2.0
			}
		}
		normText := normalizeHyphens(text)
		for _, term := range avoidTerms {
			if strings.Contains(normText, term) {
				s.base -= 10.0
			}
		}
		switch input.Vocals {
		case "instrumental":
			if instrumentalRe.MatchString(text) {
				s.base += 1.5
			}
		case "mostly-instrumental":
			if mostlyInstRe.MatchString(text) {
				s.base += 0.8
			}
		}
		out = append(out, s)
	}
	return out
}

// energyCategories maps a daypart energy to the categories it favors.
func energyCategories(energy int) []string {
	switch {
	case energy <= 3:
		return []string{"spa", "lounge"}
	case energy <= 6:
		return []string{"cafe", "restaurant", "hotel", "lounge"}
	default:
		return []string{"bar", "store", "lounge"}
	}
}

// Match returns per-daypart picks with normalized scores and the
// accompanying designer notes.
func (m *Matcher) Match(input domain.BriefInput, parts []domain.Daypart) ([]domain.Recommendation, string) {
	base := m.scoreCatalog(input)
	if len(parts) == 0 {
		parts = dayparts.Generate(input.Hours, input.Energy)
	}
	perDaypart := int(math.Ceil(float64(maxPicks) / float64(len(parts))))

	type pick struct {
		rec     domain.Recommendation
		dpScore float64
	}
	var picks []pick
	taken := make(map[int]bool)

	for _, dp := range parts {
		dpCats := energyCategories(dp.Energy)

		candidates := make([]struct {
			scored
			dpScore float64
		}, 0, len(base))
		for _, s := range base {
			dpScore := s.base
			if intersection(m.catalog.Playlists[s.index].Categories, dpCats) > 0 {
				dpScore++
			}
			candidates = append(candidates, struct {
				scored
				dpScore float64
			}{s, dpScore})
		}
		// Ties keep catalog order.
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].dpScore > candidates[j].dpScore
		})

		added := 0
		for _, c := range candidates {
			if added == perDaypart {
				break
			}
			if c.dpScore <= 0 || taken[c.index] {
				continue
			}
			taken[c.index] = true
			p := m.catalog.Playlists[c.index]
			picks = append(picks, pick{
				rec: domain.Recommendation{
					PlaylistID:   p.ID,
					PlaylistName: p.Name,
					Daypart:      dp.Key,
					DaypartLabel: dp.Label,
					Reason:       reasonFor(p, input, c.matched, c.vibes),
				},
				dpScore: c.dpScore,
			})
			added++
		}
	}

	var maxScore float64
	for _, p := range picks {
		if p.dpScore > maxScore {
			maxScore = p.dpScore
		}
	}
	recs := make([]domain.Recommendation, 0, len(picks))
	for _, p := range picks {
		rec := p.rec
		rec.MatchScore = normalizeScore(p.dpScore, maxScore)
		recs = append(recs, rec)
	}
	return recs, designerNotes(input, parts)
}

func normalizeScore(score, max float64) int {
	if max <= 0 {
		return 55
	}
	n := int(math.Round(55 + score/max*40))
	if n < 55 {
		n = 55
	}
	if n > 95 {
		n = 95
	}
	return n
}

func reasonFor(p domain.Playlist, input domain.BriefInput, matched bool, matchedVibes []string) string {
	vibeText := strings.Join(matchedVibes, ", ")
	if vibeText == "" && len(input.Vibes) > 0 {
		vibeText = input.Vibes[0]
	}
	if matched {
		return fmt.Sprintf("%s — fits your %s %s", p.Description, vibeText, catalog.HumanizeVenueType(input.VenueType))
	}
	return fmt.Sprintf("%s — complements the %s atmosphere", p.Description, vibeText)
}

func designerNotes(input domain.BriefInput, parts []domain.Daypart) string {
	var b strings.Builder
	b.WriteString("Selections move through ")
	for i, dp := range parts {
		if i > 0 {
			if i == len(parts)-1 {
				b.WriteString(" into ")
			} else {
				b.WriteString(", ")
			}
		}
		b.WriteString(fmt.Sprintf("%s at energy %d", dp.Label, dp.Energy))
	}
	b.WriteString(".")
	if len(input.Vibes) > 0 {
		b.WriteString(fmt.Sprintf(" The through-line is a %s feel", strings.Join(input.Vibes, ", ")))
		if input.VenueType != "" {
			b.WriteString(fmt.Sprintf(" tuned for a %s", catalog.HumanizeVenueType(input.VenueType)))
		}
		b.WriteString(".")
	}
	if input.AvoidList != "" {
		b.WriteString(fmt.Sprintf(" Kept clear of: %s.", input.AvoidList))
	}
	return b.String()
}

// filler tokens dropped from avoid-list terms.
var avoidFiller = map[string]bool{"no": true, "hits": true, "mainstream": true, "": true}

var avoidSplit = regexp.MustCompile(`[,;]|\band\b|\bor\b`)

// normalizeAvoidList tokenizes the avoid list into matchable terms.
func normalizeAvoidList(raw string) []string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return nil
	}
	var terms []string
	for _, part := range avoidSplit.Split(raw, -1) {
		var kept []string
		for _, word := range strings.Fields(part) {
			if !avoidFiller[word] {
				kept = append(kept, word)
			}
		}
		term := normalizeHyphens(strings.Join(kept, " "))
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

func normalizeHyphens(s string) string {
	return strings.ReplaceAll(s, "-", " ")
}

func intersection(a, b []string) int {
	n := 0
	for _, x := range a {
		for _, y := range b {
			if x == y {
				n++
				break
			}
		}
	}
	return n
}
