package designer

import (
	"sort"

	"music-concierge/internal/domain"
	"music-concierge/internal/usecase/catalog"
)

const topGenreCount = 8

// Build synthesizes the designer brief from the structured inputs: top
// genres weighted by vibe and venue, BPM ranges, and per-daypart genre
// slices.
func Build(input domain.BriefInput, parts []domain.Daypart) domain.DesignerBrief {
	scores := make(map[string]float64)
	var order []string
	bump := func(genre string, weight float64) {
		if _, seen := scores[genre]; !seen {
			order = append(order, genre)
		}
		scores[genre] += weight
	}

	bpmSet := make(map[string]bool)
	var bpm []string
	for _, vibe := range input.Vibes {
		profile, ok := catalog.VibeGenres[vibe]
		if !ok {
			continue
		}
		for _, g := range profile.Genres {
			bump(g, 1.0)
		}
		if profile.BPM != "" && !bpmSet[profile.BPM] {
			bpmSet[profile.BPM] = true
			bpm = append(bpm, profile.BPM)
		}
	}
	for _, g := range catalog.VenueGenreBoost(input.VenueType) {
		bump(g, 0.5)
	}

	// Stable by first-seen order on equal scores.
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	top := order
	if len(top) > topGenreCount {
		top = top[:topGenreCount]
	}

	daypartGenres := make(map[string][]string, len(parts))
	daypartOrder := make([]string, 0, len(parts))
	for _, dp := range parts {
		n := 5
		if dp.Energy >= input.Energy {
			n = 6
		}
		if n > len(top) {
			n = len(top)
		}
		daypartGenres[dp.Key] = append([]string(nil), top[:n]...)
		daypartOrder = append(daypartOrder, dp.Key)
	}

	return domain.DesignerBrief{
		TopGenres:     top,
		BPMRanges:     bpm,
		DaypartGenres: daypartGenres,
		DaypartOrder:  daypartOrder,
	}
}
