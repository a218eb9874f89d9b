package matcher

import (
	"music-concierge/internal/domain"
	"music-concierge/internal/usecase/dayparts"
)

// WeekendSpec overrides parts of the brief when weekends differ.
type WeekendSpec struct {
	Hours      string   `json:"hours,omitempty"`
	Energy     int      `json:"energy,omitempty"`
	Vibes      []string `json:"vibes,omitempty"`
	GenreHints []string `json:"genreHints,omitempty"`
}

// PlanRequest drives one end-to-end matcher run, single- or multi-zone,
// optionally with a weekend variant.
type PlanRequest struct {
	Base    domain.BriefInput
	Zones   []domain.ZoneSpec
	Weekend *WeekendSpec
}

// Plan is the full recommendation payload streamed to the client and
// persisted with the brief.
type Plan struct {
	Recommendations        []domain.Recommendation
	Dayparts               domain.DaypartSet
	DesignerNotes          string
	MultiZone              bool
	ZoneNames              []string
	WeekendDayparts        *domain.DaypartSet
	WeekendRecommendations []domain.Recommendation
}

// merge applies zone overrides atop the base brief.
func merge(base domain.BriefInput, zone domain.ZoneSpec) domain.BriefInput {
	out := base
	if zone.Hours != "" {
		out.Hours = zone.Hours
	}
	if zone.Energy != 0 {
		out.Energy = zone.Energy
	}
	if len(zone.Vibes) > 0 {
		out.Vibes = zone.Vibes
	}
	if len(zone.GenreHints) > 0 {
		out.GenreHints = zone.GenreHints
	}
	return out
}

func mergeWeekend(base domain.BriefInput, w WeekendSpec) domain.BriefInput {
	return merge(base, domain.ZoneSpec{Hours: w.Hours, Energy: w.Energy, Vibes: w.Vibes, GenreHints: w.GenreHints})
}

// BuildPlan runs the matcher for every zone and the weekend variant.
func (m *Matcher) BuildPlan(req PlanRequest) Plan {
	if len(req.Zones) == 0 {
		return m.buildSingle(req)
	}
	return m.buildMulti(req)
}

func (m *Matcher) buildSingle(req PlanRequest) Plan {
	parts := dayparts.Generate(req.Base.Hours, req.Base.Energy)
	recs, notes := m.Match(req.Base, parts)
	plan := Plan{
		Recommendations: recs,
		Dayparts:        domain.DaypartSet{Single: parts},
		DesignerNotes:   notes,
	}
	if req.Weekend != nil {
		weekendInput := mergeWeekend(req.Base, *req.Weekend)
		weekendParts := dayparts.Generate(weekendInput.Hours, weekendInput.Energy)
		weekendRecs, _ := m.Match(weekendInput, weekendParts)
		for i := range weekendRecs {
			weekendRecs[i].ScheduleType = "weekend"
		}
		plan.WeekendDayparts = &domain.DaypartSet{Single: weekendParts}
		plan.WeekendRecommendations = weekendRecs
	}
	return plan
}

func (m *Matcher) buildMulti(req PlanRequest) Plan {
	plan := Plan{
		MultiZone: true,
		Dayparts:  domain.DaypartSet{ByZone: make(map[string][]domain.Daypart, len(req.Zones))},
	}
	var weekendByZone map[string][]domain.Daypart
	if req.Weekend != nil {
		weekendByZone = make(map[string][]domain.Daypart, len(req.Zones))
	}
	var notes string
	for _, zone := range req.Zones {
		input := merge(req.Base, zone)
		parts := dayparts.Generate(input.Hours, input.Energy)
		recs, zoneNotes := m.Match(input, parts)
		for i := range recs {
			recs[i].ZoneName = zone.Name
		}
		if notes == "" {
			notes = zoneNotes
		}
		plan.ZoneNames = append(plan.ZoneNames, zone.Name)
		plan.Dayparts.ByZone[zone.Name] = parts
		plan.Recommendations = append(plan.Recommendations, recs...)

		if req.Weekend != nil {
			weekendInput := mergeWeekend(input, *req.Weekend)
			weekendParts := dayparts.Generate(weekendInput.Hours, weekendInput.Energy)
			weekendRecs, _ := m.Match(weekendInput, weekendParts)
			for i := range weekendRecs {
				weekendRecs[i].ZoneName = zone.Name
				weekendRecs[i].ScheduleType = "weekend"
			}
			weekendByZone[zone.Name] = weekendParts
			plan.WeekendRecommendations = append(plan.WeekendRecommendations, weekendRecs...)
		}
	}
	plan.DesignerNotes = notes
	if weekendByZone != nil {
		plan.WeekendDayparts = &domain.DaypartSet{ByZone: weekendByZone}
	}
	return plan
}
