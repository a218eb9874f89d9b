package submission

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"music-concierge/internal/domain"
)

var (
	weekdayByDays = []string{"MO", "TU", "WE", "TH", "FR"}
	weekendByDays = []string{"SA", "SU"}
	allByDays     = []string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}
)

func byDaysFor(days string) []string {
	switch days {
	case domain.DaysWeekday:
		return weekdayByDays
	case domain.DaysWeekend:
		return weekendByDays
	default:
		return allByDays
	}
}

// buildSlots derives the weekly RRULE slots of the remote schedule,
// merging every zone's planned playlists: one slot per admitted
// day-of-week per planned playlist.
func buildSlots(data domain.ScheduleData, zoneOrder []string) []domain.ScheduleSlot {
	var slots []domain.ScheduleSlot
	add := func(planned []domain.PlannedSlot) {
		for _, slot := range planned {
			if slot.PlaylistSybID == "" {
				continue
			}
			start, duration, ok := slotTiming(slot.TimeRange)
			if !ok {
				continue
			}
			for _, day := range byDaysFor(slot.Days) {
				slots = append(slots, domain.ScheduleSlot{
					RRule:       "FREQ=WEEKLY;BYDAY=" + day,
					Start:       start,
					Duration:    duration,
					PlaylistIDs: []string{slot.PlaylistSybID},
				})
			}
		}
	}
	for _, zone := range slotZones(data.Slots, zoneOrder) {
		add(data.Slots[zone])
	}
	for _, zone := range slotZones(data.WeekendSlots, zoneOrder) {
		add(data.WeekendSlots[zone])
	}
	return slots
}

// slotZones orders a slot map's keys: the submission's zone order
// first, any remaining keys sorted.
func slotZones(slots map[string][]domain.PlannedSlot, preferred []string) []string {
	if len(slots) == 0 {
		return nil
	}
	zones := make([]string, 0, len(slots))
	seen := make(map[string]bool, len(slots))
	for _, name := range preferred {
		if _, ok := slots[name]; ok && !seen[name] {
			zones = append(zones, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range slots {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(zones, rest...)
}

// slotTiming converts a HH:MM-HH:MM range in venue wall clock to the
// platform's HHMMSS start and millisecond duration, wrapping past
// midnight.
func slotTiming(timeRange string) (string, int64, bool) {
	startText, endText, ok := splitTimeRange(timeRange)
	if !ok {
		return "", 0, false
	}
	startMin, ok := clockMinutes(startText)
	if !ok {
		return "", 0, false
	}
	endMin, ok := clockMinutes(endText)
	if !ok {
		return "", 0, false
	}
	duration := endMin - startMin
	if duration <= 0 {
		duration += 24 * 60
	}
	start := fmt.Sprintf("%02d%02d00", startMin/60, startMin%60)
	return start, int64(duration) * 60 * 1000, true
}

func clockMinutes(clock string) (int, bool) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	if hour > 24 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// prebuildRemoteSchedule creates one remote schedule covering every
// zone's planned slots when the platform account is confirmed; approval
// later binds all selected zones to it. Failures are logged and the
// flow falls back to manual approval; nothing here is fatal to submit.
func (s *Service) prebuildRemoteSchedule(ctx context.Context, payload Payload, briefID int64, data domain.ScheduleData) string {
	if payload.SybAccountID == "" || payload.Product != "syb" || s.platform == nil {
		return ""
	}
	slots := buildSlots(data, payload.ZoneNames)
	if len(slots) == 0 {
		return ""
	}
	zoneLabel := DefaultZoneName
	if len(payload.ZoneNames) > 0 {
		zoneLabel = strings.Join(payload.ZoneNames, ", ")
	}
	scheduleID, err := s.platform.CreateSchedule(ctx, domain.CreateScheduleInput{
		OwnerID:     payload.SybAccountID,
		Name:        fmt.Sprintf("%s %s — by BMAsia", payload.VenueName, zoneLabel),
		PresentAs:   "daily",
		Description: fmt.Sprintf("Brief #%d", briefID),
		Slots:       slots,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("submit: createSchedule failed, manual approval path")
		return ""
	}
	if err := s.platform.AddToMusicLibrary(ctx, payload.SybAccountID, scheduleID); err != nil {
		s.log.Warn().Err(err).Msg("submit: addToMusicLibrary failed")
	}
	return scheduleID
}
