package dayparts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"music-concierge/internal/domain"
)

const minutesPerDay = 24 * 60

type segmentPlan struct {
	name    string
	key     string
	offsets []int
}

// Label sets and energy offsets by segment count.
var plans = map[int][]segmentPlan{
	2: {
		{name: "Opening", key: "opening", offsets: []int{-1, 1}},
		{name: "Peak", key: "peak"},
	},
	3: {
		{name: "Opening", key: "opening", offsets: []int{-2, 0, 1}},
		{name: "Peak Hours", key: "peak-hours"},
		{name: "Wind Down", key: "wind-down"},
	},
	4: {
		{name: "Opening", key: "opening", offsets: []int{-2, -1, 1, 0}},
		{name: "Build Up", key: "build-up"},
		{name: "Peak Hours", key: "peak-hours"},
		{name: "Wind Down", key: "wind-down"},
	},
}

// Generate segments an operating-hours string into 2-4 dayparts around a
// base energy. Unparseable hours fall back to three fixed parts.
func Generate(hours string, baseEnergy int) []domain.Daypart {
	open, close, ok := parseHours(hours)
	if !ok {
		return fallback(baseEnergy)
	}
	total := close - open
	if total <= 0 {
		total = minutesPerDay - open + close
	}
	count := 2
	switch {
	case total <= 6*60:
		count = 2
	case total <= 12*60:
		count = 3
	default:
		count = 4
	}
	plan := plans[count]
	offsets := plan[0].offsets
	segLen := (total + count/2) / count

	parts := make([]domain.Daypart, 0, count)
	for i := 0; i < count; i++ {
		segStart := (open + i*segLen) % minutesPerDay
		segEnd := (open + (i+1)*segLen) % minutesPerDay
		if i == count-1 {
			segEnd = close % minutesPerDay
		}
		timeRange := fmt.Sprintf("%s-%s", formatClock(segStart), formatClock(segEnd))
		parts = append(parts, domain.Daypart{
			Key:       plan[i].key,
			Label:     fmt.Sprintf("%s (%s)", plan[i].name, timeRange),
			TimeRange: timeRange,
			Icon:      iconFor(segStart / 60),
			Energy:    clampEnergy(baseEnergy + offsets[i]),
		})
	}
	return parts
}

// fallback is used when hours are missing or unparseable.
func fallback(baseEnergy int) []domain.Daypart {
	offsets := []int{-2, 0, 1}
	fixed := []struct {
		key, label, timeRange, icon string
	}{
		{"morning", "Morning", "06:00-12:00", "sunrise"},
		{"afternoon", "Afternoon", "12:00-18:00", "sun"},
		{"evening", "Evening", "18:00-23:00", "moon"},
	}
	parts := make([]domain.Daypart, 0, len(fixed))
	for i, f := range fixed {
		parts = append(parts, domain.Daypart{
			Key:       f.key,
			Label:     f.label,
			TimeRange: f.timeRange,
			Icon:      f.icon,
			Energy:    clampEnergy(baseEnergy + offsets[i]),
		})
	}
	return parts
}

func clampEnergy(e int) int {
	if e < 1 {
		return 1
	}
	if e > 10 {
		return 10
	}
	return e
}

func iconFor(hour int) string {
	switch {
	case hour >= 5 && hour <= 10:
		return "sunrise"
	case hour >= 11 && hour <= 15:
		return "sun"
	case hour >= 16 && hour <= 18:
		return "sunset"
	case hour >= 19 && hour <= 23:
		return "moon"
	default:
		return "stars"
	}
}

func formatClock(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

var clockToken = regexp.MustCompile(`(?i)(\d{1,4})(?::(\d{2}))?\s*(am|pm)?`)

// parseHours pulls the first two clock tokens out of free text. Close at
// or before open means the window wraps past midnight.
func parseHours(text string) (open, close int, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, 0, false
	}
	matches := clockToken.FindAllStringSubmatch(text, -1)
	var clocks []int
	for _, m := range matches {
		if minutes, valid := parseClock(m[1], m[2], strings.ToLower(m[3])); valid {
			clocks = append(clocks, minutes)
		}
		if len(clocks) == 2 {
			break
		}
	}
	if len(clocks) < 2 {
		return 0, 0, false
	}
	return clocks[0] % minutesPerDay, clocks[1] % minutesPerDay, true
}

// parseClock accepts HH, HH:MM and HHMM forms with an optional am/pm
// suffix.
func parseClock(digits, minutePart, meridiem string) (int, bool) {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	var hour, minute int
	switch {
	case minutePart != "":
		hour = n
		minute, _ = strconv.Atoi(minutePart)
	case len(digits) >= 3:
		hour = n / 100
		minute = n % 100
	default:
		hour = n
	}
	if hour > 24 || minute > 59 {
		return 0, false
	}
	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour*60 + minute, true
}
