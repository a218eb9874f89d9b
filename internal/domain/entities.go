package domain

import "time"

// Playlist is one entry of the immutable curated catalog.
type Playlist struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	SybID       string   `json:"sybId,omitempty"`
}

// Daypart is a contiguous block of a venue's operating hours.
type Daypart struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	TimeRange string `json:"timeRange"`
	Icon      string `json:"icon"`
	Energy    int    `json:"energy"`
}

// DaypartSet holds dayparts for either a single-zone or a multi-zone brief.
// Exactly one of Single and ByZone is populated.
type DaypartSet struct {
	Single []Daypart
	ByZone map[string][]Daypart
}

// Zones returns the zone names covered by the set. A single-zone set
// reports one empty name.
func (d DaypartSet) Zones() []string {
	if d.ByZone == nil {
		return []string{""}
	}
	names := make([]string, 0, len(d.ByZone))
	for name := range d.ByZone {
		names = append(names, name)
	}
	return names
}

// For returns the dayparts for a zone, falling back to the single list.
func (d DaypartSet) For(zone string) []Daypart {
	if d.ByZone != nil {
		return d.ByZone[zone]
	}
	return d.Single
}

// BriefInput is the structured slice of a brief the matcher scores against.
type BriefInput struct {
	VenueType  string
	Vibes      []string
	Energy     int
	Hours      string
	Vocals     string
	AvoidList  string
	GenreHints []string
}

// ZoneSpec overrides parts of the base brief for one named zone.
type ZoneSpec struct {
	Name       string   `json:"name"`
	Hours      string   `json:"hours,omitempty"`
	Energy     int      `json:"energy,omitempty"`
	Vibes      []string `json:"vibes,omitempty"`
	GenreHints []string `json:"genreHints,omitempty"`
}

// Recommendation is one matcher pick for one daypart.
type Recommendation struct {
	PlaylistID   string `json:"playlistId"`
	PlaylistName string `json:"playlistName"`
	Daypart      string `json:"daypart"`
	DaypartLabel string `json:"daypartLabel"`
	Reason       string `json:"reason"`
	MatchScore   int    `json:"matchScore"`
	ZoneName     string `json:"zoneName,omitempty"`
	ScheduleType string `json:"scheduleType,omitempty"`
}

// DesignerBrief is the genre/BPM companion built alongside the picks.
type DesignerBrief struct {
	TopGenres     []string            `json:"topGenres"`
	BPMRanges     []string            `json:"bpmRanges"`
	DaypartGenres map[string][]string `json:"daypartGenres"`
	DaypartOrder  []string            `json:"daypartOrder"`
}

// Brief statuses, forward-only.
const (
	BriefSubmitted = "submitted"
	BriefApproved  = "approved"
	BriefScheduled = "scheduled"
	BriefCompleted = "completed"
)

// Brief is the persisted snapshot of one consultation.
type Brief struct {
	ID                  int64
	VenueName           string
	VenueType           string
	Location            string
	ContactName         string
	ContactEmail        string
	ContactPhone        string
	Product             string
	LikedPlaylists      []string
	ConversationSummary string
	RawData             []byte
	ScheduleData        []byte
	Status              string
	SybAccountID        string
	SybScheduleID       string
	AutomationTier      string
	CreatedAt           time.Time
}

// Venue is the durable per-venue record shared across briefs.
type Venue struct {
	ID                 int64
	VenueName          string
	Location           string
	VenueType          string
	SybAccountID       string
	LatestBriefID      *int64
	AutoSchedule       bool
	ApprovedBriefCount int
	Timezone           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ZoneMapping binds a conversational zone name to a platform zone.
type ZoneMapping struct {
	ID            int64
	VenueName     string
	BriefZoneName string
	SybZoneID     string
	SybZoneName   string
	SybAccountID  string
	CreatedAt     time.Time
}

// Schedule entry statuses.
const (
	EntryActive    = "active"
	EntryPaused    = "paused"
	EntryCompleted = "completed"
	EntryError     = "error"
)

// Day filters for schedule entries.
const (
	DaysDaily   = "daily"
	DaysWeekday = "weekday"
	DaysWeekend = "weekend"
)

// ScheduleEntry instructs the executor to place one playlist on one zone
// at a local wall-clock time on certain days.
type ScheduleEntry struct {
	ID             int64
	BriefID        int64
	ZoneID         string
	ZoneName       string
	PlaylistSybID  string
	PlaylistName   string
	StartTime      string
	EndTime        string
	Days           string
	Timezone       string
	Status         string
	LastAssignedAt *time.Time
	RetryCount     int
}

// ApprovalToken is a single-use capability for finalizing a schedule.
type ApprovalToken struct {
	ID        int64
	BriefID   int64
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Follow-up kinds.
const (
	FollowUp7Day  = "7day"
	FollowUp30Day = "30day"
)

// FollowUp is a scheduled check-in email for a submitted brief.
type FollowUp struct {
	ID           int64
	BriefID      int64
	Type         string
	ScheduledFor time.Time
	SentAt       *time.Time
	OpenedAt     *time.Time
	TrackingID   string
}

// FollowUpJob is a due follow-up joined with the contact it goes to.
type FollowUpJob struct {
	FollowUp
	VenueName    string
	ContactName  string
	ContactEmail string
}

// PlannedSlot is one liked playlist resolved against its daypart, stored
// inside Brief.ScheduleData and materialized into entries at approval.
type PlannedSlot struct {
	PlaylistName  string `json:"playlistName"`
	PlaylistSybID string `json:"playlistSybId,omitempty"`
	Daypart       string `json:"daypart"`
	TimeRange     string `json:"timeRange"`
	Days          string `json:"days"`
}

// ScheduleData is the JSON payload persisted with a brief that carries
// everything approval needs to materialize schedule entries.
type ScheduleData struct {
	MultiZone       bool                     `json:"multiZone"`
	ZoneNames       []string                 `json:"zoneNames,omitempty"`
	Dayparts        map[string][]Daypart     `json:"dayparts"`
	DaypartOrder    []string                 `json:"daypartOrder"`
	Slots           map[string][]PlannedSlot `json:"slots"`
	WeekendDayparts map[string][]Daypart     `json:"weekendDayparts,omitempty"`
	WeekendSlots    map[string][]PlannedSlot `json:"weekendSlots,omitempty"`
}

// Account is one music platform account as seen by the cache.
type Account struct {
	ID           string
	BusinessName string
}

// Zone is one playable sound zone of a platform account.
type Zone struct {
	ID           string
	Name         string
	LocationID   string
	LocationName string
}
