package executor

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"music-concierge/internal/domain"
	"music-concierge/internal/infra/metrics"
)

const (
	maxAssignRetries = 3
	dueWindowMinutes = 1
	followUpBatch    = 5
	keepalivePeriod  = 10 * time.Minute
)

// Executor drives playlist assignment on the platform, minute by
// minute, in each entry's local timezone.
type Executor struct {
	store    domain.Store
	platform domain.MusicPlatform
	mailer   domain.Mailer
	baseURL  string
	log      zerolog.Logger
	now      func() time.Time

	tickMu sync.Mutex

	pingMu   sync.Mutex
	pingStop context.CancelFunc
	httpc    *http.Client
}

// New wires the executor.
func New(store domain.Store, platform domain.MusicPlatform, mailer domain.Mailer,
	baseURL string, logger zerolog.Logger) *Executor {
	return &Executor{
		store:    store,
		platform: platform,
		mailer:   mailer,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      logger,
		now:      time.Now,
		httpc:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Tick runs one executor pass. Overlapping invocations are skipped; a
// tick never lets a downstream failure escape the loop.
func (e *Executor) Tick() {
	if !e.tickMu.TryLock() {
		e.log.Warn().Msg("executor: previous tick still running, skipping")
		return
	}
	defer e.tickMu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("executor: tick panicked")
		}
		metrics.ExecutorTickSeconds.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Second)
	defer cancel()

	if e.store == nil {
		return
	}
	entries, err := e.store.ListActiveEntries(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("executor: list active entries")
		return
	}
	now := e.now()

	// Attempted ids (success or failure) so catch-up never dispatches
	// the same entry twice in one tick.
	attempted := make(map[int64]bool)
	for _, entry := range entries {
		if !dueNow(entry, now) {
			continue
		}
		attempted[entry.ID] = true
		e.assign(ctx, entry)
	}

	// Catch-up: after a cold start, put each zone on the entry that
	// should currently be playing.
	for _, entry := range latestOverduePerZone(entries, now, attempted) {
		e.assign(ctx, entry)
	}

	e.dispatchFollowUps(ctx, now)
}

func (e *Executor) assign(ctx context.Context, entry domain.ScheduleEntry) {
	err := e.platform.AssignSource(ctx, []string{entry.ZoneID}, entry.PlaylistSybID)
	if err != nil {
		metrics.AssignmentsTotal.WithLabelValues("error").Inc()
		e.log.Error().Err(err).Int64("entry", entry.ID).Str("zone", entry.ZoneName).
			Int("retry", entry.RetryCount+1).Msg("executor: assignment failed")
		if dbErr := e.store.RecordAssignFailure(ctx, entry.ID, maxAssignRetries); dbErr != nil {
			e.log.Error().Err(dbErr).Int64("entry", entry.ID).Msg("executor: record failure")
		}
		return
	}
	metrics.AssignmentsTotal.WithLabelValues("success").Inc()
	e.log.Info().Int64("entry", entry.ID).Str("zone", entry.ZoneName).
		Str("playlist", entry.PlaylistName).Msg("executor: playlist assigned")
	if dbErr := e.store.MarkAssigned(ctx, entry.ID, e.now()); dbErr != nil {
		e.log.Error().Err(dbErr).Int64("entry", entry.ID).Msg("executor: mark assigned")
	}
}

// dayAdmits applies the entry's day filter in its local calendar.
func dayAdmits(days string, weekday time.Weekday) bool {
	switch days {
	case domain.DaysWeekday:
		return weekday >= time.Monday && weekday <= time.Friday
	case domain.DaysWeekend:
		return weekday == time.Saturday || weekday == time.Sunday
	default:
		return true
	}
}

func entryLocal(entry domain.ScheduleEntry, now time.Time) (time.Time, bool) {
	loc, err := time.LoadLocation(entry.Timezone)
	if err != nil {
		return time.Time{}, false
	}
	return now.In(loc), true
}

// assignedToday reports whether the entry already ran on the current
// local date.
func assignedToday(entry domain.ScheduleEntry, localNow time.Time) bool {
	if entry.LastAssignedAt == nil {
		return false
	}
	last := entry.LastAssignedAt.In(localNow.Location())
	ly, lm, ld := last.Date()
	ny, nm, nd := localNow.Date()
	return ly == ny && lm == nm && ld == nd
}

func startMinutes(entry domain.ScheduleEntry) (int, bool) {
	parts := strings.SplitN(entry.StartTime, ":", 2)
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
	return hour*60 + minute, true
}

// dueNow matches entries whose local start time falls inside the
// two-minute window around the tick and which have not run today.
func dueNow(entry domain.ScheduleEntry, now time.Time) bool {
	localNow, ok := entryLocal(entry, now)
	if !ok {
		return false
	}
	if !dayAdmits(entry.Days, localNow.Weekday()) {
		return false
	}
	if assignedToday(entry, localNow) {
		return false
	}
	start, ok := startMinutes(entry)
	if !ok {
		return false
	}
	nowMin := localNow.Hour()*60 + localNow.Minute()
	diff := nowMin - start
	if diff < 0 {
		diff = -diff
	}
	if wrapped := 24*60 - diff; wrapped < diff {
		diff = wrapped
	}
	return diff <= dueWindowMinutes
}

// latestOverduePerZone selects, per zone, the single overdue entry with
// the latest start time: the playlist that should currently be playing.
func latestOverduePerZone(entries []domain.ScheduleEntry, now time.Time, skip map[int64]bool) []domain.ScheduleEntry {
	best := make(map[string]domain.ScheduleEntry)
	bestStart := make(map[string]int)
	for _, entry := range entries {
		if skip[entry.ID] {
			continue
		}
		localNow, ok := entryLocal(entry, now)
		if !ok {
			continue
		}
		if !dayAdmits(entry.Days, localNow.Weekday()) || assignedToday(entry, localNow) {
			continue
		}
		start, ok := startMinutes(entry)
		if !ok {
			continue
		}
		nowMin := localNow.Hour()*60 + localNow.Minute()
		if start >= nowMin {
			continue
		}
		if prev, seen := bestStart[entry.ZoneID]; !seen || start > prev {
			best[entry.ZoneID] = entry
			bestStart[entry.ZoneID] = start
		}
	}
	out := make([]domain.ScheduleEntry, 0, len(best))
	for _, entry := range best {
		out = append(out, entry)
	}
	return out
}

// KeepaliveCheck runs every five minutes: while active entries exist
// the process pings its own health endpoint so free-tier hosts do not
// put it to sleep.
func (e *Executor) KeepaliveCheck() {
	if e.store == nil || e.baseURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	count, err := e.store.CountActiveEntries(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("executor: count active entries")
		return
	}

	e.pingMu.Lock()
	defer e.pingMu.Unlock()
	switch {
	case count > 0 && e.pingStop == nil:
		pingCtx, stop := context.WithCancel(context.Background())
		e.pingStop = stop
		go e.pingLoop(pingCtx)
		e.log.Info().Int("entries", count).Msg("executor: keepalive started")
	case count == 0 && e.pingStop != nil:
		e.pingStop()
		e.pingStop = nil
		e.log.Info().Msg("executor: keepalive stopped")
	}
}

func (e *Executor) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(keepalivePeriod)
	defer ticker.Stop()
	url := e.baseURL + "/health"
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				continue
			}
			if resp, err := e.httpc.Do(req); err == nil {
				resp.Body.Close()
			}
		}
	}
}

// dispatchFollowUps sends up to five due follow-up emails. A row is
// marked sent after its one attempt regardless of outcome; a missing
// contact is marked without sending.
func (e *Executor) dispatchFollowUps(ctx context.Context, now time.Time) {
	jobs, err := e.store.DueFollowUps(ctx, now, followUpBatch)
	if err != nil {
		e.log.Error().Err(err).Msg("executor: due follow-ups")
		return
	}
	for _, job := range jobs {
		if strings.TrimSpace(job.ContactEmail) == "" {
			metrics.FollowUpsSentTotal.WithLabelValues(job.Type, "skipped").Inc()
		} else if err := e.sendFollowUp(ctx, job); err != nil {
			metrics.FollowUpsSentTotal.WithLabelValues(job.Type, "error").Inc()
			e.log.Error().Err(err).Int64("follow_up", job.ID).Msg("executor: follow-up send failed")
		} else {
			metrics.FollowUpsSentTotal.WithLabelValues(job.Type, "success").Inc()
		}
		if err := e.store.MarkFollowUpSent(ctx, job.ID, e.now()); err != nil {
			e.log.Error().Err(err).Int64("follow_up", job.ID).Msg("executor: mark follow-up sent")
		}
	}
}

func (e *Executor) sendFollowUp(ctx context.Context, job domain.FollowUpJob) error {
	if e.mailer == nil {
		return fmt.Errorf("mailer not configured")
	}
	subject, body := renderFollowUp(job, e.baseURL)
	return e.mailer.Send(ctx, job.ContactEmail, subject, body)
}
