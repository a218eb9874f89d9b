package httpapi

import (
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"music-concierge/internal/domain"
	"music-concierge/internal/usecase/approval"
	"music-concierge/internal/usecase/consult"
	"music-concierge/internal/usecase/matcher"
	"music-concierge/internal/usecase/submission"
)

// Handlers owns the public HTTP surface.
type Handlers struct {
	engine     *consult.Engine
	submission *submission.Service
	approval   *approval.Service
	store      domain.Store
	limiter    *RateLimiter
	log        zerolog.Logger
}

// New wires the handler set. store may be nil in email-only mode.
func New(engine *consult.Engine, sub *submission.Service, appr *approval.Service,
	store domain.Store, limiter *RateLimiter, logger zerolog.Logger) *Handlers {
	return &Handlers{
		engine:     engine,
		submission: sub,
		approval:   appr,
		store:      store,
		limiter:    limiter,
		log:        logger,
	}
}

// Register mounts every route.
func (h *Handlers) Register(r chi.Router) {
	r.Post("/api/chat", h.limiter.Limit("chat", LimitChat, h.handleChat))
	r.Post("/api/recommend", h.limiter.Limit("recommend", LimitRecommend, h.handleRecommend))
	r.Post("/submit", h.limiter.Limit("submit", LimitSubmit, h.handleSubmit))
	r.Get("/approve/{token}", h.handleApproveGet)
	r.Post("/approve/{token}", h.handleApprovePost)
	r.Get("/follow-up/track/{id}", h.handleTrack)
	r.Get("/health", h.handleHealth)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChat streams one consultation turn over SSE. Once the stream is
// open, every response, success or error, ends with a single done frame;
// a bad body or a writer without flush support gets a plain JSON error.
func (h *Handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	var req consult.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	stream, err := newSSEStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	defer stream.done()

	if err := h.engine.Run(r.Context(), req, stream.emit); err != nil {
		h.log.Error().Err(err).Msg("chat: turn failed")
		stream.emit(consult.Event{Type: "error", Content: "Something went wrong on our side. Please try again in a moment."})
	}
}

// recommendRequest is the non-chat recommendation body.
type recommendRequest struct {
	VenueType  string               `json:"venueType"`
	Vibes      []string             `json:"vibes"`
	Energy     int                  `json:"energy"`
	Hours      string               `json:"hours"`
	Vocals     string               `json:"vocals"`
	AvoidList  string               `json:"avoidList"`
	GenreHints []string             `json:"genreHints"`
	MultiZone  bool                 `json:"multiZone"`
	Zones      []domain.ZoneSpec    `json:"zones"`
	Weekend    *matcher.WeekendSpec `json:"weekend"`
}

func (h *Handlers) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VenueType == "" || len(req.Vibes) == 0 {
		writeError(w, http.StatusBadRequest, "venueType and vibes are required")
		return
	}
	planReq := matcher.PlanRequest{
		Base: domain.BriefInput{
			VenueType:  req.VenueType,
			Vibes:      req.Vibes,
			Energy:     req.Energy,
			Hours:      req.Hours,
			Vocals:     req.Vocals,
			AvoidList:  req.AvoidList,
			GenreHints: req.GenreHints,
		},
		Weekend: req.Weekend,
	}
	if req.MultiZone {
		planReq.Zones = req.Zones
	}
	plan := h.engine.DirectRecommend(r.Context(), planReq)

	resp := map[string]any{
		"recommendations": plan.Recommendations,
		"dayparts":        daypartsWire(plan.Dayparts),
		"designerNotes":   plan.DesignerNotes,
		"multiZone":       plan.MultiZone,
	}
	if len(plan.ZoneNames) > 0 {
		resp["zoneNames"] = plan.ZoneNames
	}
	if plan.WeekendDayparts != nil {
		resp["weekendDayparts"] = daypartsWire(*plan.WeekendDayparts)
		resp["weekendRecommendations"] = plan.WeekendRecommendations
	}
	writeJSON(w, http.StatusOK, resp)
}

func daypartsWire(set domain.DaypartSet) any {
	if set.ByZone != nil {
		return set.ByZone
	}
	return set.Single
}
