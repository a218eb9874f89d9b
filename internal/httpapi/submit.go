package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"music-concierge/internal/usecase/submission"
)

// handleSubmit creates the brief and starts the approval flow. The
// website field is a honeypot: bots that fill it get a quiet success.
func (h *Handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload submission.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Website != "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	result, err := h.submission.Submit(r.Context(), payload)
	if err != nil {
		if errors.Is(err, submission.ErrMissingVenueName) {
			writeError(w, http.StatusBadRequest, "venueName is required")
			return
		}
		// The brief may already be persisted; resubmitting is safe.
		h.log.Error().Err(err).Str("venue", payload.VenueName).Msg("submit: failed")
		writeError(w, http.StatusInternalServerError, "submission could not be completed, please try again")
		return
	}

	resp := map[string]any{"success": true}
	if result.BriefID != 0 {
		resp["briefId"] = result.BriefID
	}
	if result.AutoScheduled {
		resp["autoScheduled"] = true
	}
	if result.RemoteScheduleID != "" {
		resp["schedulePrebuilt"] = true
	}
	writeJSON(w, http.StatusOK, resp)
}
