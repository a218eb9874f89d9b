package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"music-concierge/internal/usecase/consult"
)

// sseStream frames chat events as Server-Sent Events. Writes after the
// client disconnects fail silently and unwind the handler.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseStream{w: w, flusher: flusher}, nil
}

func (s *sseStream) emit(event consult.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(payload); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// done terminates the stream with the single closing frame.
func (s *sseStream) done() {
	_ = s.emit(consult.Event{Type: "done"})
}
