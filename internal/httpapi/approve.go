package httpapi

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"music-concierge/internal/domain"
	"music-concierge/internal/usecase/approval"
)

var approvePageTmpl = template.Must(template.New("approve").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Activate music schedule — {{.VenueName}}</title>
  <style>
    body { font-family: Arial, sans-serif; color: #222; max-width: 560px; margin: 40px auto; padding: 0 16px; }
    h1 { color: #1a7f64; font-size: 22px; }
    .zone { margin: 16px 0; }
    label { display: block; font-weight: bold; margin-bottom: 4px; }
    select { width: 100%; padding: 8px; font-size: 15px; }
    button { background: #1a7f64; color: #fff; border: 0; padding: 12px 24px; font-size: 16px; border-radius: 6px; cursor: pointer; margin-top: 16px; }
    .badge { background: #e8f6f1; padding: 6px 12px; border-radius: 6px; display: inline-block; font-size: 13px; }
    .muted { color: #777; font-size: 13px; }
  </style>
</head>
<body>
  <h1>Activate the music schedule for {{.VenueName}}</h1>
  {{if .Prebuilt}}<p class="badge">&#9989; Schedule pre-built on Soundtrack Your Brand</p>{{end}}
  <p>Match each area of the venue to its sound zone, then activate.</p>
  <form method="POST">
    {{range .Zones}}
    {{$pre := .Preselected}}
    <div class="zone">
      <label>{{.Name}}</label>
      <select name="zone_{{.Name}}">
        <option value="">— select a sound zone —</option>
        {{range $.PlatformZones}}
        <option value="{{.ID}}"{{if eq .ID $pre}} selected{{end}}>{{.Name}}{{if .LocationName}} ({{.LocationName}}){{end}}</option>
        {{end}}
      </select>
    </div>
    {{end}}
    <button type="submit">Activate schedule</button>
  </form>
  <p class="muted">Brief #{{.BriefID}} · {{.VenueType}}</p>
</body>
</html>`))

var approveResultTmpl = template.Must(template.New("approveResult").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title>
<style>body { font-family: Arial, sans-serif; color: #222; max-width: 560px; margin: 40px auto; padding: 0 16px; }
h1 { color: {{.Color}}; font-size: 22px; }</style></head>
<body><h1>{{.Title}}</h1><p>{{.Message}}</p></body>
</html>`))

type approveZoneView struct {
	Name        string
	Preselected string
}

type approvePageData struct {
	VenueName     string
	VenueType     string
	BriefID       int64
	Prebuilt      bool
	Zones         []approveZoneView
	PlatformZones []domain.Zone
}

type approveResultData struct {
	Title   string
	Message string
	Color   string
}

func (h *Handlers) renderApproveError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	data := approveResultData{Color: "#b4452c"}
	switch {
	case errors.Is(err, approval.ErrTokenNotFound):
		status = http.StatusNotFound
		data.Title = "Link not recognized"
		data.Message = "This approval link is not valid. Check that you opened the full link from the email."
	case errors.Is(err, approval.ErrTokenExpired):
		status = http.StatusGone
		data.Title = "Link expired"
		data.Message = "This approval link has expired. Reply to the brief email and we will send a fresh one."
	case errors.Is(err, approval.ErrTokenUsed):
		data.Title = "Already activated"
		data.Message = "This schedule was already activated. Nothing more to do."
	default:
		status = http.StatusInternalServerError
		data.Title = "Something went wrong"
		data.Message = "The schedule could not be activated. Reopen the link from the email to try again."
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = approveResultTmpl.Execute(w, data)
}

func (h *Handlers) handleApproveGet(w http.ResponseWriter, r *http.Request) {
	if h.approval == nil {
		writeError(w, http.StatusServiceUnavailable, "approval unavailable without a database")
		return
	}
	token := chi.URLParam(r, "token")
	page, err := h.approval.Prepare(r.Context(), token)
	if err != nil {
		h.renderApproveError(w, err)
		return
	}
	data := approvePageData{
		VenueName:     page.Brief.VenueName,
		VenueType:     page.Brief.VenueType,
		BriefID:       page.Brief.ID,
		Prebuilt:      page.Prebuilt,
		PlatformZones: page.PlatformZones,
	}
	for _, name := range page.ZoneNames {
		data.Zones = append(data.Zones, approveZoneView{Name: name, Preselected: page.Preselected[name]})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = approvePageTmpl.Execute(w, data)
}

func (h *Handlers) handleApprovePost(w http.ResponseWriter, r *http.Request) {
	if h.approval == nil {
		writeError(w, http.StatusServiceUnavailable, "approval unavailable without a database")
		return
	}
	token := chi.URLParam(r, "token")
	if err := r.ParseForm(); err != nil {
		h.renderApproveError(w, err)
		return
	}
	selections := make(map[string]string)
	for field, values := range r.PostForm {
		if zone, ok := strings.CutPrefix(field, "zone_"); ok && len(values) > 0 {
			selections[zone] = values[0]
		}
	}

	result, err := h.approval.Approve(r.Context(), token, selections)
	if err != nil {
		h.log.Error().Err(err).Msg("approve: failed")
		h.renderApproveError(w, err)
		return
	}

	data := approveResultData{
		Title: "Schedule activated",
		Color: "#1a7f64",
	}
	if result.NewStatus == domain.BriefScheduled {
		data.Message = "The pre-built schedule is now live on the selected zones. The music follows it automatically."
	} else {
		data.Message = "The schedule is active. Playlists will switch at the planned times in the venue's local timezone."
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = approveResultTmpl.Execute(w, data)
}
