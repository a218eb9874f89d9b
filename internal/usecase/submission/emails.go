package submission

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"music-concierge/internal/domain"
)

var submitEmailTmpl = template.Must(template.New("submit").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222; max-width: 640px; margin: 0 auto;">
  <h2 style="color: #1a7f64;">New music brief: {{.VenueName}}</h2>
  <p>{{.ContactName}} ({{.ContactEmail}}{{if .ContactPhone}}, {{.ContactPhone}}{{end}}) submitted a brief
  for <strong>{{.VenueName}}</strong>{{if .Location}} in {{.Location}}{{end}}.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td style="color:#777;">Venue type</td><td>{{.VenueType}}</td></tr>
    <tr><td style="color:#777;">Hours</td><td>{{.Hours}}</td></tr>
    <tr><td style="color:#777;">Energy</td><td>{{.Energy}}/10</td></tr>
    <tr><td style="color:#777;">Vibes</td><td>{{.Vibes}}</td></tr>
    {{if .AvoidList}}<tr><td style="color:#777;">Avoid</td><td>{{.AvoidList}}</td></tr>{{end}}
    {{if .TopGenres}}<tr><td style="color:#777;">Designer genres</td><td>{{.TopGenres}}</td></tr>{{end}}
    {{if .BPMRanges}}<tr><td style="color:#777;">BPM</td><td>{{.BPMRanges}}</td></tr>{{end}}
  </table>
  {{if .LikedPlaylists}}
  <h3>Liked playlists</h3>
  <ul>{{range .LikedPlaylists}}<li>{{.}}</li>{{end}}</ul>
  {{end}}
  {{if .Prebuilt}}
  <p style="background:#e8f6f1; padding:8px 12px; border-radius:6px; display:inline-block;">
    &#9989; Schedule pre-built on Soundtrack Your Brand
  </p>
  {{end}}
  {{if .ApprovalURL}}
  <p><a href="{{.ApprovalURL}}" style="background:#1a7f64; color:#fff; padding:10px 18px; border-radius:6px; text-decoration:none;">
    Review and activate the schedule
  </a></p>
  <p style="color:#777; font-size:12px;">The link is valid for 7 days.</p>
  {{end}}
  {{if .BriefID}}<p style="color:#777; font-size:12px;">Brief #{{.BriefID}}</p>{{end}}
</body>
</html>`))

type submitEmailData struct {
	VenueName      string
	VenueType      string
	Location       string
	ContactName    string
	ContactEmail   string
	ContactPhone   string
	Hours          string
	Energy         int
	Vibes          string
	AvoidList      string
	TopGenres      string
	BPMRanges      string
	LikedPlaylists []string
	ApprovalURL    string
	Prebuilt       bool
	BriefID        int64
}

// sendSubmitEmail renders and delivers the production notification.
// The SMTP failure propagates: the HTTP layer reports it and the
// caller may resubmit.
func (s *Service) sendSubmitEmail(ctx context.Context, payload Payload, brief domain.DesignerBrief,
	briefID int64, approvalURL, remoteScheduleID string) error {
	if s.mailer == nil {
		return nil
	}
	var body strings.Builder
	err := submitEmailTmpl.Execute(&body, submitEmailData{
		VenueName:      payload.VenueName,
		VenueType:      payload.VenueType,
		Location:       payload.Location,
		ContactName:    payload.ContactName,
		ContactEmail:   payload.ContactEmail,
		ContactPhone:   payload.ContactPhone,
		Hours:          payload.Hours,
		Energy:         payload.Energy,
		Vibes:          strings.Join(payload.Vibes, ", "),
		AvoidList:      payload.AvoidList,
		TopGenres:      strings.Join(brief.TopGenres, ", "),
		BPMRanges:      strings.Join(brief.BPMRanges, ", "),
		LikedPlaylists: payload.LikedPlaylists,
		ApprovalURL:    approvalURL,
		Prebuilt:       remoteScheduleID != "",
		BriefID:        briefID,
	})
	if err != nil {
		return fmt.Errorf("render submit email: %w", err)
	}
	subject := fmt.Sprintf("New music brief: %s", payload.VenueName)
	if err := s.mailer.Send(ctx, s.notify, subject, body.String()); err != nil {
		return fmt.Errorf("send submit email: %w", err)
	}
	return nil
}
