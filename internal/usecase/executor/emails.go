package executor

import (
	"fmt"
	"html/template"
	"strings"

	"music-concierge/internal/domain"
)

var followUpTmpl = template.Must(template.New("followup").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #1a7f64;">{{.Heading}}</h2>
  <p>Hi {{.Name}},</p>
  {{range .Paragraphs}}<p>{{.}}</p>{{end}}
  <p>Warm regards,<br>The BMAsia music design team</p>
  <img src="{{.PixelURL}}" width="1" height="1" alt="" style="display:none;">
</body>
</html>`))

type followUpData struct {
	Heading    string
	Name       string
	Paragraphs []string
	PixelURL   string
}

// renderFollowUp builds the 7-day check-in or 30-day refresh email with
// its open-tracking pixel.
func renderFollowUp(job domain.FollowUpJob, baseURL string) (subject, body string) {
	name := strings.TrimSpace(job.ContactName)
	if name == "" {
		name = "there"
	}
	data := followUpData{
		Name:     name,
		PixelURL: baseURL + "/follow-up/track/" + job.TrackingID,
	}
	switch job.Type {
	case domain.FollowUp30Day:
		subject = fmt.Sprintf("A month of music at %s — time for a refresh?", job.VenueName)
		data.Heading = "How is the soundtrack holding up?"
		data.Paragraphs = []string{
			fmt.Sprintf("It has been a month since we designed the music for %s.", job.VenueName),
			"Seasons, menus and crowds shift; if the atmosphere should shift with them, reply to this email and we will refresh the schedule.",
		}
	default:
		subject = fmt.Sprintf("Checking in on the music at %s", job.VenueName)
		data.Heading = "How does it sound?"
		data.Paragraphs = []string{
			fmt.Sprintf("A week ago we set up the music schedule for %s.", job.VenueName),
			"If anything feels off at a certain hour or in a certain zone, reply and we will fine-tune it.",
		}
	}
	var b strings.Builder
	_ = followUpTmpl.Execute(&b, data)
	return subject, b.String()
}
