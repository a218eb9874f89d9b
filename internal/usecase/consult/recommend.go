package consult

import (
	"context"
	"encoding/json"
	"strings"

	"music-concierge/internal/domain"
	"music-concierge/internal/infra/anthropic"
	"music-concierge/internal/infra/metrics"
	"music-concierge/internal/usecase/matcher"
)

const recommendSystemPrompt = `You are a music curator. Given a venue brief and a playlist catalog,
pick the best playlists per daypart. Reply with ONLY a JSON object of
the form {"recommendations":[{"playlistId":"...","daypart":"...",
"reason":"...","matchScore":70}],"designerNotes":"..."} and nothing
else. Every playlistId must come from the catalog.`

type llmEnvelope struct {
	Recommendations []struct {
		PlaylistID string `json:"playlistId"`
		Daypart    string `json:"daypart"`
		Reason     string `json:"reason"`
		MatchScore int    `json:"matchScore"`
	} `json:"recommendations"`
	DesignerNotes string `json:"designerNotes"`
}

// DirectRecommend serves the non-chat recommendation path: one LLM
// attempt that must return a strict JSON envelope, with the
// deterministic matcher as fallback on any error.
func (e *Engine) DirectRecommend(ctx context.Context, req matcher.PlanRequest) matcher.Plan {
	metrics.RecommendationsTotal.Inc()
	plan := e.matcher.BuildPlan(req)
	if e.llm == nil {
		return plan
	}

	prompt, err := e.buildRecommendPrompt(req, plan)
	if err != nil {
		return plan
	}
	resp, err := e.llm.CreateMessage(ctx, anthropic.MessagesRequest{
		Model:     e.model,
		MaxTokens: maxTokens,
		System:    recommendSystemPrompt,
		Messages:  []anthropic.Message{anthropic.NewTextMessage("user", prompt)},
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("consult: llm recommend failed, using matcher")
		return plan
	}
	envelope, ok := parseEnvelope(resp)
	if !ok {
		e.log.Warn().Msg("consult: llm recommend envelope unparseable, using matcher")
		return plan
	}
	return e.applyEnvelope(plan, envelope)
}

func (e *Engine) buildRecommendPrompt(req matcher.PlanRequest, plan matcher.Plan) (string, error) {
	payload := map[string]any{
		"brief":    req.Base,
		"catalog":  e.matcherCatalog(),
		"dayparts": daypartsPayload(plan.Dayparts),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (e *Engine) matcherCatalog() []map[string]string {
	playlists := e.matcher.Catalog().Playlists
	out := make([]map[string]string, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, map[string]string{"id": p.ID, "name": p.Name, "description": p.Description})
	}
	return out
}

// parseEnvelope extracts the strict JSON reply, tolerating a single
// wrapping code fence. Anything else falls back to the matcher.
func parseEnvelope(resp anthropic.MessagesResponse) (llmEnvelope, bool) {
	blocks, err := resp.Blocks()
	if err != nil {
		return llmEnvelope{}, false
	}
	var text string
	for _, b := range blocks {
		if b.Type == anthropic.BlockText {
			text += b.Text
		}
	}
	text = strings.TrimSpace(text)
	if after, found := strings.CutPrefix(text, "```json"); found {
		text = after
	} else if after, found := strings.CutPrefix(text, "```"); found {
		text = after
	}
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))

	var envelope llmEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return llmEnvelope{}, false
	}
	if len(envelope.Recommendations) == 0 {
		return llmEnvelope{}, false
	}
	return envelope, true
}

// applyEnvelope overlays the model's picks onto the deterministic plan,
// keeping only ids that exist in the catalog. An empty overlay keeps
// the matcher's plan.
func (e *Engine) applyEnvelope(plan matcher.Plan, envelope llmEnvelope) matcher.Plan {
	labels := make(map[string]string)
	for _, zone := range plan.Dayparts.Zones() {
		for _, dp := range plan.Dayparts.For(zone) {
			labels[dp.Key] = dp.Label
		}
	}

	var valid []domain.Recommendation
	for _, r := range envelope.Recommendations {
		p, ok := e.matcher.Catalog().ByID(r.PlaylistID)
		if !ok {
			continue
		}
		score := r.MatchScore
		if score < 55 {
			score = 55
		}
		if score > 95 {
			score = 95
		}
		valid = append(valid, domain.Recommendation{
			PlaylistID:   p.ID,
			PlaylistName: p.Name,
			Daypart:      r.Daypart,
			DaypartLabel: labels[r.Daypart],
			Reason:       r.Reason,
			MatchScore:   score,
		})
	}
	if len(valid) == 0 {
		return plan
	}
	plan.Recommendations = valid
	if envelope.DesignerNotes != "" {
		plan.DesignerNotes = envelope.DesignerNotes
	}
	return plan
}
