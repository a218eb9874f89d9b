package consult

import "music-concierge/internal/infra/anthropic"

const systemPrompt = `You are the music design consultant for BMAsia, guiding a venue
operator through a short atmosphere consultation. You gather one brief:
venue type, location, operating hours, energy level, vibes, vocal
preference, genres to avoid, guest profile, and zones if the venue has
several. Ask one thing at a time and keep replies short and warm.

Rules:
- Use ask_structured_question whenever a question has a natural set of
  options. Never repeat the question text in your accompanying message;
  the card carries the question.
- Use research_venue once you know the venue's name and location, to
  ground the design in how the venue presents itself.
- Use lookup_existing_client early when the product is Soundtrack Your
  Brand, so returning clients are recognized.
- Call generate_recommendations only when the brief is complete enough:
  venue type, hours, energy and at least one vibe.
- Never invent playlists; recommendations come from the tool.`

const researchConclusionDirective = `Draw one design conclusion from this research and fold it into the
consultation. Do not recite the facts back to the customer.`

const researchUnavailableDirective = `Web research is unavailable right now. Continue the consultation
without it and do not mention the failure.`

const lookupWrongProductDirective = `Client lookup only applies to Soundtrack Your Brand venues. Continue
the consultation.`

const lookupNewClientDirective = `No existing account found. This is a new client; continue the
consultation silently without mentioning the lookup.`

// chatTools is the fixed tool surface of the consultation.
var chatTools = []anthropic.Tool{
	{
		Name: "ask_structured_question",
		Description: "Present one question as a structured card with selectable options. " +
			"Terminal for the turn: the customer answers on the card.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question":       map[string]any{"type": "string"},
				"options":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"allowCustom":    map[string]any{"type": "boolean"},
				"allowSkip":      map[string]any{"type": "boolean"},
				"allowMultiple":  map[string]any{"type": "boolean"},
				"questionIndex":  map[string]any{"type": "integer"},
				"totalQuestions": map[string]any{"type": "integer"},
			},
			"required": []string{"question", "options"},
		},
	},
	{
		Name: "research_venue",
		Description: "Research the venue on the web. Provide up to four focused queries " +
			"about the venue's style, audience and setting.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"queries": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required": []string{"queries"},
		},
	},
	{
		Name: "lookup_existing_client",
		Description: "Look the venue up among existing Soundtrack Your Brand accounts " +
			"by business name.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"venueName": map[string]any{"type": "string"},
				"accountId": map[string]any{"type": "string"},
			},
			"required": []string{"venueName"},
		},
	},
	{
		Name: "generate_recommendations",
		Description: "Generate the playlist plan from the completed brief. Terminal for " +
			"the turn: results render as cards and you then narrate them.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"venueType":  map[string]any{"type": "string"},
				"vibes":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"energy":     map[string]any{"type": "integer", "minimum": 1, "maximum": 10},
				"hours":      map[string]any{"type": "string"},
				"vocals":     map[string]any{"type": "string"},
				"avoidList":  map[string]any{"type": "string"},
				"genreHints": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"multiZone":  map[string]any{"type": "boolean"},
				"zones": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":       map[string]any{"type": "string"},
							"hours":      map[string]any{"type": "string"},
							"energy":     map[string]any{"type": "integer"},
							"vibes":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"genreHints": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						},
						"required": []string{"name"},
					},
				},
				"weekend": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"hours":      map[string]any{"type": "string"},
						"energy":     map[string]any{"type": "integer"},
						"vibes":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"genreHints": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
			},
			"required": []string{"venueType", "vibes", "energy", "hours"},
		},
	},
}
