package consult

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"music-concierge/internal/domain"
	"music-concierge/internal/infra/anthropic"
	"music-concierge/internal/infra/metrics"
	"music-concierge/internal/usecase/accounts"
	"music-concierge/internal/usecase/matcher"
)

const (
	maxToolRounds   = 8
	maxTokens       = 4096
	searchQueryMax  = 4
	searchResultMax = 5
)

// llmClient is the slice of the Anthropic client the engine needs.
type llmClient interface {
	CreateMessage(ctx context.Context, req anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
	StreamMessage(ctx context.Context, req anthropic.MessagesRequest, onDelta func(string) error) (anthropic.MessagesResponse, error)
}

// VenueHistory is the local fallback for client lookup when the
// platform knows nothing.
type VenueHistory interface {
	GetVenue(ctx context.Context, venueName string) (domain.Venue, error)
}

// Engine runs the multi-turn, tool-calling consultation.
type Engine struct {
	llm      llmClient
	model    string
	search   domain.Searcher
	accounts *accounts.Cache
	platform domain.MusicPlatform
	venues   VenueHistory
	matcher  *matcher.Matcher
	log      zerolog.Logger
}

// NewEngine wires the consultation engine. venues may be nil when the
// database is not configured.
func NewEngine(llm llmClient, model string, search domain.Searcher, cache *accounts.Cache,
	platform domain.MusicPlatform, venues VenueHistory, m *matcher.Matcher, logger zerolog.Logger) *Engine {
	return &Engine{
		llm:      llm,
		model:    model,
		search:   search,
		accounts: cache,
		platform: platform,
		venues:   venues,
		matcher:  m,
		log:      logger,
	}
}

// ChatTurn is one prior plain-text exchange replayed by the client.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PendingToolUse is the structured-question blob the client echoes back
// with the customer's answer.
type PendingToolUse struct {
	ToolUseID        string          `json:"toolUseId"`
	AssistantContent json.RawMessage `json:"assistantContent"`
	Answer           string          `json:"answer"`
}

// TurnRequest is the body of one chat turn.
type TurnRequest struct {
	Messages       []ChatTurn      `json:"messages"`
	Message        string          `json:"message"`
	Product        string          `json:"product"`
	PendingToolUse *PendingToolUse `json:"pendingToolUse,omitempty"`
}

// Event is one SSE frame of the chat stream.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`

	ToolUseID        string          `json:"toolUseId,omitempty"`
	AssistantContent json.RawMessage `json:"assistantContent,omitempty"`
	Question         string          `json:"question,omitempty"`
	Options          []string        `json:"options,omitempty"`
	AllowCustom      bool            `json:"allowCustom,omitempty"`
	AllowSkip        bool            `json:"allowSkip,omitempty"`
	AllowMultiple    bool            `json:"allowMultiple,omitempty"`
	QuestionIndex    *int            `json:"questionIndex,omitempty"`
	TotalQuestions   *int            `json:"totalQuestions,omitempty"`

	Recommendations        []domain.Recommendation `json:"recommendations,omitempty"`
	Dayparts               any                     `json:"dayparts,omitempty"`
	DesignerNotes          string                  `json:"designerNotes,omitempty"`
	ExtractedBrief         map[string]any          `json:"extractedBrief,omitempty"`
	MultiZone              bool                    `json:"multiZone,omitempty"`
	ZoneNames              []string                `json:"zoneNames,omitempty"`
	WeekendDayparts        any                     `json:"weekendDayparts,omitempty"`
	WeekendRecommendations []domain.Recommendation `json:"weekendRecommendations,omitempty"`
}

// Emitter receives stream events; a write error aborts the turn.
type Emitter func(Event) error

// daypartsPayload renders a DaypartSet in the wire shape the client
// expects: a list for single zone, a map for multi-zone.
func daypartsPayload(set domain.DaypartSet) any {
	if set.ByZone != nil {
		return set.ByZone
	}
	return set.Single
}

// Run executes one chat turn to completion, emitting stream events as
// they become available. The caller emits the final done frame.
func (e *Engine) Run(ctx context.Context, req TurnRequest, emit Emitter) error {
	messages := e.buildHistory(req)

	for round := 0; round < maxToolRounds; round++ {
		resp, err := e.llm.CreateMessage(ctx, anthropic.MessagesRequest{
			Model:     e.model,
			MaxTokens: maxTokens,
			System:    systemPrompt,
			Tools:     chatTools,
			Messages:  messages,
		})
		if err != nil {
			return err
		}
		blocks, err := resp.Blocks()
		if err != nil {
			return err
		}

		var toolUses []anthropic.ContentBlock
		for _, b := range blocks {
			switch b.Type {
			case anthropic.BlockText:
				if strings.TrimSpace(b.Text) != "" {
					if err := emit(Event{Type: "text", Content: b.Text}); err != nil {
						return err
					}
				}
			case anthropic.BlockToolUse:
				toolUses = append(toolUses, b)
			}
		}
		if resp.StopReason != anthropic.StopToolUse || len(toolUses) == 0 {
			return nil
		}

		// Terminal tools end the turn; the client continues it.
		if q := findTool(toolUses, "ask_structured_question"); q != nil {
			return e.emitStructuredQuestion(emit, *q, resp.Content)
		}
		if g := findTool(toolUses, "generate_recommendations"); g != nil {
			return e.finishWithRecommendations(ctx, emit, messages, resp.Content, toolUses, *g, req.Product)
		}

		results := e.runTools(ctx, toolUses, req.Product)
		messages = append(messages,
			anthropic.Message{Role: "assistant", Content: resp.Content},
			anthropic.NewBlocksMessage("user", results),
		)
	}
	return fmt.Errorf("consult: tool loop did not settle")
}

// buildHistory reconstructs the conversation, replaying the echoed
// structured-question blob when one is pending.
func (e *Engine) buildHistory(req TurnRequest) []anthropic.Message {
	var messages []anthropic.Message
	for _, turn := range req.Messages {
		messages = append(messages, anthropic.NewTextMessage(turn.Role, turn.Content))
	}
	if p := req.PendingToolUse; p != nil {
		messages = append(messages,
			anthropic.Message{Role: "assistant", Content: p.AssistantContent},
			anthropic.NewBlocksMessage("user", []anthropic.ContentBlock{{
				Type:      anthropic.BlockToolResult,
				ToolUseID: p.ToolUseID,
				Content:   fmt.Sprintf("The customer selected: %q", p.Answer),
			}}),
		)
		return messages
	}
	messages = append(messages, anthropic.NewTextMessage("user", req.Message))
	return messages
}

func findTool(uses []anthropic.ContentBlock, name string) *anthropic.ContentBlock {
	for i := range uses {
		if uses[i].Name == name {
			return &uses[i]
		}
	}
	return nil
}

type structuredQuestionInput struct {
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	AllowCustom    bool     `json:"allowCustom"`
	AllowSkip      bool     `json:"allowSkip"`
	AllowMultiple  bool     `json:"allowMultiple"`
	QuestionIndex  *int     `json:"questionIndex"`
	TotalQuestions *int     `json:"totalQuestions"`
}

// emitStructuredQuestion relays the card and the opaque assistant blob
// the client must echo back.
func (e *Engine) emitStructuredQuestion(emit Emitter, use anthropic.ContentBlock, assistantContent json.RawMessage) error {
	var input structuredQuestionInput
	if err := json.Unmarshal(use.Input, &input); err != nil {
		return fmt.Errorf("consult: decode question input: %w", err)
	}
	return emit(Event{
		Type:             "structured_question",
		ToolUseID:        use.ID,
		AssistantContent: assistantContent,
		Question:         input.Question,
		Options:          input.Options,
		AllowCustom:      input.AllowCustom,
		AllowSkip:        input.AllowSkip,
		AllowMultiple:    input.AllowMultiple,
		QuestionIndex:    input.QuestionIndex,
		TotalQuestions:   input.TotalQuestions,
	})
}

type recommendationInput struct {
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

func (in recommendationInput) planRequest() matcher.PlanRequest {
	req := matcher.PlanRequest{
		Base: domain.BriefInput{
			VenueType:  in.VenueType,
			Vibes:      in.Vibes,
			Energy:     in.Energy,
			Hours:      in.Hours,
			Vocals:     in.Vocals,
			AvoidList:  in.AvoidList,
			GenreHints: in.GenreHints,
		},
		Weekend: in.Weekend,
	}
	if in.MultiZone {
		req.Zones = in.Zones
	}
	return req
}

func (in recommendationInput) extracted() map[string]any {
	out := map[string]any{
		"venueType": in.VenueType,
		"vibes":     in.Vibes,
		"energy":    in.Energy,
		"hours":     in.Hours,
	}
	if in.Vocals != "" {
		out["vocals"] = in.Vocals
	}
	if in.AvoidList != "" {
		out["avoidList"] = in.AvoidList
	}
	if len(in.GenreHints) > 0 {
		out["genreHints"] = in.GenreHints
	}
	if in.MultiZone {
		out["multiZone"] = true
		out["zones"] = in.Zones
	}
	return out
}

// finishWithRecommendations runs the matcher, emits the plan, and
// narrates it through a streamed follow-up call. Other tools batched in
// the same assistant turn contribute their results to that follow-up.
func (e *Engine) finishWithRecommendations(ctx context.Context, emit Emitter, messages []anthropic.Message,
	assistantContent json.RawMessage, toolUses []anthropic.ContentBlock, use anthropic.ContentBlock, product string) error {

	var input recommendationInput
	if err := json.Unmarshal(use.Input, &input); err != nil {
		return fmt.Errorf("consult: decode recommendation input: %w", err)
	}
	metrics.RecommendationsTotal.Inc()
	plan := e.matcher.BuildPlan(input.planRequest())

	event := Event{
		Type:            "recommendations",
		Recommendations: plan.Recommendations,
		Dayparts:        daypartsPayload(plan.Dayparts),
		DesignerNotes:   plan.DesignerNotes,
		ExtractedBrief:  input.extracted(),
		MultiZone:       plan.MultiZone,
		ZoneNames:       plan.ZoneNames,
	}
	if plan.WeekendDayparts != nil {
		event.WeekendDayparts = daypartsPayload(*plan.WeekendDayparts)
		event.WeekendRecommendations = plan.WeekendRecommendations
	}
	if err := emit(event); err != nil {
		return err
	}

	// Every batched tool gets its result in the same follow-up message.
	results := make([]anthropic.ContentBlock, 0, len(toolUses))
	for _, other := range toolUses {
		if other.ID == use.ID {
			results = append(results, anthropic.ContentBlock{
				Type:      anthropic.BlockToolResult,
				ToolUseID: use.ID,
				Content:   summarizePlan(plan),
			})
			continue
		}
		results = append(results, e.runTool(ctx, other, product))
	}

	followUp := append(append([]anthropic.Message(nil), messages...),
		anthropic.Message{Role: "assistant", Content: assistantContent},
		anthropic.NewBlocksMessage("user", results),
	)
	_, err := e.llm.StreamMessage(ctx, anthropic.MessagesRequest{
		Model:     e.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  followUp,
	}, func(delta string) error {
		return emit(Event{Type: "text_delta", Content: delta})
	})
	return err
}

// summarizePlan condenses the plan into the tool result the model
// narrates from.
func summarizePlan(plan matcher.Plan) string {
	var b strings.Builder
	b.WriteString("Recommendations generated and shown to the customer as cards. ")
	b.WriteString("Summarize the direction in two or three sentences; do not list every playlist.\n")
	for _, zone := range plan.Dayparts.Zones() {
		if zone != "" {
			fmt.Fprintf(&b, "Zone %s:\n", zone)
		}
		for _, dp := range plan.Dayparts.For(zone) {
			fmt.Fprintf(&b, "- %s (energy %d):", dp.Label, dp.Energy)
			for _, rec := range plan.Recommendations {
				if rec.Daypart == dp.Key && rec.ZoneName == zone {
					fmt.Fprintf(&b, " %s;", rec.PlaylistName)
				}
			}
			b.WriteString("\n")
		}
	}
	if len(plan.WeekendRecommendations) > 0 {
		b.WriteString("A separate weekend variant was also prepared.\n")
	}
	return b.String()
}

// runTools fans non-terminal tools out in parallel and returns their
// results in tool order.
func (e *Engine) runTools(ctx context.Context, uses []anthropic.ContentBlock, product string) []anthropic.ContentBlock {
	results := make([]anthropic.ContentBlock, len(uses))
	var wg sync.WaitGroup
	for i, use := range uses {
		wg.Add(1)
		go func(i int, use anthropic.ContentBlock) {
			defer wg.Done()
			results[i] = e.runTool(ctx, use, product)
		}(i, use)
	}
	wg.Wait()
	return results
}

func (e *Engine) runTool(ctx context.Context, use anthropic.ContentBlock, product string) anthropic.ContentBlock {
	var content string
	switch use.Name {
	case "research_venue":
		content = e.researchVenue(ctx, use.Input)
	case "lookup_existing_client":
		content = e.lookupClient(ctx, use.Input, product)
	default:
		content = fmt.Sprintf("Unknown tool %q; continue without it.", use.Name)
	}
	return anthropic.ContentBlock{Type: anthropic.BlockToolResult, ToolUseID: use.ID, Content: content}
}
