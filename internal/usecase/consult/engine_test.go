package consult

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"music-concierge/internal/domain"
	"music-concierge/internal/infra/anthropic"
	"music-concierge/internal/usecase/accounts"
	"music-concierge/internal/usecase/catalog"
	"music-concierge/internal/usecase/matcher"
)

type fakeLLM struct {
	responses []anthropic.MessagesResponse
	requests  []anthropic.MessagesRequest
	streamed  string
}

func (f *fakeLLM) CreateMessage(_ context.Context, req anthropic.MessagesRequest) (anthropic.MessagesResponse, error) {
	f.requests = append(f.requests, req)
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func (f *fakeLLM) StreamMessage(_ context.Context, req anthropic.MessagesRequest, onDelta func(string) error) (anthropic.MessagesResponse, error) {
	f.requests = append(f.requests, req)
	for _, token := range strings.Split(f.streamed, " ") {
		if err := onDelta(token + " "); err != nil {
			return anthropic.MessagesResponse{}, err
		}
	}
	return anthropic.MessagesResponse{Content: json.RawMessage(`[]`), StopReason: "end_turn"}, nil
}

type fakeSearcher struct {
	results []domain.SearchResult
	queries []string
}

func (f *fakeSearcher) Configured() bool { return true }
func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]domain.SearchResult, error) {
	f.queries = append(f.queries, query)
	return f.results, nil
}

type fakeZonePlatform struct {
	accounts []domain.Account
	zones    []domain.Zone
}

func (f *fakeZonePlatform) AccountsPage(context.Context, string) (domain.AccountsPage, error) {
	return domain.AccountsPage{Accounts: f.accounts}, nil
}
func (f *fakeZonePlatform) Zones(context.Context, string) ([]domain.Zone, error) {
	return f.zones, nil
}
func (f *fakeZonePlatform) CreateSchedule(context.Context, domain.CreateScheduleInput) (string, error) {
	return "", nil
}
func (f *fakeZonePlatform) AddToMusicLibrary(context.Context, string, string) error { return nil }
func (f *fakeZonePlatform) AssignSource(context.Context, []string, string) error    { return nil }

func blocksResponse(t *testing.T, stopReason string, blocks []anthropic.ContentBlock) anthropic.MessagesResponse {
	t.Helper()
	raw, err := json.Marshal(blocks)
	if err != nil {
		t.Fatalf("marshal blocks: %v", err)
	}
	return anthropic.MessagesResponse{Content: raw, StopReason: stopReason}
}

func testEngine(t *testing.T, llm *fakeLLM, searcher domain.Searcher, platform domain.MusicPlatform) *Engine {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "syb_playlists.json"))
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	cat, err := catalog.Parse(raw)
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	if platform == nil {
		platform = &fakeZonePlatform{}
	}
	return NewEngine(llm, "test-model", searcher, accounts.NewCache(platform), platform,
		nil, matcher.New(cat), zerolog.Nop())
}

func collect(events *[]Event) Emitter {
	return func(e Event) error {
		*events = append(*events, e)
		return nil
	}
}

func TestRunStructuredQuestion(t *testing.T) {
	questionInput, _ := json.Marshal(map[string]any{
		"question":    "What kind of venue is it?",
		"options":     []string{"Hotel", "Bar", "Cafe"},
		"allowCustom": true,
	})
	llm := &fakeLLM{responses: []anthropic.MessagesResponse{
		blocksResponse(t, anthropic.StopToolUse, []anthropic.ContentBlock{
			{Type: anthropic.BlockText, Text: "Let's start with the basics."},
			{Type: anthropic.BlockToolUse, ID: "tu_1", Name: "ask_structured_question", Input: questionInput},
		}),
	}}
	engine := testEngine(t, llm, nil, nil)

	var events []Event
	if err := engine.Run(context.Background(), TurnRequest{Message: "hi"}, collect(&events)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected text + structured_question, got %d events", len(events))
	}
	if events[0].Type != "text" {
		t.Errorf("first event %q, want text", events[0].Type)
	}
	q := events[1]
	if q.Type != "structured_question" || q.ToolUseID != "tu_1" {
		t.Fatalf("unexpected question event %+v", q)
	}
	if q.Question != "What kind of venue is it?" || len(q.Options) != 3 || !q.AllowCustom {
		t.Errorf("question fields not relayed: %+v", q)
	}
	if len(q.AssistantContent) == 0 {
		t.Error("assistant content blob must be echoed to the client")
	}
}

func TestRunPendingToolUseRoundTrip(t *testing.T) {
	llm := &fakeLLM{responses: []anthropic.MessagesResponse{
		blocksResponse(t, "end_turn", []anthropic.ContentBlock{
			{Type: anthropic.BlockText, Text: "Noted."},
		}),
	}}
	engine := testEngine(t, llm, nil, nil)

	blob, _ := json.Marshal([]anthropic.ContentBlock{{Type: anthropic.BlockToolUse, ID: "tu_9", Name: "ask_structured_question"}})
	var events []Event
	err := engine.Run(context.Background(), TurnRequest{
		PendingToolUse: &PendingToolUse{ToolUseID: "tu_9", AssistantContent: blob, Answer: "Bar"},
	}, collect(&events))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := llm.requests[0].Messages
	if len(msgs) != 2 {
		t.Fatalf("expected assistant blob + tool result, got %d messages", len(msgs))
	}
	if msgs[0].Role != "assistant" || string(msgs[0].Content) != string(blob) {
		t.Error("assistant blob must be replayed verbatim")
	}
	var resultBlocks []anthropic.ContentBlock
	if err := json.Unmarshal(msgs[1].Content, &resultBlocks); err != nil {
		t.Fatalf("decode tool result: %v", err)
	}
	if resultBlocks[0].ToolUseID != "tu_9" {
		t.Errorf("tool result id %q, want tu_9", resultBlocks[0].ToolUseID)
	}
	if want := `The customer selected: "Bar"`; resultBlocks[0].Content != want {
		t.Errorf("tool result content %q, want %q", resultBlocks[0].Content, want)
	}
}

func TestRunGenerateRecommendations(t *testing.T) {
	recInput, _ := json.Marshal(map[string]any{
		"venueType": "bar-lounge",
		"vibes":     []string{"sophisticated"},
		"energy":    7,
		"hours":     "17:00-02:00",
	})
	llm := &fakeLLM{
		responses: []anthropic.MessagesResponse{
			blocksResponse(t, anthropic.StopToolUse, []anthropic.ContentBlock{
				{Type: anthropic.BlockToolUse, ID: "tu_2", Name: "generate_recommendations", Input: recInput},
			}),
		},
		streamed: "Here is the direction we landed on.",
	}
	engine := testEngine(t, llm, nil, nil)

	var events []Event
	if err := engine.Run(context.Background(), TurnRequest{Message: "ready"}, collect(&events)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var recEvent *Event
	deltas := 0
	for i := range events {
		switch events[i].Type {
		case "recommendations":
			recEvent = &events[i]
		case "text_delta":
			deltas++
		}
	}
	if recEvent == nil {
		t.Fatal("expected a recommendations event")
	}
	if len(recEvent.Recommendations) == 0 {
		t.Error("recommendations event is empty")
	}
	if recEvent.ExtractedBrief["venueType"] != "bar-lounge" {
		t.Errorf("extracted brief not carried: %+v", recEvent.ExtractedBrief)
	}
	if deltas == 0 {
		t.Error("follow-up narration should stream as text_delta events")
	}
	// The follow-up call carries the tool result for the model to narrate.
	last := llm.requests[len(llm.requests)-1]
	var blocks []anthropic.ContentBlock
	if err := json.Unmarshal(last.Messages[len(last.Messages)-1].Content, &blocks); err != nil {
		t.Fatalf("decode follow-up: %v", err)
	}
	if blocks[0].ToolUseID != "tu_2" {
		t.Errorf("follow-up tool result id %q, want tu_2", blocks[0].ToolUseID)
	}
}

func TestRunResearchRoundTrip(t *testing.T) {
	researchInput, _ := json.Marshal(map[string]any{"queries": []string{"Blue Orchid Bangkok rooftop"}})
	llm := &fakeLLM{responses: []anthropic.MessagesResponse{
		blocksResponse(t, anthropic.StopToolUse, []anthropic.ContentBlock{
			{Type: anthropic.BlockToolUse, ID: "tu_3", Name: "research_venue", Input: researchInput},
		}),
		blocksResponse(t, "end_turn", []anthropic.ContentBlock{
			{Type: anthropic.BlockText, Text: "A refined rooftop crowd, then."},
		}),
	}}
	searcher := &fakeSearcher{results: []domain.SearchResult{
		{Title: "Blue Orchid", Description: "Rooftop bar with skyline views"},
	}}
	engine := testEngine(t, llm, searcher, nil)

	var events []Event
	if err := engine.Run(context.Background(), TurnRequest{Message: "it's the Blue Orchid"}, collect(&events)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(searcher.queries) != 1 {
		t.Fatalf("expected 1 search, got %d", len(searcher.queries))
	}
	if len(llm.requests) != 2 {
		t.Fatalf("expected a second LLM call with the tool result, got %d", len(llm.requests))
	}
	var blocks []anthropic.ContentBlock
	second := llm.requests[1].Messages
	if err := json.Unmarshal(second[len(second)-1].Content, &blocks); err != nil {
		t.Fatalf("decode tool results: %v", err)
	}
	if !strings.Contains(blocks[0].Content, "Blue Orchid: Rooftop bar with skyline views") {
		t.Errorf("research snippet missing from tool result: %q", blocks[0].Content)
	}
	if events[len(events)-1].Type != "text" {
		t.Errorf("final event %q, want the model's text", events[len(events)-1].Type)
	}
}

func TestResearchUnconfiguredDegrades(t *testing.T) {
	engine := testEngine(t, &fakeLLM{}, nil, nil)
	got := engine.researchVenue(context.Background(), json.RawMessage(`{"queries":["x"]}`))
	if got != researchUnavailableDirective {
		t.Errorf("unconfigured search should degrade, got %q", got)
	}
}

func TestLookupDisambiguation(t *testing.T) {
	platform := &fakeZonePlatform{accounts: []domain.Account{
		{ID: "a1", BusinessName: "Grand Hotel"},
		{ID: "a2", BusinessName: "Grand Hotel Riverside"},
		{ID: "a3", BusinessName: "Grand Hotel Airport"},
	}}
	engine := testEngine(t, &fakeLLM{}, nil, platform)
	got := engine.lookupClient(context.Background(), json.RawMessage(`{"venueName":"Grand Hotel"}`), "syb")
	if !strings.Contains(got, "ACCOUNT ID MAPPING") {
		t.Errorf("2-5 matches should produce the mapping block, got %q", got)
	}
	for _, id := range []string{"a1", "a2", "a3"} {
		if !strings.Contains(got, id) {
			t.Errorf("mapping block missing %s", id)
		}
	}
}

func TestLookupSingleMatchWelcomesBack(t *testing.T) {
	platform := &fakeZonePlatform{
		accounts: []domain.Account{{ID: "a1", BusinessName: "Blue Orchid"}},
		zones:    []domain.Zone{{ID: "z1", Name: "Rooftop"}, {ID: "z2", Name: "Lobby"}},
	}
	engine := testEngine(t, &fakeLLM{}, nil, platform)
	got := engine.lookupClient(context.Background(), json.RawMessage(`{"venueName":"Blue Orchid"}`), "syb")
	if !strings.Contains(got, "Blue Orchid") || !strings.Contains(got, "Rooftop") {
		t.Errorf("single match should list the account and zones, got %q", got)
	}
}

func TestLookupWrongProduct(t *testing.T) {
	engine := testEngine(t, &fakeLLM{}, nil, nil)
	got := engine.lookupClient(context.Background(), json.RawMessage(`{"venueName":"X"}`), "beatbreeze")
	if got != lookupWrongProductDirective {
		t.Errorf("beatbreeze lookup should short-circuit, got %q", got)
	}
}
