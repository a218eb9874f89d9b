package syb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"music-concierge/internal/domain"
	"music-concierge/internal/infra/metrics"
)

const accountsPageSize = 200

// Client drives the music platform's GraphQL API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

var _ domain.MusicPlatform = (*Client)(nil)

// NewClient builds a platform client authenticated by a pre-shared token.
func NewClient(token, baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

func (c *Client) execute(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	if c.token == "" {
		return errors.New("syb: api token not configured")
	}
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("syb: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("syb: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("syb", operation, "graphql", start, err)
		return fmt.Errorf("syb: do request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("syb", operation, "graphql", start, err)
		return fmt.Errorf("syb: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("syb: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("syb", operation, "graphql", start, err)
		return err
	}
	var envelope graphqlResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		metrics.ObserveNetworkRequest("syb", operation, "graphql", start, err)
		return fmt.Errorf("syb: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		err = fmt.Errorf("syb: %s", envelope.Errors[0].Message)
		metrics.ObserveNetworkRequest("syb", operation, "graphql", start, err)
		return err
	}
	metrics.ObserveNetworkRequest("syb", operation, "graphql", start, nil)
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("syb: decode data: %w", err)
	}
	return nil
}

const accountsQuery = `query Accounts($first: Int!, $after: String) {
  me {
    ... on PublicAPIClient {
      accounts(first: $first, after: $after) {
        pageInfo { hasNextPage endCursor }
        edges { node { id businessName } }
      }
    }
  }
}`

// AccountsPage fetches one page of platform accounts.
func (c *Client) AccountsPage(ctx context.Context, cursor string) (domain.AccountsPage, error) {
	variables := map[string]any{"first": accountsPageSize}
	if cursor != "" {
		variables["after"] = cursor
	}
	var data struct {
		Me struct {
			Accounts struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Edges []struct {
					Node struct {
						ID           string `json:"id"`
						BusinessName string `json:"businessName"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"accounts"`
		} `json:"me"`
	}
	if err := c.execute(ctx, "accounts_page", accountsQuery, variables, &data); err != nil {
		return domain.AccountsPage{}, err
	}
	page := domain.AccountsPage{
		HasNext:   data.Me.Accounts.PageInfo.HasNextPage,
		EndCursor: data.Me.Accounts.PageInfo.EndCursor,
	}
	for _, edge := range data.Me.Accounts.Edges {
		page.Accounts = append(page.Accounts, domain.Account{ID: edge.Node.ID, BusinessName: edge.Node.BusinessName})
	}
	return page, nil
}

const zonesQuery = `query Zones($accountId: ID!) {
  account(id: $accountId) {
    soundZones(first: 100) {
      edges { node { id name location { id name } } }
    }
  }
}`

// Zones lists the sound zones of one account, up to 100.
func (c *Client) Zones(ctx context.Context, accountID string) ([]domain.Zone, error) {
	var data struct {
		Account struct {
			SoundZones struct {
				Edges []struct {
					Node struct {
						ID       string `json:"id"`
						Name     string `json:"name"`
						Location struct {
							ID   string `json:"id"`
							Name string `json:"name"`
						} `json:"location"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"soundZones"`
		} `json:"account"`
	}
	if err := c.execute(ctx, "zones", zonesQuery, map[string]any{"accountId": accountID}, &data); err != nil {
		return nil, err
	}
	var zones []domain.Zone
	for _, edge := range data.Account.SoundZones.Edges {
		zones = append(zones, domain.Zone{
			ID:           edge.Node.ID,
			Name:         edge.Node.Name,
			LocationID:   edge.Node.Location.ID,
			LocationName: edge.Node.Location.Name,
		})
	}
	return zones, nil
}

const createScheduleMutation = `mutation CreateSchedule($input: CreateScheduleInput!) {
  createSchedule(input: $input) {
    schedule { id }
  }
}`

// CreateSchedule pre-builds a weekly schedule on the platform and
// returns its id.
func (c *Client) CreateSchedule(ctx context.Context, input domain.CreateScheduleInput) (string, error) {
	slots := make([]map[string]any, 0, len(input.Slots))
	for _, slot := range input.Slots {
		slots = append(slots, map[string]any{
			"rrule":       slot.RRule,
			"start":       slot.Start,
			"duration":    slot.Duration,
			"playlistIds": slot.PlaylistIDs,
		})
	}
	variables := map[string]any{"input": map[string]any{
		"ownerId":     input.OwnerID,
		"name":        input.Name,
		"presentAs":   input.PresentAs,
		"description": input.Description,
		"slots":       slots,
	}}
	var data struct {
		CreateSchedule struct {
			Schedule struct {
				ID string `json:"id"`
			} `json:"schedule"`
		} `json:"createSchedule"`
	}
	if err := c.execute(ctx, "create_schedule", createScheduleMutation, variables, &data); err != nil {
		return "", err
	}
	if data.CreateSchedule.Schedule.ID == "" {
		return "", errors.New("syb: createSchedule returned no id")
	}
	return data.CreateSchedule.Schedule.ID, nil
}

const addToLibraryMutation = `mutation AddToLibrary($input: AddToMusicLibraryInput!) {
  addToMusicLibrary(input: $input) {
    musicLibrary { id }
  }
}`

// AddToMusicLibrary files a source under an account library. Failures
// are non-fatal to callers.
func (c *Client) AddToMusicLibrary(ctx context.Context, parentID, sourceID string) error {
	variables := map[string]any{"input": map[string]any{
		"parent": parentID,
		"source": sourceID,
	}}
	return c.execute(ctx, "add_to_music_library", addToLibraryMutation, variables, nil)
}

const assignSourceMutation = `mutation AssignSource($input: SoundZoneAssignSourceInput!) {
  soundZoneAssignSource(input: $input) {
    soundZones
  }
}`

// AssignSource points zones at a source. The same mutation binds a
// schedule or assigns a playlist directly.
func (c *Client) AssignSource(ctx context.Context, zoneIDs []string, sourceID string) error {
	variables := map[string]any{"input": map[string]any{
		"soundZones": zoneIDs,
		"source":     sourceID,
	}}
	return c.execute(ctx, "assign_source", assignSourceMutation, variables, nil)
}
