package consult

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type researchInput struct {
	Queries []string `json:"queries"`
}

// researchVenue runs up to four searches sequentially and condenses the
// snippets. Failures degrade to a benign directive; research is never
// fatal to a consultation.
func (e *Engine) researchVenue(ctx context.Context, raw json.RawMessage) string {
	if e.search == nil || !e.search.Configured() {
		return researchUnavailableDirective
	}
	var input researchInput
	if err := json.Unmarshal(raw, &input); err != nil || len(input.Queries) == 0 {
		return researchUnavailableDirective
	}
	queries := input.Queries
	if len(queries) > searchQueryMax {
		queries = queries[:searchQueryMax]
	}

	var b strings.Builder
	found := false
	for _, query := range queries {
		results, err := e.search.Search(ctx, query, searchResultMax)
		if err != nil {
			e.log.Warn().Err(err).Str("query", query).Msg("consult: research query failed")
			continue
		}
		for _, r := range results {
			b.WriteString(r.Title + ": " + r.Description + "\n")
			found = true
		}
	}
	if !found {
		return researchUnavailableDirective
	}
	return "Research summary:\n" + b.String() + "\n" + researchConclusionDirective
}

type lookupInput struct {
	VenueName string `json:"venueName"`
	AccountID string `json:"accountId"`
}

// lookupClient consults the account cache and shapes a directive for
// the model. Errors degrade to the new-client path; lookup is never
// fatal.
func (e *Engine) lookupClient(ctx context.Context, raw json.RawMessage, product string) string {
	if product != "" && product != "syb" {
		return lookupWrongProductDirective
	}
	var input lookupInput
	if err := json.Unmarshal(raw, &input); err != nil || strings.TrimSpace(input.VenueName) == "" {
		return lookupNewClientDirective
	}

	matches, err := e.accounts.Search(ctx, input.VenueName)
	if err != nil {
		e.log.Warn().Err(err).Str("venue", input.VenueName).Msg("consult: account lookup failed")
		return lookupNewClientDirective
	}

	switch {
	case len(matches) == 1:
		account := matches[0]
		var b strings.Builder
		fmt.Fprintf(&b, "Existing client found: %s (accountId %s). ", account.BusinessName, account.ID)
		zones, err := e.platform.Zones(ctx, account.ID)
		if err == nil && len(zones) > 0 {
			b.WriteString("Their sound zones: ")
			for i, z := range zones {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(z.Name)
			}
			b.WriteString(". ")
		}
		b.WriteString("Welcome them back by name and confirm whether this consultation is for one of these zones.")
		return b.String()

	case len(matches) >= 2 && len(matches) <= 5:
		var b strings.Builder
		b.WriteString("ACCOUNT ID MAPPING — several accounts match. Present a structured question so the customer picks their venue, then echo the chosen accountId in your next lookup_existing_client call:\n")
		for _, a := range matches {
			fmt.Fprintf(&b, "accountId %s = %s\n", a.ID, a.BusinessName)
		}
		return b.String()

	case len(matches) >= 6:
		return "Too many accounts match that name. Ask the customer to copy the exact business name as it appears in their Soundtrack Your Brand app, then look it up again."
	}

	// Nothing on the platform; check our own history.
	if e.venues != nil {
		if venue, err := e.venues.GetVenue(ctx, input.VenueName); err == nil {
			return fmt.Sprintf("We have worked with %s before (%s, %s). Welcome them back warmly.",
				venue.VenueName, venue.VenueType, venue.Location)
		}
	}
	return lookupNewClientDirective
}
