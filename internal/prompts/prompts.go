package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Location Extraction Prompts
// ============================================================================

// LocationSystemPrompt defines the role and rules for location extraction.
// The model must answer with bare JSON so the parser can cut it out even when
// the model wraps it in prose or code fences.
const LocationSystemPrompt = `You are a job listing location normalizer. Given details of a job listing, extract the standardized location.

Rules:
- Respond with a single JSON object and nothing else: {"city": ..., "state": ..., "country": ...}
- "city": the city name, title-cased. null if no city can be determined.
- "state": the full state name for US states (e.g. "Texas", "California"). For non-US regions use the region name as given. null if unknown.
- "country": the country name as commonly written (e.g. "United States", "Canada"). null if unknown.
- Remote listings: use the city/state the listing anchors to if any, otherwise nulls.
- Never invent a location that is not supported by the input.`

// locationUserPromptTemplate carries the listing fields the model may use.
const locationUserPromptTemplate = `Extract the location for this job listing.

Title: %s
URL: %s
Raw city: %s
Raw state: %s
Raw country: %s
Description snippet: %s

JSON:`

// LocationUserPrompt formats the user prompt for one listing. The snippet is
// clipped so a long description cannot blow up the request.
func LocationUserPrompt(title, url, rawCity, rawState, rawCountry, snippet string) string {
	const maxSnippet = 500
	snippet = strings.TrimSpace(snippet)
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}
	return fmt.Sprintf(locationUserPromptTemplate, title, url, rawCity, rawState, rawCountry, snippet)
}
