package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
	"github.com/mmcgeh6/acjobs-engine/internal/geodata"
	"github.com/mmcgeh6/acjobs-engine/internal/logger"
	"github.com/mmcgeh6/acjobs-engine/internal/prompts"
)

// LocationParser standardizes raw listing locations. The cascade is LLM
// extraction (with per-field regex salvage of a malformed reply), then
// rule-based extraction from the raw fields, then the raw fields verbatim.
// Parse never fails: a listing with an unusable location still flows through
// the pipeline with whatever could be recovered.
type LocationParser struct {
	client   *resty.Client
	model    string
	endpoint string
	enabled  bool
	limiter  *rate.Limiter
	logger   *logger.Logger
}

// LocationParserConfig holds configuration for the location parser.
type LocationParserConfig struct {
	Enabled           bool
	Model             string
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
}

// ParseInput carries the listing fields the parser may draw on.
type ParseInput struct {
	Title      string
	URL        string
	RawCity    string
	RawState   string
	RawCountry string
	Snippet    string
}

// NewLocationParser creates a new location parser.
// Parameters:
//   - cfg: parser configuration including model and API key.
//   - log: logger for fallback diagnostics.
//
// Returns:
//   - *LocationParser: initialized parser.
func NewLocationParser(cfg *LocationParserConfig, log *logger.Logger) *LocationParser {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// Set timeout to prevent hanging requests
	client.SetTimeout(30 * time.Second)

	// Default to OpenAI compatible endpoint if not specified
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}

	enabled := cfg.Enabled && cfg.APIKey != ""

	return &LocationParser{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
		enabled:  enabled,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   log,
	}
}

// log returns a logger from context if available, otherwise the parser's own.
func (p *LocationParser) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return p.logger
}

// OpenAI-compatible Chat Completion API request/response structures
type llmRequest struct {
	Model       string       `json:"model"`
	Messages    []llmMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float32      `json:"temperature"`
}

type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// parsedLocationJSON mirrors the JSON shape the model is told to produce.
type parsedLocationJSON struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Parse standardizes the location of one listing. It never returns an error;
// each cascade step falls through to the next on failure, and a completely
// unusable input yields an empty location.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - in: listing fields to draw on.
//
// Returns:
//   - domain.ParsedLocation: best available standardized location.
func (p *LocationParser) Parse(ctx context.Context, in ParseInput) domain.ParsedLocation {
	if p.enabled {
		loc, err := p.llmParse(ctx, in)
		if err == nil {
			return p.fillFromRaw(loc, in)
		}
		p.log(ctx).WithError(err).WithField("title", in.Title).
			Warn("LLM location parse failed, falling back to rule-based extraction")
	}

	loc := p.ruleParse(in)
	return p.fillFromRaw(loc, in)
}

// llmParse asks the model for a standardized location and validates the answer.
func (p *LocationParser) llmParse(ctx context.Context, in ParseInput) (domain.ParsedLocation, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return domain.ParsedLocation{}, fmt.Errorf("rate limiter: %w", err)
	}

	req := llmRequest{
		Model: p.model,
		Messages: []llmMessage{
			{Role: "system", Content: prompts.LocationSystemPrompt},
			{Role: "user", Content: prompts.LocationUserPrompt(
				in.Title, in.URL, in.RawCity, in.RawState, in.RawCountry, in.Snippet)},
		},
		MaxTokens:   120,
		Temperature: 0,
	}

	var resp llmResponse
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(p.endpoint)
	if err != nil {
		return domain.ParsedLocation{}, fmt.Errorf("failed to call LLM API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return domain.ParsedLocation{}, fmt.Errorf("LLM API returned error: %s", errorMsg)
	}
	if resp.Error != nil {
		return domain.ParsedLocation{}, fmt.Errorf("LLM API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return domain.ParsedLocation{}, fmt.Errorf("no choices in LLM response")
	}

	return parseLocationResponse(resp.Choices[0].Message.Content)
}

// parseLocationResponse cuts the location out of the model output. Models
// wander: some wrap the JSON in code fences, some prepend reasoning in
// <think> tags, some add prose, some emit JSON too broken to unmarshal. The
// first balanced JSON object wins; failing that, per-field regex salvage is
// tried before giving up.
func parseLocationResponse(content string) (domain.ParsedLocation, error) {
	// Drop thinking blocks
	if start := strings.Index(content, "<think>"); start != -1 {
		if end := strings.Index(content, "</think>"); end != -1 {
			content = content[end+len("</think>"):]
		}
	}
	// Drop code fences
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")

	if loc, err := extractJSONLocation(content); err == nil {
		return validateAndFix(loc), nil
	}
	if loc, ok := looseExtract(content); ok {
		return validateAndFix(loc), nil
	}
	return domain.ParsedLocation{}, fmt.Errorf("no location found in response")
}

// extractJSONLocation unmarshals the first balanced JSON object in content.
func extractJSONLocation(content string) (domain.ParsedLocation, error) {
	jsonStart := strings.Index(content, "{")
	if jsonStart == -1 {
		return domain.ParsedLocation{}, fmt.Errorf("no JSON found in response")
	}

	braceCount := 0
	jsonEnd := -1
findJSON:
	for i := jsonStart; i < len(content); i++ {
		switch content[i] {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				jsonEnd = i + 1
				break findJSON
			}
		}
	}
	if jsonEnd == -1 {
		return domain.ParsedLocation{}, fmt.Errorf("incomplete JSON in response")
	}

	var raw parsedLocationJSON
	if err := json.Unmarshal([]byte(content[jsonStart:jsonEnd]), &raw); err != nil {
		return domain.ParsedLocation{}, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return domain.ParsedLocation{
		City:    raw.City,
		State:   raw.State,
		Country: raw.Country,
	}, nil
}

// looseFieldRes builds the salvage patterns for one field: a quoted
// JSON-style fragment, then a bare "key: value" fragment.
func looseFieldRes(field string) [2]*regexp.Regexp {
	return [2]*regexp.Regexp{
		regexp.MustCompile(`(?i)"` + field + `"\s*:\s*"([^"]*)"`),
		regexp.MustCompile(`(?i)\b` + field + `\b['"]?\s*[:=]\s*([A-Za-z][A-Za-z .'-]*)`),
	}
}

var (
	looseCityRes    = looseFieldRes("city")
	looseStateRes   = looseFieldRes("state")
	looseCountryRes = looseFieldRes("country")
)

// looseExtract recovers what it can from a response that did not parse as
// JSON. Each field is matched independently, so a mangled state does not
// block recovering the city.
func looseExtract(content string) (domain.ParsedLocation, bool) {
	var loc domain.ParsedLocation
	found := false
	for _, f := range []struct {
		dst *string
		res [2]*regexp.Regexp
	}{
		{&loc.City, looseCityRes},
		{&loc.State, looseStateRes},
		{&loc.Country, looseCountryRes},
	} {
		for _, re := range f.res {
			m := re.FindStringSubmatch(content)
			if m == nil {
				continue
			}
			if v := strings.TrimSpace(m[1]); v != "" && !isNullWord(v) {
				*f.dst = v
				found = true
			}
			break
		}
	}
	return loc, found
}

// isNullWord reports whether a salvaged value is one of the ways models spell
// "no answer".
func isNullWord(s string) bool {
	switch strings.ToLower(s) {
	case "null", "none", "n/a", "unknown":
		return true
	}
	return false
}

// validateAndFix tidies a parsed location without changing its meaning: the
// city is title-cased and known US states get canonical casing in whichever
// form they arrived, so a code stays a code and a full name stays a full
// name. The country is never rewritten to a different spelling (the geocoder
// recognizes the US variants itself); it is only defaulted when empty and
// the state is unambiguously a US state.
func validateAndFix(loc domain.ParsedLocation) domain.ParsedLocation {
	loc.City = titleCase(strings.TrimSpace(loc.City))
	loc.State = canonicalState(loc.State)
	loc.Country = canonicalCountry(loc.Country)
	if loc.Country == "" && geodata.IsUSState(loc.State) {
		loc.Country = "USA"
	}
	return loc
}

// canonicalState fixes the casing of a state without changing its form: US
// codes come back uppercased, US names in their official casing, anything
// else title-cased.
func canonicalState(s string) string {
	trimmed := strings.Join(strings.Fields(s), " ")
	switch {
	case trimmed == "":
		return ""
	case geodata.IsStateCode(trimmed):
		return strings.ToUpper(trimmed)
	case geodata.IsUSState(trimmed):
		return geodata.NameFor(trimmed)
	}
	return titleCase(trimmed)
}

// canonicalCountry fixes the casing of a country: the short US forms come
// back uppercased, everything else title-cased.
func canonicalCountry(s string) string {
	trimmed := strings.Join(strings.Fields(s), " ")
	if trimmed == "" {
		return ""
	}
	if geodata.IsUSCountry(trimmed) && len(trimmed) <= len("u.s.a.") {
		return strings.ToUpper(trimmed)
	}
	return titleCase(trimmed)
}

// cityStateRe matches "City, ST", "City, ST 78701" and "City, State Name".
var cityStateRe = regexp.MustCompile(`^\s*([^,]+?)\s*,\s*([A-Za-z][A-Za-z .]*?)(?:\s+\d{5}(?:-\d{4})?)?\s*$`)

// ruleParse extracts what it can from the raw fields without the model.
func (p *LocationParser) ruleParse(in ParseInput) domain.ParsedLocation {
	var loc domain.ParsedLocation

	// "Austin, TX 78701" style raw city fields carry the state too.
	if m := cityStateRe.FindStringSubmatch(in.RawCity); m != nil {
		candidate := geodata.AbbreviationFor(m[2])
		if geodata.IsStateCode(candidate) {
			loc.City = titleCase(strings.TrimSpace(m[1]))
			loc.State = candidate
		}
	}
	if loc.City == "" && in.RawCity != "" && !strings.Contains(in.RawCity, ",") {
		loc.City = titleCase(strings.TrimSpace(in.RawCity))
	}
	if loc.State == "" && in.RawState != "" {
		candidate := geodata.AbbreviationFor(in.RawState)
		if geodata.IsStateCode(candidate) {
			loc.State = candidate
		}
	}
	if country := strings.TrimSpace(in.RawCountry); geodata.IsUSCountry(country) {
		loc.Country = "USA"
	} else {
		loc.Country = country
	}
	if loc.Country == "" && geodata.IsStateCode(loc.State) {
		loc.Country = "USA"
	}
	return loc
}

// fillFromRaw fills any still-empty field with the raw input verbatim so no
// information is lost even when nothing could be standardized.
func (p *LocationParser) fillFromRaw(loc domain.ParsedLocation, in ParseInput) domain.ParsedLocation {
	if loc.City == "" {
		loc.City = strings.TrimSpace(in.RawCity)
	}
	if loc.State == "" {
		loc.State = strings.TrimSpace(in.RawState)
	}
	if loc.Country == "" {
		loc.Country = strings.TrimSpace(in.RawCountry)
	}
	return loc
}

// titleCase uppercases the first letter of each word, keeping connective
// words lowercase. Interior casing is preserved so names like McAllen survive.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if i > 0 {
			switch strings.ToLower(w) {
			case "of", "the", "and":
				words[i] = strings.ToLower(w)
				continue
			}
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
