package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
	"github.com/mmcgeh6/acjobs-engine/internal/logger"
)

// newLLMServer serves one canned chat-completions body and captures the
// request for later assertions.
func newLLMServer(t *testing.T, status int, body string) (*httptest.Server, *llmRequest) {
	t.Helper()
	var got llmRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer token", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

// chatBody wraps model output in a chat-completions response envelope.
func chatBody(t *testing.T, content string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return string(body)
}

func TestParseUsesLLM(t *testing.T) {
	srv, gotReq := newLLMServer(t, http.StatusOK,
		chatBody(t, `{"city": "austin", "state": "texas", "country": null}`))

	parser := NewLocationParser(&LocationParserConfig{
		Enabled: true,
		Model:   "gpt-4o-mini",
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, logger.NewDefault())

	got := parser.Parse(context.Background(), ParseInput{
		Title: "Senior Engineer",
		URL:   "https://example.com/jobs/1",
	})

	want := domain.ParsedLocation{City: "Austin", State: "Texas", Country: "USA"}
	if got != want {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("request model = %q, want gpt-4o-mini", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("request messages = %d, want system and user", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("message roles = %q, %q", gotReq.Messages[0].Role, gotReq.Messages[1].Role)
	}
}

func TestParseFallsBackWhenLLMFails(t *testing.T) {
	srv, _ := newLLMServer(t, http.StatusInternalServerError,
		`{"error": {"message": "overloaded", "type": "server_error"}}`)

	parser := NewLocationParser(&LocationParserConfig{
		Enabled: true,
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, logger.NewDefault())

	got := parser.Parse(context.Background(), ParseInput{RawCity: "Portland, OR"})

	want := domain.ParsedLocation{City: "Portland", State: "OR", Country: "USA"}
	if got != want {
		t.Errorf("Parse() = %+v, want rule-based fallback %+v", got, want)
	}
}

func TestParseFillsEmptyFieldsFromRaw(t *testing.T) {
	srv, _ := newLLMServer(t, http.StatusOK,
		chatBody(t, `{"city": "Round Rock", "state": null, "country": null}`))

	parser := NewLocationParser(&LocationParserConfig{
		Enabled: true,
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, logger.NewDefault())

	got := parser.Parse(context.Background(), ParseInput{
		RawCity:    "Round Rock",
		RawState:   "TX",
		RawCountry: "USA",
	})

	want := domain.ParsedLocation{City: "Round Rock", State: "TX", Country: "USA"}
	if got != want {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParseDisabledUsesRules(t *testing.T) {
	parser := NewLocationParser(&LocationParserConfig{Enabled: false}, logger.NewDefault())

	tests := []struct {
		name string
		in   ParseInput
		want domain.ParsedLocation
	}{
		{
			name: "city comma state",
			in:   ParseInput{RawCity: "Nashville, TN"},
			want: domain.ParsedLocation{City: "Nashville", State: "TN", Country: "USA"},
		},
		{
			name: "separate raw fields",
			in:   ParseInput{RawCity: "memphis", RawState: "tennessee"},
			want: domain.ParsedLocation{City: "Memphis", State: "TN", Country: "USA"},
		},
		{
			name: "unparseable input survives verbatim",
			in:   ParseInput{RawCity: "Gotham City, Somewhere"},
			want: domain.ParsedLocation{City: "Gotham City, Somewhere"},
		},
		{
			name: "empty input stays empty",
			in:   ParseInput{Title: "Remote Analyst"},
			want: domain.ParsedLocation{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Parse(context.Background(), tt.in)
			if got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseLocationResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    domain.ParsedLocation
		wantErr bool
	}{
		{
			name:    "clean JSON",
			content: `{"city": "Boise", "state": "ID", "country": "USA"}`,
			want:    domain.ParsedLocation{City: "Boise", State: "ID", Country: "USA"},
		},
		{
			name:    "code fences",
			content: "```json\n{\"city\": \"Boise\", \"state\": \"ID\", \"country\": \"USA\"}\n```",
			want:    domain.ParsedLocation{City: "Boise", State: "ID", Country: "USA"},
		},
		{
			name:    "thinking block before the answer",
			content: `<think>The listing says Idaho.</think>{"city": "Boise", "state": "ID", "country": "USA"}`,
			want:    domain.ParsedLocation{City: "Boise", State: "ID", Country: "USA"},
		},
		{
			name:    "prose around the JSON",
			content: `Sure, here is the location: {"city": "Boise", "state": "ID", "country": "USA"} Let me know if you need more.`,
			want:    domain.ParsedLocation{City: "Boise", State: "ID", Country: "USA"},
		},
		{
			name:    "null fields become empty",
			content: `{"city": null, "state": null, "country": "Canada"}`,
			want:    domain.ParsedLocation{Country: "Canada"},
		},
		{
			name:    "state form kept, casing fixed",
			content: `{"city": "coeur d'alene", "state": "idaho", "country": "united states"}`,
			want:    domain.ParsedLocation{City: "Coeur D'alene", State: "Idaho", Country: "United States"},
		},
		{
			name:    "unterminated JSON salvaged field by field",
			content: `{"city": "Boise", "state": "ID"`,
			want:    domain.ParsedLocation{City: "Boise", State: "ID", Country: "USA"},
		},
		{
			name:    "unquoted keys salvaged",
			content: `{city: Boise}`,
			want:    domain.ParsedLocation{City: "Boise"},
		},
		{
			name:    "key-value lines salvaged",
			content: "City: Salt Lake City\nState: Utah\nCountry: USA",
			want:    domain.ParsedLocation{City: "Salt Lake City", State: "Utah", Country: "USA"},
		},
		{
			name:    "salvaged null words dropped",
			content: "city: null, state: Maine",
			want:    domain.ParsedLocation{State: "Maine", Country: "USA"},
		},
		{
			name:    "no location at all",
			content: "I could not determine where this job is.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLocationResponse(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseLocationResponse() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLocationResponse() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseLocationResponse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestValidateAndFix(t *testing.T) {
	tests := []struct {
		name string
		in   domain.ParsedLocation
		want domain.ParsedLocation
	}{
		{
			name: "casing fixed, forms kept",
			in:   domain.ParsedLocation{City: "  salt lake city ", State: "utah", Country: "united states"},
			want: domain.ParsedLocation{City: "Salt Lake City", State: "Utah", Country: "United States"},
		},
		{
			name: "already standard",
			in:   domain.ParsedLocation{City: "Provo", State: "UT", Country: "USA"},
			want: domain.ParsedLocation{City: "Provo", State: "UT", Country: "USA"},
		},
		{
			name: "short US country uppercased",
			in:   domain.ParsedLocation{City: "Provo", State: "ut", Country: "usa"},
			want: domain.ParsedLocation{City: "Provo", State: "UT", Country: "USA"},
		},
		{
			name: "state code implies country",
			in:   domain.ParsedLocation{City: "Provo", State: "UT"},
			want: domain.ParsedLocation{City: "Provo", State: "UT", Country: "USA"},
		},
		{
			name: "state name implies country",
			in:   domain.ParsedLocation{City: "Provo", State: "Utah"},
			want: domain.ParsedLocation{City: "Provo", State: "Utah", Country: "USA"},
		},
		{
			name: "foreign region left alone",
			in:   domain.ParsedLocation{City: "Toronto", State: "Ontario", Country: "Canada"},
			want: domain.ParsedLocation{City: "Toronto", State: "Ontario", Country: "Canada"},
		},
		{
			name: "unknown state does not imply country",
			in:   domain.ParsedLocation{City: "Toronto", State: "Ontario"},
			want: domain.ParsedLocation{City: "Toronto", State: "Ontario"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validateAndFix(tt.in)
			if got != tt.want {
				t.Errorf("validateAndFix(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRuleParse(t *testing.T) {
	parser := NewLocationParser(&LocationParserConfig{}, logger.NewDefault())

	tests := []struct {
		name string
		in   ParseInput
		want domain.ParsedLocation
	}{
		{
			name: "city comma abbreviation",
			in:   ParseInput{RawCity: "Austin, TX"},
			want: domain.ParsedLocation{City: "Austin", State: "TX", Country: "USA"},
		},
		{
			name: "trailing zip stripped",
			in:   ParseInput{RawCity: "Austin, TX 78701"},
			want: domain.ParsedLocation{City: "Austin", State: "TX", Country: "USA"},
		},
		{
			name: "full state name after comma",
			in:   ParseInput{RawCity: "Austin, Texas"},
			want: domain.ParsedLocation{City: "Austin", State: "TX", Country: "USA"},
		},
		{
			name: "state from its own field",
			in:   ParseInput{RawCity: "austin", RawState: "texas"},
			want: domain.ParsedLocation{City: "Austin", State: "TX", Country: "USA"},
		},
		{
			name: "comma but not a state",
			in:   ParseInput{RawCity: "Foo, Barland"},
			want: domain.ParsedLocation{},
		},
		{
			name: "bogus state ignored",
			in:   ParseInput{RawCity: "Austin", RawState: "ZZ"},
			want: domain.ParsedLocation{City: "Austin"},
		},
		{
			name: "country normalized without a state",
			in:   ParseInput{RawCity: "Austin", RawCountry: "united states of america"},
			want: domain.ParsedLocation{City: "Austin", Country: "USA"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.ruleParse(tt.in)
			if got != tt.want {
				t.Errorf("ruleParse(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
