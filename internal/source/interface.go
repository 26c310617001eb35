package source

import "context"

// Listing represents a job listing as reported by a search index, before any
// enrichment. Key is the only field the pipeline requires to be non-empty.
type Listing struct {
	Key         string // Unique ID within the source
	Title       string
	Company     string
	URL         string
	Description string
	City        string // Raw city text, may be empty or free-form
	State       string // Raw state/region text
	Country     string // Raw country text
}

// Source defines the interface for job listing sources.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	// Parameters: none.
	// Returns:
	//   - string: display-friendly source name.
	GetDisplayName() string

	// FetchAll harvests every listing the source currently reports, paging
	// through the index until the reported page count is exhausted. Order
	// follows the source's own ordering. Any page failure fails the whole
	// fetch; partial results are never returned.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	// Returns:
	//   - []Listing: every listing in the source.
	//   - error: non-nil if any page fetch fails.
	FetchAll(ctx context.Context) ([]Listing, error)
}
