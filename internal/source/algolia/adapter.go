package algolia

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mmcgeh6/acjobs-engine/internal/source"
)

// maxPageSize is the largest hitsPerPage the Algolia API accepts.
const maxPageSize = 1000

// Config holds the connection settings for one Algolia index.
type Config struct {
	AppID    string
	APIKey   string
	Index    string
	PageSize int    // capped at maxPageSize; <=0 uses the cap
	BaseURL  string // overrides the default DSN host, used by tests
}

// Adapter implements the Source interface against an Algolia search index.
type Adapter struct {
	client   *resty.Client
	index    string
	pageSize int
}

// queryRequest is the Algolia query body. Params carries the URL-encoded
// search parameters, as the API expects.
type queryRequest struct {
	Params string `json:"params"`
}

type hit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	URL         string `json:"url"`
	Description string `json:"description"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
}

type queryResponse struct {
	Hits        []hit `json:"hits"`
	Page        int   `json:"page"`
	NbHits      int   `json:"nbHits"`
	NbPages     int   `json:"nbPages"`
	HitsPerPage int   `json:"hitsPerPage"`
}

// NewAdapter creates a new Algolia source adapter.
// Parameters:
//   - cfg: index connection settings.
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(cfg Config) *Adapter {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s-dsn.algolia.net", cfg.AppID)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("X-Algolia-Application-Id", cfg.AppID).
		SetHeader("X-Algolia-API-Key", cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Adapter{
		client:   client,
		index:    cfg.Index,
		pageSize: pageSize,
	}
}

// GetSourceID returns the unique identifier for this source.
// Parameters: none.
// Returns:
//   - string: source identifier with "algolia:" prefix.
func (a *Adapter) GetSourceID() string {
	return "algolia:" + a.index
}

// GetDisplayName returns a human-readable name for this source.
// Parameters: none.
// Returns:
//   - string: display name including the index.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Algolia (%s)", a.index)
}

// FetchAll harvests every listing from the index, paging until the page
// count reported by the index is exhausted.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []source.Listing: all listings in index order.
//   - error: non-nil if any page fetch fails.
func (a *Adapter) FetchAll(ctx context.Context) ([]source.Listing, error) {
	var all []source.Listing

	page := 0
	for {
		res, err := a.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("algolia: fetch page %d: %w", page, err)
		}

		for _, h := range res.Hits {
			if h.ObjectID == "" {
				// A hit without an object ID cannot be reconciled; skip it.
				continue
			}
			all = append(all, source.Listing{
				Key:         h.ObjectID,
				Title:       h.Title,
				Company:     h.Company,
				URL:         h.URL,
				Description: h.Description,
				City:        h.City,
				State:       h.State,
				Country:     h.Country,
			})
		}

		page++
		if page >= res.NbPages {
			break
		}
	}

	return all, nil
}

// fetchPage requests a single page of results from the index.
func (a *Adapter) fetchPage(ctx context.Context, page int) (*queryResponse, error) {
	params := url.Values{}
	params.Set("query", "")
	params.Set("page", strconv.Itoa(page))
	params.Set("hitsPerPage", strconv.Itoa(a.pageSize))

	var result queryResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(queryRequest{Params: params.Encode()}).
		SetResult(&result).
		Post(fmt.Sprintf("/1/indexes/%s/query", url.PathEscape(a.index)))
	if err != nil {
		return nil, fmt.Errorf("query request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("index returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return &result, nil
}
