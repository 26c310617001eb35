package fixture

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmcgeh6/acjobs-engine/internal/source"
)

// fixtureListing represents one line of a listings JSONL file.
type fixtureListing struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	URL         string `json:"url"`
	Description string `json:"description"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
}

// Adapter implements the Source interface over a local JSONL file of
// listings. Used for development runs and tests, where hitting the real
// search index is undesirable.
type Adapter struct {
	path string
}

// NewAdapter creates a new fixture adapter.
// Parameters:
//   - path: path to the listings JSONL file.
// Returns:
//   - *Adapter: initialized fixture adapter.
func NewAdapter(path string) *Adapter {
	return &Adapter{path: path}
}

// GetSourceID returns the unique identifier for this source.
// Parameters: none.
// Returns:
//   - string: source identifier with "fixture:" prefix.
func (a *Adapter) GetSourceID() string {
	return "fixture:" + filepath.Base(a.path)
}

// GetDisplayName returns a human-readable name for this source.
// Parameters: none.
// Returns:
//   - string: display name including the file name.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Fixture (%s)", filepath.Base(a.path))
}

// FetchAll reads every listing from the fixture file in file order.
// Malformed lines and lines without a key are skipped.
// Parameters:
//   - ctx: context for cancellation (checked between lines).
// Returns:
//   - []source.Listing: all listings in the file.
//   - error: non-nil if the file cannot be read.
func (a *Adapter) FetchAll(ctx context.Context) ([]source.Listing, error) {
	file, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("fixture: open %s: %w", a.path, err)
	}
	defer file.Close()

	var listings []source.Listing

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item fixtureListing
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			// Skip malformed lines
			continue
		}
		if item.Key == "" {
			continue
		}

		listings = append(listings, source.Listing{
			Key:         item.Key,
			Title:       item.Title,
			Company:     item.Company,
			URL:         item.URL,
			Description: item.Description,
			City:        item.City,
			State:       item.State,
			Country:     item.Country,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", a.path, err)
	}

	return listings, nil
}
