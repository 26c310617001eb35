package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
	"github.com/mmcgeh6/acjobs-engine/internal/logger"
	"github.com/mmcgeh6/acjobs-engine/internal/repository"
)

// fakeGeoServer serves canned Geocoding API responses keyed by the address
// or latlng query parameter. Unknown keys get ZERO_RESULTS, matching what
// the real API returns for unresolvable input. Requests are recorded in
// order so tests can assert which cascade steps ran; recording is locked
// because pipeline tests resolve concurrently.
type fakeGeoServer struct {
	byAddress map[string]geocodeResponse
	byLatLng  map[string]geocodeResponse

	mu    sync.Mutex
	calls []string
}

func (f *fakeGeoServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") == "" {
			t.Error("request is missing the key parameter")
		}

		var res geocodeResponse
		var found bool
		key := q.Get("address")
		if key != "" {
			res, found = f.byAddress[key]
		} else {
			key = q.Get("latlng")
			res, found = f.byLatLng[key]
		}
		f.mu.Lock()
		f.calls = append(f.calls, key)
		f.mu.Unlock()
		if !found {
			res = geocodeResponse{Status: "ZERO_RESULTS"}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}
}

// requests returns a copy of the recorded request keys.
func (f *fakeGeoServer) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// geoOK builds an OK response with one result at the given point, carrying
// a postal_code component only when postal is non-empty.
func geoOK(lat, lng float64, postal string) geocodeResponse {
	var result geocodeResult
	result.Geometry.Location.Lat = lat
	result.Geometry.Location.Lng = lng
	if postal != "" {
		result.AddressComponents = []addressComponent{
			{LongName: postal, ShortName: postal, Types: []string{"postal_code"}},
		}
	}
	return geocodeResponse{Status: "OK", Results: []geocodeResult{result}}
}

func newTestResolver(t *testing.T, fake *fakeGeoServer, zips repository.ZipRepository) *GeocodeResolver {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	if zips == nil {
		zips = repository.NewMemoryZipRepository()
	}
	return NewGeocodeResolver(&GeocodeResolverConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, zips, logger.NewDefault())
}

func latlngKey(lat, lng float64) string {
	return fmt.Sprintf("%f,%f", lat, lng)
}

func TestResolveAddressFormatCascade(t *testing.T) {
	tests := []struct {
		name      string
		loc       domain.ParsedLocation
		byAddress map[string]geocodeResponse
		wantEmpty bool
		wantCalls []string
		wantLat   float64
		wantZip   string
	}{
		{
			name: "standard location resolves in one call",
			loc:  domain.ParsedLocation{City: "Austin", State: "TX", Country: "USA"},
			byAddress: map[string]geocodeResponse{
				"Austin, TX, USA": geoOK(30.2672, -97.7431, "78701"),
			},
			wantCalls: []string{"Austin, TX, USA"},
			wantLat:   30.2672,
			wantZip:   "78701",
		},
		{
			name: "falls through to the abbreviated US form",
			loc:  domain.ParsedLocation{City: "Houston", State: "Texas", Country: "United States"},
			byAddress: map[string]geocodeResponse{
				"Houston, TX, USA": geoOK(29.7604, -95.3698, "77002"),
			},
			wantCalls: []string{
				"Houston, Texas, United States",
				"Houston, Texas, USA",
				"Houston, TX, USA",
			},
			wantLat: 29.7604,
			wantZip: "77002",
		},
		{
			name: "pinned country variant stops the cascade",
			loc:  domain.ParsedLocation{City: "Houston", State: "Texas", Country: "United States"},
			byAddress: map[string]geocodeResponse{
				"Houston, Texas, USA": geoOK(29.7604, -95.3698, "77002"),
				"Houston, TX, USA":    geoOK(0, 0, "99999"),
			},
			wantCalls: []string{
				"Houston, Texas, United States",
				"Houston, Texas, USA",
			},
			wantLat: 29.7604,
			wantZip: "77002",
		},
		{
			name: "foreign location gets no US variants",
			loc:  domain.ParsedLocation{City: "Toronto", State: "Ontario", Country: "Canada"},
			byAddress: map[string]geocodeResponse{
				"Toronto, Ontario, Canada": geoOK(43.6532, -79.3832, "M5H 2N2"),
			},
			wantCalls: []string{"Toronto, Ontario, Canada"},
			wantLat:   43.6532,
			wantZip:   "M5H 2N2",
		},
		{
			name:      "nothing resolves yields an empty result",
			loc:       domain.ParsedLocation{City: "Nowhereville", State: "ZZ"},
			byAddress: map[string]geocodeResponse{},
			wantEmpty: true,
			wantCalls: []string{"Nowhereville, ZZ"},
		},
		{
			name:      "empty location makes no calls",
			loc:       domain.ParsedLocation{},
			wantEmpty: true,
			wantCalls: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeGeoServer{byAddress: tt.byAddress}
			resolver := newTestResolver(t, fake, nil)

			got := resolver.Resolve(context.Background(), tt.loc)
			if tt.wantEmpty {
				if !got.IsEmpty() {
					t.Errorf("Resolve() = %+v, want empty result", got)
				}
			} else {
				if got.Point == nil {
					t.Fatalf("Resolve() point = nil, want %v", tt.wantLat)
				}
				if got.Point.Lat != tt.wantLat {
					t.Errorf("Resolve() lat = %v, want %v", got.Point.Lat, tt.wantLat)
				}
				if got.PostalCode != tt.wantZip {
					t.Errorf("Resolve() postal = %q, want %q", got.PostalCode, tt.wantZip)
				}
				if got.Source != domain.GeoSourceGeocode {
					t.Errorf("Resolve() source = %q, want %q", got.Source, domain.GeoSourceGeocode)
				}
			}
			calls := fake.requests()
			if len(calls) != len(tt.wantCalls) {
				t.Fatalf("API calls = %v, want %v", calls, tt.wantCalls)
			}
			for i, want := range tt.wantCalls {
				if calls[i] != want {
					t.Errorf("call[%d] = %q, want %q", i, calls[i], want)
				}
			}
		})
	}
}

func TestResolveRecoversPostalFromZipDB(t *testing.T) {
	fake := &fakeGeoServer{byAddress: map[string]geocodeResponse{
		"Springfield, IL, USA": geoOK(39.7817, -89.6501, ""),
	}}
	zips := repository.NewMemoryZipRepository()
	if err := zips.SeedIfEmpty(context.Background(), []domain.ZipCode{
		{City: "Springfield", State: "IL", Zip: "62701"},
	}); err != nil {
		t.Fatalf("SeedIfEmpty() error = %v", err)
	}
	resolver := newTestResolver(t, fake, zips)

	got := resolver.Resolve(context.Background(), domain.ParsedLocation{City: "Springfield", State: "IL", Country: "USA"})
	if got.PostalCode != "62701" {
		t.Errorf("postal = %q, want %q", got.PostalCode, "62701")
	}
	if got.Source != domain.GeoSourceZipDB {
		t.Errorf("source = %q, want %q", got.Source, domain.GeoSourceZipDB)
	}
	// The table satisfied the lookup, so exactly one API call was made.
	if calls := fake.requests(); len(calls) != 1 {
		t.Errorf("API calls = %v, want just the address lookup", calls)
	}
}

func TestResolveZipDBMatchesFullStateName(t *testing.T) {
	fake := &fakeGeoServer{byAddress: map[string]geocodeResponse{
		"Springfield, Illinois, USA": geoOK(39.7817, -89.6501, ""),
	}}
	zips := repository.NewMemoryZipRepository()
	// The table stores the full state name; the lookup retries with it after
	// the USPS code misses.
	if err := zips.SeedIfEmpty(context.Background(), []domain.ZipCode{
		{City: "Springfield", State: "Illinois", Zip: "62701"},
	}); err != nil {
		t.Fatalf("SeedIfEmpty() error = %v", err)
	}
	resolver := newTestResolver(t, fake, zips)

	got := resolver.Resolve(context.Background(), domain.ParsedLocation{City: "Springfield", State: "Illinois", Country: "USA"})
	if got.PostalCode != "62701" {
		t.Errorf("postal = %q, want %q", got.PostalCode, "62701")
	}
	if got.Source != domain.GeoSourceZipDB {
		t.Errorf("source = %q, want %q", got.Source, domain.GeoSourceZipDB)
	}
}

func TestResolveRecoversPostalFromBuiltinTable(t *testing.T) {
	fake := &fakeGeoServer{byAddress: map[string]geocodeResponse{
		"Denver, CO, USA": geoOK(39.7392, -104.9903, ""),
	}}
	resolver := newTestResolver(t, fake, nil)

	got := resolver.Resolve(context.Background(), domain.ParsedLocation{City: "Denver", State: "CO", Country: "USA"})
	if got.PostalCode != "80202" {
		t.Errorf("postal = %q, want %q", got.PostalCode, "80202")
	}
	if got.Source != domain.GeoSourceZipTable {
		t.Errorf("source = %q, want %q", got.Source, domain.GeoSourceZipTable)
	}
}

func TestResolveRecoversPostalFromSyntheticAddress(t *testing.T) {
	fake := &fakeGeoServer{byAddress: map[string]geocodeResponse{
		"Example Falls, OH, USA":             geoOK(41.1, -81.5, ""),
		"100 Main Street, Example Falls, OH": geoOK(41.1002, -81.5001, "44221"),
	}}
	resolver := newTestResolver(t, fake, nil)

	got := resolver.Resolve(context.Background(), domain.ParsedLocation{City: "Example Falls", State: "OH", Country: "USA"})
	if got.PostalCode != "44221" {
		t.Errorf("postal = %q, want %q", got.PostalCode, "44221")
	}
	if got.Source != domain.GeoSourceSynthetic {
		t.Errorf("source = %q, want %q", got.Source, domain.GeoSourceSynthetic)
	}
	want := []string{"Example Falls, OH, USA", "100 Main Street, Example Falls, OH"}
	if calls := fake.requests(); len(calls) != len(want) {
		t.Fatalf("API calls = %v, want %v", calls, want)
	}
}

func TestResolveRecoversPostalFromCityHall(t *testing.T) {
	fake := &fakeGeoServer{byAddress: map[string]geocodeResponse{
		"Example Falls, OH, USA":       geoOK(41.1, -81.5, ""),
		"City Hall, Example Falls, OH": geoOK(41.1003, -81.4999, "44221"),
	}}
	resolver := newTestResolver(t, fake, nil)

	got := resolver.Resolve(context.Background(), domain.ParsedLocation{City: "Example Falls", State: "OH", Country: "USA"})
	if got.PostalCode != "44221" {
		t.Errorf("postal = %q, want %q", got.PostalCode, "44221")
	}
	if got.Source != domain.GeoSourceSynthetic {
		t.Errorf("source = %q, want %q", got.Source, domain.GeoSourceSynthetic)
	}
}

func TestResolveRecoversPostalFromReverseGeocode(t *testing.T) {
	const lat, lng = 41.1, -81.5
	fake := &fakeGeoServer{
		byAddress: map[string]geocodeResponse{
			"Example Falls, OH, USA": geoOK(lat, lng, ""),
		},
		byLatLng: map[string]geocodeResponse{
			// Only the third probe (south of the point) resolves.
			latlngKey(lat-reverseOffsetDegrees, lng): geoOK(lat, lng, "44221"),
		},
	}
	resolver := newTestResolver(t, fake, nil)

	got := resolver.Resolve(context.Background(), domain.ParsedLocation{City: "Example Falls", State: "OH", Country: "USA"})
	if got.PostalCode != "44221" {
		t.Errorf("postal = %q, want %q", got.PostalCode, "44221")
	}
	if got.Source != domain.GeoSourceReverse {
		t.Errorf("source = %q, want %q", got.Source, domain.GeoSourceReverse)
	}

	wantProbes := []string{
		latlngKey(lat, lng),
		latlngKey(lat+reverseOffsetDegrees, lng),
		latlngKey(lat-reverseOffsetDegrees, lng),
	}
	// Calls: address format, two synthetic addresses, then probes in order
	// until the hit.
	probes := fake.requests()[3:]
	if len(probes) != len(wantProbes) {
		t.Fatalf("reverse probes = %v, want %v", probes, wantProbes)
	}
	for i, want := range wantProbes {
		if probes[i] != want {
			t.Errorf("probe[%d] = %q, want %q", i, probes[i], want)
		}
	}
}

func TestResolveMissingPostalIsNotAnError(t *testing.T) {
	fake := &fakeGeoServer{byAddress: map[string]geocodeResponse{
		"Example Falls, OH, USA": geoOK(41.1, -81.5, ""),
	}}
	resolver := newTestResolver(t, fake, nil)

	got := resolver.Resolve(context.Background(), domain.ParsedLocation{City: "Example Falls", State: "OH", Country: "USA"})
	if got.PostalCode != "" {
		t.Errorf("postal = %q, want empty", got.PostalCode)
	}
	if got.Point == nil || got.Point.Lat != 41.1 {
		t.Errorf("point = %+v, want lat %v", got.Point, 41.1)
	}
	if got.Source != domain.GeoSourceGeocode {
		t.Errorf("source = %q, want %q", got.Source, domain.GeoSourceGeocode)
	}

	// One address call, two synthetic, seven reverse probes.
	if calls := fake.requests(); len(calls) != 10 {
		t.Errorf("API calls = %d (%v), want 10", len(calls), calls)
	}
}

func TestAddressFormats(t *testing.T) {
	tests := []struct {
		name string
		loc  domain.ParsedLocation
		want []string
	}{
		{
			name: "standard US location collapses to one format",
			loc:  domain.ParsedLocation{City: "Boise", State: "ID", Country: "USA"},
			want: []string{"Boise, ID, USA"},
		},
		{
			name: "full forms add the pinned variants",
			loc:  domain.ParsedLocation{City: "Houston", State: "Texas", Country: "United States"},
			want: []string{
				"Houston, Texas, United States",
				"Houston, Texas, USA",
				"Houston, TX, USA",
			},
		},
		{
			name: "abbreviated state under a full country name",
			loc:  domain.ParsedLocation{City: "Austin", State: "TX", Country: "United States"},
			want: []string{"Austin, TX, United States", "Austin, TX, USA"},
		},
		{
			name: "no country",
			loc:  domain.ParsedLocation{City: "Boise", State: "ID"},
			want: []string{"Boise, ID"},
		},
		{
			name: "city only",
			loc:  domain.ParsedLocation{City: "Boise"},
			want: []string{"Boise"},
		},
		{
			name: "no city still queries the state",
			loc:  domain.ParsedLocation{State: "ID", Country: "USA"},
			want: []string{"ID, USA"},
		},
		{
			name: "foreign location stays as parsed",
			loc:  domain.ParsedLocation{City: "Toronto", State: "Ontario", Country: "Canada"},
			want: []string{"Toronto, Ontario, Canada"},
		},
		{
			name: "empty location has no formats",
			loc:  domain.ParsedLocation{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := addressFormats(tt.loc)
			if len(got) != len(tt.want) {
				t.Fatalf("addressFormats() = %v, want %v", got, tt.want)
			}
			for i, want := range tt.want {
				if got[i] != want {
					t.Errorf("formats[%d] = %q, want %q", i, got[i], want)
				}
			}
		})
	}
}
