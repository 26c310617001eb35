package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
	"github.com/mmcgeh6/acjobs-engine/internal/geodata"
	"github.com/mmcgeh6/acjobs-engine/internal/logger"
	"github.com/mmcgeh6/acjobs-engine/internal/repository"
)

// reverseOffsetDegrees is the step used when probing around a point for a
// postal code. 0.01 degrees is roughly one kilometer.
const reverseOffsetDegrees = 0.01

// reverseOffsets are the probe points tried during reverse-geocode postal
// recovery: the point itself, the four cardinal neighbors, two diagonals.
var reverseOffsets = [][2]float64{
	{0, 0},
	{reverseOffsetDegrees, 0},
	{-reverseOffsetDegrees, 0},
	{0, reverseOffsetDegrees},
	{0, -reverseOffsetDegrees},
	{reverseOffsetDegrees, reverseOffsetDegrees},
	{-reverseOffsetDegrees, -reverseOffsetDegrees},
}

// GeocodeResolver resolves a standardized location to coordinates and a
// postal code using the Google Maps Geocoding API.
//
// Coordinates come from an address-format cascade: the location as parsed,
// then the US-pinned variants "{city}, {state}, USA" and
// "{city}, {stateAbbreviation}, USA"; first success wins. When geocoding
// succeeds without a postal code, the code is recovered best-effort through a
// second cascade: the database zip table, the built-in zip table, geocoding
// synthetic street addresses, and finally reverse geocoding around the
// resolved point. Nothing in either cascade is an error; a location that
// resolves nowhere comes back empty and the listing keeps flowing.
type GeocodeResolver struct {
	client  *resty.Client
	apiKey  string
	limiter *rate.Limiter
	zips    repository.ZipRepository
	logger  *logger.Logger
}

// GeocodeResolverConfig holds configuration for the geocode resolver.
type GeocodeResolverConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
}

// Google Geocoding API response structures
type geocodeResponse struct {
	Status       string          `json:"status"`
	Results      []geocodeResult `json:"results"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

type geocodeResult struct {
	FormattedAddress  string             `json:"formatted_address"`
	AddressComponents []addressComponent `json:"address_components"`
	Geometry          struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// NewGeocodeResolver creates a new geocode resolver.
// Parameters:
//   - cfg: resolver configuration including the API key.
//   - zips: postal-code lookup table consulted before extra API calls.
//   - log: logger for cascade diagnostics.
//
// Returns:
//   - *GeocodeResolver: initialized resolver.
func NewGeocodeResolver(cfg *GeocodeResolverConfig, zips repository.ZipRepository, log *logger.Logger) *GeocodeResolver {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com"
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(15 * time.Second)

	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &GeocodeResolver{
		client:  client,
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(limit, 1),
		zips:    zips,
		logger:  log,
	}
}

// log returns a logger from context if available, otherwise the resolver's own.
func (g *GeocodeResolver) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return g.logger
}

// Resolve geocodes a standardized location. It never fails: each address
// format falls through to the next, and a location no format can geocode
// yields an all-empty result that the caller persists without coordinates.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - loc: standardized location, any subset of fields may be empty.
//
// Returns:
//   - domain.GeoResult: coordinates, best-effort postal code, and the
//     cascade step that produced the code; empty when nothing resolved.
func (g *GeocodeResolver) Resolve(ctx context.Context, loc domain.ParsedLocation) domain.GeoResult {
	var (
		point  *domain.GeoPoint
		postal string
	)
	for _, addr := range addressFormats(loc) {
		p, zip, err := g.geocodeAddress(ctx, addr)
		if err != nil {
			g.log(ctx).WithError(err).WithField("address", addr).
				Debug("Address format failed, trying next")
			continue
		}
		point, postal = &p, zip
		break
	}
	if point == nil {
		g.log(ctx).WithFields(logger.Fields{
			"city":  loc.City,
			"state": loc.State,
		}).Info("No address format geocoded, leaving location unresolved")
		return domain.GeoResult{}
	}

	if postal != "" {
		return domain.GeoResult{Point: point, PostalCode: postal, Source: domain.GeoSourceGeocode}
	}

	// The address resolved but carried no postal component, which is common
	// for city-level results. Recover one without failing the listing if
	// every step comes up empty.
	if zip, src := g.recoverPostalCode(ctx, loc, *point); zip != "" {
		return domain.GeoResult{Point: point, PostalCode: zip, Source: src}
	}

	g.log(ctx).WithFields(logger.Fields{
		"city":  loc.City,
		"state": loc.State,
	}).Info("No postal code recoverable for location")
	return domain.GeoResult{Point: point, Source: domain.GeoSourceGeocode}
}

// recoverPostalCode walks the postal-code cascade in cost order: the two
// table lookups are free, synthetic addresses cost one API call each, and
// the reverse probes cost up to seven.
func (g *GeocodeResolver) recoverPostalCode(ctx context.Context, loc domain.ParsedLocation, point domain.GeoPoint) (string, domain.GeoSource) {
	if loc.City != "" && loc.State != "" {
		if zip := g.lookupZipTable(ctx, loc); zip != "" {
			return zip, domain.GeoSourceZipDB
		}

		if zip, found := geodata.ZipFor(loc.City, loc.State); found {
			return zip, domain.GeoSourceZipTable
		}

		for _, addr := range []string{
			fmt.Sprintf("100 Main Street, %s, %s", loc.City, loc.State),
			fmt.Sprintf("City Hall, %s, %s", loc.City, loc.State),
		} {
			if _, zip, err := g.geocodeAddress(ctx, addr); err == nil && zip != "" {
				return zip, domain.GeoSourceSynthetic
			}
		}
	}

	for _, offset := range reverseOffsets {
		zip, err := g.reverseGeocode(ctx, point.Lat+offset[0], point.Lng+offset[1])
		if err != nil {
			continue
		}
		if zip != "" {
			return zip, domain.GeoSourceReverse
		}
	}

	return "", ""
}

// lookupZipTable consults the persisted zip table, trying the state first by
// its USPS code and then by its full name, so the lookup hits no matter which
// form the parser produced or the table stores.
func (g *GeocodeResolver) lookupZipTable(ctx context.Context, loc domain.ParsedLocation) string {
	states := []string{geodata.AbbreviationFor(loc.State)}
	if full := geodata.NameFor(loc.State); full != states[0] {
		states = append(states, full)
	}

	for _, state := range states {
		zip, err := g.zips.Lookup(ctx, loc.City, state)
		if err == nil && zip != "" {
			return zip
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			g.log(ctx).WithError(err).Warn("Zip table lookup failed")
		}
	}
	return ""
}

// geocodeAddress resolves one address string to a point and any postal code
// present in the first result.
func (g *GeocodeResolver) geocodeAddress(ctx context.Context, address string) (domain.GeoPoint, string, error) {
	res, err := g.call(ctx, map[string]string{"address": address})
	if err != nil {
		return domain.GeoPoint{}, "", err
	}

	first := res.Results[0]
	point := domain.GeoPoint{
		Lat: first.Geometry.Location.Lat,
		Lng: first.Geometry.Location.Lng,
	}
	return point, postalComponent(first.AddressComponents), nil
}

// reverseGeocode returns the postal code of the address nearest to a point,
// or empty when the result carries none.
func (g *GeocodeResolver) reverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	res, err := g.call(ctx, map[string]string{
		"latlng": fmt.Sprintf("%f,%f", lat, lng),
	})
	if err != nil {
		return "", err
	}

	for _, result := range res.Results {
		if zip := postalComponent(result.AddressComponents); zip != "" {
			return zip, nil
		}
	}
	return "", nil
}

// call performs one Geocoding API request and normalizes its failure modes:
// transport errors, non-200 statuses, and non-OK API statuses all come back
// as errors; a response with zero results is treated as ZERO_RESULTS.
func (g *GeocodeResolver) call(ctx context.Context, params map[string]string) (*geocodeResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var res geocodeResponse
	httpResp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("key", g.apiKey).
		SetResult(&res).
		Get("/maps/api/geocode/json")
	if err != nil {
		return nil, fmt.Errorf("failed to call geocoding API: %w", err)
	}
	if httpResp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("geocoding API returned status %d: %s", httpResp.StatusCode(), httpResp.String())
	}
	if res.Status != "OK" {
		msg := res.Status
		if res.ErrorMessage != "" {
			msg = fmt.Sprintf("%s: %s", res.Status, res.ErrorMessage)
		}
		return nil, fmt.Errorf("geocoding API status %s", msg)
	}
	if len(res.Results) == 0 {
		return nil, fmt.Errorf("geocoding API status ZERO_RESULTS")
	}

	return &res, nil
}

// postalComponent returns the first postal_code component, if any.
func postalComponent(components []addressComponent) string {
	for _, c := range components {
		for _, t := range c.Types {
			if t == "postal_code" {
				return c.LongName
			}
		}
	}
	return ""
}

// addressFormats builds the cascade of address strings for a location. The
// first is the location as parsed; for US listings two more follow, pinning
// the country to USA and then abbreviating the state. Duplicates are dropped,
// so a location that arrives fully standardized costs a single call.
func addressFormats(loc domain.ParsedLocation) []string {
	var formats []string
	add := func(addr string) {
		if addr == "" {
			return
		}
		for _, seen := range formats {
			if seen == addr {
				return
			}
		}
		formats = append(formats, addr)
	}

	add(joinAddress(loc.City, loc.State, loc.Country))
	if geodata.IsUSCountry(loc.Country) {
		add(joinAddress(loc.City, loc.State, "USA"))
		if geodata.IsUSState(loc.State) {
			add(joinAddress(loc.City, geodata.AbbreviationFor(loc.State), "USA"))
		}
	}
	return formats
}

// joinAddress joins the non-empty address parts with commas.
func joinAddress(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
