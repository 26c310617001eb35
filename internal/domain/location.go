package domain

// GeoSource identifies which step of the postal-code cascade produced a
// result. Values include GeoSourceGeocode, GeoSourceZipDB, GeoSourceZipTable,
// GeoSourceSynthetic, and GeoSourceReverse.
type GeoSource string

const (
	GeoSourceGeocode   GeoSource = "geocode"
	GeoSourceZipDB     GeoSource = "zipdb"
	GeoSourceZipTable  GeoSource = "ziptable"
	GeoSourceSynthetic GeoSource = "synthetic"
	GeoSourceReverse   GeoSource = "reverse"
)

// ParsedLocation is a standardized location extracted from a raw listing.
// Fields may be empty when the source data carried nothing usable; an empty
// ParsedLocation is valid and never treated as an error by the parser.
type ParsedLocation struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// IsEmpty reports whether no field of the location was resolved.
func (l ParsedLocation) IsEmpty() bool {
	return l.City == "" && l.State == "" && l.Country == ""
}

// GeoPoint is a geographic coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeoResult is the outcome of resolving a parsed location: coordinates, a
// best-effort postal code, and the cascade step that supplied the code. A nil
// Point means no address format geocoded; resolution failing end to end is a
// valid outcome, not an error.
type GeoResult struct {
	Point      *GeoPoint `json:"point,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	Source     GeoSource `json:"source,omitempty"`
}

// IsEmpty reports whether resolution produced neither coordinates nor a
// postal code.
func (r GeoResult) IsEmpty() bool {
	return r.Point == nil && r.PostalCode == ""
}
