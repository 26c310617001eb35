// Package geodata holds the static geographic lookup tables used by the
// location parser and the geocode resolver: US state names and USPS codes,
// plus a fallback city/state to postal-code table.
package geodata

import "strings"

// stateNames maps USPS codes to state names for the 50 states plus the
// District of Columbia.
var stateNames = map[string]string{
	"AL": "Alabama",
	"AK": "Alaska",
	"AZ": "Arizona",
	"AR": "Arkansas",
	"CA": "California",
	"CO": "Colorado",
	"CT": "Connecticut",
	"DE": "Delaware",
	"DC": "District of Columbia",
	"FL": "Florida",
	"GA": "Georgia",
	"HI": "Hawaii",
	"ID": "Idaho",
	"IL": "Illinois",
	"IN": "Indiana",
	"IA": "Iowa",
	"KS": "Kansas",
	"KY": "Kentucky",
	"LA": "Louisiana",
	"ME": "Maine",
	"MD": "Maryland",
	"MA": "Massachusetts",
	"MI": "Michigan",
	"MN": "Minnesota",
	"MS": "Mississippi",
	"MO": "Missouri",
	"MT": "Montana",
	"NE": "Nebraska",
	"NV": "Nevada",
	"NH": "New Hampshire",
	"NJ": "New Jersey",
	"NM": "New Mexico",
	"NY": "New York",
	"NC": "North Carolina",
	"ND": "North Dakota",
	"OH": "Ohio",
	"OK": "Oklahoma",
	"OR": "Oregon",
	"PA": "Pennsylvania",
	"RI": "Rhode Island",
	"SC": "South Carolina",
	"SD": "South Dakota",
	"TN": "Tennessee",
	"TX": "Texas",
	"UT": "Utah",
	"VT": "Vermont",
	"VA": "Virginia",
	"WA": "Washington",
	"WV": "West Virginia",
	"WI": "Wisconsin",
	"WY": "Wyoming",
}

// stateAbbreviations is the reverse index of stateNames, keyed by lowercase
// state name, built once at init.
var stateAbbreviations = func() map[string]string {
	abbr := make(map[string]string, len(stateNames))
	for code, name := range stateNames {
		abbr[strings.ToLower(name)] = code
	}
	return abbr
}()

// AbbreviationFor converts a US state name to its USPS code. Already valid
// codes pass through uppercased; names are matched case-insensitively with
// whitespace collapsed. Unknown values (non-US regions, free text) come back
// trimmed but otherwise unchanged so callers never lose information.
func AbbreviationFor(name string) string {
	trimmed := strings.Join(strings.Fields(name), " ")
	if trimmed == "" {
		return ""
	}
	upper := strings.ToUpper(trimmed)
	if _, ok := stateNames[upper]; ok {
		return upper
	}
	if code, ok := stateAbbreviations[strings.ToLower(trimmed)]; ok {
		return code
	}
	return trimmed
}

// NameFor converts a USPS code to the full state name. State names pass
// through with canonical casing; unknown values come back trimmed but
// otherwise unchanged.
func NameFor(code string) string {
	trimmed := strings.Join(strings.Fields(code), " ")
	if trimmed == "" {
		return ""
	}
	if name, ok := stateNames[strings.ToUpper(trimmed)]; ok {
		return name
	}
	if abbr, ok := stateAbbreviations[strings.ToLower(trimmed)]; ok {
		return stateNames[abbr]
	}
	return trimmed
}

// IsStateCode reports whether s is a valid USPS state code (case-insensitive).
func IsStateCode(s string) bool {
	_, ok := stateNames[strings.ToUpper(strings.TrimSpace(s))]
	return ok
}

// IsUSState reports whether s names a US state either way: as a USPS code or
// as a full state name, case-insensitively.
func IsUSState(s string) bool {
	if IsStateCode(s) {
		return true
	}
	_, ok := stateAbbreviations[strings.ToLower(strings.Join(strings.Fields(s), " "))]
	return ok
}

// IsUSCountry reports whether s is one of the common spellings of the United
// States, case-insensitively.
func IsUSCountry(s string) bool {
	switch strings.ToLower(strings.Join(strings.Fields(s), " ")) {
	case "us", "u.s.", "usa", "u.s.a.", "united states", "united states of america":
		return true
	}
	return false
}
