package geodata

import (
	"strings"

	"github.com/mmcgeh6/acjobs-engine/internal/domain"
)

type zipEntry struct {
	City  string
	State string
	Zip   string
}

// zipEntries is the seed dataset for the zip_codes table: downtown postal
// codes for the metros that dominate the listing feed. The same data backs
// the in-memory fallback used when the database lookup misses.
var zipEntries = []zipEntry{
	{"Albuquerque", "NM", "87102"},
	{"Anchorage", "AK", "99501"},
	{"Arlington", "TX", "76010"},
	{"Atlanta", "GA", "30303"},
	{"Austin", "TX", "78701"},
	{"Baltimore", "MD", "21202"},
	{"Birmingham", "AL", "35203"},
	{"Boise", "ID", "83702"},
	{"Boston", "MA", "02108"},
	{"Charleston", "SC", "29401"},
	{"Charlotte", "NC", "28202"},
	{"Chicago", "IL", "60602"},
	{"Cincinnati", "OH", "45202"},
	{"Cleveland", "OH", "44113"},
	{"Colorado Springs", "CO", "80903"},
	{"Columbus", "OH", "43215"},
	{"Dallas", "TX", "75201"},
	{"Denver", "CO", "80202"},
	{"Des Moines", "IA", "50309"},
	{"Detroit", "MI", "48226"},
	{"Fort Worth", "TX", "76102"},
	{"Fresno", "CA", "93721"},
	{"Honolulu", "HI", "96813"},
	{"Houston", "TX", "77002"},
	{"Indianapolis", "IN", "46204"},
	{"Jacksonville", "FL", "32202"},
	{"Kansas City", "MO", "64106"},
	{"Las Vegas", "NV", "89101"},
	{"Los Angeles", "CA", "90012"},
	{"Louisville", "KY", "40202"},
	{"Memphis", "TN", "38103"},
	{"Mesa", "AZ", "85201"},
	{"Miami", "FL", "33128"},
	{"Milwaukee", "WI", "53202"},
	{"Minneapolis", "MN", "55401"},
	{"Nashville", "TN", "37201"},
	{"New Orleans", "LA", "70112"},
	{"New York", "NY", "10007"},
	{"Oakland", "CA", "94612"},
	{"Oklahoma City", "OK", "73102"},
	{"Omaha", "NE", "68102"},
	{"Orlando", "FL", "32801"},
	{"Philadelphia", "PA", "19107"},
	{"Phoenix", "AZ", "85003"},
	{"Pittsburgh", "PA", "15219"},
	{"Portland", "OR", "97204"},
	{"Raleigh", "NC", "27601"},
	{"Richmond", "VA", "23219"},
	{"Sacramento", "CA", "95814"},
	{"Salt Lake City", "UT", "84111"},
	{"San Antonio", "TX", "78205"},
	{"San Diego", "CA", "92101"},
	{"San Francisco", "CA", "94102"},
	{"San Jose", "CA", "95113"},
	{"Seattle", "WA", "98104"},
	{"St. Louis", "MO", "63101"},
	{"Tampa", "FL", "33602"},
	{"Tucson", "AZ", "85701"},
	{"Tulsa", "OK", "74103"},
	{"Washington", "DC", "20001"},
	{"Wichita", "KS", "67202"},
}

// zipIndex keys the seed data by "city|state", lowercased.
var zipIndex = func() map[string]string {
	idx := make(map[string]string, len(zipEntries))
	for _, e := range zipEntries {
		idx[zipKey(e.City, e.State)] = e.Zip
	}
	return idx
}()

func zipKey(city, state string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToLower(strings.TrimSpace(state))
}

// ZipFor looks up the fallback postal code for a city/state pair. The state
// may be given as a USPS code or a full name. The second return value reports
// whether the pair is in the table.
func ZipFor(city, state string) (string, bool) {
	zip, ok := zipIndex[zipKey(city, AbbreviationFor(state))]
	return zip, ok
}

// SeedRows returns the seed dataset as ZipCode rows for the startup
// migration. IDs are left empty; the repository assigns them on insert.
func SeedRows() []domain.ZipCode {
	rows := make([]domain.ZipCode, 0, len(zipEntries))
	for _, e := range zipEntries {
		rows = append(rows, domain.ZipCode{City: e.City, State: e.State, Zip: e.Zip})
	}
	return rows
}
