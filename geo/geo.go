// Package geo resolves country names and ISO 3166-1 alpha-2 codes.
//
// Resolution order for free-text names: curated alias table, exact registry
// match, then fuzzy match. The alias table runs first because fuzzy matching
// misfires on short informal names ("uk", "usa").
package geo

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// aliases maps common informal country names to ISO alpha-2 codes.
var aliases = map[string]string{
	"usa":                      "US",
	"u.s.a.":                   "US",
	"united states of america": "US",
	"uk":                       "GB",
	"u.k.":                     "GB",
	"great britain":            "GB",
	"england":                  "GB",
	"scotland":                 "GB",
	"wales":                    "GB",
	"northern ireland":         "GB",
	"holland":                  "NL",
	"the netherlands":          "NL",
	"uae":                      "AE",
	"u.a.e.":                   "AE",
	"korea":                    "KR",
	"south korea":              "KR",
	"czech republic":           "CZ",
	"czechia":                  "CZ",
	"russia":                   "RU",
	"russian federation":       "RU",
}

// registryNames is the sorted list of official names used for fuzzy matching.
var registryNames = func() []string {
	names := make([]string, 0, len(countryNames))
	for _, name := range countryNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}()

// CountryName returns the English short name for an ISO alpha-2 code.
func CountryName(code string) (string, bool) {
	name, ok := countryNames[strings.ToUpper(code)]
	return name, ok
}

// IsValidCode reports whether code is a registered ISO alpha-2 code.
func IsValidCode(code string) bool {
	_, ok := countryNames[strings.ToUpper(code)]
	return ok
}

// Resolve normalizes a free-text country name to an ISO alpha-2 code.
func Resolve(name string) (string, bool) {
	nameLower := strings.ToLower(strings.TrimSpace(name))
	if nameLower == "" {
		return "", false
	}

	if code, ok := aliases[nameLower]; ok {
		return code, true
	}

	if code, ok := nameToCode[nameLower]; ok {
		return code, true
	}

	// Already a code?
	if len(nameLower) == 2 {
		if _, ok := countryNames[strings.ToUpper(nameLower)]; ok {
			return strings.ToUpper(nameLower), true
		}
	}

	return resolveFuzzy(name)
}

// resolveFuzzy picks the closest registry name by normalized fold matching.
func resolveFuzzy(name string) (string, bool) {
	ranks := fuzzy.RankFindNormalizedFold(name, registryNames)
	if len(ranks) == 0 {
		return "", false
	}
	sort.Sort(ranks)
	best := ranks[0].Target
	code, ok := nameToCode[strings.ToLower(best)]
	return code, ok
}
