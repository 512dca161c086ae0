// Package extract detects country mentions in free text.
//
// Three rule-based detectors run over every input: IATA airport codes, major
// city names, and country names (official plus informal). An optional entity
// tagger can be layered on top for text the rules miss.
package extract

import (
	"regexp"
	"strings"

	"github.com/stampbook/stampbook/geo"
)

var airportCodePattern = regexp.MustCompile(`\b([A-Z]{3})\b`)

// EntityTagger extracts location entity strings from text. Implementations
// wrap an external NER model; the zero value of the pipeline runs without one.
type EntityTagger interface {
	LocationEntities(text string) []string
}

// Set is an unordered collection of ISO alpha-2 country codes.
type Set map[string]struct{}

// Add inserts a code into the set.
func (s Set) Add(code string) {
	s[code] = struct{}{}
}

// Union merges other into s.
func (s Set) Union(other Set) {
	for code := range other {
		s[code] = struct{}{}
	}
}

// Contains reports whether code is in the set.
func (s Set) Contains(code string) bool {
	_, ok := s[code]
	return ok
}

// AirportCodes returns country codes for IATA airport codes found in text.
func AirportCodes(text string) Set {
	countries := Set{}
	for _, match := range airportCodePattern.FindAllString(strings.ToUpper(text), -1) {
		if code, ok := airportCodes[match]; ok {
			countries.Add(code)
		}
	}
	return countries
}

// Cities returns country codes for major city names found in text.
func Cities(text string) Set {
	countries := Set{}
	textLower := strings.ToLower(text)

	for city, code := range cityToCountry {
		if containsWord(textLower, city) {
			countries.Add(code)
		}
	}

	return countries
}

// CountryNames returns country codes for country names mentioned in text.
func CountryNames(text string) Set {
	countries := Set{}
	textLower := strings.ToLower(text)

	for _, code := range geo.Codes() {
		name, _ := geo.CountryName(code)
		if containsWord(textLower, strings.ToLower(name)) {
			countries.Add(code)
		}
	}

	for name, code := range commonNames {
		if containsWord(textLower, name) {
			countries.Add(code)
		}
	}

	return countries
}

// FromText runs all rule-based detectors over text.
func FromText(text string) Set {
	countries := Set{}
	if text == "" {
		return countries
	}

	countries.Union(AirportCodes(text))
	countries.Union(Cities(text))
	countries.Union(CountryNames(text))

	return countries
}

// Comprehensive runs the rule-based detectors plus the entity tagger when one
// is provided.
func Comprehensive(text string, tagger EntityTagger) Set {
	countries := FromText(text)

	if tagger != nil {
		for _, entity := range tagger.LocationEntities(text) {
			if code, ok := geo.Resolve(entity); ok {
				countries.Add(code)
				continue
			}
			if code, ok := cityToCountry[strings.ToLower(entity)]; ok {
				countries.Add(code)
			}
		}
	}

	return countries
}

// containsWord reports whether word appears in text on word boundaries.
// Both arguments must already be lowercase.
func containsWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start

		before := idx == 0 || !isWordByte(text[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(text) || !isWordByte(text[afterIdx])
		if before && after {
			return true
		}

		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}
