// Package evidence aggregates per-country scan hits and ranks import
// candidates.
package evidence

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/stampbook/stampbook/geo"
	"github.com/stampbook/stampbook/scan"
)

const (
	maxSamplesPerCountry  = 5
	maxEmailSamples       = 3
	maxCalendarSamples    = 2
	sampleTitleKeep       = 100
	sampleSnippetKeep     = 100
	baseConfidence        = 0.5
	confidencePerMention  = 0.05
	confidenceCap         = 0.9
	flightBonus           = 0.1
	confidenceAbsoluteCap = 0.99
)

// SourceSample is one piece of evidence shown to the user for review.
type SourceSample struct {
	ID         string `json:"id"`
	SourceType string `json:"source_type"`
	Title      string `json:"title"`
	Date       string `json:"date,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// Candidate is a country proposed for import, with its supporting evidence.
type Candidate struct {
	CountryCode        string         `json:"country_code"`
	CountryName        string         `json:"country_name"`
	EmailCount         int            `json:"email_count"`
	CalendarEventCount int            `json:"calendar_event_count"`
	SampleSources      []SourceSample `json:"sample_sources"`
	Confidence         float64        `json:"confidence"`
}

// Tally is the per-country accumulation for one source.
type Tally struct {
	Count   int
	Samples []SourceSample
}

// AggregateEmails tallies country mentions across parsed emails.
// An email mentioning a country counts once for it; up to five samples are
// kept per country.
func AggregateEmails(emails []scan.EmailResult) map[string]*Tally {
	tallies := make(map[string]*Tally)

	for _, email := range emails {
		for code := range email.Countries {
			tally, ok := tallies[code]
			if !ok {
				tally = &Tally{}
				tallies[code] = tally
			}

			tally.Count++

			if len(tally.Samples) < maxSamplesPerCountry {
				title := truncate(email.Subject, sampleTitleKeep)
				if title == "" {
					title = "Email"
				}
				tally.Samples = append(tally.Samples, SourceSample{
					ID:         email.ID,
					SourceType: "email",
					Title:      title,
					Date:       email.Date,
					Snippet:    truncate(email.Snippet, sampleSnippetKeep),
				})
			}
		}
	}

	return tallies
}

// AggregateEvents tallies country mentions across parsed calendar events.
func AggregateEvents(events []scan.EventResult) map[string]*Tally {
	tallies := make(map[string]*Tally)

	for _, event := range events {
		for code := range event.Countries {
			tally, ok := tallies[code]
			if !ok {
				tally = &Tally{}
				tallies[code] = tally
			}

			tally.Count++

			if len(tally.Samples) < maxSamplesPerCountry {
				title := truncate(event.Title, sampleTitleKeep)
				if title == "" {
					title = "Event"
				}
				tally.Samples = append(tally.Samples, SourceSample{
					ID:         event.ID,
					SourceType: "calendar",
					Title:      title,
					Date:       event.StartDate,
					Snippet:    truncate(event.Location, sampleSnippetKeep),
				})
			}
		}
	}

	return tallies
}

// Score computes the confidence for a detection: 0.5 plus 0.05 per mention,
// capped at 0.9, with a 0.1 flight bonus capped at 0.99.
func Score(emailCount, calendarCount int, hasFlight bool) float64 {
	total := emailCount + calendarCount
	score := math.Min(baseConfidence+float64(total)*confidencePerMention, confidenceCap)

	if hasFlight {
		score = math.Min(score+flightBonus, confidenceAbsoluteCap)
	}

	return math.Round(score*100) / 100
}

// BuildCandidates merges the two source tallies into ranked candidates,
// excluding countries in exclude (the user's already-visited set).
func BuildCandidates(emailTallies, calendarTallies map[string]*Tally, exclude map[string]struct{}) []Candidate {
	codes := make([]string, 0, len(emailTallies)+len(calendarTallies))
	seen := make(map[string]struct{})
	for code := range emailTallies {
		seen[code] = struct{}{}
	}
	for code := range calendarTallies {
		seen[code] = struct{}{}
	}
	for code := range seen {
		if _, visited := exclude[code]; !visited {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	candidates := make([]Candidate, 0, len(codes))
	for _, code := range codes {
		name, ok := geo.CountryName(code)
		if !ok {
			continue
		}

		var emailCount, calendarCount int
		var samples []SourceSample

		if tally := emailTallies[code]; tally != nil {
			emailCount = tally.Count
			samples = append(samples, headSamples(tally.Samples, maxEmailSamples)...)
		}
		if tally := calendarTallies[code]; tally != nil {
			calendarCount = tally.Count
			samples = append(samples, headSamples(tally.Samples, maxCalendarSamples)...)
		}

		candidates = append(candidates, Candidate{
			CountryCode:        code,
			CountryName:        name,
			EmailCount:         emailCount,
			CalendarEventCount: calendarCount,
			SampleSources:      samples,
			Confidence:         Score(emailCount, calendarCount, mentionsFlight(samples)),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].EmailCount+candidates[i].CalendarEventCount >
			candidates[j].EmailCount+candidates[j].CalendarEventCount
	})

	return candidates
}

func headSamples(samples []SourceSample, max int) []SourceSample {
	if len(samples) > max {
		return samples[:max]
	}
	return samples
}

func mentionsFlight(samples []SourceSample) bool {
	for _, sample := range samples {
		if strings.Contains(strings.ToLower(sample.Title), "flight") {
			return true
		}
	}
	return false
}

// truncate cuts s to at most max runes, never splitting a multi-byte
// character.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
