package scan

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stampbook/stampbook/extract"
)

// titleKeywords mark a calendar event as travel-related.
var titleKeywords = []string{
	"flight",
	"fly",
	"airport",
	"travel",
	"trip",
	"vacation",
	"holiday",
	"hotel",
	"booking",
	"train",
	"bus",
	"tour",
	"visit",
	"conference",
	"meeting", // Business travel
}

// localPatterns rule out locations that are meeting rooms rather than places.
var localPatterns = []string{"room", "office", "building", "floor", "conference"}

const (
	perPageLimit      = 250
	minLocationLength = 5
	minAllDaySpanDays = 2
)

// CalendarScanner walks a user's calendars for travel events and extracts
// countries.
type CalendarScanner struct {
	client CalendarClient
	tagger extract.EntityTagger
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewCalendarScanner creates a calendar scanner. tagger may be nil.
func NewCalendarScanner(client CalendarClient, tagger extract.EntityTagger, logger *zap.SugaredLogger) *CalendarScanner {
	return &CalendarScanner{
		client: client,
		tagger: tagger,
		logger: logger.Named("scan.calendar"),
		now:    time.Now,
	}
}

// Scan collects events from the past yearsBack years across all calendars and
// parses the travel-related ones. progress, if non-nil, is called once per
// event with the event's year (0 when unknown).
func (s *CalendarScanner) Scan(ctx context.Context, yearsBack, maxEvents int, progress func(year, scanned, total int)) ([]EventResult, error) {
	events, err := s.collect(ctx, yearsBack, maxEvents)
	if err != nil {
		return nil, err
	}

	var results []EventResult
	total := len(events)

	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if progress != nil {
			progress(eventYear(event), i+1, total)
		}

		if !isTravelEvent(event) {
			continue
		}

		text := event.Title + " " + event.Location + " " + event.Description
		countries := extract.Comprehensive(text, s.tagger)

		// The location alone often names the place even when the combined
		// text drowns it out.
		if event.Location != "" {
			countries.Union(extract.Comprehensive(event.Location, s.tagger))
		}

		if len(countries) == 0 {
			continue
		}

		results = append(results, EventResult{
			ID:        event.ID,
			Title:     event.Title,
			Location:  event.Location,
			StartDate: event.Start.value(),
			EndDate:   event.End.value(),
			Countries: countries,
		})
	}

	s.logger.Infow("Calendar scan finished",
		"events", total,
		"travel_hits", len(results),
	)

	return results, nil
}

// collect pages through every calendar until maxEvents is reached.
// A calendar that fails mid-walk is skipped; a failed calendar listing fails
// the scan.
func (s *CalendarScanner) collect(ctx context.Context, yearsBack, maxEvents int) ([]Event, error) {
	now := s.now().UTC()
	from := now.AddDate(0, 0, -365*yearsBack)

	calendars, err := s.client.Calendars(ctx)
	if err != nil {
		return nil, err
	}

	var all []Event
	for _, calendarID := range calendars {
		if calendarID == "" {
			continue
		}

		pageToken := ""
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			limit := perPageLimit
			if remaining := maxEvents - len(all); remaining < limit {
				limit = remaining
			}

			page, err := s.client.Events(ctx, calendarID, from, now, limit, pageToken)
			if err != nil {
				s.logger.Warnw("Skipping calendar", "calendar_id", calendarID, "error", err)
				break
			}

			all = append(all, page.Events...)
			if len(all) >= maxEvents {
				break
			}

			pageToken = page.NextPageToken
			if pageToken == "" {
				break
			}
		}

		if len(all) >= maxEvents {
			break
		}
	}

	if len(all) > maxEvents {
		all = all[:maxEvents]
	}
	return all, nil
}

// isTravelEvent applies the title keyword, location, and all-day span
// heuristics in that order.
func isTravelEvent(event Event) bool {
	titleLower := strings.ToLower(event.Title)
	for _, keyword := range titleKeywords {
		if strings.Contains(titleLower, keyword) {
			return true
		}
	}

	if len(event.Location) > minLocationLength {
		locationLower := strings.ToLower(event.Location)
		local := false
		for _, pattern := range localPatterns {
			if strings.Contains(locationLower, pattern) {
				local = true
				break
			}
		}
		if !local {
			return true
		}
	}

	// All-day events spanning multiple days are often vacations
	if event.Start.Date != "" && event.End.Date != "" {
		start, err1 := time.Parse("2006-01-02", event.Start.Date)
		end, err2 := time.Parse("2006-01-02", event.End.Date)
		if err1 == nil && err2 == nil {
			if int(end.Sub(start).Hours()/24) >= minAllDaySpanDays {
				return true
			}
		}
	}

	return false
}

// eventYear pulls the four digit year from the event's start, 0 if absent.
func eventYear(event Event) int {
	dateStr := event.Start.value()
	if len(dateStr) < 4 {
		return 0
	}
	year, err := strconv.Atoi(dateStr[:4])
	if err != nil {
		return 0
	}
	return year
}
