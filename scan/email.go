package scan

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/stampbook/stampbook/extract"
)

// travelQueries are the provider search queries used to find travel emails.
var travelQueries = []string{
	// Flight bookings
	`subject:(flight OR "boarding pass" OR itinerary OR "flight confirmation")`,
	`from:(airline OR airways OR airlines)`,
	`subject:("e-ticket" OR eticket)`,
	// Hotel bookings
	`subject:(reservation OR booking OR confirmation) from:(hotel OR booking.com OR airbnb OR vrbo OR expedia)`,
	`subject:("hotel confirmation" OR "reservation confirmed")`,
	// Train tickets
	`subject:(train OR railway) (ticket OR booking OR confirmation)`,
	`from:(eurostar OR thalys OR sncf OR db OR trenitalia OR amtrak OR renfe)`,
	// Car rentals
	`subject:("car rental" OR "rental car") (confirmation OR booking)`,
	`from:(hertz OR avis OR enterprise OR sixt OR europcar OR budget)`,
	// Travel itineraries
	`from:(tripit OR kayak OR google) subject:(itinerary OR trip)`,
	// General travel
	`subject:(travel OR trip) confirmation`,
}

// subjectKeywords mark an email as travel-related when found in the subject.
var subjectKeywords = []string{
	"flight",
	"booking",
	"reservation",
	"confirmation",
	"itinerary",
	"boarding pass",
	"e-ticket",
	"hotel",
	"train",
	"car rental",
	"trip",
	"travel",
	"check-in",
	"checkout",
}

// senderKeywords mark an email as travel-related when found in the sender.
var senderKeywords = []string{
	"airline",
	"airways",
	"booking.com",
	"airbnb",
	"vrbo",
	"expedia",
	"hotels.com",
	"tripadvisor",
	"kayak",
	"tripit",
	"eurostar",
	"hertz",
	"avis",
	"enterprise",
	"sixt",
}

const (
	perQueryLimit    = 100
	emailSnippetKeep = 200
)

// EmailScanner searches a mailbox for travel emails and extracts countries.
// Email text goes through the rule-based detectors only; subjects and
// snippets are too short and noisy for entity tagging to help.
type EmailScanner struct {
	client MailClient
	logger *zap.SugaredLogger
}

// NewEmailScanner creates an email scanner.
func NewEmailScanner(client MailClient, logger *zap.SugaredLogger) *EmailScanner {
	return &EmailScanner{
		client: client,
		logger: logger.Named("scan.email"),
	}
}

// Scan searches, fetches, and parses up to maxEmails travel emails.
// progress, if non-nil, is called once per fetched message.
func (s *EmailScanner) Scan(ctx context.Context, maxEmails int, progress func(scanned, total int)) ([]EmailResult, error) {
	ids, err := s.search(ctx, maxEmails)
	if err != nil {
		return nil, err
	}

	var results []EmailResult
	total := len(ids)

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if progress != nil {
			progress(i+1, total)
		}

		msg, err := s.client.Message(ctx, id)
		if err != nil {
			s.logger.Debugw("Skipping unfetchable message", "id", id, "error", err)
			continue
		}

		if !isTravelEmail(msg.Subject, msg.From) {
			continue
		}

		text := msg.Subject + " " + msg.Snippet + " " + msg.From
		countries := extract.Comprehensive(text, nil)
		if len(countries) == 0 {
			continue
		}

		results = append(results, EmailResult{
			ID:        msg.ID,
			Subject:   msg.Subject,
			Sender:    msg.From,
			Date:      parseEmailDate(msg.Date),
			Snippet:   truncate(msg.Snippet, emailSnippetKeep),
			Countries: countries,
		})
	}

	s.logger.Infow("Email scan finished",
		"searched", total,
		"travel_hits", len(results),
	)

	return results, nil
}

// search runs every travel query, deduplicating message ids across queries.
// Individual query failures are skipped; the remaining queries still run.
func (s *EmailScanner) search(ctx context.Context, maxEmails int) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})

	for _, query := range travelQueries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(all) >= maxEmails {
			break
		}

		limit := perQueryLimit
		if remaining := maxEmails - len(all); remaining < limit {
			limit = remaining
		}

		ids, err := s.client.Search(ctx, query, limit)
		if err != nil {
			s.logger.Warnw("Search query failed", "query", query, "error", err)
			continue
		}

		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			all = append(all, id)
		}
	}

	if len(all) > maxEmails {
		all = all[:maxEmails]
	}
	return all, nil
}

// isTravelEmail reports whether subject or sender carry travel markers.
func isTravelEmail(subject, sender string) bool {
	subjectLower := strings.ToLower(subject)
	senderLower := strings.ToLower(sender)

	for _, keyword := range subjectKeywords {
		if strings.Contains(subjectLower, keyword) {
			return true
		}
	}

	for _, keyword := range senderKeywords {
		if strings.Contains(senderLower, keyword) {
			return true
		}
	}

	return false
}

var dateCommentPattern = regexp.MustCompile(`\s*\([^)]*\)`)

var emailDateFormats = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05",
}

// parseEmailDate converts an RFC 2822 style date header to ISO 8601.
// Returns "" when the header is empty or unparseable.
func parseEmailDate(dateStr string) string {
	if dateStr == "" {
		return ""
	}

	dateStr = strings.TrimSpace(dateCommentPattern.ReplaceAllString(dateStr, ""))

	for _, format := range emailDateFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t.Format(time.RFC3339)
		}
	}

	return ""
}

// truncate cuts s to at most max runes, never splitting a multi-byte
// character.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
