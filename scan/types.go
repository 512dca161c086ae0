// Package scan finds travel evidence in a user's mailbox and calendars.
//
// Scanners speak to their sources through the MailClient and CalendarClient
// interfaces so the Gmail and Calendar adapters, and test fakes, stay
// interchangeable.
package scan

import (
	"context"
	"time"

	"github.com/stampbook/stampbook/extract"
)

// MailClient is the mailbox surface the email scanner needs.
type MailClient interface {
	// Search returns message ids matching a provider search query, at most max.
	Search(ctx context.Context, query string, max int) ([]string, error)
	// Message fetches metadata for a single message.
	Message(ctx context.Context, id string) (*Message, error)
}

// Message is email metadata: headers plus the provider's snippet.
type Message struct {
	ID      string
	Subject string
	From    string
	Date    string
	Snippet string
}

// CalendarClient is the calendar surface the calendar scanner needs.
type CalendarClient interface {
	// Calendars returns the ids of the user's calendars.
	Calendars(ctx context.Context) ([]string, error)
	// Events returns one page of events in [from, to] for a calendar.
	Events(ctx context.Context, calendarID string, from, to time.Time, max int, pageToken string) (*EventsPage, error)
}

// EventsPage is one page of calendar events.
type EventsPage struct {
	Events        []Event
	NextPageToken string
}

// EventTime is a calendar event boundary: DateTime for timed events, Date for
// all-day events.
type EventTime struct {
	DateTime string
	Date     string
}

// Event is a calendar event as returned by the source.
type Event struct {
	ID          string
	Title       string
	Location    string
	Description string
	Start       EventTime
	End         EventTime
}

// value returns whichever representation the boundary carries.
func (t EventTime) value() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// EmailResult is a travel-related email with its extracted countries.
type EmailResult struct {
	ID        string
	Subject   string
	Sender    string
	Date      string
	Snippet   string
	Countries extract.Set
}

// EventResult is a travel-related calendar event with its extracted countries.
type EventResult struct {
	ID        string
	Title     string
	Location  string
	StartDate string
	EndDate   string
	Countries extract.Set
}
