package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stampbook/stampbook/errors"
)

// fakeCalendarClient serves canned events, optionally paginated.
type fakeCalendarClient struct {
	calendars    []string
	events       map[string][]Event
	pageSize     int
	calendarsErr error
	eventsErr    map[string]error
}

func (f *fakeCalendarClient) Calendars(ctx context.Context) ([]string, error) {
	if f.calendarsErr != nil {
		return nil, f.calendarsErr
	}
	return f.calendars, nil
}

func (f *fakeCalendarClient) Events(ctx context.Context, calendarID string, from, to time.Time, max int, pageToken string) (*EventsPage, error) {
	if err := f.eventsErr[calendarID]; err != nil {
		return nil, err
	}

	events := f.events[calendarID]
	start := 0
	if pageToken != "" {
		var err error
		start, err = parsePageToken(pageToken)
		if err != nil {
			return nil, err
		}
	}

	size := len(events) - start
	if f.pageSize > 0 && size > f.pageSize {
		size = f.pageSize
	}
	if size > max {
		size = max
	}
	if size < 0 {
		size = 0
	}

	page := &EventsPage{Events: events[start : start+size]}
	if start+size < len(events) {
		page.NextPageToken = formatPageToken(start + size)
	}
	return page, nil
}

func parsePageToken(token string) (int, error) {
	n := 0
	for _, r := range token {
		if r < '0' || r > '9' {
			return 0, errors.New("bad token")
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

func formatPageToken(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestCalendarScanner_Scan(t *testing.T) {
	client := &fakeCalendarClient{
		calendars: []string{"primary"},
		events: map[string][]Event{
			"primary": {
				{
					ID:       "e1",
					Title:    "Flight to Tokyo",
					Location: "Narita Airport, Japan",
					Start:    EventTime{DateTime: "2023-05-01T08:00:00Z"},
					End:      EventTime{DateTime: "2023-05-01T20:00:00Z"},
				},
				{
					ID:       "e2",
					Title:    "Weekly sync",
					Location: "Room 4",
					Start:    EventTime{DateTime: "2023-05-02T10:00:00Z"},
				},
				{
					ID:    "e3",
					Title: "Summer break",
					Start: EventTime{Date: "2023-07-01"},
					End:   EventTime{Date: "2023-07-14"},
					// Travel by all-day span, but no countries in text
				},
			},
		},
	}

	scanner := NewCalendarScanner(client, nil, zaptest.NewLogger(t).Sugar())
	results, err := scanner.Scan(context.Background(), 10, 100, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "e1", r.ID)
	assert.True(t, r.Countries.Contains("JP"))
	assert.Equal(t, "2023-05-01T08:00:00Z", r.StartDate)
}

func TestCalendarScanner_LocationExtractedSeparately(t *testing.T) {
	client := &fakeCalendarClient{
		calendars: []string{"primary"},
		events: map[string][]Event{
			"primary": {
				{
					ID:       "e1",
					Title:    "Vacation",
					Location: "Lisbon, Portugal",
					Start:    EventTime{Date: "2023-06-01"},
					End:      EventTime{Date: "2023-06-10"},
				},
			},
		},
	}

	scanner := NewCalendarScanner(client, nil, zaptest.NewLogger(t).Sugar())
	results, err := scanner.Scan(context.Background(), 10, 100, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.True(t, results[0].Countries.Contains("PT"))
}

func TestCalendarScanner_Pagination(t *testing.T) {
	events := make([]Event, 7)
	for i := range events {
		events[i] = Event{
			ID:       formatPageToken(i),
			Title:    "Trip to Paris",
			Location: "Paris, France",
			Start:    EventTime{DateTime: "2023-03-01T00:00:00Z"},
		}
	}

	client := &fakeCalendarClient{
		calendars: []string{"primary"},
		events:    map[string][]Event{"primary": events},
		pageSize:  3,
	}

	scanner := NewCalendarScanner(client, nil, zaptest.NewLogger(t).Sugar())
	results, err := scanner.Scan(context.Background(), 10, 100, nil)
	require.NoError(t, err)
	assert.Len(t, results, 7)
}

func TestCalendarScanner_MaxEventsCap(t *testing.T) {
	events := make([]Event, 10)
	for i := range events {
		events[i] = Event{ID: formatPageToken(i), Title: "Flight"}
	}

	client := &fakeCalendarClient{
		calendars: []string{"a", "b"},
		events: map[string][]Event{
			"a": events,
			"b": events,
		},
	}

	scanner := NewCalendarScanner(client, nil, zaptest.NewLogger(t).Sugar())
	collected, err := scanner.collect(context.Background(), 10, 4)
	require.NoError(t, err)
	assert.Len(t, collected, 4)
}

func TestCalendarScanner_CalendarListFails(t *testing.T) {
	client := &fakeCalendarClient{calendarsErr: errors.New("calendar api down")}

	scanner := NewCalendarScanner(client, nil, zaptest.NewLogger(t).Sugar())
	_, err := scanner.Scan(context.Background(), 10, 100, nil)
	assert.Error(t, err)
}

func TestCalendarScanner_BrokenCalendarSkipped(t *testing.T) {
	client := &fakeCalendarClient{
		calendars: []string{"broken", "good"},
		events: map[string][]Event{
			"good": {{
				ID:       "e1",
				Title:    "Trip",
				Location: "Rome, Italy",
				Start:    EventTime{DateTime: "2023-04-01T00:00:00Z"},
			}},
		},
		eventsErr: map[string]error{"broken": errors.New("forbidden")},
	}

	scanner := NewCalendarScanner(client, nil, zaptest.NewLogger(t).Sugar())
	results, err := scanner.Scan(context.Background(), 10, 100, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestCalendarScanner_Progress(t *testing.T) {
	client := &fakeCalendarClient{
		calendars: []string{"primary"},
		events: map[string][]Event{
			"primary": {
				{ID: "e1", Title: "x", Start: EventTime{Date: "2019-08-01"}},
				{ID: "e2", Title: "y"},
			},
		},
	}

	var years []int
	var scans [][2]int
	scanner := NewCalendarScanner(client, nil, zaptest.NewLogger(t).Sugar())
	_, err := scanner.Scan(context.Background(), 10, 100, func(year, scanned, total int) {
		years = append(years, year)
		scans = append(scans, [2]int{scanned, total})
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 0}, years)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, scans)
}

func TestIsTravelEvent(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{
			name:  "title keyword",
			event: Event{Title: "Flight to Madrid"},
			want:  true,
		},
		{
			name:  "meeting counts as travel keyword",
			event: Event{Title: "Board meeting"},
			want:  true,
		},
		{
			name:  "location without local patterns",
			event: Event{Title: "Dinner", Location: "Trastevere, Rome"},
			want:  true,
		},
		{
			name:  "meeting room location rejected",
			event: Event{Title: "Sync", Location: "Conference Room B"},
			want:  false,
		},
		{
			name:  "short location rejected",
			event: Event{Title: "Dinner", Location: "HQ"},
			want:  false,
		},
		{
			name: "multi day all day span",
			event: Event{
				Title: "Break",
				Start: EventTime{Date: "2023-01-01"},
				End:   EventTime{Date: "2023-01-03"},
			},
			want: true,
		},
		{
			name: "single day all day",
			event: Event{
				Title: "Errand",
				Start: EventTime{Date: "2023-01-01"},
				End:   EventTime{Date: "2023-01-02"},
			},
			want: false,
		},
		{
			name:  "nothing travel about it",
			event: Event{Title: "Dentist"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTravelEvent(tt.event))
		})
	}
}
