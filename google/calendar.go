package google

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/stampbook/stampbook/errors"
	"github.com/stampbook/stampbook/internal/httpclient"
	"github.com/stampbook/stampbook/scan"
)

const calendarBaseURL = "https://www.googleapis.com/calendar/v3"

// CalendarAPIClient implements scan.CalendarClient over the Calendar REST API.
type CalendarAPIClient struct {
	baseURL string
	client  *httpclient.SaferClient
	tokens  oauth2.TokenSource
}

// Calendars returns the ids of the user's calendars
func (c *CalendarAPIClient) Calendars(ctx context.Context) ([]string, error) {
	body, err := getJSON(ctx, c.client, c.tokens, c.baseURL+"/users/me/calendarList")
	if err != nil {
		return nil, errors.Wrap(err, "calendar list failed")
	}

	var result struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode calendar list")
	}

	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		ids = append(ids, item.ID)
	}
	return ids, nil
}

// Events returns one page of expanded events ordered by start time
func (c *CalendarAPIClient) Events(ctx context.Context, calendarID string, from, to time.Time, max int, pageToken string) (*scan.EventsPage, error) {
	params := url.Values{}
	params.Set("timeMin", from.UTC().Format(time.RFC3339))
	params.Set("timeMax", to.UTC().Format(time.RFC3339))
	params.Set("maxResults", strconv.Itoa(max))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	body, err := getJSON(ctx, c.client, c.tokens, c.baseURL+"/calendars/"+url.PathEscape(calendarID)+"/events?"+params.Encode())
	if err != nil {
		return nil, errors.Wrapf(err, "event list failed for calendar %s", calendarID)
	}

	var result struct {
		Items []struct {
			ID          string `json:"id"`
			Summary     string `json:"summary"`
			Location    string `json:"location"`
			Description string `json:"description"`
			Start       struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
			} `json:"start"`
			End struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
			} `json:"end"`
		} `json:"items"`
		NextPageToken string `json:"nextPageToken"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode event list")
	}

	page := &scan.EventsPage{NextPageToken: result.NextPageToken}
	for _, item := range result.Items {
		page.Events = append(page.Events, scan.Event{
			ID:          item.ID,
			Title:       item.Summary,
			Location:    item.Location,
			Description: item.Description,
			Start:       scan.EventTime{DateTime: item.Start.DateTime, Date: item.Start.Date},
			End:         scan.EventTime{DateTime: item.End.DateTime, Date: item.End.Date},
		})
	}
	return page, nil
}
