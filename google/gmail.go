package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/stampbook/stampbook/errors"
	"github.com/stampbook/stampbook/internal/httpclient"
	"github.com/stampbook/stampbook/scan"
)

const gmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

// GmailClient implements scan.MailClient over the Gmail REST API.
type GmailClient struct {
	baseURL string
	client  *httpclient.SaferClient
	tokens  oauth2.TokenSource
}

// Search returns message ids matching a Gmail search query
func (c *GmailClient) Search(ctx context.Context, query string, max int) ([]string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(max))

	body, err := getJSON(ctx, c.client, c.tokens, c.baseURL+"/users/me/messages?"+params.Encode())
	if err != nil {
		return nil, errors.Wrap(err, "message search failed")
	}

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode message list")
	}

	ids := make([]string, 0, len(result.Messages))
	for _, m := range result.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Message fetches metadata headers and the snippet for one message
func (c *GmailClient) Message(ctx context.Context, id string) (*scan.Message, error) {
	params := url.Values{}
	params.Set("format", "metadata")
	params.Add("metadataHeaders", "Subject")
	params.Add("metadataHeaders", "From")
	params.Add("metadataHeaders", "Date")

	body, err := getJSON(ctx, c.client, c.tokens, c.baseURL+"/users/me/messages/"+url.PathEscape(id)+"?"+params.Encode())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch message %s", id)
	}

	var result struct {
		ID      string `json:"id"`
		Snippet string `json:"snippet"`
		Payload struct {
			Headers []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"headers"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode message")
	}

	message := &scan.Message{ID: result.ID, Snippet: result.Snippet}
	for _, h := range result.Payload.Headers {
		switch h.Name {
		case "Subject":
			message.Subject = h.Value
		case "From":
			message.From = h.Value
		case "Date":
			message.Date = h.Value
		}
	}
	return message, nil
}

func newGetRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	return req, nil
}
