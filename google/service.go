package google

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/stampbook/stampbook/config"
	"github.com/stampbook/stampbook/errors"
	"github.com/stampbook/stampbook/internal/httpclient"
	"github.com/stampbook/stampbook/logger"
	"github.com/stampbook/stampbook/scan"
)

const (
	authURL     = "https://accounts.google.com/o/oauth2/auth"
	tokenURL    = "https://oauth2.googleapis.com/token"
	userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

var scopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/calendar.readonly",
}

// Service handles the Google OAuth flow and hands out per-user API clients.
// It satisfies the importer's Sources interface.
type Service struct {
	oauth  *oauth2.Config
	store  *TokenStore
	client *httpclient.SaferClient
	log    *zap.SugaredLogger

	// Overridable in tests
	gmailBaseURL    string
	calendarBaseURL string
	userinfoBaseURL string
}

// NewService creates a Google service from configuration
func NewService(cfg config.GoogleConfig, store *TokenStore) *Service {
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		store:           store,
		client:          httpclient.NewSaferClient(30 * time.Second),
		log:             logger.Named("google"),
		gmailBaseURL:    gmailBaseURL,
		calendarBaseURL: calendarBaseURL,
		userinfoBaseURL: userinfoURL,
	}
}

// AuthURL returns the consent page URL for the OAuth flow
func (s *Service) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens, resolves the account
// email, and stores the credential. Returns the connected email.
func (s *Service) Exchange(ctx context.Context, userID, code string) (string, error) {
	if s.oauth.ClientID == "" || s.oauth.ClientSecret == "" {
		return "", errors.New("google oauth not configured: missing client credentials")
	}
	if s.oauth.RedirectURL == "" {
		return "", errors.New("google oauth not configured: missing redirect URI")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return "", errors.Wrap(err, "token exchange failed")
	}

	email, err := s.fetchEmail(ctx, token)
	if err != nil {
		return "", err
	}

	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = time.Now().UTC().Add(time.Hour)
	}

	err = s.store.Save(&Token{
		UserID:       userID,
		Email:        email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       expiry,
	})
	if err != nil {
		return "", err
	}

	s.log.Infow("Google account connected", "user_id", userID, "email", email)
	return email, nil
}

func (s *Service) fetchEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	body, err := getJSON(ctx, s.client, oauth2.StaticTokenSource(token), s.userinfoBaseURL)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch user info")
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", errors.Wrap(err, "failed to decode user info")
	}
	return info.Email, nil
}

// IsConnected reports whether the user has stored Google credentials.
// A token row without a refresh token cannot survive access-token expiry,
// so it does not count as connected.
func (s *Service) IsConnected(ctx context.Context, userID string) (bool, error) {
	token, err := s.store.Get(userID)
	if errors.IsNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return token.RefreshToken != "", nil
}

// ConnectionStatus returns whether the account is connected and its email
func (s *Service) ConnectionStatus(userID string) (bool, string, error) {
	token, err := s.store.Get(userID)
	if errors.IsNotFoundError(err) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, token.Email, nil
}

// Disconnect removes the user's stored credentials
func (s *Service) Disconnect(userID string) error {
	return s.store.Delete(userID)
}

// MailClient returns a Gmail adapter authenticated as the user
func (s *Service) MailClient(ctx context.Context, userID string) (scan.MailClient, error) {
	source, err := s.tokenSource(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &GmailClient{baseURL: s.gmailBaseURL, client: s.client, tokens: source}, nil
}

// CalendarClient returns a Calendar adapter authenticated as the user
func (s *Service) CalendarClient(ctx context.Context, userID string) (scan.CalendarClient, error) {
	source, err := s.tokenSource(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CalendarAPIClient{baseURL: s.calendarBaseURL, client: s.client, tokens: source}, nil
}

// tokenSource builds a refreshing token source that writes refreshed access
// tokens back to the store.
func (s *Service) tokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	stored, err := s.store.Get(userID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil, errors.Wrapf(errors.ErrNotConnected, "user %s", userID)
		}
		return nil, err
	}

	current := stored.oauth2Token()
	return &persistingTokenSource{
		inner:  s.oauth.TokenSource(ctx, current),
		store:  s.store,
		stored: stored,
		last:   current.AccessToken,
	}, nil
}

// persistingTokenSource saves tokens back to the store after a refresh.
type persistingTokenSource struct {
	inner  oauth2.TokenSource
	store  *TokenStore
	stored *Token
	last   string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.inner.Token()
	if err != nil {
		return nil, errors.Wrap(err, "failed to refresh google token")
	}

	if token.AccessToken != p.last {
		p.last = token.AccessToken
		p.stored.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			p.stored.RefreshToken = token.RefreshToken
		}
		p.stored.Expiry = token.Expiry
		if err := p.store.Save(p.stored); err != nil {
			return nil, err
		}
	}

	return token, nil
}

// getJSON performs an authenticated GET and returns the response body.
func getJSON(ctx context.Context, client *httpclient.SaferClient, tokens oauth2.TokenSource, url string) ([]byte, error) {
	token, err := tokens.Token()
	if err != nil {
		return nil, err
	}

	req, err := newGetRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != 200 {
		return nil, errors.Newf("google api error: status %d: %s", resp.StatusCode, truncateBody(body))
	}

	return body, nil
}

func truncateBody(body []byte) string {
	const keep = 256
	if len(body) > keep {
		return string(body[:keep])
	}
	return string(body)
}
