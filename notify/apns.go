package notify

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/stampbook/stampbook/config"
	"github.com/stampbook/stampbook/errors"
	"github.com/stampbook/stampbook/internal/httpclient"
	"github.com/stampbook/stampbook/logger"
)

const (
	sandboxURL    = "https://api.sandbox.push.apple.com"
	productionURL = "https://api.push.apple.com"

	// Provider tokens are valid for one hour; reuse for 50 minutes.
	bearerReuseWindow = 3000 * time.Second
)

// TokenSource resolves a user's registered device tokens.
type TokenSource interface {
	DeviceTokens(userID string) ([]string, error)
}

// APNs sends notifications through the Apple Push Notification service.
// When the key configuration is incomplete it degrades to a no-op so that
// deployments without push credentials keep working.
type APNs struct {
	cfg     config.APNsConfig
	tokens  TokenSource
	client  *httpclient.SaferClient
	log     *zap.SugaredLogger
	baseURL string
	now     func() time.Time

	mu           sync.Mutex
	key          *ecdsa.PrivateKey
	bearer       string
	bearerIssued time.Time
}

// NewAPNs creates an APNs notifier from configuration
func NewAPNs(cfg config.APNsConfig, tokens TokenSource) *APNs {
	base := productionURL
	if cfg.Sandbox {
		base = sandboxURL
	}

	// APNs requires HTTP/2
	client := httpclient.NewSaferClient(30 * time.Second)
	if transport, ok := client.Transport.(*http.Transport); ok {
		transport.ForceAttemptHTTP2 = true
	}

	return &APNs{
		cfg:     cfg,
		tokens:  tokens,
		client:  client,
		log:     logger.Named("notify.apns"),
		baseURL: base,
		now:     time.Now,
	}
}

// Notify sends the notification to every device registered for the user.
// Individual delivery failures are logged and skipped.
func (a *APNs) Notify(ctx context.Context, userID string, n Notification) error {
	if !a.cfg.Configured() {
		a.log.Debugw("APNs not configured, skipping notification", "user_id", userID)
		return nil
	}

	tokens, err := a.tokens.DeviceTokens(userID)
	if err != nil {
		return errors.Wrap(err, "failed to load device tokens")
	}
	if len(tokens) == 0 {
		a.log.Debugw("No device tokens registered", "user_id", userID)
		return nil
	}

	sent := 0
	for _, deviceToken := range tokens {
		if err := a.send(ctx, deviceToken, n); err != nil {
			a.log.Warnw("Push delivery failed",
				"user_id", userID,
				"error", err)
			continue
		}
		sent++
	}

	a.log.Infow("Push notifications delivered",
		"user_id", userID,
		"sent", sent,
		"devices", len(tokens))
	return nil
}

func (a *APNs) send(ctx context.Context, deviceToken string, n Notification) error {
	bearer, err := a.bearerToken()
	if err != nil {
		return err
	}

	body, err := json.Marshal(buildPayload(n))
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload")
	}

	url := a.baseURL + "/3/device/" + deviceToken
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("authorization", "bearer "+bearer)
	req.Header.Set("apns-topic", a.cfg.BundleID)
	req.Header.Set("apns-priority", "10")
	req.Header.Set("apns-push-type", "alert")

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "apns request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("apns rejected notification: status %d: %s", resp.StatusCode, reason)
	}

	return nil
}

// buildPayload assembles the APNs JSON body: the aps dictionary plus any
// custom data keys at the top level.
func buildPayload(n Notification) map[string]any {
	sound := n.Sound
	if sound == "" {
		sound = "default"
	}

	aps := map[string]any{
		"alert": map[string]string{
			"title": n.Title,
			"body":  n.Body,
		},
		"sound": sound,
	}
	if n.Badge != nil {
		aps["badge"] = *n.Badge
	}
	if n.Category != "" {
		aps["category"] = n.Category
	}

	payload := map[string]any{"aps": aps}
	for k, v := range n.Data {
		payload[k] = v
	}
	return payload
}

// bearerToken returns a signed provider token, reusing the cached one while
// it is still fresh.
func (a *APNs) bearerToken() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bearer != "" && a.now().Sub(a.bearerIssued) < bearerReuseWindow {
		return a.bearer, nil
	}

	if a.key == nil {
		pemBytes, err := os.ReadFile(a.cfg.PrivateKeyPath)
		if err != nil {
			return "", errors.Wrap(err, "failed to read APNs private key")
		}
		key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
		if err != nil {
			return "", errors.Wrap(err, "failed to parse APNs private key")
		}
		a.key = key
	}

	issued := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": a.cfg.TeamID,
		"iat": issued.Unix(),
	})
	token.Header["kid"] = a.cfg.KeyID

	signed, err := token.SignedString(a.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign APNs token")
	}

	a.bearer = signed
	a.bearerIssued = issued
	return signed, nil
}
