package notify

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stampbook/stampbook/config"
	"github.com/stampbook/stampbook/internal/httpclient"
	"github.com/stampbook/stampbook/logger"
)

type fakeTokens struct {
	tokens []string
	err    error
	calls  int
}

func (f *fakeTokens) DeviceTokens(string) ([]string, error) {
	f.calls++
	return f.tokens, f.err
}

func writeTestKey(t *testing.T) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "apns.p8")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))
	return path
}

func newTestAPNs(t *testing.T, baseURL string, client *http.Client, tokens TokenSource) *APNs {
	t.Helper()
	return &APNs{
		cfg: config.APNsConfig{
			KeyID:          "KEY123",
			TeamID:         "TEAM456",
			BundleID:       "com.example.stampbook",
			PrivateKeyPath: writeTestKey(t),
			Sandbox:        true,
		},
		tokens:  tokens,
		client:  httpclient.WrapClient(client),
		log:     logger.Named("test"),
		baseURL: baseURL,
		now:     time.Now,
	}
}

func TestNotify_SendsToEachDevice(t *testing.T) {
	type captured struct {
		path    string
		headers http.Header
		payload map[string]any
	}
	var requests []captured

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		requests = append(requests, captured{r.URL.Path, r.Header.Clone(), payload})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	apns := newTestAPNs(t, srv.URL, srv.Client(), &fakeTokens{tokens: []string{"tok1", "tok2"}})

	err := apns.Notify(context.Background(), "user-1", ImportCompleted(1, []string{"France"}))
	require.NoError(t, err)
	require.Len(t, requests, 2)

	first := requests[0]
	assert.Equal(t, "/3/device/tok1", first.path)
	assert.Equal(t, "/3/device/tok2", requests[1].path)

	assert.Equal(t, "com.example.stampbook", first.headers.Get("apns-topic"))
	assert.Equal(t, "10", first.headers.Get("apns-priority"))
	assert.Equal(t, "alert", first.headers.Get("apns-push-type"))
	assert.Contains(t, first.headers.Get("Authorization"), "bearer ")

	aps := first.payload["aps"].(map[string]any)
	alert := aps["alert"].(map[string]any)
	assert.Equal(t, "Import Complete", alert["title"])
	assert.Equal(t, "Found 1 new country: France. Tap to review.", alert["body"])
	assert.Equal(t, "IMPORT_REVIEW", aps["category"])
	assert.Equal(t, "review_import", first.payload["action"])
}

func TestNotify_NotConfiguredSkips(t *testing.T) {
	tokens := &fakeTokens{tokens: []string{"tok1"}}
	apns := &APNs{
		cfg:    config.APNsConfig{},
		tokens: tokens,
		log:    logger.Named("test"),
		now:    time.Now,
	}

	err := apns.Notify(context.Background(), "user-1", ImportFailed("boom"))
	require.NoError(t, err)
	assert.Zero(t, tokens.calls, "device tokens not consulted when unconfigured")
}

func TestNotify_NoDevices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	apns := newTestAPNs(t, srv.URL, srv.Client(), &fakeTokens{})
	err := apns.Notify(context.Background(), "user-1", ImportFailed("boom"))
	assert.NoError(t, err)
}

func TestNotify_DeliveryFailureDoesNotAbort(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/3/device/bad" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	apns := newTestAPNs(t, srv.URL, srv.Client(), &fakeTokens{tokens: []string{"bad", "good"}})

	err := apns.Notify(context.Background(), "user-1", ImportCompleted(0, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"/3/device/bad", "/3/device/good"}, paths)
}

func TestBearerToken_Reuse(t *testing.T) {
	current := time.Now()
	apns := newTestAPNs(t, "http://unused", http.DefaultClient, &fakeTokens{})
	apns.now = func() time.Time { return current }

	first, err := apns.bearerToken()
	require.NoError(t, err)

	current = current.Add(10 * time.Minute)
	second, err := apns.bearerToken()
	require.NoError(t, err)
	assert.Equal(t, first, second, "token reused inside refresh window")

	current = current.Add(50 * time.Minute)
	third, err := apns.bearerToken()
	require.NoError(t, err)
	assert.NotEqual(t, first, third, "token refreshed after window")
}
