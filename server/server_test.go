package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stampbook/stampbook/config"
	"github.com/stampbook/stampbook/db"
	"github.com/stampbook/stampbook/google"
	"github.com/stampbook/stampbook/importer"
	"github.com/stampbook/stampbook/scan"
)

type stubMail struct {
	ids  []string
	msgs map[string]*scan.Message
}

func (m *stubMail) Search(ctx context.Context, query string, max int) ([]string, error) {
	return m.ids, nil
}

func (m *stubMail) Message(ctx context.Context, id string) (*scan.Message, error) {
	return m.msgs[id], nil
}

type stubCalendar struct {
	events []scan.Event
	err    error
}

func (c *stubCalendar) Calendars(ctx context.Context) ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	return []string{"primary"}, nil
}

func (c *stubCalendar) Events(ctx context.Context, calendarID string, from, to time.Time, max int, pageToken string) (*scan.EventsPage, error) {
	return &scan.EventsPage{Events: c.events}, nil
}

type stubSources struct {
	connected bool
	mail      scan.MailClient
	calendar  scan.CalendarClient
}

func (s *stubSources) IsConnected(ctx context.Context, userID string) (bool, error) {
	return s.connected, nil
}

func (s *stubSources) MailClient(ctx context.Context, userID string) (scan.MailClient, error) {
	return s.mail, nil
}

func (s *stubSources) CalendarClient(ctx context.Context, userID string) (scan.CalendarClient, error) {
	return s.calendar, nil
}

type testEnv struct {
	server  *Server
	store   *importer.Store
	tokens  *google.TokenStore
	sources *stubSources
	conn    *sql.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := db.OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{
			Addr:           ":0",
			AllowedOrigins: []string{"http://localhost"},
		},
		Import: config.ImportConfig{
			MaxEmails:               100,
			MaxEvents:               100,
			SyncMaxEmails:           50,
			SyncMaxEvents:           50,
			YearsBack:               10,
			ResultTTLHours:          24,
			ProgressIntervalSeconds: 2,
		},
	}

	store := importer.NewStore(conn)
	sources := &stubSources{
		mail: &stubMail{
			ids: []string{"m1"},
			msgs: map[string]*scan.Message{
				"m1": {
					ID:      "m1",
					Subject: "Your flight to Paris",
					From:    "noreply@airline.com",
					Snippet: "Boarding pass attached",
				},
			},
		},
		calendar: &stubCalendar{},
	}

	orch := importer.NewOrchestrator(store, sources, nil, nil, importer.Options{
		MaxEmails:        cfg.Import.MaxEmails,
		MaxEvents:        cfg.Import.MaxEvents,
		YearsBack:        cfg.Import.YearsBack,
		ResultTTL:        time.Duration(cfg.Import.ResultTTLHours) * time.Hour,
		ProgressInterval: time.Duration(cfg.Import.ProgressIntervalSeconds) * time.Second,
	})
	runner := importer.NewRunner(store, orch)
	t.Cleanup(runner.Stop)

	tokens := google.NewTokenStore(conn)
	googleSvc := google.NewService(config.GoogleConfig{}, tokens)

	return &testEnv{
		server:  New(cfg, store, runner, orch, googleSvc),
		store:   store,
		tokens:  tokens,
		sources: sources,
		conn:    conn,
	}
}

// connect marks the account connected for both the token store and the
// orchestrator's sources.
func (e *testEnv) connect(t *testing.T, userID string) {
	t.Helper()
	e.sources.connected = true
	require.NoError(t, e.tokens.Save(&google.Token{
		UserID:       userID,
		Email:        "traveler@example.com",
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}))
}

func (e *testEnv) request(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestMissingUserIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/import/scan/start", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScanStart_NotConnected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/import/scan/start", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "not connected")
}

func TestScanStart_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/import/scan/start", "user-1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAsyncScanLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "user-1")

	rec := env.request(t, http.MethodPost, "/api/import/scan/start", "user-1", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decodeBody(t, rec)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "pending", body["status"])

	require.Eventually(t, func() bool {
		rec := env.request(t, http.MethodGet, "/api/import/scan/status/"+jobID, "user-1", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		return decodeBody(t, rec)["status"] == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	rec = env.request(t, http.MethodGet, "/api/import/scan/status/"+jobID, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody(t, rec)
	assert.Equal(t, float64(1), status["candidates_count"], "completed status carries the outcome")
	assert.Equal(t, float64(1), status["scanned_emails"])

	rec = env.request(t, http.MethodGet, "/api/import/scan/results/"+jobID, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var results importer.Results
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results.Candidates, 1)
	assert.Equal(t, "FR", results.Candidates[0].CountryCode)
	assert.Equal(t, 1, results.ScannedEmails)
}

func TestScanStatus_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/import/scan/status/nope", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanStatus_OtherUsersJobHidden(t *testing.T) {
	env := newTestEnv(t)

	job := importer.NewJob("user-1")
	require.NoError(t, env.store.CreateJob(job))

	rec := env.request(t, http.MethodGet, "/api/import/scan/status/"+job.ID, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanResults_NotCompleted(t *testing.T) {
	env := newTestEnv(t)

	job := importer.NewJob("user-1")
	require.NoError(t, env.store.CreateJob(job))

	rec := env.request(t, http.MethodGet, "/api/import/scan/results/"+job.ID, "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "pending")
}

func TestScanResults_Expired(t *testing.T) {
	env := newTestEnv(t)

	job := importer.NewJob("user-1")
	require.NoError(t, job.Complete(0, 0, 0))
	require.NoError(t, env.store.CreateJob(job))
	require.NoError(t, env.store.UpdateJob(job))
	require.NoError(t, env.store.StoreResults("user-1", job.ID, &importer.Results{}, -time.Minute))

	rec := env.request(t, http.MethodGet, "/api/import/scan/results/"+job.ID, "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "expired")
}

func TestScanSync(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/import/scan", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "not connected")

	env.connect(t, "user-1")
	rec = env.request(t, http.MethodPost, "/api/import/scan", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	candidates := body["candidates"].([]interface{})
	require.Len(t, candidates, 1)
	assert.Contains(t, body, "scan_duration_seconds")
}

func TestScanSync_SourceFailure(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "user-1")
	env.sources.calendar = &stubCalendar{err: context.DeadlineExceeded}

	rec := env.request(t, http.MethodPost, "/api/import/scan", "user-1", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestConfirm(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/import/confirm", "user-1", map[string]interface{}{
		"country_codes": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/import/confirm", "user-1", map[string]interface{}{
		"country_codes": []string{"FR", "JP", "ZZ"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["imported"], "unknown code skipped")

	visited, err := env.store.VisitedCountryCodes("user-1")
	require.NoError(t, err)
	assert.Contains(t, visited, "FR")
	assert.Contains(t, visited, "JP")

	// Re-confirming already visited countries is a no-op
	rec = env.request(t, http.MethodPost, "/api/import/confirm", "user-1", map[string]interface{}{
		"country_codes": []string{"FR"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["imported"])
}

func TestConnectionStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/import/status", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["is_connected"])

	env.connect(t, "user-1")
	rec = env.request(t, http.MethodGet, "/api/import/status", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["is_connected"])
	assert.Equal(t, "traveler@example.com", body["email"])
}

func TestDeviceTokenEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/import/notifications/register", "user-1", map[string]string{
		"device_token": "tok1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["registered"])

	tokens, err := env.store.DeviceTokens("user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok1"}, tokens)

	rec = env.request(t, http.MethodDelete, "/api/import/notifications/unregister?device_token=tok1", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tokens, err = env.store.DeviceTokens("user-1")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestDeviceRegister_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/import/notifications/register", "user-1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/import/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
