package importer

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/stampbook/stampbook/errors"
	"github.com/stampbook/stampbook/evidence"
)

// Results is the reviewable outcome of a completed job.
type Results struct {
	Candidates    []evidence.Candidate `json:"candidates"`
	ScannedEmails int                  `json:"scanned_emails"`
	ScannedEvents int                  `json:"scanned_events"`
}

// Store handles persistence of import jobs, their results, and the
// supporting user state (visited places, device tokens).
type Store struct {
	db *sql.DB
}

// NewStore creates a new import store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new job into the database
func (s *Store) CreateJob(job *Job) error {
	query := `
		INSERT INTO import_jobs (
			id, user_id, status, current_step,
			emails_scanned, emails_total,
			events_scanned, events_total,
			calendar_year, error,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	calendarYear := sql.NullInt64{Int64: int64(job.Progress.CalendarYear), Valid: job.Progress.CalendarYear != 0}

	_, err := s.db.Exec(query,
		job.ID,
		job.UserID,
		job.Status,
		job.Progress.CurrentStep,
		job.Progress.EmailsScanned,
		job.Progress.EmailsTotal,
		job.Progress.EventsScanned,
		job.Progress.EventsTotal,
		calendarYear,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}

	return nil
}

const jobSelectColumns = `id, user_id, status, current_step,
	emails_scanned, emails_total, events_scanned, events_total,
	calendar_year, candidates_count, scanned_emails, scanned_events,
	error, created_at, updated_at, completed_at`

// GetJob retrieves a job scoped by owner
func (s *Store) GetJob(userID, jobID string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM import_jobs WHERE id = ? AND user_id = ?`
	return s.scanJob(s.db.QueryRow(query, jobID, userID), jobID)
}

// LatestJob retrieves the user's most recently created job.
// Returns nil without an error when the user has never started an import.
func (s *Store) LatestJob(userID string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns + `
		FROM import_jobs
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT 1`

	job, err := s.scanJob(s.db.QueryRow(query, userID), "")
	if errors.IsNotFoundError(err) {
		return nil, nil
	}
	return job, err
}

func (s *Store) scanJob(row *sql.Row, jobID string) (*Job, error) {
	var job Job
	var calendarYear sql.NullInt64
	var jobError sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Status,
		&job.Progress.CurrentStep,
		&job.Progress.EmailsScanned,
		&job.Progress.EmailsTotal,
		&job.Progress.EventsScanned,
		&job.Progress.EventsTotal,
		&calendarYear,
		&job.CandidatesCount,
		&job.ScannedEmails,
		&job.ScannedEvents,
		&jobError,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job %s", jobID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}

	job.Progress.CalendarYear = int(calendarYear.Int64)
	job.Error = jobError.String
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}

	return &job, nil
}

// UpdateJob updates an existing job in the database
func (s *Store) UpdateJob(job *Job) error {
	query := `
		UPDATE import_jobs
		SET status = ?,
		    current_step = ?,
		    emails_scanned = ?,
		    emails_total = ?,
		    events_scanned = ?,
		    events_total = ?,
		    calendar_year = ?,
		    candidates_count = ?,
		    scanned_emails = ?,
		    scanned_events = ?,
		    error = ?,
		    updated_at = ?,
		    completed_at = ?
		WHERE id = ? AND user_id = ?
	`

	calendarYear := sql.NullInt64{Int64: int64(job.Progress.CalendarYear), Valid: job.Progress.CalendarYear != 0}
	var completedAt sql.NullTime
	if job.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *job.CompletedAt, Valid: true}
	}

	_, err := s.db.Exec(query,
		job.Status,
		job.Progress.CurrentStep,
		job.Progress.EmailsScanned,
		job.Progress.EmailsTotal,
		job.Progress.EventsScanned,
		job.Progress.EventsTotal,
		calendarYear,
		job.CandidatesCount,
		job.ScannedEmails,
		job.ScannedEvents,
		job.Error,
		job.UpdatedAt,
		completedAt,
		job.ID,
		job.UserID,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update job")
	}

	return nil
}

// StoreResults persists a completed job's results with a retention window
func (s *Store) StoreResults(userID, jobID string, results *Results, ttl time.Duration) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}

	now := time.Now().UTC()
	query := `
		INSERT OR REPLACE INTO import_results (job_id, user_id, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query, jobID, userID, string(payload), now, now.Add(ttl))
	if err != nil {
		return errors.Wrap(err, "failed to store results")
	}

	return nil
}

// GetResults loads a job's stored results. Rows past their expiry read as
// ErrResultsExpired and are removed.
func (s *Store) GetResults(userID, jobID string) (*Results, error) {
	query := `SELECT payload, expires_at FROM import_results WHERE job_id = ? AND user_id = ?`

	var payload string
	var expiresAt time.Time
	err := s.db.QueryRow(query, jobID, userID).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("results for job %s", jobID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get results")
	}

	if time.Now().UTC().After(expiresAt) {
		if _, err := s.db.Exec(`DELETE FROM import_results WHERE job_id = ?`, jobID); err != nil {
			return nil, errors.Wrap(err, "failed to delete expired results")
		}
		return nil, errors.Wrapf(errors.ErrResultsExpired, "job %s", jobID)
	}

	var results Results
	if err := json.Unmarshal([]byte(payload), &results); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal results")
	}

	return &results, nil
}

// VisitedCountryCodes returns the user's visited country codes, soft-deleted
// rows included, for candidate exclusion.
func (s *Store) VisitedCountryCodes(userID string) (map[string]struct{}, error) {
	rows, err := s.db.Query(`SELECT country_code FROM visited_places WHERE user_id = ?`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query visited places")
	}
	defer rows.Close()

	codes := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, errors.Wrap(err, "failed to scan visited place")
		}
		codes[code] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating visited places")
	}

	return codes, nil
}

// AddVisitedPlace records a visited country for a user
func (s *Store) AddVisitedPlace(userID, id, countryCode, countryName, source string) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO visited_places (id, user_id, country_code, country_name, source, is_deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err := s.db.Exec(query, id, userID, countryCode, countryName, source, now, now)
	if err != nil {
		return errors.Wrap(err, "failed to add visited place")
	}
	return nil
}

// DeviceTokens returns the user's registered push tokens
func (s *Store) DeviceTokens(userID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT token FROM device_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query device tokens")
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, errors.Wrap(err, "failed to scan device token")
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating device tokens")
	}

	return tokens, nil
}

// RegisterDeviceToken stores a push token for a user, idempotently
func (s *Store) RegisterDeviceToken(userID, token, platform string) error {
	query := `
		INSERT OR REPLACE INTO device_tokens (user_id, token, platform, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, userID, token, platform, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to register device token")
	}
	return nil
}

// DeleteDeviceToken removes a push token for a user
func (s *Store) DeleteDeviceToken(userID, token string) error {
	_, err := s.db.Exec(`DELETE FROM device_tokens WHERE user_id = ? AND token = ?`, userID, token)
	if err != nil {
		return errors.Wrap(err, "failed to delete device token")
	}
	return nil
}

// CleanupExpiredResults removes result rows past their retention window
func (s *Store) CleanupExpiredResults() (int, error) {
	result, err := s.db.Exec(`DELETE FROM import_results WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup expired results")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(rows), nil
}
