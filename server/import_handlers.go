package server

import (
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stampbook/stampbook/errors"
	"github.com/stampbook/stampbook/geo"
	"github.com/stampbook/stampbook/importer"
)

// HandleScanStart handles POST /api/import/scan/start
// Starts a background import job and returns its id for polling.
func (s *Server) HandleScanStart(w http.ResponseWriter, r *http.Request, userID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	connected, err := s.google.IsConnected(r.Context(), userID)
	if err != nil {
		s.log.Errorw("Failed to check connection", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to check Google connection")
		return
	}
	if !connected {
		writeError(w, http.StatusBadRequest, "Google account not connected")
		return
	}

	job, err := s.runner.StartJob(userID)
	if err != nil {
		s.log.Errorw("Failed to start import job", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start import job")
		return
	}

	s.log.Infow("Import scan started", "job_id", shortID(job.ID), "user_id", userID)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  job.ID,
		"status":  job.Status,
		"message": "Import scan started. You will receive a notification when complete.",
	})
}

// jobStatusResponse is the polling payload for one job.
type jobStatusResponse struct {
	JobID           string            `json:"job_id"`
	Status          importer.Status   `json:"status"`
	Progress        importer.Progress `json:"progress"`
	CandidatesCount int               `json:"candidates_count"`
	ScannedEmails   int               `json:"scanned_emails"`
	ScannedEvents   int               `json:"scanned_events"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
}

// HandleScanStatus handles GET /api/import/scan/status/{id}
func (s *Server) HandleScanStatus(w http.ResponseWriter, r *http.Request, userID string) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/import/scan/status/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID")
		return
	}
	jobID := parts[0]

	job, err := s.store.GetJob(userID, jobID)
	if errors.IsNotFoundError(err) {
		writeError(w, http.StatusNotFound, "Import job not found")
		return
	}
	if err != nil {
		s.log.Errorw("Failed to get job", "job_id", shortID(jobID), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	writeJSON(w, http.StatusOK, jobStatusResponse{
		JobID:           job.ID,
		Status:          job.Status,
		Progress:        job.Progress,
		CandidatesCount: job.CandidatesCount,
		ScannedEmails:   job.ScannedEmails,
		ScannedEvents:   job.ScannedEvents,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		CompletedAt:     job.CompletedAt,
		ErrorMessage:    job.Error,
	})
}

// HandleScanResults handles GET /api/import/scan/results/{id}
// Results are only served for completed jobs and inside their retention
// window.
func (s *Server) HandleScanResults(w http.ResponseWriter, r *http.Request, userID string) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/import/scan/results/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID")
		return
	}
	jobID := parts[0]

	job, err := s.store.GetJob(userID, jobID)
	if errors.IsNotFoundError(err) {
		writeError(w, http.StatusNotFound, "Import job not found")
		return
	}
	if err != nil {
		s.log.Errorw("Failed to get job", "job_id", shortID(jobID), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	if job.Status != importer.StatusCompleted {
		writeError(w, http.StatusBadRequest, "Job not completed. Current status: "+string(job.Status))
		return
	}

	results, err := s.store.GetResults(userID, jobID)
	if errors.IsNotFoundError(err) || errors.Is(err, errors.ErrResultsExpired) {
		writeError(w, http.StatusNotFound, "Import results not found or expired")
		return
	}
	if err != nil {
		s.log.Errorw("Failed to get results", "job_id", shortID(jobID), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get results")
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// HandleScanSync handles POST /api/import/scan
// Runs a bounded scan inline. Source failures are surfaced as 502 here,
// unlike the background path which degrades to empty results.
func (s *Server) HandleScanSync(w http.ResponseWriter, r *http.Request, userID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	start := time.Now()
	results, err := s.orchestrator.ScanSync(r.Context(), userID, s.cfg.Import.SyncMaxEmails, s.cfg.Import.SyncMaxEvents)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrNotConnected):
			writeError(w, http.StatusBadRequest, "Google account not connected")
		case errors.Is(err, errors.ErrServiceUnavailable):
			s.log.Warnw("Sync scan source failure", "user_id", userID, "error", err)
			writeError(w, http.StatusBadGateway, "Upstream scan source unavailable")
		default:
			s.log.Errorw("Sync scan failed", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "Scan failed")
		}
		return
	}

	duration := math.Round(time.Since(start).Seconds()*100) / 100
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"candidates":            results.Candidates,
		"scanned_emails":        results.ScannedEmails,
		"scanned_events":        results.ScannedEvents,
		"scan_duration_seconds": duration,
	})
}

// HandleConfirm handles POST /api/import/confirm
// Records the selected countries as visited places.
func (s *Server) HandleConfirm(w http.ResponseWriter, r *http.Request, userID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		CountryCodes []string `json:"country_codes"`
	}
	if readJSON(w, r, &req) != nil {
		return
	}
	if len(req.CountryCodes) == 0 {
		writeError(w, http.StatusBadRequest, "No countries selected for import")
		return
	}

	visited, err := s.store.VisitedCountryCodes(userID)
	if err != nil {
		s.log.Errorw("Failed to load visited countries", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load visited countries")
		return
	}

	type imported struct {
		CountryCode string `json:"country_code"`
		CountryName string `json:"country_name"`
	}
	importedCountries := make([]imported, 0, len(req.CountryCodes))

	for _, code := range req.CountryCodes {
		name, ok := geo.CountryName(code)
		if !ok {
			continue
		}
		if _, exists := visited[code]; exists {
			continue
		}

		if err := s.store.AddVisitedPlace(userID, uuid.NewString(), code, name, "import"); err != nil {
			s.log.Errorw("Failed to add visited place", "user_id", userID, "country", code, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to import countries")
			return
		}
		visited[code] = struct{}{}
		importedCountries = append(importedCountries, imported{CountryCode: code, CountryName: name})
	}

	s.log.Infow("Countries imported", "user_id", userID, "imported", len(importedCountries))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"imported":  len(importedCountries),
		"countries": importedCountries,
	})
}
