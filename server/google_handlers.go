package server

import (
	"net/http"
)

// HandleConnectionStatus handles GET /api/import/status
func (s *Server) HandleConnectionStatus(w http.ResponseWriter, r *http.Request, userID string) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	connected, email, err := s.google.ConnectionStatus(userID)
	if err != nil {
		s.log.Errorw("Failed to check connection status", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to check connection status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_connected": connected,
		"email":        email,
	})
}

// HandleGoogleConnect handles POST /api/import/google/connect
// Exchanges the app-supplied authorization code for stored tokens.
func (s *Server) HandleGoogleConnect(w http.ResponseWriter, r *http.Request, userID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		AuthorizationCode string `json:"authorization_code"`
	}
	if readJSON(w, r, &req) != nil {
		return
	}
	if req.AuthorizationCode == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	email, err := s.google.Exchange(r.Context(), userID, req.AuthorizationCode)
	if err != nil {
		s.log.Warnw("Google connect failed", "user_id", userID, "error", err)
		writeError(w, http.StatusBadRequest, "Failed to connect Google account: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"email":     email,
		"connected": true,
	})
}

// HandleGoogleDisconnect handles DELETE /api/import/google/disconnect
func (s *Server) HandleGoogleDisconnect(w http.ResponseWriter, r *http.Request, userID string) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}

	if err := s.google.Disconnect(userID); err != nil {
		s.log.Errorw("Failed to disconnect Google account", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to disconnect Google account")
		return
	}

	s.log.Infow("Google account disconnected", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegisterDevice handles POST /api/import/notifications/register
func (s *Server) HandleRegisterDevice(w http.ResponseWriter, r *http.Request, userID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		DeviceToken string `json:"device_token"`
		Platform    string `json:"platform"`
	}
	if readJSON(w, r, &req) != nil {
		return
	}
	if req.DeviceToken == "" {
		writeError(w, http.StatusBadRequest, "Missing device token")
		return
	}
	if req.Platform == "" {
		req.Platform = "ios"
	}

	if err := s.store.RegisterDeviceToken(userID, req.DeviceToken, req.Platform); err != nil {
		s.log.Errorw("Failed to register device token", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to register device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"registered": true,
		"message":    "Device registered for push notifications",
	})
}

// HandleUnregisterDevice handles DELETE /api/import/notifications/unregister
func (s *Server) HandleUnregisterDevice(w http.ResponseWriter, r *http.Request, userID string) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}

	token := r.URL.Query().Get("device_token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing device token")
		return
	}

	if err := s.store.DeleteDeviceToken(userID, token); err != nil {
		s.log.Errorw("Failed to delete device token", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to unregister device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
