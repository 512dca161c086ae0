package server

import (
	"net/http"
	"strings"
)

// userHandler is a handler that requires an authenticated user.
type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.corsMiddleware(s.HandleHealth))

	mux.HandleFunc("/api/import/scan/start", s.corsMiddleware(s.withUser(s.HandleScanStart)))     // Start async scan (POST)
	mux.HandleFunc("/api/import/scan/status/", s.corsMiddleware(s.withUser(s.HandleScanStatus)))  // Job status (GET)
	mux.HandleFunc("/api/import/scan/results/", s.corsMiddleware(s.withUser(s.HandleScanResults))) // Job results (GET)
	mux.HandleFunc("/api/import/scan", s.corsMiddleware(s.withUser(s.HandleScanSync)))            // Synchronous scan (POST)
	mux.HandleFunc("/api/import/confirm", s.corsMiddleware(s.withUser(s.HandleConfirm)))          // Import selected countries (POST)
	mux.HandleFunc("/api/import/status", s.corsMiddleware(s.withUser(s.HandleConnectionStatus)))  // Google connection status (GET)

	mux.HandleFunc("/api/import/google/connect", s.corsMiddleware(s.withUser(s.HandleGoogleConnect)))       // OAuth code exchange (POST)
	mux.HandleFunc("/api/import/google/disconnect", s.corsMiddleware(s.withUser(s.HandleGoogleDisconnect))) // Remove tokens (DELETE)

	mux.HandleFunc("/api/import/notifications/register", s.corsMiddleware(s.withUser(s.HandleRegisterDevice)))     // Device token (POST)
	mux.HandleFunc("/api/import/notifications/unregister", s.corsMiddleware(s.withUser(s.HandleUnregisterDevice))) // Device token (DELETE)

	mux.HandleFunc("/ws/jobs", s.HandleJobsWebSocket) // Live job updates

	return mux
}

// withUser resolves the authenticated user from the X-User-ID header.
// Session verification lives in the gateway in front of this service.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "Missing user identity")
			return
		}
		next(w, r, userID)
	}
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// originAllowed checks an origin against the configured allow list.
// Prefix matching so any port number on an allowed host passes.
func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}
