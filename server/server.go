// Package server exposes the credential and calendar flows over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/quill-visionfairy/ai-secretary/auth"
	"github.com/quill-visionfairy/ai-secretary/calendar"
	"github.com/quill-visionfairy/ai-secretary/query"
	"github.com/quill-visionfairy/ai-secretary/session"
)

// Server wires the HTTP surface to the credential manager, the calendar
// session factory, the session cookie layer and the black-box query
// interpreter. Everything is injected; the server owns no globals.
type Server struct {
	mgr       *auth.Manager
	calendars *calendar.Service
	sessions  *session.Client
	interp    query.Interpreter
	logger    *slog.Logger
}

// NewServer creates a new Server instance.
func NewServer(mgr *auth.Manager, calendars *calendar.Service, sessions *session.Client, interp query.Interpreter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		mgr:       mgr,
		calendars: calendars,
		sessions:  sessions,
		interp:    interp,
		logger:    logger,
	}
}

// Routes returns the full route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /oauth/authorize", s.AuthorizeHandler)
	mux.HandleFunc("GET /oauth/callback", s.CallbackHandler)
	mux.HandleFunc("GET /auth/userinfo", s.UserInfoHandler)
	mux.HandleFunc("GET /calendar/events", s.EventsHandler)
	mux.HandleFunc("POST /gpt/ask", s.AskHandler)
	mux.HandleFunc("GET /gpt/ask", s.AskHandler)
	mux.HandleFunc("POST /oauth/logout", s.LogoutHandler)
	mux.HandleFunc("GET /healthz", s.HealthzHandler)
	return mux
}

// writeJSON helper sends a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// writeError helper sends a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseFlow reads the (platform, target) pair from the query, defaulting to
// the direct web client against the calendar service.
func parseFlow(q url.Values) (auth.Platform, auth.Target) {
	platform := auth.Platform(q.Get("platform"))
	if platform == "" {
		platform = auth.PlatformWeb
	}
	target := auth.Target(q.Get("target"))
	if target == "" {
		target = auth.TargetCalendar
	}
	return platform, target
}

func loginURL(platform auth.Platform, target auth.Target) string {
	q := url.Values{"platform": {string(platform)}, "target": {string(target)}}
	return "/oauth/authorize?" + q.Encode()
}

// writeUnauthenticated is the actionable "needs re-auth" outcome: a 401
// carrying the URL that starts the consent flow.
func writeUnauthenticated(w http.ResponseWriter, platform auth.Platform, target auth.Target) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"status":    "unauthenticated",
		"message":   "authentication required",
		"login_url": loginURL(platform, target),
	})
}

// writeAuthFailure maps a credential-flow error onto the wire. Expected
// re-auth outcomes get the authorize URL; faults get a correlation id in the
// log and a generic message to the caller.
func (s *Server) writeAuthFailure(w http.ResponseWriter, err error, platform auth.Platform, target auth.Target, userID string) {
	switch {
	case errors.Is(err, auth.ErrUnsupportedPlatform):
		writeError(w, http.StatusBadRequest, "unsupported platform/target")
	case errors.Is(err, auth.ErrCacheUnavailable):
		s.logger.Error("credential cache unavailable",
			"platform", platform, "target", target, "user_id", userID, "err", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case auth.NeedsReauth(err):
		s.logger.Info("re-authentication required",
			"platform", platform, "target", target, "user_id", userID, "err", err)
		writeUnauthenticated(w, platform, target)
	case auth.Temporary(err):
		s.logger.Warn("transient provider failure",
			"platform", platform, "target", target, "user_id", userID, "err", err)
		writeError(w, http.StatusBadGateway, "provider temporarily unavailable")
	default:
		correlationID := uuid.New().String()
		s.logger.Error("internal error",
			"correlation_id", correlationID,
			"platform", platform, "target", target, "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
