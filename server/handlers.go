package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quill-visionfairy/ai-secretary/auth"
)

const stateCookieName = "oauth_state"
const stateTTL = 10 * time.Minute

// AuthorizeHandler starts the consent flow: it mints an opaque state value,
// pins it in a short-lived cookie and redirects to the provider.
func (s *Server) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	platform, target := parseFlow(r.URL.Query())
	// The provider echoes state back untouched; encoding the flow pair in
	// it lets the callback recover which registry entry it belongs to.
	state := fmt.Sprintf("%s:%s:%s", uuid.New().String(), platform, target)
	authURL, err := s.mgr.AuthorizationURL(platform, target, state)
	if err != nil {
		s.writeAuthFailure(w, err, platform, target, "")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/oauth/callback",
		Expires:  time.Now().Add(stateTTL),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("authorization flow started", "platform", platform, "target", target)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// CallbackHandler finishes the consent flow: code exchange, identity fetch,
// persistence, session cookie.
func (s *Server) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}
	state := q.Get("state")
	platform, target, err := flowFromState(state)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid state")
		return
	}
	if c, err := r.Cookie(stateCookieName); err != nil || c.Value != state {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	record, err := s.mgr.ExchangeCode(r.Context(), platform, target, code)
	if err != nil {
		s.writeAuthFailure(w, err, platform, target, "")
		return
	}
	identity, err := s.mgr.FetchIdentity(r.Context(), record.AccessToken)
	if err != nil {
		s.writeAuthFailure(w, err, platform, target, "")
		return
	}
	userID := identity.UserID()
	if err := s.mgr.Persist(r.Context(), userID, platform, target, record); err != nil {
		s.writeAuthFailure(w, err, platform, target, userID)
		return
	}
	if _, err := s.sessions.Establish(w, userID); err != nil {
		s.writeAuthFailure(w, err, platform, target, userID)
		return
	}
	s.logger.Info("user authenticated",
		"platform", platform, "target", target, "user_id", userID)
	http.Redirect(w, r, "/", http.StatusFound)
}

func flowFromState(state string) (auth.Platform, auth.Target, error) {
	parts := strings.Split(state, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("malformed state %q", state)
	}
	return auth.Platform(parts[1]), auth.Target(parts[2]), nil
}

// UserInfoHandler returns the provider identity behind the caller's grant.
func (s *Server) UserInfoHandler(w http.ResponseWriter, r *http.Request) {
	platform, target := parseFlow(r.URL.Query())
	ses, err := s.sessions.Authenticate(r)
	if err != nil {
		writeUnauthenticated(w, platform, target)
		return
	}
	record, err := s.mgr.Load(r.Context(), ses.UserID, platform, target)
	if err != nil {
		s.writeAuthFailure(w, err, platform, target, ses.UserID)
		return
	}
	if record == nil {
		writeUnauthenticated(w, platform, target)
		return
	}
	identity, err := s.mgr.FetchIdentity(r.Context(), record.AccessToken)
	if err != nil {
		s.writeAuthFailure(w, err, platform, target, ses.UserID)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// EventsHandler lists the caller's events for an explicit [start, end) range.
func (s *Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	platform, target := parseFlow(q)
	ses, err := s.sessions.Authenticate(r)
	if err != nil {
		writeUnauthenticated(w, platform, target)
		return
	}
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC 3339")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC 3339")
		return
	}
	cal, err := s.calendars.Session(r.Context(), ses.UserID, platform, target)
	if err != nil {
		s.writeAuthFailure(w, err, platform, target, ses.UserID)
		return
	}
	events, err := cal.Events(r.Context(), start, end)
	if err != nil {
		s.writeAuthFailure(w, err, platform, target, ses.UserID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// AskRequest is the natural-language query payload.
type AskRequest struct {
	Query    string `json:"query"`
	UserID   string `json:"user_id,omitempty"`
	Platform string `json:"platform,omitempty"`
	Target   string `json:"target,omitempty"`
}

// AskHandler answers a free-text calendar question through the black-box
// interpreter: text to range, range to events, events to answer.
func (s *Server) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req = AskRequest{
			Query:    q.Get("query"),
			UserID:   q.Get("user_id"),
			Platform: q.Get("platform"),
			Target:   q.Get("target"),
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	platform := auth.Platform(req.Platform)
	if platform == "" {
		platform = auth.PlatformGPT
	}
	target := auth.Target(req.Target)
	if target == "" {
		target = auth.TargetCalendar
	}
	userID := req.UserID
	if userID == "" {
		if ses, err := s.sessions.Authenticate(r); err == nil {
			userID = ses.UserID
		}
	}
	if req.Query == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "query and user_id are required")
		return
	}

	cal, err := s.calendars.Session(r.Context(), userID, platform, target)
	if err != nil {
		s.writeAuthFailure(w, err, platform, target, userID)
		return
	}
	window, err := s.interp.DateRange(r.Context(), req.Query, time.Now())
	if err != nil {
		s.writeAuthFailure(w, err, platform, target, userID)
		return
	}
	events, err := cal.Events(r.Context(), window.Start, window.End)
	if err != nil {
		s.writeAuthFailure(w, err, platform, target, userID)
		return
	}
	answer, err := s.interp.Summarize(r.Context(), req.Query, events)
	if err != nil {
		s.writeAuthFailure(w, err, platform, target, userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": answer,
		"events":  events,
	})
}

// LogoutHandler revokes the grant and clears the session. Calling it with
// nothing stored is fine; logout is idempotent.
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	platform, target := parseFlow(r.URL.Query())
	userID := r.URL.Query().Get("user_id")
	if ses, err := s.sessions.Authenticate(r); err == nil {
		userID = ses.UserID
	}
	if userID != "" {
		if err := s.mgr.Revoke(r.Context(), userID, platform, target); err != nil {
			s.writeAuthFailure(w, err, platform, target, userID)
			return
		}
	}
	s.sessions.Clear(w)
	s.logger.Info("user logged out", "platform", platform, "target", target, "user_id", userID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
