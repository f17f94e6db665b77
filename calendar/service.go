// Package calendar turns stored credentials into authenticated calendar
// sessions and answers event queries through them.
package calendar

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/quill-visionfairy/ai-secretary/auth"
)

const defaultAPIBase = "https://www.googleapis.com/calendar/v3"

// CredentialSource is the slice of the credential manager the session
// factory needs. *auth.Manager satisfies it.
type CredentialSource interface {
	Load(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error)
	Refresh(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error)
	Revoke(ctx context.Context, userID string, platform auth.Platform, target auth.Target) error
}

var _ CredentialSource = (*auth.Manager)(nil)

// Service builds authenticated calendar sessions from stored credentials.
type Service struct {
	// APIBase is the calendar API root, overridable for tests and
	// alternate deployments.
	APIBase string

	creds  CredentialSource
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewService(creds CredentialSource, client *http.Client, logger *slog.Logger) *Service {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		APIBase: defaultAPIBase,
		creds:   creds,
		client:  client,
		logger:  logger,
		now:     time.Now,
	}
}

// Session loads and validates the user's grant and hands back an
// authenticated handle. It returns auth.ErrUnauthenticated, never a panic
// or a bare error, for every state that requires the user to consent again:
//
//	no record            -> unauthenticated
//	invalid, no refresh  -> revoke + delete the dead grant, unauthenticated
//	expired, refreshable -> one refresh attempt, Valid on success
//	valid                -> session bound to the access token
func (s *Service) Session(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*Session, error) {
	record, err := s.creds.Load(ctx, userID, platform, target)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, auth.ErrUnauthenticated
	}
	if !record.Expired(s.now()) {
		return s.session(userID, platform, record), nil
	}
	if !record.CanRefresh() {
		// A grant that can never be refreshed must not linger as
		// "present but unusable": revoke the stale token and drop the
		// record so the next request starts clean.
		if err := s.creds.Revoke(ctx, userID, platform, target); err != nil {
			s.logger.Warn("failed to clear dead grant",
				"platform", platform, "target", target, "user_id", userID, "err", err)
		}
		s.logger.Info("grant has no refresh token, re-auth required",
			"platform", platform, "target", target, "user_id", userID)
		return nil, auth.ErrUnauthenticated
	}
	refreshed, err := s.creds.Refresh(ctx, userID, platform, target)
	if err != nil {
		if errors.Is(err, auth.ErrCacheUnavailable) {
			return nil, err
		}
		// One attempt per request; a failed refresh means re-auth, not
		// a retry loop.
		s.logger.Warn("silent refresh failed",
			"platform", platform, "target", target, "user_id", userID, "err", err)
		return nil, auth.ErrUnauthenticated
	}
	return s.session(userID, platform, refreshed), nil
}

func (s *Service) session(userID string, platform auth.Platform, record *auth.TokenRecord) *Session {
	return &Session{
		UserID:      userID,
		Platform:    platform,
		accessToken: record.AccessToken,
		apiBase:     s.APIBase,
		client:      s.client,
	}
}

// Session is an authenticated handle onto the user's calendar. It holds the
// bearer token privately; nothing above this layer ever sees it.
type Session struct {
	UserID   string
	Platform auth.Platform

	accessToken string
	apiBase     string
	client      *http.Client
}
