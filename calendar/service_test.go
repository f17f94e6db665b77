package calendar

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quill-visionfairy/ai-secretary/auth"
)

type mockCredentialSource struct {
	LoadFunc    func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error)
	RefreshFunc func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error)
	RevokeFunc  func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) error
}

var _ CredentialSource = (*mockCredentialSource)(nil)

func (m *mockCredentialSource) Load(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, userID, platform, target)
	}
	return nil, nil
}

func (m *mockCredentialSource) Refresh(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, userID, platform, target)
	}
	return nil, auth.ErrNoRefreshToken
}

func (m *mockCredentialSource) Revoke(ctx context.Context, userID string, platform auth.Platform, target auth.Target) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, userID, platform, target)
	}
	return nil
}

func testService(creds CredentialSource) *Service {
	return NewService(creds, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func freshRecord(token string) *auth.TokenRecord {
	return &auth.TokenRecord{
		AccessToken:  token,
		RefreshToken: "R",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}
}

func TestSessionNoRecord(t *testing.T) {
	svc := testService(&mockCredentialSource{})
	_, err := svc.Session(context.Background(), "nobody", auth.PlatformWeb, auth.TargetCalendar)
	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestSessionValid(t *testing.T) {
	creds := &mockCredentialSource{
		LoadFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
			return freshRecord("tok"), nil
		},
		RefreshFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
			t.Errorf("a valid record must not trigger a refresh")
			return nil, nil
		},
	}
	svc := testService(creds)
	ses, err := svc.Session(context.Background(), "alice@example.com", auth.PlatformWeb, auth.TargetCalendar)
	if err != nil {
		t.Fatalf("Session error: %v", err)
	}
	if ses.UserID != "alice@example.com" {
		t.Errorf("UserID = %q", ses.UserID)
	}
}

func TestSessionDeadGrantIsCleared(t *testing.T) {
	revoked := 0
	creds := &mockCredentialSource{
		LoadFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
			// Expired, and no refresh token: nothing can save it.
			return &auth.TokenRecord{AccessToken: "stale", ExpiresAt: time.Now().Unix() - 10}, nil
		},
		RevokeFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) error {
			revoked++
			return nil
		},
		RefreshFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
			t.Errorf("an unrefreshable grant must not be refreshed")
			return nil, nil
		},
	}
	svc := testService(creds)
	_, err := svc.Session(context.Background(), "u1", auth.PlatformWeb, auth.TargetCalendar)
	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if revoked != 1 {
		t.Errorf("dead grant revoked %d times, want exactly once", revoked)
	}
}

func TestSessionExpiredRefreshes(t *testing.T) {
	refreshes := 0
	creds := &mockCredentialSource{
		LoadFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
			return &auth.TokenRecord{
				AccessToken:  "old",
				RefreshToken: "R",
				ExpiresAt:    time.Now().Unix() - 10,
			}, nil
		},
		RefreshFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
			refreshes++
			return freshRecord("new"), nil
		},
	}
	svc := testService(creds)
	ses, err := svc.Session(context.Background(), "u1", auth.PlatformWeb, auth.TargetCalendar)
	if err != nil {
		t.Fatalf("Session error: %v", err)
	}
	if ses.accessToken != "new" {
		t.Errorf("session bound to %q, want refreshed token", ses.accessToken)
	}
	if refreshes != 1 {
		t.Errorf("refreshed %d times, want exactly once", refreshes)
	}
}

func TestSessionRefreshFailureIsSingleAttempt(t *testing.T) {
	refreshes := 0
	creds := &mockCredentialSource{
		LoadFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
			return &auth.TokenRecord{
				AccessToken:  "old",
				RefreshToken: "R",
				ExpiresAt:    time.Now().Unix() - 10,
			}, nil
		},
		RefreshFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
			refreshes++
			return nil, &auth.RefreshError{Status: http.StatusBadRequest, Body: "invalid_grant"}
		},
	}
	svc := testService(creds)
	_, err := svc.Session(context.Background(), "u1", auth.PlatformWeb, auth.TargetCalendar)
	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if refreshes != 1 {
		t.Errorf("refresh attempted %d times in one request, want exactly one", refreshes)
	}
}

func TestSessionCacheUnavailableIsFatal(t *testing.T) {
	creds := &mockCredentialSource{
		LoadFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
			return nil, auth.ErrCacheUnavailable
		},
	}
	svc := testService(creds)
	_, err := svc.Session(context.Background(), "u1", auth.PlatformWeb, auth.TargetCalendar)
	if !errors.Is(err, auth.ErrCacheUnavailable) {
		t.Errorf("cache failure must not look like missing auth, got %v", err)
	}
	if errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("cache failure classified as unauthenticated")
	}
}

func TestEventsNormalization(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("singleEvents") != "true" {
			t.Errorf("singleEvents = %q", q.Get("singleEvents"))
		}
		if q.Get("orderBy") != "startTime" {
			t.Errorf("orderBy = %q", q.Get("orderBy"))
		}
		if q.Get("timeMin") == "" || q.Get("timeMax") == "" {
			t.Errorf("missing time range: %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"summary":"Standup","start":{"dateTime":"2025-05-20T09:30:00+09:00"}},
			{"summary":"Conference","start":{"date":"2025-05-21"}}
		]}`))
	}))
	defer ts.Close()

	creds := &mockCredentialSource{
		LoadFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
			return freshRecord("tok"), nil
		},
	}
	svc := testService(creds)
	svc.APIBase = ts.URL
	ses, err := svc.Session(context.Background(), "u1", auth.PlatformWeb, auth.TargetCalendar)
	if err != nil {
		t.Fatalf("Session error: %v", err)
	}

	start := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	events, err := ses.Events(context.Background(), start, start.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("Events error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Summary != "Standup" || events[0].Start != "2025-05-20 09:30" || events[0].IsAllDay {
		t.Errorf("timed event normalized wrong: %+v", events[0])
	}
	if events[1].Summary != "Conference" || events[1].Start != "2025-05-21" || !events[1].IsAllDay {
		t.Errorf("all-day event normalized wrong: %+v", events[1])
	}
}

func TestEventsProviderRejectsToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	creds := &mockCredentialSource{
		LoadFunc: func(ctx context.Context, userID string, platform auth.Platform, target auth.Target) (*auth.TokenRecord, error) {
			return freshRecord("tok"), nil
		},
	}
	svc := testService(creds)
	svc.APIBase = ts.URL
	ses, err := svc.Session(context.Background(), "u1", auth.PlatformWeb, auth.TargetCalendar)
	if err != nil {
		t.Fatalf("Session error: %v", err)
	}
	_, err = ses.Events(context.Background(), time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated on provider 401, got %v", err)
	}
}

func TestFormatEventStart(t *testing.T) {
	cases := []struct {
		name     string
		dateTime string
		date     string
		want     string
	}{
		{"timed", "2025-05-20T14:00:00Z", "", "2025-05-20 14:00"},
		{"timed with offset", "2025-05-20T23:30:00+09:00", "", "2025-05-20 23:30"},
		{"all day", "", "2025-05-21", "2025-05-21"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatEventStart(tc.dateTime, tc.date); got != tc.want {
				t.Errorf("formatEventStart(%q, %q) = %q, want %q", tc.dateTime, tc.date, got, tc.want)
			}
		})
	}
}
