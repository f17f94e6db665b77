package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/quill-visionfairy/ai-secretary/auth"
)

// Event is the normalized view of one calendar entry handed upward.
type Event struct {
	Summary string `json:"summary"`
	// Start is "YYYY-MM-DD HH:MM" for timed events and "YYYY-MM-DD" for
	// all-day events.
	Start    string `json:"start"`
	IsAllDay bool   `json:"is_all_day"`
}

type eventsResponse struct {
	Items []struct {
		Summary string `json:"summary"`
		Start   struct {
			DateTime string `json:"dateTime"`
			Date     string `json:"date"`
		} `json:"start"`
	} `json:"items"`
}

// Events lists the primary calendar's events in [start, end), recurring
// events expanded to single instances and ordered by start time.
func (s *Session) Events(ctx context.Context, start, end time.Time) ([]Event, error) {
	q := url.Values{
		"timeMin":      {start.Format(time.RFC3339)},
		"timeMax":      {end.Format(time.RFC3339)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
	}
	endpoint := s.apiBase + "/calendars/primary/events?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("events request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("events fetch: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("events fetch: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, auth.ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("events fetch: provider returned status %d", resp.StatusCode)
	}
	var parsed eventsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("events fetch: unparseable response: %w", err)
	}
	events := make([]Event, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		events = append(events, Event{
			Summary:  item.Summary,
			Start:    formatEventStart(item.Start.DateTime, item.Start.Date),
			IsAllDay: item.Start.DateTime == "" && item.Start.Date != "",
		})
	}
	return events, nil
}

// formatEventStart renders a timed start as "YYYY-MM-DD HH:MM" and passes a
// date-only start through unchanged. All-day events carry only a date field.
func formatEventStart(dateTime, date string) string {
	if dateTime == "" {
		return date
	}
	t, err := time.Parse(time.RFC3339, dateTime)
	if err != nil {
		// Fall back to the raw value rather than dropping the event.
		return dateTime
	}
	return t.Format("2006-01-02 15:04")
}
