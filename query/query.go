// Package query is the boundary to the natural-language layer. The LLM that
// turns free text into a date range and events into a summary is an external
// collaborator consumed strictly through the Interpreter interface.
package query

import (
	"context"
	"time"

	"github.com/quill-visionfairy/ai-secretary/calendar"
)

// Range is a closed-open [Start, End) window in absolute instants.
type Range struct {
	Start time.Time
	End   time.Time
}

// Interpreter is the black-box contract: text in, a date range out; events
// in, a human-readable answer out.
type Interpreter interface {
	// DateRange resolves free text like "what's on tomorrow" against now.
	DateRange(ctx context.Context, text string, now time.Time) (Range, error)

	// Summarize renders the events for the original question.
	Summarize(ctx context.Context, text string, events []calendar.Event) (string, error)
}

// MockInterpreter provides customizable hooks for testing Interpreter
// consumers.
type MockInterpreter struct {
	DateRangeFunc func(ctx context.Context, text string, now time.Time) (Range, error)
	SummarizeFunc func(ctx context.Context, text string, events []calendar.Event) (string, error)
}

var _ Interpreter = (*MockInterpreter)(nil)

// DateRange calls DateRangeFunc if set, otherwise returns the day around now.
func (m *MockInterpreter) DateRange(ctx context.Context, text string, now time.Time) (Range, error) {
	if m.DateRangeFunc != nil {
		return m.DateRangeFunc(ctx, text, now)
	}
	day := now.Truncate(24 * time.Hour)
	return Range{Start: day, End: day.Add(24 * time.Hour)}, nil
}

// Summarize calls SummarizeFunc if set, otherwise returns an empty string.
func (m *MockInterpreter) Summarize(ctx context.Context, text string, events []calendar.Event) (string, error) {
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text, events)
	}
	return "", nil
}
