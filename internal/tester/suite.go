package tester

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"wxprobe/internal/models"
)

// EventType represents the type of suite event
type EventType int

const (
	// EventStarting indicates a test case is about to run
	EventStarting EventType = iota
	// EventCompleted indicates a test case has completed
	EventCompleted
)

// SuiteEvent represents an event during suite execution
type SuiteEvent struct {
	Type   EventType
	Case   models.TestCase
	Result *models.TestResult // nil for Starting events
	Index  int                // current case index (0-based)
	Total  int                // total number of cases
}

// OnSuiteEvent is a callback function for suite events
type OnSuiteEvent func(event SuiteEvent)

// RunSuite runs the cases one at a time with the given pacing delay
// between starts. Cancellation is only honored between cases; an
// in-flight request always runs to its own timeout.
func (t *Tester) RunSuite(ctx context.Context, cases []models.TestCase, delay time.Duration, onEvent OnSuiteEvent) models.TestSummary {
	summary := models.TestSummary{
		Results: make([]models.TestResult, 0, len(cases)),
	}

	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}

	total := len(cases)
	for i, tc := range cases {
		if ctx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}

		if onEvent != nil {
			onEvent(SuiteEvent{Type: EventStarting, Case: tc, Index: i, Total: total})
		}

		result := t.RunTest(ctx, tc.City, tc.Type)
		summary.AddResult(result)

		if onEvent != nil {
			onEvent(SuiteEvent{Type: EventCompleted, Case: tc, Result: &result, Index: i, Total: total})
		}
	}

	return summary
}
