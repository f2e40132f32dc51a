package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wxprobe/internal/cities"
	"wxprobe/internal/models"
	"wxprobe/internal/store"
	"wxprobe/internal/tester"
)

// Status is the poll-able snapshot of the current (or last finished)
// suite run.
type Status struct {
	Running     bool                `json:"running"`
	CurrentTest string              `json:"current_test"`
	Progress    int                 `json:"progress"`
	Total       int                 `json:"total"`
	Passed      int                 `json:"passed"`
	Failed      int                 `json:"failed"`
	Results     []models.TestResult `json:"results"`
	StartTime   string              `json:"start_time,omitempty"`
	EndTime     string              `json:"end_time,omitempty"`
	TargetURL   string              `json:"target_url"`
	SessionID   string              `json:"session_id,omitempty"`
}

// StartConfig is the request body accepted by the start endpoint. Delay
// is the pacing between test cases in seconds.
type StartConfig struct {
	TargetURL  string   `json:"target_url"`
	NumValid   int      `json:"num_valid"`
	NumInvalid int      `json:"num_invalid"`
	NumEdge    int      `json:"num_edge"`
	Delay      float64  `json:"delay"`
	Endpoints  []string `json:"endpoints,omitempty"`
}

func (c *StartConfig) applyDefaults() {
	if c.TargetURL == "" {
		c.TargetURL = "http://localhost:5000"
	}
	if c.NumValid == 0 {
		c.NumValid = 20
	}
	if c.NumInvalid == 0 {
		c.NumInvalid = 10
	}
	if c.NumEdge == 0 {
		c.NumEdge = 8
	}
	if c.Delay == 0 {
		c.Delay = 0.1
	}
}

// ErrAlreadyRunning is returned by Start while a suite is in flight.
var ErrAlreadyRunning = errors.New("tests already running")

// Runner owns the shared progress state and drives suite runs on a
// background goroutine. Stop only takes effect between test cases.
type Runner struct {
	mu     sync.Mutex
	status Status
	cancel context.CancelFunc

	store     *store.Store // nil when persistence is disabled
	newTester func(target string, templates []string) *tester.Tester
	log       zerolog.Logger
}

// NewRunner creates a runner; st may be nil to run without persistence.
func NewRunner(st *store.Store) *Runner {
	return &Runner{
		status: Status{Results: []models.TestResult{}},
		store:  st,
		newTester: func(target string, templates []string) *tester.Tester {
			return tester.NewTester(target, tester.WithEndpointTemplates(templates))
		},
		log: log.With().Str("role", "runner").Caller().Logger(),
	}
}

// Status returns a copy of the progress snapshot.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.status
	snapshot.Results = make([]models.TestResult, len(r.status.Results))
	copy(snapshot.Results, r.status.Results)

	return snapshot
}

// Start kicks off a suite run in the background and returns its session
// id and total case count.
func (r *Runner) Start(cfg StartConfig) (Status, error) {
	cfg.applyDefaults()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.Running {
		return r.status, ErrAlreadyRunning
	}

	sessionID := uuid.New().String()
	suite := cities.BuildSuite(cfg.NumValid, cfg.NumInvalid, cfg.NumEdge)

	r.status = Status{
		Running:     true,
		CurrentTest: "Initializing...",
		Total:       len(suite),
		Results:     []models.TestResult{},
		StartTime:   time.Now().Format(time.RFC3339),
		TargetURL:   cfg.TargetURL,
		SessionID:   sessionID,
	}

	if r.store != nil {
		if err := r.store.CreateSession(context.Background(), sessionID, cfg.TargetURL, cfg); err != nil {
			r.log.Error().Err(err).Str("sessionId", sessionID).Msg("cannot create test session")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	go r.run(ctx, cfg, sessionID, suite)

	return r.status, nil
}

// Stop requests that the current run halt after the in-flight test case.
func (r *Runner) Stop() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	return r.status
}

func (r *Runner) run(ctx context.Context, cfg StartConfig, sessionID string, suite []models.TestCase) {
	t := r.newTester(cfg.TargetURL, cfg.Endpoints)
	delay := time.Duration(cfg.Delay * float64(time.Second))

	r.log.Info().Str("sessionId", sessionID).Str("target", cfg.TargetURL).
		Int("total", len(suite)).Msg("starting test suite")

	t.RunSuite(ctx, suite, delay, func(ev tester.SuiteEvent) {
		switch ev.Type {
		case tester.EventStarting:
			r.mu.Lock()
			r.status.CurrentTest = fmt.Sprintf("Testing %s: %s", ev.Case.Type, ev.Case.City)
			r.mu.Unlock()

		case tester.EventCompleted:
			r.mu.Lock()
			r.status.Results = append(r.status.Results, *ev.Result)
			r.status.Progress++
			if ev.Result.Passed {
				r.status.Passed++
			} else {
				r.status.Failed++
			}
			r.mu.Unlock()

			if r.store != nil {
				if err := r.store.SaveResult(context.Background(), sessionID, *ev.Result); err != nil {
					r.log.Error().Err(err).Str("city", ev.Result.City).Msg("cannot save test result")
				}
			}
		}
	})

	stopped := ctx.Err() != nil
	endTime := time.Now().Format(time.RFC3339)

	r.mu.Lock()
	r.status.Running = false
	r.status.EndTime = endTime
	if stopped {
		r.status.CurrentTest = "Stopped by user"
	} else {
		r.status.CurrentTest = "Tests completed!"
	}
	progress, passed, failed := r.status.Progress, r.status.Passed, r.status.Failed
	r.cancel = nil
	r.mu.Unlock()

	if r.store != nil {
		status := "completed"
		if stopped {
			status = "stopped"
		}
		err := r.store.UpdateSession(context.Background(), sessionID, store.SessionUpdate{
			EndTime:     &endTime,
			Status:      &status,
			TotalTests:  &progress,
			PassedTests: &passed,
			FailedTests: &failed,
		})
		if err != nil {
			r.log.Error().Err(err).Str("sessionId", sessionID).Msg("cannot finalize test session")
		}
	}

	r.log.Info().Str("sessionId", sessionID).Bool("stopped", stopped).
		Int("passed", passed).Int("failed", failed).Msg("test suite finished")
}
