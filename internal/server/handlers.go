package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"wxprobe/internal/models"
	"wxprobe/internal/store"
	"wxprobe/internal/tester"
)

// Handler wires the HTTP routes to the runner and the store. A nil store
// degrades gracefully: analytics come back empty, history endpoints 503.
type Handler struct {
	runner *Runner
	store  *store.Store
}

// NewHandler creates the route handler.
func NewHandler(runner *Runner, st *store.Store) *Handler {
	return &Handler{runner: runner, store: st}
}

// Register attaches every route to the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/api/test/start", h.StartTests)
	e.POST("/api/test/stop", h.StopTests)
	e.GET("/api/test/status", h.TestStatus)
	e.POST("/api/test/single", h.SingleTest)
	e.GET("/api/test/results/download", h.DownloadResults)

	e.GET("/api/history/sessions", h.Sessions)
	e.GET("/api/history/session/:id", h.SessionResults)

	e.GET("/api/analytics/cities", h.CityAnalytics)
	e.GET("/api/analytics/endpoints", h.EndpointAnalytics)
	e.GET("/api/analytics/history", h.History)

	e.POST("/api/data/cleanup", h.Cleanup)
	e.GET("/api/data/export", h.ExportAll)
}

// StartTests launches a suite run in the background.
func (h *Handler) StartTests(c echo.Context) error {
	var cfg StartConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	status, err := h.runner.Start(cfg)
	if err == ErrAlreadyRunning {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Tests already running"})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Tests started",
		"total":      status.Total,
		"target_url": status.TargetURL,
		"session_id": status.SessionID,
	})
}

// StopTests requests the current run to halt between cases.
func (h *Handler) StopTests(c echo.Context) error {
	h.runner.Stop()
	return c.JSON(http.StatusOK, map[string]string{"message": "Tests stopped"})
}

// TestStatus returns the progress snapshot.
func (h *Handler) TestStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.runner.Status())
}

type singleTestRequest struct {
	TargetURL string   `json:"target_url"`
	City      string   `json:"city"`
	Endpoints []string `json:"endpoints,omitempty"`
}

// SingleTest runs one manual test case synchronously and returns its result.
func (h *Handler) SingleTest(c echo.Context) error {
	var req singleTestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.TargetURL == "" {
		req.TargetURL = "http://localhost:5000"
	}
	if req.City == "" {
		req.City = "London"
	}

	ctx := c.Request().Context()
	sessionID := uuid.New().String()

	if h.store != nil {
		cfg := map[string]string{"type": "single_test", "city": req.City}
		if err := h.store.CreateSession(ctx, sessionID, req.TargetURL, cfg); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	t := tester.NewTester(req.TargetURL, tester.WithEndpointTemplates(req.Endpoints))
	result := t.RunTest(ctx, req.City, models.TestTypeManual)

	if h.store != nil {
		if err := h.store.SaveResult(ctx, sessionID, result); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		endTime := time.Now().Format(time.RFC3339)
		status := "completed"
		one := 1
		zero := 0
		passed, failed := &one, &zero
		if !result.Passed {
			passed, failed = &zero, &one
		}
		err := h.store.UpdateSession(ctx, sessionID, store.SessionUpdate{
			EndTime:     &endTime,
			Status:      &status,
			TotalTests:  &one,
			PassedTests: passed,
			FailedTests: failed,
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, result)
}

// DownloadResults serves the current session's data as an attachment.
func (h *Handler) DownloadResults(c echo.Context) error {
	status := h.runner.Status()
	if len(status.Results) == 0 && status.SessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No results available"})
	}

	filename := fmt.Sprintf("test_results_%s.json", time.Now().Format("20060102_150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, filename))

	if h.store != nil && status.SessionID != "" {
		export, err := h.store.ExportData(c.Request().Context(), status.SessionID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, export)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"test_info": map[string]interface{}{
			"target_url":  status.TargetURL,
			"total_tests": status.Total,
			"passed":      status.Passed,
			"failed":      status.Failed,
			"start_time":  status.StartTime,
			"end_time":    status.EndTime,
		},
		"results": status.Results,
	})
}

// Sessions lists recent sessions.
func (h *Handler) Sessions(c echo.Context) error {
	if h.store == nil {
		return databaseUnavailable()
	}

	limit := intQueryParam(c, "limit", 20)
	sessions, err := h.store.Sessions(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if sessions == nil {
		sessions = []models.Session{}
	}

	return c.JSON(http.StatusOK, sessions)
}

// SessionResults lists every result of one session.
func (h *Handler) SessionResults(c echo.Context) error {
	if h.store == nil {
		return databaseUnavailable()
	}

	results, err := h.store.SessionResults(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if results == nil {
		results = []models.TestResult{}
	}

	return c.JSON(http.StatusOK, results)
}

// CityAnalytics returns per-city aggregates; empty without a database.
func (h *Handler) CityAnalytics(c echo.Context) error {
	if h.store == nil {
		return c.JSON(http.StatusOK, []models.CityStats{})
	}

	stats, err := h.store.CityPerformance(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if stats == nil {
		stats = []models.CityStats{}
	}

	return c.JSON(http.StatusOK, stats)
}

// EndpointAnalytics returns per-endpoint aggregates; empty without a database.
func (h *Handler) EndpointAnalytics(c echo.Context) error {
	if h.store == nil {
		return c.JSON(http.StatusOK, []models.EndpointStats{})
	}

	stats, err := h.store.EndpointPerformance(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if stats == nil {
		stats = []models.EndpointStats{}
	}

	return c.JSON(http.StatusOK, stats)
}

// History returns per-day totals; empty without a database.
func (h *Handler) History(c echo.Context) error {
	if h.store == nil {
		return c.JSON(http.StatusOK, []models.DailyStats{})
	}

	days := intQueryParam(c, "days", 30)
	history, err := h.store.History(c.Request().Context(), days)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if history == nil {
		history = []models.DailyStats{}
	}

	return c.JSON(http.StatusOK, history)
}

type cleanupRequest struct {
	Days int `json:"days"`
}

// Cleanup deletes data older than the requested number of days (default 90).
func (h *Handler) Cleanup(c echo.Context) error {
	if h.store == nil {
		return databaseUnavailable()
	}

	req := cleanupRequest{Days: 90}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Days <= 0 {
		req.Days = 90
	}

	deleted, err := h.store.Cleanup(c.Request().Context(), req.Days)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Deleted %d old records", deleted),
	})
}

// ExportAll serves the full database contents as an attachment.
func (h *Handler) ExportAll(c echo.Context) error {
	if h.store == nil {
		return databaseUnavailable()
	}

	export, err := h.store.ExportData(c.Request().Context(), "")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	filename := fmt.Sprintf("weather_test_data_export_%s.json", time.Now().Format("20060102_150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, filename))

	return c.JSON(http.StatusOK, export)
}

func databaseUnavailable() error {
	return echo.NewHTTPError(http.StatusServiceUnavailable, "Database not available")
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}

	return value
}
