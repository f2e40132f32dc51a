package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wxprobe/internal/models"
	"wxprobe/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	st, err := store.New(db)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return st
}

// weatherTarget fakes a target application with a detectable weather API.
func weatherTarget(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/health":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status": "ok", "service": "weather", "endpoints": ["/api/weather/{city}"]}`))
		case strings.HasPrefix(r.URL.Path, "/api/weather/"):
			city := strings.TrimPrefix(r.URL.Path, "/api/weather/")
			if strings.TrimSpace(city) == "" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error": "city required"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"city":        city,
				"temperature": 17.5,
				"description": "light breeze",
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func request(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func TestTestStatusInitiallyIdle(t *testing.T) {
	srv := New(nil)

	rec := request(t, srv, http.MethodGet, "/api/test/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Running)
	assert.Zero(t, status.Total)
	assert.NotNil(t, status.Results)
}

func TestSingleTestAgainstLiveTarget(t *testing.T) {
	target := weatherTarget(t)
	defer target.Close()

	st := newTestStore(t)
	srv := New(st)

	body := `{"target_url": "` + target.URL + `", "city": "London"}`
	rec := request(t, srv, http.MethodPost, "/api/test/single", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.TestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Passed)
	assert.Equal(t, models.TestTypeManual, result.TestType)
	require.NotNil(t, result.StatusCode)
	assert.Equal(t, http.StatusOK, *result.StatusCode)

	// The single test leaves a completed one-test session behind.
	rec = request(t, srv, http.MethodGet, "/api/history/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "completed", sessions[0].Status)
	assert.Equal(t, 1, sessions[0].TotalTests)
}

func TestStartRunsSuiteToCompletion(t *testing.T) {
	target := weatherTarget(t)
	defer target.Close()

	st := newTestStore(t)
	srv := New(st)

	body := `{"target_url": "` + target.URL + `", "num_valid": 2, "num_invalid": 1, "num_edge": 1, "delay": 0.001}`
	rec := request(t, srv, http.MethodPost, "/api/test/start", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var started map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "Tests started", started["message"])
	assert.EqualValues(t, 4, started["total"])
	sessionID, _ := started["session_id"].(string)
	require.NotEmpty(t, sessionID)

	status := waitForIdle(t, srv)
	assert.Equal(t, 4, status.Progress)
	assert.Equal(t, 4, status.Passed+status.Failed)
	assert.Equal(t, "Tests completed!", status.CurrentTest)
	assert.Len(t, status.Results, 4)

	// Results were persisted under the announced session.
	rec = request(t, srv, http.MethodGet, "/api/history/session/"+sessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []models.TestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results, 4)
}

func TestStartRejectsConcurrentRun(t *testing.T) {
	target := weatherTarget(t)
	defer target.Close()

	srv := New(nil)

	body := `{"target_url": "` + target.URL + `", "num_valid": 3, "num_invalid": 1, "num_edge": 1, "delay": 0.2}`
	rec := request(t, srv, http.MethodPost, "/api/test/start", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = request(t, srv, http.MethodPost, "/api/test/start", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tests already running")

	rec = request(t, srv, http.MethodPost, "/api/test/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	status := waitForIdle(t, srv)
	assert.Equal(t, "Stopped by user", status.CurrentTest)
}

func TestDownloadWithoutResults(t *testing.T) {
	srv := New(nil)

	rec := request(t, srv, http.MethodGet, "/api/test/results/download", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No results available")
}

func TestAnalyticsWithoutStoreAreEmpty(t *testing.T) {
	srv := New(nil)

	for _, path := range []string{
		"/api/analytics/cities",
		"/api/analytics/endpoints",
		"/api/analytics/history",
	} {
		rec := request(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()), path)
	}
}

func TestHistoryEndpointsWithoutStoreAre503(t *testing.T) {
	srv := New(nil)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/history/sessions"},
		{http.MethodGet, "/api/history/session/abc"},
		{http.MethodPost, "/api/data/cleanup"},
		{http.MethodGet, "/api/data/export"},
	}
	for _, tc := range cases {
		rec := request(t, srv, tc.method, tc.path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	st := newTestStore(t)
	srv := New(st)

	rec := request(t, srv, http.MethodPost, "/api/data/cleanup", `{"days": 30}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Deleted 0 old records")
}

func TestExportAllSetsAttachmentHeader(t *testing.T) {
	st := newTestStore(t)
	srv := New(st)

	rec := request(t, srv, http.MethodGet, "/api/data/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	var export store.Export
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.NotEmpty(t, export.ExportTimestamp)
	assert.Empty(t, export.Sessions)
}

// waitForIdle polls the runner until the background suite finishes.
func waitForIdle(t *testing.T, srv *Server) Status {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec := request(t, srv, http.MethodGet, "/api/test/status", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var status Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		if !status.Running && status.EndTime != "" {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("suite did not finish in time")
	return Status{}
}
