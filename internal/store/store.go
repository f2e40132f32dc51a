// Package store persists suite runs and per-city/per-endpoint aggregates
// in sqlite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wxprobe/internal/models"
)

// Store wraps the sqlite database holding sessions, results and rolling
// aggregates.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (or creates) the sqlite database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "cannot ping database")
	}

	return New(db)
}

// New wraps an existing connection, used by tests with :memory:.
func New(db *sql.DB) (*Store, error) {
	if err := initSchema(db); err != nil {
		return nil, errors.Wrap(err, "cannot initialize schema")
	}

	return &Store{
		db:  db,
		log: log.With().Str("role", "store").Caller().Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS test_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT UNIQUE NOT NULL,
			target_url TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			total_tests INTEGER DEFAULT 0,
			passed_tests INTEGER DEFAULT 0,
			failed_tests INTEGER DEFAULT 0,
			status TEXT DEFAULT 'running',
			config TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS test_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			city TEXT NOT NULL,
			test_type TEXT NOT NULL,
			passed BOOLEAN NOT NULL,
			api_endpoint TEXT,
			status_code INTEGER,
			response_time_ms REAL,
			response_data TEXT,
			errors TEXT,
			validation_results TEXT,
			timestamp TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES test_sessions (session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS endpoint_performance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			endpoint TEXT NOT NULL,
			avg_response_time REAL,
			success_rate REAL,
			total_requests INTEGER DEFAULT 1,
			last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS city_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			city TEXT NOT NULL UNIQUE,
			total_tests INTEGER DEFAULT 1,
			success_count INTEGER DEFAULT 0,
			avg_response_time REAL,
			last_tested TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_id ON test_results(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_city ON test_results(city)`,
		`CREATE INDEX IF NOT EXISTS idx_timestamp ON test_results(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_endpoint ON endpoint_performance(endpoint)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// CreateSession records a new suite run in the running state.
func (s *Store) CreateSession(ctx context.Context, sessionID, targetURL string, config interface{}) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "cannot marshal session config")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO test_sessions (session_id, target_url, start_time, config, status)
		 VALUES (?, ?, ?, ?, 'running')`,
		sessionID, targetURL, now(), string(configJSON),
	)
	if err != nil {
		return errors.Wrap(err, "cannot create test session")
	}

	return nil
}

// SessionUpdate carries the mutable fields of a session; nil fields are
// left untouched.
type SessionUpdate struct {
	EndTime     *string
	Status      *string
	TotalTests  *int
	PassedTests *int
	FailedTests *int
}

// UpdateSession applies the non-nil fields of upd to a session.
func (s *Store) UpdateSession(ctx context.Context, sessionID string, upd SessionUpdate) error {
	var clauses []string
	var values []interface{}

	if upd.EndTime != nil {
		clauses = append(clauses, "end_time = ?")
		values = append(values, *upd.EndTime)
	}
	if upd.Status != nil {
		clauses = append(clauses, "status = ?")
		values = append(values, *upd.Status)
	}
	if upd.TotalTests != nil {
		clauses = append(clauses, "total_tests = ?")
		values = append(values, *upd.TotalTests)
	}
	if upd.PassedTests != nil {
		clauses = append(clauses, "passed_tests = ?")
		values = append(values, *upd.PassedTests)
	}
	if upd.FailedTests != nil {
		clauses = append(clauses, "failed_tests = ?")
		values = append(values, *upd.FailedTests)
	}

	if len(clauses) == 0 {
		return nil
	}

	values = append(values, sessionID)
	query := fmt.Sprintf("UPDATE test_sessions SET %s WHERE session_id = ?", strings.Join(clauses, ", "))

	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return errors.Wrap(err, "cannot update test session")
	}

	return nil
}

// SaveResult persists one result and folds it into the per-endpoint and
// per-city rolling aggregates in the same transaction.
func (s *Store) SaveResult(ctx context.Context, sessionID string, result models.TestResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "cannot begin transaction")
	}
	defer tx.Rollback()

	responseData := "null"
	if result.ResponseData != nil {
		responseData = string(result.ResponseData)
	}

	errorsJSON, err := json.Marshal(result.Errors)
	if err != nil {
		return errors.Wrap(err, "cannot marshal result errors")
	}

	validationJSON := []byte("{}")
	if result.Validation != nil {
		validationJSON, err = json.Marshal(result.Validation)
		if err != nil {
			return errors.Wrap(err, "cannot marshal validation report")
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO test_results
		 (session_id, city, test_type, passed, api_endpoint, status_code,
		  response_time_ms, response_data, errors, validation_results, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID,
		result.City,
		string(result.TestType),
		result.Passed,
		result.APIEndpoint,
		result.StatusCode,
		result.ResponseTimeMs,
		responseData,
		string(errorsJSON),
		string(validationJSON),
		result.Timestamp,
	)
	if err != nil {
		return errors.Wrap(err, "cannot insert test result")
	}

	if err := updateEndpointPerformance(ctx, tx, result); err != nil {
		return errors.Wrap(err, "cannot update endpoint performance")
	}

	if err := updateCityStats(ctx, tx, result); err != nil {
		return errors.Wrap(err, "cannot update city stats")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "cannot commit test result")
	}

	return nil
}

func updateEndpointPerformance(ctx context.Context, tx *sql.Tx, result models.TestResult) error {
	if result.APIEndpoint == nil {
		return nil
	}
	endpoint := *result.APIEndpoint

	var avgTime, successRate float64
	var totalRequests int

	err := tx.QueryRowContext(ctx,
		`SELECT avg_response_time, success_rate, total_requests
		 FROM endpoint_performance WHERE endpoint = ?`, endpoint,
	).Scan(&avgTime, &successRate, &totalRequests)

	success := 0.0
	if result.Passed {
		success = 1.0
	}

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO endpoint_performance
			 (endpoint, avg_response_time, success_rate, total_requests)
			 VALUES (?, ?, ?, 1)`,
			endpoint, result.ResponseTimeMs, success,
		)
		return err
	case err != nil:
		return err
	}

	newTotal := totalRequests + 1
	newAvg := (avgTime*float64(totalRequests) + result.ResponseTimeMs) / float64(newTotal)
	newRate := (successRate*float64(totalRequests) + success) / float64(newTotal)

	_, err = tx.ExecContext(ctx,
		`UPDATE endpoint_performance
		 SET avg_response_time = ?, success_rate = ?, total_requests = ?, last_updated = ?
		 WHERE endpoint = ?`,
		newAvg, newRate, newTotal, now(), endpoint,
	)

	return err
}

func updateCityStats(ctx context.Context, tx *sql.Tx, result models.TestResult) error {
	if result.City == "" {
		return nil
	}

	var totalTests, successCount int
	var avgTime float64

	err := tx.QueryRowContext(ctx,
		`SELECT total_tests, success_count, avg_response_time
		 FROM city_stats WHERE city = ?`, result.City,
	).Scan(&totalTests, &successCount, &avgTime)

	success := 0
	if result.Passed {
		success = 1
	}

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO city_stats (city, total_tests, success_count, avg_response_time)
			 VALUES (?, 1, ?, ?)`,
			result.City, success, result.ResponseTimeMs,
		)
		return err
	case err != nil:
		return err
	}

	newTotal := totalTests + 1
	newAvg := (avgTime*float64(totalTests) + result.ResponseTimeMs) / float64(newTotal)

	_, err = tx.ExecContext(ctx,
		`UPDATE city_stats
		 SET total_tests = ?, success_count = ?, avg_response_time = ?, last_tested = ?
		 WHERE city = ?`,
		newTotal, successCount+success, newAvg, now(), result.City,
	)

	return err
}

// Sessions returns the most recent sessions, newest first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, target_url, start_time, end_time,
		        total_tests, passed_tests, failed_tests, status, config, created_at
		 FROM test_sessions ORDER BY start_time DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query test sessions")
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var sess models.Session
		var config sql.NullString
		err := rows.Scan(
			&sess.ID, &sess.SessionID, &sess.TargetURL, &sess.StartTime, &sess.EndTime,
			&sess.TotalTests, &sess.PassedTests, &sess.FailedTests, &sess.Status,
			&config, &sess.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "cannot scan test session")
		}
		sess.Config = config.String
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// SessionResults returns every result recorded for a session, newest first.
func (s *Store) SessionResults(ctx context.Context, sessionID string) ([]models.TestResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT city, test_type, passed, api_endpoint, status_code,
		        response_time_ms, response_data, errors, validation_results, timestamp
		 FROM test_results WHERE session_id = ? ORDER BY timestamp DESC`, sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query session results")
	}
	defer rows.Close()

	var results []models.TestResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

func scanResult(rows *sql.Rows) (models.TestResult, error) {
	var result models.TestResult
	var testType string
	var responseData, errorsJSON, validationJSON sql.NullString

	err := rows.Scan(
		&result.City, &testType, &result.Passed, &result.APIEndpoint,
		&result.StatusCode, &result.ResponseTimeMs,
		&responseData, &errorsJSON, &validationJSON, &result.Timestamp,
	)
	if err != nil {
		return result, errors.Wrap(err, "cannot scan test result")
	}

	result.TestType = models.TestType(testType)
	result.Errors = []string{}

	if responseData.Valid && responseData.String != "" && responseData.String != "null" {
		result.ResponseData = json.RawMessage(responseData.String)
	}
	if errorsJSON.Valid && errorsJSON.String != "" {
		// Rows written by older schema revisions may hold malformed JSON;
		// they surface as an empty error list rather than a failure.
		_ = json.Unmarshal([]byte(errorsJSON.String), &result.Errors)
	}
	if validationJSON.Valid && validationJSON.String != "" && validationJSON.String != "{}" {
		var report models.ValidationReport
		if err := json.Unmarshal([]byte(validationJSON.String), &report); err == nil {
			result.Validation = &report
		}
	}

	return result, nil
}

// CityPerformance returns the per-city aggregates, most tested first.
func (s *Store) CityPerformance(ctx context.Context) ([]models.CityStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT city, total_tests, success_count, avg_response_time, last_tested,
		        ROUND((success_count * 100.0 / total_tests), 2) AS success_rate
		 FROM city_stats ORDER BY total_tests DESC`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query city stats")
	}
	defer rows.Close()

	var stats []models.CityStats
	for rows.Next() {
		var row models.CityStats
		err := rows.Scan(&row.City, &row.TotalTests, &row.SuccessCount,
			&row.AvgResponseTime, &row.LastTested, &row.SuccessRate)
		if err != nil {
			return nil, errors.Wrap(err, "cannot scan city stats")
		}
		stats = append(stats, row)
	}

	return stats, rows.Err()
}

// EndpointPerformance returns the per-endpoint aggregates, most used first.
func (s *Store) EndpointPerformance(ctx context.Context) ([]models.EndpointStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT endpoint,
		        ROUND(avg_response_time, 2) AS avg_response_time,
		        ROUND(success_rate * 100, 2) AS success_rate_percent,
		        total_requests, last_updated
		 FROM endpoint_performance ORDER BY total_requests DESC`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query endpoint stats")
	}
	defer rows.Close()

	var stats []models.EndpointStats
	for rows.Next() {
		var row models.EndpointStats
		err := rows.Scan(&row.Endpoint, &row.AvgResponseTime, &row.SuccessRate,
			&row.TotalRequests, &row.LastUpdated)
		if err != nil {
			return nil, errors.Wrap(err, "cannot scan endpoint stats")
		}
		stats = append(stats, row)
	}

	return stats, rows.Err()
}

// History returns per-day totals for the last N days.
func (s *Store) History(ctx context.Context, days int) ([]models.DailyStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DATE(timestamp) AS test_date,
		        COUNT(*) AS total_tests,
		        SUM(CASE WHEN passed = 1 THEN 1 ELSE 0 END) AS passed_tests,
		        AVG(response_time_ms) AS avg_response_time
		 FROM test_results
		 WHERE timestamp >= datetime('now', ?)
		 GROUP BY DATE(timestamp)
		 ORDER BY test_date DESC`,
		fmt.Sprintf("-%d days", days),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query test history")
	}
	defer rows.Close()

	var history []models.DailyStats
	for rows.Next() {
		var row models.DailyStats
		err := rows.Scan(&row.TestDate, &row.TotalTests, &row.PassedTests, &row.AvgResponseTime)
		if err != nil {
			return nil, errors.Wrap(err, "cannot scan test history")
		}
		history = append(history, row)
	}

	return history, rows.Err()
}

// Cleanup removes sessions and results older than the given number of
// days, returning how many rows were deleted.
func (s *Store) Cleanup(ctx context.Context, days int) (int64, error) {
	cutoff := fmt.Sprintf("-%d days", days)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM test_results WHERE timestamp < datetime('now', ?)`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "cannot delete old test results")
	}
	resultsDeleted, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx,
		`DELETE FROM test_sessions WHERE start_time < datetime('now', ?)`, cutoff)
	if err != nil {
		return resultsDeleted, errors.Wrap(err, "cannot delete old test sessions")
	}
	sessionsDeleted, _ := res.RowsAffected()

	s.log.Info().Int64("results", resultsDeleted).Int64("sessions", sessionsDeleted).
		Msg("cleaned up old test data")

	return resultsDeleted + sessionsDeleted, nil
}

// ResultRow is a persisted result tagged with its session, used by exports.
type ResultRow struct {
	SessionID string `json:"session_id"`
	models.TestResult
}

// Export bundles sessions and results for download. An empty sessionID
// exports everything.
type Export struct {
	ExportTimestamp string           `json:"export_timestamp"`
	Sessions        []models.Session `json:"sessions"`
	Results         []ResultRow      `json:"results"`
}

// ExportData collects sessions and results into a single JSON-friendly
// bundle.
func (s *Store) ExportData(ctx context.Context, sessionID string) (*Export, error) {
	export := &Export{
		ExportTimestamp: now(),
		Sessions:        []models.Session{},
		Results:         []ResultRow{},
	}

	sessionQuery := `SELECT id, session_id, target_url, start_time, end_time,
	                        total_tests, passed_tests, failed_tests, status, config, created_at
	                 FROM test_sessions ORDER BY start_time DESC`
	resultQuery := `SELECT session_id, city, test_type, passed, api_endpoint, status_code,
	                       response_time_ms, response_data, errors, validation_results, timestamp
	                FROM test_results ORDER BY timestamp DESC`
	var sessionArgs, resultArgs []interface{}

	if sessionID != "" {
		sessionQuery = `SELECT id, session_id, target_url, start_time, end_time,
		                       total_tests, passed_tests, failed_tests, status, config, created_at
		                FROM test_sessions WHERE session_id = ?`
		resultQuery = `SELECT session_id, city, test_type, passed, api_endpoint, status_code,
		                      response_time_ms, response_data, errors, validation_results, timestamp
		               FROM test_results WHERE session_id = ?`
		sessionArgs = append(sessionArgs, sessionID)
		resultArgs = append(resultArgs, sessionID)
	}

	rows, err := s.db.QueryContext(ctx, sessionQuery, sessionArgs...)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query sessions for export")
	}
	defer rows.Close()

	for rows.Next() {
		var sess models.Session
		var config sql.NullString
		err := rows.Scan(
			&sess.ID, &sess.SessionID, &sess.TargetURL, &sess.StartTime, &sess.EndTime,
			&sess.TotalTests, &sess.PassedTests, &sess.FailedTests, &sess.Status,
			&config, &sess.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "cannot scan session for export")
		}
		sess.Config = config.String
		export.Sessions = append(export.Sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot iterate sessions for export")
	}

	resultRows, err := s.db.QueryContext(ctx, resultQuery, resultArgs...)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query results for export")
	}
	defer resultRows.Close()

	for resultRows.Next() {
		var row ResultRow
		var testType string
		var responseData, errorsJSON, validationJSON sql.NullString

		err := resultRows.Scan(
			&row.SessionID, &row.City, &testType, &row.Passed, &row.APIEndpoint,
			&row.StatusCode, &row.ResponseTimeMs,
			&responseData, &errorsJSON, &validationJSON, &row.Timestamp,
		)
		if err != nil {
			return nil, errors.Wrap(err, "cannot scan result for export")
		}

		row.TestType = models.TestType(testType)
		row.Errors = []string{}
		if responseData.Valid && responseData.String != "" && responseData.String != "null" {
			row.ResponseData = json.RawMessage(responseData.String)
		}
		if errorsJSON.Valid && errorsJSON.String != "" {
			_ = json.Unmarshal([]byte(errorsJSON.String), &row.Errors)
		}
		if validationJSON.Valid && validationJSON.String != "" && validationJSON.String != "{}" {
			var report models.ValidationReport
			if err := json.Unmarshal([]byte(validationJSON.String), &report); err == nil {
				row.Validation = &report
			}
		}

		export.Results = append(export.Results, row)
	}

	return export, resultRows.Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
