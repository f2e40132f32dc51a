package models

// Session is a persisted suite run.
type Session struct {
	ID          int64   `json:"id"`
	SessionID   string  `json:"session_id"`
	TargetURL   string  `json:"target_url"`
	StartTime   string  `json:"start_time"`
	EndTime     *string `json:"end_time"`
	TotalTests  int     `json:"total_tests"`
	PassedTests int     `json:"passed_tests"`
	FailedTests int     `json:"failed_tests"`
	Status      string  `json:"status"`
	Config      string  `json:"config,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// CityStats is the rolling per-city aggregate kept across suite runs.
type CityStats struct {
	City            string  `json:"city"`
	TotalTests      int     `json:"total_tests"`
	SuccessCount    int     `json:"success_count"`
	AvgResponseTime float64 `json:"avg_response_time"`
	SuccessRate     float64 `json:"success_rate"`
	LastTested      string  `json:"last_tested"`
}

// EndpointStats is the rolling per-endpoint aggregate kept across suite runs.
type EndpointStats struct {
	Endpoint        string  `json:"endpoint"`
	AvgResponseTime float64 `json:"avg_response_time"`
	SuccessRate     float64 `json:"success_rate_percent"`
	TotalRequests   int     `json:"total_requests"`
	LastUpdated     string  `json:"last_updated"`
}

// DailyStats is one row of the per-day test history.
type DailyStats struct {
	TestDate        string  `json:"test_date"`
	TotalTests      int     `json:"total_tests"`
	PassedTests     int     `json:"passed_tests"`
	AvgResponseTime float64 `json:"avg_response_time"`
}
