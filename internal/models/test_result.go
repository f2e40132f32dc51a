package models

import "encoding/json"

// TestType classifies a test case and decides the pass/fail policy for
// certain HTTP statuses.
type TestType string

const (
	TestTypeValid   TestType = "valid"
	TestTypeInvalid TestType = "invalid"
	TestTypeEdge    TestType = "edge_case"
	TestTypeManual  TestType = "manual"
)

// TestCase is a single (city, test type) pair to run against the target.
type TestCase struct {
	City string   `json:"city"`
	Type TestType `json:"test_type"`
}

// ValidationReport holds the field-level checks run against a weather
// payload. It is built fresh per response and never mutated afterwards.
type ValidationReport struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings,omitempty"`
	FoundFields []string `json:"found_fields,omitempty"`

	// Note carries the explanation attached to synthesized results.
	Note string `json:"note,omitempty"`
}

// TestResult represents the outcome of testing a single city against the
// target. All failure modes are captured in Errors/StatusCode/Passed; the
// tester never raises them to the caller.
type TestResult struct {
	Timestamp      string            `json:"timestamp"`
	City           string            `json:"city"`
	TestType       TestType          `json:"test_type"`
	Passed         bool              `json:"passed"`
	APIEndpoint    *string           `json:"api_endpoint"`
	StatusCode     *int              `json:"status_code"`
	ResponseTimeMs float64           `json:"response_time_ms"`
	ResponseData   json.RawMessage   `json:"response_data,omitempty"`
	Errors         []string          `json:"errors"`
	Validation     *ValidationReport `json:"validation_results,omitempty"`
}

// TestSummary represents the overall results of a suite run.
type TestSummary struct {
	TotalTests int          `json:"total_tests"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Results    []TestResult `json:"results"`
}

// AddResult adds a test result to the summary
func (s *TestSummary) AddResult(result TestResult) {
	s.TotalTests++
	s.Results = append(s.Results, result)
	if result.Passed {
		s.Passed++
	} else {
		s.Failed++
	}
}
