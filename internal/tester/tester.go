// Package tester probes an HTTP target for a weather API and runs typed
// test cases against it. Nothing in this package raises an error to its
// caller: every failure mode lands inside the returned TestResult.
package tester

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wxprobe/internal/models"
)

const dispatchTimeout = 10 * time.Second

// bodyExcerptLen caps how much of an unexpected response body is kept in
// the error message.
const bodyExcerptLen = 100

// Tester executes weather API tests against a single target base URL.
// It holds no semantic state between test cases; the HTTP client is
// shared for connection reuse only.
type Tester struct {
	baseURL   string
	client    *http.Client
	prober    Prober
	validator Validator

	// extraTemplates are endpoint shapes discovered outside the built-in
	// guesses (for example from an OpenAPI document); they are tried first.
	extraTemplates []string
}

// Option configures a Tester.
type Option func(*Tester)

// WithProber swaps the endpoint-existence heuristic, typically for tests.
func WithProber(p Prober) Option {
	return func(t *Tester) { t.prober = p }
}

// WithClient swaps the HTTP client used for test dispatch.
func WithClient(c *http.Client) Option {
	return func(t *Tester) { t.client = c }
}

// WithEndpointTemplates prepends candidate endpoint shapes. Templates may
// contain a {city} placeholder; without one the city is appended as a
// query parameter.
func WithEndpointTemplates(templates []string) Option {
	return func(t *Tester) { t.extraTemplates = templates }
}

// NewTester creates a tester bound to a target base URL.
func NewTester(baseURL string, opts ...Option) *Tester {
	t := &Tester{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: dispatchTimeout},
		validator: NewValidator(),
	}
	t.prober = newHTTPProber(t.baseURL)

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// RunTest produces exactly one TestResult for a (city, test type) pair.
// Candidate endpoint shapes are tried in order and the first definitive
// outcome wins; a 404 means "this shape doesn't exist here, try the next".
func (t *Tester) RunTest(ctx context.Context, city string, testType models.TestType) models.TestResult {
	start := time.Now()

	if !t.prober.Detect(ctx) {
		return t.synthesizeResult(city, testType, start)
	}

	result := models.TestResult{
		Timestamp: time.Now().Format(time.RFC3339),
		City:      city,
		TestType:  testType,
		Errors:    []string{},
	}

attempts:
	for _, endpoint := range t.candidateEndpoints(city) {
		status, body, err := t.get(ctx, endpoint)
		if err != nil {
			code, msg := classifyTransportError(err)
			result.StatusCode = &code
			result.Errors = append(result.Errors, msg)
			break attempts
		}

		switch {
		case status == http.StatusOK:
			result.APIEndpoint = &endpoint
			result.StatusCode = &status

			var data interface{}
			if jsonErr := json.Unmarshal(body, &data); jsonErr != nil {
				// Malformed JSON from a live weather endpoint is itself the
				// final answer; remaining shapes are not tried.
				result.Errors = append(result.Errors, "Response is not valid JSON")
				break attempts
			}

			result.ResponseData = json.RawMessage(body)
			report := t.validator.Validate(data, city, testType)
			result.Validation = &report
			result.Passed = report.IsValid
			result.Errors = append(result.Errors, report.Errors...)
			break attempts

		case testType == models.TestTypeInvalid && expectedRejection(status):
			// An invalid input correctly rejected is a pass.
			result.APIEndpoint = &endpoint
			result.StatusCode = &status
			result.Passed = true
			result.Errors = append(result.Errors, fmt.Sprintf("Correctly returned error %d for invalid input", status))
			break attempts

		case status == http.StatusNotFound:
			continue

		default:
			result.APIEndpoint = &endpoint
			result.StatusCode = &status
			result.Errors = append(result.Errors, fmt.Sprintf("HTTP %d: %s", status, excerpt(body)))
			break attempts
		}
	}

	if result.APIEndpoint == nil && result.StatusCode == nil {
		// Every shape came back 404: the target handles requests but none
		// of the guessed routes exist.
		notFound := http.StatusNotFound
		result.StatusCode = &notFound
		result.Errors = append(result.Errors, "No valid API endpoint found")
	}

	result.ResponseTimeMs = roundMs(time.Since(start))

	return result
}

// candidateEndpoints returns the ordered endpoint guesses for a city:
// discovered templates first, then the fixed shapes in path-first order.
func (t *Tester) candidateEndpoints(city string) []string {
	endpoints := make([]string, 0, len(t.extraTemplates)+4)
	for _, tpl := range t.extraTemplates {
		endpoints = append(endpoints, t.expandTemplate(tpl, city))
	}

	return append(endpoints,
		t.baseURL+"/api/weather/"+url.PathEscape(city),
		t.baseURL+"/weather?city="+url.QueryEscape(city),
		t.baseURL+"/api/weather?city="+url.QueryEscape(city),
		t.baseURL+"/weather/"+url.PathEscape(city),
	)
}

func (t *Tester) expandTemplate(tpl, city string) string {
	path, query, hasQuery := strings.Cut(tpl, "?")
	path = strings.ReplaceAll(path, "{city}", url.PathEscape(city))

	switch {
	case hasQuery:
		query = strings.ReplaceAll(query, "{city}", url.QueryEscape(city))
		return t.baseURL + path + "?" + query
	case strings.Contains(tpl, "{city}"):
		return t.baseURL + path
	default:
		return t.baseURL + path + "?city=" + url.QueryEscape(city)
	}
}

func (t *Tester) get(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "wxprobe/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

// expectedRejection reports whether status is a correct answer to an
// invalid input.
func expectedRejection(status int) bool {
	return status == http.StatusBadRequest ||
		status == http.StatusNotFound ||
		status == http.StatusUnprocessableEntity
}

// classifyTransportError folds transport faults into the reserved status
// sentinels: 408 timeout, 0 connection failure, 500 anything else.
func classifyTransportError(err error) (int, string) {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return http.StatusRequestTimeout, "Request timeout (>10 seconds)"
		}
		return 0, "Connection error - API might be down"
	}

	return http.StatusInternalServerError, "Unexpected error: " + err.Error()
}

func excerpt(body []byte) string {
	text := string(body)
	if len(text) > bodyExcerptLen {
		return text[:bodyExcerptLen]
	}
	return text
}

func roundMs(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000*100) / 100
}
