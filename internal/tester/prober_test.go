package tester

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectViaHealthEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status": "ok", "service": "Weather API", "endpoints": ["/weather"]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	p := newHTTPProber(server.URL)
	if !p.Detect(context.Background()) {
		t.Error("Expected detection via self-describing health endpoint")
	}
}

func TestDetectIgnoresNonJSONHealth(t *testing.T) {
	var sawGuess bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health", "/api/info":
			// Mentions the right words but is not JSON, so it proves nothing.
			w.Write([]byte(`<html>weather endpoint dashboard</html>`))
		case "/weather", "/api/weather/test":
			sawGuess = true
			http.NotFound(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := newHTTPProber(server.URL)
	// A 404 on a guessed weather route still proves the target routes
	// requests, so detection succeeds in the second round.
	if !p.Detect(context.Background()) {
		t.Error("Expected detection via guessed route")
	}
	if !sawGuess {
		t.Error("Expected prober to fall through to route guesses")
	}
}

func TestDetectViaDirectRouteStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/weather" && r.URL.Query().Get("city") == "test" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "unknown city"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	p := newHTTPProber(server.URL)
	if !p.Detect(context.Background()) {
		t.Error("Expected a 400 on a weather route to count as detection")
	}
}

func TestDetectUnreachableTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	server.Close()

	p := newHTTPProber(server.URL)
	if p.Detect(context.Background()) {
		t.Error("Expected no detection for an unreachable target")
	}
}
