package parser

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func TestParseFile(t *testing.T) {
	p, err := ParseFile("testdata/weather-api.json")
	if err != nil {
		t.Fatalf("Failed to parse file: %v", err)
	}
	if p == nil {
		t.Fatal("Parser is nil")
	}
}

func TestParseFileNotFound(t *testing.T) {
	_, err := ParseFile("testdata/does-not-exist.json")
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestParseFileInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`{{not json`), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	_, err := ParseFile(path)
	if err == nil {
		t.Fatal("Expected error for unparseable document")
	}
}

func TestServerURLs(t *testing.T) {
	p, err := ParseFile("testdata/weather-api.json")
	if err != nil {
		t.Fatalf("Failed to parse file: %v", err)
	}

	urls, err := p.ServerURLs()
	if err != nil {
		t.Fatalf("Failed to get server URLs: %v", err)
	}

	want := []string{"http://localhost:5000", "https://weather.example.com"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("Expected %v, got %v", want, urls)
	}
}

func TestWeatherEndpoints(t *testing.T) {
	p, err := ParseFile("testdata/weather-api.json")
	if err != nil {
		t.Fatalf("Failed to parse file: %v", err)
	}

	templates, err := p.WeatherEndpoints()
	if err != nil {
		t.Fatalf("Failed to extract endpoints: %v", err)
	}

	sort.Strings(templates)
	// GET routes mentioning weather, with path parameters rewritten to the
	// {city} placeholder. /api/health is skipped (no weather in the path)
	// and the forecast route is skipped (POST only).
	want := []string{"/api/weather/{city}", "/weather"}
	if !reflect.DeepEqual(templates, want) {
		t.Errorf("Expected %v, got %v", want, templates)
	}
}
