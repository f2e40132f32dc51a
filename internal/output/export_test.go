package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wxprobe/internal/models"
)

func sampleSummary() models.TestSummary {
	endpoint := "http://localhost:5000/api/weather/London"
	status := 200
	var summary models.TestSummary
	summary.AddResult(models.TestResult{
		Timestamp:      "2026-08-26T10:00:00Z",
		City:           "London",
		TestType:       models.TestTypeValid,
		Passed:         true,
		APIEndpoint:    &endpoint,
		StatusCode:     &status,
		ResponseTimeMs: 42.17,
		Errors:         []string{},
	})
	summary.AddResult(models.TestResult{
		Timestamp:      "2026-08-26T10:00:01Z",
		City:           "",
		TestType:       models.TestTypeInvalid,
		Passed:         false,
		ResponseTimeMs: 3.5,
		Errors:         []string{"Connection error - API might be down", "second error"},
	})
	return summary
}

func TestExportJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	if err := ExportTestSummary(sampleSummary(), FormatJSON, path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}

	var decoded models.TestSummary
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if decoded.TotalTests != 2 || decoded.Passed != 1 || decoded.Failed != 1 {
		t.Errorf("Unexpected summary counts: %+v", decoded)
	}
	if decoded.Results[0].APIEndpoint == nil {
		t.Error("Expected endpoint to survive the round trip")
	}
	if decoded.Results[1].StatusCode != nil {
		t.Error("Expected nil status code to stay null")
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")

	if err := ExportTestSummary(sampleSummary(), FormatCSV, path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", len(rows))
	}

	header := strings.Join(rows[0], ",")
	if header != "timestamp,city,test_type,passed,api_endpoint,status_code,response_time_ms,errors" {
		t.Errorf("Unexpected header: %s", header)
	}
	if rows[1][3] != "true" || rows[1][5] != "200" || rows[1][6] != "42.17" {
		t.Errorf("Unexpected first row: %v", rows[1])
	}
	// Nil pointers render as empty cells; errors join with "; ".
	if rows[2][4] != "" || rows[2][5] != "" {
		t.Errorf("Expected empty endpoint and status cells, got %v", rows[2])
	}
	if rows[2][7] != "Connection error - API might be down; second error" {
		t.Errorf("Unexpected errors cell: %q", rows[2][7])
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xml")
	if err := ExportTestSummary(sampleSummary(), Format("xml"), path); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("Expected json format, got %v/%v", f, err)
	}
	if f, err := ParseFormat("csv"); err != nil || f != FormatCSV {
		t.Errorf("Expected csv format, got %v/%v", f, err)
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}
