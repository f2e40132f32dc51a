package tester

import (
	"fmt"
	"sort"
	"strings"

	"wxprobe/internal/models"
)

// Temperatures outside this range are physically suspicious but not
// invalid; they only produce a warning.
const (
	minPlausibleTemp = -100.0
	maxPlausibleTemp = 70.0
)

var requiredFields = []string{"city", "temperature", "description"}

// Validator checks decoded weather payloads for the fields a well-formed
// response must carry. It is a pure function of its inputs.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() Validator {
	return Validator{}
}

// Validate inspects a decoded JSON payload and reports every violation it
// finds. All checks run independently; only a non-object root short-circuits.
func (Validator) Validate(data interface{}, city string, testType models.TestType) models.ValidationReport {
	report := models.ValidationReport{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
	}

	obj, ok := data.(map[string]interface{})
	if !ok {
		report.Errors = append(report.Errors, "Response is not a JSON object")
		report.IsValid = false
		return report
	}

	fields := make([]string, 0, len(obj))
	for key := range obj {
		fields = append(fields, key)
	}
	sort.Strings(fields)
	report.FoundFields = fields

	var missing []string
	for _, field := range requiredFields {
		if _, present := obj[field]; !present {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		report.Errors = append(report.Errors, "Missing required fields: "+strings.Join(missing, ", "))
		report.IsValid = false
	}

	if raw, present := obj["temperature"]; present {
		temp, numeric := raw.(float64)
		if !numeric {
			report.Errors = append(report.Errors, "Temperature is not numeric")
			report.IsValid = false
		} else if temp < minPlausibleTemp || temp > maxPlausibleTemp {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Temperature %v°C seems extreme", temp))
		}
	}

	if raw, present := obj["description"]; present {
		desc, isString := raw.(string)
		if !isString || strings.TrimSpace(desc) == "" {
			report.Errors = append(report.Errors, "Weather description is empty or invalid")
			report.IsValid = false
		}
	}

	if raw, present := obj["city"]; present {
		name, isString := raw.(string)
		if !isString || strings.TrimSpace(name) == "" {
			report.Errors = append(report.Errors, "City name is empty or invalid")
			report.IsValid = false
		}
	}

	return report
}
