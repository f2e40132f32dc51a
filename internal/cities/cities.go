// Package cities holds the reference inputs used to build test suites:
// known-good city names, garbage inputs that a weather API must reject,
// and names that stress encoding and tokenization.
package cities

import (
	"math/rand"

	"wxprobe/internal/models"
)

// Valid are city names any weather API should resolve.
var Valid = []string{
	"London", "New York", "Tokyo", "Paris", "Berlin", "Sydney", "Mumbai", "Cairo",
	"Moscow", "Beijing", "Rome", "Madrid", "Toronto", "Bangkok", "Seoul", "Dubai",
	"Singapore", "Amsterdam", "Stockholm", "Vienna", "Prague", "Budapest", "Warsaw",
	"Helsinki", "Oslo", "Copenhagen", "Zurich", "Brussels", "Lisbon", "Athens",
	"Istanbul", "Delhi", "Bangalore", "Chennai", "Los Angeles", "Chicago", "Houston",
	"Phoenix", "Philadelphia", "San Antonio", "San Diego", "Dallas", "San Jose",
	"Austin", "Jacksonville", "Fort Worth", "Columbus", "Charlotte", "Seattle", "Denver",
}

// Invalid are inputs a weather API should reject: empty, whitespace-only,
// control characters, and symbol strings.
var Invalid = []string{
	"", "   ", "XYZ123NotReal", "123456", "!@#$%^&*()", "null", "undefined",
	"ThisCityDoesNotExist", "AAAAAAAA", "qwerty123", "TestTest", "\n\t\r",
	"City\nWith\nNewlines", "SpecialCity!@#", "VeryLongCityNameThatDoesNotExist",
}

// EdgeCases are real names that exercise non-ASCII characters, punctuation
// and multi-word handling.
var EdgeCases = []string{
	"São Paulo", "México", "Москва", "北京", "القاهرة", "New York City",
	"St. Petersburg", "Las Vegas", "Rio de Janeiro", "João Pessoa",
	"N'Djamena", "Kraków", "Düsseldorf",
}

// IsValid reports whether city is on the known-valid list.
func IsValid(city string) bool {
	for _, c := range Valid {
		if c == city {
			return true
		}
	}
	return false
}

// Sample returns up to n entries from list without replacement, in random
// order.
func Sample(list []string, n int) []string {
	if n > len(list) {
		n = len(list)
	}
	if n < 0 {
		n = 0
	}

	perm := rand.Perm(len(list))
	out := make([]string, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, list[idx])
	}

	return out
}

// BuildSuite samples the three reference lists and returns the combined
// test cases in valid, invalid, edge order.
func BuildSuite(numValid, numInvalid, numEdge int) []models.TestCase {
	cases := make([]models.TestCase, 0, numValid+numInvalid+numEdge)

	for _, city := range Sample(Valid, numValid) {
		cases = append(cases, models.TestCase{City: city, Type: models.TestTypeValid})
	}

	for _, city := range Sample(Invalid, numInvalid) {
		cases = append(cases, models.TestCase{City: city, Type: models.TestTypeInvalid})
	}

	for _, city := range Sample(EdgeCases, numEdge) {
		cases = append(cases, models.TestCase{City: city, Type: models.TestTypeEdge})
	}

	return cases
}
