// Package parser reads an optional OpenAPI description of the target and
// extracts weather-looking GET routes, so discovered endpoint shapes can
// be tried ahead of the built-in guesses.
package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pb33f/libopenapi"
)

var pathParamPattern = regexp.MustCompile(`\{[^}]+\}`)

// Parser handles parsing OpenAPI specification files
type Parser struct {
	document libopenapi.Document
}

// ParseFile parses an OpenAPI specification file and returns a Parser instance
func ParseFile(filePath string) (*Parser, error) {
	specBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI file: %w", err)
	}

	document, err := libopenapi.NewDocument(specBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	return &Parser{document: document}, nil
}

// ServerURLs returns the server URLs from the OpenAPI spec
func (p *Parser) ServerURLs() ([]string, error) {
	model, errs := p.document.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("failed to build v3 model: %v", errs)
	}

	servers := model.Model.Servers
	if len(servers) == 0 {
		return []string{"http://localhost"}, nil
	}

	urls := make([]string, 0, len(servers))
	for _, server := range servers {
		if server != nil && server.URL != "" {
			urls = append(urls, server.URL)
		}
	}

	return urls, nil
}

// WeatherEndpoints returns endpoint templates for every documented GET
// route whose path mentions weather. Path parameters are rewritten to the
// {city} placeholder the tester substitutes.
func (p *Parser) WeatherEndpoints() ([]string, error) {
	model, errs := p.document.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("failed to build v3 model: %v", errs)
	}

	paths := model.Model.Paths
	if paths == nil || paths.PathItems == nil {
		return nil, nil
	}

	var templates []string
	for pair := paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		item := pair.Value()
		if item == nil || item.Get == nil {
			continue
		}
		if !strings.Contains(strings.ToLower(path), "weather") {
			continue
		}

		templates = append(templates, pathParamPattern.ReplaceAllString(path, "{city}"))
	}

	return templates, nil
}
