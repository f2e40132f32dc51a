package tester

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const probeTimeout = 5 * time.Second

// Prober answers whether the target base URL plausibly hosts any weather
// API at all. Implementations must never return an error: a request that
// fails is simply no evidence.
type Prober interface {
	Detect(ctx context.Context) bool
}

// httpProber probes a target in two rounds: self-describing endpoints
// whose JSON body mentions weather endpoints, then direct guesses at the
// weather routes themselves. Any handled response on a guessed route,
// even an error, proves the route exists; only transport failures and
// unexpected statuses count as no evidence.
type httpProber struct {
	baseURL string
	client  *http.Client
}

func newHTTPProber(baseURL string) *httpProber {
	return &httpProber{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: probeTimeout},
	}
}

func (p *httpProber) Detect(ctx context.Context) bool {
	descriptive := []string{
		p.baseURL + "/api/health",
		p.baseURL + "/api/info",
	}
	for _, endpoint := range descriptive {
		status, body, err := p.get(ctx, endpoint)
		if err != nil || status != http.StatusOK {
			continue
		}
		if !json.Valid(body) {
			continue
		}
		text := strings.ToLower(string(body))
		if strings.Contains(text, "weather") && strings.Contains(text, "endpoint") {
			return true
		}
	}

	guesses := []string{
		p.baseURL + "/weather?city=test",
		p.baseURL + "/api/weather/test",
	}
	for _, endpoint := range guesses {
		status, _, err := p.get(ctx, endpoint)
		if err != nil {
			continue
		}
		switch status {
		case http.StatusOK, http.StatusBadRequest, http.StatusNotFound:
			return true
		}
	}

	return false
}

func (p *httpProber) get(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}

	resp, err := p.client.Do(req)
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
