package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// HTTPSource fetches feed data from an upstream JSON API. All calls are
// context-scoped and bounded by the client timeout so a stalled upstream
// cannot block a scheduler tick indefinitely.
type HTTPSource struct {
	base   string
	client *http.Client
}

var (
	_ PriceProvider   = (*HTTPSource)(nil)
	_ NewsProvider    = (*HTTPSource)(nil)
	_ WeatherProvider = (*HTTPSource)(nil)
)

// NewHTTPSource points at an upstream base URL such as
// https://data.example.com/agri.
func NewHTTPSource(base string) *HTTPSource {
	return &HTTPSource{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: defaultTimeout},
	}
}

func (s *HTTPSource) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("feeds: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feeds: fetch %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("feeds: decode %s: %w", path, err)
	}
	return nil
}

func (s *HTTPSource) Prices(ctx context.Context) ([]PriceQuote, error) {
	var out []PriceQuote
	if err := s.getJSON(ctx, "/prices", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPSource) Headlines(ctx context.Context) ([]NewsItem, error) {
	var out []NewsItem
	if err := s.getJSON(ctx, "/news", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPSource) Report(ctx context.Context, region string) (WeatherReport, error) {
	var out WeatherReport
	path := "/weather?region=" + url.QueryEscape(region)
	if err := s.getJSON(ctx, path, &out); err != nil {
		return WeatherReport{}, err
	}
	return out, nil
}
