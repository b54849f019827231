// Package feeds supplies the external market data consumed by scheduled
// jobs: produce prices, agri news and weather reports. Providers are
// collaborators, not implemented here; the demo variants keep jobs useful
// when no upstream is configured.
package feeds

import (
	"context"
	"time"
)

// PriceQuote is one produce price in minor units.
type PriceQuote struct {
	Produce  string `json:"produce"`
	Unit     string `json:"unit"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}

// NewsItem is one agri news headline.
type NewsItem struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
}

// WeatherReport is the current conditions for one growing region.
type WeatherReport struct {
	Region    string  `json:"region"`
	Condition string  `json:"condition"`
	TempC     float64 `json:"temp_c"`
	Alert     bool    `json:"alert"`
	Advisory  string  `json:"advisory,omitempty"`
}

// PriceProvider returns current market prices.
type PriceProvider interface {
	Prices(ctx context.Context) ([]PriceQuote, error)
}

// NewsProvider returns recent headlines.
type NewsProvider interface {
	Headlines(ctx context.Context) ([]NewsItem, error)
}

// WeatherProvider returns the report for a region.
type WeatherProvider interface {
	Report(ctx context.Context, region string) (WeatherReport, error)
}
