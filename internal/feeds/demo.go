package feeds

import (
	"context"
	mathrand "math/rand"
	"sync"
	"time"
)

// Demo generates artificial feed data for development and for degraded
// operation when an upstream provider is down.
type Demo struct {
	mu  sync.Mutex
	rnd *mathrand.Rand
}

var (
	_ PriceProvider   = (*Demo)(nil)
	_ NewsProvider    = (*Demo)(nil)
	_ WeatherProvider = (*Demo)(nil)
)

// NewDemo seeds a demo feed source.
func NewDemo() *Demo {
	return &Demo{rnd: mathrand.New(mathrand.NewSource(time.Now().UnixNano()))}
}

var demoProduce = []PriceQuote{
	{Produce: "tomatoes", Unit: "kg", Price: 450, Currency: "USD"},
	{Produce: "potatoes", Unit: "kg", Price: 180, Currency: "USD"},
	{Produce: "apples", Unit: "kg", Price: 320, Currency: "USD"},
	{Produce: "honey", Unit: "jar", Price: 1200, Currency: "USD"},
	{Produce: "eggs", Unit: "dozen", Price: 540, Currency: "USD"},
	{Produce: "wheat", Unit: "bushel", Price: 760, Currency: "USD"},
}

func (d *Demo) Prices(ctx context.Context) ([]PriceQuote, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PriceQuote, len(demoProduce))
	for i, q := range demoProduce {
		// Jitter each price by up to ±10%.
		delta := q.Price / 10
		if delta > 0 {
			q.Price += int64(d.rnd.Intn(int(2*delta+1))) - delta
		}
		out[i] = q
	}
	return out, nil
}

var demoHeadlines = []NewsItem{
	{Title: "Early frost expected in northern valleys", Summary: "Growers advised to cover seedlings through the weekend."},
	{Title: "Cooperative market opens new cold-chain hub", Summary: "Cuts spoilage for small producers by an estimated 30%."},
	{Title: "Wheat futures steady after last week's rally", Summary: "Analysts point to stable export demand."},
}

func (d *Demo) Headlines(ctx context.Context) ([]NewsItem, error) {
	now := time.Now().UTC()
	out := make([]NewsItem, len(demoHeadlines))
	for i, item := range demoHeadlines {
		item.PublishedAt = now
		out[i] = item
	}
	return out, nil
}

var demoConditions = []string{"clear", "cloudy", "rain", "hail", "storm"}

func (d *Demo) Report(ctx context.Context, region string) (WeatherReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	condition := demoConditions[d.rnd.Intn(len(demoConditions))]
	report := WeatherReport{
		Region:    region,
		Condition: condition,
		TempC:     float64(d.rnd.Intn(350))/10 - 5,
	}
	if condition == "hail" || condition == "storm" {
		report.Alert = true
		report.Advisory = "Severe weather expected; protect exposed crops."
	}
	return report, nil
}
