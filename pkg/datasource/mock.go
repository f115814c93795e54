package datasource

import (
	"context"
	"fmt"
	"time"
)

// defaultASINs are the sample products emitted by the mock provider.
var defaultASINs = []string{"B0TESTSKU01", "B0TESTSKU02", "B0TESTSKU03"}

// MockSettings controls the mock provider's pseudo-random behavior.
type MockSettings struct {
	// Seed makes the generated series reproducible across runs.
	Seed int64
	// ASINs overrides the default sample product list.
	ASINs []string
}

// MockProvider generates reproducible sales and traffic series shaped like
// an Amazon business report export. It backs local development and tests so
// neither needs marketplace credentials.
type MockProvider struct {
	settings MockSettings
	asins    []string
}

// NewMockProvider creates a mock provider. A zero seed is replaced with a
// fixed default so the series stays reproducible.
func NewMockProvider(settings MockSettings) *MockProvider {
	if settings.Seed == 0 {
		settings.Seed = 2024
	}
	asins := settings.ASINs
	if len(asins) == 0 {
		asins = defaultASINs
	}
	return &MockProvider{settings: settings, asins: asins}
}

// Name implements Provider.
func (*MockProvider) Name() string {
	return "mock_amazon_business_report"
}

// FetchSales implements Provider.
func (p *MockProvider) FetchSales(_ context.Context, start, end time.Time) ([]SalesRecord, error) {
	rng := newMinstd(p.settings.Seed + 1)
	days := iterDays(start, end)
	records := make([]SalesRecord, 0, len(days)*len(p.asins))
	for _, asin := range p.asins {
		baseUnits := max(10, rng.intn(20, 80))
		baseRevenue := float64(max(400, rng.intn(800, 2000)))
		for _, day := range days {
			// Base value plus bounded noise, roughly tracking real sales.
			units := max(0, int(float64(baseUnits)*rng.uniform(0.6, 1.3)))
			revenue := round2(baseRevenue * rng.uniform(0.6, 1.2))
			sessions := max(units*rng.intn(4, 9), 1)
			conversion := 0.0
			if sessions > 0 {
				conversion = round4(float64(units) / float64(sessions))
			}
			records = append(records, SalesRecord{
				Day:            day,
				ASIN:           asin,
				Title:          fmt.Sprintf("Mock Product %s", asin[len(asin)-2:]),
				UnitsOrdered:   units,
				OrderedRevenue: revenue,
				Sessions:       sessions,
				Conversions:    conversion,
				Refunds:        rng.intn(0, 2),
			})
		}
	}
	return records, nil
}

// FetchTraffic implements Provider.
func (p *MockProvider) FetchTraffic(_ context.Context, start, end time.Time) ([]TrafficRecord, error) {
	rng := newMinstd(p.settings.Seed + 2)
	days := iterDays(start, end)
	records := make([]TrafficRecord, 0, len(days)*len(p.asins))
	for _, asin := range p.asins {
		baseSessions := max(50, rng.intn(150, 400))
		for _, day := range days {
			sessions := max(1, int(float64(baseSessions)*rng.uniform(0.5, 1.3)))
			records = append(records, TrafficRecord{
				Day:              day,
				ASIN:             asin,
				Sessions:         sessions,
				PageViews:        sessions + rng.intn(20, 200),
				BuyBoxPercentage: round2(rng.uniform(75, 98)),
			})
		}
	}
	return records, nil
}

func iterDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// minstd is a linear congruential generator with the MINSTD parameters.
// math/rand would work too, but this keeps the generated series identical
// across Go versions, which the fixture-style tests rely on.
type minstd struct {
	state int64
}

func newMinstd(seed int64) *minstd {
	state := seed % 2147483647
	if state <= 0 {
		state = 42
	}
	return &minstd{state: state}
}

func (m *minstd) next() float64 {
	m.state = (m.state * 48271) % 2147483647
	return float64(m.state) / 2147483647
}

func (m *minstd) uniform(low, high float64) float64 {
	return low + (high-low)*m.next()
}

func (m *minstd) intn(low, high int) int {
	return low + int(float64(high-low)*m.next())
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
