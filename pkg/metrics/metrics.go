// Package metrics aggregates raw sales and traffic records into the KPI
// summary the dashboard tools report on.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/opsdash/opsdash/pkg/datasource"
)

// KPIOverview holds the top-level KPIs for a reporting window.
type KPIOverview struct {
	TotalRevenue   float64 `json:"total_revenue"`
	TotalUnits     int     `json:"total_units"`
	TotalSessions  int     `json:"total_sessions"`
	ConversionRate float64 `json:"conversion_rate"`
	RefundRate     float64 `json:"refund_rate"`
}

// ProductPerformance holds the aggregated figures for a single ASIN.
type ProductPerformance struct {
	ASIN             string   `json:"asin"`
	Title            string   `json:"title"`
	Revenue          float64  `json:"revenue"`
	Units            int      `json:"units"`
	Sessions         int      `json:"sessions"`
	ConversionRate   float64  `json:"conversion_rate"`
	Refunds          int      `json:"refunds"`
	BuyBoxPercentage *float64 `json:"buy_box_percentage"`
}

// Summary is the aggregated dashboard result for one window.
type Summary struct {
	Start       time.Time
	End         time.Time
	SourceName  string
	Totals      KPIOverview
	TopProducts []ProductPerformance
}

type asinAggregate struct {
	title            string
	revenue          float64
	units            int
	sessionsEstimate int
	sessions         int
	refunds          int
	buyBoxSum        float64
	buyBoxCount      int
}

// BuildSummary aggregates the raw records by ASIN and produces the KPI
// overview plus the top-N products by revenue.
func BuildSummary(
	sourceName string,
	start, end time.Time,
	sales []datasource.SalesRecord,
	traffic []datasource.TrafficRecord,
	topN int,
) Summary {
	aggregated := aggregateByASIN(sales, traffic)

	var totals KPIOverview
	var totalRefunds int
	for _, agg := range aggregated {
		totals.TotalRevenue += agg.revenue
		totals.TotalUnits += agg.units
		totals.TotalSessions += agg.sessions
		totalRefunds += agg.refunds
	}
	if totals.TotalSessions > 0 {
		totals.ConversionRate = round4(float64(totals.TotalUnits) / float64(totals.TotalSessions))
	}
	if totals.TotalUnits > 0 {
		totals.RefundRate = round4(float64(totalRefunds) / float64(totals.TotalUnits))
	}
	totals.TotalRevenue = round2(totals.TotalRevenue)

	asins := make([]string, 0, len(aggregated))
	for asin := range aggregated {
		asins = append(asins, asin)
	}
	sort.Slice(asins, func(i, j int) bool {
		a, b := aggregated[asins[i]], aggregated[asins[j]]
		if a.revenue != b.revenue {
			return a.revenue > b.revenue
		}
		return asins[i] < asins[j]
	})
	if topN > 0 && len(asins) > topN {
		asins = asins[:topN]
	}

	top := make([]ProductPerformance, 0, len(asins))
	for _, asin := range asins {
		agg := aggregated[asin]
		conversion := 0.0
		if agg.sessions > 0 {
			conversion = round4(float64(agg.units) / float64(agg.sessions))
		}
		var buyBox *float64
		if agg.buyBoxCount > 0 {
			v := round2(agg.buyBoxSum / float64(agg.buyBoxCount))
			buyBox = &v
		}
		top = append(top, ProductPerformance{
			ASIN:             asin,
			Title:            agg.title,
			Revenue:          round2(agg.revenue),
			Units:            agg.units,
			Sessions:         agg.sessions,
			ConversionRate:   conversion,
			Refunds:          agg.refunds,
			BuyBoxPercentage: buyBox,
		})
	}

	return Summary{
		Start:       start,
		End:         end,
		SourceName:  sourceName,
		Totals:      totals,
		TopProducts: top,
	}
}

func aggregateByASIN(
	sales []datasource.SalesRecord,
	traffic []datasource.TrafficRecord,
) map[string]*asinAggregate {
	aggregated := make(map[string]*asinAggregate)

	entry := func(asin, title string) *asinAggregate {
		agg, ok := aggregated[asin]
		if !ok {
			agg = &asinAggregate{title: title}
			aggregated[asin] = agg
		}
		return agg
	}

	for _, r := range sales {
		agg := entry(r.ASIN, r.Title)
		if r.Title != "" {
			agg.title = r.Title
		}
		agg.revenue += r.OrderedRevenue
		agg.units += r.UnitsOrdered
		agg.sessionsEstimate += r.Sessions
		agg.refunds += r.Refunds
	}

	for _, r := range traffic {
		agg := entry(r.ASIN, "Unknown ASIN")
		agg.sessions += r.Sessions
		agg.buyBoxSum += r.BuyBoxPercentage
		agg.buyBoxCount++
	}

	// Traffic-report sessions win over the per-sale estimate when present.
	for _, agg := range aggregated {
		if agg.sessions == 0 {
			agg.sessions = agg.sessionsEstimate
		}
	}

	return aggregated
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
