// Package datasource defines the sales/traffic data provider interface and
// the record types shared by the metrics and services layers.
package datasource

import (
	"context"
	"time"
)

// SalesRecord is one day of sales figures for a single ASIN.
type SalesRecord struct {
	Day            time.Time `json:"-"`
	ASIN           string    `json:"asin"`
	Title          string    `json:"title"`
	UnitsOrdered   int       `json:"units_ordered"`
	OrderedRevenue float64   `json:"ordered_revenue"`
	Sessions       int       `json:"sessions"`
	Conversions    float64   `json:"conversions"`
	Refunds        int       `json:"refunds"`
}

// TrafficRecord is one day of traffic figures for a single ASIN.
type TrafficRecord struct {
	Day              time.Time `json:"-"`
	ASIN             string    `json:"asin"`
	Sessions         int       `json:"sessions"`
	PageViews        int       `json:"page_views"`
	BuyBoxPercentage float64   `json:"buy_box_percentage"`
}

// Provider fetches raw sales and traffic records for a date window
// (inclusive on both ends).
type Provider interface {
	// Name identifies the provider in summaries and stored records.
	Name() string
	FetchSales(ctx context.Context, start, end time.Time) ([]SalesRecord, error)
	FetchTraffic(ctx context.Context, start, end time.Time) ([]TrafficRecord, error)
}

// RecentPeriod returns the window covering the most recent days, including
// today. days is clamped to at least 1.
func RecentPeriod(days int) (start, end time.Time) {
	if days < 1 {
		days = 1
	}
	end = time.Now().UTC().Truncate(24 * time.Hour)
	start = end.AddDate(0, 0, -(days - 1))
	return start, end
}
