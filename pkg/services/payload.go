package services

import (
	"time"

	"github.com/opsdash/opsdash/pkg/datasource"
	"github.com/opsdash/opsdash/pkg/errors"
)

const dateFormat = "2006-01-02"

// SalesRow is the wire shape of one sales record: a SalesRecord with the day
// spelled out as an ISO date so it survives the JSON round trip between
// operations.
type SalesRow struct {
	Day            string  `json:"day"`
	ASIN           string  `json:"asin"`
	Title          string  `json:"title"`
	UnitsOrdered   int     `json:"units_ordered"`
	OrderedRevenue float64 `json:"ordered_revenue"`
	Sessions       int     `json:"sessions"`
	Conversions    float64 `json:"conversions"`
	Refunds        int     `json:"refunds"`
}

// TrafficRow is the wire shape of one traffic record.
type TrafficRow struct {
	Day              string  `json:"day"`
	ASIN             string  `json:"asin"`
	Sessions         int     `json:"sessions"`
	PageViews        int     `json:"page_views"`
	BuyBoxPercentage float64 `json:"buy_box_percentage"`
}

func salesRows(records []datasource.SalesRecord) []SalesRow {
	rows := make([]SalesRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, SalesRow{
			Day:            r.Day.Format(dateFormat),
			ASIN:           r.ASIN,
			Title:          r.Title,
			UnitsOrdered:   r.UnitsOrdered,
			OrderedRevenue: r.OrderedRevenue,
			Sessions:       r.Sessions,
			Conversions:    r.Conversions,
			Refunds:        r.Refunds,
		})
	}
	return rows
}

func trafficRows(records []datasource.TrafficRecord) []TrafficRow {
	rows := make([]TrafficRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, TrafficRow{
			Day:              r.Day.Format(dateFormat),
			ASIN:             r.ASIN,
			Sessions:         r.Sessions,
			PageViews:        r.PageViews,
			BuyBoxPercentage: r.BuyBoxPercentage,
		})
	}
	return rows
}

func salesRecords(rows []SalesRow) ([]datasource.SalesRecord, error) {
	records := make([]datasource.SalesRecord, 0, len(rows))
	for _, row := range rows {
		day, err := parseDate(row.Day)
		if err != nil {
			return nil, err
		}
		records = append(records, datasource.SalesRecord{
			Day:            day,
			ASIN:           row.ASIN,
			Title:          row.Title,
			UnitsOrdered:   row.UnitsOrdered,
			OrderedRevenue: row.OrderedRevenue,
			Sessions:       row.Sessions,
			Conversions:    row.Conversions,
			Refunds:        row.Refunds,
		})
	}
	return records, nil
}

func trafficRecords(rows []TrafficRow) ([]datasource.TrafficRecord, error) {
	records := make([]datasource.TrafficRecord, 0, len(rows))
	for _, row := range rows {
		day, err := parseDate(row.Day)
		if err != nil {
			return nil, err
		}
		records = append(records, datasource.TrafficRecord{
			Day:              day,
			ASIN:             row.ASIN,
			Sessions:         row.Sessions,
			PageViews:        row.PageViews,
			BuyBoxPercentage: row.BuyBoxPercentage,
		})
	}
	return records, nil
}

func parseDate(value string) (time.Time, error) {
	day, err := time.Parse(dateFormat, value)
	if err != nil {
		return time.Time{}, errors.NewInvalidArgumentError(
			"dates must use the YYYY-MM-DD format", err)
	}
	return day, nil
}
