// Package reporting renders a metrics summary as a JSON-friendly payload or
// a plain-text console report.
package reporting

import (
	"fmt"
	"strings"

	"github.com/opsdash/opsdash/pkg/metrics"
)

const dateFormat = "2006-01-02"

// SummaryPayload converts a summary into the map shape the MCP tools return
// and the storage layer consumes.
func SummaryPayload(s metrics.Summary) map[string]any {
	topProducts := make([]map[string]any, 0, len(s.TopProducts))
	for _, p := range s.TopProducts {
		var buyBox any
		if p.BuyBoxPercentage != nil {
			buyBox = *p.BuyBoxPercentage
		}
		topProducts = append(topProducts, map[string]any{
			"asin":               p.ASIN,
			"title":              p.Title,
			"revenue":            p.Revenue,
			"units":              p.Units,
			"sessions":           p.Sessions,
			"conversion_rate":    p.ConversionRate,
			"refunds":            p.Refunds,
			"buy_box_percentage": buyBox,
		})
	}
	return map[string]any{
		"source": s.SourceName,
		"window": map[string]any{
			"start": s.Start.Format(dateFormat),
			"end":   s.End.Format(dateFormat),
		},
		"totals": map[string]any{
			"revenue":         s.Totals.TotalRevenue,
			"units":           s.Totals.TotalUnits,
			"sessions":        s.Totals.TotalSessions,
			"conversion_rate": s.Totals.ConversionRate,
			"refund_rate":     s.Totals.RefundRate,
		},
		"top_products": topProducts,
	}
}

// TextReport renders the summary for the console.
func TextReport(s metrics.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Window: %s to %s\n", s.Start.Format(dateFormat), s.End.Format(dateFormat))
	fmt.Fprintf(&b, "Source: %s\n", s.SourceName)
	fmt.Fprintf(&b, "Totals: Revenue $%s, Units %d, Sessions %d, CVR %.2f%%, Refund Rate %.2f%%\n",
		formatAmount(s.Totals.TotalRevenue),
		s.Totals.TotalUnits,
		s.Totals.TotalSessions,
		s.Totals.ConversionRate*100,
		s.Totals.RefundRate*100,
	)

	if len(s.TopProducts) == 0 {
		b.WriteString("No product records available.")
		return b.String()
	}

	b.WriteString("Top products (by revenue):")
	for i, p := range s.TopProducts {
		buyBox := "Buy Box n/a"
		if p.BuyBoxPercentage != nil {
			buyBox = fmt.Sprintf("Buy Box %.2f%%", *p.BuyBoxPercentage)
		}
		fmt.Fprintf(&b, "\n%d. %s (%s) - Revenue $%s, Units %d, Sessions %d, CVR %.2f%%, Refunds %d, %s",
			i+1, p.Title, p.ASIN,
			formatAmount(p.Revenue),
			p.Units, p.Sessions,
			p.ConversionRate*100,
			p.Refunds, buyBox,
		)
	}
	return b.String()
}

// formatAmount renders a dollar amount with thousands separators.
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := strings.Join(groups, ",") + frac
	if neg {
		out = "-" + out
	}
	return out
}
