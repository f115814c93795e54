package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/opsdash/opsdash/pkg/errors"
	"github.com/opsdash/opsdash/pkg/logger"
	"github.com/opsdash/opsdash/pkg/storage/sqlite"
)

var defaultHistoryMetrics = []string{"revenue", "units", "sessions"}

type historyArgs struct {
	Limit   int      `json:"limit"`
	Metrics []string `json:"metrics"`
}

// AnalyzeDashboardHistory reads the persisted summaries and reports
// month-over-month and year-over-year growth per metric plus the raw time
// series. With persistence disabled it reports that instead of failing, so
// the operation stays callable in mock-only deployments.
func AnalyzeDashboardHistory(ctx context.Context, sc *Context, args map[string]any) (any, error) {
	var p historyArgs
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = 12
	}
	if len(p.Metrics) == 0 {
		p.Metrics = defaultHistoryMetrics
	}

	if sc.Store == nil {
		return map[string]any{
			"analysis":    map[string]any{"error": "persistence disabled; set STORAGE_ENABLED=true"},
			"time_series": map[string]any{},
		}, nil
	}

	summaries, err := sc.Store.RecentSummaries(ctx, p.Limit)
	if err != nil {
		return nil, errors.NewHandlerError("failed to load summary history", err)
	}
	if len(summaries) == 0 {
		return map[string]any{
			"analysis":    map[string]any{"windows": 0},
			"time_series": map[string]any{},
		}, nil
	}

	analysis := map[string]any{"windows": len(summaries)}
	series := map[string]any{}
	for _, metric := range p.Metrics {
		latest, ok := summaries[0].Metric(metric)
		if !ok {
			return nil, errors.NewInvalidArgumentError(
				fmt.Sprintf("unknown metric %q", metric), nil)
		}

		entry := map[string]any{"latest": latest}
		if len(summaries) > 1 {
			previous, _ := summaries[1].Metric(metric)
			entry["previous"] = previous
			entry["mom_growth"] = growth(latest, previous)
		}
		if yoy, err := yearOverYear(ctx, sc.Store, summaries[0], metric); err != nil {
			return nil, err
		} else if yoy != nil {
			entry["yoy_growth"] = growth(latest, *yoy)
		}
		analysis[metric] = entry

		// Oldest first so the series reads left to right on a chart.
		points := make([]map[string]any, 0, len(summaries))
		for i := len(summaries) - 1; i >= 0; i-- {
			value, _ := summaries[i].Metric(metric)
			points = append(points, map[string]any{
				"start": summaries[i].Start,
				"value": value,
			})
		}
		series[metric] = points
	}

	return map[string]any{
		"analysis":    analysis,
		"time_series": series,
	}, nil
}

// yearOverYear looks up the summary whose window started exactly one year
// before the latest one. Returns nil when no such window was recorded.
func yearOverYear(ctx context.Context, store *sqlite.Store, latest sqlite.StoredSummary, metric string) (*float64, error) {
	start, err := time.Parse(dateFormat, latest.Start)
	if err != nil {
		return nil, errors.NewInternalError("stored summary has a malformed start date", err)
	}
	match, err := store.SummaryByStartDate(ctx, start.AddDate(-1, 0, 0).Format(dateFormat))
	if err != nil {
		return nil, errors.NewHandlerError("failed to load year-over-year summary", err)
	}
	if match == nil {
		return nil, nil
	}
	value, _ := match.Metric(metric)
	return &value, nil
}

// growth returns the fractional growth from base to current, or nil when the
// base is zero and the ratio is undefined.
func growth(current, base float64) any {
	if base == 0 {
		return nil
	}
	return (current - base) / base
}

type exportArgs struct {
	Filename string `json:"filename"`
	Limit    int    `json:"limit"`
}

// ExportDashboardHistory writes the persisted summaries to a CSV file under
// the configured export directory. The filename argument is reduced to its
// base name so exports cannot escape the directory.
func ExportDashboardHistory(ctx context.Context, sc *Context, args map[string]any) (any, error) {
	var p exportArgs
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if sc.Store == nil {
		return map[string]any{
			"message": "persistence disabled; nothing to export",
		}, nil
	}

	name := filepath.Base(strings.TrimSpace(p.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "dashboard_history.csv"
	}
	if !strings.HasSuffix(name, ".csv") {
		name += ".csv"
	}

	summaries, err := sc.Store.RecentSummaries(ctx, p.Limit)
	if err != nil {
		return nil, errors.NewHandlerError("failed to load summary history", err)
	}

	dir := sc.Config.Storage.ExportDir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.NewHandlerError("failed to create export directory", err)
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.NewHandlerError("failed to create export file", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	header := []string{
		"start", "end", "source", "total_revenue", "total_units",
		"total_sessions", "conversion_rate", "refund_rate", "created_at",
	}
	if err := w.Write(header); err != nil {
		return nil, errors.NewHandlerError("failed to write export header", err)
	}
	for _, s := range summaries {
		row := []string{
			s.Start, s.End, s.Source,
			strconv.FormatFloat(s.TotalRevenue, 'f', 2, 64),
			strconv.Itoa(s.TotalUnits),
			strconv.Itoa(s.TotalSessions),
			strconv.FormatFloat(s.ConversionRate, 'f', 4, 64),
			strconv.FormatFloat(s.RefundRate, 'f', 4, 64),
			s.CreatedAt,
		}
		if err := w.Write(row); err != nil {
			return nil, errors.NewHandlerError("failed to write export row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.NewHandlerError("failed to flush export file", err)
	}

	logger.Infow("exported summary history", "path", path, "rows", len(summaries))
	return map[string]any{
		"message": fmt.Sprintf("exported %d summaries to %s", len(summaries), path),
		"path":    path,
		"rows":    len(summaries),
	}, nil
}
