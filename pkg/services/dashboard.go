package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsdash/opsdash/pkg/datasource"
	"github.com/opsdash/opsdash/pkg/errors"
	"github.com/opsdash/opsdash/pkg/logger"
	"github.com/opsdash/opsdash/pkg/metrics"
	"github.com/opsdash/opsdash/pkg/reporting"
)

// decodeArgs binds a raw argument map to a typed argument struct via a JSON
// round trip, so the operations accept exactly what their schemas advertise.
func decodeArgs(args map[string]any, out any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return errors.NewInvalidArgumentError("failed to encode arguments", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.NewInvalidArgumentError("failed to decode arguments", err)
	}
	return nil
}

type windowArgs struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	WindowDays int    `json:"window_days"`
}

// resolveWindow turns the optional start/end/window_days arguments into a
// concrete inclusive date window. A single endpoint anchors a window of the
// configured length; no endpoints means the most recent window ending today.
func resolveWindow(sc *Context, p windowArgs) (start, end time.Time, err error) {
	days := p.WindowDays
	if days <= 0 {
		days = sc.Config.Dashboard.WindowDays
	}

	switch {
	case p.Start != "" && p.End != "":
		if start, err = parseDate(p.Start); err != nil {
			return start, end, err
		}
		if end, err = parseDate(p.End); err != nil {
			return start, end, err
		}
	case p.Start != "":
		if start, err = parseDate(p.Start); err != nil {
			return start, end, err
		}
		end = start.AddDate(0, 0, days-1)
	case p.End != "":
		if end, err = parseDate(p.End); err != nil {
			return start, end, err
		}
		start = end.AddDate(0, 0, -(days - 1))
	default:
		start, end = datasource.RecentPeriod(days)
	}

	if end.Before(start) {
		return start, end, errors.NewInvalidArgumentError(
			fmt.Sprintf("window end %s precedes start %s", end.Format(dateFormat), start.Format(dateFormat)), nil)
	}
	return start, end, nil
}

// ResolveWindow exposes the window resolution rules to callers outside the
// operation handlers, like the report command.
func ResolveWindow(sc *Context, start, end string, windowDays int) (time.Time, time.Time, error) {
	return resolveWindow(sc, windowArgs{Start: start, End: end, WindowDays: windowDays})
}

// FetchDashboardData pulls the raw sales and traffic records for a date
// window from the configured data source.
func FetchDashboardData(ctx context.Context, sc *Context, args map[string]any) (any, error) {
	var p windowArgs
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	start, end, err := resolveWindow(sc, p)
	if err != nil {
		return nil, err
	}

	sales, err := sc.Data.FetchSales(ctx, start, end)
	if err != nil {
		return nil, errors.NewHandlerError("failed to fetch sales records", err)
	}
	traffic, err := sc.Data.FetchTraffic(ctx, start, end)
	if err != nil {
		return nil, errors.NewHandlerError("failed to fetch traffic records", err)
	}

	logger.Debugw("fetched dashboard data",
		"source", sc.Data.Name(),
		"start", start.Format(dateFormat),
		"end", end.Format(dateFormat),
		"sales", len(sales),
		"traffic", len(traffic),
	)
	return map[string]any{
		"source": sc.Data.Name(),
		"window": map[string]any{
			"start": start.Format(dateFormat),
			"end":   end.Format(dateFormat),
		},
		"sales":   salesRows(sales),
		"traffic": trafficRows(traffic),
	}, nil
}

type computeArgs struct {
	Start   string       `json:"start"`
	End     string       `json:"end"`
	Source  string       `json:"source"`
	Sales   []SalesRow   `json:"sales"`
	Traffic []TrafficRow `json:"traffic"`
	TopN    int          `json:"top_n"`
}

// ComputeDashboardMetrics aggregates previously fetched records into the KPI
// summary. When persistence is enabled the summary is also saved and the new
// row ID is included in the result.
func ComputeDashboardMetrics(ctx context.Context, sc *Context, args map[string]any) (any, error) {
	var p computeArgs
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if p.Start == "" || p.End == "" {
		return nil, errors.NewInvalidArgumentError("start and end are required", nil)
	}
	start, err := parseDate(p.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(p.End)
	if err != nil {
		return nil, err
	}
	if p.Source == "" {
		p.Source = sc.Data.Name()
	}
	if p.TopN <= 0 {
		p.TopN = sc.Config.Dashboard.TopN
	}

	sales, err := salesRecords(p.Sales)
	if err != nil {
		return nil, err
	}
	traffic, err := trafficRecords(p.Traffic)
	if err != nil {
		return nil, err
	}

	summary := metrics.BuildSummary(p.Source, start, end, sales, traffic, p.TopN)
	result := map[string]any{
		"summary": reporting.SummaryPayload(summary),
	}

	if sc.Store != nil {
		id, err := sc.Store.SaveSummary(ctx, summary)
		if err != nil {
			return nil, errors.NewHandlerError("failed to persist summary", err)
		}
		result["summary_id"] = id
		logger.Debugw("persisted summary", "id", id, "start", p.Start)
	}
	return result, nil
}

const insightsPreamble = `You are an e-commerce analyst. Given the KPI summary
below for a seller dashboard, write 3 to 5 short, concrete insights about
performance, conversion and refund trends, and which products deserve
attention. Answer in plain prose bullet points.`

// GenerateDashboardInsights runs the fetch and compute steps for a window
// and asks the language model for a narrative reading of the numbers. An
// explicit summary argument skips the recompute.
func GenerateDashboardInsights(ctx context.Context, sc *Context, args map[string]any) (any, error) {
	type insightArgs struct {
		windowArgs
		Summary map[string]any `json:"summary"`
	}
	var p insightArgs
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}

	if sc.LLM == nil {
		return nil, errors.NewHandlerError(
			"language model not configured; set OPENAI_API_KEY", nil)
	}

	payload := p.Summary
	if payload == nil {
		start, end, err := resolveWindow(sc, p.windowArgs)
		if err != nil {
			return nil, err
		}
		sales, err := sc.Data.FetchSales(ctx, start, end)
		if err != nil {
			return nil, errors.NewHandlerError("failed to fetch sales records", err)
		}
		traffic, err := sc.Data.FetchTraffic(ctx, start, end)
		if err != nil {
			return nil, errors.NewHandlerError("failed to fetch traffic records", err)
		}
		summary := metrics.BuildSummary(sc.Data.Name(), start, end, sales, traffic, sc.Config.Dashboard.TopN)
		payload = reporting.SummaryPayload(summary)
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, errors.NewInternalError("failed to encode summary for the prompt", err)
	}
	prompt := insightsPreamble + "\n\n" + string(encoded)

	insights, err := sc.LLM.Complete(ctx, prompt)
	if err != nil {
		return nil, errors.NewHandlerError("insight generation failed", err)
	}

	return map[string]any{
		"report": map[string]any{
			"summary":  payload,
			"insights": insights,
		},
	}, nil
}
