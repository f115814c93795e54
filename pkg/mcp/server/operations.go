package server

import (
	"github.com/opsdash/opsdash/pkg/services"
)

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var windowProperties = map[string]any{
	"start": map[string]any{
		"type":        "string",
		"description": "Window start date (YYYY-MM-DD). Defaults to a recent window.",
	},
	"end": map[string]any{
		"type":        "string",
		"description": "Window end date (YYYY-MM-DD), inclusive.",
	},
	"window_days": map[string]any{
		"type":        "integer",
		"description": "Window length in days when only one endpoint is given.",
	},
}

// RegisterDashboardOperations registers the dashboard operations on the
// registry. The registry owns nothing domain-specific; this is the one place
// that binds operation names to the services layer.
func RegisterDashboardOperations(r *Registry) error {
	operations := []Operation{
		{
			Name:        "fetch_dashboard_data",
			Description: "Fetch raw sales and traffic records for a date window.",
			InputSchema: objectSchema(windowProperties),
			Handler:     services.FetchDashboardData,
		},
		{
			Name:        "compute_dashboard_metrics",
			Description: "Aggregate fetched records into a KPI summary; persists it when storage is enabled.",
			InputSchema: objectSchema(map[string]any{
				"start":   map[string]any{"type": "string", "description": "Window start date (YYYY-MM-DD)."},
				"end":     map[string]any{"type": "string", "description": "Window end date (YYYY-MM-DD)."},
				"source":  map[string]any{"type": "string", "description": "Data source name for the summary."},
				"sales":   map[string]any{"type": "array", "description": "Sales rows from fetch_dashboard_data.", "items": map[string]any{"type": "object"}},
				"traffic": map[string]any{"type": "array", "description": "Traffic rows from fetch_dashboard_data.", "items": map[string]any{"type": "object"}},
				"top_n":   map[string]any{"type": "integer", "description": "How many top products to keep."},
			}, "start", "end"),
			Handler: services.ComputeDashboardMetrics,
		},
		{
			Name:        "generate_dashboard_insights",
			Description: "Generate narrative insights for a window using the language model.",
			InputSchema: objectSchema(mergeProperties(windowProperties, map[string]any{
				"summary": map[string]any{
					"type":        "object",
					"description": "Precomputed KPI summary; when present the window arguments are ignored.",
				},
			})),
			Handler: services.GenerateDashboardInsights,
		},
		{
			Name:        "analyze_dashboard_history",
			Description: "Report growth trends and time series over the persisted summaries.",
			InputSchema: objectSchema(map[string]any{
				"limit": map[string]any{"type": "integer", "description": "How many recent windows to analyze (default 12)."},
				"metrics": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Metrics to analyze: revenue, units, sessions.",
				},
			}),
			Handler: services.AnalyzeDashboardHistory,
		},
		{
			Name:        "export_dashboard_history",
			Description: "Export the persisted summaries as CSV under the export directory.",
			InputSchema: objectSchema(map[string]any{
				"filename": map[string]any{"type": "string", "description": "Export file name; always placed inside the export directory."},
				"limit":    map[string]any{"type": "integer", "description": "How many recent windows to export (default 100)."},
			}),
			Handler: services.ExportDashboardHistory,
		},
		{
			Name:        "bestseller_search",
			Description: "Search the retail catalog for bestsellers matching a query. Requires real Amazon credentials.",
			InputSchema: objectSchema(map[string]any{
				"query":    map[string]any{"type": "string", "description": "Search keywords."},
				"category": map[string]any{"type": "string", "description": "Optional category filter."},
				"limit":    map[string]any{"type": "integer", "description": "Maximum number of hits (default 10)."},
			}, "query"),
			Handler: services.BestsellerSearch,
		},
	}

	for _, op := range operations {
		if err := r.Register(op); err != nil {
			return err
		}
	}
	return nil
}

func mergeProperties(base, extra map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
