package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/metrics"
	"github.com/opsdash/opsdash/pkg/reporting"
	"github.com/opsdash/opsdash/pkg/services"
)

var (
	reportStart      string
	reportEnd        string
	reportWindowDays int
	reportTopN       int
	reportJSON       bool
	reportSave       bool
	reportInsights   bool
	reportHistory    bool
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the dashboard pipeline locally and print the report",
		Long: `Run the dashboard pipeline locally and print the report.

No bridge and no server are involved: the data source, the metrics
aggregation and the formatter run in-process. With --save the summary is
persisted (requires STORAGE_ENABLED=true); --insights asks the language
model for a narrative reading; --history appends the growth analysis of the
persisted windows.`,
		RunE: reportCmdFunc,
	}

	cmd.Flags().StringVar(&reportStart, "start", "", "Window start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&reportEnd, "end", "", "Window end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&reportWindowDays, "window-days", 0, "Window length in days (defaults to DASHBOARD_WINDOW_DAYS)")
	cmd.Flags().IntVar(&reportTopN, "top-n", 0, "How many top products to keep (defaults to DASHBOARD_TOP_N)")
	cmd.Flags().BoolVar(&reportJSON, "json", false, "Output the summary as JSON instead of text")
	cmd.Flags().BoolVar(&reportSave, "save", false, "Persist the summary")
	cmd.Flags().BoolVar(&reportInsights, "insights", false, "Generate narrative insights with the language model")
	cmd.Flags().BoolVar(&reportHistory, "history", false, "Append the growth analysis of the persisted windows")

	return cmd
}

func reportCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	sc, err := services.NewContext(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build the service context: %w", err)
	}
	defer func() { _ = sc.Close() }()

	start, end, err := services.ResolveWindow(sc, reportStart, reportEnd, reportWindowDays)
	if err != nil {
		return err
	}

	sales, err := sc.Data.FetchSales(ctx, start, end)
	if err != nil {
		return err
	}
	traffic, err := sc.Data.FetchTraffic(ctx, start, end)
	if err != nil {
		return err
	}

	topN := reportTopN
	if topN <= 0 {
		topN = cfg.Dashboard.TopN
	}
	summary := metrics.BuildSummary(sc.Data.Name(), start, end, sales, traffic, topN)

	if reportJSON {
		if err := printJSON(cmd, reporting.SummaryPayload(summary)); err != nil {
			return err
		}
	} else {
		cmd.Println(reporting.TextReport(summary))
	}

	if reportSave {
		if sc.Store == nil {
			return fmt.Errorf("--save needs STORAGE_ENABLED=true")
		}
		id, err := sc.Store.SaveSummary(ctx, summary)
		if err != nil {
			return err
		}
		cmd.Printf("Saved summary #%d\n", id)
	}

	if reportInsights {
		result, err := services.GenerateDashboardInsights(ctx, sc, map[string]any{
			"summary": reporting.SummaryPayload(summary),
		})
		if err != nil {
			return err
		}
		report := result.(map[string]any)["report"].(map[string]any)
		cmd.Println()
		cmd.Println("Insights:")
		cmd.Println(report["insights"])
	}

	if reportHistory {
		result, err := services.AnalyzeDashboardHistory(ctx, sc, map[string]any{})
		if err != nil {
			return err
		}
		cmd.Println()
		cmd.Println("History:")
		if err := printJSON(cmd, result); err != nil {
			return err
		}
	}

	return nil
}
