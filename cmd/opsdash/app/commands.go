// Package app provides the entry point for the opsdash command-line
// application.
package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opsdash/opsdash/pkg/logger"
	"github.com/opsdash/opsdash/pkg/versions"
)

var rootCmd = &cobra.Command{
	Use:               "opsdash",
	DisableAutoGenTag: true,
	Short:             "opsdash is a KPI dashboard agent for e-commerce sellers",
	Long: `opsdash reports sales and traffic KPIs for an e-commerce seller dashboard.

It runs the same operations two ways: "serve" hosts them as MCP tools over
stdio or streamable HTTP, and "call"/"tools" reach a running host through a
persistent bridge session. "report" runs the pipeline locally with no
transport at all.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		// Rebuild the logger once the flag values are known.
		_ = viper.BindPFlag("debug", cmd.Root().PersistentFlags().Lookup("debug"))
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the opsdash CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCallCommand())
	rootCmd.AddCommand(newToolsCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			if outputJSON {
				encoded, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(encoded))
				return nil
			}
			cmd.Printf("opsdash %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return nil
		},
	}
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")
	return cmd
}

func printJSON(cmd *cobra.Command, value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	cmd.Println(string(encoded))
	return nil
}
