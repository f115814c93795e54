package app

import (
	"github.com/spf13/cobra"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/logger"
	"github.com/opsdash/opsdash/pkg/mcp/bridge"
	"github.com/opsdash/opsdash/pkg/mcp/proxy"
	mcpserver "github.com/opsdash/opsdash/pkg/mcp/server"
)

var (
	toolsJSON     bool
	toolsResource bool
)

func newToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Discover the remote operation catalog through the bridge",
		Long: `Discover the remote operation catalog through the bridge.

The catalog is rendered as typed call proxies: every operation with its
parameters, their inferred types, required flags and defaults. With
--resource the latest persisted summary resource is fetched instead.`,
		RunE: toolsCmdFunc,
	}

	cmd.Flags().BoolVar(&toolsJSON, "json", false, "Output the raw catalog as JSON")
	cmd.Flags().BoolVar(&toolsResource, "resource", false, "Read the latest summary resource instead of the catalog")

	return cmd
}

func toolsCmdFunc(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	manager := bridge.NewManager()
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warnf("closing the bridge: %v", err)
		}
	}()

	if toolsResource {
		text, err := manager.ReadResource(cmd.Context(), cfg, mcpserver.HistoryResourceURI)
		if err != nil {
			return err
		}
		cmd.Println(text)
		return nil
	}

	if toolsJSON {
		catalog, err := manager.List(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return printJSON(cmd, catalog)
	}

	proxies, err := proxy.BuildProxies(cmd.Context(), manager, cfg)
	if err != nil {
		return err
	}

	for _, p := range proxies {
		cmd.Printf("%s\n", p.Name)
		if p.Description != "" {
			cmd.Printf("  %s\n", p.Description)
		}
		for _, param := range p.Params {
			line := "  - " + param.Name + " (" + param.Type.String()
			if param.Required {
				line += ", required"
			}
			line += ")"
			cmd.Println(line)
		}
		cmd.Println()
	}
	return nil
}
