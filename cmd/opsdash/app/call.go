package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/logger"
	"github.com/opsdash/opsdash/pkg/mcp/bridge"
)

var callArgsJSON string

func newCallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <operation>",
		Short: "Invoke one operation on the remote host through the bridge",
		Long: `Invoke one operation on the remote host through the bridge.

The bridge transport comes from MCP_BRIDGE_TRANSPORT (stdio by default,
spawning this binary in serve mode). Arguments are passed as a JSON object.`,
		Args: cobra.ExactArgs(1),
		RunE: callCmdFunc,
	}

	cmd.Flags().StringVar(&callArgsJSON, "args", "{}", "Operation arguments as a JSON object")

	return cmd
}

func callCmdFunc(cmd *cobra.Command, args []string) error {
	operation := args[0]

	var operationArgs map[string]any
	if err := json.Unmarshal([]byte(callArgsJSON), &operationArgs); err != nil {
		return fmt.Errorf("--args must be a JSON object: %w", err)
	}

	cfg := config.Load()
	manager := bridge.NewManager()
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warnf("closing the bridge: %v", err)
		}
	}()

	result, err := manager.Call(cmd.Context(), cfg, operation, operationArgs)
	if err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("operation %s failed: %s", operation, result.Error)
	}
	return printJSON(cmd, result.Value)
}
