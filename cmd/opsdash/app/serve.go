package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/logger"
	mcpserver "github.com/opsdash/opsdash/pkg/mcp/server"
	"github.com/opsdash/opsdash/pkg/services"
)

var (
	serveTransport string
	serveHost      string
	servePort      string
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the dashboard operations as an MCP server",
		Long: `Host the dashboard operations as an MCP server.

With --transport stdio the server speaks the protocol on stdin/stdout and
exits when the peer closes the stream; this is what the bridge spawns when
no explicit command is configured. With --transport streamable-http the
server listens on an HTTP endpoint until interrupted.`,
		RunE: serveCmdFunc,
	}

	cmd.Flags().StringVar(&serveTransport, "transport", config.TransportStdio,
		fmt.Sprintf("Transport to serve on (%s or %s)", config.TransportStdio, config.TransportStreamableHTTP))
	cmd.Flags().StringVar(&serveHost, "host", "localhost", "Host to listen on (streamable-http only)")
	cmd.Flags().StringVar(&servePort, "port", mcpserver.DefaultPort, "Port to listen on (streamable-http only)")

	return cmd
}

func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg := config.Load()

	// The shared context lives exactly as long as the serving process.
	sc, err := services.NewContext(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build the service context: %w", err)
	}
	defer func() {
		if err := sc.Close(); err != nil {
			logger.Warnf("closing the service context: %v", err)
		}
	}()

	srv, err := mcpserver.New(ctx, &mcpserver.Config{Host: serveHost, Port: servePort}, sc)
	if err != nil {
		return err
	}

	switch serveTransport {
	case config.TransportStdio:
		return srv.ServeStdio()

	case config.TransportStreamableHTTP:
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(srv.Start)
		group.Go(func() error {
			select {
			case <-sigChan:
			case <-groupCtx.Done():
			}
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
		return group.Wait()

	default:
		return fmt.Errorf("unknown transport %q", serveTransport)
	}
}
