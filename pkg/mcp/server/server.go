package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/opsdash/opsdash/pkg/logger"
	"github.com/opsdash/opsdash/pkg/services"
	"github.com/opsdash/opsdash/pkg/versions"
)

const (
	// ServerName identifies the host in the MCP handshake.
	ServerName = "opsdash-mcp"

	// DefaultPort is the default port for the streamable HTTP transport.
	DefaultPort = "4483"

	// HistoryResourceURI serves the latest persisted summary.
	HistoryResourceURI = "opsdash://history/latest"
)

// Config holds the transport settings for the MCP host.
type Config struct {
	Host string
	Port string
}

// Server hosts the operation registry over the MCP transports.
type Server struct {
	config     *Config
	registry   *Registry
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
	sc         *services.Context
}

// New builds the MCP host: it registers the dashboard operations on a fresh
// registry and mounts them as MCP tools.
func New(ctx context.Context, config *Config, sc *services.Context) (*Server, error) {
	registry := NewRegistry(sc)
	if err := RegisterDashboardOperations(registry); err != nil {
		return nil, err
	}

	versionInfo := versions.GetVersionInfo()
	mcpServer := mcpserver.NewMCPServer(
		ServerName,
		versionInfo.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithLogging(),
		mcpserver.WithRecovery(),
	)

	mountOperations(mcpServer, registry)
	mountHistoryResource(mcpServer, sc)

	addr := fmt.Sprintf("%s:%s", config.Host, config.Port)
	streamableServer := mcpserver.NewStreamableHTTPServer(
		mcpServer,
		mcpserver.WithEndpointPath("/mcp"),
		mcpserver.WithHTTPContextFunc(func(_ context.Context, _ *http.Request) context.Context {
			return ctx
		}),
	)

	// ReadHeaderTimeout prevents Slowloris attacks.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           streamableServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		config:     config,
		registry:   registry,
		mcpServer:  mcpServer,
		httpServer: httpServer,
		sc:         sc,
	}, nil
}

// Registry exposes the operation registry, mainly for tests and the local
// report pipeline.
func (s *Server) Registry() *Registry {
	return s.registry
}

// ServeStdio serves the host over stdin/stdout and blocks until the peer
// closes the stream.
func (s *Server) ServeStdio() error {
	logger.Info("Serving MCP host on stdio")
	return mcpserver.ServeStdio(s.mcpServer)
}

// Start serves the host over streamable HTTP and blocks until Shutdown.
func (s *Server) Start() error {
	logger.Infof("Serving MCP host on http://%s/mcp", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the streamable HTTP transport.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down MCP host...")
	return s.httpServer.Shutdown(ctx)
}

// Address returns the streamable HTTP endpoint URL.
func (s *Server) Address() string {
	return fmt.Sprintf("http://%s:%s/mcp", s.config.Host, s.config.Port)
}

// mountOperations exposes every registered operation as an MCP tool. Tool
// calls route through Dispatch, so failures come back as tool errors and
// successes as structured content.
func mountOperations(mcpServer *mcpserver.MCPServer, registry *Registry) {
	for _, descriptor := range registry.List() {
		name := descriptor.Name
		properties, required := splitSchema(descriptor.InputSchema)

		mcpServer.AddTool(mcp.Tool{
			Name:        name,
			Description: descriptor.Description,
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: properties,
				Required:   required,
			},
		}, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]any)
			result := registry.Dispatch(ctx, name, args)
			if !result.OK {
				return mcp.NewToolResultError(result.Error), nil
			}
			return mcp.NewToolResultStructuredOnly(result.Value), nil
		})
	}
}

// mountHistoryResource serves the most recent persisted summary as a
// read-only resource.
func mountHistoryResource(mcpServer *mcpserver.MCPServer, sc *services.Context) {
	mcpServer.AddResource(
		mcp.Resource{
			URI:         HistoryResourceURI,
			Name:        "Latest dashboard summary",
			Description: "The most recently persisted KPI summary, as JSON.",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			payload := map[string]any{"message": "no summaries recorded"}
			if sc.Store != nil {
				recent, err := sc.Store.RecentSummaries(ctx, 1)
				if err != nil {
					return nil, err
				}
				if len(recent) > 0 {
					payload = map[string]any{"summary": recent[0]}
				}
			}
			encoded, err := json.Marshal(payload)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      HistoryResourceURI,
					MIMEType: "application/json",
					Text:     string(encoded),
				},
			}, nil
		},
	)
}

// splitSchema pulls the properties and required list out of an object schema
// for the mcp-go tool declaration.
func splitSchema(schema map[string]any) (map[string]any, []string) {
	properties, _ := schema["properties"].(map[string]any)
	if properties == nil {
		properties = map[string]any{}
	}
	required, _ := schema["required"].([]string)
	return properties, required
}
