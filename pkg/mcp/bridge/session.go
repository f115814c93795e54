package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/errors"
	"github.com/opsdash/opsdash/pkg/mcp/types"
	"github.com/opsdash/opsdash/pkg/versions"
)

// session is one live connection to the operation host. Implementations are
// owned by a single worker goroutine and need no internal locking.
type session interface {
	initialize(ctx context.Context) error
	invoke(ctx context.Context, operation string, args map[string]any) (types.Result, error)
	listOperations(ctx context.Context) ([]types.OperationDescriptor, error)
	readResource(ctx context.Context, uri string) (string, error)
	close() error
}

// sessionFactory builds a session for a signature. The default factory dials
// a real MCP transport; tests substitute fakes.
type sessionFactory func(sig Signature) (session, error)

// mcpSession is a session backed by an mcp-go client.
type mcpSession struct {
	client *client.Client
	// needsStart is set for transports that dial lazily; the stdio client
	// spawns its subprocess at construction time instead.
	needsStart bool
}

func newMCPSession(sig Signature) (session, error) {
	switch sig.Kind {
	case config.TransportStdio:
		env := make([]string, 0, len(sig.Env))
		for k, v := range sig.Env {
			env = append(env, k+"="+v)
		}
		c, err := client.NewStdioMCPClient(sig.Command, env, sig.Args...)
		if err != nil {
			return nil, errors.NewTransportError("failed to start the stdio subprocess", err)
		}
		return &mcpSession{client: c}, nil

	case config.TransportStreamableHTTP:
		c, err := client.NewStreamableHttpClient(sig.URL,
			transport.WithHTTPTimeout(30*time.Second))
		if err != nil {
			return nil, errors.NewTransportError("failed to create the streamable HTTP client", err)
		}
		return &mcpSession{client: c, needsStart: true}, nil

	default:
		return nil, errors.NewConfigError("unknown bridge transport "+sig.Kind, nil)
	}
}

func (s *mcpSession) initialize(ctx context.Context) error {
	if s.needsStart {
		if err := s.client.Start(ctx); err != nil {
			return errors.NewTransportError("failed to start the MCP transport", err)
		}
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "opsdash-bridge",
		Version: versions.GetVersionInfo().Version,
	}
	if _, err := s.client.Initialize(ctx, initRequest); err != nil {
		return errors.NewTransportError("MCP handshake failed", err)
	}
	return nil
}

// isTransportFault reports whether an mcp-go client error came from the
// transport layer. The client wraps transport failures with a
// "transport error" prefix and returns JSON-RPC response errors bare, so
// anything else means the session itself answered.
func isTransportFault(err error) bool {
	return strings.Contains(err.Error(), "transport error")
}

// invoke calls one remote operation. Handler failures come back inside the
// Result; only transport faults surface as errors.
func (s *mcpSession) invoke(ctx context.Context, operation string, args map[string]any) (types.Result, error) {
	request := mcp.CallToolRequest{}
	request.Params.Name = operation
	request.Params.Arguments = args

	response, err := s.client.CallTool(ctx, request)
	if err != nil {
		if isTransportFault(err) {
			return types.Result{}, errors.NewTransportError("tool call failed", err)
		}
		// A JSON-RPC error response on a healthy session is an operation
		// failure, not a transport fault.
		return types.Failure(err.Error()), nil
	}

	if response.IsError {
		return types.Failure(textContent(response.Content)), nil
	}
	if response.StructuredContent != nil {
		return types.Success(response.StructuredContent), nil
	}

	// Text-only results: decode JSON payloads, pass plain text through.
	text := textContent(response.Content)
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return types.Success(decoded), nil
	}
	return types.Success(text), nil
}

func (s *mcpSession) listOperations(ctx context.Context) ([]types.OperationDescriptor, error) {
	response, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		if isTransportFault(err) {
			return nil, errors.NewTransportError("tool listing failed", err)
		}
		return nil, errors.NewHandlerError(err.Error(), err)
	}

	catalog := make([]types.OperationDescriptor, 0, len(response.Tools))
	for _, tool := range response.Tools {
		schema := map[string]any{
			"type":       tool.InputSchema.Type,
			"properties": tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			schema["required"] = tool.InputSchema.Required
		}
		catalog = append(catalog, types.OperationDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return catalog, nil
}

// readResource reads a remote resource as text. An unknown URI on a healthy
// session reads as empty text with no error; other response errors come back
// as handler errors so the session stays up.
func (s *mcpSession) readResource(ctx context.Context, uri string) (string, error) {
	request := mcp.ReadResourceRequest{}
	request.Params.URI = uri

	response, err := s.client.ReadResource(ctx, request)
	if err != nil {
		if isTransportFault(err) {
			return "", errors.NewTransportError("resource read failed", err)
		}
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return "", nil
		}
		return "", errors.NewHandlerError(err.Error(), err)
	}

	var parts []string
	for _, contents := range response.Contents {
		if text, ok := contents.(mcp.TextResourceContents); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (s *mcpSession) close() error {
	if err := s.client.Close(); err != nil {
		return errors.NewTransportError("failed to close the MCP session", err)
	}
	return nil
}

func textContent(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if text, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
