// Package server hosts the operation registry and exposes it over the MCP
// transports (stdio subprocess and streamable HTTP).
package server

import (
	"context"
	"fmt"
	"sort"

	"github.com/opsdash/opsdash/pkg/errors"
	"github.com/opsdash/opsdash/pkg/logger"
	"github.com/opsdash/opsdash/pkg/mcp/types"
	"github.com/opsdash/opsdash/pkg/services"
)

// Handler executes one operation against the shared context. A returned
// error marks the invocation as failed; it never tears down the host.
type Handler func(ctx context.Context, sc *services.Context, args map[string]any) (any, error)

// Operation is one registered operation: its catalog entry plus its handler.
type Operation struct {
	Name        string
	Description string
	// InputSchema is the JSON schema of the argument object, advertised
	// verbatim in the catalog.
	InputSchema map[string]any
	Handler     Handler
}

// Registry maps operation names to handlers and dispatches invocations.
// Registration happens before serving starts; afterwards the registry is
// read-only and safe for concurrent dispatches.
type Registry struct {
	sc         *services.Context
	operations map[string]Operation
}

// NewRegistry builds an empty registry bound to the shared context.
func NewRegistry(sc *services.Context) *Registry {
	return &Registry{
		sc:         sc,
		operations: make(map[string]Operation),
	}
}

// Register adds an operation. Duplicate names and nil handlers are
// configuration errors.
func (r *Registry) Register(op Operation) error {
	if op.Name == "" {
		return errors.NewConfigError("operation name must not be empty", nil)
	}
	if op.Handler == nil {
		return errors.NewConfigError(
			fmt.Sprintf("operation %q has no handler", op.Name), nil)
	}
	if _, exists := r.operations[op.Name]; exists {
		return errors.NewConfigError(
			fmt.Sprintf("operation %q registered twice", op.Name), nil)
	}
	r.operations[op.Name] = op
	return nil
}

// List returns the catalog of registered operations, sorted by name. The
// catalog is stable: listing is idempotent and dispatching never alters it.
func (r *Registry) List() []types.OperationDescriptor {
	catalog := make([]types.OperationDescriptor, 0, len(r.operations))
	for _, op := range r.operations {
		catalog = append(catalog, types.OperationDescriptor{
			Name:        op.Name,
			Description: op.Description,
			InputSchema: op.InputSchema,
		})
	}
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].Name < catalog[j].Name })
	return catalog
}

// Dispatch runs the named operation and converts its outcome into a Result.
// Unknown names, handler errors and handler panics all become failure
// Results; nothing a handler does can crash the host.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (result types.Result) {
	op, ok := r.operations[name]
	if !ok {
		return types.Failure(fmt.Sprintf("unknown operation %q", name))
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("operation %s panicked: %v", name, rec)
			result = types.Failure(fmt.Sprintf("operation %s panicked: %v", name, rec))
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	value, err := op.Handler(ctx, r.sc, args)
	if err != nil {
		logger.Debugw("operation failed", "operation", name, "error", err)
		return types.Failure(err.Error())
	}
	return types.Success(value)
}
