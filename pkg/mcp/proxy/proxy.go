package proxy

import (
	"context"
	"fmt"
	"sort"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/errors"
	"github.com/opsdash/opsdash/pkg/mcp/types"
)

// Invoker is the slice of the bridge manager the proxies need. It is an
// interface so tests can route invocations in-process.
type Invoker interface {
	Call(ctx context.Context, cfg *config.Config, operation string, args map[string]any) (types.Result, error)
	List(ctx context.Context, cfg *config.Config) ([]types.OperationDescriptor, error)
}

// Param is one typed parameter of a proxy.
type Param struct {
	Name     string
	Type     ParamType
	Required bool
	// Default is injected when the caller omits the parameter. nil means
	// no default.
	Default any
}

// Proxy is a typed handle on one remote operation. Invoke validates the
// arguments locally, then routes the call through the bridge.
type Proxy struct {
	Name        string
	Description string
	Params      []Param

	manager Invoker
	cfg     *config.Config
}

// BuildProxies discovers the remote catalog and builds one proxy per
// operation, sorted by name. An empty catalog is a configuration error: it
// means the bridge points at a host with nothing to call.
func BuildProxies(ctx context.Context, manager Invoker, cfg *config.Config) ([]*Proxy, error) {
	catalog, err := manager.List(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, errors.NewConfigError("no operations discovered on the remote host", nil)
	}

	proxies := make([]*Proxy, 0, len(catalog))
	for _, descriptor := range catalog {
		proxies = append(proxies, &Proxy{
			Name:        descriptor.Name,
			Description: descriptor.Description,
			Params:      paramsFromSchema(descriptor.InputSchema),
			manager:     manager,
			cfg:         cfg,
		})
	}
	sort.Slice(proxies, func(i, j int) bool { return proxies[i].Name < proxies[j].Name })
	return proxies, nil
}

// Invoke validates args against the declared parameters and calls the
// remote operation. Validation failures never reach the wire.
func (p *Proxy) Invoke(ctx context.Context, args map[string]any) (types.Result, error) {
	prepared := make(map[string]any, len(args))
	for k, v := range args {
		prepared[k] = v
	}

	for _, param := range p.Params {
		value, present := prepared[param.Name]
		if !present {
			if param.Default != nil {
				prepared[param.Name] = param.Default
				continue
			}
			if param.Required {
				return types.Result{}, errors.NewInvalidArgumentError(
					fmt.Sprintf("%s: missing required parameter %q", p.Name, param.Name), nil)
			}
			continue
		}
		if !param.Type.Accepts(value) {
			return types.Result{}, errors.NewInvalidArgumentError(
				fmt.Sprintf("%s: parameter %q must be %s", p.Name, param.Name, param.Type), nil)
		}
	}

	return p.manager.Call(ctx, p.cfg, p.Name, prepared)
}

// paramsFromSchema flattens an object schema into the parameter list. The
// host controls the schema; anything unexpected degrades to Any-typed
// parameters rather than failing discovery.
func paramsFromSchema(schema map[string]any) []Param {
	properties, _ := schema["properties"].(map[string]any)

	required := map[string]bool{}
	switch names := schema["required"].(type) {
	case []string:
		for _, name := range names {
			required[name] = true
		}
	case []any:
		for _, name := range names {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}

	params := make([]Param, 0, len(properties))
	for name, raw := range properties {
		fragment, _ := raw.(map[string]any)
		var defaultValue any
		if fragment != nil {
			defaultValue = fragment["default"]
		}
		params = append(params, Param{
			Name:     name,
			Type:     InferType(fragment),
			Required: required[name],
			Default:  defaultValue,
		})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return params
}
