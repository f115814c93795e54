package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/services"
)

func TestNewMountsAllOperations(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Amazon:    config.Amazon{AccessKey: "mock", SecretKey: "mock"},
		Dashboard: config.Dashboard{Marketplace: "US", WindowDays: 7, TopN: 20},
	}
	sc, err := services.NewContext(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Close() })

	srv, err := New(context.Background(), &Config{Host: "localhost", Port: DefaultPort}, sc)
	require.NoError(t, err)

	catalog := srv.Registry().List()
	names := make([]string, 0, len(catalog))
	for _, descriptor := range catalog {
		names = append(names, descriptor.Name)
	}
	assert.Equal(t, []string{
		"analyze_dashboard_history",
		"bestseller_search",
		"compute_dashboard_metrics",
		"export_dashboard_history",
		"fetch_dashboard_data",
		"generate_dashboard_insights",
	}, names)

	assert.Equal(t, "http://localhost:4483/mcp", srv.Address())
}

func TestSplitSchema(t *testing.T) {
	t.Parallel()

	properties, required := splitSchema(objectSchema(map[string]any{
		"query": map[string]any{"type": "string"},
	}, "query"))
	assert.Contains(t, properties, "query")
	assert.Equal(t, []string{"query"}, required)

	properties, required = splitSchema(map[string]any{})
	assert.Empty(t, properties)
	assert.Nil(t, required)
}
