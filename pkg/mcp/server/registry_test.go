package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/errors"
	"github.com/opsdash/opsdash/pkg/services"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := &config.Config{
		Amazon:    config.Amazon{AccessKey: "mock", SecretKey: "mock"},
		Dashboard: config.Dashboard{Marketplace: "US", WindowDays: 7, TopN: 20},
	}
	sc, err := services.NewContext(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Close() })
	return NewRegistry(sc)
}

func echoOperation() Operation {
	return Operation{
		Name:        "echo",
		Description: "Returns its arguments unchanged.",
		InputSchema: objectSchema(map[string]any{
			"payload": map[string]any{"type": "object"},
		}),
		Handler: func(_ context.Context, _ *services.Context, args map[string]any) (any, error) {
			return args, nil
		},
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	require.NoError(t, r.Register(echoOperation()))

	err := r.Register(echoOperation())
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestRegisterRejectsNilHandler(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	err := r.Register(Operation{Name: "broken"})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestDispatchEcho(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	require.NoError(t, r.Register(echoOperation()))

	args := map[string]any{"payload": map[string]any{"n": 42.0}}
	result := r.Dispatch(context.Background(), "echo", args)
	assert.True(t, result.OK)
	assert.Equal(t, args, result.Value)
	assert.Empty(t, result.Error)
}

func TestDispatchUnknownOperation(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	result := r.Dispatch(context.Background(), "missing", nil)
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "unknown operation")
}

func TestDispatchHandlerError(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	require.NoError(t, r.Register(Operation{
		Name: "fails",
		Handler: func(_ context.Context, _ *services.Context, _ map[string]any) (any, error) {
			return nil, errors.NewHandlerError("deliberate failure", nil)
		},
	}))

	result := r.Dispatch(context.Background(), "fails", nil)
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "deliberate failure")
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	require.NoError(t, r.Register(Operation{
		Name: "panics",
		Handler: func(_ context.Context, _ *services.Context, _ map[string]any) (any, error) {
			panic("boom")
		},
	}))

	result := r.Dispatch(context.Background(), "panics", nil)
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "boom")

	// The registry survives the panic.
	require.NoError(t, r.Register(echoOperation()))
	assert.True(t, r.Dispatch(context.Background(), "echo", nil).OK)
}

func TestDispatchNilArguments(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	require.NoError(t, r.Register(echoOperation()))

	result := r.Dispatch(context.Background(), "echo", nil)
	assert.True(t, result.OK)
	assert.Equal(t, map[string]any{}, result.Value)
}

func TestListIsSortedAndStable(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	require.NoError(t, RegisterDashboardOperations(r))

	first := r.List()
	require.NotEmpty(t, first)
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Name, first[i].Name)
	}

	// Dispatching does not change the catalog.
	_ = r.Dispatch(context.Background(), "fetch_dashboard_data", map[string]any{
		"start": "2026-01-01", "end": "2026-01-03",
	})
	assert.Equal(t, first, r.List())
}

func TestDashboardOperationsDispatchEndToEnd(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	require.NoError(t, RegisterDashboardOperations(r))

	fetched := r.Dispatch(context.Background(), "fetch_dashboard_data", map[string]any{
		"start": "2026-01-01",
		"end":   "2026-01-07",
	})
	require.True(t, fetched.OK, fetched.Error)
	data := fetched.Value.(map[string]any)

	computed := r.Dispatch(context.Background(), "compute_dashboard_metrics", map[string]any{
		"start":   "2026-01-01",
		"end":     "2026-01-07",
		"sales":   data["sales"],
		"traffic": data["traffic"],
	})
	require.True(t, computed.OK, computed.Error)
	summary := computed.Value.(map[string]any)["summary"].(map[string]any)
	assert.NotEmpty(t, summary["top_products"])

	// Handler failure surfaces as a failure result, not a crash.
	insights := r.Dispatch(context.Background(), "generate_dashboard_insights", map[string]any{})
	assert.False(t, insights.OK)
	assert.Contains(t, insights.Error, "OPENAI_API_KEY")
}
